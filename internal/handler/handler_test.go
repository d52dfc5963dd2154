package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"smart-mail-relay-go/internal/model"
	"smart-mail-relay-go/internal/repository"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeRepo struct {
	repository.Repository
	schedule    *model.Schedule
	created     *model.Schedule
	createErr   error
	processed   *model.ProcessedEmail
}

func (r *fakeRepo) CreateSchedule(ctx context.Context, s *model.Schedule) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.created = s
	return nil
}

func (r *fakeRepo) GetSchedule(ctx context.Context, id string) (*model.Schedule, error) {
	return r.schedule, nil
}

func (r *fakeRepo) GetProcessedByMessageID(ctx context.Context, messageID string) (*model.ProcessedEmail, error) {
	return r.processed, nil
}

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{})
	require.NoError(t, err)
	return db, mock
}

func router(h *Handlers) *gin.Engine {
	r := gin.New()
	h.SetupRoutes(r)
	return r
}

func TestHealthCheck_OKWhenDatabaseReachable(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("SELECT 1").WillReturnResult(sqlmock.NewResult(0, 0))
	h := New(db, &fakeRepo{}, nil, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	router(h).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Database)
	assert.Equal(t, "stopped", resp.Scheduler)
}

func TestHealthCheck_ServiceUnavailableWhenDatabaseDown(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("SELECT 1").WillReturnError(assert.AnError)
	h := New(db, &fakeRepo{}, nil, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	router(h).ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestGetSchedule_NotFound(t *testing.T) {
	db, _ := newMockDB(t)
	h := New(db, &fakeRepo{}, nil, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/schedules/missing", nil)
	router(h).ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetSchedule_Found(t *testing.T) {
	db, _ := newMockDB(t)
	h := New(db, &fakeRepo{schedule: &model.Schedule{ID: "s1", Name: "daily"}}, nil, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/schedules/s1", nil)
	router(h).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "daily")
}

func TestCreateSchedule_RejectsMalformedBody(t *testing.T) {
	db, _ := newMockDB(t)
	h := New(db, &fakeRepo{}, nil, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/schedules", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	router(h).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateSchedule_PropagatesRepositoryValidationError(t *testing.T) {
	db, _ := newMockDB(t)
	h := New(db, &fakeRepo{createErr: model.ErrInvalidSchedule("bad batch size")}, nil, nil)

	body, _ := json.Marshal(model.Schedule{Name: "x"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/schedules", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	router(h).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestGetProcessedEmail_NotFound(t *testing.T) {
	db, _ := newMockDB(t)
	h := New(db, &fakeRepo{}, nil, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/processed-emails/abc", nil)
	router(h).ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDispatcherStatus_FalseWhenNoDispatcherConfigured(t *testing.T) {
	db, _ := newMockDB(t)
	h := New(db, &fakeRepo{}, nil, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/dispatcher/status", nil)
	router(h).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"running":false}`, w.Body.String())
}

func TestRunDispatcherOnce_UnavailableWhenNoDispatcherConfigured(t *testing.T) {
	db, _ := newMockDB(t)
	h := New(db, &fakeRepo{}, nil, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/dispatcher/run-once", nil)
	router(h).ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
