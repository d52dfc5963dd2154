package repository

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"

	"smart-mail-relay-go/internal/apperrors"
	"smart-mail-relay-go/internal/model"
)

func newMockRepo(t *testing.T) (Repository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	gdb, err := gorm.Open(gormmysql.New(gormmysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)

	return New(gdb), mock
}

func TestTryAcquireExecutionLock_Success(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `execution_locks`")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	ok, err := repo.TryAcquireExecutionLock(context.Background(), time.Now(), []string{"s1", "s2"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTryAcquireExecutionLock_Contended(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `execution_locks`")).
		WillReturnError(&mysql.MySQLError{Number: mysqlDuplicateEntry, Message: "Duplicate entry"})
	mock.ExpectRollback()

	ok, err := repo.TryAcquireExecutionLock(context.Background(), time.Now(), []string{"s1"})
	require.NoError(t, err)
	assert.False(t, ok, "a duplicate-key error means another worker holds the lock, not a failure")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTryAcquireExecutionLock_GenuineError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `execution_locks`")).
		WillReturnError(&mysql.MySQLError{Number: 1205, Message: "Lock wait timeout exceeded"})
	mock.ExpectRollback()

	ok, err := repo.TryAcquireExecutionLock(context.Background(), time.Now(), []string{"s1"})
	assert.False(t, ok)
	require.Error(t, err)
	assert.Equal(t, apperrors.Fatal, apperrors.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadDueSchedules(t *testing.T) {
	repo, mock := newMockRepo(t)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_id", "email_account_id", "name", "processing_type", "timezone", "batch_size", "is_enabled", "next_execution_at"}).
		AddRow("sched-1", "user-1", "acct-1", "Daily digest", "RECURRING", "UTC", 5, true, now)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `schedules`")).
		WillReturnRows(rows)

	schedules, err := repo.LoadDueSchedules(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, schedules, 1)
	assert.Equal(t, "sched-1", schedules[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinishExecution_WithDuration(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `schedule_executions` SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	duration := int64(4210)
	err := repo.FinishExecution(context.Background(), "exec-1", model.ExecutionCompleted, "", "", &duration)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateExecutionProgress_RejectsInvalidCounters(t *testing.T) {
	repo, _ := newMockRepo(t)

	err := repo.UpdateExecutionProgress(context.Background(), "exec-1", model.Counters{
		TotalBatchesCount:     2,
		CompletedBatchesCount: 3, // violates CompletedBatchesCount <= TotalBatchesCount
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.Validation, apperrors.KindOf(err))
}

func TestCreateSchedule_RejectsInvalidSchedule(t *testing.T) {
	repo, _ := newMockRepo(t)

	s := &model.Schedule{
		ID:             "sched-2",
		UserID:         "user-1",
		EmailAccountID: "acct-1",
		Name:           "Broken",
		ProcessingType: model.ProcessingRecurring,
		// missing CronExpression -> Validate() must reject before touching the DB
	}
	err := repo.CreateSchedule(context.Background(), s)
	require.Error(t, err)
	assert.Equal(t, apperrors.Validation, apperrors.KindOf(err))
}

func TestActiveTemplates(t *testing.T) {
	repo, mock := newMockRepo(t)

	rows := sqlmock.NewRows([]string{"name", "description", "template", "version", "is_active"}).
		AddRow("urgent-triage", "flags urgent messages", "Classify: {{.Subject}}", 1, true)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `prompt_templates`")).
		WillReturnRows(rows)

	templates, err := repo.ActiveTemplates(context.Background())
	require.NoError(t, err)
	require.Len(t, templates, 1)
	assert.Equal(t, "urgent-triage", templates[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

var _ driver.Valuer = model.StringList(nil)
