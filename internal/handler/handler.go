// Package handler is the thin HTTP control plane spec §1 calls out of
// scope for the core ("HTTP/WS controllers merely dispatching to the
// core"): it only translates requests into repository/scheduler calls, with
// no business logic of its own. Grounded on the teacher's
// internal/handler/handler.go (gin.Context handlers on a struct holding
// *gorm.DB + collaborators, HealthResponse/ErrorResponse shape),
// generalized from forward-rule CRUD to schedule create/get, processed-email
// lookup, and dispatcher status/manual trigger.
package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"smart-mail-relay-go/internal/metrics"
	"smart-mail-relay-go/internal/model"
	"smart-mail-relay-go/internal/repository"
	"smart-mail-relay-go/internal/scheduler"
)

// Handlers holds every collaborator an HTTP request might need to dispatch
// to. None of the logic lives here: every handler is a thin adapter.
type Handlers struct {
	db         *gorm.DB
	repo       repository.Repository
	dispatcher *scheduler.Dispatcher
	metrics    *metrics.Metrics
}

func New(db *gorm.DB, repo repository.Repository, dispatcher *scheduler.Dispatcher, m *metrics.Metrics) *Handlers {
	return &Handlers{db: db, repo: repo, dispatcher: dispatcher, metrics: m}
}

// HealthResponse mirrors the teacher's HealthResponse shape, generalized
// from {database, gmail} to {database, scheduler}.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Database  string    `json:"database"`
	Scheduler string    `json:"scheduler"`
}

// ErrorResponse is the uniform error body every handler returns on failure.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func (h *Handlers) fail(c *gin.Context, status int, errCode, message string) {
	c.JSON(status, ErrorResponse{Error: errCode, Message: message, Code: status})
}

// SetupRoutes registers every route this control plane serves.
func (h *Handlers) SetupRoutes(router *gin.Engine) {
	router.GET("/healthz", h.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	{
		api.POST("/schedules", h.CreateSchedule)
		api.GET("/schedules/:id", h.GetSchedule)

		api.GET("/processed-emails/:messageId", h.GetProcessedEmail)

		api.POST("/dispatcher/run-once", h.RunDispatcherOnce)
		api.GET("/dispatcher/status", h.DispatcherStatus)
	}
}

// HealthCheck reports liveness of the database connection and the
// dispatcher, the two stateful dependencies a deploy needs to see.
func (h *Handlers) HealthCheck(c *gin.Context) {
	resp := HealthResponse{Status: "ok", Timestamp: time.Now().UTC(), Database: "ok", Scheduler: "stopped"}

	if err := h.db.Exec("SELECT 1").Error; err != nil {
		resp.Status = "error"
		resp.Database = "error"
		logrus.WithError(err).Error("handler: database health check failed")
	}
	if h.dispatcher != nil && h.dispatcher.IsRunning() {
		resp.Scheduler = "running"
	}

	status := http.StatusOK
	if resp.Status == "error" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}

// CreateSchedule validates and persists a new schedule.
func (h *Handlers) CreateSchedule(c *gin.Context) {
	var s model.Schedule
	if err := c.ShouldBindJSON(&s); err != nil {
		h.fail(c, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if err := h.repo.CreateSchedule(c.Request.Context(), &s); err != nil {
		h.fail(c, http.StatusUnprocessableEntity, "invalid_schedule", err.Error())
		return
	}
	c.JSON(http.StatusCreated, s)
}

// GetSchedule returns a schedule by ID.
func (h *Handlers) GetSchedule(c *gin.Context) {
	s, err := h.repo.GetSchedule(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, http.StatusInternalServerError, "database_error", err.Error())
		return
	}
	if s == nil {
		h.fail(c, http.StatusNotFound, "not_found", "schedule not found")
		return
	}
	c.JSON(http.StatusOK, s)
}

// GetProcessedEmail returns the stored analysis outcome for a message.
func (h *Handlers) GetProcessedEmail(c *gin.Context) {
	email, err := h.repo.GetProcessedByMessageID(c.Request.Context(), c.Param("messageId"))
	if err != nil {
		h.fail(c, http.StatusInternalServerError, "database_error", err.Error())
		return
	}
	if email == nil {
		h.fail(c, http.StatusNotFound, "not_found", "processed email not found")
		return
	}
	c.JSON(http.StatusOK, email)
}

// RunDispatcherOnce triggers a single dispatcher tick synchronously, for
// operators debugging a stuck schedule without waiting for the next minute.
func (h *Handlers) RunDispatcherOnce(c *gin.Context) {
	if h.dispatcher == nil {
		h.fail(c, http.StatusServiceUnavailable, "dispatcher_unavailable", "no dispatcher configured")
		return
	}
	h.dispatcher.RunOnce(c.Request.Context())
	c.JSON(http.StatusAccepted, gin.H{"status": "triggered"})
}

// DispatcherStatus reports whether the dispatcher's ticker is running.
func (h *Handlers) DispatcherStatus(c *gin.Context) {
	running := h.dispatcher != nil && h.dispatcher.IsRunning()
	c.JSON(http.StatusOK, gin.H{"running": running})
}
