// Package repository is the durable-storage boundary (spec §4.2, §6).
// Grounded on the teacher's internal/repository/repository.go (gorm.DB
// wrapper, Where/First/Create query shapes) generalized from forward-rule
// lookups to the schedule/execution/processed-email contracts spec.md names,
// and from ad-hoc writes to explicit db.Transaction blocks wherever spec §4.2
// requires a multi-row write to land together.
package repository

import (
	"context"
	"time"

	"smart-mail-relay-go/internal/model"
)

// Repository is the full contract spec §4.2 names. SQL schema is an
// implementation detail (see gorm.go); only the shape is fixed here.
type Repository interface {
	LoadDueSchedules(ctx context.Context, now time.Time) ([]model.Schedule, error)

	TryAcquireExecutionLock(ctx context.Context, executionTime time.Time, scheduleIDs []string) (bool, error)
	ReleaseExecutionLock(ctx context.Context, executionTime time.Time) error
	ReapStaleLocks(ctx context.Context, olderThan time.Duration) (int, error)

	CreateExecution(ctx context.Context, scheduleID string) (*model.ScheduleExecution, error)
	UpdateExecutionProgress(ctx context.Context, executionID string, counters model.Counters) error
	FinishExecution(ctx context.Context, executionID string, status model.ExecutionStatus, errMessage, errDetails string, durationMs *int64) error
	ReapStaleExecutions(ctx context.Context, olderThan time.Duration) (int, error)

	UpsertProcessedEmail(ctx context.Context, desired *model.ProcessedEmail) (*model.ProcessedEmail, error)
	FindProcessedByMessageIDs(ctx context.Context, messageIDs []string) (map[string]model.ProcessingStatus, error)
	GetProcessedByMessageID(ctx context.Context, messageID string) (*model.ProcessedEmail, error)

	LastSuccessfulExecution(ctx context.Context, scheduleID string) (*model.ScheduleExecution, error)
	AdvanceSchedule(ctx context.Context, scheduleID string, nextAt *time.Time, lastAt time.Time, ok bool, disableForDateRange bool) error

	GetSchedule(ctx context.Context, scheduleID string) (*model.Schedule, error)
	CreateSchedule(ctx context.Context, s *model.Schedule) error

	UpsertPromptTemplate(ctx context.Context, t *model.PromptTemplate) error
	ActiveTemplates(ctx context.Context) ([]model.PromptTemplate, error)
}
