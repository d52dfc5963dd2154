package repository

import (
	"context"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"smart-mail-relay-go/internal/apperrors"
	"smart-mail-relay-go/internal/model"
)

const mysqlDuplicateEntry = 1062

// onConflictUpdateTemplate makes UpsertPromptTemplate an upsert-by-name:
// seed-templates is expected to be run repeatedly against the same fixture
// file as prompts are tuned, so re-seeding must update rather than conflict.
var onConflictUpdateTemplate = clause.OnConflict{
	Columns:   []clause.Column{{Name: "name"}},
	DoUpdates: clause.AssignmentColumns([]string{"description", "categories", "template", "expected_output_schema", "version", "is_active"}),
}

// gormRepository is the concrete Repository backed by gorm.io/gorm, in the
// teacher's Where/First/Create idiom, wrapped in transactions wherever
// spec §4.2 requires a multi-row write to land together.
type gormRepository struct {
	db *gorm.DB
}

func New(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) LoadDueSchedules(ctx context.Context, now time.Time) ([]model.Schedule, error) {
	var schedules []model.Schedule
	result := r.db.WithContext(ctx).
		Where("is_enabled = ? AND next_execution_at IS NOT NULL AND next_execution_at <= ?", true, now).
		Find(&schedules)
	if result.Error != nil {
		return nil, apperrors.New(apperrors.Fatal, "LoadDueSchedules", result.Error)
	}
	return schedules, nil
}

func (r *gormRepository) TryAcquireExecutionLock(ctx context.Context, executionTime time.Time, scheduleIDs []string) (bool, error) {
	lock := model.ExecutionLock{
		ExecutionTime: executionTime.Truncate(time.Minute),
		ScheduleIDs:   model.StringList(scheduleIDs),
		AcquiredAt:    time.Now(),
	}
	result := r.db.WithContext(ctx).Create(&lock)
	if result.Error == nil {
		return true, nil
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(result.Error, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
		return false, nil
	}
	if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
		return false, nil
	}
	return false, apperrors.New(apperrors.Fatal, "TryAcquireExecutionLock", result.Error)
}

func (r *gormRepository) ReleaseExecutionLock(ctx context.Context, executionTime time.Time) error {
	result := r.db.WithContext(ctx).
		Where("execution_time = ?", executionTime.Truncate(time.Minute)).
		Delete(&model.ExecutionLock{})
	if result.Error != nil {
		return apperrors.New(apperrors.Transient, "ReleaseExecutionLock", result.Error)
	}
	return nil
}

func (r *gormRepository) ReapStaleLocks(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	result := r.db.WithContext(ctx).
		Where("acquired_at < ?", cutoff).
		Delete(&model.ExecutionLock{})
	if result.Error != nil {
		return 0, apperrors.New(apperrors.Transient, "ReapStaleLocks", result.Error)
	}
	return int(result.RowsAffected), nil
}

func (r *gormRepository) CreateExecution(ctx context.Context, scheduleID string) (*model.ScheduleExecution, error) {
	exec := &model.ScheduleExecution{
		ID:          uuid.NewString(),
		ScheduleID:  scheduleID,
		Status:      model.ExecutionRunning,
		StartedAt:   time.Now(),
		MaxAttempts: 1,
	}
	if err := r.db.WithContext(ctx).Create(exec).Error; err != nil {
		return nil, apperrors.New(apperrors.Fatal, "CreateExecution", err)
	}
	return exec, nil
}

func (r *gormRepository) UpdateExecutionProgress(ctx context.Context, executionID string, counters model.Counters) error {
	if !counters.Valid() {
		return apperrors.New(apperrors.Validation, "UpdateExecutionProgress", errors.New("counters violate bound invariants"))
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.ScheduleExecution{}).
			Where("id = ?", executionID).
			Updates(map[string]interface{}{
				"total_batches_count":     counters.TotalBatchesCount,
				"completed_batches_count": counters.CompletedBatchesCount,
				"total_emails_count":      counters.TotalEmailsCount,
				"processed_emails_count":  counters.ProcessedEmailsCount,
				"failed_emails_count":     counters.FailedEmailsCount,
			})
		if result.Error != nil {
			return apperrors.New(apperrors.Transient, "UpdateExecutionProgress", result.Error)
		}
		return nil
	})
}

func (r *gormRepository) FinishExecution(ctx context.Context, executionID string, status model.ExecutionStatus, errMessage, errDetails string, durationMs *int64) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":       status,
		"completed_at": now,
	}
	if errMessage != "" {
		updates["error_message"] = errMessage
	}
	if errDetails != "" {
		updates["error_details"] = errDetails
	}
	if durationMs != nil {
		updates["processing_duration_ms"] = *durationMs
	}
	result := r.db.WithContext(ctx).Model(&model.ScheduleExecution{}).
		Where("id = ?", executionID).
		Updates(updates)
	if result.Error != nil {
		return apperrors.New(apperrors.Fatal, "FinishExecution", result.Error)
	}
	return nil
}

func (r *gormRepository) ReapStaleExecutions(ctx context.Context, staleAfter time.Duration) (int, error) {
	cutoff := time.Now().Add(-staleAfter)
	result := r.db.WithContext(ctx).Model(&model.ScheduleExecution{}).
		Where("status = ? AND started_at < ?", model.ExecutionRunning, cutoff).
		Updates(map[string]interface{}{
			"status":        model.ExecutionFailed,
			"completed_at":  time.Now(),
			"error_message": "reaped: execution exceeded staleness threshold",
		})
	if result.Error != nil {
		return 0, apperrors.New(apperrors.Transient, "ReapStaleExecutions", result.Error)
	}
	return int(result.RowsAffected), nil
}

// UpsertProcessedEmail implements the idempotency policy of spec §4.7/§4.8:
// a COMPLETED row is immutable, a FAILED row may be overwritten, and its
// entities/action items are replaced atomically in the same transaction.
func (r *gormRepository) UpsertProcessedEmail(ctx context.Context, desired *model.ProcessedEmail) (*model.ProcessedEmail, error) {
	var result *model.ProcessedEmail
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.ProcessedEmail
		lookup := tx.Where("message_id = ?", desired.MessageID).First(&existing)
		switch {
		case lookup.Error == nil:
			if existing.ProcessingStatus == model.ProcessingStatusCompleted {
				result = &existing
				return nil
			}
			desired.ID = existing.ID
			desired.CreatedAt = existing.CreatedAt
			desired.UpdatedAt = time.Now()

			if err := tx.Where("processed_email_id = ?", existing.ID).Delete(&model.EntityExtraction{}).Error; err != nil {
				return apperrors.New(apperrors.Transient, "UpsertProcessedEmail/deleteEntities", err)
			}
			if err := tx.Where("processed_email_id = ?", existing.ID).Delete(&model.ActionItem{}).Error; err != nil {
				return apperrors.New(apperrors.Transient, "UpsertProcessedEmail/deleteActions", err)
			}
			if err := tx.Session(&gorm.Session{FullSaveAssociations: false}).Save(desired).Error; err != nil {
				return apperrors.New(apperrors.Transient, "UpsertProcessedEmail/save", err)
			}
		case errors.Is(lookup.Error, gorm.ErrRecordNotFound):
			if desired.ID == "" {
				desired.ID = uuid.NewString()
			}
			now := time.Now()
			desired.CreatedAt = now
			desired.UpdatedAt = now
			if err := tx.Create(desired).Error; err != nil {
				return apperrors.New(apperrors.Transient, "UpsertProcessedEmail/create", err)
			}
		default:
			return apperrors.New(apperrors.Transient, "UpsertProcessedEmail/lookup", lookup.Error)
		}
		result = desired
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *gormRepository) FindProcessedByMessageIDs(ctx context.Context, messageIDs []string) (map[string]model.ProcessingStatus, error) {
	if len(messageIDs) == 0 {
		return map[string]model.ProcessingStatus{}, nil
	}
	var rows []model.ProcessedEmail
	result := r.db.WithContext(ctx).
		Select("message_id", "processing_status").
		Where("message_id IN ?", messageIDs).
		Find(&rows)
	if result.Error != nil {
		return nil, apperrors.New(apperrors.Transient, "FindProcessedByMessageIDs", result.Error)
	}
	out := make(map[string]model.ProcessingStatus, len(rows))
	for _, row := range rows {
		out[row.MessageID] = row.ProcessingStatus
	}
	return out, nil
}

func (r *gormRepository) GetProcessedByMessageID(ctx context.Context, messageID string) (*model.ProcessedEmail, error) {
	var row model.ProcessedEmail
	result := r.db.WithContext(ctx).
		Preload("Entities").Preload("Actions").
		Where("message_id = ?", messageID).First(&row)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, apperrors.New(apperrors.Transient, "GetProcessedByMessageID", result.Error)
	}
	return &row, nil
}

func (r *gormRepository) LastSuccessfulExecution(ctx context.Context, scheduleID string) (*model.ScheduleExecution, error) {
	var exec model.ScheduleExecution
	result := r.db.WithContext(ctx).
		Where("schedule_id = ? AND status = ?", scheduleID, model.ExecutionCompleted).
		Order("completed_at DESC").
		First(&exec)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, apperrors.New(apperrors.Transient, "LastSuccessfulExecution", result.Error)
	}
	return &exec, nil
}

// AdvanceSchedule atomically updates nextExecutionAt/lastExecutedAt/counters.
// For DATE_RANGE schedules the caller passes disableForDateRange=true, which
// always sets isEnabled=false regardless of ok (spec §8 invariant).
func (r *gormRepository) AdvanceSchedule(ctx context.Context, scheduleID string, nextAt *time.Time, lastAt time.Time, ok bool, disableForDateRange bool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"last_executed_at":  lastAt,
			"next_execution_at": nextAt,
			"total_executions":  gorm.Expr("total_executions + 1"),
		}
		if !ok {
			updates["total_failures"] = gorm.Expr("total_failures + 1")
		}
		if disableForDateRange {
			updates["is_enabled"] = false
			updates["next_execution_at"] = nil
		}
		result := tx.Model(&model.Schedule{}).Where("id = ?", scheduleID).Updates(updates)
		if result.Error != nil {
			return apperrors.New(apperrors.Fatal, "AdvanceSchedule", result.Error)
		}
		return nil
	})
}

func (r *gormRepository) GetSchedule(ctx context.Context, scheduleID string) (*model.Schedule, error) {
	var s model.Schedule
	result := r.db.WithContext(ctx).Where("id = ?", scheduleID).First(&s)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, apperrors.New(apperrors.Transient, "GetSchedule", result.Error)
	}
	return &s, nil
}

func (r *gormRepository) CreateSchedule(ctx context.Context, s *model.Schedule) error {
	if err := s.Validate(); err != nil {
		return apperrors.New(apperrors.Validation, "CreateSchedule", err)
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.IsDefault {
		var count int64
		if err := r.db.WithContext(ctx).Model(&model.Schedule{}).
			Where("user_id = ? AND email_account_id = ? AND is_default = ?", s.UserID, s.EmailAccountID, true).
			Count(&count).Error; err != nil {
			return apperrors.New(apperrors.Transient, "CreateSchedule/defaultCheck", err)
		}
		if count > 0 {
			return apperrors.New(apperrors.Validation, "CreateSchedule", errors.New("a default schedule already exists for this user/account"))
		}
	}
	now := time.Now()
	s.CreatedAt = now
	s.UpdatedAt = now
	if err := r.db.WithContext(ctx).Create(s).Error; err != nil {
		return apperrors.New(apperrors.Fatal, "CreateSchedule", err)
	}
	return nil
}

func (r *gormRepository) UpsertPromptTemplate(ctx context.Context, t *model.PromptTemplate) error {
	result := r.db.WithContext(ctx).
		Clauses(onConflictUpdateTemplate).
		Create(t)
	if result.Error != nil {
		return apperrors.New(apperrors.Fatal, "UpsertPromptTemplate", result.Error)
	}
	return nil
}

func (r *gormRepository) ActiveTemplates(ctx context.Context) ([]model.PromptTemplate, error) {
	var templates []model.PromptTemplate
	result := r.db.WithContext(ctx).Where("is_active = ?", true).Find(&templates)
	if result.Error != nil {
		return nil, apperrors.New(apperrors.Transient, "ActiveTemplates", result.Error)
	}
	return templates, nil
}
