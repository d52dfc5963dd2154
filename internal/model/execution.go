package model

import "time"

// ExecutionLock is the cluster-wide mutual-exclusion row keyed by the
// minute-truncated firing instant (spec §3, §4.2, §9). Its mere presence
// means "another worker owns all schedules firing at this instant."
type ExecutionLock struct {
	ExecutionTime time.Time `json:"executionTime" gorm:"primaryKey"`
	ScheduleIDs   StringList `json:"scheduleIds" gorm:"type:text"`
	AcquiredAt    time.Time `json:"acquiredAt"`
}

func (ExecutionLock) TableName() string { return "execution_locks" }

// ScheduleExecution is a single run of a schedule against its account.
type ScheduleExecution struct {
	ID          string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ScheduleID  string          `json:"scheduleId" gorm:"type:varchar(36);not null;index"`
	Status      ExecutionStatus `json:"status" gorm:"type:varchar(16);not null;index"`
	StartedAt   time.Time       `json:"startedAt"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
	MaxAttempts int             `json:"maxAttempts" gorm:"default:1"`

	TotalBatchesCount     int `json:"totalBatchesCount"`
	CompletedBatchesCount int `json:"completedBatchesCount"`
	TotalEmailsCount      int `json:"totalEmailsCount"`
	ProcessedEmailsCount  int `json:"processedEmailsCount"`
	FailedEmailsCount     int `json:"failedEmailsCount"`

	ProcessingDurationMs *int64 `json:"processingDurationMs,omitempty"`
	ErrorMessage         string `json:"errorMessage,omitempty" gorm:"type:text"`
	ErrorDetails         string `json:"errorDetails,omitempty" gorm:"type:text"`
}

func (ScheduleExecution) TableName() string { return "schedule_executions" }

// Counters is the mutable progress snapshot the orchestrator reports after
// each batch (spec §4.8 step 5c). Kept as its own type so repository writes
// are atomic, single-purpose transactions rather than full-row replaces.
type Counters struct {
	TotalBatchesCount     int
	CompletedBatchesCount int
	TotalEmailsCount      int
	ProcessedEmailsCount  int
	FailedEmailsCount     int
}

// Valid checks the counter bounds from spec §8 on a single snapshot:
// completed batches never exceed total batches, and processed plus failed
// emails never exceed total emails. It does not compare against earlier
// snapshots, so it does not check monotonicity.
func (c Counters) Valid() bool {
	return c.CompletedBatchesCount <= c.TotalBatchesCount &&
		c.ProcessedEmailsCount+c.FailedEmailsCount <= c.TotalEmailsCount
}
