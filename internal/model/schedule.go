package model

import "time"

// Schedule is a user-defined recipe for when and how to pull and analyze a
// mailbox. See spec §3 for the full invariant list; Validate below enforces
// the subset that can't be expressed as a struct tag.
type Schedule struct {
	ID              string         `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID          string         `json:"userId" gorm:"type:varchar(36);not null;index" validate:"required"`
	EmailAccountID  string         `json:"emailAccountId" gorm:"type:varchar(36);not null;index" validate:"required"`
	Name            string         `json:"name" gorm:"type:varchar(255);not null" validate:"required"`
	ProcessingType  ProcessingType `json:"processingType" gorm:"type:varchar(32);not null" validate:"required,oneof=DATE_RANGE RECURRING SPECIFIC_DATES"`
	DateRangeFrom   *time.Time     `json:"dateRangeFrom,omitempty"`
	DateRangeTo     *time.Time     `json:"dateRangeTo,omitempty"`
	CronExpression  string         `json:"cronExpression,omitempty" gorm:"type:varchar(64)"`
	Timezone        string         `json:"timezone" gorm:"type:varchar(64);not null;default:UTC"`
	SpecificDates   StringList     `json:"specificDates,omitempty" gorm:"type:text"`
	BatchSize       int            `json:"batchSize" gorm:"not null;default:5" validate:"min=1"`
	SenderPriorities      PriorityMap `json:"senderPriorities" gorm:"type:text"`
	EmailTypePriorities   PriorityMap `json:"emailTypePriorities" gorm:"type:text"`
	LLMFocus        Focus  `json:"llmFocus" gorm:"type:varchar(16);default:general"`
	IsEnabled       bool   `json:"isEnabled" gorm:"not null;default:true;index"`
	IsDefault       bool   `json:"isDefault" gorm:"not null;default:false"`
	NextExecutionAt *time.Time `json:"nextExecutionAt,omitempty" gorm:"index"`
	LastExecutedAt  *time.Time `json:"lastExecutedAt,omitempty"`
	TotalExecutions      int64 `json:"totalExecutions" gorm:"not null;default:0"`
	TotalEmailsProcessed int64 `json:"totalEmailsProcessed" gorm:"not null;default:0"`
	TotalFailures        int64 `json:"totalFailures" gorm:"not null;default:0"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func (Schedule) TableName() string { return "schedules" }

// Validate enforces the cross-field invariants from spec §3 that struct tags
// can't express on their own (conditional-on-ProcessingType requirements).
func (s *Schedule) Validate() error {
	switch s.ProcessingType {
	case ProcessingRecurring:
		if s.CronExpression == "" {
			return ErrInvalidSchedule("RECURRING schedule requires a cronExpression")
		}
		if s.Timezone == "" {
			return ErrInvalidSchedule("RECURRING schedule requires a timezone")
		}
	case ProcessingDateRange:
		if s.DateRangeFrom == nil || s.DateRangeTo == nil {
			return ErrInvalidSchedule("DATE_RANGE schedule requires dateRangeFrom and dateRangeTo")
		}
		if s.DateRangeFrom.After(*s.DateRangeTo) {
			return ErrInvalidSchedule("dateRangeFrom must not be after dateRangeTo")
		}
	case ProcessingSpecificDates:
		if len(s.SpecificDates) == 0 {
			return ErrInvalidSchedule("SPECIFIC_DATES schedule requires a non-empty specificDates list")
		}
	default:
		return ErrInvalidSchedule("unknown processingType " + string(s.ProcessingType))
	}
	if s.BatchSize < 1 {
		return ErrInvalidSchedule("batchSize must be >= 1")
	}
	return nil
}

// invalidScheduleError is a small sentinel-ish error type so callers can
// distinguish schedule validation failures from other errors with errors.As.
type invalidScheduleError struct{ msg string }

func (e invalidScheduleError) Error() string { return "invalid schedule: " + e.msg }

func ErrInvalidSchedule(msg string) error { return invalidScheduleError{msg: msg} }
