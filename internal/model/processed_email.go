package model

import "time"

// ProcessedEmail is the persisted outcome of running one message through the
// analysis pipeline. Upserted by MessageID (spec §3, §4.7 step 7): a
// COMPLETED row is immutable; a FAILED row may be overwritten.
type ProcessedEmail struct {
	ID                  string           `json:"id" gorm:"primaryKey;type:varchar(36)"`
	MessageID           string           `json:"messageId" gorm:"type:varchar(998);not null;uniqueIndex"`
	EmailAccountID      string           `json:"emailAccountId" gorm:"type:varchar(36);not null;index"`
	Subject             string           `json:"subject" gorm:"type:text"`
	FromAddress         string           `json:"from" gorm:"type:varchar(320)"`
	To                  StringList       `json:"to" gorm:"type:text"`
	CC                  StringList       `json:"cc" gorm:"type:text"`
	BCC                 StringList       `json:"bcc" gorm:"type:text"`
	ReceivedAt          time.Time        `json:"receivedAt"`
	BodyText            string           `json:"bodyText,omitempty" gorm:"type:longtext"`
	BodyHTML            string           `json:"bodyHtml,omitempty" gorm:"type:longtext"`
	ProcessingStatus    ProcessingStatus `json:"processingStatus" gorm:"type:varchar(16);not null;index"`
	Category            Category         `json:"category" gorm:"type:varchar(32)"`
	Priority            Priority         `json:"priority" gorm:"type:varchar(16)"`
	Sentiment           Sentiment        `json:"sentiment" gorm:"type:varchar(16)"`
	Summary             string           `json:"summary" gorm:"type:text"`
	Tags                StringList       `json:"tags" gorm:"type:text"`
	Confidence          float64          `json:"confidence"`
	ImportanceScore     *int             `json:"importanceScore,omitempty"`
	PriorityReasoning   string           `json:"priorityReasoning,omitempty" gorm:"type:text"`
	ScheduleExecutionID *string          `json:"scheduleExecutionId,omitempty" gorm:"type:varchar(36);index"`
	CreatedAt           time.Time        `json:"createdAt"`
	UpdatedAt           time.Time        `json:"updatedAt"`

	Entities []EntityExtraction `json:"entities,omitempty" gorm:"foreignKey:ProcessedEmailID;constraint:OnDelete:CASCADE"`
	Actions  []ActionItem       `json:"actions,omitempty" gorm:"foreignKey:ProcessedEmailID;constraint:OnDelete:CASCADE"`
}

func (ProcessedEmail) TableName() string { return "processed_emails" }

// EntityExtraction is one named entity the LLM surfaced for a message.
type EntityExtraction struct {
	ID               string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ProcessedEmailID string     `json:"processedEmailId" gorm:"type:varchar(36);not null;index"`
	EntityType       EntityType `json:"entityType" gorm:"type:varchar(32);not null"`
	EntityValue      string     `json:"entityValue" gorm:"type:text;not null"`
	Confidence       float64    `json:"confidence"`
	Context          string     `json:"context,omitempty" gorm:"type:text"`
}

func (EntityExtraction) TableName() string { return "entity_extractions" }

// ActionItem is one actionable follow-up the LLM surfaced for a message.
type ActionItem struct {
	ID               string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ProcessedEmailID string     `json:"processedEmailId" gorm:"type:varchar(36);not null;index"`
	ActionType       ActionType `json:"actionType" gorm:"type:varchar(32);not null"`
	Description      string     `json:"description" gorm:"type:text;not null"`
	Priority         Priority   `json:"priority" gorm:"type:varchar(16)"`
	DueDate          *time.Time `json:"dueDate,omitempty"`
	IsCompleted      bool       `json:"isCompleted" gorm:"default:false"`
}

func (ActionItem) TableName() string { return "action_items" }
