package model

// Category is the closed set of email categories a message can be classified into.
type Category string

const (
	CategoryWork         Category = "WORK"
	CategoryPersonal     Category = "PERSONAL"
	CategoryMarketing    Category = "MARKETING"
	CategoryNewsletter   Category = "NEWSLETTER"
	CategorySupport      Category = "SUPPORT"
	CategoryNotification Category = "NOTIFICATION"
	CategoryInvoice      Category = "INVOICE"
	CategoryReceipt      Category = "RECEIPT"
	CategoryAppointment  Category = "APPOINTMENT"
)

// Valid reports whether c is one of the closed set of categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryWork, CategoryPersonal, CategoryMarketing, CategoryNewsletter,
		CategorySupport, CategoryNotification, CategoryInvoice, CategoryReceipt, CategoryAppointment:
		return true
	}
	return false
}

// Priority is a coarse urgency ranking, used both as a user-configured override
// input and as part of a processed email's stored outcome.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Boost is the importance-score contribution of a priority level, applied
// post-LLM by the priority engine (spec §4.6).
func (p Priority) Boost() int {
	switch p {
	case PriorityUrgent:
		return 30
	case PriorityHigh:
		return 20
	case PriorityMedium:
		return 10
	default:
		return 0
	}
}

type Sentiment string

const (
	SentimentPositive Sentiment = "POSITIVE"
	SentimentNeutral  Sentiment = "NEUTRAL"
	SentimentNegative Sentiment = "NEGATIVE"
	SentimentMixed    Sentiment = "MIXED"
)

func (s Sentiment) Valid() bool {
	switch s {
	case SentimentPositive, SentimentNeutral, SentimentNegative, SentimentMixed:
		return true
	}
	return false
}

// ProcessingStatus tracks a ProcessedEmail's lifecycle.
type ProcessingStatus string

const (
	ProcessingStatusPending    ProcessingStatus = "PENDING"
	ProcessingStatusProcessing ProcessingStatus = "PROCESSING"
	ProcessingStatusCompleted  ProcessingStatus = "COMPLETED"
	ProcessingStatusFailed     ProcessingStatus = "FAILED"
)

// ExecutionStatus tracks a ScheduleExecution's lifecycle. Kept distinct from
// ProcessingStatus per spec §9 Open Questions: the teacher's source conflated
// the two, but this repo names them separately and never interchanges them.
type ExecutionStatus string

const (
	ExecutionRunning   ExecutionStatus = "RUNNING"
	ExecutionCompleted ExecutionStatus = "COMPLETED"
	ExecutionFailed    ExecutionStatus = "FAILED"
	ExecutionCancelled ExecutionStatus = "CANCELLED"
)

func (s ExecutionStatus) Terminal() bool {
	return s == ExecutionCompleted || s == ExecutionFailed || s == ExecutionCancelled
}

// ProcessingType distinguishes how a schedule computes its execution date range.
type ProcessingType string

const (
	ProcessingDateRange     ProcessingType = "DATE_RANGE"
	ProcessingRecurring     ProcessingType = "RECURRING"
	ProcessingSpecificDates ProcessingType = "SPECIFIC_DATES"
)

func (t ProcessingType) Valid() bool {
	switch t {
	case ProcessingDateRange, ProcessingRecurring, ProcessingSpecificDates:
		return true
	}
	return false
}

// Focus steers template selection toward a coarse analysis style.
type Focus string

const (
	FocusGeneral Focus = "general"
	FocusSentiment Focus = "sentiment"
	FocusUrgency Focus = "urgency"
)

func (f Focus) Valid() bool {
	switch f {
	case FocusGeneral, FocusSentiment, FocusUrgency, "":
		return true
	}
	return false
}

// EntityType is the closed set of entity kinds the analysis pipeline extracts.
type EntityType string

const (
	EntityPerson       EntityType = "PERSON"
	EntityOrganization EntityType = "ORGANIZATION"
	EntityDate         EntityType = "DATE"
	EntityAmount       EntityType = "AMOUNT"
	EntityLocation     EntityType = "LOCATION"
	EntityPhone        EntityType = "PHONE"
	EntityURL          EntityType = "URL"
	EntityOrderNumber  EntityType = "ORDER_NUMBER"
)

func (e EntityType) Valid() bool {
	switch e {
	case EntityPerson, EntityOrganization, EntityDate, EntityAmount,
		EntityLocation, EntityPhone, EntityURL, EntityOrderNumber:
		return true
	}
	return false
}

// ActionType is the closed set of action-item kinds.
type ActionType string

const (
	ActionReply       ActionType = "REPLY"
	ActionSchedule    ActionType = "SCHEDULE"
	ActionPay         ActionType = "PAY"
	ActionReview      ActionType = "REVIEW"
	ActionFollowUp    ActionType = "FOLLOW_UP"
)

func (a ActionType) Valid() bool {
	switch a {
	case ActionReply, ActionSchedule, ActionPay, ActionReview, ActionFollowUp:
		return true
	}
	return false
}
