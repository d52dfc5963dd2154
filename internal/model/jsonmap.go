package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// PriorityMap is a GORM-compatible column type for the sender/type priority
// override maps a Schedule carries (spec §3: senderPriorities, emailTypePriorities).
type PriorityMap map[string]Priority

func (m PriorityMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	return json.Marshal(m)
}

func (m *PriorityMap) Scan(value interface{}) error {
	if value == nil {
		*m = PriorityMap{}
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("model: unsupported PriorityMap scan source")
	}
	if len(raw) == 0 {
		*m = PriorityMap{}
		return nil
	}
	return json.Unmarshal(raw, m)
}

// StringList is a GORM-compatible column type for small string slices
// (Schedule.SpecificDates, ProcessedEmail tags and recipients, ExecutionLock.ScheduleIDs).
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	return json.Marshal(l)
}

func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = StringList{}
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("model: unsupported StringList scan source")
	}
	if len(raw) == 0 {
		*l = StringList{}
		return nil
	}
	return json.Unmarshal(raw, l)
}
