// Package priority implements the priority engine (spec §4.6): pre-LLM
// sender/type hints, and post-LLM importance-score boosting.
package priority

import (
	"strings"

	"smart-mail-relay-go/internal/model"
)

// Hints is the pre-LLM attachment spec §4.6 names: advisory category
// detection plus whichever user-configured sender/type priority overrides apply.
type Hints struct {
	SenderPriority               model.Priority
	UserConfiguredSenderPriority bool
	TypePriority                 model.Priority
	UserConfiguredTypePriority   bool
	DetectedCategory             model.Category
}

// ComputeHints attaches priorityHints for (email, schedule): senderPriority
// from an exact-address or domain match, typePriority from the lightweight
// keyword-matched detected category, both advisory and always superseded by
// the LLM's own category (spec §4.6).
func ComputeHints(email model.CanonicalMessage, schedule model.Schedule) Hints {
	hints := Hints{DetectedCategory: detectCategory(email)}

	if schedule.SenderPriorities != nil {
		from := senderAddress(email.From)
		if p, ok := schedule.SenderPriorities[from]; ok {
			hints.SenderPriority = p
			hints.UserConfiguredSenderPriority = true
		} else if domain := senderDomain(email.From); domain != "" {
			if p, ok := schedule.SenderPriorities[domain]; ok {
				hints.SenderPriority = p
				hints.UserConfiguredSenderPriority = true
			}
		}
	}

	if schedule.EmailTypePriorities != nil {
		if p, ok := schedule.EmailTypePriorities[string(hints.DetectedCategory)]; ok {
			hints.TypePriority = p
			hints.UserConfiguredTypePriority = true
		}
	}

	return hints
}

// senderAddress extracts the bare address from a "Display Name <addr>"
// header, so an exact SenderPriorities override keyed by address still
// matches when From carries a display name.
func senderAddress(from string) string {
	from = strings.TrimSpace(from)
	if start := strings.LastIndexByte(from, '<'); start != -1 {
		if end := strings.IndexByte(from[start:], '>'); end != -1 {
			return strings.ToLower(strings.TrimSpace(from[start+1 : start+end]))
		}
	}
	return strings.ToLower(from)
}

func senderDomain(from string) string {
	at := strings.LastIndex(from, "@")
	if at == -1 || at == len(from)-1 {
		return ""
	}
	return strings.ToLower(strings.TrimSuffix(from[at+1:], ">"))
}

// detectCategory is the "lightweight keyword matcher" spec §4.6 calls
// advisory — deliberately simpler than the template catalog's scoring
// fallback (internal/template), since its only consumer is the
// emailTypePriorities lookup, not template selection.
var categoryKeywords = map[string]model.Category{
	"invoice":      model.CategoryInvoice,
	"receipt":      model.CategoryReceipt,
	"order":        model.CategoryReceipt,
	"meeting":      model.CategoryAppointment,
	"appointment":  model.CategoryAppointment,
	"unsubscribe":  model.CategoryNewsletter,
	"newsletter":   model.CategoryNewsletter,
	"support":      model.CategorySupport,
	"ticket":       model.CategorySupport,
	"% off":        model.CategoryMarketing,
	"promo":        model.CategoryMarketing,
}

func detectCategory(email model.CanonicalMessage) model.Category {
	haystack := strings.ToLower(email.Subject)
	for keyword, category := range categoryKeywords {
		if strings.Contains(haystack, keyword) {
			return category
		}
	}
	return model.CategoryNotification
}
