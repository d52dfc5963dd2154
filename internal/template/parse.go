package template

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"smart-mail-relay-go/internal/model"
)

// Parsed is the validated, closed-set-conformant result of running an LLM
// response through parseAndValidate (spec §4.5).
type Parsed struct {
	Category         model.Category
	Priority         model.Priority
	Sentiment        model.Sentiment
	Summary          string
	Tags             []string
	Confidence       float64
	ImportanceScore  *int
	ScoringBreakdown string
	Entities         []model.EntityExtraction
	Actions          []model.ActionItem
}

type rawEntity struct {
	Type       string  `json:"type"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
	Context    string  `json:"context"`
}

type rawAction struct {
	Type        string  `json:"type"`
	Description string  `json:"description"`
	Priority    string  `json:"priority"`
	DueDate     *string `json:"due_date"`
}

type rawParsed struct {
	Category        string          `json:"category"`
	Priority        string          `json:"priority"`
	Sentiment       string          `json:"sentiment"`
	Summary         string          `json:"summary"`
	Tags            []string        `json:"tags"`
	Confidence      float64         `json:"confidence"`
	ImportanceScore *float64        `json:"importance_score"`
	ScoringBreakdown json.RawMessage `json:"scoring_breakdown"`
	Entities        []rawEntity     `json:"entities"`
	Actions         []rawAction     `json:"actions"`
}

// ParseAndValidate extracts the first balanced JSON object from raw (the
// LLM's free-form response may carry leading/trailing prose), validates
// enum fields against the closed sets (dropping unknown values to neutral
// defaults, with a warning), clamps confidence/importance_score, and drops
// entities/action items missing their key fields (spec §4.5). When no
// balanced JSON object is present, raw is tried as a plain "key: value,
// key: value" response before giving up — some templates ask for a terse
// non-JSON summary line.
func ParseAndValidate(raw string) (Parsed, error) {
	jsonBlob, ok := extractBalancedJSON(raw)
	if !ok {
		if p, ok := parseKeyValueFallback(raw); ok {
			return p, nil
		}
		return Parsed{}, fmt.Errorf("template: no balanced JSON object found in LLM response")
	}

	var r rawParsed
	if err := json.Unmarshal([]byte(jsonBlob), &r); err != nil {
		return Parsed{}, fmt.Errorf("template: unmarshaling LLM response: %w", err)
	}

	p := Parsed{
		Summary:    r.Summary,
		Tags:       r.Tags,
		Confidence: clamp(r.Confidence, 0, 1),
		Category:   normalizeCategory(r.Category),
		Priority:   normalizePriority(r.Priority),
		Sentiment:  normalizeSentiment(r.Sentiment),
	}

	if r.ImportanceScore != nil {
		score := int(clamp(*r.ImportanceScore, 0, 100))
		p.ImportanceScore = &score
	}

	if len(r.ScoringBreakdown) > 0 && string(r.ScoringBreakdown) != "null" {
		p.ScoringBreakdown = string(r.ScoringBreakdown)
	}

	for _, e := range r.Entities {
		if strings.TrimSpace(e.Value) == "" {
			continue
		}
		entityType := model.EntityType(strings.ToUpper(strings.TrimSpace(e.Type)))
		if !entityType.Valid() {
			logrus.Warnf("template: dropping entity with unknown type %q", e.Type)
			continue
		}
		p.Entities = append(p.Entities, model.EntityExtraction{
			EntityType:  entityType,
			EntityValue: e.Value,
			Confidence:  clamp(e.Confidence, 0, 1),
			Context:     e.Context,
		})
	}

	for _, a := range r.Actions {
		if strings.TrimSpace(a.Description) == "" {
			continue
		}
		actionType := model.ActionType(strings.ToUpper(strings.TrimSpace(a.Type)))
		if !actionType.Valid() {
			logrus.Warnf("template: dropping action item with unknown type %q", a.Type)
			continue
		}
		action := model.ActionItem{
			ActionType:  actionType,
			Description: a.Description,
		}
		priority := model.Priority(strings.ToUpper(strings.TrimSpace(a.Priority)))
		if priority.Valid() {
			action.Priority = priority
		}
		p.Actions = append(p.Actions, action)
	}

	return p, nil
}

// neutralDefaultConfidence is used for the key:value fallback format, which
// carries no confidence field of its own (spec §8 scenario 4: "confidence≤0.8").
const neutralDefaultConfidence = 0.8

// normalizeCategory validates s against the closed Category set, falling
// back to the spec's neutral default (PERSONAL) for anything unrecognized.
func normalizeCategory(s string) model.Category {
	c := model.Category(strings.ToUpper(strings.TrimSpace(s)))
	if c.Valid() {
		return c
	}
	if c != "" {
		logrus.Warnf("template: dropping unknown category %q, falling back to neutral default", s)
	}
	return model.CategoryPersonal
}

func normalizePriority(s string) model.Priority {
	p := model.Priority(strings.ToUpper(strings.TrimSpace(s)))
	if p.Valid() {
		return p
	}
	if p != "" {
		logrus.Warnf("template: dropping unknown priority %q, falling back to neutral default", s)
	}
	return model.PriorityMedium
}

func normalizeSentiment(s string) model.Sentiment {
	sent := model.Sentiment(strings.ToUpper(strings.TrimSpace(s)))
	if sent.Valid() {
		return sent
	}
	if sent != "" {
		logrus.Warnf("template: dropping unknown sentiment %q, falling back to neutral default", s)
	}
	return model.SentimentNeutral
}

// parseKeyValueFallback parses a terse "category: BOGUS, priority: medium,
// sentiment: positive, summary: hi" response (spec §8 scenario 4). It
// requires at least a category or summary field to avoid treating arbitrary
// prose as a match.
func parseKeyValueFallback(raw string) (Parsed, bool) {
	fields := make(map[string]string)
	for _, part := range strings.Split(raw, ",") {
		kv := strings.SplitN(part, ":", 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(kv[0]))
		fields[key] = strings.TrimSpace(kv[1])
	}

	_, hasCategory := fields["category"]
	_, hasSummary := fields["summary"]
	if !hasCategory && !hasSummary {
		return Parsed{}, false
	}

	return Parsed{
		Category:   normalizeCategory(fields["category"]),
		Priority:   normalizePriority(fields["priority"]),
		Sentiment:  normalizeSentiment(fields["sentiment"]),
		Summary:    fields["summary"],
		Confidence: neutralDefaultConfidence,
	}, true
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// extractBalancedJSON returns the first brace-balanced JSON object in s,
// ignoring braces inside quoted strings (spec §4.5 "greedy match").
func extractBalancedJSON(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start == -1 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
