package template

import (
	"fmt"
	"regexp"
	"strings"

	"smart-mail-relay-go/internal/model"
)

// UserPrefs carries the schedule-level overrides a prompt may reference
// inside {{#if ...}} conditional blocks (spec §4.5).
type UserPrefs struct {
	SenderPriorities    model.PriorityMap
	EmailTypePriorities model.PriorityMap
	LLMFocus            model.Focus
}

var conditionalBlock = regexp.MustCompile(`(?s)\{\{#if (\w+)\}\}(.*?)\{\{/if\}\}`)
var variableToken = regexp.MustCompile(`\{\{\w+\}\}`)

// RenderPrompt substitutes the fixed placeholders and resolves {{#if X}}
// conditional blocks for senderPriorities/emailTypePriorities/llmFocus,
// then strips any variable token left unresolved (spec §4.5).
func RenderPrompt(tmpl model.PromptTemplate, email model.CanonicalMessage, prefs *UserPrefs) string {
	out := conditionalBlock.ReplaceAllStringFunc(tmpl.Template, func(match string) string {
		groups := conditionalBlock.FindStringSubmatch(match)
		name, body := groups[1], groups[2]
		value, present := prefValue(name, prefs)
		if !present {
			return ""
		}
		return strings.ReplaceAll(body, "{{"+name+"}}", value)
	})

	replacements := map[string]string{
		"{{subject}}":     email.Subject,
		"{{fromAddress}}": email.From,
		"{{bodyText}}":    bodyOrFallback(email),
		"{{receivedAt}}":  email.Date.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	for token, value := range replacements {
		out = strings.ReplaceAll(out, token, value)
	}

	return variableToken.ReplaceAllString(out, "")
}

func bodyOrFallback(email model.CanonicalMessage) string {
	if email.BodyText != "" {
		return email.BodyText
	}
	return email.BodyHTML
}

func prefValue(name string, prefs *UserPrefs) (string, bool) {
	if prefs == nil {
		return "", false
	}
	switch name {
	case "senderPriorities":
		if len(prefs.SenderPriorities) == 0 {
			return "", false
		}
		return formatPriorityMap(prefs.SenderPriorities), true
	case "emailTypePriorities":
		if len(prefs.EmailTypePriorities) == 0 {
			return "", false
		}
		return formatPriorityMap(prefs.EmailTypePriorities), true
	case "llmFocus":
		if prefs.LLMFocus == "" {
			return "", false
		}
		return string(prefs.LLMFocus), true
	default:
		return "", false
	}
}

func formatPriorityMap(m model.PriorityMap) string {
	parts := make([]string, 0, len(m))
	for k, v := range m {
		parts = append(parts, fmt.Sprintf("%s=%s", k, v))
	}
	return strings.Join(parts, ", ")
}
