package template

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"smart-mail-relay-go/internal/model"
)

func TestRenderPrompt_SubstitutesFixedPlaceholders(t *testing.T) {
	tmpl := model.PromptTemplate{Template: "Subject: {{subject}}\nFrom: {{fromAddress}}\nBody: {{bodyText}}\nReceived: {{receivedAt}}"}
	email := model.CanonicalMessage{
		Subject: "Invoice #123",
		From:    "billing@stripe.com",
		BodyText: "Your invoice is ready.",
		Date:    time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC),
	}

	out := RenderPrompt(tmpl, email, nil)
	assert.Contains(t, out, "Subject: Invoice #123")
	assert.Contains(t, out, "From: billing@stripe.com")
	assert.Contains(t, out, "Body: Your invoice is ready.")
	assert.Contains(t, out, "Received: 2026-03-01T12:30:00Z")
}

func TestRenderPrompt_FallsBackToHTMLBody(t *testing.T) {
	tmpl := model.PromptTemplate{Template: "Body: {{bodyText}}"}
	email := model.CanonicalMessage{BodyHTML: "<p>hi</p>"}

	out := RenderPrompt(tmpl, email, nil)
	assert.Equal(t, "Body: <p>hi</p>", out)
}

func TestRenderPrompt_ConditionalBlockRendersWhenPresent(t *testing.T) {
	tmpl := model.PromptTemplate{Template: "{{#if llmFocus}}Focus on: {{llmFocus}}.{{/if}} Go."}
	prefs := &UserPrefs{LLMFocus: model.FocusUrgency}

	out := RenderPrompt(tmpl, model.CanonicalMessage{}, prefs)
	assert.Equal(t, "Focus on: urgency. Go.", out)
}

func TestRenderPrompt_ConditionalBlockStrippedWhenAbsent(t *testing.T) {
	tmpl := model.PromptTemplate{Template: "{{#if llmFocus}}Focus on: {{llmFocus}}.{{/if}} Go."}

	out := RenderPrompt(tmpl, model.CanonicalMessage{}, nil)
	assert.Equal(t, " Go.", out)
}

func TestRenderPrompt_StripsUnusedVariables(t *testing.T) {
	tmpl := model.PromptTemplate{Template: "{{subject}} {{somethingUnused}}"}
	email := model.CanonicalMessage{Subject: "hello"}

	out := RenderPrompt(tmpl, email, nil)
	assert.Equal(t, "hello ", out)
}
