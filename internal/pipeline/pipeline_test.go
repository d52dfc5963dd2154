package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smart-mail-relay-go/internal/llm"
	"smart-mail-relay-go/internal/model"
	"smart-mail-relay-go/internal/repository"
	"smart-mail-relay-go/internal/template"
)

type fakeSource struct{ templates []model.PromptTemplate }

func (f fakeSource) ActiveTemplates(context.Context) ([]model.PromptTemplate, error) {
	return f.templates, nil
}

type fakeRepo struct {
	repository.Repository
	existing      *model.ProcessedEmail
	upserted      *model.ProcessedEmail
	upsertErr     error
	getErr        error
}

func (r *fakeRepo) GetProcessedByMessageID(context.Context, string) (*model.ProcessedEmail, error) {
	return r.existing, r.getErr
}

func (r *fakeRepo) UpsertProcessedEmail(ctx context.Context, desired *model.ProcessedEmail) (*model.ProcessedEmail, error) {
	if r.upsertErr != nil {
		return nil, r.upsertErr
	}
	r.upserted = desired
	return desired, nil
}

type fakeLLM struct {
	response string
	err      error
}

func (f fakeLLM) ExecuteChat(context.Context, string, string, string, llm.ChatOptions) (llm.ChatResult, error) {
	if f.err != nil {
		return llm.ChatResult{}, f.err
	}
	return llm.ChatResult{Response: f.response}, nil
}

func newCatalog(t *testing.T) *template.Catalog {
	t.Helper()
	cat := template.NewCatalog(fakeSource{templates: []model.PromptTemplate{
		{Name: "general", Categories: model.StringList{string(model.CategoryNotification)}, Template: "Subject: {{subject}}", IsActive: true},
	}}, nil, 0.7)
	require.NoError(t, cat.Refresh(context.Background()))
	return cat
}

func baseMessage() model.CanonicalMessage {
	return model.CanonicalMessage{
		MessageID: "<msg-1@example.com>",
		Subject:   "Your invoice is ready",
		From:      "billing@stripe.com",
		Date:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestProcess_DeduplicatesCompletedMessage(t *testing.T) {
	existing := &model.ProcessedEmail{MessageID: "<msg-1@example.com>", ProcessingStatus: model.ProcessingStatusCompleted}
	repo := &fakeRepo{existing: existing}
	p := New(repo, newCatalog(t), fakeLLM{}, nil, "anthropic.claude-3-haiku", 0.1, time.Second, 1)

	outcome := p.Process(context.Background(), "acct-1", baseMessage(), model.Schedule{}, nil)
	assert.True(t, outcome.Deduplicated)
	assert.False(t, outcome.Failed)
	assert.Same(t, existing, outcome.ProcessedEmail)
}

func TestProcess_HappyPathStoresParsedResultAndBoostedScore(t *testing.T) {
	repo := &fakeRepo{}
	llmClient := fakeLLM{response: `{"category":"INVOICE","priority":"HIGH","sentiment":"NEUTRAL","summary":"Invoice due","confidence":0.9,"importance_score":40}`}
	p := New(repo, newCatalog(t), llmClient, nil, "anthropic.claude-3-haiku", 0.1, time.Second, 1)

	schedule := model.Schedule{SenderPriorities: model.PriorityMap{"stripe.com": model.PriorityUrgent}}
	outcome := p.Process(context.Background(), "acct-1", baseMessage(), schedule, nil)

	require.NoError(t, outcome.Err)
	require.False(t, outcome.Failed)
	require.NotNil(t, outcome.ProcessedEmail)
	assert.Equal(t, model.ProcessingStatusCompleted, outcome.ProcessedEmail.ProcessingStatus)
	assert.Equal(t, model.CategoryInvoice, outcome.ProcessedEmail.Category)
	require.NotNil(t, outcome.ProcessedEmail.ImportanceScore)
	assert.Equal(t, 70, *outcome.ProcessedEmail.ImportanceScore) // 40 + 30 urgent boost
	assert.Contains(t, outcome.ProcessedEmail.PriorityReasoning, "[User override: +30 for sender priority]")
	assert.Same(t, repo.upserted, outcome.ProcessedEmail)
}

func TestProcess_LLMFailureStoresFailedRowWithSafeDefaults(t *testing.T) {
	repo := &fakeRepo{}
	p := New(repo, newCatalog(t), fakeLLM{err: errors.New("bedrock unavailable")}, nil, "anthropic.claude-3-haiku", 0.1, time.Second, 1)

	outcome := p.Process(context.Background(), "acct-1", baseMessage(), model.Schedule{}, nil)
	require.True(t, outcome.Failed)
	require.NotNil(t, outcome.ProcessedEmail)
	assert.Equal(t, model.ProcessingStatusFailed, outcome.ProcessedEmail.ProcessingStatus)
	assert.Equal(t, model.CategoryPersonal, outcome.ProcessedEmail.Category)
	assert.Equal(t, "Failed to parse LLM response", outcome.ProcessedEmail.Summary)
	assert.Equal(t, 0.3, outcome.ProcessedEmail.Confidence)
}

func TestProcess_MalformedLLMResponseFallsBackButStillCompletes(t *testing.T) {
	repo := &fakeRepo{}
	p := New(repo, newCatalog(t), fakeLLM{response: "not json at all"}, nil, "anthropic.claude-3-haiku", 0.1, time.Second, 1)

	outcome := p.Process(context.Background(), "acct-1", baseMessage(), model.Schedule{}, nil)
	require.False(t, outcome.Failed)
	require.NotNil(t, outcome.ProcessedEmail)
	assert.Equal(t, model.ProcessingStatusCompleted, outcome.ProcessedEmail.ProcessingStatus)
	assert.Equal(t, "Failed to parse LLM response", outcome.ProcessedEmail.Summary)
}

func TestProcess_UpsertErrorSurfacesAsFailedOutcome(t *testing.T) {
	repo := &fakeRepo{upsertErr: errors.New("db gone")}
	p := New(repo, newCatalog(t), fakeLLM{response: `{"category":"WORK","priority":"LOW","sentiment":"NEUTRAL","summary":"ok","confidence":0.5}`}, nil, "anthropic.claude-3-haiku", 0.1, time.Second, 1)

	outcome := p.Process(context.Background(), "acct-1", baseMessage(), model.Schedule{}, nil)
	assert.True(t, outcome.Failed)
	assert.Error(t, outcome.Err)
	assert.Nil(t, outcome.ProcessedEmail)
}
