package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smart-mail-relay-go/internal/llm"
	"smart-mail-relay-go/internal/mail"
	"smart-mail-relay-go/internal/model"
	"smart-mail-relay-go/internal/pipeline"
	"smart-mail-relay-go/internal/repository"
	"smart-mail-relay-go/internal/template"
)

type fakeRepo struct {
	repository.Repository
	execs           map[string]*model.ScheduleExecution
	progressCalls   []model.Counters
	finished        *model.ExecutionStatus
	advancedNext    *time.Time
	advancedDisable bool
	lastSuccessful  *model.ScheduleExecution
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{execs: make(map[string]*model.ScheduleExecution)}
}

func (r *fakeRepo) CreateExecution(ctx context.Context, scheduleID string) (*model.ScheduleExecution, error) {
	exec := &model.ScheduleExecution{ID: uuid.NewString(), ScheduleID: scheduleID, Status: model.ExecutionRunning, StartedAt: time.Now()}
	r.execs[exec.ID] = exec
	return exec, nil
}

func (r *fakeRepo) UpdateExecutionProgress(ctx context.Context, executionID string, counters model.Counters) error {
	r.progressCalls = append(r.progressCalls, counters)
	return nil
}

func (r *fakeRepo) FinishExecution(ctx context.Context, executionID string, status model.ExecutionStatus, errMessage, errDetails string, durationMs *int64) error {
	r.finished = &status
	return nil
}

func (r *fakeRepo) AdvanceSchedule(ctx context.Context, scheduleID string, nextAt *time.Time, lastAt time.Time, ok bool, disableForDateRange bool) error {
	r.advancedNext = nextAt
	r.advancedDisable = disableForDateRange
	return nil
}

func (r *fakeRepo) LastSuccessfulExecution(ctx context.Context, scheduleID string) (*model.ScheduleExecution, error) {
	return r.lastSuccessful, nil
}

func (r *fakeRepo) GetProcessedByMessageID(context.Context, string) (*model.ProcessedEmail, error) {
	return nil, nil
}

func (r *fakeRepo) UpsertProcessedEmail(ctx context.Context, desired *model.ProcessedEmail) (*model.ProcessedEmail, error) {
	return desired, nil
}

type fakeFetcher struct {
	messages      []model.CanonicalMessage
	fetchErr      error
	connectionsOK bool
	closeCalled   bool
}

func (f *fakeFetcher) TestConnection(ctx context.Context, accountID string) (bool, string, error) {
	if !f.connectionsOK {
		return false, "down", errors.New("imap down")
	}
	return true, "ok", nil
}

func (f *fakeFetcher) FetchEmails(ctx context.Context, accountID string, opts mail.FetchOptions) ([]model.CanonicalMessage, error) {
	return f.messages, f.fetchErr
}

func (f *fakeFetcher) CloseConnection(accountID string) error {
	f.closeCalled = true
	return nil
}

type fakeSource struct{ templates []model.PromptTemplate }

func (f fakeSource) ActiveTemplates(context.Context) ([]model.PromptTemplate, error) {
	return f.templates, nil
}

type fakeLLM struct{}

func (fakeLLM) ExecuteChat(context.Context, string, string, string, llm.ChatOptions) (llm.ChatResult, error) {
	return llm.ChatResult{Response: `{"category":"WORK","priority":"LOW","sentiment":"NEUTRAL","summary":"ok","confidence":0.8}`}, nil
}

func newPipeline(t *testing.T, repo repository.Repository) *pipeline.Pipeline {
	t.Helper()
	cat := template.NewCatalog(fakeSource{templates: []model.PromptTemplate{
		{Name: "general", Categories: model.StringList{string(model.CategoryNotification)}, Template: "{{subject}}", IsActive: true},
	}}, nil, 0.7)
	require.NoError(t, cat.Refresh(context.Background()))
	return pipeline.New(repo, cat, fakeLLM{}, nil, "anthropic.claude-3-haiku", 0.1, time.Second, 2)
}

func messages(n int) []model.CanonicalMessage {
	out := make([]model.CanonicalMessage, n)
	for i := range out {
		out[i] = model.CanonicalMessage{MessageID: uuid.NewString(), Subject: "hi", Date: time.Now()}
	}
	return out
}

func TestRunExecution_HappyPathCompletesAndAdvancesDateRangeSchedule(t *testing.T) {
	repo := newFakeRepo()
	fetcher := &fakeFetcher{messages: messages(7), connectionsOK: true}
	orch := New(repo, fetcher, newPipeline(t, repo), nil, nil, 100)

	from := time.Now().Add(-24 * time.Hour)
	to := time.Now()
	schedule := model.Schedule{ID: "sched-1", EmailAccountID: "acct-1", ProcessingType: model.ProcessingDateRange, DateRangeFrom: &from, DateRangeTo: &to, BatchSize: 3}

	require.NoError(t, orch.RunExecution(context.Background(), schedule))

	require.NotNil(t, repo.finished)
	assert.Equal(t, model.ExecutionCompleted, *repo.finished)
	assert.True(t, repo.advancedDisable, "DATE_RANGE schedules disable after running")
	assert.Nil(t, repo.advancedNext)
	assert.True(t, fetcher.closeCalled)

	last := repo.progressCalls[len(repo.progressCalls)-1]
	assert.Equal(t, 7, last.ProcessedEmailsCount+last.FailedEmailsCount)
	assert.Equal(t, 3, last.TotalBatchesCount) // ceil(7/3)
}

func TestRunExecution_IMAPFailureMarksBatchFailedButContinues(t *testing.T) {
	repo := newFakeRepo()
	fetcher := &fakeFetcher{messages: messages(4), connectionsOK: false}
	orch := New(repo, fetcher, newPipeline(t, repo), nil, nil, 100)

	schedule := model.Schedule{ID: "sched-2", EmailAccountID: "acct-1", ProcessingType: model.ProcessingRecurring, CronExpression: "0 * * * *", Timezone: "UTC", BatchSize: 2}
	require.NoError(t, orch.RunExecution(context.Background(), schedule))

	require.NotNil(t, repo.finished)
	assert.Equal(t, model.ExecutionCompleted, *repo.finished)
	last := repo.progressCalls[len(repo.progressCalls)-1]
	assert.Equal(t, 4, last.FailedEmailsCount)
	assert.Equal(t, 0, last.ProcessedEmailsCount)
}

func TestRunExecution_FetchFailureFinishesFailedWithoutAdvancingBatches(t *testing.T) {
	repo := newFakeRepo()
	fetcher := &fakeFetcher{fetchErr: errors.New("dial timeout"), connectionsOK: true}
	orch := New(repo, fetcher, newPipeline(t, repo), nil, nil, 100)

	schedule := model.Schedule{ID: "sched-3", EmailAccountID: "acct-1", ProcessingType: model.ProcessingRecurring, CronExpression: "0 * * * *", Timezone: "UTC", BatchSize: 2}
	require.NoError(t, orch.RunExecution(context.Background(), schedule))

	require.NotNil(t, repo.finished)
	assert.Equal(t, model.ExecutionFailed, *repo.finished)
	assert.Empty(t, repo.progressCalls, "no batch progress is written when the fetch fails")
	assert.NotNil(t, repo.advancedNext, "RECURRING schedules still advance after a failure")
}

func TestDateRange_SpecificDatesNoFutureDateErrors(t *testing.T) {
	repo := newFakeRepo()
	orch := New(repo, &fakeFetcher{}, newPipeline(t, repo), nil, nil, 100)
	schedule := model.Schedule{ProcessingType: model.ProcessingSpecificDates, SpecificDates: model.StringList{"2000-01-01"}}

	_, _, err := orch.DateRange(context.Background(), schedule)
	assert.ErrorIs(t, err, ErrNoFutureDate)
}

func TestNextFutureSpecificDate_PicksEarliestAfterReference(t *testing.T) {
	after := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	dates := model.StringList{"2025-06-01", "2026-03-01", "2026-02-01"}
	next, ok := NextFutureSpecificDate(dates, after)
	require.True(t, ok)
	assert.Equal(t, "2026-02-01", next.Format("2006-01-02"))
}
