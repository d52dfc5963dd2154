// Package pipeline is the per-message analysis pipeline (spec §4.7):
// idempotency probe, template selection, prompt rendering, LLM call,
// parse/validate, priority post-processing, and an atomic upsert. Grounded
// on the teacher's internal/service/mail_service.go for the overall
// fetch-then-persist shape, generalized from a single forward-rule match to
// the full template/LLM/priority chain, and on
// internal/repository/gorm.go's UpsertProcessedEmail for the "exactly-one
// stored outcome per message" transaction boundary.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"smart-mail-relay-go/internal/llm"
	"smart-mail-relay-go/internal/metrics"
	"smart-mail-relay-go/internal/model"
	"smart-mail-relay-go/internal/priority"
	"smart-mail-relay-go/internal/repository"
	"smart-mail-relay-go/internal/template"
)

// safeDefaultSummary is the fallback summary spec §4.7 step 5 mandates when
// parseAndValidate cannot make sense of the LLM's response.
const safeDefaultSummary = "Failed to parse LLM response"

// Outcome is the per-message result of Process: spec §4.7 step 8 ("success
// or per-message failure; neither a parse failure nor an LLM failure aborts
// the batch").
type Outcome struct {
	ProcessedEmail *model.ProcessedEmail
	Deduplicated   bool // idempotency probe short-circuited on an existing COMPLETED row
	Failed         bool
	Err            error
}

// Pipeline wires the catalog, LLM client and repository spec §4.7 names,
// plus a process-wide concurrency limiter (spec §5: "the LLM client is
// shared ... process-wide concurrency limit").
type Pipeline struct {
	repo     repository.Repository
	catalog  *template.Catalog
	llmClient llm.Client
	metrics  *metrics.Metrics

	defaultModel      string
	temperature       float64
	perMessageTimeout time.Duration

	sem chan struct{}
}

// New builds a Pipeline. maxConcurrency bounds the number of LLM calls this
// process issues at once, regardless of how many executions or batches call
// Process concurrently.
func New(repo repository.Repository, catalog *template.Catalog, llmClient llm.Client, m *metrics.Metrics, defaultModel string, temperature float64, perMessageTimeout time.Duration, maxConcurrency int) *Pipeline {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &Pipeline{
		repo:              repo,
		catalog:           catalog,
		llmClient:         llmClient,
		metrics:           m,
		defaultModel:      defaultModel,
		temperature:       temperature,
		perMessageTimeout: perMessageTimeout,
		sem:               make(chan struct{}, maxConcurrency),
	}
}

// Process runs one canonical message through the full analysis pipeline
// (spec §4.7). executionID, if non-nil, is recorded on the resulting
// ProcessedEmail row.
func (p *Pipeline) Process(ctx context.Context, accountID string, msg model.CanonicalMessage, schedule model.Schedule, executionID *string) Outcome {
	// Step 1: idempotency probe. GetProcessedByMessageID returns (nil, nil)
	// when no row exists yet.
	existing, err := p.repo.GetProcessedByMessageID(ctx, msg.MessageID)
	if err != nil {
		return Outcome{Failed: true, Err: err}
	}
	if existing != nil && existing.ProcessingStatus == model.ProcessingStatusCompleted {
		if p.metrics != nil {
			p.metrics.MessagesDeduped.Inc()
		}
		return Outcome{ProcessedEmail: existing, Deduplicated: true}
	}

	hints := priority.ComputeHints(msg, schedule)

	parsed, llmFailed := p.classifyAndParse(ctx, msg, schedule)

	score, reasoning := priority.ApplyBoosts(parsed.ImportanceScore, parsed.ScoringBreakdown, hints)
	parsed.ImportanceScore = &score

	desired := p.buildProcessedEmail(accountID, msg, parsed, reasoning, executionID, llmFailed)

	saved, err := p.repo.UpsertProcessedEmail(ctx, desired)
	if err != nil {
		if p.metrics != nil {
			p.metrics.MessagesFailed.Inc()
		}
		return Outcome{Failed: true, Err: err}
	}

	if llmFailed {
		if p.metrics != nil {
			p.metrics.MessagesFailed.Inc()
		}
		return Outcome{ProcessedEmail: saved, Failed: true}
	}
	if p.metrics != nil {
		p.metrics.MessagesProcessed.Inc()
	}
	return Outcome{ProcessedEmail: saved}
}

// classifyAndParse runs steps 2-5: template selection, prompt rendering, the
// LLM call, and parseAndValidate, applying spec §4.7 step 5's safe defaults
// whenever template selection, the LLM call or the parse step fails. The
// returned bool reports whether no LLM response was obtained (template
// selection or the LLM call itself failed), as opposed to the LLM merely
// returning content parseAndValidate couldn't make sense of.
func (p *Pipeline) classifyAndParse(ctx context.Context, msg model.CanonicalMessage, schedule model.Schedule) (template.Parsed, bool) {
	tmpl, err := p.catalog.SelectTemplate(msg, schedule.LLMFocus)
	if err != nil {
		logrus.WithError(err).Warn("pipeline: template selection failed, using safe defaults")
		return safeDefaults(), true
	}

	prompt := template.RenderPrompt(*tmpl, msg, &template.UserPrefs{
		SenderPriorities:    schedule.SenderPriorities,
		EmailTypePriorities: schedule.EmailTypePriorities,
		LLMFocus:            schedule.LLMFocus,
	})

	callCtx, cancel := context.WithTimeout(ctx, p.perMessageTimeout)
	defer cancel()

	p.sem <- struct{}{}
	defer func() { <-p.sem }()

	start := time.Now()
	if p.metrics != nil {
		p.metrics.LLMCallsTotal.Inc()
	}
	result, err := p.llmClient.ExecuteChat(callCtx, prompt, p.defaultModel, "", llm.ChatOptions{Temperature: p.temperature})
	if p.metrics != nil {
		p.metrics.LLMCallDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		if p.metrics != nil {
			p.metrics.LLMCallFailures.Inc()
		}
		logrus.WithError(err).Warn("pipeline: LLM call failed, using safe defaults")
		return safeDefaults(), true
	}

	parsed, err := template.ParseAndValidate(result.Response)
	if err != nil {
		logrus.WithError(err).Warn("pipeline: parseAndValidate failed, using safe defaults")
		return safeDefaults(), false
	}
	return parsed, false
}

// safeDefaults is spec §4.7 step 5's fallback: PERSONAL / MEDIUM / NEUTRAL /
// summary="Failed to parse LLM response" / confidence=0.3 / entities=[] / actions=[].
func safeDefaults() template.Parsed {
	return template.Parsed{
		Category:   model.CategoryPersonal,
		Priority:   model.PriorityMedium,
		Sentiment:  model.SentimentNeutral,
		Summary:    safeDefaultSummary,
		Confidence: 0.3,
	}
}

func (p *Pipeline) buildProcessedEmail(accountID string, msg model.CanonicalMessage, parsed template.Parsed, reasoning string, executionID *string, llmFailed bool) *model.ProcessedEmail {
	id := uuid.NewString()
	status := model.ProcessingStatusCompleted
	if llmFailed {
		status = model.ProcessingStatusFailed
	}

	desired := &model.ProcessedEmail{
		ID:                  id,
		MessageID:           msg.MessageID,
		EmailAccountID:      accountID,
		Subject:             msg.Subject,
		FromAddress:         msg.From,
		To:                  msg.To,
		CC:                  msg.CC,
		BCC:                 msg.BCC,
		ReceivedAt:          msg.Date,
		BodyText:            msg.BodyText,
		BodyHTML:            msg.BodyHTML,
		ProcessingStatus:    status,
		Category:            parsed.Category,
		Priority:            parsed.Priority,
		Sentiment:           parsed.Sentiment,
		Summary:             parsed.Summary,
		Tags:                parsed.Tags,
		Confidence:          parsed.Confidence,
		ImportanceScore:     parsed.ImportanceScore,
		PriorityReasoning:   reasoning,
		ScheduleExecutionID: executionID,
	}

	for _, e := range parsed.Entities {
		e.ID = uuid.NewString()
		e.ProcessedEmailID = id
		desired.Entities = append(desired.Entities, e)
	}
	for _, a := range parsed.Actions {
		a.ID = uuid.NewString()
		a.ProcessedEmailID = id
		desired.Actions = append(desired.Actions, a)
	}
	return desired
}
