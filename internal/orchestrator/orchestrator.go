// Package orchestrator drives one schedule execution end to end (spec
// §4.8): compute the date range, fetch messages, chunk into batches, run
// each message through the analysis pipeline, report progress, and finalize
// the execution's terminal status. Grounded on the teacher's
// internal/service/scheduler.go for the "one run per schedule, isolate its
// own failures, record duration and error details" shape, generalized from
// a single forward pass over unread mail to date-ranged batches with
// mid-run progress reporting.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"smart-mail-relay-go/internal/cronutil"
	"smart-mail-relay-go/internal/mail"
	"smart-mail-relay-go/internal/metrics"
	"smart-mail-relay-go/internal/model"
	"smart-mail-relay-go/internal/pipeline"
	"smart-mail-relay-go/internal/progress"
	"smart-mail-relay-go/internal/repository"
)

// ErrNoFutureDate is returned by DateRange for a SPECIFIC_DATES schedule
// whose specificDates list has no entry left to run (spec §4.8 step 2).
var ErrNoFutureDate = errors.New("orchestrator: no future date remains in specificDates")

const defaultBatchSize = 5

// Orchestrator runs schedule executions. One instance is shared by every
// concurrently-firing schedule in a dispatcher tick; apart from the shared
// reporter's mutex-guarded per-execution progress marks, all per-execution
// state lives in the stack of RunExecution, not on the struct.
type Orchestrator struct {
	repo              repository.Repository
	fetcher           mail.Fetcher
	pipeline          *pipeline.Pipeline
	reporter          *progress.Reporter
	metrics           *metrics.Metrics
	maxMessagesPerRun int
}

func New(repo repository.Repository, fetcher mail.Fetcher, p *pipeline.Pipeline, reporter *progress.Reporter, m *metrics.Metrics, maxMessagesPerRun int) *Orchestrator {
	if reporter == nil {
		reporter = progress.NewReporter(nil)
	}
	if maxMessagesPerRun <= 0 {
		maxMessagesPerRun = 1000
	}
	return &Orchestrator{repo: repo, fetcher: fetcher, pipeline: p, reporter: reporter, metrics: m, maxMessagesPerRun: maxMessagesPerRun}
}

// RunExecution implements spec §4.8 steps 1-7 for a single schedule. It
// never returns an error to the caller for failures isolated to this
// schedule: those are recorded on the ScheduleExecution row itself. It only
// returns an error for failures that prevented even creating the execution
// row, which the dispatcher should treat as a skipped group member.
func (o *Orchestrator) RunExecution(ctx context.Context, schedule model.Schedule) error {
	exec, err := o.repo.CreateExecution(ctx, schedule.ID)
	if err != nil {
		return fmt.Errorf("orchestrator: creating execution for schedule %s: %w", schedule.ID, err)
	}
	if o.metrics != nil {
		o.metrics.ExecutionsStarted.Inc()
	}
	started := time.Now()

	o.report(ctx, schedule, exec.ID, progress.StageConnecting, 0, model.Counters{})

	status, errMessage, errDetails := o.run(ctx, schedule, exec)

	durationMs := time.Since(started).Milliseconds()
	if err := o.repo.FinishExecution(ctx, exec.ID, status, errMessage, errDetails, &durationMs); err != nil {
		logrus.WithError(err).WithField("executionId", exec.ID).Error("orchestrator: failed to finish execution")
	}
	if o.metrics != nil {
		o.metrics.ExecutionDuration.Observe(time.Since(started).Seconds())
		switch status {
		case model.ExecutionCompleted:
			o.metrics.ExecutionsCompleted.Inc()
		case model.ExecutionFailed:
			o.metrics.ExecutionsFailed.Inc()
		case model.ExecutionCancelled:
			o.metrics.ExecutionsCancelled.Inc()
		}
	}

	finalStage := progress.StageCompleted
	if status != model.ExecutionCompleted {
		finalStage = progress.StageFailed
	}
	o.report(ctx, schedule, exec.ID, finalStage, 100, model.Counters{})
	o.reporter.Forget(exec.ID)

	if err := o.advanceSchedule(ctx, schedule, status == model.ExecutionCompleted); err != nil {
		logrus.WithError(err).WithField("scheduleId", schedule.ID).Error("orchestrator: failed to advance schedule")
	}

	if err := o.fetcher.CloseConnection(schedule.EmailAccountID); err != nil {
		logrus.WithError(err).WithField("accountId", schedule.EmailAccountID).Warn("orchestrator: failed to close IMAP connection")
	}

	return nil
}

// run executes steps 2-5 and returns the execution's terminal status and,
// for a FAILED outcome, the error message/details to persist.
func (o *Orchestrator) run(ctx context.Context, schedule model.Schedule, exec *model.ScheduleExecution) (model.ExecutionStatus, string, string) {
	since, before, err := o.DateRange(ctx, schedule)
	if err != nil {
		return model.ExecutionFailed, err.Error(), fmt.Sprintf("date range computation failed at %s", time.Now().UTC().Format(time.RFC3339))
	}

	o.report(ctx, schedule, exec.ID, progress.StageFetching, 5, model.Counters{})

	messages, err := o.fetcher.FetchEmails(ctx, schedule.EmailAccountID, mail.FetchOptions{
		Since:  &since,
		Before: &before,
		Limit:  o.maxMessagesPerRun,
	})
	if err != nil {
		return model.ExecutionFailed, err.Error(), fmt.Sprintf("fetchEmails failed at %s", time.Now().UTC().Format(time.RFC3339))
	}

	o.report(ctx, schedule, exec.ID, progress.StageFetching, 10, model.Counters{TotalEmailsCount: len(messages)})

	batchSize := schedule.BatchSize
	if batchSize < 1 {
		batchSize = defaultBatchSize
	}
	batches := chunk(messages, batchSize)

	counters := model.Counters{TotalBatchesCount: len(batches), TotalEmailsCount: len(messages)}

	for _, batch := range batches {
		healthy := true
		if ok, _, err := o.fetcher.TestConnection(ctx, schedule.EmailAccountID); err != nil || !ok {
			logrus.WithError(err).WithField("accountId", schedule.EmailAccountID).Warn("orchestrator: IMAP health check failed, failing remaining batch")
			healthy = false
		}

		for _, msg := range batch {
			if !healthy {
				counters.FailedEmailsCount++
				continue
			}
			outcome := o.pipeline.Process(ctx, schedule.EmailAccountID, msg, schedule, &exec.ID)
			if outcome.Failed {
				counters.FailedEmailsCount++
			} else {
				counters.ProcessedEmailsCount++
			}
		}

		counters.CompletedBatchesCount++
		if o.metrics != nil {
			o.metrics.BatchesTotal.Inc()
		}

		if err := o.repo.UpdateExecutionProgress(ctx, exec.ID, counters); err != nil {
			logrus.WithError(err).WithField("executionId", exec.ID).Warn("orchestrator: failed to persist progress counters")
		}

		pct := 10
		if counters.TotalBatchesCount > 0 {
			pct = 10 + int(80*float64(counters.CompletedBatchesCount)/float64(counters.TotalBatchesCount))
		}
		o.report(ctx, schedule, exec.ID, progress.StageProcessing, pct, counters)
	}

	o.report(ctx, schedule, exec.ID, progress.StageStoring, 95, counters)

	return model.ExecutionCompleted, "", ""
}

// DateRange implements spec §4.8 step 2 for all three ProcessingTypes.
func (o *Orchestrator) DateRange(ctx context.Context, schedule model.Schedule) (time.Time, time.Time, error) {
	switch schedule.ProcessingType {
	case model.ProcessingDateRange:
		if schedule.DateRangeFrom == nil || schedule.DateRangeTo == nil {
			return time.Time{}, time.Time{}, fmt.Errorf("orchestrator: DATE_RANGE schedule missing bounds")
		}
		return *schedule.DateRangeFrom, *schedule.DateRangeTo, nil

	case model.ProcessingRecurring:
		from := schedule.CreatedAt
		last, err := o.repo.LastSuccessfulExecution(ctx, schedule.ID)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("orchestrator: loading last successful execution: %w", err)
		}
		if last != nil && last.CompletedAt != nil {
			from = *last.CompletedAt
		}
		return from, time.Now().UTC(), nil

	case model.ProcessingSpecificDates:
		next, ok := NextFutureSpecificDate(schedule.SpecificDates, time.Now().UTC())
		if !ok {
			return time.Time{}, time.Time{}, ErrNoFutureDate
		}
		return *next, next.Add(24 * time.Hour), nil

	default:
		return time.Time{}, time.Time{}, fmt.Errorf("orchestrator: unknown processingType %q", schedule.ProcessingType)
	}
}

// NextFutureSpecificDate returns the earliest date in dates that is strictly
// after the reference instant, parsing each entry as RFC3339 or a bare
// YYYY-MM-DD calendar date. Shared by DateRange and advanceSchedule, both
// of which pass the current time as the reference instant.
func NextFutureSpecificDate(dates model.StringList, after time.Time) (*time.Time, bool) {
	var best *time.Time
	for _, raw := range dates {
		t, err := parseScheduleDate(raw)
		if err != nil {
			logrus.WithField("value", raw).Warn("orchestrator: skipping unparseable specificDates entry")
			continue
		}
		if !t.After(after) {
			continue
		}
		if best == nil || t.Before(*best) {
			tCopy := t
			best = &tCopy
		}
	}
	if best == nil {
		return nil, false
	}
	return best, true
}

func parseScheduleDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}

func chunk(messages []model.CanonicalMessage, size int) [][]model.CanonicalMessage {
	if len(messages) == 0 {
		return nil
	}
	var batches [][]model.CanonicalMessage
	for i := 0; i < len(messages); i += size {
		end := i + size
		if end > len(messages) {
			end = len(messages)
		}
		batches = append(batches, messages[i:end])
	}
	return batches
}

func (o *Orchestrator) report(ctx context.Context, schedule model.Schedule, executionID string, stage progress.Stage, pct int, counters model.Counters) {
	if err := o.reporter.Report(ctx, schedule.UserID, schedule.EmailAccountID, progress.Frame{
		ExecutionID: executionID,
		Stage:       stage,
		Progress:    pct,
		Counters:    counters,
	}); err != nil {
		logrus.WithError(err).Debug("orchestrator: progress publish failed")
	}
}

// advanceSchedule implements spec §4.9 step 4's per-schedule recomputation,
// called directly by the orchestrator once an execution settles rather than
// by the dispatcher, since the dispatcher only waits on a group of
// executions and never sees an individual schedule's outcome.
func (o *Orchestrator) advanceSchedule(ctx context.Context, schedule model.Schedule, succeeded bool) error {
	now := time.Now().UTC()
	var next *time.Time
	disableForDateRange := false

	switch schedule.ProcessingType {
	case model.ProcessingDateRange:
		disableForDateRange = true
	case model.ProcessingRecurring:
		n, err := cronutil.Next(schedule.CronExpression, schedule.Timezone, now)
		if err != nil {
			logrus.WithError(err).WithField("scheduleId", schedule.ID).Warn("orchestrator: failed to compute next cron fire, disabling schedule")
			disableForDateRange = true
		} else {
			next = &n
		}
	case model.ProcessingSpecificDates:
		if n, ok := NextFutureSpecificDate(schedule.SpecificDates, now); ok {
			next = n
		} else {
			disableForDateRange = true
		}
	}

	return o.repo.AdvanceSchedule(ctx, schedule.ID, next, now, succeeded, disableForDateRange)
}
