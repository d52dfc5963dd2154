// Package metrics holds the Prometheus instrumentation for every component
// in the pipeline. Grounded on the teacher's internal/metrics/metrics.go,
// generalized from forwarding counters to scheduling/pipeline counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	TicksTotal           prometheus.Counter
	DueSchedulesTotal    prometheus.Counter
	LocksAcquiredTotal   prometheus.Counter
	LocksContendedTotal  prometheus.Counter
	LocksReapedTotal     prometheus.Counter
	ExecutionsStarted    prometheus.Counter
	ExecutionsCompleted  prometheus.Counter
	ExecutionsFailed     prometheus.Counter
	ExecutionsCancelled  prometheus.Counter
	ExecutionDuration    prometheus.Histogram
	BatchesTotal         prometheus.Counter
	MessagesFetched      prometheus.Counter
	MessagesProcessed    prometheus.Counter
	MessagesFailed       prometheus.Counter
	MessagesDeduped      prometheus.Counter
	LLMCallsTotal        prometheus.Counter
	LLMCallFailures      prometheus.Counter
	LLMCallDuration      prometheus.Histogram
	IMAPDialsTotal        prometheus.Counter
	IMAPDialFailures      prometheus.Counter
	IMAPPoolWaitDuration  prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		TicksTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mail_pipeline_scheduler_ticks_total",
			Help: "Total number of dispatcher ticks.",
		}),
		DueSchedulesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mail_pipeline_due_schedules_total",
			Help: "Total number of schedules discovered due across all ticks.",
		}),
		LocksAcquiredTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mail_pipeline_execution_locks_acquired_total",
			Help: "Total number of execution locks this process acquired.",
		}),
		LocksContendedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mail_pipeline_execution_locks_contended_total",
			Help: "Total number of execution groups skipped because another worker held the lock.",
		}),
		LocksReapedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mail_pipeline_execution_locks_reaped_total",
			Help: "Total number of stale execution locks reclaimed by the janitor pass.",
		}),
		ExecutionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mail_pipeline_executions_started_total",
			Help: "Total number of schedule executions started.",
		}),
		ExecutionsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mail_pipeline_executions_completed_total",
			Help: "Total number of schedule executions that finished COMPLETED.",
		}),
		ExecutionsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mail_pipeline_executions_failed_total",
			Help: "Total number of schedule executions that finished FAILED.",
		}),
		ExecutionsCancelled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mail_pipeline_executions_cancelled_total",
			Help: "Total number of schedule executions that finished CANCELLED.",
		}),
		ExecutionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "mail_pipeline_execution_duration_seconds",
			Help:    "Wall-clock duration of a schedule execution.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		BatchesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mail_pipeline_batches_total",
			Help: "Total number of message batches processed.",
		}),
		MessagesFetched: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mail_pipeline_messages_fetched_total",
			Help: "Total number of messages fetched from IMAP.",
		}),
		MessagesProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mail_pipeline_messages_processed_total",
			Help: "Total number of messages that reached ProcessedEmail.COMPLETED.",
		}),
		MessagesFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mail_pipeline_messages_failed_total",
			Help: "Total number of messages that reached ProcessedEmail.FAILED.",
		}),
		MessagesDeduped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mail_pipeline_messages_deduped_total",
			Help: "Total number of messages short-circuited by the idempotency probe.",
		}),
		LLMCallsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mail_pipeline_llm_calls_total",
			Help: "Total number of LLM executeChat calls issued.",
		}),
		LLMCallFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mail_pipeline_llm_call_failures_total",
			Help: "Total number of LLM executeChat calls that errored or timed out.",
		}),
		LLMCallDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "mail_pipeline_llm_call_duration_seconds",
			Help:    "Duration of LLM executeChat calls.",
			Buckets: prometheus.DefBuckets,
		}),
		IMAPDialsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mail_pipeline_imap_dials_total",
			Help: "Total number of IMAP dial/login attempts.",
		}),
		IMAPDialFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mail_pipeline_imap_dial_failures_total",
			Help: "Total number of failed IMAP dial/login attempts.",
		}),
		IMAPPoolWaitDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "mail_pipeline_imap_pool_wait_seconds",
			Help:    "Time spent waiting to acquire a pooled IMAP connection.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
