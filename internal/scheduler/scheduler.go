// Package scheduler is the dispatcher (spec §4.9): a single process-wide
// ticker that discovers due schedules, groups them by exact firing instant,
// acquires a cluster-wide execution lock per group, and fans the group out
// to the execution orchestrator. Grounded on the teacher's
// internal/scheduler/scheduler.go (robfig/cron.Cron, mu-guarded isRunning,
// wg.Wait shutdown, Start/Stop/RunOnce/Wait shape), generalized from a fixed
// "every N minutes" email pull to due-schedule discovery, lock contention,
// and per-schedule isolation.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"smart-mail-relay-go/internal/metrics"
	"smart-mail-relay-go/internal/model"
	"smart-mail-relay-go/internal/orchestrator"
	"smart-mail-relay-go/internal/repository"
)

// Dispatcher ticks every Config.TickInterval and drives schedule executions.
type Dispatcher struct {
	repo         repository.Repository
	orchestrator *orchestrator.Orchestrator
	metrics      *metrics.Metrics

	tickInterval   time.Duration
	staleLockGrace time.Duration

	cron    *cron.Cron
	entryID cron.EntryID

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.RWMutex
	isRunning bool
}

func New(repo repository.Repository, orch *orchestrator.Orchestrator, m *metrics.Metrics, tickInterval, staleLockGrace time.Duration) *Dispatcher {
	if tickInterval <= 0 {
		tickInterval = time.Minute
	}
	if staleLockGrace <= 0 {
		staleLockGrace = 10 * time.Minute
	}
	return &Dispatcher{
		repo:           repo,
		orchestrator:   orch,
		metrics:        m,
		tickInterval:   tickInterval,
		staleLockGrace: staleLockGrace,
		cron:           cron.New(cron.WithSeconds()),
	}
}

// Start runs the janitor pass once, then starts the ticker (spec §4.9: "Runs
// on a single process-wide ticker at 1-minute cadence").
func (d *Dispatcher) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.isRunning {
		return fmt.Errorf("scheduler: already running")
	}

	d.ctx, d.cancel = context.WithCancel(context.Background())
	d.runJanitor(d.ctx)

	entryID, err := d.cron.AddFunc(fmt.Sprintf("@every %s", d.tickInterval), d.tick)
	if err != nil {
		return fmt.Errorf("scheduler: adding cron job: %w", err)
	}
	d.entryID = entryID
	d.cron.Start()
	d.isRunning = true

	logrus.WithField("tickInterval", d.tickInterval).Info("scheduler: dispatcher started")
	return nil
}

// Stop cancels in-flight executions' context and waits for the current tick,
// if any, to finish settling.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.isRunning {
		return
	}
	d.cancel()
	cronCtx := d.cron.Stop()
	select {
	case <-cronCtx.Done():
	case <-time.After(30 * time.Second):
		logrus.Warn("scheduler: stop timeout, forcing shutdown")
	}
	d.isRunning = false
}

// Wait blocks until every in-flight tick's goroutines have returned.
func (d *Dispatcher) Wait() { d.wg.Wait() }

func (d *Dispatcher) IsRunning() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.isRunning
}

// RunOnce triggers a single tick synchronously, for CLI/manual invocation.
func (d *Dispatcher) RunOnce(ctx context.Context) {
	d.runTick(ctx)
}

func (d *Dispatcher) tick() {
	d.mu.RLock()
	running := d.isRunning
	d.mu.RUnlock()
	if !running {
		return
	}
	d.runTick(d.ctx)
}

// runTick implements spec §4.9 steps 1-3: load due schedules, group by the
// exact nextExecutionAt instant truncated to the minute, and run each group.
func (d *Dispatcher) runTick(ctx context.Context) {
	d.wg.Add(1)
	defer d.wg.Done()

	if d.metrics != nil {
		d.metrics.TicksTotal.Inc()
	}

	now := time.Now().UTC()
	due, err := d.repo.LoadDueSchedules(ctx, now)
	if err != nil {
		logrus.WithError(err).Error("scheduler: failed to load due schedules")
		return
	}
	if d.metrics != nil {
		d.metrics.DueSchedulesTotal.Add(float64(len(due)))
	}
	if len(due) == 0 {
		return
	}

	groups := groupByInstant(due)
	for instant, schedules := range groups {
		d.runGroup(ctx, instant, schedules)
	}
}

func groupByInstant(schedules []model.Schedule) map[time.Time][]model.Schedule {
	groups := make(map[time.Time][]model.Schedule)
	for _, s := range schedules {
		if s.NextExecutionAt == nil {
			continue
		}
		instant := s.NextExecutionAt.Truncate(time.Minute)
		groups[instant] = append(groups[instant], s)
	}
	return groups
}

// runGroup implements spec §4.9 step 3: acquire the per-instant lock, run
// every schedule in the group concurrently and isolated from each other's
// failures, then release the lock on every exit path.
func (d *Dispatcher) runGroup(ctx context.Context, instant time.Time, schedules []model.Schedule) {
	ids := make([]string, len(schedules))
	for i, s := range schedules {
		ids[i] = s.ID
	}

	acquired, err := d.repo.TryAcquireExecutionLock(ctx, instant, ids)
	if err != nil {
		logrus.WithError(err).WithField("executionTime", instant).Error("scheduler: failed to acquire execution lock")
		return
	}
	if !acquired {
		logrus.WithField("executionTime", instant).Warn("scheduler: execution lock held by another worker, skipping group")
		if d.metrics != nil {
			d.metrics.LocksContendedTotal.Inc()
		}
		return
	}
	if d.metrics != nil {
		d.metrics.LocksAcquiredTotal.Inc()
	}
	defer func() {
		if err := d.repo.ReleaseExecutionLock(ctx, instant); err != nil {
			logrus.WithError(err).WithField("executionTime", instant).Warn("scheduler: failed to release execution lock")
		}
	}()

	var wg sync.WaitGroup
	for _, s := range schedules {
		wg.Add(1)
		go func(schedule model.Schedule) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					logrus.WithField("scheduleId", schedule.ID).Errorf("scheduler: recovered panic running schedule: %v", r)
				}
			}()
			if err := d.orchestrator.RunExecution(ctx, schedule); err != nil {
				logrus.WithError(err).WithField("scheduleId", schedule.ID).Error("scheduler: schedule execution failed to start")
			}
		}(s)
	}
	wg.Wait()
}

// runJanitor reclaims stale locks and executions left behind by a crashed
// process, run once at dispatcher startup.
func (d *Dispatcher) runJanitor(ctx context.Context) {
	locks, err := d.repo.ReapStaleLocks(ctx, d.staleLockGrace)
	if err != nil {
		logrus.WithError(err).Warn("scheduler: failed to reap stale locks")
	} else if locks > 0 {
		logrus.WithField("count", locks).Info("scheduler: reaped stale execution locks")
		if d.metrics != nil {
			d.metrics.LocksReapedTotal.Add(float64(locks))
		}
	}

	execs, err := d.repo.ReapStaleExecutions(ctx, d.staleLockGrace)
	if err != nil {
		logrus.WithError(err).Warn("scheduler: failed to reap stale executions")
	} else if execs > 0 {
		logrus.WithField("count", execs).Info("scheduler: reaped stale executions")
	}
}
