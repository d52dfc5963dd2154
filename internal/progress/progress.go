// Package progress is the optional pub/sub progress sink spec §6 names:
// a channel keyed by (userId, accountId) receiving strictly-increasing
// {stage, progress, counters} frames for an in-flight execution. Grounded on
// DrisanJames-project-jarvis's redis.Client field/constructor shape
// (internal/worker/realtime_metrics_worker.go, internal/pkg/distlock) for
// wiring a *redis.Client into a component, generalized from metrics
// aggregation and distributed locking to pub/sub publish.
package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"smart-mail-relay-go/internal/apperrors"
	"smart-mail-relay-go/internal/model"
)

// Stage is the closed set of lifecycle stages a progress frame can report
// (spec §6 Progress sink).
type Stage string

const (
	StageConnecting Stage = "CONNECTING"
	StageFetching   Stage = "FETCHING"
	StageStoring    Stage = "STORING"
	StageProcessing Stage = "PROCESSING"
	StageCompleted  Stage = "COMPLETED"
	StageFailed     Stage = "FAILED"
)

// Frame is one progress update published for an execution. Progress is
// strictly increasing within a single execution's stream (spec §6).
type Frame struct {
	ExecutionID string          `json:"executionId"`
	Stage       Stage           `json:"stage"`
	Progress    int             `json:"progress"`
	Counters    model.Counters  `json:"counters"`
}

// Sink is the abstract publish side the orchestrator depends on. A no-op
// implementation is acceptable: spec §6 calls the progress sink optional.
type Sink interface {
	Publish(ctx context.Context, userID, accountID string, frame Frame) error
}

// RedisSink publishes frames on a channel keyed by (userId, accountId),
// matching spec §6's "pub/sub channel keyed by (userId, accountId)".
type RedisSink struct {
	client *redis.Client
}

// NewRedisSink wraps an already-constructed *redis.Client. Connection
// lifecycle (dial, auth, DB select) is the caller's responsibility, mirroring
// how the teacher's config package hands out a single shared *gorm.DB.
func NewRedisSink(client *redis.Client) *RedisSink {
	return &RedisSink{client: client}
}

func channelName(userID, accountID string) string {
	return fmt.Sprintf("mail-pipeline:progress:%s:%s", userID, accountID)
}

// Publish serializes frame as JSON and publishes it on the (userId,
// accountId) channel. A publish failure is Transient: the orchestrator must
// not fail an execution solely because no one was listening.
func (s *RedisSink) Publish(ctx context.Context, userID, accountID string, frame Frame) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return apperrors.New(apperrors.Permanent, "progress.Publish", fmt.Errorf("marshaling frame: %w", err))
	}

	if err := s.client.Publish(ctx, channelName(userID, accountID), payload).Err(); err != nil {
		return apperrors.New(apperrors.Transient, "progress.Publish", fmt.Errorf("publishing to redis: %w", err))
	}
	return nil
}

// NoopSink discards every frame. Used when no Redis is configured (spec §6
// calls the progress sink optional).
type NoopSink struct{}

func (NoopSink) Publish(context.Context, string, string, Frame) error { return nil }

// Reporter tracks the last-published progress value per execution and
// refuses to publish a frame that would violate the strictly-increasing
// invariant spec §6 requires, logging instead of erroring so a buggy caller
// never aborts an execution over a progress-ordering bug.
type Reporter struct {
	sink Sink
	mu   sync.Mutex
	last map[string]int
}

func NewReporter(sink Sink) *Reporter {
	if sink == nil {
		sink = NoopSink{}
	}
	return &Reporter{sink: sink, last: make(map[string]int)}
}

// Report publishes frame if its Progress strictly exceeds the last value
// reported for frame.ExecutionID (or is the first frame for it).
func (r *Reporter) Report(ctx context.Context, userID, accountID string, frame Frame) error {
	r.mu.Lock()
	if prev, ok := r.last[frame.ExecutionID]; ok && frame.Progress <= prev {
		r.mu.Unlock()
		logrus.WithFields(logrus.Fields{
			"executionId": frame.ExecutionID,
			"previous":    prev,
			"attempted":   frame.Progress,
		}).Warn("progress: dropping non-increasing frame")
		return nil
	}
	r.last[frame.ExecutionID] = frame.Progress
	r.mu.Unlock()
	return r.sink.Publish(ctx, userID, accountID, frame)
}

// Forget releases the tracked high-water mark for a finished execution.
func (r *Reporter) Forget(executionID string) {
	r.mu.Lock()
	delete(r.last, executionID)
	r.mu.Unlock()
}
