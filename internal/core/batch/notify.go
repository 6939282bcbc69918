package batch

import (
	"context"
	"time"

	"reelscribe/internal/logger"
	rds "reelscribe/internal/platform/redis"
)

// EventsChannel is the pub/sub channel batch events are published to for SSE
// forwarding.
const EventsChannel = "batch:events"

// Notifier receives batch events. Implementations must not block: the
// processor loop calls them inline between jobs.
type Notifier interface {
	JobChanged(u JobUpdate)
	BatchDone(s Summary)
}

// Fanout delivers each event to every registered notifier in order.
type Fanout []Notifier

func (f Fanout) JobChanged(u JobUpdate) {
	for _, n := range f {
		n.JobChanged(u)
	}
}

func (f Fanout) BatchDone(s Summary) {
	for _, n := range f {
		n.BatchDone(s)
	}
}

// Event is the wire shape published to EventsChannel.
type Event struct {
	Type  string     `json:"type"` // "job" or "batch_done"
	Job   *JobUpdate `json:"job,omitempty"`
	Batch *Summary   `json:"batch,omitempty"`
}

// RedisNotifier publishes events for SSE listeners. Publish failures are
// logged and dropped; the processor must not stall on a slow subscriber.
type RedisNotifier struct {
	redis *rds.Service
	log   *logger.Logger
}

func NewRedisNotifier(redis *rds.Service) *RedisNotifier {
	return &RedisNotifier{redis: redis, log: logger.New("BatchNotifier")}
}

func (n *RedisNotifier) publish(ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := n.redis.PublishJSON(ctx, EventsChannel, ev); err != nil {
		n.log.LogWarnf("event publish failed: %v", err)
	}
}

func (n *RedisNotifier) JobChanged(u JobUpdate) {
	n.publish(Event{Type: "job", Job: &u})
}

func (n *RedisNotifier) BatchDone(s Summary) {
	n.publish(Event{Type: "batch_done", Batch: &s})
}
