// Package redisqueue implements kernel.QueueBackend over Redis lists, for
// embedders that want a queue's readiness notifications visible to other
// instances or to an external monitor. It is opt-in per queue
// (kernel.QueueSet.CreateDistributed) and is never the default — no queue
// uses it unless a caller wires one in.
//
// This is explicitly not a persistence layer: nothing pushed here is ever
// replayed into a Runtime on startup. A process orphaned by a crash mid-run
// stays orphaned; Backend only mirrors "this pid became runnable" events
// for whoever is watching the Redis list.
package redisqueue

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rkvdev/pnix/internal/kernel"
)

// Backend pushes a notification onto a Redis list every time its queue
// admits a new runnable pid.
type Backend struct {
	client *redis.Client
	key    string
	log    *zap.Logger
}

// New returns a Backend that LPUSHes onto key via client.
func New(client *redis.Client, key string, log *zap.Logger) *Backend {
	if log == nil {
		log = zap.NewNop()
	}
	return &Backend{client: client, key: key, log: log}
}

var _ kernel.QueueBackend = (*Backend)(nil)

// Notify implements kernel.QueueBackend. It never blocks the scheduler on
// Redis latency beyond a short fixed timeout, and logs (rather than
// propagates) any failure — a notification backend going down must never
// take the cooperative scheduler down with it.
func (b *Backend) Notify(pid kernel.PID) {
	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()

	if err := b.client.LPush(ctx, b.key, strconv.FormatUint(uint64(pid), 10)).Err(); err != nil {
		b.log.Warn("redisqueue: notify failed", zap.String("key", b.key), zap.Uint32("pid", uint32(pid)), zap.Error(err))
	}
}

// Watch blocks (honoring ctx) until a pid notification arrives on the
// list, atomically moving it to key+":processing" via BRPOPLPUSH so a
// crashed watcher's in-flight item is still visible for inspection rather
// than silently dropped. It returns the pid and true, or false once ctx is
// done or Redis reports no data within timeout.
func (b *Backend) Watch(ctx context.Context, timeout time.Duration) (kernel.PID, bool) {
	res, err := b.client.BRPopLPush(ctx, b.key, b.key+":processing", timeout).Result()
	if err != nil {
		return kernel.InvalidPID, false
	}
	n, err := strconv.ParseUint(res, 10, 32)
	if err != nil {
		b.log.Warn("redisqueue: malformed entry", zap.String("value", res), zap.Error(err))
		return kernel.InvalidPID, false
	}
	return kernel.PID(n), true
}

// Ack removes pid from the processing list once the watcher is done with
// it.
func (b *Backend) Ack(ctx context.Context, pid kernel.PID) error {
	return b.client.LRem(ctx, b.key+":processing", 1, strconv.FormatUint(uint64(pid), 10)).Err()
}
