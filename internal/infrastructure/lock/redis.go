package lock

import (
	"context"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// Options configures distributed lock acquisition
type Options struct {
	// Expiry is how long the lock is held before auto-expiring
	Expiry time.Duration
	// Tries is the number of acquisition attempts before giving up
	Tries int
	// RetryDelay is the delay between attempts
	RetryDelay time.Duration
	// DriftFactor accounts for clock drift between redis nodes
	DriftFactor float64
}

// DefaultOptions returns the defaults used for aggregate mutations.
// Budget writes finish well inside a second; the retry window covers a burst
// of edits on the same plan or execution.
func DefaultOptions() Options {
	return Options{
		Expiry:      10 * time.Second,
		Tries:       20,
		RetryDelay:  100 * time.Millisecond,
		DriftFactor: 0.01,
	}
}

// RedisLocker is a distributed lock backed by redsync, for multi-instance deployments
type RedisLocker struct {
	redsync *redsync.Redsync
	opts    Options
	logger  *zap.Logger
}

// NewRedisLocker creates a RedisLocker on an existing client
func NewRedisLocker(client redis.UniversalClient, opts Options, logger *zap.Logger) *RedisLocker {
	def := DefaultOptions()
	if opts.Expiry <= 0 {
		opts.Expiry = def.Expiry
	}
	if opts.Tries <= 0 {
		opts.Tries = def.Tries
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = def.RetryDelay
	}
	if opts.DriftFactor <= 0 {
		opts.DriftFactor = def.DriftFactor
	}
	return &RedisLocker{
		redsync: redsync.New(goredis.NewPool(client)),
		opts:    opts,
		logger:  logger,
	}
}

// WithLock runs fn while holding key across all instances.
// The lock is released when fn returns, even on panic.
func (l *RedisLocker) WithLock(ctx context.Context, key string, fn func() error) error {
	ctx, span := otel.Tracer("healthbudget/lock").Start(ctx, "distributed_lock.with_lock")
	defer span.End()
	span.SetAttributes(attribute.String("lock.key", key))

	mutex := l.redsync.NewMutex(
		key,
		redsync.WithExpiry(l.opts.Expiry),
		redsync.WithTries(l.opts.Tries),
		redsync.WithRetryDelay(l.opts.RetryDelay),
		redsync.WithDriftFactor(l.opts.DriftFactor),
	)

	if err := mutex.LockContext(ctx); err != nil {
		l.logger.Warn("failed to acquire lock", zap.String("key", key), zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "lock unavailable")
		return unavailable(key, err)
	}

	defer func() {
		// release on a fresh context so a cancelled request still unlocks
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if ok, err := mutex.UnlockContext(releaseCtx); !ok || err != nil {
			l.logger.Error("failed to release lock",
				zap.String("key", key),
				zap.Bool("ok", ok),
				zap.Error(err),
			)
		}
	}()

	if err := fn(); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

var _ Locker = (*RedisLocker)(nil)
