// Package paylock serialises payment attempts per client. At most one live
// lock exists per client key; locks older than the TTL are treated as
// abandoned and reclaimed.
package paylock

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrLockHeld is returned when another payment for the same client is
// still in progress.
var ErrLockHeld = errors.New("payment already in progress")

// Token identifies one acquisition of a lock. Releasing with a token only
// removes the lock it created.
type Token struct {
	Key        string
	ID         uuid.UUID
	AcquiredAt time.Time
}

// Store holds lock state. Implementations must be safe for concurrent use
// and make TryAcquire atomic with respect to other TryAcquire calls on the
// same key.
type Store interface {
	// TryAcquire stores id under key if the key is free or its current
	// holder was acquired more than ttl before now.
	TryAcquire(ctx context.Context, key string, id uuid.UUID, now time.Time, ttl time.Duration) (bool, error)
	// Release removes key if it is still held by id. Missing keys and
	// foreign holders are not errors.
	Release(ctx context.Context, key string, id uuid.UUID) error
	// Sweep removes every lock older than ttl and reports how many it removed.
	Sweep(ctx context.Context, now time.Time, ttl time.Duration) (int, error)
}

// Config holds lock timings.
type Config struct {
	// TTL is the age after which a lock is considered abandoned.
	TTL time.Duration
	// SweepInterval is how often Run removes stale locks.
	SweepInterval time.Duration
}

// DefaultConfig returns the standard lock timings.
func DefaultConfig() Config {
	return Config{
		TTL:           30 * time.Second,
		SweepInterval: time.Minute,
	}
}

// Manager hands out per-client payment locks.
type Manager struct {
	store Store
	cfg   Config
	now   func() time.Time
}

// NewManager creates a Manager over store. Zero config fields fall back to
// DefaultConfig.
func NewManager(store Store, cfg Config) *Manager {
	def := DefaultConfig()
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = def.SweepInterval
	}
	return &Manager{store: store, cfg: cfg, now: time.Now}
}

// TTL returns the configured staleness threshold.
func (m *Manager) TTL() time.Duration { return m.cfg.TTL }

// Acquire takes the lock for key. It fails with ErrLockHeld when a live lock
// exists; a stale lock is replaced.
func (m *Manager) Acquire(ctx context.Context, key string) (Token, error) {
	if key == "" {
		return Token{}, errors.New("empty lock key")
	}
	tok := Token{
		Key:        key,
		ID:         uuid.New(),
		AcquiredAt: m.now(),
	}
	ok, err := m.store.TryAcquire(ctx, key, tok.ID, tok.AcquiredAt, m.cfg.TTL)
	if err != nil {
		return Token{}, errors.Wrap(err, "acquire lock")
	}
	if !ok {
		return Token{}, ErrLockHeld
	}
	return tok, nil
}

// Release drops the lock held by tok. Releasing twice, or after the lock was
// reclaimed by someone else, is a no-op.
func (m *Manager) Release(ctx context.Context, tok Token) error {
	if tok.Key == "" {
		return nil
	}
	if err := m.store.Release(ctx, tok.Key, tok.ID); err != nil {
		return errors.Wrap(err, "release lock")
	}
	return nil
}

// Sweep removes every stale lock once.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	n, err := m.store.Sweep(ctx, m.now(), m.cfg.TTL)
	if err != nil {
		return 0, errors.Wrap(err, "sweep locks")
	}
	return n, nil
}

// Run sweeps stale locks every SweepInterval until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	lg := zctx.From(ctx).Named("paylock")
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := m.Sweep(ctx)
			if err != nil {
				lg.Warn("Sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				lg.Info("Reclaimed stale payment locks", zap.Int("count", n))
			}
		}
	}
}
