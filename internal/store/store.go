// Package store persists chat transcripts per client with time-based eviction.
//
// A MessageStore is an append-only log ordered by timestamp, ties broken by the
// id assigned on Save. Eviction is permanent: messages older than the retention
// window are removed from the underlying storage, not merely hidden.
package store

import (
	"context"
	"errors"
	"sort"
	"time"

	"belgaum-backend/internal/models"
)

var ErrEmptyScope = errors.New("store: empty scope")

// MessageStore is the message log for one client scope.
type MessageStore interface {
	// Save stores msg and returns it with its assigned id.
	Save(ctx context.Context, msg models.ChatMessage) (models.ChatMessage, error)
	// GetAll returns every stored message ascending by timestamp, ties by id.
	GetAll(ctx context.Context) ([]models.ChatMessage, error)
	// EvictOlderThan removes messages with timestamp < now - maxAge and
	// reports how many were removed.
	EvictOlderThan(ctx context.Context, maxAge time.Duration) (int64, error)
	// Clear removes every message in the scope.
	Clear(ctx context.Context) error
}

// Opener yields the MessageStore for one client scope.
type Opener interface {
	Open(scope string) (MessageStore, error)
}

// Sweeper evicts expired messages from every scope at once.
type Sweeper interface {
	EvictAll(ctx context.Context, maxAge time.Duration) (int64, error)
}

type options struct {
	now func() time.Time
}

// Option configures a store driver.
type Option func(*options)

// WithClock overrides the time source used for eviction thresholds.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func threshold(now time.Time, maxAge time.Duration) int64 {
	return now.Add(-maxAge).UnixMilli()
}

func sortMessages(msgs []models.ChatMessage) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].Timestamp != msgs[j].Timestamp {
			return msgs[i].Timestamp < msgs[j].Timestamp
		}
		return msgs[i].ID < msgs[j].ID
	})
}
