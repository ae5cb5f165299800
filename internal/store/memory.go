package store

import (
	"context"
	"sync"
	"time"

	"belgaum-backend/internal/models"
)

// MemoryStore keeps messages in process memory. It is not durable.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	msgs   []models.ChatMessage
	now    func() time.Time
}

func NewMemoryStore(opts ...Option) *MemoryStore {
	o := buildOptions(opts)
	return &MemoryStore{now: o.now}
}

func (s *MemoryStore) Save(_ context.Context, msg models.ChatMessage) (models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	msg.ID = s.nextID
	s.msgs = append(s.msgs, msg)
	return msg, nil
}

func (s *MemoryStore) GetAll(_ context.Context) ([]models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.ChatMessage, len(s.msgs))
	copy(out, s.msgs)
	sortMessages(out)
	return out, nil
}

func (s *MemoryStore) EvictOlderThan(_ context.Context, maxAge time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := threshold(s.now(), maxAge)
	kept := s.msgs[:0]
	var removed int64
	for _, m := range s.msgs {
		if m.Timestamp < cutoff {
			removed++
			continue
		}
		kept = append(kept, m)
	}
	s.msgs = kept
	return removed, nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.msgs = nil
	return nil
}

// MemoryOpener hands out one MemoryStore per scope for the life of the process.
type MemoryOpener struct {
	mu     sync.Mutex
	opts   []Option
	stores map[string]*MemoryStore
}

func NewMemoryOpener(opts ...Option) *MemoryOpener {
	return &MemoryOpener{opts: opts, stores: make(map[string]*MemoryStore)}
}

func (o *MemoryOpener) Open(scope string) (MessageStore, error) {
	if scope == "" {
		return nil, ErrEmptyScope
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	s, ok := o.stores[scope]
	if !ok {
		s = NewMemoryStore(o.opts...)
		o.stores[scope] = s
	}
	return s, nil
}

// EvictAll evicts expired messages from every scope. Scopes stay registered
// so live sessions keep sharing one store.
func (o *MemoryOpener) EvictAll(ctx context.Context, maxAge time.Duration) (int64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	var total int64
	for _, s := range o.stores {
		n, _ := s.EvictOlderThan(ctx, maxAge)
		total += n
	}
	return total, nil
}
