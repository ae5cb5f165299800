package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"belgaum-backend/internal/database"
	"belgaum-backend/internal/models"
)

type fakeNow struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeNow) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func msgAt(role models.Role, content string, at time.Time) models.ChatMessage {
	return models.ChatMessage{Role: role, Content: content, Timestamp: at.UnixMilli()}
}

type driver struct {
	name string
	open func(t *testing.T, clock *fakeNow) Opener
}

func drivers(t *testing.T) []driver {
	t.Helper()
	ds := []driver{
		{"memory", func(t *testing.T, clock *fakeNow) Opener {
			return NewMemoryOpener(WithClock(clock.Now))
		}},
		{"sqlite", func(t *testing.T, clock *fakeNow) Opener {
			db, err := database.NewSQLite(filepath.Join(t.TempDir(), "messages.db"))
			require.NoError(t, err)
			t.Cleanup(func() { db.Close() })
			return NewSQLiteOpener(db, WithClock(clock.Now))
		}},
	}

	if url := os.Getenv("REDIS_URL"); url != "" {
		ds = append(ds, driver{"redis", func(t *testing.T, clock *fakeNow) Opener {
			opt, err := redis.ParseURL(url)
			require.NoError(t, err)
			client := redis.NewClient(opt)
			t.Cleanup(func() { client.Close() })
			return NewRedisOpener(client, time.Hour, WithClock(clock.Now))
		}})
	}
	return ds
}

func TestMessageStore_SaveAssignsIncreasingIDs(t *testing.T) {
	for _, d := range drivers(t) {
		t.Run(d.name, func(t *testing.T) {
			ctx := context.Background()
			clock := &fakeNow{t: base}
			s, err := d.open(t, clock).Open(uuid.NewString())
			require.NoError(t, err)

			first, err := s.Save(ctx, msgAt(models.RoleAssistant, "welcome", base))
			require.NoError(t, err)
			second, err := s.Save(ctx, msgAt(models.RoleUser, "hello", base))
			require.NoError(t, err)

			assert.NotZero(t, first.ID)
			assert.Greater(t, second.ID, first.ID)
		})
	}
}

func TestMessageStore_GetAllOrdersByTimestampThenID(t *testing.T) {
	for _, d := range drivers(t) {
		t.Run(d.name, func(t *testing.T) {
			ctx := context.Background()
			clock := &fakeNow{t: base}
			s, err := d.open(t, clock).Open(uuid.NewString())
			require.NoError(t, err)

			_, err = s.Save(ctx, msgAt(models.RoleUser, "late", base.Add(2*time.Second)))
			require.NoError(t, err)
			_, err = s.Save(ctx, msgAt(models.RoleUser, "tie-a", base))
			require.NoError(t, err)
			_, err = s.Save(ctx, msgAt(models.RoleAssistant, "tie-b", base))
			require.NoError(t, err)

			msgs, err := s.GetAll(ctx)
			require.NoError(t, err)
			require.Len(t, msgs, 3)
			assert.Equal(t, "tie-a", msgs[0].Content)
			assert.Equal(t, "tie-b", msgs[1].Content)
			assert.Equal(t, "late", msgs[2].Content)
			assert.Equal(t, models.RoleAssistant, msgs[1].Role)
		})
	}
}

func TestMessageStore_EvictOlderThan(t *testing.T) {
	for _, d := range drivers(t) {
		t.Run(d.name, func(t *testing.T) {
			ctx := context.Background()
			clock := &fakeNow{t: base}
			s, err := d.open(t, clock).Open(uuid.NewString())
			require.NoError(t, err)

			_, err = s.Save(ctx, msgAt(models.RoleUser, "old", base.Add(-2*time.Hour)))
			require.NoError(t, err)
			_, err = s.Save(ctx, msgAt(models.RoleUser, "boundary", base.Add(-time.Hour)))
			require.NoError(t, err)
			_, err = s.Save(ctx, msgAt(models.RoleUser, "fresh", base))
			require.NoError(t, err)

			n, err := s.EvictOlderThan(ctx, time.Hour)
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)

			msgs, err := s.GetAll(ctx)
			require.NoError(t, err)
			require.Len(t, msgs, 2)
			assert.Equal(t, "boundary", msgs[0].Content)
			assert.Equal(t, "fresh", msgs[1].Content)

			n, err = s.EvictOlderThan(ctx, time.Hour)
			require.NoError(t, err)
			assert.Zero(t, n, "second eviction with the same threshold must remove nothing")
		})
	}
}

func TestMessageStore_ClearAndScopeIsolation(t *testing.T) {
	for _, d := range drivers(t) {
		t.Run(d.name, func(t *testing.T) {
			ctx := context.Background()
			clock := &fakeNow{t: base}
			opener := d.open(t, clock)

			a, err := opener.Open(uuid.NewString())
			require.NoError(t, err)
			b, err := opener.Open(uuid.NewString())
			require.NoError(t, err)

			_, err = a.Save(ctx, msgAt(models.RoleUser, "a", base))
			require.NoError(t, err)
			_, err = b.Save(ctx, msgAt(models.RoleUser, "b", base))
			require.NoError(t, err)

			require.NoError(t, a.Clear(ctx))

			msgs, err := a.GetAll(ctx)
			require.NoError(t, err)
			assert.Empty(t, msgs)

			msgs, err = b.GetAll(ctx)
			require.NoError(t, err)
			require.Len(t, msgs, 1)
			assert.Equal(t, "b", msgs[0].Content)
		})
	}
}

func TestOpener_RejectsEmptyScope(t *testing.T) {
	for _, d := range drivers(t) {
		t.Run(d.name, func(t *testing.T) {
			_, err := d.open(t, &fakeNow{t: base}).Open("")
			assert.ErrorIs(t, err, ErrEmptyScope)
		})
	}
}

func TestSQLiteStore_DurableAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "messages.db")
	scope := uuid.NewString()

	db, err := database.NewSQLite(path)
	require.NoError(t, err)
	s, err := NewSQLiteOpener(db).Open(scope)
	require.NoError(t, err)
	_, err = s.Save(ctx, msgAt(models.RoleUser, "persisted", time.Now()))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = database.NewSQLite(path)
	require.NoError(t, err)
	defer db.Close()
	s, err = NewSQLiteOpener(db).Open(scope)
	require.NoError(t, err)

	msgs, err := s.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "persisted", msgs[0].Content)
}

func TestSweeper_EvictAllScopes(t *testing.T) {
	for _, d := range drivers(t) {
		t.Run(d.name, func(t *testing.T) {
			ctx := context.Background()
			clock := &fakeNow{t: base}
			opener := d.open(t, clock)
			sweeper, ok := opener.(Sweeper)
			require.True(t, ok, "every driver sweeps")

			scopes := []string{uuid.NewString(), uuid.NewString()}
			for _, scope := range scopes {
				s, err := opener.Open(scope)
				require.NoError(t, err)
				_, err = s.Save(ctx, msgAt(models.RoleUser, "old", base.Add(-3*time.Hour)))
				require.NoError(t, err)
				_, err = s.Save(ctx, msgAt(models.RoleUser, "fresh", base))
				require.NoError(t, err)
			}

			n, err := sweeper.EvictAll(ctx, time.Hour)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, n, int64(2))

			for _, scope := range scopes {
				s, err := opener.Open(scope)
				require.NoError(t, err)
				msgs, err := s.GetAll(ctx)
				require.NoError(t, err)
				require.Len(t, msgs, 1)
				assert.Equal(t, "fresh", msgs[0].Content)
			}
		})
	}
}
