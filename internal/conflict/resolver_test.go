package conflict

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studiowebux/keyclash/internal/store"
	"github.com/studiowebux/keyclash/internal/types"
)

type failingStore struct {
	store.BlobStore
	getErr error
	setErr error
}

func (f *failingStore) Get(key string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.BlobStore.Get(key)
}

func (f *failingStore) Set(key string, data []byte) error {
	if f.setErr != nil {
		return f.setErr
	}
	return f.BlobStore.Set(key, data)
}

func newTestResolver(t *testing.T, s store.BlobStore) (*Resolver, *time.Time) {
	t.Helper()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	r := NewResolver(s)
	r.SetClock(func() time.Time { return now })
	return r, &now
}

var sampleConflict = types.ConflictInfo{ID: "global:slack.k", ShortcutID: "slack.k", Type: types.ConflictGlobal}

func TestResolveIsIdempotentPerID(t *testing.T) {
	r, now := newTestResolver(t, store.NewMemory())

	_, err := r.Resolve(sampleConflict, StrategyIgnore, "")
	require.NoError(t, err)
	*now = now.Add(time.Minute)
	_, err = r.Resolve(sampleConflict, StrategyIgnore, "")
	require.NoError(t, err)

	assert.Len(t, r.Records(), 1)
	rec, ok := r.Record(sampleConflict.ID)
	require.True(t, ok)
	assert.Equal(t, *now, rec.Timestamp)
}

func TestRecordsOrderedByConflictID(t *testing.T) {
	r, _ := newTestResolver(t, store.NewMemory())

	for _, id := range []string{"system:finder.quit", "application:notes.n", "global:slack.k", "global:chrome.k"} {
		_, err := r.Resolve(types.ConflictInfo{ID: id}, StrategyIgnore, "")
		require.NoError(t, err)
	}

	for i := 0; i < 5; i++ {
		ids := []string{}
		for _, rec := range r.Records() {
			ids = append(ids, rec.ConflictID)
		}
		assert.Equal(t, []string{"application:notes.n", "global:chrome.k", "global:slack.k", "system:finder.quit"}, ids)
	}
}

func TestIsResolved(t *testing.T) {
	tests := []struct {
		strategy Strategy
		want     bool
	}{
		{StrategyDisable, true},
		{StrategyRemap, true},
		{StrategyIgnore, false},
		{StrategyManual, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.strategy), func(t *testing.T) {
			r, _ := newTestResolver(t, store.NewMemory())
			_, err := r.Resolve(sampleConflict, tt.strategy, "")
			require.NoError(t, err)
			assert.Equal(t, tt.want, r.IsResolved(sampleConflict.ID))
		})
	}
}

func TestResolverPersistence(t *testing.T) {
	s := store.NewMemory()
	r, _ := newTestResolver(t, s)

	_, err := r.Resolve(sampleConflict, StrategyDisable, "menu item disabled")
	require.NoError(t, err)

	reloaded := NewResolver(s)
	require.NoError(t, reloaded.Load())
	rec, ok := reloaded.Record(sampleConflict.ID)
	require.True(t, ok)
	assert.Equal(t, StrategyDisable, rec.Strategy)
	assert.Equal(t, "menu item disabled", rec.Details)
}

func TestResolverLoadFailsOpen(t *testing.T) {
	s := store.NewMemory()
	require.NoError(t, s.Set(ResolverKey, []byte("{not json")))

	r := NewResolver(s)
	assert.Error(t, r.Load())
	assert.Empty(t, r.Records())

	broken := &failingStore{BlobStore: store.NewMemory(), getErr: errors.New("disk gone")}
	r = NewResolver(broken)
	assert.Error(t, r.Load())
	assert.Equal(t, 0, r.Stats().Total)

	assert.NoError(t, NewResolver(store.NewMemory()).Load())
}

func TestResolveKeepsRecordWhenSaveFails(t *testing.T) {
	s := &failingStore{BlobStore: store.NewMemory(), setErr: errors.New("read-only")}
	r, _ := newTestResolver(t, s)

	_, err := r.Resolve(sampleConflict, StrategyDisable, "")
	require.Error(t, err)
	assert.True(t, r.IsResolved(sampleConflict.ID))
}

func TestClearAndStats(t *testing.T) {
	r, _ := newTestResolver(t, store.NewMemory())

	other := types.ConflictInfo{ID: "system:finder.quit", Type: types.ConflictSystem}
	third := types.ConflictInfo{ID: "application:a"}
	_, _ = r.Resolve(sampleConflict, StrategyDisable, "")
	_, _ = r.Resolve(other, StrategyIgnore, "")
	_, _ = r.Resolve(third, StrategyRemap, "⌘K -> ⌥⌘K")

	stats := r.Stats()
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Resolved)
	assert.Equal(t, 1, stats.ByStrategy[StrategyIgnore])

	require.NoError(t, r.Clear(other.ID))
	assert.Equal(t, 2, r.Stats().Total)

	require.NoError(t, r.ClearAll())
	assert.Equal(t, 0, r.Stats().Total)
	assert.False(t, r.IsResolved(sampleConflict.ID))
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("remap")
	require.NoError(t, err)
	assert.Equal(t, StrategyRemap, s)

	_, err = ParseStrategy("delete")
	assert.Error(t, err)
}
