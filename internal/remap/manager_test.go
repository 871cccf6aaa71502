package remap

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studiowebux/keyclash/internal/eventbus"
	"github.com/studiowebux/keyclash/internal/store"
	"github.com/studiowebux/keyclash/internal/types"
)

type flakyStore struct {
	store.BlobStore
	mu     sync.Mutex
	setErr error
	getErr error
	sets   int
}

func (f *flakyStore) Set(key string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets++
	if f.setErr != nil {
		return f.setErr
	}
	return f.BlobStore.Set(key, data)
}

func (f *flakyStore) Get(key string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.BlobStore.Get(key)
}

func newTestManager(t *testing.T, s store.BlobStore, bus *eventbus.Bus) *Manager {
	t.Helper()
	m := NewManager(NewEngine(), s, bus)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestManagerPersistsAndReloads(t *testing.T) {
	s := store.NewMemory()
	m := newTestManager(t, s, nil)

	_, err := m.Add("⌘K", "⌥⌘K", "Slack")
	require.NoError(t, err)
	_, err = m.Add("⌘T", "⇧⌘T", "Chrome")
	require.NoError(t, err)
	assert.True(t, m.Remove("⌘T", "Chrome"))
	require.NoError(t, m.Flush())

	reloaded := newTestManager(t, s, nil)
	require.NoError(t, reloaded.Load())
	rules := reloaded.Engine().Rules()
	require.Len(t, rules, 1)
	assert.Equal(t, "Slack", rules[0].Owner)
}

func TestManagerLastWriteWins(t *testing.T) {
	s := store.NewMemory()
	m := newTestManager(t, s, nil)

	keys := []string{"⌘A", "⌘B", "⌘C", "⌘J", "⌘E", "⌘F", "⌘G", "⌘I"}
	for _, k := range keys {
		_, err := m.Add(k, "⌥"+k, "app")
		require.NoError(t, err)
	}
	require.NoError(t, m.Flush())

	reloaded := newTestManager(t, s, nil)
	require.NoError(t, reloaded.Load())
	assert.Len(t, reloaded.Engine().RulesFor("app"), len(keys))
}

func TestExportImportRoundTrip(t *testing.T) {
	m := newTestManager(t, store.NewMemory(), nil)
	for _, r := range [][3]string{
		{"⌘K", "⌥⌘K", "Slack"},
		{"⌘T", "⇧⌘T", "Chrome"},
		{"⌘J", "⌃⌘J", "Slack"},
	} {
		_, err := m.Add(r[0], r[1], r[2])
		require.NoError(t, err)
	}

	doc := m.Export()
	data, err := EncodeDocument(doc, FormatJSON)
	require.NoError(t, err)
	decoded, err := DecodeDocument(data)
	require.NoError(t, err)

	empty := newTestManager(t, store.NewMemory(), nil)
	result := empty.Import(decoded, ImportMerge)
	assert.Equal(t, 3, result.Imported)
	assert.Empty(t, result.Rejected)

	pairs := func(rules []types.RemappingRule) [][3]string {
		var out [][3]string
		for _, r := range rules {
			out = append(out, [3]string{r.Owner, r.FromKey, r.ToKey})
		}
		return out
	}
	assert.Equal(t, pairs(m.Engine().Rules()), pairs(empty.Engine().Rules()))
}

func TestImportIsBestEffort(t *testing.T) {
	m := newTestManager(t, store.NewMemory(), nil)
	_, err := m.Add("⌘T", "⇧⌘T", "app")
	require.NoError(t, err)

	result := m.Import(Document{Rules: []types.RemappingRule{
		{FromKey: "⇧⌘T", ToKey: "⌘Y", Owner: "app"},
		{FromKey: "⌘K", ToKey: "⌘K", Owner: "app"},
		{FromKey: "⌘L", ToKey: "⌥⌘L", Owner: "app"},
	}}, ImportMerge)

	assert.Equal(t, 1, result.Imported)
	require.Len(t, result.Rejected, 2)
	assert.Equal(t, ReasonChain, result.Rejected[0].Reason)
	assert.Equal(t, ReasonSelfMap, result.Rejected[1].Reason)
	assert.Len(t, m.Engine().RulesFor("app"), 2)
}

func TestImportReplace(t *testing.T) {
	m := newTestManager(t, store.NewMemory(), nil)
	_, err := m.Add("⌘T", "⇧⌘T", "app")
	require.NoError(t, err)

	result := m.Import(Document{Rules: []types.RemappingRule{
		{FromKey: "⇧⌘T", ToKey: "⌘Y", Owner: "app"},
	}}, ImportReplace)

	assert.Equal(t, 1, result.Imported)
	rules := m.Engine().Rules()
	require.Len(t, rules, 1)
	assert.Equal(t, "⇧⌘T", rules[0].FromKey)
}

func TestImportKeepsCreatedAt(t *testing.T) {
	m := newTestManager(t, store.NewMemory(), nil)
	created := time.Date(2025, 12, 24, 8, 0, 0, 0, time.UTC)

	m.Import(Document{Rules: []types.RemappingRule{
		{FromKey: "⌘K", ToKey: "⌥⌘K", Owner: "Slack", CreatedAt: created},
	}}, ImportMerge)

	assert.Equal(t, created, m.Engine().Rules()[0].CreatedAt)
}

func TestLoadFailsOpen(t *testing.T) {
	s := store.NewMemory()
	require.NoError(t, s.Set(RulesKey, []byte("not json")))

	m := newTestManager(t, s, nil)
	assert.Error(t, m.Load())
	assert.Empty(t, m.Engine().Rules())

	broken := &flakyStore{BlobStore: store.NewMemory(), getErr: errors.New("disk gone")}
	m = newTestManager(t, broken, nil)
	assert.Error(t, m.Load())
	assert.Empty(t, m.Engine().Rules())
}

func TestLoadSkipsInvalidStoredRules(t *testing.T) {
	s := store.NewMemory()
	require.NoError(t, s.Set(RulesKey, []byte(`[
		{"fromKey": "⌘K", "toKey": "⌥⌘K", "owner": "Slack"},
		{"fromKey": "⌘J", "toKey": "⌘Q", "owner": "Slack"}
	]`)))

	m := newTestManager(t, s, nil)
	require.NoError(t, m.Load())
	assert.Len(t, m.Engine().Rules(), 1)
}

func TestSaveFailureKeepsMutation(t *testing.T) {
	s := &flakyStore{BlobStore: store.NewMemory(), setErr: errors.New("read-only")}
	m := newTestManager(t, s, nil)

	_, err := m.Add("⌘K", "⌥⌘K", "Slack")
	require.NoError(t, err)

	err = m.Flush()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistence)

	_, ok := m.Engine().Lookup("⌘K", "Slack")
	assert.True(t, ok)
}

func TestManagerPublishesRulesChanged(t *testing.T) {
	bus := eventbus.New()
	defer bus.Close()
	sub := bus.Subscribe(eventbus.TopicRulesChanged)

	m := newTestManager(t, store.NewMemory(), bus)
	_, err := m.Add("⌘K", "⌥⌘K", "Slack")
	require.NoError(t, err)

	select {
	case ev := <-sub.C():
		assert.Equal(t, eventbus.RulesChanged{Owner: "Slack", Count: 1}, ev.Payload)
	case <-time.After(time.Second):
		t.Fatal("no rules.changed event")
	}

	// Rejected rules publish nothing
	_, err = m.Add("⌘K", "⌘K", "Slack")
	require.Error(t, err)
	select {
	case ev := <-sub.C():
		t.Fatalf("unexpected event %v", ev)
	default:
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	m := NewManager(NewEngine(), store.NewMemory(), nil)
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	// Mutations after close still apply in memory
	_, err := m.Add("⌘K", "⌥⌘K", "Slack")
	require.NoError(t, err)
}
