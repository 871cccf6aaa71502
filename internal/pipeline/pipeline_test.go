package pipeline

import (
	"context"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studiowebux/keyclash/internal/eventbus"
	"github.com/studiowebux/keyclash/internal/keybinds"
	"github.com/studiowebux/keyclash/internal/logging"
	"github.com/studiowebux/keyclash/internal/remap"
	"github.com/studiowebux/keyclash/internal/types"
)

func TestMain(m *testing.M) {
	logging.SetOutput(io.Discard)
	os.Exit(m.Run())
}

type memRecorder struct {
	mu      sync.Mutex
	records []types.UsageRecord
}

func (r *memRecorder) Record(ctx context.Context, rec types.UsageRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

func (r *memRecorder) all() []types.UsageRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.UsageRecord(nil), r.records...)
}

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func keyDown(code uint16, mods keybinds.Modifier, offset time.Duration) keybinds.RawKeyEvent {
	return keybinds.RawKeyEvent{KeyCode: code, Modifiers: mods, IsDown: true, Timestamp: t0.Add(offset)}
}

func keyUp(code uint16, offset time.Duration) keybinds.RawKeyEvent {
	return keybinds.RawKeyEvent{KeyCode: code, IsDown: false, Timestamp: t0.Add(offset)}
}

func closeNow(t *testing.T, p *Pipeline) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, p.Close(ctx))
}

func receive(t *testing.T, sub *eventbus.Subscription) eventbus.Event {
	t.Helper()
	select {
	case ev := <-sub.C():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
		return eventbus.Event{}
	}
}

func TestHandleRemapsForActiveApp(t *testing.T) {
	engine := remap.NewEngine()
	_, err := engine.Add("⌘T", "⌥⌘T", "Chrome")
	require.NoError(t, err)

	rec := &memRecorder{}
	p := New(Options{Engine: engine, Recorder: rec, Workers: 1})
	p.SetActiveApp("Chrome")

	d := p.Handle(keyDown(keybinds.KeyT, keybinds.ModCommand, 0))
	assert.False(t, d.Forward)
	require.NotNil(t, d.Replacement)
	assert.Equal(t, "⌥⌘T", d.Replacement.String())

	p.SetActiveApp("Safari")
	d = p.Handle(keyDown(keybinds.KeyT, keybinds.ModCommand, time.Second))
	assert.True(t, d.Forward)
	assert.Nil(t, d.Replacement)

	closeNow(t, p)
	records := rec.all()
	require.Len(t, records, 2)
	assert.Equal(t, types.UsageRemapped, records[0].Context)
	assert.Equal(t, "Chrome", records[0].Owner)
	assert.Equal(t, "⌘T", records[0].ShortcutKey)
	assert.Equal(t, types.UsageNormal, records[1].Context)
	assert.Equal(t, uint64(1), p.Stats().Remapped)
}

func TestHandlePublishesRealTimeConflicts(t *testing.T) {
	bus := eventbus.New()
	defer bus.Close()
	sub := bus.Subscribe(eventbus.TopicConflictFound)

	rec := &memRecorder{}
	p := New(Options{Recorder: rec, Bus: bus, Workers: 1})
	p.SetKnownShortcuts([]types.ShortcutInfo{
		{ID: "s1", KeyCombination: "⌘K", Owner: "Slack"},
		{ID: "c1", KeyCombination: "⌘K", Owner: "Chrome"},
	})
	p.SetActiveApp("Slack")

	d := p.Handle(keyDown(keybinds.KeyK, keybinds.ModCommand, 0))
	assert.True(t, d.Forward)

	ev := receive(t, sub)
	payload, ok := ev.Payload.(eventbus.ConflictFound)
	require.True(t, ok)
	assert.Equal(t, "⌘K", payload.Combination)
	assert.Equal(t, "Slack", payload.Owner)
	require.Len(t, payload.Conflicts, 1)
	assert.Equal(t, "Chrome", payload.Conflicts[0].ConflictingOwner)

	closeNow(t, p)
	records := rec.all()
	require.Len(t, records, 1)
	assert.Equal(t, types.UsageConflict, records[0].Context)
	assert.Equal(t, t0, records[0].Timestamp)
}

func TestHandleDetectsGestures(t *testing.T) {
	bus := eventbus.New()
	defer bus.Close()
	sub := bus.Subscribe(eventbus.TopicGestureDetected)

	p := New(Options{Bus: bus})
	defer closeNow(t, p)

	p.Handle(keyDown(keybinds.KeyCommand, keybinds.ModCommand, 0))
	p.Handle(keyUp(keybinds.KeyCommand, 50*time.Millisecond))
	d := p.Handle(keyDown(keybinds.KeyCommand, keybinds.ModCommand, 200*time.Millisecond))
	assert.True(t, d.Forward)

	ev := receive(t, sub)
	payload, ok := ev.Payload.(eventbus.GestureDetected)
	require.True(t, ok)
	assert.Equal(t, "⌘", payload.Modifier)
	assert.Equal(t, uint64(1), p.Stats().Gestures)
	assert.Zero(t, p.Stats().Queued)
}

func TestHandleIgnoresPlainKeys(t *testing.T) {
	rec := &memRecorder{}
	p := New(Options{Recorder: rec})
	p.SetActiveApp("Notes")

	d := p.Handle(keyDown(keybinds.KeyK, keybinds.ModNone, 0))
	assert.True(t, d.Forward)
	d = p.Handle(keyUp(keybinds.KeyK, time.Millisecond))
	assert.True(t, d.Forward)

	closeNow(t, p)
	assert.Empty(t, rec.all())
	assert.Equal(t, uint64(2), p.Stats().Handled)
	assert.Zero(t, p.Stats().Queued)
}

func TestNoRecordWithoutActiveApp(t *testing.T) {
	rec := &memRecorder{}
	p := New(Options{Recorder: rec})

	p.Handle(keyDown(keybinds.KeyK, keybinds.ModCommand, 0))
	closeNow(t, p)
	assert.Empty(t, rec.all())
}

type blockingRecorder struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (r *blockingRecorder) Record(ctx context.Context, rec types.UsageRecord) error {
	r.once.Do(func() { close(r.started) })
	select {
	case <-r.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestHandleDropsWhenQueueFull(t *testing.T) {
	rec := &blockingRecorder{started: make(chan struct{}), release: make(chan struct{})}
	p := New(Options{Recorder: rec, QueueSize: 1, Workers: 1})
	p.SetActiveApp("Notes")

	p.Handle(keyDown(keybinds.KeyK, keybinds.ModCommand, 0))
	<-rec.started

	start := time.Now()
	p.Handle(keyDown(keybinds.KeyJ, keybinds.ModCommand, time.Second))
	d := p.Handle(keyDown(keybinds.KeyL, keybinds.ModCommand, 2*time.Second))
	assert.True(t, d.Forward)
	assert.Less(t, time.Since(start), time.Second, "Handle must not block on a full queue")

	stats := p.Stats()
	assert.Equal(t, uint64(2), stats.Queued)
	assert.Equal(t, uint64(1), stats.Dropped)

	close(rec.release)
	closeNow(t, p)
}

func TestCloseCancelsStuckWork(t *testing.T) {
	rec := &blockingRecorder{started: make(chan struct{}), release: make(chan struct{})}
	p := New(Options{Recorder: rec, Workers: 1})
	p.SetActiveApp("Notes")

	p.Handle(keyDown(keybinds.KeyK, keybinds.ModCommand, 0))
	<-rec.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Close(ctx), context.DeadlineExceeded)

	// Still forwards after Close, without queueing
	d := p.Handle(keyDown(keybinds.KeyJ, keybinds.ModCommand, time.Second))
	assert.True(t, d.Forward)
	assert.Equal(t, uint64(1), p.Stats().Queued)

	closeNow(t, p)
}
