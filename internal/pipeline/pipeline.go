// Package pipeline is the ingestion entry point for raw key events. Handle
// runs on the caller's goroutine in arrival order and never waits on I/O;
// conflict checks and usage recording run on background workers.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/studiowebux/keyclash/internal/config"
	"github.com/studiowebux/keyclash/internal/conflict"
	"github.com/studiowebux/keyclash/internal/eventbus"
	"github.com/studiowebux/keyclash/internal/keybinds"
	"github.com/studiowebux/keyclash/internal/logging"
	"github.com/studiowebux/keyclash/internal/remap"
	"github.com/studiowebux/keyclash/internal/safego"
	"github.com/studiowebux/keyclash/internal/types"
)

const (
	DefaultQueueSize = 256
	DefaultWorkers   = 2
)

// Recorder stores usage records
type Recorder interface {
	Record(ctx context.Context, rec types.UsageRecord) error
}

// Decision tells the event source what to do with the original event
type Decision struct {
	// Forward is false when the event must be swallowed and Replacement
	// injected instead
	Forward     bool
	Replacement *keybinds.KeyCombination
}

// Options wires a pipeline. Engine, Recorder and Bus are optional.
type Options struct {
	Settings  config.Source
	Engine    *remap.Engine
	Detector  *conflict.Detector
	Recorder  Recorder
	Bus       *eventbus.Bus
	QueueSize int
	Workers   int
}

// Stats counts pipeline activity since creation
type Stats struct {
	Handled  uint64 `json:"handled"`
	Gestures uint64 `json:"gestures"`
	Remapped uint64 `json:"remapped"`
	Queued   uint64 `json:"queued"`
	Dropped  uint64 `json:"dropped"`
}

type job struct {
	combo    string
	owner    string
	remapped bool
	at       time.Time
}

// Pipeline turns raw key events into forwarding decisions
type Pipeline struct {
	opts     Options
	gestures *keybinds.GestureDetector
	combos   keybinds.KeyCombinationDetector

	handleMu sync.Mutex

	stateMu sync.RWMutex
	active  string
	known   []types.ShortcutInfo

	queueMu sync.RWMutex
	queue   chan job
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	dropLog *logging.Every

	handled  atomic.Uint64
	gesture  atomic.Uint64
	remapped atomic.Uint64
	queued   atomic.Uint64
	dropped  atomic.Uint64
}

// New starts a pipeline and its background workers
func New(opts Options) *Pipeline {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Detector == nil {
		opts.Detector = conflict.NewDetector()
	}
	if opts.Settings == nil {
		opts.Settings = config.Static(config.DefaultSettings())
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pipeline{
		opts:    opts,
		queue:   make(chan job, opts.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
		dropLog: logging.NewEvery(5 * time.Second),
	}
	p.gestures = keybinds.NewGestureDetector(func() time.Duration {
		return p.opts.Settings.Current().DoublePressThreshold()
	})

	for i := 0; i < opts.Workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// SetActiveApp sets the owner used for remap lookups and usage records
func (p *Pipeline) SetActiveApp(appID string) {
	p.stateMu.Lock()
	p.active = appID
	p.stateMu.Unlock()
}

// ActiveApp returns the current owner
func (p *Pipeline) ActiveApp() string {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return p.active
}

// SetKnownShortcuts replaces the shortcuts real-time detection checks against
func (p *Pipeline) SetKnownShortcuts(shortcuts []types.ShortcutInfo) {
	known := append([]types.ShortcutInfo(nil), shortcuts...)
	p.stateMu.Lock()
	p.known = known
	p.stateMu.Unlock()
}

// Handle processes one event. Events must be delivered in chronological
// order from a single goroutine.
func (p *Pipeline) Handle(ev keybinds.RawKeyEvent) Decision {
	p.handleMu.Lock()
	defer p.handleMu.Unlock()
	p.handled.Add(1)

	if mod, ok := p.gestures.Feed(ev); ok {
		p.gesture.Add(1)
		if p.opts.Bus != nil {
			p.opts.Bus.PublishGesture(mod, ev.Timestamp)
		}
		return Decision{Forward: true}
	}

	combo, ok := p.combos.Detect(ev)
	if !ok {
		return Decision{Forward: true}
	}

	owner := p.ActiveApp()
	decision := Decision{Forward: true}
	j := job{combo: combo.String(), owner: owner, at: ev.Timestamp}

	if p.opts.Engine != nil && owner != "" {
		if target, ok := p.opts.Engine.Apply(combo, owner); ok {
			p.remapped.Add(1)
			decision = Decision{Forward: false, Replacement: &target}
			j.remapped = true
		}
	}

	p.dispatch(j)
	return decision
}

func (p *Pipeline) dispatch(j job) {
	p.queueMu.RLock()
	defer p.queueMu.RUnlock()
	if p.closed {
		return
	}

	select {
	case p.queue <- j:
		p.queued.Add(1)
	default:
		n := p.dropped.Add(1)
		if p.dropLog.ShouldLog() {
			logging.WarningLog.Printf("pipeline queue full, dropped %d background jobs so far", n)
		}
	}
}

func (p *Pipeline) worker() {
	defer p.wg.Done()
	for j := range p.queue {
		_ = safego.Run("pipeline job", func() { p.process(j) })
	}
}

func (p *Pipeline) process(j job) {
	ctx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	if ctx.Err() != nil {
		return
	}

	usage := types.UsageNormal
	if j.remapped {
		usage = types.UsageRemapped
	} else {
		p.stateMu.RLock()
		known := p.known
		p.stateMu.RUnlock()

		conflicts := p.opts.Detector.DetectRealTime(j.combo, j.owner, known)
		if len(conflicts) > 0 {
			usage = types.UsageConflict
			if p.opts.Bus != nil {
				p.opts.Bus.Publish(eventbus.TopicConflictFound, eventbus.ConflictFound{
					Combination: j.combo,
					Owner:       j.owner,
					Conflicts:   conflicts,
				})
			}
		}
	}

	if p.opts.Recorder == nil || j.owner == "" {
		return
	}
	err := p.opts.Recorder.Record(ctx, types.UsageRecord{
		ShortcutKey: j.combo,
		Owner:       j.owner,
		Timestamp:   j.at,
		Context:     usage,
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logging.WarningLog.Printf("failed to record usage of %s in %s: %v", j.combo, j.owner, err)
	}
}

// Stats returns activity counters
func (p *Pipeline) Stats() Stats {
	return Stats{
		Handled:  p.handled.Load(),
		Gestures: p.gesture.Load(),
		Remapped: p.remapped.Load(),
		Queued:   p.queued.Load(),
		Dropped:  p.dropped.Load(),
	}
}

// Close stops accepting background work and waits for queued jobs. When
// ctx ends first, in-flight jobs are cancelled and ctx's error returned.
func (p *Pipeline) Close(ctx context.Context) error {
	p.queueMu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.queueMu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		return ctx.Err()
	}
}
