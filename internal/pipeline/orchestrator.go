// Package pipeline drives a run from an uploaded photo to a stored,
// illustrated analysis and owns the application state while doing so.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/electroschematic/internal/appstate"
	"github.com/kalambet/electroschematic/internal/imagecodec"
	"github.com/kalambet/electroschematic/internal/metrics"
	"github.com/kalambet/electroschematic/internal/schematic"
)

var (
	// ErrRunInProgress is returned when a run is started, or the view is
	// changed, while another run is still active.
	ErrRunInProgress = errors.New("a run is already in progress")
	// ErrUnknownItem is returned when selecting an ID that is not in history.
	ErrUnknownItem = errors.New("history item not found")
)

// Analyzer describes the device in a photo.
type Analyzer interface {
	Analyze(ctx context.Context, img imagecodec.Image) (schematic.AnalysisResult, error)
}

// DiagramGenerator draws the illustrated schematic for an analysis.
type DiagramGenerator interface {
	Generate(ctx context.Context, original imagecodec.Image, a schematic.AnalysisResult) (string, error)
}

// HistoryStore persists completed runs.
type HistoryStore interface {
	Save(ctx context.Context, item schematic.HistoryItem) error
	LoadAll(ctx context.Context) []schematic.HistoryItem
	ClearAll(ctx context.Context) error
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Deps are the collaborators an Orchestrator drives. Metrics may be nil.
type Deps struct {
	Analyzer Analyzer
	Diagrams DiagramGenerator
	History  HistoryStore
	Metrics  *metrics.Metrics
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock sets the clock used for HistoryItem timestamps.
func WithClock(c Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

// WithIDGenerator replaces the UUID generator for HistoryItem IDs.
func WithIDGenerator(fn func() string) Option {
	return func(o *Orchestrator) { o.newID = fn }
}

// Result is the outcome of one run.
type Result struct {
	Item schematic.HistoryItem
	Err  error
}

// Orchestrator sequences read, analysis, diagram and persistence for one
// run at a time and publishes every state change to subscribers.
type Orchestrator struct {
	deps  Deps
	clock Clock
	newID func() string

	loadOnce sync.Once

	mu         sync.Mutex
	state      appstate.AppState
	generation uint64
	active     bool
	subs       map[int]chan appstate.AppState
	nextSub    int
}

// New creates an Orchestrator in the initial idle state.
func New(deps Deps, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		deps:  deps,
		clock: realClock{},
		newID: uuid.NewString,
		state: appstate.Initial(),
		subs:  make(map[int]chan appstate.AppState),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start kicks off the one-time history load in the background and returns
// immediately. Calls after the first are no-ops.
func (o *Orchestrator) Start(ctx context.Context) {
	o.loadOnce.Do(func() {
		go o.LoadHistory(ctx)
	})
}

// LoadHistory reads the stored history into state. A store failure yields
// an empty history.
func (o *Orchestrator) LoadHistory(ctx context.Context) {
	items := o.deps.History.LoadAll(ctx)
	slog.Debug("history loaded", "items", len(items))

	o.mu.Lock()
	defer o.mu.Unlock()
	o.dispatchLocked(appstate.HistoryLoaded{Items: items})
}

// Submit starts a run and returns a channel that receives its Result once.
// The run is detached from ctx cancellation: once started it always
// proceeds to completion or failure.
func (o *Orchestrator) Submit(ctx context.Context, up Upload) (<-chan Result, error) {
	o.mu.Lock()
	if o.active {
		o.mu.Unlock()
		return nil, ErrRunInProgress
	}
	o.active = true
	gen := o.generation
	o.dispatchLocked(appstate.RunStarted{})
	o.mu.Unlock()

	if o.deps.Metrics != nil {
		o.deps.Metrics.RunStarted()
	}

	ch := make(chan Result, 1)
	runCtx := context.WithoutCancel(ctx)
	go func() {
		item, err := o.run(runCtx, gen, up)
		ch <- Result{Item: item, Err: err}
		close(ch)
	}()
	return ch, nil
}

// Run is Submit followed by waiting for the Result.
func (o *Orchestrator) Run(ctx context.Context, up Upload) (schematic.HistoryItem, error) {
	ch, err := o.Submit(ctx, up)
	if err != nil {
		return schematic.HistoryItem{}, err
	}
	res := <-ch
	return res.Item, res.Err
}

func (o *Orchestrator) run(ctx context.Context, gen uint64, up Upload) (schematic.HistoryItem, error) {
	log := slog.With("upload", up.Name)

	// 1. Read and encode the photo.
	img, err := timed(o, metrics.StageRead, up.read)
	if err != nil {
		return o.fail(gen, log, metrics.OutcomeReadError, err)
	}
	o.dispatch(gen, appstate.ImageEncoded{Image: img.Data})
	log.Debug("image encoded", "mime", img.MIMEType, "bytes", img.Size)

	// 2. Analyze.
	analysis, err := timed(o, metrics.StageAnalysis, func() (schematic.AnalysisResult, error) {
		return o.deps.Analyzer.Analyze(ctx, img)
	})
	if err != nil {
		return o.fail(gen, log, metrics.OutcomeAnalysisError, err)
	}
	o.dispatch(gen, appstate.AnalysisCompleted{Analysis: analysis})
	log.Info("device analyzed", "device", analysis.DeviceName, "components", len(analysis.Components))

	// 3. Draw the diagram.
	diagram, err := timed(o, metrics.StageDiagram, func() (string, error) {
		return o.deps.Diagrams.Generate(ctx, img, analysis)
	})
	if err != nil {
		return o.fail(gen, log, metrics.OutcomeGenerationError, err)
	}

	item := schematic.HistoryItem{
		ID:             o.newID(),
		Timestamp:      o.clock.Now().UnixMilli(),
		OriginalImage:  img.Data,
		GeneratedImage: diagram,
		Analysis:       analysis,
	}

	// 4. Persist. Durability is best effort; the result is shown either way.
	if _, err := timed(o, metrics.StagePersist, func() (struct{}, error) {
		return struct{}{}, o.deps.History.Save(ctx, item)
	}); err != nil {
		log.Warn("run completed but was not saved", "id", item.ID, "error", err)
		if o.deps.Metrics != nil {
			o.deps.Metrics.PersistenceFailed("save")
		}
	}

	// 5. Publish.
	o.mu.Lock()
	if gen == o.generation {
		o.dispatchLocked(appstate.RunCompleted{Item: item})
		o.active = false
	} else {
		// Reset while running: the item was stored, so it still joins
		// history, but the current view is left alone.
		o.dispatchLocked(appstate.ItemAdded{Item: item})
	}
	o.mu.Unlock()

	if o.deps.Metrics != nil {
		o.deps.Metrics.RunFinished(metrics.OutcomeComplete)
	}
	log.Info("run complete", "id", item.ID, "device", analysis.DeviceName)
	return item, nil
}

func (o *Orchestrator) fail(gen uint64, log *slog.Logger, outcome string, err error) (schematic.HistoryItem, error) {
	log.Warn("run failed", "outcome", outcome, "error", err)

	o.mu.Lock()
	if gen == o.generation {
		o.dispatchLocked(appstate.RunFailed{Message: err.Error()})
		o.active = false
	}
	o.mu.Unlock()

	if o.deps.Metrics != nil {
		o.deps.Metrics.RunFinished(outcome)
	}
	return schematic.HistoryItem{}, err
}

func timed[T any](o *Orchestrator, stage string, fn func() (T, error)) (T, error) {
	start := time.Now()
	v, err := fn()
	if o.deps.Metrics != nil {
		o.deps.Metrics.ObserveStage(stage, time.Since(start))
	}
	return v, err
}

// Reset returns to idle from any state. An active run is detached: its
// remaining transitions are dropped and a new run may start immediately.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.generation++
	o.active = false
	o.dispatchLocked(appstate.ResetRequested{})
}

// SelectHistory displays the stored record with id.
func (o *Orchestrator) SelectHistory(id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active {
		return ErrRunInProgress
	}
	item, ok := o.state.Find(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownItem, id)
	}
	o.dispatchLocked(appstate.HistorySelected{Item: item})
	return nil
}

// ToggleHistory switches between the history list and idle.
func (o *Orchestrator) ToggleHistory() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active {
		return ErrRunInProgress
	}
	o.dispatchLocked(appstate.HistoryToggled{})
	return nil
}

// ClearHistory deletes every stored record and empties the in-memory list.
// Store failures are returned and leave state untouched.
func (o *Orchestrator) ClearHistory(ctx context.Context) error {
	if err := o.deps.History.ClearAll(ctx); err != nil {
		if o.deps.Metrics != nil {
			o.deps.Metrics.PersistenceFailed("clear")
		}
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.dispatchLocked(appstate.HistoryCleared{})
	return nil
}

// State returns the current snapshot.
func (o *Orchestrator) State() appstate.AppState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Subscribe returns a channel that receives the current state immediately
// and then every later snapshot. A slow reader only ever misses
// intermediate snapshots; the latest one is always delivered. Call cancel
// to stop receiving and close the channel.
func (o *Orchestrator) Subscribe() (<-chan appstate.AppState, func()) {
	o.mu.Lock()
	defer o.mu.Unlock()

	id := o.nextSub
	o.nextSub++
	ch := make(chan appstate.AppState, 1)
	ch <- o.state
	o.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			delete(o.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

// dispatch applies e if gen is still current.
func (o *Orchestrator) dispatch(gen uint64, e appstate.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.generation {
		return
	}
	o.dispatchLocked(e)
}

func (o *Orchestrator) dispatchLocked(e appstate.Event) {
	next := appstate.Reduce(o.state, e)
	if next.Version == o.state.Version {
		return
	}
	o.state = next
	for _, ch := range o.subs {
		publish(ch, next)
	}
}

// publish replaces any undelivered snapshot in ch with s.
func publish(ch chan appstate.AppState, s appstate.AppState) {
	select {
	case ch <- s:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- s:
	default:
	}
}
