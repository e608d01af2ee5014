package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog/log"
)

// maxSourceBytes caps a single fetched GeoJSON document.
const maxSourceBytes = 512 << 20

// LoadRecorder persists load outcomes.
type LoadRecorder interface {
	RecordLoad(ctx context.Context, status LoadStatus) error
}

// LoaderConfig configures a Loader.
type LoaderConfig struct {
	// BaseURL resolves relative sources of async layers. When empty they
	// are read from the data directory instead.
	BaseURL  string
	Client   *http.Client
	Bus      *EventBus
	Recorder LoadRecorder
}

// DefaultFetchTimeout bounds an async fetch when LoaderConfig.Client is nil.
// A hung source fails its task instead of staying pending.
const DefaultFetchTimeout = 2 * time.Minute

// Loader registers every registry layer with a session. Synchronous layers
// are resolved inline; async layers are fetched in the background, one
// LoadTask each, with no retry.
type Loader struct {
	registry *Registry
	sources  *SourceService
	cfg      LoaderConfig

	mu    sync.RWMutex
	tasks map[string]*LoadTask
	wg    sync.WaitGroup
}

// NewLoader creates a loader for the layers in registry.
func NewLoader(registry *Registry, sources *SourceService, cfg LoaderConfig) *Loader {
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: DefaultFetchTimeout}
	}
	return &Loader{
		registry: registry,
		sources:  sources,
		cfg:      cfg,
		tasks:    make(map[string]*LoadTask),
	}
}

// LoadTask tracks the load of one layer.
type LoadTask struct {
	mu     sync.RWMutex
	status LoadStatus
	cancel context.CancelFunc
	done   chan struct{}
}

// Status returns a snapshot of the task state.
func (t *LoadTask) Status() LoadStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// Pending reports whether the load has not completed yet.
func (t *LoadTask) Pending() bool {
	return t.Status().State == LoadPending
}

// Done is closed once the task is loaded or failed.
func (t *LoadTask) Done() <-chan struct{} {
	return t.done
}

// Cancel aborts an in-flight fetch. The task then fails.
func (t *LoadTask) Cancel() {
	if t.cancel != nil {
		t.cancel()
	}
}

// Start registers all layers with session. It returns once synchronous
// layers are registered; use Wait to block until async fetches settle.
// Cancelling ctx aborts pending fetches.
func (l *Loader) Start(ctx context.Context, session *Session) {
	for _, layer := range l.registry.All() {
		if layer.Async {
			l.startAsync(ctx, session, layer)
		} else {
			l.loadSync(ctx, session, layer)
		}
	}
}

// Wait blocks until every async fetch has finished.
func (l *Loader) Wait() {
	l.wg.Wait()
}

// Task returns the load task of a layer.
func (l *Loader) Task(id string) (*LoadTask, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.tasks[id]
	return t, ok
}

// Statuses returns load states in registry order. Layers that were never
// started are omitted.
func (l *Loader) Statuses() []LoadStatus {
	var result []LoadStatus
	for _, layer := range l.registry.All() {
		if t, ok := l.Task(layer.ID); ok {
			result = append(result, t.Status())
		}
	}
	return result
}

// loadSync registers the layer right away. If the source cannot be read the
// layer is still added, with no features, and the task fails.
func (l *Loader) loadSync(ctx context.Context, session *Session, layer Layer) {
	task := l.newTask(ctx, layer.ID, nil)

	var fc *geojson.FeatureCollection
	var err error
	if isRemote(layer.Source) {
		fc, err = l.fetch(ctx, layer.Source)
	} else {
		fc, err = l.readLocal(layer.Source)
	}
	if addErr := session.AddLayer(layer, fc); addErr != nil {
		err = addErr
	}
	l.finish(ctx, task, fc, err)
}

// startAsync fetches the layer in the background. The layer is only added
// to the session once the fetch succeeds.
func (l *Loader) startAsync(parent context.Context, session *Session, layer Layer) {
	ctx, cancel := context.WithCancel(parent)
	task := l.newTask(ctx, layer.ID, cancel)

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer cancel()

		fc, err := l.fetch(ctx, layer.Source)
		if err == nil {
			err = session.AddLayer(layer, fc)
		}
		l.finish(ctx, task, fc, err)
	}()
}

func (l *Loader) newTask(ctx context.Context, id string, cancel context.CancelFunc) *LoadTask {
	task := &LoadTask{
		status: LoadStatus{LayerID: id, State: LoadPending, StartedAt: time.Now().UTC()},
		cancel: cancel,
		done:   make(chan struct{}),
	}

	l.mu.Lock()
	l.tasks[id] = task
	l.mu.Unlock()

	l.report(ctx, task.Status())
	return task
}

func (l *Loader) finish(ctx context.Context, task *LoadTask, fc *geojson.FeatureCollection, err error) {
	task.mu.Lock()
	task.status.FinishedAt = time.Now().UTC()
	if err != nil {
		task.status.State = LoadFailed
		task.status.Error = err.Error()
	} else {
		task.status.State = LoadLoaded
		task.status.Features = len(fc.Features)
	}
	status := task.status
	task.mu.Unlock()
	close(task.done)

	if err != nil {
		log.Error().
			Err(err).
			Str("layer", status.LayerID).
			Msg("Error loading or parsing the GeoJSON data")
	} else {
		log.Debug().
			Str("layer", status.LayerID).
			Int("features", status.Features).
			Dur("took", status.FinishedAt.Sub(status.StartedAt)).
			Msg("Layer loaded")
	}
	l.report(ctx, status)
}

func (l *Loader) report(ctx context.Context, status LoadStatus) {
	l.cfg.Bus.Publish(LoadEvent(status))

	if l.cfg.Recorder == nil {
		return
	}
	// The outcome is recorded even when the load was cancelled.
	if err := l.cfg.Recorder.RecordLoad(context.WithoutCancel(ctx), status); err != nil {
		log.Warn().Err(err).Str("layer", status.LayerID).Msg("Failed to record layer load")
	}
}

func (l *Loader) fetch(ctx context.Context, source string) (*geojson.FeatureCollection, error) {
	url := source
	if !isRemote(source) {
		if l.cfg.BaseURL == "" {
			return l.readLocal(source)
		}
		url = strings.TrimRight(l.cfg.BaseURL, "/") + "/" + source
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", url, err)
	}
	req.Header.Set("Accept", "application/geo+json, application/json")

	resp, err := l.cfg.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: unexpected status %s", url, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceBytes))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}
	return parseFeatureCollection(source, data)
}

func (l *Loader) readLocal(source string) (*geojson.FeatureCollection, error) {
	data, err := l.sources.Read(source)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", source, err)
	}
	return parseFeatureCollection(source, data)
}

func parseFeatureCollection(source string, data []byte) (*geojson.FeatureCollection, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", source, err)
	}
	return fc, nil
}

func isRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}
