// Package loader loads a day's events into a map view, persisting the last
// good dataset and restoring it on startup.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/geo-events/internal/event"
	"github.com/joeblew999/geo-events/internal/mapview"
	"github.com/joeblew999/geo-events/internal/metrics"
	"github.com/joeblew999/geo-events/internal/store"
)

// DefaultDelay is how long Start waits before the first load when nothing is cached.
const DefaultDelay = 500 * time.Millisecond

var (
	// ErrNoDate is returned when Load is called without a day.
	ErrNoDate = errors.New("no date selected")
	// ErrStale is returned when a newer load was issued before this one completed.
	ErrStale = errors.New("superseded by a newer load")
)

// State of the loader.
type State int

const (
	Idle State = iota
	Loading
	Success
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Success:
		return "success"
	case Error:
		return "error"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Fetcher returns the raw FeatureCollection for a day.
type Fetcher interface {
	FetchDay(ctx context.Context, day time.Time) ([]byte, error)
}

// Config wires a Loader.
type Config struct {
	Namespace string
	Fetcher   Fetcher
	Store     store.Store
	View      *mapview.Controller
	Logger    *slog.Logger
	// Notify is called after the view changed. It must not block.
	Notify func(mapview.Change)
}

// Loader drives one map view.
type Loader struct {
	ns      string
	fetcher Fetcher
	store   store.Store
	view    *mapview.Controller
	logger  *slog.Logger
	notify  func(mapview.Change)

	mu    sync.Mutex
	state State
	seq   uint64
}

// New creates an idle loader.
func New(cfg Config) *Loader {
	l := &Loader{
		ns:      cfg.Namespace,
		fetcher: cfg.Fetcher,
		store:   cfg.Store,
		view:    cfg.View,
		logger:  cfg.Logger,
		notify:  cfg.Notify,
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	if l.notify == nil {
		l.notify = func(mapview.Change) {}
	}
	return l
}

// State returns the current state.
func (l *Loader) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Loader) setStatus(level mapview.StatusLevel, msg string) {
	l.view.SetStatus(mapview.Status{Level: level, Message: msg})
	l.notify(mapview.ChangeStatus)
}

// Load fetches day's events and displays them. Failures leave the displayed
// layer and the stored dataset untouched. Only the newest of overlapping
// loads is applied; older ones return ErrStale.
func (l *Loader) Load(ctx context.Context, day time.Time) error {
	return l.load(ctx, day, false)
}

// errSkipped is returned by a first load that found another load issued.
var errSkipped = errors.New("a load was already issued")

func (l *Loader) load(ctx context.Context, day time.Time, first bool) error {
	if day.IsZero() {
		l.setStatus(mapview.StatusError, "Select a date!")
		return ErrNoDate
	}
	date := store.DateString(day)

	l.mu.Lock()
	if first && l.seq > 0 {
		l.mu.Unlock()
		return errSkipped
	}
	l.seq++
	seq := l.seq
	l.state = Loading
	l.mu.Unlock()

	l.setStatus(mapview.StatusLoading, "Loading events...")
	log := l.logger.With("session", l.ns, "date", date, "seq", seq)

	start := time.Now()
	var fc *geojson.FeatureCollection
	raw, err := l.fetcher.FetchDay(ctx, day)
	if err == nil {
		fc, err = event.Decode(raw)
	}

	l.mu.Lock()
	if seq != l.seq {
		l.mu.Unlock()
		metrics.ObserveFetch(metrics.OutcomeStale, time.Since(start))
		log.Debug("discarding stale response", "latest", seq)
		return ErrStale
	}

	if err != nil {
		l.state = Error
		l.mu.Unlock()
		metrics.ObserveFetch(metrics.OutcomeError, time.Since(start))
		log.Warn("load events failed", "err", err)
		l.setStatus(mapview.StatusError, "Error: "+err.Error())
		return fmt.Errorf("load events for %s: %w", date, err)
	}

	// Commit under the lock so a newer load cannot interleave its result.
	if err := store.SaveSnapshot(ctx, l.store, l.ns, store.Snapshot{Date: date, GeoJSON: raw}); err != nil {
		log.Error("persist events", "err", err)
	}
	layer := l.view.Build(fc)
	l.state = Success
	l.mu.Unlock()

	metrics.ObserveFetch(metrics.OutcomeSuccess, time.Since(start))
	metrics.ObserveLayer(layer.Len())
	log.Info("events loaded", "markers", layer.Len(), "took", time.Since(start))
	l.notify(mapview.ChangeLayer)

	l.mu.Lock()
	if l.seq == seq {
		l.state = Idle
	}
	l.mu.Unlock()
	return nil
}

// Restore displays the stored dataset, if any, without a network call.
func (l *Loader) Restore(ctx context.Context) (bool, error) {
	snap, ok, err := store.LoadSnapshot(ctx, l.store, l.ns)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	fc, err := event.Decode(snap.GeoJSON)
	if err != nil {
		l.logger.Warn("ignoring unreadable cached events", "session", l.ns, "err", err)
		return false, nil
	}

	l.mu.Lock()
	layer := l.view.Build(fc)
	l.mu.Unlock()

	metrics.ObserveFetch(metrics.OutcomeCached, 0)
	l.logger.Info("restored cached events", "session", l.ns, "date", snap.Date, "markers", layer.Len())
	l.notify(mapview.ChangeLayer)
	return true, nil
}

// Start shows the cached dataset or, without one, loads today after delay.
// The delayed load is skipped when a load was issued in the meantime, so a
// day picked by the user is never replaced by today. The returned function
// cancels a pending delayed load.
func (l *Loader) Start(ctx context.Context, today time.Time, delay time.Duration) func() {
	restored, err := l.Restore(ctx)
	if err != nil {
		l.logger.Warn("read cached events", "session", l.ns, "err", err)
	}
	if restored {
		return func() {}
	}

	timer := time.AfterFunc(delay, func() {
		err := l.load(ctx, today, true)
		switch {
		case errors.Is(err, errSkipped):
			l.logger.Debug("initial load skipped", "session", l.ns)
		case err != nil && !errors.Is(err, ErrStale):
			l.logger.Debug("initial load failed", "session", l.ns, "err", err)
		}
	})
	return func() { timer.Stop() }
}
