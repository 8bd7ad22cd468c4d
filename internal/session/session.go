// Package session keeps one map view per browser session.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joeblew999/geo-events/internal/category"
	"github.com/joeblew999/geo-events/internal/loader"
	"github.com/joeblew999/geo-events/internal/mapview"
	"github.com/joeblew999/geo-events/internal/metrics"
	"github.com/joeblew999/geo-events/internal/service"
	"github.com/joeblew999/geo-events/internal/store"
)

// CookieName carries the session id.
const CookieName = "geo_events_session"

// ResourceView is the bus resource of view change events.
const ResourceView = "view"

const (
	DefaultIdleTTL     = 30 * time.Minute
	DefaultMaxSessions = 10000
)

// Config wires a Registry.
type Config struct {
	Fetcher loader.Fetcher
	Store   store.Store
	Palette *category.Palette
	Bus     *service.EventBus
	Logger  *slog.Logger
	// Delay before the first load of a session without cached data.
	Delay time.Duration
	// IdleTTL is how long a session without an open stream is kept after it
	// was last used. Defaults to DefaultIdleTTL.
	IdleTTL time.Duration
	// MaxSessions caps the registry. Beyond it the least recently used idle
	// sessions are evicted. Defaults to DefaultMaxSessions.
	MaxSessions int
	// Now defaults to time.Now.
	Now func() time.Time
}

// Session is one browser's map view and loader.
type Session struct {
	ID     string
	View   *mapview.Controller
	Loader *loader.Loader

	ctx       context.Context
	cancel    context.CancelFunc
	bus       *service.EventBus
	delay     time.Duration
	now       func() time.Time
	startOnce sync.Once

	mu   sync.Mutex
	stop func()

	// guarded by Registry.mu
	lastSeen time.Time
	streams  int
}

func (s *Session) publish(c mapview.Change) {
	s.bus.Publish(service.Event{Resource: ResourceView, Action: string(c), ID: s.ID})
}

// Start runs the page-load behaviour once: show the cached dataset or load
// today's events after the configured delay.
func (s *Session) Start() {
	s.startOnce.Do(func() {
		stop := s.Loader.Start(s.ctx, Today(s.now()), s.delay)
		s.mu.Lock()
		s.stop = stop
		s.mu.Unlock()
	})
}

// Load loads a day's events.
func (s *Session) Load(ctx context.Context, day time.Time) error {
	return s.Loader.Load(ctx, day)
}

// Toggle shows or hides one category.
func (s *Session) Toggle(key string, checked bool) map[string]bool {
	vis := s.View.Toggle(category.Normalize(key), checked)
	metrics.ObserveToggle("category", checked)
	s.publish(mapview.ChangeVisibility)
	return vis
}

// ToggleAll shows or hides every category.
func (s *Session) ToggleAll(checked bool) map[string]bool {
	vis := s.View.ToggleAll(checked)
	metrics.ObserveToggle("all", checked)
	s.publish(mapview.ChangeLegend)
	return vis
}

// Popup records a marker's popup opening or closing. Opening a hidden
// marker's popup is refused and the page is told to close it again.
func (s *Session) Popup(markerID string, open bool) bool {
	if !open {
		s.View.ClosePopup(markerID)
		return true
	}
	if s.View.OpenPopup(markerID) {
		return true
	}
	s.publish(mapview.ChangeVisibility)
	return false
}

func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		s.stop()
	}
	s.cancel()
}

// Today truncates t to midnight in its location.
func Today(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Registry holds the sessions of the server.
type Registry struct {
	cfg    Config
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates a registry. Sessions' background loads use a context
// derived from ctx and are cancelled by Close.
func NewRegistry(ctx context.Context, cfg Config) *Registry {
	if cfg.Bus == nil {
		cfg.Bus = service.NewEventBus()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Palette == nil {
		cfg.Palette = category.DefaultPalette()
	}
	if cfg.Store == nil {
		cfg.Store = store.NewMemory()
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultIdleTTL
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}
	ctx, cancel := context.WithCancel(ctx)
	r := &Registry{
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*Session),
	}
	go r.sweepLoop()
	return r
}

func (r *Registry) sweepLoop() {
	interval := r.cfg.IdleTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.cfg.Logger.Debug("idle sessions evicted", "count", n)
			}
		}
	}
}

// Sweep evicts sessions without an open stream that were last used more
// than IdleTTL ago and returns how many it removed.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.cfg.Now().Add(-r.cfg.IdleTTL)
	n := 0
	for id, s := range r.sessions {
		if s.streams == 0 && s.lastSeen.Before(cutoff) {
			r.evictLocked(id, s)
			n++
		}
	}
	if n > 0 {
		metrics.SetSessions(len(r.sessions))
	}
	return n
}

// evictOldestLocked drops least recently used idle sessions until the
// registry has room for one more.
func (r *Registry) evictOldestLocked() {
	for len(r.sessions) >= r.cfg.MaxSessions {
		var oldest *Session
		for _, s := range r.sessions {
			if s.streams > 0 {
				continue
			}
			if oldest == nil || s.lastSeen.Before(oldest.lastSeen) {
				oldest = s
			}
		}
		if oldest == nil {
			return
		}
		r.evictLocked(oldest.ID, oldest)
	}
}

func (r *Registry) evictLocked(id string, s *Session) {
	s.close()
	delete(r.sessions, id)
	r.cfg.Logger.Debug("session evicted", "session", id)
}

// Bus returns the bus view changes are published on.
func (r *Registry) Bus() *service.EventBus {
	return r.cfg.Bus
}

// NewID returns a fresh session id.
func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether id looks like a session id.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Get returns the session for id, creating it on first use.
func (r *Registry) Get(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getLocked(id)
}

func (r *Registry) getLocked(id string) *Session {
	now := r.cfg.Now()
	if s, ok := r.sessions[id]; ok {
		s.lastSeen = now
		return s
	}
	r.evictOldestLocked()

	view := mapview.NewController(r.cfg.Palette, r.cfg.Logger)
	ctx, cancel := context.WithCancel(r.ctx)
	s := &Session{
		ID:       id,
		View:     view,
		ctx:      ctx,
		cancel:   cancel,
		bus:      r.cfg.Bus,
		delay:    r.cfg.Delay,
		now:      r.cfg.Now,
		lastSeen: now,
	}
	s.Loader = loader.New(loader.Config{
		Namespace: id,
		Fetcher:   r.cfg.Fetcher,
		Store:     r.cfg.Store,
		View:      view,
		Logger:    r.cfg.Logger,
		Notify:    s.publish,
	})
	r.sessions[id] = s
	metrics.SetSessions(len(r.sessions))
	r.cfg.Logger.Debug("session created", "session", id)
	return s
}

// Attach returns the session for id and keeps it from eviction until the
// returned release function is called. Streams hold sessions this way.
func (r *Registry) Attach(id string) (*Session, func()) {
	r.mu.Lock()
	s := r.getLocked(id)
	s.streams++
	r.mu.Unlock()

	var once sync.Once
	return s, func() {
		once.Do(func() {
			r.mu.Lock()
			s.streams--
			s.lastSeen = r.cfg.Now()
			r.mu.Unlock()
		})
	}
}

// Len returns the number of sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close cancels pending loads of every session.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		s.close()
	}
	r.cancel()
}
