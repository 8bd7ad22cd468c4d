// Package server wires the event map page, its Datastar handlers and the
// events API into one HTTP handler.
package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/paulmach/orb"

	"github.com/joeblew999/geo-events/internal/api"
	"github.com/joeblew999/geo-events/internal/api/view"
	"github.com/joeblew999/geo-events/internal/category"
	"github.com/joeblew999/geo-events/internal/eventsapi"
	"github.com/joeblew999/geo-events/internal/geocode"
	"github.com/joeblew999/geo-events/internal/loader"
	"github.com/joeblew999/geo-events/internal/logging"
	"github.com/joeblew999/geo-events/internal/metrics"
	"github.com/joeblew999/geo-events/internal/service"
	"github.com/joeblew999/geo-events/internal/session"
	"github.com/joeblew999/geo-events/internal/store"
	"github.com/joeblew999/geo-events/internal/templates"
	"github.com/joeblew999/geo-events/web"
)

// DatastarVersion is the Datastar bundle the page loads.
const DatastarVersion = "1.0.0"

// GeocoderNominatim selects the OpenStreetMap Nominatim geocoder.
const GeocoderNominatim = "nominatim"

// MinDate is the earliest day the date picker offers.
const MinDate = "2020-01-01"

// Config holds the server configuration.
type Config struct {
	Host    string
	Port    string
	DataDir string
	WebDir  string // optional on-disk web/ directory overriding the embedded assets
	// APIURL is the events API base URL. Empty serves events from DataDir in-process.
	APIURL       string
	Palette      string // optional palette YAML file
	Store        string // memory, file, duckdb or redis
	RedisURL     string
	FetchTimeout time.Duration
	LoadDelay    time.Duration
	SessionTTL   time.Duration // idle sessions are evicted after this
	MaxSessions  int
	// Geocoder places address-only events: "nominatim", or empty for none.
	Geocoder      string
	GeocoderURL   string
	GeocodeRegion string
	LocationCache string       // memory or duckdb
	BBox          string       // minLon,minLat,maxLon,maxLat; empty means Warsaw
	Logger        *slog.Logger
}

// Server is the geo-events HTTP server.
type Server struct {
	config   Config
	logger   *slog.Logger
	mux      *http.ServeMux
	handler  http.Handler
	humaAPI  huma.API
	store    store.Store
	locs     geocode.Cache
	sessions *session.Registry
	events   *service.EventSourceService
	renderer *templates.Renderer
	static   fs.FS
	center   orb.Point
}

// New creates a server. ctx bounds background loads; Close releases the rest.
func New(ctx context.Context, cfg Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	palette := category.DefaultPalette()
	if cfg.Palette != "" {
		p, err := category.LoadPalette(cfg.Palette)
		if err != nil {
			return nil, err
		}
		palette = p
	}

	bound, center := service.WarsawBound, service.WarsawCenter
	if cfg.BBox != "" {
		b, err := service.ParseBound(cfg.BBox)
		if err != nil {
			return nil, err
		}
		bound, center = b, b.Center()
	}
	events := service.NewEventSourceService(cfg.DataDir, bound)

	locs, err := geocode.OpenCache(ctx, cfg.LocationCache, cfg.DataDir)
	if err != nil {
		return nil, err
	}
	switch cfg.Geocoder {
	case "":
	case GeocoderNominatim:
		upstream := geocode.NewNominatim(cfg.GeocoderURL, cfg.GeocodeRegion, cfg.FetchTimeout, logger)
		events.WithGeocoder(geocode.NewCached(upstream, locs, logger), logger)
	default:
		locs.Close()
		return nil, fmt.Errorf("unknown geocoder %q", cfg.Geocoder)
	}

	var fetcher loader.Fetcher = events
	if cfg.APIURL != "" {
		fetcher = eventsapi.New(cfg.APIURL, cfg.FetchTimeout)
	}

	renderer, static, err := assets(cfg.WebDir)
	if err != nil {
		locs.Close()
		return nil, err
	}

	st, err := store.Open(ctx, store.Config{
		Backend:  cfg.Store,
		DataDir:  cfg.DataDir,
		RedisURL: cfg.RedisURL,
	})
	if err != nil {
		locs.Close()
		return nil, err
	}

	mux := http.NewServeMux()

	humaConfig := huma.DefaultConfig("geo-events API", api.Version)
	humaConfig.Info.Description = "Events on a map: per-day geocoded events, category filters and the map view stream."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, api.LinkTransformer())

	s := &Server{
		config:   cfg,
		logger:   logger,
		mux:      mux,
		humaAPI:  humago.New(mux, humaConfig),
		store:    st,
		locs:     locs,
		events:   events,
		renderer: renderer,
		static:   static,
		center:   center,
		sessions: session.NewRegistry(ctx, session.Config{
			Fetcher:     fetcher,
			Store:       st,
			Palette:     palette,
			Logger:      logger,
			Delay:       cfg.LoadDelay,
			IdleTTL:     cfg.SessionTTL,
			MaxSessions: cfg.MaxSessions,
		}),
	}
	s.routes()
	s.handler = logging.Requests(logger)(mux)

	logger.Info("server ready",
		"store", storeName(cfg.Store),
		"events_api", cfg.APIURL,
		"geocoder", cfg.Geocoder,
		"categories", len(palette.Keys()),
	)
	return s, nil
}

func assets(webDir string) (*templates.Renderer, fs.FS, error) {
	if webDir == "" {
		r, err := templates.New(web.FS)
		if err != nil {
			return nil, nil, fmt.Errorf("parse embedded templates: %w", err)
		}
		static, err := fs.Sub(web.FS, "static")
		if err != nil {
			return nil, nil, err
		}
		return r, static, nil
	}
	r, err := templates.NewFromDir(webDir)
	if err != nil {
		return nil, nil, fmt.Errorf("parse templates in %s: %w", webDir, err)
	}
	return r, os.DirFS(filepath.Join(webDir, "static")), nil
}

func storeName(backend string) string {
	if backend == "" {
		return store.BackendMemory
	}
	return backend
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// OpenAPI returns the API description.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Sessions returns the session registry.
func (s *Server) Sessions() *session.Registry {
	return s.sessions
}

// Close cancels pending loads and closes the stores.
func (s *Server) Close() error {
	s.sessions.Close()
	return errors.Join(s.store.Close(), s.locs.Close())
}

func (s *Server) routes() {
	// Huma REST API routes (OpenAPI-documented JSON endpoints)
	api.RegisterRoutes(s.humaAPI, &api.Services{Events: s.events, Store: s.store, Locations: s.locs})
	api.NewInfoHandler(s.config.DataDir, storeName(s.config.Store), s.config.APIURL).RegisterRoutes(s.humaAPI)

	// Datastar SSE routes of the map page
	view.NewHandler(s.sessions, s.renderer, s.logger).RegisterRoutes(s.humaAPI)

	s.mux.Handle("/metrics", metrics.Handler())
	s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(s.static))))
	s.mux.HandleFunc("/", s.handleRoot)
}

// PageData feeds the page template.
type PageData struct {
	Title           string
	Today           string
	DatastarVersion string
	Empty           map[string]string
	CenterLat       float64
	CenterLon       float64
	MinDate         string
	MaxDate         string
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if c, err := r.Cookie(session.CookieName); err != nil || !session.ValidID(c.Value) {
		http.SetCookie(w, &http.Cookie{
			Name:     session.CookieName,
			Value:    session.NewID(),
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
			MaxAge:   int((365 * 24 * time.Hour).Seconds()),
		})
	}

	for _, link := range api.RootLinks() {
		w.Header().Add("Link", link)
	}

	now := time.Now()
	html, err := s.renderer.Render("page", PageData{
		Title:           "Events map",
		Today:           session.Today(now).Format(view.DateLayout),
		DatastarVersion: DatastarVersion,
		Empty:           map[string]string{"Message": "No events"},
		CenterLat:       s.center.Lat(),
		CenterLon:       s.center.Lon(),
		MinDate:         MinDate,
		MaxDate:         fmt.Sprintf("%d-12-31", now.Year()+1),
	})
	if err != nil {
		s.logger.Error("render page", "err", err)
		http.Error(w, "render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, html)
}
