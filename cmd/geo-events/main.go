package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/geo-events/internal/category"
	"github.com/joeblew999/geo-events/internal/eventsapi"
	"github.com/joeblew999/geo-events/internal/geocode"
	"github.com/joeblew999/geo-events/internal/loader"
	"github.com/joeblew999/geo-events/internal/logging"
	"github.com/joeblew999/geo-events/internal/mapview"
	"github.com/joeblew999/geo-events/internal/server"
	"github.com/joeblew999/geo-events/internal/service"
	"github.com/joeblew999/geo-events/internal/store"
)

// Options defines all CLI flags and env vars for the server.
// Flags: --host, --port, --data-dir, --web-dir, --api-url, --store, ...
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATA_DIR, SERVICE_API_URL, ...
type Options struct {
	Host         string `doc:"Host to bind to" default:"0.0.0.0"`
	Port         int    `doc:"Port to listen on" short:"p" default:"8086"`
	DataDir      string `doc:"Directory for event sources and stored datasets" default:".data"`
	WebDir       string `doc:"Serve templates and static files from this web/ directory instead of the embedded ones"`
	APIURL       string `name:"api-url" doc:"Events API base URL; empty serves events from the data directory"`
	Palette      string `doc:"Category colour palette YAML file; empty uses the built-in palette"`
	Store        string `doc:"Dataset store: memory, file, duckdb or redis" default:"file"`
	RedisURL     string `doc:"Redis URL for the redis store" default:"redis://localhost:6379/0"`
	FetchTimeout int    `doc:"Events API timeout in seconds" default:"30"`
	LoadDelay    int    `doc:"Delay of the first load of a new session in milliseconds" default:"500"`
	SessionTTL   int    `name:"session-ttl" doc:"Minutes an idle session without an open stream is kept" default:"30"`
	MaxSessions  int    `doc:"Maximum number of sessions held in memory" default:"10000"`
	Geocoder     string `doc:"Geocoder for events that only carry an address: nominatim, or empty for none" default:"nominatim"`
	GeocoderURL  string `name:"geocoder-url" doc:"Nominatim base URL" default:"https://nominatim.openstreetmap.org"`
	Region       string `doc:"Appended to every geocoded address" default:"Warszawa, Polska"`
	LocCache     string `name:"location-cache" doc:"Location cache: memory or duckdb" default:"duckdb"`
	BBox         string `name:"bbox" doc:"Service area as minLon,minLat,maxLon,maxLat; empty means Warsaw"`
	LogLevel     string `doc:"Log level: debug, info, warn, error" default:"info"`
	LogFormat    string `doc:"Log format: text or json" default:"text"`
}

func (o *Options) serverConfig(logger *slog.Logger) server.Config {
	return server.Config{
		Host:          o.Host,
		Port:          fmt.Sprintf("%d", o.Port),
		DataDir:       o.DataDir,
		WebDir:        o.WebDir,
		APIURL:        o.APIURL,
		Palette:       o.Palette,
		Store:         o.Store,
		RedisURL:      o.RedisURL,
		FetchTimeout:  time.Duration(o.FetchTimeout) * time.Second,
		LoadDelay:     time.Duration(o.LoadDelay) * time.Millisecond,
		SessionTTL:    time.Duration(o.SessionTTL) * time.Minute,
		MaxSessions:   o.MaxSessions,
		Geocoder:      o.Geocoder,
		GeocoderURL:   o.GeocoderURL,
		GeocodeRegion: o.Region,
		LocationCache: o.LocCache,
		BBox:          o.BBox,
		Logger:        logger,
	}
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		logger := logging.NewLogger(logging.Config{Level: opts.LogLevel, Format: opts.LogFormat})
		ctx, cancel := context.WithCancel(context.Background())

		var srv *server.Server
		httpServer := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", opts.Host, opts.Port),
			ReadHeaderTimeout: 10 * time.Second,
		}

		hooks.OnStart(func() {
			var err error
			srv, err = server.New(ctx, opts.serverConfig(logger))
			if err != nil {
				logger.Error("start server", "err", err)
				os.Exit(1)
			}
			httpServer.Handler = srv

			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("geo-events server starting...\n")
			fmt.Printf("  Map:     %s/\n", baseURL)
			fmt.Printf("  Data:    %s\n", opts.DataDir)
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Printf("  Metrics: %s/metrics\n", baseURL)
			fmt.Println()

			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("server error", "err", err)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("shutdown", "err", err)
			}
			cancel()
			if srv != nil {
				if err := srv.Close(); err != nil {
					logger.Warn("close", "err", err)
				}
			}
		})
	})

	cli.Root().Use = "geo-events"
	cli.Root().Short = "Map of the day's events, coloured and filtered by category"
	cli.Root().Version = "1.0.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			cfg := opts.serverConfig(logging.New(os.Stderr, logging.Config{Level: "error"}))
			cfg.Store = store.BackendMemory
			cfg.LocationCache = geocode.CacheMemory
			srv, err := server.New(context.Background(), cfg)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error creating server: %v\n", err)
				os.Exit(1)
			}
			defer srv.Close()
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling spec: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// fetch subcommand: load one day the way the map does and print the legend
	fetchCmd := &cobra.Command{
		Use:   "fetch",
		Short: "Load a day's events and print the category breakdown",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			logger := logging.NewLogger(logging.Config{Level: opts.LogLevel, Format: opts.LogFormat})
			date, _ := cmd.Flags().GetString("date")
			if err := fetch(cmd.Context(), opts, logger, date); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		}),
	}
	fetchCmd.Flags().StringP("date", "d", "", "Day to load as YYYY-MM-DD (default today)")
	cli.Root().AddCommand(fetchCmd)

	cli.Run()
}

func fetch(ctx context.Context, opts *Options, logger *slog.Logger, date string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	day := time.Now()
	if date != "" {
		d, err := time.ParseInLocation("2006-01-02", date, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --date %q: %w", date, err)
		}
		day = d
	}

	palette := category.DefaultPalette()
	if opts.Palette != "" {
		p, err := category.LoadPalette(opts.Palette)
		if err != nil {
			return err
		}
		palette = p
	}

	var fetcher loader.Fetcher
	if opts.APIURL != "" {
		fetcher = eventsapi.New(opts.APIURL, time.Duration(opts.FetchTimeout)*time.Second)
	} else {
		bound := service.WarsawBound
		if opts.BBox != "" {
			b, err := service.ParseBound(opts.BBox)
			if err != nil {
				return err
			}
			bound = b
		}
		events := service.NewEventSourceService(opts.DataDir, bound)
		if opts.Geocoder == server.GeocoderNominatim {
			locs, err := geocode.OpenCache(ctx, opts.LocCache, opts.DataDir)
			if err != nil {
				return err
			}
			defer locs.Close()
			upstream := geocode.NewNominatim(opts.GeocoderURL, opts.Region, time.Duration(opts.FetchTimeout)*time.Second, logger)
			events.WithGeocoder(geocode.NewCached(upstream, locs, logger), logger)
		}
		fetcher = events
	}

	view := mapview.NewController(palette, logger)
	l := loader.New(loader.Config{
		Namespace: "cli",
		Fetcher:   fetcher,
		Store:     store.NewMemory(),
		View:      view,
		Logger:    logger,
	})
	if err := l.Load(ctx, day); err != nil {
		return err
	}

	counts := map[string]int{}
	for _, m := range view.Layer().Markers {
		counts[m.Key]++
	}

	fmt.Println(view.Status().Message)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CATEGORY\tCOLOUR\tEVENTS")
	for _, row := range view.Legend() {
		fmt.Fprintf(w, "%s\t%s\t%d\n", row.Label, row.Color, counts[row.Key])
	}
	return w.Flush()
}
