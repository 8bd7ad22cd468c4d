package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/geo-events/internal/event"
)

const dayLayout = "2006-01-02"

// Geocoder resolves an event address to a point.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (orb.Point, bool, error)
}

// EventSourceService serves events from per-day GeoJSON files in
// <dataDir>/sources/events, named YYYY-MM-DD.geojson. Records without a
// geometry are placed by geocoding their address.
type EventSourceService struct {
	sourcesDir string
	bound      orb.Bound
	geocoder   Geocoder
	logger     *slog.Logger
}

// NewEventSourceService creates a source limited to bound.
func NewEventSourceService(dataDir string, bound orb.Bound) *EventSourceService {
	return &EventSourceService{
		sourcesDir: filepath.Join(dataDir, "sources", "events"),
		bound:      bound,
		logger:     slog.Default(),
	}
}

// WithGeocoder makes the source geocode records that only carry an address.
func (s *EventSourceService) WithGeocoder(g Geocoder, logger *slog.Logger) *EventSourceService {
	s.geocoder = g
	if logger != nil {
		s.logger = logger
	}
	return s
}

// SourcesDir returns the path to the day files.
func (s *EventSourceService) SourcesDir() string {
	return s.sourcesDir
}

// DayFile returns the file name for a day.
func DayFile(day time.Time) string {
	return day.Format(dayLayout) + ".geojson"
}

// Day returns the events of one day that have a point inside the service
// area. A day without a file has no events.
func (s *EventSourceService) Day(ctx context.Context, day time.Time) (*geojson.FeatureCollection, error) {
	out := geojson.NewFeatureCollection()

	data, err := os.ReadFile(filepath.Join(s.sourcesDir, DayFile(day)))
	if errors.Is(err, os.ErrNotExist) {
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read events for %s: %w", day.Format(dayLayout), err)
	}

	fc, err := event.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("events for %s: %w", day.Format(dayLayout), err)
	}
	for _, f := range fc.Features {
		if f.Geometry == nil {
			if err := s.place(ctx, f); err != nil {
				return nil, err
			}
		}
		pt, ok := event.Point(f)
		if !ok || !s.bound.Contains(pt) {
			continue
		}
		if f.Properties == nil {
			f.Properties = geojson.Properties{}
		}
		if f.Properties[event.PropCategory] == nil {
			f.Properties[event.PropCategory] = []string{}
		}
		out.Append(f)
	}
	return out, nil
}

// place sets the geometry of an address-only feature. Unknown addresses and
// lookup failures leave it unplaced; only a cancelled ctx is an error.
func (s *EventSourceService) place(ctx context.Context, f *geojson.Feature) error {
	if s.geocoder == nil {
		return nil
	}
	address := event.Props(f.Properties).Address()
	pt, ok, err := s.geocoder.Geocode(ctx, address)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn("geocode event", "address", address, "err", err)
		return nil
	}
	if ok {
		f.Geometry = pt
	}
	return nil
}

// FetchDay returns a day's events encoded as GeoJSON. It lets the map load
// from this process when no remote events API is configured.
func (s *EventSourceService) FetchDay(ctx context.Context, day time.Time) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fc, err := s.Day(ctx, day)
	if err != nil {
		return nil, err
	}
	return fc.MarshalJSON()
}

// Items flattens a day's events.
func (s *EventSourceService) Items(ctx context.Context, day time.Time) ([]EventItem, error) {
	fc, err := s.Day(ctx, day)
	if err != nil {
		return nil, err
	}
	items := make([]EventItem, 0, len(fc.Features))
	for _, f := range fc.Features {
		pt, _ := event.Point(f)
		p := event.Props(f.Properties)
		cats := p.Categories()
		if cats == nil {
			cats = []string{}
		}
		items = append(items, EventItem{
			Title:     p.Title(),
			Address:   p.Address(),
			District:  p.District(),
			Date:      f.Properties.MustString(event.PropDate, ""),
			StartDate: f.Properties.MustString(event.PropStartDate, ""),
			EndDate:   f.Properties.MustString(event.PropEndDate, ""),
			Time:      p.Time(),
			Image:     p.Image(),
			Link:      p.Link(),
			Category:  cats,
			Latitude:  pt.Lat(),
			Longitude: pt.Lon(),
		})
	}
	return items, nil
}

// List returns the available day files, oldest first.
func (s *EventSourceService) List() ([]SourceDay, error) {
	entries, err := os.ReadDir(s.sourcesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []SourceDay{}, nil
		}
		return nil, err
	}

	days := []SourceDay{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".geojson") {
			continue
		}
		d, err := time.Parse(dayLayout, strings.TrimSuffix(entry.Name(), ".geojson"))
		if err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		days = append(days, SourceDay{Name: entry.Name(), Date: d, Size: formatSize(info.Size())})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })
	return days, nil
}

// ParseBound parses "minLon,minLat,maxLon,maxLat".
func ParseBound(s string) (orb.Bound, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return orb.Bound{}, fmt.Errorf("bbox %q: want minLon,minLat,maxLon,maxLat", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return orb.Bound{}, fmt.Errorf("bbox %q: %w", s, err)
		}
		v[i] = f
	}
	b := orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}
	if b.Min.X() > b.Max.X() || b.Min.Y() > b.Max.Y() {
		return orb.Bound{}, fmt.Errorf("bbox %q: min exceeds max", s)
	}
	return b, nil
}

// formatSize returns a human-readable file size.
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
