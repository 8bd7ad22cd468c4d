package api

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/paulmach/orb"

	"github.com/joeblew999/geo-events/internal/geocode"
	"github.com/joeblew999/geo-events/internal/service"
	"github.com/joeblew999/geo-events/internal/store"
)

const day = `{"type":"FeatureCollection","features":[
 {"type":"Feature","geometry":{"type":"Point","coordinates":[21.01,52.23]},"properties":{"title":"Concert","category":["Jazz"],"link":"https://example.com/1"}},
 {"type":"Feature","geometry":{"type":"Point","coordinates":[19.94,50.06]},"properties":{"title":"Krakow","category":["Jazz"]}},
 {"type":"Feature","geometry":{"type":"Point","coordinates":[21.05,52.25]},"properties":{"title":"No category"}}
]}`

func newTestAPI(t *testing.T) (humatest.TestAPI, *Services) {
	t.Helper()
	dataDir := t.TempDir()
	dir := filepath.Join(dataDir, "sources", "events")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "2025-03-15.geojson"), []byte(day), 0644); err != nil {
		t.Fatal(err)
	}

	svc := &Services{
		Events:    service.NewEventSourceService(dataDir, service.WarsawBound),
		Store:     store.NewMemory(),
		Locations: geocode.NewMemoryCache(),
	}
	cfg := huma.DefaultConfig("test", Version)
	cfg.CreateHooks = nil
	cfg.Transformers = append(cfg.Transformers, LinkTransformer())
	api := humago.New(http.NewServeMux(), cfg)
	RegisterRoutes(api, svc)
	NewInfoHandler(dataDir, "memory", "http://localhost:8000").RegisterRoutes(api)
	return humatest.Wrap(t, api), svc
}

func TestHealth(t *testing.T) {
	api, _ := newTestAPI(t)
	resp := api.Get("/health")
	if resp.Code != http.StatusOK {
		t.Fatalf("status %d", resp.Code)
	}
	var body HealthBody
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" {
		t.Errorf("status=%q, want ok", body.Status)
	}
	if links := strings.Join(resp.Header().Values("Link"), ","); !strings.Contains(links, `rel="events"`) {
		t.Errorf("missing events link: %q", links)
	}
}

func TestEventsGeoJSONFiltersToBound(t *testing.T) {
	api, _ := newTestAPI(t)
	resp := api.Get("/api/events/geojson?day=15&month=3&year=2025")
	if resp.Code != http.StatusOK {
		t.Fatalf("status %d: %s", resp.Code, resp.Body.String())
	}
	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &fc); err != nil {
		t.Fatal(err)
	}
	if fc.Type != "FeatureCollection" {
		t.Errorf("type = %q", fc.Type)
	}
	if len(fc.Features) != 2 {
		t.Fatalf("features = %d, want 2 inside Warsaw", len(fc.Features))
	}
	for _, f := range fc.Features {
		if f.Properties["title"] == "Krakow" {
			t.Error("feature outside the bound was served")
		}
	}
}

func TestEventsMissingDayIsEmpty(t *testing.T) {
	api, _ := newTestAPI(t)
	resp := api.Get("/api/events/geojson?day=16&month=3&year=2025")
	if resp.Code != http.StatusOK {
		t.Fatalf("status %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"features":[]`) {
		t.Errorf("want empty features: %s", resp.Body.String())
	}
}

func TestEventsInvalidDate(t *testing.T) {
	api, _ := newTestAPI(t)
	for _, q := range []string{
		"day=30&month=2&year=2025",
		"day=32&month=1&year=2025",
		"day=1&month=13&year=2025",
		"day=1&month=1",
	} {
		if resp := api.Get("/api/events/geojson?" + q); resp.Code != http.StatusBadRequest && resp.Code != http.StatusUnprocessableEntity {
			t.Errorf("%s: status %d", q, resp.Code)
		}
	}
	if resp := api.Get("/api/events/geojson?day=30&month=2&year=2025"); resp.Code != http.StatusBadRequest {
		t.Errorf("Feb 30: status %d, want 400", resp.Code)
	}
}

func TestEventsList(t *testing.T) {
	api, _ := newTestAPI(t)
	resp := api.Get("/api/events?day=15&month=3&year=2025")
	if resp.Code != http.StatusOK {
		t.Fatalf("status %d: %s", resp.Code, resp.Body.String())
	}
	var body EventsBody
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Date != "15.03.2025" {
		t.Errorf("date = %q", body.Date)
	}
	if body.Total != 2 || len(body.Events) != 2 {
		t.Fatalf("total = %d, events = %d", body.Total, len(body.Events))
	}
	if e := body.Events[0]; e.Title != "Concert" || e.Latitude != 52.23 || e.Longitude != 21.01 {
		t.Errorf("first event = %+v", e)
	}
	if body.Events[1].Category == nil {
		t.Error("missing category should be an empty list")
	}
}

func TestEventsRange(t *testing.T) {
	api, _ := newTestAPI(t)
	resp := api.Get("/api/events-range?start_day=14&start_month=3&start_year=2025&end_day=16&end_month=3&end_year=2025")
	if resp.Code != http.StatusOK {
		t.Fatalf("status %d: %s", resp.Code, resp.Body.String())
	}
	var body EventsRangeBody
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.StartDate != "2025-03-14" || body.EndDate != "2025-03-16" || body.Total != 2 {
		t.Errorf("body = %+v", body)
	}

	resp = api.Get("/api/events-range?start_day=16&start_month=3&start_year=2025&end_day=14&end_month=3&end_year=2025")
	if resp.Code != http.StatusBadRequest {
		t.Errorf("reversed range: status %d", resp.Code)
	}
	resp = api.Get("/api/events-range?start_day=1&start_month=1&start_year=2025&end_day=1&end_month=3&end_year=2025")
	if resp.Code != http.StatusBadRequest {
		t.Errorf("long range: status %d", resp.Code)
	}
}

func TestSources(t *testing.T) {
	api, _ := newTestAPI(t)
	resp := api.Get("/api/v1/sources")
	if resp.Code != http.StatusOK {
		t.Fatalf("status %d", resp.Code)
	}
	var days []service.SourceDay
	if err := json.Unmarshal(resp.Body.Bytes(), &days); err != nil {
		t.Fatal(err)
	}
	if len(days) != 1 || days[0].Name != "2025-03-15.geojson" {
		t.Errorf("sources = %+v", days)
	}
}

func TestCacheStatsAndClear(t *testing.T) {
	api, svc := newTestAPI(t)
	ctx := context.Background()
	for _, ns := range []string{"a", "b"} {
		if err := store.SaveSnapshot(ctx, svc.Store, ns, store.Snapshot{Date: "2025-3-15", GeoJSON: []byte(day)}); err != nil {
			t.Fatal(err)
		}
	}
	for _, addr := range []string{"Plac Defilad 1", "Marszałkowska 10", "Nowy Świat 5"} {
		if err := svc.Locations.Save(ctx, addr, orb.Point{21.0, 52.2}); err != nil {
			t.Fatal(err)
		}
	}

	resp := api.Get("/api/cache/stats")
	if body := resp.Body.String(); !strings.Contains(body, `"cached_locations":3`) || !strings.Contains(body, `"stored_sessions":2`) {
		t.Fatalf("stats = %s", body)
	}

	resp = api.Post("/api/cache/clear")
	if resp.Code != http.StatusOK {
		t.Fatalf("clear status %d", resp.Code)
	}
	resp = api.Get("/api/cache/stats")
	if body := resp.Body.String(); !strings.Contains(body, `"cached_locations":0`) || !strings.Contains(body, `"stored_sessions":2`) {
		t.Errorf("stats after clear = %s", body)
	}

	api.Post("/api/cache/clear?sessions=true")
	resp = api.Get("/api/cache/stats")
	if !strings.Contains(resp.Body.String(), `"stored_sessions":0`) {
		t.Errorf("stats after clearing sessions = %s", resp.Body.String())
	}
}

func TestInfo(t *testing.T) {
	api, _ := newTestAPI(t)
	resp := api.Get("/api/v1/info")
	var body InfoBody
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Name != "geo-events" || body.Store != "memory" {
		t.Errorf("info = %+v", body)
	}
}
