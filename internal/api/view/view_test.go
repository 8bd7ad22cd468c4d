package view

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/danielgtaylor/huma/v2/humatest"

	"github.com/joeblew999/geo-events/internal/logging"
	"github.com/joeblew999/geo-events/internal/session"
	"github.com/joeblew999/geo-events/internal/store"
	"github.com/joeblew999/geo-events/internal/templates"
	"github.com/joeblew999/geo-events/web"
)

const events = `{"type":"FeatureCollection","features":[
 {"type":"Feature","geometry":{"type":"Point","coordinates":[21.0,52.2]},"properties":{"title":"Concert","category":["Jazz"]}},
 {"type":"Feature","geometry":{"type":"Point","coordinates":[21.1,52.3]},"properties":{"title":"Match","category":["Sport"]}}
]}`

type recordingFetcher struct {
	mu   sync.Mutex
	days []time.Time
}

func (f *recordingFetcher) FetchDay(_ context.Context, day time.Time) ([]byte, error) {
	f.mu.Lock()
	f.days = append(f.days, day)
	f.mu.Unlock()
	return []byte(events), nil
}

func (f *recordingFetcher) calls() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.days...)
}

type fixture struct {
	mux      *http.ServeMux
	api      humatest.TestAPI
	sessions *session.Registry
	fetcher  *recordingFetcher
}

func newFixture(t *testing.T, delay time.Duration) *fixture {
	t.Helper()
	renderer, err := templates.New(web.FS)
	if err != nil {
		t.Fatalf("templates.New: %v", err)
	}
	fetcher := &recordingFetcher{}
	sessions := session.NewRegistry(context.Background(), session.Config{
		Fetcher: fetcher,
		Store:   store.NewMemory(),
		Logger:  logging.Discard(),
		Delay:   delay,
	})
	t.Cleanup(sessions.Close)

	mux := http.NewServeMux()
	cfg := huma.DefaultConfig("test", "1.0.0")
	cfg.CreateHooks = nil
	api := humago.New(mux, cfg)
	NewHandler(sessions, renderer, logging.Discard()).RegisterRoutes(api)

	return &fixture{mux: mux, api: humatest.Wrap(t, api), sessions: sessions, fetcher: fetcher}
}

func cookie(id string) string {
	return "Cookie: " + session.CookieName + "=" + id
}

func TestActionsRequireSession(t *testing.T) {
	f := newFixture(t, time.Hour)

	for _, path := range []string{
		"/api/v1/view/date",
		"/api/v1/view/categories?category=jazz&checked=false",
		"/api/v1/view/categories/all?checked=false",
		"/api/v1/view/popup?marker=m1-0&open=true",
	} {
		resp := f.api.Post(path, map[string]any{})
		if resp.Code != http.StatusBadRequest {
			t.Errorf("%s without cookie: status %d", path, resp.Code)
		}
		resp = f.api.Post(path, cookie("not-a-uuid"), map[string]any{})
		if resp.Code != http.StatusBadRequest {
			t.Errorf("%s with bad cookie: status %d", path, resp.Code)
		}
	}
}

func TestDateLoadsEvents(t *testing.T) {
	f := newFixture(t, time.Hour)
	id := session.NewID()

	resp := f.api.Post("/api/v1/view/date", cookie(id), map[string]any{"date": "2025-03-15"})
	if resp.Code >= 300 {
		t.Fatalf("status %d: %s", resp.Code, resp.Body.String())
	}

	calls := f.fetcher.calls()
	if len(calls) != 1 || calls[0].Format(DateLayout) != "2025-03-15" {
		t.Fatalf("fetches = %v", calls)
	}
	view := f.sessions.Get(id).View
	if n := view.Layer().Len(); n != 2 {
		t.Errorf("markers = %d, want 2", n)
	}
	if st := view.Status(); st.Message != "Loaded 2 events" {
		t.Errorf("status = %+v", st)
	}
}

func TestDateEmptyShowsError(t *testing.T) {
	f := newFixture(t, time.Hour)
	id := session.NewID()

	resp := f.api.Post("/api/v1/view/date", cookie(id), map[string]any{"date": ""})
	if resp.Code >= 300 {
		t.Fatalf("status %d: %s", resp.Code, resp.Body.String())
	}
	if len(f.fetcher.calls()) != 0 {
		t.Error("no request should be made without a date")
	}
	if st := f.sessions.Get(id).View.Status(); st.Message != "Select a date!" {
		t.Errorf("status = %+v", st)
	}
}

func TestDateInvalid(t *testing.T) {
	f := newFixture(t, time.Hour)
	resp := f.api.Post("/api/v1/view/date", cookie(session.NewID()), map[string]any{"date": "15.03.2025"})
	if resp.Code != http.StatusBadRequest {
		t.Errorf("status %d, want 400", resp.Code)
	}
}

func TestCategoryToggles(t *testing.T) {
	f := newFixture(t, time.Hour)
	id := session.NewID()
	f.api.Post("/api/v1/view/date", cookie(id), map[string]any{"date": "2025-03-15"})

	resp := f.api.Post("/api/v1/view/categories?category=Jazz&checked=false", cookie(id))
	if resp.Code >= 300 {
		t.Fatalf("status %d: %s", resp.Code, resp.Body.String())
	}
	for _, m := range f.sessions.Get(id).View.Layer().Markers {
		want := m.Key != "jazz"
		if m.Visible != want {
			t.Errorf("marker %s (%s) visible=%v, want %v", m.ID, m.Key, m.Visible, want)
		}
	}

	resp = f.api.Post("/api/v1/view/categories/all?checked=false", cookie(id))
	if resp.Code >= 300 {
		t.Fatalf("status %d: %s", resp.Code, resp.Body.String())
	}
	if active := f.sessions.Get(id).View.Active(); len(active) != 0 {
		t.Errorf("active = %v after deselect all", active)
	}
}

func TestPopupFollowsVisibility(t *testing.T) {
	f := newFixture(t, time.Hour)
	id := session.NewID()
	f.api.Post("/api/v1/view/date", cookie(id), map[string]any{"date": "2025-03-15"})
	view := f.sessions.Get(id).View
	jazz := view.Layer().Markers[0].ID

	resp := f.api.Post("/api/v1/view/popup?marker="+jazz+"&open=true", cookie(id))
	if resp.Code >= 300 || !strings.Contains(resp.Body.String(), `"open":true`) {
		t.Fatalf("open: %d %s", resp.Code, resp.Body.String())
	}
	if got := view.OpenPopupID(); got != jazz {
		t.Fatalf("open popup = %q, want %q", got, jazz)
	}

	f.api.Post("/api/v1/view/categories?category=jazz&checked=false", cookie(id))
	if got := view.OpenPopupID(); got != "" {
		t.Fatalf("hiding the marker left popup %q open", got)
	}

	resp = f.api.Post("/api/v1/view/popup?marker="+jazz+"&open=true", cookie(id))
	if !strings.Contains(resp.Body.String(), `"open":false`) {
		t.Fatalf("hidden marker popup: %s", resp.Body.String())
	}
}

func TestStreamPushesLoadedLayer(t *testing.T) {
	f := newFixture(t, time.Millisecond)
	srv := httptest.NewServer(f.mux)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/view/stream", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: session.NewID()})

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("content type %q", ct)
	}

	want := map[string]bool{
		"#legend-content":    false,
		"eventMap.showLayer": false,
		"Loaded 2 events":    false,
	}
	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		for k := range want {
			if strings.Contains(line, k) {
				want[k] = true
			}
		}
		if want["#legend-content"] && want["eventMap.showLayer"] && want["Loaded 2 events"] {
			return
		}
	}
	t.Fatalf("stream ended before all pushes were seen: %v (err %v)", want, sc.Err())
}
