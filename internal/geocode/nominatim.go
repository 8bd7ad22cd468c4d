package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/paulmach/orb"
	"golang.org/x/time/rate"
)

const (
	// DefaultNominatimURL is the public OpenStreetMap instance.
	DefaultNominatimURL = "https://nominatim.openstreetmap.org"
	// DefaultRegion narrows street addresses to the city the listings cover.
	DefaultRegion = "Warszawa, Polska"

	userAgent   = "geo-events/1.0"
	maxAttempts = 3
)

// Nominatim resolves addresses with an OpenStreetMap Nominatim search API.
// Requests are limited to one per second as the public instance requires.
type Nominatim struct {
	BaseURL    string
	Region     string // appended to every query when set
	HTTPClient *http.Client
	Limiter    *rate.Limiter
	Logger     *slog.Logger

	// Backoff before retry n (1-based). Defaults to 500ms doubling.
	Backoff func(n int) time.Duration
}

// NewNominatim creates a client for baseURL, or the public instance when empty.
func NewNominatim(baseURL, region string, timeout time.Duration, logger *slog.Logger) *Nominatim {
	if baseURL == "" {
		baseURL = DefaultNominatimURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Nominatim{
		BaseURL:    baseURL,
		Region:     region,
		HTTPClient: &http.Client{Timeout: timeout},
		Limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
		Logger:     logger,
	}
}

func (n *Nominatim) searchURL(address string) string {
	q := address
	if n.Region != "" {
		q += ", " + n.Region
	}
	v := url.Values{}
	v.Set("q", q)
	v.Set("format", "jsonv2")
	v.Set("limit", "1")
	return n.BaseURL + "/search?" + v.Encode()
}

type place struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// retryable reports a response worth asking again.
type retryable struct{ code int }

func (e retryable) Error() string { return fmt.Sprintf("nominatim: status %d", e.code) }

func (n *Nominatim) Geocode(ctx context.Context, address string) (orb.Point, bool, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			wait := n.backoff(attempt - 1)
			n.Logger.Debug("geocode retry", "address", address, "attempt", attempt, "in", wait, "err", lastErr)
			select {
			case <-ctx.Done():
				return orb.Point{}, false, ctx.Err()
			case <-time.After(wait):
			}
		}

		pt, ok, err := n.search(ctx, address)
		if err == nil {
			return pt, ok, nil
		}
		if ctx.Err() != nil {
			return orb.Point{}, false, ctx.Err()
		}
		lastErr = err
		if !shouldRetry(err) {
			break
		}
	}
	return orb.Point{}, false, fmt.Errorf("geocode %q: %w", address, lastErr)
}

func (n *Nominatim) backoff(retry int) time.Duration {
	if n.Backoff != nil {
		return n.Backoff(retry)
	}
	return 500 * time.Millisecond << (retry - 1)
}

func (n *Nominatim) search(ctx context.Context, address string) (orb.Point, bool, error) {
	if n.Limiter != nil {
		if err := n.Limiter.Wait(ctx); err != nil {
			return orb.Point{}, false, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.searchURL(address), nil)
	if err != nil {
		return orb.Point{}, false, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	hc := n.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return orb.Point{}, false, netErr{err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		io.Copy(io.Discard, resp.Body)
		return orb.Point{}, false, retryable{resp.StatusCode}
	case resp.StatusCode != http.StatusOK:
		return orb.Point{}, false, fmt.Errorf("nominatim: status %d", resp.StatusCode)
	}

	var places []place
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&places); err != nil {
		return orb.Point{}, false, fmt.Errorf("decode nominatim response: %w", err)
	}
	if len(places) == 0 {
		return orb.Point{}, false, nil
	}
	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return orb.Point{}, false, fmt.Errorf("nominatim lat %q: %w", places[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return orb.Point{}, false, fmt.Errorf("nominatim lon %q: %w", places[0].Lon, err)
	}
	return orb.Point{lon, lat}, true, nil
}

// netErr marks transport failures.
type netErr struct{ error }

func (e netErr) Unwrap() error { return e.error }

// shouldRetry reports transport failures, rate limiting and server errors.
func shouldRetry(err error) bool {
	switch err.(type) {
	case netErr, retryable:
		return true
	}
	return false
}
