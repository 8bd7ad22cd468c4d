// Package eventsapi fetches geocoded events from the remote events API.
package eventsapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// GeoJSONPath is the events endpoint relative to the API base URL.
const GeoJSONPath = "/api/events/geojson"

// maxBody caps the size of a response body read into memory.
const maxBody = 32 << 20

// StatusError reports a non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error! status: %d", e.Code)
}

// Client calls the events API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New creates a client with the given request timeout.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// DayURL builds the request URL for a day.
func (c *Client) DayURL(day time.Time) string {
	q := url.Values{}
	q.Set("day", strconv.Itoa(day.Day()))
	q.Set("month", strconv.Itoa(int(day.Month())))
	q.Set("year", strconv.Itoa(day.Year()))
	return c.BaseURL + GeoJSONPath + "?" + q.Encode()
}

// FetchDay returns the raw FeatureCollection body for a day.
func (c *Client) FetchDay(ctx context.Context, day time.Time) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.DayURL(day), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/geo+json, application/json")

	hc := c.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
