package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
)

// Version of the service and its API.
const Version = "1.0.0"

type InfoHandler struct {
	dataDir string
	store   string
	apiURL  string
}

func NewInfoHandler(dataDir, store, apiURL string) *InfoHandler {
	return &InfoHandler{dataDir: dataDir, store: store, apiURL: apiURL}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name      string            `json:"name" doc:"Service name"`
	Version   string            `json:"version" doc:"Service version"`
	DataDir   string            `json:"data_dir" doc:"Data directory path"`
	Store     string            `json:"store" doc:"Store backend for persisted datasets" example:"duckdb"`
	EventsAPI string            `json:"events_api" doc:"Base URL the map loads events from"`
	Endpoints map[string]string `json:"endpoints" doc:"Example requests"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:      "geo-events",
		Version:   Version,
		DataDir:   h.dataDir,
		Store:     h.store,
		EventsAPI: h.apiURL,
		Endpoints: map[string]string{
			"events":         "/api/events?day=29&month=1&year=2026",
			"events_geojson": "/api/events/geojson?day=29&month=1&year=2026",
			"events_range":   "/api/events-range?start_day=29&start_month=1&start_year=2026&end_day=5&end_month=2&end_year=2026",
			"cache_stats":    "/api/cache/stats",
			"docs":           "/docs",
		},
	}}, nil
}
