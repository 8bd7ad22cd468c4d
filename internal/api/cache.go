package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
)

type CacheStatsBody struct {
	CachedLocations int `json:"cached_locations" doc:"Geocoded addresses in the location cache"`
	StoredSessions  int `json:"stored_sessions" doc:"Sessions with a persisted dataset"`
}

// ClearCacheInput selects what /api/cache/clear wipes.
type ClearCacheInput struct {
	Sessions bool `query:"sessions" doc:"Also drop every session's persisted dataset"`
}

// RegisterCache registers the location cache routes.
func (h *APIHandler) RegisterCache(api huma.API) {
	huma.Get(api, "/api/cache/stats", h.GetCacheStats, huma.OperationTags("cache"))
	huma.Post(api, "/api/cache/clear", h.ClearCache, huma.OperationTags("cache"))
}

func (h *APIHandler) GetCacheStats(ctx context.Context, input *struct{}) (*struct{ Body CacheStatsBody }, error) {
	if h.svc == nil {
		return nil, huma.Error503ServiceUnavailable("Cache not available")
	}
	var body CacheStatsBody
	if h.svc.Locations != nil {
		n, err := h.svc.Locations.Count(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to count cached locations", err)
		}
		body.CachedLocations = n
	}
	if h.svc.Store != nil {
		n, err := h.svc.Store.Count(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to count stored sessions", err)
		}
		body.StoredSessions = n
	}
	return &struct{ Body CacheStatsBody }{Body: body}, nil
}

func (h *APIHandler) ClearCache(ctx context.Context, input *ClearCacheInput) (*struct{ Body MessageBody }, error) {
	if h.svc == nil || h.svc.Locations == nil {
		return nil, huma.Error503ServiceUnavailable("Location cache not available")
	}
	if err := h.svc.Locations.Clear(ctx); err != nil {
		return nil, huma.Error500InternalServerError("Failed to clear location cache", err)
	}
	if input.Sessions && h.svc.Store != nil {
		if err := h.svc.Store.Clear(ctx); err != nil {
			return nil, huma.Error500InternalServerError("Failed to clear stored datasets", err)
		}
	}
	return &struct{ Body MessageBody }{Body: MessageBody{Message: "Cache cleared"}}, nil
}
