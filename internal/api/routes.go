// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"fmt"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/geo-events/internal/geocode"
	"github.com/joeblew999/geo-events/internal/service"
	"github.com/joeblew999/geo-events/internal/store"
)

// MaxRangeDays bounds /api/events-range.
const MaxRangeDays = 31

// Services holds the service dependencies for API handlers.
type Services struct {
	Events    *service.EventSourceService
	Store     store.Store
	Locations geocode.Cache
}

// Types

// DayInput selects one calendar day.
type DayInput struct {
	Day   int `query:"day" required:"true" minimum:"1" maximum:"31" doc:"Day of month" example:"15"`
	Month int `query:"month" required:"true" minimum:"1" maximum:"12" doc:"Month" example:"3"`
	Year  int `query:"year" required:"true" minimum:"1" maximum:"9999" doc:"Year" example:"2025"`
}

// Date validates the input as a real calendar day.
func (i DayInput) Date() (time.Time, error) {
	return dateOf(i.Day, i.Month, i.Year)
}

func dateOf(day, month, year int) (time.Time, error) {
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month || t.Year() != year {
		return time.Time{}, huma.Error400BadRequest(fmt.Sprintf("Invalid date: %04d-%02d-%02d", year, month, day))
	}
	return t, nil
}

// RangeInput selects an inclusive range of days.
type RangeInput struct {
	StartDay   int `query:"start_day" required:"true" minimum:"1" maximum:"31"`
	StartMonth int `query:"start_month" required:"true" minimum:"1" maximum:"12"`
	StartYear  int `query:"start_year" required:"true" minimum:"1" maximum:"9999"`
	EndDay     int `query:"end_day" required:"true" minimum:"1" maximum:"31"`
	EndMonth   int `query:"end_month" required:"true" minimum:"1" maximum:"12"`
	EndYear    int `query:"end_year" required:"true" minimum:"1" maximum:"9999"`
}

type GeoJSONOutput struct {
	Body *geojson.FeatureCollection
}

type EventsBody struct {
	Date   string              `json:"date" doc:"Requested day as DD.MM.YYYY" example:"15.03.2025"`
	Total  int                 `json:"total" doc:"Number of events"`
	Events []service.EventItem `json:"events" doc:"Events with coordinates"`
}

type EventsRangeBody struct {
	StartDate string              `json:"start_date" doc:"First day, ISO 8601" example:"2025-03-15"`
	EndDate   string              `json:"end_date" doc:"Last day, ISO 8601" example:"2025-03-17"`
	Total     int                 `json:"total" doc:"Number of events"`
	Events    []service.EventItem `json:"events" doc:"Events of every day in order"`
}

type MessageBody struct {
	Message string `json:"message" doc:"Result message"`
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"1.0.0"`
}

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// RegisterEvents registers the events routes.
func (h *APIHandler) RegisterEvents(api huma.API) {
	huma.Get(api, "/api/events/geojson", h.GetEventsGeoJSON, huma.OperationTags("events"))
	huma.Get(api, "/api/events", h.GetEvents, huma.OperationTags("events"))
	huma.Get(api, "/api/events-range", h.GetEventsRange, huma.OperationTags("events"))
}

// RegisterSources registers source listing routes.
func (h *APIHandler) RegisterSources(api huma.API) {
	huma.Get(api, "/api/v1/sources", h.GetSources, huma.OperationTags("events"))
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: Version}}, nil
}

func (h *APIHandler) GetEventsGeoJSON(ctx context.Context, input *DayInput) (*GeoJSONOutput, error) {
	day, err := input.Date()
	if err != nil {
		return nil, err
	}
	if h.svc == nil || h.svc.Events == nil {
		return &GeoJSONOutput{Body: geojson.NewFeatureCollection()}, nil
	}
	fc, err := h.svc.Events.Day(ctx, day)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to read events", err)
	}
	return &GeoJSONOutput{Body: fc}, nil
}

func (h *APIHandler) GetEvents(ctx context.Context, input *DayInput) (*struct{ Body EventsBody }, error) {
	day, err := input.Date()
	if err != nil {
		return nil, err
	}
	items, err := h.items(ctx, day)
	if err != nil {
		return nil, err
	}
	return &struct{ Body EventsBody }{Body: EventsBody{
		Date:   day.Format("02.01.2006"),
		Total:  len(items),
		Events: items,
	}}, nil
}

func (h *APIHandler) GetEventsRange(ctx context.Context, input *RangeInput) (*struct{ Body EventsRangeBody }, error) {
	start, err := dateOf(input.StartDay, input.StartMonth, input.StartYear)
	if err != nil {
		return nil, err
	}
	end, err := dateOf(input.EndDay, input.EndMonth, input.EndYear)
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, huma.Error400BadRequest("end date is before start date")
	}
	if end.Sub(start) >= MaxRangeDays*24*time.Hour {
		return nil, huma.Error400BadRequest(fmt.Sprintf("range exceeds %d days", MaxRangeDays))
	}

	all := []service.EventItem{}
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		items, err := h.items(ctx, d)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
	}
	return &struct{ Body EventsRangeBody }{Body: EventsRangeBody{
		StartDate: start.Format(time.DateOnly),
		EndDate:   end.Format(time.DateOnly),
		Total:     len(all),
		Events:    all,
	}}, nil
}

func (h *APIHandler) items(ctx context.Context, day time.Time) ([]service.EventItem, error) {
	if h.svc == nil || h.svc.Events == nil {
		return []service.EventItem{}, nil
	}
	items, err := h.svc.Events.Items(ctx, day)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to read events", err)
	}
	return items, nil
}

func (h *APIHandler) GetSources(ctx context.Context, input *struct{}) (*struct{ Body []service.SourceDay }, error) {
	if h.svc == nil || h.svc.Events == nil {
		return &struct{ Body []service.SourceDay }{Body: []service.SourceDay{}}, nil
	}
	sources, err := h.svc.Events.List()
	if err != nil {
		return &struct{ Body []service.SourceDay }{Body: []service.SourceDay{}}, nil
	}
	return &struct{ Body []service.SourceDay }{Body: sources}, nil
}

// RegisterRoutes registers every REST route of svc.
func RegisterRoutes(api huma.API, svc *Services) {
	huma.AutoRegister(api, NewAPIHandler(svc))
}
