// Package service contains the event source behind the events API and the
// view change bus.
package service

import (
	"time"

	"github.com/paulmach/orb"
)

// WarsawBound is the default service area: Warsaw plus roughly 10 km.
var WarsawBound = orb.Bound{
	Min: orb.Point{20.73, 51.53},
	Max: orb.Point{21.36, 52.45},
}

// WarsawCenter is where the map opens.
var WarsawCenter = orb.Point{21.0118, 52.2298}

// SourceDay describes one per-day GeoJSON source file.
type SourceDay struct {
	Name string    `json:"name" doc:"File name" example:"2026-10-17.geojson"`
	Date time.Time `json:"date" doc:"Day the file covers" format:"date"`
	Size string    `json:"size" doc:"Human-readable file size" example:"12.4 KB"`
}

// EventItem is a flat event record with coordinates.
type EventItem struct {
	Title     string   `json:"title" doc:"Event title"`
	Address   string   `json:"address,omitempty" doc:"Street address"`
	District  string   `json:"district,omitempty" doc:"City district"`
	Date      string   `json:"date,omitempty" doc:"Event date as published"`
	StartDate string   `json:"start_date,omitempty" doc:"First day of a multi-day event"`
	EndDate   string   `json:"end_date,omitempty" doc:"Last day of a multi-day event"`
	Time      string   `json:"time,omitempty" doc:"Start time"`
	Image     string   `json:"image,omitempty" doc:"Image URL"`
	Link      string   `json:"link" doc:"Event page URL"`
	Category  []string `json:"category" doc:"Category labels in source order"`
	Latitude  float64  `json:"latitude" doc:"WGS84 latitude"`
	Longitude float64  `json:"longitude" doc:"WGS84 longitude"`
}
