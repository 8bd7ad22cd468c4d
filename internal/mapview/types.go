// Package mapview holds the state of one map view: the displayed event layer,
// the legend and the set of visible categories.
package mapview

import (
	"github.com/paulmach/orb"
)

// StatusLevel classifies a status message.
type StatusLevel string

const (
	StatusNone    StatusLevel = ""
	StatusLoading StatusLevel = "loading"
	StatusSuccess StatusLevel = "success"
	StatusWarning StatusLevel = "warning"
	StatusError   StatusLevel = "error"
)

// Status is the message shown in the status box.
type Status struct {
	Level   StatusLevel `json:"level"`
	Message string      `json:"message"`
}

// Popup carries the fields shown in a marker popup. Empty fields are omitted
// by the renderer.
type Popup struct {
	Title      string
	Image      string
	Address    string
	District   string
	Date       string
	Time       string
	Categories []string
	Link       string
}

// Marker is one event on the map.
type Marker struct {
	ID         string
	Point      orb.Point
	Categories []string
	Primary    string
	Key        string
	Color      string
	Popup      Popup

	Visible     bool
	Interactive bool
	PopupOpen   bool
}

// Opacity is 1 for visible markers and 0 for hidden ones.
func (m Marker) Opacity() float64 {
	if m.Visible {
		return 1
	}
	return 0
}

// Layer is the cluster layer holding one dataset's markers.
type Layer struct {
	ID      uint64
	Markers []Marker
	Bound   orb.Bound
	Removed bool // set once a newer layer replaces this one
}

// Len returns the number of markers.
func (l *Layer) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Markers)
}

// FitPadding is the pixel padding applied when fitting the viewport to a layer.
const FitPadding = 50

// Viewport is the map extent to fit after a build.
type Viewport struct {
	Bound   orb.Bound
	Padding [2]int
}

// LegendRow is one legend entry.
type LegendRow struct {
	Label   string
	Key     string
	Color   string
	Checked bool
}

// State is a copy of a controller's view, safe to read without locking.
type State struct {
	Layer    *Layer
	Legend   []LegendRow
	Active   []string
	Status   Status
	Viewport *Viewport
}

// Change names the part of a view that changed, so renderers can patch only that.
type Change string

const (
	ChangeStatus     Change = "status"
	ChangeLayer      Change = "layer"
	ChangeVisibility Change = "visibility"
	ChangeLegend     Change = "legend"
)
