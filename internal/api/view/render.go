package view

import (
	"github.com/joeblew999/geo-events/internal/mapview"
)

// MarkerPayload is one marker as drawn by eventMap.showLayer.
type MarkerPayload struct {
	ID      string  `json:"id"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Color   string  `json:"color"`
	Popup   string  `json:"popup"`
	Visible bool    `json:"visible"`
}

// FitPayload is the viewport to fit: [[south, west], [north, east]] plus padding.
type FitPayload struct {
	Bounds  [2][2]float64 `json:"bounds"`
	Padding [2]int        `json:"padding"`
}

// LayerPayload replaces the page's cluster layer.
type LayerPayload struct {
	ID      uint64          `json:"id"`
	Markers []MarkerPayload `json:"markers"`
	Fit     *FitPayload     `json:"fit,omitempty"`
}

func (h *Handler) layerPayload(st mapview.State) LayerPayload {
	p := LayerPayload{ID: st.Layer.ID, Markers: make([]MarkerPayload, 0, st.Layer.Len())}
	for _, m := range st.Layer.Markers {
		popup, err := h.Renderer.Render("popup", m.Popup)
		if err != nil {
			h.logger.Error("render popup", "marker", m.ID, "err", err)
		}
		p.Markers = append(p.Markers, MarkerPayload{
			ID:      m.ID,
			Lat:     m.Point.Lat(),
			Lon:     m.Point.Lon(),
			Color:   m.Color,
			Popup:   popup,
			Visible: m.Visible,
		})
	}
	if vp := st.Viewport; vp != nil {
		p.Fit = &FitPayload{
			Bounds: [2][2]float64{
				{vp.Bound.Min.Lat(), vp.Bound.Min.Lon()},
				{vp.Bound.Max.Lat(), vp.Bound.Max.Lon()},
			},
			Padding: vp.Padding,
		}
	}
	return p
}

// visibility maps marker id to visibility.
func visibility(l *mapview.Layer) map[string]bool {
	out := make(map[string]bool, l.Len())
	if l == nil {
		return out
	}
	for _, m := range l.Markers {
		out[m.ID] = m.Visible
	}
	return out
}
