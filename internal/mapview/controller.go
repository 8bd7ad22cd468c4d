package mapview

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/geo-events/internal/category"
	"github.com/joeblew999/geo-events/internal/event"
)

// Controller owns the displayed layer, the used and active category sets and
// the status message. Safe for concurrent use.
type Controller struct {
	palette *category.Palette
	logger  *slog.Logger

	mu       sync.RWMutex
	layer    *Layer
	nextID   uint64
	used     map[string]struct{} // raw primary categories
	active   map[string]struct{} // normalised keys
	status   Status
	viewport *Viewport
}

// NewController creates an empty controller.
func NewController(palette *category.Palette, logger *slog.Logger) *Controller {
	if palette == nil {
		palette = category.DefaultPalette()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		palette: palette,
		logger:  logger,
		used:    map[string]struct{}{},
		active:  map[string]struct{}{},
	}
}

// Build replaces the displayed layer with one built from fc. The active set is
// reset to every category of the new dataset.
func (c *Controller) Build(fc *geojson.FeatureCollection) *Layer {
	var features []*geojson.Feature
	if fc != nil {
		features = fc.Features
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	layer := &Layer{ID: c.nextID, Markers: make([]Marker, 0, len(features))}
	used := map[string]struct{}{}

	for i, f := range features {
		pt, ok := event.Point(f)
		if !ok {
			c.logger.Debug("skipping non-point feature", "index", i)
			continue
		}
		props := event.Props(f.Properties)
		cats := props.Categories()
		primary := category.Primary(cats)
		used[primary] = struct{}{}

		layer.Markers = append(layer.Markers, Marker{
			ID:          fmt.Sprintf("m%d-%d", layer.ID, i),
			Point:       pt,
			Categories:  cats,
			Primary:     primary,
			Key:         category.Normalize(primary),
			Color:       c.palette.ColorFor(cats),
			Popup:       popupFor(props, cats),
			Visible:     true,
			Interactive: true,
		})
		if len(layer.Markers) == 1 {
			layer.Bound = pt.Bound()
		} else {
			layer.Bound = layer.Bound.Extend(pt)
		}
	}

	if c.layer != nil {
		c.layer.Removed = true
	}
	c.layer = layer

	c.used = used
	c.active = make(map[string]struct{}, len(used))
	for raw := range used {
		c.active[category.Normalize(raw)] = struct{}{}
	}

	if n := len(layer.Markers); n > 0 {
		c.viewport = &Viewport{Bound: layer.Bound, Padding: [2]int{FitPadding, FitPadding}}
		c.status = Status{Level: StatusSuccess, Message: fmt.Sprintf("Loaded %d events", n)}
	} else {
		c.viewport = nil
		c.status = Status{Level: StatusWarning, Message: "No events on this day"}
	}

	return layer.clone()
}

func popupFor(p event.Props, cats []string) Popup {
	chips := make([]string, 0, len(cats))
	for _, c := range cats {
		if c != "" {
			chips = append(chips, c)
		}
	}
	return Popup{
		Title:      p.Title(),
		Image:      p.Image(),
		Address:    p.Address(),
		District:   p.District(),
		Date:       p.Date(),
		Time:       p.Time(),
		Categories: chips,
		Link:       p.Link(),
	}
}

// Toggle shows or hides the markers of one normalised category and returns
// the resulting visibility of every marker by id.
func (c *Controller) Toggle(key string, checked bool) map[string]bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if checked {
		c.active[key] = struct{}{}
	} else {
		delete(c.active, key)
	}
	return c.applyVisibility()
}

// ToggleAll checks or unchecks every legend entry.
func (c *Controller) ToggleAll(checked bool) map[string]bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.active = map[string]struct{}{}
	if checked {
		for raw := range c.used {
			c.active[category.Normalize(raw)] = struct{}{}
		}
	}
	return c.applyVisibility()
}

func (c *Controller) applyVisibility() map[string]bool {
	if c.layer == nil {
		return map[string]bool{}
	}
	vis := make(map[string]bool, len(c.layer.Markers))
	for i := range c.layer.Markers {
		m := &c.layer.Markers[i]
		_, m.Visible = c.active[m.Key]
		m.Interactive = m.Visible
		if !m.Visible {
			m.PopupOpen = false
		}
		vis[m.ID] = m.Visible
	}
	return vis
}

// OpenPopup marks a visible marker's popup open and closes any other, as a
// map shows one popup at a time. Hidden or unknown markers stay closed.
func (c *Controller) OpenPopup(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.marker(id)
	if m == nil || !m.Interactive {
		return false
	}
	for i := range c.layer.Markers {
		c.layer.Markers[i].PopupOpen = false
	}
	m.PopupOpen = true
	return true
}

// ClosePopup marks a marker's popup closed.
func (c *Controller) ClosePopup(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if m := c.marker(id); m != nil {
		m.PopupOpen = false
	}
}

// OpenPopupID returns the id of the marker whose popup is open, or "".
func (c *Controller) OpenPopupID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.layer == nil {
		return ""
	}
	for _, m := range c.layer.Markers {
		if m.PopupOpen {
			return m.ID
		}
	}
	return ""
}

func (c *Controller) marker(id string) *Marker {
	if c.layer == nil {
		return nil
	}
	for i := range c.layer.Markers {
		if c.layer.Markers[i].ID == id {
			return &c.layer.Markers[i]
		}
	}
	return nil
}

// SetStatus replaces the status message.
func (c *Controller) SetStatus(s Status) {
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
}

// Status returns the current status message.
func (c *Controller) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Active returns the visible category keys in lexical order.
func (c *Controller) Active() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedKeys(c.active)
}

// Legend returns one row per used category sorted by raw label.
func (c *Controller) Legend() []LegendRow {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.legend()
}

func (c *Controller) legend() []LegendRow {
	labels := sortedKeys(c.used)
	rows := make([]LegendRow, 0, len(labels))
	for _, raw := range labels {
		key := category.Normalize(raw)
		_, checked := c.active[key]
		rows = append(rows, LegendRow{
			Label:   raw,
			Key:     key,
			Color:   c.palette.Color(key),
			Checked: checked,
		})
	}
	return rows
}

// Layer returns a copy of the displayed layer, or nil before the first build.
func (c *Controller) Layer() *Layer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.layer.clone()
}

// State returns a consistent copy of the whole view.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var vp *Viewport
	if c.viewport != nil {
		v := *c.viewport
		vp = &v
	}
	return State{
		Layer:    c.layer.clone(),
		Legend:   c.legend(),
		Active:   sortedKeys(c.active),
		Status:   c.status,
		Viewport: vp,
	}
}

func (l *Layer) clone() *Layer {
	if l == nil {
		return nil
	}
	cp := *l
	cp.Markers = make([]Marker, len(l.Markers))
	copy(cp.Markers, l.Markers)
	return &cp
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
