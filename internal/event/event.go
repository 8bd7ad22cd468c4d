// Package event reads the event properties carried by GeoJSON features.
package event

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Property names of an event feature.
const (
	PropTitle     = "title"
	PropAddress   = "address"
	PropDistrict  = "district"
	PropDate      = "date"
	PropStartDate = "start_date"
	PropEndDate   = "end_date"
	PropTime      = "time"
	PropImage     = "image"
	PropLink      = "link"
	PropCategory  = "category"
)

// Decode parses a GeoJSON FeatureCollection body.
func Decode(data []byte) (*geojson.FeatureCollection, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decode feature collection: %w", err)
	}
	return fc, nil
}

// Props is a read-only view of an event feature's properties.
type Props geojson.Properties

func (p Props) str(key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	default:
		return strings.TrimSpace(fmt.Sprint(s))
	}
}

func (p Props) Title() string    { return p.str(PropTitle) }
func (p Props) Address() string  { return p.str(PropAddress) }
func (p Props) District() string { return p.str(PropDistrict) }
func (p Props) Time() string     { return p.str(PropTime) }
func (p Props) Image() string    { return p.str(PropImage) }
func (p Props) Link() string     { return p.str(PropLink) }

// Date prefers "date" and falls back to "start_date".
func (p Props) Date() string {
	if d := p.str(PropDate); d != "" {
		return d
	}
	return p.str(PropStartDate)
}

// Categories returns the raw category labels in order. A null or missing
// property yields nil; a bare string is treated as a one-element list.
func (p Props) Categories() []string {
	switch v := p[PropCategory].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, c := range v {
			if s, ok := c.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{v}
	default:
		return nil
	}
}

// Point returns the feature's point geometry.
func Point(f *geojson.Feature) (orb.Point, bool) {
	if f == nil || f.Geometry == nil {
		return orb.Point{}, false
	}
	p, ok := f.Geometry.(orb.Point)
	return p, ok
}
