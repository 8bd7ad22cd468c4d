package mapview

import (
	"reflect"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/geo-events/internal/category"
)

func feature(lon, lat float64, props geojson.Properties) *geojson.Feature {
	f := geojson.NewFeature(orb.Point{lon, lat})
	f.Properties = props
	return f
}

func collection(fs ...*geojson.Feature) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, f := range fs {
		fc.Append(f)
	}
	return fc
}

func sampleCollection() *geojson.FeatureCollection {
	return collection(
		feature(21.00, 52.20, geojson.Properties{"title": "A", "category": []interface{}{"Other", "Jazz"}}),
		feature(21.10, 52.30, geojson.Properties{"title": "B", "category": []interface{}{" jazz "}}),
		feature(20.90, 52.10, geojson.Properties{"title": "C", "category": []interface{}{"Sport"}}),
		feature(21.05, 52.25, geojson.Properties{"title": "D"}),
	)
}

func TestBuildResetsActiveSet(t *testing.T) {
	c := NewController(nil, nil)
	layer := c.Build(sampleCollection())

	if layer.Len() != 4 {
		t.Fatalf("markers = %d, want 4", layer.Len())
	}
	want := []string{"jazz", "other", "sport"}
	if got := c.Active(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Active = %v, want %v", got, want)
	}
	for _, m := range layer.Markers {
		if !m.Visible || !m.Interactive || m.Opacity() != 1 {
			t.Fatalf("marker %s should start visible", m.ID)
		}
	}

	st := c.Status()
	if st.Level != StatusSuccess || st.Message != "Loaded 4 events" {
		t.Fatalf("status = %+v", st)
	}

	vp := c.State().Viewport
	if vp == nil {
		t.Fatal("viewport should be set")
	}
	wantBound := orb.Bound{Min: orb.Point{20.90, 52.10}, Max: orb.Point{21.10, 52.30}}
	if vp.Bound != wantBound || vp.Padding != [2]int{50, 50} {
		t.Fatalf("viewport = %+v", vp)
	}
}

func TestBuildColorsByPrimaryCategory(t *testing.T) {
	pal := category.DefaultPalette()
	c := NewController(pal, nil)
	layer := c.Build(sampleCollection())

	if got := layer.Markers[0].Color; got != pal.Color("jazz") {
		t.Errorf("marker A colour = %q", got)
	}
	if layer.Markers[0].Primary != "Jazz" || layer.Markers[0].Key != "jazz" {
		t.Errorf("marker A primary = %q key = %q", layer.Markers[0].Primary, layer.Markers[0].Key)
	}
	if got := layer.Markers[3].Color; got != pal.Color(pal.DefaultKey()) {
		t.Errorf("uncategorised colour = %q", got)
	}
}

func TestBuildEmpty(t *testing.T) {
	c := NewController(nil, nil)
	layer := c.Build(geojson.NewFeatureCollection())

	if layer.Len() != 0 {
		t.Fatalf("markers = %d", layer.Len())
	}
	if st := c.Status(); st.Level != StatusWarning {
		t.Fatalf("status = %+v, want warning", st)
	}
	if c.State().Viewport != nil {
		t.Fatal("empty layer must not fit the viewport")
	}
	if len(c.Legend()) != 0 || len(c.Active()) != 0 {
		t.Fatal("legend and active set should be empty")
	}
}

func TestBuildReplacesPreviousLayer(t *testing.T) {
	c := NewController(nil, nil)
	c.Build(sampleCollection())
	first := c.layer

	c.Toggle("jazz", false)
	second := c.Build(collection(feature(21, 52, geojson.Properties{"category": []interface{}{"Film"}})))

	if !first.Removed {
		t.Fatal("previous layer should be removed")
	}
	if c.layer.Removed {
		t.Fatal("current layer must not be removed")
	}
	if second.ID == first.ID {
		t.Fatal("layer ids should differ")
	}
	if got := c.Active(); !reflect.DeepEqual(got, []string{"film"}) {
		t.Fatalf("Active = %v, want [film]", got)
	}
}

func TestBuildSkipsNonPoints(t *testing.T) {
	fc := sampleCollection()
	fc.Append(geojson.NewFeature(orb.LineString{{21, 52}, {21.1, 52.1}}))

	c := NewController(nil, nil)
	if n := c.Build(fc).Len(); n != 4 {
		t.Fatalf("markers = %d, want 4", n)
	}
}

func TestToggleHidesOnlyMatchingMarkers(t *testing.T) {
	c := NewController(nil, nil)
	layer := c.Build(sampleCollection())
	ids := make([]string, len(layer.Markers))
	for i, m := range layer.Markers {
		ids[i] = m.ID
	}
	c.OpenPopup(ids[0])

	vis := c.Toggle("jazz", false)
	want := map[string]bool{ids[0]: false, ids[1]: false, ids[2]: true, ids[3]: true}
	if !reflect.DeepEqual(vis, want) {
		t.Fatalf("visibility = %v, want %v", vis, want)
	}

	l := c.Layer()
	if m := l.Markers[0]; m.Opacity() != 0 || m.Interactive || m.PopupOpen {
		t.Fatalf("hidden marker = %+v", m)
	}
	if c.OpenPopup(ids[0]) {
		t.Fatal("hidden marker popup must not open")
	}

	vis = c.Toggle("jazz", true)
	for id, v := range vis {
		if !v {
			t.Fatalf("marker %s should be visible again", id)
		}
	}
}

func TestOpenPopupKeepsOneOpen(t *testing.T) {
	c := NewController(nil, nil)
	layer := c.Build(sampleCollection())
	a, b := layer.Markers[0].ID, layer.Markers[2].ID

	if !c.OpenPopup(a) {
		t.Fatalf("OpenPopup(%s) = false", a)
	}
	if !c.OpenPopup(b) {
		t.Fatalf("OpenPopup(%s) = false", b)
	}
	if got := c.OpenPopupID(); got != b {
		t.Fatalf("OpenPopupID = %q, want %q", got, b)
	}

	c.ClosePopup(b)
	if got := c.OpenPopupID(); got != "" {
		t.Fatalf("OpenPopupID after close = %q", got)
	}
	if c.OpenPopup("nope") {
		t.Fatal("unknown marker popup must not open")
	}
}

func TestToggleAll(t *testing.T) {
	c := NewController(nil, nil)
	c.Build(sampleCollection())

	for _, v := range c.ToggleAll(false) {
		if v {
			t.Fatal("all markers should be hidden")
		}
	}
	for _, row := range c.Legend() {
		if row.Checked {
			t.Fatalf("row %s should be unchecked", row.Key)
		}
	}

	for _, v := range c.ToggleAll(true) {
		if !v {
			t.Fatal("all markers should be visible")
		}
	}
	if got := c.Active(); len(got) != 3 {
		t.Fatalf("Active = %v", got)
	}
}

func TestToggleBeforeBuild(t *testing.T) {
	c := NewController(nil, nil)
	if vis := c.Toggle("jazz", false); len(vis) != 0 {
		t.Fatalf("visibility = %v", vis)
	}
}

func TestLegendSortedByRawLabel(t *testing.T) {
	c := NewController(nil, nil)
	c.Build(sampleCollection())
	c.Toggle("sport", false)

	rows := c.Legend()
	var labels []string
	for _, r := range rows {
		labels = append(labels, r.Label)
	}
	// " jazz " trims to "jazz", a distinct raw label from "Jazz"
	if want := []string{"Jazz", "Other", "Sport", "jazz"}; !reflect.DeepEqual(labels, want) {
		t.Fatalf("labels = %v, want %v", labels, want)
	}
	for _, r := range rows {
		if r.Key == "sport" && r.Checked {
			t.Fatal("sport should be unchecked")
		}
		if r.Key == "jazz" && !r.Checked {
			t.Fatal("jazz should be checked")
		}
	}
}

func TestPopupOmitsEmptyCategories(t *testing.T) {
	c := NewController(nil, nil)
	layer := c.Build(collection(feature(21, 52, geojson.Properties{
		"title":    "X",
		"category": []interface{}{"", "Film"},
		"link":     "https://example.org",
	})))
	p := layer.Markers[0].Popup
	if !reflect.DeepEqual(p.Categories, []string{"Film"}) || p.Link != "https://example.org" || p.Address != "" {
		t.Fatalf("popup = %+v", p)
	}
}
