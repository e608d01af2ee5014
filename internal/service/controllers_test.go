package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// newTestMap registers every default layer with an empty collection.
func newTestMap(t *testing.T) (*Registry, *Session, *LegendRenderer, *VisibilityController) {
	t.Helper()
	reg := DefaultRegistry()
	session := NewSession()
	for _, l := range reg.All() {
		if err := session.AddLayer(l, nil); err != nil {
			t.Fatal(err)
		}
	}
	legend := NewLegendRenderer(reg, session)
	return reg, session, legend, NewVisibilityController(reg, session, nil, legend, nil)
}

func legendIDs(entries []LegendEntry) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids
}

func TestToggleOnOffForEveryLayer(t *testing.T) {
	reg, session, _, vc := newTestMap(t)

	for _, l := range reg.All() {
		if _, err := vc.Toggle(l.ID, true); err != nil {
			t.Fatalf("%s on: %v", l.ID, err)
		}
		if v, _ := session.Visibility(l.ID); v != VisibilityVisible {
			t.Errorf("%s visibility=%q after check", l.ID, v)
		}

		entries, err := vc.Toggle(l.ID, false)
		if err != nil {
			t.Fatalf("%s off: %v", l.ID, err)
		}
		if v, _ := session.Visibility(l.ID); v != VisibilityNone {
			t.Errorf("%s visibility=%q after uncheck", l.ID, v)
		}
		for _, e := range entries {
			if e.ID == l.ID {
				t.Errorf("legend still lists %s", l.ID)
			}
		}
	}
}

func TestLegendFollowsRegistryOrder(t *testing.T) {
	_, _, legend, vc := newTestMap(t)

	for _, id := range []string{"railroads", "tears", "states", "sante-fe-trail"} {
		vc.Toggle(id, true)
	}
	vc.Toggle("tears", true) // checking twice must not duplicate

	got := legendIDs(legend.Build())
	want := []string{"tears", "sante-fe-trail", "railroads"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("legend=%v, want %v", got, want)
	}

	vc.Toggle("sante-fe-trail", false)
	got = legendIDs(legend.Build())
	if strings.Join(got, ",") != "tears,railroads" {
		t.Fatalf("legend=%v after uncheck", got)
	}
}

func TestTearsLegendRow(t *testing.T) {
	_, _, _, vc := newTestMap(t)

	entries, err := vc.Toggle("tears", true)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries=%+v", entries)
	}
	e := entries[0]
	if e.Name != "Trails of Tears" || !e.Dashed || e.Color != "purple" {
		t.Errorf("entry=%+v", e)
	}
	if style := e.SymbolStyle(); style != "border-top: 2px dashed purple; background-color: transparent" {
		t.Errorf("style=%q", style)
	}

	entries, _ = vc.Toggle("tears", false)
	if len(entries) != 0 {
		t.Errorf("entries=%+v after uncheck", entries)
	}
}

func TestSolidLegendSwatch(t *testing.T) {
	e := LegendEntry{Color: "grey"}
	if e.SymbolStyle() != "background-color: grey" {
		t.Errorf("style=%q", e.SymbolStyle())
	}
}

func TestToggleUnknownLayerIsRecoverable(t *testing.T) {
	_, _, _, vc := newTestMap(t)
	vc.Toggle("tears", true)

	entries, err := vc.Toggle("pony-express", true)
	if !errors.Is(err, ErrUnknownLayer) || !Recoverable(err) {
		t.Fatalf("err=%v, want recoverable ErrUnknownLayer", err)
	}
	if len(entries) != 1 || entries[0].ID != "tears" {
		t.Errorf("legend=%+v", entries)
	}
}

func TestErieFetchFailureScenario(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	reg, _ := NewRegistry([]Layer{
		{ID: "tears", Name: "Trails of Tears", Color: "purple", Source: "trail.json", Legend: true},
		{ID: "erie-canal", Name: "Erie Canal", Color: "navy", Source: "erie.json", Async: true, Legend: true},
	})
	session := NewSession()
	loader := NewLoader(reg, NewSourceService(t.TempDir()), LoaderConfig{BaseURL: srv.URL})
	loader.Start(context.Background(), session)
	loader.Wait()

	legend := NewLegendRenderer(reg, session)
	vc := NewVisibilityController(reg, session, loader, legend, nil)

	entries, err := vc.Toggle("erie-canal", true)
	if !errors.Is(err, ErrLayerNotFound) || !Recoverable(err) {
		t.Fatalf("err=%v, want recoverable ErrLayerNotFound", err)
	}
	if session.HasLayer("erie-canal") {
		t.Error("erie-canal present on the map")
	}
	if len(entries) != 0 {
		t.Errorf("legend=%+v, want empty", entries)
	}
}

func TestTogglePendingLayerIsInert(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
			w.Write([]byte(erieGeoJSON))
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	reg, _ := NewRegistry([]Layer{
		{ID: "erie-canal", Name: "Erie Canal", Color: "navy", Source: "erie.json", Async: true, Legend: true},
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session := NewSession()
	loader := NewLoader(reg, NewSourceService(t.TempDir()), LoaderConfig{BaseURL: srv.URL})
	loader.Start(ctx, session)

	legend := NewLegendRenderer(reg, session)
	vc := NewVisibilityController(reg, session, loader, legend, nil)

	entries, err := vc.Toggle("erie-canal", true)
	if err != nil {
		t.Fatalf("pending toggle returned %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("legend=%+v while pending", entries)
	}

	close(release)
	loader.Wait()

	if v, _ := session.Visibility("erie-canal"); v != VisibilityNone {
		t.Errorf("visibility=%q, pending toggle should not carry over", v)
	}
	entries, err = vc.Toggle("erie-canal", true)
	if err != nil || len(entries) != 1 || entries[0].Name != "Erie Canal" {
		t.Fatalf("after load: entries=%+v err=%v", entries, err)
	}
	if entries[0].Dashed {
		t.Error("erie canal swatch should be solid")
	}
}

func TestToggleEmitsVisibilityEvent(t *testing.T) {
	reg, session, legend, _ := newTestMap(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus := NewEventBus()
	ch := bus.Subscribe(ctx)

	vc := NewVisibilityController(reg, session, nil, legend, bus)
	vc.Toggle("mormon", true)

	ev := <-ch
	if ev != (Event{Kind: EventVisibility, LayerID: "mormon", State: "visible"}) {
		t.Errorf("event=%+v", ev)
	}
}

func santaFeMap(t *testing.T) (*Session, *TooltipController) {
	t.Helper()
	reg := DefaultRegistry()
	session := NewSession()

	fc := geojson.NewFeatureCollection()
	mainRoute := geojson.NewFeature(orb.LineString{{-100, 38}, {-95, 38}})
	mainRoute.Properties["TR_NAME"] = "Santa Fe Trail Main"
	fc.Append(mainRoute)
	unnamed := geojson.NewFeature(orb.LineString{{-100, 36}, {-95, 36}})
	fc.Append(unnamed)

	santaFe, _ := reg.Get("sante-fe-trail")
	if err := session.AddLayer(santaFe, fc); err != nil {
		t.Fatal(err)
	}
	railroads, _ := reg.Get("railroads")
	session.AddLayer(railroads, nil)
	session.SetVisibility("sante-fe-trail", VisibilityVisible)

	return session, NewTooltipController(reg, session)
}

func TestTooltipSantaFeScenario(t *testing.T) {
	_, tc := santaFeMap(t)

	state, err := tc.Move("sante-fe-trail", PointerEvent{Lng: -97, Lat: 38, PageX: 200, PageY: 150, Zoom: 4})
	if err != nil {
		t.Fatal(err)
	}
	if !state.Visible || state.Text != "Santa Fe Trail Main" {
		t.Fatalf("state=%+v", state)
	}
	if state.Left != 205 || state.Top != 155 {
		t.Errorf("position=(%v,%v), want (205,155)", state.Left, state.Top)
	}

	state, _ = tc.Move("sante-fe-trail", PointerEvent{Lng: -97, Lat: 30, Zoom: 4})
	if state.Visible {
		t.Error("tooltip visible away from any feature")
	}

	tc.Move("sante-fe-trail", PointerEvent{Lng: -97, Lat: 38, Zoom: 4})
	if state := tc.Leave(); state.Visible || tc.State().Visible {
		t.Error("tooltip visible after leave")
	}
}

func TestTooltipMissingPropertyIsEmpty(t *testing.T) {
	_, tc := santaFeMap(t)

	state, err := tc.Move("sante-fe-trail", PointerEvent{Lng: -97, Lat: 36, Zoom: 4})
	if err != nil {
		t.Fatal(err)
	}
	if !state.Visible || state.Text != "" {
		t.Errorf("state=%+v, want visible empty text", state)
	}
}

func TestTooltipHiddenLayer(t *testing.T) {
	session, tc := santaFeMap(t)
	session.SetVisibility("sante-fe-trail", VisibilityNone)

	state, _ := tc.Move("sante-fe-trail", PointerEvent{Lng: -97, Lat: 38, Zoom: 4})
	if state.Visible {
		t.Error("hidden layer produced a tooltip")
	}
}

func TestTooltipUnboundLayer(t *testing.T) {
	_, tc := santaFeMap(t)

	for _, id := range []string{"railroads", "nope"} {
		state, err := tc.Move(id, PointerEvent{Lng: -97, Lat: 38, Zoom: 4})
		if !errors.Is(err, ErrUnknownLayer) {
			t.Errorf("%s: err=%v, want ErrUnknownLayer", id, err)
		}
		if state.Visible {
			t.Errorf("%s: tooltip visible", id)
		}
	}
}

func TestPropertyText(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"Oregon", "Oregon"},
		{float64(12), "12"},
		{true, "true"},
	}
	for _, tt := range tests {
		if got := propertyText(tt.in); got != tt.want {
			t.Errorf("propertyText(%v)=%q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestOrientation(t *testing.T) {
	session := NewSession()
	ind := NewOrientationIndicator(session, "north-arrow")

	o, err := ind.Update(90)
	if err != nil {
		t.Fatal(err)
	}
	if o.Rotation != -90 || o.Transform != "rotate(-90deg)" {
		t.Errorf("orientation=%+v", o)
	}
	if session.Bearing() != 90 {
		t.Errorf("bearing=%v", session.Bearing())
	}

	if o := RotationFor(0); o.Transform != "rotate(0deg)" {
		t.Errorf("transform=%q", o.Transform)
	}
	if o := RotationFor(-12.5); o.Transform != "rotate(12.5deg)" {
		t.Errorf("transform=%q", o.Transform)
	}
	if ind.Selector() != "#north-arrow" {
		t.Errorf("selector=%q", ind.Selector())
	}
}

func TestOrientationWithoutElement(t *testing.T) {
	session := NewSession()
	ind := NewOrientationIndicator(session, "")

	if _, err := ind.Update(30); !errors.Is(err, ErrNoIndicator) {
		t.Fatalf("err=%v, want ErrNoIndicator", err)
	}
	if session.Bearing() != 30 {
		t.Error("bearing should still be recorded")
	}
}

func TestOverlayLayer(t *testing.T) {
	reg := DefaultRegistry()

	tears, _ := reg.Get("tears")
	def := OverlayLayer(tears, "/api/v1/layers/tears/data")
	if def.Type != "line" || def.Layout["visibility"] != "none" {
		t.Errorf("def=%+v", def)
	}
	if def.Paint["line-color"] != "purple" {
		t.Errorf("paint=%+v", def.Paint)
	}
	if _, ok := def.Paint["line-dasharray"]; !ok {
		t.Error("missing line-dasharray")
	}

	labels, _ := reg.Get("state-labels")
	def = OverlayLayer(labels, "/api/v1/layers/state-labels/data")
	if def.Type != "symbol" || def.Paint["text-halo-color"] != "white" {
		t.Errorf("def=%+v", def)
	}

	style := BuildMapStyle(DefaultStyleConfig())
	if style.Version != 8 || style.Sources["esriWorldPhysical"].Attribution != "Esri" {
		t.Errorf("style=%+v", style)
	}
}
