package viewer

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-trails/internal/service"
	"github.com/joeblew999/plat-trails/internal/templates"
)

type fixture struct {
	mux     *http.ServeMux
	api     humatest.TestAPI
	handler *Handler
	session *service.Session
	bus     *service.EventBus
}

// newFixture registers every default layer except the two async ones, as
// if both fetches had failed. The Santa Fe Trail has one feature along
// latitude 38.
func newFixture(t *testing.T, northArrow string) *fixture {
	t.Helper()

	reg := service.DefaultRegistry()
	session := service.NewSession()
	for _, l := range reg.All() {
		if l.Async {
			continue
		}
		var fc *geojson.FeatureCollection
		if l.ID == "sante-fe-trail" {
			f := geojson.NewFeature(orb.LineString{{-100, 38}, {-96, 38}})
			f.Properties["TR_NAME"] = "Santa Fe Trail Main"
			fc = geojson.NewFeatureCollection().Append(f)
		}
		if err := session.AddLayer(l, fc); err != nil {
			t.Fatal(err)
		}
	}

	renderer, err := templates.New()
	if err != nil {
		t.Fatal(err)
	}

	bus := service.NewEventBus()
	legend := service.NewLegendRenderer(reg, session)
	h := NewHandler(Controllers{
		Registry:    reg,
		Session:     session,
		Visibility:  service.NewVisibilityController(reg, session, nil, legend, bus),
		Legend:      legend,
		Tooltip:     service.NewTooltipController(reg, session),
		Orientation: service.NewOrientationIndicator(session, northArrow),
		Bus:         bus,
	}, renderer)

	mux := http.NewServeMux()
	api := humatest.Wrap(t, humago.New(mux, huma.DefaultConfig("Trails test", "1.0.0")))
	h.RegisterRoutes(api)

	return &fixture{mux: mux, api: api, handler: h, session: session, bus: bus}
}

func TestSetVisibilityPatchesLegend(t *testing.T) {
	f := newFixture(t, "north-arrow")

	resp := f.api.Post("/api/v1/viewer/layers/tears/visibility", map[string]any{"checked": true})
	if resp.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", resp.Code, resp.Body.String())
	}
	body := resp.Body.String()
	for _, want := range []string{"datastar-patch-elements", "#legend-content", "Trails of Tears", "dashed purple", "layer-visibility"} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %q in %s", want, body)
		}
	}
	if v, _ := f.session.Visibility("tears"); v != service.VisibilityVisible {
		t.Errorf("tears visibility=%q", v)
	}

	resp = f.api.Post("/api/v1/viewer/layers/tears/visibility", map[string]any{"checked": false})
	body = resp.Body.String()
	if !strings.Contains(body, "legend-content") {
		t.Errorf("legend not patched: %s", body)
	}
	if strings.Contains(body, "Trails of Tears") {
		t.Errorf("legend still lists tears: %s", body)
	}
}

func TestSetVisibilityUnknownLayer(t *testing.T) {
	f := newFixture(t, "north-arrow")

	resp := f.api.Post("/api/v1/viewer/layers/bogus/visibility", map[string]any{"checked": true})
	if resp.Code != http.StatusOK {
		t.Fatalf("status=%d", resp.Code)
	}
	body := resp.Body.String()
	if !strings.Contains(body, "unknown layer") {
		t.Errorf("no error signal: %s", body)
	}
	if strings.Contains(body, "layer-visibility") {
		t.Errorf("dispatched visibility for unknown layer: %s", body)
	}
}

func TestSetVisibilityFailedLayerStaysOffLegend(t *testing.T) {
	f := newFixture(t, "north-arrow")

	body := f.api.Post("/api/v1/viewer/layers/erie-canal/visibility", map[string]any{"checked": true}).Body.String()
	if !strings.Contains(body, "layer not registered") {
		t.Errorf("no error signal: %s", body)
	}
	if strings.Contains(body, "Erie Canal") {
		t.Errorf("legend lists erie-canal: %s", body)
	}
	if f.session.HasLayer("erie-canal") {
		t.Error("erie-canal registered")
	}
}

func TestSetVisibilityInvalidBody(t *testing.T) {
	f := newFixture(t, "north-arrow")

	resp := f.api.Post("/api/v1/viewer/layers/tears/visibility", strings.NewReader("{not json"))
	if resp.Code != http.StatusBadRequest {
		t.Errorf("status=%d, want 400", resp.Code)
	}
}

func TestPointerShowsTooltip(t *testing.T) {
	f := newFixture(t, "north-arrow")
	if err := f.session.SetVisibility("sante-fe-trail", service.VisibilityVisible); err != nil {
		t.Fatal(err)
	}

	body := f.api.Post("/api/v1/viewer/pointer/sante-fe-trail", map[string]any{
		"lng": -98.0, "lat": 38.0, "pagex": 200, "pagey": 150, "zoom": 6,
	}).Body.String()
	for _, want := range []string{"datastar-patch-signals", `"visible":true`, `"text":"Santa Fe Trail Main"`, `"left":205`, `"top":155`} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %q in %s", want, body)
		}
	}

	body = f.api.Post("/api/v1/viewer/pointer/sante-fe-trail/leave").Body.String()
	if !strings.Contains(body, `"visible":false`) {
		t.Errorf("tooltip not hidden: %s", body)
	}
}

func TestPointerHiddenLayerHidesTooltip(t *testing.T) {
	f := newFixture(t, "north-arrow")

	body := f.api.Post("/api/v1/viewer/pointer/sante-fe-trail", map[string]any{
		"lng": -98.0, "lat": 38.0, "pagex": 200, "pagey": 150, "zoom": 6,
	}).Body.String()
	if !strings.Contains(body, `"visible":false`) {
		t.Errorf("tooltip shown for hidden layer: %s", body)
	}
}

func TestBearingRotatesNorthArrow(t *testing.T) {
	f := newFixture(t, "north-arrow")

	body := f.api.Post("/api/v1/viewer/bearing", map[string]any{"bearing": 90}).Body.String()
	for _, want := range []string{"#north-arrow", "rotate(-90deg)"} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %q in %s", want, body)
		}
	}
	if got := f.session.Bearing(); got != 90 {
		t.Errorf("bearing=%v", got)
	}
}

func TestBearingRequired(t *testing.T) {
	f := newFixture(t, "north-arrow")

	resp := f.api.Post("/api/v1/viewer/bearing", map[string]any{})
	if resp.Code != http.StatusUnprocessableEntity {
		t.Errorf("status=%d, want 422", resp.Code)
	}
}

func TestBearingWithoutNorthArrow(t *testing.T) {
	f := newFixture(t, "")

	body := f.api.Post("/api/v1/viewer/bearing", map[string]any{"bearing": 45}).Body.String()
	if !strings.Contains(body, "north arrow element not found") {
		t.Errorf("no error signal: %s", body)
	}
	if strings.Contains(body, "rotate(") {
		t.Errorf("arrow patched without element: %s", body)
	}
}

func TestLegendStartsEmpty(t *testing.T) {
	f := newFixture(t, "north-arrow")

	body := f.api.Get("/api/v1/viewer/legend").Body.String()
	if !strings.Contains(body, "legend-content") {
		t.Fatalf("legend not patched: %s", body)
	}
	if strings.Contains(body, "legend-item") {
		t.Errorf("hidden layers in legend: %s", body)
	}
}

func TestPage(t *testing.T) {
	f := newFixture(t, "north-arrow")

	rec := httptest.NewRecorder()
	f.handler.Page(rec, httptest.NewRequest(http.MethodGet, "/viewer", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	html := rec.Body.String()
	for _, want := range []string{"Historical Trails", `id="tears"`, `id="erie-canal"`, `id="north-arrow"`, "layer-toggle", `id="tooltip"`} {
		if !strings.Contains(html, want) {
			t.Errorf("missing %q", want)
		}
	}
	if !strings.Contains(html, `"?zoom="`) || !strings.Contains(html, "zoomend") {
		t.Error("overlay data not requested per zoom level")
	}
	// Layers outside the legend are still toggleable.
	for _, id := range []string{"states", "counties", "state-labels"} {
		if !strings.Contains(html, `id="`+id+`"`) {
			t.Errorf("no checkbox for %s", id)
		}
	}
	if strings.Contains(html, "legend-item") {
		t.Error("legend rendered before any layer is visible")
	}
}

func TestEventsStream(t *testing.T) {
	f := newFixture(t, "north-arrow")
	srv := httptest.NewServer(f.mux)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/viewer/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	// Publish until the subscriber picks it up.
	go func() {
		tick := time.NewTicker(20 * time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
				f.bus.Publish(service.LoadEvent(service.LoadStatus{LayerID: "erie-canal", State: service.LoadLoaded}))
			}
		}
	}()

	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		if strings.Contains(sc.Text(), "layer-registered") {
			return
		}
	}
	t.Fatalf("stream ended without layer-registered: %v", sc.Err())
}
