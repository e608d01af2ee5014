package humastar

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/danielgtaylor/huma/v2/humatest"
)

func TestParseSignals(t *testing.T) {
	s, err := ParseSignals([]byte(`{"checked": true, "lng": -98.5, "bearing": "90", "name": "tears"}`))
	if err != nil {
		t.Fatal(err)
	}
	if !s.Bool("checked") {
		t.Error("checked=false")
	}
	if got := s.Float("lng"); got != -98.5 {
		t.Errorf("lng=%v", got)
	}
	if got, ok := s.Number("bearing"); !ok || got != 90 {
		t.Errorf("bearing=%v ok=%v", got, ok)
	}
	for _, key := range []string{"name", "missing"} {
		if _, ok := s.Number(key); ok {
			t.Errorf("%s reported as a number", key)
		}
	}
	if s.Bool("name") {
		t.Error("string reported as true")
	}
}

func TestParseSignalsEmptyBody(t *testing.T) {
	s, err := ParseSignals(nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(s) != 0 {
		t.Errorf("signals=%v", s)
	}

	in := SignalsInput{RawBody: []byte("{")}
	_, err = in.Signals()
	var se huma.StatusError
	if !errors.As(err, &se) || se.GetStatus() != http.StatusBadRequest {
		t.Errorf("err=%v, want 400", err)
	}
}

func TestActionLinkHeader(t *testing.T) {
	actions := ActionsFor("tears", ShowLayer, LayerData)
	if len(actions) != 2 {
		t.Fatalf("got %d actions", len(actions))
	}
	want := `</api/v1/viewer/layers/tears/visibility>; rel="show"; method="POST"; title="Show layer"; signals="{\"checked\":true}"`
	if got := actions[0].LinkHeader(); got != want {
		t.Errorf("got  %s\nwant %s", got, want)
	}
	if got := actions[1].LinkHeader(); got != `</api/v1/layers/tears/data>; rel="data"; title="Layer GeoJSON"` {
		t.Errorf("data link %s", got)
	}

	a := Action{Rel: "x", Href: "/x", Title: `say "hi"`}
	if got := a.LinkHeader(); got != `</x>; rel="x"; title="say \"hi\""` {
		t.Errorf("got %s", got)
	}
}

type itemBody struct {
	ID string `json:"id"`
}

func (b itemBody) Actions() []Action {
	return ActionsFor(b.ID, HideLayer)
}

func TestAutoLinks(t *testing.T) {
	links := Links{}
	cfg := huma.DefaultConfig("Links test", "1.0.0")
	cfg.Transformers = append(cfg.Transformers, links.Transformer())
	api := humatest.Wrap(t, humago.New(http.NewServeMux(), cfg))

	huma.Get(api, "/health", func(ctx context.Context, _ *struct{}) (*struct{ Body string }, error) {
		return &struct{ Body string }{Body: "ok"}, nil
	}, huma.OperationTags("health"))
	huma.Get(api, "/api/v1/layers", func(ctx context.Context, _ *struct{}) (*struct{ Body []string }, error) {
		return &struct{ Body []string }{Body: []string{"tears"}}, nil
	}, huma.OperationTags("layers"))
	huma.Get(api, "/api/v1/layers/{id}", func(ctx context.Context, in *struct {
		ID string `path:"id"`
	}) (*struct{ Body itemBody }, error) {
		return &struct{ Body itemBody }{Body: itemBody{ID: in.ID}}, nil
	}, huma.OperationTags("layers"))
	huma.Get(api, "/api/v1/viewer/legend", func(ctx context.Context, _ *struct{}) (*struct{ Body string }, error) {
		return &struct{ Body string }{Body: ""}, nil
	}, huma.OperationTags("viewer"))

	AutoLinks(api, "viewer", links)

	health := api.Get("/health").Header().Values("Link")
	for _, want := range []string{
		`</api/v1/layers>; rel="layers"`,
		`</openapi.json>; rel="service-desc"`,
	} {
		if !slices.Contains(health, want) {
			t.Errorf("health links %v missing %s", health, want)
		}
	}
	if slices.Contains(health, `</api/v1/viewer/legend>; rel="legend"`) {
		t.Error("viewer operation linked")
	}

	item := api.Get("/api/v1/layers/tears").Header().Values("Link")
	for _, want := range []string{
		`</api/v1/layers>; rel="collection"`,
		`</api/v1/layers/tears>; rel="self"`,
		`</api/v1/viewer/layers/tears/visibility>; rel="hide"; method="POST"; title="Hide layer"; signals="{\"checked\":false}"`,
	} {
		if !slices.Contains(item, want) {
			t.Errorf("item links %v missing %s", item, want)
		}
	}

	coll := api.Get("/api/v1/layers").Header().Values("Link")
	if !slices.Contains(coll, `</api/v1/layers/{id}>; rel="item"`) {
		t.Errorf("collection links %v", coll)
	}
}
