package service

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Registry is the ordered, validated set of overlay layers.
// It is built once and never mutated.
type Registry struct {
	layers []Layer
	index  map[string]int
}

// NewRegistry validates layers and builds a registry preserving their order.
// Layers without an ID get one generated from their name.
func NewRegistry(layers []Layer) (*Registry, error) {
	r := &Registry{
		layers: make([]Layer, 0, len(layers)),
		index:  make(map[string]int, len(layers)),
	}
	for _, l := range layers {
		if l.ID == "" {
			l.ID = generateID(l.Name)
		}
		if l.Type == "" {
			l.Type = LayerTypeLine
		}
		if l.Width == 0 {
			l.Width = 2
		}
		if err := validateLayer(l); err != nil {
			return nil, err
		}
		if _, exists := r.index[l.ID]; exists {
			return nil, fmt.Errorf("layer %q: %w", l.ID, ErrDuplicateLayer)
		}
		r.index[l.ID] = len(r.layers)
		r.layers = append(r.layers, l.clone())
	}
	return r, nil
}

// LoadRegistry reads a YAML registry file of the form:
//
//	layers:
//	  - id: tears
//	    name: Trails of Tears
//	    color: purple
//	    dash_array: [2, 4]
//	    source: trail.json
//	    tooltip_field: TRALTNAME
//	    legend: true
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file struct {
		Layers []Layer `yaml:"layers"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing registry %s: %w", path, err)
	}
	if len(file.Layers) == 0 {
		return nil, fmt.Errorf("registry %s defines no layers", path)
	}
	return NewRegistry(file.Layers)
}

// All returns every layer in registry order.
func (r *Registry) All() []Layer {
	result := make([]Layer, len(r.layers))
	for i, l := range r.layers {
		result[i] = l.clone()
	}
	return result
}

// Get returns a layer by ID.
func (r *Registry) Get(id string) (Layer, bool) {
	i, ok := r.index[id]
	if !ok {
		return Layer{}, false
	}
	return r.layers[i].clone(), true
}

// clone copies l so callers cannot reach the registry's dash slices.
func (l Layer) clone() Layer {
	l.DashArray = slices.Clone(l.DashArray)
	l.LineDash = slices.Clone(l.LineDash)
	return l
}

// Len returns the number of layers.
func (r *Registry) Len() int {
	return len(r.layers)
}

// Tooltips returns the IDs of layers that show a tooltip on hover.
func (r *Registry) Tooltips() []string {
	var ids []string
	for _, l := range r.layers {
		if l.HasTooltip() {
			ids = append(ids, l.ID)
		}
	}
	return ids
}

// Marshal returns the registry as YAML, in the format LoadRegistry reads.
func (r *Registry) Marshal() ([]byte, error) {
	return yaml.Marshal(struct {
		Layers []Layer `yaml:"layers"`
	}{Layers: r.layers})
}

func validateLayer(l Layer) error {
	switch {
	case l.ID == "":
		return fmt.Errorf("layer %q: empty id", l.Name)
	case l.Name == "":
		return fmt.Errorf("layer %q: empty name", l.ID)
	case l.Color == "":
		return fmt.Errorf("layer %q: empty color", l.ID)
	case l.Source == "":
		return fmt.Errorf("layer %q: empty source", l.ID)
	}
	switch l.Type {
	case LayerTypeLine:
		if l.LabelField != "" {
			return fmt.Errorf("layer %q: label field on a line layer", l.ID)
		}
	case LayerTypeSymbol:
		if l.LabelField == "" {
			return fmt.Errorf("layer %q: symbol layer without label field", l.ID)
		}
		if l.HasTooltip() {
			return fmt.Errorf("layer %q: tooltips are only supported on line layers", l.ID)
		}
	default:
		return fmt.Errorf("layer %q: unsupported type %q", l.ID, l.Type)
	}
	return nil
}

// generateID creates a URL-safe ID from a name.
func generateID(name string) string {
	id := strings.ToLower(name)
	id = strings.ReplaceAll(id, " ", "-")
	var result strings.Builder
	for _, r := range id {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// DefaultLayers returns the historical trails overlay set.
func DefaultLayers() []Layer {
	trailDash := func() []float64 { return []float64{2, 4} }
	brokenDash := func() []float64 { return []float64{50, 5} }
	return []Layer{
		{ID: "tears", Name: "Trails of Tears", Color: "purple", DashArray: trailDash(), LineDash: brokenDash(),
			Source: "trail.json", TooltipField: "TRALTNAME", Legend: true},
		{ID: "Oregon", Name: "Oregon Trails", Color: "brown", DashArray: trailDash(), LineDash: brokenDash(),
			Source: "oreg_nht_100k_line.json", TooltipField: "TR_NAME", Legend: true},
		{ID: "mormon", Name: "Mormon Trail", Color: "blue", DashArray: trailDash(), LineDash: []float64{50, 50},
			Source: "mormon.json", TooltipField: "TR_NAME", Legend: true},
		{ID: "cali-trails", Name: "California Trails", Color: "green", DashArray: trailDash(), LineDash: brokenDash(),
			Source: "cali_trail.json", TooltipField: "ROUTE_NAME", Legend: true},
		{ID: "sante-fe-trail", Name: "Santa Fe Trail", Color: "orange", DashArray: trailDash(), LineDash: brokenDash(),
			Source: "SAFE_trail.json", TooltipField: "TR_NAME", Legend: true},
		{ID: "railroads", Name: "Railroads", Color: "grey", Width: 0.5,
			Source: "new_rails.json", Legend: true},
		{ID: "erie-canal", Name: "Erie Canal", Color: "navy",
			Source: "erie.json", Async: true, Legend: true},
		{ID: "great-wagon-road", Name: "The Great Wagon Road", Color: "darkred", DashArray: trailDash(), LineDash: brokenDash(),
			Source: "greatwagon.json", Async: true, Legend: true},
		{ID: "states", Name: "States (1920)", Color: "#000000", Width: 1,
			Source: "states1920.geojson"},
		{ID: "counties", Name: "Counties", Color: "red", Width: 0.5,
			Source: "us_county.json"},
		{ID: "state-labels", Name: "State Labels", Color: "black", Type: LayerTypeSymbol,
			Source: "states1920.geojson", LabelField: "LABEL"},
	}
}

// DefaultRegistry returns the registry built from DefaultLayers.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultLayers())
	if err != nil {
		panic(err)
	}
	return r
}
