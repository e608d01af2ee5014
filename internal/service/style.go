package service

// StyleConfig holds the basemap settings of the viewer.
type StyleConfig struct {
	TileURL     string
	Attribution string
	GlyphsURL   string
	Opacity     float64
	Center      [2]float64
	Zoom        float64
}

// DefaultStyleConfig is the Esri World Physical basemap centred on the
// contiguous United States.
func DefaultStyleConfig() StyleConfig {
	return StyleConfig{
		TileURL:     "https://server.arcgisonline.com/ArcGIS/rest/services/World_Physical_Map/MapServer/tile/{z}/{y}/{x}",
		Attribution: "Esri",
		GlyphsURL:   "http://localhost:8001/glyphs/{fontstack}/{range}.pbf",
		Opacity:     0.3,
		Center:      [2]float64{-98.35, 39.5},
		Zoom:        4,
	}
}

// MapStyle is a MapLibre style document plus the initial camera.
type MapStyle struct {
	Version int                    `json:"version" doc:"Style spec version" example:"8"`
	Sources map[string]StyleSource `json:"sources" doc:"Basemap sources"`
	Glyphs  string                 `json:"glyphs" doc:"Glyph URL template for labels"`
	Layers  []StyleLayer           `json:"layers" doc:"Basemap layers"`
	Center  [2]float64             `json:"center" doc:"Initial center [lng, lat]"`
	Zoom    float64                `json:"zoom" doc:"Initial zoom"`
	Scale   ScaleControl           `json:"scale" doc:"Scale control options"`
}

// StyleSource is a MapLibre source.
type StyleSource struct {
	Type        string   `json:"type"`
	Tiles       []string `json:"tiles,omitempty"`
	TileSize    int      `json:"tileSize,omitempty"`
	Attribution string   `json:"attribution,omitempty"`
	Data        string   `json:"data,omitempty"`
}

// StyleLayer is a MapLibre layer definition.
type StyleLayer struct {
	ID      string         `json:"id"`
	Type    string         `json:"type"`
	Source  any            `json:"source"`
	MinZoom int            `json:"minzoom,omitempty"`
	MaxZoom int            `json:"maxzoom,omitempty"`
	Layout  map[string]any `json:"layout,omitempty"`
	Paint   map[string]any `json:"paint,omitempty"`
}

// ScaleControl configures the MapLibre scale control.
type ScaleControl struct {
	MaxWidth int    `json:"maxWidth"`
	Unit     string `json:"unit"`
	Position string `json:"position"`
}

// BuildMapStyle returns the basemap style.
func BuildMapStyle(cfg StyleConfig) MapStyle {
	const basemap = "esriWorldPhysical"
	return MapStyle{
		Version: 8,
		Sources: map[string]StyleSource{
			basemap: {
				Type:        "raster",
				Tiles:       []string{cfg.TileURL},
				TileSize:    256,
				Attribution: cfg.Attribution,
			},
		},
		Glyphs: cfg.GlyphsURL,
		Layers: []StyleLayer{{
			ID:      basemap + "-layer",
			Type:    "raster",
			Source:  basemap,
			MinZoom: 0,
			MaxZoom: 23,
			Paint:   map[string]any{"raster-opacity": cfg.Opacity},
		}},
		Center: cfg.Center,
		Zoom:   cfg.Zoom,
		Scale:  ScaleControl{MaxWidth: 100, Unit: "metric", Position: "bottom-right"},
	}
}

// OverlayLayer returns the MapLibre definition of a registry layer, hidden,
// with its geometry served from dataURL.
func OverlayLayer(l Layer, dataURL string) StyleLayer {
	def := StyleLayer{
		ID:     l.ID,
		Type:   string(l.Type),
		Source: StyleSource{Type: "geojson", Data: dataURL},
		Layout: map[string]any{"visibility": string(VisibilityNone)},
	}

	switch l.Type {
	case LayerTypeSymbol:
		def.Layout["text-field"] = []any{
			"format",
			[]any{"get", l.LabelField},
			map[string]any{
				"font-scale": 0.8,
				"text-font":  []any{"literal", []string{"Metropolis-Light"}},
			},
		}
		def.Layout["text-size"] = 12
		def.Layout["text-anchor"] = "center"
		def.Layout["text-justify"] = "center"
		def.Layout["symbol-placement"] = "point"
		def.Layout["text-allow-overlap"] = false
		def.Layout["text-ignore-placement"] = false
		def.Layout["text-padding"] = 2
		def.Paint = map[string]any{
			"text-color":      l.Color,
			"text-halo-color": "white",
			"text-halo-width": 1,
		}
	default:
		def.Paint = map[string]any{
			"line-color": l.Color,
			"line-width": l.Width,
		}
		if len(l.LineDash) > 0 {
			def.Paint["line-dasharray"] = l.LineDash
		}
	}
	return def
}
