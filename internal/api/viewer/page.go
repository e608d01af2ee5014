package viewer

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/joeblew999/plat-trails/internal/service"
)

// Routes are the endpoints the page calls.
type Routes struct {
	Legend  string
	Events  string
	Pointer string // prefix, the layer id is appended
	Bearing string
}

var pageRoutes = Routes{
	Legend:  "/api/v1/viewer/legend",
	Events:  "/api/v1/viewer/events",
	Pointer: "/api/v1/viewer/pointer/",
	Bearing: "/api/v1/viewer/bearing",
}

// ClientConfig is handed to the page script.
type ClientConfig struct {
	StyleURL    string   `json:"styleURL"`
	OverlaysURL string   `json:"overlaysURL"`
	Tooltips    []string `json:"tooltips"`
}

// CheckboxData is the layer-checkbox template data.
type CheckboxData struct {
	ID            string
	Name          string
	Style         string
	Async         bool
	Checked       bool
	VisibilityURL string
}

// PageData is the viewer page template data.
type PageData struct {
	Title      string
	Signals    string
	Layers     []CheckboxData
	Routes     Routes
	NorthArrow NorthArrowData
	Client     ClientConfig
}

// Page serves the map page. The layer panel reflects the live session.
func (h *Handler) Page(w http.ResponseWriter, r *http.Request) {
	data, err := h.pageData()
	if err != nil {
		log.Error().Err(err).Msg("Failed to build viewer page")
		http.Error(w, "viewer unavailable", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := h.Renderer.RenderToBuffer(&buf, "viewer", data); err != nil {
		log.Error().Err(err).Msg("Failed to render viewer page")
		http.Error(w, "viewer unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func (h *Handler) pageData() (PageData, error) {
	var layers []CheckboxData
	for _, l := range h.c.Registry.All() {
		vis, _ := h.c.Session.Visibility(l.ID)
		entry := service.LegendEntry{ID: l.ID, Name: l.Name, Color: l.Color, Dashed: l.Dashed()}
		layers = append(layers, CheckboxData{
			ID:            l.ID,
			Name:          l.Name,
			Style:         entry.SymbolStyle(),
			Async:         l.Async,
			Checked:       vis == service.VisibilityVisible,
			VisibilityURL: "/api/v1/viewer/layers/" + l.ID + "/visibility",
		})
	}

	signals, err := json.Marshal(map[string]any{
		"tooltip":     h.c.Tooltip.State(),
		"layerstatus": h.loadStates(),
		"_panelopen":  true,
		"error":       "",
	})
	if err != nil {
		return PageData{}, err
	}

	o := service.RotationFor(h.c.Session.Bearing())
	return PageData{
		Title:   "Historical Trails",
		Signals: string(signals),
		Layers:  layers,
		Routes:  pageRoutes,
		NorthArrow: NorthArrowData{
			ID:        h.c.Orientation.ElementID(),
			Transform: o.Transform,
		},
		Client: ClientConfig{
			StyleURL:    "/api/v1/map/style",
			OverlaysURL: "/api/v1/map/layers",
			Tooltips:    h.c.Registry.Tooltips(),
		},
	}, nil
}
