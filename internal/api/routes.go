// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-trails/internal/humastar"
	"github.com/joeblew999/plat-trails/internal/service"
)

// Services holds the service dependencies for API handlers.
type Services struct {
	Registry *service.Registry
	Session  *service.Session
	Loader   *service.Loader
	Source   *service.SourceService
	Style    service.StyleConfig
}

// Types

type IDInput struct {
	ID string `path:"id" doc:"Layer ID" example:"tears"`
}

type LayerDataInput struct {
	ID   string `path:"id" doc:"Layer ID" example:"tears"`
	Zoom int    `query:"zoom" minimum:"0" maximum:"24" default:"24" doc:"Map zoom; lower zooms get simplified geometry"`
}

// LayerBody is a layer with its live state. It advertises the actions that
// apply in that state as Link headers.
type LayerBody struct {
	service.LayerStatus
}

// Actions implements humastar.Actor.
func (b LayerBody) Actions() []humastar.Action {
	if !b.Registered {
		return nil
	}
	toggle := humastar.ShowLayer
	if b.Visibility == service.VisibilityVisible {
		toggle = humastar.HideLayer
	}
	return humastar.ActionsFor(b.Layer.ID, toggle, humastar.LayerData)
}

type LayerOutput struct {
	Body LayerBody
}

type LayersOutput struct {
	Body []service.LayerStatus
}

type LayerDataOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"1.0.0"`
}

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterRoutes registers every Register* group of the handler.
func RegisterRoutes(api huma.API, svc *Services) {
	huma.AutoRegister(api, NewAPIHandler(svc))
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// RegisterLayers registers layer routes.
func (h *APIHandler) RegisterLayers(api huma.API) {
	huma.Get(api, "/api/v1/layers", h.GetLayers, huma.OperationTags("layers"))
	huma.Get(api, "/api/v1/layers/{id}", h.GetLayer, huma.OperationTags("layers"))
	huma.Register(api, huma.Operation{
		OperationID: "get-layer-data",
		Method:      http.MethodGet,
		Path:        "/api/v1/layers/{id}/data",
		Summary:     "Get layer GeoJSON",
		Tags:        []string{"layers"},
		Responses: map[string]*huma.Response{
			"200": {
				Description: "GeoJSON FeatureCollection",
				Content:     map[string]*huma.MediaType{"application/geo+json": {}},
			},
		},
	}, h.GetLayerData)
}

// RegisterMap registers the map style routes.
func (h *APIHandler) RegisterMap(api huma.API) {
	huma.Get(api, "/api/v1/map/style", h.GetMapStyle, huma.OperationTags("map"))
	huma.Get(api, "/api/v1/map/layers", h.GetMapLayers, huma.OperationTags("map"))
}

// RegisterSources registers source listing routes.
func (h *APIHandler) RegisterSources(api huma.API) {
	huma.Get(api, "/api/v1/sources", h.GetSources, huma.OperationTags("sources"))
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: "1.0.0"}}, nil
}

func (h *APIHandler) GetLayers(ctx context.Context, input *struct{}) (*LayersOutput, error) {
	layers := h.svc.Registry.All()
	out := make([]service.LayerStatus, len(layers))
	for i, l := range layers {
		out[i] = h.status(l)
	}
	return &LayersOutput{Body: out}, nil
}

func (h *APIHandler) GetLayer(ctx context.Context, input *IDInput) (*LayerOutput, error) {
	layer, ok := h.svc.Registry.Get(input.ID)
	if !ok {
		return nil, huma.Error404NotFound("layer not found")
	}
	return &LayerOutput{Body: LayerBody{h.status(layer)}}, nil
}

func (h *APIHandler) GetLayerData(ctx context.Context, input *LayerDataInput) (*LayerDataOutput, error) {
	if _, ok := h.svc.Registry.Get(input.ID); !ok {
		return nil, huma.Error404NotFound("layer not found")
	}
	fc, ok := h.svc.Session.Data(input.ID)
	if !ok {
		return nil, huma.Error409Conflict("layer not registered", errors.New(h.loadState(input.ID)))
	}
	data, err := service.Simplify(fc, input.Zoom).MarshalJSON()
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to encode GeoJSON", err)
	}
	return &LayerDataOutput{ContentType: "application/geo+json", Body: data}, nil
}

func (h *APIHandler) GetMapStyle(ctx context.Context, input *struct{}) (*struct{ Body service.MapStyle }, error) {
	return &struct{ Body service.MapStyle }{Body: service.BuildMapStyle(h.svc.Style)}, nil
}

// GetMapLayers returns the overlay definitions of registered layers, with
// their current visibility, in registry order.
func (h *APIHandler) GetMapLayers(ctx context.Context, input *struct{}) (*struct{ Body []service.StyleLayer }, error) {
	defs := []service.StyleLayer{}
	for _, l := range h.svc.Registry.All() {
		vis, ok := h.svc.Session.Visibility(l.ID)
		if !ok {
			continue
		}
		def := service.OverlayLayer(l, "/api/v1/layers/"+l.ID+"/data")
		def.Layout["visibility"] = string(vis)
		defs = append(defs, def)
	}
	return &struct{ Body []service.StyleLayer }{Body: defs}, nil
}

func (h *APIHandler) GetSources(ctx context.Context, input *struct{}) (*struct{ Body []service.SourceFile }, error) {
	if h.svc.Source == nil {
		return &struct{ Body []service.SourceFile }{Body: []service.SourceFile{}}, nil
	}
	sources, err := h.svc.Source.List()
	if err != nil {
		return &struct{ Body []service.SourceFile }{Body: []service.SourceFile{}}, nil
	}
	return &struct{ Body []service.SourceFile }{Body: sources}, nil
}

func (h *APIHandler) status(l service.Layer) service.LayerStatus {
	vis, registered := h.svc.Session.Visibility(l.ID)
	st := service.LayerStatus{Layer: l, Registered: registered, Visibility: vis}
	if h.svc.Loader != nil {
		if task, ok := h.svc.Loader.Task(l.ID); ok {
			st.Load = task.Status()
		}
	}
	return st
}

func (h *APIHandler) loadState(id string) string {
	if h.svc.Loader != nil {
		if task, ok := h.svc.Loader.Task(id); ok {
			st := task.Status()
			if st.Error != "" {
				return string(st.State) + ": " + st.Error
			}
			return string(st.State)
		}
	}
	return "not loaded"
}
