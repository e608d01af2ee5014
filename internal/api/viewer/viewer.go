// Package viewer contains the Datastar SSE handlers that drive the map page.
package viewer

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog/log"

	"github.com/joeblew999/plat-trails/internal/humastar"
	"github.com/joeblew999/plat-trails/internal/service"
	"github.com/joeblew999/plat-trails/internal/templates"
)

// Page element selectors patched by the handlers.
const (
	legendSelector = "#legend-content"
)

// Controllers are the session controllers the handlers drive.
type Controllers struct {
	Registry    *service.Registry
	Session     *service.Session
	Tasks       service.TaskLookup
	Visibility  *service.VisibilityController
	Legend      *service.LegendRenderer
	Tooltip     *service.TooltipController
	Orientation *service.OrientationIndicator
	Bus         *service.EventBus
}

// Handler serves the viewer's SSE endpoints.
type Handler struct {
	humastar.Handler
	c Controllers
}

// NewHandler creates a viewer handler.
func NewHandler(c Controllers, renderer *templates.Renderer) *Handler {
	return &Handler{
		Handler: humastar.Handler{Renderer: renderer},
		c:       c,
	}
}

func (h *Handler) RegisterRoutes(api huma.API) {
	huma.Post(api, "/api/v1/viewer/layers/{id}/visibility", h.SetVisibility, huma.OperationTags("viewer"))
	huma.Post(api, "/api/v1/viewer/pointer/{id}", h.PointerMove, huma.OperationTags("viewer"))
	huma.Post(api, "/api/v1/viewer/pointer/{id}/leave", h.PointerLeave, huma.OperationTags("viewer"))
	huma.Post(api, "/api/v1/viewer/bearing", h.SetBearing, huma.OperationTags("viewer"))
	huma.Get(api, "/api/v1/viewer/legend", h.Legend, huma.OperationTags("viewer"))
	huma.Get(api, "/api/v1/viewer/events", h.Events, huma.OperationTags("viewer"))
}

type LayerSignalsInput struct {
	ID      string `path:"id" doc:"Layer ID" example:"tears"`
	RawBody []byte
}

func (i *LayerSignalsInput) signals() (humastar.Signals, error) {
	in := humastar.SignalsInput{RawBody: i.RawBody}
	return in.Signals()
}

// SetVisibility applies a layer checkbox change and patches the legend.
func (h *Handler) SetVisibility(ctx context.Context, input *LayerSignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.signals()
	if err != nil {
		return nil, err
	}
	checked := signals.Bool("checked")

	return h.Stream(func(sse humastar.SSE) {
		legend, err := h.c.Visibility.Toggle(input.ID, checked)
		if err != nil {
			// The session is unchanged; the rest of the page keeps working.
			ev := log.Error()
			if service.Recoverable(err) {
				ev = log.Warn()
			}
			ev.Err(err).Str("layer", input.ID).Bool("checked", checked).Msg("Layer toggle ignored")
			sse.Error(err.Error())
		}

		sse.Replace(h.renderLegend(legend), legendSelector)
		if vis, ok := h.c.Session.Visibility(input.ID); ok {
			sse.Dispatch("layer-visibility", map[string]any{
				"id": input.ID, "visibility": string(vis),
			})
		}
	}), nil
}

// PointerMove updates the tooltip for a pointer over a layer.
func (h *Handler) PointerMove(ctx context.Context, input *LayerSignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.signals()
	if err != nil {
		return nil, err
	}
	ev := service.PointerEvent{
		Lng:   signals.Float("lng"),
		Lat:   signals.Float("lat"),
		PageX: signals.Float("pagex"),
		PageY: signals.Float("pagey"),
		Zoom:  signals.Float("zoom"),
	}

	return h.Stream(func(sse humastar.SSE) {
		state, err := h.c.Tooltip.Move(input.ID, ev)
		if err != nil {
			log.Debug().Err(err).Str("layer", input.ID).Msg("Pointer over layer without tooltip")
		}
		sse.Signals(tooltipSignals(state))
	}), nil
}

// PointerLeave hides the tooltip.
func (h *Handler) PointerLeave(ctx context.Context, input *LayerSignalsInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		sse.Signals(tooltipSignals(h.c.Tooltip.Leave()))
	}), nil
}

type BearingInput struct {
	RawBody []byte
}

// SetBearing records the map bearing and counter-rotates the north arrow.
func (h *Handler) SetBearing(ctx context.Context, input *BearingInput) (*huma.StreamResponse, error) {
	in := humastar.SignalsInput{RawBody: input.RawBody}
	signals, err := in.Signals()
	if err != nil {
		return nil, err
	}
	bearing, ok := signals.Number("bearing")
	if !ok {
		return nil, huma.Error422UnprocessableEntity("bearing must be a number")
	}

	return h.Stream(func(sse humastar.SSE) {
		o, err := h.c.Orientation.Update(bearing)
		if errors.Is(err, service.ErrNoIndicator) {
			sse.Error(err.Error())
			return
		}
		sse.Replace(h.renderNorthArrow(o), h.c.Orientation.Selector())
	}), nil
}

// Legend patches the current legend.
func (h *Handler) Legend(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		sse.Replace(h.renderLegend(h.c.Legend.Build()), legendSelector)
	}), nil
}

func tooltipSignals(s service.TooltipState) map[string]any {
	return map[string]any{"tooltip": s}
}

// LegendItemData is the legend-item template data.
type LegendItemData struct {
	ID    string
	Name  string
	Style string
}

// renderLegend renders the whole #legend-content element so an empty
// legend still replaces the previous rows.
func (h *Handler) renderLegend(entries []service.LegendEntry) string {
	items := make([]LegendItemData, len(entries))
	for i, e := range entries {
		items[i] = LegendItemData{ID: e.ID, Name: e.Name, Style: e.SymbolStyle()}
	}
	return h.RenderOne("legend", items)
}

// NorthArrowData is the north-arrow template data.
type NorthArrowData struct {
	ID        string
	Transform string
}

func (h *Handler) renderNorthArrow(o service.Orientation) string {
	return h.RenderOne("north-arrow", NorthArrowData{
		ID:        h.c.Orientation.ElementID(),
		Transform: o.Transform,
	})
}
