package viewer

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-trails/internal/humastar"
	"github.com/joeblew999/plat-trails/internal/service"
)

// Events streams session changes to the page: load progress of the async
// layers and visibility changes made from any tab.
func (h *Handler) Events(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return &huma.StreamResponse{
		Body: func(humaCtx huma.Context) {
			sse := humastar.NewSSE(humaCtx)
			subCtx, cancel := context.WithCancel(sse.Context())
			defer cancel()
			ch := h.c.Bus.Subscribe(subCtx)

			// Catch up on loads that settled before the page connected.
			sse.Signals(map[string]any{"layerstatus": h.loadStates()})

			for {
				select {
				case <-ctx.Done():
					return
				case ev, ok := <-ch:
					if !ok {
						return
					}
					h.push(sse, ev)
				}
			}
		},
	}, nil
}

func (h *Handler) push(sse humastar.SSE, ev service.Event) {
	switch ev.Kind {
	case service.EventLoad:
		sse.Signals(map[string]any{"layerstatus": map[string]any{ev.LayerID: ev.State}})
		switch service.LoadState(ev.State) {
		case service.LoadLoaded:
			sse.Dispatch("layer-registered", map[string]any{"id": ev.LayerID})
		case service.LoadFailed:
			if layer, ok := h.c.Registry.Get(ev.LayerID); ok && layer.Async {
				sse.Error(layer.Name + " failed to load")
			}
		}
	case service.EventVisibility:
		sse.Replace(h.renderLegend(h.c.Legend.Build()), legendSelector)
		sse.Dispatch("layer-visibility", map[string]any{
			"id": ev.LayerID, "visibility": ev.State,
		})
	}
}

// loadStates maps each layer with a load task to its state.
func (h *Handler) loadStates() map[string]string {
	states := map[string]string{}
	if h.c.Tasks == nil {
		return states
	}
	for _, l := range h.c.Registry.All() {
		if task, ok := h.c.Tasks.Task(l.ID); ok {
			states[l.ID] = string(task.Status().State)
		}
	}
	return states
}
