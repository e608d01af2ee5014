package humastar

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/rs/zerolog/log"
	"github.com/starfederation/datastar-go/datastar"
)

// SSE is a Datastar event stream on a Huma response.
type SSE struct {
	*datastar.ServerSentEventGenerator
}

// NewSSE starts a Datastar stream on a Huma streaming context.
func NewSSE(ctx huma.Context) SSE {
	r, w := humago.Unwrap(ctx)
	return SSE{datastar.NewSSE(w, r)}
}

// Replace swaps the element at selector for html.
func (s SSE) Replace(html, selector string) {
	if err := s.PatchElements(html, datastar.WithSelector(selector), datastar.WithModeOuter()); err != nil {
		log.Debug().Err(err).Str("selector", selector).Msg("Patch not delivered")
	}
}

// Signals merges signals into the page store.
func (s SSE) Signals(signals map[string]any) {
	if err := s.MarshalAndPatchSignals(signals); err != nil {
		log.Debug().Err(err).Msg("Signals not delivered")
	}
}

// Error shows msg in the page's error line.
func (s SSE) Error(msg string) {
	s.Signals(map[string]any{"error": msg})
}

// Dispatch fires a DOM CustomEvent named name with detail on the page.
func (s SSE) Dispatch(name string, detail map[string]any) {
	if err := s.DispatchCustomEvent(name, detail); err != nil {
		log.Debug().Err(err).Str("event", name).Msg("Event not delivered")
	}
}
