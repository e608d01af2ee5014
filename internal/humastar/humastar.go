// Package humastar bridges Huma (REST/OpenAPI) with Datastar (SSE/hypermedia).
//
// Handlers registered with Huma return a [huma.StreamResponse] built by
// [Handler.Stream]; inside it an [SSE] patches page elements and signals.
// Request bodies arrive as Datastar [Signals].
//
//	func (h *Viewer) Legend(ctx context.Context, _ *humastar.EmptyInput) (*huma.StreamResponse, error) {
//	    return h.Stream(func(sse humastar.SSE) {
//	        sse.Replace(h.RenderOne("legend", h.legend.Build()), "#legend-content")
//	    }), nil
//	}
//
// JSON resources get RFC 8288 Link headers from [Links] and [Actor].
package humastar

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog/log"

	"github.com/joeblew999/plat-trails/internal/templates"
)

// Handler is embedded by handlers that answer with Datastar streams.
type Handler struct {
	Renderer *templates.Renderer
}

// Stream runs fn against the response once Huma starts streaming.
func (h *Handler) Stream(fn func(sse SSE)) *huma.StreamResponse {
	return &huma.StreamResponse{
		Body: func(ctx huma.Context) {
			fn(NewSSE(ctx))
		},
	}
}

// RenderOne renders a minified fragment. Failures are logged and render as
// the empty string so the stream carries on.
func (h *Handler) RenderOne(tmpl string, data any) string {
	html, err := h.Renderer.Render(tmpl, data)
	if err != nil {
		log.Error().Err(err).Str("template", tmpl).Msg("Render failed")
		return ""
	}
	return html
}

// EmptyInput is the input of handlers without parameters.
type EmptyInput struct{}
