package service

import (
	"fmt"
	"sync"

	"github.com/paulmach/orb"
)

// TooltipOffset is the pixel offset of the tooltip from the pointer.
const TooltipOffset = 5

// PointerEvent is a pointer position over the map.
type PointerEvent struct {
	Lng   float64 // map coordinates
	Lat   float64
	PageX float64 // page coordinates in pixels
	PageY float64
	Zoom  float64
}

// TooltipState is what the tooltip element shows.
type TooltipState struct {
	Visible bool    `json:"visible"`
	Text    string  `json:"text"`
	Left    float64 `json:"left"`
	Top     float64 `json:"top"`
}

// TooltipController shows the tooltip field of the feature under the
// pointer for layers that have one.
type TooltipController struct {
	registry *Registry
	session  *Session

	mu    sync.Mutex
	state TooltipState
}

// NewTooltipController creates a tooltip controller.
func NewTooltipController(registry *Registry, session *Session) *TooltipController {
	return &TooltipController{registry: registry, session: session}
}

// Move handles a pointer move over layer id. The first rendered feature at
// the pointer supplies the text; with no match the tooltip is hidden.
// A feature without the tooltip field shows an empty string.
func (c *TooltipController) Move(id string, ev PointerEvent) (TooltipState, error) {
	layer, ok := c.registry.Get(id)
	if !ok || !layer.HasTooltip() {
		return c.Leave(), fmt.Errorf("tooltip on %q: %w", id, ErrUnknownLayer)
	}

	features := c.session.QueryRenderedFeatures(id, orb.Point{ev.Lng, ev.Lat}, ToleranceAt(ev.Zoom))
	if len(features) == 0 {
		return c.Leave(), nil
	}

	state := TooltipState{
		Visible: true,
		Text:    propertyText(features[0].Properties[layer.TooltipField]),
		Left:    ev.PageX + TooltipOffset,
		Top:     ev.PageY + TooltipOffset,
	}

	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
	return state, nil
}

// Leave hides the tooltip.
func (c *TooltipController) Leave() TooltipState {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = TooltipState{}
	return c.state
}

// State returns the current tooltip.
func (c *TooltipController) State() TooltipState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// propertyText renders a raw property value; missing values are empty.
func propertyText(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}
