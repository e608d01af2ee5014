package service

import "fmt"

// LegendEntry is one row of the legend panel.
type LegendEntry struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Color  string `json:"color"`
	Dashed bool   `json:"dashed"`
}

// SymbolStyle returns the inline CSS of the legend swatch: a solid fill, or
// a dashed top border over a transparent fill for dashed layers.
func (e LegendEntry) SymbolStyle() string {
	if e.Dashed {
		return fmt.Sprintf("border-top: 2px dashed %s; background-color: transparent", e.Color)
	}
	return "background-color: " + e.Color
}

// LegendRenderer lists the visible layers of a session in registry order.
type LegendRenderer struct {
	registry *Registry
	session  *Session
}

// NewLegendRenderer creates a legend renderer.
func NewLegendRenderer(registry *Registry, session *Session) *LegendRenderer {
	return &LegendRenderer{registry: registry, session: session}
}

// Build rescans the registry against live session state. Layers that are
// not registered yet count as hidden.
func (r *LegendRenderer) Build() []LegendEntry {
	entries := []LegendEntry{}
	for _, l := range r.registry.All() {
		if !l.Legend {
			continue
		}
		if v, _ := r.session.Visibility(l.ID); v != VisibilityVisible {
			continue
		}
		entries = append(entries, LegendEntry{
			ID:     l.ID,
			Name:   l.Name,
			Color:  l.Color,
			Dashed: l.Dashed(),
		})
	}
	return entries
}
