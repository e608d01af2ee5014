package service

import (
	"errors"
	"fmt"
)

// TaskLookup finds the load task of a layer.
type TaskLookup interface {
	Task(id string) (*LoadTask, bool)
}

// VisibilityController applies checkbox changes to the session and
// rebuilds the legend.
type VisibilityController struct {
	registry *Registry
	session  *Session
	tasks    TaskLookup
	legend   *LegendRenderer
	bus      *EventBus
}

// NewVisibilityController creates a visibility controller. tasks may be nil
// when every layer is registered up front.
func NewVisibilityController(registry *Registry, session *Session, tasks TaskLookup, legend *LegendRenderer, bus *EventBus) *VisibilityController {
	return &VisibilityController{
		registry: registry,
		session:  session,
		tasks:    tasks,
		legend:   legend,
		bus:      bus,
	}
}

// Toggle sets layer id visible when checked and hidden otherwise, and
// returns the rebuilt legend.
//
// A layer whose fetch is still pending ignores the toggle without error.
// Unknown IDs fail with ErrUnknownLayer and layers that never made it onto
// the map fail with ErrLayerNotFound; in both cases the session is
// unchanged and the returned legend is still current.
func (c *VisibilityController) Toggle(id string, checked bool) ([]LegendEntry, error) {
	if _, ok := c.registry.Get(id); !ok {
		return c.legend.Build(), fmt.Errorf("toggle %q: %w", id, ErrUnknownLayer)
	}

	if c.tasks != nil {
		if task, ok := c.tasks.Task(id); ok && task.Pending() {
			return c.legend.Build(), nil
		}
	}

	v := VisibilityOf(checked)
	if err := c.session.SetVisibility(id, v); err != nil {
		return c.legend.Build(), fmt.Errorf("toggle: %w", err)
	}
	c.bus.Publish(VisibilityEvent(id, v))

	return c.legend.Build(), nil
}

// Recoverable reports whether a Toggle error only affects the one layer.
func Recoverable(err error) bool {
	return errors.Is(err, ErrUnknownLayer) || errors.Is(err, ErrLayerNotFound)
}
