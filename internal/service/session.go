package service

import (
	"fmt"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Session is the server-side model of one map widget: the layers added to
// it, their visibility, the geometry behind them and the current bearing.
// Controllers receive the session explicitly.
type Session struct {
	mu      sync.RWMutex
	layers  map[string]*sessionLayer
	order   []string
	bearing float64
}

type sessionLayer struct {
	layer      Layer
	visibility Visibility
	data       *geojson.FeatureCollection
	index      *featureIndex
}

// NewSession creates an empty map session.
func NewSession() *Session {
	return &Session{layers: make(map[string]*sessionLayer)}
}

// AddLayer registers a layer with its geometry, hidden.
// Registering an ID twice fails with ErrDuplicateLayer and leaves the
// existing layer untouched.
func (s *Session) AddLayer(layer Layer, data *geojson.FeatureCollection) error {
	if data == nil {
		data = geojson.NewFeatureCollection()
	}
	index := newFeatureIndex(data)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.layers[layer.ID]; exists {
		return fmt.Errorf("layer %q: %w", layer.ID, ErrDuplicateLayer)
	}
	s.layers[layer.ID] = &sessionLayer{
		layer:      layer,
		visibility: VisibilityNone,
		data:       data,
		index:      index,
	}
	s.order = append(s.order, layer.ID)
	return nil
}

// HasLayer reports whether a layer has been added.
func (s *Session) HasLayer(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.layers[id]
	return ok
}

// LayerIDs returns registered layer IDs in the order they were added.
func (s *Session) LayerIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, len(s.order))
	copy(ids, s.order)
	return ids
}

// SetVisibility sets the layout visibility of a registered layer.
func (s *Session) SetVisibility(id string, v Visibility) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.layers[id]
	if !ok {
		return fmt.Errorf("layer %q: %w", id, ErrLayerNotFound)
	}
	l.visibility = v
	return nil
}

// Visibility returns the visibility of a layer. Layers that are not
// registered report VisibilityNone and false.
func (s *Session) Visibility(id string) (Visibility, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.layers[id]
	if !ok {
		return VisibilityNone, false
	}
	return l.visibility, true
}

// Data returns the geometry behind a registered layer.
func (s *Session) Data(id string) (*geojson.FeatureCollection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.layers[id]
	if !ok {
		return nil, false
	}
	return l.data, true
}

// QueryRenderedFeatures returns the features of a layer within tolerance
// degrees of p. Hidden or unregistered layers render nothing and return nil.
// Results are nearest first; the order of equidistant features follows the
// source collection and callers should not rely on it further.
func (s *Session) QueryRenderedFeatures(id string, p orb.Point, tolerance float64) []*geojson.Feature {
	s.mu.RLock()
	l, ok := s.layers[id]
	if !ok || l.visibility != VisibilityVisible {
		s.mu.RUnlock()
		return nil
	}
	index := l.index
	s.mu.RUnlock()

	return index.query(p, tolerance)
}

// SetBearing records the map rotation in degrees.
func (s *Session) SetBearing(bearing float64) {
	s.mu.Lock()
	s.bearing = bearing
	s.mu.Unlock()
}

// Bearing returns the map rotation in degrees.
func (s *Session) Bearing() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bearing
}
