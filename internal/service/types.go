// Package service contains the map session and overlay controllers for plat-trails.
package service

import (
	"errors"
	"time"
)

var (
	// ErrUnknownLayer is returned for layer IDs that are not in the registry.
	ErrUnknownLayer = errors.New("unknown layer")
	// ErrLayerNotFound is returned when a layer is in the registry but not
	// registered with the session (still loading, or failed to load).
	ErrLayerNotFound = errors.New("layer not registered")
	// ErrDuplicateLayer is returned when a layer ID is registered twice.
	ErrDuplicateLayer = errors.New("duplicate layer")
	// ErrNoIndicator is returned when no north arrow element is configured.
	ErrNoIndicator = errors.New("north arrow element not found")
)

// Visibility is the layout visibility of a map layer.
type Visibility string

const (
	VisibilityVisible Visibility = "visible"
	VisibilityNone    Visibility = "none"
)

// VisibilityOf maps a checkbox state to a layer visibility.
func VisibilityOf(checked bool) Visibility {
	if checked {
		return VisibilityVisible
	}
	return VisibilityNone
}

// LayerType is the MapLibre layer type used to draw an overlay.
type LayerType string

const (
	LayerTypeLine   LayerType = "line"
	LayerTypeSymbol LayerType = "symbol"
)

// Layer is one overlay in the registry. It joins the display metadata used
// by the legend, the render paint sent to the map, and the tooltip binding.
//
// Tags are read by Huma for OpenAPI and by yaml.v3 for registry files.
type Layer struct {
	ID           string    `json:"id" yaml:"id" doc:"Unique layer identifier, also the checkbox id" example:"tears"`
	Name         string    `json:"name" yaml:"name" required:"true" minLength:"1" doc:"Legend display name" example:"Trails of Tears"`
	Color        string    `json:"color" yaml:"color" required:"true" doc:"Stroke color (CSS)" example:"purple"`
	DashArray    []float64 `json:"dashArray,omitempty" yaml:"dash_array,omitempty" doc:"Legend dash pattern, empty for solid" example:"[2,4]"`
	LineDash     []float64 `json:"lineDash,omitempty" yaml:"line_dash,omitempty" doc:"Rendered line-dasharray"`
	Width        float64   `json:"width" yaml:"width,omitempty" default:"2" doc:"Line width in pixels"`
	Type         LayerType `json:"type" yaml:"type,omitempty" enum:"line,symbol" default:"line" doc:"Layer type"`
	Source       string    `json:"source" yaml:"source" required:"true" doc:"GeoJSON file name or URL" example:"trail.json"`
	Async        bool      `json:"async" yaml:"async,omitempty" doc:"Fetched over HTTP after map load"`
	TooltipField string    `json:"tooltipField,omitempty" yaml:"tooltip_field,omitempty" doc:"Feature property shown on hover" example:"TRALTNAME"`
	LabelField   string    `json:"labelField,omitempty" yaml:"label_field,omitempty" doc:"Feature property drawn as text (symbol layers)"`
	Legend       bool      `json:"legend" yaml:"legend" doc:"Shown in the legend when visible"`
}

// Dashed reports whether the legend swatch is drawn dashed.
func (l Layer) Dashed() bool {
	return len(l.DashArray) > 0
}

// HasTooltip reports whether hovering the layer shows a tooltip.
func (l Layer) HasTooltip() bool {
	return l.TooltipField != ""
}

// Remote reports whether the source is an absolute http(s) URL.
func (l Layer) Remote() bool {
	return isRemote(l.Source)
}

// LoadState is the observable state of a layer load task.
type LoadState string

const (
	LoadPending LoadState = "pending"
	LoadLoaded  LoadState = "loaded"
	LoadFailed  LoadState = "failed"
)

// LoadStatus is a snapshot of one layer load.
type LoadStatus struct {
	LayerID    string    `json:"layerId" doc:"Layer identifier"`
	State      LoadState `json:"state" enum:"pending,loaded,failed" doc:"Load state"`
	Features   int       `json:"features" doc:"Number of features loaded"`
	Error      string    `json:"error,omitempty" doc:"Failure reason"`
	StartedAt  time.Time `json:"startedAt" doc:"When the load began"`
	FinishedAt time.Time `json:"finishedAt,omitzero" doc:"When the load completed or failed"`
}

// LayerStatus combines a registry entry with its live session state.
type LayerStatus struct {
	Layer      Layer      `json:"layer" doc:"Registry entry"`
	Registered bool       `json:"registered" doc:"Whether the layer is on the map"`
	Visibility Visibility `json:"visibility" enum:"visible,none" doc:"Current visibility"`
	Load       LoadStatus `json:"load" doc:"Load task state"`
}

// SourceFile represents a GeoJSON file in the data directory.
type SourceFile struct {
	Name     string `json:"name" doc:"File name" example:"trail.json"`
	Size     string `json:"size" doc:"Human-readable file size" example:"1.2 MB"`
	FileType string `json:"fileType" doc:"File type" example:"GeoJSON"`
}
