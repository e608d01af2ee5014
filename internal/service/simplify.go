package service

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/simplify"
)

// SimplifyEpsilon returns the Douglas-Peucker tolerance in degrees for a
// map zoom level. Trails are long lines, so low zooms can drop a lot.
func SimplifyEpsilon(zoom int) float64 {
	switch {
	case zoom >= 12:
		return 0
	case zoom >= 8:
		return 0.0005
	case zoom >= 5:
		return 0.005
	default:
		return 0.02
	}
}

// Simplify returns a copy of fc with every geometry reduced for zoom. The
// input is left untouched; properties are shared with it.
func Simplify(fc *geojson.FeatureCollection, zoom int) *geojson.FeatureCollection {
	eps := SimplifyEpsilon(zoom)
	if eps == 0 {
		return fc
	}
	s := simplify.DouglasPeucker(eps)

	out := geojson.NewFeatureCollection()
	for _, f := range fc.Features {
		cp := *f
		if f.Geometry != nil {
			cp.Geometry = s.Simplify(orb.Clone(f.Geometry))
		}
		out.Append(&cp)
	}
	return out
}
