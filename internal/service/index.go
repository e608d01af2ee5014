package service

import (
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// hitRadiusPixels is the pointer slop used when hit testing rendered lines.
const hitRadiusPixels = 3

// ToleranceAt converts the pointer hit radius to degrees at a zoom level,
// assuming 512px MapLibre tiles.
func ToleranceAt(zoom float64) float64 {
	if zoom < 0 {
		zoom = 0
	}
	degreesPerPixel := 360 / (512 * math.Pow(2, zoom))
	return hitRadiusPixels * degreesPerPixel
}

// featureIndex is an R-tree over feature bounds for point queries.
type featureIndex struct {
	rtree *rtreego.Rtree
}

// indexedFeature wraps a feature for R-tree storage.
type indexedFeature struct {
	pos     int
	feature *geojson.Feature
	bound   orb.Bound
}

// Bounds implements rtreego.Spatial.
func (f *indexedFeature) Bounds() rtreego.Rect {
	return boundRect(f.bound)
}

func boundRect(b orb.Bound) rtreego.Rect {
	// R-tree rects need non-zero extent; points and axis-aligned segments get a sliver.
	const epsilon = 1e-9
	lonLength := math.Max(b.Max[0]-b.Min[0], epsilon)
	latLength := math.Max(b.Max[1]-b.Min[1], epsilon)
	rect, _ := rtreego.NewRect(rtreego.Point{b.Min[0], b.Min[1]}, []float64{lonLength, latLength})
	return rect
}

func newFeatureIndex(fc *geojson.FeatureCollection) *featureIndex {
	idx := &featureIndex{rtree: rtreego.NewTree(2, 25, 50)}
	if fc == nil {
		return idx
	}
	for i, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		idx.rtree.Insert(&indexedFeature{pos: i, feature: f, bound: f.Geometry.Bound()})
	}
	return idx
}

type hit struct {
	pos      int
	distance float64
	feature  *geojson.Feature
}

// query returns features within tolerance of p, nearest first.
// Equal distances keep collection order.
func (idx *featureIndex) query(p orb.Point, tolerance float64) []*geojson.Feature {
	if idx == nil || idx.rtree.Size() == 0 {
		return nil
	}

	search := orb.Bound{
		Min: orb.Point{p[0] - tolerance, p[1] - tolerance},
		Max: orb.Point{p[0] + tolerance, p[1] + tolerance},
	}
	candidates := idx.rtree.SearchIntersect(boundRect(search))

	var hits []hit
	for _, c := range candidates {
		f := c.(*indexedFeature)
		d := distanceTo(f.feature.Geometry, p)
		if d <= tolerance {
			hits = append(hits, hit{pos: f.pos, distance: d, feature: f.feature})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].distance != hits[j].distance {
			return hits[i].distance < hits[j].distance
		}
		return hits[i].pos < hits[j].pos
	})

	result := make([]*geojson.Feature, len(hits))
	for i, h := range hits {
		result[i] = h.feature
	}
	return result
}

// distanceTo is zero inside polygons and the planar distance otherwise.
func distanceTo(g orb.Geometry, p orb.Point) float64 {
	switch geom := g.(type) {
	case orb.Polygon:
		if planar.PolygonContains(geom, p) {
			return 0
		}
	case orb.MultiPolygon:
		if planar.MultiPolygonContains(geom, p) {
			return 0
		}
	}
	return planar.DistanceFrom(g, p)
}
