package spatial

import (
	"errors"
	"math"
	"sort"
)

// ErrEmptyIndex is returned when a tree is built over zero points.
var ErrEmptyIndex = errors.New("spatial: no points to index")

// Point is an indexed coordinate. Ref is an opaque caller-side handle,
// typically the index of the record the point came from.
type Point struct {
	Lat float64
	Lon float64
	Ref int
}

// leafSize bounds the number of points stored in a leaf node. Small
// enough that leaf scans stay cheap, large enough to keep the tree
// shallow at registry sizes of 10^4-10^5.
const leafSize = 16

// node is one ball of the tree: a centroid, the radius covering every
// point beneath it, and either two children or a leaf point range.
type node struct {
	centerLat float64
	centerLon float64
	radius    float64 // meters, max haversine distance centroid -> member

	left  int // child node index, -1 for leaf
	right int
	start int // leaf point range [start, end) into BallTree.points
	end   int
}

// BallTree is a static nearest-neighbor index over the haversine metric.
// Build once, then query concurrently: the tree is immutable after New.
type BallTree struct {
	points []Point
	nodes  []node
	root   int
}

// NewBallTree builds a balanced tree over the given points. The input
// slice is copied and may be reused by the caller.
func NewBallTree(points []Point) (*BallTree, error) {
	if len(points) == 0 {
		return nil, ErrEmptyIndex
	}

	t := &BallTree{points: make([]Point, len(points))}
	copy(t.points, points)
	t.nodes = make([]node, 0, 2*len(points)/leafSize+1)
	t.root = t.build(0, len(t.points))
	return t, nil
}

// Size returns the number of indexed points.
func (t *BallTree) Size() int { return len(t.points) }

// build constructs the subtree over points[start:end) and returns its
// node index. Splits on the dimension with the greater spread at the
// median, so depth stays logarithmic regardless of input order.
func (t *BallTree) build(start, end int) int {
	pts := t.points[start:end]
	cLat, cLon := centroid(pts)

	radius := 0.0
	for _, p := range pts {
		if d := Haversine(cLat, cLon, p.Lat, p.Lon); d > radius {
			radius = d
		}
	}

	n := node{centerLat: cLat, centerLon: cLon, radius: radius, left: -1, right: -1, start: start, end: end}
	if end-start <= leafSize {
		t.nodes = append(t.nodes, n)
		return len(t.nodes) - 1
	}

	byLat := spread(pts, func(p Point) float64 { return p.Lat })
	byLon := spread(pts, func(p Point) float64 { return p.Lon })
	if byLat >= byLon {
		sort.Slice(pts, func(i, j int) bool { return pts[i].Lat < pts[j].Lat })
	} else {
		sort.Slice(pts, func(i, j int) bool { return pts[i].Lon < pts[j].Lon })
	}

	mid := start + (end-start)/2
	idx := len(t.nodes)
	t.nodes = append(t.nodes, n) // placeholder, children filled in below
	left := t.build(start, mid)
	right := t.build(mid, end)
	t.nodes[idx].left = left
	t.nodes[idx].right = right
	return idx
}

// Nearest returns the indexed point closest to the query coordinate and
// the great-circle distance to it in meters. Ties break toward the
// lowest Ref so identical inputs always produce identical results.
func (t *BallTree) Nearest(lat, lon float64) (Point, float64) {
	best := Point{Ref: -1}
	bestDist := math.Inf(1)
	t.search(t.root, lat, lon, &best, &bestDist)
	return best, bestDist
}

func (t *BallTree) search(ni int, lat, lon float64, best *Point, bestDist *float64) {
	n := &t.nodes[ni]

	// Triangle-inequality bound: nothing inside this ball can be closer
	// than the distance to its centroid minus its radius.
	centerDist := Haversine(lat, lon, n.centerLat, n.centerLon)
	if centerDist-n.radius > *bestDist {
		return
	}

	if n.left < 0 {
		for _, p := range t.points[n.start:n.end] {
			d := Haversine(lat, lon, p.Lat, p.Lon)
			if d < *bestDist || (d == *bestDist && p.Ref < best.Ref) {
				*best = p
				*bestDist = d
			}
		}
		return
	}

	// Descend into the closer child first so the bound tightens early.
	l, r := &t.nodes[n.left], &t.nodes[n.right]
	dl := Haversine(lat, lon, l.centerLat, l.centerLon)
	dr := Haversine(lat, lon, r.centerLat, r.centerLon)
	if dl <= dr {
		t.search(n.left, lat, lon, best, bestDist)
		t.search(n.right, lat, lon, best, bestDist)
	} else {
		t.search(n.right, lat, lon, best, bestDist)
		t.search(n.left, lat, lon, best, bestDist)
	}
}

func centroid(pts []Point) (lat, lon float64) {
	for _, p := range pts {
		lat += p.Lat
		lon += p.Lon
	}
	n := float64(len(pts))
	return lat / n, lon / n
}

func spread(pts []Point, dim func(Point) float64) float64 {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range pts {
		v := dim(p)
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return hi - lo
}
