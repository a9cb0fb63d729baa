// Package hia classifies ground-track points against the high ion area
// (SAA) flux grid by nearest-neighbour lookup.
package hia

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/kdtree"
)

// ErrValidation reports an empty or inconsistent grid or query batch.
var ErrValidation = errors.New("hia: invalid grid")

// Coordinate is a grid node in degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Index is an immutable nearest-neighbour flux grid.
// Lookups have no distance cut-off: a query far from every node still
// answers with the closest node's value.
type Index struct {
	coords   []Coordinate
	flux     []float64
	occupied []bool
	tree     *kdtree.Tree
	nOcc     int
}

// New builds an Index from parallel coordinate and flux tables.
// Flux values that are not positive (including NaN) are clamped to zero and
// a node is occupied when its clamped flux is positive.
func New(coords []Coordinate, flux []float64) (*Index, error) {
	if len(coords) == 0 {
		return nil, fmt.Errorf("%w: empty grid", ErrValidation)
	}
	if len(coords) != len(flux) {
		return nil, fmt.Errorf("%w: %d coordinates but %d flux values", ErrValidation, len(coords), len(flux))
	}

	idx := &Index{
		coords:   make([]Coordinate, len(coords)),
		flux:     make([]float64, len(flux)),
		occupied: make([]bool, len(flux)),
	}
	copy(idx.coords, coords)

	pts := make(nodes, len(coords))
	for i, c := range coords {
		if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lon, 0) {
			return nil, fmt.Errorf("%w: non-finite coordinate at row %d", ErrValidation, i)
		}
		pts[i] = node{lat: c.Lat, lon: c.Lon, row: i}

		f := flux[i]
		if !(f > 0) {
			f = 0
		}
		idx.flux[i] = f
		idx.occupied[i] = f > 0
		if idx.occupied[i] {
			idx.nOcc++
		}
	}
	idx.tree = kdtree.New(pts, false)
	return idx, nil
}

// Len returns the number of grid nodes.
func (x *Index) Len() int { return len(x.coords) }

// OccupiedCount returns the number of nodes with positive flux.
func (x *Index) OccupiedCount() int { return x.nOcc }

// Coordinate returns the i-th grid node.
func (x *Index) Coordinate(row int) Coordinate { return x.coords[row] }

// Nearest returns the row of the grid node closest to (lat, lon) in
// Euclidean (lat, lon) space and its distance in degrees. Equidistant nodes
// resolve to the lowest row.
func (x *Index) Nearest(lat, lon float64) (row int, dist float64) {
	q := node{lat: lat, lon: lon, row: -1}
	c, d := x.tree.Nearest(q)
	row = c.(node).row

	keep := kdtree.NewDistKeeper(d)
	x.tree.NearestSet(keep, q)
	for _, cd := range keep.Heap {
		if cd.Comparable == nil {
			continue
		}
		if r := cd.Comparable.(node).row; r < row {
			row = r
		}
	}
	return row, math.Sqrt(d)
}

// FluxAt returns the clamped flux of the node nearest to (lat, lon).
func (x *Index) FluxAt(lat, lon float64) float64 {
	row, _ := x.Nearest(lat, lon)
	return x.flux[row]
}

// OccupiedAt reports whether the node nearest to (lat, lon) has positive flux.
func (x *Index) OccupiedAt(lat, lon float64) bool {
	row, _ := x.Nearest(lat, lon)
	return x.occupied[row]
}

// FluxAtMany applies FluxAt element-wise.
func (x *Index) FluxAtMany(lats, lons []float64) ([]float64, error) {
	if len(lats) != len(lons) {
		return nil, fmt.Errorf("%w: %d latitudes but %d longitudes", ErrValidation, len(lats), len(lons))
	}
	out := make([]float64, len(lats))
	for i := range lats {
		out[i] = x.FluxAt(lats[i], lons[i])
	}
	return out, nil
}

// OccupiedAtMany applies OccupiedAt element-wise.
func (x *Index) OccupiedAtMany(lats, lons []float64) ([]bool, error) {
	if len(lats) != len(lons) {
		return nil, fmt.Errorf("%w: %d latitudes but %d longitudes", ErrValidation, len(lats), len(lons))
	}
	out := make([]bool, len(lats))
	for i := range lats {
		out[i] = x.OccupiedAt(lats[i], lons[i])
	}
	return out, nil
}

// node is a grid point stored in the k-d tree.
// Dimensions: 0 = lat, 1 = lon.
type node struct {
	lat, lon float64
	row      int
}

func (p node) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(node)
	switch d {
	case 0:
		return p.lat - q.lat
	case 1:
		return p.lon - q.lon
	default:
		panic("hia: illegal dimension")
	}
}

func (p node) Dims() int { return 2 }

// Distance returns the squared Euclidean distance.
func (p node) Distance(c kdtree.Comparable) float64 {
	q := c.(node)
	dlat, dlon := p.lat-q.lat, p.lon-q.lon
	return dlat*dlat + dlon*dlon
}

type nodes []node

func (p nodes) Index(i int) kdtree.Comparable         { return p[i] }
func (p nodes) Len() int                              { return len(p) }
func (p nodes) Pivot(d kdtree.Dim) int                { return plane{nodes: p, Dim: d}.Pivot() }
func (p nodes) Slice(start, end int) kdtree.Interface { return p[start:end] }

type plane struct {
	kdtree.Dim
	nodes
}

func (p plane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.nodes[i].lat < p.nodes[j].lat
	case 1:
		return p.nodes[i].lon < p.nodes[j].lon
	default:
		panic("hia: illegal dimension")
	}
}
func (p plane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p plane) Slice(start, end int) kdtree.SortSlicer {
	p.nodes = p.nodes[start:end]
	return p
}
func (p plane) Swap(i, j int) {
	p.nodes[i], p.nodes[j] = p.nodes[j], p.nodes[i]
}
