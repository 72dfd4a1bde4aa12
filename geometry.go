package glasstokey

import "math"

// Rect is an axis-aligned rectangle in trackpad-normalized space ([0,1]^2,
// but not clamped so callers can express slightly-out-of-bounds geometry).
// Generalized from terma's terminal-cell Rect (registry.go) to the
// engine's continuous coordinate space.
type Rect struct {
	X, Y          float64
	Width, Height float64
}

// Contains reports whether p falls inside the rect (half-open on max edges).
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X < r.X+r.Width &&
		p.Y >= r.Y && p.Y < r.Y+r.Height
}

// Area returns width*height.
func (r Rect) Area() float64 { return r.Width * r.Height }

// Center returns the rect's midpoint.
func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// edgeDistance returns the distance from p (assumed inside r) to the
// nearest edge of r. Used for C1's "maximize distance-to-nearest-edge"
// tie-break and C4's snap-ambiguity fallback tie-break.
func (r Rect) edgeDistance(p Point) float64 {
	left := p.X - r.X
	right := (r.X + r.Width) - p.X
	top := p.Y - r.Y
	bottom := (r.Y + r.Height) - p.Y
	return math.Min(math.Min(left, right), math.Min(top, bottom))
}

func sqDist(a, b Point) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return dx*dx + dy*dy
}

// snapCenter is one entry in a BindingIndex's parallel snap-center arrays.
type snapCenter struct {
	cx, cy, r2 float64
	bindingIdx int
}

// bucketCell holds indices into BindingIndex.bindings for one grid cell.
// Custom buttons are only placed into the overlay grid (coarser, separate
// cell list) when there are more than four of them; otherwise they are
// linearly scanned, per spec.md §4.1.
type bucketCell struct {
	indices []int
}

// BindingIndex is the per-(side,layer) lookup structure built by C1: a
// coarse bucket grid for point->Binding containment, plus parallel arrays
// of snap centers for near-miss release handling.
type BindingIndex struct {
	side  Side
	layer int

	bindings []Binding // flat arena; buckets/snaps hold indices into this

	rows, cols  int
	cellW, cellH float64
	buckets     [][]bucketCell // buckets[row][col]

	customButtons []int // indices into bindings, linearly scanned when <=4
	customBucketed bool
	customRows, customCols int
	customCellW, customCellH float64
	customBuckets [][]bucketCell

	snaps []snapCenter

	generation uint64
}

// defaultSnapRadiusFraction is applied to min(width,height) of each
// key/modifier binding's rect to produce its snap radius when the passed
// fraction is not positive, per spec.md §4.1.
const defaultSnapRadiusFraction = 0.5

// BuildBindingIndex constructs a BindingIndex for one (side, layer) from the
// grid layout bindings and any custom buttons. canvasRows/canvasCols size
// the bucket grid to the layout's key grid, per spec.md §4.1.
func BuildBindingIndex(side Side, layer int, gridBindings []Binding, customButtons []Binding, canvasRows, canvasCols int, snapRadiusFraction float64, generation uint64) *BindingIndex {
	if snapRadiusFraction <= 0 {
		snapRadiusFraction = defaultSnapRadiusFraction
	}
	if canvasRows <= 0 {
		canvasRows = 1
	}
	if canvasCols <= 0 {
		canvasCols = 1
	}

	idx := &BindingIndex{
		side:       side,
		layer:      layer,
		rows:       canvasRows,
		cols:       canvasCols,
		cellW:      1.0 / float64(canvasCols),
		cellH:      1.0 / float64(canvasRows),
		generation: generation,
	}
	idx.buckets = make([][]bucketCell, canvasRows)
	for r := range idx.buckets {
		idx.buckets[r] = make([]bucketCell, canvasCols)
	}

	addBinding := func(b Binding) int {
		bidx := len(idx.bindings)
		idx.bindings = append(idx.bindings, b)
		if b.Action.Kind == ActionKey || b.Action.Kind == ActionModifier {
			r := math.Min(b.Rect.Width, b.Rect.Height) * snapRadiusFraction
			c := b.Rect.Center()
			idx.snaps = append(idx.snaps, snapCenter{cx: c.X, cy: c.Y, r2: r * r, bindingIdx: bidx})
		}
		return bidx
	}

	for _, b := range gridBindings {
		if b.Side != side {
			continue
		}
		bidx := addBinding(b)
		idx.placeInGrid(bidx)
	}

	if len(customButtons) > 4 {
		idx.customBucketed = true
		idx.customRows, idx.customCols = 4, 4
		idx.customCellW = 1.0 / float64(idx.customCols)
		idx.customCellH = 1.0 / float64(idx.customRows)
		idx.customBuckets = make([][]bucketCell, idx.customRows)
		for r := range idx.customBuckets {
			idx.customBuckets[r] = make([]bucketCell, idx.customCols)
		}
	}
	for _, b := range customButtons {
		if b.Side != side {
			continue
		}
		bidx := addBinding(b)
		idx.customButtons = append(idx.customButtons, bidx)
		if idx.customBucketed {
			idx.placeInCustomGrid(bidx)
		}
	}

	return idx
}

func (idx *BindingIndex) placeInGrid(bindingIdx int) {
	b := idx.bindings[bindingIdx]
	minRow, maxRow := idx.rowRange(b.Rect)
	minCol, maxCol := idx.colRange(b.Rect)
	for r := minRow; r <= maxRow; r++ {
		for c := minCol; c <= maxCol; c++ {
			cell := &idx.buckets[r][c]
			cell.indices = append(cell.indices, bindingIdx)
		}
	}
}

func (idx *BindingIndex) placeInCustomGrid(bindingIdx int) {
	b := idx.bindings[bindingIdx]
	minRow := clampInt(int(b.Rect.Y/idx.customCellH), 0, idx.customRows-1)
	maxRow := clampInt(int((b.Rect.Y+b.Rect.Height)/idx.customCellH), 0, idx.customRows-1)
	minCol := clampInt(int(b.Rect.X/idx.customCellW), 0, idx.customCols-1)
	maxCol := clampInt(int((b.Rect.X+b.Rect.Width)/idx.customCellW), 0, idx.customCols-1)
	for r := minRow; r <= maxRow; r++ {
		for c := minCol; c <= maxCol; c++ {
			cell := &idx.customBuckets[r][c]
			cell.indices = append(cell.indices, bindingIdx)
		}
	}
}

func (idx *BindingIndex) rowRange(r Rect) (int, int) {
	min := clampInt(int(r.Y/idx.cellH), 0, idx.rows-1)
	max := clampInt(int((r.Y+r.Height)/idx.cellH), 0, idx.rows-1)
	return min, max
}

func (idx *BindingIndex) colRange(r Rect) (int, int) {
	min := clampInt(int(r.X/idx.cellW), 0, idx.cols-1)
	max := clampInt(int((r.X+r.Width)/idx.cellW), 0, idx.cols-1)
	return min, max
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// At returns the highest-priority Binding whose rect contains point, or nil.
// Tie-break: (a) maximize inside-rect edge distance, then (b) minimum rect
// area, per spec.md §4.1.
func (idx *BindingIndex) At(point Point) *Binding {
	var best *Binding
	var bestEdge, bestArea float64
	consider := func(bidx int) {
		b := &idx.bindings[bidx]
		if !b.Rect.Contains(point) {
			return
		}
		edge := b.Rect.edgeDistance(point)
		area := b.Rect.Area()
		if best == nil || edge > bestEdge || (edge == bestEdge && area < bestArea) {
			best = b
			bestEdge = edge
			bestArea = area
		}
	}

	row := clampInt(int(point.Y/idx.cellH), 0, idx.rows-1)
	col := clampInt(int(point.X/idx.cellW), 0, idx.cols-1)
	if idx.rows > 0 && idx.cols > 0 {
		for _, bidx := range idx.buckets[row][col].indices {
			consider(bidx)
		}
	}

	if idx.customBucketed {
		crow := clampInt(int(point.Y/idx.customCellH), 0, idx.customRows-1)
		ccol := clampInt(int(point.X/idx.customCellW), 0, idx.customCols-1)
		for _, bidx := range idx.customBuckets[crow][ccol].indices {
			consider(bidx)
		}
	} else {
		for _, bidx := range idx.customButtons {
			consider(bidx)
		}
	}

	return best
}

// snapCandidate is a scored nearest-snap-center result.
type snapCandidate struct {
	binding *Binding
	sqDist  float64
	r2      float64
}

// defaultAmbiguityRatio controls when the fallback (inside-rect-edge)
// tie-break kicks in between the two nearest snap candidates, when the
// passed ratio is not positive, per spec.md §4.4.
const defaultAmbiguityRatio = 1.15

// NearestSnap finds the best eligible snap binding for a release point that
// landed on no binding. Returns (binding, ok). Implements spec.md §4.4's
// "two nearest, ambiguity ratio, edge-distance fallback" rule.
func (idx *BindingIndex) NearestSnap(point Point, ambiguityRatio float64) (*Binding, bool) {
	if ambiguityRatio <= 0 {
		ambiguityRatio = defaultAmbiguityRatio
	}
	var best, second snapCandidate
	best.sqDist, second.sqDist = math.MaxFloat64, math.MaxFloat64

	for _, s := range idx.snaps {
		d := sqDist(point, Point{X: s.cx, Y: s.cy})
		if d < best.sqDist {
			second = best
			best = snapCandidate{binding: &idx.bindings[s.bindingIdx], sqDist: d, r2: s.r2}
		} else if d < second.sqDist {
			second = snapCandidate{binding: &idx.bindings[s.bindingIdx], sqDist: d, r2: s.r2}
		}
	}

	if best.binding == nil || best.sqDist > best.r2 {
		return nil, false
	}

	if second.binding != nil && second.sqDist <= second.r2 && second.sqDist <= best.sqDist*ambiguityRatio {
		// Ambiguous: prefer whichever rect edge is closer to the release point.
		if second.binding.Rect.edgeDistance(point) > best.binding.Rect.edgeDistance(point) {
			return second.binding, true
		}
	}
	return best.binding, true
}

// Generation returns the rebuild generation counter this index was built
// with, letting callers detect staleness after a layout/layer/keymap change.
func (idx *BindingIndex) Generation() uint64 { return idx.generation }

// Bindings returns the flat arena of bindings backing this index (read-only
// use; callers must not mutate the returned slice's elements).
func (idx *BindingIndex) Bindings() []Binding { return idx.bindings }
