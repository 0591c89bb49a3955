// Package coords provides the affine geometry shared by layout and assembly.
//
// Document space has its origin at the top-left corner of the page with y
// growing downward. PDF page space has its origin at the bottom-left with y
// growing upward. A point (x, y) in document space is (x, H-y) on a page of
// height H.
package coords

import "math"

// Matrix is a PDF-style affine matrix [a b c d e f] mapping (x, y) to
// (a*x + c*y + e, b*x + d*y + f).
type Matrix [6]float64

// Multiply returns the transform that applies m first and then o.
func (m Matrix) Multiply(o Matrix) Matrix {
	return Matrix{
		m[0]*o[0] + m[1]*o[2], m[0]*o[1] + m[1]*o[3],
		m[2]*o[0] + m[3]*o[2], m[2]*o[1] + m[3]*o[3],
		m[4]*o[0] + m[5]*o[2] + o[4], m[4]*o[1] + m[5]*o[3] + o[5],
	}
}

type Point struct{ X, Y float64 }

func (m Matrix) Transform(p Point) Point {
	return Point{X: m[0]*p.X + m[2]*p.Y + m[4], Y: m[1]*p.X + m[3]*p.Y + m[5]}
}

func Translate(tx, ty float64) Matrix { return Matrix{1, 0, 0, 1, tx, ty} }
func Scale(sx, sy float64) Matrix     { return Matrix{sx, 0, 0, sy, 0, 0} }

// Rotate turns counterclockwise by angle radians in a y-up space.
func Rotate(angle float64) Matrix {
	c, s := math.Cos(angle), math.Sin(angle)
	return Matrix{c, s, -s, c, 0, 0}
}

// Flip maps document space onto the page space of a page of the given height.
// It is its own inverse.
func Flip(height float64) Matrix { return Matrix{1, 0, 0, -1, 0, height} }

// ToPage converts a document-space point to page space.
func ToPage(p Point, height float64) Point { return Point{X: p.X, Y: height - p.Y} }

// Rect is an axis-aligned rectangle in document space.
type Rect struct {
	X, Y, W, H float64
}

func (r Rect) Right() float64  { return r.X + r.W }
func (r Rect) Bottom() float64 { return r.Y + r.H }

// Contains reports whether o lies inside r, allowing eps of rounding slack.
func (r Rect) Contains(o Rect, eps float64) bool {
	return o.X >= r.X-eps && o.Y >= r.Y-eps && o.Right() <= r.Right()+eps && o.Bottom() <= r.Bottom()+eps
}

// Bounds returns the bounding box of the unit square mapped through m.
func (m Matrix) Bounds() Rect {
	pts := [4]Point{
		m.Transform(Point{0, 0}), m.Transform(Point{1, 0}),
		m.Transform(Point{0, 1}), m.Transform(Point{1, 1}),
	}
	minX, minY := pts[0].X, pts[0].Y
	maxX, maxY := minX, minY
	for _, p := range pts[1:] {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}
