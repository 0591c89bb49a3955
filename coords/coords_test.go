package coords

import (
	"math"
	"testing"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestFlipIsInvolution(t *testing.T) {
	f := Flip(200)
	p := f.Transform(Point{10, 10})
	if !near(p.X, 10) || !near(p.Y, 190) {
		t.Fatalf("flip gave %+v", p)
	}
	back := f.Multiply(f).Transform(Point{3, 7})
	if !near(back.X, 3) || !near(back.Y, 7) {
		t.Fatalf("flip twice gave %+v", back)
	}
	if q := ToPage(Point{10, 10}, 200); q != p {
		t.Fatalf("ToPage %+v != %+v", q, p)
	}
}

func TestMultiplyOrder(t *testing.T) {
	m := Scale(2, 2).Multiply(Translate(5, 0))
	p := m.Transform(Point{1, 1})
	if !near(p.X, 7) || !near(p.Y, 2) {
		t.Fatalf("scale then translate gave %+v", p)
	}
}

func TestBoundsOfRotation(t *testing.T) {
	r := Scale(40, 20).Multiply(Rotate(math.Pi / 2)).Bounds()
	if !near(r.W, 20) || !near(r.H, 40) || !near(r.X, -20) || !near(r.Y, 0) {
		t.Fatalf("unexpected bounds %+v", r)
	}
	content := Rect{X: 10, Y: 10, W: 180, H: 180}
	if !content.Contains(Rect{X: 10, Y: 10, W: 180, H: 180}, 1e-6) {
		t.Fatalf("rect should contain itself")
	}
	if content.Contains(Rect{X: 10, Y: 10, W: 181, H: 1}, 1e-6) {
		t.Fatalf("wider rect should not fit")
	}
}
