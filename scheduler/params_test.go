package scheduler

import (
	"math"
	"testing"
)

func TestParamsAt(t *testing.T) {
	tests := []struct {
		name  string
		ts    uint32
		beat  uint32
		width float64
	}{
		{"beat start runs high to low", 0, 10, 0.55},
		{"midpoint of first beat", 5, 10, 0.525},
		{"second beat starts low", 10, 10, 0.5},
		{"midpoint of second beat", 15, 10, 0.525},
		{"third beat starts high again", 20, 10, 0.55},
		{"zero beat treated as one", 3, 0, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ParamsAt(tt.ts, tt.beat, DefaultRanges)
			if math.Abs(p.Width-tt.width) > 1e-12 {
				t.Fatalf("width = %v; want %v", p.Width, tt.width)
			}
		})
	}
}

func TestParamsAtStaysInRange(t *testing.T) {
	r := DefaultRanges
	for ts := uint32(0); ts < 200; ts++ {
		p := ParamsAt(ts, 30, r)
		if p.Width < r.Width.Lo || p.Width > r.Width.Hi ||
			p.Thickness < r.Thickness.Lo || p.Thickness > r.Thickness.Hi ||
			p.Height < r.Height.Lo || p.Height > r.Height.Hi {
			t.Fatalf("ts %d: params %+v out of range", ts, p)
		}
	}
}
