package scheduler

// Range is an interval a construction parameter sweeps across.
type Range struct {
	Lo float64 `yaml:"lo"`
	Hi float64 `yaml:"hi"`
}

// Ranges holds one Range per flask parameter.
type Ranges struct {
	Width     Range `yaml:"width"`
	Thickness Range `yaml:"thickness"`
	Height    Range `yaml:"height"`
}

// DefaultRanges are the sweeps of the stock breathing animation.
var DefaultRanges = Ranges{
	Width:     Range{Lo: 0.5, Hi: 0.55},
	Thickness: Range{Lo: 0.25, Hi: 0.35},
	Height:    Range{Lo: 0.75, Hi: 1.0},
}

// Params are the kernel inputs for one frame.
type Params struct {
	Width     float64
	Thickness float64
	Height    float64
}

// ParamsAt maps a frame timestamp to kernel parameters. Each beat moves every
// parameter from one end of its range to the other; even beats run Hi to Lo,
// odd beats Lo to Hi, so the shape oscillates with a period of two beats.
// A zero beat is treated as 1.
func ParamsAt(ts, beat uint32, r Ranges) Params {
	if beat == 0 {
		beat = 1
	}
	interval := ts / beat
	delta := float64(ts%beat) / float64(beat)
	swap := interval%2 == 0
	return Params{
		Width:     r.Width.at(delta, swap),
		Thickness: r.Thickness.at(delta, swap),
		Height:    r.Height.at(delta, swap),
	}
}

func (r Range) at(delta float64, swap bool) float64 {
	lo, hi := r.Lo, r.Hi
	if swap {
		lo, hi = hi, lo
	}
	return lerp(lo, hi, delta)
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }
