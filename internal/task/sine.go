package task

import "math"

// Sine approximates sin(x) on [-pi, pi]. Inputs and targets are normalized
// into [0, 1] so the sigmoid output can reach them.
type Sine struct {
	Points int
}

const defaultSinePoints = 16

func (Sine) Name() string        { return "sine" }
func (Sine) Description() string { return "sin(x) over one period, normalized to [0,1]" }
func (Sine) Inputs() int         { return 1 }
func (Sine) Outputs() int        { return 1 }

func (s Sine) Samples() []Sample {
	points := s.Points
	if points < 2 {
		points = defaultSinePoints
	}
	samples := make([]Sample, points)
	for i := range samples {
		x := -math.Pi + 2*math.Pi*float64(i)/float64(points-1)
		samples[i] = Sample{
			Input:  []float64{toUnit(x, -math.Pi, math.Pi)},
			Target: []float64{toUnit(math.Sin(x), -1, 1)},
		}
	}
	return samples
}

// Decode maps a network output back to sin(x) scale.
func (Sine) Decode(output float64) float64 {
	return fromUnit(output, -1, 1)
}
