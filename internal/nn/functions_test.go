package nn

import (
	"math"
	"slices"
	"testing"
)

func TestActivations(t *testing.T) {
	tests := []struct {
		name  string
		fn    func(float64) float64
		x     float64
		want  float64
		delta float64
	}{
		{name: "sigmoid-zero", fn: Sigmoid, x: 0, want: 0.5, delta: 1e-12},
		{name: "sigmoid-large", fn: Sigmoid, x: 40, want: 1, delta: 1e-12},
		{name: "tanh-zero", fn: Tanh, x: 0, want: 0, delta: 1e-12},
		{name: "tanh-one", fn: Tanh, x: 1, want: math.Tanh(1), delta: 1e-12},
		{name: "sigmoid-derivative", fn: SigmoidDerivativeFromOutput, x: 0.5, want: 0.25, delta: 1e-12},
		{name: "tanh-derivative", fn: TanhDerivativeFromOutput, x: 0.5, want: 0.75, delta: 1e-12},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.fn(tc.x); math.Abs(got-tc.want) > tc.delta {
				t.Fatalf("unexpected value: got=%f want=%f", got, tc.want)
			}
		})
	}
}

func TestNormalizeRoundTrip(t *testing.T) {
	cases := []struct {
		value, min, max, want float64
	}{
		{10, 10, 20, -1},
		{20, 10, 20, 1},
		{15, 10, 20, 0},
		{3, 5, 5, 0},
	}
	for _, c := range cases {
		if got := Normalize(c.value, c.min, c.max); got != c.want {
			t.Fatalf("Normalize(%v, %v, %v)=%v want=%v", c.value, c.min, c.max, got, c.want)
		}
	}

	for _, v := range []float64{-3, 0, 2.5, 7} {
		if got := Denormalize(Normalize(v, -3, 7), -3, 7); math.Abs(got-v) > 1e-12 {
			t.Fatalf("round trip of %v gave %v", v, got)
		}
	}
	if got := NormalizeSlice([]float64{0, 5, 10}, 0, 10); !slices.Equal(got, []float64{-1, 0, 1}) {
		t.Fatalf("unexpected normalized slice: %v", got)
	}
}
