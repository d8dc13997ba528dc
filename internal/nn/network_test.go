package nn

import (
	"errors"
	"math"
	"math/rand"
	"slices"
	"testing"
)

func newTestNetwork(t *testing.T, shape Shape, seed int64) *Network {
	t.Helper()
	n, err := New(shape, rand.New(rand.NewSource(seed)))
	if err != nil {
		t.Fatalf("new network %s: %v", shape, err)
	}
	return n
}

func predict(t *testing.T, n *Network, input []float64) []float64 {
	t.Helper()
	out, err := n.Predict(input)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	return out
}

func TestNewRejectsNonPositiveDimensions(t *testing.T) {
	tests := []struct {
		name  string
		shape Shape
	}{
		{name: "hidden-layers", shape: Shape{HiddenLayers: 0, Inputs: 2, HiddenWidth: 3, Outputs: 1}},
		{name: "inputs", shape: Shape{HiddenLayers: 1, Inputs: 0, HiddenWidth: 3, Outputs: 1}},
		{name: "hidden-width", shape: Shape{HiddenLayers: 1, Inputs: 2, HiddenWidth: -1, Outputs: 1}},
		{name: "outputs", shape: Shape{HiddenLayers: 1, Inputs: 2, HiddenWidth: 3, Outputs: 0}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			n, err := New(tc.shape, rand.New(rand.NewSource(1)))
			if !errors.Is(err, ErrConfiguration) {
				t.Fatalf("expected configuration error, got %v", err)
			}
			if n != nil {
				t.Fatal("expected nil network")
			}
		})
	}
}

func TestNewInitializesWeightsWithinFanInScale(t *testing.T) {
	shape := Shape{HiddenLayers: 2, Inputs: 8, HiddenWidth: 4, Outputs: 2}
	n := newTestNetwork(t, shape, 7)

	for _, l := range n.HiddenLayers() {
		bound := math.Sqrt(2.0 / float64(l.FanIn()))
		for i := 0; i < l.Width(); i++ {
			for j := 0; j < l.FanIn(); j++ {
				if w := l.Weight(i, j); math.Abs(w) > bound {
					t.Fatalf("weight %f exceeds fan-in bound %f", w, bound)
				}
			}
		}
	}
	if got := n.InputLayer().FanIn(); got != 0 {
		t.Fatalf("input layer fan-in=%d want=0", got)
	}
	if got := n.OutputLayer().FanIn(); got != 4 {
		t.Fatalf("output layer fan-in=%d want=4", got)
	}
}

func TestWeightCountMatchesFlattenedLength(t *testing.T) {
	for _, hidden := range []int{1, 2, 5} {
		for _, dims := range [][3]int{{1, 1, 1}, {2, 4, 1}, {5, 3, 2}, {3, 7, 4}} {
			shape := Shape{HiddenLayers: hidden, Inputs: dims[0], HiddenWidth: dims[1], Outputs: dims[2]}
			n := newTestNetwork(t, shape, int64(hidden))
			if len(n.FlattenWeights()) != n.WeightCount() || shape.WeightCount() != n.WeightCount() {
				t.Fatalf("shape %s: flattened=%d network=%d shape=%d",
					shape, len(n.FlattenWeights()), n.WeightCount(), shape.WeightCount())
			}
		}
	}
}

func TestForwardIsDeterministic(t *testing.T) {
	n := newTestNetwork(t, Shape{HiddenLayers: 2, Inputs: 3, HiddenWidth: 5, Outputs: 2}, 3)
	n.SetInput([]float64{0.2, -0.7, 1.0})
	if err := n.Forward(); err != nil {
		t.Fatalf("forward: %v", err)
	}
	first := n.Outputs()
	for i := 0; i < 5; i++ {
		if err := n.Forward(); err != nil {
			t.Fatalf("forward: %v", err)
		}
		if !slices.Equal(first, n.Outputs()) {
			t.Fatalf("pass %d changed outputs: %v vs %v", i, first, n.Outputs())
		}
	}
}

func TestForwardKnownWeights(t *testing.T) {
	n := newTestNetwork(t, Shape{HiddenLayers: 1, Inputs: 2, HiddenWidth: 2, Outputs: 1}, 1)
	// hidden0: [0.5 -0.5] [1 1], output: [2 -1]
	n.LoadWeights([]float64{0.5, -0.5, 1, 1, 2, -1})
	out := predict(t, n, []float64{1, 0.5})

	h0 := math.Tanh(0.5*1 - 0.5*0.5)
	h1 := math.Tanh(1*1 + 1*0.5)
	want := 1.0 / (1.0 + math.Exp(-(2*h0 - h1)))
	if math.Abs(out[0]-want) > 1e-12 {
		t.Fatalf("unexpected output: got=%f want=%f", out[0], want)
	}
}

func TestForwardRequiresHiddenLayers(t *testing.T) {
	var n Network
	if err := n.Forward(); !errors.Is(err, ErrUninitializedTopology) {
		t.Fatalf("forward: expected uninitialized topology, got %v", err)
	}
	if err := n.Backpropagate(); !errors.Is(err, ErrUninitializedTopology) {
		t.Fatalf("backpropagate: expected uninitialized topology, got %v", err)
	}
	if err := n.Train([]float64{1}, []float64{1}); !errors.Is(err, ErrUninitializedTopology) {
		t.Fatalf("train: expected uninitialized topology, got %v", err)
	}
}

func TestSetInputIsLenient(t *testing.T) {
	n := newTestNetwork(t, Shape{HiddenLayers: 1, Inputs: 3, HiddenWidth: 2, Outputs: 1}, 1)
	n.SetInput([]float64{1, 2, 3})
	n.SetInput([]float64{9})
	in := n.InputLayer()
	if in.Output(0) != 9 || in.Output(1) != 2 || in.Output(2) != 3 {
		t.Fatalf("short input should overwrite only the head: %v %v %v", in.Output(0), in.Output(1), in.Output(2))
	}

	n.SetInput([]float64{4, 5, 6, 7, 8})
	if in.Output(2) != 6 {
		t.Fatalf("long input should be truncated, got %v", in.Output(2))
	}
}

func TestLoadWeightsRoundTripIsIdentity(t *testing.T) {
	n := newTestNetwork(t, Shape{HiddenLayers: 3, Inputs: 4, HiddenWidth: 3, Outputs: 2}, 11)
	before := n.FlattenWeights()
	written := n.LoadWeights(n.FlattenWeights())
	if written != len(before) {
		t.Fatalf("written=%d want=%d", written, len(before))
	}
	if !slices.Equal(before, n.FlattenWeights()) {
		t.Fatal("flatten/load round trip changed weights")
	}
}

func TestLoadWeightsShortSourceKeepsTail(t *testing.T) {
	n := newTestNetwork(t, Shape{HiddenLayers: 1, Inputs: 2, HiddenWidth: 2, Outputs: 1}, 5)
	before := n.FlattenWeights()
	if written := n.LoadWeights([]float64{10, 20}); written != 2 {
		t.Fatalf("written=%d want=2", written)
	}

	after := n.FlattenWeights()
	if !slices.Equal(after[:2], []float64{10, 20}) {
		t.Fatalf("unexpected head: %v", after[:2])
	}
	if !slices.Equal(after[2:], before[2:]) {
		t.Fatal("short load should keep the remaining weights")
	}
}

func TestFlattenOrderIsNeuronMajorSourceMinor(t *testing.T) {
	n := newTestNetwork(t, Shape{HiddenLayers: 2, Inputs: 2, HiddenWidth: 3, Outputs: 2}, 2)
	flat := n.FlattenWeights()

	idx := 0
	for _, l := range n.Layers()[1:] {
		for i := 0; i < l.Width(); i++ {
			for j := 0; j < l.FanIn(); j++ {
				if flat[idx] != l.Weight(i, j) {
					t.Fatalf("layer=%s neuron=%d source=%d: flat[%d]=%f weight=%f", l.Kind(), i, j, idx, flat[idx], l.Weight(i, j))
				}
				idx++
			}
		}
	}
	if idx != len(flat) {
		t.Fatalf("visited %d weights, flattened %d", idx, len(flat))
	}
}

func TestSquaredError(t *testing.T) {
	n := newTestNetwork(t, Shape{HiddenLayers: 1, Inputs: 2, HiddenWidth: 3, Outputs: 2}, 9)
	out := predict(t, n, []float64{0.3, 0.6})

	zero, err := n.SquaredError(out)
	if err != nil {
		t.Fatalf("squared error: %v", err)
	}
	if zero != 0 {
		t.Fatalf("error against own output=%f want=0", zero)
	}

	e, err := n.SquaredError([]float64{out[0] + 0.5, out[1] - 0.25})
	if err != nil {
		t.Fatalf("squared error: %v", err)
	}
	if want := (0.25 + 0.0625) / 2; math.Abs(e-want) > 1e-12 {
		t.Fatalf("squared error=%f want=%f", e, want)
	}

	if _, err := n.SquaredError([]float64{1}); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected dimension mismatch, got %v", err)
	}
}

func TestTrainDimensionMismatchLeavesWeightsUnchanged(t *testing.T) {
	n := newTestNetwork(t, Shape{HiddenLayers: 1, Inputs: 2, HiddenWidth: 3, Outputs: 1}, 4)
	before := n.FlattenWeights()
	if err := n.Train([]float64{1, 0}, []float64{1, 0}); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected dimension mismatch, got %v", err)
	}
	if !slices.Equal(before, n.FlattenWeights()) {
		t.Fatal("failed train step changed weights")
	}
}

func TestComputeOutputErrorUsesLogisticShortcut(t *testing.T) {
	n := newTestNetwork(t, Shape{HiddenLayers: 1, Inputs: 1, HiddenWidth: 2, Outputs: 1}, 6)
	predict(t, n, []float64{0.5})
	if err := n.ComputeOutputError([]float64{1}); err != nil {
		t.Fatalf("compute output error: %v", err)
	}

	y := n.Outputs()[0]
	want := (1 - y) * y * (1 - y)
	if got := n.OutputLayer().Error(0); math.Abs(got-want) > 1e-15 {
		t.Fatalf("output error=%g want=%g", got, want)
	}
}

func TestBackpropagateMatchesManualDeltaRule(t *testing.T) {
	n := newTestNetwork(t, Shape{HiddenLayers: 2, Inputs: 2, HiddenWidth: 2, Outputs: 1}, 1)
	n.LoadWeights([]float64{
		0.1, 0.2, -0.3, 0.4, // hidden 0
		0.5, -0.6, 0.7, 0.8, // hidden 1
		0.9, -1.0, // output
	})
	input := []float64{1, -1}
	expected := []float64{0.25}

	predict(t, n, input)
	layers := n.Layers()
	h0 := []float64{layers[1].Output(0), layers[1].Output(1)}
	h1 := []float64{layers[2].Output(0), layers[2].Output(1)}
	y := layers[3].Output(0)

	eOut := (expected[0] - y) * y * (1 - y)
	eH1 := []float64{
		eOut * 0.9 * (1 - h1[0]*h1[0]),
		eOut * -1.0 * (1 - h1[1]*h1[1]),
	}
	eH0 := []float64{
		(eH1[0]*0.5 + eH1[1]*0.7) * (1 - h0[0]*h0[0]),
		(eH1[0]*-0.6 + eH1[1]*0.8) * (1 - h0[1]*h0[1]),
	}
	lr := DefaultLearningRate
	want := []float64{
		0.1 + lr*eH0[0]*input[0], 0.2 + lr*eH0[0]*input[1],
		-0.3 + lr*eH0[1]*input[0], 0.4 + lr*eH0[1]*input[1],
		0.5 + lr*eH1[0]*h0[0], -0.6 + lr*eH1[0]*h0[1],
		0.7 + lr*eH1[1]*h0[0], 0.8 + lr*eH1[1]*h0[1],
		0.9 + lr*eOut*h1[0], -1.0 + lr*eOut*h1[1],
	}

	if err := n.Train(input, expected); err != nil {
		t.Fatalf("train: %v", err)
	}
	got := n.FlattenWeights()
	for i := range want {
		if math.Abs(want[i]-got[i]) > 1e-12 {
			t.Fatalf("weight %d: got=%.15f want=%.15f", i, got[i], want[i])
		}
	}
}

func TestTrainReducesErrorOnXOR(t *testing.T) {
	n := newTestNetwork(t, Shape{HiddenLayers: 1, Inputs: 2, HiddenWidth: 6, Outputs: 1}, 21)
	n.SetLearningRate(0.5)
	cases := []struct{ in, want []float64 }{
		{[]float64{0, 0}, []float64{0}},
		{[]float64{0, 1}, []float64{1}},
		{[]float64{1, 0}, []float64{1}},
		{[]float64{1, 1}, []float64{0}},
	}
	total := func() float64 {
		sum := 0.0
		for _, c := range cases {
			predict(t, n, c.in)
			e, err := n.SquaredError(c.want)
			if err != nil {
				t.Fatalf("squared error: %v", err)
			}
			sum += e
		}
		return sum
	}

	before := total()
	for epoch := 0; epoch < 3000; epoch++ {
		for _, c := range cases {
			if err := n.Train(c.in, c.want); err != nil {
				t.Fatalf("train: %v", err)
			}
		}
	}
	if after := total(); after >= before {
		t.Fatalf("training did not reduce error: before=%f after=%f", before, after)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	n := newTestNetwork(t, Shape{HiddenLayers: 1, Inputs: 2, HiddenWidth: 2, Outputs: 1}, 8)
	c := n.Clone()
	if !slices.Equal(n.FlattenWeights(), c.FlattenWeights()) {
		t.Fatal("clone weights differ")
	}

	c.LoadWeights([]float64{42})
	if n.FlattenWeights()[0] == 42 {
		t.Fatal("clone shares weights with original")
	}

	c.SetInput([]float64{3, 4})
	if n.InputLayer().Output(0) != 0 {
		t.Fatal("clone shares input buffer with original")
	}
}

func TestSnapshotMirrorsNetwork(t *testing.T) {
	n := newTestNetwork(t, Shape{HiddenLayers: 2, Inputs: 3, HiddenWidth: 2, Outputs: 1}, 12)
	predict(t, n, []float64{1, 2, 3})

	snap := n.Snapshot()
	if len(snap.Layers) != 4 {
		t.Fatalf("snapshot layers=%d want=4", len(snap.Layers))
	}
	if snap.Layers[0].Kind != LayerInput || snap.Layers[1].Kind != LayerHidden || snap.Layers[3].Kind != LayerOutput {
		t.Fatalf("unexpected layer kinds: %s %s %s", snap.Layers[0].Kind, snap.Layers[1].Kind, snap.Layers[3].Kind)
	}
	if snap.Layers[3].Neurons[0].Output != n.Outputs()[0] {
		t.Fatal("snapshot output differs from network output")
	}
	if snap.WeightCount != n.WeightCount() {
		t.Fatalf("snapshot weight count=%d want=%d", snap.WeightCount, n.WeightCount())
	}
	if snap.MaxAbsWeight() <= 0 {
		t.Fatal("expected positive max abs weight")
	}

	snap.Layers[1].Neurons[0].Weights[0] = 100
	if n.Layers()[1].Weight(0, 0) == 100 {
		t.Fatal("snapshot shares weights with network")
	}
}
