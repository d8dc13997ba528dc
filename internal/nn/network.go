package nn

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

// DefaultLearningRate is the delta-rule step used by Backpropagate.
const DefaultLearningRate = 0.1

// MaxWeightCount bounds the weight buffer a Shape may describe.
const MaxWeightCount = 1 << 24

// Shape describes a fully connected feedforward topology.
type Shape struct {
	HiddenLayers int `json:"hidden_layers"`
	Inputs       int `json:"inputs"`
	HiddenWidth  int `json:"hidden_width"`
	Outputs      int `json:"outputs"`
}

// Validate requires every dimension to be strictly positive.
func (s Shape) Validate() error {
	if s.HiddenLayers <= 0 {
		return fmt.Errorf("%w: hidden layer count must be > 0, got %d", ErrConfiguration, s.HiddenLayers)
	}
	if s.Inputs <= 0 {
		return fmt.Errorf("%w: input size must be > 0, got %d", ErrConfiguration, s.Inputs)
	}
	if s.HiddenWidth <= 0 {
		return fmt.Errorf("%w: hidden width must be > 0, got %d", ErrConfiguration, s.HiddenWidth)
	}
	if s.Outputs <= 0 {
		return fmt.Errorf("%w: output size must be > 0, got %d", ErrConfiguration, s.Outputs)
	}
	if count := s.WeightCount(); count > MaxWeightCount {
		return fmt.Errorf("%w: shape %s needs more than %d weights", ErrConfiguration, s, MaxWeightCount)
	}
	return nil
}

// WeightCount is the number of connection weights implied by the shape.
// It saturates at math.MaxInt instead of overflowing.
func (s Shape) WeightCount() int {
	if s.HiddenLayers <= 0 || s.Inputs < 0 || s.HiddenWidth < 0 || s.Outputs < 0 {
		return 0
	}
	total := mulSat(s.Inputs, s.HiddenWidth)
	total = addSat(total, mulSat(s.HiddenLayers-1, mulSat(s.HiddenWidth, s.HiddenWidth)))
	total = addSat(total, mulSat(s.HiddenWidth, s.Outputs))
	return total
}

func mulSat(a, b int) int {
	if a == 0 || b == 0 {
		return 0
	}
	if a > math.MaxInt/b {
		return math.MaxInt
	}
	return a * b
}

func addSat(a, b int) int {
	if a > math.MaxInt-b {
		return math.MaxInt
	}
	return a + b
}

func (s Shape) String() string {
	return fmt.Sprintf("%dx[%d]x%d->%d", s.Inputs, s.HiddenWidth, s.HiddenLayers, s.Outputs)
}

type layer struct {
	width   int
	fanIn   int
	offset  int
	outputs []float64
	errors  []float64
}

func (l *layer) weightIndex(neuron, source int) int {
	return l.offset + neuron*l.fanIn + source
}

// Network is a feedforward network whose weights live in one contiguous
// buffer. Layer 0 is the input layer, the last layer is the output layer and
// everything between is a tanh hidden layer. Weights of layer l are stored
// neuron-major, source-minor starting at layers[l].offset, so the buffer is
// already in flattened order.
type Network struct {
	shape        Shape
	layers       []layer
	weights      []float64
	learningRate float64
}

// New builds a network with weights drawn from uniform(-1,1)*sqrt(2/fanIn).
// A nil rng falls back to a time-seeded generator.
func New(shape Shape, rng *rand.Rand) (*Network, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	rng = ensureRNG(rng)

	n := &Network{
		shape:        shape,
		layers:       make([]layer, 0, shape.HiddenLayers+2),
		weights:      make([]float64, shape.WeightCount()),
		learningRate: DefaultLearningRate,
	}

	offset := 0
	add := func(width, fanIn int) {
		n.layers = append(n.layers, layer{
			width:   width,
			fanIn:   fanIn,
			offset:  offset,
			outputs: make([]float64, width),
			errors:  make([]float64, width),
		})
		offset += width * fanIn
	}
	add(shape.Inputs, 0)
	for i := 0; i < shape.HiddenLayers; i++ {
		fanIn := shape.HiddenWidth
		if i == 0 {
			fanIn = shape.Inputs
		}
		add(shape.HiddenWidth, fanIn)
	}
	add(shape.Outputs, shape.HiddenWidth)

	for l := 1; l < len(n.layers); l++ {
		ly := &n.layers[l]
		scale := math.Sqrt(2.0 / float64(ly.fanIn))
		for i := 0; i < ly.width*ly.fanIn; i++ {
			n.weights[ly.offset+i] = (rng.Float64()*2 - 1) * scale
		}
	}
	return n, nil
}

func ensureRNG(rng *rand.Rand) *rand.Rand {
	if rng != nil {
		return rng
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

func (n *Network) Shape() Shape {
	return n.shape
}

func (n *Network) LearningRate() float64 {
	return n.learningRate
}

func (n *Network) SetLearningRate(rate float64) {
	n.learningRate = rate
}

// WeightCount always equals len(FlattenWeights()).
func (n *Network) WeightCount() int {
	return len(n.weights)
}

// SetInput copies min(len(values), inputs) entries into the input layer.
// Extra values are ignored and missing ones leave the previous input intact.
func (n *Network) SetInput(values []float64) {
	if len(n.layers) == 0 {
		return
	}
	copy(n.layers[0].outputs, values)
}

// Forward propagates the current input through every layer.
func (n *Network) Forward() error {
	if len(n.layers) < 3 {
		return ErrUninitializedTopology
	}
	last := len(n.layers) - 1
	for l := 1; l <= last; l++ {
		prev := &n.layers[l-1]
		cur := &n.layers[l]
		activate := Tanh
		if l == last {
			activate = Sigmoid
		}
		for i := 0; i < cur.width; i++ {
			row := n.weights[cur.weightIndex(i, 0) : cur.weightIndex(i, 0)+cur.fanIn]
			sum := 0.0
			for j, w := range row {
				sum += prev.outputs[j] * w
			}
			cur.outputs[i] = activate(sum)
		}
	}
	return nil
}

// Outputs returns a copy of the output activations.
func (n *Network) Outputs() []float64 {
	if len(n.layers) == 0 {
		return nil
	}
	return append([]float64(nil), n.layers[len(n.layers)-1].outputs...)
}

// Predict sets the input, runs Forward and returns the outputs.
func (n *Network) Predict(input []float64) ([]float64, error) {
	n.SetInput(input)
	if err := n.Forward(); err != nil {
		return nil, err
	}
	return n.Outputs(), nil
}

// Train runs one supervised step. A wrong-length expected vector fails
// before any state changes.
func (n *Network) Train(input, expected []float64) error {
	if len(n.layers) < 3 {
		return ErrUninitializedTopology
	}
	if err := n.checkOutputLen(expected); err != nil {
		return err
	}
	n.SetInput(input)
	if err := n.Forward(); err != nil {
		return err
	}
	if err := n.ComputeOutputError(expected); err != nil {
		return err
	}
	return n.Backpropagate()
}

// ComputeOutputError stores (expected-actual)*actual*(1-actual) per output.
func (n *Network) ComputeOutputError(expected []float64) error {
	if err := n.checkOutputLen(expected); err != nil {
		return err
	}
	out := &n.layers[len(n.layers)-1]
	for i := 0; i < out.width; i++ {
		actual := out.outputs[i]
		out.errors[i] = (expected[i] - actual) * SigmoidDerivativeFromOutput(actual)
	}
	return nil
}

// Backpropagate pushes the output error back through the hidden layers and
// then applies the delta rule. All error signals are computed against the
// pre-update weights before any weight changes.
func (n *Network) Backpropagate() error {
	if len(n.layers) < 3 {
		return ErrUninitializedTopology
	}
	last := len(n.layers) - 1

	for l := last - 1; l >= 1; l-- {
		cur := &n.layers[l]
		down := &n.layers[l+1]
		for i := 0; i < cur.width; i++ {
			sum := 0.0
			for j := 0; j < down.width; j++ {
				sum += down.errors[j] * n.weights[down.weightIndex(j, i)]
			}
			cur.errors[i] = sum * TanhDerivativeFromOutput(cur.outputs[i])
		}
	}

	for l := last; l >= 1; l-- {
		cur := &n.layers[l]
		prev := &n.layers[l-1]
		for i := 0; i < cur.width; i++ {
			step := n.learningRate * cur.errors[i]
			base := cur.weightIndex(i, 0)
			for j := 0; j < cur.fanIn; j++ {
				n.weights[base+j] += step * prev.outputs[j]
			}
		}
	}
	return nil
}

// SquaredError is half the summed squared difference to expected.
func (n *Network) SquaredError(expected []float64) (float64, error) {
	if err := n.checkOutputLen(expected); err != nil {
		return 0, err
	}
	out := n.layers[len(n.layers)-1].outputs
	total := 0.0
	for i, want := range expected {
		diff := want - out[i]
		total += diff * diff
	}
	return total / 2.0, nil
}

func (n *Network) checkOutputLen(expected []float64) error {
	if len(n.layers) == 0 {
		return ErrUninitializedTopology
	}
	want := n.layers[len(n.layers)-1].width
	if len(expected) != want {
		return fmt.Errorf("%w: expected output length %d, got %d", ErrDimensionMismatch, want, len(expected))
	}
	return nil
}

// FlattenWeights returns a copy of every weight in flattened order.
func (n *Network) FlattenWeights() []float64 {
	return append([]float64(nil), n.weights...)
}

// LoadWeights copies values into the weight buffer in flattened order. A
// short source leaves the remaining weights untouched; extra values are
// ignored. It returns how many weights were written.
func (n *Network) LoadWeights(values []float64) int {
	return copy(n.weights, values)
}

// Clone returns a deep copy sharing no buffers with n.
func (n *Network) Clone() *Network {
	out := &Network{
		shape:        n.shape,
		layers:       make([]layer, len(n.layers)),
		weights:      append([]float64(nil), n.weights...),
		learningRate: n.learningRate,
	}
	for i, ly := range n.layers {
		ly.outputs = append([]float64(nil), ly.outputs...)
		ly.errors = append([]float64(nil), ly.errors...)
		out.layers[i] = ly
	}
	return out
}
