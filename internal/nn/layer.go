package nn

// LayerKind names the role of a layer inside a network.
type LayerKind string

const (
	LayerInput  LayerKind = "input"
	LayerHidden LayerKind = "hidden"
	LayerOutput LayerKind = "output"
)

// Neuron is a detached copy of one neuron's state.
type Neuron struct {
	Weights []float64 `json:"weights"`
	Output  float64   `json:"output"`
	Error   float64   `json:"error"`
}

// Layer is a read-only view over one layer of a Network. It stays valid as
// long as the network does and reflects later changes to it.
type Layer struct {
	net   *Network
	index int
}

func (l Layer) raw() *layer {
	return &l.net.layers[l.index]
}

func (l Layer) Kind() LayerKind {
	switch l.index {
	case 0:
		return LayerInput
	case len(l.net.layers) - 1:
		return LayerOutput
	default:
		return LayerHidden
	}
}

func (l Layer) Width() int {
	return l.raw().width
}

// FanIn is the number of weights per neuron; zero for the input layer.
func (l Layer) FanIn() int {
	return l.raw().fanIn
}

func (l Layer) Output(neuron int) float64 {
	return l.raw().outputs[neuron]
}

func (l Layer) Error(neuron int) float64 {
	return l.raw().errors[neuron]
}

func (l Layer) Weight(neuron, source int) float64 {
	return l.net.weights[l.raw().weightIndex(neuron, source)]
}

func (l Layer) Neuron(index int) Neuron {
	ly := l.raw()
	base := ly.weightIndex(index, 0)
	return Neuron{
		Weights: append([]float64(nil), l.net.weights[base:base+ly.fanIn]...),
		Output:  ly.outputs[index],
		Error:   ly.errors[index],
	}
}

// Layers returns views over every layer from input to output.
func (n *Network) Layers() []Layer {
	out := make([]Layer, len(n.layers))
	for i := range n.layers {
		out[i] = Layer{net: n, index: i}
	}
	return out
}

func (n *Network) InputLayer() Layer {
	return Layer{net: n, index: 0}
}

func (n *Network) OutputLayer() Layer {
	return Layer{net: n, index: len(n.layers) - 1}
}

func (n *Network) HiddenLayers() []Layer {
	if len(n.layers) < 3 {
		return nil
	}
	out := make([]Layer, 0, len(n.layers)-2)
	for i := 1; i < len(n.layers)-1; i++ {
		out = append(out, Layer{net: n, index: i})
	}
	return out
}
