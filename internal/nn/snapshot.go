package nn

// Snapshot is a detached, serializable view of a network's topology,
// activations and weights for renderers and debug dumps.
type Snapshot struct {
	Shape       Shape           `json:"shape"`
	WeightCount int             `json:"weight_count"`
	Layers      []LayerSnapshot `json:"layers"`
}

type LayerSnapshot struct {
	Kind    LayerKind `json:"kind"`
	FanIn   int       `json:"fan_in"`
	Neurons []Neuron  `json:"neurons"`
}

func (n *Network) Snapshot() Snapshot {
	snap := Snapshot{
		Shape:       n.shape,
		WeightCount: n.WeightCount(),
		Layers:      make([]LayerSnapshot, 0, len(n.layers)),
	}
	for _, l := range n.Layers() {
		ls := LayerSnapshot{
			Kind:    l.Kind(),
			FanIn:   l.FanIn(),
			Neurons: make([]Neuron, l.Width()),
		}
		for i := range ls.Neurons {
			ls.Neurons[i] = l.Neuron(i)
		}
		snap.Layers = append(snap.Layers, ls)
	}
	return snap
}

// MaxAbsWeight is the largest weight magnitude, used to scale renderings.
func (s Snapshot) MaxAbsWeight() float64 {
	max := 0.0
	for _, l := range s.Layers {
		for _, neuron := range l.Neurons {
			for _, w := range neuron.Weights {
				if w < 0 {
					w = -w
				}
				if w > max {
					max = w
				}
			}
		}
	}
	return max
}
