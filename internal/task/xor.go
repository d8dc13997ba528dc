package task

type XOR struct{}

func (XOR) Name() string        { return "xor" }
func (XOR) Description() string { return "two-input exclusive or" }
func (XOR) Inputs() int         { return 2 }
func (XOR) Outputs() int        { return 1 }

func (XOR) Samples() []Sample {
	return []Sample{
		{Input: []float64{0, 0}, Target: []float64{0}},
		{Input: []float64{0, 1}, Target: []float64{1}},
		{Input: []float64{1, 0}, Target: []float64{1}},
		{Input: []float64{1, 1}, Target: []float64{0}},
	}
}
