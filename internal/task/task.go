package task

import (
	"fmt"

	"neuroevo/internal/evo"
	"neuroevo/internal/nn"
)

// Sample is one supervised input/target pair.
type Sample struct {
	Input  []float64
	Target []float64
}

// Task is a built-in benchmark: a fixed sample set scored by prediction error.
type Task interface {
	Name() string
	Description() string
	Inputs() int
	Outputs() int
	Samples() []Sample
}

// MeanError is the mean of the network's squared error over samples.
func MeanError(net *nn.Network, samples []Sample) (float64, error) {
	if len(samples) == 0 {
		return 0, fmt.Errorf("no samples")
	}
	total := 0.0
	for _, s := range samples {
		if _, err := net.Predict(s.Input); err != nil {
			return 0, err
		}
		e, err := net.SquaredError(s.Target)
		if err != nil {
			return 0, err
		}
		total += e
	}
	return total / float64(len(samples)), nil
}

// FitnessFromError maps a non-negative error into (0, 1].
func FitnessFromError(meanError float64) float64 {
	return 1.0 / (1.0 + meanError)
}

// Fitness scores a network on t's samples as 1/(1+mean error). A network
// whose shape does not fit the task scores 0.
func Fitness(t Task) evo.FitnessFunc {
	samples := t.Samples()
	return func(net *nn.Network) float64 {
		e, err := MeanError(net, samples)
		if err != nil {
			return 0
		}
		return FitnessFromError(e)
	}
}

// CheckShape reports whether shape's input and output widths match t.
func CheckShape(t Task, shape nn.Shape) error {
	if shape.Inputs != t.Inputs() || shape.Outputs != t.Outputs() {
		return fmt.Errorf("%w: task %s needs %d inputs and %d outputs, shape has %d and %d",
			nn.ErrDimensionMismatch, t.Name(), t.Inputs(), t.Outputs(), shape.Inputs, shape.Outputs)
	}
	return nil
}

// toUnit maps value from [min, max] onto [0, 1], the sigmoid output range.
func toUnit(value, min, max float64) float64 {
	return (nn.Normalize(value, min, max) + 1) / 2
}

func fromUnit(value, min, max float64) float64 {
	return nn.Denormalize(value*2-1, min, max)
}
