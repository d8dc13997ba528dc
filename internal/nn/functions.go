package nn

import "math"

// Sigmoid is the logistic activation used by the output layer.
func Sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// Tanh is the activation used by every hidden layer.
func Tanh(x float64) float64 {
	return math.Tanh(x)
}

// SigmoidDerivativeFromOutput returns d/dx sigmoid given y = sigmoid(x).
func SigmoidDerivativeFromOutput(y float64) float64 {
	return y * (1.0 - y)
}

// TanhDerivativeFromOutput returns d/dx tanh given y = tanh(x).
func TanhDerivativeFromOutput(y float64) float64 {
	return 1.0 - y*y
}

// Normalize maps value from [min, max] to [-1, 1].
func Normalize(value, min, max float64) float64 {
	if max == min {
		return 0
	}
	return ((value-min)/(max-min))*2 - 1
}

// Denormalize maps value from [-1, 1] back to [min, max].
func Denormalize(value, min, max float64) float64 {
	return ((value+1)/2)*(max-min) + min
}

// NormalizeSlice applies Normalize to every element.
func NormalizeSlice(values []float64, min, max float64) []float64 {
	out := make([]float64, len(values))
	for i, value := range values {
		out[i] = Normalize(value, min, max)
	}
	return out
}
