package nn

import "errors"

var (
	// ErrConfiguration reports a non-positive topology dimension.
	ErrConfiguration = errors.New("invalid network configuration")
	// ErrDimensionMismatch reports a supplied vector whose length does not
	// match the layer it targets.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrUninitializedTopology reports a network without hidden layers.
	ErrUninitializedTopology = errors.New("network topology is not initialized")
	// ErrIO reports an unreadable or unwritable persistence target.
	ErrIO = errors.New("network i/o failure")
)
