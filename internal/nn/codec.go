package nn

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
)

// The on-disk layout is four little-endian int32 header fields (hidden
// layer count, input size, hidden width, output size) followed by the
// flattened weights as little-endian float64.

var byteOrder = binary.LittleEndian

type header struct {
	HiddenLayers int32
	Inputs       int32
	HiddenWidth  int32
	Outputs      int32
}

// WriteTo encodes the network in the binary file layout.
func (n *Network) WriteTo(w io.Writer) (int64, error) {
	if len(n.layers) < 3 {
		return 0, ErrUninitializedTopology
	}
	hdr := header{
		HiddenLayers: int32(n.shape.HiddenLayers),
		Inputs:       int32(n.shape.Inputs),
		HiddenWidth:  int32(n.shape.HiddenWidth),
		Outputs:      int32(n.shape.Outputs),
	}
	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, byteOrder, hdr); err != nil {
		return 0, err
	}
	if err := binary.Write(bw, byteOrder, n.weights); err != nil {
		return 0, err
	}
	if err := bw.Flush(); err != nil {
		return 0, err
	}
	return int64(16 + 8*len(n.weights)), nil
}

// ReadFrom decodes a network. Weights missing from a short stream keep the
// values drawn from rng; values beyond the expected count are ignored.
func ReadFrom(r io.Reader, rng *rand.Rand) (*Network, error) {
	br := bufio.NewReader(r)
	var hdr header
	if err := binary.Read(br, byteOrder, &hdr); err != nil {
		return nil, fmt.Errorf("%w: read network header: %w", ErrIO, err)
	}
	shape := Shape{
		HiddenLayers: int(hdr.HiddenLayers),
		Inputs:       int(hdr.Inputs),
		HiddenWidth:  int(hdr.HiddenWidth),
		Outputs:      int(hdr.Outputs),
	}
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("%w: network header: %w", ErrIO, err)
	}
	n, err := New(shape, rng)
	if err != nil {
		return nil, err
	}

	values := make([]float64, 0, n.WeightCount())
	var buf [8]byte
	for len(values) < n.WeightCount() {
		if _, err := io.ReadFull(br, buf[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return nil, fmt.Errorf("%w: read network weights: %w", ErrIO, err)
		}
		values = append(values, math.Float64frombits(byteOrder.Uint64(buf[:])))
	}
	n.LoadWeights(values)
	return n, nil
}

// MarshalBinary returns the network in the binary file layout.
func (n *Network) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := n.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalNetwork decodes a network previously produced by MarshalBinary.
func UnmarshalNetwork(data []byte, rng *rand.Rand) (*Network, error) {
	return ReadFrom(bytes.NewReader(data), rng)
}

// Save writes the network to path, replacing any existing file.
func (n *Network) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: open %s for write: %v", ErrIO, path, err)
	}
	if _, err := n.WriteTo(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: write %s: %v", ErrIO, path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", ErrIO, path, err)
	}
	return nil
}

// Load reads a network from path.
func Load(path string, rng *rand.Rand) (*Network, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s for read: %v", ErrIO, path, err)
	}
	defer f.Close()
	return ReadFrom(f, rng)
}
