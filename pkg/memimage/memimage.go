// Package memimage builds the accelerator's single flat memory image:
// quantizing tensors, row-padding weight matrices to the tile width, and
// assigning every tensor a byte-aligned address.
package memimage

import (
	"errors"
	"fmt"

	"github.com/SayatAbdikul/tinyML-accelerator/pkg/accelconfig"
	"github.com/SayatAbdikul/tinyML-accelerator/pkg/graph"
	"github.com/SayatAbdikul/tinyML-accelerator/pkg/isa"
	"github.com/SayatAbdikul/tinyML-accelerator/pkg/quantize"
)

var (
	// ErrImageOverflow is returned when a region cursor would enter the
	// next region or exceed the memory size.
	ErrImageOverflow = errors.New("memimage: region overflow")
	// ErrPaddingViolation is returned when a post-write check finds a
	// non-zero padding byte.
	ErrPaddingViolation = errors.New("memimage: non-zero padding byte")
	// ErrAlreadyPlaced is returned when PlaceInitializer is asked to
	// place the same tensor name twice.
	ErrAlreadyPlaced = errors.New("memimage: initializer already placed")
)

// Placement records where one initializer ended up: an address (DRAM) or
// nothing for scratchpad-only values — the compiler's scheduler owns
// buffer-id placement separately.
type Placement struct {
	Addr       int
	Kind       graph.InitKind
	Rows       int // weights only
	Cols       int // weights only (unpadded)
	PaddedCols int // weights only
	Len        int // bytes written (rows*paddedCols for weights, element count for biases)
}

// Image owns the accelerator's flat memory, the region cursors, and the
// placement record for every initializer placed into it so far.
type Image struct {
	Cfg        accelconfig.Config
	Bytes      []byte
	Placements map[string]Placement

	biasCursor   int
	weightCursor int
}

// New allocates a zeroed image of cfg.MemSizeBytes bytes.
func New(cfg accelconfig.Config) *Image {
	return &Image{
		Cfg:        cfg,
		Bytes:      make([]byte, cfg.MemSizeBytes),
		Placements: make(map[string]Placement),
	}
}

// PlaceInitializer quantizes and writes a single initializer (by name) into
// its region, advancing the relevant cursor. Weights are collapsed to a
// (rows, cols) matrix (all but the last shape dimension become rows), row
// padded to a multiple of Cfg.TileElems with literal zero bytes, and
// written contiguously; biases are written contiguously with no padding.
func (img *Image) PlaceInitializer(name string, init graph.Initializer) error {
	if _, ok := img.Placements[name]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyPlaced, name)
	}

	kind, err := graph.Classify(init)
	if err != nil {
		return fmt.Errorf("memimage: %s: %w", name, err)
	}

	scale := quantize.ChooseScale(init.Data)
	q := quantize.QuantizeF32ToI8(init.Data, scale)

	switch kind {
	case graph.InitBias:
		return img.placeBias(name, q)
	default:
		rows, cols := collapseShape(init.Shape)
		return img.placeWeight(name, q, rows, cols)
	}
}

func collapseShape(shape []int) (rows, cols int) {
	if len(shape) == 1 {
		return 1, shape[0]
	}
	rows = 1
	for _, d := range shape[:len(shape)-1] {
		rows *= d
	}
	cols = shape[len(shape)-1]
	return rows, cols
}

func (img *Image) placeBias(name string, q []int8) error {
	addr := img.Cfg.BiasesBase + img.biasCursor
	end := addr + len(q)
	if end > img.Cfg.OutputsBase {
		return fmt.Errorf("%w: bias %s at 0x%X len %d exceeds biases region", ErrImageOverflow, name, addr, len(q))
	}
	writeI8(img.Bytes, addr, q)
	img.biasCursor += len(q)
	img.Placements[name] = Placement{Addr: addr, Kind: graph.InitBias, Len: len(q)}
	return nil
}

func (img *Image) placeWeight(name string, q []int8, rows, cols int) error {
	paddedCols := img.Cfg.PaddedCols(cols)
	totalLen := rows * paddedCols
	addr := img.Cfg.WeightsBase + img.weightCursor
	end := addr + totalLen
	if end > img.Cfg.MemSizeBytes {
		return fmt.Errorf("%w: weight %s at 0x%X len %d exceeds memory", ErrImageOverflow, name, addr, totalLen)
	}

	padded := make([]int8, totalLen)
	for r := 0; r < rows; r++ {
		copy(padded[r*paddedCols:r*paddedCols+cols], q[r*cols:(r+1)*cols])
		// padded[r*paddedCols+cols : r*paddedCols+paddedCols] stays zero.
	}
	if err := verifyRowPaddingZero(padded, rows, cols, paddedCols); err != nil {
		return err
	}

	writeI8(img.Bytes, addr, padded)
	img.weightCursor += totalLen
	img.Placements[name] = Placement{Addr: addr, Kind: graph.InitWeight, Rows: rows, Cols: cols, PaddedCols: paddedCols, Len: totalLen}
	return nil
}

func verifyRowPaddingZero(padded []int8, rows, cols, paddedCols int) error {
	for r := 0; r < rows; r++ {
		for c := cols; c < paddedCols; c++ {
			if padded[r*paddedCols+c] != 0 {
				return fmt.Errorf("%w: row %d offset %d", ErrPaddingViolation, r, c)
			}
		}
	}
	return nil
}

func writeI8(mem []byte, addr int, data []int8) {
	for i, v := range data {
		mem[addr+i] = byte(uint8(v))
	}
}

// WriteInstructions packs words as big-endian 8-byte instructions and
// writes them at offset 0 of the image. Returns ErrImageOverflow if the
// packed program would spill into the inputs region.
func (img *Image) WriteInstructions(words []uint64) error {
	packed := isa.Pack(words)
	if len(packed) > img.Cfg.InputsBase {
		return fmt.Errorf("%w: instruction region len %d exceeds inputs_base %d", ErrImageOverflow, len(packed), img.Cfg.InputsBase)
	}
	copy(img.Bytes[0:len(packed)], packed)
	return nil
}

// WriteInput quantizes and writes the input activation at Cfg.InputsBase.
func (img *Image) WriteInput(data []float32, scale float32) error {
	q := quantize.QuantizeF32ToI8(data, scale)
	end := img.Cfg.InputsBase + len(q)
	if end > img.Cfg.BiasesBase {
		return fmt.Errorf("%w: input len %d exceeds inputs region", ErrImageOverflow, len(q))
	}
	writeI8(img.Bytes, img.Cfg.InputsBase, q)
	return nil
}

// WriteInputBytes writes pre-quantized input bytes directly, used when the
// driver already has int8 activations.
func (img *Image) WriteInputBytes(q []int8) error {
	end := img.Cfg.InputsBase + len(q)
	if end > img.Cfg.BiasesBase {
		return fmt.Errorf("%w: input len %d exceeds inputs region", ErrImageOverflow, len(q))
	}
	writeI8(img.Bytes, img.Cfg.InputsBase, q)
	return nil
}
