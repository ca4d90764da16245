// Package accelconfig holds the byte-exact architectural constants shared
// by every other package in the toolchain: data width, tile width, the
// flat memory size, the region base addresses, and the output vector
// length.
package accelconfig

import (
	"errors"
	"fmt"
)

var (
	// ErrBaseOrdering is returned when region bases are not strictly
	// increasing (inputs < biases < outputs < weights).
	ErrBaseOrdering = errors.New("accelconfig: region bases must satisfy inputs < biases < outputs < weights")
	// ErrMemSizeNotPow2 is returned when MemSizeBytes is not a power of two.
	ErrMemSizeNotPow2 = errors.New("accelconfig: mem size must be a power of two")
	// ErrZeroTileElems is returned when TileElems is not positive.
	ErrZeroTileElems = errors.New("accelconfig: tile elems must be positive")
	// ErrWeightsOverflow is returned when the weights region base exceeds
	// the memory size.
	ErrWeightsOverflow = errors.New("accelconfig: weights base exceeds mem size")
)

// Config is an immutable set of architectural constants. Construct with
// New; never mutate a Config after construction.
type Config struct {
	DataWidthBits int
	TileElems     int
	MemSizeBytes  int

	InputsBase  int
	BiasesBase  int
	OutputsBase int
	WeightsBase int

	OutputLength int

	// StrictOpcodes makes the golden model treat an unknown opcode as
	// fatal instead of the hardware-faithful log-and-skip default.
	StrictOpcodes bool

	// ParallelGEMV enables row-parallel GEMV accumulation in the golden
	// model. Requantization remains a barrier regardless, since it needs
	// the global max-abs across all rows.
	ParallelGEMV bool
}

// Option mutates a Config under construction.
type Option func(*Config)

// WithStrictOpcodes makes unknown opcodes fatal in the golden model.
func WithStrictOpcodes(strict bool) Option {
	return func(c *Config) { c.StrictOpcodes = strict }
}

// WithParallelGEMV enables row-parallel GEMV accumulation.
func WithParallelGEMV(parallel bool) Option {
	return func(c *Config) { c.ParallelGEMV = parallel }
}

// Default returns the reference memory map used throughout this module's
// tests and examples: tile_elems=8, mem_size=32768, bases recovered from
// the accelerator's FPGA variant configuration.
func Default() Config {
	c := Config{
		DataWidthBits: 8,
		TileElems:     8,
		MemSizeBytes:  32768,
		InputsBase:    192,
		BiasesBase:    1216,
		OutputsBase:   2240,
		WeightsBase:   2368,
		OutputLength:  10,
	}
	return c
}

// New builds and validates a Config, starting from base and applying
// opts. Returns an error if the region bases are not strictly ordered, the
// memory size is not a power of two, or tile elems is non-positive.
func New(base Config, opts ...Option) (Config, error) {
	c := base
	for _, opt := range opts {
		opt(&c)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks the invariants spec'd for Config: each region base must
// be strictly greater than the previous, the memory size must be a power
// of two, and tile elems must be positive.
func (c Config) Validate() error {
	if c.TileElems <= 0 {
		return ErrZeroTileElems
	}
	if c.MemSizeBytes <= 0 || c.MemSizeBytes&(c.MemSizeBytes-1) != 0 {
		return ErrMemSizeNotPow2
	}
	if !(c.InputsBase < c.BiasesBase && c.BiasesBase < c.OutputsBase && c.OutputsBase < c.WeightsBase) {
		return ErrBaseOrdering
	}
	if c.WeightsBase >= c.MemSizeBytes {
		return ErrWeightsOverflow
	}
	return nil
}

// PaddedCols rounds cols up to the next multiple of TileElems.
func (c Config) PaddedCols(cols int) int {
	if cols <= 0 {
		return 0
	}
	t := c.TileElems
	return ((cols + t - 1) / t) * t
}

// String renders the memory map for diagnostics.
func (c Config) String() string {
	return fmt.Sprintf("Config{tile=%d mem=%d instr=[0,%d) inputs=%d biases=%d outputs=%d weights=%d out_len=%d}",
		c.TileElems, c.MemSizeBytes, c.InputsBase, c.InputsBase, c.BiasesBase, c.OutputsBase, c.WeightsBase, c.OutputLength)
}
