package accelconfig

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
}

func TestNewAppliesOptions(t *testing.T) {
	c, err := New(Default(), WithStrictOpcodes(true), WithParallelGEMV(true))
	require.NoError(t, err)
	assert.True(t, c.StrictOpcodes)
	assert.True(t, c.ParallelGEMV)
}

func TestValidateRejectsBadOrdering(t *testing.T) {
	c := Default()
	c.BiasesBase = c.InputsBase - 1
	assert.ErrorIs(t, c.Validate(), ErrBaseOrdering)
}

func TestValidateRejectsNonPow2MemSize(t *testing.T) {
	c := Default()
	c.MemSizeBytes = 30000
	assert.ErrorIs(t, c.Validate(), ErrMemSizeNotPow2)
}

func TestValidateRejectsWeightsOverflow(t *testing.T) {
	c := Default()
	c.WeightsBase = c.MemSizeBytes
	assert.ErrorIs(t, c.Validate(), ErrWeightsOverflow)
}

func TestValidateRejectsZeroTileElems(t *testing.T) {
	c := Default()
	c.TileElems = 0
	assert.ErrorIs(t, c.Validate(), ErrZeroTileElems)
}

func TestPaddedCols(t *testing.T) {
	c := Default() // tile_elems = 8
	assert.Equal(t, 8, c.PaddedCols(5))
	assert.Equal(t, 8, c.PaddedCols(8))
	assert.Equal(t, 16, c.PaddedCols(9))
	assert.Equal(t, 0, c.PaddedCols(0))
}

func TestFromYAMLOverridesSubset(t *testing.T) {
	doc := `
tile_elems: 4
mem_size_bytes: 4096
inputs_base: 64
biases_base: 128
outputs_base: 192
weights_base: 256
`
	c, err := FromYAML(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, 4, c.TileElems)
	assert.Equal(t, 4096, c.MemSizeBytes)
	assert.Equal(t, 64, c.InputsBase)
	assert.Equal(t, 256, c.WeightsBase)
	// Unoverridden fields keep their Default value.
	assert.Equal(t, Default().OutputLength, c.OutputLength)
}

func TestFromYAMLRejectsInvalidResult(t *testing.T) {
	doc := `weights_base: 1`
	_, err := FromYAML(strings.NewReader(doc))
	require.Error(t, err)
}

func TestFromYAMLEmptyDocumentUsesDefault(t *testing.T) {
	c, err := FromYAML(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}
