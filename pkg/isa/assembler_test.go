package isa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allOpcodeSamples() []Instruction {
	return []Instruction{
		{Op: OpNOP},
		{Op: OpLoadV, Dest: 9, Addr: 0x700, Length: 784},
		{Op: OpLoadM, Dest: 1, Addr: 256, Rows: 4, Cols: 4},
		{Op: OpStore, Dest: 5, Addr: 192, Length: 4},
		{Op: OpGEMV, Dest: 5, WID: 1, XID: 9, BID: 3, Rows: 4, Cols: 4},
		{Op: OpRelu, Dest: 7, XID: 5, Length: 6},
	}
}

// Property 1: disassemble(assemble(i)) == i for every instruction kind.
func TestAssembleDisassembleRoundTrip(t *testing.T) {
	for _, ins := range allOpcodeSamples() {
		words := Assemble([]Instruction{ins})
		got, err := Disassemble(words)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, ins, got[0], "round-trip mismatch for %v", ins)
	}
}

// Scenario E: LOAD_V dest=9, addr=0x700, len=784 encodes to the exact
// big-endian byte sequence.
func TestScenarioELoadVEncoding(t *testing.T) {
	ins := Instruction{Op: OpLoadV, Dest: 9, Addr: 0x700, Length: 784}
	words := Assemble([]Instruction{ins})
	require.Len(t, words, 1)
	assert.Equal(t, uint64(0x00070000000C4121), words[0])

	packed := Pack(words)
	assert.Equal(t, []byte{0x00, 0x07, 0x00, 0x00, 0x00, 0x0C, 0x41, 0x21}, packed)
}

func TestDisassembleUnknownOpcode(t *testing.T) {
	_, err := Disassemble([]uint64{0x06}) // opcode 6 is undefined
	assert.ErrorIs(t, err, ErrUnknownOpcode)
}

func TestPackUnpackRoundTrip(t *testing.T) {
	words := Assemble(allOpcodeSamples()[1:]) // skip the all-zero NOP word
	packed := Pack(words)
	unpacked := Unpack(packed)
	assert.Equal(t, words, unpacked)
}

func TestUnpackStopsAtZeroWord(t *testing.T) {
	words := []uint64{1, 2, 0, 3}
	packed := Pack(words)
	unpacked := Unpack(packed)
	assert.Equal(t, []uint64{1, 2}, unpacked)
}

// Property 2 (alignment): the bound of the instruction region against
// inputs_base is checked in pkg/memimage (TestWriteInstructionsOverflowDetected);
// no test checks the offset of a terminating zero word.
func TestInstructionStringer(t *testing.T) {
	assert.Equal(t, "LOAD_V 9, 0x700, 784", Instruction{Op: OpLoadV, Dest: 9, Addr: 0x700, Length: 784}.String())
	assert.Equal(t, "GEMV 5, 1, 9, 3, 4, 4", Instruction{Op: OpGEMV, Dest: 5, WID: 1, XID: 9, BID: 3, Rows: 4, Cols: 4}.String())
}
