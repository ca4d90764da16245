package isa

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Bit field layout, LSB first, per spec.md §4.5. Unused bits are always
// zero.
//
//	Opcode   Fields
//	NOP      low 24 bits zero; remainder zero
//	LOAD_V   opcode[4:0] dest[9:5] length[27:10] addr[63:40]
//	LOAD_M   opcode[4:0] dest[9:5] cols[19:10]   rows[29:20] addr[63:40]
//	STORE    same layout as LOAD_V
//	GEMV     opcode[4:0] dest[9:5] cols[19:10] rows[29:20] b_id[34:30] x_id[39:35] w_id[63:40]
//	RELU     opcode[4:0] dest[9:5] x_id[14:10] length[29:20]
const (
	opcodeMask = 0x1F // 5 bits
	buf5Mask   = 0x1F // 5 bits, any buffer id field
	len18Mask  = 0x3FFFF
	dim10Mask  = 0x3FF
	addr24Mask = 0xFFFFFF
)

// ErrUnknownOpcode is returned by Disassemble when a word's opcode is not
// one of the defined instructions.
var ErrUnknownOpcode = errors.New("isa: unknown opcode")

// Assemble encodes prog into one 64-bit word per instruction.
func Assemble(prog []Instruction) []uint64 {
	words := make([]uint64, len(prog))
	for i, ins := range prog {
		words[i] = encode(ins)
	}
	return words
}

func encode(ins Instruction) uint64 {
	var w uint64
	w |= uint64(ins.Op) & opcodeMask
	switch ins.Op {
	case OpNOP:
		// all zero
	case OpLoadV, OpStore:
		w |= (uint64(ins.Dest) & buf5Mask) << 5
		w |= (uint64(ins.Length) & len18Mask) << 10
		w |= (uint64(ins.Addr) & addr24Mask) << 40
	case OpLoadM:
		w |= (uint64(ins.Dest) & buf5Mask) << 5
		w |= (uint64(ins.Cols) & dim10Mask) << 10
		w |= (uint64(ins.Rows) & dim10Mask) << 20
		w |= (uint64(ins.Addr) & addr24Mask) << 40
	case OpGEMV:
		w |= (uint64(ins.Dest) & buf5Mask) << 5
		w |= (uint64(ins.Cols) & dim10Mask) << 10
		w |= (uint64(ins.Rows) & dim10Mask) << 20
		w |= (uint64(ins.BID) & buf5Mask) << 30
		w |= (uint64(ins.XID) & buf5Mask) << 35
		w |= (uint64(ins.WID) & addr24Mask) << 40
	case OpRelu:
		w |= (uint64(ins.Dest) & buf5Mask) << 5
		w |= (uint64(ins.XID) & buf5Mask) << 10
		w |= (uint64(ins.Length) & dim10Mask) << 20
	}
	return w
}

// Disassemble decodes words into instructions. A zero word decodes to NOP.
// Returns ErrUnknownOpcode, wrapping the offending opcode value, on the
// first unrecognized opcode.
func Disassemble(words []uint64) ([]Instruction, error) {
	out := make([]Instruction, len(words))
	for i, w := range words {
		ins, err := decode(w)
		if err != nil {
			return nil, fmt.Errorf("word %d: %w", i, err)
		}
		out[i] = ins
	}
	return out, nil
}

func decode(w uint64) (Instruction, error) {
	opcode := Op(w & opcodeMask)
	switch opcode {
	case OpNOP:
		return Instruction{Op: OpNOP}, nil
	case OpLoadV, OpStore:
		return Instruction{
			Op:     opcode,
			Dest:   uint8((w >> 5) & buf5Mask),
			Length: uint32((w >> 10) & len18Mask),
			Addr:   uint32((w >> 40) & addr24Mask),
		}, nil
	case OpLoadM:
		return Instruction{
			Op:   opcode,
			Dest: uint8((w >> 5) & buf5Mask),
			Cols: uint32((w >> 10) & dim10Mask),
			Rows: uint32((w >> 20) & dim10Mask),
			Addr: uint32((w >> 40) & addr24Mask),
		}, nil
	case OpGEMV:
		return Instruction{
			Op:   opcode,
			Dest: uint8((w >> 5) & buf5Mask),
			Cols: uint32((w >> 10) & dim10Mask),
			Rows: uint32((w >> 20) & dim10Mask),
			BID:  uint8((w >> 30) & buf5Mask),
			XID:  uint8((w >> 35) & buf5Mask),
			WID:  uint8((w >> 40) & addr24Mask),
		}, nil
	case OpRelu:
		return Instruction{
			Op:     opcode,
			Dest:   uint8((w >> 5) & buf5Mask),
			XID:    uint8((w >> 10) & buf5Mask),
			Length: uint32((w >> 20) & dim10Mask),
		}, nil
	default:
		return Instruction{}, fmt.Errorf("%w: 0x%02X", ErrUnknownOpcode, uint8(opcode))
	}
}

// Pack serializes words as big-endian 8-byte instructions, in order,
// starting at offset 0 of the returned slice.
func Pack(words []uint64) []byte {
	out := make([]byte, len(words)*8)
	for i, w := range words {
		binary.BigEndian.PutUint64(out[i*8:(i+1)*8], w)
	}
	return out
}

// Unpack is the inverse of Pack: it reads 8-byte big-endian words from b,
// stopping at the first all-zero word (the NOP terminator) or when b is
// exhausted.
func Unpack(b []byte) []uint64 {
	var words []uint64
	for off := 0; off+8 <= len(b); off += 8 {
		w := binary.BigEndian.Uint64(b[off : off+8])
		if w == 0 {
			break
		}
		words = append(words, w)
	}
	return words
}
