// Package isa defines the accelerator's fixed 64-bit instruction word
// format and the assembler/disassembler that packs/unpacks it, per the bit
// layout the golden model and the RTL both implement.
package isa

import "fmt"

// Op is the instruction opcode, the low 5 bits of every instruction word.
type Op uint8

const (
	OpNOP    Op = 0x00
	OpLoadV  Op = 0x01
	OpLoadM  Op = 0x02
	OpStore  Op = 0x03
	OpGEMV   Op = 0x04
	OpRelu   Op = 0x05
)

func (o Op) String() string {
	switch o {
	case OpNOP:
		return "NOP"
	case OpLoadV:
		return "LOAD_V"
	case OpLoadM:
		return "LOAD_M"
	case OpStore:
		return "STORE"
	case OpGEMV:
		return "GEMV"
	case OpRelu:
		return "RELU"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02X)", uint8(o))
	}
}

// Instruction is a decoded instruction. Not every field is meaningful for
// every Op; see the field table above the bit-field constants in assembler.go.
type Instruction struct {
	Op     Op
	Dest   uint8 // buffer id (LOAD_V/LOAD_M/STORE/GEMV/RELU dest)
	Addr   uint32
	Length uint32 // LOAD_V/STORE length
	Rows   uint32 // LOAD_M/GEMV rows
	Cols   uint32 // LOAD_M/GEMV cols
	BID    uint8  // GEMV bias buffer id
	XID    uint8  // GEMV/RELU source buffer id
	WID    uint8  // GEMV weight buffer id
}

func (ins Instruction) String() string {
	switch ins.Op {
	case OpNOP:
		return "NOP"
	case OpLoadV:
		return fmt.Sprintf("LOAD_V %d, 0x%X, %d", ins.Dest, ins.Addr, ins.Length)
	case OpLoadM:
		return fmt.Sprintf("LOAD_M %d, 0x%X, %d, %d", ins.Dest, ins.Addr, ins.Rows, ins.Cols)
	case OpStore:
		return fmt.Sprintf("STORE %d, 0x%X, %d", ins.Dest, ins.Addr, ins.Length)
	case OpGEMV:
		return fmt.Sprintf("GEMV %d, %d, %d, %d, %d, %d", ins.Dest, ins.WID, ins.XID, ins.BID, ins.Rows, ins.Cols)
	case OpRelu:
		return fmt.Sprintf("RELU %d, %d, %d", ins.Dest, ins.XID, ins.Length)
	default:
		return ins.Op.String()
	}
}
