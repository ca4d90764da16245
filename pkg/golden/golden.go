// Package golden implements the cycle-agnostic, bit-exact functional model
// of the accelerator: a simulator that executes a decoded instruction
// stream against a scratchpad/DRAM image and produces the same output
// bytes the RTL would.
package golden

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/SayatAbdikul/tinyML-accelerator/pkg/acclog"
	"github.com/SayatAbdikul/tinyML-accelerator/pkg/accelconfig"
	"github.com/SayatAbdikul/tinyML-accelerator/pkg/isa"
	"github.com/SayatAbdikul/tinyML-accelerator/pkg/quantize"
)

// ErrUnknownOpcode is returned (when Config.StrictOpcodes is set) instead of
// the hardware-faithful log-and-continue behavior.
var ErrUnknownOpcode = errors.New("golden: unknown opcode")

// Simulator owns the buffer map and executes one program against one
// memory snapshot. Construct a fresh Simulator per run; it holds no state
// across runs (spec.md §9: no process-wide state).
type Simulator struct {
	Cfg accelconfig.Config

	buffers  map[uint8][]int8
	mem      []int8
	outBufID uint8
}

// NewSimulator returns a Simulator bound to cfg. Call Run to execute.
func NewSimulator(cfg accelconfig.Config) *Simulator {
	return &Simulator{Cfg: cfg}
}

// Run decodes mem's instruction region (big-endian 64-bit words starting
// at offset 0) and executes it to completion, returning the first
// Cfg.OutputLength bytes of whatever buffer the last STORE targeted. If no
// STORE ever executes, the output buffer is defined as all zeros (Scenario
// A: a NOP image).
func (s *Simulator) Run(mem []int8) ([]int8, error) {
	s.buffers = make(map[uint8][]int8)
	s.mem = mem
	s.outBufID = 0
	s.buffers[0] = make([]int8, s.Cfg.OutputLength)

	words := decodeWords(mem, s.Cfg.InputsBase)
	for i, w := range words {
		ins, err := isa.Disassemble([]uint64{w})
		if err != nil {
			if s.Cfg.StrictOpcodes {
				return nil, fmt.Errorf("%w: %v", ErrUnknownOpcode, err)
			}
			acclog.PrintfFields(acclog.Warn, acclog.Fields{
				"opcode":     fmt.Sprintf("0x%02X", uint8(w&0x1F)),
				"word_index": i,
			}, "golden: skipping unknown opcode")
			continue
		}
		if err := s.exec(ins[0]); err != nil {
			return nil, err
		}
	}

	out := s.buffers[s.outBufID]
	n := s.Cfg.OutputLength
	if n > len(out) {
		n = len(out)
	}
	result := make([]int8, s.Cfg.OutputLength)
	copy(result, out[:n])
	return result, nil
}

// decodeWords reads big-endian 64-bit words from mem[0:instrRegionEnd),
// stopping at the first all-zero word (NOP/halt) as spec.md §4.6 requires.
func decodeWords(mem []int8, instrRegionEnd int) []uint64 {
	raw := make([]byte, instrRegionEnd)
	for i, b := range mem[:instrRegionEnd] {
		raw[i] = byte(uint8(b))
	}
	return isa.Unpack(raw)
}

func (s *Simulator) exec(ins isa.Instruction) error {
	switch ins.Op {
	case isa.OpNOP:
		return nil
	case isa.OpLoadV:
		s.loadV(ins.Dest, int(ins.Addr), int(ins.Length))
	case isa.OpLoadM:
		s.loadM(ins.Dest, int(ins.Addr), int(ins.Rows), int(ins.Cols))
	case isa.OpStore:
		s.store(ins.Dest, int(ins.Addr), int(ins.Length))
	case isa.OpGEMV:
		return s.gemv(ins.Dest, ins.WID, ins.XID, ins.BID, int(ins.Rows), int(ins.Cols))
	case isa.OpRelu:
		s.relu(ins.Dest, ins.XID, int(ins.Length))
	}
	return nil
}

func (s *Simulator) loadV(dest uint8, addr, length int) {
	buf := make([]int8, length)
	copy(buf, s.mem[addr:addr+length])
	s.buffers[dest] = buf
}

func (s *Simulator) loadM(dest uint8, addr, rows, cols int) {
	paddedCols := s.Cfg.PaddedCols(cols)
	n := rows * paddedCols
	buf := make([]int8, n)
	copy(buf, s.mem[addr:addr+n])
	s.buffers[dest] = buf
}

func (s *Simulator) store(src uint8, addr, length int) {
	buf := s.buffers[src]
	for i := 0; i < length; i++ {
		s.mem[addr+i] = buf[i]
	}
	s.outBufID = src
}

// gemv computes y = W*x + b in int32 accumulators and requantizes the
// whole result vector with a single global max_abs (spec.md §5: this is a
// barrier — requantization cannot be parallelized across the reduction).
// Row reduction itself may run concurrently when Cfg.ParallelGEMV is set.
func (s *Simulator) gemv(dest, w, x, b uint8, rows, cols int) error {
	wBuf, ok := s.buffers[w]
	if !ok {
		return fmt.Errorf("golden: GEMV references unloaded weight buffer %d", w)
	}
	xBuf, ok := s.buffers[x]
	if !ok {
		return fmt.Errorf("golden: GEMV references unloaded input buffer %d", x)
	}
	bBuf, ok := s.buffers[b]
	if !ok {
		return fmt.Errorf("golden: GEMV references unloaded bias buffer %d", b)
	}

	stride := s.Cfg.PaddedCols(cols)
	acc := make([]int32, rows)

	if s.Cfg.ParallelGEMV && rows > 1 {
		gemvRowsParallel(acc, wBuf, xBuf, bBuf, rows, cols, stride)
	} else {
		gemvRows(acc, wBuf, xBuf, bBuf, 0, rows, cols, stride)
	}

	var maxAbs int64
	for _, a := range acc {
		v := int64(a)
		if v < 0 {
			v = -v
		}
		if v > maxAbs {
			maxAbs = v
		}
	}

	var out []int8
	if maxAbs == 0 {
		out = make([]int8, rows)
	} else {
		q, err := quantize.RequantizeI32ToI8Exact(acc, maxAbs)
		if err != nil {
			return fmt.Errorf("golden: GEMV requantize: %w", err)
		}
		out = q
	}
	s.buffers[dest] = out
	return nil
}

func gemvRows(acc []int32, wBuf, xBuf, bBuf []int8, start, end, cols, stride int) {
	for i := start; i < end; i++ {
		var sum int32
		rowOff := i * stride
		for j := 0; j < cols; j++ {
			sum += int32(wBuf[rowOff+j]) * int32(xBuf[j])
		}
		sum += int32(bBuf[i])
		acc[i] = sum
	}
}

func gemvRowsParallel(acc []int32, wBuf, xBuf, bBuf []int8, rows, cols, stride int) {
	numWorkers := runtime.NumCPU()
	if numWorkers > rows {
		numWorkers = rows
	}
	chunk := (rows + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for start := 0; start < rows; start += chunk {
		end := start + chunk
		if end > rows {
			end = rows
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			gemvRows(acc, wBuf, xBuf, bBuf, start, end, cols, stride)
		}(start, end)
	}
	wg.Wait()
}

func (s *Simulator) relu(dest, x uint8, length int) {
	in := s.buffers[x]
	out := make([]int8, length)
	for i := 0; i < length && i < len(in); i++ {
		if in[i] < 0 {
			out[i] = 0
		} else {
			out[i] = in[i]
		}
	}
	s.buffers[dest] = out
}
