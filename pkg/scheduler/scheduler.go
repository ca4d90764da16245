// Package scheduler walks a topologically-ordered model graph and emits a
// linear accelerator instruction sequence under the fixed ping-pong buffer
// discipline of spec.md §4.4: deterministic, overlap-free producer/
// consumer pairings without a live-range analysis.
package scheduler

import (
	"errors"
	"fmt"

	"github.com/SayatAbdikul/tinyML-accelerator/pkg/accelconfig"
	"github.com/SayatAbdikul/tinyML-accelerator/pkg/graph"
	"github.com/SayatAbdikul/tinyML-accelerator/pkg/isa"
	"github.com/SayatAbdikul/tinyML-accelerator/pkg/memimage"
)

// Fixed scratchpad buffer ids. Buffer 0 is reserved and never assigned to
// live data (spec.md §9's resolved open question); the input tensor always
// lives in buffer 9.
const (
	bufInputVector uint8 = 9
)

var (
	// ErrUnsupportedGraph is returned for a node kind other than Reshape,
	// Gemm, MatMul, Add or Relu, an Add without exactly two inputs, and a
	// Gemm/MatMul whose weight or bias is missing or unplaced. The order in
	// which the supported kinds appear is not checked.
	ErrUnsupportedGraph = errors.New("scheduler: unsupported graph dataflow")
)

// Compiler owns the four ping-pong cursors and the running tensor->buffer
// map for one scheduling pass. Construct a fresh Compiler per graph; it
// holds no state across runs (spec.md §9: no process-wide state).
type Compiler struct {
	Cfg   accelconfig.Config
	Image *memimage.Image

	matBuf   uint8 // 1 <-> 2
	biasBuf  uint8 // 3 <-> 4
	gemvBuf  uint8 // 5 <-> 6
	reluBuf  uint8 // 7 <-> 8

	tensorBuf  map[string]uint8 // tensor name -> scratchpad buffer id
	tensorSize map[string]int   // tensor name -> tracked element count (for RELU length)

	prog []isa.Instruction
}

// NewCompiler returns a Compiler ready to schedule against img, which must
// already have every weight/bias initializer placed (see
// memimage.Image.PlaceInitializer) so LOAD_M/LOAD_V addresses are known.
func NewCompiler(cfg accelconfig.Config, img *memimage.Image) *Compiler {
	return &Compiler{
		Cfg:        cfg,
		Image:      img,
		matBuf:     1,
		biasBuf:    3,
		gemvBuf:    5,
		reluBuf:    7,
		tensorBuf:  make(map[string]uint8),
		tensorSize: make(map[string]int),
	}
}

func (c *Compiler) toggleMat() uint8 {
	v := c.matBuf
	if c.matBuf == 1 {
		c.matBuf = 2
	} else {
		c.matBuf = 1
	}
	return v
}

func (c *Compiler) toggleBias() uint8 {
	v := c.biasBuf
	if c.biasBuf == 3 {
		c.biasBuf = 4
	} else {
		c.biasBuf = 3
	}
	return v
}

func (c *Compiler) toggleGemv() uint8 {
	v := c.gemvBuf
	if c.gemvBuf == 5 {
		c.gemvBuf = 6
	} else {
		c.gemvBuf = 5
	}
	return v
}

func (c *Compiler) toggleRelu() uint8 {
	v := c.reluBuf
	if c.reluBuf == 7 {
		c.reluBuf = 8
	} else {
		c.reluBuf = 7
	}
	return v
}

// Schedule lowers ordered nodes (already topologically sorted) into an
// instruction program, per the node-lowering rules of spec.md §4.4.
func (c *Compiler) Schedule(g graph.ModelGraph, ordered []graph.Node) ([]isa.Instruction, error) {
	outputIsGraphOutput := func(name string) bool {
		return name == g.OutputName
	}

	for _, node := range ordered {
		switch node.Kind {
		case graph.KindReshape:
			c.lowerReshape(g, node)
			continue

		case graph.KindAdd:
			// Folded into the preceding Gemm/MatMul; emits nothing. Its
			// output aliases the buffer of its non-initializer operand.
			if len(node.Inputs) != 2 {
				return nil, fmt.Errorf("%w: Add node %s does not have 2 inputs", ErrUnsupportedGraph, node.Name)
			}
			for _, in := range node.Inputs {
				if _, isInit := g.Initializers[in]; isInit {
					continue
				}
				c.tensorBuf[node.Outputs[0]] = c.tensorBuf[in]
				c.tensorSize[node.Outputs[0]] = c.tensorSize[in]
			}

		case graph.KindGemm, graph.KindMatMul:
			if err := c.lowerGemm(g, node); err != nil {
				return nil, err
			}

		case graph.KindRelu:
			c.lowerRelu(node)

		default:
			return nil, fmt.Errorf("%w: unsupported node kind %q (%s)", ErrUnsupportedGraph, node.Kind, node.Name)
		}

		for _, out := range node.Outputs {
			if outputIsGraphOutput(out) {
				c.emitStore(out)
			}
		}
	}

	return c.prog, nil
}

// ensureInputLoaded emits the LOAD_V that brings name into buffer 9 the
// first time any node references it without an assigned buffer, covering
// both an explicit Reshape node and graphs that feed the graph input
// straight into the first Gemm/MatMul (spec.md §4.4's "Reshape?" is
// optional).
func (c *Compiler) ensureInputLoaded(g graph.ModelGraph, name string) {
	if _, ok := c.tensorBuf[name]; ok {
		return
	}
	size := graph.TensorSize(g.Shapes[name])
	c.prog = append(c.prog, isa.Instruction{
		Op: isa.OpLoadV, Dest: bufInputVector, Addr: uint32(c.Cfg.InputsBase), Length: uint32(size),
	})
	c.tensorBuf[name] = bufInputVector
	c.tensorSize[name] = size
}

func (c *Compiler) lowerReshape(g graph.ModelGraph, node graph.Node) {
	in := node.Inputs[0]
	out := node.Outputs[0]
	c.ensureInputLoaded(g, in)
	c.tensorBuf[out] = bufInputVector
	c.tensorSize[out] = c.tensorSize[in]
}

func (c *Compiler) lowerGemm(g graph.ModelGraph, node graph.Node) error {
	if len(node.Inputs) < 2 {
		return fmt.Errorf("%w: %s node %s needs at least (x, w)", ErrUnsupportedGraph, node.Kind, node.Name)
	}
	xName, wName := node.Inputs[0], node.Inputs[1]

	c.ensureInputLoaded(g, xName)
	xBuf := c.tensorBuf[xName]

	wPlacement, ok := c.Image.Placements[wName]
	if !ok {
		return fmt.Errorf("%w: weight %s has no placement", ErrUnsupportedGraph, wName)
	}
	wBuf := c.toggleMat()
	c.prog = append(c.prog, isa.Instruction{
		Op: isa.OpLoadM, Dest: wBuf, Addr: uint32(wPlacement.Addr),
		Rows: uint32(wPlacement.Rows), Cols: uint32(wPlacement.Cols),
	})
	c.tensorBuf[wName] = wBuf

	var biasName string
	if len(node.Inputs) >= 3 {
		biasName = node.Inputs[2]
	} else {
		biasName = findBiasOperand(g, node)
	}
	if biasName == "" {
		return fmt.Errorf("%w: %s node %s has no bias operand", ErrUnsupportedGraph, node.Kind, node.Name)
	}
	biasPlacement, ok := c.Image.Placements[biasName]
	if !ok {
		return fmt.Errorf("%w: bias %s has no placement", ErrUnsupportedGraph, biasName)
	}
	bBuf := c.toggleBias()
	c.prog = append(c.prog, isa.Instruction{
		Op: isa.OpLoadV, Dest: bBuf, Addr: uint32(biasPlacement.Addr), Length: uint32(biasPlacement.Len),
	})
	c.tensorBuf[biasName] = bBuf

	gemvBuf := c.toggleGemv()
	c.prog = append(c.prog, isa.Instruction{
		Op: isa.OpGEMV, Dest: gemvBuf, WID: wBuf, XID: xBuf, BID: bBuf,
		Rows: uint32(wPlacement.Rows), Cols: uint32(wPlacement.Cols),
	})

	out := node.Outputs[0]
	c.tensorBuf[out] = gemvBuf
	c.tensorSize[out] = wPlacement.Rows
	return nil
}

// findBiasOperand locates the bias initializer feeding a following Add
// node when the bias is not already a direct Gemm/MatMul input — i.e. the
// ONNX-style MatMul -> Add(bias) pattern where bias folding is implicit.
func findBiasOperand(g graph.ModelGraph, gemmNode graph.Node) string {
	out := gemmNode.Outputs[0]
	for _, n := range g.Nodes {
		if n.Kind != graph.KindAdd {
			continue
		}
		consumesGemmOutput := false
		for _, in := range n.Inputs {
			if in == out {
				consumesGemmOutput = true
				break
			}
		}
		if !consumesGemmOutput {
			continue
		}
		for _, operand := range n.Inputs {
			if operand == out {
				continue
			}
			if _, isInit := g.Initializers[operand]; isInit {
				return operand
			}
		}
	}
	return ""
}

func (c *Compiler) lowerRelu(node graph.Node) {
	in := node.Inputs[0]
	xBuf := c.tensorBuf[in]
	length := c.tensorSize[in]

	reluBuf := c.toggleRelu()
	c.prog = append(c.prog, isa.Instruction{
		Op: isa.OpRelu, Dest: reluBuf, XID: xBuf, Length: uint32(length),
	})

	out := node.Outputs[0]
	c.tensorBuf[out] = reluBuf
	c.tensorSize[out] = length
}

func (c *Compiler) emitStore(tensorName string) {
	buf := c.tensorBuf[tensorName]
	size := c.tensorSize[tensorName]
	c.prog = append(c.prog, isa.Instruction{
		Op: isa.OpStore, Dest: buf, Addr: uint32(c.Cfg.OutputsBase), Length: uint32(size),
	})
}
