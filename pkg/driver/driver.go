// Package driver glues the compiler, memory-image builder, instruction
// assembler, and golden model into the single end-to-end pipeline: build
// an image for one graph, patch in an input, run the golden model, and
// report the output bytes.
package driver

import (
	"fmt"

	"github.com/SayatAbdikul/tinyML-accelerator/pkg/accelconfig"
	"github.com/SayatAbdikul/tinyML-accelerator/pkg/golden"
	"github.com/SayatAbdikul/tinyML-accelerator/pkg/graph"
	"github.com/SayatAbdikul/tinyML-accelerator/pkg/isa"
	"github.com/SayatAbdikul/tinyML-accelerator/pkg/memimage"
	"github.com/SayatAbdikul/tinyML-accelerator/pkg/quantize"
	"github.com/SayatAbdikul/tinyML-accelerator/pkg/scheduler"
)

// Build compiles src into a MemoryImage and its instruction program: every
// initializer is placed (quantized and padded), the graph is topologically
// sorted and scheduled, and the resulting program is packed into the
// image's instruction region. The returned image has no input written yet.
func Build(cfg accelconfig.Config, src graph.ModelSource) (*memimage.Image, []isa.Instruction, error) {
	g := graph.Load(src)

	ordered, err := graph.TopologicalSort(g)
	if err != nil {
		return nil, nil, fmt.Errorf("driver: %w", err)
	}

	img := memimage.New(cfg)
	if err := placeInitializers(img, g, ordered); err != nil {
		return nil, nil, err
	}

	c := scheduler.NewCompiler(cfg, img)
	prog, err := c.Schedule(g, ordered)
	if err != nil {
		return nil, nil, fmt.Errorf("driver: %w", err)
	}

	words := isa.Assemble(prog)
	if err := img.WriteInstructions(words); err != nil {
		return nil, nil, fmt.Errorf("driver: %w", err)
	}

	return img, prog, nil
}

// placeInitializers runs spec.md §4.3's single pass over the
// topologically-ordered nodes, placing each initializer the first time it
// is seen as a node input. Walking the ordered node list (rather than
// ranging g.Initializers, a map with randomized iteration order) is what
// makes the resulting MemoryImage bytes deterministic across runs.
func placeInitializers(img *memimage.Image, g graph.ModelGraph, ordered []graph.Node) error {
	for _, node := range ordered {
		for _, name := range node.Inputs {
			if _, placed := img.Placements[name]; placed {
				continue
			}
			init, isInit := g.Initializers[name]
			if !isInit {
				continue
			}
			if err := img.PlaceInitializer(name, init); err != nil {
				return fmt.Errorf("driver: placing %s: %w", name, err)
			}
		}
	}
	return nil
}

// RunFloat quantizes input with ChooseScale, writes it into img's input
// region, and executes the golden model, returning the output vector. The
// golden model's STORE writes are reflected back into img.Bytes, matching
// the single-writer-at-a-time discipline of the memory image.
func RunFloat(img *memimage.Image, input []float32) ([]int8, error) {
	scale := quantize.ChooseScale(input)
	if err := img.WriteInput(input, scale); err != nil {
		return nil, fmt.Errorf("driver: %w", err)
	}
	return runGolden(img)
}

// RunQuantized writes pre-quantized int8 input and executes the golden
// model, returning the output vector.
func RunQuantized(img *memimage.Image, input []int8) ([]int8, error) {
	if err := img.WriteInputBytes(input); err != nil {
		return nil, fmt.Errorf("driver: %w", err)
	}
	return runGolden(img)
}

func runGolden(img *memimage.Image) ([]int8, error) {
	mem := toI8(img.Bytes)
	sim := golden.NewSimulator(img.Cfg)
	out, err := sim.Run(mem)
	if err != nil {
		return nil, fmt.Errorf("driver: %w", err)
	}
	for i, v := range mem {
		img.Bytes[i] = byte(uint8(v))
	}
	return out, nil
}

func toI8(b []byte) []int8 {
	out := make([]int8, len(b))
	for i, v := range b {
		out[i] = int8(v)
	}
	return out
}
