// Package onnxsource adapts a small self-contained JSON graph dump to the
// graph.ModelSource interface, so cmd/accelc can run end-to-end without an
// ONNX/protobuf dependency. It is a swappable ModelSource, not part of the
// core — any format satisfying graph.ModelSource works equally well.
package onnxsource

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/SayatAbdikul/tinyML-accelerator/pkg/graph"
)

// Document is the on-disk JSON shape: inputs/outputs are graph input and
// output tensor names, initializers carry the f32 weight/bias data, and
// nodes carry the dataflow.
type Document struct {
	Inputs       []string          `json:"inputs"`
	Outputs      []string          `json:"outputs"`
	Shapes       map[string][]int  `json:"shapes"`
	Initializers []jsonInitializer `json:"initializers"`
	Nodes        []jsonNode        `json:"nodes"`
}

type jsonInitializer struct {
	Name  string    `json:"name"`
	Data  []float32 `json:"data"`
	Shape []int     `json:"shape"`
}

type jsonNode struct {
	Name    string   `json:"name"`
	Kind    string   `json:"kind"`
	Inputs  []string `json:"inputs"`
	Outputs []string `json:"outputs"`
}

// Source wraps a decoded Document and implements graph.ModelSource.
type Source struct {
	doc Document
}

// Decode reads a Document from r and wraps it as a graph.ModelSource.
func Decode(r io.Reader) (*Source, error) {
	var doc Document
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("onnxsource: decode: %w", err)
	}
	if len(doc.Inputs) == 0 || len(doc.Outputs) == 0 {
		return nil, fmt.Errorf("onnxsource: document must name at least one input and one output")
	}
	return &Source{doc: doc}, nil
}

func (s *Source) Initializers() map[string]graph.Initializer {
	out := make(map[string]graph.Initializer, len(s.doc.Initializers))
	for _, init := range s.doc.Initializers {
		out[init.Name] = graph.Initializer{Data: init.Data, Shape: init.Shape}
	}
	return out
}

func (s *Source) Nodes() []graph.Node {
	out := make([]graph.Node, len(s.doc.Nodes))
	for i, n := range s.doc.Nodes {
		out[i] = graph.Node{
			Name:    n.Name,
			Kind:    graph.Kind(n.Kind),
			Inputs:  n.Inputs,
			Outputs: n.Outputs,
		}
	}
	return out
}

func (s *Source) Shapes() map[string][]int {
	return s.doc.Shapes
}

func (s *Source) GraphInput() string {
	return s.doc.Inputs[0]
}

func (s *Source) GraphOutput() string {
	return s.doc.Outputs[0]
}
