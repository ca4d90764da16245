package scheduler

import (
	"testing"

	"github.com/SayatAbdikul/tinyML-accelerator/pkg/accelconfig"
	"github.com/SayatAbdikul/tinyML-accelerator/pkg/graph"
	"github.com/SayatAbdikul/tinyML-accelerator/pkg/isa"
	"github.com/SayatAbdikul/tinyML-accelerator/pkg/memimage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scenarioBCfg(t *testing.T) accelconfig.Config {
	t.Helper()
	cfg, err := accelconfig.New(accelconfig.Config{
		DataWidthBits: 8,
		TileElems:     4,
		MemSizeBytes:  4096,
		InputsBase:    64,
		BiasesBase:    128,
		OutputsBase:   192,
		WeightsBase:   256,
		OutputLength:  4,
	})
	require.NoError(t, err)
	return cfg
}

func buildScenarioBGraph() (graph.ModelGraph, *memimage.Image) {
	cfg := accelconfig.Default()
	cfg.TileElems = 4
	cfg.MemSizeBytes = 4096
	cfg.InputsBase = 64
	cfg.BiasesBase = 128
	cfg.OutputsBase = 192
	cfg.WeightsBase = 256
	cfg.OutputLength = 4

	img := memimage.New(cfg)
	w := graph.Initializer{
		Data: []float32{
			1, 0, 0, 0,
			0, 1, 0, 0,
			0, 0, 1, 0,
			0, 0, 0, 1,
		},
		Shape: []int{4, 4},
	}
	b := graph.Initializer{Data: []float32{10, 20, 30, 40}, Shape: []int{4}}
	_ = img.PlaceInitializer("w", w)
	_ = img.PlaceInitializer("b", b)

	g := graph.ModelGraph{
		Nodes: []graph.Node{
			{Name: "reshape", Kind: graph.KindReshape, Inputs: []string{"x"}, Outputs: []string{"x_flat"}},
			{Name: "gemm", Kind: graph.KindGemm, Inputs: []string{"x_flat", "w", "b"}, Outputs: []string{"y"}},
		},
		Initializers: map[string]graph.Initializer{"w": w, "b": b},
		Shapes:       map[string][]int{"x": {4}},
		InputName:    "x",
		OutputName:   "y",
	}
	return g, img
}

// Scenario B's exact instruction sequence:
// LOAD_V 9,64,4; LOAD_M 1,256,4,4; LOAD_V 3,128,4; GEMV 5,1,9,3,4,4; STORE 5,192,4
func TestScheduleScenarioB(t *testing.T) {
	g, img := buildScenarioBGraph()
	ordered, err := graph.TopologicalSort(g)
	require.NoError(t, err)

	c := NewCompiler(img.Cfg, img)
	prog, err := c.Schedule(g, ordered)
	require.NoError(t, err)

	want := []isa.Instruction{
		{Op: isa.OpLoadV, Dest: 9, Addr: 64, Length: 4},
		{Op: isa.OpLoadM, Dest: 1, Addr: 256, Rows: 4, Cols: 4},
		{Op: isa.OpLoadV, Dest: 3, Addr: 128, Length: 4},
		{Op: isa.OpGEMV, Dest: 5, WID: 1, XID: 9, BID: 3, Rows: 4, Cols: 4},
		{Op: isa.OpStore, Dest: 5, Addr: 192, Length: 4},
	}
	assert.Equal(t, want, prog)
}

func TestScheduleNeverAssignsBuffer0(t *testing.T) {
	g, img := buildScenarioBGraph()
	ordered, err := graph.TopologicalSort(g)
	require.NoError(t, err)
	c := NewCompiler(img.Cfg, img)
	prog, err := c.Schedule(g, ordered)
	require.NoError(t, err)
	for _, ins := range prog {
		assert.NotEqual(t, uint8(0), ins.Dest)
	}
}

func TestScheduleDeterministic(t *testing.T) {
	g, img := buildScenarioBGraph()
	ordered, err := graph.TopologicalSort(g)
	require.NoError(t, err)

	c1 := NewCompiler(img.Cfg, img)
	prog1, err := c1.Schedule(g, ordered)
	require.NoError(t, err)

	_, img2 := buildScenarioBGraph()
	c2 := NewCompiler(img2.Cfg, img2)
	prog2, err := c2.Schedule(g, ordered)
	require.NoError(t, err)

	assert.Equal(t, prog1, prog2)
}

func TestSchedulePingPongsAcrossTwoLayers(t *testing.T) {
	cfg := scenarioBCfg(t)
	cfg.WeightsBase = 512
	img := memimage.New(cfg)

	w1 := graph.Initializer{Data: make([]float32, 16), Shape: []int{4, 4}}
	w2 := graph.Initializer{Data: make([]float32, 16), Shape: []int{4, 4}}
	b1 := graph.Initializer{Data: []float32{1, 2, 3, 4}, Shape: []int{4}}
	b2 := graph.Initializer{Data: []float32{5, 6, 7, 8}, Shape: []int{4}}
	for i := range w1.Data {
		w1.Data[i] = 1
		w2.Data[i] = 1
	}
	require.NoError(t, img.PlaceInitializer("w1", w1))
	require.NoError(t, img.PlaceInitializer("w2", w2))
	require.NoError(t, img.PlaceInitializer("b1", b1))
	require.NoError(t, img.PlaceInitializer("b2", b2))

	g := graph.ModelGraph{
		Nodes: []graph.Node{
			{Name: "reshape", Kind: graph.KindReshape, Inputs: []string{"x"}, Outputs: []string{"x_flat"}},
			{Name: "gemm1", Kind: graph.KindGemm, Inputs: []string{"x_flat", "w1", "b1"}, Outputs: []string{"h1"}},
			{Name: "relu1", Kind: graph.KindRelu, Inputs: []string{"h1"}, Outputs: []string{"h1_relu"}},
			{Name: "gemm2", Kind: graph.KindGemm, Inputs: []string{"h1_relu", "w2", "b2"}, Outputs: []string{"y"}},
		},
		Shapes:     map[string][]int{"x": {4}},
		InputName:  "x",
		OutputName: "y",
	}
	ordered, err := graph.TopologicalSort(g)
	require.NoError(t, err)

	c := NewCompiler(cfg, img)
	prog, err := c.Schedule(g, ordered)
	require.NoError(t, err)

	var gemvs []isa.Instruction
	for _, ins := range prog {
		if ins.Op == isa.OpGEMV {
			gemvs = append(gemvs, ins)
		}
	}
	require.Len(t, gemvs, 2)
	assert.Equal(t, uint8(5), gemvs[0].Dest)
	assert.Equal(t, uint8(6), gemvs[1].Dest, "second GEMV should ping-pong to buffer 6")
	assert.Equal(t, uint8(1), gemvs[0].WID)
	assert.Equal(t, uint8(2), gemvs[1].WID, "second weight load should ping-pong to buffer 2")
}
