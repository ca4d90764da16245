package onnxsource

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDoc = `{
	"inputs": ["x"],
	"outputs": ["y"],
	"shapes": {"x": [4], "y": [4]},
	"initializers": [
		{"name": "w", "data": [1,0,0,0, 0,1,0,0, 0,0,1,0, 0,0,0,1], "shape": [4,4]},
		{"name": "b", "data": [10,20,30,40], "shape": [4]}
	],
	"nodes": [
		{"name": "reshape", "kind": "Reshape", "inputs": ["x"], "outputs": ["x_flat"]},
		{"name": "gemm", "kind": "Gemm", "inputs": ["x_flat", "w", "b"], "outputs": ["y"]}
	]
}`

func TestDecodeRoundTrip(t *testing.T) {
	src, err := Decode(strings.NewReader(sampleDoc))
	require.NoError(t, err)

	assert.Equal(t, "x", src.GraphInput())
	assert.Equal(t, "y", src.GraphOutput())
	assert.Len(t, src.Nodes(), 2)

	inits := src.Initializers()
	assert.Contains(t, inits, "w")
	assert.Contains(t, inits, "b")
	assert.Equal(t, []int{4, 4}, inits["w"].Shape)

	shapes := src.Shapes()
	assert.Equal(t, []int{4}, shapes["x"])
}

func TestDecodeRejectsMissingIO(t *testing.T) {
	_, err := Decode(strings.NewReader(`{"outputs":["y"]}`))
	assert.Error(t, err)
}

func TestDecodeRejectsInvalidJSON(t *testing.T) {
	_, err := Decode(strings.NewReader(`not json`))
	assert.Error(t, err)
}
