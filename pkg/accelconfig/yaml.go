package accelconfig

import (
	"io"

	"gopkg.in/yaml.v3"
)

// yamlOverride mirrors the subset of Config fields an operator may want to
// override from a file without recompiling: region layout and the two
// behavioral flags. DataWidthBits and OutputLength are architectural and
// intentionally not overridable here.
type yamlOverride struct {
	TileElems     *int  `yaml:"tile_elems"`
	MemSizeBytes  *int  `yaml:"mem_size_bytes"`
	InputsBase    *int  `yaml:"inputs_base"`
	BiasesBase    *int  `yaml:"biases_base"`
	OutputsBase   *int  `yaml:"outputs_base"`
	WeightsBase   *int  `yaml:"weights_base"`
	StrictOpcodes *bool `yaml:"strict_opcodes"`
	ParallelGEMV  *bool `yaml:"parallel_gemv"`
}

// FromYAML reads a Config override document from r and applies it on top
// of Default, returning a validated Config. Fields absent from the
// document keep their Default value.
func FromYAML(r io.Reader) (Config, error) {
	var ov yamlOverride
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&ov); err != nil && err != io.EOF {
		return Config{}, err
	}

	c := Default()
	if ov.TileElems != nil {
		c.TileElems = *ov.TileElems
	}
	if ov.MemSizeBytes != nil {
		c.MemSizeBytes = *ov.MemSizeBytes
	}
	if ov.InputsBase != nil {
		c.InputsBase = *ov.InputsBase
	}
	if ov.BiasesBase != nil {
		c.BiasesBase = *ov.BiasesBase
	}
	if ov.OutputsBase != nil {
		c.OutputsBase = *ov.OutputsBase
	}
	if ov.WeightsBase != nil {
		c.WeightsBase = *ov.WeightsBase
	}
	if ov.StrictOpcodes != nil {
		c.StrictOpcodes = *ov.StrictOpcodes
	}
	if ov.ParallelGEMV != nil {
		c.ParallelGEMV = *ov.ParallelGEMV
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}
