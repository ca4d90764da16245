// Command accelrun loads a hex memory image, patches in an input vector,
// runs the golden model, and prints the output bytes.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/SayatAbdikul/tinyML-accelerator/pkg/accelconfig"
	"github.com/SayatAbdikul/tinyML-accelerator/pkg/acclog"
	"github.com/SayatAbdikul/tinyML-accelerator/pkg/golden"
	"github.com/SayatAbdikul/tinyML-accelerator/pkg/memimage"
)

const (
	exitOK             = 0
	exitExecutionError = 3
)

func main() {
	imagePath := flag.String("image", "", "path to a hex memory image")
	inputPath := flag.String("input", "", "path to a raw int8 input file")
	configPath := flag.String("config", "", "optional YAML config override")
	logLevel := flag.String("log-level", "error", "log level: error, warn, info, debug")
	flag.Parse()

	acclog.Level = parseLogLevel(*logLevel)

	if *imagePath == "" {
		fmt.Fprintln(os.Stderr, "accelrun: -image is required")
		os.Exit(exitExecutionError)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "accelrun: %v\n", err)
		os.Exit(exitExecutionError)
	}

	imageFile, err := os.Open(*imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "accelrun: opening image: %v\n", err)
		os.Exit(exitExecutionError)
	}
	defer imageFile.Close()

	mem, err := memimage.Deserialize(imageFile, cfg.MemSizeBytes)
	if err != nil {
		fmt.Fprintf(os.Stderr, "accelrun: %v\n", err)
		os.Exit(exitExecutionError)
	}

	if *inputPath != "" {
		if err := patchInput(mem, cfg, *inputPath); err != nil {
			fmt.Fprintf(os.Stderr, "accelrun: %v\n", err)
			os.Exit(exitExecutionError)
		}
	}

	sim := golden.NewSimulator(cfg)
	out, err := sim.Run(toI8(mem))
	if err != nil {
		fmt.Fprintf(os.Stderr, "accelrun: %v\n", err)
		os.Exit(exitExecutionError)
	}

	for _, b := range out {
		fmt.Printf("%d\n", b)
	}
}

func patchInput(mem []byte, cfg accelconfig.Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	end := cfg.InputsBase + len(raw)
	if end > cfg.BiasesBase {
		return fmt.Errorf("input length %d exceeds inputs region", len(raw))
	}
	copy(mem[cfg.InputsBase:end], raw)
	return nil
}

func loadConfig(path string) (accelconfig.Config, error) {
	if path == "" {
		return accelconfig.Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return accelconfig.Config{}, fmt.Errorf("opening config: %w", err)
	}
	defer f.Close()
	return accelconfig.FromYAML(f)
}

func toI8(b []byte) []int8 {
	out := make([]int8, len(b))
	for i, v := range b {
		out[i] = int8(v)
	}
	return out
}

func parseLogLevel(s string) int {
	switch s {
	case "debug":
		return acclog.Debug
	case "info":
		return acclog.Info
	case "warn":
		return acclog.Warn
	default:
		return acclog.Error
	}
}
