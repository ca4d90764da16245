// Command accelc compiles a model graph (the small JSON dump understood by
// pkg/onnxsource) into a memory image hex file.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/SayatAbdikul/tinyML-accelerator/pkg/accelconfig"
	"github.com/SayatAbdikul/tinyML-accelerator/pkg/acclog"
	"github.com/SayatAbdikul/tinyML-accelerator/pkg/driver"
	"github.com/SayatAbdikul/tinyML-accelerator/pkg/graph"
	"github.com/SayatAbdikul/tinyML-accelerator/pkg/memimage"
	"github.com/SayatAbdikul/tinyML-accelerator/pkg/onnxsource"
)

const (
	exitOK             = 0
	exitCompileError   = 2
	exitExecutionError = 3
	exitImageOverflow  = 4
)

func main() {
	modelPath := flag.String("model", "", "path to a model JSON document")
	outPath := flag.String("out", "image.hex", "path to write the hex memory image")
	configPath := flag.String("config", "", "optional YAML config override")
	logLevel := flag.String("log-level", "error", "log level: error, warn, info, debug")
	flag.Parse()

	acclog.Level = parseLogLevel(*logLevel)

	if *modelPath == "" {
		fmt.Fprintln(os.Stderr, "accelc: -model is required")
		os.Exit(exitCompileError)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "accelc: %v\n", err)
		os.Exit(exitCompileError)
	}

	modelFile, err := os.Open(*modelPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "accelc: opening model: %v\n", err)
		os.Exit(exitCompileError)
	}
	defer modelFile.Close()

	src, err := onnxsource.Decode(modelFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "accelc: %v\n", err)
		os.Exit(exitCompileError)
	}

	img, prog, err := driver.Build(cfg, src)
	if err != nil {
		fmt.Fprintf(os.Stderr, "accelc: %v\n", err)
		os.Exit(exitCodeFor(err))
	}
	acclog.Printf(acclog.Info, "compiled %d instructions", len(prog))

	out, err := os.Create(*outPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "accelc: creating output: %v\n", err)
		os.Exit(exitExecutionError)
	}
	defer out.Close()

	if err := img.Serialize(out); err != nil {
		fmt.Fprintf(os.Stderr, "accelc: %v\n", err)
		os.Exit(exitExecutionError)
	}
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

func exitCodeFor(err error) int {
	if errors.Is(err, memimage.ErrImageOverflow) {
		return exitImageOverflow
	}
	if errors.Is(err, graph.ErrCyclic) {
		return exitCompileError
	}
	return exitCompileError
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
