package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/dudu/drowsewatch/internal/config"
	"github.com/dudu/drowsewatch/internal/inference"
)

// expected tensor names for each model role
var roles = map[string]struct {
	inputs, outputs []string
}{
	"scrfd": {
		inputs: []string{"input.1"},
		outputs: []string{
			"score_8", "score_16", "score_32",
			"bbox_8", "bbox_16", "bbox_32",
			"kps_8", "kps_16", "kps_32",
		},
	},
	"facemesh": {
		inputs:  []string{"input_1"},
		outputs: []string{"conv2d_21", "conv2d_31"},
	},
}

func main() {
	var (
		library string
		role    string
		metal   bool
	)
	defaults, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	flag.StringVar(&library, "ort", defaults.ORTLibraryPath, "ONNX Runtime shared library")
	flag.StringVar(&role, "role", "", "Check tensor names for a model role: scrfd or facemesh")
	flag.BoolVar(&metal, "metal", false, "Also try importing the model with go-metal (macOS only)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: modelprobe [options] <model.onnx>...\n\n")
		fmt.Fprintf(os.Stderr, "Checks that ONNX Runtime can load the models drowsewatch uses.\n\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExample:\n")
		fmt.Fprintf(os.Stderr, "  modelprobe -role facemesh models/face_landmark.onnx\n")
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(1)
	}

	os.Exit(run(library, role, metal, flag.Args()))
}

// run probes every model and returns the process exit code.
func run(library, role string, metal bool, models []string) int {
	if err := inference.Initialize(library); err != nil {
		fmt.Printf("❌ %v\n", err)
		fmt.Println("\nSet DROWSE_ORT_LIBRARY or -ort to the onnxruntime shared library.")
		return 1
	}
	defer inference.Shutdown()
	fmt.Printf("✓ ONNX Runtime %s initialized\n", inference.Version())

	code := 0
	for _, modelPath := range models {
		if err := probe(modelPath, role); err != nil {
			fmt.Printf("❌ %s: %v\n", modelPath, err)
			code = 1
		}
		if metal {
			if err := probeMetal(modelPath); err != nil {
				fmt.Printf("❌ %s (go-metal): %v\n", modelPath, err)
			}
		}
	}
	return code
}

func probe(modelPath, role string) error {
	if _, err := os.Stat(modelPath); err != nil {
		return err
	}

	info, err := inference.Describe(modelPath)
	if err != nil {
		return err
	}

	fmt.Printf("\n%s\n", modelPath)
	fmt.Printf("  Inputs (%d):\n", len(info.Inputs))
	for _, i := range info.Inputs {
		fmt.Printf("    %s: shape=%v, type=%s\n", i.Name, i.Shape, i.DataType)
	}
	fmt.Printf("  Outputs (%d):\n", len(info.Outputs))
	for _, o := range info.Outputs {
		fmt.Printf("    %s: shape=%v, type=%s\n", o.Name, o.Shape, o.DataType)
	}
	if info.Producer != "" {
		fmt.Printf("  Producer: %s (version %d)\n", info.Producer, info.Version)
	}
	if info.Description != "" {
		fmt.Printf("  Description: %s\n", info.Description)
	}

	if role == "" {
		return nil
	}
	want, ok := roles[role]
	if !ok {
		return fmt.Errorf("unknown role %q", role)
	}
	missing := append(inference.MissingNames(info.Inputs, want.inputs...),
		inference.MissingNames(info.Outputs, want.outputs...)...)
	if len(missing) > 0 {
		return fmt.Errorf("not usable as %s, missing tensors %v", role, missing)
	}
	fmt.Printf("  ✓ usable as %s\n", role)
	return nil
}
