package main

import (
	"fmt"

	"github.com/tsawler/go-metal/checkpoints"
)

func probeMetal(modelPath string) error {
	importer := checkpoints.NewONNXImporter()
	checkpoint, err := importer.ImportFromONNX(modelPath)
	if err != nil {
		return fmt.Errorf("import failed, the model likely uses unsupported operations: %w", err)
	}

	fmt.Printf("  go-metal: %d layers, %d weight tensors\n",
		len(checkpoint.ModelSpec.Layers), len(checkpoint.Weights))
	for i, layer := range checkpoint.ModelSpec.Layers {
		fmt.Printf("    %d: %s (%s)\n", i+1, layer.Name, layer.Type)
	}
	return nil
}
