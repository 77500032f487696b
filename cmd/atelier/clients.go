package main

import (
	"fmt"

	"github.com/atelierhq/atelier/internal/synthesis"
	"github.com/atelierhq/atelier/internal/vision"
)

var (
	backendURL string
	outputDir  string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&backendURL, "backend", "", "Image generation backend URL (default http://127.0.0.1:7860)")
	rootCmd.PersistentFlags().StringVar(&outputDir, "output", "", "Directory for generated images (default .atelier/images)")
}

// buildClients constructs the vision scorer and synthesis generator
// shared by training and exploration commands
func buildClients() (vision.Scorer, synthesis.Generator, error) {
	scorer, err := vision.NewClient(&vision.Config{})
	if err != nil {
		return nil, nil, fmt.Errorf("vision client: %w", err)
	}
	generator, err := synthesis.NewClient(&synthesis.Config{
		BaseURL:   backendURL,
		OutputDir: outputDir,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("synthesis client: %w", err)
	}
	return scorer, generator, nil
}
