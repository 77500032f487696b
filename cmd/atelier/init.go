package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/atelierhq/atelier/internal/types"
)

var initName string

var initCmd = &cobra.Command{
	Use:   "init <reference-image>",
	Short: "Create a training session from a reference image",
	Long: `Create a new training session anchored to a reference image.

The reference image defines the style being learned. All later training
and exploration for the session scores candidates against it.

Example:
  atelier init art/forest.png --name forest-gouache`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		imagePath := args[0]
		if _, err := os.Stat(imagePath); err != nil {
			return fmt.Errorf("reference image not readable: %w", err)
		}
		absPath, err := filepath.Abs(imagePath)
		if err != nil {
			return fmt.Errorf("resolving image path: %w", err)
		}

		name := initName
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(imagePath), filepath.Ext(imagePath))
		}

		session := &types.Session{
			ID:             uuid.New().String(),
			Name:           name,
			ReferenceImage: absPath,
		}
		if err := session.Validate(); err != nil {
			return err
		}
		if err := store.CreateSession(cmd.Context(), session); err != nil {
			return fmt.Errorf("creating session: %w", err)
		}
		// The newest session becomes the default so later commands can
		// omit the session argument
		if err := store.SetConfig(cmd.Context(), defaultSessionKey, session.ID); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not record default session: %v\n", err)
		}

		green := color.New(color.FgGreen).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()

		fmt.Printf("\n%s Created session %s\n\n", green("✓"), cyan(name))
		fmt.Printf("  ID:        %s\n", session.ID)
		fmt.Printf("  Reference: %s\n", absPath)
		fmt.Println()
		fmt.Printf("Next: atelier train %s --subject \"<what to draw>\"\n", shortID(session.ID))
		fmt.Printf("  or: atelier explore %s   (when the style is ambiguous)\n", shortID(session.ID))
		return nil
	},
}

func init() {
	initCmd.Flags().StringVar(&initName, "name", "", "Session name (defaults to the image filename)")
	rootCmd.AddCommand(initCmd)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
