package main

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/atelierhq/atelier/internal/types"
)

var (
	styleVersion int
	styleJSON    bool
)

var styleCmd = &cobra.Command{
	Use:   "style [session]",
	Short: "Show a session's committed style description",
	Long: `Show the latest committed style description for the session, or a
specific earlier version with --version.

Example:
  atelier style forest-gouache
  atelier style forest-gouache --version 2 --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		session, err := resolveSession(ctx, sessionArg(args))
		if err != nil {
			return err
		}

		var style *types.StyleDescription
		if styleVersion > 0 {
			style, err = store.GetStyleVersion(ctx, session.ID, styleVersion)
		} else {
			style, err = store.GetLatestStyle(ctx, session.ID)
		}
		if err != nil {
			return fmt.Errorf("no style found: %w", err)
		}

		if styleJSON {
			data, err := json.MarshalIndent(style, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}

		printStyle(style)
		return nil
	},
}

func init() {
	styleCmd.Flags().IntVar(&styleVersion, "version", 0, "Specific version to show (default latest)")
	styleCmd.Flags().BoolVar(&styleJSON, "json", false, "Output raw JSON")
	rootCmd.AddCommand(styleCmd)
}

func printStyle(style *types.StyleDescription) {
	cyan := color.New(color.FgCyan).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Printf("\n%s %s (version %d)\n\n", cyan("→"), style.Name, style.Version)

	for _, inv := range style.CoreInvariants {
		fmt.Printf("  * %s\n", inv)
	}
	if len(style.CoreInvariants) > 0 {
		fmt.Println()
	}

	blocks := []struct {
		name  string
		block types.StyleBlock
	}{
		{"palette", style.Palette},
		{"line & shape", style.LineAndShape},
		{"texture", style.Texture},
		{"lighting", style.Lighting},
		{"composition", style.Composition},
		{"motifs", style.Motifs},
	}
	for _, b := range blocks {
		if b.block.Summary == "" && len(b.block.Traits) == 0 {
			continue
		}
		fmt.Printf("  %s: %s\n", cyan(b.name), b.block.Summary)
		for _, t := range b.block.Traits {
			fmt.Printf("    - %s\n", t)
		}
	}

	if len(style.Features) > 0 {
		fmt.Printf("\n  %s\n", cyan("feature confidence"))
		ids := make([]string, 0, len(style.Features))
		for id := range style.Features {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			f := style.Features[id]
			fmt.Printf("    %-30s %.2f %s\n", id, f.Confidence,
				gray(fmt.Sprintf("(seen %dx)", f.PersistenceCount)))
		}
	}
	fmt.Println()
}
