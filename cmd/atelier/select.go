package main

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/atelierhq/atelier/internal/hypothesis"
	"github.com/atelierhq/atelier/internal/types"
)

var selectCmd = &cobra.Command{
	Use:   "select <session> <hypothesis>",
	Short: "Select a hypothesis from an earlier exploration",
	Long: `Select one hypothesis from the session's exploration and commit its
style description as the next version.

The hypothesis can be named by its rank number from 'atelier explore'
output or by its full id.

Example:
  atelier select forest-gouache 2`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		session, err := resolveSession(ctx, args[0])
		if err != nil {
			return err
		}

		set, err := store.GetHypothesisSet(ctx, session.ID)
		if err != nil {
			return fmt.Errorf("no exploration found for this session (run 'atelier explore' first): %w", err)
		}

		id, err := resolveHypothesis(set, args[1])
		if err != nil {
			return err
		}

		winner, err := hypothesis.ManualSelect(set, id)
		if err != nil {
			return err
		}
		if err := store.SetSelectedHypothesis(ctx, session.ID, id); err != nil {
			return fmt.Errorf("recording selection: %w", err)
		}

		style := winner.Style.Clone()
		style.SessionID = session.ID
		style.Version = 0
		if err := store.SaveStyleVersion(ctx, style); err != nil {
			return fmt.Errorf("committing selected style: %w", err)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Selected %q (confidence %.2f) and committed its style\n",
			green("✓"), winner.Label, winner.Confidence)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(selectCmd)
}

// resolveHypothesis maps a rank number or id to a hypothesis id
func resolveHypothesis(set *types.HypothesisSet, ref string) (string, error) {
	if h := set.Find(ref); h != nil {
		return h.ID, nil
	}
	ranked := hypothesis.Ranked(set)
	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(ranked) {
		return ranked[n-1].ID, nil
	}
	return "", fmt.Errorf("no hypothesis %q (use a rank 1-%d or a full id)", ref, len(ranked))
}
