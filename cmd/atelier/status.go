package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/atelierhq/atelier/internal/control"
	"github.com/atelierhq/atelier/internal/storage"
	"github.com/atelierhq/atelier/internal/types"
)

var statusCmd = &cobra.Command{
	Use:   "status [session]",
	Short: "Show a session's training progress",
	Long: `Show the session's current state: whether a loop is running, the
latest committed style version, and the iteration history summary.

A live run is queried over its control socket; with no run active the
summary comes from the database alone.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := resolveSession(cmd.Context(), sessionArg(args))
		if err != nil {
			return err
		}
		return showStatus(cmd.Context(), session)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func showStatus(ctx context.Context, session *types.Session) error {
	cyan := color.New(color.FgCyan).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Printf("\n%s Session %s\n", cyan("→"), session.Name)
	fmt.Printf("  ID:        %s\n", session.ID)
	fmt.Printf("  Reference: %s\n", session.ReferenceImage)

	// A live run answers on its control socket; absence just means
	// nothing is running
	client := control.NewClient(control.SocketPath(session.ID))
	if resp, err := client.Status(session.ID); err == nil && resp.Success {
		if active, ok := resp.Data["active"].(bool); ok && active {
			fmt.Printf("  Run:       %s\n", green("active"))
			if stopping, ok := resp.Data["stop_requested"].(bool); ok && stopping {
				fmt.Printf("             %s\n", gray("(stop requested)"))
			}
		}
	} else {
		fmt.Printf("  Run:       %s\n", gray("not running"))
	}

	if style, err := store.GetLatestStyle(ctx, session.ID); err == nil {
		fmt.Printf("  Style:     version %d (%s)\n", style.Version, style.Name)
		fmt.Printf("             %d tracked features\n", len(style.Features))
	} else if storage.IsNotFound(err) {
		fmt.Printf("  Style:     %s\n", gray("none yet"))
	} else {
		return err
	}

	iterations, err := store.ListIterations(ctx, session.ID)
	if err != nil {
		return err
	}
	var approved, rejected, best int
	for _, iter := range iterations {
		if iter.Approved == nil {
			continue
		}
		if *iter.Approved {
			approved++
			if iter.Scores.Overall > best {
				best = iter.Scores.Overall
			}
		} else {
			rejected++
		}
	}
	fmt.Printf("  History:   %d iterations (%d accepted, %d rejected)\n", len(iterations), approved, rejected)
	if best > 0 {
		fmt.Printf("  Best:      %d overall\n", best)
	}

	if set, err := store.GetHypothesisSet(ctx, session.ID); err == nil {
		if set.SelectedHypothesisID != "" {
			if h := set.Find(set.SelectedHypothesisID); h != nil {
				fmt.Printf("  Explored:  %d hypotheses, selected %q\n", len(set.Hypotheses), h.Label)
			}
		} else {
			fmt.Printf("  Explored:  %d hypotheses, none selected\n", len(set.Hypotheses))
		}
	}

	fmt.Println()
	return nil
}
