package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history [session]",
	Short: "Show a session's iteration history",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		session, err := resolveSession(ctx, sessionArg(args))
		if err != nil {
			return err
		}
		iterations, err := store.ListIterations(ctx, session.ID)
		if err != nil {
			return err
		}
		if len(iterations) == 0 {
			fmt.Println("No iterations yet")
			return nil
		}

		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		for _, iter := range iterations {
			verdict := gray("·")
			if iter.Approved != nil {
				if *iter.Approved {
					verdict = green("✓")
				} else {
					verdict = red("✗")
				}
			}
			fmt.Printf("%s #%-3d overall %-3d  pal %-3d line %-3d tex %-3d light %-3d comp %-3d motif %-3d  %s\n",
				verdict, iter.Seq,
				iter.Scores.Overall, iter.Scores.Palette, iter.Scores.LineAndShape,
				iter.Scores.Texture, iter.Scores.Lighting, iter.Scores.Composition,
				iter.Scores.Motifs,
				gray(iter.CreatedAt.Format("15:04:05")))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
}
