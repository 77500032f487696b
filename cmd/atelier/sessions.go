package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List training sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sessions, err := store.ListSessions(cmd.Context())
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			fmt.Println("No sessions yet; create one with 'atelier init <image>'")
			return nil
		}

		cyan := color.New(color.FgCyan).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		for _, s := range sessions {
			fmt.Printf("%s  %s  %s\n", cyan(shortID(s.ID)), s.Name,
				gray(s.CreatedAt.Format("2006-01-02 15:04")))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
}
