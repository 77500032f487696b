package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/atelierhq/atelier/internal/control"
)

var stopReason string

var stopCmd = &cobra.Command{
	Use:   "stop [session]",
	Short: "Request a graceful stop of the session's running loop",
	Long: `Ask the session's running training or exploration loop to stop at its
next checkpoint.

The stop is cooperative: work already in flight finishes first, and
every style version committed so far is kept.

Example:
  atelier stop forest-gouache --reason "good enough"`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := resolveSession(cmd.Context(), sessionArg(args))
		if err != nil {
			return err
		}

		client := control.NewClient(control.SocketPath(session.ID))
		resp, err := client.Stop(session.ID, stopReason)
		if err != nil {
			return err
		}
		if !resp.Success {
			return fmt.Errorf("stop refused: %s", resp.Message)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Stop requested; the run will end at its next checkpoint\n", green("✓"))
		return nil
	},
}

func init() {
	stopCmd.Flags().StringVar(&stopReason, "reason", "", "Optional reason recorded with the stop")
	rootCmd.AddCommand(stopCmd)
}
