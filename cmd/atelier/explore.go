package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/atelierhq/atelier/internal/events"
	"github.com/atelierhq/atelier/internal/hypothesis"
	"github.com/atelierhq/atelier/internal/trainer"
	"github.com/atelierhq/atelier/internal/types"
)

var (
	exploreCount    int
	exploreHints    string
	exploreSubjects []string
	exploreNoPrompt bool
)

var exploreCmd = &cobra.Command{
	Use:   "explore [session]",
	Short: "Explore competing interpretations of the reference style",
	Long: `Extract several competing interpretations of the reference image's
style, test each by rendering unfamiliar subjects, and select the one
that transfers best.

When no interpretation is decisively ahead, you are asked to choose.
Use --no-prompt to skip the interactive chooser and decide later with
'atelier select'.

Example:
  atelier explore forest-gouache --count 3`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := resolveSession(cmd.Context(), sessionArg(args))
		if err != nil {
			return err
		}
		return runExploration(cmd.Context(), session)
	},
}

func init() {
	exploreCmd.Flags().IntVar(&exploreCount, "count", 3, "Number of interpretations to extract (2-5)")
	exploreCmd.Flags().StringVar(&exploreHints, "hints", "", "Optional guidance for interpretation")
	exploreCmd.Flags().StringSliceVar(&exploreSubjects, "subject", nil, "Test subject (repeatable; defaults to built-in probes)")
	exploreCmd.Flags().BoolVar(&exploreNoPrompt, "no-prompt", false, "Never prompt; leave an ambiguous result unselected")
	rootCmd.AddCommand(exploreCmd)
}

func runExploration(ctx context.Context, session *types.Session) error {
	scorer, generator, err := buildClients()
	if err != nil {
		return err
	}

	bus := events.NewBus()
	registry := trainer.NewRegistry()
	explorer := hypothesis.NewExplorer(store, scorer, generator, bus, registry, tuning)

	eventCh, unsubscribe := bus.Subscribe(session.ID)
	defer unsubscribe()
	go func() {
		for event := range eventCh {
			displayEvent(event)
		}
	}()

	set, err := explorer.Run(ctx, hypothesis.ExploreOptions{
		SessionID:  session.ID,
		Image:      session.ReferenceImage,
		Count:      exploreCount,
		StyleHints: exploreHints,
		Subjects:   exploreSubjects,
	})
	if err != nil {
		return err
	}

	printHypotheses(set)

	if set.SelectedHypothesisID != "" || exploreNoPrompt {
		return nil
	}

	// Ambiguous result: let the user pick interactively
	chosen, err := promptForHypothesis(set)
	if err != nil {
		return err
	}
	if chosen == "" {
		fmt.Printf("No selection made; run 'atelier select %s <n>' when ready\n", shortID(session.ID))
		return nil
	}
	return explorer.CommitSelection(ctx, set, chosen)
}

// printHypotheses shows the ranked outcome of an exploration
func printHypotheses(set *types.HypothesisSet) {
	cyan := color.New(color.FgCyan).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Printf("\n%s Hypotheses (ranked by confidence):\n\n", cyan("→"))
	for i, h := range hypothesis.Ranked(set) {
		marker := " "
		if h.ID == set.SelectedHypothesisID {
			marker = green("✓")
		}
		fmt.Printf("%s %d. %s  %.2f\n", marker, i+1, h.Label, h.Confidence)
		if h.SupportingEvidence != "" {
			fmt.Printf("     %s\n", gray(h.SupportingEvidence))
		}
		for _, t := range h.Tests {
			fmt.Printf("     %s\n", gray(fmt.Sprintf("%s: consistency %d, independence %d",
				t.Subject, t.VisualConsistency, t.SubjectIndependence)))
		}
	}
	fmt.Println()
}

// promptForHypothesis asks the user to choose by rank number. Empty
// input or EOF declines.
func promptForHypothesis(set *types.HypothesisSet) (string, error) {
	ranked := hypothesis.Ranked(set)

	cyan := color.New(color.FgCyan).SprintFunc()
	rl, err := readline.New(cyan(fmt.Sprintf("select 1-%d (enter to skip)> ", len(ranked))))
	if err != nil {
		return "", fmt.Errorf("failed to create prompt: %w", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt || err == io.EOF {
			return "", nil
		}
		if err != nil {
			return "", err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			return "", nil
		}
		n, err := strconv.Atoi(line)
		if err != nil || n < 1 || n > len(ranked) {
			fmt.Printf("enter a number between 1 and %d\n", len(ranked))
			continue
		}
		return ranked[n-1].ID, nil
	}
}
