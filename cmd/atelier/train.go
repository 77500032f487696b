package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/atelierhq/atelier/internal/control"
	"github.com/atelierhq/atelier/internal/events"
	"github.com/atelierhq/atelier/internal/trainer"
	"github.com/atelierhq/atelier/internal/types"
)

var (
	trainSubject    string
	trainTarget     int
	trainMaxIters   int
	trainCreativity float64
)

var trainCmd = &cobra.Command{
	Use:   "train [session]",
	Short: "Run the iterative refinement loop for a session",
	Long: `Run the accept/reject refinement loop until the style converges.

Each iteration generates a candidate image from the current style
description, scores it against the reference, and either admits the
refined description as a new version or records guidance for the next
attempt. The loop ends when the overall score reaches the target, the
iteration budget runs out, or a stop is requested.

A control socket is opened for the run so 'atelier stop' and
'atelier status' work from another terminal. Ctrl-C requests a
graceful stop; a second Ctrl-C aborts the in-flight call.

Example:
  atelier train forest-gouache --subject "a fox in tall grass"`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := resolveSession(cmd.Context(), sessionArg(args))
		if err != nil {
			return err
		}
		if trainSubject == "" {
			return fmt.Errorf("--subject is required")
		}
		return runTraining(cmd.Context(), session)
	},
}

func init() {
	trainCmd.Flags().StringVar(&trainSubject, "subject", "", "Subject to render while training (required)")
	trainCmd.Flags().IntVar(&trainTarget, "target", 0, "Overall score that ends the run early (default from config)")
	trainCmd.Flags().IntVar(&trainMaxIters, "max-iterations", 0, "Iteration budget (default from config)")
	trainCmd.Flags().Float64Var(&trainCreativity, "creativity", 0, "Critique creativity 0.0-1.0 (default from config)")
	rootCmd.AddCommand(trainCmd)
}

func runTraining(ctx context.Context, session *types.Session) error {
	scorer, generator, err := buildClients()
	if err != nil {
		return err
	}

	bus := events.NewBus()
	registry := trainer.NewRegistry()

	tr, err := trainer.New(&trainer.Config{
		Store:     store,
		Scorer:    scorer,
		Generator: generator,
		Bus:       bus,
		Registry:  registry,
		Tuning:    tuning,
	})
	if err != nil {
		return err
	}

	// Control socket so a second terminal can stop or inspect the run
	srv, err := control.NewServer(control.SocketPath(session.ID), func(cmd control.Command) (map[string]interface{}, error) {
		switch cmd.Type {
		case "stop":
			registry.RequestStop(session.ID)
			return map[string]interface{}{"session_id": session.ID}, nil
		case "status":
			return map[string]interface{}{
				"session_id":     session.ID,
				"session_name":   session.Name,
				"active":         registry.IsActive(session.ID),
				"stop_requested": registry.StopRequested(session.ID),
			}, nil
		default:
			return nil, fmt.Errorf("unknown command %q", cmd.Type)
		}
	})
	if err != nil {
		return fmt.Errorf("control server: %w", err)
	}
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("control server: %w", err)
	}
	defer func() { _ = srv.Stop() }()

	// Live progress
	eventCh, unsubscribe := bus.Subscribe(session.ID)
	defer unsubscribe()
	go func() {
		for event := range eventCh {
			displayEvent(event)
		}
	}()

	// First Ctrl-C asks the loop to stop at its next checkpoint, second
	// cancels outright
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Println("\nStop requested; finishing the current iteration (Ctrl-C again to abort)")
		registry.RequestStop(session.ID)
		<-sigCh
		cancel()
	}()

	result, runErr := tr.Run(runCtx, session, trainSubject, trainer.RunOptions{
		TargetScore:     trainTarget,
		MaxIterations:   trainMaxIters,
		CreativityLevel: trainCreativity,
	})
	if result != nil {
		printRunResult(result)
	}
	if runErr != nil {
		return fmt.Errorf("training run failed: %w", runErr)
	}
	return nil
}

func printRunResult(result *types.RunResult) {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	fmt.Println()
	switch result.State {
	case types.RunStoppedTarget:
		fmt.Printf("%s Target reached\n", green("✓"))
	case types.RunStoppedMax:
		fmt.Printf("%s Iteration budget exhausted\n", yellow("ℹ"))
	case types.RunStoppedUser:
		fmt.Printf("%s Stopped by request\n", yellow("ℹ"))
	case types.RunFailed:
		fmt.Printf("%s Run failed\n", red("✗"))
	}
	fmt.Printf("  Iterations: %d (%d accepted, %d rejected)\n",
		result.IterationsRun, result.ApprovedCount, result.RejectedCount)
	fmt.Printf("  Best score: %d\n", result.BestScore)
}
