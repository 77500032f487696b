// Command atelier trains a reusable style description from a single
// reference image by iterating against an image-generation backend and
// a vision model critic.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/atelierhq/atelier/internal/config"
	"github.com/atelierhq/atelier/internal/storage"
	"github.com/atelierhq/atelier/internal/types"
)

var (
	// store is opened by the root PersistentPreRun and shared by all
	// commands
	store storage.Storage

	// tuning is loaded once from the config file plus env overrides
	tuning config.Tuning

	dbPath     string
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "atelier",
	Short: "Train image-generation style descriptions by iterative refinement",
	Long: `Atelier learns a transferable style description from one reference image.

It alternates generating candidate images, scoring them against the
reference with a vision model, and refining a structured style
description until the style reproduces reliably on new subjects.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		tuning, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		store, err = storage.NewStorage(cmd.Context(), &storage.Config{Path: dbPath})
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if store != nil {
			_ = store.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", ".atelier/atelier.db", "Path to the session database")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".atelier/config.yaml", "Path to the tuning config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// defaultSessionKey is the config key holding the id of the most
// recently created session
const defaultSessionKey = "default_session"

// sessionArg returns the session reference from the command args, or
// "" to mean the default session
func sessionArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}

// resolveSession finds a session by exact id, unique id prefix, or
// exact name. An empty ref resolves to the default session recorded by
// the most recent init.
func resolveSession(ctx context.Context, ref string) (*types.Session, error) {
	if ref == "" {
		id, err := store.GetConfig(ctx, defaultSessionKey)
		if err != nil {
			if storage.IsNotFound(err) {
				return nil, fmt.Errorf("no session given and no default recorded (try 'atelier init')")
			}
			return nil, err
		}
		ref = id
	}

	if session, err := store.GetSession(ctx, ref); err == nil {
		return session, nil
	} else if !storage.IsNotFound(err) {
		return nil, err
	}

	sessions, err := store.ListSessions(ctx)
	if err != nil {
		return nil, err
	}

	var matches []*types.Session
	for _, s := range sessions {
		if strings.HasPrefix(s.ID, ref) || s.Name == ref {
			matches = append(matches, s)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("no session matching %q (try 'atelier sessions')", ref)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("%q is ambiguous: matches %d sessions", ref, len(matches))
	}
}
