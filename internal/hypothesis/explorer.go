package hypothesis

import (
	"context"
	"fmt"

	"github.com/atelierhq/atelier/internal/config"
	"github.com/atelierhq/atelier/internal/events"
	"github.com/atelierhq/atelier/internal/storage"
	"github.com/atelierhq/atelier/internal/synthesis"
	"github.com/atelierhq/atelier/internal/trainer"
	"github.com/atelierhq/atelier/internal/types"
	"github.com/atelierhq/atelier/internal/vision"
)

// DefaultSubjects are the probe subjects used when the caller supplies
// none. Deliberately unlike typical reference imagery so a style welded
// to its original subject matter scores low on independence.
var DefaultSubjects = []string{
	"a lighthouse on a rocky coast at dusk",
	"a portrait of an elderly man reading",
	"a bowl of fruit on a wooden table",
}

// Explorer runs the full hypothesis pipeline for a session: extract
// competing interpretations, test each against unfamiliar subjects,
// and select a winner when the evidence is decisive.
type Explorer struct {
	store    storage.Storage
	engine   *Engine
	tester   *Tester
	bus      *events.Bus
	registry *trainer.Registry
	tuning   config.Tuning
}

// NewExplorer wires an explorer from its collaborators
func NewExplorer(store storage.Storage, scorer vision.Scorer, generator synthesis.Generator, bus *events.Bus, registry *trainer.Registry, tuning config.Tuning) *Explorer {
	return &Explorer{
		store:    store,
		engine:   NewEngine(scorer),
		tester:   NewTester(scorer, generator, tuning),
		bus:      bus,
		registry: registry,
		tuning:   tuning,
	}
}

// ExploreOptions parameterizes one exploration run
type ExploreOptions struct {
	SessionID  string
	Image      string
	Count      int      // hypotheses to extract, 2-5
	StyleHints string   // optional user guidance for extraction
	Subjects   []string // test subjects; DefaultSubjects when empty
}

// Run executes one exploration end to end. The set is persisted after
// extraction and again after each hypothesis finishes testing, so an
// interrupted exploration leaves its partial results inspectable.
//
// The registry's one-run-per-session rule applies here exactly as it
// does to training: an exploration and a training run on the same
// session would race on the style-version sequence.
func (x *Explorer) Run(ctx context.Context, opts ExploreOptions) (*types.HypothesisSet, error) {
	if err := x.registry.Begin(opts.SessionID); err != nil {
		return nil, err
	}
	defer x.registry.End(opts.SessionID)

	subjects := opts.Subjects
	if len(subjects) == 0 {
		subjects = DefaultSubjects
	}

	x.publish(events.New(opts.SessionID, events.EventTypeExplorationStarted, events.SeverityInfo,
		fmt.Sprintf("exploring %d interpretations of %s", opts.Count, opts.Image)))

	set, err := x.engine.Extract(ctx, opts.SessionID, opts.Image, opts.Count, opts.StyleHints)
	if err != nil {
		x.publish(events.New(opts.SessionID, events.EventTypeRunFailed, events.SeverityError,
			fmt.Sprintf("hypothesis extraction failed: %v", err)))
		return nil, err
	}
	for _, h := range set.Hypotheses {
		x.publish(events.New(opts.SessionID, events.EventTypeHypothesisExtracted, events.SeverityInfo,
			fmt.Sprintf("hypothesis %q extracted", h.Label)).WithData(map[string]interface{}{
			"hypothesis_id": h.ID,
			"confidence":    h.Confidence,
		}))
	}

	if err := x.store.SaveHypothesisSet(ctx, set); err != nil {
		return nil, fmt.Errorf("saving hypothesis set: %w", err)
	}

	stopped := false
	shouldStop := func() bool { return x.registry.StopRequested(opts.SessionID) }
	for _, h := range set.Hypotheses {
		if shouldStop() {
			stopped = true
			x.publish(events.New(opts.SessionID, events.EventTypeStopRequested, events.SeverityInfo,
				"stop requested, ending exploration"))
			break
		}

		x.publish(events.New(opts.SessionID, events.EventTypeHypothesisTestStarted, events.SeverityInfo,
			fmt.Sprintf("testing hypothesis %q against %d subjects", h.Label, len(subjects))))

		if err := x.tester.Test(ctx, h, opts.Image, subjects, shouldStop); err != nil {
			// One untestable hypothesis keeps its 1/n prior and stays
			// in the running; the others still get their evidence
			x.publish(events.New(opts.SessionID, events.EventTypeHypothesisTested, events.SeverityWarning,
				fmt.Sprintf("hypothesis %q could not be tested: %v", h.Label, err)))
			continue
		}

		x.publish(events.New(opts.SessionID, events.EventTypeHypothesisTested, events.SeverityInfo,
			fmt.Sprintf("hypothesis %q tested, confidence %.2f", h.Label, h.Confidence)).WithData(map[string]interface{}{
			"hypothesis_id": h.ID,
			"confidence":    h.Confidence,
			"tests":         len(h.Tests),
		}))

		if err := x.store.SaveHypothesisSet(ctx, set); err != nil {
			return nil, fmt.Errorf("saving hypothesis set: %w", err)
		}
	}

	if !stopped {
		if winner, ok := Select(set, x.tuning.SelectionThreshold, x.tuning.SelectionGap); ok {
			if err := x.CommitSelection(ctx, set, winner.ID); err != nil {
				return nil, err
			}
		} else {
			x.publish(events.New(opts.SessionID, events.EventTypeProgress, events.SeverityInfo,
				"no hypothesis is decisively ahead; selection deferred to the user"))
		}
	}

	x.publish(events.New(opts.SessionID, events.EventTypeExplorationCompleted, events.SeverityInfo,
		fmt.Sprintf("exploration finished with %d hypotheses", len(set.Hypotheses))))
	return set, nil
}

// CommitSelection records a winning hypothesis and installs its style
// as the session's next committed version. Used by both auto-selection
// and the interactive chooser.
func (x *Explorer) CommitSelection(ctx context.Context, set *types.HypothesisSet, hypothesisID string) error {
	winner, err := ManualSelect(set, hypothesisID)
	if err != nil {
		return err
	}
	if err := x.store.SetSelectedHypothesis(ctx, set.SessionID, hypothesisID); err != nil {
		return fmt.Errorf("recording hypothesis selection: %w", err)
	}

	style := winner.Style.Clone()
	style.SessionID = set.SessionID
	style.Version = 0 // next version assigned on save
	if err := x.store.SaveStyleVersion(ctx, style); err != nil {
		return fmt.Errorf("committing selected style: %w", err)
	}

	x.publish(events.New(set.SessionID, events.EventTypeHypothesisSelected, events.SeverityInfo,
		fmt.Sprintf("hypothesis %q selected (confidence %.2f)", winner.Label, winner.Confidence)).WithData(map[string]interface{}{
		"hypothesis_id": winner.ID,
	}))
	return nil
}

func (x *Explorer) publish(e *events.Event) {
	if x.bus != nil {
		x.bus.Publish(e)
	}
}
