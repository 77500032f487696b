// Package trainer drives the iterate-evaluate-(accept|recover) loop
// that converges a session's style description toward its target score.
// The loop runs iterations strictly sequentially: every admission
// decision depends on the previous iteration's accepted baseline.
package trainer

import (
	"context"
	"fmt"

	"github.com/atelierhq/atelier/internal/confidence"
	"github.com/atelierhq/atelier/internal/config"
	"github.com/atelierhq/atelier/internal/evaluator"
	"github.com/atelierhq/atelier/internal/events"
	"github.com/atelierhq/atelier/internal/storage"
	"github.com/atelierhq/atelier/internal/synthesis"
	"github.com/atelierhq/atelier/internal/types"
	"github.com/atelierhq/atelier/internal/vision"
)

// Trainer is the convergence controller for training runs
type Trainer struct {
	store     storage.Storage
	scorer    vision.Scorer
	generator synthesis.Generator
	bus       *events.Bus
	registry  *Registry
	tuning    config.Tuning
	evalCfg   evaluator.Config
	tracker   *confidence.Tracker
}

// Config holds trainer dependencies
type Config struct {
	Store     storage.Storage
	Scorer    vision.Scorer
	Generator synthesis.Generator
	Bus       *events.Bus // optional; nil disables event publication
	Registry  *Registry   // optional; a private registry is created if nil
	Tuning    config.Tuning
	EvalCfg   *evaluator.Config // optional; defaults derived from Tuning if nil
}

// New creates a trainer
func New(cfg *Config) (*Trainer, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if cfg.Scorer == nil {
		return nil, fmt.Errorf("scorer is required")
	}
	if cfg.Generator == nil {
		return nil, fmt.Errorf("generator is required")
	}

	registry := cfg.Registry
	if registry == nil {
		registry = NewRegistry()
	}

	evalCfg := evaluator.DefaultConfig()
	if cfg.EvalCfg != nil {
		evalCfg = *cfg.EvalCfg
	} else {
		evalCfg.TargetScore = cfg.Tuning.TargetScore
		evalCfg.StrongThreshold = cfg.Tuning.StrongProgressThreshold
		evalCfg.WeakThreshold = cfg.Tuning.WeakProgressThreshold
		evalCfg.CatastrophicFloor = cfg.Tuning.CatastrophicFloor
		evalCfg.CatastrophicDrop = cfg.Tuning.CatastrophicDrop
	}

	return &Trainer{
		store:     cfg.Store,
		scorer:    cfg.Scorer,
		generator: cfg.Generator,
		bus:       cfg.Bus,
		registry:  registry,
		tuning:    cfg.Tuning,
		evalCfg:   evalCfg,
		tracker:   confidence.NewTracker(cfg.Tuning),
	}, nil
}

// Registry exposes the run registry so callers can route stop requests
func (t *Trainer) Registry() *Registry {
	return t.registry
}

// RunOptions override per-run knobs; zero values fall back to tuning
type RunOptions struct {
	TargetScore     int
	MaxIterations   int
	CreativityLevel float64
}

// Run executes one training run for the session. Returns the run result
// and, for FAILED runs, the error that terminated it. Accepted progress
// is persisted as it happens, so a failed run never loses the style
// versions admitted before the failure.
func (t *Trainer) Run(ctx context.Context, session *types.Session, subject string, opts RunOptions) (*types.RunResult, error) {
	target := opts.TargetScore
	if target == 0 {
		target = t.tuning.TargetScore
	}
	maxIterations := opts.MaxIterations
	if maxIterations == 0 {
		maxIterations = t.tuning.MaxIterations
	}
	creativity := opts.CreativityLevel
	if creativity == 0 {
		creativity = t.tuning.CreativityLevel
	}

	if err := t.registry.Begin(session.ID); err != nil {
		return nil, err
	}
	defer t.registry.End(session.ID)

	result := &types.RunResult{SessionID: session.ID, State: types.RunContinuing}

	insights, err := ComputeInsights(ctx, t.store, session.ID)
	if err != nil {
		return t.fail(result, fmt.Errorf("failed to compute training insights: %w", err))
	}

	style, err := t.currentStyle(ctx, session)
	if err != nil {
		return t.fail(result, err)
	}

	// The baseline is the last accepted iteration's scores; before the
	// first acceptance there is no baseline and the first-iteration
	// exception applies
	baseline, hasBaseline, err := t.lastAcceptedScores(ctx, session.ID)
	if err != nil {
		return t.fail(result, err)
	}

	bestApproved := insights.BestOverall
	result.BestScore = bestApproved

	var feedback []types.FeedbackEntry
	var carriedCorrections []types.Correction

	t.publish(events.New(session.ID, events.EventTypeRunStarted, events.SeverityInfo,
		fmt.Sprintf("training run started: subject=%q target=%d max_iterations=%d", subject, target, maxIterations)))

	for i := 1; i <= maxIterations; i++ {
		// Suspension point: user stop and context cancellation are only
		// observed here, between iterations
		if t.registry.StopRequested(session.ID) {
			result.State = types.RunStoppedUser
			t.publish(events.New(session.ID, events.EventTypeStopRequested, events.SeverityInfo,
				fmt.Sprintf("stop requested; halting before iteration %d", i)))
			break
		}
		if ctx.Err() != nil {
			return t.fail(result, fmt.Errorf("run canceled: %w", ctx.Err()))
		}

		t.publish(events.New(session.ID, events.EventTypeIterationStarted, events.SeverityInfo,
			fmt.Sprintf("iteration %d/%d", i, maxIterations)))

		// Steer the next attempt: emphasis for weak dimensions in the
		// accepted baseline, plus corrections carried from the previous
		// critique
		if hasBaseline {
			weak := weakDimensions(baseline, t.tuning.WeakDimensionThreshold)
			feedback = append(feedback, buildEmphasisFeedback(weak, baseline)...)
		}
		if len(carriedCorrections) > 0 {
			feedback = append(feedback, buildCorrectionFeedback(carriedCorrections)...)
			carriedCorrections = nil
		}

		prompt, err := t.scorer.GeneratePrompt(ctx, style, subject, feedback)
		if err != nil {
			return t.fail(result, fmt.Errorf("prompt generation failed at iteration %d: %w", i, err))
		}
		t.publish(events.New(session.ID, events.EventTypePromptGenerated, events.SeverityInfo, prompt))

		imageRef, err := t.generator.Generate(ctx, prompt, -1)
		if err != nil {
			return t.fail(result, fmt.Errorf("image synthesis failed at iteration %d: %w", i, err))
		}
		t.publish(events.New(session.ID, events.EventTypeImageGenerated, events.SeverityInfo, imageRef))

		critique, err := t.scorer.Critique(ctx, session.ReferenceImage, imageRef, style, creativity)
		if err != nil {
			return t.fail(result, fmt.Errorf("critique failed at iteration %d: %w", i, err))
		}
		t.publish(events.New(session.ID, events.EventTypeCritiqueCompleted, events.SeverityInfo,
			fmt.Sprintf("scores: overall=%d palette=%d composition=%d",
				critique.Scores.Overall, critique.Scores.Palette, critique.Scores.Composition)))

		decision := evaluator.Evaluate(critique.Scores, bestApproved, insights, baseline, hasBaseline, t.evalCfg)

		seq, err := t.store.NextIterationSeq(ctx, session.ID)
		if err != nil {
			return t.fail(result, fmt.Errorf("failed to allocate iteration seq: %w", err))
		}

		iter := &types.Iteration{
			SessionID: session.ID,
			Seq:       seq,
			Prompt:    prompt,
			ImageRef:  imageRef,
			Scores:    critique.Scores,
			Approved:  &decision.Accept,
		}

		result.IterationsRun = i

		if decision.Accept {
			iter.Feedback = fmt.Sprintf("accepted (%s): %s", decision.Tier, decision.Reason)
			if err := t.store.SaveIteration(ctx, iter); err != nil {
				return t.fail(result, fmt.Errorf("failed to persist iteration %d: %w", seq, err))
			}

			style, err = t.commitAccepted(ctx, session, style, critique)
			if err != nil {
				return t.fail(result, err)
			}

			baseline = critique.Scores
			hasBaseline = true
			if critique.Scores.Overall > bestApproved {
				bestApproved = critique.Scores.Overall
			}
			result.ApprovedCount++
			result.BestScore = bestApproved
			carriedCorrections = critique.Corrections

			t.publish(events.New(session.ID, events.EventTypeIterationAccepted, events.SeverityInfo,
				fmt.Sprintf("iteration %d accepted via %s; style now v%d", seq, decision.Tier, style.Version)))

			// Stopping condition is evaluated against accepted scores only
			if critique.Scores.Overall >= target {
				result.State = types.RunStoppedTarget
				result.TargetReached = true
				break
			}
		} else {
			guidance := buildRecoveryGuidance(decision, critique)
			iter.Feedback = guidance.Text
			if err := t.store.SaveIteration(ctx, iter); err != nil {
				return t.fail(result, fmt.Errorf("failed to persist iteration %d: %w", seq, err))
			}

			// The committed style and baseline stay authoritative; the
			// rejection only adds steering context for the next attempt
			feedback = append(feedback, guidance)
			result.RejectedCount++

			t.publish(events.New(session.ID, events.EventTypeIterationRejected, events.SeverityWarning,
				fmt.Sprintf("iteration %d rejected (%s): %s", seq, decision.Tier, decision.Reason)))
		}
	}

	if result.State == types.RunContinuing {
		result.State = types.RunStoppedMax
	}

	t.publish(events.New(session.ID, events.EventTypeRunCompleted, events.SeverityInfo,
		fmt.Sprintf("run finished: state=%s iterations=%d approved=%d rejected=%d best=%d",
			result.State, result.IterationsRun, result.ApprovedCount, result.RejectedCount, result.BestScore)))

	return result, nil
}

// commitAccepted persists the accepted candidate as the session's next
// style version and applies feature-confidence updates from the
// critique's corrections
func (t *Trainer) commitAccepted(ctx context.Context, session *types.Session, current *types.StyleDescription, critique *types.CritiqueResult) (*types.StyleDescription, error) {
	next := critique.UpdatedStyle
	if next == nil {
		// Neutral-fallback critiques carry no updated description;
		// re-commit the current one so the version pointer still
		// advances with the acceptance
		next = current.Clone()
	} else {
		next = next.Clone()
		// Feature history lives on the session's registry, not in model
		// output; carry it over before applying this iteration's updates
		if next.Features == nil && current.Features != nil {
			next.Features = current.Clone().Features
		}
	}
	next.SessionID = session.ID
	next.Version = 0 // storage assigns the next version
	if next.Name == "" {
		next.Name = current.Name
	}

	t.tracker.Apply(next, critique.Corrections)

	if err := t.store.SaveStyleVersion(ctx, next); err != nil {
		return nil, fmt.Errorf("failed to persist accepted style version: %w", err)
	}
	return next, nil
}

// currentStyle loads the session's latest style version, bootstrapping
// version 1 from a vision description of the reference image when the
// session has none yet
func (t *Trainer) currentStyle(ctx context.Context, session *types.Session) (*types.StyleDescription, error) {
	style, err := t.store.GetLatestStyle(ctx, session.ID)
	if err == nil {
		return style, nil
	}
	if !storage.IsNotFound(err) {
		return nil, fmt.Errorf("failed to load current style: %w", err)
	}

	style, err = t.bootstrapStyle(ctx, session)
	if err != nil {
		return nil, err
	}
	if err := t.store.SaveStyleVersion(ctx, style); err != nil {
		return nil, fmt.Errorf("failed to persist bootstrap style: %w", err)
	}
	return style, nil
}

// bootstrapStyle asks the vision collaborator for a structured first
// read of the reference image. Unlike critique scoring there is no
// sensible neutral fallback here - without a structured style the run
// has nothing to refine - so a malformed response is fatal.
func (t *Trainer) bootstrapStyle(ctx context.Context, session *types.Session) (*types.StyleDescription, error) {
	prompt := `Analyze the visual style of this image.
Respond with ONLY a JSON object:
{
  "name": "short style name",
  "core_invariants": ["traits that must never be dropped"],
  "palette": {"summary": "...", "traits": ["..."]},
  "line_and_shape": {"summary": "...", "traits": ["..."]},
  "texture": {"summary": "...", "traits": ["..."]},
  "lighting": {"summary": "...", "traits": ["..."]},
  "composition": {"summary": "...", "traits": ["..."]},
  "motifs": {"summary": "...", "traits": ["..."]}
}`

	text, err := t.scorer.Complete(ctx, "bootstrap_style", prompt, []string{session.ReferenceImage}, 4096)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze reference image: %w", err)
	}

	parsed := vision.Parse[types.StyleDescription](text, "bootstrap style")
	if !parsed.Success {
		return nil, &vision.MalformedOutputError{Operation: "bootstrap_style", Detail: parsed.Error, Raw: text}
	}

	style := parsed.Data
	style.SessionID = session.ID
	style.Version = 0
	if style.Name == "" {
		style.Name = session.Name
	}
	return &style, nil
}

// lastAcceptedScores scans history for the most recent approved
// iteration's scores
func (t *Trainer) lastAcceptedScores(ctx context.Context, sessionID string) (types.ScoreSet, bool, error) {
	iterations, err := t.store.ListIterations(ctx, sessionID)
	if err != nil {
		return types.ScoreSet{}, false, fmt.Errorf("failed to list iterations: %w", err)
	}
	for i := len(iterations) - 1; i >= 0; i-- {
		if iterations[i].Approved != nil && *iterations[i].Approved {
			return iterations[i].Scores, true, nil
		}
	}
	return types.ScoreSet{}, false, nil
}

// fail marks the run FAILED, publishes the terminal event, and returns
// the partial result alongside the error
func (t *Trainer) fail(result *types.RunResult, err error) (*types.RunResult, error) {
	result.State = types.RunFailed
	t.publish(events.New(result.SessionID, events.EventTypeRunFailed, events.SeverityError, err.Error()))
	return result, err
}

func (t *Trainer) publish(e *events.Event) {
	if t.bus != nil {
		t.bus.Publish(e)
	}
}
