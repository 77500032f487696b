package trainer

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelierhq/atelier/internal/config"
	"github.com/atelierhq/atelier/internal/storage"
	"github.com/atelierhq/atelier/internal/types"
)

const bootstrapJSON = `{
	"name": "test style",
	"core_invariants": ["flat shading"],
	"palette": {"summary": "muted"},
	"line_and_shape": {"summary": "bold"},
	"texture": {"summary": "grainy"},
	"lighting": {"summary": "soft"},
	"composition": {"summary": "centered"},
	"motifs": {"summary": "botanical"}
}`

// scriptedScorer walks through a list of critique results, one per
// iteration
type scriptedScorer struct {
	critiques   []*types.CritiqueResult
	call        int
	onCritique  func(call int)
	bootstrap   string
	promptCalls int
}

func (s *scriptedScorer) Describe(ctx context.Context, image string) (string, error) {
	return "a test style", nil
}

func (s *scriptedScorer) Critique(ctx context.Context, original, candidate string, style *types.StyleDescription, creativity float64) (*types.CritiqueResult, error) {
	if s.call >= len(s.critiques) {
		return nil, fmt.Errorf("unexpected critique call %d", s.call+1)
	}
	c := s.critiques[s.call]
	s.call++
	if s.onCritique != nil {
		s.onCritique(s.call)
	}
	return c, nil
}

func (s *scriptedScorer) GeneratePrompt(ctx context.Context, style *types.StyleDescription, subject string, feedback []types.FeedbackEntry) (string, error) {
	s.promptCalls++
	return fmt.Sprintf("prompt %d for %s", s.promptCalls, subject), nil
}

func (s *scriptedScorer) Complete(ctx context.Context, operation, prompt string, images []string, maxTokens int) (string, error) {
	if s.bootstrap != "" {
		return s.bootstrap, nil
	}
	return bootstrapJSON, nil
}

type stubGenerator struct {
	calls int
	fail  map[int]bool // call number -> fail
}

func (g *stubGenerator) Generate(ctx context.Context, prompt string, seed int64) (string, error) {
	g.calls++
	if g.fail[g.calls] {
		return "", fmt.Errorf("backend unavailable")
	}
	return fmt.Sprintf("img-%d.png", g.calls), nil
}

func (g *stubGenerator) Interrupt(ctx context.Context) error  { return nil }
func (g *stubGenerator) ClearQueue(ctx context.Context) error { return nil }

func uniformScores(v int) types.ScoreSet {
	return types.ScoreSet{
		Palette: v, LineAndShape: v, Texture: v,
		Lighting: v, Composition: v, Motifs: v, Overall: v,
	}
}

func critiqueWith(scores types.ScoreSet) *types.CritiqueResult {
	return &types.CritiqueResult{Scores: scores}
}

func newTestHarness(t *testing.T, scorer *scriptedScorer, gen *stubGenerator) (*Trainer, storage.Storage, *types.Session) {
	t.Helper()

	store, err := storage.NewStorage(context.Background(), &storage.Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	session := &types.Session{ID: "sess-1", Name: "test", ReferenceImage: "ref.png"}
	require.NoError(t, store.CreateSession(context.Background(), session))

	tr, err := New(&Config{
		Store:     store,
		Scorer:    scorer,
		Generator: gen,
		Tuning:    config.DefaultTuning(),
	})
	require.NoError(t, err)

	return tr, store, session
}

func TestRun_StopsWhenTargetReached(t *testing.T) {
	// Scores climb 65 -> 72 -> 76 -> 81; each step is a uniform rise so
	// every iteration is admitted, and the fourth crosses the target
	scorer := &scriptedScorer{critiques: []*types.CritiqueResult{
		critiqueWith(uniformScores(65)),
		critiqueWith(uniformScores(72)),
		critiqueWith(uniformScores(76)),
		critiqueWith(uniformScores(81)),
		critiqueWith(uniformScores(99)), // must never be reached
	}}
	tr, _, session := newTestHarness(t, scorer, &stubGenerator{})

	result, err := tr.Run(context.Background(), session, "a fox", RunOptions{
		TargetScore:   80,
		MaxIterations: 10,
	})
	require.NoError(t, err)

	assert.Equal(t, types.RunStoppedTarget, result.State)
	assert.True(t, result.TargetReached)
	assert.Equal(t, 4, result.IterationsRun)
	assert.Equal(t, 4, result.ApprovedCount)
	assert.Equal(t, 0, result.RejectedCount)
	assert.Equal(t, 81, result.BestScore)
}

func TestRun_VersionAdvancesOnlyOnAccept(t *testing.T) {
	// accept (first iteration), reject (no progress), accept (progress)
	scorer := &scriptedScorer{critiques: []*types.CritiqueResult{
		critiqueWith(uniformScores(60)),
		critiqueWith(uniformScores(60)),
		critiqueWith(uniformScores(70)),
	}}
	tr, store, session := newTestHarness(t, scorer, &stubGenerator{})

	result, err := tr.Run(context.Background(), session, "a fox", RunOptions{
		TargetScore:   95,
		MaxIterations: 3,
	})
	require.NoError(t, err)

	assert.Equal(t, types.RunStoppedMax, result.State)
	assert.Equal(t, 2, result.ApprovedCount)
	assert.Equal(t, 1, result.RejectedCount)

	// Bootstrap is v1, each acceptance adds one; the rejection must not
	style, err := store.GetLatestStyle(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, style.Version)

	iterations, err := store.ListIterations(context.Background(), session.ID)
	require.NoError(t, err)
	require.Len(t, iterations, 3)
	assert.True(t, *iterations[0].Approved)
	assert.False(t, *iterations[1].Approved)
	assert.True(t, *iterations[2].Approved)
}

func TestRun_RejectionFeedbackCarriesLostTraits(t *testing.T) {
	rejected := critiqueWith(uniformScores(55))
	rejected.LostTraits = []string{"soft vignette", "paper grain"}

	scorer := &scriptedScorer{critiques: []*types.CritiqueResult{
		critiqueWith(uniformScores(60)),
		rejected,
	}}
	tr, store, session := newTestHarness(t, scorer, &stubGenerator{})

	_, err := tr.Run(context.Background(), session, "a fox", RunOptions{
		TargetScore:   95,
		MaxIterations: 2,
	})
	require.NoError(t, err)

	// The lost traits round-trip through persisted feedback into the
	// next run's insights
	insights, err := ComputeInsights(context.Background(), store, session.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"soft vignette", "paper grain"}, insights.FrequentlyLostTraits)
	assert.Equal(t, 60, insights.BestOverall)
}

func TestRun_StopRequestHonoredBetweenIterations(t *testing.T) {
	scorer := &scriptedScorer{critiques: []*types.CritiqueResult{
		critiqueWith(uniformScores(60)),
		critiqueWith(uniformScores(70)),
	}}
	tr, _, session := newTestHarness(t, scorer, &stubGenerator{})

	// Request the stop mid-iteration; it must only take effect at the
	// next loop entry
	scorer.onCritique = func(call int) {
		if call == 1 {
			tr.Registry().RequestStop(session.ID)
		}
	}

	result, err := tr.Run(context.Background(), session, "a fox", RunOptions{
		TargetScore:   95,
		MaxIterations: 5,
	})
	require.NoError(t, err)

	assert.Equal(t, types.RunStoppedUser, result.State)
	assert.Equal(t, 1, result.IterationsRun)
	assert.Equal(t, 1, result.ApprovedCount)
}

func TestRun_SecondRunRejectedWhileActive(t *testing.T) {
	scorer := &scriptedScorer{critiques: []*types.CritiqueResult{
		critiqueWith(uniformScores(60)),
	}}
	tr, _, session := newTestHarness(t, scorer, &stubGenerator{})

	require.NoError(t, tr.Registry().Begin(session.ID))
	defer tr.Registry().End(session.ID)

	_, err := tr.Run(context.Background(), session, "a fox", RunOptions{MaxIterations: 1})
	assert.ErrorIs(t, err, ErrRunActive)
}

func TestRun_SynthesisFailureKeepsAcceptedProgress(t *testing.T) {
	scorer := &scriptedScorer{critiques: []*types.CritiqueResult{
		critiqueWith(uniformScores(60)),
	}}
	gen := &stubGenerator{fail: map[int]bool{2: true}}
	tr, store, session := newTestHarness(t, scorer, gen)

	result, err := tr.Run(context.Background(), session, "a fox", RunOptions{
		TargetScore:   95,
		MaxIterations: 5,
	})
	require.Error(t, err)

	assert.Equal(t, types.RunFailed, result.State)
	assert.Equal(t, 1, result.ApprovedCount)

	// The version admitted before the failure survives
	style, storeErr := store.GetLatestStyle(context.Background(), session.ID)
	require.NoError(t, storeErr)
	assert.Equal(t, 2, style.Version)
}

func TestRun_MalformedBootstrapIsFatal(t *testing.T) {
	scorer := &scriptedScorer{bootstrap: "that's a lovely painting!"}
	tr, _, session := newTestHarness(t, scorer, &stubGenerator{})

	result, err := tr.Run(context.Background(), session, "a fox", RunOptions{MaxIterations: 3})
	require.Error(t, err)
	assert.Equal(t, types.RunFailed, result.State)
	assert.Equal(t, 0, result.IterationsRun)
}

func TestRun_FeatureConfidenceAccumulates(t *testing.T) {
	// The same correction appears in two accepted critiques; its feature
	// should be registered and grow
	first := critiqueWith(uniformScores(60))
	first.Corrections = []types.Correction{
		{FeatureID: "heavy-outlines", Direction: types.DirectionStrengthen, Confidence: 0.9},
	}
	second := critiqueWith(uniformScores(70))
	second.Corrections = []types.Correction{
		{FeatureID: "heavy-outlines", Direction: types.DirectionStrengthen, Confidence: 0.9},
	}

	scorer := &scriptedScorer{critiques: []*types.CritiqueResult{first, second}}
	tr, store, session := newTestHarness(t, scorer, &stubGenerator{})

	_, err := tr.Run(context.Background(), session, "a fox", RunOptions{
		TargetScore:   95,
		MaxIterations: 2,
	})
	require.NoError(t, err)

	style, err := store.GetLatestStyle(context.Background(), session.ID)
	require.NoError(t, err)

	f, ok := style.Features["heavy-outlines"]
	require.True(t, ok, "correction feature must be registered")
	assert.Equal(t, 2, f.PersistenceCount)
	assert.Greater(t, f.Confidence, 0.135)
}
