package types

import (
	"fmt"
	"time"
)

// Session represents one style-training workspace, anchored to a single
// reference image. All style versions, iterations, and hypothesis sets
// belong to exactly one session.
type Session struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	ReferenceImage string    `json:"reference_image"`
	CreatedAt      time.Time `json:"created_at"`
}

// Validate checks if the session has valid field values
func (s *Session) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("session id is required")
	}
	if s.Name == "" {
		return fmt.Errorf("session name is required")
	}
	if s.ReferenceImage == "" {
		return fmt.Errorf("reference image is required")
	}
	return nil
}

// Dimension identifies one scored axis of a style critique
type Dimension string

const (
	DimPalette      Dimension = "palette"
	DimLineAndShape Dimension = "line_and_shape"
	DimTexture      Dimension = "texture"
	DimLighting     Dimension = "lighting"
	DimComposition  Dimension = "composition"
	DimMotifs       Dimension = "motifs"
	DimOverall      Dimension = "overall"
)

// Dimensions lists every scored dimension in canonical order.
// Overall is last by convention.
var Dimensions = []Dimension{
	DimPalette,
	DimLineAndShape,
	DimTexture,
	DimLighting,
	DimComposition,
	DimMotifs,
	DimOverall,
}

// IsValid checks if the dimension value is valid
func (d Dimension) IsValid() bool {
	switch d {
	case DimPalette, DimLineAndShape, DimTexture, DimLighting, DimComposition, DimMotifs, DimOverall:
		return true
	}
	return false
}

// ScoreSet holds per-dimension critique scores, 0-100 each.
// A closed struct rather than a map so malformed model output is a
// parse-time failure instead of a missing-key surprise downstream.
type ScoreSet struct {
	Palette      int `json:"palette"`
	LineAndShape int `json:"line_and_shape"`
	Texture      int `json:"texture"`
	Lighting     int `json:"lighting"`
	Composition  int `json:"composition"`
	Motifs       int `json:"motifs"`
	Overall      int `json:"overall"`
}

// Get returns the score for a dimension
func (s ScoreSet) Get(d Dimension) int {
	switch d {
	case DimPalette:
		return s.Palette
	case DimLineAndShape:
		return s.LineAndShape
	case DimTexture:
		return s.Texture
	case DimLighting:
		return s.Lighting
	case DimComposition:
		return s.Composition
	case DimMotifs:
		return s.Motifs
	case DimOverall:
		return s.Overall
	}
	return 0
}

// Set assigns the score for a dimension
func (s *ScoreSet) Set(d Dimension, v int) {
	switch d {
	case DimPalette:
		s.Palette = v
	case DimLineAndShape:
		s.LineAndShape = v
	case DimTexture:
		s.Texture = v
	case DimLighting:
		s.Lighting = v
	case DimComposition:
		s.Composition = v
	case DimMotifs:
		s.Motifs = v
	case DimOverall:
		s.Overall = v
	}
}

// NeutralScores returns a ScoreSet with every dimension at 50.
// Used as the fallback when a critique response cannot be parsed -
// critique quality loss is recoverable, total failure is not.
func NeutralScores() ScoreSet {
	var s ScoreSet
	for _, d := range Dimensions {
		s.Set(d, 50)
	}
	return s
}

// Clamp limits every dimension to the 0-100 range
func (s ScoreSet) Clamp() ScoreSet {
	out := s
	for _, d := range Dimensions {
		v := out.Get(d)
		if v < 0 {
			out.Set(d, 0)
		} else if v > 100 {
			out.Set(d, 100)
		}
	}
	return out
}

// StyleBlock is one structured dimension of a style description
// (palette, line/shape, texture, lighting, composition, or motifs).
type StyleBlock struct {
	Summary  string   `json:"summary"`
	Traits   []string `json:"traits,omitempty"`
	Examples []string `json:"examples,omitempty"`
}

// Feature is a tracked style trait with a belief score that evolves
// across iterations. Features are never deleted, only decayed toward 0.
type Feature struct {
	ID               string  `json:"id"`
	Confidence       float64 `json:"confidence"`        // belief in [0,1]
	PersistenceCount int     `json:"persistence_count"` // iterations the feature appeared in, >= 1
}

// StyleDescription is a versioned structured record of a visual style.
// Instances are immutable once persisted; an accepted iteration creates
// a new version rather than mutating the old one. Versions form a
// strictly increasing integer sequence per session, never reused.
type StyleDescription struct {
	SessionID          string              `json:"session_id"`
	Version            int                 `json:"version"`
	Name               string              `json:"name"`
	CoreInvariants     []string            `json:"core_invariants"` // ordered, must never be dropped
	Palette            StyleBlock          `json:"palette"`
	LineAndShape       StyleBlock          `json:"line_and_shape"`
	Texture            StyleBlock          `json:"texture"`
	Lighting           StyleBlock          `json:"lighting"`
	Composition        StyleBlock          `json:"composition"`
	Motifs             StyleBlock          `json:"motifs"`
	SubjectDescription string              `json:"subject_description,omitempty"`
	Features           map[string]*Feature `json:"features,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
}

// Clone returns a deep copy, used when deriving the next version from an
// accepted candidate so feature updates never touch the committed record.
func (sd *StyleDescription) Clone() *StyleDescription {
	out := *sd
	out.CoreInvariants = append([]string(nil), sd.CoreInvariants...)
	out.Palette = sd.Palette.clone()
	out.LineAndShape = sd.LineAndShape.clone()
	out.Texture = sd.Texture.clone()
	out.Lighting = sd.Lighting.clone()
	out.Composition = sd.Composition.clone()
	out.Motifs = sd.Motifs.clone()
	if sd.Features != nil {
		out.Features = make(map[string]*Feature, len(sd.Features))
		for id, f := range sd.Features {
			c := *f
			out.Features[id] = &c
		}
	}
	return &out
}

func (b StyleBlock) clone() StyleBlock {
	out := b
	out.Traits = append([]string(nil), b.Traits...)
	out.Examples = append([]string(nil), b.Examples...)
	return out
}

// CorrectionDirection says which way a critique wants a feature adjusted
type CorrectionDirection string

const (
	DirectionStrengthen CorrectionDirection = "strengthen"
	DirectionWeaken     CorrectionDirection = "weaken"
)

// IsValid checks if the correction direction is valid
func (d CorrectionDirection) IsValid() bool {
	return d == DirectionStrengthen || d == DirectionWeaken
}

// Correction is one itemized feature adjustment from a critique
type Correction struct {
	FeatureID  string              `json:"feature_id"`
	Direction  CorrectionDirection `json:"direction"`
	Confidence float64             `json:"confidence"`
}

// CritiqueResult is the structured verdict the vision collaborator
// produces for one candidate image. Consumed immediately by the
// convergence loop; only its scores survive in the iteration record.
type CritiqueResult struct {
	Scores               ScoreSet          `json:"scores"`
	PreservedTraits      []string          `json:"preserved_traits"`
	LostTraits           []string          `json:"lost_traits"`
	InterestingMutations []string          `json:"interesting_mutations"`
	Corrections          []Correction      `json:"corrections,omitempty"`
	UpdatedStyle         *StyleDescription `json:"updated_style_description"`
}

// Iteration is one generate-then-critique attempt within a training run.
// Fields are filled progressively during a single pass of the loop, then
// the record is frozen.
type Iteration struct {
	SessionID string    `json:"session_id"`
	Seq       int       `json:"seq"` // 1-based per session
	Prompt    string    `json:"prompt"`
	ImageRef  string    `json:"image_ref"`
	Scores    ScoreSet  `json:"scores"`
	Approved  *bool     `json:"approved,omitempty"`
	Feedback  string    `json:"feedback,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TrainingInsights aggregates a session's iteration history. Recomputed
// from persisted iterations at the start of a controller run; read-only
// input to admission evaluation.
type TrainingInsights struct {
	BestOverall          int                   `json:"best_overall"`
	DimensionAverages    map[Dimension]float64 `json:"dimension_averages"`
	FrequentlyLostTraits []string              `json:"frequently_lost_traits"`
	IterationCount       int                   `json:"iteration_count"`
}

// HypothesisTest is one empirical probe of a hypothesis: generate an
// image of a test subject in the hypothesized style, score it against
// the reference. Append-only, one per (hypothesis, subject) pair.
type HypothesisTest struct {
	Subject             string    `json:"subject"`
	ImageRef            string    `json:"image_ref"`
	VisualConsistency   int       `json:"visual_consistency"`   // 0-100
	SubjectIndependence int       `json:"subject_independence"` // 0-100
	TestedAt            time.Time `json:"tested_at"`
}

// StyleHypothesis is one candidate interpretation of an image's style.
// Confidence is mutated only by the hypothesis tester.
type StyleHypothesis struct {
	ID                 string            `json:"id"`
	Label              string            `json:"label"`
	Style              *StyleDescription `json:"style"`
	Confidence         float64           `json:"confidence"`
	SupportingEvidence string            `json:"supporting_evidence,omitempty"`
	UncertainAspects   string            `json:"uncertain_aspects,omitempty"`
	Tests              []HypothesisTest  `json:"tests,omitempty"`
}

// HypothesisSet groups the competing interpretations extracted from one
// exploration run. SelectedHypothesisID is the only field mutated after
// creation, and once set must reference a member hypothesis.
type HypothesisSet struct {
	SessionID            string             `json:"session_id"`
	Hypotheses           []*StyleHypothesis `json:"hypotheses"`
	SelectedHypothesisID string             `json:"selected_hypothesis_id,omitempty"`
	CreatedAt            time.Time          `json:"created_at"`
}

// Find returns the hypothesis with the given id, or nil
func (hs *HypothesisSet) Find(id string) *StyleHypothesis {
	for _, h := range hs.Hypotheses {
		if h.ID == id {
			return h
		}
	}
	return nil
}

// RunState is the terminal state of a convergence run
type RunState string

const (
	RunContinuing    RunState = "continuing"
	RunStoppedTarget RunState = "stopped_target"
	RunStoppedMax    RunState = "stopped_max_iterations"
	RunStoppedUser   RunState = "stopped_user"
	RunFailed        RunState = "failed"
)

// RunResult summarizes one convergence-controller run
type RunResult struct {
	SessionID     string   `json:"session_id"`
	State         RunState `json:"state"`
	IterationsRun int      `json:"iterations_run"`
	ApprovedCount int      `json:"approved_count"`
	RejectedCount int      `json:"rejected_count"`
	BestScore     int      `json:"best_score"`
	TargetReached bool     `json:"target_reached"`
}
