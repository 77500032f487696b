package types

// FeedbackKind distinguishes where a feedback entry came from, so prompt
// generation can weight recovery guidance over routine emphasis.
type FeedbackKind string

const (
	// FeedbackEmphasis is synthesized for dimensions scoring below the
	// weak threshold on the last accepted baseline
	FeedbackEmphasis FeedbackKind = "emphasis"
	// FeedbackCorrection carries forward itemized corrections from the
	// previous iteration's critique
	FeedbackCorrection FeedbackKind = "correction"
	// FeedbackRecovery summarizes why an iteration was rejected; tagged
	// high priority for the next generation attempt
	FeedbackRecovery FeedbackKind = "recovery"
	// FeedbackUser is free-text feedback supplied by a human
	FeedbackUser FeedbackKind = "user"
)

// FeedbackEntry is one steering hint passed into prompt generation.
// Feedback accumulates across iterations; it is the mechanism for
// steering the next attempt without altering the committed style.
type FeedbackEntry struct {
	Kind FeedbackKind `json:"kind"`
	Text string       `json:"text"`
}

// HighPriority reports whether this entry should lead the feedback
// context handed to prompt generation
func (f FeedbackEntry) HighPriority() bool {
	return f.Kind == FeedbackRecovery
}
