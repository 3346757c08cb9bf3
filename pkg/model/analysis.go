package model

const (
	// NeutralScore is used for every member whose score is missing or unusable
	NeutralScore = 50
	// UnknownEventName is the label used when the collaborator did not provide one
	UnknownEventName = "Unknown Event"
)

// AnalysisResult is the validated outcome of analyzing one EventGroup.
// Scores is aligned with the group order and always has the group's length.
// BestIndex is 0-based and always within the group.
type AnalysisResult struct {
	EventName string
	Scores    []int
	BestIndex int
	Reason    string
	// Fallback is set when the result was substituted with defaults because
	// the collaborator failed or its response could not be parsed.
	Fallback bool
}

// ScoreAt returns the score for the i-th group member, or NeutralScore if out of range
func (r *AnalysisResult) ScoreAt(i int) int {
	if i < 0 || i >= len(r.Scores) {
		return NeutralScore
	}
	return r.Scores[i]
}

// WithEventName returns a copy of the result carrying a different event name
func (r *AnalysisResult) WithEventName(name string) *AnalysisResult {
	scores := make([]int, len(r.Scores))
	copy(scores, r.Scores)
	return &AnalysisResult{
		EventName: name,
		Scores:    scores,
		BestIndex: r.BestIndex,
		Reason:    r.Reason,
		Fallback:  r.Fallback,
	}
}
