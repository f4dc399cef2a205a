package model

// CandidateItem is one retrieval hit. Backends produce candidates and the
// rest of the pipeline treats them as immutable.
type CandidateItem struct {
	URL     string         `json:"url"`
	Name    string         `json:"name"`
	Site    string         `json:"site"`
	Payload map[string]any `json:"payload,omitempty"`

	// RetrievalScore is the backend's own relevance estimate, if any.
	RetrievalScore float64 `json:"retrieval_score,omitempty"`

	// Source identifies the backend that produced this candidate.
	Source string `json:"source"`
}

// ScoringFailed is the sentinel score assigned to a candidate whose
// scoring call failed. Real scores are in [0, 100], so the sentinel is
// unmistakable in results and tests.
const ScoringFailed = -1.0

// RankedResult is a candidate with its final score and rank position.
type RankedResult struct {
	Item  CandidateItem `json:"item"`
	Score float64       `json:"score"`
	Rank  int           `json:"rank"`
}
