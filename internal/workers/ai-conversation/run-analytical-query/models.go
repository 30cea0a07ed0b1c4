// internal/workers/ai-conversation/run-analytical-query/models.go
package runanalyticalquery

type Input struct {
	Query string `json:"query"`
}

// Output always carries text for the reasoning service. Failed marks a
// bracketed error text; Empty marks a run that succeeded without output.
type Output struct {
	Text   string `json:"text"`
	Failed bool   `json:"failed"`
	Empty  bool   `json:"empty"`
	Reason string `json:"reason,omitempty"`
	Cached bool   `json:"cached"`
}
