// internal/workers/ai-conversation/answer-question/models.go
package answerquestion

type Input struct {
	Session string `json:"session"`
	Message string `json:"message"`
}

type Output struct {
	Reply   string `json:"reply"`
	Session string `json:"session"`
	// Path is "direct", "tools" or "error".
	Path      string          `json:"path"`
	Outcome   string          `json:"outcome"`
	ToolCalls []ToolExecution `json:"toolCalls,omitempty"`
}

// ToolExecution records one capability call made during the turn.
type ToolExecution struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Outcome string `json:"outcome"`
}

// TurnState names the steps a turn moves through.
type TurnState string

const (
	StateReceived       TurnState = "RECEIVED"
	StateRouted         TurnState = "ROUTED"
	StateDirect         TurnState = "DIRECT"
	StateToolsExecuting TurnState = "TOOLS_EXECUTING"
	StateSynthesized    TurnState = "SYNTHESIZED"
	StateMemoryAppended TurnState = "MEMORY_APPENDED"
	StateReturned       TurnState = "RETURNED"
)

const (
	PathDirect = "direct"
	PathTools  = "tools"
	PathError  = "error"

	OutcomeOK              = "ok"
	OutcomeFallback        = "fallback"
	OutcomeRoutingFailed   = "routing_failed"
	OutcomeSynthesisFailed = "synthesis_failed"
	OutcomePanic           = "panic"
)
