// internal/workers/ai-conversation/route-question/models.go
package routequestion

import (
	"investment-chat/internal/llm"
	"investment-chat/internal/memory"
)

type Input struct {
	Question string        `json:"question"`
	History  []memory.Turn `json:"history"`
}

// Output carries the routing decision. When Direct is true Text holds the
// answer; otherwise ToolCalls lists every capability call to execute in order
// and Text is whatever content accompanied them.
type Output struct {
	Direct       bool           `json:"direct"`
	Text         string         `json:"text,omitempty"`
	UsedFallback bool           `json:"usedFallback,omitempty"`
	ToolCalls    []llm.ToolCall `json:"toolCalls,omitempty"`
}
