// internal/workers/ai-conversation/llm-synthesis/models.go
package llmsynthesis

import (
	"investment-chat/internal/llm"
	"investment-chat/internal/memory"
)

type Input struct {
	Session  string        `json:"session"`
	Question string        `json:"question"`
	History  []memory.Turn `json:"history"`
	// AssistantContent and AssistantToolCalls replay the router's decision message.
	AssistantContent   string         `json:"assistantContent,omitempty"`
	AssistantToolCalls []llm.ToolCall `json:"assistantToolCalls"`
	ToolResults        []ToolResult   `json:"toolResults"`
}

// ToolResult answers exactly one tool call.
type ToolResult struct {
	CallID  string `json:"callId"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

type Output struct {
	Text   string `json:"text"`
	Failed bool   `json:"failed"`
	Reason string `json:"reason,omitempty"`
	// MemoryError is set when the exchange could not be recorded.
	MemoryError string `json:"memoryError,omitempty"`
}
