// Package llm defines the provider-neutral contracts for the reasoning,
// code-execution and embedding services.
package llm

import (
	"context"
	"errors"

	"investment-chat/internal/common/validation"
)

// ErrTimeout is wrapped by backends when the call's context deadline expires.
var ErrTimeout = errors.New("llm call timed out")

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry of a chat transcript. Assistant messages may carry
// ToolCalls; tool messages answer exactly one call via ToolCallID.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"toolCalls,omitempty"`
	ToolCallID string     `json:"toolCallId,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// ToolCall is a request from the model to invoke a named tool. Arguments is
// the raw JSON object text as produced by the model.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Tool declares a callable capability to the model.
type Tool struct {
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Parameters  validation.JSONSchema `json:"parameters"`
}

type ToolChoice string

const (
	ToolChoiceNone ToolChoice = ""
	ToolChoiceAuto ToolChoice = "auto"
)

type ChatRequest struct {
	Messages    []Message
	Tools       []Tool
	ToolChoice  ToolChoice
	Temperature *float64
}

type ChatResponse struct {
	Content   string
	ToolCalls []ToolCall
}

// ChatModel is the reasoning service.
type ChatModel interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// CodeRequest asks the code-execution service to run Instruction with the file
// at FilePath attached.
type CodeRequest struct {
	Instruction string
	FilePath    string
}

// CodeRunner is the code-execution service. It returns the model's textual
// output verbatim; an empty string means the service produced no text.
type CodeRunner interface {
	RunCode(ctx context.Context, req CodeRequest) (string, error)
}

// Embedder turns text into fixed-length vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Name() string
}

// Float64 returns a pointer to v, for optional request fields.
func Float64(v float64) *float64 {
	return &v
}
