// pkg/registry/schema.go
package registry

import "investment-chat/internal/common/validation"

type ToolRegistry struct {
	Version      string       `json:"version"`
	Capabilities []Capability `json:"capabilities"`
}

// Capability is a tool the reasoning service may call. Name is the wire name
// the model sees; TaskType is the job type of the worker that executes it.
type Capability struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	DisplayName string                `json:"displayName"`
	Description string                `json:"description"`
	TaskType    string                `json:"taskType"`
	Parameters  validation.JSONSchema `json:"parameters"`
	ErrorCodes  []string              `json:"errorCodes"`
	Timeout     string                `json:"timeout"`
}
