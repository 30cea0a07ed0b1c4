// pkg/registry/registry.go
package registry

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"investment-chat/internal/common/validation"
	"investment-chat/internal/llm"
)

const (
	FetchEntity        = "get_data_from_name"
	RunAnalyticalQuery = "run_python_query_on_json"
)

//go:embed tools.json
var defaultRegistry []byte

// Default returns the built-in registry of the two data capabilities.
func Default() *ToolRegistry {
	reg, err := parse(defaultRegistry)
	if err != nil {
		panic(fmt.Sprintf("embedded tool registry: %v", err))
	}
	return reg
}

func LoadRegistry(path string) (*ToolRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parse(data)
}

func parse(data []byte) (*ToolRegistry, error) {
	var reg ToolRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, err
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return &reg, nil
}

// Validate checks the registry for missing fields and duplicate names.
func (r *ToolRegistry) Validate() error {
	if len(r.Capabilities) == 0 {
		return fmt.Errorf("registry contains no capabilities")
	}
	seen := make(map[string]bool)
	for _, c := range r.Capabilities {
		if c.Name == "" {
			return fmt.Errorf("capability %q missing required field: name", c.ID)
		}
		if c.Description == "" {
			return fmt.Errorf("capability %q missing required field: description", c.Name)
		}
		if c.Parameters.Type != "object" {
			return fmt.Errorf("capability %q parameters must be an object schema", c.Name)
		}
		if seen[c.Name] {
			return fmt.Errorf("duplicate capability name: %s", c.Name)
		}
		seen[c.Name] = true
	}
	return nil
}

func (r *ToolRegistry) Lookup(name string) (Capability, bool) {
	for _, c := range r.Capabilities {
		if c.Name == name {
			return c, true
		}
	}
	return Capability{}, false
}

// Tools declares every capability to the reasoning service, in registry order.
func (r *ToolRegistry) Tools() []llm.Tool {
	tools := make([]llm.Tool, len(r.Capabilities))
	for i, c := range r.Capabilities {
		tools[i] = llm.Tool{Name: c.Name, Description: c.Description, Parameters: c.Parameters}
	}
	return tools
}

// ValidateArguments checks raw model-produced arguments against the
// capability's parameter schema.
func (r *ToolRegistry) ValidateArguments(name, arguments string) (*validation.ValidationResult, error) {
	c, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown capability: %s", name)
	}
	return validation.Validate(c.Parameters, []byte(arguments))
}
