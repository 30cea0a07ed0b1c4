// internal/workers/ai-conversation/fetch-entity/models.go
package fetchentity

import (
	"encoding/json"

	"investment-chat/internal/resolver"
)

type Input struct {
	CompanyName string `json:"company_name"`
}

// Output is the single-entity lookup result. Payload is the tool result text
// handed back to the reasoning service: the record verbatim, or NotFoundPayload.
type Output struct {
	Found   bool            `json:"found"`
	Match   *resolver.Match `json:"match,omitempty"`
	Record  json.RawMessage `json:"record,omitempty"`
	Payload string          `json:"payload"`
}
