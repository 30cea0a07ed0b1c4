package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func companySchema() JSONSchema {
	minLen := 1
	return JSONSchema{
		Type: "object",
		Properties: map[string]Property{
			"company_name": {Type: "string", MinLength: &minLen},
		},
		Required: []string{"company_name"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		document  string
		wantValid bool
		wantField string
	}{
		{"valid", `{"company_name":"Rollstack"}`, true, ""},
		{"missing required", `{}`, false, "(root)"},
		{"wrong type", `{"company_name":42}`, false, "company_name"},
		{"empty string", `{"company_name":""}`, false, "company_name"},
		{"not json", `{"company_name":`, false, "(root)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Validate(companySchema(), []byte(tt.document))
			require.NoError(t, err)
			assert.Equal(t, tt.wantValid, result.Valid)
			if !tt.wantValid {
				assert.True(t, result.HasErrors(tt.wantField), result.Error())
				assert.NotEmpty(t, result.GetErrorMessages())
			}
		})
	}
}
