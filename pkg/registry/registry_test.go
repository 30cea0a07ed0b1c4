package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	reg := Default()

	tools := reg.Tools()
	require.Len(t, tools, 2)
	assert.Equal(t, FetchEntity, tools[0].Name)
	assert.Equal(t, "Return structured data for a company", tools[0].Description)
	assert.Equal(t, []string{"company_name"}, tools[0].Parameters.Required)
	assert.Equal(t, "string", tools[0].Parameters.Properties["company_name"].Type)

	assert.Equal(t, RunAnalyticalQuery, tools[1].Name)
	assert.Equal(t,
		"Run a Python-based query over all company data. Use when filtering, comparing, or analyzing multiple companies.",
		tools[1].Description)

	c, ok := reg.Lookup(RunAnalyticalQuery)
	require.True(t, ok)
	assert.Equal(t, "run-analytical-query", c.TaskType)
}

func TestValidateArguments(t *testing.T) {
	reg := Default()

	tests := []struct {
		name      string
		tool      string
		args      string
		wantValid bool
	}{
		{"valid fetch", FetchEntity, `{"company_name":"Acme Corp"}`, true},
		{"missing field", FetchEntity, `{}`, false},
		{"wrong type", RunAnalyticalQuery, `{"query": 42}`, false},
		{"not json", RunAnalyticalQuery, `{"query":`, false},
		{"valid query", RunAnalyticalQuery, `{"query":"Which companies have revenue more than $1m?"}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := reg.ValidateArguments(tt.tool, tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.wantValid, result.Valid, result.Error())
		})
	}

	_, err := reg.ValidateArguments("do_magic", `{}`)
	assert.Error(t, err)
}

func TestLoadRegistry(t *testing.T) {
	dir := t.TempDir()

	valid := filepath.Join(dir, "valid.json")
	require.NoError(t, os.WriteFile(valid, defaultRegistry, 0o644))
	reg, err := LoadRegistry(valid)
	require.NoError(t, err)
	assert.Len(t, reg.Capabilities, 2)

	dup := filepath.Join(dir, "dup.json")
	require.NoError(t, os.WriteFile(dup, []byte(`{"capabilities":[
		{"name":"a","description":"x","parameters":{"type":"object"}},
		{"name":"a","description":"y","parameters":{"type":"object"}}]}`), 0o644))
	_, err = LoadRegistry(dup)
	assert.ErrorContains(t, err, "duplicate capability name")

	_, err = LoadRegistry(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
