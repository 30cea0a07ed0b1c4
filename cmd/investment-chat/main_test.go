package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"serve", "ask", "chat", "companies", "tools"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)
}

func TestCompanies_PrintsDigest(t *testing.T) {
	out, err := execute(t, "companies", "--dataset", "../../internal/dataset/testdata/investment_updates.json")
	require.NoError(t, err)

	assert.Contains(t, out, "Company: Rollstack\n")
	assert.Contains(t, out, "As of Date: March, 2024 | Lastest MRR: 120000|")
	assert.Contains(t, out, "Company: Bluefin Robotics\n")
}

func TestCompanies_MissingDataset(t *testing.T) {
	_, err := execute(t, "companies", "--dataset", filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATASET_LOAD_FAILED")
}

func TestAsk_RequiresQuestion(t *testing.T) {
	_, err := execute(t, "ask")
	require.Error(t, err)
}

func TestAsk_MissingCredentialIsFatal(t *testing.T) {
	for _, key := range []string{"OPENAI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY", "LLM_API_KEY"} {
		t.Setenv(key, "")
	}
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  provider: openai\n"), 0o644))

	_, err := execute(t, "--config", path, "ask", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CONFIG_INVALID")
}

func TestTools(t *testing.T) {
	out, err := execute(t, "tools", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "get_data_from_name")
	assert.Contains(t, out, "run_python_query_on_json")

	path := filepath.Join(t.TempDir(), "tools.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":"1","capabilities":[]}`), 0o644))
	_, err = execute(t, "tools", "validate", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no capabilities")
}

func TestRunREPL(t *testing.T) {
	var asked []string
	answer := func(_ context.Context, text string) string {
		asked = append(asked, text)
		return "reply to " + text
	}

	in := strings.NewReader("Tell me about Acme Corp\n\n  Which companies have revenue more than $1m?  \nexit\nnever asked\n")
	out := new(bytes.Buffer)

	require.NoError(t, runREPL(context.Background(), in, out, answer))

	assert.Equal(t, []string{"Tell me about Acme Corp", "Which companies have revenue more than $1m?"}, asked)
	assert.Equal(t, "> reply to Tell me about Acme Corp\n> > reply to Which companies have revenue more than $1m?\n> ", out.String())
}

func TestRunREPL_EOF(t *testing.T) {
	out := new(bytes.Buffer)
	err := runREPL(context.Background(), strings.NewReader("hi"), out, func(context.Context, string) string { return "hello" })
	require.NoError(t, err)
	assert.Equal(t, "> hello\n> ", out.String())
}
