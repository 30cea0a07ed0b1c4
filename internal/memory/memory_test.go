package memory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	apperrors "investment-chat/internal/common/errors"
	"investment-chat/internal/common/logger"
	"investment-chat/internal/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFileMemory(t *testing.T) (*Memory, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chat_memory.jsonl")
	return New(NewFileBackend(path), DefaultMaxTurns, logger.NewTestLogger(t)), path
}

func TestMemory_RoundTrip(t *testing.T) {
	m, _ := newFileMemory(t)
	ctx := context.Background()

	require.NoError(t, m.Append(ctx, "", "u1", "a1"))
	require.NoError(t, m.Append(ctx, "", "u2", "a2"))

	recall := m.Load(ctx, "")
	require.NoError(t, recall.Err)
	assert.Equal(t, []Turn{
		{Role: RoleUser, Text: "u1"},
		{Role: RoleAssistant, Text: "a1"},
		{Role: RoleUser, Text: "u2"},
		{Role: RoleAssistant, Text: "a2"},
	}, recall.Turns)
}

func TestMemory_RetentionWindow(t *testing.T) {
	m, _ := newFileMemory(t)
	ctx := context.Background()

	for i := 1; i <= 9; i++ {
		require.NoError(t, m.Append(ctx, "", fmt.Sprintf("u%d", i), fmt.Sprintf("a%d", i)))
	}

	recall := m.Load(ctx, "")
	require.Len(t, recall.Turns, 16)
	assert.Equal(t, Turn{Role: RoleUser, Text: "u2"}, recall.Turns[0])
	assert.Equal(t, Turn{Role: RoleAssistant, Text: "a9"}, recall.Turns[15])
}

func TestMemory_MissingFileIsEmpty(t *testing.T) {
	m, _ := newFileMemory(t)

	recall := m.Load(context.Background(), "")
	assert.NoError(t, recall.Err)
	assert.NotNil(t, recall.Turns)
	assert.Empty(t, recall.Turns)
}

func TestMemory_SkipsCorruptAndLegacyLines(t *testing.T) {
	m, path := newFileMemory(t)
	body := strings.Join([]string{
		`{"role":"user","content":"legacy question"}`,
		`{"role":"assistant","content":"legacy answer"}`,
		`not json at all`,
		``,
		`{"role":"system","text":"ignored"}`,
		`{"role":"user","text":"new question"}`,
		`{"role":"assistant","text":""}`,
	}, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	recall := m.Load(context.Background(), "")
	require.NoError(t, recall.Err)
	assert.Equal(t, []Turn{
		{Role: RoleUser, Text: "legacy question"},
		{Role: RoleAssistant, Text: "legacy answer"},
		{Role: RoleUser, Text: "new question"},
		{Role: RoleAssistant, Text: ""},
	}, recall.Turns)
}

func TestMemory_WritesRoleAndTextOnly(t *testing.T) {
	m, path := newFileMemory(t)
	require.NoError(t, m.Append(context.Background(), "", "Is <Acme> & co ok?", "Yes"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"{\"role\":\"user\",\"text\":\"Is <Acme> & co ok?\"}\n{\"role\":\"assistant\",\"text\":\"Yes\"}\n",
		string(data))
}

func TestMemory_SessionsArePartitioned(t *testing.T) {
	m, path := newFileMemory(t)
	ctx := context.Background()

	require.NoError(t, m.Append(ctx, "alice", "u-a", "a-a"))
	require.NoError(t, m.Append(ctx, "../bob", "u-b", "a-b"))

	assert.Len(t, m.Load(ctx, "alice").Turns, 2)
	assert.Empty(t, m.Load(ctx, DefaultSession).Turns)

	dir := filepath.Dir(path)
	assert.FileExists(t, filepath.Join(dir, "chat_memory.alice.jsonl"))
	assert.FileExists(t, filepath.Join(dir, "chat_memory.%2E%2E%2Fbob.jsonl"))
}

func TestMemory_SimilarSessionIDsDoNotShareHistory(t *testing.T) {
	m, _ := newFileMemory(t)
	ctx := context.Background()

	require.NoError(t, m.Append(ctx, "a.b", "dot question", "dot answer"))
	require.NoError(t, m.Append(ctx, "a_b", "underscore question", "underscore answer"))

	assert.Equal(t, []Turn{
		{Role: RoleUser, Text: "dot question"},
		{Role: RoleAssistant, Text: "dot answer"},
	}, m.Load(ctx, "a.b").Turns)
	assert.Equal(t, []Turn{
		{Role: RoleUser, Text: "underscore question"},
		{Role: RoleAssistant, Text: "underscore answer"},
	}, m.Load(ctx, "a_b").Turns)
}

func TestEncodeSession(t *testing.T) {
	tests := []struct {
		session string
		want    string
	}{
		{"alice", "alice"},
		{"user-42_x", "user-42_x"},
		{"a.b", "a%2Eb"},
		{"a/b", "a%2Fb"},
		{"a%2Eb", "a%252Eb"},
	}
	for _, tt := range tests {
		t.Run(tt.session, func(t *testing.T) {
			assert.Equal(t, tt.want, encodeSession(tt.session))
		})
	}
}

func TestMemory_OversizedLineDoesNotHideHistory(t *testing.T) {
	m, _ := newFileMemory(t)
	ctx := context.Background()
	long := strings.Repeat("x", 17<<20)

	require.NoError(t, m.Append(ctx, "", "u1", "a1"))
	require.NoError(t, m.Append(ctx, "", "u2", long))
	require.NoError(t, m.Append(ctx, "", "u3", "a3"))

	recall := m.Load(ctx, "")
	require.NoError(t, recall.Err)
	require.Len(t, recall.Turns, 6)
	assert.Equal(t, Turn{Role: RoleUser, Text: "u1"}, recall.Turns[0])
	assert.Len(t, recall.Turns[3].Text, 17<<20)
	assert.Equal(t, Turn{Role: RoleAssistant, Text: "a3"}, recall.Turns[5])
}

func TestMemory_LastLineWithoutNewline(t *testing.T) {
	m, path := newFileMemory(t)
	body := `{"role":"user","text":"q"}` + "\n" + `{"role":"assistant","text":"a"}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	recall := m.Load(context.Background(), "")
	require.NoError(t, recall.Err)
	assert.Equal(t, []Turn{{Role: RoleUser, Text: "q"}, {Role: RoleAssistant, Text: "a"}}, recall.Turns)
}

func TestMemory_ReadFailureIsTyped(t *testing.T) {
	dir := t.TempDir()
	m := New(NewFileBackend(dir), DefaultMaxTurns, logger.NewTestLogger(t))

	recall := m.Load(context.Background(), "")
	require.Error(t, recall.Err)
	assert.Empty(t, recall.Turns)
	assert.Equal(t, apperrors.ErrCodeMemoryReadFailed, apperrors.AsStandardError(recall.Err).Code)
}

func TestMemory_WriteFailureIsReturned(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "chat_memory.jsonl")
	m := New(NewFileBackend(path), DefaultMaxTurns, logger.NewTestLogger(t))

	err := m.Append(context.Background(), "", "u", "a")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeMemoryWriteFailed, apperrors.AsStandardError(err).Code)
}

func TestMemory_ConcurrentAppendsKeepPairsTogether(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat_memory.jsonl")
	backend := NewFileBackend(path)
	m := New(backend, 100, logger.NewTestLogger(t))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = m.Append(ctx, "", fmt.Sprintf("u%d", i), fmt.Sprintf("a%d", i))
		}(i)
	}
	wg.Wait()

	turns, err := backend.Read(ctx, DefaultSession, 0)
	require.NoError(t, err)
	require.Len(t, turns, 100)
	for i := 0; i < len(turns); i += 2 {
		assert.Equal(t, RoleUser, turns[i].Role)
		assert.Equal(t, "a"+strings.TrimPrefix(turns[i].Text, "u"), turns[i+1].Text)
	}
}

func TestRecall_Messages(t *testing.T) {
	r := Recall{Turns: []Turn{{Role: RoleUser, Text: "hi"}, {Role: RoleAssistant, Text: "hello"}}}
	assert.Equal(t, []llm.Message{
		{Role: llm.RoleUser, Content: "hi"},
		{Role: llm.RoleAssistant, Content: "hello"},
	}, r.Messages())
}
