// internal/workers/ai-conversation/llm-synthesis/handler_test.go
package llmsynthesis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"investment-chat/internal/common/logger"
	"investment-chat/internal/llm"
	"investment-chat/internal/memory"
	"investment-chat/pkg/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mocks
// ==========================

type MockChatModel struct {
	mock.Mock
}

func (m *MockChatModel) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*llm.ChatResponse), args.Error(1)
}

type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) Append(ctx context.Context, session, user, assistant string) error {
	args := m.Called(ctx, session, user, assistant)
	return args.Error(0)
}

// ==========================
// Test Helpers
// ==========================

func createTestHandler(t *testing.T, model llm.ChatModel, rec Recorder) *Handler {
	return NewHandler(&Config{Timeout: 5 * time.Second}, model, registry.Default(), rec, logger.NewTestLogger(t))
}

func createInput() *Input {
	return &Input{
		Session:  "s1",
		Question: "Tell me about Acme Corp",
		History: []memory.Turn{
			{Role: memory.RoleUser, Text: "hi"},
			{Role: memory.RoleAssistant, Text: "hello"},
		},
		AssistantToolCalls: []llm.ToolCall{
			{ID: "call_1", Name: registry.FetchEntity, Arguments: `{"company_name":"Acme Corp"}`},
		},
		ToolResults: []ToolResult{
			{CallID: "call_1", Name: registry.FetchEntity, Content: `{"id":"deal-002"}`},
		},
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_Success(t *testing.T) {
	model := new(MockChatModel)
	rec := new(MockRecorder)

	model.On("Chat", mock.Anything, mock.MatchedBy(func(req llm.ChatRequest) bool {
		return req.ToolChoice == llm.ToolChoiceNone && req.Temperature == nil && len(req.Tools) == 2
	})).Return(&llm.ChatResponse{Content: "Acme Corp reported..."}, nil)
	rec.On("Append", mock.Anything, "s1", "Tell me about Acme Corp", "Acme Corp reported...").Return(nil).Once()

	output, err := createTestHandler(t, model, rec).Execute(context.Background(), createInput())

	require.NoError(t, err)
	assert.Equal(t, "Acme Corp reported...", output.Text)
	assert.False(t, output.Failed)
	model.AssertExpectations(t)
	rec.AssertExpectations(t)
}

func TestHandler_Execute_EmptyTextIsStillRecorded(t *testing.T) {
	model := new(MockChatModel)
	rec := new(MockRecorder)
	model.On("Chat", mock.Anything, mock.Anything).Return(&llm.ChatResponse{}, nil)
	rec.On("Append", mock.Anything, "s1", "Tell me about Acme Corp", "").Return(nil).Once()

	output, err := createTestHandler(t, model, rec).Execute(context.Background(), createInput())

	require.NoError(t, err)
	assert.Equal(t, "", output.Text)
	assert.False(t, output.Failed)
	rec.AssertExpectations(t)
}

func TestBuildMessages(t *testing.T) {
	msgs := BuildMessages(createInput())

	require.Len(t, msgs, 6)
	assert.Equal(t, llm.RoleSystem, msgs[0].Role)
	assert.Equal(t, "hi", msgs[1].Content)
	assert.Equal(t, llm.RoleUser, msgs[3].Role)
	assert.Equal(t, llm.RoleAssistant, msgs[4].Role)
	assert.Len(t, msgs[4].ToolCalls, 1)
	assert.Equal(t, llm.Message{
		Role:       llm.RoleTool,
		ToolCallID: "call_1",
		Name:       registry.FetchEntity,
		Content:    `{"id":"deal-002"}`,
	}, msgs[5])
}

// ==========================
// Error Handling Tests
// ==========================

func TestHandler_Execute_ModelFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"service error", errors.New("status 500")},
		{"timeout", fmt.Errorf("chat: %w", llm.ErrTimeout)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := new(MockChatModel)
			rec := new(MockRecorder)
			model.On("Chat", mock.Anything, mock.Anything).Return(nil, tt.err)
			want := "[Error generating answer]: " + tt.err.Error()
			rec.On("Append", mock.Anything, "s1", "Tell me about Acme Corp", want).Return(nil).Once()

			output, err := createTestHandler(t, model, rec).Execute(context.Background(), createInput())

			require.NoError(t, err)
			assert.True(t, output.Failed)
			assert.Equal(t, want, output.Text)
			rec.AssertExpectations(t)
		})
	}
}

func TestHandler_Execute_MemoryFailureDoesNotFailTurn(t *testing.T) {
	model := new(MockChatModel)
	rec := new(MockRecorder)
	model.On("Chat", mock.Anything, mock.Anything).Return(&llm.ChatResponse{Content: "ok"}, nil)
	rec.On("Append", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("disk full"))

	output, err := createTestHandler(t, model, rec).Execute(context.Background(), createInput())

	require.NoError(t, err)
	assert.Equal(t, "ok", output.Text)
	assert.Equal(t, "disk full", output.MemoryError)
}
