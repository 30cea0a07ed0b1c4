// internal/workers/ai-conversation/fetch-entity/handler_test.go
package fetchentity

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	apperrors "investment-chat/internal/common/errors"
	"investment-chat/internal/common/logger"
	"investment-chat/internal/dataset"
	"investment-chat/internal/resolver"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testDoc = `{"data":[
  {"id":"deal-001","companyName":"Rollstack","sector":"SaaS","investmentUpdates":[]},
  {"id":"deal-002","companyName":"Acme Corp","sector":null,"investmentUpdates":[]}
]}`

// ==========================
// Mock Resolver
// ==========================

type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) Resolve(ctx context.Context, name string) (resolver.Match, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(resolver.Match), args.Error(1)
}

// ==========================
// Test Helpers
// ==========================

func createStore(t *testing.T) *dataset.Store {
	t.Helper()
	store, err := dataset.Parse([]byte(testDoc))
	require.NoError(t, err)
	return store
}

func createTestHandler(t *testing.T, names NameResolver) *Handler {
	return NewHandler(&Config{Timeout: 5 * time.Second}, names, createStore(t), logger.NewTestLogger(t))
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_ResolvesWithRealIndex(t *testing.T) {
	store := createStore(t)
	names, err := resolver.Build(context.Background(), store, resolver.NewHashingEmbedder(128),
		resolver.NewMemoryIndex(), resolver.Options{}, logger.NewTestLogger(t))
	require.NoError(t, err)

	h := NewHandler(LoadConfig(), names, store, logger.NewTestLogger(t))
	output, err := h.Execute(context.Background(), &Input{CompanyName: "acme corp"})

	require.NoError(t, err)
	assert.True(t, output.Found)
	assert.Equal(t, "deal-002", output.Match.ID)
	assert.JSONEq(t, `{"id":"deal-002","companyName":"Acme Corp","sector":null,"investmentUpdates":[]}`, output.Payload)
	assert.True(t, json.Valid(output.Record))
}

func TestHandler_Execute_PayloadIsVerbatim(t *testing.T) {
	names := new(MockResolver)
	names.On("Resolve", mock.Anything, "Rollstack").
		Return(resolver.Match{Name: "Rollstack", ID: "deal-001", Similarity: 0.99}, nil)

	output, err := createTestHandler(t, names).Execute(context.Background(), &Input{CompanyName: "Rollstack"})

	require.NoError(t, err)
	assert.Equal(t, `{"id":"deal-001","companyName":"Rollstack","sector":"SaaS","investmentUpdates":[]}`, output.Payload)
	names.AssertExpectations(t)
}

func TestHandler_Execute_NotFound(t *testing.T) {
	names := new(MockResolver)
	names.On("Resolve", mock.Anything, "Nobody").Return(resolver.Match{}, resolver.ErrNotFound)

	output, err := createTestHandler(t, names).Execute(context.Background(), &Input{CompanyName: "Nobody"})

	require.NoError(t, err)
	assert.False(t, output.Found)
	assert.Nil(t, output.Match)
	assert.Equal(t, NotFoundPayload, output.Payload)
}

// ==========================
// Error Handling Tests
// ==========================

func TestHandler_Execute_Errors(t *testing.T) {
	tests := []struct {
		name        string
		match       resolver.Match
		err         error
		expectedErr error
	}{
		{
			name:        "embedding failure",
			err:         apperrors.NewEmbeddingFailedError(errors.New("status 503")),
			expectedErr: ErrEmbeddingFailed,
		},
		{
			name:        "index failure",
			err:         errors.New("knn search failed"),
			expectedErr: ErrLookupFailed,
		},
		{
			name:        "id missing from store",
			match:       resolver.Match{Name: "Ghost", ID: "deal-999"},
			expectedErr: ErrLookupFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			names := new(MockResolver)
			names.On("Resolve", mock.Anything, mock.Anything).Return(tt.match, tt.err)

			output, err := createTestHandler(t, names).Execute(context.Background(), &Input{CompanyName: "x"})

			assert.Nil(t, output)
			assert.ErrorIs(t, err, tt.expectedErr)
		})
	}
}
