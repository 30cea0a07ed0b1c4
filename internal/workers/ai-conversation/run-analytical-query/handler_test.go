// internal/workers/ai-conversation/run-analytical-query/handler_test.go
package runanalyticalquery

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"investment-chat/internal/common/logger"
	"investment-chat/internal/dataset"
	"investment-chat/internal/llm"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testDoc = `{"data":[{"id":"deal-001","companyName":"Rollstack","investmentUpdates":[]}]}`

// ==========================
// Mock Code Runner
// ==========================

type MockCodeRunner struct {
	mock.Mock
}

func (m *MockCodeRunner) RunCode(ctx context.Context, req llm.CodeRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// ==========================
// Test Helpers
// ==========================

func createTestHandler(t *testing.T, runner llm.CodeRunner, rdb redis.Cmdable) *Handler {
	t.Helper()
	store, err := dataset.Parse([]byte(testDoc))
	require.NoError(t, err)
	cfg := &Config{
		Timeout:      2 * time.Second,
		CacheEnabled: rdb != nil,
		CacheTTL:     time.Minute,
		TempDir:      t.TempDir(),
	}
	return NewHandler(cfg, runner, store, rdb, logger.NewTestLogger(t))
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_Success(t *testing.T) {
	runner := new(MockCodeRunner)
	query := "Which companies have revenue more than $1m?"
	var uploaded string

	runner.On("RunCode", mock.Anything, mock.MatchedBy(func(req llm.CodeRequest) bool {
		return req.Instruction == BuildInstruction(query)
	})).Run(func(args mock.Arguments) {
		req := args.Get(1).(llm.CodeRequest)
		uploaded = req.FilePath
		data, err := os.ReadFile(req.FilePath)
		require.NoError(t, err)
		assert.Equal(t, testDoc, string(data))
	}).Return("Rollstack has $1.2m ARR", nil)

	output, err := createTestHandler(t, runner, nil).Execute(context.Background(), &Input{Query: query})

	require.NoError(t, err)
	assert.Equal(t, "Rollstack has $1.2m ARR", output.Text)
	assert.False(t, output.Failed)
	assert.False(t, output.Empty)
	assert.NoFileExists(t, uploaded)
	runner.AssertExpectations(t)
}

func TestHandler_Execute_EmptyOutput(t *testing.T) {
	runner := new(MockCodeRunner)
	runner.On("RunCode", mock.Anything, mock.Anything).Return("", nil)

	output, err := createTestHandler(t, runner, nil).Execute(context.Background(), &Input{Query: "q"})

	require.NoError(t, err)
	assert.Equal(t, "[Code interpreter returned no output]", output.Text)
	assert.True(t, output.Empty)
	assert.False(t, output.Failed)
}

func TestBuildInstruction_Golden(t *testing.T) {
	g := goldie.New(t)
	g.Assert(t, "analytical_instruction", []byte(BuildInstruction("Which companies have revenue more than $1m?")))
}

// ==========================
// Error Handling Tests
// ==========================

func TestHandler_Execute_FailureBecomesText(t *testing.T) {
	runner := new(MockCodeRunner)
	var uploaded string
	runner.On("RunCode", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		uploaded = args.Get(1).(llm.CodeRequest).FilePath
	}).Return("", errors.New("upload rejected: status 400"))

	output, err := createTestHandler(t, runner, nil).Execute(context.Background(), &Input{Query: "q"})

	require.NoError(t, err)
	assert.True(t, output.Failed)
	assert.Equal(t, "[Error running Python query]: upload rejected: status 400", output.Text)
	assert.Equal(t, "upload rejected: status 400", output.Reason)
	assert.NoFileExists(t, uploaded)
}

func TestHandler_Execute_Timeout(t *testing.T) {
	runner := new(MockCodeRunner)
	runner.On("RunCode", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		<-args.Get(0).(context.Context).Done()
	}).Return("", context.DeadlineExceeded)

	h := createTestHandler(t, runner, nil)
	h.config.Timeout = 50 * time.Millisecond

	output, err := h.Execute(context.Background(), &Input{Query: "q"})

	require.NoError(t, err)
	assert.True(t, output.Failed)
	assert.Contains(t, output.Text, "deadline exceeded")
}

// ==========================
// Cache Tests
// ==========================

func TestHandler_Execute_CachesSuccessfulRuns(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	runner := new(MockCodeRunner)
	runner.On("RunCode", mock.Anything, mock.Anything).Return("3 companies", nil).Once()

	h := createTestHandler(t, runner, rdb)
	first, err := h.Execute(context.Background(), &Input{Query: "count companies"})
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := h.Execute(context.Background(), &Input{Query: "count companies"})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, "3 companies", second.Text)

	assert.True(t, mr.Exists(cacheKey("count companies")))
	runner.AssertNumberOfCalls(t, "RunCode", 1)
}

func TestHandler_Execute_DoesNotCacheFailures(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	runner := new(MockCodeRunner)
	runner.On("RunCode", mock.Anything, mock.Anything).Return("", errors.New("boom"))

	_, err := createTestHandler(t, runner, rdb).Execute(context.Background(), &Input{Query: "q"})
	require.NoError(t, err)
	assert.Empty(t, mr.Keys())
}
