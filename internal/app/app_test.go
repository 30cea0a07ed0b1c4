package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"investment-chat/internal/common/config"
	"investment-chat/internal/common/logger"
	"investment-chat/internal/common/observability"
	fetchentity "investment-chat/internal/workers/ai-conversation/fetch-entity"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func datasetPath(t *testing.T) string {
	t.Helper()
	path, err := filepath.Abs("../dataset/testdata/investment_updates.json")
	require.NoError(t, err)
	return path
}

func loadConfig(t *testing.T, extra string) *config.Config {
	t.Helper()
	body := fmt.Sprintf(`llm:
  provider: openai
  api_key: sk-test
  base_url: http://127.0.0.1:1
dataset:
  path: %s
resolver:
  embedder: hashing
memory:
  path: %s
%s`, datasetPath(t), filepath.Join(t.TempDir(), "chat_memory.jsonl"), extra)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	cfg, err := config.LoadFromFile(path)
	require.NoError(t, err)
	return cfg
}

func TestNew_FileMemoryAndHashingEmbedder(t *testing.T) {
	cfg := loadConfig(t, "")

	a, err := New(context.Background(), cfg, logger.NewTestLogger(t), WithObservability(observability.Noop()))
	require.NoError(t, err)
	t.Cleanup(a.Close)

	assert.Equal(t, 3, a.Store.Len())
	assert.Equal(t, 3, a.Resolver.Len())
	assert.Empty(t, a.Checks())
	require.NotNil(t, a.Chat)

	out, err := a.Fetcher.Execute(context.Background(), &fetchentity.Input{CompanyName: "Acme Corp"})
	require.NoError(t, err)
	assert.True(t, out.Found)
	assert.Equal(t, "deal-002", out.Match.ID)

	workers, err := a.StartWorkers(context.Background())
	require.NoError(t, err)
	assert.Nil(t, workers)
}

func TestNew_RedisMemoryAndCaches(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := loadConfig(t, fmt.Sprintf(`analytics:
  cache_enabled: true
database:
  redis:
    address: %s
`, mr.Addr()))
	cfg.Memory.Backend = "redis"
	cfg.Resolver.CacheEnabled = true

	a, err := New(context.Background(), cfg, logger.NewTestLogger(t), WithObservability(observability.Noop()))
	require.NoError(t, err)
	t.Cleanup(a.Close)

	require.Contains(t, a.Checks(), "redis")
	assert.NoError(t, a.Checks()["redis"](context.Background()))

	require.NoError(t, a.Memory.Append(context.Background(), "", "hi", "hello"))
	items, err := mr.List("chat:memory:default")
	require.NoError(t, err)
	assert.Len(t, items, 2)

	keys := mr.Keys()
	var cached int
	for _, k := range keys {
		if len(k) > len("ai:embedding:") && k[:len("ai:embedding:")] == "ai:embedding:" {
			cached++
		}
	}
	assert.Equal(t, 3, cached, "every display name embedding is cached")
}

func TestNew_MissingDatasetIsFatal(t *testing.T) {
	cfg := loadConfig(t, "")
	cfg.Dataset.Path = filepath.Join(t.TempDir(), "missing.json")

	_, err := New(context.Background(), cfg, logger.NewTestLogger(t), WithObservability(observability.Noop()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATASET_LOAD_FAILED")
}

func TestNew_UnreachableRedis(t *testing.T) {
	cfg := loadConfig(t, "database:\n  redis:\n    address: 127.0.0.1:1\n")
	cfg.Memory.Backend = "redis"

	_, err := New(context.Background(), cfg, logger.NewTestLogger(t),
		WithObservability(observability.Noop()), WithConnectAttempts(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Redis connection failed after 1 attempts")
}

func TestRetryWithBackoff(t *testing.T) {
	calls := 0
	err := retryWithBackoff(func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	}, 5, 0, logger.NewTestLogger(t), "op")
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	err = retryWithBackoff(func() error { return errors.New("down") }, 2, 0, logger.NewTestLogger(t), "op")
	require.Error(t, err)
	assert.EqualError(t, err, "op failed after 2 attempts: down")
}
