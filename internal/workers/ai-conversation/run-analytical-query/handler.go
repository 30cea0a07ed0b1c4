// internal/workers/ai-conversation/run-analytical-query/handler.go
package runanalyticalquery

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"investment-chat/internal/common/camunda"
	apperrors "investment-chat/internal/common/errors"
	"investment-chat/internal/common/logger"
	"investment-chat/internal/dataset"
	"investment-chat/internal/llm"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/redis/go-redis/v9"
)

const (
	TaskType = "run-analytical-query"

	cacheKeyPrefix = "ai:analytics:"
	errorPrefix    = "[Error running Python query]: "
	NoOutputText   = "[Code interpreter returned no output]"
)

const instructionTemplate = `Use Python for this task.
The User query is: %s

You have to use the uploaded JSON file to answer the query.
The structure of the JSON file is as follows:
%s
Also show what code you wrote to get the answer.`

var ErrAnalyticalQueryFailed = errors.New("ANALYTICAL_QUERY_FAILED")

type Handler struct {
	config *Config
	runner llm.CodeRunner
	store  *dataset.Store
	redis  redis.Cmdable
	logger logger.Logger
}

// NewHandler builds the executor. redisClient may be nil to disable caching.
func NewHandler(config *Config, runner llm.CodeRunner, store *dataset.Store, redisClient redis.Cmdable, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		runner: runner,
		store:  store,
		redis:  redisClient,
		logger: log.With(map[string]interface{}{
			"taskType": TaskType,
		}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	started := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := camunda.DecodeVariables(job, &input); err != nil {
		camunda.FailJob(client, job, apperrors.NewInvalidToolArgumentsError(TaskType, err.Error()), h.logger)
		return
	}

	output, _ := h.Execute(context.Background(), &input)
	camunda.CompleteJob(client, job, output, h.logger, started)
}

// Execute runs query against the whole dataset in the code-execution service.
// It never returns an error; failures come back as bracketed text with Failed set.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	key := cacheKey(input.Query)
	if cached, ok := h.fromCache(ctx, key); ok {
		h.logger.Info("analytical result served from cache", map[string]interface{}{"query": input.Query})
		return cached, nil
	}

	started := time.Now()
	text, err := h.run(ctx, input.Query)
	if err != nil {
		stdErr := apperrors.NewAnalyticalQueryFailedError(err)
		h.logger.Error("analytical query failed", map[string]interface{}{
			"query":     input.Query,
			"errorCode": string(stdErr.Code),
			"error":     err.Error(),
		})
		return &Output{Text: errorPrefix + err.Error(), Failed: true, Reason: err.Error()}, nil
	}

	h.logger.Info("analytical query completed", map[string]interface{}{
		"query":     input.Query,
		"outputLen": len(text),
		"latencyMs": time.Since(started).Milliseconds(),
	})

	if text == "" {
		return &Output{Text: NoOutputText, Empty: true}, nil
	}
	out := &Output{Text: text}
	h.toCache(ctx, key, out)
	return out, nil
}

func (h *Handler) run(ctx context.Context, query string) (string, error) {
	file, err := os.CreateTemp(h.config.TempDir, "investment_data-*.json")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	path := file.Name()
	defer os.Remove(path)

	if _, err := file.Write(h.store.Snapshot()); err != nil {
		file.Close()
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	return h.runner.RunCode(ctx, llm.CodeRequest{
		Instruction: BuildInstruction(query),
		FilePath:    path,
	})
}

// BuildInstruction composes the request sent to the code-execution service.
func BuildInstruction(query string) string {
	return fmt.Sprintf(instructionTemplate, query, dataset.SchemaText)
}

func cacheKey(query string) string {
	sum := sha256.Sum256([]byte(query))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

func (h *Handler) fromCache(ctx context.Context, key string) (*Output, bool) {
	if !h.config.CacheEnabled || h.redis == nil {
		return nil, false
	}
	data, err := h.redis.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			h.logger.Warn("analytics cache read failed", map[string]interface{}{"error": err.Error()})
		}
		return nil, false
	}
	var out Output
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, false
	}
	out.Cached = true
	return &out, true
}

func (h *Handler) toCache(ctx context.Context, key string, out *Output) {
	if !h.config.CacheEnabled || h.redis == nil {
		return
	}
	data, _ := json.Marshal(out)
	if err := h.redis.Set(ctx, key, data, h.config.CacheTTL).Err(); err != nil {
		h.logger.Warn("analytics cache write failed", map[string]interface{}{"error": err.Error()})
	}
}
