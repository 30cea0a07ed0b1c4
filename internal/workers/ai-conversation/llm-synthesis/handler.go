// internal/workers/ai-conversation/llm-synthesis/handler.go
package llmsynthesis

import (
	"context"
	"errors"
	"time"

	"investment-chat/internal/common/camunda"
	apperrors "investment-chat/internal/common/errors"
	"investment-chat/internal/common/logger"
	"investment-chat/internal/llm"
	routequestion "investment-chat/internal/workers/ai-conversation/route-question"
	"investment-chat/pkg/registry"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "llm-synthesis"

	errorPrefix = "[Error generating answer]: "
)

var (
	ErrLLMTimeout         = errors.New("LLM_TIMEOUT")
	ErrLLMSynthesisFailed = errors.New("LLM_SYNTHESIS_FAILED")
)

// Recorder appends one exchange to conversation memory.
type Recorder interface {
	Append(ctx context.Context, session, user, assistant string) error
}

type Handler struct {
	config *Config
	model  llm.ChatModel
	tools  *registry.ToolRegistry
	memory Recorder
	logger logger.Logger
}

func NewHandler(config *Config, model llm.ChatModel, tools *registry.ToolRegistry, memory Recorder, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		model:  model,
		tools:  tools,
		memory: memory,
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
		camunda.FailJob(client, job, apperrors.NewLLMSynthesisFailedError(err), h.logger)
		return
	}

	output, _ := h.Execute(context.Background(), &input)
	camunda.CompleteJob(client, job, output, h.logger, started)
}

// Execute produces the final answer from the tool results and records the
// exchange in memory exactly once, whatever the outcome of the model call.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	output := h.synthesize(ctx, input)

	if err := h.memory.Append(ctx, input.Session, input.Question, output.Text); err != nil {
		h.logger.Warn("failed to record exchange", map[string]interface{}{
			"session": input.Session,
			"error":   err.Error(),
		})
		output.MemoryError = err.Error()
	}
	return output, nil
}

func (h *Handler) synthesize(ctx context.Context, input *Input) *Output {
	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	started := time.Now()
	resp, err := h.model.Chat(ctx, llm.ChatRequest{
		Messages: BuildMessages(input),
		Tools:    h.tools.Tools(),
	})
	if err != nil {
		code := ErrLLMSynthesisFailed
		if errors.Is(err, llm.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
			code = ErrLLMTimeout
		}
		h.logger.Error("LLM synthesis failed", map[string]interface{}{
			"errorCode": code.Error(),
			"error":     err.Error(),
		})
		return &Output{Text: errorPrefix + err.Error(), Failed: true, Reason: err.Error()}
	}

	h.logger.Info("LLM synthesis completed", map[string]interface{}{
		"toolResults": len(input.ToolResults),
		"textLen":     len(resp.Content),
		"latencyMs":   time.Since(started).Milliseconds(),
	})
	return &Output{Text: resp.Content}
}

// BuildMessages replays the routed conversation followed by one tool message per result.
func BuildMessages(input *Input) []llm.Message {
	msgs := routequestion.BuildMessages(input.Question, input.History)
	msgs = append(msgs, llm.Message{
		Role:      llm.RoleAssistant,
		Content:   input.AssistantContent,
		ToolCalls: input.AssistantToolCalls,
	})
	for _, r := range input.ToolResults {
		msgs = append(msgs, llm.Message{
			Role:       llm.RoleTool,
			ToolCallID: r.CallID,
			Name:       r.Name,
			Content:    r.Content,
		})
	}
	return msgs
}
