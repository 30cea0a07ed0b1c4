// internal/workers/ai-conversation/route-question/handler.go
package routequestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"investment-chat/internal/common/camunda"
	apperrors "investment-chat/internal/common/errors"
	"investment-chat/internal/common/logger"
	"investment-chat/internal/llm"
	"investment-chat/internal/memory"
	"investment-chat/pkg/registry"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "route-question"
)

const SystemPrompt = `
You are an analyst answering questions about startup investment updates.
- If the user is asking about a single company, use the ` + "`get_data_from_name`" + ` function.
- If the user is asking to filter, compare, or list *multiple companies*, use the ` + "`run_python_query_on_json`" + ` function.
Do not guess numbers. Always cite facts from the data.
`

// FallbackAnswer replaces an empty direct answer.
const FallbackAnswer = "I'm tuned for investment‑update questions. Try:\n" +
	"• Give me a summary of Rollstack for the past year\n" +
	"• Which companies have revenue more than $1m?"

var (
	ErrRoutingFailed = errors.New("ROUTING_FAILED")
	ErrLLMTimeout    = errors.New("LLM_TIMEOUT")
)

type Handler struct {
	config *Config
	model  llm.ChatModel
	tools  *registry.ToolRegistry
	logger logger.Logger
}

func NewHandler(config *Config, model llm.ChatModel, tools *registry.ToolRegistry, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		model:  model,
		tools:  tools,
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
		camunda.FailJob(client, job, apperrors.NewRoutingFailedError(err), h.logger)
		return
	}

	output, err := h.Execute(context.Background(), &input)
	if err != nil {
		camunda.FailJob(client, job, h.toStandardError(err), h.logger)
		return
	}
	camunda.CompleteJob(client, job, output, h.logger, started)
}

// Execute asks the reasoning service to answer directly or pick capabilities.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	resp, err := h.model.Chat(ctx, llm.ChatRequest{
		Messages:    BuildMessages(input.Question, input.History),
		Tools:       h.tools.Tools(),
		ToolChoice:  llm.ToolChoiceAuto,
		Temperature: llm.Float64(h.config.Temperature),
	})
	if err != nil {
		if errors.Is(err, llm.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrLLMTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrRoutingFailed, err)
	}

	if len(resp.ToolCalls) == 0 {
		out := &Output{Direct: true, Text: resp.Content}
		if out.Text == "" {
			out.Text = FallbackAnswer
			out.UsedFallback = true
		}
		h.logger.Debug("routed to direct answer", map[string]interface{}{
			"usedFallback": out.UsedFallback,
		})
		return out, nil
	}

	names := make([]string, len(resp.ToolCalls))
	for i, tc := range resp.ToolCalls {
		names[i] = tc.Name
	}
	h.logger.Debug("routed to tools", map[string]interface{}{
		"tools": names,
	})
	return &Output{Text: resp.Content, ToolCalls: resp.ToolCalls}, nil
}

func (h *Handler) toStandardError(err error) error {
	if errors.Is(err, ErrLLMTimeout) {
		return apperrors.NewLLMTimeoutError(h.config.Timeout)
	}
	return apperrors.NewRoutingFailedError(err)
}

// BuildMessages returns the system instruction, prior turns and the new question.
func BuildMessages(question string, history []memory.Turn) []llm.Message {
	msgs := make([]llm.Message, 0, len(history)+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: SystemPrompt})
	msgs = append(msgs, memory.Messages(history)...)
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: question})
	return msgs
}
