// internal/workers/ai-conversation/answer-question/handler.go
package answerquestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"investment-chat/internal/common/camunda"
	apperrors "investment-chat/internal/common/errors"
	"investment-chat/internal/common/logger"
	"investment-chat/internal/common/metrics"
	"investment-chat/internal/common/observability"
	"investment-chat/internal/llm"
	"investment-chat/internal/memory"
	fetchentity "investment-chat/internal/workers/ai-conversation/fetch-entity"
	llmsynthesis "investment-chat/internal/workers/ai-conversation/llm-synthesis"
	routequestion "investment-chat/internal/workers/ai-conversation/route-question"
	runanalyticalquery "investment-chat/internal/workers/ai-conversation/run-analytical-query"
	"investment-chat/pkg/registry"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.opentelemetry.io/otel/attribute"
)

const (
	TaskType = "answer-question"

	noOutputPayload = "[No output]"
)

type Router interface {
	Execute(ctx context.Context, input *routequestion.Input) (*routequestion.Output, error)
}

type EntityFetcher interface {
	Execute(ctx context.Context, input *fetchentity.Input) (*fetchentity.Output, error)
}

type AnalyticalRunner interface {
	Execute(ctx context.Context, input *runanalyticalquery.Input) (*runanalyticalquery.Output, error)
}

type Synthesizer interface {
	Execute(ctx context.Context, input *llmsynthesis.Input) (*llmsynthesis.Output, error)
}

type Memory interface {
	Load(ctx context.Context, session string) memory.Recall
	Append(ctx context.Context, session, user, assistant string) error
}

// Dependencies are the pipeline steps a turn is composed of.
type Dependencies struct {
	Router        Router
	Fetcher       EntityFetcher
	Analytics     AnalyticalRunner
	Synthesizer   Synthesizer
	Memory        Memory
	Tools         *registry.ToolRegistry
	Observability *observability.Observability
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

type Handler struct {
	config *Config
	deps   Dependencies
	logger logger.Logger

	mu    sync.Mutex
	locks map[string]*sessionLock
}

func NewHandler(config *Config, deps Dependencies, log logger.Logger) *Handler {
	if deps.Tools == nil {
		deps.Tools = registry.Default()
	}
	if deps.Observability == nil {
		deps.Observability = observability.Noop()
	}
	return &Handler{
		config: config,
		deps:   deps,
		logger: log.With(map[string]interface{}{
			"taskType": TaskType,
		}),
		locks: make(map[string]*sessionLock),
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

// Answer handles one message in the default session.
func (h *Handler) Answer(ctx context.Context, text string) string {
	return h.AnswerSession(ctx, h.config.DefaultSession, text)
}

// AnswerSession handles one message and always returns displayable text.
func (h *Handler) AnswerSession(ctx context.Context, session, text string) string {
	out, _ := h.Execute(ctx, &Input{Session: session, Message: text})
	return out.Reply
}

// Execute runs a full turn. It never returns an error and recovers panics
// into an error reply; turns of the same session run one at a time.
func (h *Handler) Execute(ctx context.Context, input *Input) (out *Output, _ error) {
	session := input.Session
	if session == "" {
		session = h.config.DefaultSession
	}

	unlock := h.lockSession(session)
	defer unlock()

	if h.config.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.TurnTimeout)
		defer cancel()
	}

	started := time.Now()
	ctx, span := h.deps.Observability.StartSpan(ctx, "chat.turn", attribute.String("session", session))
	log := h.logger.With(map[string]interface{}{"session": session})

	defer func() {
		var spanErr error
		if r := recover(); r != nil {
			log.Error("turn panicked", map[string]interface{}{"panic": fmt.Sprint(r)})
			out = &Output{
				Reply:   fmt.Sprintf("Error: %v", r),
				Session: session,
				Path:    PathError,
				Outcome: OutcomePanic,
			}
		}
		if out.Path == PathError {
			spanErr = errors.New(out.Outcome)
		}
		h.transition(log, StateReturned, map[string]interface{}{"path": out.Path, "outcome": out.Outcome})

		elapsed := time.Since(started)
		metrics.ChatTurns.WithLabelValues(out.Path, out.Outcome).Inc()
		metrics.ChatTurnDuration.WithLabelValues(out.Path).Observe(elapsed.Seconds())
		h.deps.Observability.RecordTurn(ctx, out.Path, out.Outcome, elapsed)
		span.SetAttributes(attribute.String("path", out.Path), attribute.String("outcome", out.Outcome))
		observability.EndSpan(span, spanErr)
	}()

	return h.turn(ctx, log, session, input.Message), nil
}

func (h *Handler) turn(ctx context.Context, log logger.Logger, session, question string) *Output {
	h.transition(log, StateReceived, nil)

	recall := h.deps.Memory.Load(ctx, session)
	if recall.Err != nil {
		log.Warn("continuing without conversation history", map[string]interface{}{"error": recall.Err.Error()})
	}

	routeCtx, routeSpan := h.deps.Observability.StartSpan(ctx, "chat.route")
	decision, err := h.deps.Router.Execute(routeCtx, &routequestion.Input{Question: question, History: recall.Turns})
	observability.EndSpan(routeSpan, err)
	if err != nil {
		log.Error("routing failed", map[string]interface{}{"error": err.Error()})
		return &Output{
			Reply:   "Error: " + err.Error(),
			Session: session,
			Path:    PathError,
			Outcome: OutcomeRoutingFailed,
		}
	}
	h.transition(log, StateRouted, map[string]interface{}{"toolCalls": len(decision.ToolCalls)})

	if decision.Direct {
		h.transition(log, StateDirect, nil)
		if err := h.deps.Memory.Append(ctx, session, question, decision.Text); err != nil {
			log.Warn("failed to record exchange", map[string]interface{}{"error": err.Error()})
		}
		h.transition(log, StateMemoryAppended, nil)

		outcome := OutcomeOK
		if decision.UsedFallback {
			outcome = OutcomeFallback
		}
		return &Output{Reply: decision.Text, Session: session, Path: PathDirect, Outcome: outcome}
	}

	h.transition(log, StateToolsExecuting, nil)
	results := make([]llmsynthesis.ToolResult, 0, len(decision.ToolCalls))
	executions := make([]ToolExecution, 0, len(decision.ToolCalls))
	for _, call := range decision.ToolCalls {
		content, outcome := h.executeTool(ctx, log, call)
		results = append(results, llmsynthesis.ToolResult{CallID: call.ID, Name: call.Name, Content: content})
		executions = append(executions, ToolExecution{ID: call.ID, Name: call.Name, Outcome: outcome})
		metrics.ChatToolCalls.WithLabelValues(call.Name, outcome).Inc()
	}

	synthCtx, synthSpan := h.deps.Observability.StartSpan(ctx, "chat.synthesize")
	final, _ := h.deps.Synthesizer.Execute(synthCtx, &llmsynthesis.Input{
		Session:            session,
		Question:           question,
		History:            recall.Turns,
		AssistantContent:   decision.Text,
		AssistantToolCalls: decision.ToolCalls,
		ToolResults:        results,
	})
	var synthErr error
	if final.Failed {
		synthErr = errors.New(final.Reason)
	}
	observability.EndSpan(synthSpan, synthErr)
	h.transition(log, StateSynthesized, map[string]interface{}{"failed": final.Failed})
	h.transition(log, StateMemoryAppended, nil)

	outcome := OutcomeOK
	if final.Failed {
		outcome = OutcomeSynthesisFailed
	}
	return &Output{
		Reply:     final.Text,
		Session:   session,
		Path:      PathTools,
		Outcome:   outcome,
		ToolCalls: executions,
	}
}

// executeTool runs one capability call and returns the tool message content.
// Problems with the call become an error payload rather than aborting the turn.
func (h *Handler) executeTool(ctx context.Context, log logger.Logger, call llm.ToolCall) (string, string) {
	ctx, span := h.deps.Observability.StartSpan(ctx, "chat.tool", attribute.String("tool", call.Name))
	fields := map[string]interface{}{"tool": call.Name, "callId": call.ID}

	if _, ok := h.deps.Tools.Lookup(call.Name); !ok {
		err := apperrors.NewUnknownToolError(call.Name)
		log.Warn("router requested unknown tool", fields)
		observability.EndSpan(span, err)
		return errorPayload("unknown tool: " + call.Name), "unknown_tool"
	}

	result, err := h.deps.Tools.ValidateArguments(call.Name, call.Arguments)
	if err == nil && !result.Valid {
		err = apperrors.NewInvalidToolArgumentsError(call.Name, result.Error())
	}
	if err != nil {
		fields["error"] = err.Error()
		log.Warn("tool arguments rejected", fields)
		observability.EndSpan(span, err)
		return errorPayload("invalid arguments: " + argumentDetails(err)), "invalid_arguments"
	}

	switch call.Name {
	case registry.FetchEntity:
		var input fetchentity.Input
		_ = json.Unmarshal([]byte(call.Arguments), &input)
		out, err := h.deps.Fetcher.Execute(ctx, &input)
		observability.EndSpan(span, err)
		if err != nil {
			fields["error"] = err.Error()
			log.Error("entity lookup failed", fields)
			return errorPayload(err.Error()), "failed"
		}
		if !out.Found {
			return out.Payload, "not_found"
		}
		return out.Payload, "ok"

	case registry.RunAnalyticalQuery:
		var input runanalyticalquery.Input
		_ = json.Unmarshal([]byte(call.Arguments), &input)
		out, _ := h.deps.Analytics.Execute(ctx, &input)
		var spanErr error
		if out.Failed {
			spanErr = errors.New(out.Reason)
		}
		observability.EndSpan(span, spanErr)
		if out.Text == "" {
			return noOutputPayload, "empty"
		}
		switch {
		case out.Failed:
			return out.Text, "failed"
		case out.Empty:
			return out.Text, "empty"
		}
		return out.Text, "ok"
	}

	observability.EndSpan(span, nil)
	return errorPayload("unknown tool: " + call.Name), "unknown_tool"
}

func (h *Handler) transition(log logger.Logger, state TurnState, fields map[string]interface{}) {
	f := map[string]interface{}{"state": string(state)}
	for k, v := range fields {
		f[k] = v
	}
	log.Debug("turn state", f)
}

func (h *Handler) lockSession(session string) func() {
	h.mu.Lock()
	l, ok := h.locks[session]
	if !ok {
		l = &sessionLock{}
		h.locks[session] = l
	}
	l.refs++
	h.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		h.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(h.locks, session)
		}
		h.mu.Unlock()
	}
}

func errorPayload(msg string) string {
	data, _ := json.Marshal(map[string]string{"error": msg})
	return string(data)
}

func argumentDetails(err error) string {
	var stdErr *apperrors.StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Details
	}
	return err.Error()
}
