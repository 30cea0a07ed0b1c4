// internal/workers/ai-conversation/fetch-entity/handler.go
package fetchentity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"investment-chat/internal/common/camunda"
	apperrors "investment-chat/internal/common/errors"
	"investment-chat/internal/common/logger"
	"investment-chat/internal/dataset"
	"investment-chat/internal/resolver"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType        = "fetch-entity"
	NotFoundPayload = `{"error":"company not found"}`
)

var (
	ErrEmbeddingFailed = errors.New("EMBEDDING_FAILED")
	ErrLookupFailed    = errors.New("ENTITY_LOOKUP_FAILED")
)

type NameResolver interface {
	Resolve(ctx context.Context, name string) (resolver.Match, error)
}

type Handler struct {
	config   *Config
	resolver NameResolver
	store    *dataset.Store
	logger   logger.Logger
}

func NewHandler(config *Config, names NameResolver, store *dataset.Store, log logger.Logger) *Handler {
	return &Handler{
		config:   config,
		resolver: names,
		store:    store,
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

	output, err := h.Execute(context.Background(), &input)
	if err != nil {
		camunda.FailJob(client, job, err, h.logger)
		return
	}
	camunda.CompleteJob(client, job, output, h.logger, started)
}

// Execute resolves the company name and returns its record verbatim. A name
// that resolves to nothing is a successful lookup with Found=false.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	match, err := h.resolver.Resolve(ctx, input.CompanyName)
	if errors.Is(err, resolver.ErrNotFound) {
		h.logger.Info("company not found", map[string]interface{}{
			"companyName": input.CompanyName,
		})
		return &Output{Payload: NotFoundPayload}, nil
	}
	if err != nil {
		var stdErr *apperrors.StandardError
		if errors.As(err, &stdErr) && stdErr.Code == apperrors.ErrCodeEmbeddingFailed {
			return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}

	deal, ok := h.store.GetByID(match.ID)
	if !ok {
		return nil, fmt.Errorf("%w: id %s not in dataset", ErrLookupFailed, match.ID)
	}

	h.logger.Info("company resolved", map[string]interface{}{
		"companyName": input.CompanyName,
		"match":       match.Name,
		"id":          match.ID,
		"similarity":  match.Similarity,
	})

	record := deal.Raw()
	return &Output{
		Found:   true,
		Match:   &match,
		Record:  record,
		Payload: string(record),
	}, nil
}
