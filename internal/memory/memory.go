// Package memory keeps the bounded, append-only log of prior user/assistant
// turns that is replayed to the reasoning service on every request.
package memory

import (
	"context"

	apperrors "investment-chat/internal/common/errors"
	"investment-chat/internal/common/logger"
	"investment-chat/internal/common/metrics"
	"investment-chat/internal/llm"
)

const (
	DefaultSession  = "default"
	DefaultMaxTurns = 8
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Recall is the result of a memory read. Turns is always non-nil; Err is set
// when the backing store could not be read and Turns is therefore empty.
type Recall struct {
	Turns []Turn
	Err   error
}

// Messages converts the recalled turns to chat transcript entries.
func (r Recall) Messages() []llm.Message {
	return Messages(r.Turns)
}

func Messages(turns []Turn) []llm.Message {
	out := make([]llm.Message, 0, len(turns))
	for _, t := range turns {
		out = append(out, llm.Message{Role: llm.Role(t.Role), Content: t.Text})
	}
	return out
}

// Backend persists turns for a session. Read returns at most limit of the
// most recent turns in chronological order, and an empty slice with a nil
// error when nothing has been stored yet.
type Backend interface {
	Read(ctx context.Context, session string, limit int) ([]Turn, error)
	Write(ctx context.Context, session string, turns ...Turn) error
	Name() string
}

type Memory struct {
	backend  Backend
	maxTurns int
	logger   logger.Logger
}

func New(backend Backend, maxTurns int, log logger.Logger) *Memory {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &Memory{
		backend:  backend,
		maxTurns: maxTurns,
		logger:   log.With(map[string]interface{}{"component": "memory", "backend": backend.Name()}),
	}
}

// Load returns at most the 2*maxTurns most recent turns of session. It never fails.
func (m *Memory) Load(ctx context.Context, session string) Recall {
	limit := 2 * m.maxTurns
	turns, err := m.backend.Read(ctx, normalizeSession(session), limit)
	if err != nil {
		metrics.MemoryErrors.WithLabelValues("read").Inc()
		m.logger.Warn("memory read failed, continuing without history", map[string]interface{}{
			"session": session,
			"error":   err.Error(),
		})
		return Recall{Turns: []Turn{}, Err: apperrors.NewMemoryReadFailedError(err)}
	}
	if turns == nil {
		turns = []Turn{}
	}
	if len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return Recall{Turns: turns}
}

// Append records one exchange, user turn first. The returned error is
// informational; callers are expected to log it and carry on.
func (m *Memory) Append(ctx context.Context, session, user, assistant string) error {
	err := m.backend.Write(ctx, normalizeSession(session),
		Turn{Role: RoleUser, Text: user},
		Turn{Role: RoleAssistant, Text: assistant},
	)
	if err != nil {
		metrics.MemoryErrors.WithLabelValues("write").Inc()
		return apperrors.NewMemoryWriteFailedError(err)
	}
	return nil
}

func (m *Memory) MaxTurns() int {
	return m.maxTurns
}

func normalizeSession(session string) string {
	if session == "" {
		return DefaultSession
	}
	return session
}

func validRole(r Role) bool {
	return r == RoleUser || r == RoleAssistant
}
