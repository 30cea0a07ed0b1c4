package memory

import (
	"context"
	"database/sql"
	"fmt"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS chat_memory (
	id         BIGSERIAL PRIMARY KEY,
	session_id TEXT NOT NULL,
	role       TEXT NOT NULL,
	text       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS chat_memory_session_idx ON chat_memory (session_id, id);
`

// PostgresBackend stores one row per turn in chat_memory.
type PostgresBackend struct {
	db *sql.DB
}

func NewPostgresBackend(db *sql.DB) *PostgresBackend {
	return &PostgresBackend{db: db}
}

func (p *PostgresBackend) Name() string { return "postgres" }

// Migrate creates the chat_memory table if it does not exist.
func (p *PostgresBackend) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate chat_memory: %w", err)
	}
	return nil
}

func (p *PostgresBackend) Read(ctx context.Context, session string, limit int) ([]Turn, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT role, text FROM chat_memory
		WHERE session_id = $1
		ORDER BY id DESC
		LIMIT $2`, session, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	turns := []Turn{}
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.Role, &t.Text); err != nil {
			return nil, err
		}
		if validRole(t.Role) {
			turns = append(turns, t)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

func (p *PostgresBackend) Write(ctx context.Context, session string, turns ...Turn) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, t := range turns {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chat_memory (session_id, role, text) VALUES ($1, $2, $3)`,
			session, string(t.Role), t.Text,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
