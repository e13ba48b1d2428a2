package chat

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is owner-scoped wherever an owner is passed: a foreign session behaves as missing.
type Repository interface {
	GetSession(ctx context.Context, ownerID, id uuid.UUID) (*Session, error)
	// StartSession stores a new session together with its first message.
	StartSession(ctx context.Context, s *Session, first *Message) error
	// AppendMessage stores m and bumps its session's updated_at.
	AppendMessage(ctx context.Context, m *Message) error
	// ListRecentMessages returns the last limit messages of a session in chronological order.
	ListRecentMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]Message, error)
	ListMessages(ctx context.Context, sessionID uuid.UUID) ([]Message, error)
	ListSessions(ctx context.Context, ownerID uuid.UUID) ([]SessionSummary, error)
	DeleteSession(ctx context.Context, ownerID, id uuid.UUID) (bool, error)
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

func (r *postgresRepository) GetSession(ctx context.Context, ownerID, id uuid.UUID) (*Session, error) {
	query := `
		SELECT id, owner_id, title, created_at, updated_at
		FROM chat_sessions
		WHERE id = $1 AND owner_id = $2`

	s := &Session{}
	err := r.pool.QueryRow(ctx, query, id, ownerID).Scan(&s.ID, &s.OwnerID, &s.Title, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying chat session: %w", err)
	}
	return s, nil
}

func (r *postgresRepository) StartSession(ctx context.Context, s *Session, first *Message) error {
	query := `
		WITH session AS (
			INSERT INTO chat_sessions (id, owner_id, title, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		)
		INSERT INTO chat_messages (id, session_id, role, content, created_at)
		SELECT $6, id, $7, $8, $9 FROM session`

	_, err := r.pool.Exec(ctx, query,
		s.ID, s.OwnerID, s.Title, s.CreatedAt, s.UpdatedAt,
		first.ID, string(first.Role), first.Content, first.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting chat session: %w", err)
	}
	return nil
}

func (r *postgresRepository) AppendMessage(ctx context.Context, m *Message) error {
	query := `
		WITH inserted AS (
			INSERT INTO chat_messages (id, session_id, role, content, created_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING session_id
		)
		UPDATE chat_sessions SET updated_at = $5
		WHERE id = (SELECT session_id FROM inserted)`

	_, err := r.pool.Exec(ctx, query, m.ID, m.SessionID, string(m.Role), m.Content, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting chat message: %w", err)
	}
	return nil
}

func (r *postgresRepository) ListRecentMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]Message, error) {
	query := `
		SELECT id, session_id, role, content, created_at
		FROM chat_messages
		WHERE session_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`

	msgs, err := r.queryMessages(ctx, query, sessionID, limit)
	if err != nil {
		return nil, err
	}
	slices.Reverse(msgs)
	return msgs, nil
}

func (r *postgresRepository) ListMessages(ctx context.Context, sessionID uuid.UUID) ([]Message, error) {
	query := `
		SELECT id, session_id, role, content, created_at
		FROM chat_messages
		WHERE session_id = $1
		ORDER BY created_at, id`

	return r.queryMessages(ctx, query, sessionID)
}

func (r *postgresRepository) queryMessages(ctx context.Context, query string, args ...any) ([]Message, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing chat messages: %w", err)
	}
	defer rows.Close()

	msgs := []Message{}
	for rows.Next() {
		var m Message
		var role string
		if err := rows.Scan(&m.ID, &m.SessionID, &role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning chat message: %w", err)
		}
		m.Role = Role(role)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (r *postgresRepository) ListSessions(ctx context.Context, ownerID uuid.UUID) ([]SessionSummary, error) {
	query := `
		SELECT s.id, s.owner_id, s.title, s.created_at, s.updated_at, COUNT(m.id)
		FROM chat_sessions s
		LEFT JOIN chat_messages m ON m.session_id = s.id
		WHERE s.owner_id = $1
		GROUP BY s.id
		ORDER BY s.updated_at DESC`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing chat sessions: %w", err)
	}
	defer rows.Close()

	sessions := []SessionSummary{}
	for rows.Next() {
		var s SessionSummary
		if err := rows.Scan(&s.ID, &s.OwnerID, &s.Title, &s.CreatedAt, &s.UpdatedAt, &s.MessageCount); err != nil {
			return nil, fmt.Errorf("scanning chat session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (r *postgresRepository) DeleteSession(ctx context.Context, ownerID, id uuid.UUID) (bool, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM chat_sessions WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return false, fmt.Errorf("deleting chat session: %w", err)
	}
	return result.RowsAffected() > 0, nil
}
