package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository handles activity_events PostgreSQL operations.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, e *Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	details := e.Details
	if len(details) == 0 {
		details = json.RawMessage(`{}`)
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO activity_events (id, owner_id, event_type, severity, resource_type, resource_id, details, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO NOTHING`,
		e.ID, e.OwnerID, e.EventType, e.Severity, e.ResourceType, e.ResourceID, details, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting activity event: %w", err)
	}
	return nil
}

// ListByOwner returns one page of the owner's events, newest first, plus the total count.
func (r *Repository) ListByOwner(ctx context.Context, ownerID uuid.UUID, params ListParams) ([]Entry, int64, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 || params.PageSize > 100 {
		params.PageSize = 20
	}

	conditions := []string{"owner_id = $1"}
	args := []any{ownerID}
	add := func(cond string, v any) {
		args = append(args, v)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if params.EventType != "" {
		add("event_type = $%d", params.EventType)
	}
	if params.Severity != "" {
		add("severity = $%d", params.Severity)
	}
	if params.From != nil {
		add("created_at >= $%d", *params.From)
	}
	if params.To != nil {
		add("created_at <= $%d", *params.To)
	}

	where := strings.Join(conditions, " AND ")

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM activity_events WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting activity events: %w", err)
	}

	n := len(args)
	query := fmt.Sprintf(
		`SELECT id, owner_id, event_type, severity, resource_type, resource_id, details, created_at
		 FROM activity_events WHERE %s
		 ORDER BY created_at DESC
		 LIMIT $%d OFFSET $%d`, where, n+1, n+2)
	args = append(args, params.PageSize, (params.Page-1)*params.PageSize)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying activity events: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.OwnerID, &e.EventType, &e.Severity,
			&e.ResourceType, &e.ResourceID, &e.Details, &e.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scanning activity event: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}
