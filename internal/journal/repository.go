package journal

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned by Update when the entry is missing or not the owner's.
var ErrNotFound = errors.New("journal entry not found")

// Repository is owner-scoped: an entry belonging to someone else behaves as missing.
type Repository interface {
	Create(ctx context.Context, e *Entry) error
	Get(ctx context.Context, ownerID, id uuid.UUID) (*Entry, error)
	List(ctx context.Context, ownerID uuid.UUID, params ListParams) ([]Entry, int64, error)
	ListAll(ctx context.Context, ownerID uuid.UUID) ([]Entry, error)
	// Update writes e and sets e.UpdatedAt to the stored version. Versions of one
	// entry increase in commit order, so the last update to land is also the newest.
	Update(ctx context.Context, e *Entry) error
	Delete(ctx context.Context, ownerID, id uuid.UUID) (bool, error)
	// RecentMoods returns up to limit mood scores, newest first.
	RecentMoods(ctx context.Context, ownerID uuid.UUID, limit int) ([]int, error)
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

const entryColumns = `id, owner_id, title, content, mood, tags, created_at, updated_at`

func scanEntry(row pgx.Row, e *Entry) error {
	var mood int16
	if err := row.Scan(&e.ID, &e.OwnerID, &e.Title, &e.Content, &mood, &e.Tags, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return err
	}
	e.Mood = int(mood)
	if e.Tags == nil {
		e.Tags = []string{}
	}
	return nil
}

func (r *postgresRepository) Create(ctx context.Context, e *Entry) error {
	query := `
		INSERT INTO journal_entries (` + entryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, query,
		e.ID, e.OwnerID, e.Title, e.Content, e.Mood, e.Tags, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting journal entry: %w", err)
	}
	return nil
}

func (r *postgresRepository) Get(ctx context.Context, ownerID, id uuid.UUID) (*Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM journal_entries WHERE id = $1 AND owner_id = $2`

	e := &Entry{}
	if err := scanEntry(r.pool.QueryRow(ctx, query, id, ownerID), e); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying journal entry: %w", err)
	}
	return e, nil
}

func (r *postgresRepository) List(ctx context.Context, ownerID uuid.UUID, params ListParams) ([]Entry, int64, error) {
	// An empty tag matches every entry.
	where := `WHERE owner_id = $1 AND ($2 = '' OR $2 = ANY(tags))`

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM journal_entries `+where, ownerID, params.Tag).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting journal entries: %w", err)
	}

	query := `
		SELECT ` + entryColumns + `
		FROM journal_entries ` + where + `
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`

	offset := (params.Page - 1) * params.PageSize
	entries, err := r.query(ctx, query, ownerID, params.Tag, params.PageSize, offset)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (r *postgresRepository) ListAll(ctx context.Context, ownerID uuid.UUID) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM journal_entries WHERE owner_id = $1 ORDER BY created_at`
	return r.query(ctx, query, ownerID)
}

func (r *postgresRepository) query(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing journal entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := scanEntry(rows, &e); err != nil {
			return nil, fmt.Errorf("scanning journal entry row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *postgresRepository) Update(ctx context.Context, e *Entry) error {
	// updated_at is read after the row lock is taken, so a writer that waited
	// on another always ends up strictly newer than it.
	query := `
		UPDATE journal_entries
		SET title = $3, content = $4, mood = $5, tags = $6,
		    updated_at = GREATEST(clock_timestamp(), updated_at + interval '1 microsecond')
		WHERE id = $1 AND owner_id = $2
		RETURNING updated_at`

	err := r.pool.QueryRow(ctx, query, e.ID, e.OwnerID, e.Title, e.Content, e.Mood, e.Tags).Scan(&e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("updating journal entry: %w", err)
	}
	e.UpdatedAt = e.UpdatedAt.UTC()
	return nil
}

func (r *postgresRepository) Delete(ctx context.Context, ownerID, id uuid.UUID) (bool, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM journal_entries WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return false, fmt.Errorf("deleting journal entry: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

func (r *postgresRepository) RecentMoods(ctx context.Context, ownerID uuid.UUID, limit int) ([]int, error) {
	query := `
		SELECT mood FROM journal_entries
		WHERE owner_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent moods: %w", err)
	}
	defer rows.Close()

	moods := []int{}
	for rows.Next() {
		var mood int16
		if err := rows.Scan(&mood); err != nil {
			return nil, fmt.Errorf("scanning mood: %w", err)
		}
		moods = append(moods, int(mood))
	}
	return moods, rows.Err()
}
