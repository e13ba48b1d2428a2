package goals

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is owner-scoped: a goal belonging to someone else behaves as missing.
type Repository interface {
	Create(ctx context.Context, g *Goal) error
	Get(ctx context.Context, ownerID, id uuid.UUID) (*Goal, error)
	List(ctx context.Context, ownerID uuid.UUID) ([]Goal, error)
	Update(ctx context.Context, g *Goal) error
	Delete(ctx context.Context, ownerID, id uuid.UUID) (bool, error)
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

const goalColumns = `id, owner_id, title, description, status, target_date, created_at, updated_at`

func scanGoal(row pgx.Row, g *Goal) error {
	return row.Scan(&g.ID, &g.OwnerID, &g.Title, &g.Description, &g.Status,
		&g.TargetDate, &g.CreatedAt, &g.UpdatedAt)
}

func (r *postgresRepository) Create(ctx context.Context, g *Goal) error {
	query := `
		INSERT INTO goals (` + goalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, query,
		g.ID, g.OwnerID, g.Title, g.Description, g.Status,
		g.TargetDate, g.CreatedAt, g.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting goal: %w", err)
	}
	return nil
}

func (r *postgresRepository) Get(ctx context.Context, ownerID, id uuid.UUID) (*Goal, error) {
	query := `SELECT ` + goalColumns + ` FROM goals WHERE id = $1 AND owner_id = $2`

	g := &Goal{}
	if err := scanGoal(r.pool.QueryRow(ctx, query, id, ownerID), g); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying goal: %w", err)
	}
	return g, nil
}

func (r *postgresRepository) List(ctx context.Context, ownerID uuid.UUID) ([]Goal, error) {
	query := `
		SELECT ` + goalColumns + `
		FROM goals
		WHERE owner_id = $1
		ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing goals: %w", err)
	}
	defer rows.Close()

	goals := []Goal{}
	for rows.Next() {
		var g Goal
		if err := scanGoal(rows, &g); err != nil {
			return nil, fmt.Errorf("scanning goal row: %w", err)
		}
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

func (r *postgresRepository) Update(ctx context.Context, g *Goal) error {
	query := `
		UPDATE goals
		SET title = $3, description = $4, status = $5, target_date = $6, updated_at = $7
		WHERE id = $1 AND owner_id = $2`

	result, err := r.pool.Exec(ctx, query,
		g.ID, g.OwnerID, g.Title, g.Description, g.Status, g.TargetDate, g.UpdatedAt)
	if err != nil {
		return fmt.Errorf("updating goal: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("goal not found")
	}
	return nil
}

func (r *postgresRepository) Delete(ctx context.Context, ownerID, id uuid.UUID) (bool, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM goals WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return false, fmt.Errorf("deleting goal: %w", err)
	}
	return result.RowsAffected() > 0, nil
}
