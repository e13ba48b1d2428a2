package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

// Repository defines memory persistence operations.
type Repository interface {
	// Upsert writes rec unless the stored record carries a newer SourceVersion
	// or the key has been deleted. It reports whether the row was written.
	Upsert(ctx context.Context, rec *Record) (bool, error)
	// Delete drops the record and leaves a tombstone; the key never comes back.
	// Source IDs are never reused, so a deleted key has no legitimate future upsert.
	Delete(ctx context.Context, key Key) error
	// ListByOwner returns the owner's live records.
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Record, error)
}

// PostgresRepository implements Repository using pgx + pgvector.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Upsert(ctx context.Context, rec *Record) (bool, error) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}

	// One statement, so readers never observe two rows for the key.
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO memory_records (id, owner_id, source_type, source_id, embedding, content, source_version)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (owner_id, source_type, source_id) DO UPDATE
		 SET embedding = EXCLUDED.embedding,
		     content = EXCLUDED.content,
		     source_version = EXCLUDED.source_version
		 WHERE memory_records.deleted_at IS NULL
		   AND memory_records.source_version <= EXCLUDED.source_version`,
		rec.ID, rec.Key.OwnerID, rec.Key.SourceType, rec.Key.SourceID,
		pgvector.NewVector(rec.Embedding), rec.Content, rec.SourceVersion,
	)
	if err != nil {
		return false, fmt.Errorf("upserting memory record: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, key Key) error {
	// Conflicts on the same unique key as Upsert, so the two serialize on the row
	// and whichever upsert runs after this one sees deleted_at.
	_, err := r.pool.Exec(ctx,
		`INSERT INTO memory_records (id, owner_id, source_type, source_id, content, source_version, deleted_at)
		 VALUES ($1, $2, $3, $4, '', NOW(), NOW())
		 ON CONFLICT (owner_id, source_type, source_id) DO UPDATE
		 SET embedding = NULL,
		     content = '',
		     source_version = GREATEST(memory_records.source_version, EXCLUDED.source_version),
		     deleted_at = COALESCE(memory_records.deleted_at, EXCLUDED.deleted_at)`,
		uuid.New(), key.OwnerID, key.SourceType, key.SourceID,
	)
	if err != nil {
		return fmt.Errorf("deleting memory record: %w", err)
	}
	return nil
}

// ListByOwner loads every record of the owner. Fine for a few thousand rows;
// beyond that retrieval needs an index instead of a scan.
func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Record, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, owner_id, source_type, source_id, embedding, content, source_version, created_at
		 FROM memory_records
		 WHERE owner_id = $1 AND deleted_at IS NULL`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing memory records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var vec pgvector.Vector
		if err := rows.Scan(&rec.ID, &rec.Key.OwnerID, &rec.Key.SourceType, &rec.Key.SourceID,
			&vec, &rec.Content, &rec.SourceVersion, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning memory record: %w", err)
		}
		rec.Embedding = vec.Slice()
		records = append(records, rec)
	}
	return records, rows.Err()
}
