package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// PgDocumentStore implementa DocumentStore sobre la tabla documents (JSONB).
type PgDocumentStore struct {
	db pgExecutor
}

func NewPgDocumentStore(pool *pgxpool.Pool) *PgDocumentStore {
	return &PgDocumentStore{db: pool}
}

func (s *PgDocumentStore) Get(ctx context.Context, collection, key string, out any) error {
	const query = `
		SELECT data
		FROM documents
		WHERE collection = $1 AND key = $2
	`
	var raw []byte
	err := s.db.QueryRow(ctx, query, collection, key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (s *PgDocumentStore) Put(ctx context.Context, collection, key string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO documents (collection, key, data, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (collection, key)
		DO UPDATE SET data = EXCLUDED.data, updated_at = now()
	`
	_, err = s.db.Exec(ctx, query, collection, key, raw)
	return err
}

func (s *PgDocumentStore) Create(ctx context.Context, collection, key string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO documents (collection, key, data, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (collection, key) DO NOTHING
	`
	tag, err := s.db.Exec(ctx, query, collection, key, raw)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyExists
	}
	return nil
}

func (s *PgDocumentStore) Update(ctx context.Context, collection, key string, fields map[string]any) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	const query = `
		UPDATE documents
		SET data = data || $3::jsonb, updated_at = now()
		WHERE collection = $1 AND key = $2
	`
	tag, err := s.db.Exec(ctx, query, collection, key, raw)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PgDocumentStore) Delete(ctx context.Context, collection, key string) error {
	const query = `
		DELETE FROM documents
		WHERE collection = $1 AND key = $2
	`
	_, err := s.db.Exec(ctx, query, collection, key)
	return err
}

func (s *PgDocumentStore) DeleteIf(ctx context.Context, collection, key, field, value string) (bool, error) {
	const query = `
		DELETE FROM documents
		WHERE collection = $1 AND key = $2 AND data @> jsonb_build_object($3::text, $4::text)
	`
	tag, err := s.db.Exec(ctx, query, collection, key, field, value)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PgDocumentStore) ExistsByField(ctx context.Context, collection, field, value string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1
			FROM documents
			WHERE collection = $1 AND data @> jsonb_build_object($2::text, $3::text)
		)
	`
	var exists bool
	if err := s.db.QueryRow(ctx, query, collection, field, value).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (s *PgDocumentStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
