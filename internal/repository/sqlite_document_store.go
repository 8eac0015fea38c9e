package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
)

// SQLiteDocumentStore implementa DocumentStore sobre la tabla documents de SQLite (JSON1).
type SQLiteDocumentStore struct {
	db *sql.DB
}

func NewSQLiteDocumentStore(db *sql.DB) *SQLiteDocumentStore {
	return &SQLiteDocumentStore{db: db}
}

func (s *SQLiteDocumentStore) Get(ctx context.Context, collection, key string, out any) error {
	const query = `SELECT data FROM documents WHERE collection = ? AND key = ?`
	var raw string
	err := s.db.QueryRowContext(ctx, query, collection, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(raw), out)
}

func (s *SQLiteDocumentStore) Put(ctx context.Context, collection, key string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO documents (collection, key, data, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (collection, key)
		DO UPDATE SET data = excluded.data, updated_at = CURRENT_TIMESTAMP
	`
	_, err = s.db.ExecContext(ctx, query, collection, key, string(raw))
	return err
}

func (s *SQLiteDocumentStore) Create(ctx context.Context, collection, key string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	const query = `
		INSERT OR IGNORE INTO documents (collection, key, data, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
	`
	res, err := s.db.ExecContext(ctx, query, collection, key, string(raw))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAlreadyExists
	}
	return nil
}

func (s *SQLiteDocumentStore) Update(ctx context.Context, collection, key string, fields map[string]any) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	const query = `
		UPDATE documents
		SET data = json_patch(data, ?), updated_at = CURRENT_TIMESTAMP
		WHERE collection = ? AND key = ?
	`
	res, err := s.db.ExecContext(ctx, query, string(raw), collection, key)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteDocumentStore) Delete(ctx context.Context, collection, key string) error {
	const query = `DELETE FROM documents WHERE collection = ? AND key = ?`
	_, err := s.db.ExecContext(ctx, query, collection, key)
	return err
}

func (s *SQLiteDocumentStore) DeleteIf(ctx context.Context, collection, key, field, value string) (bool, error) {
	const query = `
		DELETE FROM documents
		WHERE collection = ? AND key = ? AND json_extract(data, '$.' || ?) = ?
	`
	res, err := s.db.ExecContext(ctx, query, collection, key, field, value)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteDocumentStore) ExistsByField(ctx context.Context, collection, field, value string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM documents
			WHERE collection = ? AND json_extract(data, '$.' || ?) = ?
		)
	`
	var exists bool
	if err := s.db.QueryRowContext(ctx, query, collection, field, value).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (s *SQLiteDocumentStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
