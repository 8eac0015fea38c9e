package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"dado-auth/internal/db"
	"dado-auth/internal/domain"
)

// runDocumentStoreContract ejercita el contrato común de DocumentStore.
func runDocumentStoreContract(t *testing.T, store DocumentStore) {
	t.Helper()
	ctx := context.Background()
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	acc := domain.Account{
		Email:        "a@x.com",
		Username:     "alice1",
		PasswordHash: "hash",
		MFASecret:    "SECRET",
		Verified:     true,
		MFAEnabled:   true,
		CreatedAt:    created,
	}

	t.Run("get missing", func(t *testing.T) {
		var out domain.Account
		if err := store.Get(ctx, domain.CollectionAccounts, "missing@x.com", &out); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("create and get", func(t *testing.T) {
		if err := store.Create(ctx, domain.CollectionAccounts, acc.Email, acc); err != nil {
			t.Fatalf("create: %v", err)
		}
		var out domain.Account
		if err := store.Get(ctx, domain.CollectionAccounts, acc.Email, &out); err != nil {
			t.Fatalf("get: %v", err)
		}
		if out.Username != "alice1" || !out.MFAEnabled || !out.CreatedAt.Equal(created) {
			t.Fatalf("unexpected document: %+v", out)
		}
	})

	t.Run("create existing", func(t *testing.T) {
		if err := store.Create(ctx, domain.CollectionAccounts, acc.Email, acc); !errors.Is(err, ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
	})

	t.Run("exists by field", func(t *testing.T) {
		ok, err := store.ExistsByField(ctx, domain.CollectionAccounts, "username", "alice1")
		if err != nil || !ok {
			t.Fatalf("expected username to exist, got %v,%v", ok, err)
		}
		ok, err = store.ExistsByField(ctx, domain.CollectionAccounts, "username", "bob")
		if err != nil || ok {
			t.Fatalf("expected username bob absent, got %v,%v", ok, err)
		}
		ok, err = store.ExistsByField(ctx, domain.CollectionPendingAccounts, "username", "alice1")
		if err != nil || ok {
			t.Fatalf("expected collections to be isolated, got %v,%v", ok, err)
		}
	})

	t.Run("update merges fields", func(t *testing.T) {
		if err := store.Update(ctx, domain.CollectionAccounts, acc.Email, map[string]any{"username": "alice2"}); err != nil {
			t.Fatalf("update: %v", err)
		}
		var out domain.Account
		if err := store.Get(ctx, domain.CollectionAccounts, acc.Email, &out); err != nil {
			t.Fatalf("get: %v", err)
		}
		if out.Username != "alice2" || out.PasswordHash != "hash" {
			t.Fatalf("expected merged update, got %+v", out)
		}
	})

	t.Run("update missing", func(t *testing.T) {
		err := store.Update(ctx, domain.CollectionAccounts, "missing@x.com", map[string]any{"username": "x"})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("put overwrites", func(t *testing.T) {
		first := domain.NewPasswordReset("111111", created)
		second := domain.NewPasswordReset("222222", created.Add(time.Minute))
		if err := store.Put(ctx, domain.CollectionPasswordResets, acc.Email, first); err != nil {
			t.Fatalf("put: %v", err)
		}
		if err := store.Put(ctx, domain.CollectionPasswordResets, acc.Email, second); err != nil {
			t.Fatalf("put: %v", err)
		}
		var out domain.PasswordReset
		if err := store.Get(ctx, domain.CollectionPasswordResets, acc.Email, &out); err != nil {
			t.Fatalf("get: %v", err)
		}
		if out != second {
			t.Fatalf("expected overwritten reset %+v, got %+v", second, out)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := store.Delete(ctx, domain.CollectionPasswordResets, acc.Email); err != nil {
			t.Fatalf("delete: %v", err)
		}
		var out domain.PasswordReset
		if err := store.Get(ctx, domain.CollectionPasswordResets, acc.Email, &out); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound after delete, got %v", err)
		}
		if err := store.Delete(ctx, domain.CollectionPasswordResets, acc.Email); err != nil {
			t.Fatalf("deleting a missing key should not fail, got %v", err)
		}
	})

	t.Run("delete if field matches", func(t *testing.T) {
		held := domain.UsernameReservation{Username: "alice1", Owner: "a@x.com", CreatedAt: created}
		if err := store.Create(ctx, domain.CollectionUsernames, held.Username, held); err != nil {
			t.Fatalf("create: %v", err)
		}
		deleted, err := store.DeleteIf(ctx, domain.CollectionUsernames, "alice1", "owner", "b@x.com")
		if err != nil || deleted {
			t.Fatalf("expected no delete for another owner, got %v,%v", deleted, err)
		}
		var out domain.UsernameReservation
		if err := store.Get(ctx, domain.CollectionUsernames, "alice1", &out); err != nil {
			t.Fatalf("expected reservation kept, got %v", err)
		}
		deleted, err = store.DeleteIf(ctx, domain.CollectionUsernames, "alice1", "owner", "a@x.com")
		if err != nil || !deleted {
			t.Fatalf("expected delete for matching owner, got %v,%v", deleted, err)
		}
		if err := store.Get(ctx, domain.CollectionUsernames, "alice1", &out); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound after conditional delete, got %v", err)
		}
		deleted, err = store.DeleteIf(ctx, domain.CollectionUsernames, "alice1", "owner", "a@x.com")
		if err != nil || deleted {
			t.Fatalf("expected missing key to report no delete, got %v,%v", deleted, err)
		}
	})

	t.Run("ping", func(t *testing.T) {
		if err := store.Ping(ctx); err != nil {
			t.Fatalf("ping: %v", err)
		}
	})
}

func TestMemoryDocumentStore(t *testing.T) {
	runDocumentStoreContract(t, NewMemoryDocumentStore())
}

func TestSQLiteDocumentStore(t *testing.T) {
	sqlDB, err := db.OpenSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer sqlDB.Close()
	runDocumentStoreContract(t, NewSQLiteDocumentStore(sqlDB))
}

func TestPgDocumentStore(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer pool.Close()
	if err := db.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := pool.Exec(ctx, `DELETE FROM documents`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	runDocumentStoreContract(t, NewPgDocumentStore(pool))
}

func TestDocumentWithID(t *testing.T) {
	doc, err := documentWithID("alice1", domain.UsernameReservation{Username: "alice1", Owner: "a@x.com"})
	if err != nil {
		t.Fatalf("document with id: %v", err)
	}
	if doc["_id"] != "alice1" || doc["owner"] != "a@x.com" {
		t.Fatalf("unexpected bson document: %+v", doc)
	}
}
