package repository

import (
	"context"

	"dado-auth/internal/domain"
)

// PendingAccountRepository guarda registros pendientes de verificación.
type PendingAccountRepository interface {
	Save(ctx context.Context, pending domain.PendingAccount) error
	GetByEmail(ctx context.Context, email string) (domain.PendingAccount, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	Delete(ctx context.Context, email string) error
}

type DocPendingAccountRepository struct {
	store DocumentStore
}

func NewPendingAccountRepository(store DocumentStore) *DocPendingAccountRepository {
	return &DocPendingAccountRepository{store: store}
}

// Save sobrescribe cualquier registro pendiente previo para el mismo email.
func (r *DocPendingAccountRepository) Save(ctx context.Context, pending domain.PendingAccount) error {
	return r.store.Put(ctx, domain.CollectionPendingAccounts, pending.Email, pending)
}

func (r *DocPendingAccountRepository) GetByEmail(ctx context.Context, email string) (domain.PendingAccount, error) {
	var pending domain.PendingAccount
	if err := r.store.Get(ctx, domain.CollectionPendingAccounts, email, &pending); err != nil {
		return domain.PendingAccount{}, err
	}
	return pending, nil
}

func (r *DocPendingAccountRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.store.ExistsByField(ctx, domain.CollectionPendingAccounts, "username", username)
}

func (r *DocPendingAccountRepository) Delete(ctx context.Context, email string) error {
	return r.store.Delete(ctx, domain.CollectionPendingAccounts, email)
}
