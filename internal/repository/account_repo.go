package repository

import (
	"context"

	"dado-auth/internal/domain"
)

// AccountRepository define el contrato de persistencia para cuentas activas.
type AccountRepository interface {
	Create(ctx context.Context, account domain.Account) error
	GetByEmail(ctx context.Context, email string) (domain.Account, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	UpdatePassword(ctx context.Context, email, passwordHash string) error
	UpdateUsername(ctx context.Context, email, username string) error
}

// DocAccountRepository implementa AccountRepository sobre un DocumentStore.
type DocAccountRepository struct {
	store DocumentStore
}

func NewAccountRepository(store DocumentStore) *DocAccountRepository {
	return &DocAccountRepository{store: store}
}

func (r *DocAccountRepository) Create(ctx context.Context, account domain.Account) error {
	return r.store.Create(ctx, domain.CollectionAccounts, account.Email, account)
}

func (r *DocAccountRepository) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	var account domain.Account
	if err := r.store.Get(ctx, domain.CollectionAccounts, email, &account); err != nil {
		return domain.Account{}, err
	}
	return account, nil
}

func (r *DocAccountRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.store.ExistsByField(ctx, domain.CollectionAccounts, "username", username)
}

func (r *DocAccountRepository) UpdatePassword(ctx context.Context, email, passwordHash string) error {
	return r.store.Update(ctx, domain.CollectionAccounts, email, map[string]any{"password": passwordHash})
}

func (r *DocAccountRepository) UpdateUsername(ctx context.Context, email, username string) error {
	return r.store.Update(ctx, domain.CollectionAccounts, email, map[string]any{"username": username})
}
