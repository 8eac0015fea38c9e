package repository

import (
	"context"

	"dado-auth/internal/domain"
)

// PasswordResetRepository guarda como mucho una solicitud de recuperación por email.
type PasswordResetRepository interface {
	Save(ctx context.Context, email string, reset domain.PasswordReset) error
	Get(ctx context.Context, email string) (domain.PasswordReset, error)
	Delete(ctx context.Context, email string) error
}

type DocPasswordResetRepository struct {
	store DocumentStore
}

func NewPasswordResetRepository(store DocumentStore) *DocPasswordResetRepository {
	return &DocPasswordResetRepository{store: store}
}

func (r *DocPasswordResetRepository) Save(ctx context.Context, email string, reset domain.PasswordReset) error {
	return r.store.Put(ctx, domain.CollectionPasswordResets, email, reset)
}

func (r *DocPasswordResetRepository) Get(ctx context.Context, email string) (domain.PasswordReset, error) {
	var reset domain.PasswordReset
	if err := r.store.Get(ctx, domain.CollectionPasswordResets, email, &reset); err != nil {
		return domain.PasswordReset{}, err
	}
	return reset, nil
}

func (r *DocPasswordResetRepository) Delete(ctx context.Context, email string) error {
	return r.store.Delete(ctx, domain.CollectionPasswordResets, email)
}
