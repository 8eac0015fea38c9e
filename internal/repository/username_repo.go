package repository

import (
	"context"

	"dado-auth/internal/domain"
)

// UsernameRepository reserva nombres de usuario con create-if-absent.
type UsernameRepository interface {
	Reserve(ctx context.Context, reservation domain.UsernameReservation) error
	Get(ctx context.Context, username string) (domain.UsernameReservation, error)
	// ReleaseIfOwner borra la reserva sólo si sigue perteneciendo a owner.
	ReleaseIfOwner(ctx context.Context, username, owner string) (bool, error)
}

type DocUsernameRepository struct {
	store DocumentStore
}

func NewUsernameRepository(store DocumentStore) *DocUsernameRepository {
	return &DocUsernameRepository{store: store}
}

// Reserve devuelve ErrAlreadyExists si el nombre ya tiene dueño.
func (r *DocUsernameRepository) Reserve(ctx context.Context, reservation domain.UsernameReservation) error {
	return r.store.Create(ctx, domain.CollectionUsernames, reservation.Username, reservation)
}

func (r *DocUsernameRepository) Get(ctx context.Context, username string) (domain.UsernameReservation, error) {
	var reservation domain.UsernameReservation
	if err := r.store.Get(ctx, domain.CollectionUsernames, username, &reservation); err != nil {
		return domain.UsernameReservation{}, err
	}
	return reservation, nil
}

func (r *DocUsernameRepository) ReleaseIfOwner(ctx context.Context, username, owner string) (bool, error) {
	return r.store.DeleteIf(ctx, domain.CollectionUsernames, username, "owner", owner)
}
