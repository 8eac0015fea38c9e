package repository

import (
	"context"
	"errors"
)

var (
	ErrNotFound      = errors.New("document not found")
	ErrAlreadyExists = errors.New("document already exists")
)

// DocumentStore define el contrato mínimo sobre colecciones de documentos con clave.
//
// Los documentos se serializan con sus tags json (postgres, sqlite, memoria) o bson
// (mongo); ambos usan los mismos nombres de campo.
type DocumentStore interface {
	// Get decodifica el documento en out o devuelve ErrNotFound.
	Get(ctx context.Context, collection, key string, out any) error
	// Put crea o reemplaza el documento completo.
	Put(ctx context.Context, collection, key string, doc any) error
	// Create inserta sólo si la clave no existe; si existe devuelve ErrAlreadyExists.
	Create(ctx context.Context, collection, key string, doc any) error
	// Update fusiona fields en el documento existente o devuelve ErrNotFound.
	Update(ctx context.Context, collection, key string, fields map[string]any) error
	// Delete elimina el documento; borrar una clave inexistente no es error.
	Delete(ctx context.Context, collection, key string) error
	// DeleteIf elimina el documento sólo si field == value; indica si borró algo.
	DeleteIf(ctx context.Context, collection, key, field, value string) (bool, error)
	// ExistsByField indica si algún documento tiene field == value.
	ExistsByField(ctx context.Context, collection, field, value string) (bool, error)
	Ping(ctx context.Context) error
}
