// Package migrations embebe el esquema SQL de postgres aplicado con goose.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
