package http

import (
	"net/http"

	"github.com/rs/cors"
)

// WithCORS envuelve el handler con la política CORS del frontend.
func WithCORS(next http.Handler, allowedOrigins []string) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"OPTIONS", "GET", "POST", "PUT"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}).Handler(next)
}
