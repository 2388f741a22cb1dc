package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

// CORS wraps go-chi/cors. Origins is the comma separated
// server.allowed_origins value; trailing slashes are dropped so
// "https://app.example.com/" matches the browser's Origin header.
func CORS(origins string) func(http.Handler) http.Handler {
	var allowed []string
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			allowed = append(allowed, o)
		}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Trace-ID"},
		AllowCredentials: true,
		MaxAge:           600,
	})
}
