package audiocast

import (
	"log/slog"
	"net/http"
	"strings"
)

// AllowOrigins returns middleware that enforces an origin allow-list on the
// top-level app routes. Requests without an Origin header (same-origin
// navigation, curl) pass through untouched. The playback routes are not
// behind this middleware; they answer with a wildcard instead, since players
// fetch playlists and segments directly and often cross-origin.
func AllowOrigins(origins []string, log *slog.Logger) func(next http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		origin = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(origin), "/"))
		if origin != "" {
			allowed[origin] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			if _, ok := allowed[strings.ToLower(strings.TrimSuffix(origin, "/"))]; !ok {
				if log != nil {
					log.Warn("blocked origin",
						slog.String("origin", origin),
						slog.String("path", r.URL.Path))
				}
				http.Error(w, "origin not allowed", http.StatusForbidden)
				return
			}

			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
