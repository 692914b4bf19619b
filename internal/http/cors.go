package http

import (
	stdhttp "net/http"
	"slices"
	"strings"
)

// corsMiddleware answers preflight requests and exposes the list headers to the admin
// frontend. Only configured origins are echoed back; "*" allows any origin.
func corsMiddleware(allowedOrigins []string) func(stdhttp.Handler) stdhttp.Handler {
	allowAny := slices.Contains(allowedOrigins, "*")

	return func(next stdhttp.Handler) stdhttp.Handler {
		return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if origin != "" && (allowAny || slices.Contains(allowedOrigins, origin)) {
				header := w.Header()
				header.Set("Access-Control-Allow-Origin", origin)
				header.Add("Vary", "Origin")
				header.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
				header.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
				header.Set("Access-Control-Expose-Headers", "X-Total-Count, X-Request-ID")
				header.Set("Access-Control-Allow-Credentials", "true")
				header.Set("Access-Control-Max-Age", "86400")
			}

			if r.Method == stdhttp.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(stdhttp.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
