package middleware

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"github.com/corvid-systems/ftsengine/pkg/logger"
)

// RequestID assigns a request ID to every incoming request that doesn't
// already carry one in the X-Request-ID header, stores it on the request
// context via logger.WithRequestID so handlers' log lines pick it up
// automatically, and echoes it back on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = generateRequestID()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := logger.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func generateRequestID() string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(buf[:])
}
