package middleware

import (
	"net/http"

	"github.com/google/uuid"
)

const HeaderXRequestID = "X-Request-Id"

// RequestID echoes an inbound request id or mints one, on both the request
// (for downstream middleware) and the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(HeaderXRequestID)
		if reqID == "" {
			reqID = uuid.NewString()
			r.Header.Set(HeaderXRequestID, reqID)
		}

		w.Header().Set(HeaderXRequestID, reqID)
		next.ServeHTTP(w, r)
	})
}
