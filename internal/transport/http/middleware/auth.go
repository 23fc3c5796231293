package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/xopay/notify-service/internal/security"
	"github.com/xopay/notify-service/internal/transport/http/response"
)

type ctxKey string

const ctxUserID ctxKey = "user_id"

type authError struct {
	status  int
	code    string
	message string
}

// AuthMiddleware verifies the shared XOPay service tokens.
type AuthMiddleware struct {
	signer *security.Signer
	now    func() time.Time
}

func NewAuth(signer *security.Signer) *AuthMiddleware {
	return &AuthMiddleware{signer: signer, now: time.Now}
}

// Require admits requests whose token carries at least one of the given
// groups. Non-system tokens additionally pass the session expiry and source
// address checks; system tokens skip both.
func (a *AuthMiddleware) Require(groups ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, aerr := a.check(r, groups)
			if aerr != nil {
				zlog.Warn().Str("path", r.URL.Path).Str("reason", aerr.message).Msg("request rejected")
				response.Fail(w, aerr.status, aerr.code, aerr.message, nil, response.RequestIDFromRequest(r))
				return
			}

			ctx := context.WithValue(r.Context(), ctxUserID, claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (a *AuthMiddleware) check(r *http.Request, groups []string) (*security.Claims, *authError) {
	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, &authError{http.StatusUnauthorized, "unauthorized", "token not found"}
	}

	claims, err := a.signer.Parse(parts[1])
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) {
			return nil, &authError{http.StatusUnauthorized, "unauthorized", "token expired"}
		}
		return nil, &authError{http.StatusUnauthorized, "unauthorized", "wrong token"}
	}

	if !claims.InAnyGroup(groups...) {
		return nil, &authError{http.StatusForbidden, "forbidden", "request forbidden for such role"}
	}

	if !claims.InGroup("system") {
		if claims.SessionExp < a.now().UTC().Unix() {
			return nil, &authError{http.StatusUnauthorized, "unauthorized", "session expired"}
		}
		if claims.IPAddr != remoteIP(r) {
			return nil, &authError{http.StatusForbidden, "forbidden", "request forbidden from another network"}
		}
	}

	return claims, nil
}

// UserID reports the authenticated user id, empty outside Require.
func UserID(r *http.Request) string {
	if v, ok := r.Context().Value(ctxUserID).(string); ok {
		return v
	}
	return ""
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
