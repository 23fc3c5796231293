package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xopay/notify-service/internal/security"
)

const testKey = "test-key"

// httptest requests carry this peer address.
const testPeerIP = "192.0.2.1"

func newTestAuth(t *testing.T) *AuthMiddleware {
	t.Helper()
	signer, err := security.NewSigner(testKey, "HS512", "xopay.notify", 30*time.Minute)
	require.NoError(t, err)
	return NewAuth(signer)
}

func mintToken(t *testing.T, claims *security.Claims) string {
	t.Helper()
	if claims.ExpiresAt == nil {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().UTC().Add(time.Minute))
	}
	raw, err := jwt.NewWithClaims(jwt.GetSigningMethod("HS512"), claims).SignedString([]byte(testKey))
	require.NoError(t, err)
	return raw
}

func serve(a *AuthMiddleware, token string, groups ...string) *httptest.ResponseRecorder {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("user=" + UserID(r)))
	})

	req := httptest.NewRequest(http.MethodGet, "/notifications", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	a.Require(groups...)(next).ServeHTTP(rr, req)
	return rr
}

func TestRequireSystemToken(t *testing.T) {
	a := newTestAuth(t)
	token, err := a.signer.SystemToken()
	require.NoError(t, err)

	rr := serve(a, token, "admin", "system")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "user=xopay.notify", rr.Body.String())
}

func TestRequireRejectsMissingToken(t *testing.T) {
	a := newTestAuth(t)

	rr := serve(a, "", "admin")

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "token not found")
}

func TestRequireRejectsGarbageToken(t *testing.T) {
	a := newTestAuth(t)

	rr := serve(a, "not.a.token", "admin")

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "wrong token")
}

func TestRequireRejectsExpiredToken(t *testing.T) {
	a := newTestAuth(t)
	token := mintToken(t, &security.Claims{
		UserID: "u-1",
		Groups: []string{"admin"},
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().UTC().Add(-2 * time.Minute)),
		},
	})

	rr := serve(a, token, "admin")

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "token expired")
}

func TestRequireRejectsWrongGroup(t *testing.T) {
	a := newTestAuth(t)
	token := mintToken(t, &security.Claims{UserID: "u-1", Groups: []string{"client"}})

	rr := serve(a, token, "admin", "system")

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, rr.Body.String(), "request forbidden for such role")
}

func TestRequireAdminToken(t *testing.T) {
	a := newTestAuth(t)
	live := time.Now().UTC().Add(time.Hour).Unix()

	t.Run("valid_session_and_address", func(t *testing.T) {
		token := mintToken(t, &security.Claims{
			UserID:     "admin-1",
			Groups:     []string{"admin"},
			SessionExp: live,
			IPAddr:     testPeerIP,
		})

		rr := serve(a, token, "admin", "system")

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "user=admin-1", rr.Body.String())
	})

	t.Run("expired_session", func(t *testing.T) {
		token := mintToken(t, &security.Claims{
			UserID:     "admin-1",
			Groups:     []string{"admin"},
			SessionExp: time.Now().UTC().Add(-time.Hour).Unix(),
			IPAddr:     testPeerIP,
		})

		rr := serve(a, token, "admin")

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Contains(t, rr.Body.String(), "session expired")
	})

	t.Run("address_mismatch", func(t *testing.T) {
		token := mintToken(t, &security.Claims{
			UserID:     "admin-1",
			Groups:     []string{"admin"},
			SessionExp: live,
			IPAddr:     "10.1.2.3",
		})

		rr := serve(a, token, "admin")

		assert.Equal(t, http.StatusForbidden, rr.Code)
		assert.Contains(t, rr.Body.String(), "request forbidden from another network")
	})
}

func TestUserIDOutsideRequire(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, UserID(req))
}
