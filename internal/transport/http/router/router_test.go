package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xopay/notify-service/internal/config"
	"github.com/xopay/notify-service/internal/domain"
	"github.com/xopay/notify-service/internal/security"
	"github.com/xopay/notify-service/internal/transport/http/handlers"
	authmw "github.com/xopay/notify-service/internal/transport/http/middleware"
)

type stubStore struct{}

func (s *stubStore) Create(ctx context.Context, n *domain.NotifyRule) error { return nil }
func (s *stubStore) GetByID(ctx context.Context, id string) (*domain.NotifyRule, error) {
	return nil, domain.ErrNotFound("notification not found")
}
func (s *stubStore) List(ctx context.Context) ([]domain.NotifyRule, error) {
	return []domain.NotifyRule{}, nil
}
func (s *stubStore) Update(ctx context.Context, n *domain.NotifyRule) error { return nil }
func (s *stubStore) Delete(ctx context.Context, id string) error            { return nil }

type stubReloader struct{}

func (s *stubReloader) Reload(ctx context.Context) error { return nil }

func newTestRouter(t *testing.T) (http.Handler, *security.Signer) {
	t.Helper()

	signer, err := security.NewSigner("test-key", "HS512", "xopay.notify", 30*time.Minute)
	require.NoError(t, err)

	h := handlers.NewRulesHandler(&stubStore{}, &stubReloader{}, zerolog.Nop())
	z := handlers.NewHealthHandler()
	cfg := &config.Config{Env: "dev", RLEnabled: false}

	return New(h, z, authmw.NewAuth(signer), cfg), signer
}

func TestRouterHealthz(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "ok")
}

func TestRouterMetrics(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRouterProtectsNotifications(t *testing.T) {
	r, signer := newTestRouter(t)

	t.Run("rejects_anonymous", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/notify/dev/notifications", nil)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("admits_system_token", func(t *testing.T) {
		token, err := signer.SystemToken()
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/notify/dev/notifications", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "notifications")
	})
}

func TestRouterCommonHeaders(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rr.Header().Get("X-Request-Id"))
}

func TestRouterEchoesRequestID(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "req-42")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, "req-42", rr.Header().Get("X-Request-Id"))
}
