package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/upb/tenant-platform/models"
)

func TestIdentityContext(t *testing.T) {
	assert.Nil(t, GetIdentityFromContext(context.Background()))

	identity := newIdentity(models.RoleUser)
	ctx := WithIdentity(context.Background(), identity)
	assert.Equal(t, identity, GetIdentityFromContext(ctx))
}

func TestRequestMeta(t *testing.T) {
	var got models.RequestMeta
	handler := chimw.RequestID(RequestMeta(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = models.RequestMetaFromContext(r.Context())
		assert.Equal(t, got.RequestID, GetRequestIDFromContext(r.Context()))
	})))

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.RemoteAddr = "192.0.2.4:41234"
	req.Header.Set("User-Agent", "curl/8.0")
	req.Header.Set("X-Request-Id", "req-123")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "req-123", got.RequestID)
	assert.Equal(t, "192.0.2.4", got.IPAddress)
	assert.Equal(t, "curl/8.0", got.UserAgent)
}
