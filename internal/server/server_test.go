package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"anoa.com/unimarket/internal/config"
	"anoa.com/unimarket/internal/middleware"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	sqlDB, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	cfg := &config.Config{
		AppEnv:                      "test",
		Port:                        "0",
		AllowedOrigins:              []string{"http://localhost:3000"},
		JWTSecret:                   "test-secret",
		ViewSyncSchedule:            "@every 1m",
		ReputationReconcileSchedule: "30 3 * * *",
	}

	srv, err := NewServer(cfg, &Container{DB: db})
	require.NoError(t, err)
	return srv
}

func get(srv *Server, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)

	w := get(srv, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"database":"ok"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	w := get(srv, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "unimarket_")
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/api/students/me", "/api/favorites", "/api/notifications", "/api/students/ana/can-rate"} {
		assert.Equal(t, http.StatusUnauthorized, get(srv, path, "").Code, path)
	}
}

func TestAuthenticatedRequestReachesHandler(t *testing.T) {
	srv := newTestServer(t)

	token, err := middleware.IssueToken("test-secret", "", "idp|ana", time.Hour)
	require.NoError(t, err)

	// The handler rejects the malformed id before touching any service.
	w := get(srv, "/api/products/not-a-uuid", token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSchedulerRegistersJobs(t *testing.T) {
	srv := newTestServer(t)
	assert.Equal(t, []string{"reputation-reconcile"}, srv.scheduler.JobNames())
}
