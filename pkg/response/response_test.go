package response

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"anoa.com/unimarket/pkg/apperror"
	"anoa.com/unimarket/pkg/logger"
	"anoa.com/unimarket/pkg/ratelimiter"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestResponseErrorMapsSentinels(t *testing.T) {
	c, w := newContext()
	ResponseError(c, fmt.Errorf("product: %w", apperror.ErrForbidden))

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "product: forbidden", decode(t, w)["error"])
}

func TestResponseErrorHidesInternalErrors(t *testing.T) {
	logger.SetOutput(io.Discard)
	t.Cleanup(func() { logger.SetOutput(os.Stdout) })

	c, w := newContext()
	ResponseError(c, fmt.Errorf("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, apperror.ErrInternal.Error(), decode(t, w)["error"])
}

func TestResponseErrorSetsRetryAfter(t *testing.T) {
	c, w := newContext()
	ResponseError(c, &ratelimiter.RateLimitError{Message: "slow down", RetryAfter: 42 * time.Second})

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "42", w.Header().Get("Retry-After"))
	assert.Equal(t, "slow down", decode(t, w)["error"])
}

func TestGetIdentity(t *testing.T) {
	c, _ := newContext()
	_, err := GetIdentity(c)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
	assert.Empty(t, OptionalIdentity(c))

	c.Set(IdentityKey, "idp|ana")
	identity, err := GetIdentity(c)
	require.NoError(t, err)
	assert.Equal(t, "idp|ana", identity)
	assert.Equal(t, "idp|ana", OptionalIdentity(c))
}
