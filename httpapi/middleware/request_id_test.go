package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestIDMintsOneWhenHeaderAbsent(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	c, _ := ginTestContext(w, req)

	var seen string
	RequestID()(c)
	seen = GetRequestID(c)

	require.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get("X-Request-ID"))
}

func TestRequestIDHonorsWellFormedIncomingHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "caller-supplied-id")
	w := httptest.NewRecorder()
	c, _ := ginTestContext(w, req)

	RequestID()(c)

	assert.Equal(t, "caller-supplied-id", GetRequestID(c))
	assert.Equal(t, "caller-supplied-id", w.Header().Get("X-Request-ID"))
}

func TestRequestIDReplacesOverlongIncomingHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", strings.Repeat("x", 65))
	w := httptest.NewRecorder()
	c, _ := ginTestContext(w, req)

	RequestID()(c)

	assert.NotEqual(t, strings.Repeat("x", 65), GetRequestID(c))
}

func TestGetRequestIDWithoutMiddlewareReturnsEmpty(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := ginTestContext(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "", GetRequestID(c))
}
