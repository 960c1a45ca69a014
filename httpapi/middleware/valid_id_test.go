package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequireValidPIDAcceptsNumericParam(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/processes/42", nil)
	w := httptest.NewRecorder()
	c, _ := ginTestContext(w, req)
	c.Params = gin.Params{{Key: "pid", Value: "42"}}

	RequireValidPID()(c)

	require.NotEqual(t, http.StatusBadRequest, w.Code)
	v, ok := c.Get(PIDParamKey)
	require.True(t, ok)
	assert.Equal(t, uint32(42), v)
}

func TestRequireValidPIDRejectsNonNumericParam(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/processes/abc", nil)
	w := httptest.NewRecorder()
	c, _ := ginTestContext(w, req)
	c.Params = gin.Params{{Key: "pid", Value: "abc"}}

	RequireValidPID()(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRequireValidPIDRejectsNegativeParam(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/processes/-1", nil)
	w := httptest.NewRecorder()
	c, _ := ginTestContext(w, req)
	c.Params = gin.Params{{Key: "pid", Value: "-1"}}

	RequireValidPID()(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
