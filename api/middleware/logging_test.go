package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newTestRouter(buf *bytes.Buffer, options ...LoggerOption) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewLogging(slog.New(slog.NewTextHandler(buf, nil)), options...))
	r.GET("/liveness", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/test-cases/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/dashboard/summary", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestNewLogging(t *testing.T) {
	var buf bytes.Buffer
	r := newTestRouter(&buf, WithIgnorePath("/liveness"))

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/liveness", nil))
	assert.Empty(t, buf.String())

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/test-cases/abc", nil))
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "status=404")
	assert.Contains(t, buf.String(), "route=/test-cases/:id")
	assert.Contains(t, buf.String(), "actor=anonymous")
}

func TestNewLogging_onlyErrors(t *testing.T) {
	var buf bytes.Buffer
	r := newTestRouter(&buf, WithRequestLoggingLevel("errors"))

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/dashboard/summary", nil))
	assert.Empty(t, buf.String())

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/test-cases/abc", nil))
	assert.Contains(t, buf.String(), "status=404")
}
