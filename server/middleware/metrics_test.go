package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/andydunstall/fanout/pkg/log"
)

func TestMetrics(t *testing.T) {
	gin.SetMode(gin.ReleaseMode)

	registry := prometheus.NewRegistry()
	router := gin.New()
	router.Use(NewLogger(log.NewNopLogger()))
	router.Use(NewMetrics(registry))
	router.GET("/health", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for _, path := range []string{"/health", "/health", "/missing"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	expected := `
# HELP fanout_admin_http_requests_total Admin HTTP requests.
# TYPE fanout_admin_http_requests_total counter
fanout_admin_http_requests_total{route="/health",status="200"} 2
fanout_admin_http_requests_total{route="unknown",status="404"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(
		registry,
		strings.NewReader(expected),
		"fanout_admin_http_requests_total",
	))
}
