package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("catalog", reg)

	m.CatalogError("Title exists")
	m.CatalogError("Title exists")
	m.TokensIssued.Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CatalogErrors.WithLabelValues("Title exists")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TokensIssued))

	n, err := testutil.GatherAndCount(reg, "catalog_catalog_errors_total", "catalog_tokens_issued_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics("catalog", prometheus.NewRegistry())

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/books/details/:title", func(ctx *gin.Context) { ctx.String(http.StatusOK, "x") })

	for _, path := range []string{"/books/details/a", "/books/details/b", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/books/details/:title", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "unmatched", "404")))
}
