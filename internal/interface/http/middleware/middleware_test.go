package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiebiao/seckill/pkg/jwt"
	"github.com/xiebiao/seckill/pkg/logger"
	"github.com/xiebiao/seckill/pkg/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/rid", func(c *gin.Context) {
		c.String(http.StatusOK, logger.RequestIDFromContext(c.Request.Context()))
	})

	t.Run("透传", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/rid", nil)
		req.Header.Set("X-Request-ID", "req-123")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))
		assert.Equal(t, "req-123", w.Body.String())
	})

	t.Run("生成", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/rid", nil))

		rid := w.Header().Get("X-Request-ID")
		assert.Len(t, rid, 36)
		assert.Equal(t, rid, w.Body.String())
	})
}

func TestAuthMiddleware(t *testing.T) {
	manager := jwt.NewManager("test-secret", time.Hour)
	auth := NewAuthMiddleware(manager)

	r := gin.New()
	r.GET("/me", auth.RequireAuth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": MustGetUserID(c), "role": GetRole(c)})
	})
	r.GET("/admin", auth.RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	userToken, err := manager.GenerateToken(7, jwt.RoleUser)
	require.NoError(t, err)
	adminToken, err := manager.GenerateToken(1, jwt.RoleAdmin)
	require.NoError(t, err)
	otherToken, err := jwt.NewManager("other-secret", time.Hour).GenerateToken(7, jwt.RoleUser)
	require.NoError(t, err)

	tests := []struct {
		name       string
		path       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{"缺少Token", "/me", "", http.StatusUnauthorized, `"code":40100`},
		{"格式错误", "/me", "Token " + userToken, http.StatusUnauthorized, `"code":40101`},
		{"签名不匹配", "/me", "Bearer " + otherToken, http.StatusUnauthorized, `"code":40101`},
		{"普通用户", "/me", "Bearer " + userToken, http.StatusOK, `"user_id":7`},
		{"普通用户访问管理接口", "/admin", "Bearer " + userToken, http.StatusForbidden, `"code":40104`},
		{"管理员", "/admin", "Bearer " + adminToken, http.StatusNoContent, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}

func TestGetUserID_NotLoggedIn(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Equal(t, uint(0), GetUserID(c))
	assert.Panics(t, func() { MustGetUserID(c) })
}

func TestMetrics_UsesRouteTemplate(t *testing.T) {
	r := gin.New()
	r.Use(Metrics(), AccessLog())
	r.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	counter := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/items/:id", "200")
	unmatched := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "404")
	before, beforeUnmatched := testutil.ToFloat64(counter), testutil.ToFloat64(unmatched)

	for _, path := range []string{"/items/1", "/items/2", "/nothing"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, before+2, testutil.ToFloat64(counter))
	assert.Equal(t, beforeUnmatched+1, testutil.ToFloat64(unmatched))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.HTTPRequestsInProgress))
}
