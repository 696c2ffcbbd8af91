package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"shop_checkout/internal/model"
	"shop_checkout/pkg/metrics"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	rd "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

func whoami(c *gin.Context) {
	who, _ := IdentityFrom(c)
	c.JSON(http.StatusOK, gin.H{"userId": who.UserID, "role": who.Role})
}

func do(r http.Handler, userID, role string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if userID != "" {
		req.Header.Set(HeaderUserID, userID)
	}
	if role != "" {
		req.Header.Set(HeaderUserRole, role)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthenticate(t *testing.T) {
	r := gin.New()
	r.GET("/x", Authenticate(), whoami)

	cases := []struct {
		name, uid, role string
		code            int
		body            string
	}{
		{"missing", "", "", http.StatusUnauthorized, `"status":"error"`},
		{"not a number", "abc", "", http.StatusUnauthorized, "Authentication required"},
		{"non positive", "0", "", http.StatusUnauthorized, "Authentication required"},
		{"unknown role", "5", "root", http.StatusUnauthorized, "Invalid user role"},
		{"default role", "5", "", http.StatusOK, `"role":"user"`},
		{"case insensitive role", "5", "Admin", http.StatusOK, `"role":"admin"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(r, tc.uid, tc.role)
			assert.Equal(t, tc.code, w.Code)
			assert.Contains(t, w.Body.String(), tc.body)
		})
	}
}

func TestRequireRole(t *testing.T) {
	r := gin.New()
	r.GET("/x", Authenticate(), RequireRole(model.RoleSeller, model.RoleAdmin), whoami)

	assert.Equal(t, http.StatusForbidden, do(r, "1", "user").Code)
	assert.Equal(t, http.StatusOK, do(r, "1", "seller").Code)
	assert.Equal(t, http.StatusOK, do(r, "1", "admin").Code)

	bare := gin.New()
	bare.GET("/x", RequireRole(model.RoleAdmin), whoami)
	assert.Equal(t, http.StatusUnauthorized, do(bare, "1", "admin").Code)
}

func TestRedisRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := rd.NewClient(&rd.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	r := gin.New()
	r.GET("/x", Authenticate(), RedisRateLimit(rdb, "orders", 2, time.Minute), whoami)

	assert.Equal(t, http.StatusOK, do(r, "1", "").Code)
	assert.Equal(t, http.StatusOK, do(r, "1", "").Code)
	w := do(r, "1", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, do(r, "2", "").Code, "limits are per user")

	t.Run("redis outage fails open", func(t *testing.T) {
		mr.Close()
		assert.Equal(t, http.StatusOK, do(r, "1", "").Code)
	})
}

func TestMetricsMiddleware(t *testing.T) {
	m := metrics.New("test")
	r := gin.New()
	r.Use(Metrics(m))
	r.GET("/x", whoami)

	do(r, "", "")
	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("/x", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("unmatched", "404")))
}
