package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func rateLimitedEngine(rps float64, burst int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	rl := NewRateLimiter(rps, burst, KeyByUserOrIP())
	r.Use(rl.Handler())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestRateLimiter_BurstThenReject(t *testing.T) {
	r := rateLimitedEngine(0.0001, 2)

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, w.Code)
		}
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatal("Retry-After not set")
	}
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	rl := NewRateLimiter(0.0001, 1, func(c *gin.Context) string {
		return c.GetHeader("X-Bucket")
	})
	r.Use(rl.Handler())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	hit := func(bucket string) int {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("X-Bucket", bucket)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	if hit("a") != http.StatusOK {
		t.Fatal("first request for bucket a rejected")
	}
	if hit("a") != http.StatusTooManyRequests {
		t.Fatal("bucket a not limited")
	}
	if hit("b") != http.StatusOK {
		t.Fatal("bucket b throttled by bucket a's usage")
	}
}

func TestKeyByUserOrIP_PrefersUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	fn := KeyByUserOrIP()
	if key := fn(c); key[:3] != "ip:" {
		t.Fatalf("anonymous key = %q", key)
	}
	c.Set("userID", "u-1")
	if key := fn(c); key != "user:u-1" {
		t.Fatalf("user key = %q", key)
	}
}
