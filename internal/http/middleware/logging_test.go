package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func newTestEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), Logger(), Recovery())
	return r
}

func TestRequestID_GeneratedAndEchoed(t *testing.T) {
	r := newTestEngine()
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("request id not generated")
	}
}

func TestRequestID_Propagated(t *testing.T) {
	r := newTestEngine()
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "client-supplied")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "client-supplied" {
		t.Fatalf("request id = %q", got)
	}
}

func TestRecovery_PanicBecomesJSON500(t *testing.T) {
	r := newTestEngine()
	r.GET("/boom", func(*gin.Context) { panic("kaboom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "internal_error") {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestRedactQuery_MasksCredentials(t *testing.T) {
	got := redactQuery("api_key=secret123&page=2")
	if strings.Contains(got, "secret123") {
		t.Fatalf("credential leaked: %q", got)
	}
	if !strings.Contains(got, "page=2") {
		t.Fatalf("benign params dropped: %q", got)
	}
	if redactQuery("page=2") != "page=2" {
		t.Fatal("benign query was rewritten")
	}
}

func TestLoggerFrom_FallbackNeverNil(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if LoggerFrom(c) == nil {
		t.Fatal("LoggerFrom returned nil")
	}
}
