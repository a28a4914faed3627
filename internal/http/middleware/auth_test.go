package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/shreyansh2912/prashnly-backend/internal/domain"
	"github.com/shreyansh2912/prashnly-backend/internal/repo"
)

func newAuthDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("auth_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := db.AutoMigrate(&domain.User{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestRequireAPIKey(t *testing.T) {
	db := newAuthDB(t)
	u, err := repo.CreateUser(context.Background(), db, "A", "a@example.com", domain.PlanBasic, 5000)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequireAPIKey(db))
	r.GET("/who", func(c *gin.Context) {
		c.String(http.StatusOK, UserFrom(c).ID)
	})

	// valid key resolves the user
	req := httptest.NewRequest(http.MethodGet, "/who", nil)
	req.Header.Set(HeaderAPIKey, u.APIKey)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Body.String() != u.ID {
		t.Fatalf("valid key: %d %q", w.Code, w.Body.String())
	}

	// missing key is rejected
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/who", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("missing key status = %d", w.Code)
	}

	// unknown key is rejected
	req = httptest.NewRequest(http.MethodGet, "/who", nil)
	req.Header.Set(HeaderAPIKey, "nope")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unknown key status = %d", w.Code)
	}
}

func TestOptionalAPIKey(t *testing.T) {
	db := newAuthDB(t)
	u, _ := repo.CreateUser(context.Background(), db, "B", "b@example.com", domain.PlanBasic, 5000)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(OptionalAPIKey(db))
	r.GET("/who", func(c *gin.Context) {
		if user := UserFrom(c); user != nil {
			c.String(http.StatusOK, user.ID)
			return
		}
		c.String(http.StatusOK, "guest")
	})

	// no key continues as guest
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/who", nil))
	if w.Body.String() != "guest" {
		t.Fatalf("anonymous = %q", w.Body.String())
	}

	// valid key resolves
	req := httptest.NewRequest(http.MethodGet, "/who", nil)
	req.Header.Set(HeaderAPIKey, u.APIKey)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Body.String() != u.ID {
		t.Fatalf("authenticated = %q", w.Body.String())
	}

	// a bad key is a hard failure, not a guest downgrade
	req = httptest.NewRequest(http.MethodGet, "/who", nil)
	req.Header.Set(HeaderAPIKey, "typo")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad key status = %d", w.Code)
	}
}
