package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/shreyansh2912/prashnly-backend/internal/config"
	"github.com/shreyansh2912/prashnly-backend/internal/domain"
	"github.com/shreyansh2912/prashnly-backend/internal/generation"
	"github.com/shreyansh2912/prashnly-backend/internal/notify"
	"github.com/shreyansh2912/prashnly-backend/internal/repo"
	"github.com/shreyansh2912/prashnly-backend/internal/vectorindex/memory"
)

type stubEmbedder struct{}

func (stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (stubEmbedder) Dimension() int { return 3 }

type stubGenerator struct{}

func (stubGenerator) Generate(context.Context, string, []generation.Turn, string) (string, error) {
	return "stub answer", nil
}

type stubQueue struct{}

func (stubQueue) Enqueue(*domain.Document) error { return nil }

func newRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("router_test_%d.db", time.Now().UnixNano()))
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
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	cfg := config.Config{
		APIBasePath: "/api/v1",
		UploadDir:   t.TempDir(),
		MaxUpload:   1 << 20,
		RateRPS:     1000,
		RateBurst:   1000,
		TopK:        5,
	}

	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, Dependencies{
		DB:        db,
		Index:     memory.New(),
		Embedder:  stubEmbedder{},
		Generator: stubGenerator{},
		Queue:     stubQueue{},
		Hub:       notify.NewHub(nil),
	}, cfg)
	return r, db
}

func TestRouter_Health(t *testing.T) {
	r, _ := newRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestRouter_UnknownRouteEnvelope(t *testing.T) {
	r, _ := newRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "not_found") {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestRouter_OwnerSurfaceRequiresKey(t *testing.T) {
	r, _ := newRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestRouter_EndToEndChatOverOwnedDocument(t *testing.T) {
	r, db := newRouter(t)
	ctx := context.Background()

	u, err := repo.CreateUser(ctx, db, "A", "a@example.com", domain.PlanBasic, 5000)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	doc, err := repo.CreateDocument(ctx, db, &domain.Document{
		UserID: u.ID, Title: "t", OriginalName: "t.txt",
		MimeType: "text/plain", Size: 1, StoragePath: "unused",
	})
	if err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	if err := repo.MarkDocumentCompleted(ctx, db, doc.ID, "tok-router", nil); err != nil {
		t.Fatalf("MarkDocumentCompleted: %v", err)
	}

	body := fmt.Sprintf(`{"question":"hello?","document_id":%q}`, doc.ID)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", u.APIKey)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "stub answer") {
		t.Fatalf("body = %s", w.Body.String())
	}
}
