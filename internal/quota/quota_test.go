package quota

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/shreyansh2912/prashnly-backend/internal/domain"
	"github.com/shreyansh2912/prashnly-backend/internal/repo"
)

func newQuotaDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("quota_test_%d.db", time.Now().UnixNano()))
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
	if err := db.AutoMigrate(&domain.User{}, &domain.UsageRecord{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestCheck_AtLimitRejected(t *testing.T) {
	e := New(nil)
	owner := &domain.User{Plan: domain.PlanBasic, TokensUsed: 5000, MaxTokens: 5000}
	if err := e.Check(owner); !errors.Is(err, ErrExceeded) {
		t.Fatalf("err = %v, want ErrExceeded", err)
	}
}

func TestCheck_OneBelowLimitAccepted(t *testing.T) {
	e := New(nil)
	owner := &domain.User{Plan: domain.PlanBasic, TokensUsed: 4999, MaxTokens: 5000}
	if err := e.Check(owner); err != nil {
		t.Fatalf("err = %v, want nil", err)
	}
}

func TestCheck_EnterpriseBypasses(t *testing.T) {
	e := New(nil)
	owner := &domain.User{Plan: domain.PlanEnterprise, TokensUsed: 1 << 40, MaxTokens: 0}
	if err := e.Check(owner); err != nil {
		t.Fatalf("enterprise plan rejected: %v", err)
	}
}

func TestEstimate_CeilDivision(t *testing.T) {
	e := New(nil)
	cases := []struct {
		q, a string
		want int64
	}{
		{"", "", 0},
		{"abc", "", 1},       // 3 chars → ceil(3/4) = 1
		{"abcd", "", 1},      // 4 chars
		{"abcd", "e", 2},     // 5 chars
		{strings.Repeat("x", 100), strings.Repeat("y", 3), 26}, // 103 chars
	}
	for _, tc := range cases {
		if got := e.Estimate(tc.q, tc.a); got != tc.want {
			t.Errorf("Estimate(%d+%d chars) = %d, want %d", len(tc.q), len(tc.a), got, tc.want)
		}
	}
}

func TestRecord_IncrementsCounterAndAppendsLedger(t *testing.T) {
	db := newQuotaDB(t)
	ctx := context.Background()

	owner, _ := repo.CreateUser(ctx, db, "A", "a@example.com", domain.PlanBasic, 5000)
	e := New(db)

	before := owner.TokensUsed
	tokens, err := e.Record(ctx, owner.ID, "doc-1", strings.Repeat("q", 40), strings.Repeat("a", 60))
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if tokens != 25 {
		t.Fatalf("tokens = %d, want 25", tokens)
	}

	after, _ := repo.GetUser(ctx, db, owner.ID)
	if after.TokensUsed != before+tokens {
		t.Fatalf("counter = %d, want %d", after.TokensUsed, before+tokens)
	}

	records, _ := repo.ListUsageRecords(ctx, db, owner.ID, 10)
	if len(records) != 1 || records[0].Tokens != tokens || records[0].DocumentID != "doc-1" {
		t.Fatalf("ledger = %+v", records)
	}
}

func TestRecord_UnknownOwnerFails(t *testing.T) {
	db := newQuotaDB(t)
	e := New(db)
	if _, err := e.Record(context.Background(), "missing", "d", "q", "a"); err == nil {
		t.Fatal("expected error for unknown owner")
	}
}
