package repo

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shreyansh2912/prashnly-backend/internal/domain"
)

func TestCreateUser_DefaultsAndAPIKey(t *testing.T) {
	db := newTestDB(t, &domain.User{})
	ctx := context.Background()

	u, err := CreateUser(ctx, db, "Alice", "alice@example.com", "", 5000)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.Plan != domain.PlanBasic {
		t.Fatalf("plan = %q", u.Plan)
	}
	if u.APIKey == "" {
		t.Fatal("api key not generated")
	}

	got, err := GetUserByAPIKey(ctx, db, u.APIKey)
	if err != nil || got.ID != u.ID {
		t.Fatalf("by api key: %v %v", got, err)
	}
	if _, err := GetUserByAPIKey(ctx, db, "wrong"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("wrong key err = %v", err)
	}
}

func TestAddTokensUsed_AtomicUnderConcurrency(t *testing.T) {
	db := newTestDB(t, &domain.User{})
	ctx := context.Background()

	u, _ := CreateUser(ctx, db, "Bob", "bob@example.com", domain.PlanPremium, 100000)

	const workers = 8
	const perWorker = 10
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				// busy_timeout is not set on this test handle, so retry
				// transient SQLITE_BUSY instead of failing the test.
				for {
					if err := AddTokensUsed(ctx, db, u.ID, 3); err == nil {
						break
					}
				}
			}
		}()
	}
	wg.Wait()

	got, err := GetUser(ctx, db, u.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if want := int64(workers * perWorker * 3); got.TokensUsed != want {
		t.Fatalf("tokens_used = %d, want %d (lost updates)", got.TokensUsed, want)
	}
}

func TestUsageLedger_AppendAndList(t *testing.T) {
	db := newTestDB(t, &domain.User{}, &domain.UsageRecord{})
	ctx := context.Background()

	u, _ := CreateUser(ctx, db, "C", "c@example.com", domain.PlanBasic, 5000)
	for i := 0; i < 3; i++ {
		if _, err := CreateUsageRecord(ctx, db, u.ID, "doc-1", 12); err != nil {
			t.Fatalf("CreateUsageRecord: %v", err)
		}
	}

	records, err := ListUsageRecords(ctx, db, u.ID, 2)
	if err != nil {
		t.Fatalf("ListUsageRecords: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	for _, r := range records {
		if r.Tokens != 12 || r.DocumentID != "doc-1" {
			t.Fatalf("record = %+v", r)
		}
	}
}
