package repo

import (
	"context"
	"fmt"
	"testing"

	"github.com/shreyansh2912/prashnly-backend/internal/domain"
)

func TestCreateThread_GuestAllowed(t *testing.T) {
	db := newTestDB(t, &domain.Document{}, &domain.ChatThread{})
	ctx := context.Background()

	d, _ := CreateDocument(ctx, db, newDoc("u1"))
	th, err := CreateThread(ctx, db, "", d.ID, "")
	if err != nil {
		t.Fatalf("CreateThread: %v", err)
	}
	if th.UserID != "" {
		t.Fatalf("guest thread has user %q", th.UserID)
	}
	if th.Title != "New conversation" {
		t.Fatalf("default title = %q", th.Title)
	}
}

func TestMessages_OrderAndCount(t *testing.T) {
	db := newTestDB(t, &domain.Document{}, &domain.ChatThread{}, &domain.Message{})
	ctx := context.Background()

	d, _ := CreateDocument(ctx, db, newDoc("u1"))
	th, _ := CreateThread(ctx, db, "u1", d.ID, "t")

	for i := 0; i < 3; i++ {
		if _, err := CreateMessage(db, th.ID, domain.RoleUser, fmt.Sprintf("q%d", i)); err != nil {
			t.Fatalf("user msg %d: %v", i, err)
		}
		if _, err := CreateMessage(db, th.ID, domain.RoleAssistant, fmt.Sprintf("a%d", i)); err != nil {
			t.Fatalf("assistant msg %d: %v", i, err)
		}
	}

	msgs, err := ListMessages(db, th.ID, 0)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 6 {
		t.Fatalf("messages = %d, want 6", len(msgs))
	}
	for i, m := range msgs {
		wantRole := domain.RoleUser
		if i%2 == 1 {
			wantRole = domain.RoleAssistant
		}
		if m.Role != wantRole {
			t.Fatalf("message %d role = %s, want %s", i, m.Role, wantRole)
		}
	}

	total, err := CountMessages(db, th.ID)
	if err != nil || total != 6 {
		t.Fatalf("count = %d err = %v", total, err)
	}
}

func TestListRecentMessages_WindowChronological(t *testing.T) {
	db := newTestDB(t, &domain.Document{}, &domain.ChatThread{}, &domain.Message{})
	ctx := context.Background()

	d, _ := CreateDocument(ctx, db, newDoc("u1"))
	th, _ := CreateThread(ctx, db, "u1", d.ID, "t")

	for i := 0; i < 8; i++ {
		_, _ = CreateMessage(db, th.ID, domain.RoleUser, fmt.Sprintf("m%d", i))
	}

	recent, err := ListRecentMessages(db, th.ID, 4)
	if err != nil {
		t.Fatalf("ListRecentMessages: %v", err)
	}
	if len(recent) != 4 {
		t.Fatalf("window = %d, want 4", len(recent))
	}
	for i, m := range recent {
		want := fmt.Sprintf("m%d", 4+i)
		if m.Content != want {
			t.Fatalf("recent[%d] = %q, want %q", i, m.Content, want)
		}
	}

	none, err := ListRecentMessages(db, th.ID, 0)
	if err != nil || none != nil {
		t.Fatalf("zero window: %v %v", none, err)
	}
}

func TestListThreads_IncludesGuestThreadsOnOwnDocs(t *testing.T) {
	db := newTestDB(t, &domain.Document{}, &domain.ChatThread{})
	ctx := context.Background()

	mine, _ := CreateDocument(ctx, db, newDoc("u1"))
	other, _ := CreateDocument(ctx, db, newDoc("u2"))

	_, _ = CreateThread(ctx, db, "u1", mine.ID, "own thread")
	_, _ = CreateThread(ctx, db, "", mine.ID, "guest on my doc")
	_, _ = CreateThread(ctx, db, "u2", other.ID, "someone else")

	got, err := ListThreads(ctx, db, "u1")
	if err != nil {
		t.Fatalf("ListThreads: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("threads = %d, want 2", len(got))
	}
}
