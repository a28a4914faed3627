// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for chat threads
// and their messages.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shreyansh2912/prashnly-backend/internal/domain"
)

// CreateThread inserts a new chat thread bound to documentID. userID may be
// empty for guest sessions entered through a share link.
func CreateThread(ctx context.Context, db *gorm.DB, userID, documentID, title string) (*domain.ChatThread, error) {
	if title == "" {
		title = "New conversation"
	}
	t := &domain.ChatThread{
		ID:         uuid.NewString(),
		UserID:     userID,
		DocumentID: documentID,
		Title:      title,
		CreatedAt:  time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(t).Error; err != nil {
		return nil, err
	}
	return t, nil
}

// GetThread fetches a thread by id.
func GetThread(ctx context.Context, db *gorm.DB, id string) (*domain.ChatThread, error) {
	var t domain.ChatThread
	if err := db.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// ListThreads returns threads visible to userID: the user's own threads plus
// guest threads against the user's documents, most recently updated first.
func ListThreads(ctx context.Context, db *gorm.DB, userID string) ([]domain.ChatThread, error) {
	var out []domain.ChatThread
	err := db.WithContext(ctx).
		Where("user_id = ? OR document_id IN (?)",
			userID,
			db.Session(&gorm.Session{NewDB: true}).
				Model(&domain.Document{}).
				Select("id").
				Where("user_id = ?", userID),
		).
		Order("updated_at desc").
		Find(&out).Error
	return out, err
}

// TouchThread bumps a thread's last-update timestamp.
func TouchThread(db *gorm.DB, id string) error {
	return db.Model(&domain.ChatThread{}).
		Where("id = ?", id).
		Update("updated_at", time.Now().UTC()).Error
}

// UpdateThreadTitle renames a thread.
func UpdateThreadTitle(db *gorm.DB, id, title string) error {
	return db.Model(&domain.ChatThread{}).
		Where("id = ?", id).
		Update("title", title).Error
}

// CreateMessage appends one immutable message to a thread. Callers persist
// the user/assistant pair of a chat turn inside a single transaction.
func CreateMessage(db *gorm.DB, threadID, role, content string) (*domain.Message, error) {
	m := &domain.Message{
		ID:        uuid.NewString(),
		ThreadID:  threadID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	return m, db.Create(m).Error
}

// ListMessages returns a thread's messages ordered deterministically
// (CreatedAt ASC, ID ASC). A limit <= 0 returns all messages.
func ListMessages(db *gorm.DB, threadID string, limit int) ([]domain.Message, error) {
	var out []domain.Message
	q := db.Where("thread_id = ?", threadID).Order("created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// ListRecentMessages returns the most recent `window` messages of a thread
// in chronological order. This is the history slice carried to generation.
func ListRecentMessages(db *gorm.DB, threadID string, window int) ([]domain.Message, error) {
	if window <= 0 {
		return nil, nil
	}
	var recent []domain.Message
	err := db.
		Where("thread_id = ?", threadID).
		Order("created_at DESC, id DESC").
		Limit(window).
		Find(&recent).Error
	if err != nil {
		return nil, err
	}
	// Reverse into chronological order.
	for i, j := 0, len(recent)-1; i < j; i, j = i+1, j-1 {
		recent[i], recent[j] = recent[j], recent[i]
	}
	return recent, nil
}

// CountMessages uses a raw COUNT so a missing table surfaces as an error.
func CountMessages(db *gorm.DB, threadID string) (int64, error) {
	var total int64
	err := db.Raw("SELECT COUNT(*) FROM messages WHERE thread_id = ?", threadID).Scan(&total).Error
	return total, err
}
