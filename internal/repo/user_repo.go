// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for User rows and
// the append-only usage ledger.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shreyansh2912/prashnly-backend/internal/domain"
)

// CreateUser inserts a new user row with a generated id and API key.
func CreateUser(ctx context.Context, db *gorm.DB, name, email, plan string, maxTokens int64) (*domain.User, error) {
	u := &domain.User{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		APIKey:    uuid.NewString(),
		Plan:      plan,
		MaxTokens: maxTokens,
		CreatedAt: time.Now().UTC(),
	}
	if u.Plan == "" {
		u.Plan = domain.PlanBasic
	}
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		return nil, err
	}
	return u, nil
}

// GetUser fetches a user by id.
func GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByAPIKey resolves a user from an API key credential.
func GetUserByAPIKey(ctx context.Context, db *gorm.DB, apiKey string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("api_key = ?", apiKey).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// AddTokensUsed increments a user's consumed-unit counter atomically in SQL
// (read-modify-write races between concurrent chat turns would lose updates
// if this were done in application code).
func AddTokensUsed(ctx context.Context, db *gorm.DB, userID string, tokens int64) error {
	res := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", userID).
		Update("tokens_used", gorm.Expr("tokens_used + ?", tokens))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CreateUsageRecord appends one entry to the usage ledger.
func CreateUsageRecord(ctx context.Context, db *gorm.DB, userID, documentID string, tokens int64) (*domain.UsageRecord, error) {
	r := &domain.UsageRecord{
		ID:         uuid.NewString(),
		UserID:     userID,
		DocumentID: documentID,
		Tokens:     tokens,
		CreatedAt:  time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(r).Error; err != nil {
		return nil, err
	}
	return r, nil
}

// ListUsageRecords returns the most recent ledger entries for a user.
func ListUsageRecords(ctx context.Context, db *gorm.DB, userID string, limit int) ([]domain.UsageRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []domain.UsageRecord
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Limit(limit).
		Find(&out).Error
	return out, err
}
