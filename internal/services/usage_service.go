package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/shreyansh2912/prashnly-backend/internal/domain"
	"github.com/shreyansh2912/prashnly-backend/internal/repo"
)

// UsageSummary is the owner-facing view of quota consumption.
type UsageSummary struct {
	Plan       string               `json:"plan"`
	TokensUsed int64                `json:"tokens_used"`
	MaxTokens  int64                `json:"max_tokens"`
	Unlimited  bool                 `json:"unlimited"`
	Records    []domain.UsageRecord `json:"records"`
}

// UsageService reports quota state and the recent ledger for an owner.
type UsageService struct {
	DB *gorm.DB

	// RecordLimit caps ledger entries in the summary; <= 0 uses the repo
	// default.
	RecordLimit int
}

// Summary reads the owner's fresh counters and recent usage records.
func (s *UsageService) Summary(ctx context.Context, requester *domain.User) (*UsageSummary, error) {
	if requester == nil {
		return nil, ErrUnauthorized
	}
	u, err := repo.GetUser(ctx, s.DB, requester.ID)
	if err != nil {
		return nil, err
	}
	records, err := repo.ListUsageRecords(ctx, s.DB, u.ID, s.RecordLimit)
	if err != nil {
		return nil, err
	}
	return &UsageSummary{
		Plan:       u.Plan,
		TokensUsed: u.TokensUsed,
		MaxTokens:  u.MaxTokens,
		Unlimited:  u.Unlimited(),
		Records:    records,
	}, nil
}
