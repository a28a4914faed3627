// Package quota enforces per-owner usage allowances for chat turns. Usage is
// approximated from text length, charged against the document owner (not the
// asker — guests on a share link consume the owner's allowance), and recorded
// twice: an atomic counter bump on the user row and an append-only ledger
// entry.
package quota

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/shreyansh2912/prashnly-backend/internal/domain"
	"github.com/shreyansh2912/prashnly-backend/internal/repo"
)

// ErrExceeded is returned when the owner's consumed units have reached their
// plan allowance. Terminal for the request; never retried by this layer.
var ErrExceeded = errors.New("usage quota exceeded")

// DefaultCharRatio is the fixed conversion from characters to usage units
// (roughly one token per four characters of English text).
const DefaultCharRatio = 4

// Enforcer gates generation on the owner's remaining allowance and records
// consumption after successful turns.
type Enforcer struct {
	DB *gorm.DB

	// CharRatio is the chars-per-unit conversion; <= 0 uses DefaultCharRatio.
	CharRatio int
}

// New constructs an Enforcer with the default conversion ratio.
func New(db *gorm.DB) *Enforcer {
	return &Enforcer{DB: db, CharRatio: DefaultCharRatio}
}

// Check returns ErrExceeded when owner is out of quota. Unlimited plans
// always pass. Call before any generation work is done.
func (e *Enforcer) Check(owner *domain.User) error {
	if owner.Unlimited() {
		return nil
	}
	if owner.TokensUsed >= owner.MaxTokens {
		return ErrExceeded
	}
	return nil
}

// Estimate converts question and answer text into consumed units.
func (e *Enforcer) Estimate(question, answer string) int64 {
	ratio := e.CharRatio
	if ratio <= 0 {
		ratio = DefaultCharRatio
	}
	chars := int64(len(question) + len(answer))
	return (chars + int64(ratio) - 1) / int64(ratio)
}

// Record charges the owner for one completed turn: an atomic SQL increment
// of the consumed counter plus one ledger entry. The increment is done in
// the database so concurrent turns from the same owner cannot lose updates.
func (e *Enforcer) Record(ctx context.Context, ownerID, documentID, question, answer string) (int64, error) {
	tokens := e.Estimate(question, answer)
	err := e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.AddTokensUsed(ctx, tx, ownerID, tokens); err != nil {
			return err
		}
		_, err := repo.CreateUsageRecord(ctx, tx, ownerID, documentID, tokens)
		return err
	})
	if err != nil {
		return 0, err
	}
	return tokens, nil
}
