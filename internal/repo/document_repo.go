// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Document
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a document is not found, functions return gorm.ErrRecordNotFound
//     (exported here as ErrNotFound).
//   - On DB errors (constraint violations, connectivity issues, etc.) the
//     raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shreyansh2912/prashnly-backend/internal/domain"
)

// CreateDocument inserts a new Document row. The caller sets all descriptive
// fields; the row id is a fresh UUID and CreatedAt is UTC now. Creation and
// ingestion enqueue are one step, so new documents are persisted already in
// the processing state unless the caller says otherwise.
func CreateDocument(ctx context.Context, db *gorm.DB, d *domain.Document) (*domain.Document, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Status == "" {
		d.Status = domain.StatusProcessing
	}
	d.CreatedAt = time.Now().UTC()
	if err := db.WithContext(ctx).Create(d).Error; err != nil {
		return nil, err
	}
	return d, nil
}

// GetDocument fetches a document by id regardless of owner.
func GetDocument(ctx context.Context, db *gorm.DB, id string) (*domain.Document, error) {
	var d domain.Document
	if err := db.WithContext(ctx).Where("id = ?", id).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// GetOwnedDocument fetches a document by id, enforcing ownership.
func GetOwnedDocument(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Document, error) {
	var d domain.Document
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&d).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// GetDocumentByShareToken resolves a document through its public share token.
func GetDocumentByShareToken(ctx context.Context, db *gorm.DB, token string) (*domain.Document, error) {
	var d domain.Document
	err := db.WithContext(ctx).
		Where("share_token = ?", token).
		First(&d).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ListDocuments returns all documents owned by userID, newest first.
func ListDocuments(ctx context.Context, db *gorm.DB, userID string) ([]domain.Document, error) {
	var out []domain.Document
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// ListDocumentsByStatus returns all documents in the given status, oldest
// first. Used at startup to requeue work interrupted by a shutdown.
func ListDocumentsByStatus(ctx context.Context, db *gorm.DB, status string) ([]domain.Document, error) {
	var out []domain.Document
	err := db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

// CountDocuments returns the number of documents owned by userID. Used for
// plan limits at upload time.
func CountDocuments(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Document{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// MarkDocumentCompleted records a successful ingestion: terminal status,
// fresh share token, and the produced chunk ids, in one update.
func MarkDocumentCompleted(ctx context.Context, db *gorm.DB, id, shareToken string, vectorIDs []string) error {
	res := db.WithContext(ctx).
		Model(&domain.Document{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":      domain.StatusCompleted,
			"share_token": shareToken,
			"vector_ids":  domain.JoinVectorIDs(vectorIDs),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkDocumentFailed records a failed ingestion. Terminal: the document is
// never retried automatically.
func MarkDocumentFailed(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).
		Model(&domain.Document{}).
		Where("id = ?", id).
		Update("status", domain.StatusFailed)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SetDocumentActive flips the owner-facing active flag.
func SetDocumentActive(ctx context.Context, db *gorm.DB, id, userID string, active bool) error {
	res := db.WithContext(ctx).
		Model(&domain.Document{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteDocument removes a document row owned by userID. Vector purging is
// the service layer's responsibility and happens before this call.
func DeleteDocument(ctx context.Context, db *gorm.DB, id, userID string) error {
	res := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&domain.Document{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
