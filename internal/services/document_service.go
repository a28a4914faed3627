package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/shreyansh2912/prashnly-backend/internal/domain"
	"github.com/shreyansh2912/prashnly-backend/internal/ingest"
	"github.com/shreyansh2912/prashnly-backend/internal/repo"
	"github.com/shreyansh2912/prashnly-backend/internal/vectorindex"
)

// DefaultBasicDocLimit caps documents on the basic plan.
const DefaultBasicDocLimit = 10

// Enqueuer hands a freshly created document to the ingestion worker pool.
type Enqueuer interface {
	Enqueue(doc *domain.Document) error
}

// UploadInput carries everything the upload use case needs from the request.
type UploadInput struct {
	Title        string
	OriginalName string
	MimeType     string
	Data         []byte

	// Visibility defaults to private. A non-empty Password forces the
	// protected visibility and password protection mode.
	Visibility string
	Password   string
}

// DocumentService owns the document lifecycle outside the pipeline: upload
// and enqueue, listing, deletion with vector purge, the active toggle, and
// the public share surface.
type DocumentService struct {
	DB    *gorm.DB
	Index vectorindex.Index
	Queue Enqueuer
	Log   zerolog.Logger

	// UploadDir is where raw upload bytes are kept for the pipeline.
	UploadDir string

	// BasicDocLimit caps documents for basic-plan owners; <= 0 uses
	// DefaultBasicDocLimit.
	BasicDocLimit int64
}

// Upload stores the raw bytes, creates the document row in the processing
// state, and enqueues ingestion. The 201 response goes out immediately;
// ingestion outcome is observable via status and the progress stream.
func (s *DocumentService) Upload(ctx context.Context, owner *domain.User, in UploadInput) (*domain.Document, error) {
	if len(in.Data) == 0 || in.OriginalName == "" {
		return nil, ErrInvalidInput
	}

	if owner.Plan == domain.PlanBasic {
		limit := s.BasicDocLimit
		if limit <= 0 {
			limit = DefaultBasicDocLimit
		}
		count, err := repo.CountDocuments(ctx, s.DB, owner.ID)
		if err != nil {
			return nil, err
		}
		if count >= limit {
			return nil, ErrPlanLimit
		}
	}

	visibility := in.Visibility
	if visibility == "" {
		visibility = domain.VisibilityPrivate
	}
	protection := domain.ProtectionNone
	passwordHash := ""
	if in.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash share password: %w", err)
		}
		visibility = domain.VisibilityProtected
		protection = domain.ProtectionPassword
		passwordHash = string(hash)
	}
	switch visibility {
	case domain.VisibilityPublic, domain.VisibilityPrivate, domain.VisibilityProtected:
	default:
		return nil, ErrInvalidInput
	}

	id := uuid.NewString()
	path, err := s.storeUpload(id, in.OriginalName, in.Data)
	if err != nil {
		return nil, err
	}

	title := in.Title
	if title == "" {
		title = in.OriginalName
	}
	doc, err := repo.CreateDocument(ctx, s.DB, &domain.Document{
		ID:           id,
		UserID:       owner.ID,
		Title:        title,
		OriginalName: in.OriginalName,
		MimeType:     in.MimeType,
		Size:         int64(len(in.Data)),
		StoragePath:  path,
		Status:       domain.StatusProcessing,
		Visibility:   visibility,
		Protection:   protection,
		PasswordHash: passwordHash,
		IsActive:     true,
	})
	if err != nil {
		_ = os.Remove(path)
		return nil, err
	}

	if err := s.Queue.Enqueue(doc); err != nil {
		// roll the upload back so the client can retry cleanly
		_ = os.Remove(path)
		if dErr := repo.DeleteDocument(ctx, s.DB, doc.ID, owner.ID); dErr != nil {
			s.Log.Error().Err(dErr).
				Str("document_id", doc.ID).
				Msg("could not roll back upload after enqueue failure")
		}
		if errors.Is(err, ingest.ErrQueueFull) || errors.Is(err, ingest.ErrQueueClosed) {
			return nil, ErrIngestBusy
		}
		return nil, err
	}
	return doc, nil
}

func (s *DocumentService) storeUpload(id, originalName string, data []byte) (string, error) {
	if err := os.MkdirAll(s.UploadDir, 0o750); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	// the row id, not the client filename, names the stored file
	path := filepath.Join(s.UploadDir, id+filepath.Ext(originalName))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}
	return path, nil
}

// List returns the owner's documents, newest first.
func (s *DocumentService) List(ctx context.Context, ownerID string) ([]domain.Document, error) {
	return repo.ListDocuments(ctx, s.DB, ownerID)
}

// Get returns one of the owner's documents.
func (s *DocumentService) Get(ctx context.Context, ownerID, docID string) (*domain.Document, error) {
	doc, err := repo.GetOwnedDocument(ctx, s.DB, docID, ownerID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrDocumentNotFound
	}
	return doc, err
}

// Delete removes an owned document: vectors first, then the stored file,
// then the row. Vector deletion is fire-and-forget — a slow index must not
// block the owner, and leftover vectors are unreachable once the row is gone.
func (s *DocumentService) Delete(ctx context.Context, ownerID, docID string) error {
	doc, err := repo.GetOwnedDocument(ctx, s.DB, docID, ownerID)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrDocumentNotFound
	}
	if err != nil {
		return err
	}

	if err := s.Index.Delete(ctx, vectorindex.Filter{vectorindex.MetaDocumentID: doc.ID}); err != nil {
		s.Log.Warn().Err(err).
			Str("document_id", doc.ID).
			Msg("vector purge failed; continuing with row deletion")
	}
	if doc.StoragePath != "" {
		if err := os.Remove(doc.StoragePath); err != nil && !os.IsNotExist(err) {
			s.Log.Warn().Err(err).
				Str("document_id", doc.ID).
				Msg("stored upload removal failed")
		}
	}

	if err := repo.DeleteDocument(ctx, s.DB, docID, ownerID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrDocumentNotFound
		}
		return err
	}
	return nil
}

// ToggleActive flips the document's active flag and returns the new state.
func (s *DocumentService) ToggleActive(ctx context.Context, ownerID, docID string) (*domain.Document, error) {
	doc, err := repo.GetOwnedDocument(ctx, s.DB, docID, ownerID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := repo.SetDocumentActive(ctx, s.DB, docID, ownerID, !doc.IsActive); err != nil {
		return nil, err
	}
	doc.IsActive = !doc.IsActive
	return doc, nil
}

// PublicMetadata resolves a share token into the document shown on the
// public chat page. Deactivated and unfinished documents are indistinguishable
// from unknown tokens.
func (s *DocumentService) PublicMetadata(ctx context.Context, shareToken string) (*domain.Document, error) {
	doc, err := repo.GetDocumentByShareToken(ctx, s.DB, shareToken)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, err
	}
	if !doc.IsActive || doc.Status != domain.StatusCompleted {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

// VerifyPassword checks a share password. Unprotected documents verify
// trivially; a mismatch is ErrInvalidCredential.
func (s *DocumentService) VerifyPassword(ctx context.Context, shareToken, password string) error {
	doc, err := s.PublicMetadata(ctx, shareToken)
	if err != nil {
		return err
	}
	if doc.Protection != domain.ProtectionPassword {
		return nil
	}
	if bcrypt.CompareHashAndPassword([]byte(doc.PasswordHash), []byte(password)) != nil {
		return ErrInvalidCredential
	}
	return nil
}
