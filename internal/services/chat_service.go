package services

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/shreyansh2912/prashnly-backend/internal/domain"
	"github.com/shreyansh2912/prashnly-backend/internal/generation"
	"github.com/shreyansh2912/prashnly-backend/internal/quota"
	"github.com/shreyansh2912/prashnly-backend/internal/repo"
	"github.com/shreyansh2912/prashnly-backend/internal/retrieval"
	"github.com/shreyansh2912/prashnly-backend/internal/vectorindex"
)

// DefaultHistoryWindow is how many prior messages are carried to generation.
const DefaultHistoryWindow = 10

// maxTitleLen bounds auto-generated thread titles.
const maxTitleLen = 60

// defaultThreadTitle matches the repo-level default for fresh threads.
const defaultThreadTitle = "New conversation"

// Retriever is the chat-side view of the retrieval assembler.
type Retriever interface {
	Retrieve(ctx context.Context, question string, filter vectorindex.Filter) (*retrieval.Result, error)
}

// ChatTarget names the conversation a question belongs to. Exactly one way
// in is honored, in precedence order: an existing thread, then a share token,
// then one of the requester's own documents. An empty target is unauthorized.
type ChatTarget struct {
	ThreadID   string
	ShareToken string
	DocumentID string
}

// ChatResult is one completed turn.
type ChatResult struct {
	ThreadID   string             `json:"thread_id"`
	Answer     string             `json:"answer"`
	Sources    []retrieval.Source `json:"sources"`
	TokensUsed int64              `json:"tokens_used"`
}

// ChatService runs chat turns: resolve the target, enforce the owner's
// quota, retrieve context, generate, and persist the turn atomically.
type ChatService struct {
	DB        *gorm.DB
	Retriever Retriever
	Generator generation.Generator
	Quota     *quota.Enforcer
	Log       zerolog.Logger

	// HistoryWindow caps the prior messages sent to generation; <= 0 uses
	// DefaultHistoryWindow.
	HistoryWindow int
}

// Ask answers one question. requester is nil for guests coming in through a
// share token. Quota is checked against the document owner before any
// generation work and charged to the owner after a successful turn. A
// generation failure leaves the thread without new messages, and a failed
// first turn creates no thread at all.
func (s *ChatService) Ask(ctx context.Context, requester *domain.User, target ChatTarget, question string) (*ChatResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrInvalidInput
	}

	thread, doc, threadUser, err := s.resolve(ctx, requester, target)
	if err != nil {
		return nil, err
	}
	if doc.Status != domain.StatusCompleted || !doc.IsActive {
		return nil, ErrDocumentNotReady
	}

	owner, err := repo.GetUser(ctx, s.DB, doc.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.Quota.Check(owner); err != nil {
		if errors.Is(err, quota.ErrExceeded) {
			return nil, ErrQuotaExceeded
		}
		return nil, err
	}

	var history []generation.Turn
	if thread != nil {
		history, err = s.history(thread.ID)
		if err != nil {
			return nil, err
		}
	}

	res, err := s.Retriever.Retrieve(ctx, question, vectorindex.Filter{
		vectorindex.MetaDocumentID: doc.ID,
	})
	if err != nil {
		return nil, err
	}

	answer, err := s.Generator.Generate(ctx, generation.SystemPrompt(res.Context), history, question)
	if err != nil {
		return nil, errors.Join(ErrGenerationFailure, err)
	}

	thread, err = s.persistTurn(ctx, thread, doc.ID, threadUser, question, answer)
	if err != nil {
		return nil, err
	}

	tokens, err := s.Quota.Record(ctx, owner.ID, doc.ID, question, answer)
	if err != nil {
		// the answer is already committed; losing one ledger entry beats
		// failing the turn
		s.Log.Error().Err(err).
			Str("owner_id", owner.ID).
			Str("document_id", doc.ID).
			Msg("usage recording failed")
	}

	return &ChatResult{
		ThreadID:   thread.ID,
		Answer:     answer,
		Sources:    res.Sources,
		TokensUsed: tokens,
	}, nil
}

// resolve maps the target onto a thread and its document. For share-token and
// document targets no thread exists yet: thread comes back nil and threadUser
// names who the eventual thread belongs to ("" for guests). The thread itself
// is created by persistTurn, so a turn that never completes leaves nothing
// behind.
func (s *ChatService) resolve(ctx context.Context, requester *domain.User, target ChatTarget) (thread *domain.ChatThread, doc *domain.Document, threadUser string, err error) {
	switch {
	case target.ThreadID != "":
		thread, err = repo.GetThread(ctx, s.DB, target.ThreadID)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil, "", ErrThreadNotFound
		}
		if err != nil {
			return nil, nil, "", err
		}
		doc, err = repo.GetDocument(ctx, s.DB, thread.DocumentID)
		if err != nil {
			return nil, nil, "", err
		}
		if !canUseThread(requester, thread, doc) {
			return nil, nil, "", ErrThreadNotFound
		}
		return thread, doc, "", nil

	case target.ShareToken != "":
		doc, err = repo.GetDocumentByShareToken(ctx, s.DB, target.ShareToken)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil, "", ErrDocumentNotFound
		}
		if err != nil {
			return nil, nil, "", err
		}
		if requester != nil {
			threadUser = requester.ID
		}
		return nil, doc, threadUser, nil

	case target.DocumentID != "":
		if requester == nil {
			return nil, nil, "", ErrUnauthorized
		}
		doc, err = repo.GetOwnedDocument(ctx, s.DB, target.DocumentID, requester.ID)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil, "", ErrDocumentNotFound
		}
		if err != nil {
			return nil, nil, "", err
		}
		return nil, doc, requester.ID, nil

	default:
		return nil, nil, "", ErrUnauthorized
	}
}

// canUseThread reports whether the requester may continue a thread. Guest
// threads are capability-addressed: holding the id is holding access.
func canUseThread(requester *domain.User, thread *domain.ChatThread, doc *domain.Document) bool {
	if thread.UserID == "" {
		return true
	}
	if requester == nil {
		return false
	}
	return requester.ID == thread.UserID || requester.ID == doc.UserID
}

func (s *ChatService) history(threadID string) ([]generation.Turn, error) {
	window := s.HistoryWindow
	if window <= 0 {
		window = DefaultHistoryWindow
	}
	msgs, err := repo.ListRecentMessages(s.DB, threadID, window)
	if err != nil {
		return nil, err
	}
	turns := make([]generation.Turn, len(msgs))
	for i, m := range msgs {
		turns[i] = generation.Turn{Role: m.Role, Content: m.Content}
	}
	return turns, nil
}

// persistTurn appends the user/assistant pair in one transaction and titles
// fresh threads from their first question. A nil thread means this is the
// first turn of a new conversation; the thread row is created in the same
// transaction, so it only exists once it holds messages.
func (s *ChatService) persistTurn(ctx context.Context, thread *domain.ChatThread, docID, threadUser, question, answer string) (*domain.ChatThread, error) {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if thread == nil {
			created, err := repo.CreateThread(ctx, tx, threadUser, docID, "")
			if err != nil {
				return err
			}
			thread = created
		}
		if _, err := repo.CreateMessage(tx, thread.ID, domain.RoleUser, question); err != nil {
			return err
		}
		if _, err := repo.CreateMessage(tx, thread.ID, domain.RoleAssistant, answer); err != nil {
			return err
		}
		if thread.Title == "" || thread.Title == defaultThreadTitle {
			title := titleFromQuestion(question)
			if err := repo.UpdateThreadTitle(tx, thread.ID, title); err != nil {
				return err
			}
			thread.Title = title
		}
		return repo.TouchThread(tx, thread.ID)
	})
	if err != nil {
		return nil, err
	}
	return thread, nil
}

var titleCaser = cases.Title(language.English, cases.NoLower)

// titleFromQuestion derives a short thread title from the first question.
func titleFromQuestion(question string) string {
	t := strings.Join(strings.Fields(question), " ")
	if len(t) > maxTitleLen {
		cut := strings.LastIndex(t[:maxTitleLen], " ")
		if cut <= 0 {
			cut = maxTitleLen
		}
		t = t[:cut] + "…"
	}
	if t == "" {
		return defaultThreadTitle
	}
	return titleCaser.String(t)
}

// Threads lists conversations visible to the user: their own plus guest
// threads on their documents.
func (s *ChatService) Threads(ctx context.Context, requester *domain.User) ([]domain.ChatThread, error) {
	if requester == nil {
		return nil, ErrUnauthorized
	}
	return repo.ListThreads(ctx, s.DB, requester.ID)
}

// Messages returns a thread's transcript in order. Guests may read guest
// threads; authenticated users may read their threads and any thread on
// their documents. limit <= 0 returns the full transcript.
func (s *ChatService) Messages(ctx context.Context, requester *domain.User, threadID string, limit int) ([]domain.Message, error) {
	thread, err := repo.GetThread(ctx, s.DB, threadID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrThreadNotFound
	}
	if err != nil {
		return nil, err
	}
	doc, err := repo.GetDocument(ctx, s.DB, thread.DocumentID)
	if err != nil {
		return nil, err
	}
	if !canUseThread(requester, thread, doc) {
		return nil, ErrThreadNotFound
	}
	return repo.ListMessages(s.DB.WithContext(ctx), threadID, limit)
}
