// Package domain defines the persistence models for users, documents, chat
// threads, messages, and usage records. These types are mapped with GORM and
// form the core data layer of the document Q&A backend.
package domain

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Document ingestion statuses. A document moves pending → processing at
// creation/enqueue time and terminates in completed or failed. Terminal
// states are never retried automatically.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Document visibility levels.
const (
	VisibilityPublic    = "public"
	VisibilityPrivate   = "private"
	VisibilityProtected = "protected"
)

// Document protection modes.
const (
	ProtectionNone     = "none"
	ProtectionPassword = "password"
)

// User plans. Enterprise bypasses the usage-quota check entirely.
const (
	PlanBasic      = "basic"
	PlanPremium    = "premium"
	PlanEnterprise = "enterprise"
)

// Message roles within a chat thread.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// User represents an account that owns documents and is charged usage units
// for chat turns against them. Authentication itself is handled upstream;
// this row only carries what the quota enforcer and plan limits need.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - APIKey: opaque credential used by the auth middleware to resolve the user.
//   - Plan: basic, premium, or enterprise (enterprise = unlimited usage).
//   - TokensUsed / MaxTokens: consumed vs. allowed usage units.
type User struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	Name       string    `json:"name"        gorm:"type:varchar(128);not null"`
	Email      string    `json:"email"       gorm:"type:varchar(255);not null;uniqueIndex"`
	APIKey     string    `json:"-"           gorm:"type:varchar(64);uniqueIndex"`
	Plan       string    `json:"plan"        gorm:"type:varchar(16);not null;default:'basic';check:plan IN ('basic','premium','enterprise')"`
	TokensUsed int64     `json:"tokens_used" gorm:"not null;default:0"`
	MaxTokens  int64     `json:"max_tokens"  gorm:"not null;default:5000"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Unlimited reports whether the user's plan bypasses quota enforcement.
func (u *User) Unlimited() bool { return u.Plan == PlanEnterprise }

// Document represents an uploaded file and the lifecycle of its derived
// vector representation. Status, vector ids, and the share token are mutated
// only by the ingestion pipeline; visibility and the active flag only by the
// owner. Deleting a document must also purge its vectors from the index.
//
// VectorIDs holds the ids of the chunks written to the vector index,
// serialized as a newline-joined string so SQLite can store it in one column.
type Document struct {
	ID           string         `json:"id"            gorm:"type:char(36);primaryKey"`
	UserID       string         `json:"user_id"       gorm:"type:char(36);not null;index:idx_user_docs"`
	Title        string         `json:"title"         gorm:"type:varchar(255);not null"`
	OriginalName string         `json:"original_name" gorm:"type:varchar(255);not null"`
	MimeType     string         `json:"mime_type"     gorm:"type:varchar(128);not null"`
	Size         int64          `json:"size"          gorm:"not null"`
	StoragePath  string         `json:"-"             gorm:"type:varchar(512);not null"`
	Status       string         `json:"status"        gorm:"type:varchar(16);not null;default:'pending';check:status IN ('pending','processing','completed','failed')"`
	ShareToken   *string        `json:"share_token,omitempty" gorm:"type:char(36);uniqueIndex"`
	Visibility   string         `json:"visibility"    gorm:"type:varchar(16);not null;default:'private';check:visibility IN ('public','private','protected')"`
	Protection   string         `json:"protection"    gorm:"type:varchar(16);not null;default:'none';check:protection IN ('none','password')"`
	PasswordHash string         `json:"-"             gorm:"type:varchar(128)"`
	IsActive     bool           `json:"is_active"     gorm:"not null;default:true"`
	VectorIDs    string         `json:"-"             gorm:"type:text"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-"             gorm:"index"`
}

// TableName returns the database table name for Document.
func (Document) TableName() string { return "documents" }

// VectorIDList splits the serialized vector id column into a slice.
// An empty column yields a nil slice.
func (d *Document) VectorIDList() []string {
	if d.VectorIDs == "" {
		return nil
	}
	return strings.Split(d.VectorIDs, "\n")
}

// JoinVectorIDs serializes chunk ids for storage in Document.VectorIDs.
func JoinVectorIDs(ids []string) string { return strings.Join(ids, "\n") }

// ChatThread represents a conversation bound to exactly one document.
// UserID is empty for guest sessions entered through a share link.
type ChatThread struct {
	ID         string         `json:"id"          gorm:"type:char(36);primaryKey"`
	UserID     string         `json:"user_id,omitempty" gorm:"type:char(36);index"`
	DocumentID string         `json:"document_id" gorm:"type:char(36);not null;index"`
	Title      string         `json:"title"       gorm:"type:varchar(255);not null;default:'New conversation'"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"-"           gorm:"index"`

	// Document is the conversation subject. Threads outlive the pipeline
	// but are cascade-deleted with their document.
	Document Document `json:"-" gorm:"foreignKey:DocumentID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ChatThread.
func (ChatThread) TableName() string { return "chat_threads" }

// Message is a single utterance within a thread, authored by "user" or
// "assistant". Messages are immutable once appended.
type Message struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	ThreadID  string    `json:"thread_id"  gorm:"type:char(36);not null;index:idx_thread_msgs,priority:1"`
	Role      string    `json:"role"       gorm:"type:varchar(16);not null;check:role IN ('user','assistant')"`
	Content   string    `json:"content"    gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"index:idx_thread_msgs,priority:2"`

	Thread ChatThread `json:"-" gorm:"foreignKey:ThreadID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// UsageRecord is one entry in the append-only usage ledger. Rows are never
// mutated or deleted; the running total lives on the User row.
type UsageRecord struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	UserID     string    `json:"user_id"     gorm:"type:char(36);not null;index"`
	DocumentID string    `json:"document_id" gorm:"type:char(36);not null;index"`
	Tokens     int64     `json:"tokens"      gorm:"not null"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName returns the database table name for UsageRecord.
func (UsageRecord) TableName() string { return "usage_records" }
