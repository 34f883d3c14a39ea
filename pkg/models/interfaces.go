package models

import "context"

// ClipResolver defines the interface for the clipboard-text entry point
type ClipResolver interface {
	// Resolve extracts a share URL from arbitrary text, follows it to a
	// canonical page URL and resolves video metadata for it
	Resolve(ctx context.Context, text string) (*ExtractionResult, error)
}

// DownloadService defines the interface for the host download collaborator.
// Begin returns an opaque numeric identifier; later state transitions arrive
// asynchronously on Events, keyed by that identifier.
type DownloadService interface {
	Begin(ctx context.Context, url, filename string, saveAs bool) (int64, error)

	Events() <-chan DownloadEvent

	Cancel(downloadID int64) error
}

// Storage defines the interface for persistent storage implementations
type Storage interface {
	// UpsertRecord creates or merges a history record by record id,
	// enforcing the retention cap
	UpsertRecord(record *HistoryRecord) error

	// PatchRecord applies partial updates to a record by record id
	PatchRecord(recordID string, patch map[string]interface{}) error

	// PatchRecordByDownloadID applies partial updates by download id
	PatchRecordByDownloadID(downloadID int64, patch map[string]interface{}) error

	// GetRecord retrieves a record by record id, nil when absent
	GetRecord(recordID string) (*HistoryRecord, error)

	// ListRecords returns up to limit records, most-recent-first
	ListRecords(limit int) ([]*HistoryRecord, error)

	// DeleteRecord removes a record by record id
	DeleteRecord(recordID string) error

	// ClearRecords removes all history records
	ClearRecords() error

	// GetStats returns aggregate history statistics
	GetStats() (*Stats, error)

	// SaveUser persists an API user
	SaveUser(user *User) error

	// GetUserByUsername retrieves an API user
	GetUserByUsername(username string) (*User, error)

	// SaveSession persists an API session
	SaveSession(session *Session) error

	// GetSessionByToken retrieves an active session by token
	GetSessionByToken(token string) (*Session, error)

	// InvalidateSession deactivates a session
	InvalidateSession(sessionID string) error

	// Close closes the storage connection
	Close() error
}
