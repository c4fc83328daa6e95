package storage

import (
	"context"

	"github.com/mcoot/lessonprogress/internal/model"
)

// UpdateFunc mutates a working copy of a progress record. It reports
// whether the copy changed; an error or an unchanged copy means nothing
// is written.
type UpdateFunc func(record *model.ProgressRecord) (changed bool, err error)

// Storage defines the interface for data persistence
type Storage interface {
	// Progress record operations

	// CreateRecord atomically inserts a new record. It returns
	// model.ErrAlreadyInitialized, leaving the stored record untouched,
	// if one already exists for the owner.
	CreateRecord(ctx context.Context, record *model.ProgressRecord) error
	GetRecord(ctx context.Context, owner model.Identity) (*model.ProgressRecord, error)
	RecordExists(ctx context.Context, owner model.Identity) (bool, error)

	// UpdateRecord runs fn with exclusive write access to the owner's
	// record and returns the record as stored afterwards. Concurrent
	// updates to the same record are serialized.
	UpdateRecord(ctx context.Context, owner model.Identity, fn UpdateFunc) (*model.ProgressRecord, error)

	// Account operations
	SaveAccount(ctx context.Context, account *model.Account) error
	GetAccount(ctx context.Context, id model.Identity) (*model.Account, error)
	GetAccountByUsername(ctx context.Context, username string) (*model.Account, error)
}
