package memory

import (
	"context"
	"sync"

	"github.com/mcoot/lessonprogress/internal/model"
	"github.com/mcoot/lessonprogress/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	records       map[model.Identity]*model.ProgressRecord
	accounts      map[model.Identity]*model.Account
	usernameIndex map[string]model.Identity
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		records:       make(map[model.Identity]*model.ProgressRecord),
		accounts:      make(map[model.Identity]*model.Account),
		usernameIndex: make(map[string]model.Identity),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Progress record operations

func (s *Storage) CreateRecord(ctx context.Context, record *model.ProgressRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[record.Owner()]; ok {
		return model.ErrAlreadyInitialized
	}
	s.records[record.Owner()] = record.Clone()
	return nil
}

func (s *Storage) GetRecord(ctx context.Context, owner model.Identity) (*model.ProgressRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[owner]
	if !ok {
		return nil, model.ErrRecordNotFound
	}
	return record.Clone(), nil
}

func (s *Storage) RecordExists(ctx context.Context, owner model.Identity) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[owner]
	return ok, nil
}

func (s *Storage) UpdateRecord(ctx context.Context, owner model.Identity, fn storage.UpdateFunc) (*model.ProgressRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.records[owner]
	if !ok {
		return nil, model.ErrRecordNotFound
	}

	working := current.Clone()
	changed, err := fn(working)
	if err != nil {
		return nil, err
	}
	if changed {
		s.records[owner] = working
	}
	return working.Clone(), nil
}

// Account operations

func (s *Storage) SaveAccount(ctx context.Context, account *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if account.Username != "" {
		if existing, ok := s.usernameIndex[account.Username]; ok && existing != account.Identity {
			return model.ErrUsernameTaken
		}
		s.usernameIndex[account.Username] = account.Identity
	}
	stored := *account
	s.accounts[account.Identity] = &stored
	return nil
}

func (s *Storage) GetAccount(ctx context.Context, id model.Identity) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[id]
	if !ok {
		return nil, model.ErrAccountNotFound
	}
	result := *account
	return &result, nil
}

func (s *Storage) GetAccountByUsername(ctx context.Context, username string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.usernameIndex[username]
	if !ok {
		return nil, model.ErrAccountNotFound
	}
	account, ok := s.accounts[id]
	if !ok {
		return nil, model.ErrAccountNotFound
	}
	result := *account
	return &result, nil
}
