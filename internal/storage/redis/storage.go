package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/lessonprogress/internal/model"
	"github.com/mcoot/lessonprogress/internal/storage"
)

// ErrTooManyConflicts is returned when an update keeps losing its WATCH race
var ErrTooManyConflicts = errors.New("redis: too many conflicting updates")

// Storage is a Redis-backed implementation of the storage interface.
// Records are stored as their fixed-size encoding; accounts as JSON.
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	if err := cfg.Layout.Validate(); err != nil {
		return nil, err
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return NewWithClient(client, cfg), nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	if cfg.MaxUpdateRetries <= 0 {
		cfg.MaxUpdateRetries = DefaultConfig().MaxUpdateRetries
	}
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Client returns the underlying client so the event publisher can share it
func (s *Storage) Client() *redis.Client {
	return s.client
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Progress record operations

func (s *Storage) CreateRecord(ctx context.Context, record *model.ProgressRecord) error {
	data, err := s.cfg.Layout.Encode(record)
	if err != nil {
		return err
	}

	created, err := s.client.SetNX(ctx, recordKey(record.Owner()), data, 0).Result()
	if err != nil {
		return err
	}
	if !created {
		return model.ErrAlreadyInitialized
	}
	return nil
}

func (s *Storage) GetRecord(ctx context.Context, owner model.Identity) (*model.ProgressRecord, error) {
	data, err := s.client.Get(ctx, recordKey(owner)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrRecordNotFound
		}
		return nil, err
	}
	return s.cfg.Layout.Decode(data)
}

func (s *Storage) RecordExists(ctx context.Context, owner model.Identity) (bool, error) {
	n, err := s.client.Exists(ctx, recordKey(owner)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// UpdateRecord applies fn under an optimistic WATCH on the record key.
// fn may run more than once if another writer commits in between.
func (s *Storage) UpdateRecord(ctx context.Context, owner model.Identity, fn storage.UpdateFunc) (*model.ProgressRecord, error) {
	key := recordKey(owner)

	for attempt := 0; attempt < s.cfg.MaxUpdateRetries; attempt++ {
		var result *model.ProgressRecord

		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					return model.ErrRecordNotFound
				}
				return err
			}

			record, err := s.cfg.Layout.Decode(data)
			if err != nil {
				return err
			}

			changed, err := fn(record)
			if err != nil {
				return err
			}
			if !changed {
				result = record
				return nil
			}

			encoded, err := s.cfg.Layout.Encode(record)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, encoded, 0)
				return nil
			})
			if err != nil {
				return err
			}
			result = record
			return nil
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrTooManyConflicts, owner)
}

// Account operations

func (s *Storage) SaveAccount(ctx context.Context, account *model.Account) error {
	data, err := json.Marshal(account)
	if err != nil {
		return err
	}

	if account.Username != "" {
		if err := s.claimUsername(ctx, account.Username, account.Identity); err != nil {
			return err
		}
	}

	// Apply TTL only for guest accounts
	var ttl time.Duration
	if account.IsGuest {
		ttl = s.cfg.GuestAccountTTL
	}
	return s.client.Set(ctx, accountKey(account.Identity), data, ttl).Err()
}

// claimUsername reserves username for id, failing if another identity holds it
func (s *Storage) claimUsername(ctx context.Context, username string, id model.Identity) error {
	key := usernameIndexKey(username)

	claimed, err := s.client.SetNX(ctx, key, id.String(), 0).Result()
	if err != nil {
		return err
	}
	if claimed {
		return nil
	}

	holder, err := s.client.Get(ctx, key).Result()
	if err != nil {
		return err
	}
	if holder != id.String() {
		return model.ErrUsernameTaken
	}
	return nil
}

func (s *Storage) GetAccount(ctx context.Context, id model.Identity) (*model.Account, error) {
	data, err := s.client.Get(ctx, accountKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrAccountNotFound
		}
		return nil, err
	}

	var account model.Account
	if err := json.Unmarshal(data, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (s *Storage) GetAccountByUsername(ctx context.Context, username string) (*model.Account, error) {
	// Look up identity from username index
	idStr, err := s.client.Get(ctx, usernameIndexKey(username)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrAccountNotFound
		}
		return nil, err
	}

	id, err := model.ParseIdentity(idStr)
	if err != nil {
		return nil, err
	}
	return s.GetAccount(ctx, id)
}
