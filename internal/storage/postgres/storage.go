package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcoot/lessonprogress/internal/model"
	"github.com/mcoot/lessonprogress/internal/storage"
)

const uniqueViolation = "23505"

// Storage is a PostgreSQL implementation of the storage interface.
// Records are stored as their fixed-size encoding in a BYTEA column.
type Storage struct {
	pool   *pgxpool.Pool
	layout model.Layout
}

// New connects, verifies the connection and applies migrations
func New(ctx context.Context, cfg Config) (*Storage, error) {
	if err := cfg.Layout.Validate(); err != nil {
		return nil, err
	}

	poolConfig, err := cfg.PoolConfig()
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("new pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return NewWithPool(pool, cfg.Layout), nil
}

// NewWithPool creates a storage on an existing, migrated pool
func NewWithPool(pool *pgxpool.Pool, layout model.Layout) *Storage {
	return &Storage{pool: pool, layout: layout}
}

// Close closes the connection pool
func (s *Storage) Close() error {
	s.pool.Close()
	return nil
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// withinTx runs fn in a transaction, committing only if fn succeeds
func (s *Storage) withinTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Progress record operations

func (s *Storage) CreateRecord(ctx context.Context, record *model.ProgressRecord) error {
	data, err := s.layout.Encode(record)
	if err != nil {
		return err
	}

	owner := record.Owner()
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO progress_records (owner, layout_tag, data)
		VALUES ($1, $2, $3)
		ON CONFLICT (owner) DO NOTHING
	`, owner[:], int16(record.LayoutTag()), data)
	if err != nil {
		return fmt.Errorf("create record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrAlreadyInitialized
	}
	return nil
}

func (s *Storage) GetRecord(ctx context.Context, owner model.Identity) (*model.ProgressRecord, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM progress_records WHERE owner = $1`, owner[:],
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrRecordNotFound
		}
		return nil, fmt.Errorf("get record: %w", err)
	}
	return s.layout.Decode(data)
}

func (s *Storage) RecordExists(ctx context.Context, owner model.Identity) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM progress_records WHERE owner = $1)`, owner[:],
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("record exists: %w", err)
	}
	return exists, nil
}

// UpdateRecord locks the row with SELECT ... FOR UPDATE for the duration of fn
func (s *Storage) UpdateRecord(ctx context.Context, owner model.Identity, fn storage.UpdateFunc) (*model.ProgressRecord, error) {
	var result *model.ProgressRecord

	err := s.withinTx(ctx, func(tx pgx.Tx) error {
		var data []byte
		err := tx.QueryRow(ctx,
			`SELECT data FROM progress_records WHERE owner = $1 FOR UPDATE`, owner[:],
		).Scan(&data)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return model.ErrRecordNotFound
			}
			return fmt.Errorf("lock record: %w", err)
		}

		record, err := s.layout.Decode(data)
		if err != nil {
			return err
		}

		changed, err := fn(record)
		if err != nil {
			return err
		}
		result = record
		if !changed {
			return nil
		}

		encoded, err := s.layout.Encode(record)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`UPDATE progress_records SET data = $2, updated_at = now() WHERE owner = $1`,
			owner[:], encoded,
		)
		if err != nil {
			return fmt.Errorf("update record: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Account operations

func (s *Storage) SaveAccount(ctx context.Context, account *model.Account) error {
	var username *string
	if account.Username != "" {
		username = &account.Username
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO accounts (identity, username, display_name, password_hash, is_guest, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (identity) DO UPDATE SET
			username = EXCLUDED.username,
			display_name = EXCLUDED.display_name,
			password_hash = EXCLUDED.password_hash,
			is_guest = EXCLUDED.is_guest
	`,
		account.Identity[:],
		username,
		account.DisplayName,
		account.PasswordHash,
		account.IsGuest,
		account.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return model.ErrUsernameTaken
		}
		return fmt.Errorf("save account: %w", err)
	}
	return nil
}

const accountColumns = `identity, COALESCE(username, ''), display_name, password_hash, is_guest, created_at`

func (s *Storage) GetAccount(ctx context.Context, id model.Identity) (*model.Account, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE identity = $1`, id[:])
	return scanAccount(row)
}

func (s *Storage) GetAccountByUsername(ctx context.Context, username string) (*model.Account, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE username = $1`, username)
	return scanAccount(row)
}

func scanAccount(row pgx.Row) (*model.Account, error) {
	var (
		account  model.Account
		identity []byte
	)
	err := row.Scan(
		&identity,
		&account.Username,
		&account.DisplayName,
		&account.PasswordHash,
		&account.IsGuest,
		&account.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrAccountNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}

	account.Identity, err = model.IdentityFromBytes(identity)
	if err != nil {
		return nil, err
	}
	return &account, nil
}
