package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"github.com/mcoot/lessonprogress/internal/model"
	"github.com/mcoot/lessonprogress/internal/storage"
)

// MemoryPath opens a private in-memory database
const MemoryPath = ":memory:"

// Storage is a SQLite implementation of the storage interface.
// The pool holds a single connection, so every transaction runs alone.
type Storage struct {
	db     *sqlx.DB
	layout model.Layout
}

// New opens (creating if needed) the database at path and initializes the schema
func New(path string, layout model.Layout) (*Storage, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}

	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	// SQLite doesn't support multiple writers; one connection also keeps
	// an in-memory database alive for the pool's lifetime
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Storage{db: db, layout: layout}
	if err := s.initializeSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database
func (s *Storage) Close() error {
	return s.db.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

func (s *Storage) initializeSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS progress_records (
			owner BLOB PRIMARY KEY,
			layout_tag INTEGER NOT NULL,
			data BLOB NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create progress_records table: %w", err)
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS accounts (
			identity BLOB PRIMARY KEY,
			username TEXT UNIQUE,
			display_name TEXT NOT NULL,
			password_hash TEXT NOT NULL DEFAULT '',
			is_guest BOOLEAN NOT NULL,
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create accounts table: %w", err)
	}
	return nil
}

// Progress record operations

func (s *Storage) CreateRecord(ctx context.Context, record *model.ProgressRecord) error {
	data, err := s.layout.Encode(record)
	if err != nil {
		return err
	}

	owner := record.Owner()
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO progress_records (owner, layout_tag, data) VALUES (?, ?, ?)`,
		owner[:], record.LayoutTag(), data,
	)
	if err != nil {
		return fmt.Errorf("create record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrAlreadyInitialized
	}
	return nil
}

func (s *Storage) GetRecord(ctx context.Context, owner model.Identity) (*model.ProgressRecord, error) {
	return s.getRecord(ctx, s.db, owner)
}

func (s *Storage) getRecord(ctx context.Context, q sqlx.QueryerContext, owner model.Identity) (*model.ProgressRecord, error) {
	var data []byte
	err := sqlx.GetContext(ctx, q, &data, `SELECT data FROM progress_records WHERE owner = ?`, owner[:])
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrRecordNotFound
		}
		return nil, fmt.Errorf("get record: %w", err)
	}
	return s.layout.Decode(data)
}

func (s *Storage) RecordExists(ctx context.Context, owner model.Identity) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM progress_records WHERE owner = ?)`, owner[:])
	if err != nil {
		return false, fmt.Errorf("record exists: %w", err)
	}
	return exists, nil
}

func (s *Storage) UpdateRecord(ctx context.Context, owner model.Identity, fn storage.UpdateFunc) (*model.ProgressRecord, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	record, err := s.getRecord(ctx, tx, owner)
	if err != nil {
		return nil, err
	}

	changed, err := fn(record)
	if err != nil {
		return nil, err
	}
	if !changed {
		return record, nil
	}

	encoded, err := s.layout.Encode(record)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE progress_records SET data = ?, updated_at = CURRENT_TIMESTAMP WHERE owner = ?`,
		encoded, owner[:],
	)
	if err != nil {
		return nil, fmt.Errorf("update record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return record, nil
}

// Account operations

type accountRow struct {
	Identity     []byte         `db:"identity"`
	Username     sql.NullString `db:"username"`
	DisplayName  string         `db:"display_name"`
	PasswordHash string         `db:"password_hash"`
	IsGuest      bool           `db:"is_guest"`
	CreatedAt    time.Time      `db:"created_at"`
}

func (r accountRow) toModel() (*model.Account, error) {
	id, err := model.IdentityFromBytes(r.Identity)
	if err != nil {
		return nil, err
	}
	return &model.Account{
		Identity:     id,
		DisplayName:  r.DisplayName,
		Username:     r.Username.String,
		PasswordHash: r.PasswordHash,
		IsGuest:      r.IsGuest,
		CreatedAt:    r.CreatedAt,
	}, nil
}

func (s *Storage) SaveAccount(ctx context.Context, account *model.Account) error {
	row := accountRow{
		Identity:     account.Identity[:],
		Username:     sql.NullString{String: account.Username, Valid: account.Username != ""},
		DisplayName:  account.DisplayName,
		PasswordHash: account.PasswordHash,
		IsGuest:      account.IsGuest,
		CreatedAt:    account.CreatedAt.UTC(),
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO accounts (identity, username, display_name, password_hash, is_guest, created_at)
		VALUES (:identity, :username, :display_name, :password_hash, :is_guest, :created_at)
		ON CONFLICT (identity) DO UPDATE SET
			username = excluded.username,
			display_name = excluded.display_name,
			password_hash = excluded.password_hash,
			is_guest = excluded.is_guest
	`, row)
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrUsernameTaken
		}
		return fmt.Errorf("save account: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *Storage) GetAccount(ctx context.Context, id model.Identity) (*model.Account, error) {
	return s.getAccount(ctx, `SELECT * FROM accounts WHERE identity = ?`, id[:])
}

func (s *Storage) GetAccountByUsername(ctx context.Context, username string) (*model.Account, error) {
	return s.getAccount(ctx, `SELECT * FROM accounts WHERE username = ?`, username)
}

func (s *Storage) getAccount(ctx context.Context, query string, arg any) (*model.Account, error) {
	var row accountRow
	if err := s.db.GetContext(ctx, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrAccountNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return row.toModel()
}
