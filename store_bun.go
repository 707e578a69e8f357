package hopon

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// kvRecord is one durable storage entry. The table is the SDK's analogue of
// browser localStorage: a handful of well-known keys holding JSON documents.
type kvRecord struct {
	bun.BaseModel `bun:"table:client_state,alias:cs"`
	Key           string    `bun:"key,pk" json:"key"`
	Value         []byte    `bun:"value,notnull" json:"value"`
	UpdatedAt     time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

// BunStore persists client state in sqlite through Bun.
type BunStore struct {
	db *bun.DB
}

var _ Store = (*BunStore)(nil)

// NewBunStore wraps an existing Bun handle and ensures the state table
// exists.
func NewBunStore(ctx context.Context, db *bun.DB) (*BunStore, error) {
	if _, err := db.NewCreateTable().
		Model((*kvRecord)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return nil, err
	}

	return &BunStore{db: db}, nil
}

// OpenBunStore opens (or creates) a sqlite database at dsn and returns a
// store backed by it. Use "file:hopon.db" for a durable store or
// "file::memory:?cache=shared" for throwaway runs.
func OpenBunStore(ctx context.Context, dsn string) (*BunStore, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, err
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())
	store, err := NewBunStore(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *BunStore) Get(ctx context.Context, key string) ([]byte, error) {
	record := &kvRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("key = ?", key).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}

	return record.Value, nil
}

func (s *BunStore) Set(ctx context.Context, key string, value []byte) error {
	record := &kvRecord{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now(),
	}

	_, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)

	return err
}

func (s *BunStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.NewDelete().
		Model((*kvRecord)(nil)).
		Where("key = ?", key).
		Exec(ctx)

	return err
}

// Close releases the underlying database handle.
func (s *BunStore) Close() error {
	return s.db.Close()
}
