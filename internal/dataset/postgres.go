package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/krjackso/gw2-data-repo/internal/acquisition"
)

// Schema is the SQL DDL for the items table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS items (
    id           INTEGER PRIMARY KEY,
    name         TEXT NOT NULL,
    type         TEXT NOT NULL DEFAULT '',
    rarity       TEXT NOT NULL DEFAULT '',
    level        INTEGER NOT NULL DEFAULT 0,
    flags        JSONB NOT NULL DEFAULT '[]',
    wiki_url     TEXT NOT NULL DEFAULT '',
    acquisitions JSONB NOT NULL DEFAULT '[]',
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_items_name ON items(name);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by PostgreSQL. Acquisitions are
// serialised as JSONB; the table is an export surface for consumers, not the
// canonical dataset, so the full structure stays in one column.
type PostgresStore struct {
	db DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a PostgresStore over the given connection or
// pool. Call [PostgresStore.Migrate] before issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("dataset: migrate: %w", err)
	}
	return nil
}

// Load implements [Store].
func (s *PostgresStore) Load(ctx context.Context, id int) (*acquisition.Item, bool, error) {
	const query = `
		SELECT id, name, type, rarity, level, flags, wiki_url, acquisitions, updated_at
		FROM items
		WHERE id = $1`

	var item acquisition.Item
	var flagsJSON, acqJSON []byte
	var updatedAt time.Time

	err := s.db.QueryRow(ctx, query, id).Scan(
		&item.ID, &item.Name, &item.Type, &item.Rarity, &item.Level,
		&flagsJSON, &item.WikiURL, &acqJSON, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("dataset: load %d: %w", id, err)
	}

	if err := json.Unmarshal(flagsJSON, &item.Flags); err != nil {
		return nil, false, fmt.Errorf("dataset: decoding flags for %d: %w", id, err)
	}
	if err := json.Unmarshal(acqJSON, &item.Acquisitions); err != nil {
		return nil, false, fmt.Errorf("dataset: decoding acquisitions for %d: %w", id, err)
	}
	item.LastUpdated = updatedAt.UTC().Format(time.RFC3339)
	return &item, true, nil
}

// Save implements [Store] as an upsert.
func (s *PostgresStore) Save(ctx context.Context, item *acquisition.Item) error {
	flagsJSON, err := json.Marshal(emptySlice(item.Flags))
	if err != nil {
		return fmt.Errorf("dataset: marshal flags: %w", err)
	}
	acqJSON, err := json.Marshal(emptyAcqSlice(item.Acquisitions))
	if err != nil {
		return fmt.Errorf("dataset: marshal acquisitions: %w", err)
	}

	const query = `
		INSERT INTO items (id, name, type, rarity, level, flags, wiki_url, acquisitions, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,now())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, type = EXCLUDED.type, rarity = EXCLUDED.rarity,
			level = EXCLUDED.level, flags = EXCLUDED.flags, wiki_url = EXCLUDED.wiki_url,
			acquisitions = EXCLUDED.acquisitions, updated_at = now()`

	if _, err := s.db.Exec(ctx, query,
		item.ID, item.Name, item.Type, item.Rarity, item.Level,
		flagsJSON, item.WikiURL, acqJSON,
	); err != nil {
		return fmt.Errorf("dataset: save %d: %w", item.ID, err)
	}
	return nil
}

// IDs implements [Store].
func (s *PostgresStore) IDs(ctx context.Context) ([]int, error) {
	rows, err := s.db.Query(ctx, `SELECT id FROM items ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("dataset: listing ids: %w", err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("dataset: scanning id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dataset: listing ids: %w", err)
	}
	return ids, nil
}

// Delete implements [Store]. Deleting an absent item is not an error.
func (s *PostgresStore) Delete(ctx context.Context, id int) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM items WHERE id = $1`, id); err != nil {
		return fmt.Errorf("dataset: delete %d: %w", id, err)
	}
	return nil
}

// emptySlice normalises nil to an empty slice so JSONB columns never hold
// SQL NULL.
func emptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func emptyAcqSlice(s []acquisition.Acquisition) []acquisition.Acquisition {
	if s == nil {
		return []acquisition.Acquisition{}
	}
	return s
}
