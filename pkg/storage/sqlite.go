package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/GeorgeStrakhov/briefboarder/pkg/briefs"
	"github.com/GeorgeStrakhov/briefboarder/pkg/errors"
)

// SQLiteStore persists briefs in a single SQLite table. Canvas state and
// generation settings are stored as JSON blobs and replaced wholesale on
// update.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (or creates) the brief database at path.
// If path is ":memory:", the database is created in-memory.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.WithFields(
			errors.Wrap(err, errors.StorageFailed, "failed to open SQLite database"),
			errors.Fields{"path": path},
		)
	}

	// SQLite writes are serialized; a single connection avoids SQLITE_BUSY
	// under concurrent handlers.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db, path: path}
	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) init() error {
	if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return errors.Wrap(err, errors.StorageFailed, "failed to enable WAL mode")
	}
	if _, err := s.db.Exec("PRAGMA synchronous=NORMAL;"); err != nil {
		return errors.Wrap(err, errors.StorageFailed, "failed to set synchronous pragma")
	}

	query := `
    CREATE TABLE IF NOT EXISTS briefs (
        id TEXT PRIMARY KEY,
        slug TEXT NOT NULL UNIQUE,
        name TEXT NOT NULL,
        description TEXT NOT NULL DEFAULT '',
        canvas TEXT NOT NULL DEFAULT '[]',
        settings TEXT NOT NULL DEFAULT '{}',
        created_at DATETIME NOT NULL,
        updated_at DATETIME NOT NULL
    );

    CREATE INDEX IF NOT EXISTS idx_briefs_created_at ON briefs(created_at);
    `

	if _, err := s.db.Exec(query); err != nil {
		return errors.Wrap(err, errors.StorageFailed, "failed to initialize briefs table")
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateBrief inserts a new brief.
func (s *SQLiteStore) CreateBrief(ctx context.Context, b *briefs.Brief) error {
	if err := b.Validate(); err != nil {
		return err
	}

	canvasJSON, err := json.Marshal(b.Canvas)
	if err != nil {
		return errors.Wrap(err, errors.StorageFailed, "failed to encode canvas state")
	}
	settingsJSON, err := json.Marshal(b.Settings)
	if err != nil {
		return errors.Wrap(err, errors.StorageFailed, "failed to encode settings")
	}

	_, err = s.db.ExecContext(ctx, `
        INSERT INTO briefs (id, slug, name, description, canvas, settings, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Slug, b.Name, b.Description, string(canvasJSON), string(settingsJSON),
		b.CreatedAt.UTC(), b.UpdatedAt.UTC(),
	)
	if err != nil {
		return errors.WithFields(
			errors.Wrap(err, errors.StorageFailed, "failed to insert brief"),
			errors.Fields{"brief_id": b.ID},
		)
	}
	return nil
}

// GetBrief loads a brief by ID.
func (s *SQLiteStore) GetBrief(ctx context.Context, id string) (*briefs.Brief, error) {
	return s.getBy(ctx, "id", id)
}

// GetBriefBySlug loads a brief by its shareable slug.
func (s *SQLiteStore) GetBriefBySlug(ctx context.Context, slug string) (*briefs.Brief, error) {
	return s.getBy(ctx, "slug", slug)
}

func (s *SQLiteStore) getBy(ctx context.Context, column, value string) (*briefs.Brief, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT id, slug, name, description, canvas, settings, created_at, updated_at
        FROM briefs WHERE `+column+` = ?`, value)

	b, err := scanBrief(row)
	if err == sql.ErrNoRows {
		return nil, errors.WithFields(
			errors.New(errors.ResourceNotFound, "brief not found"),
			errors.Fields{column: value},
		)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.StorageFailed, "failed to load brief")
	}
	return b, nil
}

// ListBriefs returns all briefs, newest first.
func (s *SQLiteStore) ListBriefs(ctx context.Context) ([]*briefs.Brief, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, slug, name, description, canvas, settings, created_at, updated_at
        FROM briefs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, errors.Wrap(err, errors.StorageFailed, "failed to list briefs")
	}
	defer rows.Close()

	var result []*briefs.Brief
	for rows.Next() {
		b, err := scanBrief(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.StorageFailed, "failed to scan brief row")
		}
		result = append(result, b)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.StorageFailed, "failed to iterate briefs")
	}
	return result, nil
}

// UpdateBrief merges the present fields of params into the stored brief and
// writes the record back with whole-field replacement.
func (s *SQLiteStore) UpdateBrief(ctx context.Context, id string, params briefs.UpdateParams) (*briefs.Brief, error) {
	b, err := s.GetBrief(ctx, id)
	if err != nil {
		return nil, err
	}

	b.Apply(params, time.Now())

	canvasJSON, err := json.Marshal(b.Canvas)
	if err != nil {
		return nil, errors.Wrap(err, errors.StorageFailed, "failed to encode canvas state")
	}
	settingsJSON, err := json.Marshal(b.Settings)
	if err != nil {
		return nil, errors.Wrap(err, errors.StorageFailed, "failed to encode settings")
	}

	_, err = s.db.ExecContext(ctx, `
        UPDATE briefs SET name = ?, description = ?, canvas = ?, settings = ?, updated_at = ?
        WHERE id = ?`,
		b.Name, b.Description, string(canvasJSON), string(settingsJSON), b.UpdatedAt.UTC(), id,
	)
	if err != nil {
		return nil, errors.WithFields(
			errors.Wrap(err, errors.StorageFailed, "failed to update brief"),
			errors.Fields{"brief_id": id},
		)
	}
	return b, nil
}

// DeleteBrief removes a brief by ID.
func (s *SQLiteStore) DeleteBrief(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM briefs WHERE id = ?`, id)
	if err != nil {
		return errors.WithFields(
			errors.Wrap(err, errors.StorageFailed, "failed to delete brief"),
			errors.Fields{"brief_id": id},
		)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, errors.StorageFailed, "failed to read delete result")
	}
	if affected == 0 {
		return errors.WithFields(
			errors.New(errors.ResourceNotFound, "brief not found"),
			errors.Fields{"brief_id": id},
		)
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanBrief(row scanner) (*briefs.Brief, error) {
	var b briefs.Brief
	var canvasJSON, settingsJSON string

	err := row.Scan(&b.ID, &b.Slug, &b.Name, &b.Description, &canvasJSON, &settingsJSON, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(canvasJSON), &b.Canvas); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(settingsJSON), &b.Settings); err != nil {
		return nil, err
	}
	return &b, nil
}
