package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"netlayers/internal/domain"
	"netlayers/internal/repository"
)

// Repository implements repository.Repository using SQLite
type Repository struct {
	db *sql.DB
}

var _ repository.Repository = (*Repository)(nil)

// New opens (or creates) the database at dbPath. ":memory:" gives a private
// in-memory database.
func New(dbPath string) (*Repository, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		dsn = "file:" + dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection keeps an in-memory database alive and serializes writers
	db.SetMaxOpenConns(1)

	repo := &Repository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

func (r *Repository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		id TEXT PRIMARY KEY,
		path TEXT NOT NULL,
		name TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		node_count INTEGER NOT NULL DEFAULT 0,
		connection_count INTEGER NOT NULL DEFAULT 0,
		document JSON NOT NULL
	);

	CREATE TABLE IF NOT EXISTS recent_files (
		path TEXT PRIMARY KEY,
		name TEXT,
		opened_at INTEGER NOT NULL,
		seq INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_path ON snapshots(path, created_at);
	CREATE INDEX IF NOT EXISTS idx_recent_seq ON recent_files(seq);
	`

	_, err := r.db.Exec(schema)
	return err
}

// Close closes the database
func (r *Repository) Close() error {
	return r.db.Close()
}

// SaveSnapshot stores a copy of doc for path and prunes the oldest
// snapshots beyond MaxSnapshotsPerPath
func (r *Repository) SaveSnapshot(ctx context.Context, path string, doc *domain.Document) (*repository.Snapshot, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}

	snap := &repository.Snapshot{
		ID:              uuid.New().String(),
		Path:            path,
		Name:            doc.Metadata.Name,
		CreatedAt:       time.Now().UTC(),
		NodeCount:       len(doc.Nodes),
		ConnectionCount: doc.ConnectionCount(),
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshots (id, path, name, created_at, node_count, connection_count, document)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, snap.ID, snap.Path, snap.Name, snap.CreatedAt.UnixNano(), snap.NodeCount, snap.ConnectionCount, string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to insert snapshot: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM snapshots WHERE path = ? AND id NOT IN (
			SELECT id FROM snapshots WHERE path = ? ORDER BY created_at DESC, rowid DESC LIMIT ?
		)
	`, path, path, repository.MaxSnapshotsPerPath)
	if err != nil {
		return nil, fmt.Errorf("failed to prune snapshots: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return snap, nil
}

// ListSnapshots returns the snapshots of path, newest first, without their
// documents
func (r *Repository) ListSnapshots(ctx context.Context, path string) ([]repository.Snapshot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, path, name, created_at, node_count, connection_count
		FROM snapshots WHERE path = ?
		ORDER BY created_at DESC, rowid DESC
	`, path)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []repository.Snapshot
	for rows.Next() {
		var (
			s       repository.Snapshot
			created int64
		)
		if err := rows.Scan(&s.ID, &s.Path, &s.Name, &created, &s.NodeCount, &s.ConnectionCount); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		s.CreatedAt = fromUnixNano(created)
		snaps = append(snaps, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}
	return snaps, nil
}

// GetSnapshot returns one snapshot including its document
func (r *Repository) GetSnapshot(ctx context.Context, id string) (*repository.Snapshot, error) {
	var (
		s       repository.Snapshot
		created int64
		data    string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, path, name, created_at, node_count, connection_count, document
		FROM snapshots WHERE id = ?
	`, id).Scan(&s.ID, &s.Path, &s.Name, &created, &s.NodeCount, &s.ConnectionCount, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Kind: "snapshot", Key: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}

	s.CreatedAt = fromUnixNano(created)
	s.Document = &domain.Document{}
	if err := json.Unmarshal([]byte(data), s.Document); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot document: %w", err)
	}
	return &s, nil
}

// TouchRecent moves path to the top of the recent list and trims the list
// to MaxRecentFiles
func (r *Repository) TouchRecent(ctx context.Context, path, name string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return &domain.ValidationError{Field: "path", Reason: "required"}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO recent_files (path, name, opened_at, seq)
		VALUES (?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM recent_files))
		ON CONFLICT(path) DO UPDATE SET
			name = excluded.name,
			opened_at = excluded.opened_at,
			seq = excluded.seq
	`, path, stringToNull(name), time.Now().UTC().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to record recent file: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM recent_files WHERE path NOT IN (
			SELECT path FROM recent_files ORDER BY seq DESC LIMIT ?
		)
	`, repository.MaxRecentFiles)
	if err != nil {
		return fmt.Errorf("failed to trim recent files: %w", err)
	}

	return tx.Commit()
}

// RecentFiles returns the recent list, most recent first
func (r *Repository) RecentFiles(ctx context.Context) ([]repository.RecentFile, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT path, name, opened_at FROM recent_files ORDER BY seq DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent files: %w", err)
	}
	defer rows.Close()

	files := []repository.RecentFile{}
	for rows.Next() {
		var (
			f      repository.RecentFile
			name   sql.NullString
			opened int64
		)
		if err := rows.Scan(&f.Path, &name, &opened); err != nil {
			return nil, fmt.Errorf("failed to scan recent file: %w", err)
		}
		f.Name = nullToString(name)
		f.OpenedAt = fromUnixNano(opened)
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recent files: %w", err)
	}
	return files, nil
}

// RemoveRecent drops path from the recent list
func (r *Repository) RemoveRecent(ctx context.Context, path string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM recent_files WHERE path = ?`, path)
	if err != nil {
		return fmt.Errorf("failed to remove recent file: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.NotFoundError{Kind: "recent file", Key: path}
	}
	return nil
}
