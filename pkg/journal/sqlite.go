package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a SQLite-backed implementation of Store.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the SQLite database at dbPath and runs
// migrations. Use ":memory:" for an ephemeral store in tests.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	// WAL mode for better concurrent read performance.
	if _, err = db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err = s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS journals (
			id                TEXT PRIMARY KEY,
			user_id           TEXT NOT NULL,
			title             TEXT NOT NULL DEFAULT '',
			media_path        TEXT NOT NULL,
			transcript        TEXT NOT NULL DEFAULT '',
			transcript_lang   TEXT NOT NULL DEFAULT '',
			mood              TEXT NOT NULL DEFAULT '',
			hls_status        TEXT NOT NULL DEFAULT '',
			hls_manifest_path TEXT NOT NULL DEFAULT '',
			created_at        DATETIME NOT NULL,
			updated_at        DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_journals_user_id    ON journals(user_id);
		CREATE INDEX IF NOT EXISTS idx_journals_hls_status ON journals(hls_status);
	`)
	return err
}

func (s *SQLiteStore) Create(ctx context.Context, j *Journal) error {
	now := time.Now().UTC()
	if j.CreatedAt.IsZero() {
		j.CreatedAt = now
	}
	j.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO journals
			(id, user_id, title, media_path, transcript, transcript_lang, mood,
			 hls_status, hls_manifest_path, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		j.ID, j.UserID, j.Title, j.MediaPath, j.Transcript, j.TranscriptLang,
		j.Mood, j.HLSStatus, j.HLSManifestPath, j.CreatedAt, j.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create journal: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Journal, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, media_path, transcript, transcript_lang,
		       mood, hls_status, hls_manifest_path, created_at, updated_at
		FROM journals WHERE id = ?
	`, id)

	j := &Journal{}
	err := row.Scan(
		&j.ID, &j.UserID, &j.Title, &j.MediaPath, &j.Transcript,
		&j.TranscriptLang, &j.Mood, &j.HLSStatus, &j.HLSManifestPath,
		&j.CreatedAt, &j.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get journal %s: %w", id, err)
	}
	return j, nil
}

func (s *SQLiteStore) ListByUser(ctx context.Context, userID string) ([]*Journal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, title, media_path, transcript, transcript_lang,
		       mood, hls_status, hls_manifest_path, created_at, updated_at
		FROM journals WHERE user_id = ? ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list journals for user %s: %w", userID, err)
	}
	defer rows.Close()

	var out []*Journal
	for rows.Next() {
		j := &Journal{}
		if err := rows.Scan(
			&j.ID, &j.UserID, &j.Title, &j.MediaPath, &j.Transcript,
			&j.TranscriptLang, &j.Mood, &j.HLSStatus, &j.HLSManifestPath,
			&j.CreatedAt, &j.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan journal: %w", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SetTranscript(ctx context.Context, id, text, lang string) error {
	return s.update(ctx, id, `UPDATE journals SET transcript = ?, transcript_lang = ?, updated_at = ? WHERE id = ?`, text, lang)
}

func (s *SQLiteStore) SetMood(ctx context.Context, id, mood string) error {
	return s.update(ctx, id, `UPDATE journals SET mood = ?, updated_at = ? WHERE id = ?`, mood)
}

func (s *SQLiteStore) SetHLS(ctx context.Context, id, status, manifestPath string) error {
	return s.update(ctx, id, `UPDATE journals SET hls_status = ?, hls_manifest_path = ?, updated_at = ? WHERE id = ?`, status, manifestPath)
}

// update runs an UPDATE whose final two placeholders are updated_at and id,
// and maps zero affected rows to NotFoundError.
func (s *SQLiteStore) update(ctx context.Context, id, query string, args ...any) error {
	args = append(args, time.Now().UTC(), id)
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update journal %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update journal %s: %w", id, err)
	}
	if n == 0 {
		return &NotFoundError{ID: id}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
