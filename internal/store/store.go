// Package store persists document metadata and activity events in Postgres.
// It is the system of record for what was ingested; chunk vectors live in
// the remote index.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

type Store struct {
	DB *sql.DB
}

// Document is one ingested file's metadata record. Created once at
// ingestion, immutable except for deletion.
type Document struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	SizeBytes  int64     `json:"size"`
	MimeType   string    `json:"mimeType"`
	ChunkCount int       `json:"chunks"`
	UploadedBy string    `json:"uploadedBy"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// Activity is one audit event on the question-answering path.
type Activity struct {
	ID            int64     `json:"id"`
	UserID        string    `json:"userId"`
	Kind          string    `json:"type"`
	Question      string    `json:"question"`
	Response      string    `json:"response,omitempty"`
	DocumentsUsed int       `json:"documentsUsed,omitempty"`
	CreatedAt     time.Time `json:"timestamp"`
}

// UsageStats backs the admin dashboard.
type UsageStats struct {
	TotalDocuments int `json:"totalDocuments"`
	TotalQueries   int `json:"totalQueries"`
	ActiveUsers    int `json:"activeUsers"`
}

func New(ctx context.Context) (*Store, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		host := getenvDefault("POSTGRES_HOST", "localhost")
		port := getenvDefault("POSTGRES_PORT", "5432")
		user := os.Getenv("POSTGRES_USER")
		pass := os.Getenv("POSTGRES_PASSWORD")
		db := os.Getenv("POSTGRES_DB")
		ssl := getenvDefault("POSTGRES_SSLMODE", "disable")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, host, port, db, ssl)
	}
	return NewWithDSN(ctx, dsn)
}

// NewWithDSN constructs the Store using an explicit Postgres DSN
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

// InsertDocument records a newly ingested document.
func (s *Store) InsertDocument(ctx context.Context, d Document) error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("document id required")
	}
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO documents (id, filename, size_bytes, mime_type, chunk_count, uploaded_by, uploaded_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW())`,
		d.ID, d.Filename, d.SizeBytes, d.MimeType, d.ChunkCount, d.UploadedBy)
	return err
}

// GetDocument fetches a single document record.
func (s *Store) GetDocument(ctx context.Context, id string) (Document, bool, error) {
	var d Document
	err := s.DB.QueryRowContext(ctx, `
SELECT id, filename, size_bytes, mime_type, chunk_count, uploaded_by, uploaded_at
FROM documents WHERE id=$1`, id).
		Scan(&d.ID, &d.Filename, &d.SizeBytes, &d.MimeType, &d.ChunkCount, &d.UploadedBy, &d.UploadedAt)
	if err == sql.ErrNoRows {
		return Document{}, false, nil
	}
	if err != nil {
		return Document{}, false, err
	}
	return d, true, nil
}

// ListDocuments returns all document records, newest first.
func (s *Store) ListDocuments(ctx context.Context) ([]Document, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, filename, size_bytes, mime_type, chunk_count, uploaded_by, uploaded_at
FROM documents ORDER BY uploaded_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Filename, &d.SizeBytes, &d.MimeType, &d.ChunkCount, &d.UploadedBy, &d.UploadedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DeleteDocument removes a document record. Returns sql.ErrNoRows when the
// id is unknown.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("document id required")
	}
	res, err := s.DB.ExecContext(ctx, `DELETE FROM documents WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	} else if err != nil {
		return err
	}
	return nil
}

// DeleteOrphanDocuments purges records that never produced chunks and
// returns how many were removed.
func (s *Store) DeleteOrphanDocuments(ctx context.Context) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM documents WHERE chunk_count = 0`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// RecordActivity appends one audit event.
func (s *Store) RecordActivity(ctx context.Context, a Activity) error {
	if a.UserID == "" {
		a.UserID = "anonymous"
	}
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO activities (user_id, kind, question, response, documents_used, created_at)
VALUES ($1,$2,$3,$4,$5,NOW())`,
		a.UserID, a.Kind, a.Question, a.Response, a.DocumentsUsed)
	return err
}

// ListActivities returns recent activity events, newest first. userID is
// optional; limit defaults to 100.
func (s *Store) ListActivities(ctx context.Context, userID string, limit int) ([]Activity, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
SELECT id, user_id, kind, question, response, documents_used, created_at
FROM activities`
	args := []any{}
	if userID != "" {
		query += ` WHERE user_id=$1`
		args = append(args, userID)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Activity
	for rows.Next() {
		var a Activity
		if err := rows.Scan(&a.ID, &a.UserID, &a.Kind, &a.Question, &a.Response, &a.DocumentsUsed, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// PruneActivities drops events older than the cutoff and returns the count.
func (s *Store) PruneActivities(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM activities WHERE created_at < $1`, olderThan)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Stats aggregates the dashboard counters.
func (s *Store) Stats(ctx context.Context) (UsageStats, error) {
	var st UsageStats
	err := s.DB.QueryRowContext(ctx, `
SELECT
  (SELECT COUNT(*) FROM documents),
  (SELECT COUNT(*) FROM activities WHERE kind = 'chat_question'),
  (SELECT COUNT(DISTINCT user_id) FROM activities WHERE created_at >= NOW() - INTERVAL '24 hours')`).
		Scan(&st.TotalDocuments, &st.TotalQueries, &st.ActiveUsers)
	return st, err
}
