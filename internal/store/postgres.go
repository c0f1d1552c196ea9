package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveDocument upserts a document's title and content.
func (s *PostgresStore) SaveDocument(ctx context.Context, doc Document) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, title, html)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, html=EXCLUDED.html, updated_at=NOW()
	`, doc.ID, doc.Title, doc.HTML)
	if err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, id string) (Document, error) {
	var doc Document
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, html, updated_at, created_at
		FROM documents
		WHERE id=$1
	`, id).Scan(&doc.ID, &doc.Title, &doc.HTML, &doc.UpdatedAt, &doc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

func (s *PostgresStore) ListDocuments(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, updated_at, created_at
		FROM documents
		ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	items := make([]Document, 0)
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.UpdatedAt, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		items = append(items, doc)
	}
	return items, rows.Err()
}

func (s *PostgresStore) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveFileMeta inserts the metadata row for an uploaded object.
func (s *PostgresStore) SaveFileMeta(ctx context.Context, meta FileMeta) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO files (id, original_name, stored_name, mime_type, size, ext, extracted_text)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, meta.ID, meta.OriginalName, meta.StoredName, meta.MimeType, meta.Size, meta.Ext, meta.ExtractedText)
	if err != nil {
		return fmt.Errorf("save file meta: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetFileMeta(ctx context.Context, id string) (FileMeta, error) {
	var meta FileMeta
	err := s.db.QueryRowContext(ctx, `
		SELECT id, original_name, stored_name, mime_type, size, ext, extracted_text, created_at
		FROM files
		WHERE id=$1
	`, id).Scan(&meta.ID, &meta.OriginalName, &meta.StoredName, &meta.MimeType, &meta.Size, &meta.Ext, &meta.ExtractedText, &meta.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return FileMeta{}, ErrNotFound
	}
	if err != nil {
		return FileMeta{}, fmt.Errorf("get file meta: %w", err)
	}
	return meta, nil
}

func (s *PostgresStore) ListFiles(ctx context.Context) ([]FileMeta, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, original_name, stored_name, mime_type, size, ext, created_at
		FROM files
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	items := make([]FileMeta, 0)
	for rows.Next() {
		var meta FileMeta
		if err := rows.Scan(&meta.ID, &meta.OriginalName, &meta.StoredName, &meta.MimeType, &meta.Size, &meta.Ext, &meta.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan file meta: %w", err)
		}
		items = append(items, meta)
	}
	return items, rows.Err()
}

// UpdateFileText refreshes the extracted text of an uploaded file.
func (s *PostgresStore) UpdateFileText(ctx context.Context, id, text string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE files SET extracted_text=$2 WHERE id=$1`, id, text)
	if err != nil {
		return fmt.Errorf("update file text: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
