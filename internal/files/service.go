package files

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"regexp"
	"strings"

	"ghostwriter/api/internal/store"
	"ghostwriter/api/internal/util"

	"github.com/ledongthuc/pdf"
)

// MaxUploadSize caps a single upload at 25 MiB.
const MaxUploadSize = 25 << 20

var (
	ErrTooLarge    = errors.New("files: upload exceeds size limit")
	ErrEmptyUpload = errors.New("files: empty upload")
)

var extraneousWhitespace = regexp.MustCompile(`\s+`)

type metaStore interface {
	SaveFileMeta(context.Context, store.FileMeta) error
	GetFileMeta(context.Context, string) (store.FileMeta, error)
	ListFiles(context.Context) ([]store.FileMeta, error)
	UpdateFileText(context.Context, string, string) error
}

// Service accepts uploads, stores the bytes and extracts plain text
// from the formats the assistant can feed to the AI endpoints.
type Service struct {
	meta    metaStore
	storage ObjectStorage
}

func NewService(meta *store.PostgresStore, storage ObjectStorage) *Service {
	return &Service{meta: meta, storage: storage}
}

// newServiceWith wires arbitrary implementations, used by tests.
func newServiceWith(meta metaStore, storage ObjectStorage) *Service {
	return &Service{meta: meta, storage: storage}
}

// Upload stores the bytes, records the metadata row and extracts text
// when the format allows it. Extraction failures do not fail the
// upload; the text column just stays empty.
func (s *Service) Upload(ctx context.Context, originalName, mimeType string, r io.Reader) (store.FileMeta, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadSize+1))
	if err != nil {
		return store.FileMeta{}, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return store.FileMeta{}, ErrEmptyUpload
	}
	if len(data) > MaxUploadSize {
		return store.FileMeta{}, ErrTooLarge
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(originalName), "."))
	id := util.NewID("file")
	storedName := id
	if ext != "" {
		storedName = id + "." + ext
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	if err := s.storage.Put(ctx, storedName, bytes.NewReader(data), int64(len(data)), mimeType); err != nil {
		return store.FileMeta{}, err
	}

	text, err := ExtractText(ext, data)
	if err != nil {
		log.Printf("files: text extraction failed for %s: %v", originalName, err)
		text = ""
	}

	meta := store.FileMeta{
		ID:            id,
		OriginalName:  originalName,
		StoredName:    storedName,
		MimeType:      mimeType,
		Size:          int64(len(data)),
		Ext:           ext,
		ExtractedText: text,
	}
	if err := s.meta.SaveFileMeta(ctx, meta); err != nil {
		return store.FileMeta{}, err
	}
	return meta, nil
}

// Content returns the stored bytes of an upload together with its metadata.
func (s *Service) Content(ctx context.Context, id string) (store.FileMeta, io.ReadCloser, error) {
	meta, err := s.meta.GetFileMeta(ctx, id)
	if err != nil {
		return store.FileMeta{}, nil, err
	}
	rc, err := s.storage.Get(ctx, meta.StoredName)
	if err != nil {
		return store.FileMeta{}, nil, err
	}
	return meta, rc, nil
}

// Text returns the extracted text of an upload. If extraction never
// ran (older rows), it retries against the stored bytes.
func (s *Service) Text(ctx context.Context, id string) (string, error) {
	meta, err := s.meta.GetFileMeta(ctx, id)
	if err != nil {
		return "", err
	}
	if meta.ExtractedText != "" {
		return meta.ExtractedText, nil
	}

	rc, err := s.storage.Get(ctx, meta.StoredName)
	if err != nil {
		return "", err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("read stored object: %w", err)
	}

	text, err := ExtractText(meta.Ext, data)
	if err != nil {
		return "", err
	}
	if text != "" {
		if err := s.meta.UpdateFileText(ctx, id, text); err != nil {
			log.Printf("files: cache extracted text for %s: %v", id, err)
		}
	}
	return text, nil
}

func (s *Service) List(ctx context.Context) ([]store.FileMeta, error) {
	return s.meta.ListFiles(ctx)
}

// ExtractText pulls plain text out of an upload. Plain-text formats
// pass through; PDFs go through the pdf reader. Other formats yield
// an empty string without error.
func ExtractText(ext string, data []byte) (string, error) {
	switch ext {
	case "txt", "md", "markdown", "csv":
		return strings.TrimSpace(string(data)), nil
	case "pdf":
		return extractPDFText(data)
	default:
		return "", nil
	}
}

func extractPDFText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	content, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}

	var builder strings.Builder
	if _, err := io.Copy(&builder, content); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}

	text := extraneousWhitespace.ReplaceAllString(builder.String(), " ")
	return strings.TrimSpace(text), nil
}
