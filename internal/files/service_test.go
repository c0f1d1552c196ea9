package files

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"ghostwriter/api/internal/store"
)

type memMetaStore struct {
	mu    sync.Mutex
	metas map[string]store.FileMeta
	order []string
}

func newMemMetaStore() *memMetaStore {
	return &memMetaStore{metas: make(map[string]store.FileMeta)}
}

func (m *memMetaStore) SaveFileMeta(_ context.Context, meta store.FileMeta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metas[meta.ID] = meta
	m.order = append(m.order, meta.ID)
	return nil
}

func (m *memMetaStore) GetFileMeta(_ context.Context, id string) (store.FileMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	meta, ok := m.metas[id]
	if !ok {
		return store.FileMeta{}, store.ErrNotFound
	}
	return meta, nil
}

func (m *memMetaStore) ListFiles(_ context.Context) ([]store.FileMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]store.FileMeta, 0, len(m.order))
	for _, id := range m.order {
		items = append(items, m.metas[id])
	}
	return items, nil
}

func (m *memMetaStore) UpdateFileText(_ context.Context, id, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	meta, ok := m.metas[id]
	if !ok {
		return store.ErrNotFound
	}
	meta.ExtractedText = text
	m.metas[id] = meta
	return nil
}

func newTestService() (*Service, *memMetaStore, *MemoryStorage) {
	meta := newMemMetaStore()
	storage := NewMemoryStorage()
	return newServiceWith(meta, storage), meta, storage
}

func TestUploadStoresBytesAndExtractsText(t *testing.T) {
	svc, _, storage := newTestService()
	ctx := context.Background()

	meta, err := svc.Upload(ctx, "notes.txt", "text/plain", strings.NewReader("  linha um\nlinha dois  "))
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if meta.ID == "" {
		t.Fatal("expected a generated id")
	}
	if meta.Ext != "txt" {
		t.Errorf("expected ext txt, got %q", meta.Ext)
	}
	if !strings.HasSuffix(meta.StoredName, ".txt") {
		t.Errorf("expected stored name with .txt suffix, got %q", meta.StoredName)
	}
	if meta.ExtractedText != "linha um\nlinha dois" {
		t.Errorf("unexpected extracted text: %q", meta.ExtractedText)
	}

	rc, err := storage.Get(ctx, meta.StoredName)
	if err != nil {
		t.Fatalf("stored object missing: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "  linha um\nlinha dois  " {
		t.Errorf("stored bytes differ from upload: %q", string(data))
	}
}

func TestUploadRejectsEmpty(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Upload(context.Background(), "empty.txt", "text/plain", strings.NewReader(""))
	if !errors.Is(err, ErrEmptyUpload) {
		t.Fatalf("expected ErrEmptyUpload, got %v", err)
	}
}

func TestUploadUnsupportedFormatKeepsEmptyText(t *testing.T) {
	svc, _, _ := newTestService()

	meta, err := svc.Upload(context.Background(), "photo.png", "image/png", strings.NewReader("\x89PNG fake"))
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if meta.ExtractedText != "" {
		t.Errorf("expected empty text for png, got %q", meta.ExtractedText)
	}
}

func TestContentRoundTrip(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	uploaded, err := svc.Upload(ctx, "a.md", "text/markdown", strings.NewReader("# Titulo"))
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	meta, rc, err := svc.Content(ctx, uploaded.ID)
	if err != nil {
		t.Fatalf("Content failed: %v", err)
	}
	defer rc.Close()
	if meta.OriginalName != "a.md" {
		t.Errorf("expected original name a.md, got %q", meta.OriginalName)
	}
	data, _ := io.ReadAll(rc)
	if string(data) != "# Titulo" {
		t.Errorf("unexpected content: %q", string(data))
	}
}

func TestContentUnknownID(t *testing.T) {
	svc, _, _ := newTestService()

	_, _, err := svc.Content(context.Background(), "missing")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTextRetriesExtractionForOlderRows(t *testing.T) {
	svc, meta, storage := newTestService()
	ctx := context.Background()

	// Simulate a row written before extraction existed.
	if err := storage.Put(ctx, "file_old.txt", strings.NewReader("conteudo antigo"), 15, "text/plain"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := meta.SaveFileMeta(ctx, store.FileMeta{
		ID:         "file_old",
		StoredName: "file_old.txt",
		Ext:        "txt",
	}); err != nil {
		t.Fatalf("SaveFileMeta failed: %v", err)
	}

	text, err := svc.Text(ctx, "file_old")
	if err != nil {
		t.Fatalf("Text failed: %v", err)
	}
	if text != "conteudo antigo" {
		t.Errorf("unexpected text: %q", text)
	}

	cached, err := meta.GetFileMeta(ctx, "file_old")
	if err != nil {
		t.Fatalf("GetFileMeta failed: %v", err)
	}
	if cached.ExtractedText != "conteudo antigo" {
		t.Errorf("expected extracted text cached on the row, got %q", cached.ExtractedText)
	}
}

func TestListPreservesInsertionOrder(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	first, err := svc.Upload(ctx, "um.txt", "text/plain", strings.NewReader("um"))
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	second, err := svc.Upload(ctx, "dois.txt", "text/plain", strings.NewReader("dois"))
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	items, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 files, got %d", len(items))
	}
	if items[0].ID != first.ID || items[1].ID != second.ID {
		t.Errorf("unexpected order: %s, %s", items[0].ID, items[1].ID)
	}
}
