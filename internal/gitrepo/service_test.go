package gitrepo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestDocumentRepoLifecycle(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	initial := Content{
		Title: "Ensaio",
		HTML:  "<p>primeiro rascunho</p>",
	}

	if err := svc.EnsureDocumentRepo("doc-1", initial, "Avery"); err != nil {
		t.Fatalf("EnsureDocumentRepo() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "doc-1")); err != nil {
		t.Fatalf("repo directory missing: %v", err)
	}

	// Re-running against an existing document is a no-op.
	if err := svc.EnsureDocumentRepo("doc-1", Content{Title: "outro"}, "Avery"); err != nil {
		t.Fatalf("EnsureDocumentRepo() second call error = %v", err)
	}

	updated := initial
	updated.HTML = "<p>segundo rascunho</p>"
	commit, err := svc.CommitContent("doc-1", updated, "Avery", "Revise draft")
	if err != nil {
		t.Fatalf("CommitContent() error = %v", err)
	}
	if commit.Hash == "" {
		t.Fatal("expected commit hash")
	}

	history, err := svc.History("doc-1", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(history))
	}
	if history[0].Hash != commit.Hash {
		t.Fatalf("expected newest-first history, head %s got %s", commit.Hash, history[0].Hash)
	}

	changed, err := svc.GetContentByHash("doc-1", commit.Hash)
	if err != nil {
		t.Fatalf("GetContentByHash() error = %v", err)
	}
	if changed.HTML != "<p>segundo rascunho</p>" {
		t.Fatalf("unexpected content: %+v", changed)
	}

	baseline, err := svc.GetContentByHash("doc-1", history[1].Hash)
	if err != nil {
		t.Fatalf("GetContentByHash() baseline error = %v", err)
	}
	if baseline.HTML != "<p>primeiro rascunho</p>" {
		t.Fatalf("unexpected baseline content: %+v", baseline)
	}
}

func TestCommitContentSkipsUnchangedSaves(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	initial := Content{Title: "Ensaio", HTML: "<p>texto</p>"}
	if err := svc.EnsureDocumentRepo("doc-1", initial, "Avery"); err != nil {
		t.Fatalf("EnsureDocumentRepo() error = %v", err)
	}

	first, err := svc.CommitContent("doc-1", initial, "Avery", "Save")
	if err != nil {
		t.Fatalf("CommitContent() error = %v", err)
	}
	second, err := svc.CommitContent("doc-1", initial, "Avery", "Save again")
	if err != nil {
		t.Fatalf("CommitContent() repeat error = %v", err)
	}
	if first.Hash != second.Hash {
		t.Fatalf("expected unchanged save to reuse head %s, got %s", first.Hash, second.Hash)
	}

	history, err := svc.History("doc-1", 0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected single commit, got %d", len(history))
	}
}

func TestGetHeadContentRoundTrip(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	initial := Content{
		Title: "Ensaio",
		HTML:  `<h1>Ensaio</h1><p>par&aacute;grafo &lt;um&gt;</p><blockquote><p>citado</p></blockquote>`,
	}
	if err := svc.EnsureDocumentRepo("doc-1", initial, "Avery"); err != nil {
		t.Fatalf("EnsureDocumentRepo() error = %v", err)
	}

	updated := initial
	updated.Title = "Ensaio (editado)"
	if _, err := svc.CommitContent("doc-1", updated, "Avery", "Rename"); err != nil {
		t.Fatalf("CommitContent() error = %v", err)
	}

	got, head, err := svc.GetHeadContent("doc-1")
	if err != nil {
		t.Fatalf("GetHeadContent() error = %v", err)
	}
	if got.Title != "Ensaio (editado)" {
		t.Fatalf("unexpected title: %q", got.Title)
	}
	if got.HTML != initial.HTML {
		t.Fatalf("HTML mismatch after round-trip\nwant=%s\ngot=%s", initial.HTML, got.HTML)
	}
	if head.Author != "Avery" {
		t.Fatalf("unexpected author: %q", head.Author)
	}
}

func TestConcurrentCommitContent(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	initial := Content{Title: "Ensaio", HTML: "<p>base</p>"}
	if err := svc.EnsureDocumentRepo("doc-1", initial, "Avery"); err != nil {
		t.Fatalf("EnsureDocumentRepo() error = %v", err)
	}

	const writers = 12
	var wg sync.WaitGroup
	errCh := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			next := initial
			next.HTML = fmt.Sprintf("<p>versao-%02d</p>", idx)
			if _, err := svc.CommitContent("doc-1", next, "Avery", fmt.Sprintf("Commit %02d", idx)); err != nil {
				errCh <- err
			}
		}(i)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil {
			t.Fatalf("CommitContent() concurrent error = %v", err)
		}
	}

	history, err := svc.History("doc-1", 100)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) < 2 {
		t.Fatalf("expected baseline plus at least one commit, got %d", len(history))
	}

	head, _, err := svc.GetHeadContent("doc-1")
	if err != nil {
		t.Fatalf("GetHeadContent() error = %v", err)
	}
	if !strings.HasPrefix(head.HTML, "<p>versao-") {
		t.Fatalf("unexpected head content after concurrent commits: %+v", head)
	}
}
