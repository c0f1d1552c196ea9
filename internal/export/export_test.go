package export

import (
	"errors"
	"strings"
	"testing"
	"time"

	"ghostwriter/api/internal/gitrepo"
)

type fakeSource struct {
	head    gitrepo.Content
	info    gitrepo.CommitInfo
	byHash  map[string]gitrepo.Content
	headErr error
}

func (f *fakeSource) GetHeadContent(documentID string) (gitrepo.Content, gitrepo.CommitInfo, error) {
	if f.headErr != nil {
		return gitrepo.Content{}, gitrepo.CommitInfo{}, f.headErr
	}
	return f.head, f.info, nil
}

func (f *fakeSource) GetContentByHash(documentID, hash string) (gitrepo.Content, error) {
	content, ok := f.byHash[hash]
	if !ok {
		return gitrepo.Content{}, errors.New("unknown revision")
	}
	return content, nil
}

func TestRenderDocumentHTML(t *testing.T) {
	html, err := RenderDocumentHTML(TemplateData{
		Title:       "Ensaio & Notas",
		ContentHTML: "<p>corpo <mark>marcado</mark></p>",
		Author:      "Avery",
		UpdatedAt:   time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("RenderDocumentHTML failed: %v", err)
	}
	if !strings.Contains(html, "<title>Ensaio &amp; Notas</title>") {
		t.Errorf("expected escaped title, got:\n%s", html)
	}
	if !strings.Contains(html, "<p>corpo <mark>marcado</mark></p>") {
		t.Error("expected content HTML passed through unescaped")
	}
	if !strings.Contains(html, "Mar 14, 2026") {
		t.Error("expected formatted date in meta line")
	}
}

func TestRenderDocumentHTMLOmitsEmptyMeta(t *testing.T) {
	html, err := RenderDocumentHTML(TemplateData{Title: "Sem autor", ContentHTML: "<p>x</p>"})
	if err != nil {
		t.Fatalf("RenderDocumentHTML failed: %v", err)
	}
	if strings.Contains(html, `class="meta"`) {
		t.Error("expected no meta line without an author")
	}
}

func TestExportContentUnavailable(t *testing.T) {
	svc := NewService(&fakeSource{headErr: errors.New("no repo")})

	_, err := svc.Export(Request{DocumentID: "doc-1", Version: "latest", Format: FormatPDF})
	if !errors.Is(err, ErrContentUnavailable) {
		t.Fatalf("expected ErrContentUnavailable, got %v", err)
	}
}

func TestExportUnsupportedFormat(t *testing.T) {
	svc := NewService(&fakeSource{head: gitrepo.Content{Title: "Doc", HTML: "<p>x</p>"}})

	_, err := svc.Export(Request{DocumentID: "doc-1", Format: Format("docx")})
	if err == nil || !strings.Contains(err.Error(), "unsupported format") {
		t.Fatalf("expected unsupported format error, got %v", err)
	}
}

func TestExportUnknownRevision(t *testing.T) {
	svc := NewService(&fakeSource{byHash: map[string]gitrepo.Content{}})

	_, err := svc.Export(Request{DocumentID: "doc-1", Version: "abc1234", Format: FormatPDF})
	if !errors.Is(err, ErrContentUnavailable) {
		t.Fatalf("expected ErrContentUnavailable, got %v", err)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Ensaio sobre a consciencia", "Ensaio-sobre-a-consciencia"},
		{"", "document"},
		{"///", "document"},
		{"Notas_2026", "Notas_2026"},
		{strings.Repeat("a", 80), strings.Repeat("a", 50)},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.input); got != tt.expected {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestHTMLDataURL(t *testing.T) {
	got := htmlDataURL("<p>a b</p>")
	want := "data:text/html;charset=utf-8,%3Cp%3Ea%20b%3C%2Fp%3E"
	if got != want {
		t.Errorf("htmlDataURL = %q, want %q", got, want)
	}
}

func TestPercentEncodeForDataURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"abc-123_.~", "abc-123_.~"},
		{"a b", "a%20b"},
		{"<p>", "%3Cp%3E"},
	}
	for _, tt := range tests {
		if got := percentEncodeForDataURL(tt.input); got != tt.expected {
			t.Errorf("percentEncodeForDataURL(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}
