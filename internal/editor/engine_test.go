package editor

import (
	"strings"
	"testing"
)

func mustEngine(t *testing.T, content string) *Engine {
	t.Helper()
	engine, err := NewEngine(content)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return engine
}

func TestEnginePlainText(t *testing.T) {
	engine := mustEngine(t, "<p>One</p><p>Two</p>")
	if got := engine.PlainText(); got != "One\n\nTwo" {
		t.Errorf("PlainText = %q", got)
	}
}

func TestEngineWrapsBareText(t *testing.T) {
	engine := mustEngine(t, "just text")
	if got := engine.PlainText(); got != "just text" {
		t.Errorf("PlainText = %q", got)
	}
	if !strings.Contains(engine.HTML(), "<p>") {
		t.Errorf("bare text not wrapped: %s", engine.HTML())
	}
}

func TestEngineSelectAll(t *testing.T) {
	engine := mustEngine(t, "<p>Alpha</p><p>Beta</p>")
	engine.SelectAll()
	if got := engine.SelectedText(); got != "Alpha\n\nBeta" {
		t.Errorf("SelectedText = %q", got)
	}
}

func TestEngineSelectClamps(t *testing.T) {
	engine := mustEngine(t, "<p>Hi</p>")
	engine.Select(-5, 999)
	start, end := engine.Selection()
	if start != 0 || end != len("Hi") {
		t.Errorf("selection = [%d,%d)", start, end)
	}
}

func TestEngineReplaceWholeSelection(t *testing.T) {
	engine := mustEngine(t, "<p>Old content</p>")
	engine.SelectAll()
	if err := engine.ReplaceSelection("", "<p>New content</p>"); err != nil {
		t.Fatalf("ReplaceSelection failed: %v", err)
	}
	if got := engine.PlainText(); got != "New content" {
		t.Errorf("PlainText after replace = %q", got)
	}
}

func TestEngineReplacePartialSelection(t *testing.T) {
	engine := mustEngine(t, "<p>Hello cruel world</p>")
	// Select "cruel " (offsets 6..12).
	engine.Select(6, 12)
	if err := engine.ReplaceSelection("kind ", ""); err != nil {
		t.Fatalf("ReplaceSelection failed: %v", err)
	}
	plain := engine.PlainText()
	if !strings.Contains(plain, "Hello") || !strings.Contains(plain, "kind") || !strings.Contains(plain, "world") {
		t.Errorf("unexpected plain text: %q", plain)
	}
	if strings.Contains(plain, "cruel") {
		t.Errorf("selected text survived replacement: %q", plain)
	}
}

func TestEngineReplaceAcrossBlocks(t *testing.T) {
	engine := mustEngine(t, "<p>First block</p><p>Second block</p>")
	// From inside "First" to inside "Second": 6 .. 13+6.
	plain := engine.PlainText()
	start := strings.Index(plain, "block")
	end := strings.Index(plain, "Second") + len("Second")
	engine.Select(start, end)
	if err := engine.ReplaceSelection("", "<p>bridge</p>"); err != nil {
		t.Fatalf("ReplaceSelection failed: %v", err)
	}
	got := engine.PlainText()
	if !strings.Contains(got, "First") || !strings.Contains(got, "bridge") || !strings.Contains(got, "block") {
		t.Errorf("unexpected plain text: %q", got)
	}
	if strings.Contains(got, "Second") {
		t.Errorf("removed range survived: %q", got)
	}
}

func TestEngineReplaceAtCaret(t *testing.T) {
	engine := mustEngine(t, "<p>AB</p>")
	engine.Select(1, 1)
	if err := engine.ReplaceSelection("", "<p>mid</p>"); err != nil {
		t.Fatalf("ReplaceSelection failed: %v", err)
	}
	got := engine.PlainText()
	if !strings.Contains(got, "A") || !strings.Contains(got, "mid") || !strings.Contains(got, "B") {
		t.Errorf("unexpected plain text: %q", got)
	}
}

func TestEngineReplaceEmptyContent(t *testing.T) {
	engine := mustEngine(t, "<p>Keep</p>")
	if err := engine.ReplaceSelection("", ""); err != ErrEmptyContent {
		t.Errorf("expected ErrEmptyContent, got %v", err)
	}
	if got := engine.PlainText(); got != "Keep" {
		t.Errorf("document changed on rejected replace: %q", got)
	}
}

func TestEngineChangeNotification(t *testing.T) {
	engine := mustEngine(t, "<p>Doc</p>")
	calls := 0
	unsub := engine.OnChange(func() { calls++ })
	engine.SelectAll()
	engine.SelectAll() // explicit selection always notifies
	if calls != 2 {
		t.Errorf("expected 2 notifications, got %d", calls)
	}
	unsub()
	engine.SelectAll()
	if calls != 2 {
		t.Errorf("unsubscribed listener still notified, calls=%d", calls)
	}
}

func TestEngineManualNumberingEmptySelection(t *testing.T) {
	engine := mustEngine(t, "<p>Text</p>")
	engine.Select(0, 0)
	if _, err := engine.ApplyManualNumbering("normal_single"); err != ErrEmptySelection {
		t.Errorf("expected ErrEmptySelection, got %v", err)
	}
}

func TestEngineManualNumberingSelection(t *testing.T) {
	engine := mustEngine(t, "<p>Alpha</p><p>Beta</p><p>Gamma</p>")
	engine.SelectAll()
	outcome, err := engine.ApplyManualNumbering("normal_single")
	if err != nil {
		t.Fatalf("ApplyManualNumbering failed: %v", err)
	}
	if outcome.Converted != 3 {
		t.Errorf("converted = %d, want 3", outcome.Converted)
	}
	want := "1. Alpha\n\n2. Beta\n\n3. Gamma"
	if got := engine.PlainText(); got != want {
		t.Errorf("PlainText = %q, want %q", got, want)
	}
}

func TestEngineManualNumberingPartialSelection(t *testing.T) {
	engine := mustEngine(t, "<p>Alpha</p><p>Beta</p><p>Gamma</p>")
	plain := engine.PlainText()
	start := strings.Index(plain, "Beta")
	engine.Select(start, len(plain))
	outcome, err := engine.ApplyManualNumbering("normal_single")
	if err != nil {
		t.Fatalf("ApplyManualNumbering failed: %v", err)
	}
	if outcome.Converted != 2 {
		t.Errorf("converted = %d, want 2", outcome.Converted)
	}
	got := engine.PlainText()
	if !strings.Contains(got, "Alpha") || strings.Contains(got, "1. Alpha") {
		t.Errorf("unselected paragraph modified: %q", got)
	}
	if !strings.Contains(got, "1. Beta") || !strings.Contains(got, "2. Gamma") {
		t.Errorf("selected paragraphs not numbered: %q", got)
	}
}
