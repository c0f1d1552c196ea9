package doc

import (
	"fmt"
	"strings"
	"testing"
)

func paragraphsFragment(n int) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "<p>Item %d</p>", i+1)
	}
	return sb.String()
}

func numberedTexts(t *testing.T, fragment string, mode SpacingMode) []string {
	t.Helper()
	container, err := ParseFragment(fragment)
	if err != nil {
		t.Fatalf("parse fragment: %v", err)
	}
	blocks := NonEmptyBlocks(BlockNodes(container))
	ApplyManualNumbering(blocks, mode)
	texts := make([]string, 0, len(blocks))
	for _, block := range blocks {
		texts = append(texts, TextContent(block))
	}
	return texts
}

func TestNumberingFinalTexts(t *testing.T) {
	texts := numberedTexts(t, "<p>Alpha</p><p>Beta</p><p>Gamma</p>", SpacingNormalSingle)
	want := []string{"1. Alpha", "2. Beta", "3. Gamma"}
	for i := range want {
		if texts[i] != want[i] {
			t.Errorf("paragraph %d = %q, want %q", i, texts[i], want[i])
		}
	}
}

func TestNumberingWidthThreshold(t *testing.T) {
	nine := numberedTexts(t, paragraphsFragment(9), SpacingNormalSingle)
	if !strings.HasPrefix(nine[8], "9. ") {
		t.Errorf("nine paragraphs should be unpadded, last = %q", nine[8])
	}
	if !strings.HasPrefix(nine[0], "1. ") {
		t.Errorf("nine paragraphs should be unpadded, first = %q", nine[0])
	}

	ten := numberedTexts(t, paragraphsFragment(10), SpacingNormalSingle)
	if !strings.HasPrefix(ten[0], "01. ") {
		t.Errorf("ten paragraphs should zero-pad the first prefix, got %q", ten[0])
	}
	if !strings.HasPrefix(ten[9], "10. ") {
		t.Errorf("tenth prefix = %q", ten[9])
	}
}

func TestNumberingSpacingModes(t *testing.T) {
	cases := []struct {
		mode SpacingMode
		want string
	}{
		{SpacingNormalSingle, "1. X"},
		{SpacingNormalDouble, "1.  X"},
		{SpacingNBSPSingle, "1. X"},
		{SpacingNBSPDouble, "1.  X"},
	}
	for _, tc := range cases {
		texts := numberedTexts(t, "<p>X</p>", tc.mode)
		if texts[0] != tc.want {
			t.Errorf("mode %s: got %q, want %q", tc.mode, texts[0], tc.want)
		}
	}
}

func TestNumberingSkipsEmptyParagraphs(t *testing.T) {
	texts := numberedTexts(t, "<p>One</p><p>   </p><p>Two</p>", SpacingNormalSingle)
	if len(texts) != 2 {
		t.Fatalf("expected 2 numbered paragraphs, got %d", len(texts))
	}
	if texts[0] != "1. One" || texts[1] != "2. Two" {
		t.Errorf("unexpected texts: %v", texts)
	}
}

func TestNumberingReportsNativeNumbering(t *testing.T) {
	container, err := ParseFragment("<ol><li>First</li><li>Second</li></ol><p>Loose</p>")
	if err != nil {
		t.Fatalf("parse fragment: %v", err)
	}
	blocks := NonEmptyBlocks(BlockNodes(container))
	out := ApplyManualNumbering(blocks, SpacingNormalSingle)
	if out.Converted != 3 {
		t.Errorf("converted = %d, want 3", out.Converted)
	}
	if out.HadNumbering != 2 {
		t.Errorf("hadNumbering = %d, want 2", out.HadNumbering)
	}
}
