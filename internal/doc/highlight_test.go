package doc

import (
	"strings"
	"testing"

	"golang.org/x/net/html"
)

func textOf(t *testing.T, fragment string) string {
	t.Helper()
	container, err := ParseFragment(fragment)
	if err != nil {
		t.Fatalf("parse fragment: %v", err)
	}
	return TextContent(container)
}

func TestHighlightWrapsMatches(t *testing.T) {
	out, err := Highlight("<p>Alpha beta alpha</p>", "alpha", "yellow")
	if err != nil {
		t.Fatalf("Highlight failed: %v", err)
	}
	if out.Matches != 2 {
		t.Errorf("expected 2 matches, got %d", out.Matches)
	}
	if out.Highlighted != out.Matches {
		t.Errorf("expected highlighted == matches, got %d != %d", out.Highlighted, out.Matches)
	}
	if !strings.Contains(out.HTML, `<mark data-color="#ffeb3b">Alpha</mark>`) {
		t.Errorf("original casing not preserved in marker: %s", out.HTML)
	}
	if !strings.Contains(out.HTML, `<mark data-color="#ffeb3b">alpha</mark>`) {
		t.Errorf("second occurrence not wrapped: %s", out.HTML)
	}
}

func TestHighlightMarkerColorAttribute(t *testing.T) {
	out, err := Highlight("<p>nota sobre nota</p>", "nota", "green")
	if err != nil {
		t.Fatalf("Highlight failed: %v", err)
	}
	container, err := ParseFragment(out.HTML)
	if err != nil {
		t.Fatalf("parse highlighted fragment: %v", err)
	}

	var colors []string
	walk(container, func(n *html.Node) {
		if isMarker(n) {
			colors = append(colors, markerColor(n))
		}
	})
	if len(colors) != 2 {
		t.Fatalf("expected 2 markers, got %d", len(colors))
	}
	for _, c := range colors {
		if c != ResolveColor("green") {
			t.Errorf("marker color = %q, want %q", c, ResolveColor("green"))
		}
	}
}

func TestHighlightIdempotent(t *testing.T) {
	first, err := Highlight("<p>term here and term there</p>", "term", "yellow")
	if err != nil {
		t.Fatalf("first Highlight failed: %v", err)
	}
	if first.Matches != 2 {
		t.Fatalf("expected 2 matches on first pass, got %d", first.Matches)
	}

	second, err := Highlight(first.HTML, "term", "yellow")
	if err != nil {
		t.Fatalf("second Highlight failed: %v", err)
	}
	if second.Matches != 0 {
		t.Errorf("re-applying highlight matched %d times, want 0", second.Matches)
	}
}

func TestHighlightClearRoundTrip(t *testing.T) {
	original := "<p>The quick brown fox jumps over the lazy dog</p><p>fox again</p>"
	highlighted, err := Highlight(original, "fox", "green")
	if err != nil {
		t.Fatalf("Highlight failed: %v", err)
	}
	cleared, err := ClearHighlight(highlighted.HTML, "fox")
	if err != nil {
		t.Fatalf("ClearHighlight failed: %v", err)
	}
	if cleared.Matches != 2 || cleared.Cleared != 2 {
		t.Errorf("expected 2 markers cleared, got matches=%d cleared=%d", cleared.Matches, cleared.Cleared)
	}
	if got, want := textOf(t, cleared.HTML), textOf(t, original); got != want {
		t.Errorf("round trip changed text content: got %q want %q", got, want)
	}
}

func TestClearHighlightLeavesOtherTerms(t *testing.T) {
	fragment := `<p><mark data-color="y">alpha</mark> and <mark data-color="y">beta</mark></p>`
	out, err := ClearHighlight(fragment, "alpha")
	if err != nil {
		t.Fatalf("ClearHighlight failed: %v", err)
	}
	if out.Matches != 1 || out.Cleared != 1 {
		t.Errorf("expected one eligible marker, got matches=%d cleared=%d", out.Matches, out.Cleared)
	}
	if !strings.Contains(out.HTML, "<mark") {
		t.Errorf("marker for other term removed: %s", out.HTML)
	}
	if strings.Contains(out.HTML, ">alpha</mark>") {
		t.Errorf("alpha marker not unwrapped: %s", out.HTML)
	}
}

func TestHighlightEscapesRegexMetacharacters(t *testing.T) {
	out, err := Highlight("<p>cost is $1.50 today, aXb not a.b</p>", "$1.50", "yellow")
	if err != nil {
		t.Fatalf("Highlight failed: %v", err)
	}
	if out.Matches != 1 {
		t.Errorf("expected literal match of $1.50, got %d matches", out.Matches)
	}
	// A dot must not behave as a wildcard.
	if n := CountOccurrences("<p>aXb</p>", "a.b"); n != 0 {
		t.Errorf("dot matched as wildcard, count=%d", n)
	}
}

func TestHighlightDoesNotCrossNodeBoundaries(t *testing.T) {
	// "foo" split by an inline element is deliberately not detected.
	out, err := Highlight("<p>fo<em>o</em> foo</p>", "foo", "yellow")
	if err != nil {
		t.Fatalf("Highlight failed: %v", err)
	}
	if out.Matches != 1 {
		t.Errorf("expected only the whole-node occurrence, got %d", out.Matches)
	}
}

func TestCountOccurrences(t *testing.T) {
	if n := CountOccurrences("<p>aa AA aA</p>", "aa"); n != 3 {
		t.Errorf("case-insensitive count = %d, want 3", n)
	}
	if n := CountOccurrences("<p>anything</p>", ""); n != 0 {
		t.Errorf("empty term count = %d, want 0", n)
	}
	if n := CountOccurrences("<p>aaa</p>", "aa"); n != 1 {
		t.Errorf("non-overlapping scan count = %d, want 1", n)
	}
}

func TestResolveColor(t *testing.T) {
	if got := ResolveColor("yellow"); got != "#ffeb3b" {
		t.Errorf("ResolveColor(yellow) = %q", got)
	}
	if got := ResolveColor("#123456"); got != "#123456" {
		t.Errorf("unknown color should pass through, got %q", got)
	}
}
