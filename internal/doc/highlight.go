package doc

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// highlightColors maps color names to their display values. Unknown
// names fall through to the raw input.
var highlightColors = map[string]string{
	"yellow": "#ffeb3b",
	"green":  "#a5d6a7",
	"blue":   "#90caf9",
	"pink":   "#f48fb1",
	"orange": "#ffcc80",
}

// ResolveColor maps a highlight color name to its display value, falling
// back to the raw input when the name is not in the table.
func ResolveColor(name string) string {
	if resolved, ok := highlightColors[strings.ToLower(strings.TrimSpace(name))]; ok {
		return resolved
	}
	return name
}

// HighlightOutcome reports the result of a Highlight pass.
type HighlightOutcome struct {
	HTML        string
	Matches     int
	Highlighted int
}

// ClearOutcome reports the result of a ClearHighlight pass.
type ClearOutcome struct {
	HTML    string
	Matches int
	Cleared int
}

// termPattern builds a case-insensitive literal matcher for term. Regex
// metacharacters in term are escaped; this is substring matching, not
// pattern matching.
func termPattern(term string) *regexp.Regexp {
	return regexp.MustCompile("(?i)" + regexp.QuoteMeta(term))
}

// Highlight wraps every occurrence of term inside fragment in a marker
// element carrying the resolved color. Text nodes whose direct parent is
// already a marker are skipped, so re-applying over previous output finds
// nothing new. Matches that span a node boundary (a term split by an
// inline formatting element) are not detected; scanning is per text node.
func Highlight(fragment, term, color string) (HighlightOutcome, error) {
	out := HighlightOutcome{}
	if strings.TrimSpace(term) == "" {
		out.HTML = fragment
		return out, nil
	}

	container, err := ParseFragment(fragment)
	if err != nil {
		return out, err
	}

	pattern := termPattern(term)
	resolved := ResolveColor(color)

	for _, txt := range textNodes(container) {
		if isMarker(txt.Parent) {
			continue
		}
		spans := pattern.FindAllStringIndex(txt.Data, -1)
		if len(spans) == 0 {
			continue
		}
		out.Matches += len(spans)
		if txt.Parent == nil {
			// Detached node, nothing to replace into.
			continue
		}
		out.Highlighted += len(spans)
		replaceWithMarked(txt, spans, resolved)
	}

	rendered, err := RenderChildren(container)
	if err != nil {
		return HighlightOutcome{}, err
	}
	out.HTML = rendered
	return out, nil
}

// replaceWithMarked splits txt into plain and marker-wrapped fragments
// according to the match spans and swaps them in place of txt.
func replaceWithMarked(txt *html.Node, spans [][]int, color string) {
	parent := txt.Parent
	data := txt.Data
	cursor := 0

	insert := func(n *html.Node) {
		parent.InsertBefore(n, txt)
	}

	for _, span := range spans {
		if span[0] > cursor {
			insert(&html.Node{Type: html.TextNode, Data: data[cursor:span[0]]})
		}
		marker := &html.Node{
			Type: html.ElementNode,
			Data: markerTag,
			Attr: []html.Attribute{{Key: colorAttr, Val: color}},
		}
		marker.AppendChild(&html.Node{Type: html.TextNode, Data: data[span[0]:span[1]]})
		insert(marker)
		cursor = span[1]
	}
	if cursor < len(data) {
		insert(&html.Node{Type: html.TextNode, Data: data[cursor:]})
	}
	parent.RemoveChild(txt)
}

// ClearHighlight unwraps marker elements whose own text content contains
// term (case-insensitive). Markers wrapping other terms are left alone;
// unwrapping keeps the text, it never deletes it.
func ClearHighlight(fragment, term string) (ClearOutcome, error) {
	out := ClearOutcome{}
	if strings.TrimSpace(term) == "" {
		out.HTML = fragment
		return out, nil
	}

	container, err := ParseFragment(fragment)
	if err != nil {
		return out, err
	}

	needle := strings.ToLower(term)
	var markers []*html.Node
	walk(container, func(n *html.Node) {
		if isMarker(n) {
			markers = append(markers, n)
		}
	})

	for _, marker := range markers {
		text := TextContent(marker)
		if !strings.Contains(strings.ToLower(text), needle) {
			continue
		}
		out.Matches++
		if marker.Parent == nil {
			continue
		}
		marker.Parent.InsertBefore(&html.Node{Type: html.TextNode, Data: text}, marker)
		marker.Parent.RemoveChild(marker)
		out.Cleared++
	}

	rendered, err := RenderChildren(container)
	if err != nil {
		return ClearOutcome{}, err
	}
	out.HTML = rendered
	return out, nil
}

// CountOccurrences counts matches of term in fragment using the same
// matching rules as Highlight, including the per-text-node limitation.
// An empty term counts as zero; the scan never fails on malformed input.
func CountOccurrences(fragment, term string) int {
	if strings.TrimSpace(term) == "" {
		return 0
	}
	container, err := ParseFragment(fragment)
	if err != nil {
		return 0
	}
	pattern := termPattern(term)
	total := 0
	for _, txt := range textNodes(container) {
		if isMarker(txt.Parent) {
			continue
		}
		total += len(pattern.FindAllStringIndex(txt.Data, -1))
	}
	return total
}
