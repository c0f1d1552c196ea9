// Package doc implements the document mutation algorithms: term
// highlighting, highlight clearing, occurrence counting, manual list
// numbering and document statistics. All functions are pure with respect
// to their inputs; callers commit results back into the live document.
package doc

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// markerTag is the element used to wrap highlighted text. The resolved
// color travels in the data-color attribute.
const markerTag = "mark"

const colorAttr = "data-color"

var blockTags = map[string]struct{}{
	"p": {}, "h1": {}, "h2": {}, "h3": {}, "h4": {}, "h5": {}, "h6": {},
	"li": {}, "blockquote": {}, "pre": {}, "div": {},
}

// ParseFragment parses an HTML fragment in body context and returns a
// container element whose children are the fragment's top-level nodes.
func ParseFragment(fragment string) (*html.Node, error) {
	context := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), context)
	if err != nil {
		return nil, fmt.Errorf("parse fragment: %w", err)
	}
	container := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	for _, n := range nodes {
		container.AppendChild(n)
	}
	return container, nil
}

// RenderChildren serializes the children of container back to HTML.
func RenderChildren(container *html.Node) (string, error) {
	var sb strings.Builder
	for child := container.FirstChild; child != nil; child = child.NextSibling {
		if err := html.Render(&sb, child); err != nil {
			return "", fmt.Errorf("render fragment: %w", err)
		}
	}
	return sb.String(), nil
}

// TextContent returns the concatenated text of all text nodes under n.
func TextContent(n *html.Node) string {
	var sb strings.Builder
	walk(n, func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
	})
	return sb.String()
}

// BlockNodes returns the paragraph-level blocks under container in
// document order. A block is a block-tagged element that contains no
// nested block element, i.e. the smallest text-bearing structural unit.
func BlockNodes(container *html.Node) []*html.Node {
	var blocks []*html.Node
	walk(container, func(n *html.Node) {
		if isLeafBlock(n) {
			blocks = append(blocks, n)
		}
	})
	return blocks
}

func isLeafBlock(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if _, ok := blockTags[n.Data]; !ok {
		return false
	}
	hasNested := false
	walkChildren(n, func(child *html.Node) {
		if child.Type == html.ElementNode {
			if _, ok := blockTags[child.Data]; ok {
				hasNested = true
			}
		}
	})
	return !hasNested
}

func isMarker(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode && n.Data == markerTag
}

func markerColor(n *html.Node) string {
	for _, attr := range n.Attr {
		if attr.Key == colorAttr {
			return attr.Val
		}
	}
	return ""
}

// walk visits n and every descendant in document order.
func walk(n *html.Node, visit func(*html.Node)) {
	visit(n)
	walkChildren(n, visit)
}

func walkChildren(n *html.Node, visit func(*html.Node)) {
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		walk(child, visit)
	}
}

// textNodes collects text nodes under container in document order. The
// snapshot is taken before any mutation so replacing nodes while
// iterating stays safe.
func textNodes(container *html.Node) []*html.Node {
	var nodes []*html.Node
	walk(container, func(n *html.Node) {
		if n.Type == html.TextNode {
			nodes = append(nodes, n)
		}
	})
	return nodes
}
