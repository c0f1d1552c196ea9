package doc

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// SpacingMode selects the separator appended after the numeral prefix.
type SpacingMode string

const (
	SpacingNormalSingle SpacingMode = "normal_single"
	SpacingNormalDouble SpacingMode = "normal_double"
	SpacingNBSPSingle   SpacingMode = "nbsp_single"
	SpacingNBSPDouble   SpacingMode = "nbsp_double"
)

const nbsp = "\u00a0"

// NumberingOutcome reports a manual numbering pass. HadNumbering counts
// paragraphs that already carried native ordered-list formatting; the
// caller decides whether to strip it, the algorithm does not.
type NumberingOutcome struct {
	Converted    int
	HadNumbering int
}

func spacingSuffix(mode SpacingMode) string {
	switch mode {
	case SpacingNormalDouble:
		return "  "
	case SpacingNBSPSingle:
		return nbsp
	case SpacingNBSPDouble:
		return nbsp + nbsp
	default:
		return " "
	}
}

// NumberPrefix formats the 1-based numeral prefix for position i out of
// total paragraphs. More than 9 paragraphs zero-pads numerals to two
// digits so columns stay aligned; the threshold is fixed.
func NumberPrefix(i, total int, mode SpacingMode) string {
	suffix := spacingSuffix(mode)
	if total > 9 {
		return fmt.Sprintf("%02d.%s", i+1, suffix)
	}
	return fmt.Sprintf("%d.%s", i+1, suffix)
}

// ApplyManualNumbering inserts numeral prefixes at the start of each
// block's text content. Blocks are structural node handles, so inserting
// into one cannot invalidate another's position and order of insertion
// does not matter.
func ApplyManualNumbering(blocks []*html.Node, mode SpacingMode) NumberingOutcome {
	out := NumberingOutcome{}
	total := len(blocks)
	for i, block := range blocks {
		if isAutoNumbered(block) {
			out.HadNumbering++
		}
		prefix := &html.Node{Type: html.TextNode, Data: NumberPrefix(i, total, mode)}
		if block.FirstChild != nil {
			block.InsertBefore(prefix, block.FirstChild)
		} else {
			block.AppendChild(prefix)
		}
		out.Converted++
	}
	return out
}

// isAutoNumbered reports whether block is a list item inside a native
// ordered list.
func isAutoNumbered(block *html.Node) bool {
	if block.Type != html.ElementNode || block.Data != "li" {
		return false
	}
	for parent := block.Parent; parent != nil; parent = parent.Parent {
		if parent.Type == html.ElementNode {
			switch parent.Data {
			case "ol":
				return true
			case "ul":
				return false
			}
		}
	}
	return false
}

// NonEmptyBlocks filters blocks down to those with non-blank text.
func NonEmptyBlocks(blocks []*html.Node) []*html.Node {
	var filtered []*html.Node
	for _, block := range blocks {
		if strings.TrimSpace(TextContent(block)) != "" {
			filtered = append(filtered, block)
		}
	}
	return filtered
}
