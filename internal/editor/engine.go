package editor

import (
	"html"
	"strings"
	"sync"

	xhtml "golang.org/x/net/html"

	"ghostwriter/api/internal/doc"
)

// blockSeparator joins paragraph texts in the plain-text rendering. A
// blank line between paragraphs keeps the stats paragraph split honest.
const blockSeparator = "\n\n"

type span struct {
	start, end int
}

// Engine is the in-process rich-text document model: an HTML document
// with a selection expressed as byte offsets over its plain-text
// rendering. It is the single mutable resource behind the in-process
// ControlAPI; callers must serialize conflicting mutations themselves.
type Engine struct {
	mu       sync.Mutex
	content  string
	texts    []string
	spans    []span
	plain    string
	selStart int
	selEnd   int

	changeMu  sync.Mutex
	nextSubID int
	changeFns map[int]func()
}

// NewEngine builds an engine over an initial HTML fragment. Bare text
// without any block element is wrapped in a paragraph.
func NewEngine(content string) (*Engine, error) {
	e := &Engine{changeFns: map[int]func(){}}
	if err := e.setContentLocked(content); err != nil {
		return nil, err
	}
	return e, nil
}

// OnChange registers a callback invoked after every selection or content
// change. Returns an unsubscribe func.
func (e *Engine) OnChange(fn func()) func() {
	e.changeMu.Lock()
	id := e.nextSubID
	e.nextSubID++
	e.changeFns[id] = fn
	e.changeMu.Unlock()
	return func() {
		e.changeMu.Lock()
		delete(e.changeFns, id)
		e.changeMu.Unlock()
	}
}

func (e *Engine) notify() {
	e.changeMu.Lock()
	fns := make([]func(), 0, len(e.changeFns))
	for _, fn := range e.changeFns {
		fns = append(fns, fn)
	}
	e.changeMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// HTML returns the current document fragment.
func (e *Engine) HTML() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.content
}

// PlainText returns the plain-text rendering used for offsets and stats.
func (e *Engine) PlainText() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.plain
}

// SelectedText returns the text covered by the current selection, empty
// when collapsed.
func (e *Engine) SelectedText() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.plain[e.selStart:e.selEnd]
}

// Selection returns the current selection offsets.
func (e *Engine) Selection() (start, end int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selStart, e.selEnd
}

// Select sets the selection, clamped to the document, and always
// notifies: explicit selection operations force an emission even when
// the range is unchanged.
func (e *Engine) Select(start, end int) {
	e.mu.Lock()
	e.selStart, e.selEnd = clampRange(start, end, len(e.plain))
	e.mu.Unlock()
	e.notify()
}

// SelectAll selects the whole document.
func (e *Engine) SelectAll() {
	e.mu.Lock()
	e.selStart, e.selEnd = 0, len(e.plain)
	e.mu.Unlock()
	e.notify()
}

// SetContentHTML replaces the whole document; used by macro commits,
// which are full-document replacements rather than patches.
func (e *Engine) SetContentHTML(content string) error {
	e.mu.Lock()
	if err := e.setContentLocked(content); err != nil {
		e.mu.Unlock()
		return err
	}
	e.mu.Unlock()
	e.notify()
	return nil
}

// AppendHTML appends a fragment at the document end.
func (e *Engine) AppendHTML(fragment string) error {
	e.mu.Lock()
	if err := e.setContentLocked(e.content + fragment); err != nil {
		e.mu.Unlock()
		return err
	}
	e.mu.Unlock()
	e.notify()
	return nil
}

// setContentLocked re-parses content and rebuilds the block index. The
// selection is clamped into the new document. Caller holds e.mu.
func (e *Engine) setContentLocked(content string) error {
	container, err := doc.ParseFragment(content)
	if err != nil {
		return err
	}
	blocks := doc.BlockNodes(container)
	if len(blocks) == 0 && strings.TrimSpace(doc.TextContent(container)) != "" {
		container, err = doc.ParseFragment("<p>" + content + "</p>")
		if err != nil {
			return err
		}
		rendered, err := doc.RenderChildren(container)
		if err != nil {
			return err
		}
		content = rendered
		blocks = doc.BlockNodes(container)
	}

	e.content = content
	e.texts = e.texts[:0]
	e.spans = e.spans[:0]
	offset := 0
	for i, block := range blocks {
		if i > 0 {
			offset += len(blockSeparator)
		}
		text := doc.TextContent(block)
		e.texts = append(e.texts, text)
		e.spans = append(e.spans, span{offset, offset + len(text)})
		offset += len(text)
	}
	e.plain = strings.Join(e.texts, blockSeparator)
	e.selStart, e.selEnd = clampRange(e.selStart, e.selEnd, len(e.plain))
	return nil
}

// ReplaceSelection inserts a fragment at the selection, replacing any
// selected range. HTML is preferred over plain text; the caret lands at
// the end of the inserted content.
func (e *Engine) ReplaceSelection(text, fragment string) error {
	insert := strings.TrimSpace(fragment)
	if insert == "" {
		if strings.TrimSpace(text) == "" {
			return ErrEmptyContent
		}
		insert = textToParagraphs(text)
	}

	e.mu.Lock()
	insNodes, insText, err := parseInsertable(insert)
	if err != nil {
		e.mu.Unlock()
		return err
	}

	container, err := doc.ParseFragment(e.content)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	blocks := doc.BlockNodes(container)

	selStart, selEnd := clampRange(e.selStart, e.selEnd, len(e.plain))
	if len(blocks) == 0 {
		for _, n := range insNodes {
			container.AppendChild(n)
		}
	} else if selStart == selEnd {
		e.insertAtCaret(blocks, insNodes, selStart)
	} else {
		e.replaceRange(blocks, insNodes, selStart, selEnd)
	}

	rendered, err := doc.RenderChildren(container)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	caret := selStart + len(insText)
	e.selStart, e.selEnd = caret, caret
	if err := e.setContentLocked(rendered); err != nil {
		e.mu.Unlock()
		return err
	}
	e.mu.Unlock()
	e.notify()
	return nil
}

// insertAtCaret places insNodes at a collapsed selection. Caller holds
// e.mu; blocks/spans refer to the current parse.
func (e *Engine) insertAtCaret(blocks []*xhtml.Node, insNodes []*xhtml.Node, caret int) {
	idx := len(blocks) - 1
	for i, sp := range e.spans {
		if caret <= sp.end {
			idx = i
			break
		}
	}
	block := blocks[idx]
	rel := clampInt(caret-e.spans[idx].start, 0, len(e.texts[idx]))
	prefix, suffix := e.texts[idx][:rel], e.texts[idx][rel:]

	switch {
	case suffix == "":
		insertNodesAfter(block, insNodes)
	case prefix == "":
		for _, n := range insNodes {
			block.Parent.InsertBefore(n, block)
		}
	default:
		replaceChildrenWithText(block, prefix)
		insertNodesAfter(block, insNodes)
		insertNodesAfter(insNodes[len(insNodes)-1], []*xhtml.Node{paragraphOf(suffix)})
	}
}

// replaceRange removes the selected span across blocks and splices
// insNodes in its place. Caller holds e.mu.
func (e *Engine) replaceRange(blocks []*xhtml.Node, insNodes []*xhtml.Node, selStart, selEnd int) {
	firstIdx, lastIdx := -1, -1
	for i, sp := range e.spans {
		if selStart < sp.end && selEnd > sp.start {
			if firstIdx == -1 {
				firstIdx = i
			}
			lastIdx = i
		}
	}
	if firstIdx == -1 {
		insertNodesAfter(blocks[len(blocks)-1], insNodes)
		return
	}

	relStart := clampInt(selStart-e.spans[firstIdx].start, 0, len(e.texts[firstIdx]))
	relEnd := clampInt(selEnd-e.spans[lastIdx].start, 0, len(e.texts[lastIdx]))
	prefix := e.texts[firstIdx][:relStart]
	suffix := e.texts[lastIdx][relEnd:]

	first := blocks[firstIdx]
	replaceChildrenWithText(first, prefix)
	insertNodesAfter(first, insNodes)

	if firstIdx == lastIdx {
		if suffix != "" {
			insertNodesAfter(insNodes[len(insNodes)-1], []*xhtml.Node{paragraphOf(suffix)})
		}
	} else {
		last := blocks[lastIdx]
		if suffix == "" {
			last.Parent.RemoveChild(last)
		} else {
			replaceChildrenWithText(last, suffix)
		}
	}
	for i := firstIdx + 1; i < lastIdx; i++ {
		if blocks[i].Parent != nil {
			blocks[i].Parent.RemoveChild(blocks[i])
		}
	}
	if prefix == "" {
		first.Parent.RemoveChild(first)
	}
}

// ApplyManualNumbering numbers the non-empty paragraphs intersecting the
// current selection and commits the mutated tree back.
func (e *Engine) ApplyManualNumbering(mode doc.SpacingMode) (doc.NumberingOutcome, error) {
	e.mu.Lock()
	container, err := doc.ParseFragment(e.content)
	if err != nil {
		e.mu.Unlock()
		return doc.NumberingOutcome{}, err
	}
	blocks := doc.BlockNodes(container)

	var selected []*xhtml.Node
	for i, block := range blocks {
		if i >= len(e.spans) {
			break
		}
		sp := e.spans[i]
		if e.selStart < sp.end && e.selEnd > sp.start || (e.selStart == sp.start && e.selEnd == sp.end) {
			selected = append(selected, block)
		}
	}
	selected = doc.NonEmptyBlocks(selected)
	if len(selected) == 0 {
		e.mu.Unlock()
		return doc.NumberingOutcome{}, ErrEmptySelection
	}

	outcome := doc.ApplyManualNumbering(selected, mode)
	rendered, err := doc.RenderChildren(container)
	if err != nil {
		e.mu.Unlock()
		return doc.NumberingOutcome{}, err
	}
	if err := e.setContentLocked(rendered); err != nil {
		e.mu.Unlock()
		return doc.NumberingOutcome{}, err
	}
	e.mu.Unlock()
	e.notify()
	return outcome, nil
}

func insertNodesAfter(ref *xhtml.Node, nodes []*xhtml.Node) {
	for _, n := range nodes {
		if ref.NextSibling != nil {
			ref.Parent.InsertBefore(n, ref.NextSibling)
		} else {
			ref.Parent.AppendChild(n)
		}
		ref = n
	}
}

func replaceChildrenWithText(block *xhtml.Node, text string) {
	for block.FirstChild != nil {
		block.RemoveChild(block.FirstChild)
	}
	if text != "" {
		block.AppendChild(&xhtml.Node{Type: xhtml.TextNode, Data: text})
	}
}

func paragraphOf(text string) *xhtml.Node {
	p := &xhtml.Node{Type: xhtml.ElementNode, Data: "p"}
	p.AppendChild(&xhtml.Node{Type: xhtml.TextNode, Data: text})
	return p
}

// parseInsertable parses the fragment to insert, wrapping inline-only
// content in a paragraph, and returns the detached nodes plus their
// plain-text rendering.
func parseInsertable(fragment string) ([]*xhtml.Node, string, error) {
	container, err := doc.ParseFragment(fragment)
	if err != nil {
		return nil, "", err
	}
	if len(doc.BlockNodes(container)) == 0 {
		container, err = doc.ParseFragment("<p>" + fragment + "</p>")
		if err != nil {
			return nil, "", err
		}
	}
	var (
		nodes []*xhtml.Node
		texts []string
	)
	for container.FirstChild != nil {
		n := container.FirstChild
		container.RemoveChild(n)
		nodes = append(nodes, n)
		texts = append(texts, doc.TextContent(n))
	}
	return nodes, strings.Join(texts, blockSeparator), nil
}

func textToParagraphs(text string) string {
	var sb strings.Builder
	for _, para := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		if strings.TrimSpace(para) == "" {
			continue
		}
		sb.WriteString("<p>")
		sb.WriteString(html.EscapeString(strings.ReplaceAll(para, "\n", " ")))
		sb.WriteString("</p>")
	}
	if sb.Len() == 0 {
		return "<p>" + html.EscapeString(text) + "</p>"
	}
	return sb.String()
}

func clampRange(start, end, max int) (int, int) {
	start = clampInt(start, 0, max)
	end = clampInt(end, 0, max)
	if end < start {
		start, end = end, start
	}
	return start, end
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
