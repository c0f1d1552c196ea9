package editor

import (
	"context"
	"strings"
	"sync"

	"ghostwriter/api/internal/doc"
)

// separatorLine is the visual rule inserted before appended content.
const separatorLine = "________________________"

// InProcess drives a live Engine directly. Methods execute synchronously
// but share the ControlAPI signatures so callers cannot tell it apart
// from the cross-origin backend.
type InProcess struct {
	engine  *Engine
	emitter *SnapshotEmitter

	mu          sync.Mutex
	unsubEngine func()
}

// NewInProcess binds a control API to one live engine instance.
func NewInProcess(engine *Engine) *InProcess {
	return &InProcess{engine: engine, emitter: NewSnapshotEmitter()}
}

// Init subscribes to the engine's selection-change events and
// immediately records the current snapshot.
func (c *InProcess) Init(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unsubEngine != nil {
		return nil
	}
	c.emitter.Seed(SnapshotFor(c.currentText()))
	c.unsubEngine = c.engine.OnChange(func() {
		c.emitter.Emit(SnapshotFor(c.currentText()))
	})
	return nil
}

// Destroy unsubscribes from the engine and clears the listener set.
// Safe to call repeatedly.
func (c *InProcess) Destroy() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unsubEngine != nil {
		c.unsubEngine()
		c.unsubEngine = nil
	}
	c.emitter.Clear()
	return nil
}

func (c *InProcess) currentText() string {
	return strings.TrimSpace(c.engine.SelectedText())
}

func (c *InProcess) GetSelectedText(ctx context.Context) (string, error) {
	return c.currentText(), nil
}

func (c *InProcess) SelectAllContent(ctx context.Context) error {
	c.engine.SelectAll()
	return nil
}

func (c *InProcess) GetDocumentStats(ctx context.Context) (doc.DocumentStats, error) {
	return doc.ComputeStats(c.engine.PlainText()), nil
}

func (c *InProcess) ReplaceSelectionRich(ctx context.Context, text, html string) error {
	if strings.TrimSpace(text) == "" && strings.TrimSpace(html) == "" {
		return ErrEmptyContent
	}
	return c.engine.ReplaceSelection(text, html)
}

// AppendRichWithBlankLine appends content at the document end, preceded
// by a blank line and a separator rule. Empty boundary paragraphs are
// trimmed first so repeated appends do not compound blank lines.
func (c *InProcess) AppendRichWithBlankLine(ctx context.Context, html, text string) error {
	normalized, err := normalizeAppendFragment(html)
	if err != nil {
		return err
	}
	if normalized == "" {
		if strings.TrimSpace(text) == "" {
			return ErrEmptyContent
		}
		normalized = textToParagraphs(text)
	}
	return c.engine.AppendHTML("<p></p><p>" + separatorLine + "</p>" + normalized)
}

func (c *InProcess) RunHighlightDocument(ctx context.Context, term, color string) (HighlightResult, error) {
	if strings.TrimSpace(term) == "" {
		return HighlightResult{}, ErrEmptyTerm
	}
	outcome, err := doc.Highlight(c.engine.HTML(), term, color)
	if err != nil {
		return HighlightResult{}, err
	}
	if err := c.engine.SetContentHTML(outcome.HTML); err != nil {
		return HighlightResult{}, err
	}
	return HighlightResult{
		Terms:       1,
		Matches:     outcome.Matches,
		Highlighted: outcome.Highlighted,
		Color:       doc.ResolveColor(color),
	}, nil
}

func (c *InProcess) ClearHighlightDocument(ctx context.Context, term string) (ClearHighlightResult, error) {
	if strings.TrimSpace(term) == "" {
		return ClearHighlightResult{}, ErrEmptyTerm
	}
	outcome, err := doc.ClearHighlight(c.engine.HTML(), term)
	if err != nil {
		return ClearHighlightResult{}, err
	}
	if err := c.engine.SetContentHTML(outcome.HTML); err != nil {
		return ClearHighlightResult{}, err
	}
	return ClearHighlightResult{Terms: 1, Matches: outcome.Matches, Cleared: outcome.Cleared}, nil
}

func (c *InProcess) RunManualNumbering(ctx context.Context, mode doc.SpacingMode) (NumberingResult, error) {
	outcome, err := c.engine.ApplyManualNumbering(mode)
	if err != nil {
		return NumberingResult{}, err
	}
	return NumberingResult{Converted: outcome.Converted, HadNumbering: outcome.HadNumbering}, nil
}

func (c *InProcess) OnSelectionChanged(listener func(SelectionSnapshot)) func() {
	return c.emitter.Subscribe(listener)
}

// normalizeAppendFragment trims empty leading and trailing paragraphs
// from an HTML fragment and returns the re-rendered remainder, or ""
// when nothing with text is left.
func normalizeAppendFragment(fragment string) (string, error) {
	if strings.TrimSpace(fragment) == "" {
		return "", nil
	}
	container, err := doc.ParseFragment(fragment)
	if err != nil {
		return "", err
	}
	for container.FirstChild != nil && strings.TrimSpace(doc.TextContent(container.FirstChild)) == "" {
		container.RemoveChild(container.FirstChild)
	}
	for container.LastChild != nil && strings.TrimSpace(doc.TextContent(container.LastChild)) == "" {
		container.RemoveChild(container.LastChild)
	}
	rendered, err := doc.RenderChildren(container)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(doc.TextContent(container)) == "" {
		return "", nil
	}
	return rendered, nil
}
