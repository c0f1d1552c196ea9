// Package editor defines the uniform control surface for driving a
// rich-text editing backend, plus the in-process implementation. The
// cross-origin implementation lives in internal/bridge; both satisfy
// ControlAPI so application code never depends on which substrate is
// mounted.
package editor

import (
	"context"
	"errors"
	"time"

	"ghostwriter/api/internal/doc"
)

// SelectionType is the coarse classification of the current selection.
type SelectionType string

const (
	SelectionNone    SelectionType = "none"
	SelectionRange   SelectionType = "range"
	SelectionUnknown SelectionType = "unknown"
)

// SelectionSnapshot is an immutable value describing the selection at a
// point in time. Snapshots are superseded, never mutated; ChangedAt is
// monotonically non-decreasing across emissions.
type SelectionSnapshot struct {
	Text          string        `json:"text"`
	SelectionType SelectionType `json:"selectionType"`
	ChangedAt     time.Time     `json:"changedAt"`
}

// HighlightResult reports a document-wide highlight run. Highlighted can
// fall short of Matches when a node-level wrap fails; the run never
// aborts for that.
type HighlightResult struct {
	Terms       int    `json:"terms"`
	Matches     int    `json:"matches"`
	Highlighted int    `json:"highlighted"`
	Color       string `json:"color"`
}

// ClearHighlightResult reports a document-wide highlight clear.
type ClearHighlightResult struct {
	Terms   int `json:"terms"`
	Matches int `json:"matches"`
	Cleared int `json:"cleared"`
}

// NumberingResult reports a manual numbering run over the selection.
type NumberingResult struct {
	Converted    int `json:"converted"`
	HadNumbering int `json:"hadNumbering"`
}

// ControlAPI is the command surface shared by the in-process and
// cross-origin backends. Every method either returns a well-formed
// result or an error; there are no sentinel values mixed into success
// shapes. Destroy must be safe to call more than once.
type ControlAPI interface {
	Init(ctx context.Context) error
	Destroy() error
	GetSelectedText(ctx context.Context) (string, error)
	SelectAllContent(ctx context.Context) error
	GetDocumentStats(ctx context.Context) (doc.DocumentStats, error)
	ReplaceSelectionRich(ctx context.Context, text, html string) error
	AppendRichWithBlankLine(ctx context.Context, html, text string) error
	RunHighlightDocument(ctx context.Context, term, color string) (HighlightResult, error)
	ClearHighlightDocument(ctx context.Context, term string) (ClearHighlightResult, error)
	RunManualNumbering(ctx context.Context, mode doc.SpacingMode) (NumberingResult, error)
	OnSelectionChanged(listener func(SelectionSnapshot)) (unsubscribe func())
}

var (
	// ErrEmptyTerm rejects highlight operations with a blank term.
	ErrEmptyTerm = errors.New("editor: term is required")
	// ErrEmptySelection rejects selection-scoped operations when no
	// paragraph with text intersects the selection.
	ErrEmptySelection = errors.New("editor: no text selected")
	// ErrEmptyContent rejects insert operations with nothing to insert.
	ErrEmptyContent = errors.New("editor: content is required")
	// ErrBridgeTimeout reports a handshake or request that timed out.
	ErrBridgeTimeout = errors.New("editor: bridge timed out")
	// ErrBridgeClosed reports a bridge destroyed with requests in flight.
	ErrBridgeClosed = errors.New("editor: bridge closed")
	// ErrTargetUnavailable reports that the remote editor target is not
	// currently mounted; raised without attempting a round trip.
	ErrTargetUnavailable = errors.New("editor: remote target unavailable")
	// ErrUnsupportedCommand reports a command the remote side does not know.
	ErrUnsupportedCommand = errors.New("editor: unsupported command")
)

// RemoteError carries a failure reported by the remote side, message
// preserved verbatim.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return "editor: remote execution failed: " + e.Message
}
