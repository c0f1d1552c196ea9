package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"ghostwriter/api/internal/doc"
	"ghostwriter/api/internal/editor"
)

// defaultPollInterval paces the handler's selection poller.
const defaultPollInterval = 300 * time.Millisecond

// Handler is the plugin end of the channel: it announces readiness,
// answers commands against a local control API and pushes selection
// changes to the app. One handler serves one connection.
type Handler struct {
	api          editor.ControlAPI
	conn         Conn
	pollInterval time.Duration

	mu       sync.Mutex
	lastSent editor.SelectionSnapshot
	hasSent  bool
}

// NewHandler binds api to the plugin end of conn.
func NewHandler(api editor.ControlAPI, conn Conn) *Handler {
	return &Handler{api: api, conn: conn, pollInterval: defaultPollInterval}
}

// SetPollInterval overrides the selection poll cadence; tests use this
// to keep runs fast.
func (h *Handler) SetPollInterval(d time.Duration) {
	if d > 0 {
		h.pollInterval = d
	}
}

// Run announces readiness, starts the selection poller and serves
// commands until ctx is cancelled or the connection dies.
func (h *Handler) Run(ctx context.Context) error {
	if err := h.conn.Send(Envelope{Source: SourcePlugin, Type: TypeReady}); err != nil {
		return err
	}

	pollCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go h.pollSelection(pollCtx)

	for {
		env, err := h.conn.Receive()
		if err != nil {
			if errors.Is(err, ErrConnClosed) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if env.Source != SourceApp || env.Type != TypeCommand {
			continue
		}
		h.dispatch(ctx, env)
	}
}

// pollSelection watches the local selection and pushes a snapshot only
// when text or selection type actually changed since the last push.
func (h *Handler) pollSelection(ctx context.Context) {
	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.pushSelectionIfChanged(ctx)
		}
	}
}

func (h *Handler) pushSelectionIfChanged(ctx context.Context) {
	text, err := h.api.GetSelectedText(ctx)
	if err != nil {
		return
	}
	snap := editor.SnapshotFor(text)

	h.mu.Lock()
	unchanged := h.hasSent &&
		h.lastSent.Text == snap.Text &&
		h.lastSent.SelectionType == snap.SelectionType
	if !unchanged {
		h.lastSent = snap
		h.hasSent = true
	}
	h.mu.Unlock()

	if unchanged {
		return
	}
	h.sendSelection(snap)
}

// pushSelectionNow re-reads the selection and pushes unconditionally;
// backs the refreshSelection command.
func (h *Handler) pushSelectionNow(ctx context.Context) editor.SelectionSnapshot {
	text, err := h.api.GetSelectedText(ctx)
	if err != nil {
		text = ""
	}
	snap := editor.SnapshotFor(text)

	h.mu.Lock()
	h.lastSent = snap
	h.hasSent = true
	h.mu.Unlock()

	h.sendSelection(snap)
	return snap
}

func (h *Handler) sendSelection(snap editor.SelectionSnapshot) {
	raw, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := h.conn.Send(Envelope{Source: SourcePlugin, Type: TypeSelectionChanged, Payload: raw}); err != nil {
		log.Printf("bridge handler: selection push failed: %v", err)
	}
}

func (h *Handler) dispatch(ctx context.Context, env Envelope) {
	result, err := h.execute(ctx, env)
	if err != nil {
		h.sendError(env.ID, err)
		return
	}
	h.sendResponse(env.ID, result)
}

func (h *Handler) execute(ctx context.Context, env Envelope) (any, error) {
	switch env.Command {
	case CmdGetSelectedText:
		return h.api.GetSelectedText(ctx)

	case CmdSelectAllContent:
		if err := h.api.SelectAllContent(ctx); err != nil {
			return nil, err
		}
		return OKResult{OK: true}, nil

	case CmdRefreshSelection:
		return h.pushSelectionNow(ctx), nil

	case CmdGetDocumentStats:
		return h.api.GetDocumentStats(ctx)

	case CmdReplaceSelection:
		var payload ReplaceSelectionPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return nil, err
		}
		err := h.api.ReplaceSelectionRich(ctx, payload.Text, payload.HTML)
		if err != nil && payload.HTML != "" && payload.Text != "" {
			// Rich insert can fail on malformed markup; retry plain.
			err = h.api.ReplaceSelectionRich(ctx, payload.Text, "")
		}
		if err != nil {
			return nil, err
		}
		return OKResult{OK: true}, nil

	case CmdAppendRich:
		var payload AppendPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return nil, err
		}
		if err := h.api.AppendRichWithBlankLine(ctx, payload.HTML, payload.Text); err != nil {
			return nil, err
		}
		return OKResult{OK: true}, nil

	case CmdHighlight:
		var payload HighlightPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return nil, err
		}
		return h.api.RunHighlightDocument(ctx, payload.Text, payload.Color)

	case CmdClearHighlight:
		var payload HighlightPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return nil, err
		}
		return h.api.ClearHighlightDocument(ctx, payload.Text)

	case CmdManualNumbering:
		var payload NumberingPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return nil, err
		}
		return h.api.RunManualNumbering(ctx, doc.SpacingMode(payload.Mode))

	default:
		return nil, editor.ErrUnsupportedCommand
	}
}

func (h *Handler) sendResponse(id string, result any) {
	raw, err := json.Marshal(result)
	if err != nil {
		h.sendError(id, err)
		return
	}
	payload, err := json.Marshal(ResponsePayload{ID: id, Result: raw})
	if err != nil {
		return
	}
	if err := h.conn.Send(Envelope{Source: SourcePlugin, Type: TypeResponse, ID: id, Payload: payload}); err != nil {
		log.Printf("bridge handler: response send failed: %v", err)
	}
}

func (h *Handler) sendError(id string, cause error) {
	payload, err := json.Marshal(ErrorPayload{ID: id, Message: cause.Error()})
	if err != nil {
		return
	}
	if err := h.conn.Send(Envelope{Source: SourcePlugin, Type: TypeError, ID: id, Payload: payload}); err != nil {
		log.Printf("bridge handler: error send failed: %v", err)
	}
}
