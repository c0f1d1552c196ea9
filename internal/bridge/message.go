// Package bridge implements the cross-origin editor control backend:
// a typed message channel between the application and a remote editor
// plugin, with request/response correlation, timeouts and a readiness
// handshake, plus the remote-side command handler.
package bridge

import (
	"encoding/json"
	"fmt"
)

// Source tags identify the two ends of the channel. They are part of
// the channel contract; messages with a foreign source are dropped so
// multiple bridge instances cannot cross-talk.
const (
	SourceApp    = "ghostwriter-app"
	SourcePlugin = "ghostwriter-plugin"
)

// MessageType discriminates envelope payloads.
type MessageType string

const (
	TypeCommand          MessageType = "command"
	TypeResponse         MessageType = "response"
	TypeError            MessageType = "error"
	TypeReady            MessageType = "ready"
	TypeSelectionChanged MessageType = "selectionChanged"
)

// Command names understood by the remote handler.
const (
	CmdGetSelectedText  = "getSelectedText"
	CmdSelectAllContent = "selectAllContent"
	CmdReplaceSelection = "replaceSelection"
	CmdRefreshSelection = "refreshSelection"
	CmdGetDocumentStats = "getDocumentStats"
	CmdAppendRich       = "appendRichWithBlankLine"
	CmdHighlight        = "macro1HighlightDocument"
	CmdClearHighlight   = "macro1ClearHighlightDocument"
	CmdManualNumbering  = "macro2ManualNumberingSelection"
)

// Envelope is the JSON message exchanged in both directions.
type Envelope struct {
	Source  string          `json:"source"`
	Type    MessageType     `json:"type"`
	ID      string          `json:"id,omitempty"`
	Command string          `json:"command,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ResponsePayload carries a successful command result back to the app.
type ResponsePayload struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
}

// ErrorPayload carries a remote failure back to the app.
type ErrorPayload struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// ReplaceSelectionPayload is the replaceSelection command payload. HTML
// is preferred; plain text is the fallback.
type ReplaceSelectionPayload struct {
	Text string `json:"text"`
	HTML string `json:"html,omitempty"`
}

// AppendPayload is the appendRichWithBlankLine command payload.
type AppendPayload struct {
	HTML string `json:"html,omitempty"`
	Text string `json:"text,omitempty"`
}

// HighlightPayload is the highlight apply/clear command payload.
type HighlightPayload struct {
	Text  string `json:"text"`
	Color string `json:"color,omitempty"`
}

// NumberingPayload is the manual numbering command payload.
type NumberingPayload struct {
	Mode string `json:"mode"`
}

// OKResult acknowledges side-effect-only commands.
type OKResult struct {
	OK bool `json:"ok"`
}

func marshalPayload(v any) (json.RawMessage, error) {
	if v == nil {
		return json.RawMessage(`{}`), nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return raw, nil
}
