package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ghostwriter/api/internal/doc"
	"ghostwriter/api/internal/editor"
)

// Resolver returns the current channel end for the remote plugin, or
// nil when the plugin is not mounted. The target is re-resolved on
// every dispatch because the remote side may be replaced at any time.
type Resolver func() Conn

// Config tunes the bridge timing. Zero values fall back to defaults.
type Config struct {
	RequestTimeout    time.Duration
	ExtendedTimeout   time.Duration
	ReadyTimeout      time.Duration
	ReadyPollInterval time.Duration
}

func (cfg Config) withDefaults() Config {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Second
	}
	if cfg.ExtendedTimeout <= 0 {
		cfg.ExtendedTimeout = 30 * time.Second
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 10 * time.Second
	}
	if cfg.ReadyPollInterval <= 0 {
		cfg.ReadyPollInterval = 250 * time.Millisecond
	}
	return cfg
}

type requestOutcome struct {
	result json.RawMessage
	err    error
}

type pendingRequest struct {
	ch    chan requestOutcome
	timer *time.Timer
}

// Client implements editor.ControlAPI by serializing commands to the
// remote plugin and correlating responses by request id. It exclusively
// owns its pending-request map and listener set.
type Client struct {
	resolve Resolver
	cfg     Config
	emitter *editor.SnapshotEmitter

	mu       sync.Mutex
	conn     Conn
	pending  map[string]*pendingRequest
	ready    bool
	closed   bool
	lastSnap editor.SelectionSnapshot

	readyCh chan struct{}
	done    chan struct{}
}

var _ editor.ControlAPI = (*Client)(nil)

// NewClient builds a bridge client over resolve.
func NewClient(resolve Resolver, cfg Config) *Client {
	return &Client{
		resolve: resolve,
		cfg:     cfg.withDefaults(),
		emitter: editor.NewSnapshotEmitter(),
		pending: map[string]*pendingRequest{},
		readyCh: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Init binds the receive loop to the currently resolved conn and waits
// for the plugin's ready handshake as a bounded-retry poll. The remote
// frame may be replaced at any time: when the resolver hands back a
// conn other than the one the loop is bound to, the handshake state
// resets and a fresh loop takes over, so a re-Init after reattach runs
// the handshake against the new plugin instead of returning early.
func (c *Client) Init(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return editor.ErrBridgeClosed
	}
	conn := c.resolve()
	if conn == nil {
		c.mu.Unlock()
		return editor.ErrTargetUnavailable
	}
	if conn != c.conn {
		c.conn = conn
		c.ready = false
		c.readyCh = make(chan struct{})
		go c.readLoop(conn)
	}
	ready := c.ready
	readyCh := c.readyCh
	c.mu.Unlock()
	if ready {
		return nil
	}

	attempts := int(c.cfg.ReadyTimeout / c.cfg.ReadyPollInterval)
	if attempts < 1 {
		attempts = 1
	}
	ticker := time.NewTicker(c.cfg.ReadyPollInterval)
	defer ticker.Stop()
	for attempt := 0; attempt < attempts; attempt++ {
		select {
		case <-readyCh:
			c.emitter.Seed(editor.SnapshotFor(""))
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	// The select above can lose a race between the ticker and a ready
	// that landed on the final attempt.
	select {
	case <-readyCh:
		c.emitter.Seed(editor.SnapshotFor(""))
		return nil
	default:
	}
	return fmt.Errorf("%w: plugin ready handshake not observed", editor.ErrBridgeTimeout)
}

// Destroy rejects every in-flight request, drops the listener set and
// marks the bridge closed. Safe to call repeatedly.
func (c *Client) Destroy() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	pending := c.pending
	c.pending = map[string]*pendingRequest{}
	c.mu.Unlock()

	for _, pr := range pending {
		pr.timer.Stop()
		pr.ch <- requestOutcome{err: editor.ErrBridgeClosed}
	}
	c.emitter.Clear()
	return nil
}

// readLoop drains one conn. A loop whose conn has been superseded by a
// reattach exits quietly; only the loop bound to the current conn may
// fail in-flight requests or flip the ready state.
func (c *Client) readLoop(conn Conn) {
	for {
		env, err := conn.Receive()
		if err != nil {
			c.mu.Lock()
			current := c.conn == conn
			c.mu.Unlock()
			if current {
				c.rejectAll(editor.ErrBridgeClosed)
			}
			return
		}
		select {
		case <-c.done:
			return
		default:
		}
		if env.Source != SourcePlugin {
			continue
		}
		switch env.Type {
		case TypeReady:
			c.mu.Lock()
			if c.conn == conn && !c.ready {
				c.ready = true
				close(c.readyCh)
			}
			c.mu.Unlock()
		case TypeSelectionChanged:
			var snap editor.SelectionSnapshot
			if err := json.Unmarshal(env.Payload, &snap); err != nil {
				continue
			}
			if snap.ChangedAt.IsZero() {
				snap.ChangedAt = time.Now()
			}
			c.mu.Lock()
			if c.conn != conn {
				c.mu.Unlock()
				continue
			}
			c.lastSnap = snap
			c.mu.Unlock()
			c.emitter.Emit(snap)
		case TypeResponse:
			var payload ResponsePayload
			if err := json.Unmarshal(env.Payload, &payload); err != nil {
				continue
			}
			c.settle(payload.ID, requestOutcome{result: payload.Result})
		case TypeError:
			var payload ErrorPayload
			if err := json.Unmarshal(env.Payload, &payload); err != nil {
				continue
			}
			c.settle(payload.ID, requestOutcome{err: &editor.RemoteError{Message: payload.Message}})
		}
	}
}

// settle resolves the pending request for id. An id that is no longer
// pending (timed out, already settled) is silently ignored; duplicate
// and late responses are expected on this channel.
func (c *Client) settle(id string, out requestOutcome) {
	c.mu.Lock()
	pr, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	pr.timer.Stop()
	pr.ch <- out
}

func (c *Client) rejectAll(err error) {
	c.mu.Lock()
	pending := c.pending
	c.pending = map[string]*pendingRequest{}
	c.mu.Unlock()
	for _, pr := range pending {
		pr.timer.Stop()
		pr.ch <- requestOutcome{err: err}
	}
}

// request dispatches one command and suspends until the correlated
// response, the per-request timer, the caller's context or teardown.
func (c *Client) request(ctx context.Context, command string, payload any, timeout time.Duration) (json.RawMessage, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, editor.ErrBridgeClosed
	}
	c.mu.Unlock()

	conn := c.resolve()
	if conn == nil {
		return nil, editor.ErrTargetUnavailable
	}

	raw, err := marshalPayload(payload)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	pr := &pendingRequest{ch: make(chan requestOutcome, 1)}
	pr.timer = time.AfterFunc(timeout, func() {
		c.settle(id, requestOutcome{err: fmt.Errorf("%w: command %s", editor.ErrBridgeTimeout, command)})
	})

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		pr.timer.Stop()
		return nil, editor.ErrBridgeClosed
	}
	c.pending[id] = pr
	c.mu.Unlock()

	env := Envelope{Source: SourceApp, Type: TypeCommand, ID: id, Command: command, Payload: raw}
	if err := conn.Send(env); err != nil {
		c.settle(id, requestOutcome{})
		return nil, fmt.Errorf("bridge send: %w", err)
	}

	select {
	case out := <-pr.ch:
		return out.result, out.err
	case <-ctx.Done():
		c.settle(id, requestOutcome{})
		return nil, ctx.Err()
	}
}

// GetSelectedText serves the cached last-known selection when non-empty
// and only falls back to a round trip when the cache is empty.
func (c *Client) GetSelectedText(ctx context.Context) (string, error) {
	c.mu.Lock()
	cached := strings.TrimSpace(c.lastSnap.Text)
	c.mu.Unlock()
	if cached != "" {
		return cached, nil
	}

	result, err := c.request(ctx, CmdGetSelectedText, nil, c.cfg.RequestTimeout)
	if err != nil {
		return "", err
	}
	var text string
	if err := json.Unmarshal(result, &text); err != nil {
		return "", fmt.Errorf("decode selected text: %w", err)
	}
	return strings.TrimSpace(text), nil
}

func (c *Client) SelectAllContent(ctx context.Context) error {
	_, err := c.request(ctx, CmdSelectAllContent, nil, c.cfg.RequestTimeout)
	return err
}

func (c *Client) GetDocumentStats(ctx context.Context) (doc.DocumentStats, error) {
	result, err := c.request(ctx, CmdGetDocumentStats, nil, c.cfg.ExtendedTimeout)
	if err != nil {
		return doc.DocumentStats{}, err
	}
	var stats doc.DocumentStats
	if err := json.Unmarshal(result, &stats); err != nil {
		return doc.DocumentStats{}, fmt.Errorf("decode stats: %w", err)
	}
	return stats, nil
}

func (c *Client) ReplaceSelectionRich(ctx context.Context, text, html string) error {
	if strings.TrimSpace(text) == "" && strings.TrimSpace(html) == "" {
		return editor.ErrEmptyContent
	}
	_, err := c.request(ctx, CmdReplaceSelection, ReplaceSelectionPayload{Text: text, HTML: html}, c.cfg.RequestTimeout)
	return err
}

func (c *Client) AppendRichWithBlankLine(ctx context.Context, html, text string) error {
	if strings.TrimSpace(html) == "" && strings.TrimSpace(text) == "" {
		return editor.ErrEmptyContent
	}
	_, err := c.request(ctx, CmdAppendRich, AppendPayload{HTML: html, Text: text}, c.cfg.RequestTimeout)
	return err
}

func (c *Client) RunHighlightDocument(ctx context.Context, term, color string) (editor.HighlightResult, error) {
	if strings.TrimSpace(term) == "" {
		return editor.HighlightResult{}, editor.ErrEmptyTerm
	}
	result, err := c.request(ctx, CmdHighlight, HighlightPayload{Text: term, Color: color}, c.cfg.ExtendedTimeout)
	if err != nil {
		return editor.HighlightResult{}, err
	}
	var parsed editor.HighlightResult
	if err := json.Unmarshal(result, &parsed); err != nil {
		return editor.HighlightResult{}, fmt.Errorf("decode highlight result: %w", err)
	}
	return parsed, nil
}

func (c *Client) ClearHighlightDocument(ctx context.Context, term string) (editor.ClearHighlightResult, error) {
	if strings.TrimSpace(term) == "" {
		return editor.ClearHighlightResult{}, editor.ErrEmptyTerm
	}
	result, err := c.request(ctx, CmdClearHighlight, HighlightPayload{Text: term}, c.cfg.ExtendedTimeout)
	if err != nil {
		return editor.ClearHighlightResult{}, err
	}
	var parsed editor.ClearHighlightResult
	if err := json.Unmarshal(result, &parsed); err != nil {
		return editor.ClearHighlightResult{}, fmt.Errorf("decode clear result: %w", err)
	}
	return parsed, nil
}

func (c *Client) RunManualNumbering(ctx context.Context, mode doc.SpacingMode) (editor.NumberingResult, error) {
	result, err := c.request(ctx, CmdManualNumbering, NumberingPayload{Mode: string(mode)}, c.cfg.RequestTimeout)
	if err != nil {
		return editor.NumberingResult{}, err
	}
	var parsed editor.NumberingResult
	if err := json.Unmarshal(result, &parsed); err != nil {
		return editor.NumberingResult{}, fmt.Errorf("decode numbering result: %w", err)
	}
	return parsed, nil
}

func (c *Client) OnSelectionChanged(listener func(editor.SelectionSnapshot)) func() {
	return c.emitter.Subscribe(listener)
}

// PendingCount reports outstanding requests; used by tests and the
// readiness probe.
func (c *Client) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
