// Package app wires the editor control bridge, persistence, search and
// AI access behind one HTTP service.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"ghostwriter/api/internal/ai"
	"ghostwriter/api/internal/biblio"
	"ghostwriter/api/internal/bridge"
	"ghostwriter/api/internal/config"
	"ghostwriter/api/internal/doc"
	"ghostwriter/api/internal/editor"
	"ghostwriter/api/internal/export"
	"ghostwriter/api/internal/files"
	"ghostwriter/api/internal/gitrepo"
	"ghostwriter/api/internal/search"
	"ghostwriter/api/internal/session"
	"ghostwriter/api/internal/store"
	"ghostwriter/api/internal/util"
)

// Backend names for editor sessions.
const (
	BackendInProcess = "inprocess"
	BackendIframe    = "iframe"
)

type dataStore interface {
	SaveDocument(context.Context, store.Document) error
	GetDocument(context.Context, string) (store.Document, error)
	ListDocuments(context.Context) ([]store.Document, error)
	DeleteDocument(context.Context, string) error
	Ping(ctx context.Context) error
}

type gitService interface {
	EnsureDocumentRepo(string, gitrepo.Content, string) error
	CommitContent(string, gitrepo.Content, string, string) (gitrepo.CommitInfo, error)
	GetHeadContent(string) (gitrepo.Content, gitrepo.CommitInfo, error)
	History(string, int) ([]gitrepo.CommitInfo, error)
}

type sessionStore interface {
	Save(context.Context, string, session.Data) error
	Lookup(context.Context, string) (session.Data, error)
	Delete(context.Context, string) error
	SaveSnapshot(context.Context, string, editor.SelectionSnapshot) error
	LookupSnapshot(context.Context, string) (editor.SelectionSnapshot, error)
	Ping(ctx context.Context) error
}

// liveSession pairs the persisted session record with the in-memory
// control API driving the editor substrate.
type liveSession struct {
	id     string
	data   session.Data
	api    editor.ControlAPI
	engine *editor.Engine // nil for the iframe backend
	unsub  func()
}

type Service struct {
	cfg      config.Config
	store    dataStore
	git      gitService
	sessions sessionStore
	search   *search.Service
	ai       *ai.Client
	files    *files.Service
	export   *export.Service

	mu    sync.Mutex
	live  map[string]*liveSession
	conns map[string]bridge.Conn

	biblioMu sync.RWMutex
	biblio   *biblio.Matcher
}

func New(
	cfg config.Config,
	dataStore *store.PostgresStore,
	gitService *gitrepo.Service,
	sessions *session.RedisStore,
	searchService *search.Service,
	aiClient *ai.Client,
	fileService *files.Service,
	exportService *export.Service,
) *Service {
	return newServiceWith(cfg, dataStore, gitService, sessions, searchService, aiClient, fileService, exportService)
}

// newServiceWith wires arbitrary implementations, used by tests.
func newServiceWith(
	cfg config.Config,
	dataStore dataStore,
	gitService gitService,
	sessions sessionStore,
	searchService *search.Service,
	aiClient *ai.Client,
	fileService *files.Service,
	exportService *export.Service,
) *Service {
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		git:      gitService,
		sessions: sessions,
		search:   searchService,
		ai:       aiClient,
		files:    fileService,
		export:   exportService,
		live:     make(map[string]*liveSession),
		conns:    make(map[string]bridge.Conn),
		biblio:   biblio.NewMatcher(nil),
	}
}

func (s *Service) Ping(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := s.sessions.Ping(ctx); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return nil
}

// ── Editor sessions ──

// CreateSession opens a control session over one of the two substrates.
// The in-process backend is live immediately; the iframe backend waits
// for the plugin websocket to attach before Init can succeed.
func (s *Service) CreateSession(ctx context.Context, documentID, backend string) (map[string]any, error) {
	switch backend {
	case "":
		backend = BackendInProcess
	case BackendInProcess, BackendIframe:
	default:
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "backend must be 'inprocess' or 'iframe'", nil)
	}

	html := ""
	if documentID != "" {
		document, err := s.store.GetDocument(ctx, documentID)
		if err == nil {
			html = document.HTML
		} else if err != store.ErrNotFound {
			return nil, err
		}
	}

	id := util.NewID("sess")
	live := &liveSession{
		id:   id,
		data: session.Data{DocumentID: documentID, Backend: backend, CreatedAt: time.Now()},
	}

	switch backend {
	case BackendInProcess:
		engine, err := editor.NewEngine(html)
		if err != nil {
			return nil, fmt.Errorf("seed engine: %w", err)
		}
		api := editor.NewInProcess(engine)
		if err := api.Init(ctx); err != nil {
			return nil, err
		}
		live.engine = engine
		live.api = api
	case BackendIframe:
		live.api = bridge.NewClient(s.connResolver(id), bridge.Config{
			RequestTimeout:  s.cfg.BridgeRequestTimeout,
			ExtendedTimeout: s.cfg.BridgeExtendedTimeout,
			ReadyTimeout:    s.cfg.BridgeReadyTimeout,
		})
	}

	live.unsub = live.api.OnSelectionChanged(func(snap editor.SelectionSnapshot) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.sessions.SaveSnapshot(ctx, id, snap); err != nil {
			log.Printf("session %s: cache selection snapshot: %v", id, err)
		}
	})

	if err := s.sessions.Save(ctx, id, live.data); err != nil {
		live.unsub()
		_ = live.api.Destroy()
		return nil, err
	}

	s.mu.Lock()
	s.live[id] = live
	s.mu.Unlock()

	return map[string]any{
		"sessionId":  id,
		"documentId": documentID,
		"backend":    backend,
		"createdAt":  live.data.CreatedAt,
	}, nil
}

func (s *Service) connResolver(sessionID string) bridge.Resolver {
	return func() bridge.Conn {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.conns[sessionID]
	}
}

// AttachPlugin registers the websocket connection of a remote plugin
// and kicks off the ready handshake.
func (s *Service) AttachPlugin(sessionID string, conn bridge.Conn) error {
	s.mu.Lock()
	live, ok := s.live[sessionID]
	if !ok {
		s.mu.Unlock()
		return domainError(http.StatusNotFound, "SESSION_NOT_FOUND", "Session not found", nil)
	}
	if live.data.Backend != BackendIframe {
		s.mu.Unlock()
		return domainError(http.StatusConflict, "WRONG_BACKEND", "Session does not use the iframe backend", nil)
	}
	if old, exists := s.conns[sessionID]; exists {
		_ = old.Close()
	}
	s.conns[sessionID] = conn
	api := live.api
	s.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.BridgeReadyTimeout+time.Second)
		defer cancel()
		if err := api.Init(ctx); err != nil {
			log.Printf("session %s: plugin handshake: %v", sessionID, err)
		}
	}()
	return nil
}

func (s *Service) ListSessions() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]map[string]any, 0, len(s.live))
	for _, live := range s.live {
		items = append(items, map[string]any{
			"sessionId":  live.id,
			"documentId": live.data.DocumentID,
			"backend":    live.data.Backend,
			"createdAt":  live.data.CreatedAt,
		})
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i]["sessionId"].(string) < items[j]["sessionId"].(string)
	})
	return items
}

func (s *Service) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	live, ok := s.live[sessionID]
	delete(s.live, sessionID)
	conn := s.conns[sessionID]
	delete(s.conns, sessionID)
	s.mu.Unlock()

	if !ok {
		return domainError(http.StatusNotFound, "SESSION_NOT_FOUND", "Session not found", nil)
	}
	live.unsub()
	if err := live.api.Destroy(); err != nil {
		log.Printf("session %s: destroy: %v", sessionID, err)
	}
	if conn != nil {
		_ = conn.Close()
	}
	return s.sessions.Delete(ctx, sessionID)
}

func (s *Service) lookupLive(sessionID string) (*liveSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	live, ok := s.live[sessionID]
	if !ok {
		return nil, domainError(http.StatusNotFound, "SESSION_NOT_FOUND", "Session not found", nil)
	}
	return live, nil
}

// Selection returns the last cached selection snapshot for a session,
// or an empty one when nothing was emitted yet.
func (s *Service) Selection(ctx context.Context, sessionID string) (editor.SelectionSnapshot, error) {
	if _, err := s.lookupLive(sessionID); err != nil {
		return editor.SelectionSnapshot{}, err
	}
	snap, err := s.sessions.LookupSnapshot(ctx, sessionID)
	if err == session.ErrNotFound {
		return editor.SelectionSnapshot{SelectionType: editor.SelectionNone}, nil
	}
	if err != nil {
		return editor.SelectionSnapshot{}, err
	}
	return snap, nil
}

// CommandInput is the uniform command envelope accepted by the session
// dispatch endpoint; the vocabulary mirrors the bridge protocol.
type CommandInput struct {
	Command string          `json:"command"`
	Payload json.RawMessage `json:"payload"`
}

// DispatchCommand executes one bridge command against a session's
// control API and returns the command result.
func (s *Service) DispatchCommand(ctx context.Context, sessionID string, input CommandInput) (any, error) {
	live, err := s.lookupLive(sessionID)
	if err != nil {
		return nil, err
	}
	api := live.api

	decode := func(target any) error {
		if len(input.Payload) == 0 {
			return nil
		}
		if err := json.Unmarshal(input.Payload, target); err != nil {
			return domainError(http.StatusBadRequest, "INVALID_BODY", "invalid command payload", nil)
		}
		return nil
	}

	switch input.Command {
	case "init":
		if err := api.Init(ctx); err != nil {
			return nil, err
		}
		return map[string]any{"ok": true}, nil

	case "getSelectedText":
		text, err := api.GetSelectedText(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"text": text}, nil

	case "selectAllContent":
		if err := api.SelectAllContent(ctx); err != nil {
			return nil, err
		}
		return map[string]any{"ok": true}, nil

	case "getDocumentStats":
		stats, err := api.GetDocumentStats(ctx)
		if err != nil {
			return nil, err
		}
		return stats, nil

	case "replaceSelection":
		var payload struct {
			Text string `json:"text"`
			HTML string `json:"html"`
		}
		if err := decode(&payload); err != nil {
			return nil, err
		}
		if err := api.ReplaceSelectionRich(ctx, payload.Text, payload.HTML); err != nil {
			return nil, err
		}
		return map[string]any{"ok": true}, nil

	case "appendRichWithBlankLine":
		var payload struct {
			HTML string `json:"html"`
			Text string `json:"text"`
		}
		if err := decode(&payload); err != nil {
			return nil, err
		}
		if err := api.AppendRichWithBlankLine(ctx, payload.HTML, payload.Text); err != nil {
			return nil, err
		}
		return map[string]any{"ok": true}, nil

	case "macro1HighlightDocument":
		var payload struct {
			Term  string `json:"term"`
			Color string `json:"color"`
		}
		if err := decode(&payload); err != nil {
			return nil, err
		}
		result, err := api.RunHighlightDocument(ctx, payload.Term, payload.Color)
		if err != nil {
			return nil, err
		}
		return result, nil

	case "macro1ClearHighlightDocument":
		var payload struct {
			Term string `json:"term"`
		}
		if err := decode(&payload); err != nil {
			return nil, err
		}
		result, err := api.ClearHighlightDocument(ctx, payload.Term)
		if err != nil {
			return nil, err
		}
		return result, nil

	case "macro2ManualNumberingSelection":
		var payload struct {
			Mode string `json:"mode"`
		}
		if err := decode(&payload); err != nil {
			return nil, err
		}
		result, err := api.RunManualNumbering(ctx, doc.SpacingMode(payload.Mode))
		if err != nil {
			return nil, err
		}
		return result, nil

	default:
		return nil, domainError(http.StatusUnprocessableEntity, "UNKNOWN_COMMAND", fmt.Sprintf("unknown command %q", input.Command), nil)
	}
}

// ── Documents ──

func (s *Service) SaveDocument(ctx context.Context, id, title, html, author string) (map[string]any, error) {
	if strings.TrimSpace(id) == "" {
		id = util.NewID("doc")
	}
	document := store.Document{ID: id, Title: title, HTML: html}
	if err := s.store.SaveDocument(ctx, document); err != nil {
		return nil, err
	}

	content := gitrepo.Content{Title: title, HTML: html}
	if err := s.git.EnsureDocumentRepo(id, content, author); err != nil {
		return nil, err
	}
	commit, err := s.git.CommitContent(id, content, author, "Save document")
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"documentId": id,
		"title":      title,
		"commit":     commit,
	}, nil
}

func (s *Service) GetDocument(ctx context.Context, id string) (store.Document, error) {
	return s.store.GetDocument(ctx, id)
}

func (s *Service) ListDocuments(ctx context.Context) ([]store.Document, error) {
	return s.store.ListDocuments(ctx)
}

func (s *Service) DeleteDocument(ctx context.Context, id string) error {
	return s.store.DeleteDocument(ctx, id)
}

func (s *Service) History(id string, limit int) ([]gitrepo.CommitInfo, error) {
	return s.git.History(id, limit)
}

func (s *Service) ExportDocument(req export.Request) (*export.Result, error) {
	return s.export.Export(req)
}

// ── Uploads ──

func (s *Service) Files() *files.Service {
	return s.files
}

// ── AI ──

func (s *Service) Chat(ctx context.Context, req ai.ChatRequest) (string, error) {
	if !s.ai.Configured() {
		return "", domainError(http.StatusServiceUnavailable, "AI_UNAVAILABLE", "AI backend not configured", nil)
	}
	return s.ai.Chat(ctx, req)
}

func (s *Service) VectorSearch(ctx context.Context, req ai.VectorSearchRequest) ([]string, error) {
	if !s.ai.Configured() {
		return nil, domainError(http.StatusServiceUnavailable, "AI_UNAVAILABLE", "AI backend not configured", nil)
	}
	return s.ai.VectorSearch(ctx, req)
}

// ── Pensata search ──

func (s *Service) SearchPensatas(q search.Query) search.Response {
	return s.search.Search(q)
}

func (s *Service) RandomPensata(book string) (search.RandomPick, error) {
	return s.search.RandomPensata(book)
}

func (s *Service) LoadPensatas(pensatas []search.Pensata) map[string]any {
	s.search.LoadCorpus(pensatas)
	return map[string]any{"loaded": len(pensatas), "corpusSize": s.search.CorpusSize()}
}

// ── Bibliography ──

func (s *Service) LoadBiblio(entries []biblio.Entry) map[string]any {
	s.biblioMu.Lock()
	s.biblio = biblio.NewMatcher(entries)
	s.biblioMu.Unlock()
	return map[string]any{"loaded": len(entries)}
}

func (s *Service) MatchBiblio(q biblio.Query, topK int) ([]biblio.ScoredRef, error) {
	s.biblioMu.RLock()
	matcher := s.biblio
	s.biblioMu.RUnlock()
	return matcher.Search(q, topK)
}

// InsertReference looks up the best bibliography match for the query
// and appends its formatted reference to the session's document.
func (s *Service) InsertReference(ctx context.Context, sessionID string, q biblio.Query) (map[string]any, error) {
	live, err := s.lookupLive(sessionID)
	if err != nil {
		return nil, err
	}

	matches, err := s.MatchBiblio(q, 1)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, domainError(http.StatusNotFound, "NO_MATCH", "No bibliography entry matched", nil)
	}

	best := matches[0]
	if err := live.api.AppendRichWithBlankLine(ctx, "", best.Ref); err != nil {
		return nil, err
	}
	return map[string]any{"ref": best.Ref, "score": best.Score, "isBook": best.IsBook}, nil
}

// Close destroys every live session. Used during shutdown.
func (s *Service) Close() {
	s.mu.Lock()
	lives := make([]*liveSession, 0, len(s.live))
	for _, live := range s.live {
		lives = append(lives, live)
	}
	conns := make([]bridge.Conn, 0, len(s.conns))
	for _, conn := range s.conns {
		conns = append(conns, conn)
	}
	s.live = make(map[string]*liveSession)
	s.conns = make(map[string]bridge.Conn)
	s.mu.Unlock()

	for _, live := range lives {
		live.unsub()
		_ = live.api.Destroy()
	}
	for _, conn := range conns {
		_ = conn.Close()
	}
}
