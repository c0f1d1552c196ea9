package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ghostwriter/api/internal/ai"
	"ghostwriter/api/internal/biblio"
	"ghostwriter/api/internal/bridge"
	"ghostwriter/api/internal/editor"
	"ghostwriter/api/internal/export"
	"ghostwriter/api/internal/files"
	"ghostwriter/api/internal/search"
	"ghostwriter/api/internal/session"
	"ghostwriter/api/internal/store"

	"github.com/gorilla/websocket"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
	upgrader   websocket.Upgrader
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{
		service:    service,
		corsOrigin: corsOrigin,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Origin filtering happens at the reverse proxy; the envelope
			// source field guards against cross-talk on the channel itself.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"dependencies": map[string]any{"status": "ok"},
		}

		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["dependencies"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	if r.URL.Path == "/api/sessions" {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, map[string]any{"sessions": s.service.ListSessions()})
		case http.MethodPost:
			var body struct {
				DocumentID string `json:"documentId"`
				Backend    string `json:"backend"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.CreateSession(r.Context(), body.DocumentID, body.Backend)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusCreated, payload)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	parts := splitPath(r.URL.Path)

	if len(parts) >= 3 && parts[0] == "api" && parts[1] == "sessions" {
		s.handleSessions(w, r, parts[2], parts)
		return
	}

	if len(parts) >= 2 && parts[0] == "api" && parts[1] == "documents" {
		s.handleDocuments(w, r, parts)
		return
	}

	if len(parts) >= 2 && parts[0] == "api" && parts[1] == "files" {
		s.handleFiles(w, r, parts)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/ai/chat" {
		s.handleAIChat(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/ai/vector-search" {
		s.handleAIVectorSearch(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		s.handleSearch(w, r)
		return
	}

	if r.URL.Path == "/api/pensatas" && r.Method == http.MethodPost {
		var body struct {
			Pensatas []search.Pensata `json:"pensatas"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		writeJSON(w, http.StatusOK, s.service.LoadPensatas(body.Pensatas))
		return
	}

	if r.URL.Path == "/api/pensatas/random" && r.Method == http.MethodGet {
		pick, err := s.service.RandomPensata(strings.TrimSpace(r.URL.Query().Get("book")))
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, pick)
		return
	}

	if r.URL.Path == "/api/biblio/entries" && r.Method == http.MethodPost {
		var body struct {
			Entries []biblio.Entry `json:"entries"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		writeJSON(w, http.StatusOK, s.service.LoadBiblio(body.Entries))
		return
	}

	if r.URL.Path == "/api/biblio/match" && r.Method == http.MethodGet {
		q := biblio.Query{
			Author: strings.TrimSpace(r.URL.Query().Get("author")),
			Title:  strings.TrimSpace(r.URL.Query().Get("title")),
			Year:   strings.TrimSpace(r.URL.Query().Get("year")),
			Extra:  strings.TrimSpace(r.URL.Query().Get("extra")),
		}
		topK := 10
		if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "limit must be an integer", nil)
				return
			}
			topK = parsed
		}
		matches, err := s.service.MatchBiblio(q, topK)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"matches": matches})
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleSessions(w http.ResponseWriter, r *http.Request, sessionID string, parts []string) {
	if len(parts) == 3 {
		if r.Method == http.MethodDelete {
			if err := s.service.DeleteSession(r.Context(), sessionID); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	if len(parts) == 4 && parts[3] == "commands" && r.Method == http.MethodPost {
		var body CommandInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if strings.TrimSpace(body.Command) == "" {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "command is required", nil)
			return
		}
		result, err := s.service.DispatchCommand(r.Context(), sessionID, body)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"result": result})
		return
	}

	if len(parts) == 4 && parts[3] == "selection" && r.Method == http.MethodGet {
		snap, err := s.service.Selection(r.Context(), sessionID)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, snap)
		return
	}

	if len(parts) == 4 && parts[3] == "insert-ref" && r.Method == http.MethodPost {
		var body biblio.Query
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.InsertReference(r.Context(), sessionID, body)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if len(parts) == 4 && parts[3] == "plugin" && r.Method == http.MethodGet {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote the handshake failure.
			log.Printf("session %s: websocket upgrade: %v", sessionID, err)
			return
		}
		if err := s.service.AttachPlugin(sessionID, bridge.NewWSConn(conn)); err != nil {
			log.Printf("session %s: attach plugin: %v", sessionID, err)
			_ = conn.Close()
		}
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleDocuments(w http.ResponseWriter, r *http.Request, parts []string) {
	if len(parts) == 2 {
		if r.Method == http.MethodGet {
			items, err := s.service.ListDocuments(r.Context())
			if err != nil {
				writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Could not list documents", nil)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"documents": items})
			return
		}
		if r.Method == http.MethodPost {
			var body struct {
				ID     string `json:"id"`
				Title  string `json:"title"`
				HTML   string `json:"html"`
				Author string `json:"author"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.SaveDocument(r.Context(), body.ID, body.Title, body.HTML, body.Author)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, payload)
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	documentID := parts[2]

	if len(parts) == 3 {
		switch r.Method {
		case http.MethodGet:
			document, err := s.service.GetDocument(r.Context(), documentID)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"id":        document.ID,
				"title":     document.Title,
				"html":      document.HTML,
				"updatedAt": document.UpdatedAt,
				"createdAt": document.CreatedAt,
			})
		case http.MethodDelete:
			if err := s.service.DeleteDocument(r.Context(), documentID); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	if len(parts) == 4 && parts[3] == "history" && r.Method == http.MethodGet {
		limit := 50
		if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
				limit = parsed
			}
		}
		commits, err := s.service.History(documentID, limit)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"commits": commits})
		return
	}

	if len(parts) == 4 && parts[3] == "export" && r.Method == http.MethodPost {
		var body struct {
			Format  string `json:"format"`
			Version string `json:"version"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		format := export.Format(body.Format)
		if format == "" {
			format = export.FormatPDF
		}
		if format != export.FormatPDF {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "format must be 'pdf'", nil)
			return
		}
		result, err := s.service.ExportDocument(export.Request{
			DocumentID: documentID,
			Version:    body.Version,
			Format:     format,
		})
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		w.Header().Set("Content-Disposition", "attachment; filename=\""+result.Filename+"\"")
		w.Header().Set("Content-Type", result.MimeType)
		_, _ = w.Write(result.Data)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleFiles(w http.ResponseWriter, r *http.Request, parts []string) {
	fileService := s.service.Files()

	if len(parts) == 2 && r.Method == http.MethodGet {
		items, err := fileService.List(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Could not list files", nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"files": items})
		return
	}

	if len(parts) == 3 && parts[2] == "upload" && r.Method == http.MethodPost {
		if err := r.ParseMultipartForm(files.MaxUploadSize); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid multipart body", nil)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", "file field is required", nil)
			return
		}
		defer file.Close()

		meta, err := fileService.Upload(r.Context(), header.Filename, header.Header.Get("Content-Type"), file)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusCreated, fileMetaPayload(meta))
		return
	}

	if len(parts) == 4 && parts[3] == "content" && r.Method == http.MethodGet {
		meta, rc, err := fileService.Content(r.Context(), parts[2])
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		defer rc.Close()
		w.Header().Set("Content-Disposition", "attachment; filename=\""+meta.OriginalName+"\"")
		w.Header().Set("Content-Type", meta.MimeType)
		if _, err := io.Copy(w, rc); err != nil {
			log.Printf("file %s: stream content: %v", meta.ID, err)
		}
		return
	}

	if len(parts) == 4 && parts[3] == "text" && r.Method == http.MethodGet {
		text, err := fileService.Text(r.Context(), parts[2])
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"text": text})
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func fileMetaPayload(meta store.FileMeta) map[string]any {
	return map[string]any{
		"id":           meta.ID,
		"originalName": meta.OriginalName,
		"storedName":   meta.StoredName,
		"mimeType":     meta.MimeType,
		"size":         meta.Size,
		"ext":          meta.Ext,
		"createdAt":    meta.CreatedAt,
	}
}

func (s *HTTPServer) handleAIChat(w http.ResponseWriter, r *http.Request) {
	var body ai.ChatRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if len(body.Messages) == 0 {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "messages are required", nil)
		return
	}
	content, err := s.service.Chat(r.Context(), body)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"content": content})
}

func (s *HTTPServer) handleAIVectorSearch(w http.ResponseWriter, r *http.Request) {
	var body ai.VectorSearchRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if strings.TrimSpace(body.VectorStoreID) == "" || strings.TrimSpace(body.Query) == "" {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "vectorStoreId and query are required", nil)
		return
	}
	chunks, err := s.service.VectorSearch(r.Context(), body)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	if chunks == nil {
		chunks = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"chunks": chunks})
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := search.Query{
		Text:       strings.TrimSpace(r.URL.Query().Get("q")),
		FilterBook: strings.TrimSpace(r.URL.Query().Get("book")),
		Limit:      20,
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "limit must be an integer", nil)
			return
		}
		q.Limit = parsed
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("offset")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "offset must be an integer", nil)
			return
		}
		q.Offset = parsed
	}
	writeJSON(w, http.StatusOK, s.service.SearchPensatas(q))
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		// Websocket upgrades need the raw ResponseWriter; skip the JSON
		// headers and the status recorder for them.
		if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
			next.ServeHTTP(w, r)
			return
		}

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, session.ErrNotFound) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, editor.ErrEmptyTerm) ||
		errors.Is(err, editor.ErrEmptySelection) ||
		errors.Is(err, editor.ErrEmptyContent) ||
		errors.Is(err, editor.ErrUnsupportedCommand) ||
		errors.Is(err, biblio.ErrEmptyQuery) {
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil
	}
	if errors.Is(err, editor.ErrTargetUnavailable) {
		return http.StatusServiceUnavailable, "TARGET_UNAVAILABLE", "Remote editor not attached", nil
	}
	if errors.Is(err, editor.ErrBridgeTimeout) {
		return http.StatusGatewayTimeout, "BRIDGE_TIMEOUT", "Editor command timed out", nil
	}
	if errors.Is(err, editor.ErrBridgeClosed) {
		return http.StatusGone, "BRIDGE_CLOSED", "Editor session closed", nil
	}
	var remoteErr *editor.RemoteError
	if errors.As(err, &remoteErr) {
		return http.StatusBadGateway, "REMOTE_ERROR", remoteErr.Message, nil
	}
	var upstreamErr *ai.UpstreamError
	if errors.As(err, &upstreamErr) {
		return http.StatusBadGateway, "UPSTREAM_ERROR", "AI backend request failed", map[string]any{"status": upstreamErr.Status}
	}
	if errors.Is(err, ai.ErrNotConfigured) {
		return http.StatusServiceUnavailable, "AI_UNAVAILABLE", "AI backend not configured", nil
	}
	if errors.Is(err, files.ErrTooLarge) || errors.Is(err, files.ErrEmptyUpload) {
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil
	}
	if errors.Is(err, search.ErrEmptyCorpus) {
		return http.StatusNotFound, "EMPTY_CORPUS", "No pensatas loaded", nil
	}
	if errors.Is(err, export.ErrContentUnavailable) {
		return http.StatusNotFound, "NOT_FOUND", "Document revision unavailable", nil
	}
	if errors.Is(err, export.ErrPDFDependencyMissing) {
		return http.StatusServiceUnavailable, "PDF_UNAVAILABLE", "PDF renderer not installed", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
