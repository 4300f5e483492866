// Package httpapi exposes the design service, catalog and assistant over
// JSON/HTTP.
package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/joelkehle/cip-designer/internal/assistant"
	"github.com/joelkehle/cip-designer/internal/catalog"
	"github.com/joelkehle/cip-designer/internal/cip"
	"github.com/joelkehle/cip-designer/internal/design"
	"github.com/joelkehle/cip-designer/internal/llm"
	"github.com/joelkehle/cip-designer/internal/logging"
	"github.com/joelkehle/cip-designer/internal/report"
	"github.com/joelkehle/cip-designer/internal/store"
	"github.com/joelkehle/cip-designer/internal/telemetry"
)

const (
	maxBodyBytes = 1 << 20
	maxListLimit = 100
)

type Config struct {
	Service *design.Service
	Catalog *catalog.Catalog
	Chat    *assistant.Chat
	// PDF may be nil; pdf exports then answer 503.
	PDF     report.PDFRenderer
	Metrics *telemetry.Metrics
	Logger  *logging.Logger

	CORSAllowedOrigins []string
	// RateLimitPerMinute applies per client IP to /api/. 0 disables it.
	RateLimitPerMinute int
	// EnhanceEnabled gates ?useLLM=true.
	EnhanceEnabled bool

	Clock func() time.Time
}

type Server struct {
	svc            *design.Service
	catalog        *catalog.Catalog
	chat           *assistant.Chat
	pdf            report.PDFRenderer
	log            *logging.Logger
	enhanceEnabled bool
	now            func() time.Time
}

func NewServer(cfg Config) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = logging.Nop()
	}
	cat := cfg.Catalog
	if cat == nil {
		cat = catalog.Default()
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	chat := cfg.Chat
	if chat == nil {
		chat = assistant.NewChat(nil, log)
	}
	s := &Server{
		svc:            cfg.Service,
		catalog:        cat,
		chat:           chat,
		pdf:            cfg.PDF,
		log:            log,
		enhanceEnabled: cfg.EnhanceEnabled,
		now:            now,
	}

	api := http.NewServeMux()
	api.HandleFunc("/api/design/cip", s.handleCreateDesign)
	api.HandleFunc("/api/design", s.handleDesigns)
	api.HandleFunc("/api/design/", s.handleDesign)
	api.HandleFunc("/api/catalog", s.handleCatalog)
	api.HandleFunc("/api/ai/chat", s.handleChat)
	api.HandleFunc("/api/ai/validate", s.handleValidate)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	if cfg.Metrics != nil {
		mux.Handle("/metrics", cfg.Metrics.Handler())
	}
	mux.Handle("/api/", chain(api.ServeHTTP, rateLimit(newRateLimiter(cfg.RateLimitPerMinute), log)))

	return chain(mux.ServeHTTP,
		logRequests(log, cfg.Metrics),
		cors(cfg.CORSAllowedOrigins),
	)
}

// internalErrorBody is sent when a payload cannot be encoded.
const internalErrorBody = `{"ok":false,"error":{"code":"internal","message":"internal server error"}}` + "\n"

// writeJSON encodes before writing the status so an unencodable payload
// becomes a 500 instead of an empty 200.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	var buf bytes.Buffer
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, internalErrorBody)
		return
	}
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return []byte("{}"), nil
	}
	blob, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(blob)) == 0 {
		blob = []byte("{}")
	}
	return blob, nil
}

func parseInt(value string, def int) int {
	if strings.TrimSpace(value) == "" {
		return def
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return v
}

func methodOnly(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.Header().Set("Allow", method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true})
}

func (s *Server) handleCreateDesign(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodPost) {
		return
	}
	blob, err := readBody(w, r)
	if err != nil {
		writeError(w, s.log, newValidationJSONError(err))
		return
	}
	req, err := cip.ParseRequest(blob)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	opts := design.CreateOptions{
		Enhance: s.enhanceEnabled && r.URL.Query().Get("useLLM") == "true",
	}
	result, err := s.svc.Create(r.Context(), req, opts)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, 200, result)
}

func (s *Server) handleDesigns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		limit := parseInt(r.URL.Query().Get("limit"), store.DefaultListLimit)
		if limit > maxListLimit {
			limit = maxListLimit
		}
		runs, err := s.svc.List(r.Context(), limit)
		if err != nil {
			writeError(w, s.log, err)
			return
		}
		writeJSON(w, 200, runs)
	case http.MethodDelete:
		n, err := s.svc.DeleteAll(r.Context())
		if err != nil {
			writeError(w, s.log, err)
			return
		}
		writeJSON(w, 200, map[string]any{"success": true, "deletedCount": n})
	default:
		w.Header().Set("Allow", "GET, DELETE")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleDesign serves /api/design/{id} and /api/design/{id}/export.
func (s *Server) handleDesign(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/design/"), "/")
	if path == "" {
		writeError(w, s.log, newError(CodeNotFound, "design not found"))
		return
	}
	if id, ok := strings.CutSuffix(path, "/export"); ok {
		if !methodOnly(w, r, http.MethodGet) {
			return
		}
		s.handleExport(w, r, id)
		return
	}
	if strings.Contains(path, "/") {
		writeError(w, s.log, newError(CodeNotFound, "route not found"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		run, err := s.svc.Get(r.Context(), path)
		if err != nil {
			writeError(w, s.log, err)
			return
		}
		writeJSON(w, 200, run)
	case http.MethodDelete:
		if err := s.svc.Delete(r.Context(), path); err != nil {
			writeError(w, s.log, err)
			return
		}
		writeJSON(w, 200, map[string]any{"success": true})
	default:
		w.Header().Set("Allow", "GET, DELETE")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, id string) {
	format, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, s.log, newError(CodeValidation, err.Error()))
		return
	}
	run, err := s.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	doc := report.Document{ID: run.ID, CreatedAt: run.CreatedAt, Input: run.Input, Result: run.Output}

	var body []byte
	switch format {
	case report.FormatCSV:
		var buf bytes.Buffer
		if err := report.CSV(&buf, doc.Result.Bom); err != nil {
			writeError(w, s.log, err)
			return
		}
		body = buf.Bytes()
	case report.FormatMarkdown:
		body = []byte(report.Markdown(doc))
	case report.FormatHTML, report.FormatPDF:
		htmlDoc, err := report.HTML(doc)
		if err != nil {
			writeError(w, s.log, err)
			return
		}
		body = []byte(htmlDoc)
		if format == report.FormatPDF {
			if s.pdf == nil {
				writeError(w, s.log, newError(CodeUnavailable, "pdf rendering is not configured"))
				return
			}
			body, err = s.pdf.Render(r.Context(), htmlDoc)
			if errors.Is(err, report.ErrNoBrowser) {
				writeError(w, s.log, newError(CodeUnavailable, err.Error()))
				return
			}
			if err != nil {
				writeError(w, s.log, err)
				return
			}
		}
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+doc.Filename(format)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, 200, map[string]any{
		"entries":        s.catalog.Entries(),
		"matchThreshold": catalog.MatchThreshold,
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodPost) {
		return
	}
	blob, err := readBody(w, r)
	if err != nil {
		writeError(w, s.log, newValidationJSONError(err))
		return
	}
	var req struct {
		Messages      []llm.Message            `json:"messages"`
		SystemContext *assistant.SystemContext `json:"systemContext"`
	}
	if err := json.Unmarshal(blob, &req); err != nil {
		writeError(w, s.log, newValidationJSONError(err))
		return
	}
	fields := map[string]string{}
	if req.Messages == nil {
		fields["messages"] = "is required"
	}
	for i, m := range req.Messages {
		if m.Role != llm.RoleUser && m.Role != llm.RoleAssistant {
			fields["messages."+strconv.Itoa(i)+".role"] = "must be user or assistant"
		}
	}
	if req.SystemContext == nil {
		fields["systemContext"] = "is required"
	} else if strings.TrimSpace(req.SystemContext.SystemType) == "" {
		fields["systemContext.systemType"] = "is required"
	}
	if len(fields) > 0 {
		e := newError(CodeValidation, "invalid chat request")
		e.Fields = fields
		writeError(w, s.log, e)
		return
	}

	content := s.chat.Reply(r.Context(), req.Messages, *req.SystemContext)
	writeJSON(w, 200, map[string]any{
		"message": map[string]any{
			"role":      llm.RoleAssistant,
			"content":   content,
			"timestamp": s.now().UTC().Format(time.RFC3339Nano),
		},
	})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodPost) {
		return
	}
	blob, err := readBody(w, r)
	if err != nil {
		writeError(w, s.log, newValidationJSONError(err))
		return
	}
	var req struct {
		Parameters json.RawMessage `json:"parameters"`
		SystemType *string         `json:"systemType"`
	}
	if err := json.Unmarshal(blob, &req); err != nil {
		writeError(w, s.log, newValidationJSONError(err))
		return
	}
	if req.SystemType == nil {
		e := newError(CodeValidation, "invalid validation request")
		e.Fields = map[string]string{"systemType": "is required"}
		writeError(w, s.log, e)
		return
	}
	warnings := assistant.ValidateParameters(assistant.ParseParameters(req.Parameters), *req.SystemType)
	writeJSON(w, 200, map[string]any{"warnings": warnings})
}
