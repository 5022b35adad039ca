package apitest

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

// Default account accepted by account/login.
const (
	Login    = "operator"
	Password = "s3cret<&>"
)

// Attachment is a file attached to a bulletin.
type Attachment struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Size int    `json:"size"`
	URL  string `json:"url"`
}

// Bulletin is the detail record served by bulletins/{id}.
type Bulletin struct {
	ID                    string       `json:"id"`
	Hrid                  string       `json:"hrid"`
	Header                string       `json:"header"`
	Description           string       `json:"description"`
	Attachment            *Attachment  `json:"attachment"`
	AdditionalAttachments []Attachment `json:"additionalAttachments"`
	PublishedDate         string       `json:"publishedDate"`
	Type                  string       `json:"type"`
	Subtype               string       `json:"subtype"`
}

type summary struct {
	ID            string `json:"id"`
	Hrid          string `json:"hrid"`
	Header        string `json:"header"`
	Description   string `json:"description"`
	PublishedDate string `json:"publishedDate"`
	AttachmentID  string `json:"attachmentId,omitempty"`
	Type          string `json:"type"`
	Subtype       string `json:"subtype"`
}

type feed struct {
	UploadDatetime string `json:"uploadDatetime"`
	Type           string `json:"type"`
	Version        int    `json:"version"`
	data           []byte
}

// Server is a fake FinCERT API served over mutual TLS.
type Server struct {
	*httptest.Server

	// ServerCA signs the server certificate; ClientCA signs client certificates.
	ServerCA   *CA
	ServerCert *Leaf
	ClientCA   *CA

	mu          sync.Mutex
	token       string
	logins      int
	total       int // reported total, defaults to len(order)
	order       []string
	bulletins   map[string]Bulletin
	attachments map[string][]byte
	feeds       map[string]feed
	counts      map[string]int
	scripts     map[string][]int
	sent        []time.Time
	lastLogin   []byte
	lastAgent   string
}

// NewServer starts a fake API and stops it when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		ServerCA:    NewCA(t, "fincert test server CA"),
		ClientCA:    NewCA(t, "fincert test client CA"),
		bulletins:   make(map[string]Bulletin),
		attachments: make(map[string][]byte),
		feeds:       make(map[string]feed),
		counts:      make(map[string]int),
		scripts:     make(map[string][]int),
		total:       -1,
	}
	s.ServerCert = s.ServerCA.IssueServer(t)

	s.Server = httptest.NewUnstartedServer(s.routes())
	s.Server.TLS = &tls.Config{
		Certificates: []tls.Certificate{s.ServerCert.TLSCertificate(t)},
		ClientAuth:   tls.RequireAndVerifyClientCert,
		ClientCAs:    s.ClientCA.Pool(),
		MinVersion:   tls.VersionTLS12,
	}
	s.Server.StartTLS()
	t.Cleanup(s.Server.Close)
	return s
}

// BaseURL returns the API root with a trailing slash.
func (s *Server) BaseURL() string {
	return s.URL + "/api/v1/"
}

// ClientCertificate issues a client certificate the server accepts.
func (s *Server) ClientCertificate(t testing.TB) *Leaf {
	t.Helper()
	now := time.Now()
	return s.ClientCA.IssueClient(t, "fincert client", now.Add(-time.Hour), now.Add(24*time.Hour))
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.record)
	r.Use(s.scripted)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/account/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.requireBearer)
			r.Post("/account/logout", s.handleLogout)
			r.Get("/antifraud/feeds/{type}", s.handleFeedStatus)
			r.Get("/antifraud/feeds/{type}/download", s.handleFeedDownload)
			r.Get("/bulletins", s.handleBulletinIDs)
			r.Post("/bulletins/list", s.handleBulletinList)
			r.Get("/bulletins/{id}", s.handleBulletin)
			r.Get("/attachments/{id}/download", s.handleAttachment)
		})
	})
	return r
}

func routeKey(method, path string) string {
	return method + " " + strings.TrimPrefix(path, "/api/v1")
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.counts[routeKey(r.Method, r.URL.Path)]++
		s.sent = append(s.sent, time.Now())
		s.lastAgent = r.UserAgent()
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) scripted(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := routeKey(r.Method, r.URL.Path)
		s.mu.Lock()
		queue := s.scripts[key]
		var code int
		if len(queue) > 0 {
			code, s.scripts[key] = queue[0], queue[1:]
		}
		s.mu.Unlock()

		if code != 0 {
			w.WriteHeader(code)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		want := "Bearer " + s.token
		ok := s.token != "" && r.Header.Get("Authorization") == want
		s.mu.Unlock()
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req struct {
		Login    string `json:"login"`
		Password string `json:"password"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.lastLogin = body
	if req.Login != Login || req.Password != Password {
		s.mu.Unlock()
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	s.logins++
	s.token = fmt.Sprintf("token-%d", s.logins)
	token := s.token
	s.mu.Unlock()

	// The token is sent as plain text with a trailing newline.
	_, _ = fmt.Fprintln(w, token)
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleFeedStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	f, ok := s.feeds[chi.URLParam(r, "type")]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, f)
}

func (s *Server) handleFeedDownload(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	f, ok := s.feeds[chi.URLParam(r, "type")]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	_, _ = w.Write(f.data)
}

func (s *Server) handleBulletinIDs(w http.ResponseWriter, r *http.Request) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit < 1 || limit > 100 {
		http.Error(w, "limit must be 1-100", http.StatusBadRequest)
		return
	}
	offset, err := strconv.Atoi(r.URL.Query().Get("offset"))
	if err != nil || offset < 0 {
		http.Error(w, "bad offset", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	total := s.total
	if total < 0 {
		total = len(s.order)
	}
	items := make([]map[string]string, 0, limit)
	for i := offset; i < len(s.order) && len(items) < limit; i++ {
		items = append(items, map[string]string{"id": s.order[i]})
	}
	s.mu.Unlock()

	writeJSON(w, map[string]any{"total": total, "items": items})
}

func (s *Server) handleBulletinList(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	items := make([]summary, 0, len(req.IDs))
	for _, id := range req.IDs {
		b, ok := s.bulletins[id]
		if !ok {
			continue
		}
		sm := summary{
			ID: b.ID, Hrid: b.Hrid, Header: b.Header, Description: b.Description,
			PublishedDate: b.PublishedDate, Type: b.Type, Subtype: b.Subtype,
		}
		if b.Attachment != nil {
			sm.AttachmentID = b.Attachment.ID
		}
		items = append(items, sm)
	}
	s.mu.Unlock()

	writeJSON(w, map[string]any{"total": len(items), "items": items})
}

func (s *Server) handleBulletin(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	b, ok := s.bulletins[chi.URLParam(r, "id")]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	if b.AdditionalAttachments == nil {
		b.AdditionalAttachments = []Attachment{}
	}
	writeJSON(w, b)
}

func (s *Server) handleAttachment(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	data, ok := s.attachments[chi.URLParam(r, "id")]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(data)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
