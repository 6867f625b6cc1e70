package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"monthcal/internal/calendar"
	"monthcal/internal/caltime"
	"monthcal/internal/config"
	appLog "monthcal/internal/log"
)

const (
	minYear = 1970
	maxYear = 2100

	contentText = "text/plain; charset=utf-8"
	contentJSON = "application/json; charset=utf-8"
)

// Banner is served at the root path.
const Banner = "monthcal\n\nGET /{year}/{month}        occurrences shown on a month's page\nGET /{year}/{month}/{day}  occurrences covering one day\n"

// Server exposes month and day queries over HTTP.
type Server struct {
	cfg   *config.Config
	index *calendar.Index
	mux   *http.ServeMux
}

// NewServer constructs a new Server answering from ix.
func NewServer(cfg *config.Config, ix *calendar.Index) *Server {
	s := &Server{
		cfg:   cfg,
		index: ix,
		mux:   http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		h = s.basicAuthMiddleware(h)
	}
	return allowHeader(h)
}

// Run serves on cfg.Listen until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// An empty username or password disables auth.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="monthcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func allowHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Allow", "GET, HEAD")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerRoutes() {
	// GET patterns also match HEAD.
	s.mux.HandleFunc("GET /{$}", s.handleBanner)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /{year}/{month}", s.handleMonth)
	s.mux.HandleFunc("GET /{year}/{month}/{$}", s.handleMonth)
	s.mux.HandleFunc("GET /{year}/{month}/{day}", s.handleDay)
	s.mux.HandleFunc("GET /{year}/{month}/{day}/{$}", s.handleDay)

	// Everything else, including other methods on known paths.
	s.mux.HandleFunc("/", s.handleFallback)
}

func (s *Server) handleBanner(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, Banner)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, "OK")
}

func (s *Server) handleFallback(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodHead:
		w.Header().Set("Content-Type", contentText)
		w.WriteHeader(http.StatusNotFound)
	case http.MethodGet:
		writeText(w, http.StatusNotFound, "Not Found")
	default:
		writeText(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	}
}

// handleMonth serves GET /{year}/{month}.
func (s *Server) handleMonth(w http.ResponseWriter, r *http.Request) {
	year, month, msg := parseYearMonth(r.PathValue("year"), r.PathValue("month"))
	if msg != "" {
		writeText(w, http.StatusBadRequest, msg)
		return
	}

	appLog.Debug("month request", "year", year, "month", int(month))
	if s.notModified(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, s.index.GetMonth(year, month))
}

// handleDay serves GET /{year}/{month}/{day}.
func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	year, month, msg := parseYearMonth(r.PathValue("year"), r.PathValue("month"))
	if msg != "" {
		writeText(w, http.StatusBadRequest, msg)
		return
	}
	day, ok := parseLeadingInt(r.PathValue("day"))
	if !ok {
		writeText(w, http.StatusBadRequest, "Invalid data in URI")
		return
	}
	if n := caltime.DaysInMonth(year, month); day < 1 || day > n {
		writeText(w, http.StatusBadRequest, fmt.Sprintf("`day` must be between 1 and %d", n))
		return
	}

	appLog.Debug("day request", "year", year, "month", int(month), "day", day)
	if s.notModified(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, s.index.GetDay(year, month, day))
}

// notModified sets Last-Modified and answers 304 when the client copy is
// current. Before the first refresh the epoch is advertised and no 304 is
// sent.
func (s *Server) notModified(w http.ResponseWriter, r *http.Request) bool {
	lm := s.index.LastModified()
	if lm.IsZero() {
		w.Header().Set("Last-Modified", time.Unix(0, 0).UTC().Format(http.TimeFormat))
		return false
	}
	lm = lm.UTC().Truncate(time.Second)
	w.Header().Set("Last-Modified", lm.Format(http.TimeFormat))

	if v := r.Header.Get("If-Modified-Since"); v != "" {
		if ims, err := http.ParseTime(v); err == nil && !lm.After(ims) {
			w.WriteHeader(http.StatusNotModified)
			return true
		}
	}
	return false
}

// parseYearMonth validates the year and month path segments. msg is the
// 400 response body when they are unusable.
func parseYearMonth(ys, ms string) (int, time.Month, string) {
	year, okY := parseLeadingInt(ys)
	month, okM := parseLeadingInt(ms)
	switch {
	case !okY || !okM:
		return 0, 0, "Invalid data in URI"
	case year < minYear || year > maxYear:
		return 0, 0, fmt.Sprintf("`year` must be between %d and %d", minYear, maxYear)
	case month < 1 || month > 12:
		return 0, 0, "`month` must be between 1 and 12"
	}
	return year, time.Month(month), ""
}

// parseLeadingInt reads an optionally signed run of digits at the start of
// s and ignores the rest, so "2024abc" is 2024.
func parseLeadingInt(s string) (int, bool) {
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", contentText)
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}
