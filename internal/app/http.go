package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"delegate/api/internal/digest"
	"delegate/api/internal/filter"
	"delegate/api/internal/identity"
	"delegate/api/internal/search"
	"delegate/api/internal/snapshot"
	"delegate/api/internal/util"
)

// WalletHeader carries the connected wallet address.
const WalletHeader = "X-Wallet-Address"

type HTTPServer struct {
	service    *Service
	corsOrigin string
	log        zerolog.Logger
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin, log: service.log}
}

func (s *HTTPServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.withRequestID)
	r.Use(s.withAccessLog)
	r.Use(middleware.Recoverer)
	r.Use(s.withCORS)

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		})
		r.Get("/ready", s.handleReady)

		r.Group(func(r chi.Router) {
			r.Use(s.withIdentity)

			r.Get("/daos", s.handleDAOs)
			r.Get("/explorer", s.handleExplorer)
			r.Get("/dao/{identifier}", s.handleDashboard)
			r.Get("/digest/{tabType}", s.handleDigest)
			r.Get("/digest/{tabType}/export", s.handleExport)
			r.Get("/search", s.handleSearch)
			r.Post("/summary", s.handleSummary)
			r.Post("/suggest", s.handleSuggest)

			r.Get("/ethos/presets", func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, map[string]any{"presets": s.service.EthosPresets()})
			})

			r.Route("/account", func(r chi.Router) {
				r.Get("/", s.handleAccount)
				r.Put("/ethos", s.handleSetEthos)
				r.Put("/subscriptions/{key}", s.handleAccountMutation(s.service.Subscribe))
				r.Delete("/subscriptions/{key}", s.handleAccountMutation(s.service.Unsubscribe))
				r.Put("/agents/{key}", s.handleAccountMutation(s.service.StartAgent))
				r.Delete("/agents/{key}", s.handleAccountMutation(s.service.StopAgent))
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})
	return r
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks, ok := s.service.Ready(ctx)
	status, code := "ready", http.StatusOK
	if !ok {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"ok":     ok,
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) handleDAOs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"daos": s.service.DAOs()})
}

func (s *HTTPServer) handleExplorer(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"items": s.service.Explorer(r.Context())})
}

func (s *HTTPServer) handleDashboard(w http.ResponseWriter, r *http.Request) {
	criteria, err := parseCriteria(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	limit, err := intParam(r, "limit")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	payload, err := s.service.Dashboard(r.Context(), chi.URLParam(r, "identifier"), digest.DashboardQuery{
		Criteria: criteria,
		Limit:    limit,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleDigest(w http.ResponseWriter, r *http.Request) {
	filters, err := parseWeeklyFilters(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	payload, err := s.service.Digest(r.Context(), chi.URLParam(r, "tabType"), filters)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	filters, err := parseWeeklyFilters(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	archive, _ := strconv.ParseBool(r.URL.Query().Get("archive"))
	res, err := s.service.ExportDigest(r.Context(), chi.URLParam(r, "tabType"), filters, r.URL.Query().Get("format"), archive)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", res.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Filename))
	if res.Key != "" {
		w.Header().Set("X-Archive-Key", res.Key)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Data)
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	q := r.URL.Query()
	var state snapshot.State
	if raw := strings.TrimSpace(q.Get("state")); raw != "" {
		state = snapshot.ParseState(raw)
	}
	writeJSON(w, http.StatusOK, s.service.Search(r.Context(), search.Query{
		Text:  q.Get("q"),
		Space: q.Get("space"),
		State: state,
		Limit: limit,
	}))
}

func (s *HTTPServer) handleSummary(w http.ResponseWriter, r *http.Request) {
	var body SummaryInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	payload, err := s.service.Summarize(r.Context(), body)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleSuggest(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Proposal *snapshot.Proposal `json:"proposal"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	payload, err := s.service.Suggest(r.Context(), identityFrom(r.Context()), body.Proposal)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleAccount(w http.ResponseWriter, r *http.Request) {
	payload, err := s.service.Account(r.Context(), identityFrom(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleSetEthos(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text   string `json:"text"`
		Ethos  string `json:"ethos"`
		Preset string `json:"preset"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	text := body.Text
	if text == "" {
		text = body.Ethos
	}
	payload, err := s.service.SetEthos(r.Context(), identityFrom(r.Context()), text, body.Preset)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleAccountMutation(fn func(ctx context.Context, id, ref string) (Account, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, err := fn(r.Context(), identityFrom(r.Context()), chi.URLParam(r, "key"))
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
	}
}

func (s *HTTPServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		s.log.Error().Err(err).Str("request_id", requestIDFrom(r.Context())).Str("code", code).Msg("request failed")
	}
	writeError(w, status, code, message, details)
}

type (
	requestIDKey struct{}
	identityKey  struct{}
)

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func identityFrom(ctx context.Context) string {
	id, _ := ctx.Value(identityKey{}).(string)
	return id
}

func (s *HTTPServer) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = util.NewID("req")
		}
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, requestID)))
	})
}

func (s *HTTPServer) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.log.Info().
			Str("request_id", requestIDFrom(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int64("duration_ms", time.Since(started).Milliseconds()).
			Msg("http request")
	})
}

func (s *HTTPServer) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := w.Header()
		header.Set("Access-Control-Allow-Origin", s.corsOrigin)
		header.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID, "+WalletHeader)
		header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		header.Set("Access-Control-Expose-Headers", "X-Request-ID, X-Archive-Key, Content-Disposition")
		header.Set("Cache-Control", "no-store")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withIdentity normalises the wallet header. A missing header is the
// anonymous identity; a malformed one is rejected.
func (s *HTTPServer) withIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(WalletHeader))
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}
		id, err := identity.Normalize(raw)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, id)))
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
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

func intParam(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, validationError(name + " must be a non-negative integer")
	}
	return v, nil
}

// dateParam accepts YYYY-MM-DD or RFC 3339. A bare "to" date covers the whole day.
func dateParam(r *http.Request, name string, endOfDay bool) (*time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, validationError(name + " must be a date (YYYY-MM-DD)")
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Second)
	}
	return &t, nil
}

func parseRange(r *http.Request) (filter.Range, error) {
	from, err := dateParam(r, "from", false)
	if err != nil {
		return filter.Range{}, err
	}
	to, err := dateParam(r, "to", true)
	if err != nil {
		return filter.Range{}, err
	}
	if from != nil && to != nil && to.Before(*from) {
		return filter.Range{}, validationError("to must not be before from")
	}
	return filter.Range{From: from, To: to}, nil
}

func parseCriteria(r *http.Request) (filter.Criteria, error) {
	var c filter.Criteria
	var err error
	if c.AgeDays, err = intParam(r, "days"); err != nil {
		return c, err
	}
	if c.Page, err = intParam(r, "page"); err != nil {
		return c, err
	}
	if c.PageSize, err = intParam(r, "pageSize"); err != nil {
		return c, err
	}
	if c.Range, err = parseRange(r); err != nil {
		return c, err
	}
	c.Status = r.URL.Query().Get("status")
	c.Search = r.URL.Query().Get("q")
	return c, nil
}

func parseWeeklyFilters(r *http.Request) (digest.WeeklyFilters, error) {
	c, err := parseCriteria(r)
	if err != nil {
		return digest.WeeklyFilters{}, err
	}
	return digest.WeeklyFilters{
		DAO:      r.URL.Query().Get("dao"),
		Status:   c.Status,
		Range:    c.Range,
		Search:   c.Search,
		Page:     c.Page,
		PageSize: c.PageSize,
	}, nil
}
