package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/medsearch/internal/search"
	"github.com/sells-group/medsearch/internal/selection"
	"github.com/sells-group/medsearch/internal/view"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP search service",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := initStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		var opts []search.SessionOption
		if st != nil {
			defer st.Close() //nolint:errcheck
			opts = append(opts, search.WithRecorder(st))
		}

		registry := search.NewRegistry(newSearchClient(cfg.Search), opts...)
		go sweepSessions(ctx, registry,
			time.Duration(cfg.Server.SweepIntervalSec)*time.Second,
			time.Duration(cfg.Server.SessionIdleMins)*time.Minute,
		)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           buildRouter(ctx, registry, newPriceFormatter(cfg.Display), cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// sweepSessions drops idle sessions every interval until ctx is done.
func sweepSessions(ctx context.Context, registry *search.Registry, interval, maxIdle time.Duration) {
	if interval <= 0 || maxIdle <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			registry.Sweep(now.UTC(), maxIdle)
		}
	}
}

type sessionResponse struct {
	ID    string      `json:"id"`
	Query string      `json:"query"`
	Cards []view.Card `json:"cards"`
}

type searchRequest struct {
	Query string `json:"query"`
}

type choiceRequest struct {
	Salt      string `json:"salt"`
	Form      string `json:"form"`
	Strength  string `json:"strength"`
	Packaging string `json:"packaging"`
}

// buildRouter wires the session API. Searches run against ctx so they stop
// when the server shuts down.
func buildRouter(ctx context.Context, registry *search.Registry, prices *view.PriceFormatter, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": registry.Len()})
	})

	h := &sessionHandler{ctx: ctx, registry: registry, prices: prices}
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", h.create)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.get)
			r.Get("/export.xlsx", h.export)
			r.Delete("/", h.delete)
			r.Post("/search", h.search)
			r.Post("/form", h.chooseForm)
			r.Post("/strength", h.chooseStrength)
			r.Post("/packaging", h.choosePackaging)
		})
	})
	return r
}

type sessionHandler struct {
	ctx      context.Context
	registry *search.Registry
	prices   *view.PriceFormatter
}

func (h *sessionHandler) render(w http.ResponseWriter, status int, s *search.Session) {
	snap := s.Snapshot()
	writeJSON(w, status, sessionResponse{
		ID:    s.ID,
		Query: snap.Query,
		Cards: view.Build(snap.State, h.prices),
	})
}

func (h *sessionHandler) session(w http.ResponseWriter, r *http.Request) (*search.Session, bool) {
	s, ok := h.registry.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	s.Touch()
	return s, true
}

func (h *sessionHandler) create(w http.ResponseWriter, _ *http.Request) {
	h.render(w, http.StatusCreated, h.registry.Create())
}

func (h *sessionHandler) get(w http.ResponseWriter, r *http.Request) {
	if s, ok := h.session(w, r); ok {
		h.render(w, http.StatusOK, s)
	}
}

// xlsxContentType is the media type of .xlsx workbooks.
const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// export answers with the session's current cards as a workbook.
func (h *sessionHandler) export(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	snap := s.Snapshot()
	results := []view.QueryResult{{
		Query: snap.Query,
		Cards: view.Build(snap.State, h.prices),
	}}

	var buf bytes.Buffer
	if err := view.EncodeXLSX(&buf, results); err != nil {
		zap.L().Error("export session workbook", zap.String("session", s.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="medsearch.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *sessionHandler) delete(w http.ResponseWriter, r *http.Request) {
	if !h.registry.Delete(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *sessionHandler) search(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Bound to the server context; a newer search on the session cancels it.
	outcome := s.Search(h.ctx, normalizeQueries([]string{req.Query})[0])
	w.Header().Set("X-Search-Outcome", string(outcome))
	h.render(w, http.StatusOK, s)
}

func (h *sessionHandler) chooseForm(w http.ResponseWriter, r *http.Request) {
	h.choose(w, r, func(st *selection.State, req choiceRequest) {
		st.ChooseForm(req.Salt, req.Form)
	})
}

func (h *sessionHandler) chooseStrength(w http.ResponseWriter, r *http.Request) {
	h.choose(w, r, func(st *selection.State, req choiceRequest) {
		st.ChooseStrength(req.Salt, req.Form, req.Strength)
	})
}

func (h *sessionHandler) choosePackaging(w http.ResponseWriter, r *http.Request) {
	h.choose(w, r, func(st *selection.State, req choiceRequest) {
		st.ChoosePackaging(req.Salt, req.Form, req.Strength, req.Packaging)
	})
}

// choose decodes a choiceRequest and applies it. Choices that do not match
// the current results change nothing and still answer 200.
func (h *sessionHandler) choose(w http.ResponseWriter, r *http.Request, apply func(*selection.State, choiceRequest)) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req choiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Salt == "" {
		writeError(w, http.StatusBadRequest, "salt is required")
		return
	}
	apply(s.State(), req)
	h.render(w, http.StatusOK, s)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
