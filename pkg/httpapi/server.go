// Package httpapi is the JSON edge in front of the account service and
// the materialized view.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/plaenen/accountledger/pkg/domain"
	"github.com/plaenen/accountledger/pkg/runner"
	"github.com/plaenen/accountledger/pkg/viewstore"
)

// AccountService is the write-side surface the edge translates
// requests into.
type AccountService interface {
	Create(ctx context.Context, id string) error
	Deposit(ctx context.Context, id string, amount int64) error
	Withdraw(ctx context.Context, id string, amount int64) error
	Fetch(ctx context.Context, id string) (domain.Snapshot, error)
}

// ViewReader serves the read path against the materialized view.
type ViewReader interface {
	Get(ctx context.Context, id string) (viewstore.Record, error)
}

// Server is the HTTP edge. It implements runner.Service.
type Server struct {
	addr    string
	service AccountService
	views   ViewReader
	logger  runner.Logger
	httpSrv *http.Server
}

// NewServer builds the edge for the given service and view reader.
// views may be nil when the process runs without a view store.
func NewServer(addr string, svc AccountService, views ViewReader, logger runner.Logger) *Server {
	if logger == nil {
		logger = runner.NewNoopLogger()
	}
	s := &Server{addr: addr, service: svc, views: views, logger: logger}
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Router wires the routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", s.handleHealth)

	r.Route("/accounts", func(r chi.Router) {
		r.Post("/", s.handleCreate)
		r.Get("/{id}", s.handleFetch)
		r.Get("/{id}/balance", s.handleBalance)
		r.Post("/{id}/deposits", s.handleDeposit)
		r.Post("/{id}/withdrawals", s.handleWithdraw)
	})

	return r
}

// Name implements runner.Service.
func (s *Server) Name() string {
	return "httpapi"
}

// Start binds the listener and begins serving in the background, so a
// port already in use fails the start rather than a later request.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}

	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server stopped", "error", err)
		}
	}()
	return nil
}

// Stop drains in-flight requests.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "ts": time.Now().UTC()})
}

type createRequest struct {
	ID string `json:"id"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	if req.ID == "" {
		respondError(w, http.StatusBadRequest, "id required")
		return
	}

	if err := s.service.Create(r.Context(), req.ID); err != nil {
		// A duplicate create is a client error, not a retryable
		// concurrency loss.
		s.respondServiceError(w, err, http.StatusBadRequest)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"id": req.ID})
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "id required")
		return
	}

	snap, err := s.service.Fetch(r.Context(), id)
	if err != nil {
		s.respondServiceError(w, err, http.StatusConflict)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	if s.views == nil {
		respondError(w, http.StatusNotFound, "view store not configured")
		return
	}
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "id required")
		return
	}

	rec, err := s.views.Get(r.Context(), id)
	if errors.Is(err, viewstore.ErrViewNotFound) {
		respondError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		s.logger.Error("view read failed", "id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "view store error")
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

type amountRequest struct {
	Amount int64 `json:"amount"`
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	s.handleMutation(w, r, s.service.Deposit)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	s.handleMutation(w, r, s.service.Withdraw)
}

func (s *Server) handleMutation(w http.ResponseWriter, r *http.Request, op func(context.Context, string, int64) error) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "id required")
		return
	}

	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}

	if err := op(r.Context(), id, req.Amount); err != nil {
		s.respondServiceError(w, err, http.StatusConflict)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"id": id, "amount": req.Amount})
}

// respondServiceError maps service errors onto the wire. conflictCode
// is what an optimistic-concurrency loss translates to: 409 on
// mutations, 400 on create.
func (s *Server) respondServiceError(w http.ResponseWriter, err error, conflictCode int) {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInsufficientFunds):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		respondError(w, conflictCode, err.Error())
	default:
		s.logger.Error("command failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func respondJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, code int, msg string) {
	respondJSON(w, code, map[string]string{"errorMessage": msg})
}
