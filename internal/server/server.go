package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"wsbook/internal/memorystore"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server exposes the in-memory books and trade tapes over HTTP.
type Server struct {
	addr   string
	books  *memorystore.MemoryBookStore
	trades *memorystore.MemoryTradeStore
	depth  int
	gather prometheus.Gatherer
	logger *zap.Logger
}

func New(addr string, books *memorystore.MemoryBookStore, trades *memorystore.MemoryTradeStore, depth int, gather prometheus.Gatherer, logger *zap.Logger) *Server {
	return &Server{
		addr:   addr,
		books:  books,
		trades: trades,
		depth:  depth,
		gather: gather,
		logger: logger.Named("http"),
	}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)
	r.Handle("/metrics", promhttp.HandlerFor(s.gather, promhttp.HandlerOpts{}))
	r.Get("/books", s.bookSymbols)
	r.Get("/books/{market}", s.book)
	r.Route("/trades/{market}", func(tr chi.Router) {
		tr.Get("/", s.recentTrades)
		tr.Get("/stats", s.tradeStats)
	})
	return r
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"books":  len(s.books.Symbols()),
		"trades": s.trades.CountAll(),
	})
}

func (s *Server) bookSymbols(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.books.Symbols())
}

func (s *Server) book(w http.ResponseWriter, r *http.Request) {
	depth := queryInt(r, "depth", s.depth)
	view, ok := s.books.View(chi.URLParam(r, "market"), depth)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "book not found"})
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) recentTrades(w http.ResponseWriter, r *http.Request) {
	trades := s.trades.Recent(chi.URLParam(r, "market"), queryInt(r, "limit", 0))
	if trades == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no trades"})
		return
	}
	writeJSON(w, http.StatusOK, trades)
}

func (s *Server) tradeStats(w http.ResponseWriter, r *http.Request) {
	st, ok := s.trades.Stats(chi.URLParam(r, "market"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no trades"})
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v < 0 {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
