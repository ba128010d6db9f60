package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/corelite/sqlite"
	"github.com/corelite/sqlite/sqlitelog"
	"github.com/corelite/sqlite/sqlitepool"
	"github.com/corelite/sqlite/sqlitestats"
	"github.com/corelite/sqlite/sqlstats"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// server exposes a read-only query endpoint over a connection pool,
// along with the stats the pool's tracers collect.
type server struct {
	log          *slog.Logger
	pool         *sqlitepool.Pool
	queries      *sqlstats.Tracer
	txs          *sqlitestats.Stats
	queryTimeout time.Duration
}

func newServer(log *slog.Logger, cfg *Config) (*server, error) {
	s := &server{
		log:          log,
		queries:      &sqlstats.Tracer{},
		txs:          &sqlitestats.Stats{},
		queryTimeout: cfg.Debug.QueryTimeout,
	}
	tracer := sqlite.MultiTracer(
		s.queries,
		s.txs,
		sqlitelog.NewTracer(log, cfg.Logging.SlowQuery),
	)
	initFn := func(c *sqlite.Conn) error { return initConn(cfg.Database, c) }
	pool, err := sqlitepool.NewPool(cfg.Database.Path, cfg.Database.PoolSize, initFn, tracer)
	if err != nil {
		return nil, err
	}
	s.pool = pool
	return s, nil
}

func (s *server) Close() error { return s.pool.Close() }

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealth)
	r.Get("/query", s.handleQuery)
	r.Route("/debug", func(r chi.Router) {
		r.Get("/queries", s.queries.Handle)
		r.Post("/queries/reset", func(w http.ResponseWriter, r *http.Request) {
			s.queries.Reset()
			w.WriteHeader(http.StatusNoContent)
		})
		r.Handle("/txs", s.txs)
	})
	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	rx, err := s.pool.BeginRx(r.Context(), "healthz")
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer rx.Rollback()
	var one int
	if err := rx.QueryRow("SELECT 1").Scan(&one); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	fmt.Fprintln(w, "ok")
}

type queryResponse struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// handleQuery runs the q parameter in a read-only transaction and returns
// its rows as JSON. Remaining parameters named 1, 2, ... are bound in order.
func (s *server) handleQuery(w http.ResponseWriter, r *http.Request) {
	q := r.FormValue("q")
	if q == "" {
		http.Error(w, "missing q", http.StatusBadRequest)
		return
	}
	var args []any
	for i := 1; r.Form.Has(fmt.Sprint(i)); i++ {
		args = append(args, r.Form.Get(fmt.Sprint(i)))
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.queryTimeout)
	defer cancel()
	rx, err := s.pool.BeginRx(ctx, "http-query")
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer rx.Rollback()

	// The query may run long. Interrupt it when the request is done.
	stop := context.AfterFunc(ctx, rx.Conn().Interrupt)
	defer stop()

	resp, err := collectRows(rx.Conn(), q, args)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, sqlite.ErrBusy) {
			status = http.StatusServiceUnavailable
		}
		s.log.Warn("query failed", "query", q, "error", err)
		http.Error(w, err.Error(), status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Warn("writing response", "error", err)
	}
}

func collectRows(c *sqlite.Conn, q string, args []any) (*queryResponse, error) {
	stmt, err := c.Prepare(q)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()
	if !stmt.ReadOnly() {
		return nil, fmt.Errorf("query is not read-only")
	}

	resp := &queryResponse{Columns: stmt.ColumnNames(), Rows: [][]any{}}
	for row, err := range stmt.Cursor().Bind(args...).All() {
		if err != nil {
			return nil, err
		}
		vals, err := row.Values()
		if err != nil {
			return nil, err
		}
		out := make([]any, len(vals))
		for i, v := range vals {
			out[i] = v.Any()
		}
		resp.Rows = append(resp.Rows, out)
	}
	return resp, nil
}

func serve(ctx context.Context, log *slog.Logger, cfg *Config) error {
	s, err := newServer(log, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	srv := &http.Server{
		Addr:              cfg.Debug.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Info("serving", "addr", cfg.Debug.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()
	log.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
