// Package sqlitestats implements a Tracer that reports transactions.
package sqlitestats

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/corelite/sqlite"
	"github.com/corelite/sqlite/sqliteh"
)

// Stats is an sqliteh.Tracer that follows transactions by name, and an
// http.Handler that shows them. The zero value is ready to use.
type Stats struct {
	curTxs sync.Map // sqliteh.TraceConnID -> *txStats

	mu   sync.Mutex
	done map[string]*txTotals // tx name -> totals of finished txs

	beginErrors atomic.Int64
}

type txStats struct {
	name     string
	start    time.Time
	readOnly bool
	queries  atomic.Int64
}

type txTotals struct {
	count    int64
	errors   int64
	queries  int64
	duration time.Duration
}

// TxSummary describes the finished transactions sharing a name.
type TxSummary struct {
	Name     string
	Count    int64
	Errors   int64
	Queries  int64
	Duration time.Duration
}

// ActiveTx describes a transaction that has begun but not ended.
type ActiveTx struct {
	Name     string
	ReadOnly bool
	Age      time.Duration
	Queries  int64
}

// Active reports the open transactions, oldest first.
func (s *Stats) Active() []ActiveTx {
	var txs []*txStats
	s.curTxs.Range(func(_, value any) bool {
		txs = append(txs, value.(*txStats))
		return true
	})
	slices.SortFunc(txs, func(a, b *txStats) int { return a.start.Compare(b.start) })

	now := time.Now()
	out := make([]ActiveTx, len(txs))
	for i, tx := range txs {
		out[i] = ActiveTx{
			Name:     tx.name,
			ReadOnly: tx.readOnly,
			Age:      now.Sub(tx.start),
			Queries:  tx.queries.Load(),
		}
	}
	return out
}

// Finished reports totals for ended transactions, grouped by name.
func (s *Stats) Finished() []TxSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TxSummary, 0, len(s.done))
	for name, t := range s.done {
		out = append(out, TxSummary{
			Name:     name,
			Count:    t.count,
			Errors:   t.errors,
			Queries:  t.queries,
			Duration: t.duration,
		})
	}
	slices.SortFunc(out, func(a, b TxSummary) int { return int(b.Count - a.Count) })
	return out
}

// ServeHTTP writes a plain HTML page listing the open transactions,
// then the totals of finished ones.
func (s *Stats) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	active := s.Active()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	var b strings.Builder
	b.WriteString("<!DOCTYPE html><title>sqlite transactions</title><pre>\n")
	fmt.Fprintf(&b, "open transactions (%d):\n", len(active))
	for _, tx := range active {
		mode := "rw"
		if tx.ReadOnly {
			mode = "ro"
		}
		fmt.Fprintf(&b, "\t%s\t%s\t%v\t%d queries\n",
			html.EscapeString(tx.Name), mode, tx.Age.Round(time.Millisecond), tx.Queries)
	}
	fmt.Fprintf(&b, "\nfinished transactions (%d failed to begin):\n", s.beginErrors.Load())
	for _, sum := range s.Finished() {
		fmt.Fprintf(&b, "\t%s\tx%d\t%d errors\t%d queries\t%v total\n",
			html.EscapeString(sum.Name), sum.Count, sum.Errors, sum.Queries, sum.Duration.Round(time.Millisecond))
	}
	b.WriteString("</pre>\n")
	io.WriteString(w, b.String())
}

func (s *Stats) Query(prepCtx context.Context, id sqliteh.TraceConnID, query string, duration time.Duration, err error) {
	if v, ok := s.curTxs.Load(id); ok {
		v.(*txStats).queries.Add(1)
	}
}

func (s *Stats) BeginTx(beginCtx context.Context, id sqliteh.TraceConnID, why string, readOnly bool, err error) {
	if err != nil {
		s.beginErrors.Add(1)
		return
	}
	s.curTxs.Store(id, &txStats{name: why, start: time.Now(), readOnly: readOnly})
}

func (s *Stats) Commit(id sqliteh.TraceConnID, err error) {
	s.txEnd(id, err)
}

func (s *Stats) Rollback(id sqliteh.TraceConnID, err error) {
	s.txEnd(id, err)
}

func (s *Stats) txEnd(id sqliteh.TraceConnID, err error) {
	v, ok := s.curTxs.LoadAndDelete(id)
	if !ok {
		// A second Rollback after Commit, or a tx whose BEGIN failed.
		return
	}
	tx := v.(*txStats)

	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.done[tx.name]
	if t == nil {
		if s.done == nil {
			s.done = make(map[string]*txTotals)
		}
		t = new(txTotals)
		s.done[tx.name] = t
	}
	t.count++
	t.queries += tx.queries.Load()
	t.duration += time.Since(tx.start)
	if err != nil {
		t.errors++
	}
}

// WithName labels the transactions begun with ctx in the Stats.
// It is sqlite.WithTxName.
func WithName(ctx context.Context, name string) context.Context {
	return sqlite.WithTxName(ctx, name)
}
