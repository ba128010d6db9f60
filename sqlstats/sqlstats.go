// Package sqlstats implements an SQLite Tracer that collects query stats.
package sqlstats

import (
	"cmp"
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"regexp"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/corelite/sqlite/sqliteh"
)

// Tracer implements sqliteh.Tracer and collects query stats.
//
// To use, pass the tracer object to sqlite.Connector, then start
// a debug web server with http.HandlerFunc(sqlTracer.Handle).
type Tracer struct {
	mu      sync.RWMutex
	queries map[string]*queryStats // normalized query -> stats

	txBegun     atomic.Int64
	txErrors    atomic.Int64
	txCommits   atomic.Int64
	txRollbacks atomic.Int64
}

type queryStats struct {
	query string

	count    atomic.Int64
	errors   atomic.Int64
	duration atomic.Int64 // nanoseconds
	lastErr  atomic.Pointer[string]
}

// QueryStats is a snapshot of the stats for one normalized query.
type QueryStats struct {
	Query     string
	Count     int64
	Errors    int64
	Duration  time.Duration
	MeanDur   time.Duration
	LastError string
}

var inListRE = regexp.MustCompile(`(?i)\bin\s*\(\s*(?:[-+]?[0-9.]+|\?|'[^']*')(?:\s*,\s*(?:[-+]?[0-9.]+|\?|'[^']*'))*\s*\)`)

// normalizeQuery folds IN lists of literals so that queries differing
// only in list length share one entry.
func normalizeQuery(q string) string {
	return inListRE.ReplaceAllString(q, "IN (...)")
}

func (t *Tracer) collect() (rows []*queryStats) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rows = make([]*queryStats, 0, len(t.queries))
	for _, s := range t.queries {
		rows = append(rows, s)
	}
	return rows
}

// Collect returns a snapshot of the stats of every query seen so far.
func (t *Tracer) Collect() []*QueryStats {
	rows := t.collect()
	out := make([]*QueryStats, 0, len(rows))
	for _, s := range rows {
		qs := &QueryStats{
			Query:    s.query,
			Count:    s.count.Load(),
			Errors:   s.errors.Load(),
			Duration: time.Duration(s.duration.Load()),
		}
		if qs.Count > 0 {
			qs.MeanDur = qs.Duration / time.Duration(qs.Count)
		}
		if e := s.lastErr.Load(); e != nil {
			qs.LastError = *e
		}
		out = append(out, qs)
	}
	return out
}

// Reset discards all collected stats.
func (t *Tracer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.queries = nil
	t.txBegun.Store(0)
	t.txErrors.Store(0)
	t.txCommits.Store(0)
	t.txRollbacks.Store(0)
}

func (t *Tracer) Query(
	prepCtx context.Context,
	id sqliteh.TraceConnID,
	query string,
	duration time.Duration,
	err error,
) {
	query = normalizeQuery(query)

	t.mu.RLock()
	stats, ok := t.queries[query]
	t.mu.RUnlock()

	if !ok {
		t.mu.Lock()
		stats, ok = t.queries[query]
		if !ok {
			stats = &queryStats{query: query}
			if t.queries == nil {
				t.queries = make(map[string]*queryStats)
			}
			t.queries[query] = stats
		}
		t.mu.Unlock()
	}

	stats.count.Add(1)
	stats.duration.Add(int64(duration))
	if err != nil {
		stats.errors.Add(1)
		msg := err.Error()
		stats.lastErr.Store(&msg)
	}
}

// TxCounts counts the transactions a Tracer has seen.
type TxCounts struct {
	Begun, Committed, RolledBack, Errors int64
}

// Transactions returns the transaction counts since the last Reset.
func (t *Tracer) Transactions() TxCounts {
	return TxCounts{
		Begun:      t.txBegun.Load(),
		Committed:  t.txCommits.Load(),
		RolledBack: t.txRollbacks.Load(),
		Errors:     t.txErrors.Load(),
	}
}

func (t *Tracer) BeginTx(beginCtx context.Context, id sqliteh.TraceConnID, why string, readOnly bool, err error) {
	t.txBegun.Add(1)
	if err != nil {
		t.txErrors.Add(1)
	}
}

func (t *Tracer) Commit(id sqliteh.TraceConnID, err error) {
	t.txCommits.Add(1)
	if err != nil {
		t.txErrors.Add(1)
	}
}

func (t *Tracer) Rollback(id sqliteh.TraceConnID, err error) {
	t.txRollbacks.Add(1)
	if err != nil {
		t.txErrors.Add(1)
	}
}

// Handle serves an HTML table of the collected stats.
// The sort query parameter orders it by count, query, duration,
// errors, or mean duration.
func (t *Tracer) Handle(w http.ResponseWriter, r *http.Request) {
	rows := t.Collect()

	switch r.FormValue("sort") {
	case "", "count":
		slices.SortFunc(rows, func(a, b *QueryStats) int { return cmp.Compare(b.Count, a.Count) })
	case "query":
		slices.SortFunc(rows, func(a, b *QueryStats) int { return cmp.Compare(a.Query, b.Query) })
	case "duration":
		slices.SortFunc(rows, func(a, b *QueryStats) int { return cmp.Compare(b.Duration, a.Duration) })
	case "errors":
		slices.SortFunc(rows, func(a, b *QueryStats) int { return cmp.Compare(b.Errors, a.Errors) })
	case "meandur":
		slices.SortFunc(rows, func(a, b *QueryStats) int { return cmp.Compare(b.MeanDur, a.MeanDur) })
	default:
		http.Error(w, "unknown sort: "+r.FormValue("sort"), http.StatusBadRequest)
		return
	}

	tx := t.Transactions()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `<!DOCTYPE html><html><body>
<p>transactions: %d begun, %d committed, %d rolled back, %d errors</p>
<p>Trace of SQLite queries run via the corelite/sqlite driver.</p>
<table border="1">
<tr>
<th><a href="?sort=query">Query</a></th>
<th><a href="?sort=count">Count</a></th>
<th><a href="?sort=duration">Duration</a></th>
<th><a href="?sort=meandur">Mean</a></th>
<th><a href="?sort=errors">Errors</a></th>
<th>Last error</th>
</tr>
`, tx.Begun, tx.Committed, tx.RolledBack, tx.Errors)
	for _, s := range rows {
		fmt.Fprintf(w, "<tr><td>%s</td><td>%d</td><td>%v</td><td>%v</td><td>%d</td><td>%s</td></tr>\n",
			html.EscapeString(s.Query),
			s.Count,
			s.Duration.Round(time.Second),
			s.MeanDur.Round(time.Millisecond),
			s.Errors,
			html.EscapeString(s.LastError),
		)
	}
	io.WriteString(w, "</table></body></html>")
}
