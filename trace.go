package sqlite

import (
	"context"
	"time"

	"github.com/corelite/sqlite/sqliteh"
)

// MultiTracer returns a Tracer that reports every event to each of
// tracers in order. Nil tracers are skipped.
func MultiTracer(tracers ...sqliteh.Tracer) sqliteh.Tracer {
	var ts multiTracer
	for _, t := range tracers {
		if t != nil {
			ts = append(ts, t)
		}
	}
	switch len(ts) {
	case 0:
		return nil
	case 1:
		return ts[0]
	}
	return ts
}

type multiTracer []sqliteh.Tracer

func (m multiTracer) Query(prepCtx context.Context, id sqliteh.TraceConnID, query string, duration time.Duration, err error) {
	for _, t := range m {
		t.Query(prepCtx, id, query, duration, err)
	}
}

func (m multiTracer) BeginTx(beginCtx context.Context, id sqliteh.TraceConnID, why string, readOnly bool, err error) {
	for _, t := range m {
		t.BeginTx(beginCtx, id, why, readOnly, err)
	}
}

func (m multiTracer) Commit(id sqliteh.TraceConnID, err error) {
	for _, t := range m {
		t.Commit(id, err)
	}
}

func (m multiTracer) Rollback(id sqliteh.TraceConnID, err error) {
	for _, t := range m {
		t.Rollback(id, err)
	}
}
