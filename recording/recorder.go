// Package recording persists the stream of fired scheduler events into
// a SQLite database. Two emulation runs that are supposed to be
// deterministic can then be compared trace-for-trace: same sequence
// numbers, same virtual times, same lateness.
package recording

import (
	"database/sql"
	"fmt"
	"os"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"

	"github.com/tempolab/tempo/timing"
)

// A FiredEvent is one row of the trace: an event that became due and
// had its callback invoked.
type FiredEvent struct {
	Sequence uint64
	Time     int64
	Name     string
	UserData uint64
	Lateness int64
}

// TraceRecorder is a timing.Hook that buffers fired events and writes
// them to SQLite in batches. Attach it with Scheduler.AcceptHook. The
// hook runs on the core thread; rows are buffered in memory and only
// hit the database on Flush, so the hot path stays free of I/O until
// the batch fills.
type TraceRecorder struct {
	*sql.DB

	dbName    string
	batchSize int
	buffered  []FiredEvent
}

// NewTraceRecorder creates a TraceRecorder writing to path + ".sqlite3".
// An empty path picks a unique generated name. The recorder flushes at
// process exit; call Flush earlier to make rows visible to a reader.
func NewTraceRecorder(path string) *TraceRecorder {
	r := &TraceRecorder{
		dbName:    path,
		batchSize: 100000,
	}

	r.Init()

	atexit.Register(func() { r.Flush() })

	return r
}

// Init establishes the database connection and creates the trace
// table.
func (r *TraceRecorder) Init() {
	if r.dbName == "" {
		r.dbName = "tempo_trace_" + xid.New().String()
	}

	filename := r.dbName + ".sqlite3"

	_, err := os.Stat(filename)
	if err == nil {
		panic(fmt.Errorf("file %s already exists", filename))
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		panic(err)
	}

	r.DB = db

	_, err = r.Exec(`
		CREATE TABLE fired_events (
			seq      INTEGER NOT NULL,
			time     INTEGER NOT NULL,
			name     TEXT    NOT NULL,
			userdata INTEGER NOT NULL,
			lateness INTEGER NOT NULL
		)`)
	if err != nil {
		panic(err)
	}
}

// Func implements timing.Hook. It records each event right before its
// callback runs.
func (r *TraceRecorder) Func(ctx timing.HookCtx) {
	if ctx.Pos != timing.HookPosBeforeEvent {
		return
	}

	evt, ok := ctx.Item.(timing.Event)
	if !ok {
		return
	}

	r.buffered = append(r.buffered, FiredEvent{
		Sequence: evt.Sequence,
		Time:     evt.Time,
		Name:     evt.Type.Name(),
		UserData: evt.UserData,
		Lateness: ctx.Detail.(int64),
	})

	if len(r.buffered) >= r.batchSize {
		r.Flush()
	}
}

// Flush writes all buffered rows in one transaction.
func (r *TraceRecorder) Flush() {
	if len(r.buffered) == 0 {
		return
	}

	tx, err := r.Begin()
	if err != nil {
		panic(err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO fired_events (seq, time, name, userdata, lateness)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		panic(err)
	}

	for _, row := range r.buffered {
		_, err = stmt.Exec(
			int64(row.Sequence),
			row.Time,
			row.Name,
			int64(row.UserData),
			row.Lateness,
		)
		if err != nil {
			panic(err)
		}
	}

	err = stmt.Close()
	if err != nil {
		panic(err)
	}

	err = tx.Commit()
	if err != nil {
		panic(err)
	}

	r.buffered = r.buffered[:0]
}
