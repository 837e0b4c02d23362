package recording

import (
	"database/sql"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
)

// TraceReader reads back a recorded trace for verification.
type TraceReader struct {
	*sql.DB

	dbName string
}

// NewTraceReader creates a TraceReader for path + ".sqlite3".
func NewTraceReader(path string) *TraceReader {
	r := &TraceReader{dbName: path}
	r.Init()
	return r
}

// Init establishes the database connection.
func (r *TraceReader) Init() {
	db, err := sql.Open("sqlite3", r.dbName+".sqlite3")
	if err != nil {
		panic(err)
	}

	r.DB = db
}

// FiredEvents returns every recorded row in firing order.
func (r *TraceReader) FiredEvents() ([]FiredEvent, error) {
	rows, err := r.Query(`
		SELECT seq, time, name, userdata, lateness
		FROM fired_events
		ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []FiredEvent
	for rows.Next() {
		var evt FiredEvent
		var seq, userdata int64

		err = rows.Scan(&seq, &evt.Time, &evt.Name, &userdata, &evt.Lateness)
		if err != nil {
			return nil, err
		}

		evt.Sequence = uint64(seq)
		evt.UserData = uint64(userdata)
		events = append(events, evt)
	}

	return events, rows.Err()
}
