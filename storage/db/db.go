// Copyright 2025 The Sweep Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package db provides the high-level database interface for the
// sweep data server.
package db

import (
	"bytes"
	"database/sql"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/sweepbench/sweep/sweepfmt"
	"golang.org/x/net/context"
)

// DB is a high-level interface to a database for the sweep data
// server. It's safe for concurrent use by multiple goroutines.
type DB struct {
	sql *sql.DB // underlying database connection
	// prepared statements
	insertRun   *sql.Stmt
	insertPoint *sql.Stmt
}

// OpenSQL creates a DB backed by a SQL database. The parameters are
// the same as the parameters for sql.Open. Only mysql and sqlite3 are
// explicitly supported; other database engines will receive MySQL
// query syntax which may or may not be compatible.
func OpenSQL(driverName, dataSourceName string) (*DB, error) {
	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, err
	}
	if hook := openHooks[driverName]; hook != nil {
		if err := hook(db); err != nil {
			return nil, err
		}
	}
	d := &DB{sql: db}
	if err := d.createTables(driverName); err != nil {
		return nil, err
	}
	if err := d.prepareStatements(); err != nil {
		return nil, err
	}
	return d, nil
}

var openHooks = make(map[string]func(*sql.DB) error)

// RegisterOpenHook registers a hook to be called after opening a connection to driverName.
// This is used by the sqlite3 package to register a ConnectHook.
// It must be called from an init function.
func RegisterOpenHook(driverName string, hook func(*sql.DB) error) {
	openHooks[driverName] = hook
}

// createTmpl is the template used to prepare the CREATE statements
// for the database. It is evaluated with . as a map containing one
// entry whose key is the driver name.
var createTmpl = template.Must(template.New("create").Parse(`
CREATE TABLE IF NOT EXISTS Runs (
	RunID VARCHAR(20) PRIMARY KEY,
	Day VARCHAR(8),
	Seq BIGINT UNSIGNED{{if not .sqlite3}},
	Index (Day, Seq){{end}}
);
{{if .sqlite3}}
CREATE INDEX IF NOT EXISTS RunsDaySeq ON Runs(Day, Seq);
{{end}}
CREATE TABLE IF NOT EXISTS Points (
	RunID VARCHAR(20),
	PointID BIGINT UNSIGNED,
	Size BIGINT,
	Elapsed DOUBLE,
	Rate DOUBLE,
	PRIMARY KEY (RunID, PointID),
	FOREIGN KEY (RunID) REFERENCES Runs(RunID) ON UPDATE CASCADE ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS RunLabels (
	RunID VARCHAR(20),
	PointID BIGINT UNSIGNED,
	Name VARCHAR(255),
	Value VARCHAR(8192),
{{if not .sqlite3}}
	Index (Name(100), Value(100)),
{{end}}
       FOREIGN KEY (RunID, PointID) REFERENCES Points(RunID, PointID) ON UPDATE CASCADE ON DELETE CASCADE
);
{{if .sqlite3}}
CREATE INDEX IF NOT EXISTS RunLabelsNameValue ON RunLabels(Name, Value);
{{end}}
`))

// createTables creates any missing tables on the connection in
// db.sql. driverName is the same driver name passed to sql.Open and
// is used to select the correct syntax.
func (db *DB) createTables(driverName string) error {
	var buf bytes.Buffer
	if err := createTmpl.Execute(&buf, map[string]bool{driverName: true}); err != nil {
		return err
	}
	for _, q := range strings.Split(buf.String(), ";") {
		if strings.TrimSpace(q) == "" {
			continue
		}
		if _, err := db.sql.Exec(q); err != nil {
			return fmt.Errorf("create table: %v", err)
		}
	}
	return nil
}

// prepareStatements calls db.sql.Prepare on reusable SQL statements.
func (db *DB) prepareStatements() error {
	var err error
	db.insertRun, err = db.sql.Prepare("INSERT INTO Runs(RunID, Day, Seq) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	db.insertPoint, err = db.sql.Prepare("INSERT INTO Points(RunID, PointID, Size, Elapsed, Rate) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	return nil
}

// now is the clock used for run IDs. It is a variable so tests can
// substitute a fixed time.
var now = time.Now

// A Run is an open transaction for writing the results of a single
// upload. All results written to the Run share its run ID. The caller
// must finish the Run with Commit or Abort; until Commit, none of its
// results are visible to queries.
type Run struct {
	// ID is the value of the "runid" label that should be
	// associated with every result in this run.
	ID string

	// pointid is the index of the next point to insert.
	pointid int64
	// db is the underlying database that this run is going to.
	db *DB
	// tx is the transaction the run's rows are written in.
	tx *sql.Tx
}

// NewRun reserves a fresh run ID of the form "YYYYMMDD.n", where n
// counts up from 1 within each UTC day, and returns a Run for storing
// results under that ID.
//
// The ID row is written inside the run's transaction, so two
// concurrent uploads can race for the same ID and the later commit
// will fail. The data server performs uploads one at a time.
func (db *DB) NewRun(ctx context.Context) (_ *Run, err error) {
	day := now().UTC().Format("20060102")

	tx, err := db.sql.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var last sql.NullInt64
	if err := tx.QueryRow("SELECT MAX(Seq) FROM Runs WHERE Day = ?", day).Scan(&last); err != nil {
		return nil, err
	}
	seq := last.Int64 + 1
	id := fmt.Sprintf("%s.%d", day, seq)
	if _, err := tx.Stmt(db.insertRun).Exec(id, day, seq); err != nil {
		return nil, err
	}
	return &Run{ID: id, db: db, tx: tx}, nil
}

// InsertResult inserts a single measurement in an open run.
func (r *Run) InsertResult(res *sweepfmt.Result) error {
	if _, err := r.tx.Stmt(r.db.insertPoint).Exec(r.ID, r.pointid, res.Size, res.Elapsed, res.Rate); err != nil {
		return err
	}
	var args []interface{}
	for _, label := range res.Labels {
		args = append(args, r.ID, r.pointid, label.Key, string(label.Value))
	}
	if len(args) > 0 {
		query := "INSERT INTO RunLabels VALUES " + strings.Repeat("(?, ?, ?, ?), ", len(args)/4)
		query = strings.TrimSuffix(query, ", ")
		if _, err := r.tx.Exec(query, args...); err != nil {
			return err
		}
	}
	r.pointid++
	return nil
}

// Commit finishes the run, making its results visible to queries.
func (r *Run) Commit() error {
	return r.tx.Commit()
}

// Abort discards the run and any results written to it. The reserved
// run ID may be handed out again to a later run.
func (r *Run) Abort() error {
	return r.tx.Rollback()
}

// splitQueryWords splits q into words using shell syntax (whitespace
// can be escaped with double quotes or with a backslash).
func splitQueryWords(q string) []string {
	var words []string
	word := make([]byte, len(q))
	w := 0
	quoting := false
	for r := 0; r < len(q); r++ {
		switch c := q[r]; {
		case c == '"' && quoting:
			quoting = false
		case quoting:
			if c == '\\' {
				r++
			}
			if r < len(q) {
				word[w] = q[r]
				w++
			}
		case c == '"':
			quoting = true
		case c == ' ', c == '\t':
			if w > 0 {
				words = append(words, string(word[:w]))
			}
			w = 0
		case c == '\\':
			r++
			fallthrough
		default:
			if r < len(q) {
				word[w] = q[r]
				w++
			}
		}
	}
	if w > 0 {
		words = append(words, string(word[:w]))
	}
	return words
}

// Query searches for results matching the given query string.
//
// The query string is first parsed into quoted words (as in the shell)
// and then each word must be formatted as key:value, which requires
// the label "key" to be exactly "value" on every returned result. An
// empty query matches every result in the database.
func (db *DB) Query(q string) *Query {
	words := splitQueryWords(q)

	var args []interface{}
	query := "SELECT p.RunID, p.PointID, p.Size, p.Elapsed, p.Rate, l.Name, l.Value FROM "
	for i, word := range words {
		sepa := strings.SplitN(word, ":", 2)
		if len(sepa) != 2 {
			return &Query{err: fmt.Errorf("query word %q is missing a colon", word)}
		}
		if i > 0 {
			query += " INNER JOIN "
		}
		query += fmt.Sprintf("(SELECT RunID, PointID FROM RunLabels WHERE Name = ? AND Value = ?) t%d", i)
		if i > 0 {
			query += " USING (RunID, PointID)"
		}
		args = append(args, sepa[0], sepa[1])
	}
	if len(words) == 0 {
		query += "Points p"
	} else {
		query += " INNER JOIN Points p USING (RunID, PointID)"
	}
	query += " LEFT JOIN RunLabels l ON l.RunID = p.RunID AND l.PointID = p.PointID ORDER BY p.RunID, p.PointID, l.Name"

	rows, err := db.sql.Query(query, args...)
	if err != nil {
		return &Query{err: err}
	}
	return &Query{rows: rows}
}

// A Query is a stream of results from a database query. Use Next to
// advance the stream and Result to read the current result.
type Query struct {
	rows *sql.Rows
	// pending is the first scanned row of the next result, kept
	// when the label join runs ahead of the current result.
	pending *pointRow
	result  *sweepfmt.Result
	err     error
}

// A pointRow is one row of the point and label join that drives a
// Query. A point with no labels appears as a single row with NULL
// label columns.
type pointRow struct {
	runID   string
	pointID int64
	size    int64
	elapsed float64
	rate    float64
	name    sql.NullString
	value   sql.NullString
}

func (q *Query) scan() (*pointRow, error) {
	var row pointRow
	if err := q.rows.Scan(&row.runID, &row.pointID, &row.size, &row.elapsed, &row.rate, &row.name, &row.value); err != nil {
		return nil, err
	}
	return &row, nil
}

// addLabel copies the label columns of row, if present, into res. The
// database does not record where a label came from, so reconstructed
// labels are all file labels and print in query output.
func (row *pointRow) addLabel(res *sweepfmt.Result) {
	if row.name.Valid {
		res.Labels = append(res.Labels, sweepfmt.Label{Key: row.name.String, Value: []byte(row.value.String), File: true})
	}
}

// Next prepares the next result for reading with the Result
// method. It returns false when there are no more results, either
// because the end of the stream was reached or because of an error.
func (q *Query) Next() bool {
	if q.err != nil {
		return false
	}
	cur := q.pending
	q.pending = nil
	if cur == nil {
		if !q.rows.Next() {
			q.err = q.rows.Err()
			return false
		}
		if cur, q.err = q.scan(); q.err != nil {
			return false
		}
	}
	res := &sweepfmt.Result{Size: int(cur.size), Elapsed: cur.elapsed, Rate: cur.rate}
	cur.addLabel(res)
	for q.rows.Next() {
		var row *pointRow
		if row, q.err = q.scan(); q.err != nil {
			return false
		}
		if row.runID != cur.runID || row.pointID != cur.pointID {
			q.pending = row
			break
		}
		row.addLabel(res)
	}
	if q.pending == nil {
		if err := q.rows.Err(); err != nil {
			q.err = err
			return false
		}
	}
	q.result = res
	return true
}

// Result returns the result prepared by the last call to Next. Its
// labels are in sorted order rather than the order they were stored
// in.
func (q *Query) Result() *sweepfmt.Result {
	return q.result
}

// Err returns the error state of the query.
func (q *Query) Err() error {
	return q.err
}

// Close frees resources associated with the query. The query may not
// be used after Close has been called.
func (q *Query) Close() error {
	if q.rows != nil {
		return q.rows.Close()
	}
	return q.err
}

// CountRuns returns the number of runs in the database.
func (db *DB) CountRuns() (int, error) {
	var count int
	err := db.sql.QueryRow("SELECT COUNT(*) FROM Runs").Scan(&count)
	return count, err
}

// A RunInfo summarizes one stored run for listings.
type RunInfo struct {
	// RunID is the ID reserved by NewRun.
	RunID string
	// Points is the number of measurements stored under the run.
	Points int
}

// ListRuns returns the runs in the database, newest first. If limit is
// positive, at most limit runs are returned.
func (db *DB) ListRuns(limit int) ([]RunInfo, error) {
	query := "SELECT r.RunID, COUNT(p.PointID) FROM Runs r LEFT JOIN Points p USING (RunID) GROUP BY r.RunID, r.Day, r.Seq ORDER BY r.Day DESC, r.Seq DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := db.sql.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var runs []RunInfo
	for rows.Next() {
		var info RunInfo
		if err := rows.Scan(&info.RunID, &info.Points); err != nil {
			return nil, err
		}
		runs = append(runs, info)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

// Close closes the database connections, releasing any open resources.
func (db *DB) Close() error {
	if err := db.insertRun.Close(); err != nil {
		return err
	}
	if err := db.insertPoint.Close(); err != nil {
		return err
	}
	return db.sql.Close()
}
