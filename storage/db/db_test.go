// Copyright 2025 The Sweep Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build cgo

package db_test

import (
	"bytes"
	"context"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/sweepbench/sweep/internal/diff"
	. "github.com/sweepbench/sweep/storage/db"
	"github.com/sweepbench/sweep/storage/db/dbtest"
	"github.com/sweepbench/sweep/sweepfmt"
)

// Most of the db package is tested via the end-to-end-tests in storage/app.

func TestSplitQueryWords(t *testing.T) {
	for _, test := range []struct {
		q    string
		want []string
	}{
		{"hello world", []string{"hello", "world"}},
		{"hello\\ world", []string{"hello world"}},
		{`"key:value two" and\ more`, []string{"key:value two", "and more"}},
		{`one" two"\ three four`, []string{"one two three", "four"}},
		{`"4'7\""`, []string{`4'7"`}},
	} {
		have := SplitQueryWords(test.q)
		if !reflect.DeepEqual(have, test.want) {
			t.Errorf("splitQueryWords(%q) = %+v, want %+v", test.q, have, test.want)
		}
	}
}

// TestRunIDs verifies that NewRun generates the correct sequence of run IDs.
func TestRunIDs(t *testing.T) {
	ctx := context.Background()

	db, cleanup := dbtest.NewDB(t)
	defer cleanup()

	defer SetNow(time.Time{})

	tests := []struct {
		sec int64
		id  string
	}{
		{0, "19700101.1"},
		{0, "19700101.2"},
		{86400, "19700102.1"},
		{86400, "19700102.2"},
		{86400, "19700102.3"},
		{86400, "19700102.4"},
		{86400, "19700102.5"},
		{86400, "19700102.6"},
		{86400, "19700102.7"},
		{86400, "19700102.8"},
		{86400, "19700102.9"},
		{86400, "19700102.10"},
		{86400, "19700102.11"},
	}
	for _, test := range tests {
		SetNow(time.Unix(test.sec, 0))
		u, err := db.NewRun(ctx)
		if err != nil {
			t.Fatalf("NewRun: %v", err)
		}
		if err := u.Commit(); err != nil {
			t.Fatalf("Commit: %v", err)
		}
		if u.ID != test.id {
			t.Fatalf("u.ID = %q, want %q", u.ID, test.id)
		}
	}
}

// checkQueryResults performs a query on db and verifies that the
// results as printed by a sweepfmt.Writer are equal to results.
func checkQueryResults(t *testing.T, db *DB, query, results string) {
	q := db.Query(query)
	defer q.Close()

	var buf bytes.Buffer
	w := sweepfmt.NewWriter(&buf)

	for q.Next() {
		if err := w.Write(q.Result()); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := q.Err(); err != nil {
		t.Fatalf("Err: %v", err)
	}
	if d := diff.Diff(buf.String(), results); d != "" {
		t.Errorf("wrong results: (- have/+ want)\n%s", d)
	}
}

// TestNewRun verifies that NewRun and InsertResult wrote the correct
// rows to the database.
func TestNewRun(t *testing.T) {
	SetNow(time.Unix(0, 0))
	defer SetNow(time.Time{})
	db, cleanup := dbtest.NewDB(t)
	defer cleanup()

	u, err := db.NewRun(context.Background())
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}

	br := sweepfmt.NewReader(strings.NewReader(`
key: value
size=1 elapsed: 0.5 rate: 2
`), "test.log")
	if !br.Scan() {
		t.Fatalf("unable to read test string: %v", br.Err())
	}
	res, ok := br.Result().(*sweepfmt.Result)
	if !ok {
		t.Fatalf("Result() = %v, want a *sweepfmt.Result", br.Result())
	}

	if err := u.InsertResult(res); err != nil {
		t.Fatalf("InsertResult: %v", err)
	}

	if err := u.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	rows, err := DBSQL(db).Query("SELECT RunID, PointID, Name, Value FROM RunLabels")
	if err != nil {
		t.Fatalf("sql.Query: %v", err)
	}
	defer rows.Close()

	want := map[string]string{
		"key": "value",
	}

	i := 0

	for rows.Next() {
		var runid string
		var pointid int64
		var name, value string

		if err := rows.Scan(&runid, &pointid, &name, &value); err != nil {
			t.Fatalf("rows.Scan: %v", err)
		}
		if runid != "19700101.1" {
			t.Errorf("runid = %q, want %q", runid, "19700101.1")
		}
		if pointid != 0 {
			t.Errorf("pointid = %d, want 0", pointid)
		}
		if want[name] != value {
			t.Errorf("%s = %q, want %q", name, value, want[name])
		}
		i++
	}
	if i != len(want) {
		t.Errorf("have %d labels, want %d", i, len(want))
	}

	if err := rows.Err(); err != nil {
		t.Errorf("rows.Err: %v", err)
	}

	var size int64
	var elapsed, rate float64
	if err := DBSQL(db).QueryRow("SELECT Size, Elapsed, Rate FROM Points").Scan(&size, &elapsed, &rate); err != nil {
		t.Fatalf("scan Points: %v", err)
	}
	if size != 1 || elapsed != 0.5 || rate != 2 {
		t.Errorf("point = (%d, %v, %v), want (1, 0.5, 2)", size, elapsed, rate)
	}
}

// TestQueryResults verifies that results round-trip through the
// database, including per-point labels.
func TestQueryResults(t *testing.T) {
	SetNow(time.Unix(0, 0))
	defer SetNow(time.Time{})
	db, cleanup := dbtest.NewDB(t)
	defer cleanup()

	u, err := db.NewRun(context.Background())
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}

	br := sweepfmt.NewReader(strings.NewReader(`
commit: abc
size=1 elapsed: 1 rate: 1
commit: def
size=2 elapsed: 1 rate: 2
`), "test.log")
	for br.Scan() {
		res, ok := br.Result().(*sweepfmt.Result)
		if !ok {
			t.Fatalf("parse error: %v", br.Result())
		}
		res.SetLabel("runid", u.ID)
		if err := u.InsertResult(res); err != nil {
			t.Fatalf("InsertResult: %v", err)
		}
	}
	if err := br.Err(); err != nil {
		t.Fatalf("Err: %v", err)
	}

	if err := u.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	checkQueryResults(t, db, "runid:"+u.ID,
		`commit: abc
runid: 19700101.1

size=1 elapsed: 1 rate: 1

commit: def

size=2 elapsed: 1 rate: 2
`)

	// A label carried by only one point matches just that point.
	checkQueryResults(t, db, "commit:def",
		`commit: def
runid: 19700101.1

size=2 elapsed: 1 rate: 2
`)
}

func TestQuery(t *testing.T) {
	db, cleanup := dbtest.NewDB(t)
	defer cleanup()

	u, err := db.NewRun(context.Background())
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}

	for i := 0; i < 1024; i++ {
		r := &sweepfmt.Result{Size: i, Elapsed: 1, Rate: float64(i)}
		for j := uint(0); j < 10; j++ {
			r.SetLabel(fmt.Sprintf("label%d", j), fmt.Sprintf("%d", i/(1<<j)))
		}
		r.SetLabel("name", "Name")
		if err := u.InsertResult(r); err != nil {
			t.Fatalf("InsertResult: %v", err)
		}
	}
	if err := u.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	tests := []struct {
		q    string
		want []int // nil means we want an error
	}{
		{"label0:0", []int{0}},
		{"label1:0", []int{0, 1}},
		{"label0:5 name:Name", []int{5}},
		{"label0:0 label0:5", []int{}},
		{"bogus query", nil},
	}
	for _, test := range tests {
		t.Run("query="+test.q, func(t *testing.T) {
			q := db.Query(test.q)
			if test.want == nil {
				if q.Next() {
					t.Fatal("Next() = true, want false")
				}
				if err := q.Err(); err == nil {
					t.Fatal("Err() = nil, want error")
				}
				return
			}
			defer func() {
				if err := q.Close(); err != nil {
					t.Errorf("Close: %v", err)
				}
			}()
			for i, num := range test.want {
				if !q.Next() {
					t.Fatalf("#%d: Next() = false", i)
				}
				r := q.Result()
				if r.GetLabel("label0") != fmt.Sprint(num) {
					t.Errorf("result[%d].label0 = %q, want %d", i, r.GetLabel("label0"), num)
				}
				if r.Size != num {
					t.Errorf("result[%d].Size = %d, want %d", i, r.Size, num)
				}
			}
			if q.Next() {
				t.Errorf("Next() = true, want false after %d results", len(test.want))
			}
			if err := q.Err(); err != nil {
				t.Errorf("Err() = %v, want nil", err)
			}
		})
	}
}

func TestListRuns(t *testing.T) {
	ctx := context.Background()

	db, cleanup := dbtest.NewDB(t)
	defer cleanup()

	defer SetNow(time.Time{})

	// Two runs on the first day, then one on the second day holding
	// a single point.
	for i, sec := range []int64{0, 0, 86400} {
		SetNow(time.Unix(sec, 0))
		u, err := db.NewRun(ctx)
		if err != nil {
			t.Fatalf("NewRun: %v", err)
		}
		if i == 2 {
			r := &sweepfmt.Result{Size: 1, Elapsed: 1, Rate: 1}
			if err := u.InsertResult(r); err != nil {
				t.Fatalf("InsertResult: %v", err)
			}
		}
		if err := u.Commit(); err != nil {
			t.Fatalf("Commit: %v", err)
		}
	}

	runs, err := db.ListRuns(0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	want := []RunInfo{
		{"19700102.1", 1},
		{"19700101.2", 0},
		{"19700101.1", 0},
	}
	if !reflect.DeepEqual(runs, want) {
		t.Errorf("ListRuns = %+v, want %+v", runs, want)
	}

	runs, err = db.ListRuns(1)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != "19700102.1" {
		t.Errorf("ListRuns(1) = %+v, want just run 19700102.1", runs)
	}

	count, err := db.CountRuns()
	if err != nil {
		t.Fatalf("CountRuns: %v", err)
	}
	if count != 3 {
		t.Errorf("CountRuns = %d, want 3", count)
	}
}

// TestAbort verifies that Abort discards the run and its results and
// releases the reserved ID.
func TestAbort(t *testing.T) {
	SetNow(time.Unix(0, 0))
	defer SetNow(time.Time{})
	db, cleanup := dbtest.NewDB(t)
	defer cleanup()

	ctx := context.Background()

	u, err := db.NewRun(ctx)
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}
	if u.ID != "19700101.1" {
		t.Fatalf("u.ID = %q, want %q", u.ID, "19700101.1")
	}
	r := &sweepfmt.Result{Size: 1, Elapsed: 1, Rate: 1}
	if err := u.InsertResult(r); err != nil {
		t.Fatalf("InsertResult: %v", err)
	}
	if err := u.Abort(); err != nil {
		t.Fatalf("Abort: %v", err)
	}

	count, err := db.CountRuns()
	if err != nil {
		t.Fatalf("CountRuns: %v", err)
	}
	if count != 0 {
		t.Errorf("CountRuns = %d, want 0 after abort", count)
	}

	// The aborted ID is handed out again.
	u, err = db.NewRun(ctx)
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}
	defer u.Abort()
	if u.ID != "19700101.1" {
		t.Errorf("u.ID = %q, want %q", u.ID, "19700101.1")
	}
}
