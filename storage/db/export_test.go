// Copyright 2025 The Sweep Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package db

import (
	"database/sql"
	"time"
)

var SplitQueryWords = splitQueryWords

func DBSQL(db *DB) *sql.DB {
	return db.sql
}

// SetNow substitutes a fixed clock for run ID generation. Passing the
// zero time restores the real clock.
func SetNow(t time.Time) {
	if t.IsZero() {
		now = time.Now
		return
	}
	now = func() time.Time { return t }
}
