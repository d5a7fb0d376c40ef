// Copyright 2025 The Sweep Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build cgo

// Sweepdata runs an HTTP server for sweep benchmark storage.
//
// Usage:
//
//	sweepdata [-addr address] [-view_url_base url] [-driver driver] [-dsn dsn] [-dir directory]
//
// By default the server stores everything in memory and forgets it on
// exit. Set -dsn to an sqlite database file and -dir to a directory to
// persist across restarts, or -driver mysql with a matching -dsn to
// share a database between servers.
package main

import (
	"flag"
	"log"
	"net/http"

	"github.com/sweepbench/sweep/storage/app"
	"github.com/sweepbench/sweep/storage/db"
	"github.com/sweepbench/sweep/storage/fs"
	"github.com/sweepbench/sweep/storage/fs/local"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/sweepbench/sweep/storage/db/sqlite3"
)

var (
	addr        = flag.String("addr", ":8080", "serve HTTP on `address`")
	viewURLBase = flag.String("view_url_base", "", "/upload response with `URL` for viewing")
	driver      = flag.String("driver", "sqlite3", "use database `driver`")
	dsn         = flag.String("dsn", ":memory:", "connect to database using `dsn`")
	dir         = flag.String("dir", "", "store uploaded files in `directory` (default: in memory)")
)

func main() {
	flag.Parse()

	db, err := db.OpenSQL(*driver, *dsn)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}

	var filesys fs.FS = fs.NewMemFS()
	if *dir != "" {
		filesys = local.NewFS(*dir)
	}

	app := &app.App{
		DB:          db,
		FS:          filesys,
		ViewURLBase: *viewURLBase,
	}
	app.RegisterOnMux(http.DefaultServeMux)

	log.Printf("Listening on %s", *addr)

	log.Fatal(http.ListenAndServe(*addr, nil))
}
