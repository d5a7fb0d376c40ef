// Copyright 2025 The Sweep Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package app implements the sweep data storage server. Combine an
// App with a database and filesystem to get an HTTP server.
package app

import (
	"errors"
	"log"
	"net/http"

	"github.com/sweepbench/sweep/storage/db"
	"github.com/sweepbench/sweep/storage/fs"
	"golang.org/x/net/context"
)

// App manages the storage server logic. Construct an App instance
// using a literal with DB and FS objects and call RegisterOnMux to
// connect it with an HTTP server.
type App struct {
	DB *db.DB
	FS fs.FS

	// ViewURLBase is an optional URL prefix for viewing an
	// upload. If it is non-empty, the /upload response contains a
	// "viewurl" field formed by appending the run ID to it.
	ViewURLBase string

	// Auth obtains the username for the request.
	// If necessary, it can write its own response (e.g. a
	// redirect) and return ErrResponseWritten. If Auth is nil, all
	// requests are anonymous.
	Auth func(http.ResponseWriter, *http.Request) (string, error)
}

// ErrResponseWritten can be returned by App.Auth to abort the normal /upload handling.
var ErrResponseWritten = errors.New("response written")

// RegisterOnMux registers the app's URLs on mux.
func (a *App) RegisterOnMux(mux *http.ServeMux) {
	mux.HandleFunc("/", a.index)
	mux.HandleFunc("/upload", a.upload)
	mux.HandleFunc("/search", a.search)
}

// auth runs the app's Auth function, if any.
func (a *App) auth(w http.ResponseWriter, r *http.Request) (string, error) {
	if a.Auth == nil {
		return "", nil
	}
	return a.Auth(w, r)
}

// requestContext returns the Context for an incoming request.
func requestContext(r *http.Request) context.Context {
	return r.Context()
}

// errorf logs an error to the server log.
func errorf(_ context.Context, format string, args ...interface{}) {
	log.Printf("ERROR: "+format, args...)
}

// infof logs an informational message to the server log.
func infof(_ context.Context, format string, args ...interface{}) {
	log.Printf(format, args...)
}
