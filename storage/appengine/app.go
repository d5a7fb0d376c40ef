// Copyright 2025 The Sweep Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The sweep storage server on Google App Engine. Uploaded files go to
// a Cloud Storage bucket and measurements are indexed in a Cloud SQL
// database.
//
// The app is configured through environment variables in app.yaml:
// CLOUDSQL_CONNECTION_NAME, CLOUDSQL_USER, and CLOUDSQL_DATABASE name
// the Cloud SQL instance (CLOUDSQL_PASSWORD may also be set), and
// GCS_BUCKET names the bucket for uploaded files.
package main

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/sweepbench/sweep/storage/app"
	"github.com/sweepbench/sweep/storage/db"
	"github.com/sweepbench/sweep/storage/fs/gcs"
	"google.golang.org/appengine"
	aelog "google.golang.org/appengine/log"

	_ "github.com/go-sql-driver/mysql"
)

// connectDB returns a DB connected to the Cloud SQL instance named by
// the CLOUDSQL_* environment variables.
func connectDB() (*db.DB, error) {
	var (
		connectionName = mustGetenv("CLOUDSQL_CONNECTION_NAME")
		user           = mustGetenv("CLOUDSQL_USER")
		password       = os.Getenv("CLOUDSQL_PASSWORD") // NOTE: password may be empty
		dbName         = mustGetenv("CLOUDSQL_DATABASE")
	)

	return db.OpenSQL("mysql", fmt.Sprintf("%s:%s@cloudsql(%s)/%s", user, password, connectionName, dbName))
}

func mustGetenv(k string) string {
	v := os.Getenv(k)
	if v == "" {
		log.Panicf("%s environment variable not set.", k)
	}
	return v
}

// appHandler serves every request. GCS clients need to be constructed
// with an App Engine context, so the App is assembled when a request
// comes in rather than once at startup.
func appHandler(w http.ResponseWriter, r *http.Request) {
	ctx := appengine.NewContext(r)
	db, err := connectDB()
	if err != nil {
		aelog.Errorf(ctx, "connectDB: %v", err)
		http.Error(w, err.Error(), 500)
		return
	}
	defer db.Close()

	fs, err := gcs.NewFS(ctx, mustGetenv("GCS_BUCKET"))
	if err != nil {
		aelog.Errorf(ctx, "gcs.NewFS: %v", err)
		http.Error(w, err.Error(), 500)
		return
	}
	mux := http.NewServeMux()
	app := &app.App{DB: db, FS: fs, ViewURLBase: os.Getenv("VIEW_URL_BASE")}
	app.RegisterOnMux(mux)
	mux.ServeHTTP(w, r)
}

func main() {
	http.HandleFunc("/", appHandler)
	appengine.Main()
}
