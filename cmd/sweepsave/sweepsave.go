// Copyright 2025 The Sweep Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Sweepsave uploads sweep benchmark logs to a storage server.
//
// Usage:
//
//	sweepsave [-v] [-header file] [-server url] file...
//
// Each input file should contain the output of one or more sweep
// benchmark runs. All the files are saved as a single run, and
// sweepsave prints a URL where they can be viewed.
//
// If the server requires authentication, supply a bearer token in
// $SWEEP_TOKEN or in a file named by -token-file.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sweepbench/sweep/storage"
	"golang.org/x/oauth2"
)

func main() {
	log.SetPrefix("sweepsave: ")
	log.SetFlags(0)
	if err := run(os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(w, wErr io.Writer, args []string) error {
	flags := flag.NewFlagSet("sweepsave", flag.ExitOnError)
	flags.Usage = func() {
		fmt.Fprintf(flags.Output(), `Usage: sweepsave [flags] file...

sweepsave uploads sweep benchmark logs to a storage server and prints
a URL where they can be viewed. All the files are saved as a single
run.

`)
		flags.PrintDefaults()
	}
	server := flags.String("server", "http://localhost:8080", "upload sweeps to server at `url`")
	verbose := flags.Bool("v", false, "print verbose log messages")
	header := flags.String("header", "", "insert `file` at the beginning of each uploaded file")
	tokenFile := flags.String("token-file", "", "read the upload bearer token from `file`")
	flags.Parse(args)

	files := flags.Args()
	if len(files) == 0 {
		return fmt.Errorf("no files to upload")
	}

	var headerData []byte
	if *header != "" {
		var err error
		headerData, err = os.ReadFile(*header)
		if err != nil {
			return err
		}
		headerData = append(bytes.TrimRight(headerData, "\n"), '\n', '\n')
	}

	ctx := context.Background()
	hc := http.DefaultClient
	ts, err := tokenSource(*tokenFile)
	if err != nil {
		return err
	}
	if ts != nil {
		hc = oauth2.NewClient(ctx, ts)
	}
	client := &storage.Client{BaseURL: *server, HTTPClient: hc}

	start := time.Now()

	u := client.NewUpload(ctx)
	for _, name := range files {
		if err := writeOneFile(u, name, headerData); err != nil {
			u.Abort()
			return err
		}
	}
	status, err := u.Commit()
	if err != nil {
		return err
	}

	if *verbose {
		s := ""
		if len(files) != 1 {
			s = "s"
		}
		fmt.Fprintf(wErr, "%d file%s uploaded in %.2f seconds.\n", len(files), s, time.Since(start).Seconds())
	}
	if status.ViewURL != "" {
		fmt.Fprintf(w, "%s\n", status.ViewURL)
	}
	return nil
}

// writeOneFile reads name and writes it to the upload u, prefixed
// with header.
func writeOneFile(u *storage.Upload, name string, header []byte) error {
	w, err := u.CreateFile(filepath.Base(name))
	if err != nil {
		return err
	}
	if len(header) > 0 {
		if _, err := w.Write(header); err != nil {
			return err
		}
	}
	f, err := os.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return err
	}
	return nil
}

// tokenSource returns the bearer token configured for uploads, or nil
// if there is none. $SWEEP_TOKEN takes precedence over the token file.
func tokenSource(tokenFile string) (oauth2.TokenSource, error) {
	if tok := os.Getenv("SWEEP_TOKEN"); tok != "" {
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: tok}), nil
	}
	if tokenFile != "" {
		data, err := os.ReadFile(tokenFile)
		if err != nil {
			return nil, err
		}
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: strings.TrimSpace(string(data))}), nil
	}
	return nil, nil
}
