// Copyright 2025 The Sweep Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package app

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/google/safehtml/template"
	"github.com/sweepbench/sweep/storage/db"
	"github.com/sweepbench/sweep/sweepfmt"
	"golang.org/x/net/context"
)

// upload is the handler for the /upload endpoint. It serves a form on
// GET requests and processes files in a multipart/x-form-data POST
// request.
func (a *App) upload(w http.ResponseWriter, r *http.Request) {
	ctx := requestContext(r)

	user, err := a.auth(w, r)
	switch {
	case err == ErrResponseWritten:
		return
	case err != nil:
		errorf(ctx, "auth: %v", err)
		http.Error(w, err.Error(), 500)
		return
	}

	if r.Method == http.MethodGet {
		if err := uploadTmpl.Execute(w, nil); err != nil {
			errorf(ctx, "%v", err)
		}
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "/upload must be called as a POST request", http.StatusMethodNotAllowed)
		return
	}

	// We use r.MultipartReader instead of r.ParseForm to avoid
	// storing uploaded data in memory.
	mr, err := r.MultipartReader()
	if err != nil {
		errorf(ctx, "%v", err)
		http.Error(w, err.Error(), 500)
		return
	}

	result, err := a.processUpload(ctx, user, mr)
	if err != nil {
		errorf(ctx, "%v", err)
		http.Error(w, err.Error(), 500)
		return
	}
	infof(ctx, "uploaded %d file(s) as run %s", len(result.FileIDs), result.RunID)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		errorf(ctx, "%v", err)
		http.Error(w, err.Error(), 500)
		return
	}
}

// uploadTmpl is the form served on GET /upload.
var uploadTmpl = template.Must(template.New("upload").ParseFromTrustedTemplate(template.MakeTrustedTemplate(`<!DOCTYPE html>
<html>
  <head>
    <title>Upload sweep logs</title>
  </head>
  <body>
    <h1>Upload sweep logs</h1>
    <form action="/upload" method="post" enctype="multipart/form-data">
      <input type="file" name="file" multiple>
      <input type="submit" value="Upload">
    </form>
  </body>
</html>
`)))

// uploadStatus is the response to an /upload POST served as JSON.
type uploadStatus struct {
	// RunID is the run ID assigned to the upload.
	RunID string `json:"runid"`
	// FileIDs is the list of file IDs assigned to the files in the upload.
	FileIDs []string `json:"fileids"`
	// ViewURL is the URL for viewing the uploaded run, if the
	// server has one configured.
	ViewURL string `json:"viewurl,omitempty"`
}

// processUpload takes one or more files from a multipart.Reader,
// writes them to the filesystem, and indexes their measurements in
// the database. The whole upload shares one run ID and is indexed
// atomically; if any file fails, the run is aborted.
func (a *App) processUpload(ctx context.Context, user string, mr *multipart.Reader) (_ *uploadStatus, err error) {
	var run *db.Run
	var status uploadStatus

	defer func() {
		if err != nil && run != nil {
			run.Abort()
		}
	}()

	for i := 0; ; i++ {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		name := p.FormName()
		if name != "file" {
			return nil, fmt.Errorf("unexpected field %q", name)
		}

		if run == nil {
			run, err = a.DB.NewRun(ctx)
			if err != nil {
				return nil, err
			}
			status.RunID = run.ID
		}

		meta := fileMetadata(user, run.ID, i)

		if err := a.indexFile(ctx, run, p, meta); err != nil {
			return nil, err
		}

		status.FileIDs = append(status.FileIDs, meta["fileid"])
	}

	if run == nil {
		return nil, fmt.Errorf("no files in the upload")
	}
	if err := run.Commit(); err != nil {
		return nil, err
	}
	if a.ViewURLBase != "" {
		status.ViewURL = a.ViewURLBase + url.QueryEscape(status.RunID)
	}
	return &status, nil
}

// indexFile stores the contents of p in the filesystem and indexes
// its measurements in run. The metadata in meta is attached to every
// measurement and written as label lines at the top of the stored
// file, so the file re-parses to the same results.
func (a *App) indexFile(ctx context.Context, run *db.Run, p io.Reader, meta map[string]string) (err error) {
	fw, err := a.FS.NewWriter(ctx, fmt.Sprintf("uploads/%s.log", meta["fileid"]), meta)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			fw.CloseWithError(err)
		} else {
			err = fw.Close()
		}
	}()

	var keys []string
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var initLabels []string
	for _, k := range keys {
		if _, err := fmt.Fprintf(fw, "%s: %s\n", k, meta[k]); err != nil {
			return err
		}
		initLabels = append(initLabels, k, meta[k])
	}

	// The file is invalid if it contains no measurements; it is
	// rejected and the filesystem upload aborted.
	n := 0
	br := new(sweepfmt.Reader)
	br.Reset(io.TeeReader(p, fw), meta["fileid"], initLabels...)
	for br.Scan() {
		switch rec := br.Result().(type) {
		case *sweepfmt.Result:
			if err := run.InsertResult(rec); err != nil {
				return err
			}
			n++
		case *sweepfmt.SyntaxError:
			// Sweep logs are allowed to contain noise.
			continue
		}
	}
	if err := br.Err(); err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("upload file %s contains no sweep measurements", meta["fileid"])
	}
	return nil
}

// fileMetadata returns the metadata fields associated with an
// uploaded file.
func fileMetadata(user, runid string, filenum int) map[string]string {
	m := map[string]string{
		"runid":       runid,
		"fileid":      fmt.Sprintf("%s/%d", runid, filenum),
		"upload-time": time.Now().UTC().Format(time.RFC3339),
	}
	if user != "" {
		m["by"] = user
	}
	return m
}
