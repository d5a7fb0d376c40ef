// Copyright 2025 The Sweep Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package storage contains a client for the sweep data storage server.
package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/sweepbench/sweep/sweepfmt"
	"golang.org/x/net/context"
)

// A Client issues queries to a sweep data storage server.
type Client struct {
	// BaseURL is the base URL of the storage server.
	BaseURL string

	// HTTPClient is the HTTP client for sending requests. If nil,
	// http.DefaultClient will be used.
	HTTPClient *http.Client
}

// httpClient returns the http.Client to use for requests.
func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// Query searches for results matching the given query string. The
// query is a space-separated list of key:value terms; see the /search
// endpoint for the exact syntax.
//
// The results can be iterated over using a Query object, which the
// caller must Close when done.
func (c *Client) Query(q string) *Query {
	hc := c.httpClient()

	resp, err := hc.Get(c.BaseURL + "/search?" + url.Values{"q": []string{q}}.Encode())
	if err != nil {
		return &Query{err: err}
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return &Query{err: err}
		}
		return &Query{err: fmt.Errorf("search failed: %v\n%s", resp.Status, body)}
	}

	q2 := &Query{body: resp.Body}
	q2.r.Reset(resp.Body, "search")
	return q2
}

// A Query allows iteration over the results of a search query. Use
// Next to advance through the results, making sure to call Close when
// done:
//
//	q := client.Query("key:value")
//	defer q.Close()
//	for q.Next() {
//		res := q.Result()
//		...
//	}
//	err = q.Err() // get any error encountered during iteration
//	...
type Query struct {
	r      sweepfmt.Reader
	body   io.ReadCloser
	result *sweepfmt.Result
	err    error
}

// Next prepares the next result for reading with the Result method. It
// returns false when there are no more results, either by reaching the
// end of the input or an error.
func (q *Query) Next() bool {
	if q.err != nil {
		return false
	}
	for q.r.Scan() {
		switch rec := q.r.Result().(type) {
		case *sweepfmt.Result:
			q.result = rec
			return true
		case *sweepfmt.SyntaxError:
			// The server emits canonical sweep text, so a
			// parse error means the stream is corrupt.
			q.err = rec
			return false
		}
	}
	return false
}

// Result returns the most recent result generated by a call to Next.
// The caller must not retain the Result across calls to Next; use
// Result.Clone if needed.
func (q *Query) Result() *sweepfmt.Result {
	return q.result
}

// Err returns the first error encountered during the query.
func (q *Query) Err() error {
	if q.err != nil {
		return q.err
	}
	return q.r.Err()
}

// Close frees resources associated with the query.
func (q *Query) Close() error {
	if q.body != nil {
		err := q.body.Close()
		q.body = nil
		return err
	}
	return nil
}

// UploadStatus describes the result of an attempted upload.
type UploadStatus struct {
	// RunID is the run ID assigned to the upload.
	RunID string `json:"runid"`
	// FileIDs is the list of file IDs assigned to the files in the upload.
	FileIDs []string `json:"fileids"`
	// ViewURL is a server-supplied URL to view the results.
	ViewURL string `json:"viewurl"`
}

// NewUpload starts a new upload to the storage server. The upload must
// be populated with files through CreateFile and finished with Commit
// or Abort.
func (c *Client) NewUpload(ctx context.Context) *Upload {
	pr, pw := io.Pipe()
	mpw := multipart.NewWriter(pw)

	u := &Upload{pw: pw, mpw: mpw, errCh: make(chan error, 1)}

	req, err := http.NewRequest("POST", c.BaseURL+"/upload", pr)
	if err != nil {
		u.setupErr = err
		return u
	}
	req = req.WithContext(ctx)
	req.Header.Set("Content-Type", mpw.FormDataContentType())

	go func() {
		resp, err := c.httpClient().Do(req)
		if err != nil {
			pr.CloseWithError(err)
			u.errCh <- err
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			err := fmt.Errorf("upload failed: %v\n%s", resp.Status, body)
			// Unblock any writes still in flight.
			pr.CloseWithError(err)
			u.errCh <- err
			return
		}
		status := new(UploadStatus)
		if err := json.NewDecoder(resp.Body).Decode(status); err != nil {
			u.errCh <- fmt.Errorf("cannot parse upload response: %v", err)
			return
		}
		u.status = status
		u.errCh <- nil
	}()
	return u
}

// An Upload is an in-progress streaming upload. Data written to the
// files it creates is sent to the server as it is written.
type Upload struct {
	pw       *io.PipeWriter
	mpw      *multipart.Writer
	status   *UploadStatus
	errCh    chan error
	setupErr error
}

// CreateFile creates a new upload file with the given name and returns
// a writer for its contents. The file is not complete until the next
// call to CreateFile, Commit, or Abort.
func (u *Upload) CreateFile(name string) (io.Writer, error) {
	if u.setupErr != nil {
		return nil, u.setupErr
	}
	return u.mpw.CreateFormFile("file", name)
}

// Commit finishes the upload and indexes the uploaded files as one
// run. It returns the status reported by the server.
func (u *Upload) Commit() (*UploadStatus, error) {
	if u.setupErr != nil {
		return nil, u.setupErr
	}
	if err := u.mpw.Close(); err != nil {
		return nil, err
	}
	if err := u.pw.Close(); err != nil {
		return nil, err
	}
	if err := <-u.errCh; err != nil {
		return nil, err
	}
	return u.status, nil
}

// Abort abandons the upload and discards any files already sent.
//
// The stray "abort" field makes the server treat the upload as
// malformed, so it drops the run and responds with an error. Waiting
// for that response guarantees the run is gone by the time Abort
// returns. Write errors here just mean the request ended early, so
// they are ignored.
func (u *Upload) Abort() error {
	if u.setupErr != nil {
		return u.setupErr
	}
	u.mpw.WriteField("abort", "1")
	u.mpw.Close()
	u.pw.Close()
	<-u.errCh
	return nil
}
