// Copyright 2025 The Sweep Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build cgo

package app

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"reflect"
	"regexp"
	"strings"
	"testing"
)

func TestUpload(t *testing.T) {
	app := createTestApp(t)
	defer app.Close()

	status := app.uploadFiles(t, func(mpw *multipart.Writer) {
		w, err := mpw.CreateFormFile("file", "1.log")
		if err != nil {
			t.Errorf("CreateFormFile: %v", err)
		}
		fmt.Fprintf(w, "size=1 elapsed: 2 rate: 0.5\nsize=2 elapsed: 2 rate: 1\n")
	})

	if !regexp.MustCompile(`^\d{8}\.1$`).MatchString(status.RunID) {
		t.Errorf("RunID = %q, want YYYYMMDD.1", status.RunID)
	}
	if want := []string{status.RunID + "/0"}; !reflect.DeepEqual(status.FileIDs, want) {
		t.Errorf("FileIDs = %v, want %v", status.FileIDs, want)
	}
	if want := "view:" + status.RunID; status.ViewURL != want {
		t.Errorf("ViewURL = %q, want %q", status.ViewURL, want)
	}

	// The file is stored with its metadata written as labels at the
	// top, so it re-parses to the indexed results.
	files := app.fs.Files()
	if want := []string{fmt.Sprintf("uploads/%s.log", status.FileIDs[0])}; !reflect.DeepEqual(files, want) {
		t.Fatalf("/upload wrote files %v, want %v", files, want)
	}
	content, err := app.fs.ReadFile(files[0])
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	for _, sub := range []string{
		"fileid: " + status.FileIDs[0] + "\n",
		"runid: " + status.RunID + "\n",
		"upload-time: ",
		"size=1 elapsed: 2 rate: 0.5\n",
		"size=2 elapsed: 2 rate: 1\n",
	} {
		if !strings.Contains(string(content), sub) {
			t.Errorf("stored file missing %q:\n%s", sub, content)
		}
	}

	// Both measurements were indexed.
	q := app.db.Query("runid:" + status.RunID)
	defer q.Close()
	count := 0
	for q.Next() {
		count++
	}
	if err := q.Err(); err != nil {
		t.Fatalf("Err: %v", err)
	}
	if count != 2 {
		t.Errorf("indexed %d results, want 2", count)
	}
}

func TestUploadErrors(t *testing.T) {
	app := createTestApp(t)
	defer app.Close()

	tests := []struct {
		name  string
		write func(*multipart.Writer)
		want  string
	}{
		{
			"unexpected field",
			func(mpw *multipart.Writer) {
				mpw.WriteField("commit", "1")
			},
			`unexpected field "commit"`,
		},
		{
			"no files",
			func(mpw *multipart.Writer) {},
			"no files in the upload",
		},
		{
			"no measurements",
			func(mpw *multipart.Writer) {
				w, err := mpw.CreateFormFile("file", "1.log")
				if err != nil {
					t.Errorf("CreateFormFile: %v", err)
				}
				fmt.Fprintf(w, "nothing to see\n")
			},
			"contains no sweep measurements",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var body bytes.Buffer
			mpw := multipart.NewWriter(&body)
			test.write(mpw)
			mpw.Close()

			resp, err := http.Post(app.srv.URL+"/upload", mpw.FormDataContentType(), &body)
			if err != nil {
				t.Fatalf("post /upload: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != 500 {
				t.Errorf("post /upload: %v, want 500", resp.Status)
			}
			got, err := io.ReadAll(resp.Body)
			if err != nil {
				t.Fatalf("reading /upload response: %v", err)
			}
			if !strings.Contains(string(got), test.want) {
				t.Errorf("/upload response %q, want %q", got, test.want)
			}
		})
	}

	// Failed uploads leave nothing behind.
	if files := app.fs.Files(); len(files) != 0 {
		t.Errorf("failed uploads wrote files %v", files)
	}
	if n, err := app.db.CountRuns(); err != nil || n != 0 {
		t.Errorf("CountRuns = %d, %v, want 0 runs", n, err)
	}
}
