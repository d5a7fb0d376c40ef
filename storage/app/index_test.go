// Copyright 2025 The Sweep Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build cgo

package app

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"
)

func TestIndex(t *testing.T) {
	app := createTestApp(t)
	defer app.Close()

	get := func(path string) (int, string) {
		t.Helper()
		resp, err := http.Get(app.srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatal(err)
		}
		return resp.StatusCode, string(body)
	}

	code, body := get("/")
	if code != 200 || !strings.Contains(body, "No runs uploaded yet.") {
		t.Errorf("GET / = %d:\n%s", code, body)
	}

	status := app.uploadFiles(t, func(mpw *multipart.Writer) {
		w, err := mpw.CreateFormFile("file", "1.log")
		if err != nil {
			t.Errorf("CreateFormFile: %v", err)
		}
		fmt.Fprintf(w, "size=1 elapsed: 1 rate: 1\nsize=2 elapsed: 1 rate: 2\n")
	})

	// The run shows up on the front page with its point count.
	code, body = get("/")
	if code != 200 || !strings.Contains(body, status.RunID) || !strings.Contains(body, "<td>2</td>") {
		t.Errorf("GET / after upload = %d:\n%s", code, body)
	}

	if code, _ := get("/bogus"); code != 404 {
		t.Errorf("GET /bogus = %d, want 404", code)
	}
}
