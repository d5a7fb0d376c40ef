// Copyright 2025 The Sweep Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package app

import (
	"net/http"
	"net/url"

	"github.com/google/safehtml/template"
)

// indexTmpl renders the front page: a link to the upload form and a
// table of the most recent runs.
var indexTmpl = template.Must(template.New("index").ParseFromTrustedTemplate(template.MakeTrustedTemplate(`<!DOCTYPE html>
<html>
  <head>
    <title>Sweep data server</title>
  </head>
  <body>
    <h1>Sweep data server</h1>
    <p><a href="/upload">Upload sweep logs</a></p>
    {{if .Runs}}<table>
      <tr><th>Run</th><th>Points</th></tr>
      {{range .Runs}}<tr><td><a href="{{.URL}}">{{.RunID}}</a></td><td>{{.Points}}</td></tr>
      {{end}}
    </table>{{else}}<p>No runs uploaded yet.</p>{{end}}
  </body>
</html>
`)))

// indexRun is one row of the front page run table.
type indexRun struct {
	RunID  string
	Points int
	URL    string
}

// indexRuns caps how many runs the front page lists.
const indexRuns = 20

// index is the handler for the front page. Any path other than / is a
// 404, since / is the fallback pattern of the mux.
func (a *App) index(w http.ResponseWriter, r *http.Request) {
	ctx := requestContext(r)
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	runs, err := a.DB.ListRuns(indexRuns)
	if err != nil {
		errorf(ctx, "%v", err)
		http.Error(w, err.Error(), 500)
		return
	}

	var data struct {
		Runs []indexRun
	}
	for _, run := range runs {
		data.Runs = append(data.Runs, indexRun{
			RunID:  run.RunID,
			Points: run.Points,
			URL:    "/search?q=" + url.QueryEscape("runid:"+run.RunID),
		})
	}
	if err := indexTmpl.Execute(w, data); err != nil {
		errorf(ctx, "%v", err)
	}
}
