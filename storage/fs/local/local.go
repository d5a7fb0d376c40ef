// Copyright 2025 The Sweep Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package local implements the fs.FS interface using local files.
// Metadata is not stored separately; the header of each file contains
// the metadata as written by the storage app.
package local

import (
	"os"
	"path/filepath"

	sfs "github.com/sweepbench/sweep/storage/fs"
	"golang.org/x/net/context"
)

// impl is an fs.FS backed by local disk.
type impl struct {
	root string
}

// NewFS constructs an FS that writes to the provided directory.
func NewFS(root string) sfs.FS {
	return &impl{root}
}

// NewWriter creates any missing parent directories and opens the
// named file for writing.
func (fs *impl) NewWriter(_ context.Context, name string, _ map[string]string) (sfs.Writer, error) {
	path := filepath.Join(fs.root, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0777); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &wrapper{f}, nil
}

type wrapper struct {
	*os.File
}

// CloseWithError closes the file and attempts to unlink it.
func (w *wrapper) CloseWithError(error) error {
	w.Close()
	return os.Remove(w.Name())
}
