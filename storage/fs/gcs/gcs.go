// Copyright 2025 The Sweep Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package gcs implements the fs.FS interface using Google Cloud Storage.
package gcs

import (
	"cloud.google.com/go/storage"
	sfs "github.com/sweepbench/sweep/storage/fs"
	"golang.org/x/net/context"
	"google.golang.org/api/option"
)

// impl is an fs.FS backed by Google Cloud Storage.
type impl struct {
	bucket *storage.BucketHandle
}

// NewFS constructs an FS that writes to the provided bucket. Extra
// options are passed through to the storage client.
func NewFS(ctx context.Context, bucketName string, opts ...option.ClientOption) (sfs.FS, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &impl{client.Bucket(bucketName)}, nil
}

func (fs *impl) NewWriter(ctx context.Context, name string, metadata map[string]string) (sfs.Writer, error) {
	ctx, cancel := context.WithCancel(ctx)
	w := fs.bucket.Object(name).NewWriter(ctx)
	w.Metadata = metadata
	return &wrapper{w, cancel}, nil
}

// wrapper adds CloseWithError to a storage.Writer. Canceling the
// write's context drops any partially uploaded data.
type wrapper struct {
	w      *storage.Writer
	cancel context.CancelFunc
}

func (w *wrapper) Write(p []byte) (int, error) {
	return w.w.Write(p)
}

func (w *wrapper) Close() error {
	err := w.w.Close()
	w.cancel()
	return err
}

func (w *wrapper) CloseWithError(error) error {
	w.cancel()
	w.w.Close()
	return nil
}
