// SPDX-License-Identifier: MIT

package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/altqx/akane/internal/log"
	"github.com/altqx/akane/internal/metrics"
)

// ErrNoMasterPlaylist is returned when the uploaded tree contains no
// top-level index.m3u8 to hand to players.
var ErrNoMasterPlaylist = errors.New("storage: no master playlist in upload")

// UploadProgressFunc receives per-object upload progress.
type UploadProgressFunc = func(done, total int, details string)

// Uploader pushes a finished HLS output tree into the object store.
type Uploader struct {
	client        *Client
	maxConcurrent int
}

// NewUploader returns an Uploader performing at most maxConcurrent
// parallel puts.
func NewUploader(client *Client, maxConcurrent int) *Uploader {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Uploader{client: client, maxConcurrent: maxConcurrent}
}

// UploadDir walks dir recursively and uploads every file under
// prefix, preserving the relative layout. It returns the key of the
// master playlist, the top-level index.m3u8.
func (u *Uploader) UploadDir(ctx context.Context, dir, prefix string, onProgress UploadProgressFunc) (string, error) {
	if onProgress == nil {
		onProgress = func(int, int, string) {}
	}

	type object struct {
		path string
		key  string
	}
	var objects []object
	masterKey := ""
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		key := prefix + filepath.ToSlash(rel)
		// The master playlist sits directly under the video prefix.
		if d.Name() == "index.m3u8" && strings.Count(key, "/") == 1 {
			masterKey = key
		}
		objects = append(objects, object{path: path, key: key})
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("walk %s: %w", dir, err)
	}
	if masterKey == "" {
		return "", ErrNoMasterPlaylist
	}

	logger := log.WithComponentFromContext(ctx, "uploader")
	total := len(objects)
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.maxConcurrent)
	for _, obj := range objects {
		g.Go(func() error {
			f, err := os.Open(obj.path)
			if err != nil {
				return fmt.Errorf("open %s: %w", obj.path, err)
			}
			defer f.Close()

			if err := u.client.Put(gctx, obj.key, f); err != nil {
				metrics.ArtifactUploadFailures.Inc()
				return err
			}
			metrics.ArtifactUploads.Inc()

			n := int(done.Add(1))
			logger.Debug().Str(log.FieldKey, obj.key).Msg("uploaded")
			onProgress(n, total, "Uploaded "+obj.key)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	return masterKey, nil
}
