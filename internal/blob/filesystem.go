// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

package blob

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sonarhost/sonar/internal/sonarerr"
)

// FilesystemStore persists blobs as files under root, one file per key
// with the key's "/" segments becoming directory components (so
// "audio/<uuid>" lands at root/audio/<uuid>).
type FilesystemStore struct {
	root string
}

// NewFilesystemStore constructs a FilesystemStore rooted at root, creating
// the directory if absent.
func NewFilesystemStore(root string) (*FilesystemStore, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, sonarerr.WrapInternal(err, "create blob root %s", root)
	}
	return &FilesystemStore{root: root}, nil
}

func (f *FilesystemStore) path(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" || strings.Contains(clean, "..") {
		return "", sonarerr.Invalidf("invalid blob key %q", key)
	}
	return filepath.Join(f.root, clean), nil
}

func (f *FilesystemStore) Write(ctx context.Context, key string, data io.Reader) (int64, error) {
	path, err := f.path(key)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return 0, sonarerr.WrapInternal(err, "create blob directory for %s", key)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return 0, sonarerr.WrapInternal(err, "create temp file for %s", key)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, data)
	if err != nil {
		tmp.Close()
		return 0, sonarerr.WrapInternal(err, "write blob data for %s", key)
	}
	if err := tmp.Close(); err != nil {
		return 0, sonarerr.WrapInternal(err, "close temp file for %s", key)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, sonarerr.WrapInternal(err, "finalize blob %s", key)
	}
	return n, nil
}

func (f *FilesystemStore) Read(ctx context.Context, key string, r Range) (io.ReadCloser, error) {
	path, err := f.path(key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, sonarerr.NotFoundf("no blob %s", key)
		}
		return nil, sonarerr.WrapInternal(err, "open blob %s", key)
	}

	if r.Offset > 0 {
		if _, err := file.Seek(r.Offset, io.SeekStart); err != nil {
			file.Close()
			return nil, sonarerr.WrapInternal(err, "seek blob %s", key)
		}
	}
	if r.Length >= 0 {
		return &limitedReadCloser{r: io.LimitReader(file, r.Length), c: file}, nil
	}
	return file, nil
}

// limitedReadCloser bounds reads from an underlying file while still
// closing the real handle.
type limitedReadCloser struct {
	r io.Reader
	c io.Closer
}

func (l *limitedReadCloser) Read(p []byte) (int, error) { return l.r.Read(p) }
func (l *limitedReadCloser) Close() error                { return l.c.Close() }

func (f *FilesystemStore) Delete(ctx context.Context, key string) error {
	path, err := f.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return sonarerr.WrapInternal(err, "delete blob %s", key)
	}
	return nil
}

func (f *FilesystemStore) Exists(ctx context.Context, key string) (bool, error) {
	path, err := f.path(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, sonarerr.WrapInternal(err, "stat blob %s", key)
}

func (f *FilesystemStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	prefixDir, err := f.path(prefix)
	if err != nil {
		// A bare kind prefix like "audio" has no file extension and
		// f.path would reject it only for ".." traversal, which a
		// prefix never contains; propagate any other rejection.
		return nil, err
	}

	keys := make([]string, 0)
	walkRoot := filepath.Dir(prefixDir)
	if _, statErr := os.Stat(walkRoot); os.IsNotExist(statErr) {
		return keys, nil
	}

	err = filepath.WalkDir(walkRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(f.root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, sonarerr.WrapInternal(err, "walk blob root for prefix %s", prefix)
	}
	sort.Strings(keys)
	return keys, nil
}
