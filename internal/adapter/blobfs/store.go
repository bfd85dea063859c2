// Package blobfs implements the blob store port on the local filesystem.
// Each bucket is a directory under the root; object paths may contain
// slashes and map onto subdirectories.
package blobfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/Strob0t/foodshare/internal/domain"
)

// Store keeps objects below root.
type Store struct {
	root    string
	baseURL string
}

// New creates the root directory if needed and returns a Store serving
// objects under baseURL.
func New(root, baseURL string) (*Store, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &Store{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Root returns the directory holding all buckets.
func (s *Store) Root() string { return s.root }

// Put writes r to bucket/objectPath via a temp file and rename, so readers
// never observe a partial object.
func (s *Store) Put(_ context.Context, bucket, objectPath string, r io.Reader) (int64, error) {
	dst, err := s.resolve(bucket, objectPath)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return 0, fmt.Errorf("create object dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("create temp object: %w", err)
	}
	n, copyErr := io.Copy(tmp, r)
	closeErr := tmp.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(tmp.Name())
		return 0, fmt.Errorf("write object %s/%s: %w", bucket, objectPath, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		_ = os.Remove(tmp.Name())
		return 0, fmt.Errorf("store object %s/%s: %w", bucket, objectPath, err)
	}
	return n, nil
}

// Delete removes bucket/objectPath. Missing objects are ignored.
func (s *Store) Delete(_ context.Context, bucket, objectPath string) error {
	dst, err := s.resolve(bucket, objectPath)
	if err != nil {
		return err
	}
	if err := os.Remove(dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete object %s/%s: %w", bucket, objectPath, err)
	}
	return nil
}

// URL returns the public address of bucket/objectPath.
func (s *Store) URL(bucket, objectPath string) string {
	segs := strings.Split(path.Join(bucket, objectPath), "/")
	for i, seg := range segs {
		segs[i] = url.PathEscape(seg)
	}
	return s.baseURL + "/" + strings.Join(segs, "/")
}

// resolve maps bucket/objectPath to a file below root, rejecting traversal.
func (s *Store) resolve(bucket, objectPath string) (string, error) {
	if bucket == "" || strings.ContainsAny(bucket, `/\`) || bucket == "." || bucket == ".." {
		return "", fmt.Errorf("invalid bucket %q: %w", bucket, domain.ErrValidation)
	}
	clean := path.Clean("/" + objectPath)
	if objectPath == "" || clean == "/" || strings.Contains(objectPath, `\`) || clean != "/"+strings.TrimPrefix(objectPath, "/") {
		return "", fmt.Errorf("invalid object path %q: %w", objectPath, domain.ErrValidation)
	}
	return filepath.Join(s.root, bucket, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}
