package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/Strob0t/foodshare/internal/domain"
	"github.com/Strob0t/foodshare/internal/port/blobstore"
)

// Storage buckets for user uploads.
const (
	BucketDonations = "donations"
	BucketAvatars   = "avatars"
)

var validBuckets = map[string]bool{
	BucketDonations: true,
	BucketAvatars:   true,
}

const maxFilenameLen = 100

// Upload describes a stored object.
type Upload struct {
	Bucket string `json:"bucket"`
	Path   string `json:"path"`
	URL    string `json:"url"`
	Size   int64  `json:"size"`
}

// UploadService stores user images in the blob store. Objects live under
// a per-user prefix so users can only remove their own uploads.
type UploadService struct {
	blobs blobstore.Store
}

// NewUploadService creates a new UploadService.
func NewUploadService(blobs blobstore.Store) *UploadService {
	return &UploadService{blobs: blobs}
}

// Upload stores body in bucket as <userID>/<uuid>-<filename>.
func (s *UploadService) Upload(ctx context.Context, userID, bucket, filename string, body io.Reader) (*Upload, error) {
	if !validBuckets[bucket] {
		return nil, fmt.Errorf("unknown bucket %q: %w", bucket, domain.ErrValidation)
	}
	if userID == "" {
		return nil, fmt.Errorf("user id is required: %w", domain.ErrValidation)
	}

	objectPath := userID + "/" + uuid.NewString() + "-" + cleanFilename(filename)
	n, err := s.blobs.Put(ctx, bucket, objectPath, body)
	if err != nil {
		return nil, fmt.Errorf("upload %s/%s: %w", bucket, objectPath, err)
	}

	slog.InfoContext(ctx, "upload stored", "bucket", bucket, "path", objectPath, "bytes", n)
	return &Upload{
		Bucket: bucket,
		Path:   objectPath,
		URL:    s.blobs.URL(bucket, objectPath),
		Size:   n,
	}, nil
}

// Remove deletes an object the user uploaded earlier.
func (s *UploadService) Remove(ctx context.Context, userID, bucket, objectPath string) error {
	if !validBuckets[bucket] {
		return fmt.Errorf("unknown bucket %q: %w", bucket, domain.ErrValidation)
	}
	if !strings.HasPrefix(objectPath, userID+"/") {
		return fmt.Errorf("object %s/%s: %w", bucket, objectPath, domain.ErrForbidden)
	}
	return s.blobs.Delete(ctx, bucket, objectPath)
}

// RemoveURL deletes the object behind a public URL returned by Upload.
// URLs that do not point into bucket are ignored.
func (s *UploadService) RemoveURL(ctx context.Context, userID, bucket, publicURL string) error {
	objectPath, ok := s.PathFromURL(bucket, publicURL)
	if !ok {
		return nil
	}
	return s.Remove(ctx, userID, bucket, objectPath)
}

// PathFromURL recovers the object path from a public URL of bucket.
func (s *UploadService) PathFromURL(bucket, publicURL string) (string, bool) {
	prefix := strings.TrimSuffix(s.blobs.URL(bucket, ""), "/") + "/"
	rest, ok := strings.CutPrefix(publicURL, prefix)
	if !ok || rest == "" {
		return "", false
	}
	segs := strings.Split(rest, "/")
	for i, seg := range segs {
		dec, err := url.PathUnescape(seg)
		if err != nil {
			return "", false
		}
		segs[i] = dec
	}
	return strings.Join(segs, "/"), true
}

// cleanFilename keeps the base name and replaces anything outside a
// conservative character set.
func cleanFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.TrimLeft(b.String(), ".")
	if out == "" {
		out = "upload"
	}
	if len(out) > maxFilenameLen {
		out = out[len(out)-maxFilenameLen:]
	}
	return out
}
