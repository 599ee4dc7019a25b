package evidence

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"cloud.google.com/go/storage"
)

// Storage abstracts where finished evidence packages live. The local
// backend serves files straight off disk; the GCS backend uploads and
// hands out signed URLs.
type Storage interface {
	// Put stores the file at the given object key and returns a
	// retrieval reference (path or object URL).
	Put(ctx context.Context, key, localPath string) (string, error)
	// SignedURL returns a time-limited download URL, or "" when the
	// backend serves bytes directly.
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	// Open returns a reader over the stored object.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// LocalStorage keeps evidence under a root directory.
type LocalStorage struct {
	Root string
}

// NewLocalStorage ensures the root exists.
func NewLocalStorage(root string) (*LocalStorage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &LocalStorage{Root: root}, nil
}

func (s *LocalStorage) Put(_ context.Context, key, localPath string) (string, error) {
	dst := filepath.Join(s.Root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}
	if sameFile(localPath, dst) {
		return dst, nil
	}
	in, err := os.Open(localPath)
	if err != nil {
		return "", err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return "", err
	}
	return dst, out.Close()
}

func (s *LocalStorage) SignedURL(context.Context, string, time.Duration) (string, error) {
	return "", nil // local backend streams directly
}

func (s *LocalStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(s.Root, filepath.FromSlash(key)))
}

func sameFile(a, b string) bool {
	ai, err1 := os.Stat(a)
	bi, err2 := os.Stat(b)
	return err1 == nil && err2 == nil && os.SameFile(ai, bi)
}

// GCSStorage stores evidence in a Google Cloud Storage bucket.
type GCSStorage struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSStorage opens the bucket with ambient credentials.
func NewGCSStorage(ctx context.Context, bucket, prefix string) (*GCSStorage, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}
	return &GCSStorage{client: client, bucket: bucket, prefix: prefix}, nil
}

func (s *GCSStorage) object(key string) *storage.ObjectHandle {
	name := key
	if s.prefix != "" {
		name = s.prefix + "/" + key
	}
	return s.client.Bucket(s.bucket).Object(name)
}

func (s *GCSStorage) Put(ctx context.Context, key, localPath string) (string, error) {
	in, err := os.Open(localPath)
	if err != nil {
		return "", err
	}
	defer in.Close()

	w := s.object(key).NewWriter(ctx)
	if _, err := io.Copy(w, in); err != nil {
		w.Close()
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize upload %s: %w", key, err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, w.Name), nil
}

func (s *GCSStorage) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	name := key
	if s.prefix != "" {
		name = s.prefix + "/" + key
	}
	url, err := s.client.Bucket(s.bucket).SignedURL(name, &storage.SignedURLOptions{
		Method:  "GET",
		Expires: time.Now().Add(ttl),
		Scheme:  storage.SigningSchemeV4,
	})
	if err != nil {
		return "", fmt.Errorf("sign url for %s: %w", key, err)
	}
	return url, nil
}

func (s *GCSStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.object(key).NewReader(ctx)
}
