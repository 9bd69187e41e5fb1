package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCS stores blobs as objects in one Google Cloud Storage bucket.
//
// Credentials come from Application Default Credentials unless
// GCSConfig.CredentialsFile is set.
type GCS struct {
	client    *storage.Client
	bucket    string
	publicURL string
}

var _ Store = (*GCS)(nil)

type GCSConfig struct {
	Bucket          string
	CredentialsFile string // optional service account JSON
	Endpoint        string // optional, for emulators such as fake-gcs-server
	// PublicURL is the base of returned URLs; default
	// "https://storage.googleapis.com/<bucket>". Set it to a CDN origin when
	// the bucket sits behind one.
	PublicURL string
}

func NewGCS(ctx context.Context, cfg GCSConfig) (*GCS, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("blob: GCS bucket required")
	}

	opts := []option.ClientOption{option.WithScopes(storage.ScopeReadWrite)}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("blob: creating storage client: %w", err)
	}

	publicURL := strings.TrimRight(cfg.PublicURL, "/")
	if publicURL == "" {
		publicURL = "https://storage.googleapis.com/" + cfg.Bucket
	}

	return &GCS{client: client, bucket: cfg.Bucket, publicURL: publicURL}, nil
}

func (g *GCS) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := validKey(key); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("blob: writing gs://%s/%s: %w", g.bucket, key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("blob: closing gs://%s/%s: %w", g.bucket, key, err)
	}

	return g.objectURL(key), nil
}

func (g *GCS) Get(ctx context.Context, key string) ([]byte, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}

	r, err := g.client.Bucket(g.bucket).Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("blob: opening gs://%s/%s: %w", g.bucket, key, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("blob: reading gs://%s/%s: %w", g.bucket, key, err)
	}
	return data, nil
}

// Close releases the storage client's connections.
func (g *GCS) Close() error {
	return g.client.Close()
}

// objectURL escapes each path segment but keeps the "/" separators.
func (g *GCS) objectURL(key string) string {
	segs := strings.Split(key, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return g.publicURL + "/" + strings.Join(segs, "/")
}
