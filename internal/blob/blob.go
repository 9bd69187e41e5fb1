// Package blob stores uploaded file bytes under opaque keys.
//
// Backends:
//   - Local  → a directory on disk, served by the app under /files/
//   - GCS    → a Google Cloud Storage bucket
//   - Memory → a map, for tests
//
// The database keeps only metadata and the URL returned by Put.
package blob

import (
	"context"
	"errors"
	"strings"
)

// Store is an opaque put/get key-value blob store.
type Store interface {
	// Put writes data under key and returns a URL the client can fetch it from.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	// Get reads the bytes stored under key; ErrNotFound if absent.
	Get(ctx context.Context, key string) ([]byte, error)
}

var (
	ErrNotFound   = errors.New("blob: not found")
	ErrInvalidKey = errors.New("blob: invalid key")
)

// validKey rejects keys that could escape the store's namespace: empty,
// absolute, or containing "..", backslashes or NUL bytes.
func validKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") ||
		strings.Contains(key, "..") || strings.ContainsAny(key, "\\\x00") {
		return ErrInvalidKey
	}
	return nil
}

// SafeFilename reduces a client-supplied file name to characters that are
// safe in a key and a URL path: letters, digits, '.', '-' and '_'. Anything
// else becomes '_'. The result is at most 100 bytes and never empty.
func SafeFilename(name string) string {
	// Only the last path element counts; browsers sometimes send full paths.
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	out := b.String()
	for strings.Contains(out, "..") {
		out = strings.ReplaceAll(out, "..", ".")
	}
	out = strings.Trim(out, ".")
	if len(out) > 100 {
		out = out[len(out)-100:]
	}
	if out == "" {
		return "file"
	}
	return out
}
