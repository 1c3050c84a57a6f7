// Package blob keeps original uploads and conversion results.
package blob

import (
	"context"
	"errors"
	"path"
	"strings"
)

var ErrNotFound = errors.New("blob not found")

type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// OriginalKey and OutputKey build the keys jobs are stored under.
func OriginalKey(id, ext string) string {
	return path.Join("original", id+strings.ToLower(ext))
}

func OutputKey(id, ext string) string {
	return path.Join("processed", id+ext)
}
