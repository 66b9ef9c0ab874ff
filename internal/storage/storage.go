// Package storage keeps article image binaries outside the database.
package storage

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no object exists under the key
var ErrNotFound = errors.New("image not found")

// ImageStore persists image binaries by key
type ImageStore interface {
	Put(ctx context.Context, key, mimeType string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// MaxKeyLength is the longest key GenerateKey produces; it matches the storage_key column
const MaxKeyLength = 64

// maxExtensionLength bounds the extension kept from a client-supplied filename
const maxExtensionLength = 10

// GenerateKey returns a new uuid-based key. The extension of filename is kept when
// it is short and alphanumeric; anything else is dropped so keys stay within MaxKeyLength.
func GenerateKey(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if !validExtension(ext) {
		ext = ""
	}
	return uuid.NewString() + ext
}

func validExtension(ext string) bool {
	if len(ext) < 2 || len(ext) > maxExtensionLength+1 {
		return false
	}
	for _, c := range ext[1:] {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

// validKey rejects keys that could escape the store's namespace
func validKey(key string) bool {
	if key == "" || strings.Contains(key, "..") {
		return false
	}
	return !strings.ContainsAny(key, `/\`)
}
