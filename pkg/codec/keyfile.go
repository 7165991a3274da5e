package codec

import (
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeyFileName is the at-rest key stored inside the private data directory.
const KeyFileName = "activity.key"

// LoadOrCreateKey returns the key stored at path, generating one with
// owner-only permissions when the file does not exist yet. Any other failure
// (unreadable file, wrong length) is reported as ErrKeyUnavailable so callers
// can fall back to plaintext storage.
func LoadOrCreateKey(path string) ([]byte, error) {
	key, err := os.ReadFile(path)
	switch {
	case err == nil:
		if len(key) != chacha20poly1305.KeySize {
			return nil, fmt.Errorf("%w: %s holds %d bytes", ErrKeyUnavailable, path, len(key))
		}
		return key, nil
	case errors.Is(err, os.ErrNotExist):
		return createKey(path)
	default:
		return nil, fmt.Errorf("%w: read %s: %v", ErrKeyUnavailable, path, err)
	}
}

func createKey(path string) ([]byte, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("%w: create key directory: %v", ErrKeyUnavailable, err)
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("%w: generate key: %v", ErrKeyUnavailable, err)
	}
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return LoadOrCreateKey(path)
		}
		return nil, fmt.Errorf("%w: create %s: %v", ErrKeyUnavailable, path, err)
	}
	if _, err := file.Write(key); err != nil {
		file.Close()
		os.Remove(path)
		return nil, fmt.Errorf("%w: write %s: %v", ErrKeyUnavailable, path, err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("%w: close %s: %v", ErrKeyUnavailable, path, err)
	}
	return key, nil
}

// CheckKey reports whether LoadOrCreateKey would yield a usable key at path
// without creating one. A missing file counts as usable since it will be
// generated on first start.
func CheckKey(path string) error {
	key, err := os.ReadFile(path)
	switch {
	case err == nil:
		if len(key) != chacha20poly1305.KeySize {
			return fmt.Errorf("%w: %s holds %d bytes", ErrKeyUnavailable, path, len(key))
		}
		return nil
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return fmt.Errorf("%w: read %s: %v", ErrKeyUnavailable, path, err)
	}
}
