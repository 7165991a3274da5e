package codec

import (
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

var (
	// ErrKeyUnavailable reports that no usable at-rest key is loaded.
	ErrKeyUnavailable = errors.New("encryption key unavailable")
	// ErrMalformedBlob reports a blob too short or failing authentication.
	ErrMalformedBlob = errors.New("malformed encrypted blob")
)

// Sealer performs authenticated encryption of canonical envelopes.
type Sealer interface {
	Seal(plaintext, associated []byte) ([]byte, error)
	Open(blob, associated []byte) ([]byte, error)
}

// AEAD seals with XChaCha20-Poly1305. Blobs are laid out as nonce||ciphertext.
type AEAD struct {
	aead cipher.AEAD
}

// NewAEAD builds a sealer from a 32-byte key.
func NewAEAD(key []byte) (*AEAD, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes, got %d", ErrKeyUnavailable, chacha20poly1305.KeySize, len(key))
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("initialise cipher: %w", err)
	}
	return &AEAD{aead: aead}, nil
}

// Seal encrypts plaintext under a fresh random nonce.
func (a *AEAD) Seal(plaintext, associated []byte) ([]byte, error) {
	nonce := make([]byte, a.aead.NonceSize(), a.aead.NonceSize()+len(plaintext)+a.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return a.aead.Seal(nonce, nonce, plaintext, associated), nil
}

// Open authenticates and decrypts a blob produced by Seal.
func (a *AEAD) Open(blob, associated []byte) ([]byte, error) {
	size := a.aead.NonceSize()
	if len(blob) < size+a.aead.Overhead() {
		return nil, ErrMalformedBlob
	}
	plain, err := a.aead.Open(nil, blob[:size], blob[size:], associated)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBlob, err)
	}
	return plain, nil
}
