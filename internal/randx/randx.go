// Package randx provides the cryptographically strong random source used for
// salts and opaque refresh-token secrets, plus helpers to encode its output
// and wipe sensitive buffers.
package randx

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"io"
)

// SecureRandom is a source of cryptographically strong bytes.
// Production code uses Reader; tests may substitute a deterministic stream.
type SecureRandom interface {
	io.Reader
}

// Reader returns the operating system CSPRNG.
func Reader() SecureRandom {
	return rand.Reader
}

// Bytes reads exactly n bytes from r.
func Bytes(r SecureRandom, n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

// Base64 reads n bytes from r and returns them as unpadded URL-safe base64,
// which survives JSON bodies, headers and query strings unchanged.
func Base64(r SecureRandom, n int) (string, error) {
	b, err := Bytes(r, n)
	if err != nil {
		return "", err
	}
	defer Wipe(b)
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HexString reads n bytes from r and returns them hex-encoded. The result is
// 2*n characters long.
func HexString(r SecureRandom, n int) (string, error) {
	b, err := Bytes(r, n)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Wipe overwrites b with zeros. A nil slice is ignored.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
