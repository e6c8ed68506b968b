// Package crypto seals stored blobs (signature images) with AES-256-GCM.
package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// sealedMagic prefixes every sealed blob so files written before a key was
// configured can still be read back unchanged.
var sealedMagic = []byte("WHSEAL1")

var ErrCiphertextTooShort = errors.New("sealed blob too short")

type Sealer struct {
	aead cipher.AEAD
}

// NewSealer accepts a 32 byte key as hex, base64 or raw text. An empty key
// yields a Sealer that passes data through untouched.
func NewSealer(key string) (*Sealer, error) {
	if key == "" {
		return &Sealer{}, nil
	}
	decoded := decodeKey(key)
	if len(decoded) != 32 {
		return nil, fmt.Errorf("DATA_ENCRYPTION_KEY must be 32 bytes after decoding")
	}
	block, err := aes.NewCipher(decoded)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: aead}, nil
}

func (s *Sealer) Configured() bool {
	return s != nil && s.aead != nil
}

func (s *Sealer) Seal(plain []byte) ([]byte, error) {
	if !s.Configured() || len(plain) == 0 {
		return plain, nil
	}
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(sealedMagic)+len(nonce)+len(plain)+s.aead.Overhead())
	out = append(out, sealedMagic...)
	out = append(out, nonce...)
	return s.aead.Seal(out, nonce, plain, nil), nil
}

func (s *Sealer) Open(data []byte) ([]byte, error) {
	if !bytes.HasPrefix(data, sealedMagic) {
		return data, nil
	}
	if !s.Configured() {
		return nil, errors.New("sealed blob found but no encryption key configured")
	}
	body := data[len(sealedMagic):]
	if len(body) < s.aead.NonceSize() {
		return nil, ErrCiphertextTooShort
	}
	nonce, ciphertext := body[:s.aead.NonceSize()], body[s.aead.NonceSize():]
	return s.aead.Open(nil, nonce, ciphertext, nil)
}

func decodeKey(raw string) []byte {
	if len(raw) == 64 {
		if decoded, err := hex.DecodeString(raw); err == nil {
			return decoded
		}
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding} {
		if decoded, err := enc.DecodeString(raw); err == nil && len(decoded) == 32 {
			return decoded
		}
	}
	return []byte(raw)
}
