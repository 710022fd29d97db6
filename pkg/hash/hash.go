package hash

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"strings"
)

type Algorithm string

const (
	MD5    Algorithm = "md5"
	SHA1   Algorithm = "sha1"
	SHA256 Algorithm = "sha256"
	SHA512 Algorithm = "sha512"
)

// Hasher computes hex digests of uploaded documents and sentence fingerprints.
type Hasher struct {
	algorithm Algorithm
}

func New(algorithm string) (*Hasher, error) {
	a := Algorithm(strings.ToLower(strings.TrimSpace(algorithm)))
	if a == "" {
		a = SHA256
	}
	if _, err := newHash(a); err != nil {
		return nil, err
	}
	return &Hasher{algorithm: a}, nil
}

func (h *Hasher) Algorithm() Algorithm {
	return h.algorithm
}

func (h *Hasher) Sum(data []byte) string {
	hasher, _ := newHash(h.algorithm)
	hasher.Write(data)
	return hex.EncodeToString(hasher.Sum(nil))
}

func (h *Hasher) SumString(s string) string {
	return h.Sum([]byte(s))
}

func (h *Hasher) SumReader(r io.Reader) (string, error) {
	hasher, _ := newHash(h.algorithm)
	if _, err := io.Copy(hasher, r); err != nil {
		return "", fmt.Errorf("failed to hash stream: %w", err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

func (h *Hasher) Verify(data []byte, expected string) bool {
	return strings.EqualFold(h.Sum(data), expected)
}

func newHash(a Algorithm) (hash.Hash, error) {
	switch a {
	case MD5:
		return md5.New(), nil
	case SHA1:
		return sha1.New(), nil
	case SHA256:
		return sha256.New(), nil
	case SHA512:
		return sha512.New(), nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %s", a)
	}
}
