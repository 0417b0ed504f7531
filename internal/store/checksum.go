package store

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
)

// fileDigest streams the file at path through sha256.
func fileDigest(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, fmt.Errorf("hash %s: %w", path, err)
	}
	return h.Sum(nil), nil
}

// sameContent reports whether the file at path already holds data. A missing
// or unreadable file is never the same.
func sameContent(path string, data []byte) bool {
	onDisk, err := fileDigest(path)
	if err != nil {
		return false
	}
	sum := sha256.Sum256(data)
	return bytes.Equal(onDisk, sum[:])
}
