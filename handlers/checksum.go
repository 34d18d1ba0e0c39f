package handlers

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// checksumLength is how many hex characters of the digest asset messages
// carry; enough to spot a changed file at a glance.
const checksumLength = 10

// Checksum returns a truncated sha1 digest of the file at path.
func Checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}

	sum := hex.EncodeToString(h.Sum(nil))
	if len(sum) > checksumLength {
		sum = sum[:checksumLength]
	}
	return sum, nil
}
