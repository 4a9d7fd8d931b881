package backup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// fingerprintReadLimit bounds how much of the file feeds the hash.
// Enough to distinguish versions without reading whole albums of audio.
const fingerprintReadLimit = 64 * 1024

// Fingerprint hashes the head of the file and returns a short
// hex digest used to correlate changelog entries with file versions.
func Fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open for fingerprint: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, io.LimitReader(f, fingerprintReadLimit)); err != nil {
		return "", fmt.Errorf("hash file head: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil))[:16], nil
}

// resourceKey hashes a resource path into a stable filename prefix, so
// every backup copy of one file can be found again regardless of its
// transaction id.
func resourceKey(path string) string {
	sum := sha256.Sum256([]byte(path))
	return hex.EncodeToString(sum[:])[:16]
}
