package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// DuplicateKey returns a stable key for the (title, start, end) triple that
// identifies the same real-world event across feed ids. Titles are compared
// after trimming; times are compared at second precision in UTC.
// We return a hex-encoded SHA-256 to guarantee fixed length for the index.
func DuplicateKey(title string, start, end time.Time) string {
	composite := fmt.Sprintf("%s|%d|%d", strings.TrimSpace(title), start.UTC().Unix(), end.UTC().Unix())
	sum := sha256.Sum256([]byte(composite))
	return hex.EncodeToString(sum[:])
}
