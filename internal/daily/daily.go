// Package daily derives the shared seed of the daily challenge.
//
// Every player who starts the daily game on a given UTC date gets the same
// die stream, so games with the same seat count play out identically.
package daily

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"time"
)

// DateKey returns YYYY-MM-DD in UTC.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Seed returns the die seed for the date of t using HMAC(salt, YYYY-MM-DD).
func Seed(t time.Time, salt string) int64 {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(DateKey(t)))
	sum := h.Sum(nil)
	// top bit cleared so seeds stay positive in JSON and SQLite
	return int64(binary.BigEndian.Uint64(sum[:8]) >> 1)
}
