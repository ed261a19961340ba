// Package id provides unique identifier generation for jobs.
package id

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Generate creates a new unique job ID carrying the job kind, so workspace
// directories and log lines identify themselves. The kind must be a plain
// lowercase word; an empty kind falls back to "job".
// Format: <kind>-<timestamp>-<random>
// Example: assemble-1701432000-a1b2c3d4
func Generate(kind string) string {
	if kind == "" {
		kind = "job"
	}
	timestamp := time.Now().Unix()
	random := make([]byte, 4)
	if _, err := rand.Read(random); err != nil {
		// Fallback to timestamp only if crypto/rand fails
		return fmt.Sprintf("%s-%d", kind, timestamp)
	}
	return fmt.Sprintf("%s-%d-%s", kind, timestamp, hex.EncodeToString(random))
}
