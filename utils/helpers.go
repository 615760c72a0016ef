package utils

import (
	"fmt"
	"math/rand"
	"os"
	"time"
)

// GetEnv reads an environment variable, falling back to the provided default
// when unset or empty.
func GetEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// CreateFolder creates the directory (and parents) if it does not exist.
func CreateFolder(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", path, err)
		}
	}
	return nil
}

// GenerateUniqueID produces a session identifier that is unique enough for a
// single host process: nanosecond timestamp plus a random suffix.
func GenerateUniqueID() string {
	return fmt.Sprintf("%d-%04d", time.Now().UnixNano(), rand.Intn(10000))
}
