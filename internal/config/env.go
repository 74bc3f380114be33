package config

import (
	"log/slog"
	"os"
	"strconv"
)

// GetString returns the environment variable's value, or fallback
// when unset.
func GetString(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// GetBool parses the environment variable as a bool, falling back
// when unset or unparseable.
func GetBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		slog.Warn("invalid boolean environment variable", "key", key, "error", err)
		return fallback
	}
	return parsed
}
