package config

import (
	"os"
	"strconv"
	"time"
)

// Helper functions for type-safe environment variable access

// GetInt returns int value or default
func GetInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

// GetDuration returns a time.ParseDuration value or default
func GetDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
