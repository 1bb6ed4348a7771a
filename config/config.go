// Package config loads the data layer's settings from the environment.
package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Document store
	ProjectID       string
	EmulatorHost    string
	StampField      string
	UsersCollection string

	// Session tokens
	TokenSecret string
	TokenTTL    time.Duration

	// Redis session store; empty disables session tracking
	RedisURL string

	// Object storage
	StorageEndpoint  string
	StorageAccessKey string
	StorageSecretKey string
	StorageBucket    string
	StorageUseSSL    bool
}

func Load() Config {
	return Config{
		ProjectID:       getenv("FIREDATA_PROJECT_ID", "clipstack-dev"),
		EmulatorHost:    getenv("FIRESTORE_EMULATOR_HOST", ""),
		StampField:      getenv("FIREDATA_STAMP_FIELD", "timestamp"),
		UsersCollection: getenv("FIREDATA_USERS_COLLECTION", "users"),

		TokenSecret: getenv("FIREDATA_TOKEN_SECRET", "firedata-dev-secret"),
		TokenTTL:    time.Duration(getenvInt("FIREDATA_TOKEN_TTL_SECONDS", 900)) * time.Second,

		RedisURL: getenv("REDIS_URL", ""),

		StorageEndpoint:  getenv("STORAGE_ENDPOINT", "localhost:9000"),
		StorageAccessKey: getenv("STORAGE_ACCESS_KEY", ""),
		StorageSecretKey: getenv("STORAGE_SECRET_KEY", ""),
		StorageBucket:    getenv("STORAGE_BUCKET", "clipstack-media"),
		StorageUseSSL:    getenvBool("STORAGE_USE_SSL", false),
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
