package database

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Config holds MongoDB connection settings.
type Config struct {
	Host           string
	Port           int
	Username       string
	Password       string
	Database       string
	AuthSource     string
	ConnectTimeout time.Duration
}

// URI builds the mongodb:// connection string. Credentials are optional so
// local unauthenticated instances work out of the box.
func (c Config) URI() string {
	if c.Username == "" {
		return fmt.Sprintf("mongodb://%s:%d", c.Host, c.Port)
	}
	return fmt.Sprintf("mongodb://%s:%s@%s:%d/?authSource=%s",
		url.QueryEscape(c.Username), url.QueryEscape(c.Password),
		c.Host, c.Port, url.QueryEscape(c.AuthSource))
}

// LoadConfigFromEnv loads MongoDB configuration from environment variables.
func LoadConfigFromEnv() (Config, error) {
	port, err := strconv.Atoi(getEnvOrDefault("MONGO_PORT", "27017"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid MONGO_PORT: %w", err)
	}

	return Config{
		Host:           getEnvOrDefault("MONGO_HOST", "localhost"),
		Port:           port,
		Username:       os.Getenv("MONGO_USERNAME"),
		Password:       os.Getenv("MONGO_PASSWORD"),
		Database:       getEnvOrDefault("MONGO_DATABASE", "chatflow"),
		AuthSource:     getEnvOrDefault("MONGO_AUTH_SOURCE", "admin"),
		ConnectTimeout: 10 * time.Second,
	}, nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
