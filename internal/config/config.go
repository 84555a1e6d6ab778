// Package config holds the process-wide settings for turtled: listen
// addresses, data directory, and logging. Cobra flags in cmd/turtled
// bind into this struct; each field also has an environment-variable
// fallback so the process is configurable in containerized deployments
// without a flags file.
package config

import "os"

// Config is turtled's full process configuration.
type Config struct {
	ListenRobots string
	ListenHTTP   string
	DataDir      string
	LogLevel     string
	LogFormat    string
}

// Default returns a Config seeded from environment variables, falling
// back to hardcoded defaults for anything unset. Flags in cmd/turtled
// override these values when present.
func Default() Config {
	return Config{
		ListenRobots: envOr("TURTLED_LISTEN_ROBOTS", ":8901"),
		ListenHTTP:   envOr("TURTLED_LISTEN_HTTP", ":8080"),
		DataDir:      envOr("TURTLED_DATA_DIR", "./data"),
		LogLevel:     envOr("TURTLED_LOG_LEVEL", "info"),
		LogFormat:    envOr("TURTLED_LOG_FORMAT", "text"),
	}
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
