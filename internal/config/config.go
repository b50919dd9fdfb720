package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	DBSource string
	Port     string
	Env      string
}

// Load reads .env (if present) then the process environment, exactly the
// teacher's DB_SOURCE/SERVER_PORT/ENVIRONMENT variables, enriched with
// godotenv the way ibrahimkeyboad-gopay's config.LoadConfig does.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, relying on system environment variables")
	}

	dbSource := os.Getenv("DB_SOURCE")
	if dbSource == "" {
		return nil, fmt.Errorf("DB_SOURCE environment variable is required")
	}

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	return &Config{
		DBSource: dbSource,
		Port:     port,
		Env:      env,
	}, nil
}
