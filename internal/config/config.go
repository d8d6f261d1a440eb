package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ServerConfig holds all server-related settings.
type ServerConfig struct {
	Port           int
	Host           string
	MetricsEnabled bool
}

// DatabaseConfig selects and configures the storage backend.
type DatabaseConfig struct {
	Type    string // "mongo" or "postgres"
	URI     string // connection string for the selected backend
	SSLMode string // postgres only
}

// ClientConfig tunes the embedded client machinery.
type ClientConfig struct {
	UndoWindow   time.Duration
	PollInterval time.Duration
}

// Config is the complete application configuration.
type Config struct {
	Server         *ServerConfig
	Database       *DatabaseConfig
	Client         *ClientConfig
	AllowedOrigins []string
	Debug          bool
}

// DefaultConfig provides default server settings.
func DefaultConfig() *ServerConfig {
	return &ServerConfig{
		Port:           8080,
		Host:           "0.0.0.0",
		MetricsEnabled: true,
	}
}

// DefaultDatabaseConfig provides default database settings.
func DefaultDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		Type:    "mongo",
		URI:     "mongodb://localhost:27017",
		SSLMode: "require",
	}
}

// DefaultClientConfig provides default client tuning.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		UndoWindow:   8 * time.Second,
		PollInterval: 30 * time.Second,
	}
}

// LoadConfig loads configuration from the environment, reading a .env
// file first if one is present.
func LoadConfig() (*Config, error) {
	// Silent failure when no .env exists, which is fine.
	for _, location := range []string{".env", "../../.env"} {
		if err := godotenv.Load(location); err == nil {
			break
		}
	}

	serverConfig := DefaultConfig()
	if portStr := os.Getenv("PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			serverConfig.Port = port
		}
	}
	if host := os.Getenv("HOST"); host != "" {
		serverConfig.Host = host
	}
	if metricsEnabled := os.Getenv("METRICS_ENABLED"); metricsEnabled != "" {
		serverConfig.MetricsEnabled = metricsEnabled == "true"
	}

	dbConfig := DefaultDatabaseConfig()
	if dbType := os.Getenv("DB_TYPE"); dbType != "" {
		dbConfig.Type = dbType
	}

	switch dbConfig.Type {
	case "mongo":
		if uri := os.Getenv("MONGODB_URI"); uri != "" {
			dbConfig.URI = uri
		}
	case "postgres":
		if uri := os.Getenv("DATABASE_URL"); uri != "" {
			dbConfig.URI = uri
			dbConfig.SSLMode = sslModeFromURI(uri)
		} else {
			host := getEnvOrDefault("DB_HOST", "localhost")
			port := 5432
			if portStr := os.Getenv("DB_PORT"); portStr != "" {
				if p, err := strconv.Atoi(portStr); err == nil {
					port = p
				}
			}
			user := os.Getenv("DB_USER")
			if user == "" {
				return nil, fmt.Errorf("DB_USER is required when DB_TYPE is postgres and DATABASE_URL is not set")
			}
			password := os.Getenv("DB_PASSWORD")
			if password == "" {
				return nil, fmt.Errorf("DB_PASSWORD is required when DB_TYPE is postgres and DATABASE_URL is not set")
			}
			name := getEnvOrDefault("DB_NAME", "mangrove")
			dbConfig.SSLMode = getEnvOrDefault("DB_SSL_MODE", "require")
			dbConfig.URI = fmt.Sprintf(
				"postgresql://%s:%s@%s:%d/%s?sslmode=%s",
				user, password, host, port, name, dbConfig.SSLMode,
			)
		}
	default:
		return nil, fmt.Errorf("unsupported DB_TYPE %q (want mongo or postgres)", dbConfig.Type)
	}

	clientConfig := DefaultClientConfig()
	if secs := os.Getenv("UNDO_WINDOW_SECONDS"); secs != "" {
		if n, err := strconv.Atoi(secs); err == nil && n > 0 {
			clientConfig.UndoWindow = time.Duration(n) * time.Second
		}
	}
	if secs := os.Getenv("NOTIFY_POLL_SECONDS"); secs != "" {
		if n, err := strconv.Atoi(secs); err == nil && n > 0 {
			clientConfig.PollInterval = time.Duration(n) * time.Second
		}
	}

	config := &Config{
		Server:         serverConfig,
		Database:       dbConfig,
		Client:         clientConfig,
		AllowedOrigins: []string{"*"},
		Debug:          os.Getenv("DEBUG") == "true",
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		config.AllowedOrigins = strings.Split(origins, ",")
	}

	return config, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func sslModeFromURI(uri string) string {
	if parts := strings.SplitN(uri, "?", 2); len(parts) == 2 {
		for _, param := range strings.Split(parts[1], "&") {
			if kv := strings.SplitN(param, "=", 2); len(kv) == 2 && kv[0] == "sslmode" {
				return kv[1]
			}
		}
	}
	return "require"
}
