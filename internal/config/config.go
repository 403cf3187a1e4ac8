package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"limitd/internal/models"
)

// Load loads configuration from file and environment variables
func Load(configPath string) (*models.Config, error) {
	// Start with default configuration
	config := models.NewDefaultConfig()

	// Load from file if provided and exists
	if configPath != "" {
		if err := loadFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Override with environment variables
	loadFromEnvironment(config)

	// Validate the final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(config *models.Config, filePath string) error {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", filePath)
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return nil
}

// loadFromEnvironment loads configuration from environment variables
func loadFromEnvironment(config *models.Config) {
	// Server configuration
	if port := os.Getenv("LIMITD_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if host := os.Getenv("LIMITD_HOST"); host != "" {
		config.Server.Host = host
	}

	if timeout := os.Getenv("LIMITD_READ_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Server.ReadTimeout = d
		}
	}

	if timeout := os.Getenv("LIMITD_WRITE_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Server.WriteTimeout = d
		}
	}

	if timeout := os.Getenv("LIMITD_IDLE_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Server.IdleTimeout = d
		}
	}

	if tls := os.Getenv("LIMITD_TLS_ENABLED"); tls != "" {
		config.Server.TLSEnabled = strings.ToLower(tls) == "true"
	}

	if certFile := os.Getenv("LIMITD_TLS_CERT_FILE"); certFile != "" {
		config.Server.TLSCertFile = certFile
	}

	if keyFile := os.Getenv("LIMITD_TLS_KEY_FILE"); keyFile != "" {
		config.Server.TLSKeyFile = keyFile
	}

	// Storage configuration
	if storageType := os.Getenv("LIMITD_STORAGE_TYPE"); storageType != "" {
		config.Storage.Type = storageType
	}

	if storagePath := os.Getenv("LIMITD_STORAGE_PATH"); storagePath != "" {
		config.Storage.Path = storagePath
	}

	if dsn := os.Getenv("LIMITD_DATABASE_DSN"); dsn != "" {
		config.Storage.Database.DSN = dsn
	}

	if maxOpen := os.Getenv("LIMITD_DATABASE_MAX_OPEN_CONNS"); maxOpen != "" {
		if conns, err := strconv.Atoi(maxOpen); err == nil {
			config.Storage.Database.MaxOpenConns = conns
		}
	}

	if maxIdle := os.Getenv("LIMITD_DATABASE_MAX_IDLE_CONNS"); maxIdle != "" {
		if conns, err := strconv.Atoi(maxIdle); err == nil {
			config.Storage.Database.MaxIdleConns = conns
		}
	}

	// Security configuration
	if auth := os.Getenv("LIMITD_ENABLE_AUTH"); auth != "" {
		config.Security.EnableAuth = strings.ToLower(auth) == "true"
	}

	if token := os.Getenv("LIMITD_ADMIN_TOKEN"); token != "" {
		config.Security.AdminToken = token
	}

	if marker := os.Getenv("LIMITD_INTERNAL_HEADER_VALUE"); marker != "" {
		config.Security.InternalHeaderValue = marker
	}

	// Limiter configuration
	if enabled := os.Getenv("LIMITD_LIMITER_ENABLED"); enabled != "" {
		config.Limiter.Enabled = strings.ToLower(enabled) == "true"
	}

	if store := os.Getenv("LIMITD_COUNTER_STORE"); store != "" {
		config.Limiter.Store = store
	}

	if prefixes := os.Getenv("LIMITD_STRICT_PREFIXES"); prefixes != "" {
		config.Limiter.StrictPrefixes = splitPrefixes(prefixes)
	}

	if prefixes := os.Getenv("LIMITD_EXEMPT_PREFIXES"); prefixes != "" {
		config.Limiter.ExemptPrefixes = splitPrefixes(prefixes)
	}

	if url := os.Getenv("LIMITD_SETTINGS_URL"); url != "" {
		config.Limiter.SettingsURL = url
	}

	if ttl := os.Getenv("LIMITD_SETTINGS_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			config.Limiter.SettingsTTL = d
		}
	}

	if interval := os.Getenv("LIMITD_SWEEP_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			config.Limiter.SweepInterval = d
		}
	}

	if url := os.Getenv("LIMITD_WARNINGS_URL"); url != "" {
		config.Limiter.WarningsURL = url
	}

	if buffer := os.Getenv("LIMITD_WARNING_BUFFER"); buffer != "" {
		if n, err := strconv.Atoi(buffer); err == nil {
			config.Limiter.WarningBuffer = n
		}
	}

	if rate := os.Getenv("LIMITD_WARNINGS_PER_SECOND"); rate != "" {
		if f, err := strconv.ParseFloat(rate, 64); err == nil {
			config.Limiter.WarningsPerSecond = f
		}
	}

	// Redis configuration
	if addr := os.Getenv("LIMITD_REDIS_ADDR"); addr != "" {
		config.Limiter.Redis.Addr = addr
	}

	if password := os.Getenv("LIMITD_REDIS_PASSWORD"); password != "" {
		config.Limiter.Redis.Password = password
	}

	if db := os.Getenv("LIMITD_REDIS_DB"); db != "" {
		if dbNum, err := strconv.Atoi(db); err == nil {
			config.Limiter.Redis.DB = dbNum
		}
	}

	if poolSize := os.Getenv("LIMITD_REDIS_POOL_SIZE"); poolSize != "" {
		if size, err := strconv.Atoi(poolSize); err == nil {
			config.Limiter.Redis.PoolSize = size
		}
	}

	// Logging configuration
	if level := os.Getenv("LIMITD_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if format := os.Getenv("LIMITD_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}

	if output := os.Getenv("LIMITD_LOG_OUTPUT"); output != "" {
		config.Logging.Output = output
	}

	if filePath := os.Getenv("LIMITD_LOG_FILE_PATH"); filePath != "" {
		config.Logging.FilePath = filePath
	}

	// Metrics configuration
	if metrics := os.Getenv("LIMITD_METRICS_ENABLED"); metrics != "" {
		config.Metrics.Enabled = strings.ToLower(metrics) == "true"
	}

	if path := os.Getenv("LIMITD_METRICS_PATH"); path != "" {
		config.Metrics.Path = path
	}

	if port := os.Getenv("LIMITD_METRICS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Metrics.Port = p
		}
	}
}

// splitPrefixes parses a comma-separated prefix list from the environment.
func splitPrefixes(raw string) []string {
	parts := strings.Split(raw, ",")
	prefixes := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			prefixes = append(prefixes, p)
		}
	}
	return prefixes
}

// SaveExample saves an example configuration file
func SaveExample(filePath string) error {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Get default config with some example values
	config := models.NewDefaultConfig()

	// Enable authentication for example
	config.Security.EnableAuth = true
	config.Security.AdminToken = "your-admin-token-here"

	// Example TLS configuration
	config.Server.TLSEnabled = false
	config.Server.TLSCertFile = "/path/to/cert.pem"
	config.Server.TLSKeyFile = "/path/to/key.pem"

	// Marshal to YAML
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// Write to file
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
