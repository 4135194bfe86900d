package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string

	// Database
	SQLiteDBPath string

	// Auth
	JWTSecret string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Receipt interpretation
	VisionEndpoint         string
	VisionAPIKey           string
	VisionModel            string
	VisionTimeout          time.Duration
	VisionFallbackCategory string

	// Spreadsheet export
	ExportBackend            string // "webhook", "sheets" or "memory"
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string

	// Export worker
	ExportBatchSize  int
	ExportInterval   time.Duration
	ExportMaxRetries int
}

func Load() *Config {
	cfg := &Config{
		Port:         getEnv("PORT", "8082"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/huishoudboek.db"),

		JWTSecret: getEnv("JWT_SECRET", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "huishoudboek"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "export_expenses"),

		VisionEndpoint:         getEnv("VISION_ENDPOINT", ""),
		VisionAPIKey:           getEnv("VISION_API_KEY", ""),
		VisionModel:            getEnv("VISION_MODEL", "gemini-2.0-flash"),
		VisionTimeout:          getEnvDuration("VISION_TIMEOUT", 30*time.Second),
		VisionFallbackCategory: getEnv("VISION_FALLBACK_CATEGORY", "Overig"),

		ExportBackend:            getEnv("EXPORT_BACKEND", "webhook"),
		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),

		ExportBatchSize:  getEnvInt("EXPORT_BATCH_SIZE", 10),
		ExportInterval:   getEnvDuration("EXPORT_INTERVAL", 30*time.Second),
		ExportMaxRetries: getEnvInt("EXPORT_MAX_RETRIES", 3),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid.
// Missing vision credentials are not a validation error: they put the
// server in the setup-required state instead (see SetupIssues).
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		// Check if directory exists or can be created
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.JWTSecret == "" {
		errors = append(errors, "JWT_SECRET must be set")
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	validBackends := []string{"webhook", "sheets", "memory"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.ExportBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid export backend '%s': must be one of %v", c.ExportBackend, validBackends))
	}

	// Validate Google Sheets configuration if backend is sheets
	if c.ExportBackend == "sheets" {
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets export backend")
		}
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when using sheets export backend")
		}
		hasFile := c.GoogleServiceAccountFile != ""
		hasJSON := c.GoogleServiceAccountJSON != ""
		if !hasFile && !hasJSON {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided for sheets export backend")
		}
		if hasFile {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	// Validate export worker configuration
	if c.ExportBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid export batch size %d: must be at least 1", c.ExportBatchSize))
	} else if c.ExportBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid export batch size %d: must be at most 1000", c.ExportBatchSize))
	}

	if c.ExportInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid export interval %v: must be at least 1 second", c.ExportInterval))
	} else if c.ExportInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid export interval %v: must be at most 24 hours", c.ExportInterval))
	}

	if c.VisionTimeout < time.Second || c.VisionTimeout > 5*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid vision timeout %v: must be between 1 second and 5 minutes", c.VisionTimeout))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// SetupIssues reports why receipt scanning is unavailable. A non-empty
// result means the server runs in the degraded setup-required state: CRUD
// keeps working, scan endpoints answer with a setup payload.
func (c *Config) SetupIssues() []string {
	var issues []string
	if isPlaceholder(c.VisionEndpoint) {
		issues = append(issues, "VISION_ENDPOINT is missing or a placeholder")
	} else if u, err := url.Parse(c.VisionEndpoint); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		issues = append(issues, fmt.Sprintf("VISION_ENDPOINT '%s' is not a valid http(s) URL", c.VisionEndpoint))
	}
	if isPlaceholder(c.VisionAPIKey) {
		issues = append(issues, "VISION_API_KEY is missing or a placeholder")
	}
	return issues
}

// SetupRequired reports whether the vision integration is unconfigured.
func (c *Config) SetupRequired() bool {
	return len(c.SetupIssues()) > 0
}

// isPlaceholder detects empty values and the placeholder strings that ship
// in example env files.
func isPlaceholder(v string) bool {
	v = strings.TrimSpace(strings.ToLower(v))
	switch v {
	case "", "changeme", "change-me", "placeholder", "todo":
		return true
	}
	return strings.HasPrefix(v, "your-") || strings.HasPrefix(v, "your_") || strings.HasPrefix(v, "<")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
