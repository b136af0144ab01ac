// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds the application configuration.
type Config struct {
	App       AppConfig
	Logger    LoggerConfig
	Stream    StreamConfig
	Labels    LabelsConfig
	Hydration HydrationConfig
	Blobs     BlobsConfig
	Storage   StorageConfig
	Data      DataConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string `validate:"required,oneof=development staging production"`
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string `validate:"required,oneof=debug info warn error"`
}

// StreamConfig holds the label stream connection settings.
type StreamConfig struct {
	// Endpoint is the subscribeLabels websocket URL.
	Endpoint string `validate:"required,startswith=ws"`
	// Username/Password are an optional credential pair for the stream.
	Username string
	Password string
}

// LabelsConfig holds label capture settings.
type LabelsConfig struct {
	// Allowlist restricts which label values are captured.
	// Empty means capture all.
	Allowlist []string
}

// HydrationConfig holds dependent-fetch settings.
type HydrationConfig struct {
	// AppviewEndpoint serves record and repo lookups.
	AppviewEndpoint string `validate:"required,http_url"`
	// PLCEndpoint is the identity directory used for origin resolution.
	PLCEndpoint string `validate:"required,http_url"`

	// RPS is the shared outbound requests-per-second ceiling.
	RPS float64 `validate:"gt=0"`
	// Burst is the token bucket burst size.
	Burst int `validate:"gte=1"`
	// MaxInflight bounds concurrently in-flight outbound calls.
	MaxInflight int64 `validate:"gte=1"`
	// MaxWait is the longest an outbound call may wait for admission.
	MaxWait time.Duration
}

// BlobsConfig holds blob processing settings.
type BlobsConfig struct {
	// DownloadEnabled authorizes persisting blob bytes (default: false).
	// Fingerprints are computed either way.
	DownloadEnabled bool
}

// StorageConfig selects the blob storage backend.
type StorageConfig struct {
	// Backend is "local" or "s3".
	Backend string `validate:"oneof=local s3"`
	// LocalPath is the blob directory for the local backend
	// (default: {data}/blobs-root).
	LocalPath string
	// S3Bucket and S3Region configure the remote backend.
	S3Bucket string
	S3Region string
}

// DataConfig holds local state paths.
type DataConfig struct {
	// BasePath is the directory for the record database and cursor file
	// (default: ~/skywatch/data).
	BasePath string `validate:"required"`
}

// Load builds configuration with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func Load() (*Config, error) {
	// Define command-line flags.
	env := flag.String("env", "", "Environment (development, staging, production)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")

	streamEndpoint := flag.String("stream-endpoint", "", "Label stream websocket URL")
	streamUsername := flag.String("stream-username", "", "Stream credential username")
	streamPassword := flag.String("stream-password", "", "Stream credential password")

	labelAllowlist := flag.String("label-allowlist", "", "Comma-separated label values to capture (empty = all)")

	appviewEndpoint := flag.String("appview-endpoint", "", "Record fetch endpoint")
	plcEndpoint := flag.String("plc-endpoint", "", "Identity directory endpoint")
	hydrationRPS := flag.String("hydration-rps", "", "Outbound requests per second (default: 8)")
	hydrationBurst := flag.String("hydration-burst", "", "Outbound burst size (default: 16)")
	hydrationMaxInflight := flag.String("hydration-max-inflight", "", "Max concurrent outbound calls (default: 32)")
	hydrationMaxWait := flag.String("hydration-max-wait", "", "Max admission wait for outbound calls (default: 30s)")

	downloadBlobs := flag.String("download-blobs", "", "Authorize blob downloads (default: false)")
	storageBackend := flag.String("storage-backend", "", "Blob storage backend: local or s3 (default: local)")
	storageLocalPath := flag.String("storage-local-path", "", "Directory for the local blob backend")
	storageS3Bucket := flag.String("storage-s3-bucket", "", "Bucket for the s3 blob backend")
	storageS3Region := flag.String("storage-s3-region", "", "Region for the s3 blob backend")

	dataPath := flag.String("data-path", "", "Base path for database and cursor state")
	envFile := flag.String("env-file", ".env", "Path to .env file")

	flag.Parse()

	get := func(flagValue, envKey, def string) string {
		return configValue(flagValue, envKey, def)
	}

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: get(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: get(*logLevel, "LOG_LEVEL", "info"),
		},
		Stream: StreamConfig{
			Endpoint: get(*streamEndpoint, "STREAM_ENDPOINT", ""),
			Username: get(*streamUsername, "STREAM_USERNAME", ""),
			Password: get(*streamPassword, "STREAM_PASSWORD", ""),
		},
		Labels: LabelsConfig{
			Allowlist: splitList(get(*labelAllowlist, "LABEL_ALLOWLIST", "")),
		},
		Hydration: HydrationConfig{
			AppviewEndpoint: get(*appviewEndpoint, "APPVIEW_ENDPOINT", "https://public.api.bsky.app"),
			PLCEndpoint:     get(*plcEndpoint, "PLC_ENDPOINT", "https://plc.directory"),
			RPS:             floatValue(get(*hydrationRPS, "HYDRATION_RPS", "8")),
			Burst:           intValue(get(*hydrationBurst, "HYDRATION_BURST", "16"), 16),
			MaxInflight:     int64(intValue(get(*hydrationMaxInflight, "HYDRATION_MAX_INFLIGHT", "32"), 32)),
		},
		Blobs: BlobsConfig{
			DownloadEnabled: boolValue(get(*downloadBlobs, "DOWNLOAD_BLOBS", ""), false),
		},
		Storage: StorageConfig{
			Backend:   get(*storageBackend, "STORAGE_BACKEND", "local"),
			LocalPath: get(*storageLocalPath, "STORAGE_LOCAL_PATH", ""),
			S3Bucket:  get(*storageS3Bucket, "STORAGE_S3_BUCKET", ""),
			S3Region:  get(*storageS3Region, "STORAGE_S3_REGION", ""),
		},
		Data: DataConfig{
			BasePath: get(*dataPath, "DATA_PATH", ""),
		},
	}

	maxWaitStr := get(*hydrationMaxWait, "HYDRATION_MAX_WAIT", "30s")
	maxWait, err := time.ParseDuration(maxWaitStr)
	if err != nil {
		return nil, fmt.Errorf("invalid hydration max wait %q: %w", maxWaitStr, err)
	}
	cfg.Hydration.MaxWait = maxWait

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	// Cross-field checks the tag language does not express.
	if c.Storage.Backend == "s3" {
		if c.Storage.S3Bucket == "" || c.Storage.S3Region == "" {
			return fmt.Errorf("s3 storage backend requires STORAGE_S3_BUCKET and STORAGE_S3_REGION")
		}
	}
	if (c.Stream.Username == "") != (c.Stream.Password == "") {
		return fmt.Errorf("stream credentials must be set as a pair or not at all")
	}

	return nil
}

// CursorPath returns the cursor file location under the data directory.
func (c *Config) CursorPath() string {
	return filepath.Join(c.Data.BasePath, "cursor")
}

// DatabasePath returns the record database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Data.BasePath, "db")
}

// expandPaths applies defaults and makes paths absolute.
func (c *Config) expandPaths() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	c.Data.BasePath, err = expandPath(c.Data.BasePath, filepath.Join(homeDir, "skywatch", "data"))
	if err != nil {
		return fmt.Errorf("invalid data path: %w", err)
	}

	defaultBlobs := filepath.Join(c.Data.BasePath, "blobs-root")
	c.Storage.LocalPath, err = expandPath(c.Storage.LocalPath, defaultBlobs)
	if err != nil {
		return fmt.Errorf("invalid storage local path: %w", err)
	}

	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty, the default is used.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		path = defaultPath
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// configValue returns the first non-empty value from flag, env var, or default.
func configValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// boolValue parses a bool setting.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func boolValue(value string, defaultValue bool) bool {
	if value == "" {
		return defaultValue
	}
	value = strings.ToLower(value)
	return value == "true" || value == "1" || value == "yes"
}

// intValue parses an int setting, falling back to the default.
func intValue(value string, defaultValue int) int {
	if value == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(value, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

// floatValue parses a float setting; zero fails validation later.
func floatValue(value string) float64 {
	var result float64
	if _, err := fmt.Sscanf(value, "%g", &result); err != nil {
		return 0
	}
	return result
}

// splitList parses a comma-separated list, dropping empty entries.
func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments.
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		value = strings.Trim(value, `"'`)

		// Only set if not already set (env vars take precedence over .env file).
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
