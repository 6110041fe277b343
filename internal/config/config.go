// Package config handles application configuration.
package config

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/hkdf"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	Port    int
	BaseURL string

	// Database
	DatabaseURL string

	// Data directory (database, backups, exports)
	DataDir string

	// Licensing
	LicenseKey        string        // Signed license token, empty means free tier
	LicenseSigningKey string        // Secret used to verify license signatures
	LicenseCacheTTL   time.Duration // How long validated license verdicts are cached

	// Security
	AppSecret     string // Secret for deriving the encryption key
	EncryptionKey []byte // 32-byte key for AES-256-GCM encryption
	APIKeyHash    string // Pre-hashed API key; empty disables API auth (local mode)

	// CORS
	CORSOrigins []string

	// Worker
	WorkerEnabled             bool
	WorkerPollInterval        time.Duration // How often to poll for unconverted inbox items
	WorkerConcurrency         int           // Number of concurrent conversion workers
	WorkerShutdownGracePeriod time.Duration // Max time to wait for running conversions during shutdown

	// Backup
	BackupEnabled   bool          // Enable scheduled backups
	BackupInterval  time.Duration // How often to run scheduled backups (default 24h)
	BackupDir       string        // Where archives are written (default {DataDir}/backups)
	BackupRetention int           // How many local archives to keep (0 = keep all)

	// Object Storage (S3-compatible) for cloud backup and export upload
	StorageEnabled   bool
	StorageEndpoint  string // AWS_ENDPOINT_URL_S3 for S3-compatible providers
	StorageAccessKey string // AWS_ACCESS_KEY_ID
	StorageSecretKey string // AWS_SECRET_ACCESS_KEY
	StorageBucket    string // Bucket name
	StorageRegion    string // Region (auto for most S3-compatible providers)

	// Log filters
	LogFilterPath string // Local JSON file with slog filter definitions

	// Quiet period after which the server exits on its own (0 disables)
	IdleTimeout time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	dataDir := getEnv("CELLARLOG_DATA_DIR", defaultDataDir())

	cfg := &Config{
		Port:    getEnvInt("PORT", 8180),
		BaseURL: getEnv("BASE_URL", "http://localhost:8180"),
		DataDir: dataDir,

		LicenseKey:        getEnv("CELLARLOG_LICENSE_KEY", ""),
		LicenseSigningKey: getEnv("CELLARLOG_LICENSE_SIGNING_KEY", ""),
		LicenseCacheTTL:   getEnvDuration("CELLARLOG_LICENSE_CACHE_TTL", 1*time.Hour),

		AppSecret:  getEnv("CELLARLOG_SECRET", ""),
		APIKeyHash: getEnv("CELLARLOG_API_KEY_HASH", ""),

		CORSOrigins: getEnvSlice("CORS_ORIGINS", []string{"http://localhost:3000"}),

		// Object Storage (S3-compatible)
		StorageEndpoint:  getEnv("AWS_ENDPOINT_URL_S3", ""),
		StorageAccessKey: getEnv("AWS_ACCESS_KEY_ID", ""),
		StorageSecretKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		StorageBucket:    getEnvWithFallback("BUCKET_NAME", "STORAGE_BUCKET", ""),
		StorageRegion:    getEnv("AWS_REGION", "auto"),

		LogFilterPath: getEnv("CELLARLOG_LOG_FILTERS", ""),

		IdleTimeout: getEnvDuration("IDLE_TIMEOUT", 0),
	}

	cfg.DatabaseURL = getEnv("DATABASE_URL", defaultDatabaseURL(dataDir))

	// Enable storage if bucket is configured
	cfg.StorageEnabled = cfg.StorageBucket != "" && cfg.StorageEndpoint != ""

	// Worker configuration
	cfg.WorkerEnabled = getEnvBool("WORKER_ENABLED", true)
	cfg.WorkerPollInterval = getEnvDuration("WORKER_POLL_INTERVAL", 5*time.Second)
	cfg.WorkerConcurrency = getEnvInt("WORKER_CONCURRENCY", 2)
	cfg.WorkerShutdownGracePeriod = getEnvDuration("WORKER_SHUTDOWN_GRACE_PERIOD", 1*time.Minute)

	// Backup configuration
	cfg.BackupEnabled = getEnvBool("BACKUP_ENABLED", false)
	cfg.BackupInterval = getEnvDuration("BACKUP_INTERVAL", 24*time.Hour)
	cfg.BackupDir = getEnv("BACKUP_DIR", filepath.Join(dataDir, "backups"))
	cfg.BackupRetention = getEnvInt("BACKUP_RETENTION", 7)

	if cfg.WorkerConcurrency < 1 {
		return nil, fmt.Errorf("WORKER_CONCURRENCY must be at least 1")
	}

	// A license key without a verification secret can never validate
	if cfg.LicenseKey != "" && cfg.LicenseSigningKey == "" {
		return nil, fmt.Errorf("CELLARLOG_LICENSE_SIGNING_KEY is required when CELLARLOG_LICENSE_KEY is set")
	}

	// Generate a random app secret if not provided (local single-user mode)
	if cfg.AppSecret == "" {
		cfg.AppSecret = generateRandomSecret(64)
	}

	// Set up encryption key (derive from app secret if not explicitly set)
	encKeyStr := getEnv("ENCRYPTION_KEY", "")
	if encKeyStr != "" {
		decoded, err := base64.StdEncoding.DecodeString(encKeyStr)
		if err != nil || len(decoded) != 32 {
			return nil, fmt.Errorf("ENCRYPTION_KEY must be a base64-encoded 32-byte key")
		}
		cfg.EncryptionKey = decoded
	} else {
		cfg.EncryptionKey = deriveEncryptionKey(cfg.AppSecret)
	}

	return cfg, nil
}

// EnsureDataDir creates the data and backup directories if they don't exist.
func (c *Config) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir %s: %w", c.DataDir, err)
	}
	if err := os.MkdirAll(c.BackupDir, 0o755); err != nil {
		return fmt.Errorf("creating backup dir %s: %w", c.BackupDir, err)
	}
	return nil
}

// DatabasePath returns the filesystem path of a local file: database URL,
// or "" when the URL points at a remote database.
func (c *Config) DatabasePath() string {
	url := c.DatabaseURL
	if !strings.HasPrefix(url, "file:") {
		return ""
	}
	path := strings.TrimPrefix(url, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return path
}

// AuthRequired returns true if API requests must present an API key.
func (c *Config) AuthRequired() bool {
	return c.APIKeyHash != ""
}

// defaultDataDir returns ~/.cellarlog, falling back to the working
// directory when the home directory cannot be resolved.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cellarlog"
	}
	return filepath.Join(home, ".cellarlog")
}

func defaultDatabaseURL(dataDir string) string {
	return "file:" + filepath.Join(dataDir, "cellarlog.db") + "?_journal=WAL&_timeout=5000"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "true" || lower == "1" || lower == "yes"
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

func getEnvWithFallback(primary, fallback, defaultValue string) string {
	if value := os.Getenv(primary); value != "" {
		return value
	}
	if value := os.Getenv(fallback); value != "" {
		return value
	}
	return defaultValue
}

func generateRandomSecret(length int) string {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback (should never happen)
		return "cellarlog-secret-change-me-" + base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("%d", time.Now().UnixNano())))
	}
	return base64.URLEncoding.EncodeToString(bytes)
}

// deriveEncryptionKey creates a 32-byte AES-256 key from a secret string using HKDF.
// HKDF (HMAC-based Key Derivation Function) is appropriate for deriving keys from
// high-entropy secrets. For low-entropy passwords, use Argon2 instead.
func deriveEncryptionKey(secret string) []byte {
	// Salt is fixed but unique to this application; info binds the key
	// to its purpose.
	salt := []byte("cellarlog-encryption-key-v1")
	info := []byte("aes-256-gcm-encryption")

	hkdfReader := hkdf.New(sha256.New, []byte(secret), salt, info)

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdfReader, key); err != nil {
		// This should never happen with valid inputs
		panic("hkdf: failed to derive key: " + err.Error())
	}

	return key
}
