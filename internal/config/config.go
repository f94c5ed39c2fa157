// Package config loads the edit lock service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	StoreDynamoDB = "dynamodb"
	StoreRedis    = "redis"
	StoreSQLite   = "sqlite"
	StoreMemory   = "memory"

	DirectoryDynamoDB  = "dynamodb"
	DirectoryWorkspace = "workspace"
	DirectoryStatic    = "static"
)

type Config struct {
	DevMode     bool
	HTTPAddr    string
	BaseURL     string
	FrontendURL string
	LogLevel    string

	LockStore      string
	DocumentStore  string
	Directory      string
	EditLocksTable string
	DocumentsTable string
	UsersTable     string
	RedisAddr      string
	RedisPrefix    string
	SQLitePath     string

	HeartbeatInterval time.Duration
	LockWindow        time.Duration
	NonceTTL          time.Duration
	SweepInterval     time.Duration

	KMSMacKeyID               string
	JWTSecretParam            string
	NonceSecretParam          string
	APIGatewaySecretParam     string
	WorkspaceCredentialsParam string
	WorkspaceAdminSubject     string
}

func Load() Config {
	devMode := boolOrDefault("DEV_MODE", false)
	heartbeat := durationOrDefault("HEARTBEAT_INTERVAL", 60*time.Second)

	defaultStore, defaultDirectory := StoreDynamoDB, DirectoryDynamoDB
	if devMode {
		defaultStore, defaultDirectory = StoreMemory, DirectoryStatic
	}

	return Config{
		DevMode:     devMode,
		HTTPAddr:    envOrDefault("HTTP_ADDR", ":8080"),
		BaseURL:     strings.TrimSuffix(envOrDefault("BASE_URL", "http://localhost:3000"), "/"),
		FrontendURL: envOrDefault("FRONTEND_URL", "http://localhost:3000"),
		LogLevel:    envOrDefault("LOG_LEVEL", "info"),

		LockStore:      strings.ToLower(envOrDefault("LOCK_STORE", defaultStore)),
		DocumentStore:  strings.ToLower(envOrDefault("DOCUMENT_STORE", defaultStore)),
		Directory:      strings.ToLower(envOrDefault("DIRECTORY", defaultDirectory)),
		EditLocksTable: envOrDefault("EDIT_LOCKS_TABLE", "EditLocks"),
		DocumentsTable: envOrDefault("DOCUMENTS_TABLE", "Documents"),
		UsersTable:     envOrDefault("USERS_TABLE", "Users"),
		RedisAddr:      envOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPrefix:    envOrDefault("REDIS_PREFIX", "gophdocs:editlock"),
		SQLitePath:     envOrDefault("SQLITE_PATH", "./editlocks.db"),

		HeartbeatInterval: heartbeat,
		LockWindow:        durationOrDefault("LOCK_WINDOW", 2*heartbeat),
		NonceTTL:          durationOrDefault("NONCE_TTL", 12*time.Hour),
		SweepInterval:     durationOrDefault("SWEEP_INTERVAL", 30*time.Second),

		KMSMacKeyID:               envOrDefault("KMS_MAC_KEY_ID", "alias/gophdocs-nonce-key"),
		JWTSecretParam:            envOrDefault("JWT_SECRET_PARAM", "/gophdocs/jwt-secret"),
		NonceSecretParam:          envOrDefault("NONCE_SECRET_PARAM", "/gophdocs/nonce-secret"),
		APIGatewaySecretParam:     envOrDefault("API_GATEWAY_SECRET_PARAM", "/gophdocs/api-gateway-secret"),
		WorkspaceCredentialsParam: envOrDefault("WORKSPACE_CREDENTIALS_PARAM", "/gophdocs/workspace-credentials"),
		WorkspaceAdminSubject:     os.Getenv("WORKSPACE_ADMIN_SUBJECT"),
	}
}

// Validate reports configuration that cannot be started.
func (c Config) Validate() error {
	switch c.LockStore {
	case StoreDynamoDB, StoreRedis, StoreSQLite, StoreMemory:
	default:
		return fmt.Errorf("unknown LOCK_STORE %q", c.LockStore)
	}
	switch c.DocumentStore {
	case StoreDynamoDB, StoreMemory:
	default:
		return fmt.Errorf("unknown DOCUMENT_STORE %q", c.DocumentStore)
	}
	switch c.Directory {
	case DirectoryDynamoDB, DirectoryStatic:
	case DirectoryWorkspace:
		if c.WorkspaceAdminSubject == "" {
			return fmt.Errorf("DIRECTORY=workspace requires WORKSPACE_ADMIN_SUBJECT")
		}
	default:
		return fmt.Errorf("unknown DIRECTORY %q", c.Directory)
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("HEARTBEAT_INTERVAL must be positive")
	}
	if c.LockWindow <= c.HeartbeatInterval {
		return fmt.Errorf("LOCK_WINDOW (%s) must be longer than HEARTBEAT_INTERVAL (%s)", c.LockWindow, c.HeartbeatInterval)
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func durationOrDefault(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func boolOrDefault(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if value == "" {
		return fallback
	}
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
