package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverFile     = "file"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
	DriverCouchDB  = "couchdb"
)

type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Database  DatabaseConfig
	WebSocket WebSocketConfig
	CORS      CORSConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	Env             string
	ShutdownTimeout time.Duration
}

// StorageConfig selects the memo substrate. MemoDir, BackupDir and
// BackupSuffix only apply to the file driver.
type StorageConfig struct {
	Driver       string
	MemoDir      string
	BackupDir    string
	BackupSuffix string
}

type DatabaseConfig struct {
	Host       string
	Port       string
	User       string
	Password   string
	Name       string
	SSLMode    string
	SQLitePath string
}

type WebSocketConfig struct {
	Enabled         bool
	ReadBufferSize  int
	WriteBufferSize int
	WriteWait       time.Duration
	PongWait        time.Duration
	PingPeriod      time.Duration
	MaxConns        int
}

type CORSConfig struct {
	AllowedOrigins string
	AllowedMethods string
	AllowedHeaders string
}

type LoggingConfig struct {
	Level string
}

func Load() (*Config, error) {
	godotenv.Load()

	shutdown, err := time.ParseDuration(getEnv("SHUTDOWN_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}

	pongWait, err := time.ParseDuration(getEnv("WS_PONG_WAIT", "60s"))
	if err != nil {
		return nil, fmt.Errorf("invalid WS_PONG_WAIT: %w", err)
	}
	// the ping ticker needs a positive period
	if pongWait < time.Second {
		return nil, fmt.Errorf("invalid WS_PONG_WAIT: %s is below 1s", pongWait)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			Host:            getEnv("HOST", "0.0.0.0"),
			Env:             getEnv("ENV", "development"),
			ShutdownTimeout: shutdown,
		},
		Storage: StorageConfig{
			Driver:       getEnv("STORAGE_DRIVER", DriverFile),
			MemoDir:      getEnv("MEMO_DIR", "memos"),
			BackupDir:    getEnv("BACKUP_DIR", "memos_backup"),
			BackupSuffix: getEnv("BACKUP_SUFFIX", ".bak"),
		},
		Database: DatabaseConfig{
			Host:       getEnv("DB_HOST", "localhost"),
			Port:       getEnv("DB_PORT", "5432"),
			User:       getEnv("DB_USER", "memo"),
			Password:   getEnv("DB_PASSWORD", "password"),
			Name:       getEnv("DB_NAME", "memo"),
			SSLMode:    getEnv("DB_SSLMODE", "disable"),
			SQLitePath: getEnv("SQLITE_PATH", "memo.db"),
		},
		WebSocket: WebSocketConfig{
			Enabled:         getEnvAsBool("WS_ENABLED", true),
			ReadBufferSize:  getEnvAsInt("WS_READ_BUFFER_SIZE", 1024),
			WriteBufferSize: getEnvAsInt("WS_WRITE_BUFFER_SIZE", 1024),
			WriteWait:       10 * time.Second,
			PongWait:        pongWait,
			// must stay below PongWait
			PingPeriod: pongWait * 9 / 10,
			MaxConns:   getEnvAsInt("WS_MAX_CONNECTIONS", 100),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			AllowedMethods: getEnv("CORS_ALLOWED_METHODS", "GET,POST,PUT,PATCH,DELETE,OPTIONS"),
			AllowedHeaders: getEnv("CORS_ALLOWED_HEADERS", "Content-Type"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	switch cfg.Storage.Driver {
	case DriverFile, DriverPostgres, DriverSQLite, DriverCouchDB:
	default:
		return nil, fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.Storage.Driver)
	}

	return cfg, nil
}

// PostgresDSN builds a lib/pq connection string.
func (d DatabaseConfig) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// CouchURL builds the CouchDB server URL with credentials.
func (d DatabaseConfig) CouchURL() string {
	u := url.URL{
		Scheme: "http",
		User:   url.UserPassword(d.User, d.Password),
		Host:   d.Host + ":" + d.Port,
	}
	return u.String()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
