package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server    ServerConfig
	WebSocket WebSocketConfig
	Classroom ClassroomConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	AWS       AWSConfig
	Log       LogConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all (e.g. http://localhost:3000,http://localhost:5173)
}

// WebSocketConfig holds per-connection transport settings.
type WebSocketConfig struct {
	PingInterval time.Duration
	PongWait     time.Duration
	WriteWait    time.Duration
	SendBuffer   int
	ReadLimit    int64
}

// ClassroomConfig holds session behaviour switches.
type ClassroomConfig struct {
	// StrictRoles restricts poll creation, ending and kicking to connections identified as teacher.
	StrictRoles bool
}

// DatabaseConfig holds PostgreSQL connection settings for the audit archive.
type DatabaseConfig struct {
	URL      string // empty disables the archive
	MaxConns int32
}

// Enabled reports whether the archive database is configured.
func (c DatabaseConfig) Enabled() bool { return c.URL != "" }

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string // empty disables the event mirror and report queue
	Password string
	DB       int
}

// Enabled reports whether Redis is configured.
func (c RedisConfig) Enabled() bool { return c.Addr != "" }

// AWSConfig holds AWS credentials and the reports bucket.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	ReportsBucket        string
	PresignExpireMinutes int
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string
}

// ZapLevel parses Level, falling back to info.
func (c LogConfig) ZapLevel() zapcore.Level {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(c.Level))); err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

// AllowedOrigins returns the CORS origins as a list.
func (c ServerConfig) AllowedOrigins() []string {
	return splitTrim(c.CORSAllowedOrigins, ",")
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "4000"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		WebSocket: WebSocketConfig{
			PingInterval: getEnvDuration("WS_PING_INTERVAL", 30*time.Second),
			PongWait:     getEnvDuration("WS_PONG_WAIT", 60*time.Second),
			WriteWait:    getEnvDuration("WS_WRITE_WAIT", 10*time.Second),
			SendBuffer:   getEnvInt("WS_SEND_BUFFER", 256),
			ReadLimit:    int64(getEnvInt("WS_READ_LIMIT", 65536)),
		},
		Classroom: ClassroomConfig{
			StrictRoles: getEnvBool("CLASSROOM_STRICT_ROLES", false),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 0)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			ReportsBucket:        getEnv("AWS_S3_REPORTS_BUCKET", "classroom-reports"),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	var errs []error
	if port, err := strconv.Atoi(c.Server.Port); err != nil || port <= 0 || port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be a valid TCP port, got %q", c.Server.Port))
	}
	if c.WebSocket.PingInterval <= 0 {
		errs = append(errs, errors.New("WS_PING_INTERVAL must be positive"))
	}
	if c.WebSocket.PongWait <= c.WebSocket.PingInterval {
		errs = append(errs, errors.New("WS_PONG_WAIT must be longer than WS_PING_INTERVAL"))
	}
	if c.WebSocket.WriteWait <= 0 {
		errs = append(errs, errors.New("WS_WRITE_WAIT must be positive"))
	}
	if c.WebSocket.SendBuffer <= 0 {
		errs = append(errs, errors.New("WS_SEND_BUFFER must be positive"))
	}
	if c.WebSocket.ReadLimit <= 0 {
		errs = append(errs, errors.New("WS_READ_LIMIT must be positive"))
	}
	if c.Database.MaxConns < 0 {
		errs = append(errs, errors.New("DB_MAX_CONNS must not be negative"))
	}
	if c.Redis.DB < 0 {
		errs = append(errs, errors.New("REDIS_DB must not be negative"))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("45s") or bare seconds ("45").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(s, sep) {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}
