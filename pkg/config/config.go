package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/smith3v/mathquiz/pkg/logger"
	"gopkg.in/yaml.v3"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	defaultTokenTTL = 24 * time.Hour
)

type Config struct {
	Database DatabaseConfig `json:"database" yaml:"database"`
	Logging  LoggingConfig  `json:"logging" yaml:"logging"`
	Server   ServerConfig   `json:"server" yaml:"server"`
	Auth     AuthConfig     `json:"auth" yaml:"auth"`
}

// DatabaseConfig selects the store. Path is used by sqlite; the remaining
// connection fields only matter for postgres.
type DatabaseConfig struct {
	Driver   string `json:"driver" yaml:"driver"`
	Path     string `json:"path" yaml:"path"`
	Host     string `json:"host" yaml:"host"`
	User     string `json:"user" yaml:"user"`
	Password string `json:"password" yaml:"password"`
	DBName   string `json:"dbname" yaml:"dbname"`
	Port     int    `json:"port" yaml:"port"`
	SSLMode  string `json:"sslmode" yaml:"sslmode"`
}

type LoggingConfig struct {
	Level     string `json:"level" yaml:"level"`
	File      string `json:"file" yaml:"file"`
	GormLevel string `json:"gorm_level" yaml:"gorm_level"`
}

type ServerConfig struct {
	Addr           string   `json:"addr" yaml:"addr"`
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins"`
}

type AuthConfig struct {
	JWTSecret string `json:"jwt_secret" yaml:"jwt_secret"`
	TokenTTL  string `json:"token_ttl" yaml:"token_ttl"`
}

func Default() Config {
	return Config{
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			Path:   "mathquiz.db",
		},
		Logging: LoggingConfig{
			Level:     "info",
			GormLevel: "warn",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Auth: AuthConfig{
			TokenTTL: defaultTokenTTL.String(),
		},
	}
}

// Load reads a JSON or YAML config file on top of Default. The format is
// picked from the file extension; anything other than .yaml/.yml is JSON.
func Load(filename string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(filename)
	if err != nil {
		logger.Error("failed to open config file", "path", filename, "error", err)
		return cfg, err
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		logger.Error("failed to decode config file", "path", filename, "error", err)
		return cfg, err
	}
	return cfg, nil
}

// LoadEnvFile loads KEY=VALUE pairs from a dotenv file into the process
// environment. A missing file is not an error.
func LoadEnvFile(filename string) error {
	if err := godotenv.Load(filename); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

// ApplyEnv overrides cfg with MATHQUIZ_* environment variables.
func ApplyEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	setString(&cfg.Database.Driver, "MATHQUIZ_DB_DRIVER")
	setString(&cfg.Database.Path, "MATHQUIZ_DB_PATH")
	setString(&cfg.Database.Host, "MATHQUIZ_DB_HOST")
	setString(&cfg.Database.User, "MATHQUIZ_DB_USER")
	setString(&cfg.Database.Password, "MATHQUIZ_DB_PASSWORD")
	setString(&cfg.Database.DBName, "MATHQUIZ_DB_NAME")
	setString(&cfg.Database.SSLMode, "MATHQUIZ_DB_SSLMODE")
	if value, ok := os.LookupEnv("MATHQUIZ_DB_PORT"); ok {
		port, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			logger.Error("ignoring invalid MATHQUIZ_DB_PORT", "value", value, "error", err)
		} else {
			cfg.Database.Port = port
		}
	}
	setString(&cfg.Logging.Level, "MATHQUIZ_LOG_LEVEL")
	setString(&cfg.Logging.File, "MATHQUIZ_LOG_FILE")
	setString(&cfg.Server.Addr, "MATHQUIZ_ADDR")
	setString(&cfg.Auth.JWTSecret, "MATHQUIZ_JWT_SECRET")
	setString(&cfg.Auth.TokenTTL, "MATHQUIZ_TOKEN_TTL")
}

func setString(dst *string, key string) {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		*dst = strings.TrimSpace(value)
	}
}

// TokenTTLDuration parses Auth.TokenTTL, falling back to 24h when empty,
// malformed or not positive.
func (c Config) TokenTTLDuration() time.Duration {
	raw := strings.TrimSpace(c.Auth.TokenTTL)
	if raw == "" {
		return defaultTokenTTL
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return defaultTokenTTL
	}
	return d
}
