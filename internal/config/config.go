package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v10"
)

// Drivers de almacenamiento de documentos soportados.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMongo    = "mongo"
	StoreDriverSQLite   = "sqlite"
	StoreDriverMemory   = "memory"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort      string `env:"HTTP_PORT" envDefault:"8080"`
	JWTSecret     string `env:"JWT_SECRET,required"`
	JWTTTLMinutes int    `env:"JWT_TTL_MINUTES" envDefault:"1440"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres"`
	DatabaseURL string `env:"DATABASE_URL"`
	MongoURI    string `env:"MONGO_URI"`
	MongoDB     string `env:"MONGO_DB" envDefault:"dado"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"dado.db"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPass     string `env:"SMTP_PASS"`
	SMTPFrom     string `env:"SMTP_FROM"`
	SMTPFromName string `env:"SMTP_FROM_NAME" envDefault:"El dado de oro"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	TOTPIssuer        string   `env:"TOTP_ISSUER" envDefault:"El Dado de Oro"`
	MFAMaxAttempts    int      `env:"MFA_MAX_ATTEMPTS" envDefault:"5"`
	MFALockoutMinutes int      `env:"MFA_LOCKOUT_MINUTES" envDefault:"15"`
	CORSAllowedOrigin []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate revisa los requisitos que dependen del driver elegido.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("DATABASE_URL is required for store driver %q", c.StoreDriver)
		}
	case StoreDriverMongo:
		if strings.TrimSpace(c.MongoURI) == "" {
			return fmt.Errorf("MONGO_URI is required for store driver %q", c.StoreDriver)
		}
	case StoreDriverSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("SQLITE_PATH is required for store driver %q", c.StoreDriver)
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("unknown store driver %q", c.StoreDriver)
	}
	if c.MFAMaxAttempts <= 0 {
		return fmt.Errorf("MFA_MAX_ATTEMPTS must be positive")
	}
	if c.MFALockoutMinutes <= 0 {
		return fmt.Errorf("MFA_LOCKOUT_MINUTES must be positive")
	}
	return nil
}
