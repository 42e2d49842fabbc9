// Package config loads settings from an optional JSON file, a .env file and
// the environment, in increasing order of precedence.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"playroomserver/internal/models"

	"github.com/joho/godotenv"
)

const (
	defaultPort            = "8080"
	defaultRedisAddr       = "localhost:6379"
	defaultSSLMode         = "disable"
	defaultStaleRoomAfter  = 24 * time.Hour
	defaultStaleOfferAfter = 7 * 24 * time.Hour
)

// DefaultPersonas is the synthetic player roster used when none is configured.
var DefaultPersonas = []models.Persona{
	{Name: "Alex the Explorer", Avatar: "🧭", Personality: "curious"},
	{Name: "Bella the Builder", Avatar: "🏗️", Personality: "creative"},
	{Name: "Charlie the Chef", Avatar: "👨‍🍳", Personality: "adventurous"},
	{Name: "Diana the Detective", Avatar: "🕵️", Personality: "analytical"},
}

// Config holds every runtime setting. JSON tags keep the config.json layout
// of the DB settings unchanged.
type Config struct {
	Port  string `json:"port"`
	Debug bool   `json:"debug"`

	DatabaseURL string `json:"database_url"`
	DBHost      string `json:"db_host"`
	DBUser      string `json:"db_user"`
	DBPassword  string `json:"db_password"`
	DBName      string `json:"db_name"`
	DBSSLMode   string `json:"db_sslmode"`

	RedisAddr     string `json:"redis_addr"`
	RedisPassword string `json:"redis_password"`
	RedisDB       int    `json:"redis_db"`

	Auth0Domain   string `json:"auth0_domain"`
	Auth0ClientID string `json:"auth0_client_id"`
	Auth0Audience string `json:"auth0_audience"`
	Auth0Issuer   string `json:"auth0_issuer"`
	Auth0JWKSURL  string `json:"auth0_jwks_url"`
	// EmailClaim is a namespaced custom claim checked when "email" is absent.
	EmailClaim string `json:"auth0_email_claim"`

	AllowedOrigins []string `json:"allowed_origins"`

	StaleRoomAfter  time.Duration `json:"-"`
	StaleOfferAfter time.Duration `json:"-"`

	Personas []models.Persona `json:"personas"`
}

// Load builds the configuration. path may name a JSON file; a missing file is
// not an error.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		Port:            defaultPort,
		DBSSLMode:       defaultSSLMode,
		RedisAddr:       defaultRedisAddr,
		AllowedOrigins:  []string{"*"},
		StaleRoomAfter:  defaultStaleRoomAfter,
		StaleOfferAfter: defaultStaleOfferAfter,
	}

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	cfg.Port = envOr("PORT", cfg.Port)
	cfg.Debug = envBool("DEBUG", cfg.Debug)
	cfg.DatabaseURL = envOr("DATABASE_URL", cfg.DatabaseURL)
	cfg.DBHost = envOr("DB_HOST", cfg.DBHost)
	cfg.DBUser = envOr("DB_USER", cfg.DBUser)
	cfg.DBPassword = envOr("DB_PASSWORD", cfg.DBPassword)
	cfg.DBName = envOr("DB_NAME", cfg.DBName)
	cfg.DBSSLMode = envOr("DB_SSLMODE", cfg.DBSSLMode)
	cfg.RedisAddr = envOr("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = envOr("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = envInt("REDIS_DB", cfg.RedisDB)
	cfg.Auth0Domain = envOr("AUTH0_DOMAIN", cfg.Auth0Domain)
	cfg.Auth0ClientID = envOr("AUTH0_CLIENT_ID", cfg.Auth0ClientID)
	cfg.Auth0Audience = envOr("AUTH0_AUDIENCE", cfg.Auth0Audience)
	cfg.Auth0Issuer = envOr("AUTH0_ISSUER", cfg.Auth0Issuer)
	cfg.Auth0JWKSURL = envOr("AUTH0_JWKS_URL", cfg.Auth0JWKSURL)
	cfg.EmailClaim = envOr("AUTH0_EMAIL_CLAIM", cfg.EmailClaim)
	cfg.AllowedOrigins = envCSV("ALLOWED_ORIGINS", cfg.AllowedOrigins)
	cfg.StaleRoomAfter = envDuration("STALE_ROOM_AFTER", cfg.StaleRoomAfter)
	cfg.StaleOfferAfter = envDuration("STALE_OFFER_AFTER", cfg.StaleOfferAfter)

	// Auth0 tenants publish their keys at a fixed location.
	if cfg.Auth0Domain != "" {
		if cfg.Auth0Issuer == "" {
			cfg.Auth0Issuer = "https://" + cfg.Auth0Domain + "/"
		}
		if cfg.Auth0JWKSURL == "" {
			cfg.Auth0JWKSURL = "https://" + cfg.Auth0Domain + "/.well-known/jwks.json"
		}
	}
	if len(cfg.Personas) == 0 {
		cfg.Personas = DefaultPersonas
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(cfg); err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}
	return nil
}

// DSN returns the Postgres connection string.
func (c Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("host=%s user=%s dbname=%s password=%s sslmode=%s",
		c.DBHost, c.DBUser, c.DBName, c.DBPassword, c.DBSSLMode)
}

// Audiences lists the accepted token audiences: the API audience for access
// tokens and the client id for id tokens.
func (c Config) Audiences() []string {
	var out []string
	for _, a := range []string{c.Auth0Audience, c.Auth0ClientID} {
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

// Validate reports settings the server cannot start without.
func (c Config) Validate() error {
	var problems []string
	if c.DatabaseURL == "" && (c.DBHost == "" || c.DBUser == "" || c.DBName == "") {
		problems = append(problems, "DATABASE_URL or DB_HOST/DB_USER/DB_NAME")
	}
	if c.Auth0Issuer == "" {
		problems = append(problems, "AUTH0_ISSUER or AUTH0_DOMAIN")
	}
	if c.Auth0JWKSURL == "" {
		problems = append(problems, "AUTH0_JWKS_URL or AUTH0_DOMAIN")
	}
	if len(c.Audiences()) == 0 {
		problems = append(problems, "AUTH0_AUDIENCE or AUTH0_CLIENT_ID")
	}
	if len(problems) > 0 {
		return fmt.Errorf("missing configuration: %s", strings.Join(problems, ", "))
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			log.Printf("invalid %s=%s, fallback to default (%d)", key, v, def)
			return def
		}
		return i
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			log.Printf("invalid %s=%s, fallback to default (%t)", key, v, def)
			return def
		}
		return b
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			log.Printf("invalid %s=%s, fallback to default (%s)", key, v, def)
			return def
		}
		return d
	}
	return def
}

func envCSV(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return def
}
