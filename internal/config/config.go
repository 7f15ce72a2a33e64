package config

import (
	"errors"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultMaxAttachmentBytes = 10 * 1024 * 1024

type Config struct {
	Port               string `mapstructure:"PORT"`
	DBUrl              string `mapstructure:"DB_URL"`
	JWTSecret          string `mapstructure:"JWT_SECRET"`
	RedisURL           string `mapstructure:"REDIS_URL"`
	SupabaseURL        string `mapstructure:"SUPABASE_URL"`
	SupabaseBucket     string `mapstructure:"SUPABASE_BUCKET"`
	SupabaseServiceKey string `mapstructure:"SUPABASE_SERVICE_KEY"`
	AppEnv             string `mapstructure:"APP_ENV"`
	AllowedOrigins     string `mapstructure:"ALLOWED_ORIGINS"`
	MaxAttachmentBytes int64  `mapstructure:"MAX_ATTACHMENT_BYTES"`
	WSMaxConnsPerUser  int    `mapstructure:"WS_MAX_CONNS_PER_USER"`
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("PORT", "8080")
	v.SetDefault("DB_URL", "")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("REDIS_URL", "localhost:6379")
	v.SetDefault("SUPABASE_URL", "")
	v.SetDefault("SUPABASE_BUCKET", "")
	v.SetDefault("SUPABASE_SERVICE_KEY", "")
	v.SetDefault("APP_ENV", "production")
	v.SetDefault("ALLOWED_ORIGINS", "*")
	v.SetDefault("MAX_ATTACHMENT_BYTES", defaultMaxAttachmentBytes)
	v.SetDefault("WS_MAX_CONNS_PER_USER", 5)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.AppEnv = normalizeEnv(cfg.AppEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.MaxAttachmentBytes <= 0 {
		c.MaxAttachmentBytes = defaultMaxAttachmentBytes
	}
	if c.WSMaxConnsPerUser <= 0 {
		c.WSMaxConnsPerUser = 5
	}
	if c.AppEnv == "production" && len(c.JWTSecret) < 32 {
		log.Println("WARNING: JWT_SECRET is shorter than 32 characters in production")
	}
	return nil
}

func (c *Config) StorageConfigured() bool {
	return c != nil && c.SupabaseURL != "" && c.SupabaseBucket != "" && c.SupabaseServiceKey != ""
}

func (c *Config) IsDevelopment() bool {
	return c != nil && c.AppEnv == "development"
}

func normalizeEnv(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "dev", "develop", "development", "local":
		return "development"
	case "prod", "production":
		return "production"
	case "stage", "staging":
		return "staging"
	case "test", "testing":
		return "test"
	default:
		return strings.ToLower(strings.TrimSpace(value))
	}
}
