package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig     `json:"server"`
	Database   DatabaseConfig   `json:"database"`
	RabbitMQ   RabbitMQConfig   `json:"rabbitmq"`
	JWT        JWTConfig        `json:"jwt"`
	Cookie     CookieConfig     `json:"cookie"`
	Cloudinary CloudinaryConfig `json:"cloudinary"`
	Redis      RedisConfig      `json:"redis"`
	RateLimit  RateLimitConfig  `json:"rate_limit"`
	CORS       CORSConfig       `json:"cors"`
}

type ServerConfig struct {
	Port string `json:"port"`
}

type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

// DSN builds a lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// RabbitMQ is optional; an empty host means notifications are written in-process.
type RabbitMQConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
}

func (r RabbitMQConfig) Enabled() bool {
	return r.Host != ""
}

type JWTConfig struct {
	Secret          string `json:"secret"`
	ExpirationHours int    `json:"expiration_hours"`
}

func (j JWTConfig) Lifetime() time.Duration {
	return time.Duration(j.ExpirationHours) * time.Hour
}

type CookieConfig struct {
	Name   string `json:"name"`
	Secure bool   `json:"secure"`
}

type CloudinaryConfig struct {
	CloudName string `json:"cloud_name"`
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
}

func (c CloudinaryConfig) Enabled() bool {
	return c.CloudName != "" && c.APIKey != "" && c.APISecret != ""
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

type RateLimitConfig struct {
	LoginAttempts int `json:"login_attempts"`
	WindowMinutes int `json:"window_minutes"`
}

func (r RateLimitConfig) Window() time.Duration {
	return time.Duration(r.WindowMinutes) * time.Minute
}

type CORSConfig struct {
	AllowedOrigins []string `json:"allowed_origins"`
}

// LoadConfig reads the JSON config at path (if present), then applies
// .env and environment overrides and fills defaults.
func LoadConfig(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	var config Config

	file, err := os.Open(path)
	switch {
	case err == nil:
		defer file.Close()
		decoder := json.NewDecoder(file)
		if err := decoder.Decode(&config); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	if err := applyEnv(&config); err != nil {
		return nil, err
	}
	applyDefaults(&config)

	if config.JWT.Secret == "" {
		return nil, errors.New("jwt secret is required (jwt.secret or JWT_SECRET)")
	}

	return &config, nil
}

func applyEnv(c *Config) error {
	setString(&c.Server.Port, "PORT")

	setString(&c.Database.Host, "DB_HOST")
	setString(&c.Database.Port, "DB_PORT")
	setString(&c.Database.User, "DB_USER")
	setString(&c.Database.Password, "DB_PASSWORD")
	setString(&c.Database.DBName, "DB_NAME")
	setString(&c.Database.SSLMode, "DB_SSLMODE")

	setString(&c.RabbitMQ.Host, "RABBITMQ_HOST")
	setString(&c.RabbitMQ.Port, "RABBITMQ_PORT")
	setString(&c.RabbitMQ.User, "RABBITMQ_USER")
	setString(&c.RabbitMQ.Password, "RABBITMQ_PASSWORD")

	setString(&c.JWT.Secret, "JWT_SECRET")
	if err := setInt(&c.JWT.ExpirationHours, "JWT_EXPIRATION_HOURS"); err != nil {
		return err
	}

	setString(&c.Cookie.Name, "COOKIE_NAME")
	if v, ok := os.LookupEnv("COOKIE_SECURE"); ok {
		secure, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid COOKIE_SECURE: %w", err)
		}
		c.Cookie.Secure = secure
	}

	setString(&c.Cloudinary.CloudName, "CLOUDINARY_CLOUD_NAME")
	setString(&c.Cloudinary.APIKey, "CLOUDINARY_API_KEY")
	setString(&c.Cloudinary.APISecret, "CLOUDINARY_API_SECRET")

	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	if err := setInt(&c.Redis.DB, "REDIS_DB"); err != nil {
		return err
	}

	if err := setInt(&c.RateLimit.LoginAttempts, "RATE_LIMIT_LOGIN_ATTEMPTS"); err != nil {
		return err
	}
	return setInt(&c.RateLimit.WindowMinutes, "RATE_LIMIT_WINDOW_MINUTES")
}

func applyDefaults(c *Config) {
	if c.Server.Port == "" {
		c.Server.Port = "5000"
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.RabbitMQ.Port == "" {
		c.RabbitMQ.Port = "5672"
	}
	if c.JWT.ExpirationHours <= 0 {
		c.JWT.ExpirationHours = 30 * 24
	}
	if c.Cookie.Name == "" {
		c.Cookie.Name = "token"
	}
	if c.RateLimit.LoginAttempts <= 0 {
		c.RateLimit.LoginAttempts = 10
	}
	if c.RateLimit.WindowMinutes <= 0 {
		c.RateLimit.WindowMinutes = 15
	}
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}
