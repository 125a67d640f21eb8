// Package config loads service settings from the environment. A .env
// file, when present, supplies local-development defaults; real
// environments set variables directly.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the resolved runtime configuration.
type Config struct {
	Addr     string // HTTP listen address
	GRPCAddr string // gRPC health listen address, empty disables

	PGDSN    string // empty runs on in-memory stores
	RedisURL string // empty keeps OTP codes in process memory

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	AccessTTL      time.Duration
	OTPTTL         time.Duration
	OTPDomains     []string
	RateLimitRPS   float64
	RateLimitBurst int
}

var envPaths = []string{".env", "../.env", "../../.env"}

// Load reads configuration from the environment, consulting a .env
// file first when one exists.
func Load() (*Config, error) {
	for _, p := range envPaths {
		if err := godotenv.Load(p); err == nil {
			break
		}
	}

	cfg := &Config{
		Addr:     getEnv("RFPHUB_ADDR", ":8080"),
		GRPCAddr: os.Getenv("RFPHUB_GRPC_ADDR"),

		PGDSN:    os.Getenv("RFPHUB_PG_DSN"),
		RedisURL: os.Getenv("RFPHUB_REDIS_URL"),

		SMTPHost:     os.Getenv("RFPHUB_SMTP_HOST"),
		SMTPUsername: os.Getenv("RFPHUB_SMTP_USERNAME"),
		SMTPPassword: os.Getenv("RFPHUB_SMTP_PASSWORD"),
		SMTPFrom:     getEnv("RFPHUB_SMTP_FROM", "no-reply@rfphub.org"),
	}

	var err error
	if cfg.SMTPPort, err = getInt("RFPHUB_SMTP_PORT", 587); err != nil {
		return nil, err
	}
	if cfg.AccessTTL, err = getDuration("RFPHUB_ACCESS_TTL", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.OTPTTL, err = getDuration("RFPHUB_OTP_TTL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RateLimitRPS, err = getFloat("RFPHUB_RATE_LIMIT_RPS", 20); err != nil {
		return nil, err
	}
	if cfg.RateLimitBurst, err = getInt("RFPHUB_RATE_LIMIT_BURST", 40); err != nil {
		return nil, err
	}

	if domains := os.Getenv("RFPHUB_OTP_DOMAINS"); domains != "" {
		for _, d := range strings.Split(domains, ",") {
			if d = strings.TrimSpace(d); d != "" {
				cfg.OTPDomains = append(cfg.OTPDomains, d)
			}
		}
	}

	if cfg.AccessTTL <= 0 {
		return nil, fmt.Errorf("RFPHUB_ACCESS_TTL must be positive")
	}
	if cfg.OTPTTL <= 0 {
		return nil, fmt.Errorf("RFPHUB_OTP_TTL must be positive")
	}
	return cfg, nil
}

// String returns a loggable summary with credentials masked.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Addr: %s, PG: %s, Redis: %s, SMTP: %s:%d}",
		c.Addr, maskPassword(c.PGDSN), maskPassword(c.RedisURL), c.SMTPHost, c.SMTPPort)
}

var credRe = regexp.MustCompile(`(://[^:/@]+:)([^@]+)(@)`)

func maskPassword(url string) string {
	if url == "" {
		return "(unset)"
	}
	return credRe.ReplaceAllString(url, "${1}***${3}")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
