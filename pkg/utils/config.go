package utils

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// LoadEnv reads a local .env file when one exists. Real environments set
// variables directly; the file is a dev convenience.
func LoadEnv() {
	_ = godotenv.Load()
}

type AuthConfig struct {
	JWTSecret   string
	JWTIssuer   string
	JWTDuration time.Duration
}

func LoadAuthConfig() AuthConfig {
	secret := os.Getenv("BOOKRING_JWT_SECRET")
	if secret == "" {
		// dev default (change for demo / production)
		secret = "dev-secret-change-me"
	}

	issuer := os.Getenv("BOOKRING_JWT_ISSUER")
	if issuer == "" {
		issuer = "bookring"
	}

	duration := 24 * time.Hour
	if ttl := os.Getenv("BOOKRING_JWT_TTL_HOURS"); ttl != "" {
		if h, err := strconv.Atoi(ttl); err == nil && h > 0 {
			duration = time.Duration(h) * time.Hour
		}
	}

	return AuthConfig{
		JWTSecret:   secret,
		JWTIssuer:   issuer,
		JWTDuration: duration,
	}
}

type LookupConfig struct {
	BaseURL string
	Delay   time.Duration
}

// LoadLookupConfig configures the external book-metadata client. The
// delay throttles batch lookups to respect the API's rate limit.
func LoadLookupConfig() LookupConfig {
	base := os.Getenv("BOOKRING_BOOKS_API_URL")
	if base == "" {
		base = "https://www.googleapis.com/books/v1"
	}

	delay := 300 * time.Millisecond
	if ms := os.Getenv("BOOKRING_LOOKUP_DELAY_MS"); ms != "" {
		if n, err := strconv.Atoi(ms); err == nil && n >= 0 {
			delay = time.Duration(n) * time.Millisecond
		}
	}

	return LookupConfig{BaseURL: base, Delay: delay}
}

type ServerConfig struct {
	HTTPAddr string
	FeedAddr string
	UDPAddr  string
}

func LoadServerConfig() ServerConfig {
	cfg := ServerConfig{
		HTTPAddr: ":8080",
		FeedAddr: ":7070",
		UDPAddr:  ":7071",
	}
	if v := os.Getenv("BOOKRING_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("BOOKRING_FEED_ADDR"); v != "" {
		cfg.FeedAddr = v
	}
	if v := os.Getenv("BOOKRING_UDP_ADDR"); v != "" {
		cfg.UDPAddr = v
	}
	return cfg
}
