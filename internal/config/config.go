package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	Env         string
	ListenAddr  string
	DatabaseURL string
	MailWorkers int

	// PublicBaseURL prefixes evidence file URLs handed back to clients.
	PublicBaseURL string
	// TrainingBaseURL is the landing page linked from training invitations.
	TrainingBaseURL string

	Storage StorageConfig
	SMTP    SMTPConfig
}

// StorageConfig selects the evidence blob-store backend. Type is a
// tagged union: "filesystem", "s3" or "memory"; only the matching
// fields are used.
type StorageConfig struct {
	Type string
	Dir  string // filesystem root

	S3Bucket    string
	S3Prefix    string
	S3Region    string
	S3AccessKey string
	S3SecretKey string
}

type SMTPConfig struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		var out int
		if _, err := fmt.Sscanf(v, "%d", &out); err == nil {
			return out
		}
	}
	return def
}

func Load() (Config, error) {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := Config{
		Env:             getenv("APP_ENV", "development"),
		ListenAddr:      getenv("LISTEN_ADDR", ":8080"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		MailWorkers:     getenvInt("MAIL_WORKERS", 1),
		PublicBaseURL:   getenv("PUBLIC_BASE_URL", ""),
		TrainingBaseURL: getenv("TRAINING_BASE_URL", "http://localhost:3000/training"),
		Storage: StorageConfig{
			Type:        getenv("STORAGE_TYPE", "filesystem"),
			Dir:         getenv("STORAGE_DIR", "uploads"),
			S3Bucket:    os.Getenv("S3_BUCKET"),
			S3Prefix:    os.Getenv("S3_PREFIX"),
			S3Region:    os.Getenv("S3_REGION"),
			S3AccessKey: os.Getenv("S3_ACCESS_KEY"),
			S3SecretKey: os.Getenv("S3_SECRET_KEY"),
		},
		SMTP: SMTPConfig{
			Host: os.Getenv("SMTP_HOST"),
			Port: getenvInt("SMTP_PORT", 587),
			User: os.Getenv("SMTP_USER"),
			Pass: os.Getenv("SMTP_PASS"),
			From: getenv("SMTP_FROM", "no-reply@apex.local"),
		},
	}
	if cfg.DatabaseURL == "" {
		// Not fatal for early local runs; warn via error value so callers can decide.
		return cfg, fmt.Errorf("DATABASE_URL not set")
	}
	return cfg, nil
}
