package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	LogLevel string `env:"LOG_LEVEL"`
	Factset  Factset
	Smtp     Smtp
	S3       S3
	Paths    Paths
}

type Factset struct {
	Url           string        `env:"FACTSET_URL"`
	Username      string        `env:"FACTSET_USERNAME"`
	ApiKeyFile    string        `env:"FACTSET_API_KEY_FILE"`
	Timeout       time.Duration `env:"FACTSET_TIMEOUT"`
	RetryAttempts int           `env:"FACTSET_RETRY_ATTEMPTS"`
	RetryDelay    time.Duration `env:"FACTSET_RETRY_DELAY"`
	Debug         bool          `env:"FACTSET_DEBUG" envDefault:"false"`
	FetchReturns  bool          `env:"FACTSET_FETCH_RETURNS" envDefault:"true"`
}

type Smtp struct {
	Host               string   `env:"SMTP_HOST"`
	Port               int      `env:"SMTP_PORT"`
	Username           string   `env:"SMTP_USERNAME"`
	PasswordFile       string   `env:"SMTP_PASSWORD_FILE"`
	UseTLS             bool     `env:"SMTP_USE_TLS" envDefault:"true"`
	SuccessRecipients  []string `env:"SMTP_SUCCESS_RECIPIENTS"`
	PartialRecipients  []string `env:"SMTP_PARTIAL_RECIPIENTS"`
	FailureRecipients  []string `env:"SMTP_FAILURE_RECIPIENTS"`
	MaxAttachmentBytes int64    `env:"SMTP_MAX_ATTACHMENT_BYTES" envDefault:"10485760"`
}

type S3 struct {
	Enabled bool   `env:"S3_ENABLED" envDefault:"false"`
	Bucket  string `env:"S3_BUCKET" envDefault:""`
	Region  string `env:"S3_REGION" envDefault:"us-east-1"`
}

type Paths struct {
	FundsConfig     string `env:"FUNDS_CONFIG" envDefault:"configs/funds.yaml"`
	ValidationRules string `env:"VALIDATION_RULES" envDefault:"configs/validation_rules.yaml"`
	OutputDir       string `env:"OUTPUT_DIR" envDefault:"output"`
}

func MustLoad() *Config {
	_ = godotenv.Load(".env")

	cfg := &Config{}

	opts := env.Options{RequiredIfNoDef: true}

	if err := env.ParseWithOptions(cfg, opts); err != nil {
		log.Fatalf("parse config error: %s", err)
	}

	return cfg
}
