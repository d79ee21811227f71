package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	RabbitMQ RabbitMQConfig
	Crypto   CryptoConfig
	Auth     AuthConfig
	Dispatch DispatchConfig
	SMTP     SMTPConfig
}

type ServerConfig struct {
	Port string
	Host string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RabbitMQConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	VHost    string
	Queue    string
}

// CryptoConfig holds the process-wide encryption key used for at-rest
// encryption of action templates and audit snapshots.
type CryptoConfig struct {
	Key string
}

// AuthConfig holds the secret used to verify signed access tokens.
type AuthConfig struct {
	TokenSecret string
}

type DispatchConfig struct {
	HTTPTimeoutSeconds  int
	MaxResponseBodySize int
}

// SMTPConfig configures failure-notification mail. The whole block is
// optional: when Host is empty no mail is sent.
type SMTPConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	From         string
	To           []string
	Subject      string
	MaskedFields string
}

func Load() (*Config, error) {
	var missing []string

	get := func(key string) string {
		val := os.Getenv(key)
		if val == "" {
			missing = append(missing, key)
		}
		return val
	}

	getInt := func(key string, def int) int {
		val := os.Getenv(key)
		if val == "" {
			return def
		}
		n, err := strconv.Atoi(val)
		if err != nil || n <= 0 {
			return def
		}
		return n
	}

	config := &Config{
		Server: ServerConfig{
			Port: get("SERVER_PORT"),
			Host: get("SERVER_HOST"),
		},
		Database: DatabaseConfig{
			Host:     get("DB_HOST"),
			Port:     get("DB_PORT"),
			User:     get("DB_USER"),
			Password: get("DB_PASSWORD"),
			DBName:   get("DB_NAME"),
			SSLMode:  get("DB_SSLMODE"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:      os.Getenv("RABBITMQ_URL"),
			Host:     get("RABBITMQ_HOST"),
			Port:     get("RABBITMQ_PORT"),
			User:     get("RABBITMQ_USER"),
			Password: get("RABBITMQ_PASSWORD"),
			VHost:    get("RABBITMQ_VHOST"),
			Queue:    get("RABBITMQ_EVENT_QUEUE"),
		},
		Crypto: CryptoConfig{
			Key: get("CRYPTO_KEY"),
		},
		Auth: AuthConfig{
			TokenSecret: get("TOKEN_SECRET"),
		},
		Dispatch: DispatchConfig{
			HTTPTimeoutSeconds:  getInt("DISPATCH_HTTP_TIMEOUT_SECONDS", 10),
			MaxResponseBodySize: getInt("DISPATCH_MAX_RESPONSE_BODY_SIZE", 65536),
		},
		SMTP: SMTPConfig{
			Host:         os.Getenv("SMTP_HOST"),
			Port:         getInt("SMTP_PORT", 587),
			User:         os.Getenv("SMTP_USER"),
			Password:     os.Getenv("SMTP_PASSWORD"),
			From:         os.Getenv("SMTP_FROM"),
			To:           splitList(os.Getenv("SMTP_TO")),
			Subject:      os.Getenv("SMTP_SUBJECT"),
			MaskedFields: os.Getenv("SMTP_MASKED_FIELDS"),
		},
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %v", missing)
	}

	if config.SMTP.Subject == "" {
		config.SMTP.Subject = "Contract execution failed"
	}

	return config, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ConnectionString returns a DSN string for GORM
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		c.Host, c.User, c.Password, c.DBName, c.Port, c.SSLMode)
}

func (c *RabbitMQConfig) ConnectionURL() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("amqp://%s:%s@%s:%s%s",
		c.User, c.Password, c.Host, c.Port, c.VHost)
}
