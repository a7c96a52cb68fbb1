package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database     DatabaseConfig
	Redis        RedisConfig
	Server       ServerConfig
	Auth         AuthConfig
	Portal       PortalConfig
	Email        EmailConfig
	Verification VerificationConfig
	Invitation   InvitationConfig
	Social       SocialConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
}

type AuthConfig struct {
	JWTSecret           string
	AccessTokenExpiry   time.Duration
	RefreshTokenExpiry  time.Duration
	ChallengeExpiry     time.Duration // step-one to step-two window
	MaxCodeAttempts     int           // step-two attempts per challenge
	EmergencyCodeExpiry time.Duration
	TOTPEncryptionKey   string // 32 bytes, AES-256
	TOTPIssuer          string
	CleanupInterval     time.Duration
}

type PortalConfig struct {
	// TokenExpiry is the fixed lifetime of a cross-application portal
	// token, measured from issuance.
	TokenExpiry time.Duration
	// LoginURL is the canonical portal login page satellites redirect to
	// when no portal token is present.
	LoginURL string
}

type EmailConfig struct {
	AWSRegion   string
	FromAddress string
}

type VerificationConfig struct {
	ProviderBaseURL string
	StoreKey        string
	ChannelKey      string
}

type InvitationConfig struct {
	Expiry time.Duration
}

type SocialConfig struct {
	// AuthorizeURLBase is the identity-provider gateway that produces
	// per-provider consent URLs.
	AuthorizeURLBase string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "stationhub"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: parseAllowedOrigins(env),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret:           jwtSecret,
			AccessTokenExpiry:   getEnvAsDuration("ACCESS_TOKEN_EXPIRY", 15*time.Minute),
			RefreshTokenExpiry:  getEnvAsDuration("REFRESH_TOKEN_EXPIRY", 7*24*time.Hour),
			ChallengeExpiry:     getEnvAsDuration("LOGIN_CHALLENGE_EXPIRY", 5*time.Minute),
			MaxCodeAttempts:     getEnvAsInt("MAX_CODE_ATTEMPTS", 5),
			EmergencyCodeExpiry: getEnvAsDuration("EMERGENCY_CODE_EXPIRY", 15*time.Minute),
			TOTPEncryptionKey:   getEnv("TOTP_ENCRYPTION_KEY", ""),
			TOTPIssuer:          getEnv("TOTP_ISSUER", "StationHub"),
			CleanupInterval:     getEnvAsDuration("CLEANUP_INTERVAL", 1*time.Hour),
		},
		Portal: PortalConfig{
			TokenExpiry: getEnvAsDuration("PORTAL_TOKEN_EXPIRY", 24*time.Hour),
			LoginURL:    getEnv("PORTAL_LOGIN_URL", "https://portal.stationhub.example/login"),
		},
		Email: EmailConfig{
			AWSRegion:   getEnv("AWS_REGION", "us-east-1"),
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", "no-reply@stationhub.example"),
		},
		Verification: VerificationConfig{
			ProviderBaseURL: getEnv("VERIFICATION_PROVIDER_URL", ""),
			StoreKey:        getEnv("VERIFICATION_STORE_KEY", ""),
			ChannelKey:      getEnv("VERIFICATION_CHANNEL_KEY", ""),
		},
		Invitation: InvitationConfig{
			Expiry: getEnvAsDuration("INVITATION_EXPIRY", 7*24*time.Hour),
		},
		Social: SocialConfig{
			AuthorizeURLBase: getEnv("SOCIAL_AUTHORIZE_URL_BASE", ""),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	if key := cfg.Auth.TOTPEncryptionKey; key != "" && len(key) != 32 {
		return nil, fmt.Errorf("TOTP_ENCRYPTION_KEY must be exactly 32 bytes (got %d)", len(key))
	}

	return cfg, nil
}

// validateJWTSecret enforces minimum security standards for JWT secret
func validateJWTSecret(secret, env string) error {
	minLength := 16 // Development minimum
	if env == "production" {
		minLength = 32 // Production requires stronger secret (256 bits)
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		originsStr := getEnv("ALLOWED_ORIGINS", "")
		if originsStr == "" {
			return []string{} // Default to no origins in production
		}
		origins := strings.Split(originsStr, ",")
		for i, origin := range origins {
			origins[i] = strings.TrimSpace(origin)
		}
		return origins
	}

	// Development: allow the satellite dev servers
	return []string{
		"http://localhost:3000",
		"http://localhost:3001",
		"http://localhost:5173", // Vite default
		"http://localhost:8080",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:3001",
		"http://127.0.0.1:5173",
		"http://127.0.0.1:8080",
	}
}
