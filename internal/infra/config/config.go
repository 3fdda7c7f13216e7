package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	App      AppSettings      `mapstructure:"app"`
	Postgres PostgresSettings `mapstructure:"postgres"`
	Redis    RedisSettings    `mapstructure:"redis"`
	Kafka    KafkaSettings    `mapstructure:"kafka"`
	JWT      JWTSettings      `mapstructure:"jwt"`
	Password PasswordSettings `mapstructure:"password"`
	MFA      MFASettings      `mapstructure:"mfa"`
	Provider ProviderSettings `mapstructure:"provider"`
	Argon2   Argon2Settings   `mapstructure:"argon2"`
}

type AppSettings struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// RedisSettings configures the cache backing MFA codes and counters.
type RedisSettings struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	DB         int    `mapstructure:"db"`
	Password   string `mapstructure:"password"`
	TLSEnabled bool   `mapstructure:"tls_enabled"`
	KeyPrefix  string `mapstructure:"key_prefix"`
}

// KafkaSettings configures the audit event producer.
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
	Async       bool     `mapstructure:"async"`
}

type JWTSettings struct {
	KeyDirectory    string        `mapstructure:"key_directory"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
	ResetTokenTTL   time.Duration `mapstructure:"reset_token_ttl"`
}

// PasswordSettings carries password complexity thresholds.
type PasswordSettings struct {
	MinLength        int  `mapstructure:"min_length"`
	MaxLength        int  `mapstructure:"max_length"`
	RequireUppercase bool `mapstructure:"require_uppercase"`
	RequireLowercase bool `mapstructure:"require_lowercase"`
	RequireDigit     bool `mapstructure:"require_digit"`
	RequireSymbol    bool `mapstructure:"require_symbol"`
	MinStrengthScore int  `mapstructure:"min_strength_score"`
}

// MFASettings carries second-factor tunables: attempt limits, code TTLs,
// and the key protecting stored TOTP secrets.
type MFASettings struct {
	Issuer           string        `mapstructure:"issuer"`
	SecretCipherKey  string        `mapstructure:"secret_cipher_key"`
	EmailCodeLength  int           `mapstructure:"email_code_length"`
	EmailCodeTTL     time.Duration `mapstructure:"email_code_ttl"`
	EmailMaxAttempts int           `mapstructure:"email_max_attempts"`
	TOTPMaxAttempts  int           `mapstructure:"totp_max_attempts"`
	TOTPAttemptTTL   time.Duration `mapstructure:"totp_attempt_ttl"`
	RecoveryCodes    int           `mapstructure:"recovery_codes"`
}

// ProviderSettings configures the external identity provider adapter.
type ProviderSettings struct {
	Name          string `mapstructure:"name"`
	Issuer        string `mapstructure:"issuer"`
	PublicKeyPath string `mapstructure:"public_key_path"`
}

// Argon2Settings configures Argon2id hashing parameters.
type Argon2Settings struct {
	Memory      uint32 `mapstructure:"memory"`
	Iterations  uint32 `mapstructure:"iterations"`
	Parallelism uint8  `mapstructure:"parallelism"`
	SaltLength  uint32 `mapstructure:"salt_length"`
	KeyLength   uint32 `mapstructure:"key_length"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("SOVRANE")

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.ssl_mode",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.health_check_period",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"redis.key_prefix",
		"kafka.brokers",
		"kafka.topic_prefix",
		"kafka.async",
		"jwt.key_directory",
		"jwt.access_token_ttl",
		"jwt.refresh_token_ttl",
		"jwt.reset_token_ttl",
		"password.min_length",
		"password.max_length",
		"password.require_uppercase",
		"password.require_lowercase",
		"password.require_digit",
		"password.require_symbol",
		"password.min_strength_score",
		"mfa.issuer",
		"mfa.secret_cipher_key",
		"mfa.email_code_length",
		"mfa.email_code_ttl",
		"mfa.email_max_attempts",
		"mfa.totp_max_attempts",
		"mfa.totp_attempt_ttl",
		"mfa.recovery_codes",
		"provider.name",
		"provider.issuer",
		"provider.public_key_path",
		"argon2.memory",
		"argon2.iterations",
		"argon2.parallelism",
		"argon2.salt_length",
		"argon2.key_length",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "sovrane")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "sovrane")
	v.SetDefault("postgres.password", "sovrane_password")
	v.SetDefault("postgres.database", "sovrane")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.key_prefix", "sovrane")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic_prefix", "sovrane")
	v.SetDefault("kafka.async", true)

	v.SetDefault("jwt.key_directory", "./secrets")
	v.SetDefault("jwt.access_token_ttl", "15m")
	v.SetDefault("jwt.refresh_token_ttl", "168h")
	v.SetDefault("jwt.reset_token_ttl", "1h")

	v.SetDefault("password.min_length", 10)
	v.SetDefault("password.max_length", 128)
	v.SetDefault("password.require_uppercase", true)
	v.SetDefault("password.require_lowercase", true)
	v.SetDefault("password.require_digit", true)
	v.SetDefault("password.require_symbol", true)
	v.SetDefault("password.min_strength_score", 3)

	v.SetDefault("mfa.issuer", "sovrane")
	v.SetDefault("mfa.secret_cipher_key", "")
	v.SetDefault("mfa.email_code_length", 6)
	v.SetDefault("mfa.email_code_ttl", "5m")
	v.SetDefault("mfa.email_max_attempts", 5)
	v.SetDefault("mfa.totp_max_attempts", 5)
	v.SetDefault("mfa.totp_attempt_ttl", "1m")
	v.SetDefault("mfa.recovery_codes", 8)

	v.SetDefault("provider.name", "oidc")
	v.SetDefault("provider.issuer", "")
	v.SetDefault("provider.public_key_path", "")

	v.SetDefault("argon2.memory", 65536) // 64 MB
	v.SetDefault("argon2.iterations", 3)
	v.SetDefault("argon2.parallelism", 4)
	v.SetDefault("argon2.salt_length", 16)
	v.SetDefault("argon2.key_length", 32)
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "SOVRANE_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
