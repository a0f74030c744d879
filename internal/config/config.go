package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type TLSConfig struct {
	Enabled  bool
	CertFile string
	KeyFile  string
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type StorageConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	BucketAvatars string
	UseSSL        bool
	Region        string
	PublicBaseURL string
}

type SecurityConfig struct {
	JWTSecret      string
	AccessTTL      time.Duration
	RefreshTTL     time.Duration
	ResetTTL       time.Duration
	VerifyTTL      time.Duration
	Argon2Time     uint32
	Argon2Memory   uint32
	Argon2Threads  uint8
}

type PasswordConfig struct {
	MinLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireDigit     bool
	RequireSpecial   bool
}

type LockoutConfig struct {
	MaxAttempts int
	Duration    time.Duration
}

type RateLimitConfig struct {
	Enabled       bool
	LoginAttempts int
	LoginWindow   time.Duration
	ResetAttempts int
	ResetWindow   time.Duration
}

type MailConfig struct {
	Enabled   bool
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	FromName  string
	LinkBase  string
}

type AuditConfig struct {
	Mandatory bool
}

// BootstrapConfig seeds the first superadmin at startup when no account with
// that email exists yet.
type BootstrapConfig struct {
	SuperAdminEmail    string
	SuperAdminPassword string
}

type AppConfig struct {
	Environment      string
	HTTP             HTTPConfig
	TLS              TLSConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Storage          StorageConfig
	Security         SecurityConfig
	Password         PasswordConfig
	Lockout          LockoutConfig
	RateLimit        RateLimitConfig
	Mail             MailConfig
	Audit            AuditConfig
	Bootstrap        BootstrapConfig
	AllowCORSOrigins []string
}

func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("AUTHGRID")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Security.JWTSecret == "" {
		return nil, fmt.Errorf("security.jwtsecret is required")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "15s")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("postgres.maxopen", 30)
	v.SetDefault("postgres.maxidle", 10)
	v.SetDefault("postgres.connmaxlifetime", "30m")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("storage.bucketavatars", "authgrid-avatars")
	v.SetDefault("storage.usessl", false)
	v.SetDefault("storage.region", "us-east-1")

	v.SetDefault("security.accessttl", "30m")
	v.SetDefault("security.refreshttl", "168h") // 7 days
	v.SetDefault("security.resetttl", "1h")
	v.SetDefault("security.verifyttl", "168h")
	v.SetDefault("security.argon2time", 3)
	v.SetDefault("security.argon2memory", 65536)
	v.SetDefault("security.argon2threads", 2)

	v.SetDefault("password.minlength", 8)
	v.SetDefault("password.requireuppercase", true)
	v.SetDefault("password.requirelowercase", true)
	v.SetDefault("password.requiredigit", true)
	v.SetDefault("password.requirespecial", true)

	v.SetDefault("lockout.maxattempts", 5)
	v.SetDefault("lockout.duration", "30m")

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.loginattempts", 10)
	v.SetDefault("ratelimit.loginwindow", "1m")
	v.SetDefault("ratelimit.resetattempts", 3)
	v.SetDefault("ratelimit.resetwindow", "1h")

	v.SetDefault("mail.enabled", false)
	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.fromname", "Authgrid")
	v.SetDefault("mail.linkbase", "http://localhost:3000")

	v.SetDefault("audit.mandatory", false)
}
