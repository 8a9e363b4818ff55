package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	App       AppSettings       `mapstructure:"app"`
	HTTP      HTTPSettings      `mapstructure:"http"`
	SPA       SPASettings       `mapstructure:"spa"`
	Recovery  RecoverySettings  `mapstructure:"recovery"`
	Security  SecuritySettings  `mapstructure:"security"`
	Argon2    Argon2Settings    `mapstructure:"argon2"`
	JWT       JWTSettings       `mapstructure:"jwt"`
	Postgres  PostgresSettings  `mapstructure:"postgres"`
	Redis     RedisSettings     `mapstructure:"redis"`
	Kafka     KafkaSettings     `mapstructure:"kafka"`
	SMTP      SMTPSettings      `mapstructure:"smtp"`
	Mail      MailSettings      `mapstructure:"mail"`
	RateLimit RateLimitSettings `mapstructure:"rate_limit"`
	GRPC      GRPCSettings      `mapstructure:"grpc"`
	Telemetry TelemetrySettings `mapstructure:"telemetry"`
}

type AppSettings struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	BaseURL string `mapstructure:"base_url"`
}

// IsProduction reports whether the service runs with production hardening.
func (s AppSettings) IsProduction() bool {
	return strings.EqualFold(s.Env, "production")
}

// IsDevelopment reports whether developer conveniences (dev tokens, loose TLS) apply.
func (s AppSettings) IsDevelopment() bool {
	return !s.IsProduction()
}

// HTTPSettings holds the browser-facing paths. Deployments may relocate the
// reset surface (e.g. /custom_reset); emailed links follow the configured path.
type HTTPSettings struct {
	ResetPath            string `mapstructure:"reset_path"`
	UsernameRecoveryPath string `mapstructure:"username_recovery_path"`
	LoginPath            string `mapstructure:"login_path"`
	PostResetView        string `mapstructure:"post_reset_view"`
	PostLoginView        string `mapstructure:"post_login_view"`
}

// SPASettings steer browsers that land on emailed links toward a single-page
// front end instead of the built-in pages.
type SPASettings struct {
	Enabled        bool   `mapstructure:"enabled"`
	RedirectScheme string `mapstructure:"redirect_scheme"`
	RedirectHost   string `mapstructure:"redirect_host"`
	ResetView      string `mapstructure:"reset_view"`
	ResetErrorView string `mapstructure:"reset_error_view"`
}

type RecoverySettings struct {
	ResetTTL                    time.Duration `mapstructure:"reset_ttl"`
	ResetTokenLength            int           `mapstructure:"reset_token_length"`
	AutoLoginAfterReset         bool          `mapstructure:"auto_login_after_reset"`
	GenericResponses            bool          `mapstructure:"generic_responses"`
	UsernameRecoveryEnabled     bool          `mapstructure:"username_recovery_enabled"`
	SendPasswordChangedNotice   bool          `mapstructure:"send_password_changed_notice"`
	MinRequestDuration          time.Duration `mapstructure:"min_request_duration"`
	PasswordHistoryLimit        int           `mapstructure:"password_history_limit"`
	RevocationDegradationPolicy string        `mapstructure:"revocation_degradation_policy"`
}

type SecuritySettings struct {
	PasswordMinLength         int    `mapstructure:"password_min_length"`
	PasswordComplexityChecker string `mapstructure:"password_complexity_checker"`
	PasswordNormalizationForm string `mapstructure:"password_normalization_form"`
	CSRFProtect               bool   `mapstructure:"csrf_protect"`
	CSRFCookieName            string `mapstructure:"csrf_cookie_name"`
	SessionCookieName         string `mapstructure:"session_cookie_name"`
}

// Argon2Settings configures Argon2id password hashing parameters
type Argon2Settings struct {
	Memory      uint32 `mapstructure:"memory"`
	Iterations  uint32 `mapstructure:"iterations"`
	Parallelism uint8  `mapstructure:"parallelism"`
	SaltLength  uint32 `mapstructure:"salt_length"`
	KeyLength   uint32 `mapstructure:"key_length"`
}

type JWTSettings struct {
	Issuer          string        `mapstructure:"issuer"`
	KeyDirectory    string        `mapstructure:"key_directory"`
	ActiveKID       string        `mapstructure:"active_kid"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
	SessionTTL      time.Duration `mapstructure:"session_ttl"`
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

// RedisSettings configures Redis connection and TLS
type RedisSettings struct {
	Host                 string        `mapstructure:"host"`
	Port                 int           `mapstructure:"port"`
	DB                   int           `mapstructure:"db"`
	Password             string        `mapstructure:"password"`
	TLSEnabled           bool          `mapstructure:"tls_enabled"`
	RateLimitPrefix      string        `mapstructure:"rate_limit_prefix"`
	SessionVersionPrefix string        `mapstructure:"session_version_prefix"`
	SessionRevokedPrefix string        `mapstructure:"session_revoked_prefix"`
	JTIDenylistPrefix    string        `mapstructure:"jti_denylist_prefix"`
	SessionVersionTTL    time.Duration `mapstructure:"session_version_ttl"`
	SessionRevocationTTL time.Duration `mapstructure:"session_revocation_ttl"`
}

// KafkaSettings configures the Kafka producer and the revocation consumer group.
type KafkaSettings struct {
	Enabled       bool     `mapstructure:"enabled"`
	Brokers       []string `mapstructure:"brokers"`
	TopicPrefix   string   `mapstructure:"topic_prefix"`
	ConsumerGroup string   `mapstructure:"consumer_group"`
	Async         bool     `mapstructure:"async"`
}

// SMTPSettings configure outbound mail delivery.
type SMTPSettings struct {
	Enabled    bool          `mapstructure:"enabled"`
	Host       string        `mapstructure:"host"`
	Port       int           `mapstructure:"port"`
	Username   string        `mapstructure:"username"`
	Password   string        `mapstructure:"password"`
	From       string        `mapstructure:"from"`
	RequireTLS bool          `mapstructure:"require_tls"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// MailSettings hold user-visible subjects for the recovery templates.
type MailSettings struct {
	SubjectPasswordReset    string `mapstructure:"subject_password_reset"`
	SubjectPasswordChanged  string `mapstructure:"subject_password_changed"`
	SubjectUsernameRecovery string `mapstructure:"subject_username_recovery"`
}

// RateLimitSettings configures sliding windows per abuse scope.
type RateLimitSettings struct {
	ResetEmailLimit       int           `mapstructure:"reset_email_limit"`
	ResetEmailWindow      time.Duration `mapstructure:"reset_email_window"`
	ResetIPLimit          int           `mapstructure:"reset_ip_limit"`
	ResetIPWindow         time.Duration `mapstructure:"reset_ip_window"`
	LoginLimit            int           `mapstructure:"login_limit"`
	LoginWindow           time.Duration `mapstructure:"login_window"`
	UsernameRecoveryLimit int           `mapstructure:"username_recovery_limit"`
}

type GRPCSettings struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

type TelemetrySettings struct {
	Enabled      bool    `mapstructure:"enabled"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("ACCOUNTS")

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"app.base_url",
		"http.reset_path",
		"http.username_recovery_path",
		"http.login_path",
		"http.post_reset_view",
		"http.post_login_view",
		"spa.enabled",
		"spa.redirect_scheme",
		"spa.redirect_host",
		"spa.reset_view",
		"spa.reset_error_view",
		"recovery.reset_ttl",
		"recovery.reset_token_length",
		"recovery.auto_login_after_reset",
		"recovery.generic_responses",
		"recovery.username_recovery_enabled",
		"recovery.send_password_changed_notice",
		"recovery.min_request_duration",
		"recovery.password_history_limit",
		"recovery.revocation_degradation_policy",
		"security.password_min_length",
		"security.password_complexity_checker",
		"security.password_normalization_form",
		"security.csrf_protect",
		"security.csrf_cookie_name",
		"security.session_cookie_name",
		"argon2.memory",
		"argon2.iterations",
		"argon2.parallelism",
		"argon2.salt_length",
		"argon2.key_length",
		"jwt.issuer",
		"jwt.key_directory",
		"jwt.active_kid",
		"jwt.access_token_ttl",
		"jwt.refresh_token_ttl",
		"jwt.session_ttl",
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
		"redis.rate_limit_prefix",
		"redis.session_version_prefix",
		"redis.session_revoked_prefix",
		"redis.jti_denylist_prefix",
		"redis.session_version_ttl",
		"redis.session_revocation_ttl",
		"kafka.enabled",
		"kafka.brokers",
		"kafka.topic_prefix",
		"kafka.consumer_group",
		"kafka.async",
		"smtp.enabled",
		"smtp.host",
		"smtp.port",
		"smtp.username",
		"smtp.password",
		"smtp.from",
		"smtp.require_tls",
		"smtp.timeout",
		"mail.subject_password_reset",
		"mail.subject_password_changed",
		"mail.subject_username_recovery",
		"rate_limit.reset_email_limit",
		"rate_limit.reset_email_window",
		"rate_limit.reset_ip_limit",
		"rate_limit.reset_ip_window",
		"rate_limit.login_limit",
		"rate_limit.login_window",
		"rate_limit.username_recovery_limit",
		"grpc.enabled",
		"grpc.host",
		"grpc.port",
		"telemetry.enabled",
		"telemetry.otlp_endpoint",
		"telemetry.service_name",
		"telemetry.sampling_rate",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *AppConfig) validate() error {
	if c.Recovery.ResetTTL <= 0 {
		return fmt.Errorf("recovery.reset_ttl must be positive")
	}
	if c.Recovery.ResetTokenLength < 16 {
		return fmt.Errorf("recovery.reset_token_length must be at least 16")
	}
	if c.Security.PasswordMinLength < 1 {
		return fmt.Errorf("security.password_min_length must be positive")
	}
	if !strings.HasPrefix(c.HTTP.ResetPath, "/") {
		return fmt.Errorf("http.reset_path must start with /")
	}
	if c.SPA.Enabled && c.SPA.RedirectHost == "" {
		return fmt.Errorf("spa.redirect_host is required when spa.enabled")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "accounts")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.base_url", "http://localhost:8080")

	v.SetDefault("http.reset_path", "/reset")
	v.SetDefault("http.username_recovery_path", "/recover-username")
	v.SetDefault("http.login_path", "/login")
	v.SetDefault("http.post_reset_view", "/login")
	v.SetDefault("http.post_login_view", "/profile")

	v.SetDefault("spa.enabled", false)
	v.SetDefault("spa.redirect_scheme", "http")
	v.SetDefault("spa.redirect_host", "")
	v.SetDefault("spa.reset_view", "/reset-page")
	v.SetDefault("spa.reset_error_view", "/reset-error-page")

	v.SetDefault("recovery.reset_ttl", "1h")
	v.SetDefault("recovery.reset_token_length", 32)
	v.SetDefault("recovery.auto_login_after_reset", false)
	v.SetDefault("recovery.generic_responses", false)
	v.SetDefault("recovery.username_recovery_enabled", false)
	v.SetDefault("recovery.send_password_changed_notice", true)
	v.SetDefault("recovery.min_request_duration", "200ms")
	v.SetDefault("recovery.password_history_limit", 5)
	v.SetDefault("recovery.revocation_degradation_policy", "lenient")

	v.SetDefault("security.password_min_length", 8)
	v.SetDefault("security.password_complexity_checker", "")
	v.SetDefault("security.password_normalization_form", "NFKD")
	v.SetDefault("security.csrf_protect", false)
	v.SetDefault("security.csrf_cookie_name", "csrf_token")
	v.SetDefault("security.session_cookie_name", "accounts_session")

	v.SetDefault("argon2.memory", 65536) // 64 MB
	v.SetDefault("argon2.iterations", 3)
	v.SetDefault("argon2.parallelism", 4)
	v.SetDefault("argon2.salt_length", 16)
	v.SetDefault("argon2.key_length", 32)

	v.SetDefault("jwt.issuer", "accounts")
	v.SetDefault("jwt.key_directory", "./secrets")
	v.SetDefault("jwt.active_kid", "local-dev")
	v.SetDefault("jwt.access_token_ttl", "15m")
	v.SetDefault("jwt.refresh_token_ttl", "720h")
	v.SetDefault("jwt.session_ttl", "720h")

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "accounts")
	v.SetDefault("postgres.password", "accounts_password")
	v.SetDefault("postgres.database", "accounts")
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
	v.SetDefault("redis.rate_limit_prefix", "accounts:ratelimit")
	v.SetDefault("redis.session_version_prefix", "accounts:session_version")
	v.SetDefault("redis.session_revoked_prefix", "accounts:sess:revoked")
	v.SetDefault("redis.jti_denylist_prefix", "accounts:jti:denied")
	v.SetDefault("redis.session_version_ttl", "720h")
	v.SetDefault("redis.session_revocation_ttl", "24h")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic_prefix", "accounts")
	v.SetDefault("kafka.consumer_group", "accounts-revocation")
	v.SetDefault("kafka.async", true)

	v.SetDefault("smtp.enabled", false)
	v.SetDefault("smtp.host", "localhost")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "no-reply@accounts.local")
	v.SetDefault("smtp.require_tls", true)
	v.SetDefault("smtp.timeout", "30s")

	v.SetDefault("mail.subject_password_reset", "Password reset instructions")
	v.SetDefault("mail.subject_password_changed", "Your password has been reset")
	v.SetDefault("mail.subject_username_recovery", "Your requested username")

	v.SetDefault("rate_limit.reset_email_limit", 3)
	v.SetDefault("rate_limit.reset_email_window", "1h")
	v.SetDefault("rate_limit.reset_ip_limit", 10)
	v.SetDefault("rate_limit.reset_ip_window", "1h")
	v.SetDefault("rate_limit.login_limit", 10)
	v.SetDefault("rate_limit.login_window", "1m")
	v.SetDefault("rate_limit.username_recovery_limit", 3)

	v.SetDefault("grpc.enabled", true)
	v.SetDefault("grpc.host", "0.0.0.0")
	v.SetDefault("grpc.port", 50051)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4318")
	v.SetDefault("telemetry.service_name", "accounts")
	v.SetDefault("telemetry.sampling_rate", 1.0)
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "ACCOUNTS_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
