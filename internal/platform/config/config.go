// Package config loads and validates service configuration.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// PROVISOR_* environment variables. The provisioning section is handed to
// sagas as immutable snapshots so a reload never changes an in-flight run.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full service configuration.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Kafka        KafkaConfig        `mapstructure:"kafka"`
	SMTP         SMTPConfig         `mapstructure:"smtp"`
	Directory    DirectoryConfig    `mapstructure:"directory"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	Provisioning ProvisioningConfig `mapstructure:"provisioning"`
}

// ServerConfig captures HTTP server level configuration.
type ServerConfig struct {
	Addr          string        `mapstructure:"addr"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	JWTSigningKey string        `mapstructure:"jwt_signing_key"`
	// APIClients are service credentials accepted via the X-API-Key header.
	// When neither these nor a JWT signing key are configured, authentication
	// is disabled (dev mode).
	APIClients []APIClientConfig `mapstructure:"api_clients"`
	// MaxConcurrentRuns caps sagas executing at once across all employees.
	MaxConcurrentRuns int `mapstructure:"max_concurrent_runs"`
}

// APIClientConfig names one service credential. The raw key is never stored;
// KeyHash is its bcrypt hash. Name becomes the audit actor for the client.
type APIClientConfig struct {
	Name    string `mapstructure:"name"`
	KeyHash string `mapstructure:"key_hash"`
}

// DatabaseConfig configures the Postgres pool. An empty URL selects the
// in-memory stores (dev mode, unit tests).
type DatabaseConfig struct {
	URL          string `mapstructure:"url"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// RedisConfig configures the Redis client used by the reclaim scheduler.
// An empty URL selects the in-memory schedule store.
type RedisConfig struct {
	URL      string `mapstructure:"url"`
	PoolSize int    `mapstructure:"pool_size"`
}

// KafkaConfig configures the audit relay and consumer. Empty brokers disable
// the pipeline; audit entries are then only written to the local store.
type KafkaConfig struct {
	Brokers    []string `mapstructure:"brokers"`
	AuditTopic string   `mapstructure:"audit_topic"`
	Group      string   `mapstructure:"group"`
}

// SMTPConfig configures outbound mail. An empty host selects the log-only
// notification sink.
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	UseTLS   bool   `mapstructure:"use_tls"`
}

// DirectoryConfig configures the remote directory adapter. An empty base URL
// selects the in-memory directory (dev mode).
type DirectoryConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	BearerToken string        `mapstructure:"bearer_token"`
	CallTimeout time.Duration `mapstructure:"call_timeout"`
}

// LoggingConfig selects log format and level.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ProvisioningConfig is the behavior contract consumed by sagas. Sagas take
// one Snapshot per run; mutating a snapshot never affects other runs.
type ProvisioningConfig struct {
	DefaultUsageLocation    string             `mapstructure:"default_usage_location"`
	SendWelcomeNotification bool               `mapstructure:"send_welcome_notification"`
	LeaverGracePeriodDays   int                `mapstructure:"leaver_grace_period_days"`
	AutoDisableOnLeave      bool               `mapstructure:"auto_disable_on_leave"`
	ReclaimInterval         time.Duration      `mapstructure:"reclaim_interval"`
	PasswordPolicy          PasswordPolicy     `mapstructure:"password_policy"`
	AdminRecipients         []string           `mapstructure:"admin_recipients"`
	Departments             []DepartmentConfig `mapstructure:"departments"`
}

// PasswordPolicy constrains generated one-time credentials.
type PasswordPolicy struct {
	MinLength int `mapstructure:"min_length"`
}

// DepartmentConfig maps a department to its entitlements.
type DepartmentConfig struct {
	Name     string   `mapstructure:"name"`
	Licenses []string `mapstructure:"licenses"`
	Groups   []string `mapstructure:"groups"`
	Teams    []string `mapstructure:"teams"`
}

// Load reads configuration from the given file path (optional), environment,
// and defaults, then validates it.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PROVISOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/provisor")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
			// No file is fine; env and defaults carry the config.
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	// Provisioning runs are synchronous, so the write timeout must outlast
	// the transport's per-request deadline.
	v.SetDefault("server.write_timeout", 150*time.Second)
	v.SetDefault("server.max_concurrent_runs", 8)

	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)

	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("kafka.audit_topic", "provisor.audit.v1")
	v.SetDefault("kafka.group", "provisor-audit")

	v.SetDefault("smtp.port", 587)

	v.SetDefault("directory.call_timeout", 10*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("provisioning.default_usage_location", "US")
	v.SetDefault("provisioning.send_welcome_notification", true)
	v.SetDefault("provisioning.leaver_grace_period_days", 30)
	v.SetDefault("provisioning.auto_disable_on_leave", true)
	v.SetDefault("provisioning.reclaim_interval", time.Minute)
	v.SetDefault("provisioning.password_policy.min_length", 16)
}

// Validate checks cross-field constraints that viper cannot express.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	if c.Server.MaxConcurrentRuns < 1 {
		return fmt.Errorf("server.max_concurrent_runs must be at least 1")
	}
	for _, client := range c.Server.APIClients {
		if client.Name == "" || client.KeyHash == "" {
			return fmt.Errorf("server.api_clients: name and key_hash must both be set")
		}
	}
	if c.Provisioning.LeaverGracePeriodDays < 0 {
		return fmt.Errorf("provisioning.leaver_grace_period_days must not be negative")
	}
	if c.Provisioning.PasswordPolicy.MinLength < 12 {
		return fmt.Errorf("provisioning.password_policy.min_length must be at least 12")
	}
	if c.Provisioning.ReclaimInterval <= 0 {
		return fmt.Errorf("provisioning.reclaim_interval must be positive")
	}
	if c.Directory.CallTimeout <= 0 {
		return fmt.Errorf("directory.call_timeout must be positive")
	}

	seen := make(map[string]bool, len(c.Provisioning.Departments))
	for _, dept := range c.Provisioning.Departments {
		name := strings.ToLower(strings.TrimSpace(dept.Name))
		if name == "" {
			return fmt.Errorf("provisioning.departments: name must not be empty")
		}
		if seen[name] {
			return fmt.Errorf("provisioning.departments: duplicate department %q", dept.Name)
		}
		seen[name] = true
	}
	return nil
}

// Clone returns a deep copy of the provisioning section.
func (p ProvisioningConfig) Clone() ProvisioningConfig {
	out := p
	out.AdminRecipients = append([]string(nil), p.AdminRecipients...)
	out.Departments = make([]DepartmentConfig, len(p.Departments))
	for i, dept := range p.Departments {
		out.Departments[i] = DepartmentConfig{
			Name:     dept.Name,
			Licenses: append([]string(nil), dept.Licenses...),
			Groups:   append([]string(nil), dept.Groups...),
			Teams:    append([]string(nil), dept.Teams...),
		}
	}
	return out
}
