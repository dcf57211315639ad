package app

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/yungbote/student-service/internal/data/db"
	"github.com/yungbote/student-service/internal/resilience"
)

const envConfigPath = "CONFIG_PATH"

type Config struct {
	Env           string              `mapstructure:"env" yaml:"env"`
	HTTP          HTTPConfig          `mapstructure:"http" yaml:"http"`
	Database      DatabaseConfig      `mapstructure:"database" yaml:"database"`
	Postgres      PostgresConfig      `mapstructure:"postgres" yaml:"postgres"`
	CourseService CourseServiceConfig `mapstructure:"course_service" yaml:"course_service"`
	Breaker       BreakerConfig       `mapstructure:"breaker" yaml:"breaker"`
	Retry         RetryConfig         `mapstructure:"retry" yaml:"retry"`
	Redis         RedisConfig         `mapstructure:"redis" yaml:"redis"`
}

type HTTPConfig struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	CORSOrigins       []string      `mapstructure:"cors_origins" yaml:"cors_origins"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	DSN    string `mapstructure:"dsn" yaml:"dsn"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password"`
	Name     string `mapstructure:"name" yaml:"name"`
	SSLMode  string `mapstructure:"sslmode" yaml:"sslmode"`
}

type CourseServiceConfig struct {
	BaseURL   string        `mapstructure:"base_url" yaml:"base_url"`
	BatchPath string        `mapstructure:"batch_path" yaml:"batch_path"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type BreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold" yaml:"failure_threshold"`
	WindowDuration   time.Duration `mapstructure:"window_duration" yaml:"window_duration"`
	OpenDuration     time.Duration `mapstructure:"open_duration" yaml:"open_duration"`
}

type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay" yaml:"base_delay"`
	BackoffCap  time.Duration `mapstructure:"backoff_cap" yaml:"backoff_cap"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
	Channel  string `mapstructure:"channel" yaml:"channel"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_header_timeout", 5*time.Second)
	v.SetDefault("http.shutdown_timeout", 15*time.Second)
	v.SetDefault("http.cors_origins", []string{})

	v.SetDefault("database.driver", db.DriverPostgres)
	v.SetDefault("database.dsn", "")

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.name", "students")
	v.SetDefault("postgres.sslmode", "disable")

	v.SetDefault("course_service.base_url", "http://localhost:8081")
	v.SetDefault("course_service.batch_path", "/api/courses/batch")
	v.SetDefault("course_service.timeout", 300*time.Millisecond)

	v.SetDefault("breaker.failure_threshold", 3)
	v.SetDefault("breaker.window_duration", 10*time.Second)
	v.SetDefault("breaker.open_duration", 10*time.Second)

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.base_delay", 100*time.Millisecond)
	v.SetDefault("retry.backoff_cap", time.Second)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "breaker-events")
}

// LoadConfig reads defaults, then the YAML file at path (or CONFIG_PATH), then
// the environment. Keys map to env vars upper-cased with "." replaced by "_".
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("env", "ENV", "LOG_MODE")
	_ = v.BindEnv(envConfigPath)

	if path == "" {
		path = strings.TrimSpace(v.GetString(envConfigPath))
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		errs = append(errs, errors.New("http.addr is required"))
	}
	switch c.Database.Driver {
	case db.DriverPostgres, db.DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("database.driver %q is not supported", c.Database.Driver))
	}
	if strings.TrimSpace(c.CourseService.BaseURL) == "" {
		errs = append(errs, errors.New("course_service.base_url is required"))
	} else if u, err := url.Parse(c.CourseService.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("course_service.base_url %q is not an absolute url", c.CourseService.BaseURL))
	}
	if c.CourseService.Timeout <= 0 {
		errs = append(errs, errors.New("course_service.timeout must be positive"))
	}
	if c.Breaker.FailureThreshold < 1 {
		errs = append(errs, errors.New("breaker.failure_threshold must be at least 1"))
	}
	if c.Breaker.WindowDuration <= 0 || c.Breaker.OpenDuration <= 0 {
		errs = append(errs, errors.New("breaker durations must be positive"))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("retry.max_attempts must be at least 1"))
	}
	if c.Retry.BaseDelay <= 0 || c.Retry.BackoffCap <= 0 {
		errs = append(errs, errors.New("retry delays must be positive"))
	}
	return errors.Join(errs...)
}

func (c Config) DBConfig() db.Config {
	return db.Config{
		Driver: c.Database.Driver,
		DSN:    c.Database.DSN,
		Postgres: db.PostgresConfig{
			Host:     c.Postgres.Host,
			Port:     c.Postgres.Port,
			User:     c.Postgres.User,
			Password: c.Postgres.Password,
			Name:     c.Postgres.Name,
			SSLMode:  c.Postgres.SSLMode,
		},
	}
}

func (c Config) BreakerConfig() resilience.BreakerConfig {
	return resilience.BreakerConfig{
		FailureThreshold: uint32(c.Breaker.FailureThreshold),
		WindowDuration:   c.Breaker.WindowDuration,
		OpenDuration:     c.Breaker.OpenDuration,
	}
}

func (c Config) RetryConfig() resilience.RetryConfig {
	rc := resilience.DefaultRetryConfig()
	rc.MaxAttempts = c.Retry.MaxAttempts
	rc.BaseDelay = c.Retry.BaseDelay
	rc.BackoffCap = c.Retry.BackoffCap
	return rc
}

// Masked returns a copy safe to print.
func (c Config) Masked() Config {
	out := c
	out.HTTP.CORSOrigins = append([]string(nil), c.HTTP.CORSOrigins...)
	if out.Postgres.Password != "" {
		out.Postgres.Password = "****"
	}
	if out.Redis.Password != "" {
		out.Redis.Password = "****"
	}
	if out.Database.DSN != "" {
		out.Database.DSN = maskDSN(out.Database.DSN)
	}
	return out
}

func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "****")
	}
	return u.String()
}
