// =============================================================================
// NodeFlow configuration loader
// =============================================================================
// YAML file plus environment overrides.
//
// Usage:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("nodeflow.yaml").
//	    WithEnvPrefix("NODEFLOW").
//	    Load()
//
// Precedence: defaults -> YAML file -> environment.
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Configuration tree
// =============================================================================

// Config is the complete NodeFlow configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server" env:"SERVER"`
	Log        LogConfig        `yaml:"log" env:"LOG"`
	Engine     EngineConfig     `yaml:"engine" env:"ENGINE"`
	Blackboard BlackboardConfig `yaml:"blackboard" env:"BLACKBOARD"`
	Redis      RedisConfig      `yaml:"redis" env:"REDIS"`
	Database   DatabaseConfig   `yaml:"database" env:"DATABASE"`
	History    HistoryConfig    `yaml:"history" env:"HISTORY"`
	Metrics    MetricsConfig    `yaml:"metrics" env:"METRICS"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig configures the HTTP endpoint of `nodeflow serve`.
type ServerConfig struct {
	HTTPPort        int           `yaml:"http_port" env:"HTTP_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// RateLimitRPS limits requests per client IP; zero disables limiting.
	RateLimitRPS   float64 `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	// JWTSecret enables HS256 bearer auth on the /runs API when set.
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
	JWTIssuer string `yaml:"jwt_issuer" env:"JWT_ISSUER"`
	// TLSCertFile and TLSKeyFile switch the listener to HTTPS when both are set.
	TLSCertFile string `yaml:"tls_cert_file" env:"TLS_CERT_FILE"`
	TLSKeyFile  string `yaml:"tls_key_file" env:"TLS_KEY_FILE"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	// debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// json or console
	Format           string   `yaml:"format" env:"FORMAT"`
	OutputPaths      []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	EnableCaller     bool     `yaml:"enable_caller" env:"ENABLE_CALLER"`
	EnableStacktrace bool     `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// EngineConfig tunes graph evaluation.
type EngineConfig struct {
	// MaxEvalDepth bounds nested output evaluation; deeper chains are
	// reported as evaluation cycles.
	MaxEvalDepth int `yaml:"max_eval_depth" env:"MAX_EVAL_DEPTH"`
}

// BlackboardConfig holds the variable templates every graph hierarchy
// starts from, plus the snapshot settings.
type BlackboardConfig struct {
	Globals []VarConfig `yaml:"globals" env:"-"`
	Locals  []VarConfig `yaml:"locals" env:"-"`
	// Snapshot names the Redis snapshot restored on start and saved on
	// shutdown. Empty disables snapshots.
	Snapshot    string        `yaml:"snapshot" env:"SNAPSHOT"`
	SnapshotTTL time.Duration `yaml:"snapshot_ttl" env:"SNAPSHOT_TTL"`
}

// VarConfig is one variable template. Type is float, int, string or bool.
type VarConfig struct {
	Key   string `yaml:"key"`
	Type  string `yaml:"type"`
	Value any    `yaml:"value"`
}

// RedisConfig configures the Redis client used for blackboard snapshots
// and the run cache.
type RedisConfig struct {
	Enabled      bool          `yaml:"enabled" env:"ENABLED"`
	Addr         string        `yaml:"addr" env:"ADDR"`
	Password     string        `yaml:"password" env:"PASSWORD"`
	DB           int           `yaml:"db" env:"DB"`
	PoolSize     int           `yaml:"pool_size" env:"POOL_SIZE"`
	MinIdleConns int           `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
	KeyPrefix    string        `yaml:"key_prefix" env:"KEY_PREFIX"`
	CacheTTL     time.Duration `yaml:"cache_ttl" env:"CACHE_TTL"`
	TLS          bool          `yaml:"tls" env:"TLS"`
	// TLSCAFile adds a PEM bundle to the roots used to verify the server.
	TLSCAFile string `yaml:"tls_ca_file" env:"TLS_CA_FILE"`
}

// DatabaseConfig configures the SQL database backing the run history.
type DatabaseConfig struct {
	// sqlite, postgres or mysql
	Driver          string        `yaml:"driver" env:"DRIVER"`
	Host            string        `yaml:"host" env:"HOST"`
	Port            int           `yaml:"port" env:"PORT"`
	User            string        `yaml:"user" env:"USER"`
	Password        string        `yaml:"password" env:"PASSWORD"`
	Name            string        `yaml:"name" env:"NAME"`
	SSLMode         string        `yaml:"ssl_mode" env:"SSL_MODE"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// HistoryConfig selects where run records go.
type HistoryConfig struct {
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// memory or database
	Store string `yaml:"store" env:"STORE"`
	// MaxRuns caps the memory store; older runs are evicted first.
	MaxRuns int `yaml:"max_runs" env:"MAX_RUNS"`
	// SaveWorkers > 0 moves saves off the executing goroutine onto a pool
	// with a queue of SaveQueue runs.
	SaveWorkers int `yaml:"save_workers" env:"SAVE_WORKERS"`
	SaveQueue   int `yaml:"save_queue" env:"SAVE_QUEUE"`
}

// MetricsConfig configures the Prometheus collector.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" env:"ENABLED"`
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
	Path      string `yaml:"path" env:"PATH"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
	// Insecure sends OTLP in plaintext; otherwise TLS with system roots.
	Insecure bool `yaml:"insecure" env:"INSECURE"`
}

// =============================================================================
// Loader
// =============================================================================

// Loader builds a Config.
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "NODEFLOW",
		validators: make([]func(*Config) error, 0),
	}
}

func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator adds a check run after loading.
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load resolves defaults, then the YAML file, then the environment, and
// finally runs the validators. A missing file is not an error.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv walks struct fields by their env tag; nested structs
// extend the key with their own tag.
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// comma separated string slices
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// Helpers
// =============================================================================

// MustLoad loads path and panics on failure.
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromEnv loads defaults overridden by the environment only.
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

var (
	logLevels     = []string{"debug", "info", "warn", "error"}
	logFormats    = []string{"json", "console"}
	dbDrivers     = []string{"sqlite", "postgres", "mysql"}
	historyStores = []string{"memory", "database"}
	varTypes      = []string{"float", "int", "string", "bool"}
)

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	if c.Server.RateLimitRPS < 0 || (c.Server.RateLimitRPS > 0 && c.Server.RateLimitBurst <= 0) {
		errs = append(errs, "rate_limit_rps must not be negative and needs a positive rate_limit_burst")
	}
	if (c.Server.TLSCertFile == "") != (c.Server.TLSKeyFile == "") {
		errs = append(errs, "tls_cert_file and tls_key_file must be set together")
	}
	if !slices.Contains(logLevels, c.Log.Level) {
		errs = append(errs, fmt.Sprintf("unknown log level %q", c.Log.Level))
	}
	if !slices.Contains(logFormats, c.Log.Format) {
		errs = append(errs, fmt.Sprintf("unknown log format %q", c.Log.Format))
	}
	if c.Engine.MaxEvalDepth <= 0 {
		errs = append(errs, "max_eval_depth must be positive")
	}
	for _, v := range append(slices.Clone(c.Blackboard.Globals), c.Blackboard.Locals...) {
		if _, err := v.Resolve(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if c.History.Enabled {
		if !slices.Contains(historyStores, c.History.Store) {
			errs = append(errs, fmt.Sprintf("unknown history store %q", c.History.Store))
		}
		if c.History.SaveWorkers < 0 || c.History.SaveQueue < 0 {
			errs = append(errs, "save_workers and save_queue must not be negative")
		}
		if c.History.Store == "database" && !slices.Contains(dbDrivers, c.Database.Driver) {
			errs = append(errs, fmt.Sprintf("unknown database driver %q", c.Database.Driver))
		}
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		errs = append(errs, "sample_rate must be between 0 and 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Resolve converts Value to the Go type named by Type. YAML decodes
// whole numbers as int, so a float template written as `1` still yields
// a float64.
func (v VarConfig) Resolve() (any, error) {
	if v.Key == "" {
		return nil, fmt.Errorf("blackboard variable without key")
	}
	switch v.Type {
	case "float":
		switch x := v.Value.(type) {
		case nil:
			return 0.0, nil
		case float64:
			return x, nil
		case int:
			return float64(x), nil
		}
	case "int":
		switch x := v.Value.(type) {
		case nil:
			return 0, nil
		case int:
			return x, nil
		}
	case "string":
		switch x := v.Value.(type) {
		case nil:
			return "", nil
		case string:
			return x, nil
		}
	case "bool":
		switch x := v.Value.(type) {
		case nil:
			return false, nil
		case bool:
			return x, nil
		}
	default:
		return nil, fmt.Errorf("variable %q: unknown type %q (want one of %s)",
			v.Key, v.Type, strings.Join(varTypes, ", "))
	}
	return nil, fmt.Errorf("variable %q: value %v is not a %s", v.Key, v.Value, v.Type)
}

// DSN renders the driver specific connection string.
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
		)
	case "mysql":
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true",
			d.User, d.Password, d.Host, d.Port, d.Name,
		)
	case "sqlite":
		return d.Name
	default:
		return ""
	}
}

// Addr is the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.HTTPPort)
}
