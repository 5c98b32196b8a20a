// =============================================================================
// NodeFlow default configuration
// =============================================================================
package config

import "time"

// DefaultConfig returns a configuration that runs without any external
// service: history in memory, Redis and telemetry off.
func DefaultConfig() *Config {
	return &Config{
		Server:     DefaultServerConfig(),
		Log:        DefaultLogConfig(),
		Engine:     DefaultEngineConfig(),
		Blackboard: DefaultBlackboardConfig(),
		Redis:      DefaultRedisConfig(),
		Database:   DefaultDatabaseConfig(),
		History:    DefaultHistoryConfig(),
		Metrics:    DefaultMetricsConfig(),
		Telemetry:  DefaultTelemetryConfig(),
	}
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    50,
		RateLimitBurst:  100,
	}
}

func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{MaxEvalDepth: 4096}
}

func DefaultBlackboardConfig() BlackboardConfig {
	return BlackboardConfig{
		SnapshotTTL: 24 * time.Hour,
	}
}

func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled:      false,
		Addr:         "localhost:6379",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		KeyPrefix:    "nodeflow:",
		CacheTTL:     10 * time.Minute,
	}
}

func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "sqlite",
		Host:            "localhost",
		Port:            5432,
		User:            "nodeflow",
		Name:            "nodeflow.db",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

func DefaultHistoryConfig() HistoryConfig {
	return HistoryConfig{
		Enabled:     true,
		Store:       "memory",
		MaxRuns:     1000,
		SaveWorkers: 0,
		SaveQueue:   256,
	}
}

func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   true,
		Namespace: "nodeflow",
		Path:      "/metrics",
	}
}

func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "nodeflow",
		SampleRate:   0.1,
		Insecure:     true,
	}
}
