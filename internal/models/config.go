package models

// ConfigError represents a configuration validation failure.
type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return "config error: " + e.Message
}

type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Dispatch DispatchConfig `json:"dispatch"`
	Pool     PoolConfig     `json:"pool"`
	Identity IdentityConfig `json:"identity"`
	Delivery DeliveryConfig `json:"delivery"`
	Assist   AssistConfig   `json:"assist"`
	Retry    RetryConfig    `json:"retry"`
	Tracing  TracingConfig  `json:"tracing"`
	LogLevel string         `json:"logLevel"`
}

type ServerConfig struct {
	Port            int `json:"port"`
	ReadTimeoutSec  int `json:"readTimeoutSec"`
	WriteTimeoutSec int `json:"writeTimeoutSec"`
	IdleTimeoutSec  int `json:"idleTimeoutSec"`
}

type DatabaseConfig struct {
	Path string `json:"path"`
}

type DispatchConfig struct {
	BatchSize       int `json:"batchSize"`
	BatchTimeoutSec int `json:"batchTimeoutSec"`
	SchedulePollSec int `json:"schedulePollSec"`
}

type PoolConfig struct {
	BanThreshold       int `json:"banThreshold"`
	BanWindowMin       int `json:"banWindowMin"`
	ExpiryMarginMin    int `json:"expiryMarginMin"`
	NumberLifetimeDays int `json:"numberLifetimeDays"`
}

type IdentityConfig struct {
	VerifyTimeoutMs int `json:"verifyTimeoutMs"`
}

type DeliveryConfig struct {
	APIBaseURL string `json:"apiBaseUrl"`
	TimeoutSec int    `json:"timeoutSec"`
	RetryCount int    `json:"retryCount"`
}

type AssistConfig struct {
	Enabled    bool   `json:"enabled"`
	Model      string `json:"model"`
	TimeoutSec int    `json:"timeoutSec"`
}

type RetryConfig struct {
	InitialBackoffMs int `json:"initialBackoffMs"`
	MaxBackoffMs     int `json:"maxBackoffMs"`
	MaxAttempts      int `json:"maxAttempts"`
}

type TracingConfig struct {
	Enabled        bool    `json:"enabled"`
	ServiceName    string  `json:"serviceName"`
	ServiceVersion string  `json:"serviceVersion"`
	Environment    string  `json:"environment"`
	OTLPEndpoint   string  `json:"otlpEndpoint"`
	SampleRate     float64 `json:"sampleRate"`
	UseStdout      bool    `json:"useStdout"`
}
