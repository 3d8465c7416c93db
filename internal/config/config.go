package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"wasender/internal/constants"
	"wasender/internal/models"
	"wasender/internal/security"
)

var (
	ErrMissingDBPath      = models.ConfigError{Message: "missing database path"}
	ErrMissingDeliveryURL = models.ConfigError{Message: "missing delivery API base URL"}
)

func LoadConfig(path string) (*models.Config, error) {
	// Validate config file path to prevent directory traversal
	if err := security.ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	file, err := os.ReadFile(path) // #nosec G304 - Path validated by security.ValidateFilePath above
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	applyEnvironmentOverrides(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validate(c *models.Config) error {
	if c.Database.Path == "" {
		return ErrMissingDBPath
	}
	if c.Delivery.APIBaseURL == "" {
		return ErrMissingDeliveryURL
	}

	if c.Server.Port <= 0 {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.Server.ReadTimeoutSec <= 0 {
		c.Server.ReadTimeoutSec = constants.DefaultServerReadTimeoutSec
	}
	if c.Server.WriteTimeoutSec <= 0 {
		c.Server.WriteTimeoutSec = constants.DefaultServerWriteTimeoutSec
	}
	if c.Server.IdleTimeoutSec <= 0 {
		c.Server.IdleTimeoutSec = constants.DefaultServerIdleTimeoutSec
	}

	if c.Dispatch.BatchSize <= 0 {
		c.Dispatch.BatchSize = constants.DefaultBatchSize
	}
	if c.Dispatch.BatchTimeoutSec <= 0 {
		c.Dispatch.BatchTimeoutSec = constants.DefaultBatchTimeoutSec
	}
	if c.Dispatch.SchedulePollSec <= 0 {
		c.Dispatch.SchedulePollSec = constants.DefaultSchedulePollSec
	}

	if c.Pool.BanThreshold <= 0 {
		c.Pool.BanThreshold = constants.DefaultBanThreshold
	}
	if c.Pool.BanWindowMin <= 0 {
		c.Pool.BanWindowMin = constants.DefaultBanWindowMin
	}
	if c.Pool.ExpiryMarginMin <= 0 {
		c.Pool.ExpiryMarginMin = constants.DefaultExpiryMarginMin
	}
	if c.Pool.NumberLifetimeDays <= 0 {
		c.Pool.NumberLifetimeDays = constants.DefaultNumberLifetimeDays
	}

	if c.Identity.VerifyTimeoutMs <= 0 {
		c.Identity.VerifyTimeoutMs = constants.DefaultVerifyTimeoutMs
	}

	if c.Delivery.TimeoutSec <= 0 {
		c.Delivery.TimeoutSec = constants.DefaultHTTPTimeoutSec
	}
	if c.Delivery.RetryCount < 0 {
		c.Delivery.RetryCount = constants.DefaultDeliveryRetryAttempts
	}

	if c.Assist.Model == "" {
		c.Assist.Model = constants.DefaultAssistModel
	}
	if c.Assist.TimeoutSec <= 0 {
		c.Assist.TimeoutSec = constants.DefaultAssistTimeoutSec
	}

	if c.Retry.InitialBackoffMs <= 0 {
		c.Retry.InitialBackoffMs = constants.DefaultBackoffInitialMs
	}
	if c.Retry.MaxBackoffMs <= 0 {
		c.Retry.MaxBackoffMs = constants.DefaultBackoffMaxSec * 1000
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = constants.DefaultDatabaseRetryAttempts
	}

	return nil
}

func applyEnvironmentOverrides(c *models.Config) {
	if path := os.Getenv("WASENDER_DB_PATH"); path != "" {
		c.Database.Path = path
	}
	if url := os.Getenv("WASENDER_DELIVERY_API_URL"); url != "" {
		c.Delivery.APIBaseURL = url
	}
	if port := os.Getenv("WASENDER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
	if level := os.Getenv("WASENDER_LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
}
