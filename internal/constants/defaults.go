package constants

// Default dispatch configuration values
const (
	DefaultBatchSize             = 100
	DefaultBatchTimeoutSec       = 30
	DefaultBanThreshold          = 3
	DefaultBanWindowMin          = 10
	DefaultVerifyTimeoutMs       = 1500
	DefaultExpiryMarginMin       = 60
	DefaultSchedulePollSec       = 30
	DefaultNumberLifetimeDays    = 14
	DefaultDeliveryRetryAttempts = 2
)

// Default timeout values
const (
	DefaultHTTPTimeoutSec        = 30
	DefaultDatabaseRetryAttempts = 3
	DefaultGracefulShutdownSec   = 30
	DefaultBackoffInitialMs      = 500
	DefaultBackoffMaxSec         = 5
	DefaultServerReadTimeoutSec  = 15
	DefaultServerWriteTimeoutSec = 15
	DefaultServerIdleTimeoutSec  = 60
	DefaultServerPort            = 8084
)

// Content assist defaults
const (
	DefaultAssistModel           = "gemini-2.5-flash"
	DefaultAssistTimeoutSec      = 20
	DefaultAssistBreakerFailures = 5
	DefaultAssistBreakerResetSec = 60
)

// Validation bounds
const (
	MinPhoneNumberLength = 7
	MaxPhoneNumberLength = 15
	MaxMessageLength     = 4096
	MaxCampaignNameLen   = 128
	MaxImportFileSizeMB  = 5
)

// Encryption parameters
const (
	EncryptionSalt       = "wasender-db-salt-v1"
	EncryptionLookupSalt = "wasender-lookup-salt-v1"
	KeySize              = 32
	NonceSize            = 12
	KeyIterations        = 100000
)

const (
	BytesPerMegabyte       = 1024 * 1024
	ServerErrorChannelSize = 1
)
