package prefs

import (
	"context"
	"io"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
	DriverMemory = "memory"

	redisPingTimeout = 3 * time.Second

	logEventPreferenceBackendFallback = "preference_backend_fallback"
	logEventPreferenceBackendOpened   = "preference_backend_opened"
	logFieldDriver                    = "driver"
)

// BackendOptions selects and configures a preference backend.
type BackendOptions struct {
	Driver       string
	Database     *gorm.DB
	RedisAddress string
	ProfileTTL   time.Duration
}

// OpenBackend returns the configured backend. When it cannot be reached the memory
// backend is returned instead, so preferences last for the process lifetime only.
func OpenBackend(ctx context.Context, options BackendOptions, logger *zap.Logger) Backend {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch options.Driver {
	case DriverSQLite:
		if options.Database != nil {
			logger.Info(logEventPreferenceBackendOpened, zap.String(logFieldDriver, DriverSQLite))
			return NewGormBackend(options.Database)
		}
		logger.Warn(logEventPreferenceBackendFallback, zap.String(logFieldDriver, DriverSQLite))
	case DriverRedis:
		client := redis.NewClient(&redis.Options{Addr: options.RedisAddress})
		pingContext, cancel := context.WithTimeout(ctx, redisPingTimeout)
		pingErr := client.Ping(pingContext).Err()
		cancel()
		if pingErr == nil {
			logger.Info(logEventPreferenceBackendOpened, zap.String(logFieldDriver, DriverRedis))
			return NewRedisBackend(client, options.ProfileTTL)
		}
		_ = client.Close()
		logger.Warn(logEventPreferenceBackendFallback, zap.String(logFieldDriver, DriverRedis), zap.Error(pingErr))
	case DriverMemory:
		logger.Info(logEventPreferenceBackendOpened, zap.String(logFieldDriver, DriverMemory))
	default:
		logger.Warn(logEventPreferenceBackendFallback, zap.String(logFieldDriver, options.Driver))
	}
	return NewMemoryBackend()
}

// CloseBackend releases the connections held by backend. Backends without connections are left alone.
func CloseBackend(backend Backend) error {
	closer, ok := backend.(io.Closer)
	if !ok {
		return nil
	}
	return closer.Close()
}
