package prefs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/MarkoPoloResearchLab/ruralassist/internal/model"
)

const redisKeyPrefix = "ruralassist:prefs:"

// MemoryBackend keeps preferences in process memory.
type MemoryBackend struct {
	mutex    sync.RWMutex
	profiles map[string]map[string]string
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{profiles: make(map[string]map[string]string)}
}

func (backend *MemoryBackend) Load(_ context.Context, profileID string, key string) (string, bool, error) {
	if profileID == "" {
		return "", false, ErrMissingProfileID
	}
	backend.mutex.RLock()
	defer backend.mutex.RUnlock()
	value, found := backend.profiles[profileID][key]
	return value, found, nil
}

func (backend *MemoryBackend) Save(_ context.Context, profileID string, key string, value string) error {
	if profileID == "" {
		return ErrMissingProfileID
	}
	backend.mutex.Lock()
	defer backend.mutex.Unlock()
	values, found := backend.profiles[profileID]
	if !found {
		values = make(map[string]string)
		backend.profiles[profileID] = values
	}
	values[key] = value
	return nil
}

func (backend *MemoryBackend) Delete(_ context.Context, profileID string, key string) error {
	if profileID == "" {
		return ErrMissingProfileID
	}
	backend.mutex.Lock()
	defer backend.mutex.Unlock()
	delete(backend.profiles[profileID], key)
	return nil
}

// GormBackend keeps preferences in the preferences table.
type GormBackend struct {
	database *gorm.DB
}

func NewGormBackend(database *gorm.DB) *GormBackend {
	return &GormBackend{database: database}
}

func (backend *GormBackend) Load(ctx context.Context, profileID string, key string) (string, bool, error) {
	if profileID == "" {
		return "", false, ErrMissingProfileID
	}
	var preference model.Preference
	queryErr := backend.database.WithContext(ctx).
		Where("profile_id = ? AND pref_key = ?", profileID, key).
		Take(&preference).Error
	if errors.Is(queryErr, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if queryErr != nil {
		return "", false, fmt.Errorf("load preference: %w", queryErr)
	}
	return preference.Value, true, nil
}

func (backend *GormBackend) Save(ctx context.Context, profileID string, key string, value string) error {
	preference, buildErr := model.NewPreference(model.PreferenceInput{ProfileID: profileID, Key: key, Value: value})
	if buildErr != nil {
		return buildErr
	}
	upsertErr := backend.database.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "profile_id"}, {Name: "pref_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&preference).Error
	if upsertErr != nil {
		return fmt.Errorf("save preference: %w", upsertErr)
	}
	return nil
}

func (backend *GormBackend) Delete(ctx context.Context, profileID string, key string) error {
	if profileID == "" {
		return ErrMissingProfileID
	}
	deleteErr := backend.database.WithContext(ctx).
		Where("profile_id = ? AND pref_key = ?", profileID, key).
		Delete(&model.Preference{}).Error
	if deleteErr != nil {
		return fmt.Errorf("delete preference: %w", deleteErr)
	}
	return nil
}

// RedisBackend keeps each profile's preferences in one Redis hash.
type RedisBackend struct {
	client     redis.UniversalClient
	profileTTL time.Duration
}

// NewRedisBackend returns a RedisBackend. A positive profileTTL refreshes the hash expiry on every write.
func NewRedisBackend(client redis.UniversalClient, profileTTL time.Duration) *RedisBackend {
	return &RedisBackend{client: client, profileTTL: profileTTL}
}

// Close releases the Redis connection pool.
func (backend *RedisBackend) Close() error {
	return backend.client.Close()
}

func redisProfileKey(profileID string) string {
	return redisKeyPrefix + strings.TrimSpace(profileID)
}

func (backend *RedisBackend) Load(ctx context.Context, profileID string, key string) (string, bool, error) {
	if profileID == "" {
		return "", false, ErrMissingProfileID
	}
	value, getErr := backend.client.HGet(ctx, redisProfileKey(profileID), key).Result()
	if errors.Is(getErr, redis.Nil) {
		return "", false, nil
	}
	if getErr != nil {
		return "", false, fmt.Errorf("redis hget: %w", getErr)
	}
	return value, true, nil
}

func (backend *RedisBackend) Save(ctx context.Context, profileID string, key string, value string) error {
	if profileID == "" {
		return ErrMissingProfileID
	}
	hashKey := redisProfileKey(profileID)
	if setErr := backend.client.HSet(ctx, hashKey, key, value).Err(); setErr != nil {
		return fmt.Errorf("redis hset: %w", setErr)
	}
	if backend.profileTTL > 0 {
		if expireErr := backend.client.Expire(ctx, hashKey, backend.profileTTL).Err(); expireErr != nil {
			return fmt.Errorf("redis expire: %w", expireErr)
		}
	}
	return nil
}

func (backend *RedisBackend) Delete(ctx context.Context, profileID string, key string) error {
	if profileID == "" {
		return ErrMissingProfileID
	}
	if deleteErr := backend.client.HDel(ctx, redisProfileKey(profileID), key).Err(); deleteErr != nil {
		return fmt.Errorf("redis hdel: %w", deleteErr)
	}
	return nil
}
