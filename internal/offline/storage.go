package offline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/ruralassist/internal/model"
)

// Storage keeps named cache generations. PutAll replaces a generation atomically.
type Storage interface {
	PutAll(ctx context.Context, cacheName string, assets []Asset) error
	Get(ctx context.Context, cacheName string, path string) (Asset, bool, error)
	CacheNames(ctx context.Context) ([]string, error)
	DeleteCache(ctx context.Context, cacheName string) error
}

// GormStorage keeps cached assets in the cached_assets table.
type GormStorage struct {
	database *gorm.DB
	clock    func() time.Time
}

func NewGormStorage(database *gorm.DB) *GormStorage {
	return &GormStorage{database: database, clock: time.Now}
}

func (storage *GormStorage) PutAll(ctx context.Context, cacheName string, assets []Asset) error {
	rows := make([]model.CachedAsset, 0, len(assets))
	storedAt := storage.clock().UTC()
	for _, asset := range assets {
		row, buildErr := model.NewCachedAsset(model.CachedAssetInput{
			CacheName:   cacheName,
			Path:        asset.Path,
			ContentType: asset.ContentType,
			Body:        asset.Body,
			StoredAt:    storedAt,
		})
		if buildErr != nil {
			return fmt.Errorf("build cached asset %s: %w", asset.Path, buildErr)
		}
		rows = append(rows, row)
	}

	return storage.database.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		if err := transaction.Where("cache_name = ?", cacheName).Delete(&model.CachedAsset{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return transaction.Create(&rows).Error
	})
}

func (storage *GormStorage) Get(ctx context.Context, cacheName string, path string) (Asset, bool, error) {
	var row model.CachedAsset
	queryErr := storage.database.WithContext(ctx).
		Where("cache_name = ? AND path = ?", cacheName, path).
		Take(&row).Error
	if errors.Is(queryErr, gorm.ErrRecordNotFound) {
		return Asset{}, false, nil
	}
	if queryErr != nil {
		return Asset{}, false, fmt.Errorf("load cached asset: %w", queryErr)
	}
	return Asset{Path: row.Path, ContentType: row.ContentType, Body: row.Body}, true, nil
}

func (storage *GormStorage) CacheNames(ctx context.Context) ([]string, error) {
	var names []string
	queryErr := storage.database.WithContext(ctx).
		Model(&model.CachedAsset{}).
		Distinct("cache_name").
		Order("cache_name").
		Pluck("cache_name", &names).Error
	if queryErr != nil {
		return nil, fmt.Errorf("list cache names: %w", queryErr)
	}
	return names, nil
}

func (storage *GormStorage) DeleteCache(ctx context.Context, cacheName string) error {
	deleteErr := storage.database.WithContext(ctx).
		Where("cache_name = ?", cacheName).
		Delete(&model.CachedAsset{}).Error
	if deleteErr != nil {
		return fmt.Errorf("delete cache %s: %w", cacheName, deleteErr)
	}
	return nil
}

// MemoryStorage keeps generations for the process lifetime. Used by the static export and tests.
type MemoryStorage struct {
	mutex  sync.RWMutex
	caches map[string]map[string]Asset
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{caches: make(map[string]map[string]Asset)}
}

func (storage *MemoryStorage) PutAll(_ context.Context, cacheName string, assets []Asset) error {
	generation := make(map[string]Asset, len(assets))
	for _, asset := range assets {
		generation[asset.Path] = asset
	}
	storage.mutex.Lock()
	defer storage.mutex.Unlock()
	storage.caches[cacheName] = generation
	return nil
}

func (storage *MemoryStorage) Get(_ context.Context, cacheName string, path string) (Asset, bool, error) {
	storage.mutex.RLock()
	defer storage.mutex.RUnlock()
	asset, found := storage.caches[cacheName][path]
	return asset, found, nil
}

func (storage *MemoryStorage) CacheNames(context.Context) ([]string, error) {
	storage.mutex.RLock()
	defer storage.mutex.RUnlock()
	names := make([]string, 0, len(storage.caches))
	for name := range storage.caches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (storage *MemoryStorage) DeleteCache(_ context.Context, cacheName string) error {
	storage.mutex.Lock()
	defer storage.mutex.Unlock()
	delete(storage.caches, cacheName)
	return nil
}
