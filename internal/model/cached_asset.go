package model

import (
	"errors"
	"strings"
	"time"
)

const (
	cachedAssetCacheNameMaxLength = 128
	cachedAssetPathMaxLength      = 512
	defaultCachedAssetContentType = "application/octet-stream"
)

var (
	ErrInvalidCachedAssetCacheName = errors.New("invalid_cached_asset_cache_name")
	ErrInvalidCachedAssetPath      = errors.New("invalid_cached_asset_path")
)

// CachedAsset is one response stored in a named offline cache generation.
type CachedAsset struct {
	CacheName   string    `gorm:"primaryKey;size:128"`
	Path        string    `gorm:"primaryKey;size:512"`
	ContentType string    `gorm:"size:255;not null"`
	Body        []byte    `gorm:"not null"`
	StoredAt    time.Time `gorm:"not null"`
}

// CachedAssetInput holds the raw values used to construct a CachedAsset.
type CachedAssetInput struct {
	CacheName   string
	Path        string
	ContentType string
	Body        []byte
	StoredAt    time.Time
}

// NewCachedAsset constructs a CachedAsset with validated, normalized fields.
func NewCachedAsset(input CachedAssetInput) (CachedAsset, error) {
	cacheName := strings.TrimSpace(input.CacheName)
	if cacheName == "" || len(cacheName) > cachedAssetCacheNameMaxLength {
		return CachedAsset{}, ErrInvalidCachedAssetCacheName
	}

	path := strings.TrimSpace(input.Path)
	if !strings.HasPrefix(path, "/") || len(path) > cachedAssetPathMaxLength {
		return CachedAsset{}, ErrInvalidCachedAssetPath
	}

	contentType := strings.TrimSpace(input.ContentType)
	if contentType == "" {
		contentType = defaultCachedAssetContentType
	}

	storedAt := input.StoredAt
	if storedAt.IsZero() {
		storedAt = time.Now().UTC()
	}

	body := input.Body
	if body == nil {
		body = []byte{}
	}

	return CachedAsset{
		CacheName:   cacheName,
		Path:        path,
		ContentType: contentType,
		Body:        body,
		StoredAt:    storedAt,
	}, nil
}
