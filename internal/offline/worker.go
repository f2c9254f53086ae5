// Package offline keeps a versioned, cache-first copy of the application shell so pages stay
// reachable when the static origin is not.
package offline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	StateInstalling = "installing"
	StateActive     = "active"

	SourceCache    = "cache"
	SourceUpstream = "upstream"
	SourceFallback = "fallback"

	logEventInstalled     = "offline_cache_installed"
	logEventInstallFailed = "offline_cache_install_failed"
	logEventCacheDeleted  = "offline_cache_deleted"
	logEventUpstreamMiss  = "offline_upstream_failed"
)

var (
	ErrMissingCacheName = errors.New("offline_missing_cache_name")
	ErrMissingFetcher   = errors.New("offline_missing_fetcher")
	ErrMissingStorage   = errors.New("offline_missing_storage")
	ErrUnavailable      = errors.New("offline_asset_unavailable")
)

// DefaultPaths is the allow-list installed into every cache generation.
func DefaultPaths() []string {
	return []string{
		HomePath,
		HomeDocument,
		"/assets/css/style.css",
		"/assets/js/app.js",
		"/assets/images/logo.svg",
		"/manifest.webmanifest",
	}
}

// CacheName composes a generation name such as ruralassist-frontend-v6.
func CacheName(application string, component string, version int) string {
	return fmt.Sprintf("%s-%s-v%d", application, component, version)
}

type WorkerOptions struct {
	CacheName string
	Paths     []string
	Upstream  Fetcher
	Storage   Storage
	Logger    *zap.Logger
}

// Response is a served asset and where it came from.
type Response struct {
	Asset  Asset
	Source string
}

// Worker installs one cache generation, retires the others and answers requests cache-first.
type Worker struct {
	cacheName string
	paths     []string
	upstream  Fetcher
	storage   Storage
	logger    *zap.Logger

	stateMutex sync.RWMutex
	state      string
}

func NewWorker(options WorkerOptions) (*Worker, error) {
	if options.CacheName == "" {
		return nil, ErrMissingCacheName
	}
	if options.Upstream == nil {
		return nil, ErrMissingFetcher
	}
	if options.Storage == nil {
		return nil, ErrMissingStorage
	}
	paths := options.Paths
	if len(paths) == 0 {
		paths = DefaultPaths()
	}
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		cacheName: options.CacheName,
		paths:     append([]string(nil), paths...),
		upstream:  options.Upstream,
		storage:   options.Storage,
		logger:    logger,
		state:     StateInstalling,
	}, nil
}

func (worker *Worker) CacheName() string {
	return worker.cacheName
}

func (worker *Worker) Paths() []string {
	return append([]string(nil), worker.paths...)
}

func (worker *Worker) State() string {
	worker.stateMutex.RLock()
	defer worker.stateMutex.RUnlock()
	return worker.state
}

// Install fetches the allow-list concurrently and stores it as one generation. Any failed fetch
// aborts the install before anything is written.
func (worker *Worker) Install(ctx context.Context) error {
	assets := make([]Asset, len(worker.paths))
	group, groupCtx := errgroup.WithContext(ctx)
	for index, assetPath := range worker.paths {
		index, assetPath := index, assetPath
		group.Go(func() error {
			asset, fetchErr := worker.upstream.Fetch(groupCtx, assetPath)
			if fetchErr != nil {
				return fetchErr
			}
			asset.Path = assetPath
			assets[index] = asset
			return nil
		})
	}
	if waitErr := group.Wait(); waitErr != nil {
		worker.logger.Warn(logEventInstallFailed, zap.String("cache_name", worker.cacheName), zap.Error(waitErr))
		return fmt.Errorf("install %s: %w", worker.cacheName, waitErr)
	}
	if putErr := worker.storage.PutAll(ctx, worker.cacheName, assets); putErr != nil {
		worker.logger.Warn(logEventInstallFailed, zap.String("cache_name", worker.cacheName), zap.Error(putErr))
		return fmt.Errorf("install %s: %w", worker.cacheName, putErr)
	}
	worker.logger.Info(logEventInstalled, zap.String("cache_name", worker.cacheName), zap.Int("assets", len(assets)))
	return nil
}

// Activate deletes every other generation and marks the worker active.
func (worker *Worker) Activate(ctx context.Context) error {
	names, listErr := worker.storage.CacheNames(ctx)
	if listErr != nil {
		return listErr
	}
	for _, name := range names {
		if name == worker.cacheName {
			continue
		}
		if deleteErr := worker.storage.DeleteCache(ctx, name); deleteErr != nil {
			return deleteErr
		}
		worker.logger.Info(logEventCacheDeleted, zap.String("cache_name", name))
	}
	worker.stateMutex.Lock()
	worker.state = StateActive
	worker.stateMutex.Unlock()
	return nil
}

// Serve answers from the cache, then the upstream, then the cached home document.
func (worker *Worker) Serve(ctx context.Context, requestPath string) (Response, error) {
	cached, found, getErr := worker.storage.Get(ctx, worker.cacheName, requestPath)
	if getErr == nil && found {
		return Response{Asset: cached, Source: SourceCache}, nil
	}

	fetched, fetchErr := worker.upstream.Fetch(ctx, requestPath)
	if fetchErr == nil {
		return Response{Asset: fetched, Source: SourceUpstream}, nil
	}
	worker.logger.Debug(logEventUpstreamMiss, zap.String("path", requestPath), zap.Error(fetchErr))

	home, homeFound, homeErr := worker.storage.Get(ctx, worker.cacheName, HomeDocument)
	if homeErr == nil && homeFound {
		return Response{Asset: home, Source: SourceFallback}, nil
	}
	return Response{}, fmt.Errorf("%w: %s", ErrUnavailable, requestPath)
}
