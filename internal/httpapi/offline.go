package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/ruralassist/internal/offline"
)

const (
	ServiceWorkerPath = "/sw.js"
	ManifestPath      = "/manifest.webmanifest"
	AssetsRoutePrefix = "/assets"

	offlineErrorUnavailable = "asset_unavailable"
	offlineErrorScript      = "service_worker_render_failed"
	headerCacheSource       = "X-Cache-Source"
	headerCacheControl      = "Cache-Control"
	serviceWorkerCaching    = "no-cache"

	logEventServeAsset    = "serve_offline_asset"
	logEventServiceWorker = "render_service_worker"
)

// OfflineHandlers answers the shell asset routes from the offline worker.
type OfflineHandlers struct {
	logger *zap.Logger
	worker *offline.Worker
}

func NewOfflineHandlers(logger *zap.Logger, worker *offline.Worker) *OfflineHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OfflineHandlers{logger: logger, worker: worker}
}

// ServeAsset serves the request path cache-first and falls back to the cached home document.
func (handlers *OfflineHandlers) ServeAsset(context *gin.Context) {
	response, serveErr := handlers.worker.Serve(context.Request.Context(), context.Request.URL.Path)
	if serveErr != nil {
		status := http.StatusInternalServerError
		if errors.Is(serveErr, offline.ErrUnavailable) {
			status = http.StatusServiceUnavailable
		}
		handlers.logger.Warn(logEventServeAsset, zap.String("path", context.Request.URL.Path), zap.Error(serveErr))
		context.AbortWithStatusJSON(status, gin.H{jsonKeyError: offlineErrorUnavailable})
		return
	}
	context.Header(headerCacheSource, response.Source)
	context.Data(http.StatusOK, response.Asset.ContentType, response.Asset.Body)
}

// ServeServiceWorker renders sw.js for the active cache generation.
func (handlers *OfflineHandlers) ServeServiceWorker(context *gin.Context) {
	script, scriptErr := handlers.worker.ServiceWorkerScript()
	if scriptErr != nil {
		handlers.logger.Error(logEventServiceWorker, zap.Error(scriptErr))
		context.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{jsonKeyError: offlineErrorScript})
		return
	}
	context.Header(headerCacheControl, serviceWorkerCaching)
	context.Data(http.StatusOK, offline.ServiceWorkerContentType, script)
}
