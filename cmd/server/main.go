package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/ruralassist/internal/activity"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/background"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/chat"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/config"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/faq"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/gateway"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/httpapi"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/i18n"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/offline"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/otp"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/prefs"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/storage"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/upload"
)

const (
	commandUseName                = "server"
	commandShortDescription       = "Run the RuralAssist web frontend"
	commandLongDescription        = "Serve the RuralAssist citizen pages, the JSON helpers and the offline shell"
	missingConfigurationMessage   = "missing required configuration"
	invalidConfigurationMessage   = "invalid configuration"
	loggerCreationErrorMessage    = "logger"
	unexpectedArgumentsMessage    = "unexpected command arguments"
	commandInitializationFailure  = "failed to configure command"
	flagNotDefinedMessage         = "flag %s not defined"
	environmentConfigurationError = "failed to apply environment configuration"

	logEventListening        = "listening"
	logEventShuttingDown     = "shutting_down"
	logEventOpenDatabase     = "open_db"
	logEventOfflineInstall   = "offline_cache_install"
	logEventServer           = "server"
	logEventShutdown         = "shutdown"
	logEventClosePreferences = "close_preferences"
	logFieldAddress          = "addr"
	readHeaderTimeoutSeconds = 5
	shutdownTimeout          = 10 * time.Second
	offlineInstallTimeout    = 30 * time.Second

	flagNameApplicationAddress  = "app-addr"
	flagNameAPIBaseURL          = "api-base-url"
	flagNameSessionSecret       = "session-secret"
	flagNamePreferenceDriver    = "prefs-driver"
	flagNameDatabaseDSN         = "db-dsn"
	flagNameRedisAddress        = "redis-addr"
	flagNameDefaultLanguage     = "default-language"
	flagNameMaxUploadBytes      = "max-upload-bytes"
	flagNameRequestTimeout      = "request-timeout"
	flagNameSearchTimeout       = "search-timeout"
	flagNameOTPResendCooldown   = "otp-resend-cooldown"
	flagNameChatCooldown        = "chat-cooldown"
	flagNameHealthPollInterval  = "health-poll-interval"
	flagNameCacheVersion        = "cache-version"
	flagNameStaticOriginURL     = "static-origin-url"
	flagNameCORSAllowedOrigins  = "cors-allowed-origins"
	flagNameChatTranscriptLimit = "chat-transcript-limit"

	environmentKeyApplicationAddress  = "APP_ADDR"
	environmentKeyAPIBaseURL          = "API_BASE_URL"
	environmentKeySessionSecret       = "SESSION_SECRET"
	environmentKeyPreferenceDriver    = "PREFS_DRIVER"
	environmentKeyDatabaseDSN         = "DB_DSN"
	environmentKeyRedisAddress        = "REDIS_ADDR"
	environmentKeyDefaultLanguage     = "DEFAULT_LANGUAGE"
	environmentKeyMaxUploadBytes      = "MAX_UPLOAD_BYTES"
	environmentKeyRequestTimeout      = "REQUEST_TIMEOUT"
	environmentKeySearchTimeout       = "SEARCH_TIMEOUT"
	environmentKeyOTPResendCooldown   = "OTP_RESEND_COOLDOWN"
	environmentKeyChatCooldown        = "CHAT_COOLDOWN"
	environmentKeyHealthPollInterval  = "HEALTH_POLL_INTERVAL"
	environmentKeyCacheVersion        = "CACHE_VERSION"
	environmentKeyStaticOriginURL     = "STATIC_ORIGIN_URL"
	environmentKeyCORSAllowedOrigins  = "CORS_ALLOWED_ORIGINS"
	environmentKeyChatTranscriptLimit = "CHAT_TRANSCRIPT_LIMIT"
)

type flagBinding struct {
	environmentKey string
	flagName       string
}

var flagBindings = []flagBinding{
	{environmentKey: environmentKeyApplicationAddress, flagName: flagNameApplicationAddress},
	{environmentKey: environmentKeyAPIBaseURL, flagName: flagNameAPIBaseURL},
	{environmentKey: environmentKeySessionSecret, flagName: flagNameSessionSecret},
	{environmentKey: environmentKeyPreferenceDriver, flagName: flagNamePreferenceDriver},
	{environmentKey: environmentKeyDatabaseDSN, flagName: flagNameDatabaseDSN},
	{environmentKey: environmentKeyRedisAddress, flagName: flagNameRedisAddress},
	{environmentKey: environmentKeyDefaultLanguage, flagName: flagNameDefaultLanguage},
	{environmentKey: environmentKeyMaxUploadBytes, flagName: flagNameMaxUploadBytes},
	{environmentKey: environmentKeyRequestTimeout, flagName: flagNameRequestTimeout},
	{environmentKey: environmentKeySearchTimeout, flagName: flagNameSearchTimeout},
	{environmentKey: environmentKeyOTPResendCooldown, flagName: flagNameOTPResendCooldown},
	{environmentKey: environmentKeyChatCooldown, flagName: flagNameChatCooldown},
	{environmentKey: environmentKeyHealthPollInterval, flagName: flagNameHealthPollInterval},
	{environmentKey: environmentKeyCacheVersion, flagName: flagNameCacheVersion},
	{environmentKey: environmentKeyStaticOriginURL, flagName: flagNameStaticOriginURL},
	{environmentKey: environmentKeyCORSAllowedOrigins, flagName: flagNameCORSAllowedOrigins},
	{environmentKey: environmentKeyChatTranscriptLimit, flagName: flagNameChatTranscriptLimit},
}

// DatabaseOpener opens the SQLite database holding preferences and the offline cache.
type DatabaseOpener func(storage.Config) (*gorm.DB, error)

// ServerApplication constructs and executes the server command.
type ServerApplication struct {
	configurationLoader *viper.Viper
	databaseOpener      DatabaseOpener
}

// NewServerApplication creates a ServerApplication with default dependencies.
func NewServerApplication() *ServerApplication {
	return &ServerApplication{
		configurationLoader: viper.New(),
		databaseOpener:      storage.OpenMigratedDatabase,
	}
}

// WithDatabaseOpener overrides the database opener dependency.
func (application *ServerApplication) WithDatabaseOpener(databaseOpener DatabaseOpener) *ServerApplication {
	application.databaseOpener = databaseOpener
	return application
}

// Command builds the Cobra command for the server.
func (application *ServerApplication) Command() (*cobra.Command, error) {
	rootCommand := &cobra.Command{
		Use:   commandUseName,
		Short: commandShortDescription,
		Long:  commandLongDescription,
		RunE:  application.runCommand,
	}

	if configurationErr := application.configureCommand(rootCommand); configurationErr != nil {
		return nil, configurationErr
	}

	return rootCommand, nil
}

func (application *ServerApplication) configureCommand(command *cobra.Command) error {
	defaults := config.Defaults()
	application.configurationLoader.AutomaticEnv()

	commandFlags := command.Flags()
	commandFlags.String(flagNameApplicationAddress, defaults.ApplicationAddress, "address for the HTTP server to listen on")
	commandFlags.String(flagNameAPIBaseURL, defaults.APIBaseURL, "origin of the RuralAssist backend API")
	commandFlags.String(flagNameSessionSecret, "", "secret signing the browser profile cookie")
	commandFlags.String(flagNamePreferenceDriver, defaults.PreferenceDriver, "preference backend: sqlite, redis or memory")
	commandFlags.String(flagNameDatabaseDSN, defaults.DatabaseDataSourceName, "SQLite data source for preferences and the offline cache")
	commandFlags.String(flagNameRedisAddress, defaults.RedisAddress, "Redis address used by the redis preference backend")
	commandFlags.String(flagNameDefaultLanguage, defaults.DefaultLanguage, "language of profiles that never chose one (en or hi)")
	commandFlags.Int64(flagNameMaxUploadBytes, defaults.MaxUploadBytes, "largest document accepted for OCR, in bytes")
	commandFlags.Duration(flagNameRequestTimeout, defaults.RequestTimeout, "timeout of backend requests")
	commandFlags.Duration(flagNameSearchTimeout, defaults.SearchTimeout, "timeout of the backend FAQ search before local ranking is used")
	commandFlags.Duration(flagNameOTPResendCooldown, defaults.OTPResendCooldown, "minimum delay between two OTP sends")
	commandFlags.Duration(flagNameChatCooldown, defaults.ChatCooldown, "minimum delay between two chat messages of one profile")
	commandFlags.Duration(flagNameHealthPollInterval, defaults.HealthPollInterval, "backend health probe period")
	commandFlags.Int(flagNameCacheVersion, defaults.CacheVersion, "generation of the offline cache")
	commandFlags.String(flagNameStaticOriginURL, "", "origin the offline shell is fetched from instead of the embedded files")
	commandFlags.StringSlice(flagNameCORSAllowedOrigins, defaults.CORSAllowedOrigins, "origins allowed to call the JSON API")
	commandFlags.Int(flagNameChatTranscriptLimit, defaults.ChatTranscriptLimit, "messages kept in a chat transcript")

	for _, binding := range flagBindings {
		if bindErr := application.bindFlag(commandFlags, binding.environmentKey, binding.flagName); bindErr != nil {
			return bindErr
		}
	}

	for _, binding := range flagBindings {
		if environmentErr := application.applyEnvironmentConfiguration(commandFlags, binding.environmentKey, binding.flagName); environmentErr != nil {
			return environmentErr
		}
	}

	return nil
}

func (application *ServerApplication) bindFlag(flagSet *pflag.FlagSet, environmentKey string, flagName string) error {
	flag := flagSet.Lookup(flagName)
	if flag == nil {
		return fmt.Errorf(flagNotDefinedMessage, flagName)
	}

	if bindErr := application.configurationLoader.BindPFlag(environmentKey, flag); bindErr != nil {
		return bindErr
	}

	return nil
}

func (application *ServerApplication) applyEnvironmentConfiguration(flagSet *pflag.FlagSet, environmentKey string, flagName string) error {
	environmentValue, environmentFound := os.LookupEnv(environmentKey)
	if !environmentFound {
		return nil
	}

	if setErr := flagSet.Set(flagName, environmentValue); setErr != nil {
		return fmt.Errorf("%s: %w", environmentConfigurationError, setErr)
	}

	return nil
}

// resolveConfiguration overlays the flag and environment values on the defaults.
func (application *ServerApplication) resolveConfiguration() config.Config {
	loader := application.configurationLoader
	configuration := config.Defaults()
	configuration.ApplicationAddress = strings.TrimSpace(loader.GetString(environmentKeyApplicationAddress))
	configuration.APIBaseURL = strings.TrimSpace(loader.GetString(environmentKeyAPIBaseURL))
	configuration.SessionSecret = strings.TrimSpace(loader.GetString(environmentKeySessionSecret))
	configuration.PreferenceDriver = strings.ToLower(strings.TrimSpace(loader.GetString(environmentKeyPreferenceDriver)))
	configuration.DatabaseDataSourceName = strings.TrimSpace(loader.GetString(environmentKeyDatabaseDSN))
	configuration.RedisAddress = strings.TrimSpace(loader.GetString(environmentKeyRedisAddress))
	configuration.DefaultLanguage = strings.ToLower(strings.TrimSpace(loader.GetString(environmentKeyDefaultLanguage)))
	configuration.MaxUploadBytes = loader.GetInt64(environmentKeyMaxUploadBytes)
	configuration.RequestTimeout = loader.GetDuration(environmentKeyRequestTimeout)
	configuration.SearchTimeout = loader.GetDuration(environmentKeySearchTimeout)
	configuration.OTPResendCooldown = loader.GetDuration(environmentKeyOTPResendCooldown)
	configuration.ChatCooldown = loader.GetDuration(environmentKeyChatCooldown)
	configuration.HealthPollInterval = loader.GetDuration(environmentKeyHealthPollInterval)
	configuration.CacheVersion = loader.GetInt(environmentKeyCacheVersion)
	configuration.StaticOriginURL = strings.TrimSpace(loader.GetString(environmentKeyStaticOriginURL))
	configuration.CORSAllowedOrigins = loader.GetStringSlice(environmentKeyCORSAllowedOrigins)
	configuration.ChatTranscriptLimit = loader.GetInt(environmentKeyChatTranscriptLimit)
	return configuration
}

func (application *ServerApplication) runCommand(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return fmt.Errorf("%s: %s", unexpectedArgumentsMessage, strings.Join(arguments, " "))
	}

	configuration := application.resolveConfiguration()
	if validationErr := application.ensureRequiredConfiguration(configuration); validationErr != nil {
		return validationErr
	}
	if validationErr := configuration.Validate(); validationErr != nil {
		return fmt.Errorf("%s: %w", invalidConfigurationMessage, validationErr)
	}

	logger, loggerErr := zap.NewProduction()
	if loggerErr != nil {
		return fmt.Errorf("%s: %w", loggerCreationErrorMessage, loggerErr)
	}
	defer func() {
		_ = logger.Sync()
	}()

	signalContext, stopSignals := signal.NotifyContext(command.Context(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	services, servicesErr := application.buildServices(signalContext, configuration, logger)
	if servicesErr != nil {
		return servicesErr
	}
	defer services.close()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(httpapi.RequestLogger(logger))
	registerFrontendRoutes(router, services.manager, services.pages)
	registerOfflineRoutes(router, services.offline)
	registerBackendRoutes(router, services.manager, services.api, configuration.CORSAllowedOrigins)

	httpServer := &http.Server{
		Addr:              configuration.ApplicationAddress,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeoutSeconds * time.Second,
	}

	serveErrors := make(chan error, 1)
	go func() {
		logger.Info(logEventListening, zap.String(logFieldAddress, configuration.ApplicationAddress))
		serveErrors <- httpServer.ListenAndServe()
	}()

	select {
	case serveErr := <-serveErrors:
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error(logEventServer, zap.Error(serveErr))
			return serveErr
		}
	case <-signalContext.Done():
		logger.Info(logEventShuttingDown)
		shutdownContext, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if shutdownErr := httpServer.Shutdown(shutdownContext); shutdownErr != nil {
			logger.Warn(logEventShutdown, zap.Error(shutdownErr))
		}
	}
	return nil
}

type applicationServices struct {
	manager    *httpapi.ProfileManager
	pages      pageHandlers
	api        *httpapi.APIHandlers
	offline    *httpapi.OfflineHandlers
	monitor    *gateway.HealthMonitor
	dispatcher *background.Dispatcher
	backend    prefs.Backend
	logger     *zap.Logger
}

func (services *applicationServices) close() {
	services.monitor.Stop()
	services.dispatcher.Close()
	if closeErr := prefs.CloseBackend(services.backend); closeErr != nil {
		services.logger.Warn(logEventClosePreferences, zap.Error(closeErr))
	}
}

// buildServices wires the backend client, the preference backend and every page handler. An
// unreachable database degrades preferences and the offline cache to process memory.
func (application *ServerApplication) buildServices(ctx context.Context, configuration config.Config, logger *zap.Logger) (*applicationServices, error) {
	database, databaseErr := application.databaseOpener(storage.Config{
		DriverName:     storage.DriverNameSQLite,
		DataSourceName: configuration.DatabaseDataSourceName,
	})
	if databaseErr != nil {
		logger.Warn(logEventOpenDatabase, zap.Error(databaseErr))
		database = nil
	}

	httpClient := &http.Client{Timeout: configuration.RequestTimeout}
	backendClient := gateway.NewClient(configuration.APIBaseURL, httpClient, logger)
	monitor := gateway.NewHealthMonitor(backendClient, configuration.HealthPollInterval, configuration.RequestTimeout, logger)
	monitor.Start(ctx)
	dispatcher := background.NewDispatcher(configuration.BackgroundTaskTimeout, logger)
	recorder := activity.NewRecorder(backendClient, dispatcher)

	engine := faq.NewEngine(faq.Options{
		Remote:        backendClient,
		Forwarder:     backendClient,
		Dispatcher:    dispatcher,
		SearchTimeout: configuration.SearchTimeout,
		Logger:        logger,
	})
	flow := otp.NewFlow(backendClient, recorder, otp.WithResendCooldown(configuration.OTPResendCooldown), otp.WithLogger(logger))
	scanner := upload.NewScanner(upload.Policy{
		MaxBytes:     configuration.MaxUploadBytes,
		AllowedTypes: configuration.AllowedUploadTypes,
	}, backendClient, recorder, logger)
	chatService := chat.NewService(chat.Options{
		Sender:          backendClient,
		Recorder:        recorder,
		Availability:    monitor,
		Cooldown:        configuration.ChatCooldown,
		TranscriptLimit: configuration.ChatTranscriptLimit,
		Logger:          logger,
	})

	worker, workerErr := newOfflineWorker(ctx, configuration, database, httpClient, logger)
	if workerErr != nil {
		monitor.Stop()
		dispatcher.Close()
		return nil, workerErr
	}

	backend := prefs.OpenBackend(ctx, prefs.BackendOptions{
		Driver:       configuration.PreferenceDriver,
		Database:     database,
		RedisAddress: configuration.RedisAddress,
		ProfileTTL:   configuration.SessionCookieMaxAge,
	}, logger)
	manager := httpapi.NewProfileManager(httpapi.ProfileManagerConfig{
		SessionStore:    httpapi.NewCookieSessionStore(configuration.SessionSecret, configuration.SessionCookieMaxAge),
		CookieName:      configuration.SessionCookieName,
		Backend:         backend,
		DefaultLanguage: i18n.Parse(configuration.DefaultLanguage, i18n.English),
		Logger:          logger,
	})
	renderer := httpapi.NewPageRenderer(logger, manager)

	return &applicationServices{
		manager: manager,
		pages: pageHandlers{
			home:    httpapi.NewHomePageHandlers(logger, renderer),
			login:   httpapi.NewLoginPageHandlers(renderer, flow),
			schemes: httpapi.NewSchemesPageHandlers(logger, renderer, backendClient, recorder),
			faq:     httpapi.NewFAQPageHandlers(logger, renderer, engine),
			chat:    httpapi.NewChatPageHandlers(renderer, chatService),
			ocr:     httpapi.NewOCRPageHandlers(logger, renderer, scanner),
			report:  httpapi.NewReportPageHandlers(logger, renderer, backendClient, recorder),
			account: httpapi.NewAccountPageHandlers(logger, renderer, backendClient),
			sitemap: httpapi.NewSitemapHandlers(""),
		},
		api:        httpapi.NewAPIHandlers(logger, engine),
		offline:    httpapi.NewOfflineHandlers(logger, worker),
		monitor:    monitor,
		dispatcher: dispatcher,
		backend:    backend,
		logger:     logger,
	}, nil
}

// newOfflineWorker installs the configured cache generation and retires older ones. A failed
// install is logged; requests then go to the upstream directly.
func newOfflineWorker(ctx context.Context, configuration config.Config, database *gorm.DB, httpClient *http.Client, logger *zap.Logger) (*offline.Worker, error) {
	var fetcher offline.Fetcher = offline.NewEmbeddedFetcher()
	if configuration.StaticOriginURL != "" {
		fetcher = offline.NewHTTPFetcher(configuration.StaticOriginURL, httpClient)
	}
	var cacheStorage offline.Storage = offline.NewMemoryStorage()
	if database != nil {
		cacheStorage = offline.NewGormStorage(database)
	}
	worker, workerErr := offline.NewWorker(offline.WorkerOptions{
		CacheName: configuration.CacheName(),
		Upstream:  fetcher,
		Storage:   cacheStorage,
		Logger:    logger,
	})
	if workerErr != nil {
		return nil, workerErr
	}

	installContext, cancel := context.WithTimeout(ctx, offlineInstallTimeout)
	defer cancel()
	if installErr := worker.Install(installContext); installErr != nil {
		logger.Warn(logEventOfflineInstall, zap.Error(installErr))
		return worker, nil
	}
	if activateErr := worker.Activate(installContext); activateErr != nil {
		logger.Warn(logEventOfflineInstall, zap.Error(activateErr))
	}
	return worker, nil
}

func (application *ServerApplication) ensureRequiredConfiguration(configuration config.Config) error {
	var missingParameters []string

	if configuration.SessionSecret == "" {
		missingParameters = append(missingParameters, flagNameSessionSecret)
	}

	if len(missingParameters) == 0 {
		return nil
	}

	return fmt.Errorf("%s: %s", missingConfigurationMessage, strings.Join(missingParameters, ", "))
}

func main() {
	application := NewServerApplication()
	rootCommand, commandErr := application.Command()
	if commandErr != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", commandInitializationFailure, commandErr)
		os.Exit(1)
	}

	if executeErr := rootCommand.Execute(); executeErr != nil {
		os.Exit(1)
	}
}
