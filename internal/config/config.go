// Package config defines the typed runtime configuration of the RuralAssist frontend.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	// PreferenceDriverSQLite keeps preferences in a gorm-managed SQLite database.
	PreferenceDriverSQLite = "sqlite"
	// PreferenceDriverRedis keeps preferences in a Redis hash per browser profile.
	PreferenceDriverRedis = "redis"
	// PreferenceDriverMemory keeps preferences for the process lifetime only.
	PreferenceDriverMemory = "memory"

	LanguageEnglish = "en"
	LanguageHindi   = "hi"

	MimeTypeJPEG = "image/jpeg"
	MimeTypeJPG  = "image/jpg"
	MimeTypePNG  = "image/png"
	MimeTypePDF  = "application/pdf"

	bytesPerMegabyte = 1024 * 1024

	DefaultApplicationAddress      = ":8080"
	DefaultAPIBaseURL              = "https://ruralasist-jhwx.onrender.com"
	DefaultPreferenceDriver        = PreferenceDriverSQLite
	DefaultDatabaseDataSourceName  = "ruralassist.db"
	DefaultRedisAddress            = "localhost:6379"
	DefaultLanguage                = LanguageEnglish
	DefaultMaxUploadBytes          = 10 * bytesPerMegabyte
	DefaultRequestTimeout          = 15 * time.Second
	DefaultSearchTimeout           = 3 * time.Second
	DefaultOTPResendCooldown       = 30 * time.Second
	DefaultChatCooldown            = time.Second
	DefaultHealthPollInterval      = 30 * time.Second
	DefaultBackgroundTaskTimeout   = 10 * time.Second
	DefaultCacheApplicationName    = "ruralassist"
	DefaultCacheComponentName      = "frontend"
	DefaultCacheVersion            = 6
	DefaultChatTranscriptLimit     = 50
	DefaultSessionCookieName       = "ruralassist_profile"
	DefaultSessionCookieMaxAgeDays = 365

	errorMessageMissingSessionSecret   = "config: missing session secret"
	errorMessageInvalidAPIBaseURL      = "config: invalid api base url"
	errorMessageUnsupportedPrefsDriver = "config: unsupported preference driver"
	errorMessageUnsupportedLanguage    = "config: unsupported default language"
	errorMessageInvalidLimit           = "config: invalid limit"
	errorMessageInvalidStaticOrigin    = "config: invalid static origin url"
)

var (
	// ErrMissingSessionSecret indicates the cookie signing secret was not configured.
	ErrMissingSessionSecret = errors.New(errorMessageMissingSessionSecret)
	// ErrInvalidAPIBaseURL indicates the backend base URL is not an absolute http(s) URL.
	ErrInvalidAPIBaseURL = errors.New(errorMessageInvalidAPIBaseURL)
	// ErrUnsupportedPreferenceDriver indicates an unknown preference backend was requested.
	ErrUnsupportedPreferenceDriver = errors.New(errorMessageUnsupportedPrefsDriver)
	// ErrUnsupportedLanguage indicates the default language is not one of the supported languages.
	ErrUnsupportedLanguage = errors.New(errorMessageUnsupportedLanguage)
	// ErrInvalidLimit indicates a size, count or duration setting is not positive.
	ErrInvalidLimit = errors.New(errorMessageInvalidLimit)
	// ErrInvalidStaticOrigin indicates the static asset origin is not an absolute http(s) URL.
	ErrInvalidStaticOrigin = errors.New(errorMessageInvalidStaticOrigin)
)

// Config is resolved once at startup and passed by value to every component.
type Config struct {
	// ApplicationAddress is the listen address of the HTTP server.
	ApplicationAddress string
	// APIBaseURL is the origin of the RuralAssist backend API.
	APIBaseURL string
	// SessionSecret signs the browser profile cookie.
	SessionSecret string
	// SessionCookieName names the browser profile cookie.
	SessionCookieName string
	// SessionCookieMaxAge bounds how long a browser profile survives without a visit.
	SessionCookieMaxAge time.Duration
	// PreferenceDriver selects the Local Preference Store backend.
	PreferenceDriver string
	// DatabaseDataSourceName is the SQLite data source used by the sqlite driver and the offline cache.
	DatabaseDataSourceName string
	// RedisAddress is the Redis endpoint used by the redis driver.
	RedisAddress string
	// DefaultLanguage applies to profiles that never chose a language.
	DefaultLanguage string
	// SupportedLanguages lists the languages the language toggle cycles through.
	SupportedLanguages []string
	// MaxUploadBytes caps OCR uploads.
	MaxUploadBytes int64
	// AllowedUploadTypes lists the MIME types accepted for OCR.
	AllowedUploadTypes []string
	// RequestTimeout bounds every backend request that has no tighter limit.
	RequestTimeout time.Duration
	// SearchTimeout bounds the remote FAQ search before falling back to local ranking.
	SearchTimeout time.Duration
	// OTPResendCooldown is the minimum delay between two OTP sends.
	OTPResendCooldown time.Duration
	// ChatCooldown is the minimum delay between two chat messages from one profile.
	ChatCooldown time.Duration
	// HealthPollInterval is the backend health probe period.
	HealthPollInterval time.Duration
	// BackgroundTaskTimeout bounds fire-and-forget telemetry calls.
	BackgroundTaskTimeout time.Duration
	// CacheApplicationName, CacheComponentName and CacheVersion compose the offline cache name.
	CacheApplicationName string
	CacheComponentName   string
	CacheVersion         int
	// StaticOriginURL, when set, is the upstream origin of offline assets instead of the embedded files.
	StaticOriginURL string
	// CORSAllowedOrigins lists origins allowed to call the JSON API group.
	CORSAllowedOrigins []string
	// ChatTranscriptLimit caps the persisted chat transcript.
	ChatTranscriptLimit int
}

// Defaults returns the documented default configuration. SessionSecret has no default.
func Defaults() Config {
	return Config{
		ApplicationAddress:     DefaultApplicationAddress,
		APIBaseURL:             DefaultAPIBaseURL,
		SessionCookieName:      DefaultSessionCookieName,
		SessionCookieMaxAge:    DefaultSessionCookieMaxAgeDays * 24 * time.Hour,
		PreferenceDriver:       DefaultPreferenceDriver,
		DatabaseDataSourceName: DefaultDatabaseDataSourceName,
		RedisAddress:           DefaultRedisAddress,
		DefaultLanguage:        DefaultLanguage,
		SupportedLanguages:     []string{LanguageEnglish, LanguageHindi},
		MaxUploadBytes:         DefaultMaxUploadBytes,
		AllowedUploadTypes:     []string{MimeTypeJPEG, MimeTypeJPG, MimeTypePNG, MimeTypePDF},
		RequestTimeout:         DefaultRequestTimeout,
		SearchTimeout:          DefaultSearchTimeout,
		OTPResendCooldown:      DefaultOTPResendCooldown,
		ChatCooldown:           DefaultChatCooldown,
		HealthPollInterval:     DefaultHealthPollInterval,
		BackgroundTaskTimeout:  DefaultBackgroundTaskTimeout,
		CacheApplicationName:   DefaultCacheApplicationName,
		CacheComponentName:     DefaultCacheComponentName,
		CacheVersion:           DefaultCacheVersion,
		CORSAllowedOrigins:     []string{"*"},
		ChatTranscriptLimit:    DefaultChatTranscriptLimit,
	}
}

// Validate reports the first configuration problem found.
func (configuration Config) Validate() error {
	if strings.TrimSpace(configuration.SessionSecret) == "" {
		return ErrMissingSessionSecret
	}
	if !isAbsoluteHTTPURL(configuration.APIBaseURL) {
		return fmt.Errorf("%w: %q", ErrInvalidAPIBaseURL, configuration.APIBaseURL)
	}
	switch configuration.PreferenceDriver {
	case PreferenceDriverSQLite, PreferenceDriverRedis, PreferenceDriverMemory:
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedPreferenceDriver, configuration.PreferenceDriver)
	}
	if !configuration.SupportsLanguage(configuration.DefaultLanguage) {
		return fmt.Errorf("%w: %s", ErrUnsupportedLanguage, configuration.DefaultLanguage)
	}
	if configuration.StaticOriginURL != "" && !isAbsoluteHTTPURL(configuration.StaticOriginURL) {
		return fmt.Errorf("%w: %q", ErrInvalidStaticOrigin, configuration.StaticOriginURL)
	}

	limits := []struct {
		name  string
		value int64
	}{
		{name: "max upload bytes", value: configuration.MaxUploadBytes},
		{name: "request timeout", value: int64(configuration.RequestTimeout)},
		{name: "search timeout", value: int64(configuration.SearchTimeout)},
		{name: "otp resend cooldown", value: int64(configuration.OTPResendCooldown)},
		{name: "chat cooldown", value: int64(configuration.ChatCooldown)},
		{name: "health poll interval", value: int64(configuration.HealthPollInterval)},
		{name: "background timeout", value: int64(configuration.BackgroundTaskTimeout)},
		{name: "cache version", value: int64(configuration.CacheVersion)},
		{name: "chat transcript limit", value: int64(configuration.ChatTranscriptLimit)},
	}
	for _, limit := range limits {
		if limit.value <= 0 {
			return fmt.Errorf("%w: %s", ErrInvalidLimit, limit.name)
		}
	}
	return nil
}

// SupportsLanguage reports whether language is one of the configured languages.
func (configuration Config) SupportsLanguage(language string) bool {
	for _, supported := range configuration.SupportedLanguages {
		if supported == language {
			return true
		}
	}
	return false
}

// CacheName composes the versioned offline cache name, e.g. ruralassist-frontend-v6.
func (configuration Config) CacheName() string {
	return fmt.Sprintf("%s-%s-v%d", configuration.CacheApplicationName, configuration.CacheComponentName, configuration.CacheVersion)
}

func isAbsoluteHTTPURL(raw string) bool {
	parsed, parseErr := url.Parse(strings.TrimSpace(raw))
	if parseErr != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}
