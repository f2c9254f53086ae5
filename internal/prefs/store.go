// Package prefs implements the per-profile local preference store.
//
// Each browser profile owns a flat string key-value namespace. Store methods never
// return errors: backend failures are logged and behave like a missing key, so a
// broken backend degrades features instead of breaking pages.
package prefs

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

const (
	KeyLanguage       = "ruralassist_language"
	KeyToken          = "ruralassist_token"
	KeyLoggedIn       = "ruralassist_logged_in"
	KeyUserName       = "ruralassist_name"
	KeyUserEmail      = "user_email"
	KeyLoginRedirect  = "login_redirect_target"
	KeySavedSchemes   = "ruralassist_saved_schemes"
	KeyVotedFAQs      = "votedFaqs"
	KeyPendingOTP     = "otp_pending_email"
	KeyOTPSentAt      = "otp_sent_at"
	KeyChatTranscript = "chat_transcript"

	// LoggedInValue is stored under KeyLoggedIn after a successful login.
	LoggedInValue = "true"

	logEventPreferenceLoadFailed   = "preference_load_failed"
	logEventPreferenceSaveFailed   = "preference_save_failed"
	logEventPreferenceDeleteFailed = "preference_delete_failed"
	logFieldProfileID              = "profile_id"
	logFieldKey                    = "key"
)

// ErrMissingProfileID indicates a backend call without a profile identifier.
var ErrMissingProfileID = errors.New("prefs: missing profile id")

// Store is the synchronous key-value contract used by every page component.
type Store interface {
	Get(key string) (string, bool)
	Set(key string, value string)
	Remove(key string)
}

// Backend persists preference values for many profiles.
type Backend interface {
	Load(ctx context.Context, profileID string, key string) (string, bool, error)
	Save(ctx context.Context, profileID string, key string, value string) error
	Delete(ctx context.Context, profileID string, key string) error
}

// ProfileStore binds a Backend to one profile for the duration of a request.
type ProfileStore struct {
	ctx       context.Context
	backend   Backend
	profileID string
	logger    *zap.Logger
}

// NewProfileStore returns the Store of profileID. ctx is the request context the backend calls run under.
func NewProfileStore(ctx context.Context, backend Backend, profileID string, logger *zap.Logger) *ProfileStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return &ProfileStore{
		ctx:       ctx,
		backend:   backend,
		profileID: profileID,
		logger:    logger,
	}
}

// ProfileID returns the profile the store is bound to.
func (store *ProfileStore) ProfileID() string {
	return store.profileID
}

func (store *ProfileStore) Get(key string) (string, bool) {
	if store.backend == nil {
		return "", false
	}
	value, found, loadErr := store.backend.Load(store.ctx, store.profileID, key)
	if loadErr != nil {
		store.logger.Warn(logEventPreferenceLoadFailed, zap.String(logFieldProfileID, store.profileID), zap.String(logFieldKey, key), zap.Error(loadErr))
		return "", false
	}
	return value, found
}

func (store *ProfileStore) Set(key string, value string) {
	if store.backend == nil {
		return
	}
	if saveErr := store.backend.Save(store.ctx, store.profileID, key, value); saveErr != nil {
		store.logger.Warn(logEventPreferenceSaveFailed, zap.String(logFieldProfileID, store.profileID), zap.String(logFieldKey, key), zap.Error(saveErr))
	}
}

func (store *ProfileStore) Remove(key string) {
	if store.backend == nil {
		return
	}
	if deleteErr := store.backend.Delete(store.ctx, store.profileID, key); deleteErr != nil {
		store.logger.Warn(logEventPreferenceDeleteFailed, zap.String(logFieldProfileID, store.profileID), zap.String(logFieldKey, key), zap.Error(deleteErr))
	}
}

// NewMemoryStore returns a Store backed by a private MemoryBackend.
func NewMemoryStore(profileID string) *ProfileStore {
	return NewProfileStore(context.Background(), NewMemoryBackend(), profileID, nil)
}
