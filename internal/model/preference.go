package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	preferenceProfileIDMaxLength = 64
	preferenceKeyMaxLength       = 128
	preferenceValueMaxLength     = 64 * 1024
)

var (
	ErrInvalidPreferenceProfileID = errors.New("invalid_preference_profile_id")
	ErrInvalidPreferenceKey       = errors.New("invalid_preference_key")
	ErrInvalidPreferenceValue     = errors.New("invalid_preference_value")
)

// Preference is one key-value entry of a browser profile's local store.
type Preference struct {
	ProfileID string    `gorm:"primaryKey;size:64"`
	Key       string    `gorm:"column:pref_key;primaryKey;size:128"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// PreferenceInput holds the raw values used to construct a Preference.
type PreferenceInput struct {
	ProfileID string
	Key       string
	Value     string
}

// NewPreference constructs a Preference with validated fields. Values are stored verbatim.
func NewPreference(input PreferenceInput) (Preference, error) {
	profileID := strings.TrimSpace(input.ProfileID)
	if profileID == "" || len(profileID) > preferenceProfileIDMaxLength {
		return Preference{}, ErrInvalidPreferenceProfileID
	}

	key := strings.TrimSpace(input.Key)
	if key == "" || len(key) > preferenceKeyMaxLength {
		return Preference{}, ErrInvalidPreferenceKey
	}

	if len(input.Value) > preferenceValueMaxLength {
		return Preference{}, fmt.Errorf("%w: value too long", ErrInvalidPreferenceValue)
	}

	return Preference{
		ProfileID: profileID,
		Key:       key,
		Value:     input.Value,
	}, nil
}
