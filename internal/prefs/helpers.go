package prefs

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/MarkoPoloResearchLab/ruralassist/internal/i18n"
)

const (
	VoteHelpful   = "helpful"
	VoteUnhelpful = "unhelpful"

	defaultRedirectTarget = "/"
)

// listMutex serializes read-modify-write updates of JSON list values.
var listMutex sync.Mutex

// SavedSchemes returns the saved scheme ids in insertion order. Unreadable values count as empty.
func SavedSchemes(store Store) []string {
	raw, found := store.Get(KeySavedSchemes)
	if !found {
		return nil
	}
	var schemeIDs []string
	if decodeErr := json.Unmarshal([]byte(raw), &schemeIDs); decodeErr != nil {
		return nil
	}
	return schemeIDs
}

// SavedSchemeSet returns the saved scheme ids as a set.
func SavedSchemeSet(store Store) map[string]bool {
	saved := make(map[string]bool)
	for _, schemeID := range SavedSchemes(store) {
		saved[schemeID] = true
	}
	return saved
}

// ToggleSavedScheme adds schemeID when absent and removes it when present.
// It reports whether the scheme is saved afterwards.
func ToggleSavedScheme(store Store, schemeID string) bool {
	schemeID = strings.TrimSpace(schemeID)
	if schemeID == "" {
		return false
	}
	listMutex.Lock()
	defer listMutex.Unlock()
	current := SavedSchemes(store)
	updated := make([]string, 0, len(current)+1)
	removed := false
	for _, savedID := range current {
		if savedID == schemeID {
			removed = true
			continue
		}
		updated = append(updated, savedID)
	}
	if !removed {
		updated = append(updated, schemeID)
	}
	writeJSON(store, KeySavedSchemes, updated)
	return !removed
}

// VoteReceipts returns the FAQ votes cast from this profile keyed by FAQ id.
func VoteReceipts(store Store) map[string]string {
	receipts := make(map[string]string)
	raw, found := store.Get(KeyVotedFAQs)
	if !found {
		return receipts
	}
	if decodeErr := json.Unmarshal([]byte(raw), &receipts); decodeErr != nil || receipts == nil {
		return make(map[string]string)
	}
	return receipts
}

// RecordVoteReceipt stores kind for faqID unless a receipt already exists. It reports whether it wrote.
func RecordVoteReceipt(store Store, faqID string, kind string) bool {
	listMutex.Lock()
	defer listMutex.Unlock()
	receipts := VoteReceipts(store)
	if _, voted := receipts[faqID]; voted {
		return false
	}
	receipts[faqID] = kind
	writeJSON(store, KeyVotedFAQs, receipts)
	return true
}

// ConsumeRedirectTarget returns and deletes the post-login redirect target.
// Only same-site absolute paths are honoured.
func ConsumeRedirectTarget(store Store) string {
	target, found := store.Get(KeyLoginRedirect)
	if !found {
		return defaultRedirectTarget
	}
	store.Remove(KeyLoginRedirect)
	if !IsLocalPath(target) {
		return defaultRedirectTarget
	}
	return target
}

// IsLocalPath reports whether target is a path on this site rather than another origin.
func IsLocalPath(target string) bool {
	if !strings.HasPrefix(target, "/") {
		return false
	}
	return !strings.HasPrefix(target, "//") && !strings.HasPrefix(target, "/\\")
}

// Language returns the stored UI language, or fallback when none is stored.
func Language(store Store, fallback i18n.Language) i18n.Language {
	raw, found := store.Get(KeyLanguage)
	if !found {
		return fallback
	}
	return i18n.Parse(raw, fallback)
}

func SetLanguage(store Store, language i18n.Language) {
	store.Set(KeyLanguage, string(language))
}

func writeJSON(store Store, key string, value any) {
	encoded, encodeErr := json.Marshal(value)
	if encodeErr != nil {
		return
	}
	store.Set(key, string(encoded))
}
