// Package session decides whether the stored bearer token still allows protected pages.
package session

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"

	"github.com/MarkoPoloResearchLab/ruralassist/internal/prefs"
)

const (
	HomePath  = "/"
	LoginPath = "/login"
	AboutPath = "/about"

	tokenSegmentCount    = 3
	claimExpiration      = "exp"
	nanosecondsPerSecond = float64(time.Second)
)

// IsSessionValid reports whether token has three segments and a numeric exp claim later than now.
// The signature is not verified; the backend does that on every authenticated call.
func IsSessionValid(token string, now time.Time) bool {
	segments := strings.Split(token, ".")
	if len(segments) != tokenSegmentCount {
		return false
	}
	payload, decodeErr := decodeSegment(segments[1])
	if decodeErr != nil {
		return false
	}
	var claims jwt.MapClaims
	if unmarshalErr := json.Unmarshal(payload, &claims); unmarshalErr != nil || claims == nil {
		return false
	}
	expiration, numeric := claims[claimExpiration].(float64)
	if !numeric {
		return false
	}
	nowSeconds := float64(now.UnixNano()) / nanosecondsPerSecond
	return expiration > nowSeconds
}

func decodeSegment(segment string) ([]byte, error) {
	decoded, urlErr := jwt.DecodeSegment(segment)
	if urlErr == nil {
		return decoded, nil
	}
	trimmed := strings.TrimRight(segment, "=")
	return base64.RawStdEncoding.DecodeString(trimmed)
}

// Decision is the outcome of enforcing the guard on one page load.
type Decision struct {
	Allowed    bool
	RedirectTo string
}

// Guard enforces login on every path outside its public allow-list.
type Guard struct {
	publicPaths map[string]bool
}

// NewGuard returns a Guard whose public allow-list is home, login, about and any extra paths.
func NewGuard(extraPublicPaths ...string) *Guard {
	publicPaths := map[string]bool{
		HomePath:  true,
		LoginPath: true,
		AboutPath: true,
	}
	for _, path := range extraPublicPaths {
		publicPaths[path] = true
	}
	return &Guard{publicPaths: publicPaths}
}

// IsPublic reports whether path needs no session.
func (guard *Guard) IsPublic(path string) bool {
	return guard.publicPaths[normalizePath(path)]
}

// Enforce allows public paths and valid sessions. Otherwise it clears the stored
// credentials, remembers currentPath for after login and asks for the login page.
func (guard *Guard) Enforce(store prefs.Store, currentPath string, now time.Time) Decision {
	if guard.IsPublic(currentPath) {
		return Decision{Allowed: true}
	}
	token, _ := store.Get(prefs.KeyToken)
	if IsSessionValid(token, now) {
		return Decision{Allowed: true}
	}
	ClearCredentials(store)
	store.Set(prefs.KeyLoginRedirect, currentPath)
	return Decision{RedirectTo: LoginPath}
}

// IsLoggedIn reports whether the stored token is currently valid.
func IsLoggedIn(store prefs.Store, now time.Time) bool {
	token, _ := store.Get(prefs.KeyToken)
	return IsSessionValid(token, now)
}

// ClearCredentials removes the token, login flag, email and display name.
func ClearCredentials(store prefs.Store) {
	store.Remove(prefs.KeyToken)
	store.Remove(prefs.KeyLoggedIn)
	store.Remove(prefs.KeyUserEmail)
	store.Remove(prefs.KeyUserName)
}

// Logout clears the credentials and any pending redirect.
func Logout(store prefs.Store) {
	ClearCredentials(store)
	store.Remove(prefs.KeyLoginRedirect)
}

func normalizePath(path string) string {
	if path == "" {
		return HomePath
	}
	if len(path) > 1 {
		return strings.TrimRight(path, "/")
	}
	return path
}
