package httpapi

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/ruralassist/internal/i18n"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/prefs"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/session"
)

const (
	contextKeyPageContext = "httpapi_page_context"
	sessionValueProfileID = "profile_id"
	authErrorUnauthorized = "unauthorized"
	jsonKeyError          = "error"
	formFieldReturnTo     = "return_to"

	logEventLoadSession = "load_session"
	logEventSaveSession = "save_session"
)

// PageContext is the per-request application context: the browser profile, its preference
// store and its UI language.
type PageContext struct {
	ProfileID string
	Store     *prefs.ProfileStore
	Language  i18n.Language
}

// Token returns the stored bearer token, empty for anonymous visitors.
func (pageContext *PageContext) Token() string {
	token, _ := pageContext.Store.Get(prefs.KeyToken)
	return token
}

func (pageContext *PageContext) UserName() string {
	name, _ := pageContext.Store.Get(prefs.KeyUserName)
	return name
}

func (pageContext *PageContext) UserEmail() string {
	email, _ := pageContext.Store.Get(prefs.KeyUserEmail)
	return email
}

// PageContextFromContext returns the context installed by ProfileManager.ResolveProfile.
func PageContextFromContext(context *gin.Context) (*PageContext, bool) {
	value, exists := context.Get(contextKeyPageContext)
	if !exists {
		return nil, false
	}
	pageContext, ok := value.(*PageContext)
	return pageContext, ok
}

type ProfileManagerConfig struct {
	SessionStore    sessions.Store
	CookieName      string
	Backend         prefs.Backend
	DefaultLanguage i18n.Language
	Guard           *session.Guard
	Clock           func() time.Time
	Logger          *zap.Logger
}

// ProfileManager binds every request to a browser profile and enforces the session guard.
type ProfileManager struct {
	logger          *zap.Logger
	sessionStore    sessions.Store
	cookieName      string
	backend         prefs.Backend
	defaultLanguage i18n.Language
	guard           *session.Guard
	clock           func() time.Time
}

func NewProfileManager(config ProfileManagerConfig) *ProfileManager {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	guard := config.Guard
	if guard == nil {
		guard = session.NewGuard(PathLanguage, PathLogout)
	}
	clock := config.Clock
	if clock == nil {
		clock = time.Now
	}
	return &ProfileManager{
		logger:          logger,
		sessionStore:    config.SessionStore,
		cookieName:      config.CookieName,
		backend:         config.Backend,
		defaultLanguage: config.DefaultLanguage,
		guard:           guard,
		clock:           clock,
	}
}

// NewCookieSessionStore returns the signed cookie store holding the profile id.
func NewCookieSessionStore(secret string, maxAge time.Duration) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(maxAge / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// Now is the clock shared by the guard and the page handlers.
func (manager *ProfileManager) Now() time.Time {
	return manager.clock()
}

// ResolveProfile installs the PageContext, minting a profile id on the first visit.
func (manager *ProfileManager) ResolveProfile() gin.HandlerFunc {
	return func(context *gin.Context) {
		sessionInstance, sessionErr := manager.sessionStore.Get(context.Request, manager.cookieName)
		if sessionErr != nil {
			manager.logger.Debug(logEventLoadSession, zap.Error(sessionErr))
		}
		if sessionInstance == nil {
			sessionInstance = sessions.NewSession(manager.sessionStore, manager.cookieName)
		}

		profileID := extractString(sessionInstance.Values[sessionValueProfileID])
		if profileID == "" {
			profileID = uuid.NewString()
			sessionInstance.Values[sessionValueProfileID] = profileID
			if saveErr := sessionInstance.Save(context.Request, context.Writer); saveErr != nil {
				manager.logger.Warn(logEventSaveSession, zap.Error(saveErr))
			}
		}

		store := prefs.NewProfileStore(context.Request.Context(), manager.backend, profileID, manager.logger)
		context.Set(contextKeyPageContext, &PageContext{
			ProfileID: profileID,
			Store:     store,
			Language:  prefs.Language(store, manager.defaultLanguage),
		})
		context.Next()
	}
}

// RequireSessionWeb redirects to the login page when the stored token is missing or expired,
// remembering the page to return to.
func (manager *ProfileManager) RequireSessionWeb() gin.HandlerFunc {
	return func(context *gin.Context) {
		pageContext, ok := PageContextFromContext(context)
		if !ok {
			context.Redirect(http.StatusFound, session.LoginPath)
			context.Abort()
			return
		}
		decision := manager.guard.Enforce(pageContext.Store, guardTarget(context.Request), manager.clock())
		if !decision.Allowed {
			context.Redirect(http.StatusFound, decision.RedirectTo)
			context.Abort()
			return
		}
		context.Next()
	}
}

// RequireSessionJSON answers 401 instead of redirecting.
func (manager *ProfileManager) RequireSessionJSON() gin.HandlerFunc {
	return func(context *gin.Context) {
		pageContext, ok := PageContextFromContext(context)
		if !ok || !session.IsLoggedIn(pageContext.Store, manager.clock()) {
			context.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{jsonKeyError: authErrorUnauthorized})
			return
		}
		context.Next()
	}
}

// ToggleLanguage switches between English and Hindi and returns to the page it came from.
func (manager *ProfileManager) ToggleLanguage(context *gin.Context) {
	pageContext, ok := PageContextFromContext(context)
	if ok {
		prefs.SetLanguage(pageContext.Store, pageContext.Language.Toggle())
	}
	context.Redirect(http.StatusSeeOther, returnTarget(context))
}

func (manager *ProfileManager) Logout(context *gin.Context) {
	if pageContext, ok := PageContextFromContext(context); ok {
		session.Logout(pageContext.Store)
	}
	context.Redirect(http.StatusSeeOther, session.LoginPath)
}

// guardTarget is the page a login should return to. Form posts return to the page that
// rendered the form rather than to the post endpoint.
func guardTarget(request *http.Request) string {
	path := request.URL.Path
	if request.Method == http.MethodGet || request.Method == http.MethodHead {
		return path
	}
	segments := strings.SplitN(strings.TrimPrefix(path, "/"), "/", 2)
	return "/" + segments[0]
}

// returnTarget picks the local page to redirect to after a form post: the return_to field,
// then a same-host referer, then home.
func returnTarget(context *gin.Context) string {
	if candidate := strings.TrimSpace(context.PostForm(formFieldReturnTo)); prefs.IsLocalPath(candidate) {
		return candidate
	}
	referer, parseErr := url.Parse(context.Request.Referer())
	if parseErr == nil && referer.Path != "" && (referer.Host == "" || referer.Host == context.Request.Host) {
		local := referer.Path
		if referer.RawQuery != "" {
			local += "?" + referer.RawQuery
		}
		if prefs.IsLocalPath(local) {
			return local
		}
	}
	return session.HomePath
}

func extractString(value interface{}) string {
	text, ok := value.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(text)
}
