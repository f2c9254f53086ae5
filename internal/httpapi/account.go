package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/ruralassist/internal/gateway"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/i18n"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/prefs"
)

const (
	profileTemplateName = "profile"
	profileSavedStatus  = "Saved!"

	logEventLoadProfile   = "load_profile_failed"
	logEventLoadDashboard = "load_dashboard_failed"
	logEventSaveProfile   = "save_profile_failed"
)

// ProfileDirectory is the backend profile and usage dashboard.
type ProfileDirectory interface {
	GetProfile(ctx context.Context, token string) (gateway.Profile, error)
	UpdateProfile(ctx context.Context, token string, name string) (gateway.Profile, error)
	Dashboard(ctx context.Context, token string) (gateway.Dashboard, error)
}

type profileTemplateData struct {
	Language   i18n.Language
	Initials   string
	Profile    gateway.Profile
	Status     string
	Dashboard  *gateway.Dashboard
	SavedCount int
}

// AccountPageHandlers renders and updates the citizen's profile.
type AccountPageHandlers struct {
	logger    *zap.Logger
	renderer  *PageRenderer
	directory ProfileDirectory
}

func NewAccountPageHandlers(logger *zap.Logger, renderer *PageRenderer, directory ProfileDirectory) *AccountPageHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountPageHandlers{logger: logger, renderer: renderer, directory: directory}
}

// RenderProfile shows the backend profile. When it cannot be loaded the locally known name and
// email are shown with the failure as status.
func (handlers *AccountPageHandlers) RenderProfile(context *gin.Context) {
	pageContext, ok := PageContextFromContext(context)
	if !ok {
		context.Redirect(http.StatusFound, PathLogin)
		return
	}
	profile, status := handlers.loadProfile(context.Request.Context(), pageContext)
	handlers.render(context, pageContext, profile, status, http.StatusOK)
}

// UpdateProfile saves the display name and mirrors it into the profile store.
func (handlers *AccountPageHandlers) UpdateProfile(context *gin.Context) {
	pageContext, ok := PageContextFromContext(context)
	if !ok {
		context.Redirect(http.StatusSeeOther, PathLogin)
		return
	}
	name := strings.TrimSpace(context.PostForm(formFieldName))
	profile, updateErr := handlers.directory.UpdateProfile(context.Request.Context(), pageContext.Token(), name)
	if updateErr != nil {
		handlers.logger.Warn(logEventSaveProfile, zap.Error(updateErr))
		fallback := localProfile(pageContext)
		fallback.Name = name
		handlers.render(context, pageContext, fallback, gateway.ErrorMessage(updateErr), http.StatusBadGateway)
		return
	}
	pageContext.Store.Set(prefs.KeyUserName, profile.Name)
	if profile.Email == "" {
		profile.Email = pageContext.UserEmail()
	}
	handlers.render(context, pageContext, profile, profileSavedStatus, http.StatusOK)
}

func (handlers *AccountPageHandlers) loadProfile(ctx context.Context, pageContext *PageContext) (gateway.Profile, string) {
	profile, loadErr := handlers.directory.GetProfile(ctx, pageContext.Token())
	if loadErr != nil {
		handlers.logger.Warn(logEventLoadProfile, zap.Error(loadErr))
		return localProfile(pageContext), gateway.ErrorMessage(loadErr)
	}
	return profile, ""
}

func localProfile(pageContext *PageContext) gateway.Profile {
	return gateway.Profile{Email: pageContext.UserEmail(), Name: pageContext.UserName()}
}

func (handlers *AccountPageHandlers) render(context *gin.Context, pageContext *PageContext, profile gateway.Profile, status string, httpStatus int) {
	language := pageContext.Language
	data := profileTemplateData{
		Language:   language,
		Initials:   Initials(profile.Name),
		Profile:    profile,
		Status:     status,
		SavedCount: len(prefs.SavedSchemes(pageContext.Store)),
	}
	dashboard, dashboardErr := handlers.directory.Dashboard(context.Request.Context(), pageContext.Token())
	if dashboardErr != nil {
		handlers.logger.Debug(logEventLoadDashboard, zap.Error(dashboardErr))
	} else {
		data.Dashboard = &dashboard
	}
	handlers.renderer.Render(context, Page{
		Name:   profileTemplateName,
		Title:  language.Pick("Profile", "प्रोफ़ाइल"),
		Status: httpStatus,
		Data:   data,
	})
}
