package httpapi

import (
	"context"
	"html/template"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/ruralassist/internal/activity"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/gateway"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/i18n"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/prefs"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/views"
)

const (
	schemesTemplateName = "schemes_page"
	queryFieldQuery     = "q"
	queryFieldState     = "state"
	queryFieldCategory  = "category"
	queryFieldScheme    = "scheme"
	routeParamID        = "id"

	logEventLoadSchemes = "load_schemes"
)

var (
	schemeStates = []string{
		"Andhra Pradesh", "Assam", "Bihar", "Chhattisgarh", "Gujarat", "Haryana", "Jharkhand",
		"Karnataka", "Kerala", "Madhya Pradesh", "Maharashtra", "Odisha", "Punjab", "Rajasthan",
		"Tamil Nadu", "Telangana", "Uttar Pradesh", "Uttarakhand", "West Bengal",
	}
	schemeCategories = []string{
		"Agriculture", "Education", "Employment", "Financial Inclusion", "Health", "Housing",
		"Pension", "Women & Child",
	}
)

// SchemeFinder loads schemes, filtered when any filter is set.
type SchemeFinder interface {
	FindSchemes(ctx context.Context, filters gateway.SchemeFilters) ([]gateway.Scheme, error)
}

// ActivityRecorder forwards usage events to the backend history.
type ActivityRecorder interface {
	Record(token string, activityType string, description string)
}

type schemesTemplateData struct {
	Language   i18n.Language
	Filters    gateway.SchemeFilters
	States     []string
	Categories []string
	SavedCount int
	List       template.HTML
}

type SchemesPageHandlers struct {
	logger   *zap.Logger
	renderer *PageRenderer
	finder   SchemeFinder
	list     *views.SchemesRenderer
	recorder ActivityRecorder
}

func NewSchemesPageHandlers(logger *zap.Logger, renderer *PageRenderer, finder SchemeFinder, recorder ActivityRecorder) *SchemesPageHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchemesPageHandlers{
		logger:   logger,
		renderer: renderer,
		finder:   finder,
		list:     views.NewSchemesRenderer(),
		recorder: recorder,
	}
}

func (handlers *SchemesPageHandlers) RenderSchemes(context *gin.Context) {
	pageContext, ok := PageContextFromContext(context)
	if !ok {
		context.Redirect(http.StatusFound, PathLogin)
		return
	}
	filters := gateway.SchemeFilters{
		Query:    strings.TrimSpace(context.Query(queryFieldQuery)),
		State:    strings.TrimSpace(context.Query(queryFieldState)),
		Category: strings.TrimSpace(context.Query(queryFieldCategory)),
	}
	listView := views.SchemesView{
		Language: pageContext.Language,
		Saved:    prefs.SavedSchemeSet(pageContext.Store),
		ReturnTo: context.Request.URL.RequestURI(),
	}

	schemes, findErr := handlers.finder.FindSchemes(context.Request.Context(), filters)
	if findErr != nil {
		handlers.logger.Warn(logEventLoadSchemes, zap.Error(findErr))
		listView.Error = views.SchemesLoadFailure()
	} else {
		listView.Schemes = handlers.selectShared(pageContext, schemes, context.Query(queryFieldScheme))
	}

	list, listErr := handlers.list.Render(listView)
	if listErr != nil {
		handlers.renderer.fail(context, schemesTemplateName, listErr)
		return
	}
	handlers.renderer.Render(context, Page{
		Name:  schemesTemplateName,
		Title: pageContext.Language.Pick("Schemes", "योजनाएं"),
		Data: schemesTemplateData{
			Language:   pageContext.Language,
			Filters:    filters,
			States:     schemeStates,
			Categories: schemeCategories,
			SavedCount: len(listView.Saved),
			List:       list,
		},
	})
}

// selectShared narrows the list to a shared scheme link and records the view. An unknown id
// keeps the whole list.
func (handlers *SchemesPageHandlers) selectShared(pageContext *PageContext, schemes []gateway.Scheme, sharedID string) []gateway.Scheme {
	sharedID = strings.TrimSpace(sharedID)
	if sharedID == "" {
		return schemes
	}
	for _, scheme := range schemes {
		if string(scheme.ID) != sharedID {
			continue
		}
		if handlers.recorder != nil {
			handlers.recorder.Record(pageContext.Token(), activity.TypeSchemeView, activity.SchemeViewDescription(scheme.Title))
		}
		return []gateway.Scheme{scheme}
	}
	return schemes
}

// ToggleSaved flips the saved mark of a scheme and returns to the list it was clicked on.
func (handlers *SchemesPageHandlers) ToggleSaved(context *gin.Context) {
	if pageContext, ok := PageContextFromContext(context); ok {
		if schemeID := strings.TrimSpace(context.Param(routeParamID)); schemeID != "" {
			prefs.ToggleSavedScheme(pageContext.Store, schemeID)
		}
	}
	context.Redirect(http.StatusSeeOther, returnTarget(context))
}
