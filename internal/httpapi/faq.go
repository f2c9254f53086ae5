package httpapi

import (
	"html/template"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/ruralassist/internal/faq"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/i18n"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/prefs"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/views"
)

const (
	faqTemplateName   = "faq_page"
	formFieldVoteKind = "kind"

	logEventFAQVote = "faq_vote_rejected"
	logFieldFAQID   = "faq_id"
)

type faqCategoryFilter struct {
	Key    string
	Emoji  string
	Label  string
	Active bool
}

type faqTemplateData struct {
	Language    i18n.Language
	Stats       faq.Stats
	Query       string
	Suggestions []string
	Categories  []faqCategoryFilter
	List        template.HTML
}

// FAQPageHandlers renders the searchable FAQ and records helpfulness votes.
type FAQPageHandlers struct {
	logger   *zap.Logger
	renderer *PageRenderer
	engine   *faq.Engine
	list     *views.FAQRenderer
}

func NewFAQPageHandlers(logger *zap.Logger, renderer *PageRenderer, engine *faq.Engine) *FAQPageHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FAQPageHandlers{logger: logger, renderer: renderer, engine: engine, list: views.NewFAQRenderer()}
}

// RenderFAQ lists the corpus, narrowed by the search box or a category button. A search wins
// over a category.
func (handlers *FAQPageHandlers) RenderFAQ(context *gin.Context) {
	pageContext, ok := PageContextFromContext(context)
	if !ok {
		context.Redirect(http.StatusFound, PathLogin)
		return
	}
	language := pageContext.Language
	query := strings.TrimSpace(context.Query(queryFieldQuery))
	category := strings.TrimSpace(context.Query(queryFieldCategory))

	var items []faq.Item
	switch {
	case query != "":
		items = handlers.engine.Search(context.Request.Context(), query, language)
		category = ""
	case category != "":
		items = handlers.engine.FilterByCategory(category, language)
	default:
		items = handlers.engine.All(language)
	}
	if category == "" && query == "" {
		category = faq.CategoryAll
	}

	list, listErr := handlers.list.Render(views.FAQView{
		Language: language,
		Items:    items,
		Receipts: prefs.VoteReceipts(pageContext.Store),
		ReturnTo: context.Request.URL.RequestURI(),
	})
	if listErr != nil {
		handlers.renderer.fail(context, faqTemplateName, listErr)
		return
	}
	handlers.renderer.Render(context, Page{
		Name:  faqTemplateName,
		Title: language.Pick("FAQ", "सामान्य प्रश्न"),
		Data: faqTemplateData{
			Language:    language,
			Stats:       handlers.engine.Stats(),
			Query:       query,
			Suggestions: faq.Suggestions(),
			Categories:  categoryFilters(category, language),
			List:        list,
		},
	})
}

func categoryFilters(active string, language i18n.Language) []faqCategoryFilter {
	filters := make([]faqCategoryFilter, 0, len(faq.FilterCategories))
	for _, category := range faq.FilterCategories {
		emoji := faq.CategoryEmoji(category)
		if category == faq.CategoryAll {
			emoji = "📚"
		}
		filters = append(filters, faqCategoryFilter{
			Key:    category,
			Emoji:  emoji,
			Label:  faq.CategoryLabel(category, language),
			Active: category == active,
		})
	}
	return filters
}

// Vote counts a helpful or unhelpful vote once per profile and returns to the list.
func (handlers *FAQPageHandlers) Vote(context *gin.Context) {
	if pageContext, ok := PageContextFromContext(context); ok {
		faqID := strings.TrimSpace(context.Param(routeParamID))
		if _, voteErr := handlers.engine.Vote(pageContext.Store, faqID, context.PostForm(formFieldVoteKind), pageContext.Language); voteErr != nil {
			handlers.logger.Debug(logEventFAQVote, zap.String(logFieldFAQID, faqID), zap.Error(voteErr))
		}
	}
	context.Redirect(http.StatusSeeOther, returnTarget(context))
}
