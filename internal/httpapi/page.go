package httpapi

import (
	"bytes"
	"html/template"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/ruralassist/internal/i18n"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/session"
	"github.com/MarkoPoloResearchLab/ruralassist/pkg/footer"
)

const (
	layoutTemplateName  = "layout"
	htmlContentType     = "text/html; charset=utf-8"
	pageRenderFailure   = "page_render_failed"
	fallbackInitials    = "UA"
	logEventRenderPage  = "render_page"
	logEventRenderFoot  = "render_footer"
	logFieldPage        = "page"
	footerElementID     = "site-footer"
	footerInnerID       = "site-footer-inner"
	footerBaseClass     = "site-footer border-top mt-auto py-3 bg-white"
	footerInnerClass    = "container text-center small"
	footerBrandClass    = "fw-semibold"
	footerTaglineClass  = "text-muted mb-2"
	footerMenuClass     = "list-inline mb-2"
	footerMenuItemClass = "list-inline-item link-secondary"
	footerNoticeClass   = "text-muted"

	PathSchemes  = "/schemes"
	PathFAQ      = "/faq"
	PathChat     = "/chat"
	PathOCR      = "/ocr"
	PathReport   = "/report"
	PathProfile  = "/profile"
	PathLogin    = session.LoginPath
	PathLanguage = "/language"
	PathLogout   = "/logout"
)

type navigationEntry struct {
	Href    string
	English string
	Hindi   string
}

var navigationEntries = []navigationEntry{
	{Href: session.HomePath, English: "Home", Hindi: "होम"},
	{Href: PathSchemes, English: "Schemes", Hindi: "योजनाएं"},
	{Href: PathOCR, English: "OCR", Hindi: "OCR"},
	{Href: PathReport, English: "Report Scam", Hindi: "धोखाधड़ी रिपोर्ट"},
	{Href: PathFAQ, English: "FAQ", Hindi: "सामान्य प्रश्न"},
	{Href: PathChat, English: "Chat", Hindi: "चैट"},
	{Href: session.AboutPath, English: "About", Hindi: "हमारे बारे में"},
}

var breadcrumbLabels = map[string]i18n.Text{
	PathSchemes: {English: "Schemes", Hindi: "योजनाएं"},
	PathOCR:     {English: "OCR", Hindi: "OCR"},
	PathReport:  {English: "Report", Hindi: "रिपोर्ट"},
	PathFAQ:     {English: "FAQ", Hindi: "सामान्य प्रश्न"},
}

// NavigationLink is one rendered entry of the top navigation.
type NavigationLink struct {
	Href   string
	Label  string
	Active bool
}

// Page is one server-rendered page: the content template, its data and the layout title.
type Page struct {
	Name   string
	Title  string
	Data   any
	Status int
}

type layoutData struct {
	Title               string
	Language            i18n.Language
	Navigation          []NavigationLink
	Breadcrumb          string
	CurrentURL          string
	LanguageToggleLabel string
	LoggedIn            bool
	UserName            string
	UserEmail           string
	Initials            string
	Body                template.HTML
	Footer              template.HTML
}

// PageRenderer wraps page content into the shared layout.
type PageRenderer struct {
	logger   *zap.Logger
	template *template.Template
	footers  map[i18n.Language]template.HTML
	manager  *ProfileManager
}

func NewPageRenderer(logger *zap.Logger, manager *ProfileManager) *PageRenderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	compiledTemplate := template.Must(template.New(layoutTemplateName).Funcs(pageTemplateFuncs()).ParseFS(pageTemplateFiles, "templates/*.tmpl"))
	footers := make(map[i18n.Language]template.HTML, 2)
	for _, language := range []i18n.Language{i18n.English, i18n.Hindi} {
		footerHTML, footerErr := footer.Render(footerConfig(language))
		if footerErr != nil {
			logger.Error(logEventRenderFoot, zap.Error(footerErr))
			footerHTML = template.HTML("")
		}
		footers[language] = footerHTML
	}
	return &PageRenderer{logger: logger, template: compiledTemplate, footers: footers, manager: manager}
}

func pageTemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"t": func(language i18n.Language, englishText string, hindiText string) string {
			return language.Pick(englishText, hindiText)
		},
	}
}

func footerConfig(language i18n.Language) footer.Config {
	return footer.Config{
		ElementID:      footerElementID,
		InnerElementID: footerInnerID,
		BaseClass:      footerBaseClass,
		InnerClass:     footerInnerClass,
		BrandClass:     footerBrandClass,
		BrandText:      "RuralAssist",
		TaglineClass:   footerTaglineClass,
		TaglineText:    language.Pick("Government services, documents and safety help for rural citizens.", "ग्रामीण नागरिकों के लिए सरकारी सेवाएं, दस्तावेज़ और सुरक्षा सहायता।"),
		MenuClass:      footerMenuClass,
		MenuItemClass:  footerMenuItemClass,
		Links: []footer.Link{
			{Label: language.Pick("About", "हमारे बारे में"), URL: session.AboutPath},
			{Label: language.Pick("FAQ", "सामान्य प्रश्न"), URL: PathFAQ},
			{Label: language.Pick("Cyber Crime Portal", "साइबर अपराध पोर्टल"), URL: "https://cybercrime.gov.in", External: true},
		},
		NoticeClass: footerNoticeClass,
		NoticeText:  language.Pick("Lost money to fraud? Call the helpline 1930.", "धोखाधड़ी में पैसे गए? हेल्पलाइन 1930 पर कॉल करें।"),
	}
}

// Render executes the page content and writes it inside the layout.
func (renderer *PageRenderer) Render(context *gin.Context, page Page) {
	var body bytes.Buffer
	if executeErr := renderer.template.ExecuteTemplate(&body, page.Name, page.Data); executeErr != nil {
		renderer.fail(context, page.Name, executeErr)
		return
	}

	data := renderer.layout(context, page.Title)
	data.Body = template.HTML(body.String())

	var document bytes.Buffer
	if executeErr := renderer.template.ExecuteTemplate(&document, layoutTemplateName, data); executeErr != nil {
		renderer.fail(context, page.Name, executeErr)
		return
	}
	status := page.Status
	if status == 0 {
		status = http.StatusOK
	}
	context.Data(status, htmlContentType, document.Bytes())
}

func (renderer *PageRenderer) fail(context *gin.Context, name string, executeErr error) {
	renderer.logger.Error(logEventRenderPage, zap.String(logFieldPage, name), zap.Error(executeErr))
	context.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{jsonKeyError: pageRenderFailure})
}

func (renderer *PageRenderer) layout(context *gin.Context, title string) layoutData {
	language := i18n.English
	data := layoutData{Title: title, CurrentURL: context.Request.URL.RequestURI()}
	if pageContext, ok := PageContextFromContext(context); ok {
		language = pageContext.Language
		if renderer.manager != nil && session.IsLoggedIn(pageContext.Store, renderer.manager.Now()) {
			data.LoggedIn = true
			data.UserName = pageContext.UserName()
			data.UserEmail = pageContext.UserEmail()
			data.Initials = Initials(data.UserName)
		}
	}
	data.Language = language
	data.LanguageToggleLabel = language.ToggleLabel()
	data.Navigation = Navigation(context.Request.URL.Path, language)
	if label, found := breadcrumbLabels[context.Request.URL.Path]; found {
		data.Breadcrumb = label.In(language)
	}
	data.Footer = renderer.footers[language]
	return data
}

// Navigation returns the top navigation with the entry for currentPath marked active.
func Navigation(currentPath string, language i18n.Language) []NavigationLink {
	links := make([]NavigationLink, 0, len(navigationEntries))
	for _, entry := range navigationEntries {
		links = append(links, NavigationLink{
			Href:   entry.Href,
			Label:  language.Pick(entry.English, entry.Hindi),
			Active: entry.Href == currentPath,
		})
	}
	return links
}

// Initials returns up to two uppercase initials of name, or UA when there are none.
func Initials(name string) string {
	parts := strings.Fields(name)
	var builder strings.Builder
	for index, part := range parts {
		if index > 1 {
			break
		}
		firstRune, _ := utf8.DecodeRuneInString(part)
		builder.WriteRune(unicode.ToUpper(firstRune))
	}
	if builder.Len() == 0 {
		return fallbackInitials
	}
	return builder.String()
}
