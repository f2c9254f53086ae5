package httpapi

import (
	"bytes"
	"html/template"

	"github.com/gin-gonic/gin"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/ruralassist/internal/i18n"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/session"
)

const (
	homeTemplateName  = "home"
	aboutTemplateName = "about"

	logEventRenderAbout = "render_about_markdown"
)

type featureCard struct {
	Icon        string
	Title       string
	Description string
	Href        string
	Protected   bool
}

type homeTemplateData struct {
	Language i18n.Language
	UserName string
	Features []featureCard
}

type aboutTemplateData struct {
	Language i18n.Language
	Markdown template.HTML
}

func featureCards(language i18n.Language) []featureCard {
	return []featureCard{
		{Icon: "🏛️", Href: PathSchemes, Protected: true, Title: language.Pick("Government Schemes", "सरकारी योजनाएं"), Description: language.Pick("Find welfare schemes you are eligible for.", "जिन योजनाओं के आप पात्र हैं, उन्हें खोजें।")},
		{Icon: "📄", Href: PathOCR, Protected: true, Title: language.Pick("Document Scanner", "दस्तावेज़ स्कैनर"), Description: language.Pick("Read the text of letters, forms and certificates.", "पत्रों, फ़ॉर्म और प्रमाणपत्रों का टेक्स्ट पढ़ें।")},
		{Icon: "🛡️", Href: PathReport, Protected: true, Title: language.Pick("Scam Protection", "धोखाधड़ी से सुरक्षा"), Description: language.Pick("Check a suspicious call or message and report it.", "संदिग्ध कॉल या संदेश की जांच करें और रिपोर्ट करें।")},
		{Icon: "❓", Href: PathFAQ, Protected: true, Title: language.Pick("FAQ", "सामान्य प्रश्न"), Description: language.Pick("Answers to common questions.", "आम सवालों के जवाब।")},
		{Icon: "🤖", Href: PathChat, Protected: true, Title: language.Pick("Assistant", "सहायक"), Description: language.Pick("Ask anything in English or Hindi.", "हिंदी या अंग्रेजी में कुछ भी पूछें।")},
		{Icon: "ℹ️", Href: session.AboutPath, Title: language.Pick("About", "हमारे बारे में"), Description: language.Pick("How RuralAssist works and how to get help.", "RuralAssist कैसे काम करता है और मदद कैसे पाएं।")},
	}
}

// HomePageHandlers renders the public home and about pages.
type HomePageHandlers struct {
	renderer *PageRenderer
	about    map[i18n.Language]template.HTML
}

func NewHomePageHandlers(logger *zap.Logger, renderer *PageRenderer) *HomePageHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	markdown := goldmark.New(goldmark.WithExtensions(extension.GFM))
	sources := map[i18n.Language][]byte{i18n.English: aboutMarkdownEnglish, i18n.Hindi: aboutMarkdownHindi}
	about := make(map[i18n.Language]template.HTML, len(sources))
	for language, source := range sources {
		var buffer bytes.Buffer
		if convertErr := markdown.Convert(source, &buffer); convertErr != nil {
			logger.Error(logEventRenderAbout, zap.String("language", string(language)), zap.Error(convertErr))
			continue
		}
		about[language] = template.HTML(buffer.String())
	}
	return &HomePageHandlers{renderer: renderer, about: about}
}

func (handlers *HomePageHandlers) RenderHome(context *gin.Context) {
	data := homeTemplateData{Language: i18n.English}
	if pageContext, ok := PageContextFromContext(context); ok {
		data.Language = pageContext.Language
		data.UserName = pageContext.UserName()
	}
	data.Features = featureCards(data.Language)
	handlers.renderer.Render(context, Page{Name: homeTemplateName, Title: data.Language.Pick("Home", "होम"), Data: data})
}

func (handlers *HomePageHandlers) RenderAbout(context *gin.Context) {
	language := languageOf(context)
	handlers.renderer.Render(context, Page{
		Name:  aboutTemplateName,
		Title: language.Pick("About", "हमारे बारे में"),
		Data:  aboutTemplateData{Language: language, Markdown: handlers.about[language]},
	})
}

func languageOf(context *gin.Context) i18n.Language {
	if pageContext, ok := PageContextFromContext(context); ok {
		return pageContext.Language
	}
	return i18n.English
}
