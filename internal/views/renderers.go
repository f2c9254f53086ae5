package views

import (
	"html/template"

	"github.com/MarkoPoloResearchLab/ruralassist/internal/chat"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/faq"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/gateway"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/i18n"
)

const (
	schemesTemplateName     = "schemes"
	faqTemplateName         = "faq"
	chatTemplateName        = "chat"
	assessmentTemplateName  = "assessment"
	commonScamsTemplateName = "common_scams"

	schemesLoadFailure = "Could not load schemes. Please ensure the backend server is running and try again."
)

// SchemesView is the data of the schemes list.
type SchemesView struct {
	Language i18n.Language
	Schemes  []gateway.Scheme
	Saved    map[string]bool
	// ReturnTo is where the save buttons come back to, so active filters survive a toggle.
	ReturnTo string
	Error    string
}

// SchemesLoadFailure is the list message shown when the backend could not be reached.
func SchemesLoadFailure() string {
	return schemesLoadFailure
}

type SchemesRenderer struct {
	template *template.Template
}

func NewSchemesRenderer() *SchemesRenderer {
	return &SchemesRenderer{template: parseTemplate(schemesTemplateName, "schemes.tmpl")}
}

func (renderer *SchemesRenderer) Render(view SchemesView) (template.HTML, error) {
	return execute(renderer.template, schemesTemplateName, view)
}

// FAQView is the data of the FAQ result list.
type FAQView struct {
	Language i18n.Language
	Items    []faq.Item
	Receipts map[string]string
	ReturnTo string
}

type FAQRenderer struct {
	template *template.Template
}

func NewFAQRenderer() *FAQRenderer {
	return &FAQRenderer{template: parseTemplate(faqTemplateName, "faq.tmpl")}
}

func (renderer *FAQRenderer) Render(view FAQView) (template.HTML, error) {
	return execute(renderer.template, faqTemplateName, view)
}

// ChatView is the data of the chat transcript. An empty transcript shows the greeting and quick replies.
type ChatView struct {
	Language     i18n.Language
	Transcript   []chat.Message
	Greeting     string
	QuickReplies []chat.QuickReply
	Notice       string
}

// NewChatView fills the greeting and quick replies of language.
func NewChatView(language i18n.Language, transcript []chat.Message, notice string) ChatView {
	return ChatView{
		Language:     language,
		Transcript:   transcript,
		Greeting:     chat.Greeting(language),
		QuickReplies: chat.QuickReplies(language),
		Notice:       notice,
	}
}

type ChatRenderer struct {
	template *template.Template
}

func NewChatRenderer() *ChatRenderer {
	return &ChatRenderer{template: parseTemplate(chatTemplateName, "chat.tmpl")}
}

func (renderer *ChatRenderer) Render(view ChatView) (template.HTML, error) {
	return execute(renderer.template, chatTemplateName, view)
}

// AssessmentView is the scam analysis result. Error replaces the whole assessment; ReceiptError
// only replaces the filing confirmation.
type AssessmentView struct {
	Language     i18n.Language
	Analysis     gateway.ScamAnalysis
	Receipt      *gateway.ScamReceipt
	ReceiptError string
	Error        string
}

type CommonScamsView struct {
	Language i18n.Language
	Scams    []gateway.CommonScam
}

// ScamReportRenderer renders the risk assessment and the common scam catalogue.
type ScamReportRenderer struct {
	template *template.Template
}

func NewScamReportRenderer() *ScamReportRenderer {
	return &ScamReportRenderer{template: parseTemplate(assessmentTemplateName, "scam.tmpl")}
}

func (renderer *ScamReportRenderer) RenderAssessment(view AssessmentView) (template.HTML, error) {
	return execute(renderer.template, assessmentTemplateName, view)
}

func (renderer *ScamReportRenderer) RenderCommonScams(view CommonScamsView) (template.HTML, error) {
	return execute(renderer.template, commonScamsTemplateName, view)
}
