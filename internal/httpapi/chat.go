package httpapi

import (
	"errors"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MarkoPoloResearchLab/ruralassist/internal/chat"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/i18n"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/views"
)

const (
	chatTemplateName   = "chat_page"
	formFieldMessage   = "message"
	chatStatusTooSoon  = http.StatusTooManyRequests
	chatStatusRejected = http.StatusUnprocessableEntity
)

type chatTemplateData struct {
	Language   i18n.Language
	Online     bool
	Transcript template.HTML
}

// ChatPageHandlers renders the assistant conversation kept in the profile store.
type ChatPageHandlers struct {
	renderer   *PageRenderer
	service    *chat.Service
	transcript *views.ChatRenderer
}

func NewChatPageHandlers(renderer *PageRenderer, service *chat.Service) *ChatPageHandlers {
	return &ChatPageHandlers{renderer: renderer, service: service, transcript: views.NewChatRenderer()}
}

func (handlers *ChatPageHandlers) RenderChat(context *gin.Context) {
	pageContext, ok := PageContextFromContext(context)
	if !ok {
		context.Redirect(http.StatusFound, PathLogin)
		return
	}
	handlers.render(context, pageContext, handlers.service.Transcript(pageContext.Store), "", http.StatusOK)
}

// SendMessage asks the assistant and shows the conversation again. Rejected input keeps the
// transcript and explains why.
func (handlers *ChatPageHandlers) SendMessage(context *gin.Context) {
	pageContext, ok := PageContextFromContext(context)
	if !ok {
		context.Redirect(http.StatusSeeOther, PathLogin)
		return
	}
	transcript, sendErr := handlers.service.Send(
		context.Request.Context(),
		pageContext.Store,
		pageContext.ProfileID,
		pageContext.Token(),
		context.PostForm(formFieldMessage),
	)
	notice, status := chatNotice(sendErr, pageContext.Language)
	handlers.render(context, pageContext, transcript, notice, status)
}

func (handlers *ChatPageHandlers) ClearConversation(context *gin.Context) {
	if pageContext, ok := PageContextFromContext(context); ok {
		handlers.service.Clear(pageContext.Store)
	}
	context.Redirect(http.StatusSeeOther, PathChat)
}

func (handlers *ChatPageHandlers) render(context *gin.Context, pageContext *PageContext, transcript []chat.Message, notice string, status int) {
	language := pageContext.Language
	rendered, renderErr := handlers.transcript.Render(views.NewChatView(language, transcript, notice))
	if renderErr != nil {
		handlers.renderer.fail(context, chatTemplateName, renderErr)
		return
	}
	handlers.renderer.Render(context, Page{
		Name:   chatTemplateName,
		Title:  language.Pick("Chat", "चैट"),
		Status: status,
		Data: chatTemplateData{
			Language:   language,
			Online:     handlers.service.Online(),
			Transcript: rendered,
		},
	})
}

func chatNotice(sendErr error, language i18n.Language) (string, int) {
	switch {
	case sendErr == nil:
		return "", http.StatusOK
	case errors.Is(sendErr, chat.ErrCooldown):
		return language.Pick("Please wait a moment before sending again.", "दोबारा भेजने से पहले थोड़ा इंतज़ार करें।"), chatStatusTooSoon
	case errors.Is(sendErr, chat.ErrOffline):
		return language.Pick("The assistant is offline. Please try again later.", "सहायक अभी ऑफ़लाइन है। कृपया बाद में प्रयास करें।"), http.StatusServiceUnavailable
	case errors.Is(sendErr, chat.ErrEmptyMessage):
		return language.Pick("Please type a message first.", "कृपया पहले संदेश लिखें।"), chatStatusRejected
	default:
		return sendErr.Error(), http.StatusInternalServerError
	}
}
