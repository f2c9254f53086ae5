package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MarkoPoloResearchLab/ruralassist/internal/i18n"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/otp"
)

const (
	loginTemplateName = "login"
	formFieldEmail    = "email"
	formFieldOTP      = "otp"
	formFieldName     = "name"
	loginPageTitleEN  = "Login"
	loginPageTitleHI  = "लॉग इन"
)

type loginTemplateData struct {
	Language i18n.Language
	Status   otp.Status
}

// LoginPageHandlers renders the OTP login form and drives its three posts.
type LoginPageHandlers struct {
	renderer *PageRenderer
	flow     *otp.Flow
}

func NewLoginPageHandlers(renderer *PageRenderer, flow *otp.Flow) *LoginPageHandlers {
	return &LoginPageHandlers{renderer: renderer, flow: flow}
}

func (handlers *LoginPageHandlers) RenderLogin(context *gin.Context) {
	status := otp.Status{}
	if pageContext, ok := PageContextFromContext(context); ok {
		if pending := otp.PendingEmail(pageContext.Store); pending != "" {
			status.Email = pending
			status.CodeSent = true
		}
	}
	handlers.render(context, status)
}

func (handlers *LoginPageHandlers) SendOTP(context *gin.Context) {
	pageContext, ok := PageContextFromContext(context)
	if !ok {
		context.Redirect(http.StatusSeeOther, PathLogin)
		return
	}
	handlers.render(context, handlers.flow.Send(context.Request.Context(), pageContext.Store, context.PostForm(formFieldEmail)))
}

func (handlers *LoginPageHandlers) ResendOTP(context *gin.Context) {
	pageContext, ok := PageContextFromContext(context)
	if !ok {
		context.Redirect(http.StatusSeeOther, PathLogin)
		return
	}
	handlers.render(context, handlers.flow.Resend(context.Request.Context(), pageContext.Store, context.PostForm(formFieldEmail)))
}

// VerifyOTP logs the citizen in and sends them to the page they were turned away from.
func (handlers *LoginPageHandlers) VerifyOTP(context *gin.Context) {
	pageContext, ok := PageContextFromContext(context)
	if !ok {
		context.Redirect(http.StatusSeeOther, PathLogin)
		return
	}
	status := handlers.flow.Verify(
		context.Request.Context(),
		pageContext.Store,
		context.PostForm(formFieldEmail),
		context.PostForm(formFieldOTP),
		context.PostForm(formFieldName),
	)
	if status.Redirect != "" {
		context.Redirect(http.StatusSeeOther, status.Redirect)
		return
	}
	handlers.render(context, status)
}

func (handlers *LoginPageHandlers) render(context *gin.Context, status otp.Status) {
	language := languageOf(context)
	handlers.renderer.Render(context, Page{
		Name:  loginTemplateName,
		Title: language.Pick(loginPageTitleEN, loginPageTitleHI),
		Data:  loginTemplateData{Language: language, Status: status},
	})
}
