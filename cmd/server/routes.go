package main

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/MarkoPoloResearchLab/ruralassist/internal/httpapi"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/offline"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/session"
)

const (
	apiRoutePrefix          = "/api"
	apiRouteFAQSearch       = "/faq/search"
	apiRouteFAQVote         = "/faq/:id/vote"
	apiRouteSchemeSave      = "/schemes/:id/save"
	routeLanguage           = httpapi.PathLanguage
	routeLogout             = httpapi.PathLogout
	routeLoginSendOTP       = "/login/send-otp"
	routeLoginVerify        = "/login/verify"
	routeLoginResend        = "/login/resend"
	routeSchemeSave         = "/schemes/:id/save"
	routeFAQVote            = "/faq/:id/vote"
	routeChatClear          = "/chat/clear"
	routeAssetsWildcard     = httpapi.AssetsRoutePrefix + "/*filepath"
	corsOriginWildcard      = "*"
	corsHeaderContentType   = "Content-Type"
	corsHeaderAuthorization = "Authorization"
	httpMethodGet           = "GET"
	httpMethodOptions       = "OPTIONS"
	httpMethodPost          = "POST"
)

var (
	corsAllowedMethods = []string{httpMethodPost, httpMethodGet, httpMethodOptions}
	corsAllowedHeaders = []string{corsHeaderAuthorization, corsHeaderContentType}
	corsExposedHeaders = []string{corsHeaderContentType}
)

type pageHandlers struct {
	home    *httpapi.HomePageHandlers
	login   *httpapi.LoginPageHandlers
	schemes *httpapi.SchemesPageHandlers
	faq     *httpapi.FAQPageHandlers
	chat    *httpapi.ChatPageHandlers
	ocr     *httpapi.OCRPageHandlers
	report  *httpapi.ReportPageHandlers
	account *httpapi.AccountPageHandlers
	sitemap *httpapi.SitemapHandlers
}

// registerFrontendRoutes mounts the server-rendered pages. Every page resolves the browser profile
// first; the guard then turns anonymous visitors of protected pages to the login.
func registerFrontendRoutes(router *gin.Engine, manager *httpapi.ProfileManager, handlers pageHandlers) {
	router.GET(httpapi.SitemapRoutePath, handlers.sitemap.RenderSitemap)

	pages := router.Group("/")
	pages.Use(manager.ResolveProfile(), manager.RequireSessionWeb())
	pages.GET(session.HomePath, handlers.home.RenderHome)
	pages.GET(session.AboutPath, handlers.home.RenderAbout)
	pages.POST(routeLanguage, manager.ToggleLanguage)
	pages.POST(routeLogout, manager.Logout)

	pages.GET(session.LoginPath, handlers.login.RenderLogin)
	pages.POST(routeLoginSendOTP, handlers.login.SendOTP)
	pages.POST(routeLoginVerify, handlers.login.VerifyOTP)
	pages.POST(routeLoginResend, handlers.login.ResendOTP)

	pages.GET(httpapi.PathSchemes, handlers.schemes.RenderSchemes)
	pages.POST(routeSchemeSave, handlers.schemes.ToggleSaved)
	pages.GET(httpapi.PathFAQ, handlers.faq.RenderFAQ)
	pages.POST(routeFAQVote, handlers.faq.Vote)
	pages.GET(httpapi.PathChat, handlers.chat.RenderChat)
	pages.POST(httpapi.PathChat, handlers.chat.SendMessage)
	pages.POST(routeChatClear, handlers.chat.ClearConversation)
	pages.GET(httpapi.PathOCR, handlers.ocr.RenderOCR)
	pages.POST(httpapi.PathOCR, handlers.ocr.ExtractText)
	pages.GET(httpapi.PathReport, handlers.report.RenderReport)
	pages.POST(httpapi.PathReport, handlers.report.SubmitReport)
	pages.GET(httpapi.PathProfile, handlers.account.RenderProfile)
	pages.POST(httpapi.PathProfile, handlers.account.UpdateProfile)
}

// registerOfflineRoutes serves the application shell without a profile so the service worker can
// cache it anonymously.
func registerOfflineRoutes(router *gin.Engine, handlers *httpapi.OfflineHandlers) {
	router.GET(routeAssetsWildcard, handlers.ServeAsset)
	router.GET(offline.HomeDocument, handlers.ServeAsset)
	router.GET(httpapi.ManifestPath, handlers.ServeAsset)
	router.GET(httpapi.ServiceWorkerPath, handlers.ServeServiceWorker)
}

func registerBackendRoutes(router *gin.Engine, manager *httpapi.ProfileManager, handlers *httpapi.APIHandlers, allowedOrigins []string) {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{corsOriginWildcard}
	}
	apiGroup := router.Group(apiRoutePrefix)
	apiGroup.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     corsAllowedMethods,
		AllowHeaders:     corsAllowedHeaders,
		ExposeHeaders:    corsExposedHeaders,
		AllowCredentials: !containsWildcard(allowedOrigins),
		MaxAge:           12 * time.Hour,
	}))
	apiGroup.Use(manager.ResolveProfile(), manager.RequireSessionJSON())
	apiGroup.GET(apiRouteFAQSearch, handlers.SearchFAQ)
	apiGroup.POST(apiRouteFAQVote, handlers.VoteFAQ)
	apiGroup.POST(apiRouteSchemeSave, handlers.ToggleSavedScheme)
}

func containsWildcard(origins []string) bool {
	for _, origin := range origins {
		if origin == corsOriginWildcard {
			return true
		}
	}
	return false
}
