package httpapi

import (
	"encoding/xml"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MarkoPoloResearchLab/ruralassist/internal/session"
)

const (
	SitemapRoutePath     = "/sitemap.xml"
	sitemapContentType   = "application/xml; charset=utf-8"
	sitemapXMLNamespace  = "http://www.sitemaps.org/schemas/sitemap/0.9"
	sitemapRenderFailure = "sitemap_render_failed"
)

// Only the public pages are listed; everything else redirects anonymous crawlers to the login.
var sitemapPublicPaths = []string{
	session.HomePath,
	session.AboutPath,
	session.LoginPath,
}

type SitemapHandlers struct {
	baseURL    string
	routePaths []string
}

type sitemapURLEntry struct {
	Location string `xml:"loc"`
}

type sitemapURLSet struct {
	XMLName xml.Name          `xml:"urlset"`
	XMLNS   string            `xml:"xmlns,attr"`
	URLs    []sitemapURLEntry `xml:"url"`
}

// NewSitemapHandlers lists the public pages under baseURL. An empty baseURL uses the origin of
// each request.
func NewSitemapHandlers(baseURL string) *SitemapHandlers {
	return &SitemapHandlers{
		baseURL:    normalizeBaseURL(baseURL),
		routePaths: append([]string(nil), sitemapPublicPaths...),
	}
}

func (handlers *SitemapHandlers) RenderSitemap(context *gin.Context) {
	baseURL := handlers.baseURL
	if baseURL == "" {
		baseURL = requestOrigin(context.Request)
	}
	urlEntries := make([]sitemapURLEntry, 0, len(handlers.routePaths))
	for _, path := range handlers.routePaths {
		urlEntries = append(urlEntries, sitemapURLEntry{Location: joinBaseURL(baseURL, path)})
	}

	encoded, err := xml.MarshalIndent(sitemapURLSet{XMLNS: sitemapXMLNamespace, URLs: urlEntries}, "", "  ")
	if err != nil {
		context.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{jsonKeyError: sitemapRenderFailure})
		return
	}
	context.Data(http.StatusOK, sitemapContentType, append([]byte(xml.Header), encoded...))
}
