package httpapi_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/MarkoPoloResearchLab/ruralassist/internal/httpapi"
)

const (
	sitemapHomeLocationToken  = "<loc>https://ruralassist.example.org/</loc>"
	sitemapAboutLocationToken = "<loc>https://ruralassist.example.org/about</loc>"
	sitemapLoginLocationToken = "<loc>https://ruralassist.example.org/login</loc>"
)

func renderSitemap(testingT *testing.T, baseURL string, request *http.Request) *httptest.ResponseRecorder {
	testingT.Helper()
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	context, _ := gin.CreateTestContext(recorder)
	context.Request = request
	httpapi.NewSitemapHandlers(baseURL).RenderSitemap(context)
	return recorder
}

func TestSitemapListsPublicPages(testingT *testing.T) {
	recorder := renderSitemap(testingT, "https://ruralassist.example.org/", httptest.NewRequest(http.MethodGet, httpapi.SitemapRoutePath, nil))

	require.Equal(testingT, http.StatusOK, recorder.Code)
	require.Contains(testingT, recorder.Header().Get("Content-Type"), "application/xml")
	body := recorder.Body.String()
	require.Contains(testingT, body, sitemapHomeLocationToken)
	require.Contains(testingT, body, sitemapAboutLocationToken)
	require.Contains(testingT, body, sitemapLoginLocationToken)
	require.NotContains(testingT, body, "/schemes")
}

func TestSitemapUsesRequestOriginWithoutBaseURL(testingT *testing.T) {
	request := httptest.NewRequest(http.MethodGet, httpapi.SitemapRoutePath, nil)
	request.Host = "ruralassist.example.org"
	request.Header.Set("X-Forwarded-Proto", "https")

	recorder := renderSitemap(testingT, "", request)

	require.Equal(testingT, http.StatusOK, recorder.Code)
	require.Contains(testingT, recorder.Body.String(), sitemapAboutLocationToken)
}
