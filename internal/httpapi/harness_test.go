package httpapi_test

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/MarkoPoloResearchLab/ruralassist/internal/chat"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/faq"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/gateway"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/httpapi"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/i18n"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/offline"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/otp"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/prefs"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/session"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/upload"
)

const (
	testSessionSecret = "test-cookie-secret"
	testCookieName    = "ruralassist_profile"
	testEmail         = "asha@example.org"
	testCode          = "123456"
	testUserName      = "Asha Devi"
	testMaxUpload     = 10 * 1024 * 1024
	testCacheName     = "ruralassist-frontend-v6"
)

type recordedActivity struct {
	Token       string
	Type        string
	Description string
}

type stubRecorder struct {
	mutex   sync.Mutex
	records []recordedActivity
}

func (recorder *stubRecorder) Record(token string, activityType string, description string) {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	recorder.records = append(recorder.records, recordedActivity{Token: token, Type: activityType, Description: description})
}

func (recorder *stubRecorder) ofType(activityType string) []recordedActivity {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	var matching []recordedActivity
	for _, record := range recorder.records {
		if record.Type == activityType {
			matching = append(matching, record)
		}
	}
	return matching
}

type stubOTPGateway struct {
	token string
}

func (gatewayStub stubOTPGateway) SendEmailOTP(context.Context, string) (gateway.OTPResult, error) {
	return gateway.OTPResult{Success: true}, nil
}

func (gatewayStub stubOTPGateway) VerifyEmailOTP(context.Context, string, string) (gateway.OTPResult, error) {
	return gateway.OTPResult{Success: true, Token: gatewayStub.token}, nil
}

func (gatewayStub stubOTPGateway) ResendOTP(context.Context, string) (gateway.OTPResult, error) {
	return gateway.OTPResult{Success: true}, nil
}

// stubBackend answers every backend call the pages make.
type stubBackend struct {
	mutex        sync.Mutex
	schemes      []gateway.Scheme
	schemesErr   error
	analysis     gateway.ScamAnalysis
	analyzeErr   error
	receipt      gateway.ScamReceipt
	reportErr    error
	commonScams  []gateway.CommonScam
	profile      gateway.Profile
	profileErr   error
	dashboard    gateway.Dashboard
	dashboardErr error
	updatedNames []string
	extracted    string
	extractCalls int
	chatReply    string
}

func newStubBackend() *stubBackend {
	return &stubBackend{
		schemes: []gateway.Scheme{
			{ID: "1", Title: "PM Kisan", Category: "Agriculture", State: "All India", Description: "Income support for farmers."},
			{ID: "2", Title: "Ayushman Bharat", Category: "Health", State: "All India", Description: "Health cover for families."},
		},
		analysis:    gateway.ScamAnalysis{RiskLevel: "HIGH", RiskScore: 87.5, KeywordsDetected: []string{"otp"}, AnalysisText: "This looks like an OTP scam."},
		receipt:     gateway.ScamReceipt{ReportID: "RPT-9", RiskLevel: "HIGH", Message: "Report stored"},
		commonScams: []gateway.CommonScam{{Type: "KYC update", Description: "Fake bank calls.", Warning: "Banks never ask for OTP."}},
		profile:     gateway.Profile{Email: testEmail, Name: testUserName},
		dashboard:   gateway.Dashboard{Stats: gateway.UsageStats{TotalLogins: 3, OCRScans: 2}},
		extracted:   "Ration card number 12345",
		chatReply:   "Visit the nearest Common Service Centre.",
	}
}

func (backend *stubBackend) FindSchemes(_ context.Context, filters gateway.SchemeFilters) ([]gateway.Scheme, error) {
	if backend.schemesErr != nil {
		return nil, backend.schemesErr
	}
	if filters.Category == "" {
		return backend.schemes, nil
	}
	var filtered []gateway.Scheme
	for _, scheme := range backend.schemes {
		if scheme.Category == filters.Category {
			filtered = append(filtered, scheme)
		}
	}
	return filtered, nil
}

func (backend *stubBackend) AnalyzeScam(context.Context, string, gateway.ScamSubmission) (gateway.ScamAnalysis, error) {
	return backend.analysis, backend.analyzeErr
}

func (backend *stubBackend) ReportScam(context.Context, string, gateway.ScamSubmission) (gateway.ScamReceipt, error) {
	return backend.receipt, backend.reportErr
}

func (backend *stubBackend) CommonScams(context.Context) ([]gateway.CommonScam, error) {
	return backend.commonScams, nil
}

func (backend *stubBackend) GetProfile(context.Context, string) (gateway.Profile, error) {
	return backend.profile, backend.profileErr
}

func (backend *stubBackend) UpdateProfile(_ context.Context, _ string, name string) (gateway.Profile, error) {
	backend.mutex.Lock()
	defer backend.mutex.Unlock()
	backend.updatedNames = append(backend.updatedNames, name)
	return gateway.Profile{Email: testEmail, Name: name}, nil
}

func (backend *stubBackend) Dashboard(context.Context, string) (gateway.Dashboard, error) {
	return backend.dashboard, backend.dashboardErr
}

func (backend *stubBackend) ExtractText(_ context.Context, _ string, _ string, _ string, content io.Reader) (string, error) {
	backend.mutex.Lock()
	backend.extractCalls++
	backend.mutex.Unlock()
	_, _ = io.Copy(io.Discard, content)
	return backend.extracted, nil
}

func (backend *stubBackend) SendChatMessage(context.Context, string, string) (string, error) {
	return backend.chatReply, nil
}

// harness serves the whole page surface over a real listener and keeps the profile cookie.
type harness struct {
	testingT *testing.T
	server   *httptest.Server
	client   *http.Client
	backend  *stubBackend
	recorder *stubRecorder
	token    string
}

func newHarness(testingT *testing.T) *harness {
	testingT.Helper()
	gin.SetMode(gin.TestMode)

	testHarness := &harness{
		testingT: testingT,
		backend:  newStubBackend(),
		recorder: &stubRecorder{},
		token:    signedToken(testingT, time.Now().Add(time.Hour)),
	}

	manager := httpapi.NewProfileManager(httpapi.ProfileManagerConfig{
		SessionStore:    httpapi.NewCookieSessionStore(testSessionSecret, time.Hour),
		CookieName:      testCookieName,
		Backend:         prefs.NewMemoryBackend(),
		DefaultLanguage: i18n.English,
	})
	renderer := httpapi.NewPageRenderer(nil, manager)
	engine := faq.NewEngine(faq.Options{})
	flow := otp.NewFlow(stubOTPGateway{token: testHarness.token}, testHarness.recorder)
	scanner := upload.NewScanner(upload.Policy{
		MaxBytes:     testMaxUpload,
		AllowedTypes: []string{"image/jpeg", "image/jpg", "image/png", "application/pdf"},
	}, testHarness.backend, testHarness.recorder, nil)
	chatService := chat.NewService(chat.Options{
		Sender:   testHarness.backend,
		Recorder: testHarness.recorder,
		Cooldown: time.Hour,
	})
	worker, workerErr := offline.NewWorker(offline.WorkerOptions{
		CacheName: testCacheName,
		Upstream:  offline.NewEmbeddedFetcher(),
		Storage:   offline.NewMemoryStorage(),
	})
	require.NoError(testingT, workerErr)
	require.NoError(testingT, worker.Install(context.Background()))
	require.NoError(testingT, worker.Activate(context.Background()))

	homeHandlers := httpapi.NewHomePageHandlers(nil, renderer)
	loginHandlers := httpapi.NewLoginPageHandlers(renderer, flow)
	schemesHandlers := httpapi.NewSchemesPageHandlers(nil, renderer, testHarness.backend, testHarness.recorder)
	faqHandlers := httpapi.NewFAQPageHandlers(nil, renderer, engine)
	chatHandlers := httpapi.NewChatPageHandlers(renderer, chatService)
	ocrHandlers := httpapi.NewOCRPageHandlers(nil, renderer, scanner)
	reportHandlers := httpapi.NewReportPageHandlers(nil, renderer, testHarness.backend, testHarness.recorder)
	accountHandlers := httpapi.NewAccountPageHandlers(nil, renderer, testHarness.backend)
	apiHandlers := httpapi.NewAPIHandlers(nil, engine)
	offlineHandlers := httpapi.NewOfflineHandlers(nil, worker)

	router := gin.New()
	router.GET("/assets/*filepath", offlineHandlers.ServeAsset)
	router.GET(offline.HomeDocument, offlineHandlers.ServeAsset)
	router.GET(httpapi.ServiceWorkerPath, offlineHandlers.ServeServiceWorker)

	pages := router.Group("/")
	pages.Use(manager.ResolveProfile(), manager.RequireSessionWeb())
	pages.GET(session.HomePath, homeHandlers.RenderHome)
	pages.GET(session.AboutPath, homeHandlers.RenderAbout)
	pages.POST(httpapi.PathLanguage, manager.ToggleLanguage)
	pages.POST(httpapi.PathLogout, manager.Logout)
	pages.GET(session.LoginPath, loginHandlers.RenderLogin)
	pages.POST("/login/send-otp", loginHandlers.SendOTP)
	pages.POST("/login/verify", loginHandlers.VerifyOTP)
	pages.POST("/login/resend", loginHandlers.ResendOTP)
	pages.GET(httpapi.PathSchemes, schemesHandlers.RenderSchemes)
	pages.POST("/schemes/:id/save", schemesHandlers.ToggleSaved)
	pages.GET(httpapi.PathFAQ, faqHandlers.RenderFAQ)
	pages.POST("/faq/:id/vote", faqHandlers.Vote)
	pages.GET(httpapi.PathChat, chatHandlers.RenderChat)
	pages.POST(httpapi.PathChat, chatHandlers.SendMessage)
	pages.POST("/chat/clear", chatHandlers.ClearConversation)
	pages.GET(httpapi.PathOCR, ocrHandlers.RenderOCR)
	pages.POST(httpapi.PathOCR, ocrHandlers.ExtractText)
	pages.GET(httpapi.PathReport, reportHandlers.RenderReport)
	pages.POST(httpapi.PathReport, reportHandlers.SubmitReport)
	pages.GET(httpapi.PathProfile, accountHandlers.RenderProfile)
	pages.POST(httpapi.PathProfile, accountHandlers.UpdateProfile)

	api := router.Group("/api")
	api.Use(manager.ResolveProfile(), manager.RequireSessionJSON())
	api.GET("/faq/search", apiHandlers.SearchFAQ)
	api.POST("/faq/:id/vote", apiHandlers.VoteFAQ)
	api.POST("/schemes/:id/save", apiHandlers.ToggleSavedScheme)

	testHarness.server = httptest.NewServer(router)
	testingT.Cleanup(testHarness.server.Close)

	jar, jarErr := cookiejar.New(nil)
	require.NoError(testingT, jarErr)
	testHarness.client = &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return testHarness
}

func signedToken(testingT *testing.T, expiresAt time.Time) string {
	testingT.Helper()
	token, signErr := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": expiresAt.Unix()}).SignedString([]byte("backend-secret"))
	require.NoError(testingT, signErr)
	return token
}

type pageResponse struct {
	Status   int
	Location string
	Body     string
	Header   http.Header
}

func (testHarness *harness) do(request *http.Request) pageResponse {
	testHarness.testingT.Helper()
	response, responseErr := testHarness.client.Do(request)
	require.NoError(testHarness.testingT, responseErr)
	defer response.Body.Close()
	body, readErr := io.ReadAll(response.Body)
	require.NoError(testHarness.testingT, readErr)
	return pageResponse{
		Status:   response.StatusCode,
		Location: response.Header.Get("Location"),
		Body:     string(body),
		Header:   response.Header,
	}
}

func (testHarness *harness) get(path string) pageResponse {
	testHarness.testingT.Helper()
	request, requestErr := http.NewRequest(http.MethodGet, testHarness.server.URL+path, nil)
	require.NoError(testHarness.testingT, requestErr)
	return testHarness.do(request)
}

func (testHarness *harness) postForm(path string, values url.Values) pageResponse {
	testHarness.testingT.Helper()
	request, requestErr := http.NewRequest(http.MethodPost, testHarness.server.URL+path, strings.NewReader(values.Encode()))
	require.NoError(testHarness.testingT, requestErr)
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return testHarness.do(request)
}

func (testHarness *harness) postFile(path string, fileName string, contentType string, content []byte) pageResponse {
	testHarness.testingT.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	partHeader := make(textproto.MIMEHeader)
	partHeader.Set("Content-Disposition", `form-data; name="file"; filename="`+fileName+`"`)
	partHeader.Set("Content-Type", contentType)
	part, partErr := writer.CreatePart(partHeader)
	require.NoError(testHarness.testingT, partErr)
	_, writeErr := part.Write(content)
	require.NoError(testHarness.testingT, writeErr)
	require.NoError(testHarness.testingT, writer.Close())

	request, requestErr := http.NewRequest(http.MethodPost, testHarness.server.URL+path, &body)
	require.NoError(testHarness.testingT, requestErr)
	request.Header.Set("Content-Type", writer.FormDataContentType())
	return testHarness.do(request)
}

// login completes the OTP form and returns where the verification redirected to.
func (testHarness *harness) login() pageResponse {
	testHarness.testingT.Helper()
	return testHarness.postForm("/login/verify", url.Values{
		"email": {testEmail},
		"otp":   {testCode},
		"name":  {testUserName},
	})
}

func parseDocument(testingT *testing.T, body string) *html.Node {
	testingT.Helper()
	document, parseErr := html.Parse(strings.NewReader(body))
	require.NoError(testingT, parseErr)
	return document
}

func hasClass(node *html.Node, className string) bool {
	for _, attribute := range node.Attr {
		if attribute.Key != "class" {
			continue
		}
		for _, candidate := range strings.Fields(attribute.Val) {
			if candidate == className {
				return true
			}
		}
	}
	return false
}

func findByClass(root *html.Node, className string) []*html.Node {
	var matches []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && hasClass(node, className) {
			matches = append(matches, node)
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(root)
	return matches
}

func findByID(root *html.Node, id string) *html.Node {
	if root.Type == html.ElementNode {
		for _, attribute := range root.Attr {
			if attribute.Key == "id" && attribute.Val == id {
				return root
			}
		}
	}
	for child := root.FirstChild; child != nil; child = child.NextSibling {
		if found := findByID(child, id); found != nil {
			return found
		}
	}
	return nil
}

func textContent(node *html.Node) string {
	if node == nil {
		return ""
	}
	var builder strings.Builder
	var walk func(*html.Node)
	walk = func(current *html.Node) {
		if current.Type == html.TextNode {
			builder.WriteString(current.Data)
		}
		for child := current.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(node)
	return strings.TrimSpace(builder.String())
}
