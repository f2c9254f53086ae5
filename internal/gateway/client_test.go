package gateway_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MarkoPoloResearchLab/ruralassist/internal/gateway"
)

const (
	testBaseURL = "https://backend.example"
	testToken   = "header.payload.signature"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (fn roundTripperFunc) RoundTrip(request *http.Request) (*http.Response, error) {
	return fn(request)
}

func jsonResponse(statusCode int, body string) *http.Response {
	return &http.Response{
		StatusCode: statusCode,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func newStubClient(handler roundTripperFunc) *gateway.Client {
	return gateway.NewClient(testBaseURL+"/", &http.Client{Transport: handler}, nil)
}

func TestAuthenticatedJSONRequestCarriesHeaders(t *testing.T) {
	var captured *http.Request
	var capturedBody map[string]any
	client := newStubClient(func(request *http.Request) (*http.Response, error) {
		captured = request
		require.NoError(t, json.NewDecoder(request.Body).Decode(&capturedBody))
		return jsonResponse(http.StatusOK, `{"reply":"Namaste"}`), nil
	})

	reply, err := client.SendChatMessage(context.Background(), testToken, "hello")
	require.NoError(t, err)
	require.Equal(t, "Namaste", reply)
	require.Equal(t, http.MethodPost, captured.Method)
	require.Equal(t, testBaseURL+gateway.PathChatMessage, captured.URL.String())
	require.Equal(t, "application/json", captured.Header.Get("Content-Type"))
	require.Equal(t, "Bearer "+testToken, captured.Header.Get("Authorization"))
	require.Equal(t, map[string]any{"query": "hello"}, capturedBody)
}

func TestAnonymousRequestOmitsAuthorization(t *testing.T) {
	var captured *http.Request
	client := newStubClient(func(request *http.Request) (*http.Response, error) {
		captured = request
		return jsonResponse(http.StatusOK, `{"reply":"ok"}`), nil
	})

	_, err := client.SendChatMessage(context.Background(), "  ", "hello")
	require.NoError(t, err)
	require.Empty(t, captured.Header.Get("Authorization"))
}

func TestDashboardReadsProfileRouter(t *testing.T) {
	var captured *http.Request
	client := newStubClient(func(request *http.Request) (*http.Response, error) {
		captured = request
		return jsonResponse(http.StatusOK, `{"stats":{"ocr_scans":3},"recent_activity":[{"type":"login","description":"Logged in"}]}`), nil
	})

	dashboard, err := client.Dashboard(context.Background(), testToken)
	require.NoError(t, err)
	require.Equal(t, http.MethodGet, captured.Method)
	require.Equal(t, testBaseURL+"/profile/dashboard", captured.URL.String())
	require.Equal(t, 3, dashboard.Stats.OCRScans)
	require.Len(t, dashboard.RecentActivity, 1)
}

func TestFindSchemesSelectsEndpointByFilters(t *testing.T) {
	var requestedURLs []string
	client := newStubClient(func(request *http.Request) (*http.Response, error) {
		requestedURLs = append(requestedURLs, request.URL.String())
		return jsonResponse(http.StatusOK, `{"schemes":[{"id":42,"title":"PM-KISAN","summary":"Income support"}]}`), nil
	})

	localSchemes, localErr := client.FindSchemes(context.Background(), gateway.SchemeFilters{})
	require.NoError(t, localErr)
	require.Equal(t, gateway.SchemeID("42"), localSchemes[0].ID)
	require.Equal(t, "Income support", localSchemes[0].Overview())

	_, searchErr := client.FindSchemes(context.Background(), gateway.SchemeFilters{Query: "farm loan", State: "Bihar"})
	require.NoError(t, searchErr)

	require.Equal(t, []string{
		testBaseURL + gateway.PathLocalSchemes,
		testBaseURL + gateway.PathSearchSchemes + "?q=farm+loan&state=Bihar",
	}, requestedURLs)
}

func TestNonSuccessStatusBecomesAPIError(t *testing.T) {
	testCases := []struct {
		name            string
		body            string
		expectedMessage string
	}{
		{name: "string detail", body: `{"detail":"Invalid OTP"}`, expectedMessage: "Invalid OTP"},
		{name: "message field", body: `{"message":"Email not registered"}`, expectedMessage: "Email not registered"},
		{name: "structured detail", body: `{"detail":[{"msg":"field required"}]}`, expectedMessage: `[{"msg":"field required"}]`},
		{name: "empty body", body: ``, expectedMessage: "Bad Request"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(testingT *testing.T) {
			client := newStubClient(func(*http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusBadRequest, testCase.body), nil
			})
			_, err := client.VerifyEmailOTP(context.Background(), "user@example.com", "123456")

			var apiError *gateway.APIError
			require.ErrorAs(testingT, err, &apiError)
			require.Equal(testingT, http.StatusBadRequest, apiError.StatusCode)
			require.Equal(testingT, testCase.expectedMessage, gateway.ErrorMessage(err))
		})
	}
}

func TestTransportFailureWrapsSentinel(t *testing.T) {
	client := newStubClient(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})

	err := client.Health(context.Background())
	require.ErrorIs(t, err, gateway.ErrTransport)
	require.Equal(t, "Could not reach the server", gateway.ErrorMessage(err))
}

func TestMalformedResponseWrapsDecodeSentinel(t *testing.T) {
	client := newStubClient(func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"results":`), nil
	})

	_, err := client.SearchFAQ(context.Background(), "otp", gateway.FAQSearchLimit)
	require.ErrorIs(t, err, gateway.ErrDecodeResponse)
}

func TestExtractTextSendsMultipartFile(t *testing.T) {
	fileContent := []byte("%PDF-1.4 sample")
	client := newStubClient(func(request *http.Request) (*http.Response, error) {
		require.Equal(t, "Bearer "+testToken, request.Header.Get("Authorization"))
		require.NoError(t, request.ParseMultipartForm(1<<20))
		file, header, formErr := request.FormFile("file")
		require.NoError(t, formErr)
		defer file.Close()
		received, readErr := io.ReadAll(file)
		require.NoError(t, readErr)
		require.Equal(t, fileContent, received)
		require.Equal(t, "aadhaar.pdf", header.Filename)
		require.Equal(t, "application/pdf", header.Header.Get("Content-Type"))
		return jsonResponse(http.StatusOK, `{"text":"Government of India"}`), nil
	})

	text, err := client.ExtractText(context.Background(), testToken, "aadhaar.pdf", "application/pdf", bytes.NewReader(fileContent))
	require.NoError(t, err)
	require.Equal(t, "Government of India", text)
}

func TestScamAnalysisAndReceiptDecode(t *testing.T) {
	client := newStubClient(func(request *http.Request) (*http.Response, error) {
		var submission gateway.ScamSubmission
		require.NoError(t, json.NewDecoder(request.Body).Decode(&submission))
		require.True(t, submission.Anonymous)
		if request.URL.Path == gateway.PathAnalyzeScam {
			return jsonResponse(http.StatusOK, `{"risk_level":"High","risk_score":8.25,"keywords_detected":["otp","lottery"],"analysis_text":"Likely fraud"}`), nil
		}
		return jsonResponse(http.StatusOK, `{"report_id":"RPT-1","risk_level":"High","message":"Report submitted"}`), nil
	})

	submission := gateway.ScamSubmission{Description: "Caller asked for OTP", ScamType: "phone", Anonymous: true}
	analysis, analyzeErr := client.AnalyzeScam(context.Background(), "", submission)
	require.NoError(t, analyzeErr)
	require.Equal(t, "High", analysis.RiskLevel)
	require.InDelta(t, 8.25, analysis.RiskScore, 0.0001)
	require.Equal(t, []string{"otp", "lottery"}, analysis.KeywordsDetected)

	receipt, reportErr := client.ReportScam(context.Background(), "", submission)
	require.NoError(t, reportErr)
	require.Equal(t, "RPT-1", receipt.ReportID)
}

func TestSchemeIDAcceptsStringsAndNumbers(t *testing.T) {
	var schemes []gateway.Scheme
	require.NoError(t, json.Unmarshal([]byte(`[{"id":"pm-kisan"},{"id":7},{"id":null}]`), &schemes))
	require.Equal(t, gateway.SchemeID("pm-kisan"), schemes[0].ID)
	require.Equal(t, gateway.SchemeID("7"), schemes[1].ID)
	require.Equal(t, gateway.SchemeID(""), schemes[2].ID)
}
