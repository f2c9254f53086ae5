package httpapi_test

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type voteResponse struct {
	Recorded bool `json:"recorded"`
	Item     struct {
		ID           string `json:"id"`
		HelpfulCount int    `json:"helpful_count"`
	} `json:"item"`
}

func (testHarness *harness) postJSON(path string, payload string) pageResponse {
	testHarness.testingT.Helper()
	request, requestErr := http.NewRequest(http.MethodPost, testHarness.server.URL+path, strings.NewReader(payload))
	require.NoError(testHarness.testingT, requestErr)
	request.Header.Set("Content-Type", "application/json")
	return testHarness.do(request)
}

func TestAPIRejectsAnonymousProfiles(testingT *testing.T) {
	testHarness := newHarness(testingT)

	response := testHarness.get("/api/faq/search?q=otp")
	require.Equal(testingT, http.StatusUnauthorized, response.Status)
	require.JSONEq(testingT, `{"error":"unauthorized"}`, response.Body)
}

func TestAPIFAQSearchReturnsMatches(testingT *testing.T) {
	testHarness := newHarness(testingT)
	testHarness.login()

	response := testHarness.get("/api/faq/search?q=" + url.QueryEscape("otp"))
	require.Equal(testingT, http.StatusOK, response.Status)

	var payload struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
	}
	require.NoError(testingT, json.Unmarshal([]byte(response.Body), &payload))
	identifiers := make([]string, 0, len(payload.Items))
	for _, item := range payload.Items {
		identifiers = append(identifiers, item.ID)
	}
	require.Contains(testingT, identifiers, "faq_login_otp")
}

func TestAPIFAQVoteCountsOncePerProfile(testingT *testing.T) {
	testHarness := newHarness(testingT)
	testHarness.login()

	first := testHarness.postJSON("/api/faq/faq_login_otp/vote", `{"kind":"helpful"}`)
	require.Equal(testingT, http.StatusOK, first.Status)
	var firstVote voteResponse
	require.NoError(testingT, json.Unmarshal([]byte(first.Body), &firstVote))
	require.True(testingT, firstVote.Recorded)

	second := testHarness.postJSON("/api/faq/faq_login_otp/vote", `{"kind":"helpful"}`)
	require.Equal(testingT, http.StatusOK, second.Status)
	var secondVote voteResponse
	require.NoError(testingT, json.Unmarshal([]byte(second.Body), &secondVote))
	require.False(testingT, secondVote.Recorded)
	require.Equal(testingT, firstVote.Item.HelpfulCount, secondVote.Item.HelpfulCount)
}

func TestAPIFAQVoteValidation(testingT *testing.T) {
	testHarness := newHarness(testingT)
	testHarness.login()

	invalidKind := testHarness.postJSON("/api/faq/faq_login_otp/vote", `{"kind":"love"}`)
	require.Equal(testingT, http.StatusBadRequest, invalidKind.Status)
	require.JSONEq(testingT, `{"error":"invalid_vote_kind"}`, invalidKind.Body)

	unknownEntry := testHarness.postJSON("/api/faq/faq_missing/vote", `{"kind":"helpful"}`)
	require.Equal(testingT, http.StatusNotFound, unknownEntry.Status)
}

func TestAPIToggleSavedSchemeFlips(testingT *testing.T) {
	testHarness := newHarness(testingT)
	testHarness.login()

	saved := testHarness.postJSON("/api/schemes/7/save", "")
	require.Equal(testingT, http.StatusOK, saved.Status)
	require.JSONEq(testingT, `{"scheme_id":"7","saved":true}`, saved.Body)

	unsaved := testHarness.postJSON("/api/schemes/7/save", "")
	require.Equal(testingT, http.StatusOK, unsaved.Status)
	require.JSONEq(testingT, `{"scheme_id":"7","saved":false}`, unsaved.Body)
}

func TestServiceWorkerScriptNamesCacheGeneration(testingT *testing.T) {
	testHarness := newHarness(testingT)

	response := testHarness.get("/sw.js")
	require.Equal(testingT, http.StatusOK, response.Status)
	require.Equal(testingT, "no-cache", response.Header.Get("Cache-Control"))
	require.Contains(testingT, response.Body, `"`+testCacheName+`"`)
	require.Contains(testingT, response.Body, `"/assets/css/style.css"`)
}

func TestOfflineAssetsServeFromCacheAndFallBackToShell(testingT *testing.T) {
	testHarness := newHarness(testingT)

	style := testHarness.get("/assets/css/style.css")
	require.Equal(testingT, http.StatusOK, style.Status)
	require.Equal(testingT, "cache", style.Header.Get("X-Cache-Source"))

	missing := testHarness.get("/assets/js/missing.js")
	require.Equal(testingT, http.StatusOK, missing.Status)
	require.Equal(testingT, "fallback", missing.Header.Get("X-Cache-Source"))
	require.Contains(testingT, missing.Header.Get("Content-Type"), "text/html")
}
