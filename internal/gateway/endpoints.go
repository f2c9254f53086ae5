package gateway

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	PathHealth         = "/"
	PathChatMessage    = "/chatbot/message"
	PathActivity       = "/profile/activity"
	PathFAQSearch      = "/faq/search"
	PathFAQVote        = "/faq/vote"
	PathSendEmailOTP   = "/auth/send-email-otp"
	PathVerifyEmailOTP = "/auth/verify-email-otp"
	PathResendOTP      = "/auth/resend-otp"
	PathProfile        = "/profile/me"
	PathDashboard      = "/profile/dashboard"
	PathExtractText    = "/ocr/extract"
	PathAnalyzeScam    = "/scam/analyze"
	PathReportScam     = "/scam/report"
	PathCommonScams    = "/scam/common-scams"
	PathLocalSchemes   = "/schemes/local"
	PathSearchSchemes  = "/schemes/search"

	// FAQSearchLimit is the result cap requested from the remote FAQ search.
	FAQSearchLimit = 20

	queryParameterQuery    = "q"
	queryParameterState    = "state"
	queryParameterCategory = "category"
)

// Health probes the backend root.
func (client *Client) Health(ctx context.Context) error {
	return client.doJSON(ctx, http.MethodGet, PathHealth, nil, nil, "", nil)
}

// SendChatMessage asks the chatbot. token may be empty.
func (client *Client) SendChatMessage(ctx context.Context, token string, query string) (string, error) {
	var response chatResponse
	if err := client.doJSON(ctx, http.MethodPost, PathChatMessage, nil, chatRequest{Query: query}, token, &response); err != nil {
		return "", err
	}
	return response.Reply, nil
}

// LogActivity records a telemetry event for the authenticated citizen.
func (client *Client) LogActivity(ctx context.Context, token string, activity Activity) error {
	return client.doJSON(ctx, http.MethodPost, PathActivity, nil, activity, token, nil)
}

// SearchFAQ runs the remote FAQ search.
func (client *Client) SearchFAQ(ctx context.Context, query string, limit int) ([]FAQRecord, error) {
	var response faqSearchResponse
	if err := client.doJSON(ctx, http.MethodPost, PathFAQSearch, nil, faqSearchRequest{Query: query, Limit: limit}, "", &response); err != nil {
		return nil, err
	}
	return response.Results, nil
}

// VoteFAQ forwards a helpfulness vote.
func (client *Client) VoteFAQ(ctx context.Context, faqID string, voteType string) error {
	return client.doJSON(ctx, http.MethodPost, PathFAQVote, nil, faqVoteRequest{FAQID: faqID, VoteType: voteType}, "", nil)
}

func (client *Client) SendEmailOTP(ctx context.Context, email string) (OTPResult, error) {
	var result OTPResult
	err := client.doJSON(ctx, http.MethodPost, PathSendEmailOTP, nil, emailRequest{Email: email}, "", &result)
	return result, err
}

func (client *Client) VerifyEmailOTP(ctx context.Context, email string, otp string) (OTPResult, error) {
	var result OTPResult
	err := client.doJSON(ctx, http.MethodPost, PathVerifyEmailOTP, nil, verifyOTPRequest{Email: email, OTP: otp}, "", &result)
	return result, err
}

func (client *Client) ResendOTP(ctx context.Context, email string) (OTPResult, error) {
	var result OTPResult
	err := client.doJSON(ctx, http.MethodPost, PathResendOTP, nil, emailRequest{Email: email}, "", &result)
	return result, err
}

func (client *Client) GetProfile(ctx context.Context, token string) (Profile, error) {
	var profile Profile
	err := client.doJSON(ctx, http.MethodGet, PathProfile, nil, nil, token, &profile)
	return profile, err
}

func (client *Client) UpdateProfile(ctx context.Context, token string, name string) (Profile, error) {
	var profile Profile
	err := client.doJSON(ctx, http.MethodPost, PathProfile, nil, updateProfileRequest{Name: strings.TrimSpace(name)}, token, &profile)
	return profile, err
}

// Dashboard loads usage statistics and the last activities of the citizen.
func (client *Client) Dashboard(ctx context.Context, token string) (Dashboard, error) {
	var dashboard Dashboard
	err := client.doJSON(ctx, http.MethodGet, PathDashboard, nil, nil, token, &dashboard)
	return dashboard, err
}

// ExtractText uploads a document as the multipart "file" part and returns the recognized text.
func (client *Client) ExtractText(ctx context.Context, token string, fileName string, contentType string, content io.Reader) (string, error) {
	var response extractTextResponse
	if err := client.postMultipartFile(ctx, PathExtractText, fileName, contentType, content, token, &response); err != nil {
		return "", err
	}
	return response.Text, nil
}

func (client *Client) AnalyzeScam(ctx context.Context, token string, submission ScamSubmission) (ScamAnalysis, error) {
	var analysis ScamAnalysis
	err := client.doJSON(ctx, http.MethodPost, PathAnalyzeScam, nil, submission, token, &analysis)
	return analysis, err
}

func (client *Client) ReportScam(ctx context.Context, token string, submission ScamSubmission) (ScamReceipt, error) {
	var receipt ScamReceipt
	err := client.doJSON(ctx, http.MethodPost, PathReportScam, nil, submission, token, &receipt)
	return receipt, err
}

func (client *Client) CommonScams(ctx context.Context) ([]CommonScam, error) {
	var response commonScamsResponse
	if err := client.doJSON(ctx, http.MethodGet, PathCommonScams, nil, nil, "", &response); err != nil {
		return nil, err
	}
	return response.CommonScams, nil
}

// LocalSchemes lists the locally cached schemes.
func (client *Client) LocalSchemes(ctx context.Context) ([]Scheme, error) {
	var response schemesResponse
	if err := client.doJSON(ctx, http.MethodGet, PathLocalSchemes, nil, nil, "", &response); err != nil {
		return nil, err
	}
	return response.Schemes, nil
}

// SearchSchemes queries schemes with the non-empty filters.
func (client *Client) SearchSchemes(ctx context.Context, filters SchemeFilters) ([]Scheme, error) {
	query := url.Values{}
	if value := strings.TrimSpace(filters.Query); value != "" {
		query.Set(queryParameterQuery, value)
	}
	if value := strings.TrimSpace(filters.State); value != "" {
		query.Set(queryParameterState, value)
	}
	if value := strings.TrimSpace(filters.Category); value != "" {
		query.Set(queryParameterCategory, value)
	}
	var response schemesResponse
	if err := client.doJSON(ctx, http.MethodGet, PathSearchSchemes, query, nil, "", &response); err != nil {
		return nil, err
	}
	return response.Schemes, nil
}

// FindSchemes uses the local listing without filters and the search endpoint otherwise.
func (client *Client) FindSchemes(ctx context.Context, filters SchemeFilters) ([]Scheme, error) {
	if filters.IsEmpty() {
		return client.LocalSchemes(ctx)
	}
	return client.SearchSchemes(ctx, filters)
}
