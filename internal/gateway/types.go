package gateway

import (
	"bytes"
	"encoding/json"
	"strings"
)

// SchemeID accepts both string and numeric ids from the backend.
type SchemeID string

func (schemeID *SchemeID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*schemeID = ""
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return err
		}
		*schemeID = SchemeID(text)
		return nil
	}
	var number json.Number
	if err := json.Unmarshal(trimmed, &number); err != nil {
		return err
	}
	*schemeID = SchemeID(number.String())
	return nil
}

// Scheme is one government scheme returned by the schemes endpoints.
type Scheme struct {
	ID          SchemeID `json:"id"`
	Title       string   `json:"title"`
	Category    string   `json:"category"`
	State       string   `json:"state"`
	Description string   `json:"description"`
	Summary     string   `json:"summary"`
	Benefits    string   `json:"benefits"`
	Eligibility string   `json:"eligibility"`
	ApplyLink   string   `json:"apply_link"`
}

// Overview returns the description, or the summary when the description is empty.
func (scheme Scheme) Overview() string {
	if strings.TrimSpace(scheme.Description) != "" {
		return scheme.Description
	}
	return scheme.Summary
}

// SchemeFilters narrows a scheme search.
type SchemeFilters struct {
	Query    string
	State    string
	Category string
}

// IsEmpty reports whether no filter is set.
func (filters SchemeFilters) IsEmpty() bool {
	return strings.TrimSpace(filters.Query) == "" && strings.TrimSpace(filters.State) == "" && strings.TrimSpace(filters.Category) == ""
}

type schemesResponse struct {
	Schemes []Scheme `json:"schemes"`
}

// FAQRecord is one FAQ returned by the remote search.
type FAQRecord struct {
	ID             string   `json:"id"`
	Category       string   `json:"category"`
	Question       string   `json:"question"`
	Answer         string   `json:"answer"`
	QuestionEN     string   `json:"question_en"`
	QuestionHI     string   `json:"question_hi"`
	AnswerEN       string   `json:"answer_en"`
	AnswerHI       string   `json:"answer_hi"`
	Icon           string   `json:"icon"`
	Keywords       []string `json:"keywords"`
	HelpfulCount   int      `json:"helpful_count"`
	UnhelpfulCount int      `json:"unhelpful_count"`
}

type faqSearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type faqSearchResponse struct {
	Results []FAQRecord `json:"results"`
}

type faqVoteRequest struct {
	FAQID    string `json:"faq_id"`
	VoteType string `json:"vote_type"`
}

// ScamSubmission describes suspicious activity reported by a citizen.
type ScamSubmission struct {
	Description string `json:"description"`
	ScamType    string `json:"scam_type"`
	Location    string `json:"location"`
	Anonymous   bool   `json:"anonymous"`
}

// ScamAnalysis is the backend risk assessment of a submission.
type ScamAnalysis struct {
	RiskLevel        string   `json:"risk_level"`
	RiskScore        float64  `json:"risk_score"`
	KeywordsDetected []string `json:"keywords_detected"`
	AnalysisText     string   `json:"analysis_text"`
}

// ScamReceipt acknowledges a filed report.
type ScamReceipt struct {
	ReportID  string `json:"report_id"`
	RiskLevel string `json:"risk_level"`
	Message   string `json:"message"`
}

// CommonScam describes a widespread scam pattern.
type CommonScam struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Warning     string   `json:"warning"`
	Examples    []string `json:"examples"`
}

type commonScamsResponse struct {
	CommonScams []CommonScam `json:"common_scams"`
}

// Profile is the authenticated citizen's profile.
type Profile struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type updateProfileRequest struct {
	Name string `json:"name"`
}

// UsageStats summarizes a citizen's use of the services.
type UsageStats struct {
	TotalLogins   int    `json:"total_logins"`
	OCRScans      int    `json:"ocr_scans"`
	ChatMessages  int    `json:"chat_messages"`
	ScamReports   int    `json:"scam_reports"`
	SchemesViewed int    `json:"schemes_viewed"`
	MemberSince   string `json:"member_since"`
	LastActive    string `json:"last_active"`
}

// ActivityItem is one entry of the recent activity history.
type ActivityItem struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Timestamp   string `json:"timestamp"`
}

// Dashboard aggregates profile, usage statistics and recent activity.
type Dashboard struct {
	Profile        Profile        `json:"profile"`
	Stats          UsageStats     `json:"stats"`
	RecentActivity []ActivityItem `json:"recent_activity"`
}

// Activity is a telemetry event attached to the authenticated citizen.
type Activity struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// OTPResult is returned by the OTP endpoints. Token is only set by a successful verification.
type OTPResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Token   string `json:"token"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type verifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type chatRequest struct {
	Query string `json:"query"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

type extractTextResponse struct {
	Text string `json:"text"`
}
