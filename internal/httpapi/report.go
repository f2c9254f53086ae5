package httpapi

import (
	"context"
	"html/template"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/ruralassist/internal/activity"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/gateway"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/i18n"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/views"
)

const (
	reportTemplateName   = "report"
	formFieldDescription = "description"
	formFieldScamType    = "scam_type"
	formFieldLocation    = "location"
	formFieldAnonymous   = "anonymous"

	logEventAnalyzeScam = "scam_analysis_failed"
	logEventReportScam  = "scam_report_failed"
	logEventCommonScams = "common_scams_failed"
)

var scamTypes = []string{"phishing", "lottery", "job_offer", "loan", "kyc_update", "upi_fraud", "investment", "other"}

// ScamDesk is the backend scam analysis and reporting service.
type ScamDesk interface {
	AnalyzeScam(ctx context.Context, token string, submission gateway.ScamSubmission) (gateway.ScamAnalysis, error)
	ReportScam(ctx context.Context, token string, submission gateway.ScamSubmission) (gateway.ScamReceipt, error)
	CommonScams(ctx context.Context) ([]gateway.CommonScam, error)
}

type reportTemplateData struct {
	Language    i18n.Language
	Submission  gateway.ScamSubmission
	ScamTypes   []string
	Validation  string
	Assessment  template.HTML
	CommonScams template.HTML
}

// ReportPageHandlers analyzes suspicious activity and files it as a report.
type ReportPageHandlers struct {
	logger   *zap.Logger
	renderer *PageRenderer
	desk     ScamDesk
	views    *views.ScamReportRenderer
	recorder ActivityRecorder
}

func NewReportPageHandlers(logger *zap.Logger, renderer *PageRenderer, desk ScamDesk, recorder ActivityRecorder) *ReportPageHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportPageHandlers{
		logger:   logger,
		renderer: renderer,
		desk:     desk,
		views:    views.NewScamReportRenderer(),
		recorder: recorder,
	}
}

func (handlers *ReportPageHandlers) RenderReport(context *gin.Context) {
	handlers.render(context, reportTemplateData{}, http.StatusOK)
}

// SubmitReport analyzes the description and, when the analysis succeeds, files the report.
// A failed filing keeps the assessment on screen.
func (handlers *ReportPageHandlers) SubmitReport(context *gin.Context) {
	pageContext, ok := PageContextFromContext(context)
	if !ok {
		context.Redirect(http.StatusSeeOther, PathLogin)
		return
	}
	language := pageContext.Language
	submission := gateway.ScamSubmission{
		Description: strings.TrimSpace(context.PostForm(formFieldDescription)),
		ScamType:    strings.TrimSpace(context.PostForm(formFieldScamType)),
		Location:    strings.TrimSpace(context.PostForm(formFieldLocation)),
		Anonymous:   context.PostForm(formFieldAnonymous) == "true",
	}
	data := reportTemplateData{Submission: submission}
	if submission.Description == "" {
		data.Validation = language.Pick("Please describe the suspicious activity", "कृपया संदिग्ध गतिविधि का वर्णन करें")
		handlers.render(context, data, http.StatusBadRequest)
		return
	}

	token := pageContext.Token()
	assessment := views.AssessmentView{Language: language}
	analysis, analyzeErr := handlers.desk.AnalyzeScam(context.Request.Context(), token, submission)
	if analyzeErr != nil {
		handlers.logger.Warn(logEventAnalyzeScam, zap.Error(analyzeErr))
		assessment.Error = gateway.ErrorMessage(analyzeErr)
	} else {
		assessment.Analysis = analysis
		receipt, reportErr := handlers.desk.ReportScam(context.Request.Context(), token, submission)
		if reportErr != nil {
			handlers.logger.Warn(logEventReportScam, zap.Error(reportErr))
			assessment.ReceiptError = language.Pick("The report could not be filed. Please try again later.", "रिपोर्ट दर्ज नहीं हो सकी। कृपया बाद में प्रयास करें।")
		} else {
			assessment.Receipt = &receipt
			if handlers.recorder != nil {
				handlers.recorder.Record(token, activity.TypeScamReport, activity.ScamReportDescription(receipt.ReportID))
			}
		}
	}

	rendered, renderErr := handlers.views.RenderAssessment(assessment)
	if renderErr != nil {
		handlers.renderer.fail(context, reportTemplateName, renderErr)
		return
	}
	data.Assessment = rendered
	handlers.render(context, data, http.StatusOK)
}

func (handlers *ReportPageHandlers) render(context *gin.Context, data reportTemplateData, status int) {
	language := languageOf(context)
	data.Language = language
	data.ScamTypes = scamTypes

	scams, scamsErr := handlers.desk.CommonScams(context.Request.Context())
	if scamsErr != nil {
		handlers.logger.Debug(logEventCommonScams, zap.Error(scamsErr))
	}
	commonScams, renderErr := handlers.views.RenderCommonScams(views.CommonScamsView{Language: language, Scams: scams})
	if renderErr != nil {
		handlers.renderer.fail(context, reportTemplateName, renderErr)
		return
	}
	data.CommonScams = commonScams
	handlers.renderer.Render(context, Page{
		Name:   reportTemplateName,
		Title:  language.Pick("Report Scam", "धोखाधड़ी रिपोर्ट"),
		Status: status,
		Data:   data,
	})
}
