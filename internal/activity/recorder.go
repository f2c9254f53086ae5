// Package activity forwards usage events to the citizen's backend activity history.
package activity

import (
	"context"
	"fmt"

	"github.com/MarkoPoloResearchLab/ruralassist/internal/background"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/gateway"
)

const (
	TypeLogin      = "login"
	TypeOCR        = "ocr"
	TypeChatbot    = "chatbot"
	TypeScamReport = "scam_report"
	TypeSchemeView = "scheme_view"

	backgroundTaskName      = "log_activity"
	chatQueryPreviewRunes   = 50
	loginDescription        = "Logged in via OTP"
	scannedDocumentTemplate = "Scanned document: %s"
	chatQuestionTemplate    = "Asked: \"%s\""
	chatQueryEllipsis       = "..."
	schemeViewTemplate      = "Viewed scheme: %s"
	scamReportTemplate      = "Reported scam: %s"
)

// Logger is the backend call the recorder forwards to.
type Logger interface {
	LogActivity(ctx context.Context, token string, activity gateway.Activity) error
}

// Recorder sends activities without blocking the caller.
type Recorder struct {
	logger     Logger
	dispatcher *background.Dispatcher
}

func NewRecorder(logger Logger, dispatcher *background.Dispatcher) *Recorder {
	return &Recorder{logger: logger, dispatcher: dispatcher}
}

// Record forwards the activity of the token's owner. Anonymous visitors have no history, so an empty token is a no-op.
func (recorder *Recorder) Record(token string, activityType string, description string) {
	if recorder == nil || recorder.logger == nil || token == "" {
		return
	}
	activity := gateway.Activity{Type: activityType, Description: description}
	recorder.dispatcher.Go(backgroundTaskName, func(ctx context.Context) error {
		return recorder.logger.LogActivity(ctx, token, activity)
	})
}

func LoginDescription() string {
	return loginDescription
}

func ScannedDocumentDescription(fileName string) string {
	return fmt.Sprintf(scannedDocumentTemplate, fileName)
}

func SchemeViewDescription(title string) string {
	return fmt.Sprintf(schemeViewTemplate, title)
}

func ScamReportDescription(reportID string) string {
	return fmt.Sprintf(scamReportTemplate, reportID)
}

// ChatQuestionDescription quotes the first 50 characters of query, marking truncation with an ellipsis.
func ChatQuestionDescription(query string) string {
	runes := []rune(query)
	if len(runes) <= chatQueryPreviewRunes {
		return fmt.Sprintf(chatQuestionTemplate, query)
	}
	return fmt.Sprintf(chatQuestionTemplate, string(runes[:chatQueryPreviewRunes])+chatQueryEllipsis)
}
