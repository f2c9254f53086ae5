package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/ruralassist/internal/i18n"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/upload"
)

const (
	ocrTemplateName  = "ocr"
	formFieldFile    = "file"
	logEventReadForm = "ocr_form_read_failed"
)

type ocrTemplateData struct {
	Language i18n.Language
	Accept   string
	MaxSize  string
	Result   *upload.Result
}

// OCRPageHandlers renders the document upload form and the extracted text.
type OCRPageHandlers struct {
	logger   *zap.Logger
	renderer *PageRenderer
	scanner  *upload.Scanner
}

func NewOCRPageHandlers(logger *zap.Logger, renderer *PageRenderer, scanner *upload.Scanner) *OCRPageHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OCRPageHandlers{logger: logger, renderer: renderer, scanner: scanner}
}

func (handlers *OCRPageHandlers) RenderOCR(context *gin.Context) {
	handlers.render(context, nil, http.StatusOK)
}

// ExtractText validates the upload locally and only then forwards it for OCR.
func (handlers *OCRPageHandlers) ExtractText(context *gin.Context) {
	pageContext, ok := PageContextFromContext(context)
	if !ok {
		context.Redirect(http.StatusSeeOther, PathLogin)
		return
	}
	header, formErr := context.FormFile(formFieldFile)
	if formErr != nil {
		if !errors.Is(formErr, http.ErrMissingFile) {
			handlers.logger.Debug(logEventReadForm, zap.Error(formErr))
		}
		header = nil
	}
	result := handlers.scanner.Scan(context.Request.Context(), pageContext.Token(), header)
	status := http.StatusOK
	switch result.Kind {
	case upload.StatusWarning:
		status = http.StatusBadRequest
	case upload.StatusError:
		status = http.StatusUnprocessableEntity
	}
	handlers.render(context, &result, status)
}

func (handlers *OCRPageHandlers) render(context *gin.Context, result *upload.Result, status int) {
	language := languageOf(context)
	policy := handlers.scanner.Policy()
	handlers.renderer.Render(context, Page{
		Name:   ocrTemplateName,
		Title:  language.Pick("OCR", "OCR"),
		Status: status,
		Data: ocrTemplateData{
			Language: language,
			Accept:   strings.Join(policy.AllowedTypes, ","),
			MaxSize:  upload.FormatFileSize(policy.MaxBytes),
			Result:   result,
		},
	})
}
