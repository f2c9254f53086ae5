// Package upload validates OCR documents and forwards them for text extraction.
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/ruralassist/internal/activity"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/gateway"
)

const (
	StatusSuccess = "success"
	StatusWarning = "warning"
	StatusError   = "error"

	genericContentType = "application/octet-stream"
	sniffLength        = 3072
	sizeUnitBase       = 1024

	messageNoFile           = "Please select a file first!"
	messageInvalidType      = "Invalid file type. Please upload JPG, PNG, or PDF files only."
	messageTooLargeTemplate = "File too large. Maximum size is %s."
	messageExtracted        = "✅ Text extracted successfully!"
	messageNoText           = "No text found in the document."
	messageFailureTemplate  = "❌ OCR failed: %s. Please check if the backend server is running."

	logEventExtractionFailed = "ocr_extraction_failed"
	logFieldFileName         = "file_name"
)

var (
	ErrNoFile      = errors.New("no_file_selected")
	ErrInvalidType = errors.New("invalid_file_type")
	ErrTooLarge    = errors.New("file_too_large")

	sizeUnits = []string{"Bytes", "KB", "MB", "GB"}
)

// Policy is the set of documents accepted for OCR.
type Policy struct {
	MaxBytes     int64
	AllowedTypes []string
}

// Document describes a selected file before it is read.
type Document struct {
	Name        string
	ContentType string
	Size        int64
}

// Validate checks the type first and the size second, matching the order the form reports them.
func (policy Policy) Validate(document Document) error {
	if document.Name == "" && document.Size == 0 {
		return ErrNoFile
	}
	if !policy.allows(document.ContentType) {
		return ErrInvalidType
	}
	if document.Size > policy.MaxBytes {
		return ErrTooLarge
	}
	return nil
}

func (policy Policy) allows(contentType string) bool {
	normalized := NormalizeContentType(contentType)
	for _, allowed := range policy.AllowedTypes {
		if normalized == allowed {
			return true
		}
	}
	return false
}

// Message returns the text shown for a validation error.
func (policy Policy) Message(validationErr error) string {
	switch {
	case errors.Is(validationErr, ErrNoFile):
		return messageNoFile
	case errors.Is(validationErr, ErrInvalidType):
		return messageInvalidType
	case errors.Is(validationErr, ErrTooLarge):
		return fmt.Sprintf(messageTooLargeTemplate, FormatFileSize(policy.MaxBytes))
	default:
		return ""
	}
}

// NormalizeContentType lower-cases a media type and drops its parameters.
func NormalizeContentType(contentType string) string {
	mediaType, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mediaType))
}

// ResolveContentType trusts the declared type unless it is missing or generic, in which case the
// leading bytes are sniffed.
func ResolveContentType(declared string, head []byte) string {
	normalized := NormalizeContentType(declared)
	if normalized != "" && normalized != genericContentType {
		return normalized
	}
	return NormalizeContentType(mimetype.Detect(head).String())
}

// FormatFileSize renders bytes with two decimals at most, as in "1.5 MB".
func FormatFileSize(size int64) string {
	if size <= 0 {
		return "0 Bytes"
	}
	exponent := int(math.Floor(math.Log(float64(size)) / math.Log(sizeUnitBase)))
	if exponent >= len(sizeUnits) {
		exponent = len(sizeUnits) - 1
	}
	scaled := math.Round(float64(size)/math.Pow(sizeUnitBase, float64(exponent))*100) / 100
	return strconv.FormatFloat(scaled, 'f', -1, 64) + " " + sizeUnits[exponent]
}

// Extractor is the backend OCR endpoint.
type Extractor interface {
	ExtractText(ctx context.Context, token string, fileName string, contentType string, content io.Reader) (string, error)
}

// ActivityRecorder receives the scan event.
type ActivityRecorder interface {
	Record(token string, activityType string, description string)
}

// Result is what the OCR page shows after a submission.
type Result struct {
	Kind     string
	Message  string
	Text     string
	FileName string
	FileSize string
}

// Scanner validates uploads locally and only then calls the backend.
type Scanner struct {
	policy    Policy
	extractor Extractor
	recorder  ActivityRecorder
	logger    *zap.Logger
}

func NewScanner(policy Policy, extractor Extractor, recorder ActivityRecorder, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{policy: policy, extractor: extractor, recorder: recorder, logger: logger}
}

func (scanner *Scanner) Policy() Policy {
	return scanner.policy
}

// Scan extracts the text of the uploaded file. A nil header means no file was chosen.
func (scanner *Scanner) Scan(ctx context.Context, token string, header *multipart.FileHeader) Result {
	if header == nil {
		return Result{Kind: StatusWarning, Message: messageNoFile}
	}
	file, openErr := header.Open()
	if openErr != nil {
		return Result{Kind: StatusWarning, Message: messageNoFile}
	}
	defer file.Close()

	head := make([]byte, sniffLength)
	readBytes, readErr := io.ReadFull(file, head)
	if readErr != nil && !errors.Is(readErr, io.ErrUnexpectedEOF) && !errors.Is(readErr, io.EOF) {
		return scanner.failure(header.Filename, readErr)
	}
	head = head[:readBytes]

	document := Document{
		Name:        header.Filename,
		ContentType: ResolveContentType(header.Header.Get("Content-Type"), head),
		Size:        header.Size,
	}
	return scanner.ScanReader(ctx, token, document, io.MultiReader(bytes.NewReader(head), file))
}

// ScanReader validates document and sends content to the backend.
func (scanner *Scanner) ScanReader(ctx context.Context, token string, document Document, content io.Reader) Result {
	if validationErr := scanner.policy.Validate(document); validationErr != nil {
		kind := StatusError
		if errors.Is(validationErr, ErrNoFile) {
			kind = StatusWarning
		}
		return Result{Kind: kind, Message: scanner.policy.Message(validationErr), FileName: document.Name}
	}

	text, extractErr := scanner.extractor.ExtractText(ctx, token, document.Name, NormalizeContentType(document.ContentType), content)
	if extractErr != nil {
		return scanner.failure(document.Name, extractErr)
	}
	if strings.TrimSpace(text) == "" {
		text = messageNoText
	}
	if scanner.recorder != nil {
		scanner.recorder.Record(token, activity.TypeOCR, activity.ScannedDocumentDescription(document.Name))
	}
	return Result{
		Kind:     StatusSuccess,
		Message:  messageExtracted,
		Text:     text,
		FileName: document.Name,
		FileSize: FormatFileSize(document.Size),
	}
}

func (scanner *Scanner) failure(fileName string, extractErr error) Result {
	scanner.logger.Warn(logEventExtractionFailed, zap.String(logFieldFileName, fileName), zap.Error(extractErr))
	return Result{
		Kind:     StatusError,
		Message:  fmt.Sprintf(messageFailureTemplate, gateway.ErrorMessage(extractErr)),
		FileName: fileName,
	}
}
