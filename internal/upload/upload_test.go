package upload

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MarkoPoloResearchLab/ruralassist/internal/activity"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/config"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/gateway"
)

const megabyte = 1024 * 1024

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

type stubExtractor struct {
	calls       int
	contentType string
	body        []byte
	text        string
	err         error
}

func (extractor *stubExtractor) ExtractText(_ context.Context, _ string, _ string, contentType string, content io.Reader) (string, error) {
	extractor.calls++
	extractor.contentType = contentType
	extractor.body, _ = io.ReadAll(content)
	return extractor.text, extractor.err
}

type stubRecorder struct {
	descriptions []string
}

func (recorder *stubRecorder) Record(_ string, activityType string, description string) {
	recorder.descriptions = append(recorder.descriptions, activityType+"|"+description)
}

func defaultPolicy() Policy {
	defaults := config.Defaults()
	return Policy{MaxBytes: defaults.MaxUploadBytes, AllowedTypes: defaults.AllowedUploadTypes}
}

func multipartHeader(testingT *testing.T, fileName string, contentType string, content []byte) *multipart.FileHeader {
	testingT.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	partHeader := make(textproto.MIMEHeader)
	partHeader.Set("Content-Disposition", `form-data; name="file"; filename="`+fileName+`"`)
	if contentType != "" {
		partHeader.Set("Content-Type", contentType)
	}
	part, createErr := writer.CreatePart(partHeader)
	require.NoError(testingT, createErr)
	_, writeErr := part.Write(content)
	require.NoError(testingT, writeErr)
	require.NoError(testingT, writer.Close())

	form, readErr := multipart.NewReader(&body, writer.Boundary()).ReadForm(megabyte)
	require.NoError(testingT, readErr)
	testingT.Cleanup(func() {
		_ = form.RemoveAll()
	})
	return form.File["file"][0]
}

func TestFifteenMegabyteUploadIsRejectedBeforeNetwork(testingT *testing.T) {
	extractor := &stubExtractor{}
	scanner := NewScanner(defaultPolicy(), extractor, nil, nil)

	result := scanner.ScanReader(context.Background(), "token", Document{Name: "scan.png", ContentType: "image/png", Size: 15 * megabyte}, strings.NewReader(""))

	require.Equal(testingT, StatusError, result.Kind)
	require.Equal(testingT, "File too large. Maximum size is 10 MB.", result.Message)
	require.Zero(testingT, extractor.calls)
}

func TestTypeIsCheckedBeforeSize(testingT *testing.T) {
	policy := defaultPolicy()

	validationErr := policy.Validate(Document{Name: "movie.mp4", ContentType: "video/mp4", Size: 50 * megabyte})

	require.ErrorIs(testingT, validationErr, ErrInvalidType)
	require.Equal(testingT, "Invalid file type. Please upload JPG, PNG, or PDF files only.", policy.Message(validationErr))
}

func TestValidateAcceptsAllowedTypes(testingT *testing.T) {
	policy := defaultPolicy()
	for _, contentType := range []string{"image/jpeg", "image/jpg", "IMAGE/PNG", "application/pdf; charset=binary"} {
		require.NoError(testingT, policy.Validate(Document{Name: "doc", ContentType: contentType, Size: 10 * megabyte}), contentType)
	}
	require.ErrorIs(testingT, policy.Validate(Document{}), ErrNoFile)
}

func TestFormatFileSize(testingT *testing.T) {
	testCases := map[int64]string{
		0:             "0 Bytes",
		512:           "512 Bytes",
		1536:          "1.5 KB",
		10 * megabyte: "10 MB",
		1234567:       "1.18 MB",
		3221225472:    "3 GB",
	}
	for size, expected := range testCases {
		require.Equal(testingT, expected, FormatFileSize(size), size)
	}
}

func TestResolveContentTypeSniffsGenericDeclarations(testingT *testing.T) {
	require.Equal(testingT, "image/png", ResolveContentType("", pngSignature))
	require.Equal(testingT, "image/png", ResolveContentType("application/octet-stream", pngSignature))
	require.Equal(testingT, "application/pdf", ResolveContentType("", []byte("%PDF-1.7\n")))
	require.Equal(testingT, "image/jpeg", ResolveContentType("Image/JPEG", pngSignature))
}

func TestScanSendsWholeFileAndRecordsActivity(testingT *testing.T) {
	content := append(append([]byte(nil), pngSignature...), bytes.Repeat([]byte{7}, 5000)...)
	extractor := &stubExtractor{text: "आधार कार्ड"}
	recorder := &stubRecorder{}
	scanner := NewScanner(defaultPolicy(), extractor, recorder, nil)

	result := scanner.Scan(context.Background(), "token", multipartHeader(testingT, "aadhaar.png", "", content))

	require.Equal(testingT, StatusSuccess, result.Kind)
	require.Equal(testingT, "आधार कार्ड", result.Text)
	require.Equal(testingT, "image/png", extractor.contentType)
	require.Equal(testingT, content, extractor.body)
	require.Equal(testingT, []string{activity.TypeOCR + "|Scanned document: aadhaar.png"}, recorder.descriptions)
}

func TestScanReportsEmptyTextAndFailures(testingT *testing.T) {
	emptyExtractor := &stubExtractor{text: "  "}
	emptyResult := NewScanner(defaultPolicy(), emptyExtractor, nil, nil).ScanReader(context.Background(), "", Document{Name: "a.pdf", ContentType: "application/pdf", Size: 10}, strings.NewReader("%PDF"))
	require.Equal(testingT, "No text found in the document.", emptyResult.Text)

	failingExtractor := &stubExtractor{err: &gateway.APIError{StatusCode: 500, Detail: "OCR engine unavailable"}}
	failedResult := NewScanner(defaultPolicy(), failingExtractor, nil, nil).ScanReader(context.Background(), "", Document{Name: "a.pdf", ContentType: "application/pdf", Size: 10}, strings.NewReader("%PDF"))
	require.Equal(testingT, StatusError, failedResult.Kind)
	require.Equal(testingT, "❌ OCR failed: OCR engine unavailable. Please check if the backend server is running.", failedResult.Message)

	transportExtractor := &stubExtractor{err: errors.Join(gateway.ErrTransport, errors.New("dial tcp"))}
	transportResult := NewScanner(defaultPolicy(), transportExtractor, nil, nil).ScanReader(context.Background(), "", Document{Name: "a.pdf", ContentType: "application/pdf", Size: 10}, strings.NewReader("%PDF"))
	require.Contains(testingT, transportResult.Message, "Could not reach the server")
}

func TestScanWithoutFileWarns(testingT *testing.T) {
	extractor := &stubExtractor{}
	result := NewScanner(defaultPolicy(), extractor, nil, nil).Scan(context.Background(), "", nil)

	require.Equal(testingT, StatusWarning, result.Kind)
	require.Equal(testingT, "Please select a file first!", result.Message)
	require.Zero(testingT, extractor.calls)
}
