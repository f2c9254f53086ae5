// Package gateway is the HTTP client of the RuralAssist backend API.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	headerAuthorization   = "Authorization"
	headerContentType     = "Content-Type"
	headerAccept          = "Accept"
	bearerPrefix          = "Bearer "
	contentTypeJSON       = "application/json"
	multipartFieldFile    = "file"
	defaultRequestTimeout = 15 * time.Second
	maxErrorBodyBytes     = 64 * 1024

	logEventGatewayRequestFailed = "gateway_request_failed"
	logEventGatewayStatusFailed  = "gateway_status_failed"
	logFieldMethod               = "method"
	logFieldPath                 = "path"
	logFieldStatus               = "status"
	logFieldDetail               = "detail"
)

var (
	// ErrTransport wraps network failures reaching the backend.
	ErrTransport = errors.New("gateway: transport failure")
	// ErrDecodeResponse wraps malformed backend payloads.
	ErrDecodeResponse = errors.New("gateway: decode response")
	// ErrEncodeRequest wraps request payloads that could not be encoded.
	ErrEncodeRequest = errors.New("gateway: encode request")
)

// APIError is a non-2xx backend response.
type APIError struct {
	StatusCode int
	Detail     string
}

func (apiError *APIError) Error() string {
	return fmt.Sprintf("gateway: status %d: %s", apiError.StatusCode, apiError.Message())
}

// Message returns the backend detail, or the status text when the backend sent none.
func (apiError *APIError) Message() string {
	if apiError.Detail != "" {
		return apiError.Detail
	}
	return http.StatusText(apiError.StatusCode)
}

// ErrorMessage extracts a user-facing message from err.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiError *APIError
	if errors.As(err, &apiError) {
		return apiError.Message()
	}
	if errors.Is(err, ErrTransport) {
		return "Could not reach the server"
	}
	return err.Error()
}

type errorPayload struct {
	Detail  json.RawMessage `json:"detail"`
	Message string          `json:"message"`
}

// Client sends JSON and multipart requests to the backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient builds a Client for baseURL. A nil httpClient gets a client with the default timeout.
func NewClient(baseURL string, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// BaseURL returns the backend origin.
func (client *Client) BaseURL() string {
	return client.baseURL
}

func (client *Client) endpoint(path string, query url.Values) string {
	target := client.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	return target
}

func (client *Client) newRequest(ctx context.Context, method string, path string, query url.Values, body io.Reader, contentType string, token string) (*http.Request, error) {
	request, requestErr := http.NewRequestWithContext(ctx, method, client.endpoint(path, query), body)
	if requestErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncodeRequest, requestErr)
	}
	if contentType != "" {
		request.Header.Set(headerContentType, contentType)
	}
	request.Header.Set(headerAccept, contentTypeJSON)
	if trimmedToken := strings.TrimSpace(token); trimmedToken != "" {
		request.Header.Set(headerAuthorization, bearerPrefix+trimmedToken)
	}
	return request, nil
}

func (client *Client) doJSON(ctx context.Context, method string, path string, query url.Values, payload any, token string, target any) error {
	var body io.Reader
	contentType := ""
	if payload != nil {
		encoded, encodeErr := json.Marshal(payload)
		if encodeErr != nil {
			return fmt.Errorf("%w: %v", ErrEncodeRequest, encodeErr)
		}
		body = bytes.NewReader(encoded)
		contentType = contentTypeJSON
	}
	request, requestErr := client.newRequest(ctx, method, path, query, body, contentType, token)
	if requestErr != nil {
		return requestErr
	}
	return client.execute(request, target)
}

func (client *Client) execute(request *http.Request, target any) error {
	response, sendErr := client.httpClient.Do(request)
	if sendErr != nil {
		client.logger.Warn(logEventGatewayRequestFailed,
			zap.String(logFieldMethod, request.Method),
			zap.String(logFieldPath, request.URL.Path),
			zap.Error(sendErr),
		)
		return fmt.Errorf("%w: %s %s: %v", ErrTransport, request.Method, request.URL.Path, sendErr)
	}
	defer response.Body.Close()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		apiError := &APIError{StatusCode: response.StatusCode, Detail: readErrorDetail(response.Body)}
		client.logger.Warn(logEventGatewayStatusFailed,
			zap.String(logFieldMethod, request.Method),
			zap.String(logFieldPath, request.URL.Path),
			zap.Int(logFieldStatus, response.StatusCode),
			zap.String(logFieldDetail, apiError.Detail),
		)
		return apiError
	}

	if target == nil {
		_, _ = io.Copy(io.Discard, response.Body)
		return nil
	}
	if decodeErr := json.NewDecoder(response.Body).Decode(target); decodeErr != nil {
		return fmt.Errorf("%w: %s: %v", ErrDecodeResponse, request.URL.Path, decodeErr)
	}
	return nil
}

func readErrorDetail(body io.Reader) string {
	raw, readErr := io.ReadAll(io.LimitReader(body, maxErrorBodyBytes))
	if readErr != nil || len(raw) == 0 {
		return ""
	}
	var payload errorPayload
	if json.Unmarshal(raw, &payload) != nil {
		return ""
	}
	if len(payload.Detail) > 0 {
		var detailText string
		if json.Unmarshal(payload.Detail, &detailText) == nil {
			return detailText
		}
		return string(payload.Detail)
	}
	return payload.Message
}

func (client *Client) postMultipartFile(ctx context.Context, path string, fileName string, contentType string, content io.Reader, token string, target any) error {
	var buffer bytes.Buffer
	writer := multipart.NewWriter(&buffer)
	partHeader := make(textproto.MIMEHeader)
	partHeader.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, multipartFieldFile, escapeQuotes(fileName)))
	if contentType != "" {
		partHeader.Set(headerContentType, contentType)
	}
	part, partErr := writer.CreatePart(partHeader)
	if partErr != nil {
		return fmt.Errorf("%w: %v", ErrEncodeRequest, partErr)
	}
	if _, copyErr := io.Copy(part, content); copyErr != nil {
		return fmt.Errorf("%w: %v", ErrEncodeRequest, copyErr)
	}
	if closeErr := writer.Close(); closeErr != nil {
		return fmt.Errorf("%w: %v", ErrEncodeRequest, closeErr)
	}
	request, requestErr := client.newRequest(ctx, http.MethodPost, path, nil, &buffer, writer.FormDataContentType(), token)
	if requestErr != nil {
		return requestErr
	}
	return client.execute(request, target)
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(value string) string {
	return quoteEscaper.Replace(value)
}
