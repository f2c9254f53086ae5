// Package otp drives the email one-time-password login form.
package otp

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/ruralassist/internal/activity"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/gateway"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/prefs"
)

const (
	StatusInfo    = "info"
	StatusSuccess = "success"
	StatusWarning = "warning"
	StatusError   = "error"

	codeLength              = 6
	defaultResendCooldown   = 30 * time.Second
	sentAtBase              = 10
	sentAtBits              = 64
	messageMissingEmail     = "⚠️ Please enter your email first."
	messageInvalidEmail     = "❌ Please enter a valid email address."
	messageMissingFields    = "⚠️ Please enter both email and OTP."
	messageInvalidCode      = "❌ OTP must be 6 digits."
	messageSent             = "✅ OTP sent! Check your email inbox (and spam folder)."
	messageSendFailed       = "❌ Failed to send OTP."
	messageSendError        = "❌ Error sending OTP. The server may be unavailable, please try again shortly."
	messageVerified         = "✅ Login successful! Redirecting..."
	messageVerifyFailed     = "❌ OTP verification failed."
	messageVerifyError      = "❌ Error verifying OTP. Please try again."
	messageResent           = "✅ New OTP sent to your email!"
	messageResendFailed     = "❌ Failed to resend OTP."
	messageResendError      = "❌ Error resending OTP."
	messageResendWaitFormat = "⏰ Please wait %d seconds before resending."

	logEventOTPRequestFailed = "otp_request_failed"
	logFieldOperation        = "operation"
	operationSend            = "send"
	operationVerify          = "verify"
	operationResend          = "resend"
)

var (
	ErrMissingEmail = errors.New("missing_email")
	ErrInvalidEmail = errors.New("invalid_email")
	ErrMissingCode  = errors.New("missing_otp")
	ErrInvalidCode  = errors.New("invalid_otp")

	emailPattern = regexp.MustCompile(`^[\w.-]+@[\w.-]+\.[\w-]+$`)
	codePattern  = regexp.MustCompile(`^\d{6}$`)
)

// Gateway is the subset of the backend client the login form needs.
type Gateway interface {
	SendEmailOTP(ctx context.Context, email string) (gateway.OTPResult, error)
	VerifyEmailOTP(ctx context.Context, email string, otp string) (gateway.OTPResult, error)
	ResendOTP(ctx context.Context, email string) (gateway.OTPResult, error)
}

// ActivityRecorder receives the login event after a successful verification.
type ActivityRecorder interface {
	Record(token string, activityType string, description string)
}

// Status is the outcome shown under the login form.
type Status struct {
	Kind     string
	Message  string
	Email    string
	CodeSent bool
	// Redirect is set once the citizen is logged in.
	Redirect string
}

// Flow validates form input and calls the backend OTP endpoints.
type Flow struct {
	gateway        Gateway
	recorder       ActivityRecorder
	resendCooldown time.Duration
	now            func() time.Time
	logger         *zap.Logger
}

type Option func(*Flow)

func WithClock(now func() time.Time) Option {
	return func(flow *Flow) {
		flow.now = now
	}
}

func WithResendCooldown(cooldown time.Duration) Option {
	return func(flow *Flow) {
		if cooldown > 0 {
			flow.resendCooldown = cooldown
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(flow *Flow) {
		if logger != nil {
			flow.logger = logger
		}
	}
}

func NewFlow(otpGateway Gateway, recorder ActivityRecorder, options ...Option) *Flow {
	flow := &Flow{
		gateway:        otpGateway,
		recorder:       recorder,
		resendCooldown: defaultResendCooldown,
		now:            time.Now,
		logger:         zap.NewNop(),
	}
	for _, option := range options {
		option(flow)
	}
	return flow
}

// ValidateEmail checks the address before it is sent anywhere.
func ValidateEmail(email string) error {
	trimmed := strings.TrimSpace(email)
	if trimmed == "" {
		return ErrMissingEmail
	}
	if !emailPattern.MatchString(trimmed) {
		return ErrInvalidEmail
	}
	return nil
}

// ValidateCode checks that code is exactly six digits.
func ValidateCode(code string) error {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return ErrMissingCode
	}
	if len(trimmed) != codeLength || !codePattern.MatchString(trimmed) {
		return ErrInvalidCode
	}
	return nil
}

// ResendWait returns the whole seconds left before another code may be requested, rounded up.
// Zero means a resend is allowed.
func ResendWait(sentAt time.Time, now time.Time, cooldown time.Duration) int {
	if sentAt.IsZero() {
		return 0
	}
	elapsed := now.Sub(sentAt)
	if elapsed >= cooldown {
		return 0
	}
	return int(math.Ceil((cooldown - elapsed).Seconds()))
}

// ResendWaitMessage is the warning shown when a resend is attempted too early.
func ResendWaitMessage(seconds int) string {
	return fmt.Sprintf(messageResendWaitFormat, seconds)
}

// PendingEmail returns the address the last code was sent to, if any.
func PendingEmail(store prefs.Store) string {
	email, _ := store.Get(prefs.KeyPendingOTP)
	return email
}

// Send requests a code for email.
func (flow *Flow) Send(ctx context.Context, store prefs.Store, email string) Status {
	email = strings.TrimSpace(email)
	if validationErr := ValidateEmail(email); validationErr != nil {
		return validationStatus(validationErr, email, false)
	}
	result, sendErr := flow.gateway.SendEmailOTP(ctx, email)
	if sendErr != nil {
		return flow.failureStatus(operationSend, sendErr, email, false, messageSendError, messageSendFailed)
	}
	if !result.Success {
		return Status{Kind: StatusError, Message: firstNonEmpty(result.Message, messageSendFailed), Email: email}
	}
	flow.rememberSend(store, email)
	return Status{Kind: StatusSuccess, Message: messageSent, Email: email, CodeSent: true}
}

// Resend requests a fresh code once the cooldown since the previous send elapsed.
func (flow *Flow) Resend(ctx context.Context, store prefs.Store, email string) Status {
	email = strings.TrimSpace(email)
	if validationErr := ValidateEmail(email); validationErr != nil {
		return validationStatus(validationErr, email, email != "")
	}
	if remaining := ResendWait(flow.lastSentAt(store), flow.now(), flow.resendCooldown); remaining > 0 {
		return Status{Kind: StatusWarning, Message: ResendWaitMessage(remaining), Email: email, CodeSent: true}
	}
	result, resendErr := flow.gateway.ResendOTP(ctx, email)
	if resendErr != nil {
		return flow.failureStatus(operationResend, resendErr, email, true, messageResendError, messageResendFailed)
	}
	if !result.Success {
		return Status{Kind: StatusError, Message: firstNonEmpty(result.Message, messageResendFailed), Email: email, CodeSent: true}
	}
	flow.rememberSend(store, email)
	return Status{Kind: StatusSuccess, Message: messageResent, Email: email, CodeSent: true}
}

// Verify exchanges the code for a session token. On success the credentials are stored, the
// login is recorded and Status.Redirect carries the page the citizen was sent away from.
func (flow *Flow) Verify(ctx context.Context, store prefs.Store, email string, code string, displayName string) Status {
	email = strings.TrimSpace(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return Status{Kind: StatusWarning, Message: messageMissingFields, Email: email, CodeSent: email != ""}
	}
	if codeErr := ValidateCode(code); codeErr != nil {
		return Status{Kind: StatusError, Message: messageInvalidCode, Email: email, CodeSent: true}
	}
	result, verifyErr := flow.gateway.VerifyEmailOTP(ctx, email, code)
	if verifyErr != nil {
		return flow.failureStatus(operationVerify, verifyErr, email, true, messageVerifyError, messageVerifyFailed)
	}
	if !result.Success || result.Token == "" {
		return Status{Kind: StatusError, Message: firstNonEmpty(result.Message, messageVerifyFailed), Email: email, CodeSent: true}
	}

	store.Set(prefs.KeyToken, result.Token)
	store.Set(prefs.KeyLoggedIn, prefs.LoggedInValue)
	store.Set(prefs.KeyUserEmail, email)
	if _, named := store.Get(prefs.KeyUserName); !named {
		if trimmedName := strings.TrimSpace(displayName); trimmedName != "" {
			store.Set(prefs.KeyUserName, trimmedName)
		}
	}
	store.Remove(prefs.KeyPendingOTP)
	store.Remove(prefs.KeyOTPSentAt)
	if flow.recorder != nil {
		flow.recorder.Record(result.Token, activity.TypeLogin, activity.LoginDescription())
	}
	return Status{Kind: StatusSuccess, Message: messageVerified, Email: email, Redirect: prefs.ConsumeRedirectTarget(store)}
}

func (flow *Flow) rememberSend(store prefs.Store, email string) {
	store.Set(prefs.KeyPendingOTP, email)
	store.Set(prefs.KeyOTPSentAt, strconv.FormatInt(flow.now().UnixMilli(), sentAtBase))
}

func (flow *Flow) lastSentAt(store prefs.Store) time.Time {
	raw, found := store.Get(prefs.KeyOTPSentAt)
	if !found {
		return time.Time{}
	}
	millis, parseErr := strconv.ParseInt(raw, sentAtBase, sentAtBits)
	if parseErr != nil {
		return time.Time{}
	}
	return time.UnixMilli(millis)
}

// failureStatus maps a backend error to the form status. A backend that answered with a reason
// shows that reason; an unreachable backend shows the transport message.
func (flow *Flow) failureStatus(operation string, requestErr error, email string, codeSent bool, transportMessage string, rejectedMessage string) Status {
	flow.logger.Warn(logEventOTPRequestFailed, zap.String(logFieldOperation, operation), zap.Error(requestErr))
	var apiError *gateway.APIError
	if errors.As(requestErr, &apiError) {
		return Status{Kind: StatusError, Message: firstNonEmpty(apiError.Detail, rejectedMessage), Email: email, CodeSent: codeSent}
	}
	return Status{Kind: StatusError, Message: transportMessage, Email: email, CodeSent: codeSent}
}

func validationStatus(validationErr error, email string, codeSent bool) Status {
	if errors.Is(validationErr, ErrMissingEmail) {
		return Status{Kind: StatusWarning, Message: messageMissingEmail, Email: email, CodeSent: codeSent}
	}
	return Status{Kind: StatusError, Message: messageInvalidEmail, Email: email, CodeSent: codeSent}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
