package activity

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/MarkoPoloResearchLab/ruralassist/internal/background"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/gateway"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingLogger struct {
	mutex      sync.Mutex
	tokens     []string
	activities []gateway.Activity
	err        error
}

func (logger *recordingLogger) LogActivity(_ context.Context, token string, activity gateway.Activity) error {
	logger.mutex.Lock()
	defer logger.mutex.Unlock()
	logger.tokens = append(logger.tokens, token)
	logger.activities = append(logger.activities, activity)
	return logger.err
}

func TestRecordForwardsInBackground(testingT *testing.T) {
	logger := &recordingLogger{}
	dispatcher := background.NewDispatcher(time.Second, nil)
	recorder := NewRecorder(logger, dispatcher)

	recorder.Record("token-1", TypeLogin, LoginDescription())
	dispatcher.Close()

	require.Equal(testingT, []string{"token-1"}, logger.tokens)
	require.Equal(testingT, []gateway.Activity{{Type: TypeLogin, Description: "Logged in via OTP"}}, logger.activities)
}

func TestRecordSkipsAnonymousVisitors(testingT *testing.T) {
	logger := &recordingLogger{}
	dispatcher := background.NewDispatcher(time.Second, nil)
	NewRecorder(logger, dispatcher).Record("", TypeOCR, ScannedDocumentDescription("card.png"))
	dispatcher.Close()

	require.Empty(testingT, logger.activities)
}

func TestRecordSwallowsBackendFailures(testingT *testing.T) {
	logger := &recordingLogger{err: errors.New("unavailable")}
	dispatcher := background.NewDispatcher(time.Second, nil)
	NewRecorder(logger, dispatcher).Record("token", TypeChatbot, ChatQuestionDescription("hi"))
	dispatcher.Close()

	require.Len(testingT, logger.activities, 1)
}

func TestChatQuestionDescriptionTruncatesAtFiftyCharacters(testingT *testing.T) {
	require.Equal(testingT, `Asked: "short question"`, ChatQuestionDescription("short question"))

	long := strings.Repeat("क", 60)
	require.Equal(testingT, `Asked: "`+strings.Repeat("क", 50)+`..."`, ChatQuestionDescription(long))
}

func TestDescriptions(testingT *testing.T) {
	require.Equal(testingT, "Scanned document: aadhaar.pdf", ScannedDocumentDescription("aadhaar.pdf"))
	require.Equal(testingT, "Viewed scheme: PM-KISAN", SchemeViewDescription("PM-KISAN"))
	require.Equal(testingT, "Reported scam: RPT-9", ScamReportDescription("RPT-9"))
}
