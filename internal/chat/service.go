// Package chat keeps the support chatbot conversation of each browser profile.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/MarkoPoloResearchLab/ruralassist/internal/activity"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/i18n"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/prefs"
)

const (
	SenderUser = "user"
	SenderBot  = "bot"

	KindReply = "reply"
	KindError = "error"

	defaultCooldown        = time.Second
	defaultTranscriptLimit = 50
	limiterSweepThreshold  = 4096

	fallbackReply = "Sorry, I couldn't process that. Please try again."
	errorBubble   = "❌ Error connecting to chatbot. Please check the backend server status and logs for more information."

	logEventChatFailed = "chat_message_failed"
)

var (
	ErrEmptyMessage = errors.New("empty_chat_message")
	ErrCooldown     = errors.New("chat_cooldown_active")
	ErrOffline      = errors.New("chat_backend_offline")
)

// Message is one bubble of the conversation.
type Message struct {
	Sender string    `json:"sender"`
	Kind   string    `json:"kind,omitempty"`
	Text   string    `json:"text"`
	SentAt time.Time `json:"sent_at"`
}

// QuickReply is a canned question offered under the greeting.
type QuickReply struct {
	Label string
	Query string
}

// Sender posts a question to the chatbot backend.
type Sender interface {
	SendChatMessage(ctx context.Context, token string, query string) (string, error)
}

// Availability reports whether the backend answered its last health probe.
type Availability interface {
	Online() bool
}

type ActivityRecorder interface {
	Record(token string, activityType string, description string)
}

type Options struct {
	Sender          Sender
	Recorder        ActivityRecorder
	Availability    Availability
	Cooldown        time.Duration
	TranscriptLimit int
	Clock           func() time.Time
	Logger          *zap.Logger
}

// Service sends questions and persists the transcript in the preference store.
type Service struct {
	sender          Sender
	recorder        ActivityRecorder
	availability    Availability
	cooldown        time.Duration
	transcriptLimit int
	clock           func() time.Time
	logger          *zap.Logger

	limiterMutex sync.Mutex
	limiters     map[string]*rate.Limiter
}

func NewService(options Options) *Service {
	service := &Service{
		sender:          options.Sender,
		recorder:        options.Recorder,
		availability:    options.Availability,
		cooldown:        options.Cooldown,
		transcriptLimit: options.TranscriptLimit,
		clock:           options.Clock,
		logger:          options.Logger,
		limiters:        make(map[string]*rate.Limiter),
	}
	if service.cooldown <= 0 {
		service.cooldown = defaultCooldown
	}
	if service.transcriptLimit <= 0 {
		service.transcriptLimit = defaultTranscriptLimit
	}
	if service.clock == nil {
		service.clock = time.Now
	}
	if service.logger == nil {
		service.logger = zap.NewNop()
	}
	return service
}

// Online reports whether sending is enabled. Without a health monitor the backend is assumed up.
func (service *Service) Online() bool {
	if service.availability == nil {
		return true
	}
	return service.availability.Online()
}

// Transcript returns the stored conversation, oldest first.
func (service *Service) Transcript(store prefs.Store) []Message {
	raw, found := store.Get(prefs.KeyChatTranscript)
	if !found {
		return nil
	}
	var messages []Message
	if decodeErr := json.Unmarshal([]byte(raw), &messages); decodeErr != nil {
		return nil
	}
	return messages
}

// Clear forgets the conversation.
func (service *Service) Clear(store prefs.Store) {
	store.Remove(prefs.KeyChatTranscript)
}

// Send asks the chatbot and appends both bubbles to the transcript. A backend failure is not an
// error: it appends the error bubble instead. Empty input, an active cooldown or an offline backend
// leave the transcript untouched and return the matching sentinel.
func (service *Service) Send(ctx context.Context, store prefs.Store, profileID string, token string, text string) ([]Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return service.Transcript(store), ErrEmptyMessage
	}
	if !service.Online() {
		return service.Transcript(store), ErrOffline
	}
	if !service.limiter(profileID).AllowN(service.clock(), 1) {
		return service.Transcript(store), ErrCooldown
	}

	transcript := append(service.Transcript(store), Message{Sender: SenderUser, Text: text, SentAt: service.clock()})
	reply, sendErr := service.sender.SendChatMessage(ctx, token, text)
	if sendErr != nil {
		service.logger.Warn(logEventChatFailed, zap.Error(sendErr))
		transcript = append(transcript, Message{Sender: SenderBot, Kind: KindError, Text: errorBubble, SentAt: service.clock()})
	} else {
		if strings.TrimSpace(reply) == "" {
			reply = fallbackReply
		}
		transcript = append(transcript, Message{Sender: SenderBot, Kind: KindReply, Text: reply, SentAt: service.clock()})
		if service.recorder != nil {
			service.recorder.Record(token, activity.TypeChatbot, activity.ChatQuestionDescription(text))
		}
	}
	transcript = service.trim(transcript)
	service.save(store, transcript)
	return transcript, nil
}

func (service *Service) trim(transcript []Message) []Message {
	if len(transcript) <= service.transcriptLimit {
		return transcript
	}
	return transcript[len(transcript)-service.transcriptLimit:]
}

func (service *Service) save(store prefs.Store, transcript []Message) {
	encoded, encodeErr := json.Marshal(transcript)
	if encodeErr != nil {
		return
	}
	store.Set(prefs.KeyChatTranscript, string(encoded))
}

// limiter returns the cooldown limiter of profileID. Idle limiters are dropped once the map grows.
func (service *Service) limiter(profileID string) *rate.Limiter {
	service.limiterMutex.Lock()
	defer service.limiterMutex.Unlock()
	if limiter, found := service.limiters[profileID]; found {
		return limiter
	}
	if len(service.limiters) >= limiterSweepThreshold {
		now := service.clock()
		for key, limiter := range service.limiters {
			if limiter.TokensAt(now) >= 1 {
				delete(service.limiters, key)
			}
		}
	}
	limiter := rate.NewLimiter(rate.Every(service.cooldown), 1)
	service.limiters[profileID] = limiter
	return limiter
}

// Greeting is the first bot bubble of an empty conversation.
func Greeting(language i18n.Language) string {
	return language.Pick(
		"Hello! 👋 I'm your RuralAsist assistant.\n\nI can help you with:\n🏛️ Government Schemes\n📄 Document Scanning (OCR)\n🛡️ Scam Prevention\n\nAsk me in English or Hindi!",
		"नमस्ते! 👋 मैं आपका RuralAsist सहायक हूँ।\n\nमैं आपकी इनमें मदद कर सकता हूँ:\n🏛️ सरकारी योजनाएं\n📄 दस्तावेज़ स्कैनिंग (OCR)\n🛡️ धोखाधड़ी से बचाव\n\nहिंदी या अंग्रेजी में पूछें!",
	)
}

func QuickReplies(language i18n.Language) []QuickReply {
	if language == i18n.Hindi {
		return []QuickReply{
			{Label: "🏛️ योजनाएं", Query: "सरकारी योजनाएं"},
			{Label: "📄 OCR कैसे करें", Query: "OCR कैसे करें"},
			{Label: "🛡️ स्कैम से बचाव", Query: "धोखाधड़ी से बचाव"},
			{Label: "❓ मदद", Query: "मदद"},
		}
	}
	return []QuickReply{
		{Label: "🏛️ Schemes", Query: "government schemes"},
		{Label: "📄 How to use OCR", Query: "how to scan documents"},
		{Label: "🛡️ Scam Protection", Query: "scam protection tips"},
		{Label: "❓ Help", Query: "help"},
	}
}
