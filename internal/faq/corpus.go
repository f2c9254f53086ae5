package faq

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MarkoPoloResearchLab/ruralassist/internal/gateway"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/i18n"
)

const (
	CategoryAll     = "all"
	CategorySchemes = "schemes"
	CategoryOCR     = "ocr"
	CategoryScam    = "scam"
	CategoryGeneral = "general"

	defaultCategoryEmoji = "❓"
)

var (
	ErrInvalidCorpus = errors.New("invalid_faq_corpus")

	//go:embed corpus.yaml
	embeddedCorpus []byte

	categoryEmojis = map[string]string{
		CategorySchemes: "📋",
		CategoryOCR:     "📄",
		CategoryScam:    "🛡️",
		CategoryGeneral: "❓",
	}

	categoryLabels = map[string]i18n.Text{
		CategorySchemes: {English: "Schemes", Hindi: "योजनाएं"},
		CategoryOCR:     {English: "OCR", Hindi: "OCR"},
		CategoryScam:    {English: "Scam Protection", Hindi: "धोखाधड़ी सुरक्षा"},
		CategoryGeneral: {English: "General", Hindi: "सामान्य"},
	}

	// FilterCategories lists the category filter buttons in display order.
	FilterCategories = []string{CategoryAll, CategoryGeneral, CategorySchemes, CategoryOCR, CategoryScam}

	searchSuggestions = []string{
		"login", "schemes", "OCR", "scam", "eligibility", "documents",
		"agriculture", "education", "health", "pension", "housing",
		"OTP", "fraud protection", "text extraction", "profile",
	}
)

// Entry is one bilingual corpus record.
type Entry struct {
	ID             string    `yaml:"id"`
	Category       string    `yaml:"category"`
	Icon           string    `yaml:"icon"`
	Question       i18n.Text `yaml:"question"`
	Answer         i18n.Text `yaml:"answer"`
	Keywords       []string  `yaml:"keywords"`
	HelpfulCount   int       `yaml:"helpful_count"`
	UnhelpfulCount int       `yaml:"unhelpful_count"`
}

// Item is an entry resolved into one language, as rendered and searched.
type Item struct {
	ID             string   `json:"id"`
	Category       string   `json:"category"`
	Icon           string   `json:"icon"`
	Question       string   `json:"question"`
	Answer         string   `json:"answer"`
	Keywords       []string `json:"keywords"`
	HelpfulCount   int      `json:"helpful_count"`
	UnhelpfulCount int      `json:"unhelpful_count"`
}

func (entry Entry) localize(language i18n.Language) Item {
	return Item{
		ID:             entry.ID,
		Category:       entry.Category,
		Icon:           entry.Icon,
		Question:       entry.Question.In(language),
		Answer:         entry.Answer.In(language),
		Keywords:       append([]string(nil), entry.Keywords...),
		HelpfulCount:   entry.HelpfulCount,
		UnhelpfulCount: entry.UnhelpfulCount,
	}
}

// LoadCorpus parses a YAML corpus. Every entry needs an id and an English question; ids are unique.
func LoadCorpus(data []byte) ([]Entry, error) {
	var entries []Entry
	if decodeErr := yaml.Unmarshal(data, &entries); decodeErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCorpus, decodeErr)
	}
	seen := make(map[string]bool, len(entries))
	for index, entry := range entries {
		if strings.TrimSpace(entry.ID) == "" || strings.TrimSpace(entry.Question.English) == "" {
			return nil, fmt.Errorf("%w: entry %d is incomplete", ErrInvalidCorpus, index)
		}
		if seen[entry.ID] {
			return nil, fmt.Errorf("%w: duplicate id %s", ErrInvalidCorpus, entry.ID)
		}
		seen[entry.ID] = true
	}
	return entries, nil
}

// DefaultCorpus returns the built-in corpus.
func DefaultCorpus() []Entry {
	entries, loadErr := LoadCorpus(embeddedCorpus)
	if loadErr != nil {
		panic(loadErr)
	}
	return entries
}

// CategoryEmoji returns the badge emoji of category.
func CategoryEmoji(category string) string {
	if emoji, found := categoryEmojis[category]; found {
		return emoji
	}
	return defaultCategoryEmoji
}

// CategoryLabel returns the display name of category in language. Unknown categories are shown as is.
func CategoryLabel(category string, language i18n.Language) string {
	if category == CategoryAll {
		return language.Pick("All", "सभी")
	}
	if label, found := categoryLabels[category]; found {
		return label.In(language)
	}
	return category
}

// Suggestions returns the fixed search suggestions offered under an empty search box.
func Suggestions() []string {
	return append([]string(nil), searchSuggestions...)
}

func itemFromRecord(record gateway.FAQRecord, language i18n.Language) Item {
	question := record.Question
	answer := record.Answer
	if record.QuestionEN != "" || record.QuestionHI != "" {
		question = language.Pick(record.QuestionEN, record.QuestionHI)
		if question == "" {
			question = record.QuestionHI
		}
	}
	if record.AnswerEN != "" || record.AnswerHI != "" {
		answer = language.Pick(record.AnswerEN, record.AnswerHI)
		if answer == "" {
			answer = record.AnswerHI
		}
	}
	return Item{
		ID:             record.ID,
		Category:       record.Category,
		Icon:           record.Icon,
		Question:       question,
		Answer:         answer,
		Keywords:       record.Keywords,
		HelpfulCount:   record.HelpfulCount,
		UnhelpfulCount: record.UnhelpfulCount,
	}
}
