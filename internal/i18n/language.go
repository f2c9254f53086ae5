package i18n

import "strings"

// Language identifies a UI language.
type Language string

const (
	English Language = "en"
	Hindi   Language = "hi"
)

// Parse normalizes raw into a supported language, falling back when it is not recognized.
func Parse(raw string, fallback Language) Language {
	switch Language(strings.ToLower(strings.TrimSpace(raw))) {
	case English:
		return English
	case Hindi:
		return Hindi
	default:
		return fallback
	}
}

// Toggle returns the other supported language.
func (language Language) Toggle() Language {
	if language == Hindi {
		return English
	}
	return Hindi
}

// Pick returns the Hindi text when the language is Hindi and it is non-empty.
func (language Language) Pick(englishText string, hindiText string) string {
	if language == Hindi && hindiText != "" {
		return hindiText
	}
	return englishText
}

// ToggleLabel is the caption of the language switch button.
func (language Language) ToggleLabel() string {
	if language == Hindi {
		return "English"
	}
	return "हिंदी"
}

// Text is a bilingual string.
type Text struct {
	English string `yaml:"en" json:"en"`
	Hindi   string `yaml:"hi" json:"hi"`
}

// In returns the text in language.
func (text Text) In(language Language) string {
	return language.Pick(text.English, text.Hindi)
}
