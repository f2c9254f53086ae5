// Package views renders the dynamic fragments of the RuralAssist pages. Every renderer owns its
// compiled template and holds no other state, so one instance serves all requests.
package views

import (
	"bytes"
	"embed"
	"html/template"
	"strconv"
	"strings"

	"github.com/MarkoPoloResearchLab/ruralassist/internal/faq"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/i18n"
)

const (
	RiskHigh   = "High"
	RiskMedium = "Medium"

	lineBreak        = "<br>"
	escapedLineBreak = "&lt;br&gt;"
	scoreMinimum     = 0
	scoreMaximum     = 100
)

//go:embed templates/*.tmpl
var templateFiles embed.FS

// Risk is the colour and emoji of a risk level.
type Risk struct {
	Color string
	Emoji string
}

// RiskFor maps the backend risk level onto its presentation. Unknown levels read as low risk.
func RiskFor(level string) Risk {
	switch level {
	case RiskHigh:
		return Risk{Color: "danger", Emoji: "🚨"}
	case RiskMedium:
		return Risk{Color: "warning", Emoji: "⚠️"}
	default:
		return Risk{Color: "success", Emoji: "✅"}
	}
}

// FormatScore renders a risk score with one decimal.
func FormatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', 1, 64)
}

// Multiline escapes text and turns its newlines into line breaks.
func Multiline(text string) template.HTML {
	escaped := template.HTMLEscapeString(text)
	escaped = strings.ReplaceAll(escaped, "\r\n", "\n")
	return template.HTML(strings.ReplaceAll(escaped, "\n", lineBreak))
}

// BotReply is Multiline plus the literal <br> markers the chatbot uses for line breaks.
func BotReply(text string) template.HTML {
	multiline := string(Multiline(text))
	return template.HTML(strings.ReplaceAll(multiline, escapedLineBreak, lineBreak))
}

func clampPercent(score float64) string {
	if score < scoreMinimum {
		score = scoreMinimum
	}
	if score > scoreMaximum {
		score = scoreMaximum
	}
	return FormatScore(score)
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"t": func(language i18n.Language, englishText string, hindiText string) string {
			return language.Pick(englishText, hindiText)
		},
		"multiline":     Multiline,
		"botReply":      BotReply,
		"risk":          RiskFor,
		"score":         FormatScore,
		"percent":       clampPercent,
		"categoryEmoji": faq.CategoryEmoji,
		"categoryLabel": faq.CategoryLabel,
	}
}

func parseTemplate(name string, file string) *template.Template {
	return template.Must(template.New(name).Funcs(templateFuncs()).ParseFS(templateFiles, "templates/"+file))
}

func execute(compiled *template.Template, name string, data any) (template.HTML, error) {
	var buffer bytes.Buffer
	if executeErr := compiled.ExecuteTemplate(&buffer, name, data); executeErr != nil {
		return "", executeErr
	}
	return template.HTML(buffer.String()), nil
}
