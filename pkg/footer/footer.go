package footer

import (
	"bytes"
	"html/template"
)

// Link describes one footer navigation entry.
type Link struct {
	Label    string
	URL      string
	External bool
}

// Config captures the markup and style hooks required to render the footer.
type Config struct {
	ElementID      string
	InnerElementID string
	BaseClass      string
	InnerClass     string
	BrandClass     string
	BrandText      string
	TaglineClass   string
	TaglineText    string
	MenuClass      string
	MenuItemClass  string
	Links          []Link
	NoticeClass    string
	NoticeText     string
}

var (
	footerTemplate = template.Must(template.New("footer").Option("missingkey=error").Parse(`<footer id="{{.ElementID}}" class="{{.BaseClass}}">
  <div id="{{.InnerElementID}}" class="{{.InnerClass}}">
    <div class="{{.BrandClass}}">{{.BrandText}}</div>
    {{if .TaglineText}}<p class="{{.TaglineClass}}">{{.TaglineText}}</p>{{end}}
    {{if .Links}}
    <ul class="{{.MenuClass}}">
      {{range .Links}}
      <li><a class="{{$.MenuItemClass}}" href="{{.URL}}"{{if .External}} target="_blank" rel="noopener noreferrer"{{end}}>{{.Label}}</a></li>
      {{end}}
    </ul>
    {{end}}
    {{if .NoticeText}}<small class="{{.NoticeClass}}">{{.NoticeText}}</small>{{end}}
  </div>
</footer>`))
)

// Render returns the footer HTML for the provided configuration.
func Render(config Config) (template.HTML, error) {
	var buffer bytes.Buffer
	if err := footerTemplate.Execute(&buffer, config); err != nil {
		return "", err
	}
	return template.HTML(buffer.String()), nil
}
