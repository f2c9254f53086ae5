package httpapi

import "embed"

//go:embed templates/*.tmpl
var pageTemplateFiles embed.FS

//go:embed content/about.en.md
var aboutMarkdownEnglish []byte

//go:embed content/about.hi.md
var aboutMarkdownHindi []byte
