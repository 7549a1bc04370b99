package web

import (
	"embed"
	"html/template"
)

// templateFiles bundles the upload, player, and stats pages.
//
//go:embed templates/*.html
var templateFiles embed.FS

// Templates parses the bundled page templates.
func Templates() (*template.Template, error) {
	return template.ParseFS(templateFiles, "templates/*.html")
}
