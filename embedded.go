package main

import (
	"embed"
	"html/template"
)

//go:embed templates/index.html
var embeddedFiles embed.FS

// indexTemplate renders the upload/gallery page.
var indexTemplate = template.Must(template.ParseFS(embeddedFiles, "templates/index.html"))
