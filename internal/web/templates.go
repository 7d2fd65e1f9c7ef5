package web

import (
	"embed"
	"html/template"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

var templateFuncs = template.FuncMap{
	// seq yields 0..n-1 for the canvas rows and columns.
	"seq": func(n int) []int {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	},
	"short": func(s string) string {
		if len(s) <= 12 {
			return s
		}
		return s[:6] + "…" + s[len(s)-4:]
	},
	"upper": strings.ToUpper,
}

// parseTemplates parses the embedded HTML templates.
func parseTemplates() (*template.Template, error) {
	return template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html")
}
