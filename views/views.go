package views

import (
	"embed"
	"html/template"
	"time"

	"nikwetu/content"
	"nikwetu/database"
	"nikwetu/models"
)

//go:embed templates/*.html
var files embed.FS

// Load parses the page templates with the presentation helpers installed.
func Load(domain string) (*template.Template, error) {
	return template.New("").Funcs(Funcs(domain)).ParseFS(files, "templates/*.html")
}

// MustLoad is Load for startup and tests.
func MustLoad(domain string) *template.Template {
	tmpl, err := Load(domain)
	if err != nil {
		panic(err)
	}
	return tmpl
}

func Funcs(domain string) template.FuncMap {
	return template.FuncMap{
		"now":             time.Now,
		"domain":          func() string { return domain },
		"postURL":         content.PostURL,
		"imageSrc":        content.ImageSrc,
		"formatDate":      func(v any) string { return content.FormatDate(timeOf(v)) },
		"formatShortDate": func(v any) string { return content.FormatShortDate(timeOf(v)) },
		"byline":          content.Byline,
		"sections":        func() []models.Category { return database.DefaultCategories },
		"html":            func(s string) template.HTML { return template.HTML(s) },
	}
}

func timeOf(v any) *time.Time {
	switch t := v.(type) {
	case time.Time:
		return &t
	case *time.Time:
		return t
	}
	return nil
}
