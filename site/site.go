package site

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/adrg/frontmatter"
	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/rs/zerolog/log"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	htmlrenderer "github.com/yuin/goldmark/renderer/html"

	"nikwetu/cache"
	"nikwetu/common"
	"nikwetu/content"
	"nikwetu/database"
	"nikwetu/email"
)

//go:embed pages/*.md
var pageFiles embed.FS

// markdown renderer configured with Goldmark and useful extensions
var md = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		extension.Linkify,
	),
	goldmark.WithRendererOptions(
		htmlrenderer.WithUnsafe(),
	),
)

// Page is a static page rendered from embedded Markdown.
type Page struct {
	Title       string `yaml:"title"`
	Heading     string `yaml:"heading"`
	Description string `yaml:"description"`
	Updated     string `yaml:"updated"`
	Body        template.HTML
}

type SiteModule struct {
	reader  *content.Reader
	mailer  *email.EmailService
	pages   *cache.Store
	limiter *common.IPRateLimiter
	domain  string
	static  map[string]Page
}

func NewSiteModule(reader *content.Reader, mailer *email.EmailService, pages *cache.Store, domain string) *SiteModule {
	static := make(map[string]Page)
	for _, name := range []string{"about", "privacy"} {
		page, err := LoadPage(name)
		if err != nil {
			panic(err)
		}
		static[name] = page
	}

	return &SiteModule{
		reader:  reader,
		mailer:  mailer,
		pages:   pages,
		limiter: common.NewIPRateLimiter(5, time.Minute),
		domain:  strings.TrimSuffix(domain, "/"),
		static:  static,
	}
}

func (s *SiteModule) RegisterRoutes(router *gin.Engine) {
	router.GET("/about", s.pages.Middleware(), s.staticPage("about"))
	router.GET("/privacy", s.pages.Middleware(), s.staticPage("privacy"))
	router.GET("/contact", s.contact)
	router.POST("/contact", s.limiter.Middleware(s.contactLimited), s.submitContact)
	router.GET("/sitemap.xml", s.sitemap)
}

// LoadPage parses pages/<name>.md and renders its body.
func LoadPage(name string) (Page, error) {
	source, err := pageFiles.ReadFile("pages/" + name + ".md")
	if err != nil {
		return Page{}, fmt.Errorf("read page %s: %w", name, err)
	}

	var page Page
	body, err := frontmatter.Parse(bytes.NewReader(source), &page)
	if err != nil {
		return Page{}, fmt.Errorf("parse frontmatter %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := md.Convert(body, &buf); err != nil {
		return Page{}, fmt.Errorf("render page %s: %w", name, err)
	}
	page.Body = template.HTML(buf.String())
	return page, nil
}

func (s *SiteModule) staticPage(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		page := s.static[name]
		c.HTML(http.StatusOK, "page.html", gin.H{
			"title":       page.Title,
			"description": page.Description,
			"heading":     page.Heading,
			"updated":     page.Updated,
			"body":        page.Body,
		})
	}
}

type contactForm struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

func (f contactForm) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Name, validation.Required, validation.RuneLength(1, 100)),
		validation.Field(&f.Email, validation.Required, validation.RuneLength(1, 255), validation.By(emailAddress)),
		validation.Field(&f.Message, validation.Required, validation.RuneLength(1, 1000)),
	)
}

func emailAddress(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return errors.New("must be a valid email address")
	}
	return nil
}

func (s *SiteModule) contact(c *gin.Context) {
	c.HTML(http.StatusOK, "contact.html", gin.H{
		"title":       "Contact Us",
		"description": "Get in touch with News Nikwetu. Send us your feedback, story tips, or inquiries.",
		"form":        contactForm{},
	})
}

func (s *SiteModule) submitContact(c *gin.Context) {
	form := contactForm{
		Name:    strings.TrimSpace(c.PostForm("name")),
		Email:   strings.TrimSpace(c.PostForm("email")),
		Message: strings.TrimSpace(c.PostForm("message")),
	}

	if err := form.Validate(); err != nil {
		c.HTML(http.StatusBadRequest, "contact.html", gin.H{
			"title":  "Contact Us",
			"form":   form,
			"errors": fieldErrors(err),
		})
		return
	}

	if s.mailer.Configured() {
		if err := s.mailer.SendContactMessage(form.Name, form.Email, form.Message); err != nil {
			log.Error().Err(err).Msg("Failed to deliver contact message")
		}
	} else {
		log.Info().Str("email", form.Email).Msg("Contact message received; SMTP not configured")
	}

	c.HTML(http.StatusOK, "contact.html", gin.H{
		"title": "Contact Us",
		"sent":  true,
		"form":  contactForm{},
	})
}

func (s *SiteModule) contactLimited(c *gin.Context) {
	c.HTML(http.StatusTooManyRequests, "contact.html", gin.H{
		"title":  "Contact Us",
		"form":   contactForm{},
		"errors": map[string]string{"form": "too many messages, please try again in a minute"},
	})
}

func fieldErrors(err error) map[string]string {
	out := make(map[string]string)
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for field, ferr := range verrs {
			out[field] = ferr.Error()
		}
		return out
	}
	out["form"] = err.Error()
	return out
}

func (s *SiteModule) sitemap(c *gin.Context) {
	ctx := c.Request.Context()
	domain := s.domain

	var sitemap strings.Builder
	sitemap.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	sitemap.WriteString("\n")
	sitemap.WriteString(`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`)
	sitemap.WriteString("\n")

	writeURL := func(loc, lastmod, changefreq, priority string) {
		sitemap.WriteString("  <url>\n")
		sitemap.WriteString("    <loc>" + template.HTMLEscapeString(domain+loc) + "</loc>\n")
		if lastmod != "" {
			sitemap.WriteString("    <lastmod>" + lastmod + "</lastmod>\n")
		}
		sitemap.WriteString("    <changefreq>" + changefreq + "</changefreq>\n")
		sitemap.WriteString("    <priority>" + priority + "</priority>\n")
		sitemap.WriteString("  </url>\n")
	}

	writeURL("/", "", "hourly", "1.0")
	writeURL("/about", "", "monthly", "0.3")
	writeURL("/contact", "", "monthly", "0.3")
	writeURL("/privacy", "", "yearly", "0.2")

	categories := s.reader.Categories(ctx)
	if len(categories) == 0 {
		categories = database.DefaultCategories
	}
	for _, category := range categories {
		writeURL("/category/"+category.Slug, "", "daily", "0.7")
	}

	for _, post := range s.reader.AllPublished(ctx) {
		writeURL(content.PostURL(post), post.UpdatedAt.Format(time.RFC3339), "weekly", "0.6")
	}

	sitemap.WriteString("</urlset>\n")

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.String(http.StatusOK, sitemap.String())
}
