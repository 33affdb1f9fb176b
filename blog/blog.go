package blog

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"nikwetu/auth"
	"nikwetu/cache"
	"nikwetu/content"
)

// BlogModule serves the public reader pages.
type BlogModule struct {
	reader *content.Reader
	pages  *cache.Store
	domain string
}

func NewBlogModule(reader *content.Reader, pages *cache.Store, domain string) *BlogModule {
	return &BlogModule{reader: reader, pages: pages, domain: domain}
}

func (b *BlogModule) RegisterRoutes(router *gin.Engine) {
	router.GET("/", b.pages.Middleware(), b.index)
	router.GET("/category/:slug", b.pages.Middleware(), b.category)
	router.GET("/search", b.search)
	router.GET("/post/:slug", b.post)

	// /:categorySlug/:slug would collide with the static routes above,
	// so two-segment paths are resolved here.
	router.NoRoute(b.fallback)
}

func (b *BlogModule) index(c *gin.Context) {
	ctx := c.Request.Context()
	c.HTML(http.StatusOK, "home.html", gin.H{
		"description": "Breaking news, politics, business, sports and entertainment coverage across the region.",
		"feed":        b.reader.HomeFeed(ctx),
		"trending":    b.reader.Trending(ctx),
	})
}

func (b *BlogModule) category(c *gin.Context) {
	ctx := c.Request.Context()
	listing := b.reader.Category(ctx, c.Param("slug"))
	if listing.Category == nil {
		b.notFound(c, "Category not found")
		return
	}

	c.HTML(http.StatusOK, "category.html", gin.H{
		"title":    listing.Category.Name,
		"category": listing.Category,
		"posts":    listing.Posts,
		"trending": b.reader.Trending(ctx),
	})
}

func (b *BlogModule) search(c *gin.Context) {
	results := b.reader.Search(c.Request.Context(), c.Query("q"))
	c.HTML(http.StatusOK, "search.html", gin.H{
		"title":   "Search",
		"query":   results.Query,
		"results": results,
	})
}

func (b *BlogModule) post(c *gin.Context) {
	b.renderPost(c, c.Param("slug"))
}

func (b *BlogModule) renderPost(c *gin.Context, slug string) {
	ctx := c.Request.Context()
	preview := auth.Use(c).User() != nil

	post := b.reader.Post(ctx, slug, preview)
	if post == nil {
		b.notFound(c, "Article not found")
		return
	}

	if !post.Published() {
		c.Header("Cache-Control", "no-store")
	}

	c.HTML(http.StatusOK, "post.html", gin.H{
		"title":       post.Title,
		"description": excerptOf(post.Excerpt),
		"post":        post,
		"related":     b.reader.Related(ctx, post),
		"trending":    b.reader.Trending(ctx),
		"share":       content.ShareLinks(b.domain+content.PostURL(*post), post.Title),
	})
}

func (b *BlogModule) fallback(c *gin.Context) {
	if c.Request.Method == http.MethodGet {
		parts := strings.Split(strings.Trim(c.Request.URL.Path, "/"), "/")
		if len(parts) == 2 && parts[0] != "" && parts[1] != "" {
			b.renderPost(c, parts[1])
			return
		}
	}
	b.notFound(c, "")
}

func (b *BlogModule) notFound(c *gin.Context, message string) {
	c.HTML(http.StatusNotFound, "not_found.html", gin.H{
		"title":   "Page not found",
		"message": message,
	})
}

func excerptOf(excerpt *string) string {
	if excerpt == nil {
		return ""
	}
	return *excerpt
}
