package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"nikwetu/common"
	"nikwetu/content"
	"nikwetu/models"
)

// ApiModule is the read-only JSON view of published content.
type ApiModule struct {
	reader  *content.Reader
	origins []string
	limiter *common.IPRateLimiter
}

func NewApiModule(reader *content.Reader, origins []string) *ApiModule {
	return &ApiModule{
		reader:  reader,
		origins: origins,
		limiter: common.NewIPRateLimiter(30, time.Minute),
	}
}

func (a *ApiModule) RegisterRoutes(router *gin.Engine) {
	apiGroup := router.Group("/api")
	apiGroup.Use(cors.New(corsConfig(a.origins)), a.limiter.Middleware(nil))
	{
		apiGroup.GET("/posts", a.listPosts)
		apiGroup.GET("/posts/:slug", a.getPost)
		apiGroup.GET("/trending", a.trending)
		apiGroup.GET("/categories", a.listCategories)
		apiGroup.GET("/categories/:slug", a.getCategory)
		apiGroup.OPTIONS("/*path", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	}
}

func corsConfig(origins []string) cors.Config {
	config := cors.Config{
		AllowMethods:  []string{"GET", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length", "Content-Type"},
		MaxAge:        12 * time.Hour,
	}
	for _, origin := range origins {
		if origin == "*" {
			config.AllowAllOrigins = true
			return config
		}
	}
	config.AllowOrigins = origins
	return config
}

// listPosts returns the feed, or title matches when q is given.
func (a *ApiModule) listPosts(c *gin.Context) {
	ctx := c.Request.Context()

	if q, ok := c.GetQuery("q"); ok {
		results := a.reader.Search(ctx, q)
		c.JSON(http.StatusOK, gin.H{"query": results.Query, "posts": orEmpty(results.Posts)})
		return
	}

	feed := a.reader.HomeFeed(ctx)
	posts := []models.Post{}
	if feed.Hero != nil {
		posts = append(posts, *feed.Hero)
		posts = append(posts, feed.Latest...)
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

func (a *ApiModule) getPost(c *gin.Context) {
	ctx := c.Request.Context()
	post := a.reader.Post(ctx, c.Param("slug"), false)
	if post == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Article not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"post":    post,
		"url":     content.PostURL(*post),
		"related": orEmpty(a.reader.Related(ctx, post)),
	})
}

func (a *ApiModule) trending(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"posts": orEmpty(a.reader.Trending(c.Request.Context()))})
}

func (a *ApiModule) listCategories(c *gin.Context) {
	categories := a.reader.Categories(c.Request.Context())
	if categories == nil {
		categories = []models.Category{}
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

func (a *ApiModule) getCategory(c *gin.Context) {
	listing := a.reader.Category(c.Request.Context(), c.Param("slug"))
	if listing.Category == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Category not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"category": listing.Category, "posts": orEmpty(listing.Posts)})
}

func orEmpty(posts []models.Post) []models.Post {
	if posts == nil {
		return []models.Post{}
	}
	return posts
}
