package admin

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"nikwetu/auth"
	"nikwetu/cache"
	"nikwetu/common"
	"nikwetu/content"
	"nikwetu/media"
	"nikwetu/models"
	"nikwetu/store"
)

const loginPath = "/admin/login"

type AdminModule struct {
	store   *store.Store
	storage media.Storage
	pages   *cache.Store
	limiter *common.IPRateLimiter
}

func NewAdminModule(s *store.Store, storage media.Storage, pages *cache.Store) *AdminModule {
	return &AdminModule{
		store:   s,
		storage: storage,
		pages:   pages,
		limiter: common.NewIPRateLimiter(5, time.Minute),
	}
}

func (a *AdminModule) RegisterRoutes(router *gin.Engine) {
	router.GET(loginPath, a.loginPage)
	router.POST(loginPath, a.limiter.Middleware(a.loginLimited), a.loginPost)
	router.POST("/admin/logout", a.logout)

	adminGroup := router.Group("/admin")
	adminGroup.Use(auth.RequireUser(loginPath, nil))
	{
		adminGroup.GET("", a.dashboard)
		adminGroup.GET("/posts/new", a.newPost)
		adminGroup.POST("/posts", a.createPost)
		adminGroup.GET("/posts/:id", a.editPost)
		adminGroup.POST("/posts/:id", a.updatePost)
		adminGroup.GET("/posts/:id/delete", a.confirmDelete)
		adminGroup.POST("/posts/:id/delete", a.deletePost)
		adminGroup.POST("/uploads", a.upload)
	}
}

func (a *AdminModule) loginPage(c *gin.Context) {
	if auth.Use(c).User() != nil {
		c.Redirect(http.StatusSeeOther, "/admin")
		return
	}

	c.Header("Cache-Control", "no-store")
	c.HTML(http.StatusOK, "admin_login.html", gin.H{"title": "Login"})
}

func (a *AdminModule) loginPost(c *gin.Context) {
	ctx := c.Request.Context()
	email := strings.TrimSpace(c.PostForm("email"))
	password := c.PostForm("password")

	holder := auth.Use(c)
	if err := holder.SignIn(ctx, email, password); err != nil {
		message := "Invalid login credentials"
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			log.Error().Err(err).Msg("Sign in failed")
			message = "Sign in failed, please try again"
		}
		c.HTML(http.StatusUnauthorized, "admin_login.html", gin.H{
			"title": "Login",
			"error": message,
			"email": email,
		})
		return
	}

	user := holder.User()
	if _, err := a.store.EnsureProfile(ctx, user.ID, displayName(user.Email)); err != nil {
		log.Warn().Err(err).Str("user", user.ID.String()).Msg("Could not ensure author profile")
	}

	c.Redirect(http.StatusSeeOther, "/admin")
}

func (a *AdminModule) loginLimited(c *gin.Context) {
	c.HTML(http.StatusTooManyRequests, "admin_login.html", gin.H{
		"title": "Login",
		"error": "Too many login attempts. Please wait a minute and try again.",
	})
}

func (a *AdminModule) logout(c *gin.Context) {
	if err := auth.Use(c).SignOut(c.Request.Context()); err != nil {
		log.Warn().Err(err).Msg("Sign out reported an error")
	}
	c.Redirect(http.StatusSeeOther, loginPath)
}

func (a *AdminModule) dashboard(c *gin.Context) {
	user := auth.Use(c).User()

	posts, err := a.store.PostsByAuthor(c.Request.Context(), user.ID)
	if err != nil {
		log.Error().Err(err).Msg("Error loading author posts")
	}

	published := 0
	for _, post := range posts {
		if post.Published() {
			published++
		}
	}

	c.HTML(http.StatusOK, "admin_dashboard.html", gin.H{
		"title":     "Dashboard",
		"user":      user,
		"flashes":   a.flashes(c),
		"posts":     posts,
		"total":     len(posts),
		"published": published,
		"drafts":    len(posts) - published,
	})
}

func (a *AdminModule) newPost(c *gin.Context) {
	a.renderEditor(c, http.StatusOK, NewEditor(), "")
}

func (a *AdminModule) editPost(c *gin.Context) {
	post, ok := a.loadPost(c)
	if !ok {
		return
	}
	a.renderEditor(c, http.StatusOK, EditPost(post), "")
}

func (a *AdminModule) createPost(c *gin.Context) {
	a.save(c, NewEditor())
}

func (a *AdminModule) updatePost(c *gin.Context) {
	post, ok := a.loadPost(c)
	if !ok {
		return
	}
	a.save(c, EditPost(post))
}

func (a *AdminModule) save(c *gin.Context, editor *Editor) {
	ctx := c.Request.Context()
	user := auth.Use(c).User()

	editor.SetTitle(c.PostForm("title"))
	if slug := c.PostForm("slug"); editor.Mode() == ModeEditing || strings.TrimSpace(slug) != "" {
		editor.Form.Slug = slug
	}
	editor.Form.Excerpt = c.PostForm("excerpt")
	editor.Form.Content = c.PostForm("content")
	editor.Form.CategoryID = c.PostForm("category_id")
	editor.Form.Tags = c.PostForm("tags")
	editor.Form.FeaturedImage = c.PostForm("featured_image")

	if file, err := c.FormFile("image"); err == nil {
		if err := editor.Upload(ctx, a.storage, file); err != nil {
			log.Warn().Err(err).Msg("Featured image upload failed")
			a.flash(c, "Failed to upload image")
		}
	}

	status := models.PostStatus(c.PostForm("status"))
	post, err := editor.Save(ctx, a.store, status, user.ID)
	switch {
	case errors.Is(err, ErrTitleSlug):
		a.renderEditor(c, http.StatusUnprocessableEntity, editor, "Title and slug are required")
		return
	case errors.Is(err, ErrInvalidCategory):
		a.renderEditor(c, http.StatusUnprocessableEntity, editor, "Please choose a valid category")
		return
	case errors.Is(err, store.ErrNotFound):
		a.flash(c, "Post not found")
		c.Redirect(http.StatusSeeOther, "/admin")
		return
	case err != nil:
		log.Error().Err(err).Str("slug", editor.Form.Slug).Msg("Error saving post")
		a.renderEditor(c, http.StatusInternalServerError, editor, "Could not save the post. Is the slug already in use?")
		return
	}

	a.clearPages()
	if post.Published() {
		a.flash(c, "Post published!")
	} else {
		a.flash(c, "Draft saved!")
	}
	c.Redirect(http.StatusSeeOther, "/admin")
}

func (a *AdminModule) confirmDelete(c *gin.Context) {
	post, ok := a.loadPost(c)
	if !ok {
		return
	}
	c.HTML(http.StatusOK, "admin_delete.html", gin.H{
		"title": "Delete Post",
		"user":  auth.Use(c).User(),
		"post":  post,
	})
}

func (a *AdminModule) deletePost(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		a.flash(c, "Post not found")
		c.Redirect(http.StatusSeeOther, "/admin")
		return
	}

	if c.PostForm("confirm") != "yes" {
		c.Redirect(http.StatusSeeOther, "/admin/posts/"+id.String()+"/delete")
		return
	}

	switch err := a.store.DeletePost(c.Request.Context(), id); {
	case errors.Is(err, store.ErrNotFound):
		a.flash(c, "Post not found")
	case err != nil:
		log.Error().Err(err).Str("post", id.String()).Msg("Error deleting post")
		a.flash(c, "Failed to delete post")
	default:
		a.clearPages()
		a.flash(c, "Post deleted")
	}
	c.Redirect(http.StatusSeeOther, "/admin")
}

// upload backs the editor's image picker.
func (a *AdminModule) upload(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No image provided"})
		return
	}

	url, err := media.UploadImage(c.Request.Context(), a.storage, file)
	switch {
	case errors.Is(err, media.ErrNotImage), errors.Is(err, media.ErrTooLarge):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to upload image"})
	default:
		c.JSON(http.StatusOK, gin.H{"url": url})
	}
}

func (a *AdminModule) loadPost(c *gin.Context) (*models.Post, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err == nil {
		var post *models.Post
		post, err = a.store.PostByID(c.Request.Context(), id)
		if err == nil {
			return post, true
		}
	}
	if !errors.Is(err, store.ErrNotFound) {
		log.Warn().Err(err).Str("id", c.Param("id")).Msg("Error loading post")
	}

	a.flash(c, "Post not found")
	c.Redirect(http.StatusSeeOther, "/admin")
	return nil, false
}

func (a *AdminModule) renderEditor(c *gin.Context, status int, editor *Editor, message string) {
	categories, err := a.store.Categories(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("Error loading categories")
	}

	title := "New Post"
	if editor.Mode() == ModeEditing {
		title = "Edit Post"
	}

	c.HTML(status, "admin_editor.html", gin.H{
		"title":      title,
		"user":       auth.Use(c).User(),
		"flashes":    a.flashes(c),
		"editing":    editor.Mode() == ModeEditing,
		"postID":     editor.PostID(),
		"form":       editor.Form,
		"categories": categories,
		"error":      message,
	})
}

func (a *AdminModule) clearPages() {
	if err := a.pages.Clear(); err != nil {
		log.Warn().Err(err).Msg("Error clearing page cache")
	}
}

func (a *AdminModule) flash(c *gin.Context, message string) {
	session := sessions.Default(c)
	session.AddFlash(message)
	if err := session.Save(); err != nil {
		log.Warn().Err(err).Msg("Error saving flash")
	}
}

func (a *AdminModule) flashes(c *gin.Context) []interface{} {
	session := sessions.Default(c)
	flashes := session.Flashes()
	if len(flashes) > 0 {
		if err := session.Save(); err != nil {
			log.Warn().Err(err).Msg("Error saving session")
		}
	}
	return flashes
}

func displayName(email string) string {
	name, _, _ := strings.Cut(email, "@")
	if name == "" {
		return content.StaffWriter
	}
	return name
}
