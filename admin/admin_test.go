package admin

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"nikwetu/auth"
	"nikwetu/cache"
	"nikwetu/common"
	"nikwetu/database"
	"nikwetu/media"
	"nikwetu/models"
	"nikwetu/store"
	"nikwetu/views"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)

type memoryStorage struct {
	objects map[string][]byte
}

func (m *memoryStorage) Upload(_ context.Context, name, _ string, data []byte) error {
	m.objects[name] = data
	return nil
}

func (m *memoryStorage) PublicURL(name string) string {
	return "https://cdn.example.com/post-images/" + name
}

type failingStorage struct{}

func (failingStorage) Upload(context.Context, string, string, []byte) error {
	return errors.New("bucket unavailable")
}

func (failingStorage) PublicURL(string) string { return "" }

type testApp struct {
	db      *gorm.DB
	router  *gin.Engine
	pages   *cache.Store
	cookies map[string]*http.Cookie
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := common.OpenMemoryDb()
	require.NoError(t, err)
	require.NoError(t, database.RunMigrations(db))
	return db
}

func setupTestRouter(t *testing.T, storage media.Storage) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := setupTestDB(t)
	pages := cache.New(t.TempDir(), time.Minute)

	router := gin.New()
	router.SetHTMLTemplate(views.MustLoad("http://localhost:8080"))
	router.Use(sessions.Sessions("test-session", cookie.NewStore([]byte("secret"))))
	router.Use(auth.Provide(auth.NewLocal(db, "secret")))
	NewAdminModule(store.New(db), storage, pages).RegisterRoutes(router)

	return &testApp{db: db, router: router, pages: pages, cookies: map[string]*http.Cookie{}}
}

func createTestUser(t *testing.T, db *gorm.DB, email, password string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{Email: email, PasswordHash: string(hash)}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createTestPost(t *testing.T, db *gorm.DB, author uuid.UUID, title, slug string, status models.PostStatus) *models.Post {
	t.Helper()
	post := &models.Post{
		Title:    title,
		Slug:     slug,
		Content:  "<p>Test content</p>",
		Status:   status,
		AuthorID: &author,
		Tags:     models.TagList{"politics", "budget"},
	}
	if status == models.PostStatusPublished {
		now := time.Now()
		post.PublishedAt = &now
	}
	require.NoError(t, db.Create(post).Error)
	return post
}

func (a *testApp) do(req *http.Request) *httptest.ResponseRecorder {
	for _, c := range a.cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	for _, c := range w.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(a.cookies, c.Name)
			continue
		}
		a.cookies[c.Name] = c
	}
	return w
}

func (a *testApp) get(path string) *httptest.ResponseRecorder {
	return a.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (a *testApp) postForm(path string, values url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return a.do(req)
}

func (a *testApp) postMultipart(t *testing.T, path string, values url.Values, filename string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for key, vals := range values {
		for _, v := range vals {
			require.NoError(t, writer.WriteField(key, v))
		}
	}
	if filename != "" {
		part, err := writer.CreateFormFile("image", filename)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return a.do(req)
}

func (a *testApp) login(t *testing.T) *models.User {
	t.Helper()
	user := createTestUser(t, a.db, "editor@newsnikwetu.com", "correct horse")
	w := a.postForm("/admin/login", url.Values{"email": {user.Email}, "password": {"correct horse"}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	require.Equal(t, "/admin", w.Header().Get("Location"))
	return user
}

func (a *testApp) postBySlug(t *testing.T, slug string) models.Post {
	t.Helper()
	var post models.Post
	require.NoError(t, a.db.Where("slug = ?", slug).First(&post).Error)
	return post
}

func TestDashboard_ListsAuthorPosts(t *testing.T) {
	app := setupTestRouter(t, &memoryStorage{objects: map[string][]byte{}})
	user := app.login(t)
	other := createTestUser(t, app.db, "other@newsnikwetu.com", "pw")

	createTestPost(t, app.db, user.ID, "Budget passes", "budget-passes", models.PostStatusPublished)
	createTestPost(t, app.db, user.ID, "Ward meeting", "ward-meeting", models.PostStatusDraft)
	createTestPost(t, app.db, other.ID, "Not mine", "not-mine", models.PostStatusPublished)

	w := app.get("/admin")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	body := w.Body.String()
	assert.Contains(t, body, "editor@newsnikwetu.com")
	assert.Contains(t, body, "<strong>2</strong> Total Posts")
	assert.Contains(t, body, "<strong>1</strong> Published")
	assert.Contains(t, body, "<strong>1</strong> Drafts")
	assert.Contains(t, body, "Budget passes")
	assert.NotContains(t, body, "Not mine")
}

func TestCreatePost_DraftDerivesSlug(t *testing.T) {
	app := setupTestRouter(t, &memoryStorage{objects: map[string][]byte{}})
	user := app.login(t)

	w := app.postMultipart(t, "/admin/posts", url.Values{
		"title":   {"Hello, World! 2026"},
		"slug":    {""},
		"content": {"<p>First</p>"},
		"tags":    {"politics, , county "},
		"status":  {"draft"},
	}, "", nil)

	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/admin", w.Header().Get("Location"))

	post := app.postBySlug(t, "hello-world-2026")
	assert.Equal(t, models.PostStatusDraft, post.Status)
	assert.Nil(t, post.PublishedAt)
	require.NotNil(t, post.AuthorID)
	assert.Equal(t, user.ID, *post.AuthorID)
	assert.Equal(t, models.TagList{"politics", "county"}, post.Tags)

	w = app.get("/admin")
	assert.Contains(t, w.Body.String(), "Draft saved!")
	w = app.get("/admin")
	assert.NotContains(t, w.Body.String(), "Draft saved!")
}

func TestCreatePost_RequiresTitleAndSlug(t *testing.T) {
	app := setupTestRouter(t, &memoryStorage{objects: map[string][]byte{}})
	app.login(t)

	w := app.postMultipart(t, "/admin/posts", url.Values{
		"title":   {"   "},
		"content": {"<p>Body kept</p>"},
		"status":  {"published"},
	}, "", nil)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "Title and slug are required")
	assert.Contains(t, w.Body.String(), "&lt;p&gt;Body kept&lt;/p&gt;")

	var count int64
	app.db.Model(&models.Post{}).Count(&count)
	assert.Zero(t, count)
}

func TestCreatePost_DuplicateSlugShowsError(t *testing.T) {
	app := setupTestRouter(t, &memoryStorage{objects: map[string][]byte{}})
	user := app.login(t)
	createTestPost(t, app.db, user.ID, "Budget passes", "budget-passes", models.PostStatusDraft)

	w := app.postMultipart(t, "/admin/posts", url.Values{
		"title":  {"Budget passes"},
		"status": {"draft"},
	}, "", nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Could not save the post")
}

func TestUpdatePost_PublishThenDraftKeepsPublishedAt(t *testing.T) {
	app := setupTestRouter(t, &memoryStorage{objects: map[string][]byte{}})
	user := app.login(t)
	post := createTestPost(t, app.db, user.ID, "Budget passes", "budget-passes", models.PostStatusDraft)
	require.NoError(t, app.db.Model(post).UpdateColumn("views", 42).Error)

	form := url.Values{
		"title":   {"Budget passes second reading"},
		"slug":    {"budget-passes"},
		"content": {"<p>Updated</p>"},
		"tags":    {"politics"},
		"status":  {"published"},
	}
	w := app.postMultipart(t, "/admin/posts/"+post.ID.String(), form, "", nil)
	require.Equal(t, http.StatusSeeOther, w.Code)

	published := app.postBySlug(t, "budget-passes")
	assert.Equal(t, "Budget passes second reading", published.Title)
	assert.Equal(t, models.PostStatusPublished, published.Status)
	require.NotNil(t, published.PublishedAt)
	assert.Equal(t, int64(42), published.Views)

	form.Set("status", "draft")
	w = app.postMultipart(t, "/admin/posts/"+post.ID.String(), form, "", nil)
	require.Equal(t, http.StatusSeeOther, w.Code)

	reverted := app.postBySlug(t, "budget-passes")
	assert.Equal(t, models.PostStatusDraft, reverted.Status)
	require.NotNil(t, reverted.PublishedAt)
	assert.WithinDuration(t, *published.PublishedAt, *reverted.PublishedAt, time.Second)
}

func TestCreatePost_UploadsImage(t *testing.T) {
	storage := &memoryStorage{objects: map[string][]byte{}}
	app := setupTestRouter(t, storage)
	app.login(t)

	w := app.postMultipart(t, "/admin/posts", url.Values{
		"title":  {"With image"},
		"status": {"published"},
	}, "photo.png", pngBytes)

	require.Equal(t, http.StatusSeeOther, w.Code)
	require.Len(t, storage.objects, 1)

	post := app.postBySlug(t, "with-image")
	require.NotNil(t, post.FeaturedImage)
	assert.True(t, strings.HasPrefix(*post.FeaturedImage, "https://cdn.example.com/post-images/"))
	assert.True(t, strings.HasSuffix(*post.FeaturedImage, ".png"))
}

func TestCreatePost_FailedUploadKeepsPriorImage(t *testing.T) {
	app := setupTestRouter(t, failingStorage{})
	app.login(t)

	w := app.postMultipart(t, "/admin/posts", url.Values{
		"title":          {"Keeps image"},
		"status":         {"draft"},
		"featured_image": {"https://cdn.example.com/post-images/old.png"},
	}, "photo.png", pngBytes)

	require.Equal(t, http.StatusSeeOther, w.Code)
	post := app.postBySlug(t, "keeps-image")
	require.NotNil(t, post.FeaturedImage)
	assert.Equal(t, "https://cdn.example.com/post-images/old.png", *post.FeaturedImage)

	w = app.get("/admin")
	assert.Contains(t, w.Body.String(), "Failed to upload image")
}

func TestSave_ClearsPageCache(t *testing.T) {
	app := setupTestRouter(t, &memoryStorage{objects: map[string][]byte{}})
	app.login(t)
	require.NoError(t, app.pages.Write("/", []byte("stale home")))

	w := app.postMultipart(t, "/admin/posts", url.Values{"title": {"Fresh"}, "status": {"published"}}, "", nil)
	require.Equal(t, http.StatusSeeOther, w.Code)

	_, found := app.pages.Read("/")
	assert.False(t, found)
}

func TestEditPost_LoadsForm(t *testing.T) {
	app := setupTestRouter(t, &memoryStorage{objects: map[string][]byte{}})
	user := app.login(t)
	post := createTestPost(t, app.db, user.ID, "Budget passes", "budget-passes", models.PostStatusDraft)

	w := app.get("/admin/posts/" + post.ID.String())

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Edit Post")
	assert.Contains(t, body, `value="politics, budget"`)
	assert.Contains(t, body, `action="/admin/posts/`+post.ID.String()+`"`)
}

func TestEditPost_UnknownRedirects(t *testing.T) {
	app := setupTestRouter(t, &memoryStorage{objects: map[string][]byte{}})
	app.login(t)

	for _, id := range []string{uuid.NewString(), "not-a-uuid"} {
		w := app.get("/admin/posts/" + id)
		assert.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, "/admin", w.Header().Get("Location"))
	}
	assert.Contains(t, app.get("/admin").Body.String(), "Post not found")
}

func TestNewPost_Form(t *testing.T) {
	app := setupTestRouter(t, &memoryStorage{objects: map[string][]byte{}})
	app.login(t)

	w := app.get("/admin/posts/new")

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "New Post")
	assert.Contains(t, body, `action="/admin/posts"`)
	assert.Contains(t, body, "Local News")
}

func TestDeletePost_RequiresConfirmation(t *testing.T) {
	app := setupTestRouter(t, &memoryStorage{objects: map[string][]byte{}})
	user := app.login(t)
	post := createTestPost(t, app.db, user.ID, "Budget passes", "budget-passes", models.PostStatusPublished)
	deletePath := "/admin/posts/" + post.ID.String() + "/delete"

	w := app.get(deletePath)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `Are you sure you want to delete &#34;Budget passes&#34;?`)

	w = app.postForm(deletePath, url.Values{})
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, deletePath, w.Header().Get("Location"))
	app.postBySlug(t, "budget-passes")

	w = app.postForm(deletePath, url.Values{"confirm": {"yes"}})
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/admin", w.Header().Get("Location"))

	var count int64
	app.db.Model(&models.Post{}).Where("id = ?", post.ID).Count(&count)
	assert.Zero(t, count)
	assert.Contains(t, app.get("/admin").Body.String(), "Post deleted")
}

func TestUpload_ReturnsURL(t *testing.T) {
	storage := &memoryStorage{objects: map[string][]byte{}}
	app := setupTestRouter(t, storage)
	app.login(t)

	w := app.postMultipart(t, "/admin/uploads", nil, "photo.png", pngBytes)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"url":"https://cdn.example.com/post-images/`)

	w = app.postMultipart(t, "/admin/uploads", nil, "notes.txt", []byte("plain text, not an image"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = app.postMultipart(t, "/admin/uploads", nil, "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpload_StorageFailure(t *testing.T) {
	app := setupTestRouter(t, failingStorage{})
	app.login(t)

	w := app.postMultipart(t, "/admin/uploads", nil, "photo.png", pngBytes)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "Failed to upload image")
}
