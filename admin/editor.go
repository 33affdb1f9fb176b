package admin

import (
	"context"
	"errors"
	"mime/multipart"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"nikwetu/media"
	"nikwetu/models"
)

type Mode int

const (
	ModeNew Mode = iota
	ModeEditing
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseUploading
	PhaseSaving
)

var (
	ErrBusy            = errors.New("editor is busy")
	ErrTitleSlug       = errors.New("title and slug are required")
	ErrInvalidCategory = errors.New("unknown category")
)

// PostForm holds the editor fields exactly as the author typed them.
type PostForm struct {
	Title         string
	Slug          string
	Excerpt       string
	Content       string
	CategoryID    string
	Tags          string
	Status        string
	FeaturedImage string
}

// PostWriter persists what the editor produces.
type PostWriter interface {
	CreatePost(ctx context.Context, post *models.Post) error
	UpdatePost(ctx context.Context, post *models.Post) error
}

// Editor is the authoring state for a single post form.
type Editor struct {
	Form PostForm

	mode        Mode
	phase       Phase
	postID      uuid.UUID
	authorID    *uuid.UUID
	views       int64
	publishedAt *time.Time
	now         func() time.Time
}

func NewEditor() *Editor {
	return &Editor{
		Form: PostForm{Status: string(models.PostStatusDraft)},
		now:  time.Now,
	}
}

// EditPost opens an existing post in editing mode.
func EditPost(post *models.Post) *Editor {
	e := NewEditor()
	e.Load(post)
	return e
}

// Load fills every field from the stored row.
func (e *Editor) Load(post *models.Post) {
	e.mode = ModeEditing
	e.postID = post.ID
	e.authorID = post.AuthorID
	e.views = post.Views
	e.publishedAt = post.PublishedAt

	e.Form = PostForm{
		Title:   post.Title,
		Slug:    post.Slug,
		Content: post.Content,
		Tags:    strings.Join(post.Tags, ", "),
		Status:  string(post.Status),
	}
	if post.Excerpt != nil {
		e.Form.Excerpt = *post.Excerpt
	}
	if post.CategoryID != nil {
		e.Form.CategoryID = post.CategoryID.String()
	}
	if post.FeaturedImage != nil {
		e.Form.FeaturedImage = *post.FeaturedImage
	}
}

func (e *Editor) Mode() Mode              { return e.mode }
func (e *Editor) Phase() Phase            { return e.phase }
func (e *Editor) PostID() uuid.UUID       { return e.postID }
func (e *Editor) PublishedAt() *time.Time { return e.publishedAt }

// SetTitle updates the title; new posts follow it with a derived slug.
func (e *Editor) SetTitle(title string) {
	e.Form.Title = title
	if e.mode == ModeNew && title != "" {
		e.Form.Slug = Slugify(title)
	}
}

func (e *Editor) Validate() error {
	if strings.TrimSpace(e.Form.Title) == "" || strings.TrimSpace(e.Form.Slug) == "" {
		return ErrTitleSlug
	}
	if id := strings.TrimSpace(e.Form.CategoryID); id != "" {
		if _, err := uuid.Parse(id); err != nil {
			return ErrInvalidCategory
		}
	}
	return nil
}

// Upload stores the image and points the form at it. On failure the
// current image stays in place.
func (e *Editor) Upload(ctx context.Context, storage media.Storage, file *multipart.FileHeader) error {
	if e.phase != PhaseIdle {
		return ErrBusy
	}
	e.phase = PhaseUploading
	defer func() { e.phase = PhaseIdle }()

	url, err := media.UploadImage(ctx, storage, file)
	if err != nil {
		return err
	}
	e.Form.FeaturedImage = url
	return nil
}

// Apply builds the row to write for the given status. The publish time is
// stamped whenever this save publishes and is carried over otherwise.
func (e *Editor) Apply(status models.PostStatus) (*models.Post, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	if status != models.PostStatusPublished {
		status = models.PostStatusDraft
	}

	post := &models.Post{
		ID:            e.postID,
		Title:         strings.TrimSpace(e.Form.Title),
		Slug:          strings.TrimSpace(e.Form.Slug),
		Excerpt:       optional(e.Form.Excerpt),
		Content:       e.Form.Content,
		FeaturedImage: optional(e.Form.FeaturedImage),
		AuthorID:      e.authorID,
		Tags:          SplitTags(e.Form.Tags),
		Status:        status,
		Views:         e.views,
		PublishedAt:   e.publishedAt,
	}
	if id := strings.TrimSpace(e.Form.CategoryID); id != "" {
		categoryID := uuid.MustParse(id)
		post.CategoryID = &categoryID
	}
	if status == models.PostStatusPublished {
		now := e.now()
		post.PublishedAt = &now
	}
	return post, nil
}

// Save validates and writes the form. A new post becomes an edited one
// once it has been created.
func (e *Editor) Save(ctx context.Context, w PostWriter, status models.PostStatus, author uuid.UUID) (*models.Post, error) {
	if e.phase != PhaseIdle {
		return nil, ErrBusy
	}
	post, err := e.Apply(status)
	if err != nil {
		return nil, err
	}

	e.phase = PhaseSaving
	defer func() { e.phase = PhaseIdle }()

	if e.mode == ModeNew {
		post.AuthorID = &author
		err = w.CreatePost(ctx, post)
	} else {
		err = w.UpdatePost(ctx, post)
	}
	if err != nil {
		return nil, err
	}

	e.mode = ModeEditing
	e.postID = post.ID
	e.authorID = post.AuthorID
	e.publishedAt = post.PublishedAt
	e.Form.Status = string(post.Status)
	return post, nil
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases the title and collapses everything that is not a
// letter or digit into single hyphens.
func Slugify(title string) string {
	slug := nonSlug.ReplaceAllString(strings.ToLower(title), "-")
	return strings.Trim(slug, "-")
}

// SplitTags turns "a, b,,c " into [a b c].
func SplitTags(raw string) models.TagList {
	tags := models.TagList{}
	for _, tag := range strings.Split(raw, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
