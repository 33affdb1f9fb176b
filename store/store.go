package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"nikwetu/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("not found")

// editableColumns are written on update. views and created_at never are.
var editableColumns = []string{
	"title", "slug", "excerpt", "content", "featured_image",
	"category_id", "tags", "status", "published_at", "updated_at",
}

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) posts(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Model(&models.Post{}).Preload("Category").Preload("Author")
}

func (s *Store) published(ctx context.Context) *gorm.DB {
	return s.posts(ctx).Where("status = ?", models.PostStatusPublished)
}

// PublishedPosts returns the newest published posts. limit <= 0 means all.
func (s *Store) PublishedPosts(ctx context.Context, limit int) ([]models.Post, error) {
	q := s.published(ctx).Order("published_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	return s.findPosts(q)
}

func (s *Store) PostBySlug(ctx context.Context, slug string) (*models.Post, error) {
	return s.firstPost(s.posts(ctx).Where("slug = ?", slug))
}

func (s *Store) PostByID(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	return s.firstPost(s.posts(ctx).Where("id = ?", id))
}

// RelatedPosts returns other published posts in the post's category.
func (s *Store) RelatedPosts(ctx context.Context, post *models.Post, limit int) ([]models.Post, error) {
	if post == nil || post.CategoryID == nil {
		return nil, nil
	}
	q := s.published(ctx).
		Where("category_id = ?", *post.CategoryID).
		Where("id <> ?", post.ID).
		Order("published_at DESC").
		Limit(limit)
	return s.findPosts(q)
}

func (s *Store) PostsInCategory(ctx context.Context, categoryID uuid.UUID) ([]models.Post, error) {
	q := s.published(ctx).Where("category_id = ?", categoryID).Order("published_at DESC")
	return s.findPosts(q)
}

// SearchPosts matches query against titles, ignoring case. A blank query
// is not sent to the database.
func (s *Store) SearchPosts(ctx context.Context, query string, limit int) ([]models.Post, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	pattern := "%" + escapeLike(query) + "%"
	q := s.published(ctx)
	if s.db.Dialector.Name() == "postgres" {
		q = q.Where(`title ILIKE ? ESCAPE '\'`, pattern)
	} else {
		q = q.Where(`LOWER(title) LIKE LOWER(?) ESCAPE '\'`, pattern)
	}
	return s.findPosts(q.Order("published_at DESC").Limit(limit))
}

// TrendingPosts ranks published posts by view count.
func (s *Store) TrendingPosts(ctx context.Context, limit int) ([]models.Post, error) {
	return s.findPosts(s.published(ctx).Order("views DESC").Limit(limit))
}

func (s *Store) PostsByAuthor(ctx context.Context, authorID uuid.UUID) ([]models.Post, error) {
	q := s.posts(ctx).Where("author_id = ?", authorID).Order("created_at DESC")
	return s.findPosts(q)
}

func (s *Store) CreatePost(ctx context.Context, post *models.Post) error {
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(post).Error; err != nil {
		return fmt.Errorf("create post: %w", err)
	}
	return nil
}

// UpdatePost rewrites every editable column of an existing post.
func (s *Store) UpdatePost(ctx context.Context, post *models.Post) error {
	post.UpdatedAt = time.Now()
	result := s.db.WithContext(ctx).
		Model(&models.Post{ID: post.ID}).
		Select(editableColumns).
		Updates(post)
	if result.Error != nil {
		return fmt.Errorf("update post: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeletePost(ctx context.Context, id uuid.UUID) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Post{})
	if result.Error != nil {
		return fmt.Errorf("delete post: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementViews bumps the counter in a single statement so concurrent
// readers never overwrite each other.
func (s *Store) IncrementViews(ctx context.Context, id uuid.UUID) error {
	result := s.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ?", id).
		UpdateColumn("views", gorm.Expr("views + ?", 1))
	if result.Error != nil {
		return fmt.Errorf("increment views: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) Categories(ctx context.Context) ([]models.Category, error) {
	var rows []models.Category
	if err := s.db.WithContext(ctx).Order("name").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}

	categories := rows[:0]
	for _, category := range rows {
		if err := category.Validate(); err != nil {
			log.Warn().Err(err).Str("category_id", category.ID.String()).Msg("dropping malformed category row")
			continue
		}
		categories = append(categories, category)
	}
	return categories, nil
}

func (s *Store) CategoryBySlug(ctx context.Context, slug string) (*models.Category, error) {
	var category models.Category
	err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&category).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("category %q: %w", slug, err)
	}
	if err := category.Validate(); err != nil {
		log.Warn().Err(err).Str("slug", slug).Msg("malformed category row")
		return nil, ErrNotFound
	}
	return &category, nil
}

func (s *Store) Profile(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	var profile models.Profile
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}
	return &profile, nil
}

// EnsureProfile creates the profile row for an identity unless one exists.
func (s *Store) EnsureProfile(ctx context.Context, id uuid.UUID, displayName string) (*models.Profile, error) {
	profile := models.Profile{ID: id, DisplayName: displayName}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&profile).Error
	if err != nil {
		return nil, fmt.Errorf("ensure profile: %w", err)
	}
	return s.Profile(ctx, id)
}

func (s *Store) firstPost(q *gorm.DB) (*models.Post, error) {
	var post models.Post
	err := q.First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find post: %w", err)
	}
	if err := post.Validate(); err != nil {
		log.Warn().Err(err).Str("post_id", post.ID.String()).Msg("malformed post row")
		return nil, ErrNotFound
	}
	return &post, nil
}

func (s *Store) findPosts(q *gorm.DB) ([]models.Post, error) {
	var rows []models.Post
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}

	posts := rows[:0]
	for _, post := range rows {
		if err := post.Validate(); err != nil {
			log.Warn().Err(err).Str("post_id", post.ID.String()).Msg("dropping malformed post row")
			continue
		}
		posts = append(posts, post)
	}
	return posts, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
