package content

import (
	"context"
	"errors"
	"strings"

	"nikwetu/analytics"
	"nikwetu/models"
	"nikwetu/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	FeedLimit     = 20
	RelatedLimit  = 4
	SearchLimit   = 20
	TrendingLimit = 5
)

// Source is the query surface the reader needs from the store.
type Source interface {
	PublishedPosts(ctx context.Context, limit int) ([]models.Post, error)
	PostBySlug(ctx context.Context, slug string) (*models.Post, error)
	RelatedPosts(ctx context.Context, post *models.Post, limit int) ([]models.Post, error)
	CategoryBySlug(ctx context.Context, slug string) (*models.Category, error)
	PostsInCategory(ctx context.Context, categoryID uuid.UUID) ([]models.Post, error)
	SearchPosts(ctx context.Context, query string, limit int) ([]models.Post, error)
	TrendingPosts(ctx context.Context, limit int) ([]models.Post, error)
	Categories(ctx context.Context) ([]models.Category, error)
}

type Feed struct {
	Hero   *models.Post
	Latest []models.Post
}

// CategoryListing with a nil Category means the slug matched nothing.
type CategoryListing struct {
	Category *models.Category
	Posts    []models.Post
}

type SearchResults struct {
	Query    string
	Posts    []models.Post
	Searched bool
}

// Reader runs the public read queries. Failures are logged and come back
// as empty results; nothing is returned to the caller as an error.
type Reader struct {
	src     Source
	tracker *analytics.Tracker
}

func NewReader(src Source, tracker *analytics.Tracker) *Reader {
	return &Reader{src: src, tracker: tracker}
}

func (r *Reader) HomeFeed(ctx context.Context) Feed {
	posts, err := r.src.PublishedPosts(ctx, FeedLimit)
	if err != nil {
		logReadError(err, "home feed")
		return Feed{}
	}
	if len(posts) == 0 {
		return Feed{}
	}
	return Feed{Hero: &posts[0], Latest: posts[1:]}
}

// Post looks a post up by slug and records a view. Drafts are only
// returned when includeDrafts is set and are never counted.
func (r *Reader) Post(ctx context.Context, slug string, includeDrafts bool) *models.Post {
	post, err := r.src.PostBySlug(ctx, slug)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logReadError(err, "post")
		}
		return nil
	}
	if !post.Published() {
		if !includeDrafts {
			return nil
		}
		return post
	}

	r.tracker.TrackView(post.ID)
	return post
}

func (r *Reader) Related(ctx context.Context, post *models.Post) []models.Post {
	posts, err := r.src.RelatedPosts(ctx, post, RelatedLimit)
	if err != nil {
		logReadError(err, "related posts")
		return nil
	}
	return posts
}

func (r *Reader) Category(ctx context.Context, slug string) CategoryListing {
	category, err := r.src.CategoryBySlug(ctx, slug)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logReadError(err, "category")
		}
		return CategoryListing{}
	}

	posts, err := r.src.PostsInCategory(ctx, category.ID)
	if err != nil {
		logReadError(err, "category posts")
	}
	return CategoryListing{Category: category, Posts: posts}
}

func (r *Reader) Search(ctx context.Context, query string) SearchResults {
	query = strings.TrimSpace(query)
	if query == "" {
		return SearchResults{}
	}

	posts, err := r.src.SearchPosts(ctx, query, SearchLimit)
	if err != nil {
		logReadError(err, "search")
	}
	return SearchResults{Query: query, Posts: posts, Searched: true}
}

func (r *Reader) Trending(ctx context.Context) []models.Post {
	posts, err := r.src.TrendingPosts(ctx, TrendingLimit)
	if err != nil {
		logReadError(err, "trending")
		return nil
	}
	return posts
}

func (r *Reader) Categories(ctx context.Context) []models.Category {
	categories, err := r.src.Categories(ctx)
	if err != nil {
		logReadError(err, "categories")
		return nil
	}
	return categories
}

// AllPublished lists every published post, newest first.
func (r *Reader) AllPublished(ctx context.Context) []models.Post {
	posts, err := r.src.PublishedPosts(ctx, 0)
	if err != nil {
		logReadError(err, "published posts")
		return nil
	}
	return posts
}

func logReadError(err error, query string) {
	log.Warn().Err(err).Str("query", query).Msg("read failed, rendering empty state")
}
