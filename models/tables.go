package models

import (
	"database/sql/driver"
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusPublished PostStatus = "published"
)

type Category struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Slug      string    `gorm:"not null;uniqueIndex" json:"slug"`
	CreatedAt time.Time `json:"created_at"`
}

// Profile is the public face of an identity; its ID equals the auth user id.
type Profile struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

type Post struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Title         string     `gorm:"not null" json:"title"`
	Slug          string     `gorm:"not null;uniqueIndex" json:"slug"`
	Excerpt       *string    `gorm:"type:text" json:"excerpt"`
	Content       string     `gorm:"type:text" json:"content"`
	FeaturedImage *string    `json:"featured_image"`
	CategoryID    *uuid.UUID `gorm:"type:uuid;index" json:"category_id"`
	Category      *Category  `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	AuthorID      *uuid.UUID `gorm:"type:uuid;index" json:"author_id"`
	Author        *Profile   `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Tags          TagList    `json:"tags"`
	Status        PostStatus `gorm:"not null;default:draft;index" json:"status"`
	Views         int64      `gorm:"not null;default:0" json:"views"`
	PublishedAt   *time.Time `gorm:"index" json:"published_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// User backs the local auth provider only. The hosted provider keeps its own.
type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email        string    `gorm:"not null;uniqueIndex" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

func (c *Category) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (p *Post) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

func (p Post) Published() bool {
	return p.Status == PostStatusPublished
}

func (c Category) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ID, validation.By(requireID)),
		validation.Field(&c.Name, validation.Required),
		validation.Field(&c.Slug, validation.Required),
	)
}

func (p Profile) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.ID, validation.By(requireID)),
	)
}

// Validate checks a row read from the store before it reaches a page.
func (p Post) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.ID, validation.By(requireID)),
		validation.Field(&p.Title, validation.Required),
		validation.Field(&p.Slug, validation.Required),
		validation.Field(&p.Status, validation.Required, validation.In(PostStatusDraft, PostStatusPublished)),
		validation.Field(&p.Views, validation.Min(int64(0))),
	)
}

func requireID(value any) error {
	id, _ := value.(uuid.UUID)
	if id == uuid.Nil {
		return errors.New("must be a valid id")
	}
	return nil
}

// TagList is a text[] on Postgres and the same array literal in a text
// column elsewhere.
type TagList []string

func (t TagList) Value() (driver.Value, error) {
	if t == nil {
		return pq.StringArray{}.Value()
	}
	return pq.StringArray(t).Value()
}

func (t *TagList) Scan(src any) error {
	var arr pq.StringArray
	if err := arr.Scan(src); err != nil {
		return err
	}
	*t = TagList(arr)
	return nil
}

func (TagList) GormDataType() string {
	return "text"
}

func (TagList) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "text[]"
	}
	return "text"
}
