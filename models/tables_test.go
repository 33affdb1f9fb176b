package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostValidate(t *testing.T) {
	post := Post{ID: uuid.New(), Title: "Budget passes", Slug: "budget-passes", Status: PostStatusPublished}
	assert.NoError(t, post.Validate())

	missingID := post
	missingID.ID = uuid.Nil
	assert.Error(t, missingID.Validate())

	missingTitle := post
	missingTitle.Title = ""
	assert.Error(t, missingTitle.Validate())

	badStatus := post
	badStatus.Status = "archived"
	assert.Error(t, badStatus.Validate())

	negative := post
	negative.Views = -1
	assert.Error(t, negative.Validate())
}

func TestCategoryValidate(t *testing.T) {
	assert.NoError(t, Category{ID: uuid.New(), Name: "Sports", Slug: "sports"}.Validate())
	assert.Error(t, Category{ID: uuid.New(), Name: "Sports"}.Validate())
	assert.Error(t, Category{Name: "Sports", Slug: "sports"}.Validate())
}

func TestTagListRoundTrip(t *testing.T) {
	value, err := TagList{"politics", "county assembly"}.Value()
	require.NoError(t, err)

	var tags TagList
	require.NoError(t, tags.Scan(value))
	assert.Equal(t, TagList{"politics", "county assembly"}, tags)
}

func TestTagListNilStoresEmptyArray(t *testing.T) {
	value, err := TagList(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "{}", value)

	var tags TagList
	require.NoError(t, tags.Scan([]byte("{}")))
	assert.Empty(t, tags)
}
