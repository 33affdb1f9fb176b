package content

import (
	"net/url"
	"strings"
	"time"

	"nikwetu/models"
)

const (
	PlaceholderImage = "/public/placeholder.svg"
	StaffWriter      = "Staff Writer"
)

// PostURL is /<categorySlug>/<slug> for categorized posts and /post/<slug>
// otherwise.
func PostURL(post models.Post) string {
	if post.Category != nil && post.Category.Slug != "" {
		return "/" + post.Category.Slug + "/" + post.Slug
	}
	return "/post/" + post.Slug
}

func ImageSrc(image *string) string {
	if image == nil || strings.TrimSpace(*image) == "" {
		return PlaceholderImage
	}
	return *image
}

// FormatDate renders "February 16, 2026".
func FormatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format("January 2, 2006")
}

// FormatShortDate renders "Feb 16, 2026".
func FormatShortDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format("Jan 2, 2006")
}

func Byline(post models.Post) string {
	if post.Author != nil && strings.TrimSpace(post.Author.DisplayName) != "" {
		return post.Author.DisplayName
	}
	return StaffWriter
}

type ShareLink struct {
	Network string
	URL     string
}

// ShareLinks builds the share-intent URLs for an absolute page URL.
func ShareLinks(pageURL, title string) []ShareLink {
	u := url.QueryEscape(pageURL)
	t := url.QueryEscape(title)
	return []ShareLink{
		{Network: "Facebook", URL: "https://www.facebook.com/sharer/sharer.php?u=" + u},
		{Network: "Twitter", URL: "https://twitter.com/intent/tweet?url=" + u + "&text=" + t},
		{Network: "WhatsApp", URL: "https://wa.me/?text=" + t + "%20" + u},
	}
}
