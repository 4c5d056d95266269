package models

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// LinkMode selects which URL a bookmark resolves to when creating raindrops.
type LinkMode string

const (
	// LinkModePermalink uses the X post permalink.
	LinkModePermalink LinkMode = "permalink"
	// LinkModeFirstExternalURL uses the first external URL in the post,
	// falling back to the permalink when the post has none.
	LinkModeFirstExternalURL LinkMode = "first_external_url"
	// LinkModeBoth covers the external URL and the permalink; see [BothBehavior].
	LinkModeBoth LinkMode = "both"
)

// ParseLinkMode validates and converts a link mode name.
func ParseLinkMode(s string) (LinkMode, error) {
	switch LinkMode(s) {
	case LinkModePermalink, LinkModeFirstExternalURL, LinkModeBoth:
		return LinkMode(s), nil
	}
	return "", fmt.Errorf("unknown link mode %q", s)
}

// BothBehavior controls how [LinkModeBoth] materializes.
type BothBehavior string

const (
	// BothOneExternalPlusNote creates one raindrop for the external URL with
	// the permalink stored in the note.
	BothOneExternalPlusNote BothBehavior = "one_external_plus_note"
	// BothTwoRaindrops creates two separate raindrops.
	BothTwoRaindrops BothBehavior = "two_raindrops"
)

// ParseBothBehavior validates and converts a both-behavior name.
func ParseBothBehavior(s string) (BothBehavior, error) {
	switch BothBehavior(s) {
	case BothOneExternalPlusNote, BothTwoRaindrops:
		return BothBehavior(s), nil
	}
	return "", fmt.Errorf("unknown both behavior %q", s)
}

// Bookmark represents a bookmarked post fetched from X. Immutable once fetched.
type Bookmark struct {
	TweetID        string    `json:"tweet_id"`
	Text           string    `json:"text"`
	AuthorUsername string    `json:"author_username,omitempty"`
	AuthorName     string    `json:"author_name,omitempty"`
	CreatedAt      time.Time `json:"created_at,omitzero"`
	Permalink      string    `json:"permalink"`
	ExternalURLs   []string  `json:"external_urls,omitempty"`
}

// Title derives a display title for the bookmark, preferring author info.
func (b Bookmark) Title() string {
	if b.AuthorUsername == "" {
		return truncate(b.Text, 150)
	}
	prefix := "@" + b.AuthorUsername
	if b.AuthorName != "" {
		prefix = fmt.Sprintf("%s (%s)", b.AuthorName, prefix)
	}
	if utf8.RuneCountInString(b.Text) > 100 {
		return truncate(fmt.Sprintf("%s: %s...", prefix, truncate(b.Text, 100)), 150)
	}
	return fmt.Sprintf("%s: %s", prefix, b.Text)
}

// truncate cuts a string to at most n runes, never splitting a rune.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// RaindropTarget describes one raindrop to create. Produced by link resolution,
// consumed immediately by the Raindrop client, never persisted.
type RaindropTarget struct {
	Link         string
	Title        string
	Excerpt      string
	Note         string
	Tags         []string
	CollectionID int64
}

// Collection represents a Raindrop.io collection.
type Collection struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Count    int    `json:"count"`
	ParentID int64  `json:"parent_id,omitempty"`
}

// CreatedRaindrop represents a successfully created raindrop.
type CreatedRaindrop struct {
	ID           int64  `json:"id"`
	Link         string `json:"link"`
	Title        string `json:"title"`
	CollectionID int64  `json:"collection_id"`
}

// SyncResult accumulates counters for one sync run.
type SyncResult struct {
	Total         int      `json:"total"`
	NewlySynced   int      `json:"newly_synced"`
	AlreadySynced int      `json:"already_synced"`
	Failed        int      `json:"failed"`
	DeletedFromX  int      `json:"deleted_from_x"`
	Errors        []string `json:"errors,omitempty"`
}

// AddError records a per-record error message on the result.
func (r *SyncResult) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}
