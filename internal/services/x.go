package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/x2raindrop/internal/models"
	"github.com/desertthunder/x2raindrop/internal/shared"
)

const defaultXBaseURL = "https://api.x.com/2"

// bookmarksPageSize is the maximum the bookmarks endpoint allows per page.
const bookmarksPageSize = 100

var urlPattern = regexp.MustCompile(`https?://[^\s]+`)

// XService reads and deletes the authenticated user's bookmarks through the
// X API v2. All requests flow through the shared [Executor].
type XService struct {
	baseURL string
	exec    *Executor
	logger  *log.Logger

	userID string
}

// XServiceOpts contains configuration options for creating an XService.
type XServiceOpts struct {
	BaseURL  string
	Executor *Executor
	Logger   *log.Logger
}

// NewXService creates an XService with the provided options.
func NewXService(opts XServiceOpts) *XService {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultXBaseURL
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &XService{
		baseURL: strings.TrimSuffix(opts.BaseURL, "/"),
		exec:    opts.Executor,
		logger:  opts.Logger,
	}
}

// RequestCount reports requests sent through the underlying executor.
func (s *XService) RequestCount() int {
	return s.exec.RequestCount()
}

type xUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

type xEntityURL struct {
	URL         string `json:"url"`
	ExpandedURL string `json:"expanded_url"`
	UnwoundURL  string `json:"unwound_url"`
}

type xTweet struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	AuthorID  string `json:"author_id"`
	CreatedAt string `json:"created_at"`
	Entities  struct {
		URLs []xEntityURL `json:"urls"`
	} `json:"entities"`
}

type xBookmarksPage struct {
	Data     []xTweet `json:"data"`
	Includes struct {
		Users []xUser `json:"users"`
	} `json:"includes"`
	Meta struct {
		ResultCount int    `json:"result_count"`
		NextToken   string `json:"next_token"`
	} `json:"meta"`
}

// AuthenticatedUserID resolves and caches the id of the token's owner.
func (s *XService) AuthenticatedUserID(ctx context.Context) (string, error) {
	if s.userID != "" {
		return s.userID, nil
	}

	resp, err := s.exec.Do(ctx, http.MethodGet, s.baseURL+"/users/me", nil)
	if err != nil {
		return "", fmt.Errorf("failed to look up authenticated user: %w", err)
	}

	var payload struct {
		Data xUser `json:"data"`
	}
	if err := resp.Decode(&payload); err != nil {
		return "", err
	}
	if payload.Data.ID == "" {
		return "", fmt.Errorf("%w: users/me returned no id", shared.ErrAPIRequest)
	}

	s.userID = payload.Data.ID
	s.logger.Debug("resolved authenticated user", "user_id", s.userID, "username", payload.Data.Username)
	return s.userID, nil
}

// Bookmarks streams every bookmark of the authenticated user, oldest page
// last, invoking fn once per bookmark. An error from fn halts pagination and
// is returned unchanged.
func (s *XService) Bookmarks(ctx context.Context, fn func(models.Bookmark) error) error {
	userID, err := s.AuthenticatedUserID(ctx)
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/users/%s/bookmarks", s.baseURL, userID)
	pageToken := ""
	page := 0

	for {
		query := url.Values{}
		query.Set("max_results", fmt.Sprint(bookmarksPageSize))
		query.Set("expansions", "author_id")
		query.Set("tweet.fields", "created_at,text,entities,author_id")
		query.Set("user.fields", "username,name")
		if pageToken != "" {
			query.Set("pagination_token", pageToken)
		}

		resp, err := s.exec.Do(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
		if err != nil {
			return fmt.Errorf("failed to fetch bookmarks page %d: %w", page+1, err)
		}

		var body xBookmarksPage
		if err := resp.Decode(&body); err != nil {
			return err
		}
		page++
		s.logger.Debug("fetched bookmarks page", "page", page, "count", len(body.Data))

		users := make(map[string]xUser, len(body.Includes.Users))
		for _, u := range body.Includes.Users {
			users[u.ID] = u
		}

		for _, tweet := range body.Data {
			if err := fn(toBookmark(tweet, users[tweet.AuthorID])); err != nil {
				return err
			}
		}

		if body.Meta.NextToken == "" {
			return nil
		}
		pageToken = body.Meta.NextToken
	}
}

// DeleteBookmark removes one bookmark from the authenticated user's account.
func (s *XService) DeleteBookmark(ctx context.Context, tweetID string) error {
	userID, err := s.AuthenticatedUserID(ctx)
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/users/%s/bookmarks/%s", s.baseURL, userID, tweetID)
	resp, err := s.exec.Do(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to delete bookmark %s: %w", tweetID, err)
	}

	var payload struct {
		Data struct {
			Bookmarked bool `json:"bookmarked"`
		} `json:"data"`
	}
	if err := resp.Decode(&payload); err != nil {
		return err
	}
	if payload.Data.Bookmarked {
		s.logger.Warn("delete reported bookmark still present", "tweet_id", tweetID)
	}
	return nil
}

// toBookmark converts an API tweet plus its author into the domain shape.
func toBookmark(tweet xTweet, author xUser) models.Bookmark {
	b := models.Bookmark{
		TweetID:        tweet.ID,
		Text:           tweet.Text,
		AuthorUsername: author.Username,
		AuthorName:     author.Name,
		Permalink:      permalink(author.Username, tweet.ID),
		ExternalURLs:   externalURLs(tweet),
	}
	if tweet.CreatedAt != "" {
		if ts, err := time.Parse(time.RFC3339, tweet.CreatedAt); err == nil {
			b.CreatedAt = ts
		}
	}
	return b
}

// permalink builds the canonical tweet URL, falling back to the /i/status
// form when the author expansion is missing.
func permalink(username, tweetID string) string {
	if username == "" {
		return "https://x.com/i/status/" + tweetID
	}
	return fmt.Sprintf("https://x.com/%s/status/%s", username, tweetID)
}

// externalURLs extracts outbound links from a tweet, preferring the entity
// expansions and falling back to a regex scan of the raw text. Shortener and
// platform-internal links are dropped; order and duplicates are preserved
// otherwise.
func externalURLs(tweet xTweet) []string {
	var out []string
	for _, u := range tweet.Entities.URLs {
		link := u.ExpandedURL
		if link == "" {
			link = u.UnwoundURL
		}
		if link == "" {
			link = u.URL
		}
		if isExternalURL(link) {
			out = append(out, link)
		}
	}
	if len(out) > 0 {
		return out
	}

	for _, link := range urlPattern.FindAllString(tweet.Text, -1) {
		link = strings.TrimRight(link, ".,;:!?)")
		if isExternalURL(link) {
			out = append(out, link)
		}
	}
	return out
}

func isExternalURL(link string) bool {
	if link == "" {
		return false
	}
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	switch host {
	case "t.co", "twitter.com", "x.com":
		return false
	}
	return host != ""
}
