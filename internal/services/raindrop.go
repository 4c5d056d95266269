package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/x2raindrop/internal/models"
	"github.com/desertthunder/x2raindrop/internal/shared"
)

const defaultRaindropBaseURL = "https://api.raindrop.io/rest/v1"

// Raindrop's built-in system collections.
const (
	CollectionUnsorted int64 = -1
	CollectionTrash    int64 = -99
)

// RaindropService creates raindrops and lists collections through the
// Raindrop.io REST API. All requests flow through the shared [Executor].
type RaindropService struct {
	baseURL string
	exec    *Executor
	logger  *log.Logger
}

// RaindropServiceOpts contains configuration options for creating a RaindropService.
type RaindropServiceOpts struct {
	BaseURL  string
	Executor *Executor
	Logger   *log.Logger
}

// NewRaindropService creates a RaindropService with the provided options.
func NewRaindropService(opts RaindropServiceOpts) *RaindropService {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultRaindropBaseURL
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &RaindropService{
		baseURL: strings.TrimSuffix(opts.BaseURL, "/"),
		exec:    opts.Executor,
		logger:  opts.Logger,
	}
}

// RequestCount reports requests sent through the underlying executor.
func (s *RaindropService) RequestCount() int {
	return s.exec.RequestCount()
}

type raindropCollection struct {
	ID     int64  `json:"_id"`
	Title  string `json:"title"`
	Count  int    `json:"count"`
	Parent struct {
		ID int64 `json:"$id"`
	} `json:"parent"`
}

// ListCollections returns the user's root and nested collections.
func (s *RaindropService) ListCollections(ctx context.Context) ([]models.Collection, error) {
	var out []models.Collection
	for _, path := range []string{"/collections", "/collections/childrens"} {
		resp, err := s.exec.Do(ctx, http.MethodGet, s.baseURL+path, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to list collections: %w", err)
		}

		var payload struct {
			Items []raindropCollection `json:"items"`
		}
		if err := resp.Decode(&payload); err != nil {
			return nil, err
		}
		for _, item := range payload.Items {
			out = append(out, models.Collection{
				ID:       item.ID,
				Title:    item.Title,
				Count:    item.Count,
				ParentID: item.Parent.ID,
			})
		}
	}
	return out, nil
}

// CollectionByTitle resolves a collection by case-insensitive title match.
// Zero or multiple matches are configuration errors; an id is the unambiguous
// alternative.
func (s *RaindropService) CollectionByTitle(ctx context.Context, title string) (*models.Collection, error) {
	collections, err := s.ListCollections(ctx)
	if err != nil {
		return nil, err
	}

	var matches []models.Collection
	for _, c := range collections {
		if strings.EqualFold(c.Title, title) {
			matches = append(matches, c)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: no collection titled %q", shared.ErrInvalidConfig, title)
	case 1:
		return &matches[0], nil
	default:
		return nil, fmt.Errorf("%w: %d collections titled %q, use sync.collection_id instead", shared.ErrInvalidConfig, len(matches), title)
	}
}

type raindropPayload struct {
	Link       string   `json:"link"`
	Title      string   `json:"title,omitempty"`
	Excerpt    string   `json:"excerpt,omitempty"`
	Note       string   `json:"note,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	Collection *struct {
		ID int64 `json:"$id"`
	} `json:"collection,omitempty"`
}

// CreateRaindrop creates one raindrop from the target and returns the created
// item as reported by the API.
func (s *RaindropService) CreateRaindrop(ctx context.Context, target models.RaindropTarget) (*models.CreatedRaindrop, error) {
	payload := raindropPayload{
		Link:    target.Link,
		Title:   target.Title,
		Excerpt: target.Excerpt,
		Note:    target.Note,
		Tags:    target.Tags,
	}
	if target.CollectionID != 0 {
		payload.Collection = &struct {
			ID int64 `json:"$id"`
		}{ID: target.CollectionID}
	}

	body, err := shared.MarshalJSON(payload, false)
	if err != nil {
		return nil, err
	}

	resp, err := s.exec.Do(ctx, http.MethodPost, s.baseURL+"/raindrop", body)
	if err != nil {
		return nil, fmt.Errorf("failed to create raindrop for %s: %w", target.Link, err)
	}

	var created struct {
		Item struct {
			ID    int64  `json:"_id"`
			Link  string `json:"link"`
			Title string `json:"title"`
		} `json:"item"`
	}
	if err := resp.Decode(&created); err != nil {
		return nil, err
	}
	if created.Item.ID == 0 {
		return nil, fmt.Errorf("%w: create response missing item id", shared.ErrAPIRequest)
	}

	s.logger.Debug("created raindrop", "id", created.Item.ID, "link", created.Item.Link)
	return &models.CreatedRaindrop{
		ID:           created.Item.ID,
		Link:         created.Item.Link,
		Title:        created.Item.Title,
		CollectionID: target.CollectionID,
	}, nil
}
