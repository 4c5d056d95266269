// package testing provides test doubles shared across package tests: canned
// HTTP transports, in-memory sync pipeline fakes, and response builders.
package testing

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/desertthunder/x2raindrop/internal/models"
)

// RoundTripFunc adapts a function to [http.RoundTripper].
type RoundTripFunc func(*http.Request) (*http.Response, error)

func (f RoundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// SequenceTransport replays a fixed sequence of responses, one per request,
// and records every request it saw. Requests beyond the sequence fail.
type SequenceTransport struct {
	mu        sync.Mutex
	responses []*http.Response
	errs      []error
	Requests  []*http.Request
}

// NewSequenceTransport creates a transport replaying the given responses in order.
func NewSequenceTransport(responses ...*http.Response) *SequenceTransport {
	return &SequenceTransport{responses: responses, errs: make([]error, len(responses))}
}

// AddError appends a transport-level failure to the sequence.
func (t *SequenceTransport) AddError(err error) *SequenceTransport {
	t.responses = append(t.responses, nil)
	t.errs = append(t.errs, err)
	return t
}

// Add appends a response to the sequence.
func (t *SequenceTransport) Add(resp *http.Response) *SequenceTransport {
	t.responses = append(t.responses, resp)
	t.errs = append(t.errs, nil)
	return t
}

func (t *SequenceTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := len(t.Requests)
	t.Requests = append(t.Requests, req)
	if idx >= len(t.responses) {
		return nil, fmt.Errorf("unexpected request %d: %s %s", idx+1, req.Method, req.URL)
	}
	if t.errs[idx] != nil {
		return nil, t.errs[idx]
	}
	return t.responses[idx], nil
}

// Count returns how many requests the transport has served.
func (t *SequenceTransport) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.Requests)
}

// JSONResponse builds an [http.Response] with a JSON body and optional headers.
func JSONResponse(status int, body string, headers map[string]string) *http.Response {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	for k, v := range headers {
		h.Set(k, v)
	}
	return &http.Response{
		StatusCode: status,
		Header:     h,
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
	}
}

// MockSource is an in-memory bookmark source for engine tests.
type MockSource struct {
	BookmarksList []models.Bookmark
	Deleted       []string
	DeleteErr     error
	StreamErr     error
}

func (m *MockSource) Bookmarks(ctx context.Context, fn func(models.Bookmark) error) error {
	for _, b := range m.BookmarksList {
		if err := fn(b); err != nil {
			return err
		}
	}
	return m.StreamErr
}

func (m *MockSource) DeleteBookmark(ctx context.Context, tweetID string) error {
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	m.Deleted = append(m.Deleted, tweetID)
	return nil
}

// MockDestination is an in-memory raindrop destination for engine tests.
// CreateErrs maps a link to the error its creation should return.
type MockDestination struct {
	Created    []models.RaindropTarget
	CreateErrs map[string]error
	nextID     int64
}

func (m *MockDestination) CreateRaindrop(ctx context.Context, target models.RaindropTarget) (*models.CreatedRaindrop, error) {
	if err := m.CreateErrs[target.Link]; err != nil {
		return nil, err
	}
	m.nextID++
	m.Created = append(m.Created, target)
	return &models.CreatedRaindrop{
		ID:           m.nextID,
		Link:         target.Link,
		Title:        target.Title,
		CollectionID: target.CollectionID,
	}, nil
}

// MemoryLedger is an in-memory sync ledger for engine tests.
type MemoryLedger struct {
	Entries   map[string][]int64
	DeletedFn map[string]bool
	RecordErr error
	LoadErr   error
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		Entries:   make(map[string][]int64),
		DeletedFn: make(map[string]bool),
	}
}

func (m *MemoryLedger) Load() error { return m.LoadErr }

func (m *MemoryLedger) HasSynced(tweetID string) bool {
	_, ok := m.Entries[tweetID]
	return ok
}

func (m *MemoryLedger) Record(tweetID string, destinationIDs []int64, linkMode string) error {
	if m.RecordErr != nil {
		return m.RecordErr
	}
	if _, ok := m.Entries[tweetID]; ok {
		return nil
	}
	m.Entries[tweetID] = destinationIDs
	return nil
}

func (m *MemoryLedger) MarkDeleted(tweetID string) error {
	m.DeletedFn[tweetID] = true
	return nil
}

func (m *MemoryLedger) Count() int { return len(m.Entries) }
