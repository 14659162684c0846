// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"testing"

	"github.com/halcyonfm/trackline/internal/models"
	"github.com/halcyonfm/trackline/internal/services"
)

// MockProvider is a configurable test double for [services.Provider]. Each
// endpoint serves the items assigned to it, or Err when set.
type MockProvider struct {
	FeedItems       []models.RawItem
	UserTrackItems  []models.RawItem
	CollectionItems []models.RawItem
	TrendingItems   []models.RawItem
	SearchItems     []models.RawItem
	Err             error
	Calls           int
}

func (m *MockProvider) GetFeed(ctx context.Context, args services.PageArgs) ([]models.RawItem, error) {
	m.Calls++
	return m.FeedItems, m.Err
}

func (m *MockProvider) GetUserTracks(ctx context.Context, userID int64, args services.PageArgs) ([]models.RawItem, error) {
	m.Calls++
	return m.UserTrackItems, m.Err
}

func (m *MockProvider) GetCollection(ctx context.Context, collectionID int64, args services.PageArgs) ([]models.RawItem, error) {
	m.Calls++
	return m.CollectionItems, m.Err
}

func (m *MockProvider) GetTrending(ctx context.Context, args services.PageArgs) ([]models.RawItem, error) {
	m.Calls++
	return m.TrendingItems, m.Err
}

func (m *MockProvider) Search(ctx context.Context, query string, args services.PageArgs) ([]models.RawItem, error) {
	m.Calls++
	return m.SearchItems, m.Err
}

func (m *MockProvider) Name() string { return "mock" }

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
