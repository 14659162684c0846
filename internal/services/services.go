// package services defines interface Provider for catalog metadata APIs
package services

import (
	"context"

	"github.com/halcyonfm/trackline/internal/models"
)

// PageArgs describes one page request against a provider endpoint.
type PageArgs struct {
	Offset  int
	Limit   int
	Payload map[string]any // endpoint-specific parameters, passed through opaquely
}

// Provider is the metadata provider contract consumed by the fetch pipeline.
//
// Every method returns the raw ordered items of one page. A nil slice with a
// nil error means "nothing to do"; null elements within a page survive
// decoding as null [models.RawItem] values so callers can count them.
type Provider interface {
	// GetFeed retrieves a page of the signed-in user's feed, mixing tracks
	// and collections.
	GetFeed(ctx context.Context, args PageArgs) ([]models.RawItem, error)

	// GetUserTracks retrieves a page of tracks owned by the given user.
	GetUserTracks(ctx context.Context, userID int64, args PageArgs) ([]models.RawItem, error)

	// GetCollection retrieves the collection with the given id, including its
	// ordered nested track references.
	GetCollection(ctx context.Context, collectionID int64, args PageArgs) ([]models.RawItem, error)

	// GetTrending retrieves a page of the trending tracks lineup.
	GetTrending(ctx context.Context, args PageArgs) ([]models.RawItem, error)

	// Search retrieves a page of search results for the query.
	Search(ctx context.Context, query string, args PageArgs) ([]models.RawItem, error)

	// Name returns the provider name (e.g. "catalog").
	Name() string
}
