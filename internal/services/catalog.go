// Catalog API implementation of [Provider]
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/halcyonfm/trackline/internal/models"
	"github.com/halcyonfm/trackline/internal/shared"
	"golang.org/x/oauth2/clientcredentials"
)

const defaultCatalogBaseURL = "https://api.trackline.fm"

// catalogEnvelope is the standard response wrapper of the catalog API. The
// data array may contain JSON nulls, which decode to null RawItem values,
// and the whole body may be "null" for an empty response.
type catalogEnvelope struct {
	Data []models.RawItem `json:"data"`
}

// CatalogService implements [Provider] against the trackline catalog HTTP
// API. Public endpoints work unauthenticated; Authenticate installs an OAuth2
// client-credentials transport for gated ones.
type CatalogService struct {
	baseURL    string
	httpClient *http.Client
	tokenURL   string
	authed     bool
}

// NewCatalogService creates a catalog provider with the given base URL,
// falling back to the public API when empty. A nil client uses
// http.DefaultClient.
func NewCatalogService(baseURL string, client *http.Client) *CatalogService {
	if baseURL == "" {
		baseURL = defaultCatalogBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &CatalogService{
		baseURL:    baseURL,
		httpClient: client,
		tokenURL:   baseURL + "/oauth/token",
	}
}

// Authenticate configures OAuth2 client-credentials auth. Expects client_id
// and client_secret in credentials; an optional token_url overrides the
// default <base>/oauth/token endpoint.
func (c *CatalogService) Authenticate(ctx context.Context, credentials map[string]string) error {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}
	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	tokenURL := c.tokenURL
	if override, ok := credentials["token_url"]; ok && override != "" {
		tokenURL = override
	}

	config := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
	}

	// The returned client refreshes expired tokens transparently.
	c.httpClient = config.Client(ctx)
	c.authed = true
	return nil
}

// Name returns the provider name.
func (c *CatalogService) Name() string { return "catalog" }

// GetFeed retrieves a page of the feed lineup, mixing tracks and collections.
func (c *CatalogService) GetFeed(ctx context.Context, args PageArgs) ([]models.RawItem, error) {
	if !c.authed {
		return nil, fmt.Errorf("%w: the feed requires client credentials", shared.ErrNotAuthenticated)
	}
	return c.getItems(ctx, "/v1/feed", pageQuery(args))
}

// GetUserTracks retrieves a page of tracks owned by the given user.
func (c *CatalogService) GetUserTracks(ctx context.Context, userID int64, args PageArgs) ([]models.RawItem, error) {
	path := fmt.Sprintf("/v1/users/%d/tracks", userID)
	return c.getItems(ctx, path, pageQuery(args))
}

// GetCollection retrieves the collection with the given id. The response is a
// single-element page carrying the collection and its ordered track
// references.
func (c *CatalogService) GetCollection(ctx context.Context, collectionID int64, args PageArgs) ([]models.RawItem, error) {
	path := fmt.Sprintf("/v1/playlists/%d", collectionID)
	return c.getItems(ctx, path, pageQuery(args))
}

// GetTrending retrieves a page of the trending tracks lineup.
func (c *CatalogService) GetTrending(ctx context.Context, args PageArgs) ([]models.RawItem, error) {
	return c.getItems(ctx, "/v1/tracks/trending", pageQuery(args))
}

// Search retrieves a page of search results for the query.
func (c *CatalogService) Search(ctx context.Context, query string, args PageArgs) ([]models.RawItem, error) {
	q := pageQuery(args)
	q.Set("query", query)
	return c.getItems(ctx, "/v1/search", q)
}

func pageQuery(args PageArgs) url.Values {
	q := url.Values{}
	q.Set("offset", strconv.Itoa(args.Offset))
	q.Set("limit", strconv.Itoa(args.Limit))
	for key, value := range args.Payload {
		q.Set(key, fmt.Sprint(value))
	}
	return q
}

// getItems performs a GET against the catalog API and decodes the item
// envelope. A JSON null body yields (nil, nil).
func (c *CatalogService) getItems(ctx context.Context, path string, query url.Values) ([]models.RawItem, error) {
	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", shared.ErrNotFound, path)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d for %s", shared.ErrAPIRequest, resp.StatusCode, path)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var envelope *catalogEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if envelope == nil {
		// Whole-response null: nothing to do, no error.
		return nil, nil
	}
	return envelope.Data, nil
}
