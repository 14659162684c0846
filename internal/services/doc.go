// Package services defines the [Provider] interface for catalog metadata
// providers and implements it for the trackline catalog HTTP API.
//
// # Provider Interface
//
// A provider serves ordered pages of raw items for a lineup: the feed, a
// user's tracks, a collection's contents, or search results. A whole-response
// nil is "nothing to do, no error"; individual null elements inside a page
// are preserved (they decode to null [models.RawItem] values) so the fetch
// pipeline can count them.
//
// # Catalog Implementation
//
// [CatalogService] talks to a JSON HTTP API. Authentication uses OAuth2
// client credentials (golang.org/x/oauth2/clientcredentials); the token
// source refreshes expired tokens transparently. Unauthenticated use is
// supported for public endpoints.
//
// # Error Handling
//
// Services use typed errors from the shared package:
//   - [shared.ErrAPIRequest] : HTTP request failed or non-2xx status
//   - [shared.ErrNotAuthenticated] : endpoint requires Authenticate() first
//   - [shared.ErrNotFound] : the requested lineup source does not exist
package services
