// Package provider wraps the directory provider API: credential injection,
// paginated retrieval and error classification. It never touches the store.
package provider

import (
	"context"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
)

//go:generate mockgen -destination=mocks/mock_provider.go -package=mocks -source=provider.go Fetcher,Session

// Collection names a paginated list exposed by the provider
type Collection string

const (
	// CollectionUsers lists the directory users of the customer
	CollectionUsers Collection = "users"

	// CollectionGrants lists the OAuth grants one user gave to third-party applications
	CollectionGrants Collection = "grants"

	// CollectionScopes lists the scopes of one grant
	CollectionScopes Collection = "scopes"
)

// Credentials is the OAuth2 token pair a sync runs with.
// It travels between stages, so it is JSON encoded.
type Credentials struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	TokenType    string    `json:"tokenType,omitempty"`
	Expiry       time.Time `json:"expiry,omitzero"`
}

// Token converts the credentials to an oauth2 token
func (c Credentials) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    c.TokenType,
		Expiry:       c.Expiry,
	}
}

// CredentialsFromToken converts an oauth2 token to credentials
func CredentialsFromToken(t *oauth2.Token) Credentials {
	if t == nil {
		return Credentials{}
	}
	return Credentials{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		Expiry:       t.Expiry,
	}
}

// Request identifies one collection to fetch
type Request struct {
	Collection Collection

	// UserKey scopes grants and scopes to a user
	UserKey string

	// ClientID scopes scopes to one grant of UserKey
	ClientID string
}

// Page is one page of raw items
type Page struct {
	Items []gjson.Result

	// NextPageToken is empty on the last page
	NextPageToken string
}

// Fetcher opens authenticated sessions against the provider
type Fetcher interface {
	// Open prepares a session for the given credentials. No network call is made.
	Open(ctx context.Context, creds Credentials) (Session, error)
}

// Session fetches collections with one set of credentials.
// Every error it returns is a *Error.
type Session interface {
	// FetchPage retrieves a single page
	FetchPage(ctx context.Context, req Request, pageToken string) (*Page, error)

	// FetchAll retrieves every page of a collection
	FetchAll(ctx context.Context, req Request) ([]gjson.Result, error)

	// FetchEach runs FetchAll for every request with bounded concurrency.
	// Results are in request order; the first error cancels the rest.
	FetchEach(ctx context.Context, reqs []Request) ([][]gjson.Result, error)

	// Credentials returns the current token pair, refreshed if the session had to
	Credentials() Credentials
}
