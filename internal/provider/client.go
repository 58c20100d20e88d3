package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/tidwall/gjson"
	"go.uber.org/ratelimit"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github.com/stitchflow-website/dirsync/internal/config"
	"github.com/stitchflow-website/dirsync/internal/httpclient"
)

const (
	directoryPath = "/admin/directory/v1/users"

	// customerAlias selects the customer of the authenticated admin
	customerAlias = "my_customer"
)

// Options configures the provider client
type Options struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string

	PageSize          int
	RequestsPerSecond int
	MaxRetries        int
	Concurrency       int
	Timeout           time.Duration

	// NewBackOff builds the retry schedule of one call; defaults to exponential backoff
	NewBackOff func() backoff.BackOff
}

// OptionsFromConfig builds client options from the provider configuration
func OptionsFromConfig(cfg *config.ProviderConfig) (Options, error) {
	secret, err := cfg.GetClientSecret()
	if err != nil {
		return Options{}, fmt.Errorf("failed to read provider client secret: %w", err)
	}
	return Options{
		BaseURL:           cfg.GetBaseURL(),
		TokenURL:          cfg.GetTokenURL(),
		ClientID:          cfg.ClientID,
		ClientSecret:      secret,
		PageSize:          cfg.GetPageSize(),
		RequestsPerSecond: cfg.GetRequestsPerSecond(),
		MaxRetries:        cfg.GetMaxRetries(),
		Concurrency:       cfg.GetConcurrency(),
		Timeout:           cfg.GetTimeout(),
	}, nil
}

// client is the Fetcher for the directory API. The rate limiter is shared by
// every session so the whole process stays under the configured pace.
type client struct {
	opts    Options
	limiter ratelimit.Limiter
}

// NewFetcher creates a provider client
func NewFetcher(opts Options) Fetcher {
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.NewBackOff == nil {
		opts.NewBackOff = func() backoff.BackOff { return backoff.NewExponentialBackOff() }
	}

	limiter := ratelimit.NewUnlimited()
	if opts.RequestsPerSecond > 0 {
		limiter = ratelimit.New(opts.RequestsPerSecond)
	}

	return &client{opts: opts, limiter: limiter}
}

// Open implements Fetcher
func (c *client) Open(ctx context.Context, creds Credentials) (Session, error) {
	if creds.AccessToken == "" {
		return nil, &Error{Kind: ErrorKindPermanent, Message: "access token is required"}
	}

	oauthCfg := &oauth2.Config{
		ClientID:     c.opts.ClientID,
		ClientSecret: c.opts.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  c.opts.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	ts := oauthCfg.TokenSource(ctx, creds.Token())

	return &session{
		client:  c,
		initial: creds,
		tokens:  ts,
		http:    httpclient.NewClient(oauth2.NewClient(ctx, ts), c.opts.Timeout),
	}, nil
}

type session struct {
	*client
	initial Credentials
	tokens  oauth2.TokenSource
	http    httpclient.Client
}

// Credentials implements Session
func (s *session) Credentials() Credentials {
	tok, err := s.tokens.Token()
	if err != nil {
		return s.initial
	}
	return CredentialsFromToken(tok)
}

// FetchPage implements Session
func (s *session) FetchPage(ctx context.Context, req Request, pageToken string) (*Page, error) {
	attempt := 0
	page, err := backoff.Retry(ctx, func() (*Page, error) {
		attempt++
		p, err := s.fetchPageOnce(ctx, req, pageToken)
		if err != nil && !IsTransient(err) {
			return nil, backoff.Permanent(err)
		}
		return p, err
	},
		backoff.WithBackOff(s.opts.NewBackOff()),
		backoff.WithMaxTries(uint(s.opts.MaxRetries+1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			slog.Warn("Retrying provider request",
				"collection", req.Collection,
				"attempt", attempt,
				"next_retry_in", next,
				"error", err)
		}),
	)
	if err != nil {
		perr := classify(err)
		// A user deleted since the users stage has no tokens left to list.
		if req.Collection == CollectionGrants && perr.StatusCode == http.StatusNotFound {
			slog.Debug("Directory user not found, treating as no grants", "user_key", req.UserKey)
			return &Page{}, nil
		}
		return nil, perr
	}
	return page, nil
}

func (s *session) fetchPageOnce(ctx context.Context, req Request, pageToken string) (*Page, error) {
	// Token failures are reported on their own; letting the transport hit them
	// would bury the refresh error inside a url.Error.
	if _, err := s.tokens.Token(); err != nil {
		return nil, tokenError(err)
	}

	target, err := s.pageURL(req, pageToken)
	if err != nil {
		return nil, &Error{Kind: ErrorKindPermanent, Message: err.Error(), Err: err}
	}

	s.limiter.Take()
	body, err := s.http.Get(ctx, target)
	if err != nil {
		return nil, classify(err)
	}

	if len(body) == 0 {
		return &Page{}, nil
	}
	if !gjson.ValidBytes(body) {
		return nil, &Error{Kind: ErrorKindPermanent, Message: fmt.Sprintf("malformed %s response", req.Collection)}
	}

	doc := gjson.ParseBytes(body)
	return &Page{
		Items:         doc.Get(itemsField(req.Collection)).Array(),
		NextPageToken: doc.Get("nextPageToken").String(),
	}, nil
}

// FetchAll implements Session
func (s *session) FetchAll(ctx context.Context, req Request) ([]gjson.Result, error) {
	var (
		items     []gjson.Result
		pageToken string
		seen      = map[string]bool{}
	)
	for {
		page, err := s.FetchPage(ctx, req, pageToken)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)

		if page.NextPageToken == "" {
			return items, nil
		}
		if seen[page.NextPageToken] {
			return nil, &Error{
				Kind:    ErrorKindPermanent,
				Message: fmt.Sprintf("pagination of %s repeated page token %q", req.Collection, page.NextPageToken),
			}
		}
		seen[page.NextPageToken] = true
		pageToken = page.NextPageToken
	}
}

// FetchEach implements Session
func (s *session) FetchEach(ctx context.Context, reqs []Request) ([][]gjson.Result, error) {
	results := make([][]gjson.Result, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i, req := range reqs {
		g.Go(func() error {
			items, err := s.FetchAll(gctx, req)
			if err != nil {
				return err
			}
			results[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		var perr *Error
		if errors.As(err, &perr) {
			return nil, perr
		}
		return nil, classify(err)
	}
	return results, nil
}

func (s *session) pageURL(req Request, pageToken string) (string, error) {
	var path string
	query := url.Values{}

	switch req.Collection {
	case CollectionUsers:
		path = directoryPath
		query.Set("customer", customerAlias)
		query.Set("projection", "full")
		if s.opts.PageSize > 0 {
			query.Set("maxResults", strconv.Itoa(s.opts.PageSize))
		}
	case CollectionGrants:
		if req.UserKey == "" {
			return "", fmt.Errorf("user key is required to list grants")
		}
		path = directoryPath + "/" + url.PathEscape(req.UserKey) + "/tokens"
	case CollectionScopes:
		if req.UserKey == "" || req.ClientID == "" {
			return "", fmt.Errorf("user key and client id are required to read grant scopes")
		}
		path = directoryPath + "/" + url.PathEscape(req.UserKey) + "/tokens/" + url.PathEscape(req.ClientID)
	default:
		return "", fmt.Errorf("unknown collection %q", req.Collection)
	}

	if pageToken != "" {
		query.Set("pageToken", pageToken)
	}

	target := s.opts.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	return target, nil
}

func itemsField(c Collection) string {
	switch c {
	case CollectionUsers:
		return "users"
	case CollectionScopes:
		return "scopes"
	default:
		return "items"
	}
}
