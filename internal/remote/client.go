// Package remote reads source trees from GitHub through its REST API. Each
// scan runs in a Session that meters API calls against a Budget and fetches
// file content lazily by blob id.
package remote

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v30/github"
	"golang.org/x/oauth2"
)

// Options configures a Client. The zero value talks to api.github.com
// without authentication.
type Options struct {
	// BaseURL overrides the API endpoint (GitHub Enterprise, tests).
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client is a thin, concurrency-safe wrapper around a go-github client.
type Client struct {
	gh  *github.Client
	log *slog.Logger
}

// NewClient builds a Client. A token switches to oauth2 bearer auth.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	hc := opts.HTTPClient
	if opts.Token != "" {
		if hc != nil {
			ctx = context.WithValue(ctx, oauth2.HTTPClient, hc)
		}
		hc = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token}))
	}
	gh := github.NewClient(hc)
	gh.UserAgent = "piiscan"
	if opts.BaseURL != "" {
		base := opts.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("parse github api url: %w", err)
		}
		gh.BaseURL = u
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Client{gh: gh, log: log}, nil
}

// NewSession starts a metered session with a budget of n calls (n <= 0
// selects DefaultBudget).
func (c *Client) NewSession(n int) *Session {
	return &Session{gh: c.gh, budget: NewBudget(n), log: c.log}
}

// Languages returns bytes of code per language as reported by the provider.
func (c *Client) Languages(ctx context.Context, owner, repo string) (map[string]int64, error) {
	if err := validateRepo(owner, repo); err != nil {
		return nil, err
	}
	langs, _, err := c.gh.Repositories.ListLanguages(ctx, owner, repo)
	recordCall(ctx, "languages", err)
	if err != nil {
		return nil, classify(err, fmt.Sprintf("languages of %s/%s", owner, repo))
	}
	out := make(map[string]int64, len(langs))
	for lang, n := range langs {
		out[lang] = int64(n)
	}
	return out, nil
}

// LatestRelease returns the tag of the newest published release.
func (c *Client) LatestRelease(ctx context.Context, owner, repo string) (string, error) {
	rel, _, err := c.gh.Repositories.GetLatestRelease(ctx, owner, repo)
	recordCall(ctx, "latest_release", err)
	if err != nil {
		return "", classify(err, fmt.Sprintf("latest release of %s/%s", owner, repo))
	}
	if tag := rel.GetTagName(); tag != "" {
		return tag, nil
	}
	return rel.GetName(), nil
}
