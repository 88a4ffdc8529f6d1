// Package social talks to the Mastodon API: searching statuses, replying,
// and publishing posts with media.
package social

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/hyperjump/hiddenclasses/internal/config"
	"github.com/hyperjump/hiddenclasses/internal/models"
	"github.com/hyperjump/hiddenclasses/pkg/utils"
	"github.com/mattn/go-mastodon"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// API is the part of the Mastodon client used here. *mastodon.Client satisfies it.
type API interface {
	Search(ctx context.Context, q string, resolve bool) (*mastodon.Results, error)
	PostStatus(ctx context.Context, toot *mastodon.Toot) (*mastodon.Status, error)
	UploadMedia(ctx context.Context, file string) (*mastodon.Attachment, error)
}

// Client wraps the Mastodon API with search throttling and plain-text conversion.
type Client struct {
	api     API
	limiter *rate.Limiter
	logger  *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithAPI replaces the Mastodon client, e.g. with a fake in tests.
func WithAPI(api API) Option {
	return func(c *Client) { c.api = api }
}

// NewClient creates a client for cfg.BaseURL. Searches are limited to
// cfg.SearchRate requests per second; a non-positive rate disables the limit.
func NewClient(cfg *config.MastodonConfig, opts ...Option) (*Client, error) {
	limit := rate.Inf
	if cfg.SearchRate > 0 {
		limit = rate.Limit(cfg.SearchRate)
	}
	c := &Client{limiter: rate.NewLimiter(limit, 1)}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = utils.OrNop(c.logger)
	if c.api == nil {
		if cfg.BaseURL == "" || cfg.AccessToken == "" {
			return nil, errors.New("mastodon base url and access token must be configured")
		}
		c.api = mastodon.NewClient(&mastodon.Config{
			Server:      cfg.BaseURL,
			AccessToken: cfg.AccessToken,
		})
	}
	return c, nil
}

// SearchStatuses returns the statuses matching query, with HTML content
// converted to plain text.
func (c *Client) SearchStatuses(ctx context.Context, query string) ([]models.Candidate, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	res, err := c.api.Search(ctx, query, false)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	if res == nil {
		return nil, nil
	}
	out := make([]models.Candidate, 0, len(res.Statuses))
	for _, s := range res.Statuses {
		if s == nil {
			continue
		}
		out = append(out, models.Candidate{
			ID:      string(s.ID),
			Content: HTMLToText(s.Content),
			Author:  s.Account.Acct,
			URL:     s.URL,
		})
	}
	c.logger.Debug("mastodon search", zap.String("query", query), zap.Int("statuses", len(out)))
	return out, nil
}

// PostStatus publishes text with optional attached media.
func (c *Client) PostStatus(ctx context.Context, text string, mediaIDs ...string) (*models.Published, error) {
	toot := &mastodon.Toot{Status: text}
	for _, id := range mediaIDs {
		toot.MediaIDs = append(toot.MediaIDs, mastodon.ID(id))
	}
	return c.post(ctx, toot)
}

// Reply publishes text as a reply to the status inReplyToID.
func (c *Client) Reply(ctx context.Context, inReplyToID, text string) (*models.Published, error) {
	return c.post(ctx, &mastodon.Toot{Status: text, InReplyToID: mastodon.ID(inReplyToID)})
}

func (c *Client) post(ctx context.Context, toot *mastodon.Toot) (*models.Published, error) {
	st, err := c.api.PostStatus(ctx, toot)
	if err != nil {
		return nil, fmt.Errorf("post status: %w", err)
	}
	return &models.Published{ID: string(st.ID), URL: st.URL}, nil
}

// UploadMedia uploads the file at path and returns its media ID.
func (c *Client) UploadMedia(ctx context.Context, path string) (string, error) {
	att, err := c.api.UploadMedia(ctx, path)
	if err != nil {
		return "", fmt.Errorf("upload media: %w", err)
	}
	return string(att.ID), nil
}

var breaks = strings.NewReplacer(
	"<br>", "\n",
	"<br/>", "\n",
	"<br />", "\n",
	"</p>", "</p>\n\n",
)

// HTMLToText converts status HTML to plain text, keeping line and paragraph breaks.
func HTMLToText(html string) string {
	if !strings.Contains(html, "<") {
		return strings.TrimSpace(html)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(breaks.Replace(html)))
	if err != nil {
		return strings.TrimSpace(html)
	}
	return strings.TrimSpace(doc.Text())
}
