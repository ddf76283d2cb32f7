package twitter

import (
	"context"
	"fmt"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// maxPageSize is the largest count the timeline operations accept.
const maxPageSize = 200

// Client is the top-level scraping client. It turns transport responses into
// Tweets and exposes lazy timeline iterators and query helpers over them.
// A Client is safe for concurrent use; the iterators it returns are not.
type Client struct {
	transport Transport
	cfg       ClientConfig
	userIDs   *expirable.LRU[string, string]
}

// NewClient creates a client backed by the default StealthTransport.
func NewClient(cfg ClientConfig) (*Client, error) {
	cfg.defaults()
	t, err := NewStealthTransport(cfg)
	if err != nil {
		return nil, err
	}
	return NewClientWithTransport(cfg, t), nil
}

// NewClientWithTransport creates a client on top of an existing Transport.
func NewClientWithTransport(cfg ClientConfig, t Transport) *Client {
	cfg.defaults()
	return &Client{
		transport: t,
		cfg:       cfg,
		userIDs:   expirable.NewLRU[string, string](cfg.UserCacheSize, nil, cfg.UserCacheTTL),
	}
}

// Transport returns the transport the client fetches through.
func (c *Client) Transport() Transport {
	return c.transport
}

// get fetches one GraphQL operation and returns its raw body.
func (c *Client) get(ctx context.Context, operation string, variables map[string]any) ([]byte, error) {
	url, err := requestURL(operation, variables)
	if err != nil {
		return nil, err
	}
	body, err := c.transport.Get(ctx, operation, url)
	if err != nil {
		return nil, &TransportError{Operation: operation, Err: err}
	}
	return body, nil
}

// fetchPage fetches and decodes one timeline page of operation.
func (c *Client) fetchPage(ctx context.Context, operation string, variables map[string]any) (*RawPage, error) {
	body, err := c.get(ctx, operation, variables)
	if err != nil {
		return nil, err
	}
	page, err := DecodeTimelinePage(body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}
	return page, nil
}

// pageCount is the count requested for one page when the caller asked for
// limit tweets. Iterators pass 0 and get the configured PageSize.
func (c *Client) pageCount(limit int) int {
	switch {
	case limit <= 0:
		return c.cfg.PageSize
	case limit > maxPageSize:
		return maxPageSize
	}
	return limit
}
