package client

import (
	"context"
	"encoding/json"
	"net/url"
)

// pageResponse is the Hydra collection envelope used by list endpoints.
type pageResponse struct {
	Members []json.RawMessage `json:"hydra:member"`
}

// FetchPage fetches one collection page and returns its raw members.
// It satisfies pagination.PageFetcher.
func (c *Client) FetchPage(ctx context.Context, path string, query url.Values) ([]json.RawMessage, error) {
	var page pageResponse
	if err := c.GetJSON(ctx, path, query, &page); err != nil {
		return nil, err
	}
	return page.Members, nil
}
