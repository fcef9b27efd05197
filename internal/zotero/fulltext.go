package zotero

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Fulltext pagination bounds. The server returns the whole indexed text in
// one response; pagination happens client-side.
const (
	FulltextDefaultLimit = 10000
	FulltextMinLimit     = 1000
	FulltextMaxLimit     = 50000
)

// GetItemFulltext returns one page of an item's server-indexed fulltext.
// A nil page with a nil error means the item has no indexed text, which is
// an expected steady state for many items, not a failure.
func (c *Client) GetItemFulltext(ctx context.Context, key string, offset, limit int) (*FulltextPage, error) {
	r, err := c.do(ctx, http.MethodGet, c.lib("/items/"+key+"/fulltext"), nil, nil, nil)
	if err != nil {
		return nil, err
	}
	if r.status == http.StatusNotFound {
		return nil, nil
	}
	if err := checkStatus(r); err != nil {
		return nil, err
	}

	var ft struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(r.body, &ft); err != nil {
		return nil, fmt.Errorf("parsing fulltext for %s: %w", key, err)
	}

	total := len(ft.Content)

	if limit <= 0 {
		limit = FulltextDefaultLimit
	}
	if limit < FulltextMinLimit {
		limit = FulltextMinLimit
	}
	if limit > FulltextMaxLimit {
		limit = FulltextMaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}

	end := offset + limit
	if end > total {
		end = total
	}

	page := &FulltextPage{
		Content:     ft.Content[offset:end],
		Offset:      offset,
		Limit:       limit,
		TotalLength: total,
		HasMore:     end < total,
	}
	if page.HasMore {
		page.NextOffset = end
	}
	return page, nil
}
