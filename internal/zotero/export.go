package zotero

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// ExportItems renders the given items in a citation export format and
// returns the server's response verbatim. The style identifier applies
// only to the bibliography format. The client performs no interpretation
// of the content; foreign formats pass through as raw text.
func (c *Client) ExportItems(ctx context.Context, keys []string, format ExportFormat, style string) (string, error) {
	if len(keys) == 0 {
		return "", fmt.Errorf("export requires at least one item key")
	}

	q := url.Values{}
	q.Set("itemKey", strings.Join(keys, ","))
	q.Set("format", string(format))
	if format == FormatBibliography && style != "" {
		q.Set("style", style)
	}

	r, err := c.get(ctx, "/items", q)
	if err != nil {
		return "", err
	}
	return string(r.body), nil
}
