package zotero

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

// GetCollections lists collections. With a parent key it lists that
// collection's subcollections; without one it lists every collection in the
// library.
func (c *Client) GetCollections(ctx context.Context, parentKey string) ([]Collection, error) {
	path := "/collections"
	if parentKey != "" {
		path = "/collections/" + parentKey + "/collections"
	}

	r, err := c.get(ctx, path, nil)
	if err != nil {
		return nil, err
	}

	var cols []Collection
	if err := json.Unmarshal(r.body, &cols); err != nil {
		return nil, fmt.Errorf("parsing collections: %w", err)
	}
	return cols, nil
}

// GetCollection fetches a single collection by key.
func (c *Client) GetCollection(ctx context.Context, key string) (*Collection, error) {
	r, err := c.get(ctx, "/collections/"+key, nil)
	if err != nil {
		if IsNotFound(err) {
			return nil, fmt.Errorf("collection %s: %w", key, ErrNotFound)
		}
		return nil, err
	}

	var col Collection
	if err := json.Unmarshal(r.body, &col); err != nil {
		return nil, fmt.Errorf("parsing collection %s: %w", key, err)
	}
	return &col, nil
}

// CreateCollection creates a collection and returns the server-assigned
// key. An empty parentKey creates a top-level collection.
func (c *Client) CreateCollection(ctx context.Context, name, parentKey string) (string, error) {
	data := map[string]any{"name": name}
	if parentKey != "" {
		data["parentCollection"] = parentKey
	} else {
		data["parentCollection"] = false
	}

	key, err := c.postBatch(ctx, "/collections", data)
	if err != nil {
		return "", fmt.Errorf("creating collection: %w", err)
	}
	return key, nil
}

// UpdateCollection renames a collection and/or moves it under a new parent.
// Empty arguments leave the corresponding field unchanged. The collection
// is re-fetched first to discover its current version for the write
// precondition.
func (c *Client) UpdateCollection(ctx context.Context, key, name, parentKey string) error {
	col, err := c.GetCollection(ctx, key)
	if err != nil {
		return err
	}

	patch := map[string]any{}
	if name != "" {
		patch["name"] = name
	}
	if parentKey != "" {
		patch["parentCollection"] = parentKey
	}
	if len(patch) == 0 {
		return nil
	}

	payload, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	r, err := c.do(ctx, http.MethodPatch, c.lib("/collections/"+key), nil, writeHeaders(col.Version), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	if err := checkStatus(r); err != nil {
		return fmt.Errorf("updating collection %s: %w", key, err)
	}
	return nil
}

// DeleteCollection removes a collection. Items in the collection are not
// deleted; they only lose the membership. The collection is re-fetched
// first for the version precondition.
func (c *Client) DeleteCollection(ctx context.Context, key string) error {
	col, err := c.GetCollection(ctx, key)
	if err != nil {
		return err
	}

	headers := map[string]string{
		"If-Unmodified-Since-Version": strconv.Itoa(col.Version),
	}
	r, err := c.do(ctx, http.MethodDelete, c.lib("/collections/"+key), nil, headers, nil)
	if err != nil {
		return err
	}
	if err := checkStatus(r); err != nil {
		return fmt.Errorf("deleting collection %s: %w", key, err)
	}
	return nil
}
