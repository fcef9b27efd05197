package zotero

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// SearchItems runs a filtered, paginated item search. The top-level-only
// and including-children cases are distinct server resources, so
// IncludeChildren selects the endpoint rather than a query parameter.
func (c *Client) SearchItems(ctx context.Context, f SearchFilter) (*SearchResult, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}

	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if f.Start > 0 {
		q.Set("start", strconv.Itoa(f.Start))
	}
	if f.Query != "" {
		q.Set("q", f.Query)
	}
	if f.QueryMode != "" {
		q.Set("qmode", f.QueryMode)
	}
	if f.ItemType != "" {
		q.Set("itemType", f.ItemType)
	}
	if f.Tag != "" {
		q.Set("tag", f.Tag)
	}
	sort := f.Sort
	if sort == "" {
		sort = "dateModified"
	}
	q.Set("sort", sort)
	dir := f.Direction
	if dir == "" {
		dir = "desc"
	}
	q.Set("direction", dir)
	if f.IncludeTrashed {
		q.Set("includeTrashed", "1")
	}

	endpoint := "/items/top"
	if f.IncludeChildren {
		endpoint = "/items"
	}
	path := endpoint
	if f.CollectionKey != "" {
		path = "/collections/" + f.CollectionKey + endpoint
	}

	r, err := c.do(ctx, http.MethodGet, c.lib(path), q, nil, nil)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(r); err != nil {
		return nil, err
	}

	var items []Item
	if err := json.Unmarshal(r.body, &items); err != nil {
		return nil, fmt.Errorf("parsing items: %w", err)
	}

	total := len(items)
	if t := r.totalResults; t >= 0 {
		total = t
	}

	return &SearchResult{Items: items, TotalResults: total}, nil
}

// GetItem fetches a single item by key.
func (c *Client) GetItem(ctx context.Context, key string) (*Item, error) {
	r, err := c.get(ctx, "/items/"+key, nil)
	if err != nil {
		if IsNotFound(err) {
			return nil, fmt.Errorf("item %s: %w", key, ErrNotFound)
		}
		return nil, err
	}

	var item Item
	if err := json.Unmarshal(r.body, &item); err != nil {
		return nil, fmt.Errorf("parsing item %s: %w", key, err)
	}
	return &item, nil
}

// GetItemTemplate fetches the field skeleton for a new item of the given
// type. The template endpoint lives outside the library namespace.
func (c *Client) GetItemTemplate(ctx context.Context, itemType string) (map[string]any, error) {
	q := url.Values{}
	q.Set("itemType", itemType)

	r, err := c.do(ctx, http.MethodGet, "/items/new", q, nil, nil)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(r); err != nil {
		return nil, err
	}

	var tmpl map[string]any
	if err := json.Unmarshal(r.body, &tmpl); err != nil {
		return nil, fmt.Errorf("parsing item template: %w", err)
	}
	return tmpl, nil
}

// writeResponse is the per-submission result map of a batch write.
type writeResponse struct {
	Success   map[string]string       `json:"success"`
	Unchanged map[string]string       `json:"unchanged"`
	Failed    map[string]writeFailure `json:"failed"`
}

type writeFailure struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// postBatch submits a single-element batch write and returns the created
// key. A response with neither a success nor a failure entry is a server
// anomaly and raises.
func (c *Client) postBatch(ctx context.Context, path string, data map[string]any) (string, error) {
	if err := c.ensureVersion(ctx); err != nil {
		return "", err
	}
	version, _ := c.LibraryVersion()

	payload, err := json.Marshal([]map[string]any{data})
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	r, err := c.do(ctx, http.MethodPost, c.lib(path), nil, writeHeaders(version), bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	if err := checkStatus(r); err != nil {
		return "", err
	}

	var wr writeResponse
	if err := json.Unmarshal(r.body, &wr); err != nil {
		return "", fmt.Errorf("parsing write response: %w", err)
	}

	if key, ok := wr.Success["0"]; ok {
		return key, nil
	}
	if f, ok := wr.Failed["0"]; ok {
		return "", fmt.Errorf("server rejected write (code %d): %s", f.Code, f.Message)
	}
	return "", fmt.Errorf("unexpected write response with no success or failure entry: %s", r.body)
}

// CreateItem creates one item from the given data mapping and returns the
// server-assigned key.
func (c *Client) CreateItem(ctx context.Context, data map[string]any) (string, error) {
	key, err := c.postBatch(ctx, "/items", data)
	if err != nil {
		return "", fmt.Errorf("creating item: %w", err)
	}
	return key, nil
}

// patchItem applies a partial update to an item at the given precondition
// version.
func (c *Client) patchItem(ctx context.Context, key string, version int, patch map[string]any) error {
	payload, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	r, err := c.do(ctx, http.MethodPatch, c.lib("/items/"+key), nil, writeHeaders(version), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	return checkStatus(r)
}

// UpdateItem applies a partial update to an item. Read-modify-write: the
// item is fetched first to learn its current version, which becomes the
// write precondition. A concurrent edit surfaces as ErrVersionConflict; the
// caller retries with a fresh read.
func (c *Client) UpdateItem(ctx context.Context, key string, patch map[string]any) error {
	item, err := c.GetItem(ctx, key)
	if err != nil {
		return err
	}
	if err := c.patchItem(ctx, key, item.Version, patch); err != nil {
		return fmt.Errorf("updating item %s: %w", key, err)
	}
	return nil
}

// DeleteItem moves an item to the trash. Deletion is logical: the item
// keeps its key and data and remains addressable.
func (c *Client) DeleteItem(ctx context.Context, key string) error {
	return c.UpdateItem(ctx, key, map[string]any{"deleted": 1})
}

// itemTags decodes the tag list of an item's data mapping, preserving
// entries verbatim.
func itemTags(item *Item) []map[string]any {
	raw, _ := item.Data["tags"].([]any)
	tags := make([]map[string]any, 0, len(raw))
	for _, t := range raw {
		if m, ok := t.(map[string]any); ok {
			tags = append(tags, m)
		}
	}
	return tags
}

// AddTagsToItem unions the given tag names into the item's tag set.
// Dedup is exact case-sensitive string match.
func (c *Client) AddTagsToItem(ctx context.Context, key string, names []string) error {
	item, err := c.GetItem(ctx, key)
	if err != nil {
		return err
	}

	tags := itemTags(item)
	existing := make(map[string]bool, len(tags))
	for _, t := range tags {
		if name, ok := t["tag"].(string); ok {
			existing[name] = true
		}
	}

	changed := false
	for _, name := range names {
		if existing[name] {
			continue
		}
		tags = append(tags, map[string]any{"tag": name})
		existing[name] = true
		changed = true
	}
	if !changed {
		return nil
	}

	if err := c.patchItem(ctx, key, item.Version, map[string]any{"tags": tags}); err != nil {
		return fmt.Errorf("adding tags to item %s: %w", key, err)
	}
	return nil
}

// RemoveTagsFromItem removes the given tag names from the item's tag set.
// Unknown names are ignored.
func (c *Client) RemoveTagsFromItem(ctx context.Context, key string, names []string) error {
	item, err := c.GetItem(ctx, key)
	if err != nil {
		return err
	}

	drop := make(map[string]bool, len(names))
	for _, name := range names {
		drop[name] = true
	}

	tags := itemTags(item)
	kept := make([]map[string]any, 0, len(tags))
	for _, t := range tags {
		if name, ok := t["tag"].(string); ok && drop[name] {
			continue
		}
		kept = append(kept, t)
	}
	if len(kept) == len(tags) {
		return nil
	}

	if err := c.patchItem(ctx, key, item.Version, map[string]any{"tags": kept}); err != nil {
		return fmt.Errorf("removing tags from item %s: %w", key, err)
	}
	return nil
}

// itemCollections decodes the collection membership list of an item.
func itemCollections(item *Item) []string {
	raw, _ := item.Data["collections"].([]any)
	keys := make([]string, 0, len(raw))
	for _, k := range raw {
		if s, ok := k.(string); ok {
			keys = append(keys, s)
		}
	}
	return keys
}

// AddItemToCollection adds an item to a collection. A no-op if the item is
// already a member.
func (c *Client) AddItemToCollection(ctx context.Context, key, collectionKey string) error {
	item, err := c.GetItem(ctx, key)
	if err != nil {
		return err
	}

	keys := itemCollections(item)
	for _, k := range keys {
		if k == collectionKey {
			return nil
		}
	}
	keys = append(keys, collectionKey)

	if err := c.patchItem(ctx, key, item.Version, map[string]any{"collections": keys}); err != nil {
		return fmt.Errorf("adding item %s to collection %s: %w", key, collectionKey, err)
	}
	return nil
}

// RemoveItemFromCollection removes an item from a collection. A no-op if
// the item is not a member.
func (c *Client) RemoveItemFromCollection(ctx context.Context, key, collectionKey string) error {
	item, err := c.GetItem(ctx, key)
	if err != nil {
		return err
	}

	keys := itemCollections(item)
	kept := keys[:0]
	for _, k := range keys {
		if k != collectionKey {
			kept = append(kept, k)
		}
	}
	if len(kept) == len(keys) {
		return nil
	}

	if err := c.patchItem(ctx, key, item.Version, map[string]any{"collections": kept}); err != nil {
		return fmt.Errorf("removing item %s from collection %s: %w", key, collectionKey, err)
	}
	return nil
}

// listItems fetches a fixed-order item listing from the given endpoint.
func (c *Client) listItems(ctx context.Context, path string, q url.Values) ([]Item, error) {
	r, err := c.get(ctx, path, q)
	if err != nil {
		return nil, err
	}
	var items []Item
	if err := json.Unmarshal(r.body, &items); err != nil {
		return nil, fmt.Errorf("parsing items: %w", err)
	}
	return items, nil
}

// GetRecentItems returns the most recently added top-level items.
func (c *Client) GetRecentItems(ctx context.Context, limit int) ([]Item, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("sort", "dateAdded")
	q.Set("direction", "desc")
	return c.listItems(ctx, "/items/top", q)
}

// GetItemChildren returns the child items (attachments, notes) of an item.
func (c *Client) GetItemChildren(ctx context.Context, key string) ([]Item, error) {
	items, err := c.listItems(ctx, "/items/"+key+"/children", nil)
	if err != nil {
		if IsNotFound(err) {
			return nil, fmt.Errorf("item %s: %w", key, ErrNotFound)
		}
		return nil, err
	}
	return items, nil
}

// GetTrashItems returns items in the trash, most recently modified first.
func (c *Client) GetTrashItems(ctx context.Context, limit int) ([]Item, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("sort", "dateModified")
	q.Set("direction", "desc")
	return c.listItems(ctx, "/items/trash", q)
}

// GetSavedSearches returns the library's saved search definitions.
func (c *Client) GetSavedSearches(ctx context.Context) ([]SavedSearch, error) {
	r, err := c.get(ctx, "/searches", nil)
	if err != nil {
		return nil, err
	}
	var searches []SavedSearch
	if err := json.Unmarshal(r.body, &searches); err != nil {
		return nil, fmt.Errorf("parsing saved searches: %w", err)
	}
	return searches, nil
}

// GetTags returns the library's tags. The numeric type code on the wire
// maps to a kind: 0 is user-assigned, anything else automatic.
func (c *Client) GetTags(ctx context.Context, limit int) ([]Tag, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))

	r, err := c.get(ctx, "/tags", q)
	if err != nil {
		return nil, err
	}

	var raw []struct {
		Tag  string `json:"tag"`
		Meta struct {
			Type int `json:"type"`
		} `json:"meta"`
	}
	if err := json.Unmarshal(r.body, &raw); err != nil {
		return nil, fmt.Errorf("parsing tags: %w", err)
	}

	tags := make([]Tag, len(raw))
	for i, t := range raw {
		kind := TagUser
		if t.Meta.Type != 0 {
			kind = TagAutomatic
		}
		tags[i] = Tag{Name: t.Tag, Kind: kind}
	}
	return tags, nil
}
