// Package tools binds the zotero and translate clients to named MCP tools.
//
// The adapter is deliberately thin: it declares input schemas, forwards to
// one client operation per tool, and serializes the result as JSON text.
// Failures become structured tool errors naming the key and reason; they
// never crash the server.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/matsen/zotkit/internal/translate"
	"github.com/matsen/zotkit/internal/zotero"
)

// Adapter exposes one library client and one translation client as MCP
// tools.
type Adapter struct {
	lib    *zotero.Client
	lookup *translate.Client
}

// NewAdapter creates an adapter over the given clients.
func NewAdapter(lib *zotero.Client, lookup *translate.Client) *Adapter {
	return &Adapter{lib: lib, lookup: lookup}
}

// Register adds every tool to the server.
func (a *Adapter) Register(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "zotero_search_items",
		Description: "Search the Zotero library for items matching a query and filters",
	}, a.searchItems)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "zotero_get_item",
		Description: "Fetch a single Zotero item by key",
	}, a.getItem)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "zotero_get_item_template",
		Description: "Get the empty field template for a new item of the given type",
	}, a.getItemTemplate)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "zotero_create_item",
		Description: "Create a new item from a data mapping (use zotero_get_item_template for the field skeleton)",
	}, a.createItem)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "zotero_update_item",
		Description: "Apply a partial update to an item's fields",
	}, a.updateItem)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "zotero_delete_item",
		Description: "Move an item to the trash (reversible; the item keeps its key)",
	}, a.deleteItem)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "zotero_add_tags",
		Description: "Add tags to an item (existing tags are kept, duplicates ignored)",
	}, a.addTags)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "zotero_remove_tags",
		Description: "Remove tags from an item",
	}, a.removeTags)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "zotero_add_to_collection",
		Description: "Add an item to a collection",
	}, a.addToCollection)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "zotero_remove_from_collection",
		Description: "Remove an item from a collection",
	}, a.removeFromCollection)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "zotero_recent_items",
		Description: "List the most recently added items",
	}, a.recentItems)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "zotero_item_children",
		Description: "List an item's child items (attachments and notes)",
	}, a.itemChildren)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "zotero_trash_items",
		Description: "List items in the trash",
	}, a.trashItems)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "zotero_saved_searches",
		Description: "List the library's saved searches",
	}, a.savedSearches)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "zotero_item_fulltext",
		Description: "Get a page of an item's server-indexed fulltext (PDF-extracted text)",
	}, a.itemFulltext)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "zotero_attachment_text",
		Description: "Download a PDF attachment and extract its text locally",
	}, a.attachmentText)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "zotero_collections",
		Description: "List collections, optionally the subcollections of a parent",
	}, a.collections)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "zotero_get_collection",
		Description: "Fetch a single collection by key",
	}, a.getCollection)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "zotero_create_collection",
		Description: "Create a collection, optionally under a parent",
	}, a.createCollection)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "zotero_update_collection",
		Description: "Rename a collection or move it under a new parent",
	}, a.updateCollection)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "zotero_delete_collection",
		Description: "Delete a collection (items keep their other memberships)",
	}, a.deleteCollection)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "zotero_tags",
		Description: "List the library's tags",
	}, a.tags)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "zotero_export",
		Description: "Export items as bibtex, ris, csljson, bibliography, coins, refer or tei",
	}, a.export)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "zotero_download_attachment",
		Description: "Download an attachment's file to the local cache and return its path",
	}, a.downloadAttachment)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "zotero_clear_cache",
		Description: "Clear the local attachment cache for one item or the whole library",
	}, a.clearCache)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "lookup_identifier",
		Description: "Resolve a DOI, ISBN, PMID or arXiv ID into bibliographic records via the translation server",
	}, a.lookupIdentifier)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "lookup_available",
		Description: "Check whether the translation server is reachable",
	}, a.lookupAvailable)
}

// jsonResult serializes v as indented JSON text content.
func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("encoding result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}

// textResult wraps pass-through text (citation exports, extracted text).
func textResult(s string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: s}},
	}, nil, nil
}

// toolFailure is the structured payload of a failed tool call.
type toolFailure struct {
	Key   string `json:"key,omitempty"`
	Error string `json:"error"`
}

// failure renders an operation error as a tool error naming the failed key
// and reason. The error is carried in the result, not returned, so the
// protocol layer reports a tool failure instead of aborting the call.
func failure(key string, err error) (*mcp.CallToolResult, any, error) {
	data, merr := json.Marshal(toolFailure{Key: key, Error: err.Error()})
	if merr != nil {
		data = []byte(fmt.Sprintf(`{"error": %q}`, err.Error()))
	}
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}

type searchItemsInput struct {
	Query           string `json:"query,omitempty" jsonschema:"search text"`
	QueryMode       string `json:"queryMode,omitempty" jsonschema:"titleCreatorYear (default) or everything"`
	ItemType        string `json:"itemType,omitempty" jsonschema:"restrict to one item type"`
	Tag             string `json:"tag,omitempty" jsonschema:"restrict to items carrying this tag"`
	CollectionKey   string `json:"collectionKey,omitempty" jsonschema:"restrict to one collection"`
	Limit           int    `json:"limit,omitempty" jsonschema:"page size, default 25, max 100"`
	Start           int    `json:"start,omitempty" jsonschema:"result offset for pagination"`
	Sort            string `json:"sort,omitempty" jsonschema:"sort field, default dateModified"`
	Direction       string `json:"direction,omitempty" jsonschema:"asc or desc (default)"`
	IncludeChildren bool   `json:"includeChildren,omitempty" jsonschema:"include attachments and notes in results"`
	IncludeTrashed  bool   `json:"includeTrashed,omitempty" jsonschema:"include trashed items"`
}

func (a *Adapter) searchItems(ctx context.Context, req *mcp.CallToolRequest, in searchItemsInput) (*mcp.CallToolResult, any, error) {
	result, err := a.lib.SearchItems(ctx, zotero.SearchFilter{
		Query:           in.Query,
		QueryMode:       in.QueryMode,
		ItemType:        in.ItemType,
		Tag:             in.Tag,
		CollectionKey:   in.CollectionKey,
		Limit:           in.Limit,
		Start:           in.Start,
		Sort:            in.Sort,
		Direction:       in.Direction,
		IncludeChildren: in.IncludeChildren,
		IncludeTrashed:  in.IncludeTrashed,
	})
	if err != nil {
		return failure("", err)
	}
	return jsonResult(result)
}

type keyInput struct {
	Key string `json:"key" jsonschema:"item key"`
}

func (a *Adapter) getItem(ctx context.Context, req *mcp.CallToolRequest, in keyInput) (*mcp.CallToolResult, any, error) {
	item, err := a.lib.GetItem(ctx, in.Key)
	if err != nil {
		return failure(in.Key, err)
	}
	return jsonResult(item)
}

type itemTemplateInput struct {
	ItemType string `json:"itemType" jsonschema:"item type, e.g. journalArticle, book, note"`
}

func (a *Adapter) getItemTemplate(ctx context.Context, req *mcp.CallToolRequest, in itemTemplateInput) (*mcp.CallToolResult, any, error) {
	tmpl, err := a.lib.GetItemTemplate(ctx, in.ItemType)
	if err != nil {
		return failure("", err)
	}
	return jsonResult(tmpl)
}

type createItemInput struct {
	Data map[string]any `json:"data" jsonschema:"item data mapping, as returned by zotero_get_item_template"`
}

func (a *Adapter) createItem(ctx context.Context, req *mcp.CallToolRequest, in createItemInput) (*mcp.CallToolResult, any, error) {
	key, err := a.lib.CreateItem(ctx, in.Data)
	if err != nil {
		return failure("", err)
	}
	return jsonResult(map[string]string{"key": key})
}

type updateItemInput struct {
	Key  string         `json:"key" jsonschema:"item key"`
	Data map[string]any `json:"data" jsonschema:"fields to change; unlisted fields are untouched"`
}

func (a *Adapter) updateItem(ctx context.Context, req *mcp.CallToolRequest, in updateItemInput) (*mcp.CallToolResult, any, error) {
	if err := a.lib.UpdateItem(ctx, in.Key, in.Data); err != nil {
		return failure(in.Key, err)
	}
	return jsonResult(map[string]string{"key": in.Key, "status": "updated"})
}

func (a *Adapter) deleteItem(ctx context.Context, req *mcp.CallToolRequest, in keyInput) (*mcp.CallToolResult, any, error) {
	if err := a.lib.DeleteItem(ctx, in.Key); err != nil {
		return failure(in.Key, err)
	}
	return jsonResult(map[string]string{"key": in.Key, "status": "trashed"})
}

type tagsInput struct {
	Key  string   `json:"key" jsonschema:"item key"`
	Tags []string `json:"tags" jsonschema:"tag names"`
}

func (a *Adapter) addTags(ctx context.Context, req *mcp.CallToolRequest, in tagsInput) (*mcp.CallToolResult, any, error) {
	if err := a.lib.AddTagsToItem(ctx, in.Key, in.Tags); err != nil {
		return failure(in.Key, err)
	}
	return jsonResult(map[string]string{"key": in.Key, "status": "tagged"})
}

func (a *Adapter) removeTags(ctx context.Context, req *mcp.CallToolRequest, in tagsInput) (*mcp.CallToolResult, any, error) {
	if err := a.lib.RemoveTagsFromItem(ctx, in.Key, in.Tags); err != nil {
		return failure(in.Key, err)
	}
	return jsonResult(map[string]string{"key": in.Key, "status": "untagged"})
}

type membershipInput struct {
	Key           string `json:"key" jsonschema:"item key"`
	CollectionKey string `json:"collectionKey" jsonschema:"collection key"`
}

func (a *Adapter) addToCollection(ctx context.Context, req *mcp.CallToolRequest, in membershipInput) (*mcp.CallToolResult, any, error) {
	if err := a.lib.AddItemToCollection(ctx, in.Key, in.CollectionKey); err != nil {
		return failure(in.Key, err)
	}
	return jsonResult(map[string]string{"key": in.Key, "collection": in.CollectionKey, "status": "added"})
}

func (a *Adapter) removeFromCollection(ctx context.Context, req *mcp.CallToolRequest, in membershipInput) (*mcp.CallToolResult, any, error) {
	if err := a.lib.RemoveItemFromCollection(ctx, in.Key, in.CollectionKey); err != nil {
		return failure(in.Key, err)
	}
	return jsonResult(map[string]string{"key": in.Key, "collection": in.CollectionKey, "status": "removed"})
}

type limitInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of results, default 25"`
}

func (a *Adapter) recentItems(ctx context.Context, req *mcp.CallToolRequest, in limitInput) (*mcp.CallToolResult, any, error) {
	items, err := a.lib.GetRecentItems(ctx, in.Limit)
	if err != nil {
		return failure("", err)
	}
	return jsonResult(items)
}

func (a *Adapter) itemChildren(ctx context.Context, req *mcp.CallToolRequest, in keyInput) (*mcp.CallToolResult, any, error) {
	items, err := a.lib.GetItemChildren(ctx, in.Key)
	if err != nil {
		return failure(in.Key, err)
	}
	return jsonResult(items)
}

func (a *Adapter) trashItems(ctx context.Context, req *mcp.CallToolRequest, in limitInput) (*mcp.CallToolResult, any, error) {
	items, err := a.lib.GetTrashItems(ctx, in.Limit)
	if err != nil {
		return failure("", err)
	}
	return jsonResult(items)
}

type emptyInput struct{}

func (a *Adapter) savedSearches(ctx context.Context, req *mcp.CallToolRequest, in emptyInput) (*mcp.CallToolResult, any, error) {
	searches, err := a.lib.GetSavedSearches(ctx)
	if err != nil {
		return failure("", err)
	}
	return jsonResult(searches)
}

type fulltextInput struct {
	Key    string `json:"key" jsonschema:"item key"`
	Offset int    `json:"offset,omitempty" jsonschema:"character offset into the fulltext"`
	Limit  int    `json:"limit,omitempty" jsonschema:"characters per page, default 10000"`
}

func (a *Adapter) itemFulltext(ctx context.Context, req *mcp.CallToolRequest, in fulltextInput) (*mcp.CallToolResult, any, error) {
	page, err := a.lib.GetItemFulltext(ctx, in.Key, in.Offset, in.Limit)
	if err != nil {
		return failure(in.Key, err)
	}
	if page == nil {
		return jsonResult(map[string]string{"key": in.Key, "status": "no indexed fulltext"})
	}
	return jsonResult(page)
}

func (a *Adapter) attachmentText(ctx context.Context, req *mcp.CallToolRequest, in keyInput) (*mcp.CallToolResult, any, error) {
	text, err := a.lib.GetAttachmentText(ctx, in.Key)
	if err != nil {
		return failure(in.Key, err)
	}
	return textResult(text)
}

type collectionsInput struct {
	ParentKey string `json:"parentKey,omitempty" jsonschema:"list subcollections of this collection"`
}

func (a *Adapter) collections(ctx context.Context, req *mcp.CallToolRequest, in collectionsInput) (*mcp.CallToolResult, any, error) {
	cols, err := a.lib.GetCollections(ctx, in.ParentKey)
	if err != nil {
		return failure(in.ParentKey, err)
	}
	return jsonResult(cols)
}

func (a *Adapter) getCollection(ctx context.Context, req *mcp.CallToolRequest, in keyInput) (*mcp.CallToolResult, any, error) {
	col, err := a.lib.GetCollection(ctx, in.Key)
	if err != nil {
		return failure(in.Key, err)
	}
	return jsonResult(col)
}

type createCollectionInput struct {
	Name      string `json:"name" jsonschema:"collection name"`
	ParentKey string `json:"parentKey,omitempty" jsonschema:"parent collection key for a subcollection"`
}

func (a *Adapter) createCollection(ctx context.Context, req *mcp.CallToolRequest, in createCollectionInput) (*mcp.CallToolResult, any, error) {
	key, err := a.lib.CreateCollection(ctx, in.Name, in.ParentKey)
	if err != nil {
		return failure("", err)
	}
	return jsonResult(map[string]string{"key": key})
}

type updateCollectionInput struct {
	Key       string `json:"key" jsonschema:"collection key"`
	Name      string `json:"name,omitempty" jsonschema:"new name"`
	ParentKey string `json:"parentKey,omitempty" jsonschema:"new parent collection key"`
}

func (a *Adapter) updateCollection(ctx context.Context, req *mcp.CallToolRequest, in updateCollectionInput) (*mcp.CallToolResult, any, error) {
	if err := a.lib.UpdateCollection(ctx, in.Key, in.Name, in.ParentKey); err != nil {
		return failure(in.Key, err)
	}
	return jsonResult(map[string]string{"key": in.Key, "status": "updated"})
}

func (a *Adapter) deleteCollection(ctx context.Context, req *mcp.CallToolRequest, in keyInput) (*mcp.CallToolResult, any, error) {
	if err := a.lib.DeleteCollection(ctx, in.Key); err != nil {
		return failure(in.Key, err)
	}
	return jsonResult(map[string]string{"key": in.Key, "status": "deleted"})
}

func (a *Adapter) tags(ctx context.Context, req *mcp.CallToolRequest, in limitInput) (*mcp.CallToolResult, any, error) {
	tags, err := a.lib.GetTags(ctx, in.Limit)
	if err != nil {
		return failure("", err)
	}
	return jsonResult(tags)
}

type exportInput struct {
	Keys   []string `json:"keys" jsonschema:"item keys to export"`
	Format string   `json:"format" jsonschema:"bibtex, ris, csljson, bibliography, coins, refer or tei"`
	Style  string   `json:"style,omitempty" jsonschema:"citation style for the bibliography format, e.g. apa"`
}

func (a *Adapter) export(ctx context.Context, req *mcp.CallToolRequest, in exportInput) (*mcp.CallToolResult, any, error) {
	out, err := a.lib.ExportItems(ctx, in.Keys, zotero.ExportFormat(in.Format), in.Style)
	if err != nil {
		return failure("", err)
	}
	return textResult(out)
}

type downloadInput struct {
	Key   string `json:"key" jsonschema:"attachment item key"`
	Force bool   `json:"force,omitempty" jsonschema:"re-download even when a valid cached copy exists"`
}

func (a *Adapter) downloadAttachment(ctx context.Context, req *mcp.CallToolRequest, in downloadInput) (*mcp.CallToolResult, any, error) {
	dl, err := a.lib.DownloadAttachment(ctx, in.Key, in.Force)
	if err != nil {
		return failure(in.Key, err)
	}
	return jsonResult(dl)
}

type clearCacheInput struct {
	Key string `json:"key,omitempty" jsonschema:"item key; omit to clear the whole library cache"`
}

func (a *Adapter) clearCache(ctx context.Context, req *mcp.CallToolRequest, in clearCacheInput) (*mcp.CallToolResult, any, error) {
	if err := a.lib.ClearAttachmentCache(in.Key); err != nil {
		return failure(in.Key, err)
	}
	scope := in.Key
	if scope == "" {
		scope = "all"
	}
	return jsonResult(map[string]string{"cleared": scope})
}

type lookupInput struct {
	Identifier string `json:"identifier" jsonschema:"DOI, ISBN, PMID or arXiv ID"`
}

func (a *Adapter) lookupIdentifier(ctx context.Context, req *mcp.CallToolRequest, in lookupInput) (*mcp.CallToolResult, any, error) {
	records, err := a.lookup.Search(ctx, in.Identifier)
	if err != nil {
		return failure(in.Identifier, err)
	}
	return jsonResult(records)
}

func (a *Adapter) lookupAvailable(ctx context.Context, req *mcp.CallToolRequest, in emptyInput) (*mcp.CallToolResult, any, error) {
	return jsonResult(map[string]bool{"available": a.lookup.IsAvailable(ctx)})
}
