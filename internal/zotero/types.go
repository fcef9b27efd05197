package zotero

// LibraryType selects the URL namespace for a library.
type LibraryType string

const (
	LibraryUser  LibraryType = "user"
	LibraryGroup LibraryType = "group"
)

// Library identifies one Zotero library. Immutable for the lifetime of a
// client instance.
type Library struct {
	Type LibraryType
	ID   string
}

// Prefix returns the URL path prefix for the library namespace.
func (l Library) Prefix() string {
	if l.Type == LibraryGroup {
		return "/groups/" + l.ID
	}
	return "/users/" + l.ID
}

// Item is a bibliographic record. Data is the open-ended field mapping the
// schema defines per item type; unknown fields round-trip untouched through
// update operations.
type Item struct {
	Key     string         `json:"key"`
	Version int            `json:"version"`
	Data    map[string]any `json:"data"`
}

// ItemType returns the item's type from its data mapping.
func (it *Item) ItemType() string {
	s, _ := it.Data["itemType"].(string)
	return s
}

// Collection is a named, hierarchical grouping of items.
type Collection struct {
	Key     string         `json:"key"`
	Version int            `json:"version"`
	Data    CollectionData `json:"data"`
}

// CollectionData is the mutable part of a collection. ParentCollection is
// either a parent key string or false for top-level collections, matching
// the wire format.
type CollectionData struct {
	Name             string `json:"name"`
	ParentCollection any    `json:"parentCollection,omitempty"`
}

// ParentKey returns the parent collection key, or "" for a top-level
// collection.
func (c *Collection) ParentKey() string {
	s, _ := c.Data.ParentCollection.(string)
	return s
}

// TagKind distinguishes user-assigned tags from automatically extracted
// ones.
type TagKind string

const (
	TagUser      TagKind = "user"
	TagAutomatic TagKind = "automatic"
)

// Tag is a tag attached to items. Tags have no independent lifecycle.
type Tag struct {
	Name string  `json:"name"`
	Kind TagKind `json:"kind"`
}

// SearchCondition is one filter condition of a saved search.
type SearchCondition struct {
	Condition string `json:"condition"`
	Operator  string `json:"operator"`
	Value     string `json:"value"`
}

// SavedSearchData is the definition of a saved search.
type SavedSearchData struct {
	Name       string            `json:"name"`
	Conditions []SearchCondition `json:"conditions"`
}

// SavedSearch is a stored search definition. Read-only from this client.
type SavedSearch struct {
	Key     string          `json:"key"`
	Version int             `json:"version"`
	Data    SavedSearchData `json:"data"`
}

// Query modes for SearchFilter.
const (
	QueryModeTitleCreatorYear = "titleCreatorYear"
	QueryModeEverything       = "everything"
)

// Search limits and defaults.
const (
	DefaultSearchLimit = 25
	MaxSearchLimit     = 100
)

// SearchFilter selects and orders items for SearchItems. Zero values mean
// "not filtered" or the documented default.
type SearchFilter struct {
	Query           string
	QueryMode       string // titleCreatorYear (default) or everything
	ItemType        string
	Tag             string
	CollectionKey   string
	Limit           int    // default 25, max 100
	Start           int    // result offset
	Sort            string // default dateModified
	Direction       string // default desc
	IncludeChildren bool   // false selects the top-level-items resource
	IncludeTrashed  bool
}

// SearchResult is one page of search results.
type SearchResult struct {
	Items        []Item `json:"items"`
	TotalResults int    `json:"totalResults"`
}

// ExportFormat is a citation export format understood by the server.
type ExportFormat string

const (
	FormatBibTeX       ExportFormat = "bibtex"
	FormatRIS          ExportFormat = "ris"
	FormatCSLJSON      ExportFormat = "csljson"
	FormatBibliography ExportFormat = "bibliography"
	FormatCOinS        ExportFormat = "coins"
	FormatRefer        ExportFormat = "refer"
	FormatTEI          ExportFormat = "tei"
)

// FulltextPage is one client-side page of an item's indexed fulltext.
type FulltextPage struct {
	Content     string `json:"content"`
	Offset      int    `json:"offset"`
	Limit       int    `json:"limit"`
	TotalLength int    `json:"totalLength"`
	HasMore     bool   `json:"hasMore"`
	NextOffset  int    `json:"nextOffset,omitempty"`
}

// Download describes a downloaded (or cache-served) attachment binary.
type Download struct {
	Path        string `json:"path"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	FromCache   bool   `json:"fromCache"`
}
