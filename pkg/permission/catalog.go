package permission

import (
	"github.com/dmitrymomot/vidkit/pkg/isolation"
)

// TableName is the gateway whitelist entry of the catalog.
const TableName = "permissions"

// Permission is a catalog entry. Keys are dot separated, resource first.
type Permission struct {
	Key         string `json:"key"`
	Description string `json:"description"`
}

const (
	VideosRead   = "videos.read"
	VideosWrite  = "videos.write"
	VideosDelete = "videos.delete"
	UploadsWrite = "uploads.write"
	BillingRead  = "billing.read"
)

// DefaultCatalog is the built-in catalog.
func DefaultCatalog() []Permission {
	return []Permission{
		{Key: VideosRead, Description: "List and view videos"},
		{Key: VideosWrite, Description: "Create and retry videos"},
		{Key: VideosDelete, Description: "Delete videos"},
		{Key: UploadsWrite, Description: "Upload video files"},
		{Key: BillingRead, Description: "View usage and invoices"},
	}
}

// Catalog is the global permission table.
type Catalog = isolation.GlobalTable[Permission]

// NewCatalog opens the catalog table. g must whitelist TableName.
func NewCatalog(g *isolation.Gateway, store isolation.GlobalStore[Permission]) (*Catalog, error) {
	return isolation.NewGlobalTable[Permission](g, TableName, store)
}

// NewMemoryCatalog serves DefaultCatalog from memory.
func NewMemoryCatalog(g *isolation.Gateway) (*Catalog, error) {
	return NewCatalog(g, isolation.NewMemoryGlobalStore(DefaultCatalog()...))
}
