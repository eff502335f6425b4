package processing

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

// Asset is a completed upload handed to a provider.
type Asset struct {
	TenantID    uuid.UUID
	ResourceID  uuid.UUID
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Validate checks the fields every provider relies on.
func (a Asset) Validate() error {
	if a.TenantID == uuid.Nil || a.ResourceID == uuid.Nil || a.Body == nil || a.Size <= 0 {
		return ErrInvalidAsset
	}
	return nil
}

// Key is the object key of the source file. Keys are prefixed by tenant so
// one bucket can hold every tenant's media.
func (a Asset) Key() string {
	ext := strings.ToLower(path.Ext(a.Filename))
	return path.Join(a.prefix(), "source"+ext)
}

// PreviewKey is where the derived preview image is expected.
func (a Asset) PreviewKey() string {
	return path.Join(a.prefix(), "preview.jpg")
}

func (a Asset) prefix() string {
	return path.Join("tenants", a.TenantID.String(), "videos", a.ResourceID.String())
}

// Handoff is what a provider reports after accepting an asset.
// AssetsComplete is set when every derived asset is already available.
type Handoff struct {
	StoragePointer string `json:"storage_pointer"`
	PreviewPointer string `json:"preview_pointer,omitempty"`
	AssetsComplete bool   `json:"assets_complete"`
}

// Provider is the external processing/storage service.
type Provider interface {
	// Submit transfers the asset. Errors should be classified with Classify.
	Submit(ctx context.Context, a Asset) (Handoff, error)
	// Confirm reports whether the derived assets of h are available.
	Confirm(ctx context.Context, h Handoff) (bool, error)
}

// Pointer builds the storage pointer of key in bucket.
func Pointer(scheme, bucket, key string) string {
	return scheme + "://" + bucket + "/" + key
}

// ParsePointer splits a pointer built by Pointer.
func ParsePointer(p string) (bucket, key string, ok bool) {
	_, rest, found := strings.Cut(p, "://")
	if !found {
		return "", "", false
	}
	bucket, key, found = strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}
