// Package assets describes where photos come from: a remote or local Source
// that lists album contents and hands out asset bytes, and the Manifest that
// a sync cycle reconciles local storage against.
package assets

import (
	"context"
	"path/filepath"
	"sort"
)

// Asset is one entry of an album listing.
type Asset struct {
	ID           string
	OriginalPath string
}

// Source is the capability the sync loop needs from an album backend.
type Source interface {
	// ListAlbumAssets returns every asset of the named album. Failures wrap
	// pkg/errors.ErrManifestFetch.
	ListAlbumAssets(ctx context.Context, album string) ([]Asset, error)
	// DownloadAsset returns the original bytes of an asset. Failures wrap
	// pkg/errors.ErrAssetDownload.
	DownloadAsset(ctx context.Context, id string) ([]byte, error)
}

// Manifest maps asset id to the file extension of its original, including
// the leading dot.
type Manifest map[string]string

// FileName returns the original file name stored for id.
func (m Manifest) FileName(id string) string {
	return id + m[id]
}

// IDs returns the manifest ids in sorted order.
func (m Manifest) IDs() []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// FromAssets builds a manifest from a listing, taking each extension from
// the asset's original path.
func FromAssets(list []Asset) Manifest {
	m := make(Manifest, len(list))
	for _, a := range list {
		if a.ID == "" {
			continue
		}
		m[a.ID] = filepath.Ext(a.OriginalPath)
	}
	return m
}
