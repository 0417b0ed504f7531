package assets

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/provide-io/einkframe/pkg/logging"
)

// SearchHandler produces the manifest for one sync cycle.
type SearchHandler interface {
	Search(ctx context.Context, src Source) (Manifest, error)
}

// AlbumSearch selects every asset of a single named album.
type AlbumSearch struct {
	Album  string
	Logger hclog.Logger
}

// Search implements SearchHandler.
func (s AlbumSearch) Search(ctx context.Context, src Source) (Manifest, error) {
	list, err := src.ListAlbumAssets(ctx, s.Album)
	if err != nil {
		return nil, fmt.Errorf("album %q: %w", s.Album, err)
	}
	m := FromAssets(list)
	logging.OrNull(s.Logger).Debug("🔎 Album listed", "album", s.Album, "assets", len(m))
	return m, nil
}
