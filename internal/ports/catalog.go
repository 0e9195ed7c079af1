package ports

import (
	"context"

	"github.com/tejashwikalptaru/saavntune/internal/domain"
)

// Catalog is the remote song catalog.
//
// All calls are read-only and idempotent. An unsuccessful response
// (success:false) is reported as an empty result with a nil error; only
// transport and protocol failures are returned as errors, typically
// *domain.CatalogError.
type Catalog interface {
	SearchSongs(ctx context.Context, query string, limit int) ([]domain.CatalogTrack, error)

	// GetSong returns nil, nil when the catalog has no data for id.
	GetSong(ctx context.Context, id string) (*domain.CatalogTrack, error)

	GetArtist(ctx context.Context, id string) (*domain.CatalogArtist, error)
	GetArtistSongs(ctx context.Context, artistID string) ([]domain.CatalogTrack, error)
	GetArtistAlbums(ctx context.Context, artistID string) ([]domain.CatalogAlbum, error)

	SearchAlbums(ctx context.Context, query string, limit int) ([]domain.CatalogAlbum, error)
	GetAlbum(ctx context.Context, id string) (*domain.CatalogAlbum, error)

	SearchPlaylists(ctx context.Context, query string, limit int) ([]domain.CatalogPlaylist, error)
	GetPlaylist(ctx context.Context, id string) (*domain.CatalogPlaylist, error)
}
