package service

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/url"
	"strings"

	"github.com/samber/lo"
	"github.com/tejashwikalptaru/saavntune/internal/domain"
	"github.com/tejashwikalptaru/saavntune/internal/ports"
	"golang.org/x/sync/errgroup"
)

// ResolverConfig tunes the resolver.
type ResolverConfig struct {
	SearchLimit       int
	ArtistSearchLimit int
	Concurrency       int
	StreamQualities   []string
	ImageQualities    []string
	SuggestionSeed    string
}

// DefaultResolverConfig returns the catalog defaults.
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		SearchLimit:       20,
		ArtistSearchLimit: 5,
		Concurrency:       8,
		StreamQualities:   []string{"160kbps", "320kbps", "96kbps"},
		ImageQualities:    []string{"500x500", "150x150"},
		SuggestionSeed:    "popular",
	}
}

// Resolver turns free-text queries into playable songs.
// It is stateless apart from its configuration and safe for concurrent use.
type Resolver struct {
	catalog ports.Catalog
	cfg     ResolverConfig
	logger  *slog.Logger
}

// NewResolver creates a new resolver.
func NewResolver(catalog ports.Catalog, cfg ResolverConfig, logger *slog.Logger) *Resolver {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Resolver{
		catalog: catalog,
		cfg:     cfg,
		logger:  logger.With(slog.String("service", "Resolver")),
	}
}

// Resolve searches songs and returns the playable ones in relevance order.
// A blank query or a search without results yields an empty slice and no error.
func (r *Resolver) Resolve(ctx context.Context, query string) ([]domain.Song, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.Song{}, nil
	}

	candidates, err := r.catalog.SearchSongs(ctx, query, r.cfg.SearchLimit)
	if err != nil {
		r.logger.Warn("song search failed", slog.String("query", query), slog.Any("error", err))
		return nil, domain.NewResolveError("resolve", classify(err), err)
	}
	if len(candidates) == 0 {
		return []domain.Song{}, nil
	}

	firstWord := strings.Fields(strings.ToLower(query))[0]
	kept := lo.Filter(candidates, func(t domain.CatalogTrack, _ int) bool {
		return matchesPrefix(t, firstWord)
	})

	songs := r.resolveDetails(ctx, kept)
	r.logger.Debug("query resolved",
		slog.String("query", query),
		slog.Int("candidates", len(candidates)),
		slog.Int("kept", len(kept)),
		slog.Int("playable", len(songs)))
	return songs, nil
}

// ResolveArtist finds the first primary artist whose name contains the query
// and returns that artist's playable songs.
func (r *Resolver) ResolveArtist(ctx context.Context, query string) (string, []domain.Song, error) {
	const op = "resolve_artist"

	artist, err := r.findArtist(ctx, op, query)
	if err != nil {
		return "", nil, err
	}

	tracks, err := r.catalog.GetArtistSongs(ctx, artist.ID)
	if err != nil {
		r.logger.Warn("artist songs lookup failed", slog.String("artist_id", artist.ID), slog.Any("error", err))
		return "", nil, domain.NewResolveError(op, domain.ErrArtistNotFound, err)
	}

	songs := r.toSongs(tracks)
	if len(songs) == 0 {
		return "", nil, domain.NewResolveError(op, domain.ErrArtistNotFound, nil)
	}
	return artist.Name, songs, nil
}

// ArtistAlbums lists the albums of the artist matched like ResolveArtist.
func (r *Resolver) ArtistAlbums(ctx context.Context, query string) (string, []domain.AlbumSummary, error) {
	const op = "artist_albums"

	artist, err := r.findArtist(ctx, op, query)
	if err != nil {
		return "", nil, err
	}

	albums, err := r.catalog.GetArtistAlbums(ctx, artist.ID)
	if err != nil {
		return "", nil, domain.NewResolveError(op, classify(err), err)
	}

	return artist.Name, lo.Map(albums, func(a domain.CatalogAlbum, _ int) domain.AlbumSummary {
		return domain.AlbumSummary{ID: a.ID, Name: a.Name, ImageURL: r.pickImage(a.Images)}
	}), nil
}

// ResolveAlbum returns the playable songs of the best matching album.
func (r *Resolver) ResolveAlbum(ctx context.Context, query string) (string, []domain.Song, error) {
	const op = "resolve_album"

	query = strings.TrimSpace(query)
	if query == "" {
		return "", nil, domain.NewResolveError(op, domain.ErrAlbumNotFound, nil)
	}

	albums, err := r.catalog.SearchAlbums(ctx, query, r.cfg.ArtistSearchLimit)
	if err != nil {
		return "", nil, domain.NewResolveError(op, classify(err), err)
	}
	if len(albums) == 0 {
		return "", nil, domain.NewResolveError(op, domain.ErrAlbumNotFound, nil)
	}

	best := bestMatch(albums, query, func(a domain.CatalogAlbum) string { return a.Name })
	album, err := r.catalog.GetAlbum(ctx, best.ID)
	if err != nil {
		return "", nil, domain.NewResolveError(op, classify(err), err)
	}
	if album == nil {
		return "", nil, domain.NewResolveError(op, domain.ErrAlbumNotFound, nil)
	}

	songs := r.toSongs(album.Tracks)
	if len(songs) == 0 {
		return "", nil, domain.NewResolveError(op, domain.ErrAlbumNotFound, nil)
	}
	return album.Name, songs, nil
}

// ResolvePlaylist returns the playable songs of the best matching playlist.
func (r *Resolver) ResolvePlaylist(ctx context.Context, query string) (string, []domain.Song, error) {
	const op = "resolve_playlist"

	query = strings.TrimSpace(query)
	if query == "" {
		return "", nil, domain.NewResolveError(op, domain.ErrPlaylistNotFound, nil)
	}

	playlists, err := r.catalog.SearchPlaylists(ctx, query, r.cfg.ArtistSearchLimit)
	if err != nil {
		return "", nil, domain.NewResolveError(op, classify(err), err)
	}
	if len(playlists) == 0 {
		return "", nil, domain.NewResolveError(op, domain.ErrPlaylistNotFound, nil)
	}

	best := bestMatch(playlists, query, func(p domain.CatalogPlaylist) string { return p.Name })
	playlist, err := r.catalog.GetPlaylist(ctx, best.ID)
	if err != nil {
		return "", nil, domain.NewResolveError(op, classify(err), err)
	}
	if playlist == nil {
		return "", nil, domain.NewResolveError(op, domain.ErrPlaylistNotFound, nil)
	}

	songs := r.toSongs(playlist.Tracks)
	if len(songs) == 0 {
		return "", nil, domain.NewResolveError(op, domain.ErrPlaylistNotFound, nil)
	}
	return playlist.Name, songs, nil
}

// SearchArtists returns the distinct artist names appearing in the resolved songs.
func (r *Resolver) SearchArtists(ctx context.Context, query string) ([]string, error) {
	songs, err := r.Resolve(ctx, query)
	if err != nil {
		return nil, err
	}
	names := lo.FlatMap(songs, func(s domain.Song, _ int) []string { return s.ArtistNames() })
	return lo.Uniq(names), nil
}

// Suggestions returns up to n random songs resolved from the suggestion seed query.
func (r *Resolver) Suggestions(ctx context.Context, n int) ([]domain.Song, error) {
	songs, err := r.Resolve(ctx, r.cfg.SuggestionSeed)
	if err != nil {
		return nil, err
	}
	if n <= 0 || len(songs) == 0 {
		return []domain.Song{}, nil
	}
	return lo.Samples(songs, n), nil
}

func (r *Resolver) findArtist(ctx context.Context, op, query string) (domain.ArtistRef, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.ArtistRef{}, domain.NewResolveError(op, domain.ErrArtistNotFound, nil)
	}

	tracks, err := r.catalog.SearchSongs(ctx, query, r.cfg.ArtistSearchLimit)
	if err != nil {
		r.logger.Warn("artist search failed", slog.String("query", query), slog.Any("error", err))
		return domain.ArtistRef{}, domain.NewResolveError(op, classify(err), err)
	}

	needle := strings.ToLower(query)
	artists := lo.FlatMap(tracks, func(t domain.CatalogTrack, _ int) []domain.ArtistRef { return t.PrimaryArtists })
	artist, ok := lo.Find(artists, func(a domain.ArtistRef) bool {
		return strings.Contains(strings.ToLower(a.Name), needle)
	})
	if !ok {
		return domain.ArtistRef{}, domain.NewResolveError(op, domain.ErrArtistNotFound, nil)
	}
	return artist, nil
}

// resolveDetails fetches full detail for each candidate in parallel. Failed or
// empty lookups and tracks without a stream are dropped; order is preserved.
func (r *Resolver) resolveDetails(ctx context.Context, candidates []domain.CatalogTrack) []domain.Song {
	slots := make([]*domain.Song, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)
	for i, candidate := range candidates {
		g.Go(func() error {
			detail, err := r.catalog.GetSong(gctx, candidate.ID)
			if err != nil {
				r.logger.Debug("song detail skipped", slog.String("song_id", candidate.ID), slog.Any("error", err))
				return nil
			}
			if detail == nil {
				return nil
			}
			if song, ok := r.toSong(*detail); ok {
				slots[i] = &song
			}
			return nil
		})
	}
	_ = g.Wait()

	return lo.FilterMap(slots, func(s *domain.Song, _ int) (domain.Song, bool) {
		if s == nil {
			return domain.Song{}, false
		}
		return *s, true
	})
}

func (r *Resolver) toSongs(tracks []domain.CatalogTrack) []domain.Song {
	return lo.FilterMap(tracks, func(t domain.CatalogTrack, _ int) (domain.Song, bool) {
		return r.toSong(t)
	})
}

// toSong maps a catalog track; ok is false when no stream URL is available.
func (r *Resolver) toSong(t domain.CatalogTrack) (domain.Song, bool) {
	stream := pickQuality(t.DownloadURLs, r.cfg.StreamQualities, false)
	if strings.TrimSpace(stream) == "" {
		return domain.Song{}, false
	}

	names := lo.Map(t.PrimaryArtists, func(a domain.ArtistRef, _ int) string { return a.Name })
	return domain.Song{
		ID:        t.ID,
		Name:      t.Name,
		Artists:   strings.Join(names, domain.ArtistSeparator),
		Duration:  max(t.DurationSeconds, 0),
		ImageURL:  r.pickImage(t.Images),
		StreamURL: stream,
	}, true
}

func (r *Resolver) pickImage(images []domain.QualityURL) string {
	return pickQuality(images, r.cfg.ImageQualities, true)
}

// pickQuality returns the URL of the first preferred quality present. When
// none is present it falls back to the last entry if lastResort is set, else "".
func pickQuality(urls []domain.QualityURL, preferred []string, lastResort bool) string {
	for _, quality := range preferred {
		if u, ok := lo.Find(urls, func(q domain.QualityURL) bool { return q.Quality == quality }); ok {
			return u.URL
		}
	}
	if lastResort && len(urls) > 0 {
		return urls[len(urls)-1].URL
	}
	return ""
}

func matchesPrefix(t domain.CatalogTrack, firstWord string) bool {
	if strings.HasPrefix(strings.ToLower(t.Name), firstWord) {
		return true
	}
	return lo.SomeBy(t.PrimaryArtists, func(a domain.ArtistRef) bool {
		return strings.HasPrefix(strings.ToLower(a.Name), firstWord)
	})
}

// bestMatch returns the first item whose name contains the query, else the first item.
func bestMatch[T any](items []T, query string, name func(T) string) T {
	needle := strings.ToLower(query)
	return lo.FindOrElse(items, items[0], func(item T) bool {
		return strings.Contains(strings.ToLower(name(item)), needle)
	})
}

// classify maps catalog failures onto resolution kinds.
func classify(err error) error {
	var netErr net.Error
	var urlErr *url.Error
	switch {
	case errors.As(err, &urlErr), errors.As(err, &netErr), errors.Is(err, context.DeadlineExceeded):
		return domain.ErrNetwork
	default:
		return domain.ErrUnknown
	}
}
