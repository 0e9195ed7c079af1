package service

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tejashwikalptaru/saavntune/internal/domain"
	"github.com/tejashwikalptaru/saavntune/internal/logger"
)

// fakeCatalog is an in-memory catalog keyed by id.
type fakeCatalog struct {
	mu sync.Mutex

	search      []domain.CatalogTrack
	searchErr   error
	details     map[string]domain.CatalogTrack
	detailErr   map[string]error
	artistSongs map[string][]domain.CatalogTrack
	albums      []domain.CatalogAlbum
	playlists   []domain.CatalogPlaylist

	searchLimits []int
}

func (f *fakeCatalog) SearchSongs(_ context.Context, _ string, limit int) ([]domain.CatalogTrack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchLimits = append(f.searchLimits, limit)
	return f.search, f.searchErr
}

func (f *fakeCatalog) GetSong(_ context.Context, id string) (*domain.CatalogTrack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.detailErr[id]; err != nil {
		return nil, err
	}
	t, ok := f.details[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (f *fakeCatalog) GetArtist(_ context.Context, id string) (*domain.CatalogArtist, error) {
	return &domain.CatalogArtist{ID: id}, nil
}

func (f *fakeCatalog) GetArtistSongs(_ context.Context, artistID string) ([]domain.CatalogTrack, error) {
	return f.artistSongs[artistID], nil
}

func (f *fakeCatalog) GetArtistAlbums(_ context.Context, _ string) ([]domain.CatalogAlbum, error) {
	return f.albums, nil
}

func (f *fakeCatalog) SearchAlbums(_ context.Context, _ string, _ int) ([]domain.CatalogAlbum, error) {
	return f.albums, nil
}

func (f *fakeCatalog) GetAlbum(_ context.Context, id string) (*domain.CatalogAlbum, error) {
	for _, a := range f.albums {
		if a.ID == id {
			return &a, nil
		}
	}
	return nil, nil
}

func (f *fakeCatalog) SearchPlaylists(_ context.Context, _ string, _ int) ([]domain.CatalogPlaylist, error) {
	return f.playlists, nil
}

func (f *fakeCatalog) GetPlaylist(_ context.Context, id string) (*domain.CatalogPlaylist, error) {
	for _, p := range f.playlists {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, nil
}

func track(id, name string, artists ...string) domain.CatalogTrack {
	refs := make([]domain.ArtistRef, len(artists))
	for i, a := range artists {
		refs[i] = domain.ArtistRef{ID: "artist-" + a, Name: a}
	}
	return domain.CatalogTrack{
		ID:              id,
		Name:            name,
		DurationSeconds: 200,
		Images: []domain.QualityURL{
			{Quality: "50x50", URL: "http://img/" + id + "/50"},
			{Quality: "150x150", URL: "http://img/" + id + "/150"},
			{Quality: "500x500", URL: "http://img/" + id + "/500"},
		},
		DownloadURLs: []domain.QualityURL{
			{Quality: "96kbps", URL: "http://cdn/" + id + "/96"},
			{Quality: "160kbps", URL: "http://cdn/" + id + "/160"},
			{Quality: "320kbps", URL: "http://cdn/" + id + "/320"},
		},
		PrimaryArtists: refs,
	}
}

func newTestResolver(catalog *fakeCatalog) *Resolver {
	return NewResolver(catalog, DefaultResolverConfig(), logger.NewTestLogger())
}

func withDetails(tracks ...domain.CatalogTrack) map[string]domain.CatalogTrack {
	out := make(map[string]domain.CatalogTrack, len(tracks))
	for _, t := range tracks {
		out[t.ID] = t
	}
	return out
}

func TestResolver_Resolve_FiltersByFirstWord(t *testing.T) {
	s1 := track("s1", "Thunder", "Imagine Dragons")
	s2 := track("s2", "Believer", "Imagine Dragons")
	s3 := track("s3", "Thunderstruck", "AC/DC")
	catalog := &fakeCatalog{
		search:  []domain.CatalogTrack{s1, s2, s3},
		details: withDetails(s1, s2, s3),
	}

	songs, err := newTestResolver(catalog).Resolve(context.Background(), "imagine dragons thunder")
	require.NoError(t, err)

	require.Len(t, songs, 2)
	assert.Equal(t, "s1", songs[0].ID)
	assert.Equal(t, "s2", songs[1].ID)
	assert.Equal(t, "Imagine Dragons", songs[0].Artists)
	assert.Equal(t, []int{20}, catalog.searchLimits)
}

func TestResolver_Resolve_MatchesSongName(t *testing.T) {
	s1 := track("s1", "Thunder", "Imagine Dragons")
	catalog := &fakeCatalog{search: []domain.CatalogTrack{s1}, details: withDetails(s1)}

	songs, err := newTestResolver(catalog).Resolve(context.Background(), "  THUNDER ")
	require.NoError(t, err)
	assert.Len(t, songs, 1)
}

func TestResolver_Resolve_BlankQuery(t *testing.T) {
	catalog := &fakeCatalog{}

	songs, err := newTestResolver(catalog).Resolve(context.Background(), "   ")
	require.NoError(t, err)
	assert.Empty(t, songs)
	assert.Empty(t, catalog.searchLimits, "blank query must not hit the catalog")
}

func TestResolver_Resolve_NoResults(t *testing.T) {
	songs, err := newTestResolver(&fakeCatalog{}).Resolve(context.Background(), "nothing")
	require.NoError(t, err)
	assert.NotNil(t, songs)
	assert.Empty(t, songs)
}

func TestResolver_Resolve_QualityPreference(t *testing.T) {
	s1 := track("s1", "Thunder", "Imagine Dragons")
	catalog := &fakeCatalog{search: []domain.CatalogTrack{s1}, details: withDetails(s1)}

	songs, err := newTestResolver(catalog).Resolve(context.Background(), "thunder")
	require.NoError(t, err)
	require.Len(t, songs, 1)

	assert.Equal(t, "http://cdn/s1/160", songs[0].StreamURL)
	assert.Equal(t, "http://img/s1/500", songs[0].ImageURL)
	assert.Equal(t, 200, songs[0].Duration)
}

func TestResolver_Resolve_ImageFallsBackToLast(t *testing.T) {
	s1 := track("s1", "Thunder", "Imagine Dragons")
	s1.Images = []domain.QualityURL{{Quality: "50x50", URL: "a"}, {Quality: "75x75", URL: "b"}}
	s1.DownloadURLs = []domain.QualityURL{{Quality: "96kbps", URL: "http://cdn/96"}}
	catalog := &fakeCatalog{search: []domain.CatalogTrack{s1}, details: withDetails(s1)}

	songs, err := newTestResolver(catalog).Resolve(context.Background(), "thunder")
	require.NoError(t, err)
	require.Len(t, songs, 1)
	assert.Equal(t, "b", songs[0].ImageURL)
	assert.Equal(t, "http://cdn/96", songs[0].StreamURL)
}

func TestResolver_Resolve_SkipsUnplayable(t *testing.T) {
	s1 := track("s1", "Thunder", "Imagine Dragons")
	s2 := track("s2", "Thunder Live", "Imagine Dragons")
	s2.DownloadURLs = []domain.QualityURL{{Quality: "12kbps", URL: "http://cdn/12"}}
	s3 := track("s3", "Thunder Remix", "Imagine Dragons")
	s3.DownloadURLs = []domain.QualityURL{{Quality: "160kbps", URL: "  "}}
	s4 := track("s4", "Thunder Acoustic", "Imagine Dragons")
	s5 := track("s5", "Thunder Demo", "Imagine Dragons")

	catalog := &fakeCatalog{
		search:    []domain.CatalogTrack{s1, s2, s3, s4, s5},
		details:   withDetails(s1, s2, s3, s5),
		detailErr: map[string]error{"s5": errors.New("boom")},
	}

	songs, err := newTestResolver(catalog).Resolve(context.Background(), "thunder")
	require.NoError(t, err)
	require.Len(t, songs, 1)
	assert.Equal(t, "s1", songs[0].ID)
}

func TestResolver_Resolve_PreservesOrder(t *testing.T) {
	var tracks []domain.CatalogTrack
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"} {
		tracks = append(tracks, track(id, "Thunder "+id, "Imagine Dragons"))
	}
	catalog := &fakeCatalog{search: tracks, details: withDetails(tracks...)}

	songs, err := newTestResolver(catalog).Resolve(context.Background(), "thunder")
	require.NoError(t, err)
	require.Len(t, songs, len(tracks))
	for i, song := range songs {
		assert.Equal(t, tracks[i].ID, song.ID)
	}
}

func TestResolver_Resolve_NetworkError(t *testing.T) {
	cause := &url.Error{Op: "Get", URL: "http://catalog", Err: errors.New("connection refused")}
	catalog := &fakeCatalog{searchErr: domain.NewCatalogError("search_songs", "search/songs", 0, cause)}

	_, err := newTestResolver(catalog).Resolve(context.Background(), "thunder")
	require.Error(t, err)

	var resolveErr *domain.ResolveError
	require.ErrorAs(t, err, &resolveErr)
	assert.ErrorIs(t, err, domain.ErrNetwork)
	assert.Equal(t, "Network error. Please check your connection and try again.", domain.UserMessage(err))
}

func TestResolver_Resolve_UnknownError(t *testing.T) {
	catalog := &fakeCatalog{searchErr: domain.NewCatalogError("search_songs", "search/songs", 500, errors.New("unexpected status"))}

	_, err := newTestResolver(catalog).Resolve(context.Background(), "thunder")
	assert.ErrorIs(t, err, domain.ErrUnknown)
}

func TestResolver_ResolveArtist(t *testing.T) {
	s1 := track("s1", "Thunder", "Imagine Dragons")
	s2 := track("s2", "Believer", "Imagine Dragons")
	s3 := track("s3", "Demons", "Imagine Dragons")
	s3.DownloadURLs = nil
	catalog := &fakeCatalog{
		search:      []domain.CatalogTrack{track("x", "Song", "Someone", "Imagine Dragons")},
		artistSongs: map[string][]domain.CatalogTrack{"artist-Imagine Dragons": {s1, s2, s3}},
	}

	name, songs, err := newTestResolver(catalog).ResolveArtist(context.Background(), "imagine")
	require.NoError(t, err)
	assert.Equal(t, "Imagine Dragons", name)
	require.Len(t, songs, 2)
	assert.Equal(t, "s1", songs[0].ID)
	assert.Equal(t, []int{5}, catalog.searchLimits)
}

func TestResolver_ResolveArtist_NotFound(t *testing.T) {
	catalog := &fakeCatalog{search: []domain.CatalogTrack{track("x", "Song", "Someone")}}

	_, _, err := newTestResolver(catalog).ResolveArtist(context.Background(), "imagine")
	assert.ErrorIs(t, err, domain.ErrArtistNotFound)
	assert.Equal(t, "Artist not found.", domain.UserMessage(err))
}

func TestResolver_ResolveArtist_NoSongs(t *testing.T) {
	catalog := &fakeCatalog{search: []domain.CatalogTrack{track("x", "Song", "Imagine Dragons")}}

	_, _, err := newTestResolver(catalog).ResolveArtist(context.Background(), "imagine dragons")
	assert.ErrorIs(t, err, domain.ErrArtistNotFound)
}

func TestResolver_ResolveArtist_NetworkError(t *testing.T) {
	catalog := &fakeCatalog{searchErr: &url.Error{Op: "Get", URL: "http://catalog", Err: context.DeadlineExceeded}}

	_, _, err := newTestResolver(catalog).ResolveArtist(context.Background(), "imagine")
	assert.ErrorIs(t, err, domain.ErrNetwork)
}

func TestResolver_ArtistAlbums(t *testing.T) {
	catalog := &fakeCatalog{
		search: []domain.CatalogTrack{track("x", "Thunder", "Imagine Dragons")},
		albums: []domain.CatalogAlbum{{ID: "al1", Name: "Evolve", Images: []domain.QualityURL{{Quality: "500x500", URL: "cover"}}}},
	}

	name, albums, err := newTestResolver(catalog).ArtistAlbums(context.Background(), "dragons")
	require.NoError(t, err)
	assert.Equal(t, "Imagine Dragons", name)
	assert.Equal(t, []domain.AlbumSummary{{ID: "al1", Name: "Evolve", ImageURL: "cover"}}, albums)
}

func TestResolver_ResolveAlbum(t *testing.T) {
	catalog := &fakeCatalog{albums: []domain.CatalogAlbum{
		{ID: "al0", Name: "Night Visions"},
		{ID: "al1", Name: "Evolve", Tracks: []domain.CatalogTrack{track("s1", "Thunder", "Imagine Dragons")}},
	}}

	name, songs, err := newTestResolver(catalog).ResolveAlbum(context.Background(), "evolve")
	require.NoError(t, err)
	assert.Equal(t, "Evolve", name)
	assert.Len(t, songs, 1)
}

func TestResolver_ResolveAlbum_NotFound(t *testing.T) {
	_, _, err := newTestResolver(&fakeCatalog{}).ResolveAlbum(context.Background(), "evolve")
	assert.ErrorIs(t, err, domain.ErrAlbumNotFound)
}

func TestResolver_ResolvePlaylist_FallsBackToFirst(t *testing.T) {
	catalog := &fakeCatalog{playlists: []domain.CatalogPlaylist{
		{ID: "p1", Name: "Top Hits", Tracks: []domain.CatalogTrack{track("s1", "Thunder", "Imagine Dragons")}},
	}}

	name, songs, err := newTestResolver(catalog).ResolvePlaylist(context.Background(), "workout")
	require.NoError(t, err)
	assert.Equal(t, "Top Hits", name)
	assert.Len(t, songs, 1)
}

func TestResolver_ResolvePlaylist_Empty(t *testing.T) {
	catalog := &fakeCatalog{playlists: []domain.CatalogPlaylist{{ID: "p1", Name: "Empty"}}}

	_, _, err := newTestResolver(catalog).ResolvePlaylist(context.Background(), "empty")
	assert.ErrorIs(t, err, domain.ErrPlaylistNotFound)
	assert.Equal(t, "Playlist not found.", domain.UserMessage(err))
}

func TestResolver_SearchArtists(t *testing.T) {
	s1 := track("s1", "Thunder", "Imagine Dragons")
	s2 := track("s2", "Thunder Collab", "Imagine Dragons", "Khalid")
	catalog := &fakeCatalog{search: []domain.CatalogTrack{s1, s2}, details: withDetails(s1, s2)}

	names, err := newTestResolver(catalog).SearchArtists(context.Background(), "thunder")
	require.NoError(t, err)
	assert.Equal(t, []string{"Imagine Dragons", "Khalid"}, names)
}

func TestResolver_Suggestions(t *testing.T) {
	var tracks []domain.CatalogTrack
	for _, id := range []string{"a", "b", "c", "d"} {
		tracks = append(tracks, track(id, "Popular "+id, "Various"))
	}
	catalog := &fakeCatalog{search: tracks, details: withDetails(tracks...)}

	songs, err := newTestResolver(catalog).Suggestions(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, songs, 2)

	none, err := newTestResolver(catalog).Suggestions(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}
