// Package saavn implements ports.Catalog against a JioSaavn-compatible JSON API.
package saavn

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/tejashwikalptaru/saavntune/internal/domain"
	"github.com/tejashwikalptaru/saavntune/internal/ports"
)

// maxBodyBytes bounds how much of a response body is decoded.
const maxBodyBytes = 8 << 20

// Client is an HTTP catalog client.
//
// Thread-safety: Client is safe for concurrent use.
type Client struct {
	logger    *slog.Logger
	http      *http.Client
	baseURL   string
	userAgent string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// NewClient creates a catalog client for baseURL (e.g. https://saavn.dev/api).
func NewClient(logger *slog.Logger, baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		logger:    logger,
		http:      &http.Client{Timeout: timeout},
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: "saavntune/1.0",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// envelope is the common response wrapper.
type envelope[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
}

type searchData[T any] struct {
	Results []T `json:"results"`
}

type apiSong struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Duration    flexInt             `json:"duration"`
	Image       []domain.QualityURL `json:"image"`
	DownloadURL []domain.QualityURL `json:"downloadUrl"`
	Artists     struct {
		Primary []domain.ArtistRef `json:"primary"`
	} `json:"artists"`
}

type apiCollection struct {
	ID    string              `json:"id"`
	Name  string              `json:"name"`
	Image []domain.QualityURL `json:"image"`
	Songs []apiSong           `json:"songs"`
}

// flexInt accepts numbers, quoted numbers and null.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("duration %q: %w", s, err)
	}
	*f = flexInt(n)
	return nil
}

func (s apiSong) toTrack() domain.CatalogTrack {
	return domain.CatalogTrack{
		ID:              s.ID,
		Name:            s.Name,
		DurationSeconds: int(s.Duration),
		Images:          s.Image,
		DownloadURLs:    s.DownloadURL,
		PrimaryArtists:  s.Artists.Primary,
	}
}

func tracks(songs []apiSong) []domain.CatalogTrack {
	return lo.Map(songs, func(s apiSong, _ int) domain.CatalogTrack { return s.toTrack() })
}

// get performs a GET and decodes the envelope. ok is false when the API reported success:false
// or the resource does not exist.
func get[T any](ctx context.Context, c *Client, op, path string, query url.Values) (T, bool, error) {
	var zero T

	endpoint := c.baseURL + "/" + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return zero, false, domain.NewCatalogError(op, path, 0, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return zero, false, domain.NewCatalogError(op, path, 0, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("catalog request",
		slog.String("op", op),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return zero, false, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return zero, false, domain.NewCatalogError(op, path, resp.StatusCode, fmt.Errorf("unexpected status %s", resp.Status))
	}

	var env envelope[T]
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&env); err != nil {
		return zero, false, domain.NewCatalogError(op, path, 0, fmt.Errorf("decode response: %w", err))
	}
	if !env.Success {
		return zero, false, nil
	}
	return env.Data, true, nil
}

func searchQuery(query string, limit int) url.Values {
	return url.Values{"query": {query}, "limit": {strconv.Itoa(limit)}}
}

// SearchSongs runs a lightweight song search.
func (c *Client) SearchSongs(ctx context.Context, query string, limit int) ([]domain.CatalogTrack, error) {
	data, ok, err := get[searchData[apiSong]](ctx, c, "search_songs", "search/songs", searchQuery(query, limit))
	if err != nil || !ok {
		return nil, err
	}
	return tracks(data.Results), nil
}

// GetSong fetches full song detail. The API answers with a one-element list.
func (c *Client) GetSong(ctx context.Context, id string) (*domain.CatalogTrack, error) {
	data, ok, err := get[[]apiSong](ctx, c, "get_song", "songs/"+url.PathEscape(id), nil)
	if err != nil || !ok || len(data) == 0 {
		return nil, err
	}
	track := data[0].toTrack()
	return &track, nil
}

// GetArtist fetches artist detail.
func (c *Client) GetArtist(ctx context.Context, id string) (*domain.CatalogArtist, error) {
	data, ok, err := get[apiCollection](ctx, c, "get_artist", "artists/"+url.PathEscape(id), nil)
	if err != nil || !ok || data.ID == "" {
		return nil, err
	}
	return &domain.CatalogArtist{ID: data.ID, Name: data.Name, Images: data.Image}, nil
}

// GetArtistSongs fetches an artist's songs.
func (c *Client) GetArtistSongs(ctx context.Context, artistID string) ([]domain.CatalogTrack, error) {
	data, ok, err := get[[]apiSong](ctx, c, "get_artist_songs", "artists/"+url.PathEscape(artistID)+"/songs", nil)
	if err != nil || !ok {
		return nil, err
	}
	return tracks(data), nil
}

// GetArtistAlbums fetches an artist's albums.
func (c *Client) GetArtistAlbums(ctx context.Context, artistID string) ([]domain.CatalogAlbum, error) {
	data, ok, err := get[[]apiCollection](ctx, c, "get_artist_albums", "artists/"+url.PathEscape(artistID)+"/albums", nil)
	if err != nil || !ok {
		return nil, err
	}
	return lo.Map(data, func(a apiCollection, _ int) domain.CatalogAlbum { return a.toAlbum() }), nil
}

// SearchAlbums runs an album search.
func (c *Client) SearchAlbums(ctx context.Context, query string, limit int) ([]domain.CatalogAlbum, error) {
	data, ok, err := get[searchData[apiCollection]](ctx, c, "search_albums", "search/albums", searchQuery(query, limit))
	if err != nil || !ok {
		return nil, err
	}
	return lo.Map(data.Results, func(a apiCollection, _ int) domain.CatalogAlbum { return a.toAlbum() }), nil
}

// GetAlbum fetches album detail including its songs when the API provides them.
func (c *Client) GetAlbum(ctx context.Context, id string) (*domain.CatalogAlbum, error) {
	data, ok, err := get[apiCollection](ctx, c, "get_album", "albums", url.Values{"id": {id}})
	if err != nil || !ok || data.ID == "" {
		return nil, err
	}
	album := data.toAlbum()
	return &album, nil
}

// SearchPlaylists runs a playlist search.
func (c *Client) SearchPlaylists(ctx context.Context, query string, limit int) ([]domain.CatalogPlaylist, error) {
	data, ok, err := get[searchData[apiCollection]](ctx, c, "search_playlists", "search/playlists", searchQuery(query, limit))
	if err != nil || !ok {
		return nil, err
	}
	return lo.Map(data.Results, func(p apiCollection, _ int) domain.CatalogPlaylist { return p.toPlaylist() }), nil
}

// GetPlaylist fetches playlist detail including its songs when the API provides them.
func (c *Client) GetPlaylist(ctx context.Context, id string) (*domain.CatalogPlaylist, error) {
	data, ok, err := get[apiCollection](ctx, c, "get_playlist", "playlists", url.Values{"id": {id}})
	if err != nil || !ok || data.ID == "" {
		return nil, err
	}
	playlist := data.toPlaylist()
	return &playlist, nil
}

func (a apiCollection) toAlbum() domain.CatalogAlbum {
	return domain.CatalogAlbum{ID: a.ID, Name: a.Name, Images: a.Image, Tracks: tracks(a.Songs)}
}

func (a apiCollection) toPlaylist() domain.CatalogPlaylist {
	return domain.CatalogPlaylist{ID: a.ID, Name: a.Name, Images: a.Image, Tracks: tracks(a.Songs)}
}

// Verify interface implementation
var _ ports.Catalog = (*Client)(nil)
