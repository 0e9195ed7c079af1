package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tejashwikalptaru/saavntune/internal/domain"
)

type countingController struct {
	playPause, next, previous int
}

func (c *countingController) OnPlayPause() { c.playPause++ }
func (c *countingController) OnNext()      { c.next++ }
func (c *countingController) OnPrevious()  { c.previous++ }

func TestNowPlaying(t *testing.T) {
	title, artist := NowPlaying(domain.NewPlayerState())
	assert.Equal(t, DefaultTitle, title)
	assert.Equal(t, DefaultArtist, artist)

	state := domain.NewPlayerState()
	state.CurrentSong = &domain.Song{ID: "1", Name: "Thunder", Artists: "Imagine Dragons"}
	title, artist = NowPlaying(state)
	assert.Equal(t, "Thunder", title)
	assert.Equal(t, "Imagine Dragons", artist)

	state.CurrentSong = &domain.Song{ID: "2", Name: "Untitled"}
	_, artist = NowPlaying(state)
	assert.Equal(t, DefaultArtist, artist)
}

func TestDispatch(t *testing.T) {
	c := &countingController{}

	require.NoError(t, Dispatch(c, ActionPlayPause))
	require.NoError(t, Dispatch(c, ActionNext))
	require.NoError(t, Dispatch(c, ActionNext))
	require.NoError(t, Dispatch(c, ActionPrevious))
	assert.Error(t, Dispatch(c, "rewind"))

	assert.Equal(t, 1, c.playPause)
	assert.Equal(t, 2, c.next)
	assert.Equal(t, 1, c.previous)
}

func TestLink(t *testing.T) {
	l := NewLink()
	assert.ErrorIs(t, l.Dispatch(ActionNext), domain.ErrNotInitialized)
	assert.ErrorIs(t, l.Attach(nil), domain.ErrNotInitialized)

	c := &countingController{}
	require.NoError(t, l.Attach(c))
	require.NoError(t, l.Dispatch(ActionNext))
	assert.Equal(t, 1, c.next)

	l.Drop()
	l.Drop()
	select {
	case <-l.Disconnected():
	default:
		t.Fatal("link should be disconnected")
	}
}

type seekingController struct {
	countingController
	position int64
}

func (c *seekingController) OnSeekTo(ms int64) { c.position = ms }
func (c *seekingController) OnSeekBy(ms int64) { c.position += ms }

func TestLink_Seek(t *testing.T) {
	l := NewLink()
	assert.ErrorIs(t, l.SeekTo(1_000), domain.ErrNotInitialized)

	require.NoError(t, l.Attach(&countingController{}))
	assert.ErrorIs(t, l.SeekBy(1_000), domain.ErrSeekUnsupported)

	c := &seekingController{}
	require.NoError(t, l.Attach(c))
	require.NoError(t, l.SeekTo(30_000))
	require.NoError(t, l.SeekBy(-5_000))
	assert.Equal(t, int64(25_000), c.position)
}
