package stream

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dhowden/tag"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tejashwikalptaru/saavntune/internal/domain"
	"github.com/tejashwikalptaru/saavntune/internal/logger"
	"github.com/tejashwikalptaru/saavntune/internal/testutil"
)

// fakeOutput is a manually clocked output device.
type fakeOutput struct {
	mu        sync.Mutex
	streamers []beep.Streamer
	rate      beep.SampleRate
	initErr   error
	inits     int
	closed    bool
}

func (o *fakeOutput) Init(sampleRate beep.SampleRate) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.inits++
	o.rate = sampleRate
	return o.initErr
}

func (o *fakeOutput) Play(s beep.Streamer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.streamers = append(o.streamers, s)
}

func (o *fakeOutput) Lock()   { o.mu.Lock() }
func (o *fakeOutput) Unlock() { o.mu.Unlock() }

func (o *fakeOutput) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.streamers = nil
}

func (o *fakeOutput) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
}

// advance mixes n samples like the speaker goroutine would.
func (o *fakeOutput) advance(n int) {
	o.mu.Lock()
	defer o.mu.Unlock()

	buf := make([][2]float64, n)
	kept := o.streamers[:0]
	for _, s := range o.streamers {
		if _, ok := s.Stream(buf); ok {
			kept = append(kept, s)
		}
	}
	o.streamers = kept
}

// drain plays every streamer to its end.
func (o *fakeOutput) drain() {
	for i := 0; i < 1000 && o.active() > 0; i++ {
		o.advance(1024)
	}
}

func (o *fakeOutput) active() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.streamers)
}

type recorder struct {
	mu     sync.Mutex
	events []domain.EngineEvent
}

func (r *recorder) listen(e domain.EngineEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) kinds() []domain.EngineEventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.EngineEventKind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}

func (r *recorder) find(kind domain.EngineEventKind) (domain.EngineEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.Kind == kind {
			return e, true
		}
	}
	return domain.EngineEvent{}, false
}

// silentWAV encodes d of stereo silence at the output rate.
func silentWAV(t *testing.T, d time.Duration) []byte {
	t.Helper()
	f, err := os.Create(filepath.Join(t.TempDir(), "clip.wav"))
	require.NoError(t, err)
	defer f.Close()

	format := beep.Format{SampleRate: OutputSampleRate, NumChannels: 2, Precision: 2}
	require.NoError(t, wav.Encode(f, beep.Silence(format.SampleRate.N(d)), format))

	data, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	return data
}

func newTestEngine(t *testing.T) (*Engine, *fakeOutput, *recorder, *httptest.Server) {
	t.Helper()

	clip := silentWAV(t, 200*time.Millisecond)
	mux := http.NewServeMux()
	mux.HandleFunc("/clip.wav", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write(clip)
	})
	mux.HandleFunc("/garbage", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>not audio</html>"))
	})
	mux.HandleFunc("/slow", func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	out := &fakeOutput{}
	rec := &recorder{}
	engine := NewEngine(logger.NewTestLogger(), withOutput(out), WithHTTPClient(server.Client()))
	engine.SetListener(rec.listen)
	t.Cleanup(func() { _ = engine.Shutdown() })

	return engine, out, rec, server
}

func item(server *httptest.Server, path string) domain.MediaItem {
	return domain.MediaItem{URI: server.URL + path, Title: "Clip", Artist: "Test"}
}

func waitFor(t *testing.T, rec *recorder, kind domain.EngineEventKind) domain.EngineEvent {
	t.Helper()
	var ev domain.EngineEvent
	require.Eventually(t, func() bool {
		var ok bool
		ev, ok = rec.find(kind)
		return ok
	}, 2*time.Second, 5*time.Millisecond)
	return ev
}

func TestEngine_LoadAndPlay(t *testing.T) {
	engine, out, rec, server := newTestEngine(t)

	require.NoError(t, engine.Load(item(server, "/clip.wav")))
	assert.True(t, engine.Loaded())
	require.NoError(t, engine.Play(), "play before ready is queued")

	ready := waitFor(t, rec, domain.EngineReady)
	assert.Equal(t, 200*time.Millisecond, ready.Duration)

	waitFor(t, rec, domain.EnginePlayingChanged)
	assert.True(t, engine.IsPlaying())
	assert.Equal(t, 200*time.Millisecond, engine.Duration())
	assert.Equal(t, 1, out.inits)
	assert.Equal(t, OutputSampleRate, out.rate)
}

func TestEngine_PlayToEnd(t *testing.T) {
	engine, out, rec, server := newTestEngine(t)

	require.NoError(t, engine.Load(item(server, "/clip.wav")))
	waitFor(t, rec, domain.EngineReady)
	require.NoError(t, engine.Play())

	out.drain()

	waitFor(t, rec, domain.EngineEnded)
	assert.False(t, engine.IsPlaying())
	assert.Equal(t, []domain.EngineEventKind{
		domain.EngineReady,
		domain.EnginePlayingChanged,
		domain.EnginePlayingChanged,
		domain.EngineEnded,
	}, rec.kinds())
}

func TestEngine_PauseHoldsPosition(t *testing.T) {
	engine, out, rec, server := newTestEngine(t)

	require.NoError(t, engine.Load(item(server, "/clip.wav")))
	waitFor(t, rec, domain.EngineReady)
	require.NoError(t, engine.Play())

	out.advance(OutputSampleRate.N(50 * time.Millisecond))
	played := engine.Position()
	assert.Greater(t, played, time.Duration(0))

	require.NoError(t, engine.Pause())
	assert.False(t, engine.IsPlaying())

	out.advance(OutputSampleRate.N(50 * time.Millisecond))
	assert.Equal(t, played, engine.Position())
}

func TestEngine_Seek(t *testing.T) {
	engine, _, rec, server := newTestEngine(t)

	require.NoError(t, engine.Load(item(server, "/clip.wav")))
	waitFor(t, rec, domain.EngineReady)

	require.NoError(t, engine.Seek(100*time.Millisecond))
	ev := waitFor(t, rec, domain.EnginePositionDiscontinuity)
	assert.Equal(t, 100*time.Millisecond, ev.Position)
	assert.Equal(t, 100*time.Millisecond, engine.Position())

	assert.ErrorIs(t, engine.Seek(-time.Second), domain.ErrInvalidPosition)
	require.NoError(t, engine.Seek(time.Hour), "seeking past the end clamps")
}

func TestEngine_DownloadFailure(t *testing.T) {
	engine, _, rec, server := newTestEngine(t)

	require.NoError(t, engine.Load(item(server, "/missing")))
	ev := waitFor(t, rec, domain.EngineFailed)
	assert.ErrorIs(t, ev.Err, domain.ErrPlaybackFailed)
	assert.False(t, engine.Loaded())
	assert.ErrorIs(t, engine.Play(), domain.ErrNoMediaLoaded)
}

func TestEngine_UnsupportedFormat(t *testing.T) {
	engine, _, rec, server := newTestEngine(t)

	require.NoError(t, engine.Load(item(server, "/garbage")))
	ev := waitFor(t, rec, domain.EngineFailed)
	assert.ErrorIs(t, ev.Err, domain.ErrUnsupportedFormat)
}

func TestEngine_OutputFailure(t *testing.T) {
	engine, out, rec, server := newTestEngine(t)
	out.initErr = assert.AnError

	require.NoError(t, engine.Load(item(server, "/clip.wav")))
	ev := waitFor(t, rec, domain.EngineFailed)
	assert.ErrorIs(t, ev.Err, assert.AnError)
}

func TestEngine_LoadReplacesPendingItem(t *testing.T) {
	engine, _, rec, server := newTestEngine(t)

	require.NoError(t, engine.Load(item(server, "/slow")))
	require.NoError(t, engine.Load(item(server, "/clip.wav")))

	waitFor(t, rec, domain.EngineReady)
	_, failed := rec.find(domain.EngineFailed)
	assert.False(t, failed, "the abandoned download must not report")
}

func TestEngine_Stop(t *testing.T) {
	engine, out, rec, server := newTestEngine(t)

	require.NoError(t, engine.Load(item(server, "/clip.wav")))
	waitFor(t, rec, domain.EngineReady)
	require.NoError(t, engine.Play())

	require.NoError(t, engine.Stop())
	assert.False(t, engine.Loaded())
	assert.False(t, engine.IsPlaying())
	assert.Zero(t, engine.Position())
	assert.Zero(t, out.active())
}

func TestEngine_Validation(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)

	assert.ErrorIs(t, engine.Load(domain.MediaItem{}), domain.ErrInvalidMediaURI)
	assert.ErrorIs(t, engine.Play(), domain.ErrNoMediaLoaded)
	assert.ErrorIs(t, engine.Pause(), domain.ErrNoMediaLoaded)
	assert.ErrorIs(t, engine.Seek(0), domain.ErrNoMediaLoaded)
	assert.ErrorIs(t, engine.SetVolume(1.5), domain.ErrInvalidVolume)
	assert.ErrorIs(t, engine.SetVolume(-0.1), domain.ErrInvalidVolume)
}

func TestEngine_Volume(t *testing.T) {
	engine, _, rec, server := newTestEngine(t)

	require.NoError(t, engine.Load(item(server, "/clip.wav")))
	waitFor(t, rec, domain.EngineReady)

	require.NoError(t, engine.SetVolume(0.5))
	assert.Equal(t, 0.5, engine.Volume())
	engine.mu.Lock()
	assert.InDelta(t, -1.0, engine.track.volume.Volume, 1e-9)
	assert.False(t, engine.track.volume.Silent)
	engine.mu.Unlock()

	require.NoError(t, engine.SetVolume(0))
	engine.mu.Lock()
	assert.True(t, engine.track.volume.Silent)
	engine.mu.Unlock()
}

func TestEngine_Shutdown(t *testing.T) {
	defer testutil.VerifyNoLeaks(t, testutil.IgnoreHTTPGoroutines()...)

	engine, out, rec, server := newTestEngine(t)
	require.NoError(t, engine.Load(item(server, "/clip.wav")))
	waitFor(t, rec, domain.EngineReady)

	require.NoError(t, engine.Shutdown())
	assert.True(t, out.closed)
	assert.ErrorIs(t, engine.Shutdown(), domain.ErrNotInitialized)
	assert.ErrorIs(t, engine.Load(item(server, "/clip.wav")), domain.ErrNotInitialized)
	server.Close()
}

func TestIdentify(t *testing.T) {
	tests := []struct {
		name        string
		data        []byte
		contentType string
		want        tag.FileType
	}{
		{"wav magic", []byte("RIFF\x00\x00\x00\x00WAVEfmt "), "", fileTypeWAV},
		{"flac magic", []byte("fLaC\x00\x00\x00\x22"), "", tag.FLAC},
		{"ogg magic", []byte("OggS\x00\x02\x00\x00"), "", tag.OGG},
		{"mp3 frame sync", []byte{0xFF, 0xFB, 0x90, 0x64, 0x00}, "", tag.MP3},
		{"content type fallback", []byte("xxxx"), "audio/mpeg; charset=binary", tag.MP3},
		{"unknown", []byte("<html>"), "text/html", tag.UnknownFileType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := bytes.NewReader(tt.data)
			assert.Equal(t, tt.want, identify(r, tt.contentType))

			pos, err := r.Seek(0, 1)
			require.NoError(t, err)
			assert.Zero(t, pos, "reader is rewound")
		})
	}
}
