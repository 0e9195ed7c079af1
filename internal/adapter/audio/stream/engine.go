// Package stream provides a PlaybackEngine that plays remote audio streams
// through the beep audio library.
package stream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"mime"
	"net/http"
	"sync"
	"time"

	"github.com/dhowden/tag"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
	"github.com/tejashwikalptaru/saavntune/internal/domain"
	"github.com/tejashwikalptaru/saavntune/internal/ports"
)

const (
	// OutputSampleRate is the rate the output device is opened with; every
	// track is resampled to it.
	OutputSampleRate = beep.SampleRate(44100)

	resampleQuality = 4
	maxStreamBytes  = 64 << 20
)

// fileTypeWAV complements the container types known to the tag library.
const fileTypeWAV tag.FileType = "WAV"

// output is the audio device. The speaker package is the production implementation.
type output interface {
	Init(sampleRate beep.SampleRate) error
	Play(s beep.Streamer)
	Lock()
	Unlock()
	Clear()
	Close()
}

// track is a decoded item wired into the output chain.
type track struct {
	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	volume   *effects.Volume
}

// Engine downloads a stream, decodes it and plays it through a single output.
//
// Load returns immediately; download and decoding happen on a background
// goroutine and finish with an EngineReady or EngineFailed event.
//
// Thread-safety: This implementation is thread-safe. Listener calls are made
// after the engine lock is released.
type Engine struct {
	logger *slog.Logger
	client *http.Client
	out    output

	mu            sync.Mutex
	listener      ports.EngineListener
	gen           uint64
	item          *domain.MediaItem
	cancel        context.CancelFunc
	track         *track
	playing       bool
	playWhenReady bool
	volume        float64
	outputReady   bool
	shutdown      bool

	wg sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithHTTPClient replaces the client used to download streams.
func WithHTTPClient(client *http.Client) Option {
	return func(e *Engine) {
		e.client = client
	}
}

func withOutput(out output) Option {
	return func(e *Engine) {
		e.out = out
	}
}

// NewEngine creates an engine. The output device is opened on the first successful load.
func NewEngine(logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		logger: logger.With(slog.String("adapter", "stream_engine")),
		client: &http.Client{Timeout: 2 * time.Minute},
		out:    newSpeakerOutput(),
		volume: 1.0,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetListener registers the event listener.
func (e *Engine) SetListener(listener ports.EngineListener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listener = listener
}

func (e *Engine) emit(events []domain.EngineEvent) {
	e.mu.Lock()
	listener := e.listener
	e.mu.Unlock()

	if listener == nil {
		return
	}
	for _, ev := range events {
		listener(ev)
	}
}

// Load stops the current item and starts preparing the new one.
func (e *Engine) Load(item domain.MediaItem) error {
	e.mu.Lock()

	if e.shutdown {
		e.mu.Unlock()
		return domain.ErrNotInitialized
	}
	if item.URI == "" {
		e.mu.Unlock()
		return domain.ErrInvalidMediaURI
	}

	events := e.resetLocked()

	ctx, cancel := context.WithCancel(context.Background())
	loaded := item
	e.item = &loaded
	e.cancel = cancel
	gen := e.gen

	e.wg.Add(1)
	go e.prepare(ctx, gen, item)
	e.mu.Unlock()

	e.logger.Debug("preparing stream", slog.String("title", item.Title))
	e.emit(events)
	return nil
}

// resetLocked drops the current item. Callbacks of the dropped item are
// ignored from here on because the generation moves forward.
func (e *Engine) resetLocked() []domain.EngineEvent {
	var events []domain.EngineEvent
	if e.playing {
		events = append(events, domain.EngineEvent{Kind: domain.EnginePlayingChanged, Playing: false})
	}

	e.gen++
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	if e.track != nil {
		e.out.Clear()
		_ = e.track.streamer.Close()
		e.track = nil
	}
	e.item = nil
	e.playing = false
	e.playWhenReady = false
	return events
}

func (e *Engine) prepare(ctx context.Context, gen uint64, item domain.MediaItem) {
	defer e.wg.Done()

	tr, err := e.open(ctx, item.URI)

	e.mu.Lock()
	if gen != e.gen || e.shutdown {
		e.mu.Unlock()
		if tr != nil {
			_ = tr.streamer.Close()
		}
		return
	}

	if err == nil && !e.outputReady {
		if err = e.out.Init(OutputSampleRate); err == nil {
			e.outputReady = true
		} else {
			_ = tr.streamer.Close()
			err = domain.NewAudioEngineError("load", item.URI, "failed to open output", err)
		}
	}

	if err != nil {
		e.item = nil
		e.cancel = nil
		e.playWhenReady = false
		e.mu.Unlock()

		e.logger.Warn("stream failed", slog.String("title", item.Title), slog.Any("error", err))
		e.emit([]domain.EngineEvent{{Kind: domain.EngineFailed, Err: err}})
		return
	}

	resampled := beep.Resample(resampleQuality, tr.format.SampleRate, OutputSampleRate, tr.streamer)
	tr.ctrl = &beep.Ctrl{Streamer: resampled, Paused: !e.playWhenReady}
	tr.volume = &effects.Volume{Streamer: tr.ctrl, Base: 2}
	applyVolume(tr.volume, e.volume)
	e.track = tr

	e.out.Play(beep.Seq(tr.volume, beep.Callback(func() {
		// Runs on the output goroutine with the output lock held.
		go e.finished(gen)
	})))

	duration := tr.format.SampleRate.D(tr.streamer.Len())
	events := []domain.EngineEvent{{Kind: domain.EngineReady, Duration: duration}}
	if e.playWhenReady {
		e.playWhenReady = false
		e.playing = true
		events = append(events, domain.EngineEvent{Kind: domain.EnginePlayingChanged, Playing: true})
	}
	e.mu.Unlock()

	e.logger.Debug("stream ready", slog.String("title", item.Title), slog.Duration("duration", duration))
	e.emit(events)
}

func (e *Engine) finished(gen uint64) {
	e.mu.Lock()
	if gen != e.gen || e.track == nil {
		e.mu.Unlock()
		return
	}

	var events []domain.EngineEvent
	if e.playing {
		e.playing = false
		events = append(events, domain.EngineEvent{Kind: domain.EnginePlayingChanged, Playing: false})
	}
	events = append(events, domain.EngineEvent{Kind: domain.EngineEnded})
	e.mu.Unlock()

	e.emit(events)
}

// open downloads and decodes uri.
func (e *Engine) open(ctx context.Context, uri string) (*track, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, domain.NewAudioEngineError("load", uri, "invalid request", errors.Join(domain.ErrInvalidMediaURI, err))
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, domain.NewAudioEngineError("load", uri, "download failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, domain.NewAudioEngineError("load", uri, fmt.Sprintf("unexpected status %d", resp.StatusCode), domain.ErrPlaybackFailed)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxStreamBytes+1))
	if err != nil {
		return nil, domain.NewAudioEngineError("load", uri, "download failed", err)
	}
	if len(data) > maxStreamBytes {
		return nil, domain.NewAudioEngineError("load", uri, "stream too large", domain.ErrPlaybackFailed)
	}

	r := bytes.NewReader(data)
	kind := identify(r, resp.Header.Get("Content-Type"))

	streamer, format, err := decode(kind, r)
	if err != nil {
		return nil, domain.NewAudioEngineError("load", uri, fmt.Sprintf("cannot decode %q stream", kind), err)
	}
	return &track{streamer: streamer, format: format}, nil
}

// identify determines the container of a downloaded stream, falling back to
// magic bytes and the Content-Type header for untagged data.
func identify(r io.ReadSeeker, contentType string) tag.FileType {
	_, fileType, err := tag.Identify(r)
	_, _ = r.Seek(0, io.SeekStart)
	if err == nil && fileType != tag.UnknownFileType {
		return fileType
	}

	head := make([]byte, 12)
	n, _ := io.ReadFull(r, head)
	_, _ = r.Seek(0, io.SeekStart)
	switch {
	case n >= 12 && string(head[0:4]) == "RIFF" && string(head[8:12]) == "WAVE":
		return fileTypeWAV
	case n >= 4 && string(head[0:4]) == "fLaC":
		return tag.FLAC
	case n >= 4 && string(head[0:4]) == "OggS":
		return tag.OGG
	case n >= 2 && head[0] == 0xFF && head[1]&0xE0 == 0xE0:
		return tag.MP3
	}

	mediaType, _, _ := mime.ParseMediaType(contentType)
	switch mediaType {
	case "audio/mpeg", "audio/mp3":
		return tag.MP3
	case "audio/flac", "audio/x-flac":
		return tag.FLAC
	case "audio/ogg", "audio/vorbis":
		return tag.OGG
	case "audio/wav", "audio/x-wav", "audio/wave":
		return fileTypeWAV
	}
	return tag.UnknownFileType
}

func decode(kind tag.FileType, r *bytes.Reader) (beep.StreamSeekCloser, beep.Format, error) {
	switch kind {
	case tag.MP3:
		return mp3.Decode(readSeekNopCloser{r})
	case tag.FLAC:
		return flac.Decode(r)
	case tag.OGG:
		return vorbis.Decode(readSeekNopCloser{r})
	case fileTypeWAV:
		return wav.Decode(r)
	default:
		return nil, beep.Format{}, domain.ErrUnsupportedFormat
	}
}

// readSeekNopCloser lets decoders that want a ReadCloser seek in memory.
type readSeekNopCloser struct {
	*bytes.Reader
}

func (readSeekNopCloser) Close() error { return nil }

// Play starts playback, or queues it until the item is ready.
func (e *Engine) Play() error {
	e.mu.Lock()

	if e.shutdown {
		e.mu.Unlock()
		return domain.ErrNotInitialized
	}
	if e.item == nil {
		e.mu.Unlock()
		return domain.ErrNoMediaLoaded
	}

	var events []domain.EngineEvent
	switch {
	case e.track == nil:
		e.playWhenReady = true
	case !e.playing:
		e.setPausedLocked(false)
		e.playing = true
		events = append(events, domain.EngineEvent{Kind: domain.EnginePlayingChanged, Playing: true})
	}
	e.mu.Unlock()

	e.emit(events)
	return nil
}

// Pause pauses playback.
func (e *Engine) Pause() error {
	e.mu.Lock()

	if e.item == nil {
		e.mu.Unlock()
		return domain.ErrNoMediaLoaded
	}

	e.playWhenReady = false
	var events []domain.EngineEvent
	if e.playing {
		e.setPausedLocked(true)
		e.playing = false
		events = append(events, domain.EngineEvent{Kind: domain.EnginePlayingChanged, Playing: false})
	}
	e.mu.Unlock()

	e.emit(events)
	return nil
}

func (e *Engine) setPausedLocked(paused bool) {
	e.out.Lock()
	e.track.ctrl.Paused = paused
	e.out.Unlock()
}

// Stop halts playback and drops the item.
func (e *Engine) Stop() error {
	e.mu.Lock()
	events := e.resetLocked()
	e.mu.Unlock()

	e.emit(events)
	return nil
}

// Seek jumps within the loaded item. Positions past the end are clamped.
func (e *Engine) Seek(position time.Duration) error {
	e.mu.Lock()

	if e.item == nil || e.track == nil {
		e.mu.Unlock()
		return domain.ErrNoMediaLoaded
	}
	if position < 0 {
		e.mu.Unlock()
		return domain.ErrInvalidPosition
	}

	tr := e.track
	n := tr.format.SampleRate.N(position)
	if last := tr.streamer.Len() - 1; n > last {
		n = max(last, 0)
	}

	e.out.Lock()
	err := tr.streamer.Seek(n)
	e.out.Unlock()
	uri := e.item.URI
	e.mu.Unlock()

	if err != nil {
		return domain.NewAudioEngineError("seek", uri, "seek failed", err)
	}

	e.emit([]domain.EngineEvent{{Kind: domain.EnginePositionDiscontinuity, Position: tr.format.SampleRate.D(n)}})
	return nil
}

// SetVolume sets the output gain.
func (e *Engine) SetVolume(volume float64) error {
	if volume < 0 || volume > 1 {
		return domain.ErrInvalidVolume
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.volume = volume
	if e.track != nil {
		e.out.Lock()
		applyVolume(e.track.volume, volume)
		e.out.Unlock()
	}
	return nil
}

// applyVolume maps linear gain onto a base-2 volume effect.
func applyVolume(v *effects.Volume, gain float64) {
	if gain <= 0 {
		v.Silent = true
		v.Volume = 0
		return
	}
	v.Silent = false
	v.Volume = math.Log2(gain)
}

// Volume returns the output gain.
func (e *Engine) Volume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.volume
}

// IsPlaying reports the playing flag.
func (e *Engine) IsPlaying() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playing
}

// Loaded reports whether an item is preparing or ready.
func (e *Engine) Loaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.item != nil
}

// Position returns the playback position of the loaded item.
func (e *Engine) Position() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.track == nil {
		return 0
	}
	e.out.Lock()
	pos := e.track.streamer.Position()
	e.out.Unlock()
	return e.track.format.SampleRate.D(pos)
}

// Duration returns the decoded length of the loaded item.
func (e *Engine) Duration() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.track == nil {
		return 0
	}
	return e.track.format.SampleRate.D(e.track.streamer.Len())
}

// Shutdown stops playback, waits for pending downloads and closes the output.
func (e *Engine) Shutdown() error {
	e.mu.Lock()
	if e.shutdown {
		e.mu.Unlock()
		return domain.ErrNotInitialized
	}
	e.resetLocked()
	e.shutdown = true
	outputReady := e.outputReady
	e.mu.Unlock()

	e.wg.Wait()
	if outputReady {
		e.out.Close()
	}
	return nil
}

// Verify interface implementation
var _ ports.PlaybackEngine = (*Engine)(nil)
