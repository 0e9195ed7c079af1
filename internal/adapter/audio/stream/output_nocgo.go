//go:build !((linux && cgo) || windows || darwin)

package stream

import (
	"errors"
	"sync"

	"github.com/gopxl/beep/v2"
)

// AudioAvailable indicates whether audio playback is supported in this build.
// Audio requires cgo for native sound libraries.
const AudioAvailable = false

var errNoAudio = errors.New("audio output requires a cgo build")

// silentOutput refuses to open, so every load ends with EngineFailed.
type silentOutput struct {
	mu sync.Mutex
}

func newSpeakerOutput() output {
	return &silentOutput{}
}

func (*silentOutput) Init(beep.SampleRate) error { return errNoAudio }
func (*silentOutput) Play(beep.Streamer)         {}
func (o *silentOutput) Lock()                    { o.mu.Lock() }
func (o *silentOutput) Unlock()                  { o.mu.Unlock() }
func (*silentOutput) Clear()                     {}
func (*silentOutput) Close()                     {}
