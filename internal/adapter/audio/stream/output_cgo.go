//go:build (linux && cgo) || windows || darwin

package stream

import (
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
)

// AudioAvailable indicates whether audio playback is supported in this build.
const AudioAvailable = true

const speakerBuffer = 100 * time.Millisecond

// speakerOutput plays through the system audio device.
type speakerOutput struct{}

func newSpeakerOutput() output {
	return speakerOutput{}
}

func (speakerOutput) Init(sampleRate beep.SampleRate) error {
	return speaker.Init(sampleRate, sampleRate.N(speakerBuffer))
}

func (speakerOutput) Play(s beep.Streamer) { speaker.Play(s) }
func (speakerOutput) Lock()                { speaker.Lock() }
func (speakerOutput) Unlock()              { speaker.Unlock() }
func (speakerOutput) Clear()               { speaker.Clear() }
func (speakerOutput) Close()               { speaker.Close() }
