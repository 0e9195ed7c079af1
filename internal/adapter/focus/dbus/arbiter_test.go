package dbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tejashwikalptaru/saavntune/internal/domain"
	"github.com/tejashwikalptaru/saavntune/internal/logger"
)

func TestTracker_Transitions(t *testing.T) {
	tr := newTracker()

	change, ok := tr.update(":1.10", "Paused")
	assert.False(t, ok, "a paused player takes nothing")

	change, ok = tr.update(":1.10", "Playing")
	assert.True(t, ok)
	assert.Equal(t, domain.FocusLossTransient, change)

	_, ok = tr.update(":1.11", "Playing")
	assert.False(t, ok, "a second competitor changes nothing")

	_, ok = tr.update(":1.10", "Stopped")
	assert.False(t, ok, "another player is still playing")

	change, ok = tr.update(":1.11", "Paused")
	assert.True(t, ok)
	assert.Equal(t, domain.FocusGain, change)
}

func TestTracker_RemovePlayingPlayer(t *testing.T) {
	tr := newTracker()
	tr.update(":1.20", "Playing")

	change, ok := tr.remove(":1.20")
	assert.True(t, ok)
	assert.Equal(t, domain.FocusGain, change)

	_, ok = tr.remove(":1.20")
	assert.False(t, ok, "unknown senders are ignored")
}

func TestTracker_RemoveIdlePlayer(t *testing.T) {
	tr := newTracker()
	tr.update(":1.30", "Stopped")

	_, ok := tr.remove(":1.30")
	assert.False(t, ok)
	assert.Zero(t, tr.playing())
}

func TestArbiter_AbandonWithoutRequest(t *testing.T) {
	a := NewArbiter(mprisPrefix+"saavntune", logger.NewTestLogger())
	assert.NoError(t, a.Abandon())
}
