package mock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tejashwikalptaru/saavntune/internal/domain"
)

func TestArbiter_RequestAndEmit(t *testing.T) {
	a := NewArbiter()

	var got []domain.FocusChange
	granted, err := a.Request(func(c domain.FocusChange) { got = append(got, c) })
	assert.NoError(t, err)
	assert.True(t, granted)
	assert.True(t, a.Held())

	assert.True(t, a.Emit(domain.FocusLossTransient))
	assert.True(t, a.Emit(domain.FocusGain))
	assert.Equal(t, []domain.FocusChange{domain.FocusLossTransient, domain.FocusGain}, got)
}

func TestArbiter_AbandonStopsDelivery(t *testing.T) {
	a := NewArbiter()
	_, _ = a.Request(func(domain.FocusChange) { t.Fatal("listener called after abandon") })

	assert.NoError(t, a.Abandon())
	assert.False(t, a.Emit(domain.FocusLoss))
	assert.Equal(t, 1, a.Abandons())

	assert.NoError(t, a.Abandon(), "abandon without focus is a no-op")
	assert.Equal(t, 1, a.Abandons())
}

func TestArbiter_Deny(t *testing.T) {
	a := NewArbiter()
	a.SetDeny(true)

	granted, err := a.Request(func(domain.FocusChange) {})
	assert.NoError(t, err)
	assert.False(t, granted)
	assert.False(t, a.Held())
	assert.Equal(t, 1, a.Requests())
}
