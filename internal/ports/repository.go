// Package ports define repository interfaces for data persistence abstraction.
// These interfaces enable the repository pattern and allow swapping persistence mechanisms.
package ports

import (
	"context"

	"github.com/tejashwikalptaru/saavntune/internal/domain"
)

// QueueStore persists the playback queue as a single named slot.
//
// Every Save writes a complete, self-contained snapshot; readers never see a
// partially written record.
//
// Thread-safety: Implementations must be thread-safe.
type QueueStore interface {
	// Save overwrites the slot with the snapshot. Saving the same snapshot twice is harmless.
	Save(ctx context.Context, snapshot domain.QueueSnapshot) error

	// Load subscribes to the slot. The returned channel receives the current
	// value immediately and every subsequently saved value, and is closed when
	// ctx is done. Corrupt stored data is delivered as domain.EmptySnapshot().
	Load(ctx context.Context) (<-chan domain.QueueSnapshot, error)

	// Clear removes the slot entirely.
	Clear(ctx context.Context) error
}
