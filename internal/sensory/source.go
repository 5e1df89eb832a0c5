package sensory

import (
	"context"

	"feagi/internal/model"
)

// Source is an agent's private data channel. Read blocks until a batch of
// decoded frames is available, the source's own poll timeout elapses (empty
// slice, nil error), or ctx is cancelled. Shared-memory readers, socket
// readers, and test stubs all sit behind this interface.
type Source interface {
	Read(ctx context.Context) ([]model.SensoryFrame, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context) ([]model.SensoryFrame, error)

func (f SourceFunc) Read(ctx context.Context) ([]model.SensoryFrame, error) {
	return f(ctx)
}
