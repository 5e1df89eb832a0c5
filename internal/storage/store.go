package storage

import (
	"context"
	"time"
)

// SnapshotRecord is one persisted fire-queue publication: the burst it was
// sampled at plus the encoded XYZP payload the fanout produced for it.
type SnapshotRecord struct {
	BurstNumber uint64    `json:"burst_number"`
	CapturedAt  time.Time `json:"captured_at"`
	AreaCount   int       `json:"area_count"`
	NeuronCount int       `json:"neuron_count"`
	Payload     []byte    `json:"payload"`
}

// SnapshotStore persists published fire-queue snapshots for same-host
// consumers that have no transport attached. It is a best-effort fallback:
// the burst loop logs store failures and keeps ticking.
type SnapshotStore interface {
	Init(ctx context.Context) error
	SaveSnapshot(ctx context.Context, rec SnapshotRecord) error
	LatestSnapshot(ctx context.Context) (SnapshotRecord, bool, error)
	ListSnapshots(ctx context.Context, limit int) ([]SnapshotRecord, error)
	// Prune keeps the newest keep records and removes the rest.
	Prune(ctx context.Context, keep int) error
}

func unixNano(n int64) time.Time {
	return time.Unix(0, n)
}

func CloseIfSupported(store SnapshotStore) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
