//go:build sqlite

package storage

func newSQLiteStore(path string) (SnapshotStore, error) {
	return NewSQLiteStore(path), nil
}
