package sink

import (
	"context"

	"nseoptions/internal/chain"
	"nseoptions/internal/store"
)

// StoreSink persists cycles into the SQLite snapshot store.
type StoreSink struct {
	store *store.Store
}

// NewStoreSink wraps a snapshot store as a Sink.
func NewStoreSink(st *store.Store) *StoreSink {
	return &StoreSink{store: st}
}

// Write implements Sink.
func (s *StoreSink) Write(ctx context.Context, rows []chain.Row, m chain.Metrics) error {
	_, err := s.store.SaveSnapshot(ctx, rows, m)
	return err
}
