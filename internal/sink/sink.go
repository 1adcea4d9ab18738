// Package sink provides output writers for transformed option chains.
package sink

import (
	"context"
	"errors"

	"nseoptions/internal/chain"
)

// Sink accepts one transformed poll cycle. Writes are fire-and-forget
// from the transform's perspective; a sink knows nothing about how the
// table was produced.
type Sink interface {
	Write(ctx context.Context, rows []chain.Row, m chain.Metrics) error
}

// RawWriter optionally accepts the untransformed payload alongside the
// transformed cycle.
type RawWriter interface {
	WriteRaw(ctx context.Context, payload *chain.Payload, m chain.Metrics) error
}

// Multi fans a cycle out to several sinks. All sinks are attempted;
// their errors are joined.
type Multi []Sink

// Write implements Sink.
func (s Multi) Write(ctx context.Context, rows []chain.Row, m chain.Metrics) error {
	var errs []error
	for _, sink := range s {
		if err := sink.Write(ctx, rows, m); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
