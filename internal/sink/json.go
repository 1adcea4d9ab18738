package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"nseoptions/internal/chain"
	apperrors "nseoptions/internal/errors"
	"nseoptions/internal/logging"
)

// JSONSink writes one timestamped snapshot file per cycle into a
// per-day directory. It can also keep the raw API response alongside
// the transformed dump.
type JSONSink struct {
	dir    string
	logger zerolog.Logger
}

// NewJSONSink creates a JSON snapshot sink rooted at dir.
func NewJSONSink(dir string, logger zerolog.Logger) *JSONSink {
	return &JSONSink{dir: dir, logger: logger}
}

// snapshot is the transformed dump layout: metrics, the column
// contract, then the rows.
type snapshot struct {
	Metrics chain.Metrics `json:"metrics"`
	Columns []string      `json:"columns"`
	Rows    []chain.Row   `json:"rows"`
}

// Write implements Sink.
func (s *JSONSink) Write(ctx context.Context, rows []chain.Row, m chain.Metrics) error {
	data, err := json.MarshalIndent(snapshot{
		Metrics: m,
		Columns: chain.Columns(),
		Rows:    rows,
	}, "", "  ")
	if err != nil {
		return apperrors.Wrap(err, "encoding snapshot")
	}
	return s.writeFile(m, "", data)
}

// WriteRaw implements RawWriter, keeping the untouched API response.
func (s *JSONSink) WriteRaw(ctx context.Context, payload *chain.Payload, m chain.Metrics) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return apperrors.Wrap(err, "encoding raw payload")
	}
	return s.writeFile(m, " raw", data)
}

func (s *JSONSink) writeFile(m chain.Metrics, suffix string, data []byte) error {
	day := time.Now().Format("2006-01-02")
	dir := filepath.Join(s.dir, day)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return apperrors.Wrap(err, "creating snapshot directory")
	}

	name := fmt.Sprintf("%s #%s at %s%s.json",
		m.Symbol, shortID(), sanitizeTimestamp(m.Timestamp), suffix)
	path := filepath.Join(dir, name)

	if err := os.WriteFile(path, data, 0644); err != nil {
		return apperrors.Wrap(err, "writing snapshot")
	}
	logging.LogSnapshot(s.logger, path, len(data))
	return nil
}

// shortID returns a short uppercase file id.
func shortID() string {
	return strings.ToUpper(uuid.NewString()[:7])
}

// sanitizeTimestamp strips characters the filesystem dislikes from the
// server timestamp.
func sanitizeTimestamp(ts string) string {
	if ts == "" {
		ts = time.Now().Format("02-Jan-2006 150405")
	}
	return strings.ReplaceAll(ts, ":", "")
}
