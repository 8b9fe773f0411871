// Package stats keeps aggregate drive usage counters: global, per account,
// and per origin instance for federated content.
package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const recordTimeout = 5 * time.Second

var (
	driveBytes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "godrive_drive_usage_bytes",
		Help: "Bytes added to the drive since process start, by origin.",
	}, []string{"origin"})
	driveFiles = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "godrive_drive_files",
		Help: "Files added to the drive since process start, by origin.",
	}, []string{"origin"})
)

// Change is one file's contribution to the counters; negative on removal.
type Change struct {
	AccountID *uuid.UUID
	// Host is the owner's origin instance, nil for local and system files.
	Host  *string
	Bytes int64
	Files int64
}

// Origin labels the change as local or remote.
func (c Change) Origin() string {
	if c.Host != nil {
		return "remote"
	}
	return "local"
}

type batchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Recorder applies changes as a single batch.
type Recorder struct {
	db batchSender
}

// NewRecorder constructs a recorder over a pgx pool or connection.
func NewRecorder(db batchSender) *Recorder {
	return &Recorder{db: db}
}

// Record issues one increment call-set for c.
func (r *Recorder) Record(ctx context.Context, c Change) error {
	ctx, cancel := context.WithTimeout(ctx, recordTimeout)
	defer cancel()

	batch := buildBatch(c)
	results := r.db.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("record drive usage: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("close usage batch: %w", err)
	}

	driveBytes.WithLabelValues(c.Origin()).Add(float64(c.Bytes))
	driveFiles.WithLabelValues(c.Origin()).Add(float64(c.Files))
	return nil
}

const upsertCounter = `
INSERT INTO drive_usage_counters (scope, origin, files, bytes, updated_at)
VALUES ($1, $2, $3, $4, NOW())
ON CONFLICT (scope, origin)
DO UPDATE SET
    files      = GREATEST(drive_usage_counters.files + EXCLUDED.files, 0),
    bytes      = GREATEST(drive_usage_counters.bytes + EXCLUDED.bytes, 0),
    updated_at = NOW();`

const updateInstance = `
UPDATE instances
SET drive_usage = GREATEST(drive_usage + $2, 0),
    drive_files = GREATEST(drive_files + $3, 0)
WHERE host = $1;`

func buildBatch(c Change) *pgx.Batch {
	batch := &pgx.Batch{}
	batch.Queue(upsertCounter, "global", c.Origin(), c.Files, c.Bytes)
	if c.AccountID != nil {
		batch.Queue(upsertCounter, "account:"+c.AccountID.String(), c.Origin(), c.Files, c.Bytes)
	}
	if c.Host != nil {
		batch.Queue(updateInstance, *c.Host, c.Bytes, c.Files)
	}
	return batch
}
