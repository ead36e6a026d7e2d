package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/verivolabs/verivo-engine/internal/domain"
)

// ArchiveStore is the slice of the prediction store the archiver needs:
// reading long-resolved rows and pruning them once the archive upload
// succeeded.
type ArchiveStore interface {
	ListEvaluatedBefore(ctx context.Context, before time.Time) ([]domain.Prediction, error)
	DeleteEvaluatedBefore(ctx context.Context, before time.Time) (int64, error)
}

// Archiver moves evaluated predictions older than the retention window to
// object storage as JSONL and prunes them from the primary store. The delete
// only runs after the upload succeeded, so a failed run leaves the rows in
// place for the next attempt.
type Archiver struct {
	client    *Client
	store     ArchiveStore
	retention time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewArchiver creates an Archiver. retention <= 0 defaults to 90 days.
func NewArchiver(client *Client, store ArchiveStore, retention time.Duration, logger *slog.Logger) *Archiver {
	if retention <= 0 {
		retention = 90 * 24 * time.Hour
	}
	return &Archiver{
		client:    client,
		store:     store,
		retention: retention,
		logger:    logger.With(slog.String("component", "archiver")),
		now:       time.Now,
	}
}

// Run archives one batch of predictions evaluated before now-retention.
func (a *Archiver) Run(ctx context.Context) error {
	before := a.now().Add(-a.retention)

	rows, err := a.store.ListEvaluatedBefore(ctx, before)
	if err != nil {
		return fmt.Errorf("s3blob: archive query: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}

	buf, err := marshalJSONL(rows)
	if err != nil {
		return fmt.Errorf("s3blob: archive marshal: %w", err)
	}

	key := archiveKey(before)
	_, err = a.client.S3().PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.client.Bucket()),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("s3blob: archive upload %s: %w", key, err)
	}

	deleted, err := a.store.DeleteEvaluatedBefore(ctx, before)
	if err != nil {
		return fmt.Errorf("s3blob: archive prune: %w", err)
	}

	a.logger.InfoContext(ctx, "predictions archived",
		slog.String("key", key),
		slog.Int("archived", len(rows)),
		slog.Int64("pruned", deleted),
	)
	return nil
}

// archiveKey builds the object key, partitioned by the cutoff's year-month
// plus the run instant so repeated runs within a month never overwrite each
// other.
//
//	archive/predictions/2026-06/20260615T040000Z.jsonl
func archiveKey(before time.Time) string {
	return fmt.Sprintf("archive/predictions/%s/%s.jsonl",
		before.Format("2006-01"),
		time.Now().UTC().Format("20060102T150405Z"),
	)
}

// marshalJSONL serialises records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
