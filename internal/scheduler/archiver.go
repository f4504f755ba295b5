package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"birthdaybot/internal/types"
)

// DefaultArchiveBatchSize is the number of markers listed per archive cycle.
const DefaultArchiveBatchSize = 1000

// MarkerStore is the subset of the announcement repository used for cleanup.
type MarkerStore interface {
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]types.CelebrationMarker, error)
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ObjectPutter is the subset of the S3 client used to store archives.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// AnnouncementArchiver purges celebration markers past retention, uploading
// each purged batch to S3 as zstd-compressed JSON lines first.
type AnnouncementArchiver struct {
	store     MarkerStore
	s3        ObjectPutter // nil if archiving is not configured
	bucket    string
	batchSize int
	logger    *slog.Logger
	newKey    func(cutoff time.Time) string
}

// NewAnnouncementArchiver creates an AnnouncementArchiver. A nil client or an
// empty bucket purges without archiving.
func NewAnnouncementArchiver(store MarkerStore, client ObjectPutter, bucket string, batchSize int, logger *slog.Logger) *AnnouncementArchiver {
	if logger == nil {
		logger = slog.Default()
	}
	if batchSize <= 0 {
		batchSize = DefaultArchiveBatchSize
	}
	if bucket == "" {
		client = nil
	}
	return &AnnouncementArchiver{
		store:     store,
		s3:        client,
		bucket:    bucket,
		batchSize: batchSize,
		logger:    logger,
		newKey: func(cutoff time.Time) string {
			return fmt.Sprintf("announcements/%d/%02d/batch_%s.jsonl.zst", cutoff.Year(), cutoff.Month(), uuid.NewString())
		},
	}
}

// Cleanup removes markers dated before now-retention and returns how many
// were purged.
//
// Markers are archived a batch at a time, oldest first. When a batch is full
// its last date is held back so that a date is never split across a purge.
func (a *AnnouncementArchiver) Cleanup(ctx context.Context, now time.Time, retention time.Duration) (int, error) {
	cutoff := now.Add(-retention)

	if a.s3 == nil {
		a.logger.WarnContext(ctx, "announcement archive bucket not configured, purging without archive")
		purged, err := a.store.PurgeBefore(ctx, cutoff)
		if err != nil {
			return 0, fmt.Errorf("purging announcements: %w", err)
		}
		return int(purged), nil
	}

	total := 0
	for {
		batch, err := a.store.ListBefore(ctx, cutoff, a.batchSize)
		if err != nil {
			return total, fmt.Errorf("listing announcements for archival: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		upTo := cutoff
		full := len(batch) == a.batchSize
		if full {
			last := batch[len(batch)-1].Date
			held, err := time.ParseInLocation("2006-01-02", last, cutoff.Location())
			if err != nil {
				return total, fmt.Errorf("parsing marker date %q: %w", last, err)
			}
			trimmed := batch[:0]
			for _, m := range batch {
				if m.Date < last {
					trimmed = append(trimmed, m)
				}
			}
			if len(trimmed) == 0 {
				return total, fmt.Errorf("more than %d announcements dated %s", a.batchSize, last)
			}
			batch, upTo = trimmed, held
		}

		key := a.newKey(cutoff)
		if err := a.upload(ctx, key, batch); err != nil {
			return total, err
		}

		purged, err := a.store.PurgeBefore(ctx, upTo)
		if err != nil {
			return total, fmt.Errorf("purging archived announcements: %w", err)
		}
		total += int(purged)

		a.logger.InfoContext(ctx, "archived announcement batch",
			"batch_size", len(batch),
			"purged", purged,
			"s3_key", key,
			"total_purged", total,
		)

		if !full {
			break
		}
	}
	return total, nil
}

func (a *AnnouncementArchiver) upload(ctx context.Context, key string, markers []types.CelebrationMarker) error {
	data, err := encodeMarkers(markers)
	if err != nil {
		return fmt.Errorf("serializing announcements: %w", err)
	}
	_, err = a.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(a.bucket),
		Key:             aws.String(key),
		Body:            bytes.NewReader(data),
		ContentType:     aws.String("application/x-ndjson"),
		ContentEncoding: aws.String("zstd"),
		StorageClass:    s3types.StorageClassStandardIa,
	})
	if err != nil {
		return fmt.Errorf("uploading announcement archive to %s: %w", key, err)
	}
	return nil
}

// encodeMarkers renders markers as JSON lines and compresses them with zstd.
func encodeMarkers(markers []types.CelebrationMarker) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, m := range markers {
		if err := enc.Encode(m); err != nil {
			return nil, err
		}
	}

	zw, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	defer zw.Close()
	return zw.EncodeAll(buf.Bytes(), nil), nil
}
