package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/aloglu/centsible/internal/config"
)

// Snapshots uploads copies of the state blobs to S3-compatible object
// storage on a schedule. Optional; disabled installs get a no-op.
type Snapshots struct {
	client  *s3.Client
	bucket  string
	enabled bool
	store   *Store
	logger  *slog.Logger
	now     func() time.Time
}

// NewSnapshots builds the snapshot uploader from config. When disabled it
// returns a usable no-op service.
func NewSnapshots(cfg *config.Config, st *Store, logger *slog.Logger) (*Snapshots, error) {
	logger = logger.With("component", "snapshots")
	if !cfg.SnapshotEnabled {
		logger.Info("state snapshots disabled - no bucket configured")
		return &Snapshots{store: st, logger: logger, now: time.Now}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.SnapshotRegion),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.SnapshotAccessKey,
			cfg.SnapshotSecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.SnapshotEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.SnapshotEndpoint)
		}
		o.UsePathStyle = true
	})

	logger.Info("state snapshots enabled",
		"bucket", cfg.SnapshotBucket,
		"endpoint", cfg.SnapshotEndpoint,
		"schedule", cfg.SnapshotSchedule,
	)

	return &Snapshots{
		client:  client,
		bucket:  cfg.SnapshotBucket,
		enabled: true,
		store:   st,
		logger:  logger,
		now:     time.Now,
	}, nil
}

// Enabled reports whether uploads are configured.
func (s *Snapshots) Enabled() bool {
	return s.enabled
}

// Upload copies every state blob to snapshots/<timestamp>/<name>. Missing
// blobs are skipped; any upload error aborts the run.
func (s *Snapshots) Upload(ctx context.Context) error {
	if !s.enabled {
		return nil
	}

	prefix := fmt.Sprintf("snapshots/%s", s.now().UTC().Format("2006-01-02T15-04-05Z"))
	for _, name := range []string{ItemsFile, SettingsFile, DiagnosticsFile} {
		data, err := s.store.ReadRaw(name)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}

		key := fmt.Sprintf("%s/%s", prefix, name)
		_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String("application/json"),
		})
		if err != nil {
			return fmt.Errorf("uploading %s: %w", key, err)
		}
		s.logger.Debug("uploaded state snapshot", "key", key, "bytes", len(data))
	}

	s.logger.Info("state snapshot complete", "prefix", prefix)
	return nil
}
