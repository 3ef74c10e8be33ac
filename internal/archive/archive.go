// Package archive copies finished briefings to S3.
package archive

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"meridian/internal/config"
	"meridian/internal/core"
)

// ObjectPutter is the slice of the S3 client the archiver uses.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver uploads each briefing as a Markdown object.
type S3Archiver struct {
	client ObjectPutter
	bucket string
	prefix string
	log    zerolog.Logger
}

// NewS3Archiver creates an archiver using the default AWS configuration
// chain, with optional region and shared profile overrides.
func NewS3Archiver(ctx context.Context, cfg config.Archive, log zerolog.Logger) (*S3Archiver, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("archive bucket is required")
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
	})
	return New(client, cfg.Bucket, cfg.Prefix, log), nil
}

// New wraps an existing S3 client.
func New(client ObjectPutter, bucket, prefix string, log zerolog.Logger) *S3Archiver {
	return &S3Archiver{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		log:    log.With().Str("component", "archive").Logger(),
	}
}

// Key is the object key of a briefing: <prefix>/<profile>/<id>.md
func (a *S3Archiver) Key(b core.Briefing) string {
	return path.Join(a.prefix, string(b.FeedProfile), strconv.FormatInt(b.ID, 10)+".md")
}

// Archive uploads the briefing content with its provenance as object metadata.
func (a *S3Archiver) Archive(ctx context.Context, b core.Briefing) error {
	created := b.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	key := a.Key(b)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        strings.NewReader(b.Content),
		ContentType: aws.String("text/markdown; charset=utf-8"),
		Metadata: map[string]string{
			"briefing-id":   strconv.FormatInt(b.ID, 10),
			"feed-profile":  string(b.FeedProfile),
			"article-count": strconv.Itoa(len(b.ArticleIDs)),
			"created-at":    created.Format(time.RFC3339),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload briefing %d to s3://%s/%s: %w", b.ID, a.bucket, key, err)
	}

	a.log.Info().Int64("briefing_id", b.ID).Str("key", key).Msg("Briefing archived")
	return nil
}
