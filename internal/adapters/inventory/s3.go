// Package inventory lists datasets already present in object storage, so
// work lists can be reduced to the files still missing remotely.
package inventory

import (
	"context"
	"log/slog"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// metadataSuffix marks the one object every uploaded dataset carries
// exactly once, making it a reliable presence indicator.
const metadataSuffix = ".yaml"

// S3Config holds S3 inventory configuration.
type S3Config struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// S3Inventory implements output.Inventory over ListObjectsV2.
type S3Inventory struct {
	client *s3.Client
	logger *slog.Logger
}

// NewS3Inventory creates an S3 inventory adapter.
func NewS3Inventory(ctx context.Context, cfg S3Config, logger *slog.Logger) (*S3Inventory, error) {
	var opts []func(*config.LoadOptions) error

	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID,
				cfg.SecretAccessKey,
				"",
			),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	return &S3Inventory{
		client: s3.NewFromConfig(awsCfg, clientOpts...),
		logger: logger.With("component", "inventory"),
	}, nil
}

// DatasetPrefixes implements output.Inventory. It returns the set of dataset
// prefixes under baseDir that already have their metadata document uploaded.
func (s *S3Inventory) DatasetPrefixes(ctx context.Context, bucket, baseDir string) (map[string]struct{}, error) {
	prefix := strings.Trim(baseDir, "/")
	if prefix != "" {
		prefix += "/"
	}

	prefixes := make(map[string]struct{})
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}

		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if !strings.HasSuffix(key, metadataSuffix) {
				continue
			}
			prefixes[strings.TrimSuffix(path.Base(key), metadataSuffix)] = struct{}{}
		}
	}

	s.logger.Debug("listed remote datasets", "bucket", bucket, "base_dir", baseDir, "datasets", len(prefixes))
	return prefixes, nil
}
