// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of the S3 client used for model replication.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Options configures the S3 client.
type S3Options struct {
	Region       string
	Endpoint     string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// NewS3Client builds an S3 client. Static credentials are used when an
// access key is set, the default AWS credential chain otherwise. A custom
// endpoint targets S3-compatible stores such as MinIO.
func NewS3Client(ctx context.Context, opts S3Options) (*s3.Client, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.AccessKey != "" {
		creds := credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(creds))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	}), nil
}

// Publisher copies store versions to and from an S3 bucket. Each version
// becomes {prefix}model_v{N}/{file}.
type Publisher struct {
	client S3API
	bucket string
	prefix string
	store  *Store
}

// NewPublisher returns a publisher for store.
func NewPublisher(client S3API, bucket, prefix string, store *Store) *Publisher {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Publisher{client: client, bucket: bucket, prefix: prefix, store: store}
}

func (p *Publisher) key(version int, file string) string {
	return path.Join(p.prefix, fmt.Sprintf("%s%d", versionPrefix, version), file)
}

// Push uploads a stored version. Version 0 pushes the latest one. The
// config file is uploaded last so a partially pushed version is never
// listed as complete.
func (p *Publisher) Push(ctx context.Context, version int) (int, error) {
	if version == 0 {
		latest, ok := p.store.LatestVersion()
		if !ok {
			return 0, fmt.Errorf("%w: nothing to push", ErrArtifactNotFound)
		}
		version = latest
	}
	dir := p.store.Path(version)
	if !Exists(dir) {
		return 0, fmt.Errorf("%w: %s", ErrArtifactNotFound, dir)
	}

	for _, file := range ArtifactFiles {
		data, err := os.ReadFile(filepath.Join(dir, file)) //nolint:gosec // fixed file names inside the store
		if err != nil {
			return 0, fmt.Errorf("read %s: %w", file, err)
		}
		key := p.key(version, file)
		_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(p.bucket),
			Key:    aws.String(key),
			Body:   bytes.NewReader(data),
		})
		if err != nil {
			return 0, fmt.Errorf("put object %s/%s: %w", p.bucket, key, err)
		}
	}
	return version, nil
}

// Pull downloads a version into the store. Version 0 pulls the newest
// complete remote version.
func (p *Publisher) Pull(ctx context.Context, version int) (int, error) {
	if version == 0 {
		versions, err := p.Versions(ctx)
		if err != nil {
			return 0, err
		}
		if len(versions) == 0 {
			return 0, fmt.Errorf("%w: no versions under s3://%s/%s", ErrArtifactNotFound, p.bucket, p.prefix)
		}
		version = versions[len(versions)-1]
	}

	err := p.store.Install(ctx, version, func(dir string) error {
		for _, file := range ArtifactFiles {
			if err := p.download(ctx, p.key(version, file), filepath.Join(dir, file)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return version, nil
}

func (p *Publisher) download(ctx context.Context, key, dest string) error {
	out, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("get object %s/%s: %w", p.bucket, key, err)
	}
	defer func() { _ = out.Body.Close() }() //nolint:errcheck // response body

	f, err := os.Create(dest) //nolint:gosec // dest is inside a staging directory
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, out.Body); err != nil {
		_ = f.Close() //nolint:errcheck // the copy error is the one worth returning
		return fmt.Errorf("download %s: %w", key, err)
	}
	return f.Close()
}

// Versions lists the remote versions that have a config file, ascending.
func (p *Publisher) Versions(ctx context.Context) ([]int, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(p.bucket),
	}
	if p.prefix != "" {
		input.Prefix = aws.String(p.prefix)
	}

	var versions []int
	paginator := s3.NewListObjectsV2Paginator(p.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list objects in %s: %w", p.bucket, err)
		}
		for _, obj := range page.Contents {
			rel := strings.TrimPrefix(aws.ToString(obj.Key), p.prefix)
			dir, file := path.Split(rel)
			if file != ConfigFile {
				continue
			}
			if v, ok := parseVersionDir(strings.TrimSuffix(dir, "/")); ok {
				versions = append(versions, v)
			}
		}
	}
	slices.Sort(versions)
	return slices.Compact(versions), nil
}
