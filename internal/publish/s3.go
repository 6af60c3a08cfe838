package publish

import (
	"bytes"
	"context"
	"dph-tracker/internal/history"
	"dph-tracker/internal/telemetry"
	"dph-tracker/internal/tracker"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const (
	report_s3_put = "s3.put"
)

type S3Options struct {
	Bucket string
	// Prefix is prepended to every object key.
	Prefix string
	Region string
	// Endpoint overrides the default endpoint resolution, it is used for
	// S3 compatible stores like minio or localstack.
	Endpoint string
}

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 uploads the whole history and the records of the new date as CSV
// objects.
type S3 struct {
	client objectPutter
	opts   S3Options
	tel    telemetry.API
}

func NewS3(ctx context.Context, opts S3Options, tel telemetry.API) (S3, error) {
	if opts.Bucket == "" {
		return S3{}, fmt.Errorf("s3: bucket is not set")
	}

	var loadOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return S3{}, fmt.Errorf("s3: load aws config: %w", err)
	}

	s3Opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  cfg.Credentials,
		HTTPClient:   cfg.HTTPClient,
		BaseEndpoint: cfg.BaseEndpoint,
	}
	if opts.Endpoint != "" {
		s3Opts.BaseEndpoint = aws.String(opts.Endpoint)
		s3Opts.UsePathStyle = true
	}

	return newS3(s3.New(s3Opts), opts, tel), nil
}

func newS3(client objectPutter, opts S3Options, tel telemetry.API) S3 {
	return S3{
		client: client,
		opts:   opts,
		tel:    telemetry.NewScopedAPI("publish", tel),
	}
}

func (p S3) Name() string {
	return "s3"
}

func (p S3) key(name string) string {
	return path.Join(p.opts.Prefix, name)
}

func (p S3) put(ctx context.Context, key string, records []history.CountRecord) error {
	buff := bytes.NewBuffer(nil)
	err := history.WriteCSV(buff, records)
	if err != nil {
		return err
	}

	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.opts.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buff.Bytes()),
		ContentType: aws.String("text/csv"),
		ACL:         types.ObjectCannedACLPrivate,
	})
	if err != nil {
		p.tel.ReportBroken(report_s3_put, err, p.opts.Bucket, key)
		return fmt.Errorf("put s3://%s/%s: %w", p.opts.Bucket, key, err)
	}
	p.tel.ReportDebug("uploaded", p.opts.Bucket, key, buff.Len())
	return nil
}

func (p S3) Publish(ctx context.Context, update tracker.Update) error {
	err := p.put(ctx, p.key(history.PrimaryFile), update.History)
	if err != nil {
		return err
	}
	return p.put(ctx, p.key(fmt.Sprintf("daily/%s.csv", update.Date)), update.Records)
}
