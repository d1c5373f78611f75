// Package s3 implements a read-only block source over a remote S3 object.
// Remote objects are immutable from the engine's point of view; overwrites
// happen locally and the remote copy is replaced wholesale, so only the
// read side of the block manager's source interfaces is offered.
package s3

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/stratumdb/stratumdb/internal/circuit"
	"github.com/stratumdb/stratumdb/internal/config"
	"github.com/stratumdb/stratumdb/pkg/errors"
	"github.com/stratumdb/stratumdb/pkg/retry"
	"github.com/stratumdb/stratumdb/pkg/utils"
)

var logger = utils.GetLogger("stratumdb")

// Client wraps an S3 client configured for one bucket.
type Client struct {
	s3     *s3.Client
	bucket string
}

// NewClient builds an S3 client from configuration. Static credentials are
// taken from the environment by the default chain; cfg only carries the
// engine-level settings.
func NewClient(ctx context.Context, cfg *config.S3Config) (*Client, error) {
	if cfg == nil || cfg.Bucket == "" {
		return nil, errors.NewError(errors.ErrCodeInvalidConfig, "s3 bucket name cannot be empty").
			WithComponent("storage/s3").WithOperation("setup")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithRetryMaxAttempts(1), // retries handled by pkg/retry
	)
	if err != nil {
		return nil, errors.NewError(errors.ErrCodeConnectionFailed, "failed to load AWS config").
			WithComponent("storage/s3").WithOperation("setup").WithCause(err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.UsePathStyle {
			o.UsePathStyle = true
		}
	})

	return &Client{s3: client, bucket: cfg.Bucket}, nil
}

// NewClientWithCredentials builds a client with explicit static credentials;
// used by tests against local S3-compatible endpoints.
func NewClientWithCredentials(ctx context.Context, cfg *config.S3Config, accessKey, secretKey string) (*Client, error) {
	if cfg == nil || cfg.Bucket == "" {
		return nil, errors.NewError(errors.ErrCodeInvalidConfig, "s3 bucket name cannot be empty").
			WithComponent("storage/s3").WithOperation("setup")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
	)
	if err != nil {
		return nil, errors.NewError(errors.ErrCodeConnectionFailed, "failed to load AWS config").
			WithComponent("storage/s3").WithOperation("setup").WithCause(err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.UsePathStyle {
			o.UsePathStyle = true
		}
	})

	return &Client{s3: client, bucket: cfg.Bucket}, nil
}

// ObjectSource reads byte ranges of one remote object. Transient failures
// are retried with backoff; a persistently failing remote opens the circuit
// breaker so block reads fail fast into the uncached fallback.
type ObjectSource struct {
	client  *Client
	key     string
	retryer *retry.Retryer
	breaker *circuit.Breaker
}

// NewObjectSource creates a source for the object at key.
func NewObjectSource(client *Client, key string, maxRetries int) *ObjectSource {
	return &ObjectSource{
		client:  client,
		key:     key,
		retryer: retry.New(retry.Config{MaxAttempts: maxRetries}),
		breaker: circuit.NewBreaker("s3:"+client.bucket, circuit.Config{}),
	}
}

// ReadAt fetches [off, off+len(p)) of the object with one ranged GET.
func (o *ObjectSource) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	var n int
	err := o.retryer.Do(ctx, func(ctx context.Context) error {
		return o.breaker.Do(ctx, func(ctx context.Context) error {
			return o.getRange(ctx, p, off, &n)
		})
	})
	if err != nil {
		logger.Debugf("s3 read of %s at offset %d failed: %s", o.key, off, err)
		return n, err
	}
	return n, nil
}

func (o *ObjectSource) getRange(ctx context.Context, p []byte, off int64, n *int) error {
	out, err := o.client.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(o.client.bucket),
		Key:    aws.String(o.key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", off, off+int64(len(p))-1)),
	})
	if err != nil {
		return errors.Newf(errors.ErrCodeNetworkError,
			"ranged GET of s3://%s/%s failed", o.client.bucket, o.key).
			WithComponent("storage/s3").WithOperation("read").WithCause(err)
	}
	defer func() { _ = out.Body.Close() }()

	*n, err = io.ReadFull(out.Body, p)
	if err != nil {
		return errors.Newf(errors.ErrCodeShortRead,
			"short read of s3://%s/%s: got %d of %d bytes", o.client.bucket, o.key, *n, len(p)).
			WithComponent("storage/s3").WithOperation("read").WithCause(err).WithRetryable(true)
	}
	return nil
}

// Size returns the remote object's length.
func (o *ObjectSource) Size(ctx context.Context) (int64, error) {
	var length int64
	err := o.breaker.Do(ctx, func(ctx context.Context) error {
		out, err := o.client.s3.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(o.client.bucket),
			Key:    aws.String(o.key),
		})
		if err != nil {
			return errors.Newf(errors.ErrCodeObjectNotFound,
				"HEAD of s3://%s/%s failed", o.client.bucket, o.key).
				WithComponent("storage/s3").WithOperation("size").WithCause(err)
		}
		if out.ContentLength == nil {
			return errors.Newf(errors.ErrCodeStorageRead,
				"HEAD of s3://%s/%s returned no content length", o.client.bucket, o.key).
				WithComponent("storage/s3").WithOperation("size")
		}
		length = *out.ContentLength
		return nil
	})
	return length, err
}
