package s3

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratumdb/stratumdb/internal/config"
	"github.com/stratumdb/stratumdb/pkg/errors"
)

func TestNewClientRequiresBucket(t *testing.T) {
	ctx := context.Background()

	_, err := NewClient(ctx, nil)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidConfig, errors.CodeOf(err))

	_, err = NewClient(ctx, &config.S3Config{Region: "us-east-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket name cannot be empty")

	_, err = NewClientWithCredentials(ctx, &config.S3Config{}, "key", "secret")
	assert.Error(t, err)
}

func TestNewClientAppliesEndpointOptions(t *testing.T) {
	ctx := context.Background()

	client, err := NewClientWithCredentials(ctx, &config.S3Config{
		Region:       "us-east-1",
		Bucket:       "stratumdb-blocks",
		Endpoint:     "http://127.0.0.1:4566",
		UsePathStyle: true,
	}, "test-key", "test-secret")
	require.NoError(t, err)
	assert.Equal(t, "stratumdb-blocks", client.bucket)
	assert.NotNil(t, client.s3)
}

func TestNewObjectSourceDefaults(t *testing.T) {
	client := &Client{bucket: "stratumdb-blocks"}
	src := NewObjectSource(client, "tables/table-1.st", 0)
	require.NotNil(t, src)
	assert.Equal(t, "tables/table-1.st", src.key)
	assert.NotNil(t, src.retryer)
}

func TestReadAtZeroLength(t *testing.T) {
	src := NewObjectSource(&Client{bucket: "b"}, "k", 1)
	n, err := src.ReadAt(context.Background(), nil, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
