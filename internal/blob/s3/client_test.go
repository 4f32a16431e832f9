package s3blob

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/mmsignal/internal/domain"
)

func TestNormaliseEndpoint(t *testing.T) {
	assert.Equal(t, "https://s3.example.com", normaliseEndpoint("https://s3.example.com", false))
	assert.Equal(t, "http://s3.local", normaliseEndpoint("s3.local", false))
	assert.Equal(t, "https://s3.local", normaliseEndpoint("s3.local", true))
	assert.Equal(t, "http://minio:9000", normaliseEndpoint("minio:9000", false))
}

type statusErr int

func (e statusErr) Error() string       { return fmt.Sprintf("status %d", int(e)) }
func (e statusErr) HTTPStatusCode() int { return int(e) }

func TestIsNotFound(t *testing.T) {
	assert.False(t, isNotFound(nil))
	assert.True(t, isNotFound(&types.NoSuchKey{}))
	assert.True(t, isNotFound(fmt.Errorf("wrapped: %w", &types.NotFound{})))
	assert.True(t, isNotFound(statusErr(404)))
	assert.False(t, isNotFound(statusErr(500)))
	assert.False(t, isNotFound(errors.New("boom")))
}

func TestNewRequiresBucketAndRegion(t *testing.T) {
	_, err := New(context.Background(), ClientConfig{Region: "us-east-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	_, err = New(context.Background(), ClientConfig{Bucket: "b"})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestNewBuildsClientWithoutNetwork(t *testing.T) {
	c, err := New(context.Background(), ClientConfig{
		Endpoint:       "localhost:9000",
		Region:         "us-east-1",
		Bucket:         "mmsignal",
		AccessKey:      "minio",
		SecretKey:      "minio123",
		ForcePathStyle: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "mmsignal", c.bucket)
	assert.NoError(t, c.Close())
}
