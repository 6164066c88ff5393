package storage

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newwaysadmin/slipsync/internal/common"
)

func restoreS3Stubs(t *testing.T) {
	t.Helper()
	origGet, origPut, origHead := s3GetObject, s3PutObject, s3HeadObject
	t.Cleanup(func() {
		s3GetObject, s3PutObject, s3HeadObject = origGet, origPut, origHead
	})
}

func TestS3StoreLoad(t *testing.T) {
	restoreS3Stubs(t)

	var gotKey string
	s3GetObject = func(c *s3.Client, ctx context.Context, in *s3.GetObjectInput) (*s3.GetObjectOutput, error) {
		gotKey = *in.Key
		return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader([]byte("img")))}, nil
	}

	s := &S3Store{bucket: "slips"}
	b, err := s.Load(context.Background(), "P1.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("img"), b)
	assert.Equal(t, "P1.jpg", gotKey)
}

func TestS3StoreLoadNoSuchKey(t *testing.T) {
	restoreS3Stubs(t)

	s3GetObject = func(c *s3.Client, ctx context.Context, in *s3.GetObjectInput) (*s3.GetObjectOutput, error) {
		return nil, &types.NoSuchKey{}
	}

	s := &S3Store{bucket: "slips"}
	_, err := s.Load(context.Background(), "missing.jpg")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestS3StoreSave(t *testing.T) {
	restoreS3Stubs(t)

	var gotBody []byte
	s3PutObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
		b, err := io.ReadAll(in.Body)
		require.NoError(t, err)
		gotBody = b
		return &s3.PutObjectOutput{}, nil
	}

	s := &S3Store{bucket: "slips"}
	require.NoError(t, s.Save(context.Background(), "P1.jpg", []byte("img")))
	assert.Equal(t, []byte("img"), gotBody)
}

func TestS3StoreExists(t *testing.T) {
	restoreS3Stubs(t)

	s3HeadObject = func(c *s3.Client, ctx context.Context, in *s3.HeadObjectInput) (*s3.HeadObjectOutput, error) {
		if *in.Key == "P1.jpg" {
			return &s3.HeadObjectOutput{}, nil
		}
		return nil, &types.NotFound{}
	}

	s := &S3Store{bucket: "slips"}

	ok, err := s.Exists(context.Background(), "P1.jpg")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Exists(context.Background(), "P2.jpg")
	require.NoError(t, err)
	assert.False(t, ok)
}
