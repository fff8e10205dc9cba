package s3

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/bookspace/internal/infrastructure/config"
)

type fakeClient struct {
	in   *s3.PutObjectInput
	body []byte
	err  error
}

func (f *fakeClient) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.in = in
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.body = body
	return &s3.PutObjectOutput{}, nil
}

func TestUploader_Upload(t *testing.T) {
	client := &fakeClient{}
	uploader := NewUploaderWithClient(client, "backups", "shop/")

	loc, err := uploader.Upload(context.Background(), "bookspace-backup-2024-03-01.json", []byte(`{"clients":[]}`))

	require.NoError(t, err)
	assert.Equal(t, "s3://backups/shop/bookspace-backup-2024-03-01.json", loc)
	assert.Equal(t, "backups", aws.ToString(client.in.Bucket))
	assert.Equal(t, "shop/bookspace-backup-2024-03-01.json", aws.ToString(client.in.Key))
	assert.Equal(t, "application/json", aws.ToString(client.in.ContentType))
	assert.Equal(t, `{"clients":[]}`, string(client.body))
}

func TestUploader_UploadError(t *testing.T) {
	uploader := NewUploaderWithClient(&fakeClient{err: errors.New("access denied")}, "b", "")

	_, err := uploader.Upload(context.Background(), "x.json", nil)

	assert.ErrorContains(t, err, "access denied")
	assert.ErrorContains(t, err, "x.json")
}

func TestNewUploader_RequiresBucket(t *testing.T) {
	_, err := NewUploader(context.Background(), config.S3Config{})
	assert.Error(t, err)
}
