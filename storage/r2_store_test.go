package storage

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	puts    map[string][]byte
	types   map[string]string
	deleted []string
	err     error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{puts: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, _ := io.ReadAll(in.Body)
	f.puts[aws.ToString(in.Key)] = body
	f.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{ETag: aws.String(`"abc123"`)}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.deleted = append(f.deleted, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestR2Store_Put(t *testing.T) {
	client := newFakeS3()
	store, err := newR2Store(client, "results", "https://cdn.example/pub")
	require.NoError(t, err)

	res, err := store.Put(context.Background(), "results/tournament-1/latest.json", "application/json", []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, "abc123", res.ETag)
	assert.Equal(t, "https://cdn.example/pub/results/tournament-1/latest.json", res.Location)
	assert.Equal(t, []byte(`{}`), client.puts["results/tournament-1/latest.json"])
	assert.Equal(t, "application/json", client.types["results/tournament-1/latest.json"])
}

func TestR2Store_Errors(t *testing.T) {
	client := newFakeS3()
	client.err = errors.New("boom")
	store, err := newR2Store(client, "results", "https://cdn.example")
	require.NoError(t, err)

	_, err = store.Put(context.Background(), "k", "application/json", nil)
	assert.ErrorContains(t, err, "key: k")
	assert.Error(t, store.Delete(context.Background(), "k"))
}

func TestR2Store_PublicURL(t *testing.T) {
	store, err := newR2Store(newFakeS3(), "b", "https://cdn.example")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/a/b.json", store.PublicURL("/a/b.json"))
	assert.Equal(t, "", store.PublicURL(""))
}

func TestNewR2Store_RequiresConfig(t *testing.T) {
	_, err := NewR2Store(context.Background(), R2Config{AccountID: "x"})
	assert.Error(t, err)
}

func TestNopStore(t *testing.T) {
	var s ObjectStore = NopStore{}
	_, err := s.Put(context.Background(), "k", "application/json", nil)
	assert.ErrorIs(t, err, ErrStoreDisabled)
	assert.NoError(t, s.Delete(context.Background(), "k"))
	assert.Empty(t, s.PublicURL("k"))
}
