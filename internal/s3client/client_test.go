package s3client

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPutGet_RoundtripUnderPrefix(t *testing.T) {
	client := TestClient(t, "artifacts", "run-1")
	ctx := context.Background()

	require.NoError(t, client.PutObject(ctx, "windmill/auth_attempt_1.png", []byte("png"), "image/png"))

	got, err := client.GetObject(ctx, "windmill/auth_attempt_1.png")
	require.NoError(t, err)
	require.Equal(t, []byte("png"), got)
	require.Equal(t, "run-1/windmill/auth_attempt_1.png", client.Key("/windmill/auth_attempt_1.png"))
}

func TestGetObject_Missing(t *testing.T) {
	client := TestClient(t, "artifacts", "")

	_, err := client.GetObject(context.Background(), "nope.html")
	require.True(t, errors.Is(err, ErrObjectNotFound), "got %v", err)
}

func TestKey_NoPrefix(t *testing.T) {
	t.Parallel()

	c := NewFromS3Client(nil, "b", "/")
	require.Equal(t, "a/b.txt", c.Key("a/b.txt"))
	require.Equal(t, "b", c.BucketName())
}
