package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotKey(t *testing.T) {
	assert.Equal(t, "graph/tenant-1/snapshot.json", SnapshotKey("tenant-1"))
}

func TestGenerateDownloadLinkUsesPublicEndpoint(t *testing.T) {
	t.Setenv("AWS_BUCKET", "graphs")
	t.Setenv("AWS_PUBLIC_ENDPOINT", "https://files.example.com/storage")

	client := s3.New(s3.Options{
		Region:      "us-east-1",
		Credentials: credentials.NewStaticCredentialsProvider("key", "secret", ""),
	})

	link, err := GenerateDownloadLink(context.Background(), client, SnapshotKey("t1"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(link, "https://files.example.com/storage/graphs/graph/t1/snapshot.json?"), link)
	assert.Contains(t, link, "X-Amz-Signature=")
}

func TestGenerateDownloadLinkRejectsBadEndpoint(t *testing.T) {
	t.Setenv("AWS_BUCKET", "graphs")
	t.Setenv("AWS_PUBLIC_ENDPOINT", "not a url")

	client := s3.New(s3.Options{Region: "us-east-1"})
	_, err := GenerateDownloadLink(context.Background(), client, "k")
	assert.Error(t, err)
}

func TestEnabled(t *testing.T) {
	t.Setenv("AWS_BUCKET", "")
	assert.False(t, Enabled())
	t.Setenv("AWS_BUCKET", "graphs")
	assert.True(t, Enabled())
}
