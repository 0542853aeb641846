// Package bucket lists and fetches raw survey files from a public
// object-storage bucket using anonymous credentials.
package bucket

import (
	"context"
	"fmt"
	"io"
	"strings"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/seaward/echoflow/internal/models"
)

const rawSuffix = ".raw"

// Client wraps an anonymous minio connection to one bucket/prefix.
type Client struct {
	mc     *minio.Client
	bucket string
	prefix string
}

// New connects anonymously to the object store. No credentials are sent;
// the bucket must allow public reads.
func New(endpoint, bucketName, prefix string, secure bool) (*Client, error) {
	mc, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4("", "", ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", endpoint, err)
	}
	return &Client{mc: mc, bucket: bucketName, prefix: prefix}, nil
}

// List returns every .raw object under the configured prefix. Listing
// errors are fatal to the run and propagate.
func (c *Client) List(ctx context.Context) ([]models.RemoteFile, error) {
	var out []models.RemoteFile
	for obj := range c.mc.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{
		Prefix:    c.prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list %s/%s: %w", c.bucket, c.prefix, obj.Err)
		}
		if !strings.HasSuffix(obj.Key, rawSuffix) {
			continue
		}
		out = append(out, models.RemoteFile{Key: obj.Key, Size: obj.Size})
	}
	return out, nil
}

// Fetch opens one remote object for reading. The caller closes it.
func (c *Client) Fetch(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := c.mc.GetObject(ctx, c.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("fetch %s/%s: %w", c.bucket, key, err)
	}
	return obj, nil
}
