package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"reel/internal/config"
)

// MinIO stores objects in a bucket on an S3-compatible MinIO server.
type MinIO struct {
	bucket   string
	prefix   string
	endpoint string
	secure   bool
	baseURL  string
	client   *minio.Client
}

// NewMinIO connects a MinIO client. The connection is lazy; the first
// request surfaces credential or network problems.
func NewMinIO(b config.Backend) (*MinIO, error) {
	client, err := minio.New(b.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(b.AccessKey, b.SecretKey, ""),
		Secure: b.UseSSL,
		Region: b.Region,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConnsPerHost: 32,
			IdleConnTimeout:     90 * time.Second,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return &MinIO{
		bucket:   b.Bucket,
		prefix:   b.Prefix,
		endpoint: b.Endpoint,
		secure:   b.UseSSL,
		baseURL:  b.BaseURL,
		client:   client,
	}, nil
}

func (m *MinIO) String() string {
	return "minio://" + path.Join(m.endpoint, m.bucket, m.prefix)
}

func (m *MinIO) key(locator string) (string, error) {
	name, err := cleanName(locator)
	if err != nil {
		return "", err
	}
	if m.prefix == "" {
		return name, nil
	}
	return m.prefix + "/" + name, nil
}

// Save streams r to the bucket with a sniffed Content-Type.
func (m *MinIO) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	key, err := m.key(name)
	if err != nil {
		return "", err
	}
	contentType, body, err := sniff(r)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	if _, err := m.client.PutObject(ctx, m.bucket, key, body, -1, minio.PutObjectOptions{
		ContentType: contentType,
	}); err != nil {
		return "", fmt.Errorf("put %s/%s: %w", m.bucket, key, err)
	}
	locator, _ := cleanName(name)
	return locator, nil
}

func (m *MinIO) Open(ctx context.Context, locator string) (io.ReadCloser, error) {
	key, err := m.key(locator)
	if err != nil {
		return nil, err
	}
	if _, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{}); err != nil {
		if isMinIONotFound(err) {
			return nil, notFound(m.String(), locator)
		}
		return nil, fmt.Errorf("stat %s/%s: %w", m.bucket, key, err)
	}
	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", m.bucket, key, err)
	}
	return obj, nil
}

func (m *MinIO) URL(locator string) string {
	key, err := m.key(locator)
	if err != nil {
		return ""
	}
	if m.baseURL != "" {
		name, _ := cleanName(locator)
		return joinURL(m.baseURL, name)
	}
	scheme := "http"
	if m.secure {
		scheme = "https"
	}
	return joinURL(scheme+"://"+m.endpoint+"/"+m.bucket, key)
}

func (m *MinIO) Delete(ctx context.Context, locator string) error {
	key, err := m.key(locator)
	if err != nil {
		return err
	}
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil && !isMinIONotFound(err) {
		return fmt.Errorf("remove %s/%s: %w", m.bucket, key, err)
	}
	return nil
}

func (m *MinIO) Exists(ctx context.Context, locator string) (bool, error) {
	key, err := m.key(locator)
	if err != nil {
		return false, err
	}
	if _, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{}); err != nil {
		if isMinIONotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s/%s: %w", m.bucket, key, err)
	}
	return true, nil
}

func isMinIONotFound(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound":
		return true
	}
	return false
}
