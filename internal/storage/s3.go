package storage

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"reel/internal/config"
)

// S3 stores objects in an S3 bucket under an optional key prefix.
type S3 struct {
	bucket   string
	prefix   string
	region   string
	baseURL  string
	client   *s3.S3
	uploader *s3manager.Uploader
}

// NewS3 builds an S3 backend from the shared AWS config chain. Static keys,
// a named profile and a custom endpoint are honoured when configured.
func NewS3(b config.Backend) (*S3, error) {
	awsCfg := aws.Config{}
	if b.Region != "" {
		awsCfg.Region = aws.String(b.Region)
	}
	if b.Endpoint != "" {
		awsCfg.Endpoint = aws.String(b.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
		awsCfg.DisableSSL = aws.Bool(!b.UseSSL)
	}
	if b.AccessKey != "" && b.SecretKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(b.AccessKey, b.SecretKey, "")
	}
	sess, err := session.NewSessionWithOptions(session.Options{
		Profile:           b.Profile,
		Config:            awsCfg,
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, fmt.Errorf("aws session: %w", err)
	}
	return &S3{
		bucket:   b.Bucket,
		prefix:   b.Prefix,
		region:   b.Region,
		baseURL:  b.BaseURL,
		client:   s3.New(sess),
		uploader: s3manager.NewUploader(sess),
	}, nil
}

func (s *S3) String() string {
	return "s3://" + path.Join(s.bucket, s.prefix)
}

func (s *S3) key(locator string) (string, error) {
	name, err := cleanName(locator)
	if err != nil {
		return "", err
	}
	if s.prefix == "" {
		return name, nil
	}
	return s.prefix + "/" + name, nil
}

// Save uploads r with a sniffed Content-Type.
func (s *S3) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	key, err := s.key(name)
	if err != nil {
		return "", err
	}
	contentType, body, err := sniff(r)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	if _, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
		Body:        body,
	}); err != nil {
		return "", fmt.Errorf("upload s3://%s/%s: %w", s.bucket, key, err)
	}
	locator, _ := cleanName(name)
	return locator, nil
}

func (s *S3) Open(ctx context.Context, locator string) (io.ReadCloser, error) {
	key, err := s.key(locator)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, notFound(s.String(), locator)
		}
		return nil, fmt.Errorf("get s3://%s/%s: %w", s.bucket, key, err)
	}
	return out.Body, nil
}

func (s *S3) URL(locator string) string {
	key, err := s.key(locator)
	if err != nil {
		return ""
	}
	if s.baseURL != "" {
		name, _ := cleanName(locator)
		return joinURL(s.baseURL, name)
	}
	region := s.region
	if region == "" {
		region = aws.StringValue(s.client.Config.Region)
	}
	return joinURL(fmt.Sprintf("https://%s.s3.%s.amazonaws.com", s.bucket, region), key)
}

func (s *S3) Delete(ctx context.Context, locator string) error {
	key, err := s.key(locator)
	if err != nil {
		return err
	}
	if _, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil && !isS3NotFound(err) {
		return fmt.Errorf("delete s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}

func (s *S3) Exists(ctx context.Context, locator string) (bool, error) {
	key, err := s.key(locator)
	if err != nil {
		return false, err
	}
	_, err = s.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("head s3://%s/%s: %w", s.bucket, key, err)
	}
	return true, nil
}

func isS3NotFound(err error) bool {
	if awsErr, ok := err.(awserr.Error); ok {
		switch awsErr.Code() {
		case "NotFound", s3.ErrCodeNoSuchKey:
			return true
		}
	}
	return false
}
