// Package storage wraps an S3-compatible object store (MinIO in local
// deployments). Documents live in two fixed buckets: pending uploads await
// review, approved files are copied into the knowledge bucket.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"
)

// Client handles object store operations against the two document buckets.
type Client struct {
	s3Client      *s3.S3
	bucketPending string
	bucketKB      string
}

// Config holds connection settings for the object store.
type Config struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Region        string
	BucketPending string
	BucketKB      string
	UseSSL        bool
}

// NewClient creates an object store client. MinIO requires path-style
// addressing, so it is forced on.
func NewClient(config Config) (*Client, error) {
	endpoint := config.Endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		scheme := "http"
		if config.UseSSL {
			scheme = "https"
		}
		endpoint = fmt.Sprintf("%s://%s", scheme, endpoint)
	}

	region := config.Region
	if region == "" {
		region = "us-east-1"
	}

	sess, err := session.NewSession(&aws.Config{
		Credentials: credentials.NewStaticCredentials(
			config.AccessKey,
			config.SecretKey,
			"",
		),
		Endpoint:         aws.String(endpoint),
		Region:           aws.String(region),
		S3ForcePathStyle: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object store session: %w", err)
	}

	return &Client{
		s3Client:      s3.New(sess),
		bucketPending: config.BucketPending,
		bucketKB:      config.BucketKB,
	}, nil
}

// PendingBucket returns the bucket name for documents awaiting review.
func (c *Client) PendingBucket() string { return c.bucketPending }

// KnowledgeBucket returns the bucket name for approved documents.
func (c *Client) KnowledgeBucket() string { return c.bucketKB }

// EnsureBuckets creates both document buckets if they do not exist yet.
func (c *Client) EnsureBuckets(ctx context.Context) error {
	for _, bucket := range []string{c.bucketPending, c.bucketKB} {
		_, err := c.s3Client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
			Bucket: aws.String(bucket),
		})
		if err == nil {
			continue
		}
		_, err = c.s3Client.CreateBucketWithContext(ctx, &s3.CreateBucketInput{
			Bucket: aws.String(bucket),
		})
		if err != nil && !isBucketAlreadyOwned(err) {
			return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
		}
	}
	return nil
}

// Put uploads bytes under key in the given bucket.
func (c *Client) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	_, err := c.s3Client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        aws.ReadSeekCloser(bytes.NewReader(data)),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload object: %w", err)
	}
	return nil
}

// Get downloads the object under key from the given bucket.
func (c *Client) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	result, err := c.s3Client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download object: %w", err)
	}
	defer result.Body.Close()

	return io.ReadAll(result.Body)
}

// Remove deletes the object under key. A missing object is not an error, so
// cleanup paths can retry safely.
func (c *Client) Remove(ctx context.Context, bucket, key string) error {
	_, err := c.s3Client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// Copy copies an object between buckets, keeping the same key layout.
func (c *Client) Copy(ctx context.Context, srcBucket, dstBucket, key string) error {
	_, err := c.s3Client.CopyObjectWithContext(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(dstBucket),
		Key:        aws.String(key),
		CopySource: aws.String(fmt.Sprintf("/%s/%s", srcBucket, key)),
	})
	if err != nil {
		return fmt.Errorf("failed to copy object: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	if aerr, ok := err.(awserr.Error); ok {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return true
		}
	}
	return false
}

func isBucketAlreadyOwned(err error) bool {
	if aerr, ok := err.(awserr.Error); ok {
		switch aerr.Code() {
		case s3.ErrCodeBucketAlreadyOwnedByYou, s3.ErrCodeBucketAlreadyExists:
			return true
		}
	}
	return false
}

// GenerateKey generates a unique object key for a knowledge base upload,
// namespaced by knowledge base id and upload date.
func GenerateKey(kbID int64, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	date := time.Now().UTC().Format("20060102")
	name := strings.ReplaceAll(uuid.NewString(), "-", "")

	return fmt.Sprintf("%d/%s/%s%s", kbID, date, name, ext)
}

// GetContentType returns the content type for a filename
func GetContentType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return "application/pdf"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".doc":
		return "application/msword"
	case ".txt":
		return "text/plain"
	case ".md":
		return "text/markdown"
	case ".csv":
		return "text/csv"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".xls":
		return "application/vnd.ms-excel"
	case ".pptx":
		return "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	case ".ppt":
		return "application/vnd.ms-powerpoint"
	case ".json":
		return "application/json"
	case ".html", ".htm":
		return "text/html"
	default:
		return "application/octet-stream"
	}
}
