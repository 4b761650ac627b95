package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"github.com/eternnoir/mediascribe/pkg/apperror"
	"github.com/eternnoir/mediascribe/pkg/logger"
)

// Config configures the S3-compatible gateway.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Secure    bool
	Region    string
}

// s3Gateway implements Gateway over aws-sdk-go's S3 client using
// path-style addressing so it works against a MinIO-compatible endpoint.
type s3Gateway struct {
	client *s3.S3
	bucket string
}

const putRetries = 3
const putRetryDelay = 1 * time.Second

// New constructs a Gateway and ensures the configured bucket exists.
func New(cfg Config) (Gateway, error) {
	scheme := "http"
	if cfg.Secure {
		scheme = "https"
	}
	endpoint := fmt.Sprintf("%s://%s", scheme, cfg.Endpoint)

	sess, err := session.NewSession(&aws.Config{
		Credentials:      credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, ""),
		Endpoint:         aws.String(endpoint),
		Region:           aws.String(cfg.Region),
		S3ForcePathStyle: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 session: %w", err)
	}

	client := s3.New(sess)
	gw := &s3Gateway{client: client, bucket: cfg.Bucket}

	if err := gw.ensureBucket(); err != nil {
		return nil, err
	}

	return gw, nil
}

func (g *s3Gateway) ensureBucket() error {
	log := logger.WithComponent("objectstore").WithField("bucket", g.bucket)

	_, err := g.client.HeadBucket(&s3.HeadBucketInput{Bucket: aws.String(g.bucket)})
	if err == nil {
		return nil
	}

	log.Info().Msg("bucket does not exist, creating it")
	_, err = g.client.CreateBucket(&s3.CreateBucketInput{Bucket: aws.String(g.bucket)})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && (aerr.Code() == s3.ErrCodeBucketAlreadyOwnedByYou || aerr.Code() == s3.ErrCodeBucketAlreadyExists) {
			return nil
		}
		return apperror.Wrap(apperror.KindObjectStore, "ensure_bucket", err)
	}

	return nil
}

// Put makes up to 3 attempts on any upload error with a 1-second pause,
// resetting the stream offset between attempts.
func (g *s3Gateway) Put(ctx context.Context, path string, data io.ReadSeeker, contentType string, userMetadata map[string]string) error {
	meta := make(map[string]*string, len(userMetadata))
	for k, v := range userMetadata {
		meta[k] = aws.String(v)
	}

	uploader := s3manager.NewUploaderWithClient(g.client)

	var lastErr error
	for attempt := 0; attempt < putRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(putRetryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if _, err := data.Seek(0, io.SeekStart); err != nil {
			return apperror.Wrap(apperror.KindObjectStore, "put", fmt.Errorf("seek to start: %w", err))
		}

		_, err := uploader.UploadWithContext(ctx, &s3manager.UploadInput{
			Bucket:      aws.String(g.bucket),
			Key:         aws.String(path),
			Body:        data,
			ContentType: aws.String(contentType),
			Metadata:    meta,
		})
		if err == nil {
			return nil
		}
		lastErr = err
	}

	return apperror.Wrap(apperror.KindObjectStore, "put", lastErr)
}

// Get returns the bytes at path, or nil if the object does not exist.
func (g *s3Gateway) Get(ctx context.Context, path string) ([]byte, error) {
	out, err := g.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && (aerr.Code() == s3.ErrCodeNoSuchKey || aerr.Code() == "NotFound") {
			return nil, nil
		}
		return nil, apperror.Wrap(apperror.KindObjectStore, "get", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindObjectStore, "get", err)
	}
	return data, nil
}

// List returns all object paths under prefix.
func (g *s3Gateway) List(ctx context.Context, prefix string) ([]string, error) {
	var paths []string

	err := g.client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(g.bucket),
		Prefix: aws.String(prefix),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, obj := range page.Contents {
			paths = append(paths, aws.StringValue(obj.Key))
		}
		return true
	})
	if err != nil {
		return nil, apperror.Wrap(apperror.KindObjectStore, "list", err)
	}

	return paths, nil
}

// Delete removes the object at path. S3's DeleteObject succeeds for a
// missing key too, so a nil error always comes with true.
func (g *s3Gateway) Delete(ctx context.Context, path string) (bool, error) {
	_, err := g.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		return false, apperror.Wrap(apperror.KindObjectStore, "delete", err)
	}
	return true, nil
}

// Presign returns a temporary GET URL for path.
func (g *s3Gateway) Presign(ctx context.Context, path string, ttl time.Duration) (string, error) {
	req, _ := g.client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(path),
	})

	url, err := req.Presign(ttl)
	if err != nil {
		return "", apperror.Wrap(apperror.KindObjectStore, "presign", err)
	}
	return url, nil
}

// SaveJSON marshals value (indented, matching the human-readable artifact
// convention) and puts it at path.
func (g *s3Gateway) SaveJSON(ctx context.Context, path string, value interface{}) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return apperror.Wrap(apperror.KindObjectStore, "save_json", fmt.Errorf("marshal: %w", err))
	}
	return g.Put(ctx, path, bytes.NewReader(data), "application/json", nil)
}

// GetJSON fetches path and unmarshals it into out.
func (g *s3Gateway) GetJSON(ctx context.Context, path string, out interface{}) (bool, error) {
	data, err := g.Get(ctx, path)
	if err != nil {
		return false, err
	}
	if data == nil {
		return false, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, apperror.Wrap(apperror.KindObjectStore, "get_json", fmt.Errorf("unmarshal: %w", err))
	}
	return true, nil
}

// Path builds the `{task_id}/{file_type}/{filename}` object path
// convention used throughout the pipeline.
func Path(taskID, fileType, filename string) string {
	return fmt.Sprintf("%s/%s/%s", taskID, fileType, filename)
}
