package tempstore

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// defaultPresignTTL matches the default 72-hour validity for
// generated-artifact links.
const defaultPresignTTL = 72 * time.Hour

// S3Service implements Service against an S3-compatible bucket.
type S3Service struct {
	client     *s3.Client
	presigner  *s3.PresignClient
	bucket     string
	presignTTL time.Duration
}

// NewS3Service loads the default AWS config chain (env vars, shared config,
// IAM role) and targets bucket.
func NewS3Service(ctx context.Context, bucket string) (*S3Service, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if ak, sk := os.Getenv("SUPERBRAIN_S3_ACCESS_KEY"), os.Getenv("SUPERBRAIN_S3_SECRET_KEY"); ak != "" && sk != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(ak, sk, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("tempstore: load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return &S3Service{
		client:     client,
		presigner:  s3.NewPresignClient(client),
		bucket:     bucket,
		presignTTL: defaultPresignTTL,
	}, nil
}

func (s *S3Service) Put(ctx context.Context, filename string, data []byte, contentType string) (string, string, error) {
	key := fmt.Sprintf("%s/%s", uuid.NewString(), filename)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", "", fmt.Errorf("tempstore: put %s: %w", key, err)
	}

	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.presignTTL))
	if err != nil {
		return "", "", fmt.Errorf("tempstore: presign %s: %w", key, err)
	}
	return req.URL, key, nil
}

func (s *S3Service) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("tempstore: delete %s: %w", key, err)
	}
	return nil
}
