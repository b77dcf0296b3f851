// Package storage implements contribution.ProofStorage on S3-compatible
// object storage (AWS S3, Cloudflare R2, MinIO).
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/impact-hub/partner-portal/internal/domain/contribution"
	"github.com/impact-hub/partner-portal/internal/domain/shared"
	"github.com/impact-hub/partner-portal/pkg/circuitbreaker"
	"github.com/impact-hub/partner-portal/pkg/logger"
)

// Config holds object storage settings.
type Config struct {
	// Bucket is the private bucket for proof files. Empty disables storage.
	Bucket string

	// Region is the bucket region ("auto" for R2).
	Region string

	// Endpoint overrides the S3 endpoint for R2 or MinIO.
	Endpoint string

	// AccessKeyID and SecretAccessKey are static credentials.
	// When empty the default AWS credential chain is used.
	AccessKeyID     string
	SecretAccessKey string

	// UsePathStyle addresses the bucket in the path (required by MinIO).
	UsePathStyle bool

	// Timeout bounds a single upload.
	Timeout time.Duration
}

// Enabled reports whether a bucket is configured.
func (c Config) Enabled() bool {
	return c.Bucket != ""
}

// ObjectAPI is the subset of *s3.Client the store uses.
type ObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Presigner is the subset of *s3.PresignClient used for signed URLs.
type Presigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3ProofStore stores proof files in a private bucket and hands out
// time-limited signed URLs.
type S3ProofStore struct {
	api     ObjectAPI
	presign Presigner
	bucket  string
	timeout time.Duration
	breaker *circuitbreaker.CircuitBreaker
	log     *logger.Logger
}

var _ contribution.ProofStorage = (*S3ProofStore)(nil)

// NewS3ProofStore loads AWS configuration and creates the store.
func NewS3ProofStore(ctx context.Context, cfg Config, log *logger.Logger) (*S3ProofStore, error) {
	if !cfg.Enabled() {
		return nil, shared.ErrProofStorageDisabled
	}

	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage: failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return NewS3ProofStoreWithClients(client, s3.NewPresignClient(client), cfg, log), nil
}

// NewS3ProofStoreWithClients creates the store from ready clients.
func NewS3ProofStoreWithClients(api ObjectAPI, presign Presigner, cfg Config, log *logger.Logger) *S3ProofStore {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	log = log.With(logger.Component("proof-storage"))

	return &S3ProofStore{
		api:     api,
		presign: presign,
		bucket:  cfg.Bucket,
		timeout: cfg.Timeout,
		breaker: circuitbreaker.StorageBreaker(countsAsOutage, func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		}),
		log: log,
	}
}

// countsAsOutage keeps caller cancellations out of the failure count.
func countsAsOutage(err error) bool {
	return !errors.Is(err, context.Canceled)
}

// Upload writes the proof under key. Uploads are writes and are not retried.
func (s *S3ProofStore) Upload(ctx context.Context, key string, proof contribution.Proof) error {
	start := time.Now()
	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(s.bucket),
			Key:           aws.String(key),
			Body:          proof.Body,
			ContentType:   aws.String(proof.ContentType),
			ContentLength: aws.Int64(proof.Size),
		})
		return err
	})
	if err != nil {
		s.log.Error("proof upload failed", logger.String("key", key), logger.Err(err))
		return shared.Transient("storage", "Upload", err)
	}

	s.log.Debug("proof uploaded",
		logger.String("key", key),
		logger.Int64("size", proof.Size),
		logger.Latency(time.Since(start)),
	)
	return nil
}

// Delete removes the object under key. S3 treats a missing key as success.
func (s *S3ProofStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		return err
	})
	if err != nil {
		return shared.Transient("storage", "Delete", err)
	}
	s.log.Debug("proof deleted", logger.String("key", key))
	return nil
}

// SignedURL presigns a GET for key valid for ttl. Failures are transient;
// the read path that calls it owns the retry.
func (s *S3ProofStore) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if key == "" {
		return "", shared.ErrProofNotAttached
	}

	var url string
	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		}, s3.WithPresignExpires(ttl))
		if err != nil {
			return err
		}
		url = req.URL
		return nil
	})
	if err != nil {
		return "", shared.Transient("storage", "SignedURL", err)
	}
	return url, nil
}

// Ping reports the breaker state. Storage is optional, so health checks never touch S3.
func (s *S3ProofStore) Ping(context.Context) error {
	if s.breaker.IsOpen() {
		return circuitbreaker.ErrCircuitOpen
	}
	return nil
}
