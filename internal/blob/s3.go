// Package blob stores receipt images in an S3-compatible bucket.
package blob

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/joseph-ayodele/payment-receipts/constants"
	"github.com/joseph-ayodele/payment-receipts/internal/common"
)

// PutInput is one object to store.
type PutInput struct {
	Data        []byte
	Folder      string
	ContentType string
}

// Store persists bytes and returns a retrievable HTTPS URL.
type Store interface {
	Put(ctx context.Context, in PutInput) (string, error)
}

type Config struct {
	Bucket          string
	Region          string
	Endpoint        string // set for S3-compatible providers
	PublicBaseURL   string // overrides the derived object URL
	AccessKeyID     string
	SecretAccessKey string
	ForcePathStyle  bool
}

type putObjectAPI interface {
	PutObjectWithContext(ctx aws.Context, in *s3.PutObjectInput, opts ...request.Option) (*s3.PutObjectOutput, error)
}

type S3Store struct {
	api    putObjectAPI
	cfg    Config
	logger *slog.Logger
}

// NewS3Store builds a session from static credentials when given, otherwise from the
// default AWS credential chain.
func NewS3Store(cfg Config, logger *slog.Logger) (*S3Store, error) {
	awsCfg := &aws.Config{
		Region:           aws.String(cfg.Region),
		S3ForcePathStyle: aws.Bool(cfg.ForcePathStyle),
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
	}
	if cfg.AccessKeyID != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("creating s3 session: %w", err)
	}
	return newS3Store(s3.New(sess), cfg, logger), nil
}

func newS3Store(api putObjectAPI, cfg Config, logger *slog.Logger) *S3Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &S3Store{api: api, cfg: cfg, logger: logger}
}

// Put writes the image under folder/<sha256>.<ext>. Identical bytes map to the same key,
// so a retried upload overwrites rather than duplicates.
func (s *S3Store) Put(ctx context.Context, in PutInput) (string, error) {
	ext, ok := constants.ExtForContentType(in.ContentType)
	if !ok {
		return "", common.InvalidInputf("unsupported content type %q", in.ContentType)
	}
	key := ObjectKey(in.Folder, in.Data, ext)

	start := time.Now()
	_, err := s.api.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(in.Data),
		ContentLength: aws.Int64(int64(len(in.Data))),
		ContentType:   aws.String(constants.NormalizeContentType(in.ContentType)),
	})
	if err != nil {
		s.logger.Error("blob.put.failed", "key", key, "error", err)
		return "", fmt.Errorf("%w: s3 put %s: %w", common.ErrDependency, key, err)
	}

	url := s.URL(key)
	s.logger.Info("blob.put.ok", "key", key, "bytes", len(in.Data), "elapsed_ms", time.Since(start).Milliseconds())
	return url, nil
}

// URL is the public address of key.
func (s *S3Store) URL(key string) string {
	if base := strings.TrimRight(s.cfg.PublicBaseURL, "/"); base != "" {
		return base + "/" + key
	}
	if s.cfg.Endpoint != "" {
		return strings.TrimRight(s.cfg.Endpoint, "/") + "/" + s.cfg.Bucket + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, key)
}

// ObjectKey is folder/<hex sha256 of data>.<ext>.
func ObjectKey(folder string, data []byte, ext string) string {
	sum := sha256.Sum256(data)
	name := hex.EncodeToString(sum[:]) + "." + ext
	folder = strings.Trim(folder, "/")
	if folder == "" {
		return name
	}
	return folder + "/" + name
}
