package evidence

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Blob is one archived artifact for a job: a screenshot, the raw response
// HTML, or any other evidence the EvidenceFull level requires.
type Blob struct {
	Key         string
	ContentType string
	Content     []byte
	Digest      string
}

// Store persists evidence blobs. It is the evidence-specific slice of the
// persistence interface (spec §6) that the core is allowed to own directly,
// because blob bytes are not study/job graph state.
type Store interface {
	Put(ctx context.Context, blob Blob) error
	Get(ctx context.Context, key string) (Blob, error)
}

// MemoryStore is the in-memory stub the core runs against by default (spec
// §6: "the core functions correctly against an in-memory stub").
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string]Blob
}

// NewMemoryStore creates an empty in-memory evidence store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string]Blob)}
}

func (s *MemoryStore) Put(_ context.Context, blob Blob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[blob.Key] = blob
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (Blob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	blob, ok := s.blobs[key]
	if !ok {
		return Blob{}, fmt.Errorf("evidence blob %q not found", key)
	}
	return blob, nil
}

// S3Config configures the S3-backed evidence store.
type S3Config struct {
	Region         string
	Bucket         string
	Prefix         string
	Endpoint       string
	ForcePathStyle bool
}

// S3Store persists evidence blobs to S3-compatible object storage, used when
// a manifest's evidenceLevel is "full" in a deployment that wires real
// object storage rather than the in-memory default.
type S3Store struct {
	client     *s3.Client
	uploader   *manager.Uploader
	downloader *manager.Downloader
	bucket     string
	prefix     string
}

// NewS3Store builds an S3Store from the given configuration.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.Endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, _ ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{URL: cfg.Endpoint, HostnameImmutable: true, SigningRegion: cfg.Region}, nil
		})
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.UsePathStyle = true })
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)
	return &S3Store{
		client:     client,
		uploader:   manager.NewUploader(client),
		downloader: manager.NewDownloader(client),
		bucket:     cfg.Bucket,
		prefix:     cfg.Prefix,
	}, nil
}

func (s *S3Store) objectKey(key string) string {
	return s.prefix + key
}

func (s *S3Store) Put(ctx context.Context, blob Blob) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.objectKey(blob.Key)),
		Body:        bytes.NewReader(blob.Content),
		ContentType: aws.String(blob.ContentType),
	})
	if err != nil {
		return fmt.Errorf("upload evidence blob %q: %w", blob.Key, err)
	}
	return nil
}

func (s *S3Store) Get(ctx context.Context, key string) (Blob, error) {
	buf := manager.NewWriteAtBuffer(nil)
	_, err := s.downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		return Blob{}, fmt.Errorf("download evidence blob %q: %w", key, err)
	}
	content := buf.Bytes()
	return Blob{Key: key, Content: content, Digest: HashContent(content)}, nil
}
