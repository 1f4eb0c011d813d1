// Package media turns stored media references into browser-usable URLs.
//
// Media binaries live in an S3-compatible bucket under the storage paths
// recorded in the journal. Reads never hand out raw paths; they attach
// presigned, time-limited GET URLs instead.
package media

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"golang.org/x/sync/errgroup"

	"github.com/mnemo-app/mnemo/pkg/journal"
)

// DefaultURLTTL is how long presigned URLs stay valid.
const DefaultURLTTL = time.Hour

// signConcurrency caps parallel presign calls per SignURLs batch.
const signConcurrency = 8

// Signer produces time-limited URLs for a batch of storage paths.
type Signer interface {
	// SignURLs returns a storage path to URL map. Paths that cannot be
	// signed are omitted from the map; the whole call fails only on the
	// first hard error.
	SignURLs(ctx context.Context, paths []string) (map[string]string, error)
}

// SignerFunc adapts a function to the [Signer] interface.
type SignerFunc func(ctx context.Context, paths []string) (map[string]string, error)

// SignURLs implements [Signer].
func (f SignerFunc) SignURLs(ctx context.Context, paths []string) (map[string]string, error) {
	return f(ctx, paths)
}

// NoSigner is the [Signer] used when no object storage is configured. It
// signs nothing, leaving media URLs empty.
type NoSigner struct{}

// SignURLs implements [Signer].
func (NoSigner) SignURLs(_ context.Context, _ []string) (map[string]string, error) {
	return map[string]string{}, nil
}

var (
	_ Signer = (*MinioSigner)(nil)
	_ Signer = NoSigner{}
)

// MinioSigner signs URLs against an S3-compatible endpoint via the MinIO
// client. Presigning is a local HMAC computation, so SignURLs makes no
// network calls.
type MinioSigner struct {
	client *minio.Client
	bucket string
	ttl    time.Duration
}

// MinioConfig carries the connection settings for [NewMinioSigner].
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool

	// URLTTL defaults to [DefaultURLTTL] when zero.
	URLTTL time.Duration
}

// NewMinioSigner creates a signer for the given bucket.
func NewMinioSigner(cfg MinioConfig) (*MinioSigner, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("media: minio signer: empty endpoint")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("media: minio signer: empty bucket")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("media: minio signer: %w", err)
	}

	ttl := cfg.URLTTL
	if ttl <= 0 {
		ttl = DefaultURLTTL
	}
	return &MinioSigner{client: client, bucket: cfg.Bucket, ttl: ttl}, nil
}

// SignURLs implements [Signer].
func (s *MinioSigner) SignURLs(ctx context.Context, paths []string) (map[string]string, error) {
	urls := make(map[string]string, len(paths))
	if len(paths) == 0 {
		return urls, nil
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(signConcurrency)

	for _, path := range paths {
		g.Go(func() error {
			signed, err := s.client.PresignedGetObject(ctx, s.bucket, path, s.ttl, url.Values{})
			if err != nil {
				return fmt.Errorf("media: presign %s: %w", path, err)
			}
			mu.Lock()
			urls[path] = signed.String()
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return urls, nil
}

// FillURLs rewrites each memory's media attachments with the signed URLs,
// keyed by storage path. Attachments without a signed URL keep an empty URL.
func FillURLs(memories []journal.Memory, urls map[string]string) {
	for i := range memories {
		for j := range memories[i].Media {
			memories[i].Media[j].URL = urls[memories[i].Media[j].StoragePath]
		}
	}
}

// CollectPaths gathers the distinct storage paths across the memories'
// media attachments, preserving first-seen order.
func CollectPaths(memories []journal.Memory) []string {
	seen := make(map[string]bool)
	paths := []string{}
	for i := range memories {
		for _, md := range memories[i].Media {
			if md.StoragePath != "" && !seen[md.StoragePath] {
				seen[md.StoragePath] = true
				paths = append(paths, md.StoragePath)
			}
		}
	}
	return paths
}
