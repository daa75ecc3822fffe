// Package s3publish uploads generated manifests and collected reports to S3.
package s3publish

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/eunmann/bvbench/internal/logctx"
	"github.com/eunmann/bvbench/pkg/humanfmt"
	"github.com/eunmann/bvbench/pkg/logging"
	"golang.org/x/sync/errgroup"
)

// ErrInvalidURI is returned for destinations that are not s3://bucket[/prefix].
var ErrInvalidURI = errors.New("invalid S3 URI")

// ErrDuplicateKey is returned when two files would upload to the same key.
var ErrDuplicateKey = errors.New("duplicate object key")

// PartSize is the multipart chunk size for large uploads.
const PartSize = 16 * 1024 * 1024

// DefaultConcurrency is the number of files uploaded in parallel.
const DefaultConcurrency = 4

// Publisher uploads local files under an S3 prefix.
type Publisher struct {
	uploader *manager.Uploader
	// Concurrency bounds parallel file uploads; DefaultConcurrency if <= 0.
	Concurrency int
}

// New creates a Publisher using the default AWS configuration chain.
func New(ctx context.Context) (*Publisher, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return NewWithClient(s3.NewFromConfig(cfg)), nil
}

// NewWithClient creates a Publisher on an existing S3 API client.
func NewWithClient(client manager.UploadAPIClient) *Publisher {
	return &Publisher{
		uploader: manager.NewUploader(client, func(u *manager.Uploader) {
			u.PartSize = PartSize
		}),
		Concurrency: DefaultConcurrency,
	}
}

// ParseS3URI splits "s3://bucket/prefix" into bucket and prefix. The
// prefix may be empty.
func ParseS3URI(uri string) (bucket, prefix string, err error) {
	if !strings.HasPrefix(uri, "s3://") {
		return "", "", fmt.Errorf("%w %q: must start with s3://", ErrInvalidURI, uri)
	}

	rest := strings.TrimPrefix(uri, "s3://")
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("%w %q: missing bucket name", ErrInvalidURI, uri)
	}
	return bucket, strings.Trim(prefix, "/"), nil
}

// ObjectKey joins prefix and a slash-separated relative path.
func ObjectKey(prefix, rel string) string {
	rel = filepath.ToSlash(rel)
	if prefix == "" {
		return rel
	}
	return path.Join(prefix, rel)
}

// ObjectKeys maps local paths to object keys under prefix. Each key keeps
// the path relative to the deepest directory containing every input, so
// out/t0/main.go and out/t1/main.go become t0/main.go and t1/main.go.
// Two paths that resolve to the same key are an error.
func ObjectKeys(prefix string, paths []string) ([]string, error) {
	abs := make([]string, len(paths))
	for i, p := range paths {
		a, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", p, err)
		}
		abs[i] = a
	}
	root := commonDir(abs)

	keys := make([]string, len(paths))
	seen := make(map[string]string, len(paths))
	for i, a := range abs {
		rel, err := filepath.Rel(root, a)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", paths[i], err)
		}
		key := ObjectKey(prefix, rel)
		if prev, ok := seen[key]; ok {
			return nil, fmt.Errorf("%w: %s and %s both map to %s", ErrDuplicateKey, prev, paths[i], key)
		}
		seen[key] = paths[i]
		keys[i] = key
	}
	return keys, nil
}

// commonDir returns the deepest directory that contains every path.
func commonDir(paths []string) string {
	if len(paths) == 0 {
		return ""
	}
	root := filepath.Dir(paths[0])
	for _, p := range paths[1:] {
		for !within(root, p) {
			parent := filepath.Dir(root)
			if parent == root {
				break
			}
			root = parent
		}
	}
	return root
}

func within(dir, p string) bool {
	rel, err := filepath.Rel(dir, p)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// ContentType guesses the MIME type of a published file.
func ContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".parquet":
		return "application/vnd.apache.parquet"
	case ".json":
		return "application/json"
	case ".tsv":
		return "text/tab-separated-values"
	case ".zst":
		return "application/zstd"
	case ".go":
		return "text/x-go"
	default:
		if filepath.Base(name) == "Makefile" {
			return "text/x-makefile"
		}
		return "application/octet-stream"
	}
}

// PublishFile uploads one file to bucket/key.
func (p *Publisher) PublishFile(ctx context.Context, localPath, bucket, key string) (int64, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", localPath, err)
	}

	_, err = p.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(ContentType(localPath)),
	})
	if err != nil {
		return 0, fmt.Errorf("put s3://%s/%s: %w", bucket, key, err)
	}
	return info.Size(), nil
}

// Publish uploads every path under the destination URI and returns the
// object URIs in input order. Keys are assigned by ObjectKeys before any
// upload starts. The first failure cancels the remaining
// uploads.
func (p *Publisher) Publish(ctx context.Context, dest string, paths []string) ([]string, error) {
	bucket, prefix, err := ParseS3URI(dest)
	if err != nil {
		return nil, err
	}

	keys, err := ObjectKeys(prefix, paths)
	if err != nil {
		return nil, err
	}

	log := logctx.FromContext(ctx)
	start := time.Now()
	progress := logging.NewProgressTracker("publish", int64(len(paths)), log)

	concurrency := p.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	var total atomic.Int64
	uris := make([]string, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, localPath := range paths {
		key := keys[i]
		g.Go(func() error {
			began := time.Now()
			n, err := p.PublishFile(ctx, localPath, bucket, key)
			if err != nil {
				return err
			}
			total.Add(n)
			uris[i] = "s3://" + bucket + "/" + key
			progress.RecordCompletion(time.Since(began))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	elapsed := time.Since(start)
	logging.PhaseComplete(log, "publish", elapsed).
		Int("files", len(uris)).
		Bytes("bytes", total.Load()).
		Str("throughput", humanfmt.Throughput(total.Load(), elapsed)).
		Str("dest", dest).
		Log("files published")
	return uris, nil
}
