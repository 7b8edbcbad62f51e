package source

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"golang.org/x/text/encoding"

	"github.com/dbsmedya/goask/internal/config"
	"github.com/dbsmedya/goask/internal/logger"
	"github.com/dbsmedya/goask/internal/sqlutil"
	"github.com/dbsmedya/goask/internal/types"
)

// ObjectStore is the part of an S3-compatible client the connector needs.
type ObjectStore interface {
	ListKeys(ctx context.Context, bucket, prefix string) ([]string, error)
	Open(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// MinioStore implements ObjectStore with minio-go.
type MinioStore struct {
	client *minio.Client
}

// NewMinioStore creates a client for cfg.Endpoint. A scheme in the endpoint
// decides TLS; otherwise cfg.UseSSL does.
func NewMinioStore(cfg config.ObjectStoreConfig) (*MinioStore, error) {
	endpoint := cfg.Endpoint
	secure := cfg.UseSSL
	if u, err := url.Parse(cfg.Endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		secure = u.Scheme == "https"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object store client: %w", err)
	}
	return &MinioStore{client: client}, nil
}

// ListKeys lists every object key under prefix, recursively.
func (s *MinioStore) ListKeys(ctx context.Context, bucket, prefix string) ([]string, error) {
	var keys []string
	for obj := range s.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list %s/%s: %w", bucket, prefix, obj.Err)
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

// Open streams an object.
func (s *MinioStore) Open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", bucket, key, err)
	}
	return obj, nil
}

// ObjectCSV extracts every *.csv object under a bucket prefix.
type ObjectCSV struct {
	store      ObjectStore
	bucket     string
	prefix     string
	enc        encoding.Encoding
	sampleRows int
	log        *logger.Logger
}

// NewObjectCSV creates an object store CSV connector. The encoding and
// sample size come from the CSV settings.
func NewObjectCSV(store ObjectStore, cfg config.ObjectStoreConfig, csvCfg config.CSVConfig, log *logger.Logger) (*ObjectCSV, error) {
	enc, err := LookupEncoding(csvCfg.Encoding)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &ObjectCSV{
		store:      store,
		bucket:     cfg.Bucket,
		prefix:     cfg.Prefix,
		enc:        enc,
		sampleRows: sampleRows(csvCfg.MaxSampleRows),
		log:        log.WithSource("s3"),
	}, nil
}

// Name returns "s3".
func (o *ObjectCSV) Name() string { return "s3" }

// Extract samples every CSV object. Unreadable objects are logged and skipped.
func (o *ObjectCSV) Extract(ctx context.Context) ([]types.DataItem, error) {
	keys, err := o.store.ListKeys(ctx, o.bucket, o.prefix)
	if err != nil {
		return nil, err
	}

	location := o.bucket
	if o.prefix != "" {
		location = o.bucket + "/" + strings.TrimSuffix(o.prefix, "/")
	}

	var items []types.DataItem
	for _, key := range keys {
		if !strings.EqualFold(path.Ext(key), ".csv") {
			continue
		}
		log := o.log.WithTable(key)

		sample, err := o.sampleObject(ctx, key)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warnw("Skipping unreadable CSV object", "error", err)
			continue
		}
		if sample.Malformed != nil {
			log.Warnw("Malformed CSV row, sampling stopped early", "rows", len(sample.Rows), "error", sample.Malformed)
		}

		items = append(items, types.DataItem{
			Source:     o.Name(),
			Kind:       types.KindCSV,
			Dialect:    types.DialectCSV,
			Database:   location,
			Table:      sqlutil.TableNameForFile(path.Base(key)),
			Schema:     sample.Columns(),
			SampleData: sample.Rows,
		})
	}
	return items, nil
}

func (o *ObjectCSV) sampleObject(ctx context.Context, key string) (*CSVSample, error) {
	r, err := o.store.Open(ctx, o.bucket, key)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return SampleCSV(r, o.enc, o.sampleRows)
}
