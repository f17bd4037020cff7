// Package s3 provides a Store over an S3-compatible bucket. Directories are
// key prefixes; an empty "dir/" marker object keeps an empty directory alive.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"path"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/fruitsalade/remsh/internal/logging"
	"github.com/fruitsalade/remsh/internal/metrics"
	"github.com/fruitsalade/remsh/pkg/listing"
	"github.com/fruitsalade/remsh/pkg/models"
)

// deleteBatch is the most keys one DeleteObjects call accepts.
const deleteBatch = 1000

// Config holds S3 connection settings.
type Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
	// Prefix roots the store below a key prefix inside the bucket.
	Prefix string
}

// API is the subset of the S3 client the store uses.
type API interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	CopyObject(ctx context.Context, in *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Store implements a file store on S3/MinIO.
type Store struct {
	client API
	bucket string
	prefix string
}

// New connects to the bucket, creating it if it does not exist.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	st := NewWithClient(client, cfg.Bucket, cfg.Prefix)
	if err := st.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return st, nil
}

// NewWithClient wraps an existing client without touching the bucket.
func NewWithClient(client API, bucket, prefix string) *Store {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &Store{client: client, bucket: bucket, prefix: prefix}
}

func observe(op string, start time.Time, err error) {
	metrics.RecordStorageOperation("s3", op, time.Since(start), err == nil)
}

func (s *Store) ensureBucket(ctx context.Context) (err error) {
	start := time.Now()
	_, err = s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}
	defer func() { observe("create_bucket", start, err) }()

	if _, err := s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return fmt.Errorf("bucket %s does not exist and cannot create: %w", s.bucket, err)
	}
	logging.Info("created S3 bucket", logging.String("bucket", s.bucket))
	return nil
}

func clean(p string) string {
	return path.Clean("/" + p)
}

// objectKey maps a file path to its key.
func (s *Store) objectKey(p string) string {
	return s.prefix + strings.TrimPrefix(clean(p), "/")
}

// dirPrefix maps a directory path to the prefix its children share.
func (s *Store) dirPrefix(p string) string {
	p = clean(p)
	if p == "/" {
		return s.prefix
	}
	return s.objectKey(p) + "/"
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	var nsk *types.NoSuchKey
	return errors.As(err, &nf) || errors.As(err, &nsk)
}

func notExist(op, p string) error {
	return &fs.PathError{Op: op, Path: p, Err: fs.ErrNotExist}
}

// List returns the children of dir from one delimited listing.
func (s *Store) List(ctx context.Context, dir string) (snap *models.Snapshot, err error) {
	start := time.Now()
	defer func() { observe("list", start, err) }()

	dir = clean(dir)
	prefix := s.dirPrefix(dir)
	found := dir == "/"

	var dirs []string
	files := make(map[string]int64)
	pager := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", dir, err)
		}
		for _, cp := range page.CommonPrefixes {
			found = true
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), prefix), "/")
			if listing.Representable(name) {
				dirs = append(dirs, name)
			}
		}
		for _, obj := range page.Contents {
			found = true
			key := aws.ToString(obj.Key)
			if key == prefix {
				continue
			}
			name := strings.TrimPrefix(key, prefix)
			if !listing.Representable(name) {
				logging.Debug("skipping object", logging.String("dir", dir), logging.String("key", key))
				continue
			}
			files[name] = aws.ToInt64(obj.Size)
		}
	}

	if !found {
		if _, err := s.headFile(ctx, dir); err == nil {
			return nil, &fs.PathError{Op: "list", Path: dir, Err: syscall.ENOTDIR}
		}
		return nil, notExist("list", dir)
	}
	return models.NewSnapshot(dir, dirs, files)
}

func (s *Store) headFile(ctx context.Context, p string) (int64, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(p)),
	})
	if err != nil {
		return 0, err
	}
	return aws.ToInt64(out.ContentLength), nil
}

// Stat checks for a file object first, then for any key below p.
func (s *Store) Stat(ctx context.Context, p string) (models.Entry, error) {
	p = clean(p)
	if p == "/" {
		return models.Entry{Name: "/", Kind: models.KindDir}, nil
	}

	size, err := s.headFile(ctx, p)
	if err == nil {
		return models.Entry{Name: path.Base(p), Kind: models.KindFile, Size: size}, nil
	}
	if !isNotFound(err) {
		return models.Entry{}, fmt.Errorf("stat %s: %w", p, err)
	}

	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(s.dirPrefix(p)),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return models.Entry{}, fmt.Errorf("stat %s: %w", p, err)
	}
	if len(out.Contents) == 0 && len(out.CommonPrefixes) == 0 {
		return models.Entry{}, notExist("stat", p)
	}
	return models.Entry{Name: path.Base(p), Kind: models.KindDir}, nil
}

// GetObject opens the object at p.
func (s *Store) GetObject(ctx context.Context, p string) (rc io.ReadCloser, size int64, err error) {
	start := time.Now()
	defer func() { observe("get_object", start, err) }()

	p = clean(p)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(p)),
	})
	if isNotFound(err) {
		return nil, 0, notExist("open", p)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("get object %s: %w", p, err)
	}
	return out.Body, aws.ToInt64(out.ContentLength), nil
}

// PutObject uploads body to p.
func (s *Store) PutObject(ctx context.Context, p string, body io.Reader, size int64) (err error) {
	start := time.Now()
	defer func() { observe("put_object", start, err) }()

	p = clean(p)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.objectKey(p)),
		Body:          body,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", p, err)
	}
	logging.Debug("S3 put object", logging.String("path", p), logging.Int64("size", size))
	return nil
}

// Mkdir writes the directory marker. Parents need no marker of their own:
// they exist as long as a key below them does.
func (s *Store) Mkdir(ctx context.Context, dir string) (err error) {
	start := time.Now()
	defer func() { observe("mkdir", start, err) }()

	dir = clean(dir)
	if dir == "/" {
		return nil
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.dirPrefix(dir)),
		Body:          bytes.NewReader(nil),
		ContentLength: aws.Int64(0),
	})
	if err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return nil
}

// listAll returns every key under prefix, sorted.
func (s *Store) listAll(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	pager := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// copySource escapes each key segment for the CopySource header.
func (s *Store) copySource(key string) string {
	parts := strings.Split(key, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return s.bucket + "/" + strings.Join(parts, "/")
}

func (s *Store) copyKey(ctx context.Context, src, dst string) error {
	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		Key:        aws.String(dst),
		CopySource: aws.String(s.copySource(src)),
	})
	if err != nil {
		return fmt.Errorf("copy %s -> %s: %w", src, dst, err)
	}
	return nil
}

// Move copies then deletes; S3 has no rename. When dst is an existing
// directory src is moved into it.
func (s *Store) Move(ctx context.Context, src, dst string) (err error) {
	start := time.Now()
	defer func() { observe("move", start, err) }()

	src, dst = clean(src), clean(dst)
	if src == "/" {
		return &fs.PathError{Op: "move", Path: src, Err: syscall.EPERM}
	}
	entry, err := s.Stat(ctx, src)
	if err != nil {
		return err
	}
	if target, err := s.Stat(ctx, dst); err == nil && target.IsDir() {
		dst = path.Join(dst, path.Base(src))
	}
	if dst == src || strings.HasPrefix(dst, src+"/") {
		return fmt.Errorf("move %s to %s: %w", src, dst, syscall.EINVAL)
	}

	if !entry.IsDir() {
		if err := s.copyKey(ctx, s.objectKey(src), s.objectKey(dst)); err != nil {
			return err
		}
		return s.deleteKeys(ctx, []string{s.objectKey(src)})
	}

	srcPrefix, dstPrefix := s.dirPrefix(src), s.dirPrefix(dst)
	keys, err := s.listAll(ctx, srcPrefix)
	if err != nil {
		return fmt.Errorf("move %s: %w", src, err)
	}
	for _, key := range keys {
		if err := s.copyKey(ctx, key, dstPrefix+strings.TrimPrefix(key, srcPrefix)); err != nil {
			return err
		}
	}
	return s.deleteKeys(ctx, keys)
}

// Delete removes a file, or every key below a directory.
func (s *Store) Delete(ctx context.Context, p string) (err error) {
	start := time.Now()
	defer func() { observe("delete", start, err) }()

	p = clean(p)
	if p == "/" {
		return &fs.PathError{Op: "delete", Path: p, Err: syscall.EPERM}
	}
	entry, err := s.Stat(ctx, p)
	if err != nil {
		return err
	}
	if !entry.IsDir() {
		return s.deleteKeys(ctx, []string{s.objectKey(p)})
	}
	keys, err := s.listAll(ctx, s.dirPrefix(p))
	if err != nil {
		return fmt.Errorf("delete %s: %w", p, err)
	}
	return s.deleteKeys(ctx, keys)
}

func (s *Store) deleteKeys(ctx context.Context, keys []string) error {
	for len(keys) > 0 {
		n := min(len(keys), deleteBatch)
		batch := make([]types.ObjectIdentifier, n)
		for i, key := range keys[:n] {
			batch[i] = types.ObjectIdentifier{Key: aws.String(key)}
		}
		out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: batch, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("delete objects: %w", err)
		}
		if len(out.Errors) > 0 {
			e := out.Errors[0]
			return fmt.Errorf("delete %s: %s", aws.ToString(e.Key), aws.ToString(e.Message))
		}
		keys = keys[n:]
	}
	return nil
}

// Type returns "s3".
func (s *Store) Type() string { return "s3" }

// Close is a no-op for S3 stores.
func (s *Store) Close() error { return nil }
