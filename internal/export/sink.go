package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Sink stores a finished PDF and reports where it went.
type Sink interface {
	Put(ctx context.Context, name string, pdf []byte) (string, error)
}

// FileSink writes into a directory. Files appear atomically: the PDF is
// written to a temp file and renamed into place.
type FileSink struct {
	Dir string
}

// Path is where Put stores name.
func (s FileSink) Path(name string) string {
	return filepath.Join(s.dir(), filepath.Base(name))
}

func (s FileSink) dir() string {
	if s.Dir == "" {
		return "."
	}
	return s.Dir
}

func (s FileSink) Put(_ context.Context, name string, pdf []byte) (string, error) {
	dir := s.dir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("export: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".invox-*.pdf.tmp")
	if err != nil {
		return "", fmt.Errorf("export: temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }
	if _, err := tmp.Write(pdf); err != nil {
		_ = tmp.Close()
		cleanup()
		return "", fmt.Errorf("export: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", fmt.Errorf("export: close: %w", err)
	}
	dest := s.Path(name)
	if err := os.Rename(tmpName, dest); err != nil {
		cleanup()
		return "", fmt.Errorf("export: rename: %w", err)
	}
	return dest, nil
}

// ObjectUploader is the subset of *minio.Client used by ObjectSink.
type ObjectUploader interface {
	PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// ObjectSink uploads to an S3-compatible bucket.
type ObjectSink struct {
	Client ObjectUploader
	Bucket string
	Prefix string
}

func (s ObjectSink) Put(ctx context.Context, name string, pdf []byte) (string, error) {
	object := path.Join(s.Prefix, name)
	_, err := s.Client.PutObject(ctx, s.Bucket, object, bytes.NewReader(pdf), int64(len(pdf)), minio.PutObjectOptions{
		ContentType: "application/pdf",
	})
	if err != nil {
		return "", fmt.Errorf("export: upload %s: %w", object, err)
	}
	return "s3://" + s.Bucket + "/" + object, nil
}

// ObjectStoreConfig holds MinIO connection settings.
type ObjectStoreConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	Prefix    string
}

// NewObjectSink connects to MinIO and creates the bucket when missing.
func NewObjectSink(ctx context.Context, cfg ObjectStoreConfig) (ObjectSink, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return ObjectSink{}, fmt.Errorf("export: minio client: %w", err)
	}
	found, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return ObjectSink{}, fmt.Errorf("export: bucket %s: %w", cfg.Bucket, err)
	}
	if !found {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return ObjectSink{}, fmt.Errorf("export: make bucket %s: %w", cfg.Bucket, err)
		}
	}
	return ObjectSink{Client: client, Bucket: cfg.Bucket, Prefix: cfg.Prefix}, nil
}
