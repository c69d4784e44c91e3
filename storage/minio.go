package storage

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"tunestream/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioOptions configures the object store connection.
type MinioOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// BucketStats 存储桶统计信息
type BucketStats struct {
	TotalObjects int64
	TotalSize    int64
	LastModified time.Time
	ByExtension  map[string]int64
}

// MinioBackend serves objects from a MinIO/S3 bucket using ranged GETs.
type MinioBackend struct {
	client *minio.Client
	bucket string
}

// NewMinioBackend connects to MinIO and makes sure the bucket exists.
func NewMinioBackend(ctx context.Context, opts MinioOptions) (*MinioBackend, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 MinIO 客户端失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("检查存储桶失败: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{Region: opts.Region}); err != nil {
			return nil, fmt.Errorf("创建存储桶失败: %w", err)
		}
		logger.Info("created bucket", logger.String("bucket", opts.Bucket))
	}

	logger.Info("MinIO backend ready",
		logger.String("endpoint", opts.Endpoint),
		logger.String("bucket", opts.Bucket),
		logger.Bool("ssl", opts.UseSSL))

	return &MinioBackend{client: client, bucket: opts.Bucket}, nil
}

func (b *MinioBackend) Name() string { return "minio" }

// Bucket returns the configured bucket name.
func (b *MinioBackend) Bucket() string { return b.bucket }

// Open returns the object handle. GetObject is lazy, so the Stat call is
// what surfaces a missing key.
func (b *MinioBackend) Open(ctx context.Context, key string) (Source, error) {
	obj, err := b.client.GetObject(ctx, b.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, b.classify(key, err)
	}
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, b.classify(key, err)
	}
	return &objectSource{Object: obj, size: info.Size}, nil
}

func (b *MinioBackend) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	info, err := b.client.StatObject(ctx, b.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return ObjectInfo{}, b.classify(key, err)
	}
	return toObjectInfo(info), nil
}

// List returns the objects under prefix.
func (b *MinioBackend) List(ctx context.Context, prefix string, recursive bool) ([]ObjectInfo, error) {
	var objects []ObjectInfo
	for object := range b.client.ListObjects(ctx, b.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: recursive,
	}) {
		if object.Err != nil {
			return nil, fmt.Errorf("列出对象时出错: %w", object.Err)
		}
		objects = append(objects, toObjectInfo(object))
	}
	return objects, nil
}

// Stats aggregates size and count for every object under prefix.
func (b *MinioBackend) Stats(ctx context.Context, prefix string) (*BucketStats, error) {
	objects, err := b.List(ctx, prefix, true)
	if err != nil {
		return nil, err
	}
	stats := &BucketStats{ByExtension: make(map[string]int64)}
	for _, obj := range objects {
		stats.TotalObjects++
		stats.TotalSize += obj.Size
		stats.ByExtension[extension(obj.Key)]++
		if obj.LastModified.After(stats.LastModified) {
			stats.LastModified = obj.LastModified
		}
	}
	return stats, nil
}

func (b *MinioBackend) classify(key string, err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" || resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("get %s/%s: %w", b.bucket, key, ErrNotFound)
	}
	return fmt.Errorf("get %s/%s: %v: %w", b.bucket, key, err, ErrIO)
}

func toObjectInfo(o minio.ObjectInfo) ObjectInfo {
	return ObjectInfo{
		Key:          o.Key,
		Size:         o.Size,
		LastModified: o.LastModified,
		ContentType:  o.ContentType,
		ETag:         o.ETag,
	}
}

// objectSource wraps a minio object. (*minio.Object).ReadAt issues a ranged
// request per call and is guarded by the object's own mutex.
type objectSource struct {
	*minio.Object
	size int64
}

func (s *objectSource) Size() int64 { return s.size }
