package ingest

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aihub/support-portal/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// Source 提供一批待入库的文章
type Source interface {
	Articles(ctx context.Context) ([]Article, error)
}

// SourceOptions 文档来源的公共选项
type SourceOptions struct {
	// Tenant 为空时写入全局知识
	Tenant *string
	// URLBase 非空时文章URL为 URLBase/相对路径
	URLBase string
	Logger  *zap.Logger
}

func (o SourceOptions) apply(a *Article, rel string) {
	if o.Tenant != nil {
		tenant := *o.Tenant
		a.TenantID = &tenant
	}
	if base := strings.TrimRight(o.URLBase, "/"); base != "" {
		u := base + "/" + strings.TrimLeft(rel, "/")
		a.URL = &u
	}
}

func (o SourceOptions) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// DirSource 遍历本地目录中受支持的文档
type DirSource struct {
	fsys fs.FS
	docs *Documents
	opts SourceOptions
}

// NewDirSource 创建目录来源
func NewDirSource(dir string, docs *Documents, opts SourceOptions) *DirSource {
	return NewFSSource(os.DirFS(dir), docs, opts)
}

// NewFSSource 基于任意fs.FS
func NewFSSource(fsys fs.FS, docs *Documents, opts SourceOptions) *DirSource {
	if docs == nil {
		docs = NewDocuments()
	}
	return &DirSource{fsys: fsys, docs: docs, opts: opts}
}

func (s *DirSource) Articles(ctx context.Context) ([]Article, error) {
	var articles []Article
	err := fs.WalkDir(s.fsys, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if name != "." && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		if !s.docs.Supports(name) {
			return nil
		}

		f, err := s.fsys.Open(name)
		if err != nil {
			return err
		}
		article, err := s.docs.Article(name, f)
		f.Close()
		if err != nil {
			s.opts.logger().Warn("跳过无法解析的文档", zap.String("file", name), zap.Error(err))
			return nil
		}
		s.opts.apply(&article, filepath.ToSlash(name))
		articles = append(articles, article)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return articles, nil
}

// ObjectStore 对象存储中用到的操作
type ObjectStore interface {
	List(ctx context.Context, prefix string) ([]string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MinioStore 基于minio-go的ObjectStore，兼容S3
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore 创建MinIO/S3存储
func NewMinioStore(cfg config.ObjectStorageConfig) (*MinioStore, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("object storage endpoint not configured")
	}
	bucket := cfg.Bucket
	if bucket == "" {
		bucket = "knowledge"
	}
	// minio.New不接受协议前缀
	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "http://"), "https://")
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return &MinioStore{client: client, bucket: bucket}, nil
}

func (m *MinioStore) List(ctx context.Context, prefix string) ([]string, error) {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", m.bucket, err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %s does not exist", m.bucket)
	}

	var keys []string
	for obj := range m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list %s/%s: %w", m.bucket, prefix, obj.Err)
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

func (m *MinioStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", m.bucket, key, err)
	}
	return obj, nil
}

// ObjectSource 读取桶内某前缀下的文档
type ObjectSource struct {
	store  ObjectStore
	prefix string
	docs   *Documents
	opts   SourceOptions
}

// NewObjectSource 创建对象存储来源
func NewObjectSource(store ObjectStore, prefix string, docs *Documents, opts SourceOptions) *ObjectSource {
	if docs == nil {
		docs = NewDocuments()
	}
	return &ObjectSource{store: store, prefix: prefix, docs: docs, opts: opts}
}

func (s *ObjectSource) Articles(ctx context.Context) ([]Article, error) {
	keys, err := s.store.List(ctx, s.prefix)
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)

	var articles []Article
	for _, key := range keys {
		if strings.HasSuffix(key, "/") || !s.docs.Supports(key) {
			continue
		}
		article, err := s.read(ctx, key)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.opts.logger().Warn("跳过无法解析的文档", zap.String("key", key), zap.Error(err))
			continue
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(key, s.prefix), "/")
		if rel == "" {
			rel = path.Base(key)
		}
		s.opts.apply(&article, rel)
		articles = append(articles, article)
	}
	return articles, nil
}

func (s *ObjectSource) read(ctx context.Context, key string) (Article, error) {
	r, err := s.store.Open(ctx, key)
	if err != nil {
		return Article{}, err
	}
	defer r.Close()
	return s.docs.Article(key, r)
}
