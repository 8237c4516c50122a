package storage

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/viper"
)

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	URLExpiry time.Duration
}

type MinioStore struct {
	cfg    MinioConfig
	client *minio.Client
}

func NewMinioStore(cfg MinioConfig) (*MinioStore, error) {
	cl, err := minio.New(strings.TrimPrefix(cfg.Endpoint, "http://"), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}
	if cfg.URLExpiry <= 0 {
		cfg.URLExpiry = time.Hour
	}
	return &MinioStore{cfg: cfg, client: cl}, nil
}

func NewStorage(ctx context.Context) error {
	store, err := NewMinioStore(MinioConfig{
		Endpoint:  viper.GetString("storage.endpoint"),
		AccessKey: viper.GetString("storage.access_key"),
		SecretKey: viper.GetString("storage.secret_key"),
		UseSSL:    viper.GetBool("storage.use_ssl"),
		Bucket:    viper.GetString("storage.bucket"),
	})
	if err != nil {
		return err
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return err
	}
	S = store
	return nil
}

func (v *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := v.client.BucketExists(ctx, v.cfg.Bucket)
	if err != nil {
		return err
	}
	if !exists {
		return v.client.MakeBucket(ctx, v.cfg.Bucket, minio.MakeBucketOptions{})
	}
	return nil
}

func (v *MinioStore) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error) {
	_, err := v.client.PutObject(ctx, v.cfg.Bucket, key, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}
	return key, nil
}

func (v *MinioStore) Remove(ctx context.Context, ref string) error {
	return v.client.RemoveObject(ctx, v.cfg.Bucket, ref, minio.RemoveObjectOptions{})
}

func (v *MinioStore) URL(ctx context.Context, ref string) (string, error) {
	u, err := v.client.PresignedGetObject(ctx, v.cfg.Bucket, ref, v.cfg.URLExpiry, nil)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}
