package service

import (
	"bytes"
	"context"
	"dorm_match_backend/internal/config"
	"dorm_match_backend/internal/model"
	"dorm_match_backend/internal/util"
	"dorm_match_backend/pkg/logger"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// StorageProvider is a put/delete-by-key object store that hands back a public URL.
type StorageProvider interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error)
	UploadFile(ctx context.Context, key string, localPath string, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	GetURL(key string) string
}

type LocalStorageProvider struct {
	Config *config.StorageConfig
}

func (p *LocalStorageProvider) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(p.Config.LocalPath, clean), nil
}

func (p *LocalStorageProvider) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	dst, err := p.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", err
	}

	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, reader); err != nil {
		return "", err
	}
	return p.GetURL(key), nil
}

func (p *LocalStorageProvider) UploadFile(ctx context.Context, key string, localPath string, contentType string) (string, error) {
	dst, err := p.path(key)
	if err != nil {
		return "", err
	}
	if localPath == dst {
		return p.GetURL(key), nil
	}

	src, err := os.Open(localPath)
	if err != nil {
		return "", err
	}
	defer src.Close()

	return p.Upload(ctx, key, src, -1, contentType)
}

func (p *LocalStorageProvider) Delete(ctx context.Context, key string) error {
	dst, err := p.path(key)
	if err != nil {
		return err
	}
	return os.Remove(dst)
}

func (p *LocalStorageProvider) GetURL(key string) string {
	return "/uploads/" + key
}

type MinioStorageProvider struct {
	Config *config.StorageConfig
	Client *minio.Client
}

func NewMinioStorageProvider(cfg *config.StorageConfig) (*MinioStorageProvider, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessID, cfg.MinioSecret, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, err
	}
	return &MinioStorageProvider{Config: cfg, Client: client}, nil
}

func (p *MinioStorageProvider) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	_, err := p.Client.PutObject(ctx, p.Config.MinioBucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}
	return p.GetURL(key), nil
}

func (p *MinioStorageProvider) UploadFile(ctx context.Context, key string, localPath string, contentType string) (string, error) {
	_, err := p.Client.FPutObject(ctx, p.Config.MinioBucket, key, localPath, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}
	return p.GetURL(key), nil
}

func (p *MinioStorageProvider) Delete(ctx context.Context, key string) error {
	return p.Client.RemoveObject(ctx, p.Config.MinioBucket, key, minio.RemoveObjectOptions{})
}

func (p *MinioStorageProvider) GetURL(key string) string {
	return "/" + p.Config.MinioBucket + "/" + key
}

type OSSStorageProvider struct {
	Config *config.StorageConfig
	Client *oss.Client
}

func NewOSSStorageProvider(cfg *config.StorageConfig) (*OSSStorageProvider, error) {
	client, err := oss.New(cfg.OSSEndpoint, cfg.OSSAccessKey, cfg.OSSSecretKey)
	if err != nil {
		return nil, err
	}
	return &OSSStorageProvider{Config: cfg, Client: client}, nil
}

func (p *OSSStorageProvider) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	bucket, err := p.Client.Bucket(p.Config.OSSBucket)
	if err != nil {
		return "", err
	}
	if err := bucket.PutObject(key, reader, oss.ContentType(contentType), oss.WithContext(ctx)); err != nil {
		return "", err
	}
	return p.GetURL(key), nil
}

func (p *OSSStorageProvider) UploadFile(ctx context.Context, key string, localPath string, contentType string) (string, error) {
	bucket, err := p.Client.Bucket(p.Config.OSSBucket)
	if err != nil {
		return "", err
	}
	if err := bucket.PutObjectFromFile(key, localPath, oss.ContentType(contentType), oss.WithContext(ctx)); err != nil {
		return "", err
	}
	return p.GetURL(key), nil
}

func (p *OSSStorageProvider) Delete(ctx context.Context, key string) error {
	bucket, err := p.Client.Bucket(p.Config.OSSBucket)
	if err != nil {
		return err
	}
	return bucket.DeleteObject(key, oss.WithContext(ctx))
}

func (p *OSSStorageProvider) GetURL(key string) string {
	return fmt.Sprintf("https://%s.%s/%s", p.Config.OSSBucket, p.Config.OSSEndpoint, key)
}

// StoredImage describes an uploaded image and its optional thumbnail.
type StoredImage struct {
	Key          string
	URL          string
	ThumbnailKey string
	ThumbnailURL string
	ContentType  string
}

var ErrUnsupportedImage = util.Invalid("Unsupported image type")

type StorageService struct {
	Provider       StorageProvider
	MaxImageBytes  int64
	Thumbnails     bool
	ThumbnailWidth int
}

func NewStorageService(cfg *config.Config) *StorageService {
	var provider StorageProvider
	switch cfg.Storage.Type {
	case util.StorageMinio:
		p, err := NewMinioStorageProvider(&cfg.Storage)
		if err != nil {
			logger.Log.Warn("minio unavailable, falling back to local storage", zap.Error(err))
		} else {
			provider = p
		}
	case util.StorageOSS:
		p, err := NewOSSStorageProvider(&cfg.Storage)
		if err != nil {
			logger.Log.Warn("oss unavailable, falling back to local storage", zap.Error(err))
		} else {
			provider = p
		}
	}

	if provider == nil {
		provider = &LocalStorageProvider{Config: &cfg.Storage}
	}

	thumbnails := cfg.Storage.Thumbnails
	if thumbnails {
		if version, err := util.GetFFmpegVersion(); err != nil {
			logger.Log.Warn("ffmpeg not found, thumbnails disabled", zap.Error(err))
			thumbnails = false
		} else {
			logger.Log.Info("thumbnails enabled", zap.String("ffmpeg", strings.SplitN(version, "\n", 2)[0]))
		}
	}

	return &StorageService{
		Provider:       provider,
		MaxImageBytes:  cfg.Upload.MaxImageBytes(),
		Thumbnails:     thumbnails,
		ThumbnailWidth: cfg.Storage.ThumbnailWidth,
	}
}

func (s *StorageService) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	return s.Provider.Upload(ctx, key, reader, size, contentType)
}

func (s *StorageService) Delete(ctx context.Context, key string) error {
	return s.Provider.Delete(ctx, key)
}

func (s *StorageService) GetURL(key string) string {
	return s.Provider.GetURL(key)
}

// StoreImage validates and uploads an image under prefix with a generated
// name. The thumbnail is best effort: a failure only loses the thumbnail.
func (s *StorageService) StoreImage(ctx context.Context, prefix, filename string, reader io.Reader, size int64) (*StoredImage, error) {
	if s.MaxImageBytes > 0 && size > s.MaxImageBytes {
		return nil, util.Invalid(fmt.Sprintf("Image must be at most %d MB", s.MaxImageBytes>>20))
	}
	ext := util.ImageExtension(filename)
	if ext == "" {
		return nil, ErrUnsupportedImage
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(reader, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	head = head[:n]
	contentType, err := util.ValidateMimeType(bytes.NewReader(head), util.AllowedImageTypes)
	if err != nil {
		return nil, ErrUnsupportedImage
	}
	body := io.MultiReader(bytes.NewReader(head), reader)

	img := &StoredImage{
		Key:         path.Join(prefix, model.GenerateUUID()+ext),
		ContentType: contentType,
	}

	if !s.Thumbnails {
		if img.URL, err = s.Provider.Upload(ctx, img.Key, body, size, contentType); err != nil {
			return nil, err
		}
		return img, nil
	}

	tmp, err := os.CreateTemp("", "dm-upload-*"+ext)
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		return nil, err
	}
	tmp.Close()

	if img.URL, err = s.Provider.UploadFile(ctx, img.Key, tmp.Name(), contentType); err != nil {
		return nil, err
	}

	thumbPath := strings.TrimSuffix(tmp.Name(), ext) + "_thumb.jpg"
	defer os.Remove(thumbPath)
	if err := util.GenerateImageThumbnail(tmp.Name(), thumbPath, s.ThumbnailWidth); err != nil {
		logger.Log.Warn("thumbnail generation failed", zap.String("key", img.Key), zap.Error(err))
		return img, nil
	}
	thumbKey := strings.TrimSuffix(img.Key, ext) + "_thumb.jpg"
	thumbURL, err := s.Provider.UploadFile(ctx, thumbKey, thumbPath, "image/jpeg")
	if err != nil {
		logger.Log.Warn("thumbnail upload failed", zap.String("key", thumbKey), zap.Error(err))
		return img, nil
	}
	img.ThumbnailKey = thumbKey
	img.ThumbnailURL = thumbURL
	return img, nil
}

// DeleteQuietly removes keys and only logs failures.
func (s *StorageService) DeleteQuietly(ctx context.Context, keys ...string) {
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := s.Provider.Delete(ctx, key); err != nil {
			logger.Log.Warn("object delete failed", zap.String("key", key), zap.Error(err))
		}
	}
}
