package service

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	"inflow-server/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// AssetStore 素材物化边界：网关返回的临时字节必须先写进我们自己
// 持有的存储，再把可寻址 URL 挂到项目上
type AssetStore interface {
	Put(ctx context.Context, objectName string, data []byte, contentType string) (string, error)
}

var MinioClient *minio.Client

// InitMinIO 初始化连接，在 main.go 中调用
func InitMinIO() {
	cfg := config.AppConfig.MinIO
	var err error
	MinioClient, err = minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		config.Log.Fatalf("MinIO 初始化失败: %v", err)
	}
	config.Log.Info("MinIO 连接成功")
}

// MinIOStore AssetStore 的 MinIO 实现
type MinIOStore struct {
	Client *minio.Client
	Bucket string
}

func NewMinIOStore() *MinIOStore {
	return &MinIOStore{
		Client: MinioClient,
		Bucket: config.AppConfig.MinIO.Bucket,
	}
}

// Put 上传字节并返回预签名 URL（72 小时有效期）
func (s *MinIOStore) Put(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	// 确保 Bucket 存在
	exists, err := s.Client.BucketExists(ctx, s.Bucket)
	if err != nil {
		return "", fmt.Errorf("检查 Bucket 失败: %w", err)
	}
	if !exists {
		if err := s.Client.MakeBucket(ctx, s.Bucket, minio.MakeBucketOptions{}); err != nil {
			return "", fmt.Errorf("创建 Bucket 失败: %w", err)
		}
		config.Log.Infof("Bucket '%s' 已创建", s.Bucket)
	}

	if contentType == "" {
		contentType = contentTypeByExt(objectName)
	}

	_, err = s.Client.PutObject(ctx, s.Bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("上传到 MinIO 失败: %w", err)
	}

	expiry := time.Hour * 72
	reqParams := make(url.Values)
	presignedURL, err := s.Client.PresignedGetObject(ctx, s.Bucket, objectName, expiry, reqParams)
	if err != nil {
		return "", fmt.Errorf("生成签名 URL 失败: %w", err)
	}

	config.Log.Infof("文件已上传: %s", objectName)
	return presignedURL.String(), nil
}

// 根据文件扩展名确定 ContentType
func contentTypeByExt(objectName string) string {
	switch filepath.Ext(objectName) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".webm":
		return "video/webm"
	case ".mp4":
		return "video/mp4"
	case ".wav":
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}
