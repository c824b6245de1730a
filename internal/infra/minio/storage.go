package minio

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/sm-diecasting/inspection-service/internal/domain/entity"
)

// Storage serves both sides of the pipeline: uploaded videos come out of
// the video bucket, retained frames go into the frame bucket under a
// per-run prefix so the review UI can display them.
type Storage struct {
	client        *miniogo.Client
	videoBucket   string
	frameBucket   string
	presignExpiry time.Duration
}

type StorageConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	UseSSL        bool
	VideoBucket   string
	FrameBucket   string
	PresignExpiry time.Duration
}

func NewStorage(cfg StorageConfig) (*Storage, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &Storage{
		client:        client,
		videoBucket:   cfg.VideoBucket,
		frameBucket:   cfg.FrameBucket,
		presignExpiry: cfg.PresignExpiry,
	}, nil
}

func (s *Storage) EnsureBuckets(ctx context.Context) error {
	for _, bucket := range []string{s.videoBucket, s.frameBucket} {
		exists, err := s.client.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("check bucket %s: %w", bucket, err)
		}
		if !exists {
			if err := s.client.MakeBucket(ctx, bucket, miniogo.MakeBucketOptions{}); err != nil {
				return fmt.Errorf("create bucket %s: %w", bucket, err)
			}
		}
	}
	return nil
}

func (s *Storage) DownloadVideo(ctx context.Context, objectKey string, destPath string) error {
	return s.client.FGetObject(ctx, s.videoBucket, objectKey, destPath, miniogo.GetObjectOptions{})
}

// Reset purges everything under the run prefix in the frame bucket.
func (s *Storage) Reset(ctx context.Context, runPrefix string) error {
	objects := s.client.ListObjects(ctx, s.frameBucket, miniogo.ListObjectsOptions{
		Prefix:    runPrefix + "/",
		Recursive: true,
	})
	for rErr := range s.client.RemoveObjects(ctx, s.frameBucket, objects, miniogo.RemoveObjectsOptions{}) {
		if rErr.Err != nil {
			return fmt.Errorf("purge frame prefix %s: %w", runPrefix, rErr.Err)
		}
	}
	return nil
}

func (s *Storage) UploadFrames(ctx context.Context, runPrefix string, frames []entity.Frame) ([]entity.Frame, error) {
	uploaded := make([]entity.Frame, len(frames))
	for i, frame := range frames {
		key := fmt.Sprintf("%s/%s", runPrefix, filepath.Base(frame.Path))
		_, err := s.client.FPutObject(ctx, s.frameBucket, key, frame.Path, miniogo.PutObjectOptions{
			ContentType: "image/jpeg",
		})
		if err != nil {
			return nil, fmt.Errorf("upload frame %d: %w", frame.Index, err)
		}
		frame.ObjectKey = key
		uploaded[i] = frame
	}
	return uploaded, nil
}

func (s *Storage) FrameURL(ctx context.Context, objectKey string) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.frameBucket, objectKey, s.presignExpiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign frame %s: %w", objectKey, err)
	}
	return u.String(), nil
}
