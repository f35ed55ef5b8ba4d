package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/bryanwahyu/career-insight/internal/domain/insights"
)

// Store menyimpan raw output AI ke MinIO, implementasi insights.ArchiveStore
type Store struct {
	client     *minio.Client
	bucketName string
	region     string
}

// New buat koneksi MinIO
func New(ctx context.Context, endpoint, region, bucket, accessKey, secretKey string, useSSL bool) (*Store, error) {
	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	// pastikan bucket ada
	exists, err := cli.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
			return nil, fmt.Errorf("make bucket %s: %w", bucket, err)
		}
	}

	return &Store{client: cli, bucketName: bucket, region: region}, nil
}

// archived is the object body: the committed report plus what the model actually said.
type archived struct {
	Report *insights.Report `json:"report"`
	Raw    string           `json:"raw"`
}

// PutGeneration uploads one generation and returns its object key
func (s *Store) PutGeneration(ctx context.Context, r *insights.Report, raw string) (string, error) {
	body, err := json.Marshal(archived{Report: r, Raw: raw})
	if err != nil {
		return "", fmt.Errorf("encode archive: %w", err)
	}
	key := objectKey(r.Category, r.LastUpdated, uuid.NewString())

	_, err = s.client.PutObject(ctx, s.bucketName, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	return key, nil
}

// objectKey: insights/<category>/<lastUpdated RFC3339>-<id>.json
func objectKey(category string, lastUpdated time.Time, id string) string {
	return fmt.Sprintf("insights/%s/%s-%s.json", category, lastUpdated.UTC().Format(time.RFC3339), id)
}
