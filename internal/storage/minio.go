package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/kalambet/electroschematic/internal/schematic"
)

const minioObjectPrefix = "history/"

// MinioConfig holds object storage connection settings.
type MinioConfig struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// MinioStore keeps one JSON object per record under history/<id>.json.
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore connects to the object store and creates the bucket when it
// does not exist yet.
func NewMinioStore(ctx context.Context, cfg MinioConfig) (*MinioStore, error) {
	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}

	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("checking bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("creating bucket %s: %w", cfg.Bucket, err)
		}
	}

	return &MinioStore{client: cli, bucket: cfg.Bucket}, nil
}

func objectName(id string) string {
	return minioObjectPrefix + id + ".json"
}

func (s *MinioStore) Put(ctx context.Context, item schematic.HistoryItem) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshaling history item: %w", err)
	}
	_, err = s.client.PutObject(ctx, s.bucket, objectName(item.ID), bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("uploading %s: %w", item.ID, err)
	}
	return nil
}

func (s *MinioStore) All(ctx context.Context) ([]schematic.HistoryItem, error) {
	items := []schematic.HistoryItem{}
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: minioObjectPrefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("listing history objects: %w", obj.Err)
		}
		if !strings.HasSuffix(obj.Key, ".json") {
			continue
		}
		item, err := s.get(ctx, obj.Key)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Timestamp != items[j].Timestamp {
			return items[i].Timestamp > items[j].Timestamp
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

func (s *MinioStore) get(ctx context.Context, key string) (schematic.HistoryItem, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return schematic.HistoryItem{}, fmt.Errorf("fetching %s: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return schematic.HistoryItem{}, fmt.Errorf("reading %s: %w", key, err)
	}
	var item schematic.HistoryItem
	if err := json.Unmarshal(data, &item); err != nil {
		return schematic.HistoryItem{}, fmt.Errorf("decoding %s: %w", key, err)
	}
	return item, nil
}

func (s *MinioStore) Delete(ctx context.Context, id string) error {
	return s.client.RemoveObject(ctx, s.bucket, objectName(id), minio.RemoveObjectOptions{})
}

func (s *MinioStore) Clear(ctx context.Context) error {
	objects := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: minioObjectPrefix, Recursive: true})
	for rerr := range s.client.RemoveObjects(ctx, s.bucket, objects, minio.RemoveObjectsOptions{}) {
		if rerr.Err != nil {
			return fmt.Errorf("removing %s: %w", rerr.ObjectName, rerr.Err)
		}
	}
	return nil
}

// Close is a no-op; the minio client holds no long-lived connection.
func (s *MinioStore) Close() error {
	return nil
}
