package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// GCSService is bound to one bucket and stores uploaded recordings.
type GCSService struct {
	client *storage.Client
	bucket string
}

func NewGCSService(ctx context.Context, bucket string) (*GCSService, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &GCSService{client: client, bucket: bucket}, nil
}

func (s *GCSService) UploadFile(ctx context.Context, objectName string, content io.Reader) error {
	writer := s.client.Bucket(s.bucket).Object(objectName).NewWriter(ctx)
	if _, err := io.Copy(writer, content); err != nil {
		writer.Close()
		return err
	}
	return writer.Close()
}

func (s *GCSService) DeleteFile(ctx context.Context, objectName string) error {
	return s.client.Bucket(s.bucket).Object(objectName).Delete(ctx)
}

// ListFiles returns the object names under prefix.
func (s *GCSService) ListFiles(ctx context.Context, prefix string) ([]string, error) {
	var fileNames []string
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		fileNames = append(fileNames, attrs.Name)
	}
	return fileNames, nil
}

func (s *GCSService) Close() error {
	return s.client.Close()
}

// RecordingArchive keeps a copy of every transcribed recording. A nil
// archive, or one without storage, does nothing.
type RecordingArchive struct {
	storage CloudStorageManager
	now     func() time.Time
}

func NewRecordingArchive(storage CloudStorageManager) *RecordingArchive {
	return &RecordingArchive{storage: storage, now: time.Now}
}

// RecordingObjectName is where a recording is archived. Anonymous uploads
// share the "anonymous" prefix.
func RecordingObjectName(owner, filename string, at time.Time) string {
	if owner == "" {
		owner = "anonymous"
	}
	if filename == "" {
		filename = "recording"
	}
	return path.Join("recordings", owner, fmt.Sprintf("%d-%s", at.UnixMilli(), path.Base(filename)))
}

func (a *RecordingArchive) Store(ctx context.Context, owner, filename string, audio []byte) (string, error) {
	if a == nil || a.storage == nil {
		return "", nil
	}
	name := RecordingObjectName(owner, filename, a.now())
	if err := a.storage.UploadFile(ctx, name, bytes.NewReader(audio)); err != nil {
		return "", fmt.Errorf("archive recording: %w", err)
	}
	return name, nil
}

// Purge deletes every recording archived for owner and reports how many were
// removed. Deletion stops at the first failure.
func (a *RecordingArchive) Purge(ctx context.Context, owner string) (int, error) {
	if a == nil || a.storage == nil || owner == "" {
		return 0, nil
	}
	names, err := a.storage.ListFiles(ctx, path.Join("recordings", owner)+"/")
	if err != nil {
		return 0, fmt.Errorf("list recordings: %w", err)
	}
	for i, name := range names {
		if err := a.storage.DeleteFile(ctx, name); err != nil {
			return i, fmt.Errorf("delete recording %s: %w", name, err)
		}
	}
	return len(names), nil
}
