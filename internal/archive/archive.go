// Package archive stores snapshots of extracted model metadata in a bucket.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"

	"cloud.google.com/go/storage"
	"github.com/redbco/mlregistry/internal/modeldata"
	"google.golang.org/api/option"
)

const contentType = "application/json"

// Store writes whole objects by name.
type Store interface {
	Put(ctx context.Context, name, contentType string, data []byte) error
}

// GCSStore writes objects to one Cloud Storage bucket.
type GCSStore struct {
	client *storage.Client
	bucket string
}

// OpenGCS creates a storage client for bucket.
func OpenGCS(ctx context.Context, bucket string, opts ...option.ClientOption) (*GCSStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("archive bucket is required")
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket}, nil
}

// Put uploads data, replacing any object with the same name.
func (s *GCSStore) Put(ctx context.Context, name, contentType string, data []byte) error {
	writer := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	writer.ContentType = contentType

	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		writer.Close()
		return fmt.Errorf("failed to write object %s: %w", name, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to upload object %s: %w", name, err)
	}
	return nil
}

// Close closes the storage client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

// Archiver writes model records under a prefix.
type Archiver struct {
	store  Store
	prefix string
}

// New returns an archiver writing to store.
func New(store Store, prefix string) *Archiver {
	return &Archiver{store: store, prefix: prefix}
}

// ObjectName returns prefix/project/dataset/model/created.json.
func (a *Archiver) ObjectName(rec *modeldata.ModelRecord) string {
	return path.Join(a.prefix, rec.Project, rec.Dataset, rec.ModelID, rec.Created.String()+".json")
}

// Archive uploads the record as indented JSON and returns the object name.
func (a *Archiver) Archive(ctx context.Context, rec *modeldata.ModelRecord) (string, error) {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode model record: %w", err)
	}
	name := a.ObjectName(rec)
	if err := a.store.Put(ctx, name, contentType, data); err != nil {
		return "", err
	}
	return name, nil
}
