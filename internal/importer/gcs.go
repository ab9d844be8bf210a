package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	goption "google.golang.org/api/option"

	"taxledger/internal/core"
)

// MaxObjectSize caps how much of a bucket object is read.
const MaxObjectSize = 20 << 20

var mimeByExt = map[string]string{
	".csv":  "text/csv",
	".txt":  "text/plain",
	".pdf":  "application/pdf",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// GCSFetcher reads gs://bucket/object references.
type GCSFetcher struct {
	client *storage.Client
}

func NewGCSFetcher(ctx context.Context, opts ...goption.ClientOption) (*GCSFetcher, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSFetcher{client: client}, nil
}

func (f *GCSFetcher) Fetch(ctx context.Context, ref Ref) (Document, error) {
	r, err := f.client.Bucket(ref.Host).Object(ref.Path).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return Document{}, core.NewValidationError("fileRef", ref.String()+" does not exist")
	}
	if err != nil {
		return Document{}, fmt.Errorf("open GCS object reader: %w", err)
	}
	defer r.Close()

	if r.Attrs.Size > MaxObjectSize {
		return Document{}, core.NewValidationError("fileRef", fmt.Sprintf("object is %d bytes, limit is %d", r.Attrs.Size, MaxObjectSize))
	}
	data, err := io.ReadAll(io.LimitReader(r, MaxObjectSize))
	if err != nil {
		return Document{}, fmt.Errorf("read GCS object: %w", err)
	}

	return Document{
		Name:     path.Base(ref.Path),
		MIMEType: detectMIME(r.Attrs.ContentType, ref.Path),
		Data:     data,
	}, nil
}

func (f *GCSFetcher) Close() error {
	return f.client.Close()
}

// detectMIME prefers the object's extension over a generic stored type.
func detectMIME(contentType, name string) string {
	if m, ok := mimeByExt[strings.ToLower(path.Ext(name))]; ok {
		if contentType == "" || contentType == "application/octet-stream" {
			return m
		}
	}
	if contentType == "" {
		return "application/octet-stream"
	}
	return contentType
}
