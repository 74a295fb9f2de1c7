package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"
)

// GCSArchiver stores copies of generated files in a Cloud Storage bucket.
// It assumes Application Default Credentials are configured.
type GCSArchiver struct {
	Bucket string
	Prefix string
}

// NewGCSArchiver creates an archiver for bucket, placing objects under prefix.
func NewGCSArchiver(bucket, prefix string) *GCSArchiver {
	return &GCSArchiver{Bucket: bucket, Prefix: strings.Trim(prefix, "/")}
}

// ObjectName joins the prefix and name.
func (a *GCSArchiver) ObjectName(name string) string {
	if a.Prefix == "" {
		return name
	}
	return path.Join(a.Prefix, name)
}

// Archive uploads data as name and returns its gs:// URI.
func (a *GCSArchiver) Archive(ctx context.Context, name, contentType string, data []byte) (string, error) {
	object := a.ObjectName(name)
	if err := UploadBytes(ctx, a.Bucket, object, contentType, data); err != nil {
		return "", err
	}
	return fmt.Sprintf("gs://%s/%s", a.Bucket, object), nil
}

// UploadBytes writes data to gs://bucketName/objectName.
func UploadBytes(ctx context.Context, bucketName, objectName, contentType string, data []byte) error {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return errors.Wrap(err, "create storage client")
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return errors.Wrap(err, "copy to GCS writer")
	}

	// Close finalizes the upload.
	if err := w.Close(); err != nil {
		return errors.Wrapf(err, "finalize upload of %s", objectName)
	}

	return nil
}

// IsURI reports whether s looks like a gs:// object URI.
func IsURI(s string) bool {
	return strings.HasPrefix(s, "gs://")
}

// ParseURI splits gs://bucket/object into its parts.
func ParseURI(uri string) (bucket, object string, err error) {
	if !IsURI(uri) {
		return "", "", errors.Errorf("invalid GCS URI: %s", uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

// Fetch downloads an archived object by its gs:// URI.
func Fetch(ctx context.Context, uri string) ([]byte, error) {
	bucket, object, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "create storage client")
	}
	defer client.Close()

	rc, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "open object %s/%s", bucket, object)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, errors.Wrapf(err, "read object %s/%s", bucket, object)
	}
	return data, nil
}
