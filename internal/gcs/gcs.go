// Package gcs keeps local copies of workbooks stored in Cloud Storage.
package gcs

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/dvloznov/sheetledger/internal/logger"
)

const (
	uriScheme    = "gs://"
	xlsxMimeType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	uploadWindow = 2 * time.Minute
)

// ErrObjectNotExist is returned by Download when the object is missing.
var ErrObjectNotExist = storage.ErrObjectNotExist

// StorageService reads and writes whole objects.
type StorageService interface {
	Download(ctx context.Context, bucket, object string, w io.Writer) error
	Upload(ctx context.Context, bucket, object string, r io.Reader) error
}

// Client is the Cloud Storage implementation of StorageService.
// It assumes Application Default Credentials are configured.
type Client struct {
	client *storage.Client
}

// NewClient creates a storage client.
func NewClient(ctx context.Context) (*Client, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewClient: creating storage client: %w", err)
	}
	return &Client{client: client}, nil
}

// Close closes the storage client.
func (c *Client) Close() error {
	return c.client.Close()
}

// Download copies an object into w.
func (c *Client) Download(ctx context.Context, bucket, object string, w io.Writer) error {
	rc, err := c.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return fmt.Errorf("Download: reading object %s/%s: %w", bucket, object, err)
	}
	defer rc.Close()

	if _, err := io.Copy(w, rc); err != nil {
		return fmt.Errorf("Download: reading bytes: %w", err)
	}
	return nil
}

// Upload replaces an object with the contents of r.
func (c *Client) Upload(ctx context.Context, bucket, object string, r io.Reader) error {
	ctx, cancel := context.WithTimeout(ctx, uploadWindow)
	defer cancel()

	w := c.client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = xlsxMimeType
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("Upload: copying to writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("Upload: finalize upload: %w", err)
	}
	return nil
}

// IsURI reports whether s names a Cloud Storage object.
func IsURI(s string) bool {
	return strings.HasPrefix(s, uriScheme)
}

// ParseURI splits gs://bucket/path/to/object.
func ParseURI(uri string) (bucket, object string, err error) {
	if !IsURI(uri) {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, uriScheme), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" || strings.HasSuffix(parts[1], "/") {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

// Workbook is a local copy of a stored workbook.
type Workbook struct {
	// Path is the local file. It does not exist yet when the object was missing.
	Path string

	svc      StorageService
	bucket   string
	object   string
	checksum [sha256.Size]byte
}

// Fetch downloads the object named by uri into dir. A missing object is not
// an error; the workbook starts empty and is created by the first Sync.
func Fetch(ctx context.Context, svc StorageService, uri, dir string) (*Workbook, error) {
	bucket, object, err := ParseURI(uri)
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}
	wb := &Workbook{
		Path:   filepath.Join(dir, path.Base(object)),
		svc:    svc,
		bucket: bucket,
		object: object,
	}

	f, err := os.Create(wb.Path)
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}
	err = svc.Download(ctx, bucket, object, f)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	switch {
	case errors.Is(err, ErrObjectNotExist):
		log := logger.FromContext(ctx)
		log.Info().Str("uri", uri).Msg("Workbook not found in storage, starting a new one")
		if err := os.Remove(wb.Path); err != nil {
			return nil, fmt.Errorf("Fetch: %w", err)
		}
		return wb, nil
	case err != nil:
		return nil, fmt.Errorf("Fetch: %w", err)
	}

	if wb.checksum, err = fileChecksum(wb.Path); err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}
	return wb, nil
}

// Sync uploads the local copy when it changed since Fetch and reports
// whether it did.
func (w *Workbook) Sync(ctx context.Context) (bool, error) {
	sum, err := fileChecksum(w.Path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("Sync: %w", err)
	}
	if sum == w.checksum {
		return false, nil
	}

	f, err := os.Open(w.Path)
	if err != nil {
		return false, fmt.Errorf("Sync: %w", err)
	}
	defer f.Close()

	if err := w.svc.Upload(ctx, w.bucket, w.object, f); err != nil {
		return false, fmt.Errorf("Sync: %w", err)
	}
	w.checksum = sum

	log := logger.FromContext(ctx)
	log.Info().
		Str("bucket", w.bucket).
		Str("object", w.object).
		Msg("Uploaded workbook")
	return true, nil
}

func fileChecksum(p string) ([sha256.Size]byte, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return [sha256.Size]byte{}, err
	}
	return sha256.Sum256(data), nil
}

var _ StorageService = (*Client)(nil)
