package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/giygas/mhra-extractor/interfaces"
	"github.com/giygas/mhra-extractor/logging"
)

const contentTypeJSON = "application/json"

// objectStore is the part of a storage bucket the uploader needs.
type objectStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader) error
}

// UploaderOptions configures the storage upload.
type UploaderOptions struct {
	Bucket          string
	Prefix          string
	CredentialsFile string // service account JSON; empty uses application default credentials
}

// GCSUploader publishes artifacts to a Cloud Storage (Firebase Storage) bucket.
type GCSUploader struct {
	store  objectStore
	prefix string
	closer io.Closer
}

var _ interfaces.Uploader = (*GCSUploader)(nil)

// NewGCSUploader opens a storage client for opts.Bucket.
func NewGCSUploader(ctx context.Context, opts UploaderOptions) (*GCSUploader, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("no upload bucket configured")
	}
	var clientOpts []option.ClientOption
	if opts.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCSUploader{
		store:  &bucketStore{bucket: client.Bucket(opts.Bucket)},
		prefix: opts.Prefix,
		closer: client,
	}, nil
}

// Close releases the storage client.
func (u *GCSUploader) Close() error {
	if u.closer == nil {
		return nil
	}
	return u.closer.Close()
}

// UploadKeys returns the latest and the versioned object key of file.
func UploadKeys(prefix, versionLabel, file string) (latest, versioned string) {
	prefix = strings.Trim(prefix, "/")
	folder := strings.ReplaceAll(versionLabel, "/", "_")
	return prefix + "/latest/" + file, prefix + "/" + folder + "/" + file
}

// Upload sends every file of result under the latest and the versioned key.
// A file missing from the latest directory is skipped.
func (u *GCSUploader) Upload(ctx context.Context, result *interfaces.WriteResult, versionLabel string) error {
	if result == nil {
		return fmt.Errorf("nothing to upload")
	}
	uploaded := 0
	for _, name := range result.Files {
		local := filepath.Join(result.LatestDir, name)
		if _, err := os.Stat(local); errors.Is(err, fs.ErrNotExist) {
			logging.Warn("Upload skipped, file missing", "file", local)
			continue
		}

		latest, versioned := UploadKeys(u.prefix, versionLabel, name)
		for _, key := range []string{latest, versioned} {
			if err := u.putFile(ctx, key, local); err != nil {
				return fmt.Errorf("failed to upload %s: %w", key, err)
			}
		}
		uploaded++
	}
	logging.Info("Artifacts uploaded", "files", uploaded, "prefix", u.prefix, "version", versionLabel)
	return nil
}

func (u *GCSUploader) putFile(ctx context.Context, key, local string) error {
	f, err := os.Open(local)
	if err != nil {
		return err
	}
	defer f.Close()
	return u.store.Put(ctx, key, contentTypeJSON, f)
}

type bucketStore struct {
	bucket *storage.BucketHandle
}

func (s *bucketStore) Put(ctx context.Context, key, contentType string, body io.Reader) error {
	w := s.bucket.Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, body); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
