// Package backup exports a user's ledger to object storage as JSON and reads
// it back for restore.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/dvloznov/wealthflow/internal/domain"
)

// FormatVersion is written into every document.
const FormatVersion = 1

// ErrInvalidURI is returned for malformed gs:// URIs.
var ErrInvalidURI = errors.New("invalid GCS URI")

// Document is the stored backup.
type Document struct {
	Version    int           `json:"version"`
	UserID     string        `json:"userId"`
	ExportedAt time.Time     `json:"exportedAt"`
	Ledger     domain.Ledger `json:"ledger"`
}

// ParseGCSURI splits gs://bucket/path/to/object into bucket and object.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidURI, uri)
	}

	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w (no object path): %s", ErrInvalidURI, uri)
	}
	return parts[0], parts[1], nil
}

// ObjectName is the default object path for a backup taken at t,
// e.g. "backups/u1/20250131T101500Z.json".
func ObjectName(userID string, t time.Time) string {
	return path.Join("backups", userID, t.UTC().Format("20060102T150405Z")+".json")
}

// URI joins bucket and object into a gs:// URI.
func URI(bucket, object string) string {
	return "gs://" + bucket + "/" + object
}

// Export writes ledger to uri.
func Export(ctx context.Context, store Storage, uri, userID string, ledger domain.Ledger, now time.Time) error {
	bucket, object, err := ParseGCSURI(uri)
	if err != nil {
		return fmt.Errorf("Export: %w", err)
	}

	data, err := json.MarshalIndent(Document{
		Version:    FormatVersion,
		UserID:     userID,
		ExportedAt: now.UTC(),
		Ledger:     ledger,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("Export: encoding document: %w", err)
	}

	if err := store.Upload(ctx, bucket, object, data); err != nil {
		return fmt.Errorf("Export: uploading %s: %w", uri, err)
	}
	return nil
}

// Import reads the document stored at uri.
func Import(ctx context.Context, store Storage, uri string) (Document, error) {
	bucket, object, err := ParseGCSURI(uri)
	if err != nil {
		return Document{}, fmt.Errorf("Import: %w", err)
	}

	data, err := store.Download(ctx, bucket, object)
	if err != nil {
		return Document{}, fmt.Errorf("Import: downloading %s: %w", uri, err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("Import: decoding document: %w", err)
	}
	if doc.Version != FormatVersion {
		return Document{}, fmt.Errorf("Import: unsupported backup version %d", doc.Version)
	}
	return doc, nil
}
