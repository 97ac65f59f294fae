// Package objectstore stores audio blobs: uploaded originals, separated
// stems, and rendered mixes. A disk driver serves single-node setups;
// the S3 driver serves shared deployments. Keys are flat strings with a
// fixed layout, so drivers are interchangeable.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/automixer/automix-go/internal/conf"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("object not found")

// Store reads and writes opaque blobs by key.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// New selects the configured driver.
func New(settings *conf.Settings) (Store, error) {
	switch settings.ObjectStore.Driver {
	case "disk", "":
		return NewDiskStore(settings.ObjectStore.Disk.Root)
	case "s3":
		return NewS3Store(context.Background(),
			settings.ObjectStore.S3.Bucket,
			settings.ObjectStore.S3.Region,
			settings.ObjectStore.S3.Endpoint)
	default:
		return nil, fmt.Errorf("unknown object store driver %q", settings.ObjectStore.Driver)
	}
}

// UploadKey builds the key for an uploaded original.
func UploadKey(userID, name string) string {
	return fmt.Sprintf("%s/%d-%s", userID, time.Now().UnixMilli(), SanitizeName(name))
}

// StemKey builds the key for one separated stem.
func StemKey(trackID, kind, ext string) string {
	return fmt.Sprintf("%s/stems/%s.%s", trackID, kind, ext)
}

// MixKey builds the key for a rendered mashup.
func MixKey(mashupID string) string {
	return mashupID + ".mp3"
}

// PreviewKey builds the key for a rendered transition preview.
func PreviewKey(trackAID, trackBID string) string {
	return fmt.Sprintf("preview-%s-%s.mp3", trackAID, trackBID)
}

// SanitizeName strips path separators and shell-hostile characters from
// user-supplied filenames, keeping letters, digits, dot, dash and
// underscore.
func SanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := b.String()
	if out == "" || strings.Trim(out, "._") == "" {
		return "upload"
	}
	return out
}
