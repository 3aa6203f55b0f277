// Package objstore stores uploaded audio, covers and the metadata document
// in a bucket: S3-compatible storage in production, a directory locally.
package objstore

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"
)

// ErrPrecondition reports a conditional write that lost against another writer
var ErrPrecondition = errors.New("precondition failed")

// Object is a downloaded object
type Object struct {
	Body        []byte
	ETag        string
	ContentType string
}

// ObjectInfo describes a listed object
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// PutOptions control a write. IfMatch and IfNoneMatch follow HTTP semantics:
// IfMatch requires the current ETag to equal the value, IfNoneMatch "*"
// requires the key to be absent.
type PutOptions struct {
	ContentType string
	IfMatch     string
	IfNoneMatch string
}

// Bucket is the storage the service runs on. Missing keys are reported as
// util.ErrNotFound, lost conditional writes as ErrPrecondition.
type Bucket interface {
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Get(ctx context.Context, key string) (*Object, error)
	// Put writes body under key. Backends may need body to be seekable.
	Put(ctx context.Context, key string, body io.Reader, size int64, opts PutOptions) error
	Delete(ctx context.Context, key string) error
	SignURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	// SupportsConditional reports whether IfMatch/IfNoneMatch are honoured
	SupportsConditional() bool
}

var contentTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".zip":  "application/zip",
	".tar":  "application/x-tar",
	".gz":   "application/gzip",
	".tgz":  "application/gzip",
	".xz":   "application/x-xz",
	".txz":  "application/x-xz",
	".json": "application/json",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
}

// ContentType maps a file name to its MIME type, defaulting to
// application/octet-stream
func ContentType(name string) string {
	if ct, ok := contentTypes[strings.ToLower(path.Ext(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}
