package objstore

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/franz/vaultify/internal/util"
)

// Local is a Bucket backed by a directory tree, for development and tests
type Local struct {
	root string
	mu   sync.Mutex
}

// NewLocal creates the root directory if needed
func NewLocal(root string) (*Local, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Local{root: abs}, nil
}

// Root returns the storage directory
func (l *Local) Root() string {
	return l.root
}

func (l *Local) SupportsConditional() bool { return true }

func (l *Local) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if key == "" || filepath.IsAbs(clean) || clean == "." || clean == ".." ||
		strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: invalid object key %q", util.ErrValidation, key)
	}
	return filepath.Join(l.root, clean), nil
}

// List returns objects whose key starts with prefix, sorted by key
func (l *Local) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var out []ObjectInfo
	err := filepath.WalkDir(l.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".vaultify-") {
			return nil
		}

		rel, err := filepath.Rel(l.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		out = append(out, ObjectInfo{Key: key, Size: info.Size(), LastModified: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", l.root, err)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Get reads an object
func (l *Local) Get(ctx context.Context, key string) (*Object, error) {
	p, err := l.path(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", util.ErrNotFound, key)
	}
	if err != nil {
		return nil, err
	}

	return &Object{Body: data, ETag: etag(data), ContentType: ContentType(key)}, nil
}

// Put writes an object atomically, honouring preconditions
func (l *Local) Put(ctx context.Context, key string, body io.Reader, size int64, opts PutOptions) error {
	p, err := l.path(key)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if opts.IfMatch != "" || opts.IfNoneMatch != "" {
		current, err := os.ReadFile(p)
		exists := err == nil
		if err != nil && !os.IsNotExist(err) {
			return err
		}
		if opts.IfNoneMatch == "*" && exists {
			return fmt.Errorf("%w: %s exists", ErrPrecondition, key)
		}
		if opts.IfMatch != "" && (!exists || etag(current) != opts.IfMatch) {
			return fmt.Errorf("%w: %s changed", ErrPrecondition, key)
		}
	}

	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".vaultify-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), p)
}

// Delete removes an object; deleting a missing key is not an error
func (l *Local) Delete(ctx context.Context, key string) error {
	p, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// SignURL returns a file URL carrying the expiry, for development use
func (l *Local) SignURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	p, err := l.path(key)
	if err != nil {
		return "", err
	}
	u := url.URL{
		Scheme:   "file",
		Path:     filepath.ToSlash(p),
		RawQuery: "expires=" + strconv.FormatInt(time.Now().Add(ttl).Unix(), 10),
	}
	return u.String(), nil
}

// etag is the quoted sha1 of the content
func etag(data []byte) string {
	sum := sha1.Sum(data)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

// compile-time check
var _ Bucket = (*Local)(nil)
