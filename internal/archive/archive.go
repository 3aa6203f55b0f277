// Package archive expands uploaded archives into a scratch directory and
// lists the audio payloads they contain.
package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/ulikunitz/xz"

	"github.com/franz/vaultify/internal/util"
)

// DefaultMaxExpandedSize bounds the total bytes written during one expansion
const DefaultMaxExpandedSize int64 = 2 << 30

// AudioExtensions lists file extensions treated as audio payloads
var AudioExtensions = []string{
	".mp3",
	".wav",
	".ogg",
	".flac",
	".m4a",
	".aac",
}

// Kind identifies an archive container format
type Kind string

const (
	KindNone  Kind = ""
	KindZip   Kind = "zip"
	KindTar   Kind = "tar"
	KindTarGz Kind = "tar.gz"
	KindTarXz Kind = "tar.xz"
)

// Format derives the archive kind from a file name
func Format(name string) Kind {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return KindZip
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return KindTarGz
	case strings.HasSuffix(lower, ".tar.xz"), strings.HasSuffix(lower, ".txz"):
		return KindTarXz
	case strings.HasSuffix(lower, ".tar"):
		return KindTar
	default:
		return KindNone
	}
}

// IsArchive reports whether the name has a supported archive extension
func IsArchive(name string) bool {
	return Format(name) != KindNone
}

// IsAudio reports whether the name has an allowed audio extension
func IsAudio(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, audioExt := range AudioExtensions {
		if ext == audioExt {
			return true
		}
	}
	return false
}

// Expansion is an expanded archive on local disk
type Expansion struct {
	// Dir is the scratch directory holding the extracted tree
	Dir string
	// Files are the absolute paths of audio payloads, sorted
	Files []string
}

// Close removes the scratch directory
func (e *Expansion) Close() error {
	if e == nil || e.Dir == "" {
		return nil
	}
	return os.RemoveAll(e.Dir)
}

// Expander unpacks archives under a scratch root
type Expander struct {
	ScratchRoot string
	MaxSize     int64
}

// Expand unpacks archivePath under scratchRoot with the default size limit
func Expand(ctx context.Context, archivePath, scratchRoot string) (*Expansion, error) {
	e := &Expander{ScratchRoot: scratchRoot, MaxSize: DefaultMaxExpandedSize}
	return e.Expand(ctx, archivePath)
}

// Expand unpacks the archive into a fresh scratch directory and returns the
// audio files it contains. On error nothing is left on disk.
func (e *Expander) Expand(ctx context.Context, archivePath string) (*Expansion, error) {
	kind := Format(archivePath)
	if kind == KindNone {
		return nil, fmt.Errorf("%w: %w: %s", util.ErrDecode, util.ErrUnsupported, filepath.Base(archivePath))
	}

	root := e.ScratchRoot
	if root == "" {
		root = os.TempDir()
	}
	dir := filepath.Join(root, "vaultify-"+uuid.New().String())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}

	exp := &Expansion{Dir: dir}
	if err := e.unpack(ctx, kind, archivePath, dir); err != nil {
		exp.Close()
		return nil, err
	}

	files, err := collectAudio(dir)
	if err != nil {
		exp.Close()
		return nil, err
	}
	exp.Files = files

	util.DebugLog("Expanded %s: %d audio file(s) in %s", filepath.Base(archivePath), len(files), dir)
	return exp, nil
}

func (e *Expander) unpack(ctx context.Context, kind Kind, archivePath, dir string) error {
	w := &writer{ctx: ctx, dir: dir, limit: e.MaxSize}
	if w.limit <= 0 {
		w.limit = DefaultMaxExpandedSize
	}

	if kind == KindZip {
		return w.unzip(archivePath)
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	switch kind {
	case KindTarGz:
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("%w: gzip: %v", util.ErrDecode, err)
		}
		defer gz.Close()
		r = gz
	case KindTarXz:
		xr, err := xz.NewReader(f)
		if err != nil {
			return fmt.Errorf("%w: xz: %v", util.ErrDecode, err)
		}
		r = xr
	}

	return w.untar(r)
}

// writer materialises archive entries below dir, enforcing path and size limits
type writer struct {
	ctx     context.Context
	dir     string
	limit   int64
	written int64
}

func (w *writer) unzip(archivePath string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		if zr != nil {
			zr.Close()
		}
		return fmt.Errorf("%w: zip: %v", util.ErrDecode, err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if err := w.ctx.Err(); err != nil {
			return err
		}

		mode := f.Mode()
		if mode&fs.ModeSymlink != 0 {
			util.DebugLog("Skipping symlink entry %s", f.Name)
			continue
		}

		target, err := w.target(f.Name)
		if err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("%w: zip entry %s: %v", util.ErrDecode, f.Name, err)
		}
		err = w.writeFile(target, rc)
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func (w *writer) untar(r io.Reader) error {
	tr := tar.NewReader(r)
	for {
		if err := w.ctx.Err(); err != nil {
			return err
		}

		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: tar: %v", util.ErrDecode, err)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			target, err := w.target(hdr.Name)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
		case tar.TypeReg:
			target, err := w.target(hdr.Name)
			if err != nil {
				return err
			}
			if err := w.writeFile(target, tr); err != nil {
				return err
			}
		default:
			// links, devices and fifos are never payloads
			util.DebugLog("Skipping tar entry %s (type %c)", hdr.Name, hdr.Typeflag)
		}
	}
}

// target resolves an entry name inside dir, rejecting escapes
func (w *writer) target(name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: entry %q escapes archive root", util.ErrDecode, name)
	}

	target := filepath.Join(w.dir, clean)
	rel, err := filepath.Rel(w.dir, target)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%w: entry %q escapes archive root", util.ErrDecode, name)
	}
	return target, nil
}

func (w *writer) writeFile(target string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}

	out, err := os.Create(target)
	if err != nil {
		return err
	}

	remaining := w.limit - w.written
	n, err := io.Copy(out, io.LimitReader(r, remaining+1))
	closeErr := out.Close()
	w.written += n

	if err != nil {
		return fmt.Errorf("%w: extract %s: %v", util.ErrDecode, filepath.Base(target), err)
	}
	if closeErr != nil {
		return closeErr
	}
	if w.written > w.limit {
		return fmt.Errorf("%w: expanded size exceeds %s", util.ErrDecode, humanize.IBytes(uint64(w.limit)))
	}
	return nil
}

// collectAudio walks dir and returns sorted absolute paths of audio files
func collectAudio(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		name := d.Name()
		if path != dir && (strings.HasPrefix(name, ".") || name == "__MACOSX") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type().IsRegular() && IsAudio(name) {
			abs, err := filepath.Abs(path)
			if err != nil {
				return err
			}
			files = append(files, abs)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk expanded archive: %w", err)
	}

	sort.Strings(files)
	return files, nil
}

// IsDecodeError reports whether err came from a corrupt or unsupported archive
func IsDecodeError(err error) bool {
	return errors.Is(err, util.ErrDecode)
}
