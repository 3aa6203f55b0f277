package reconcile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/franz/vaultify/internal/archive"
	"github.com/franz/vaultify/internal/objstore"
	"github.com/franz/vaultify/internal/store"
	"github.com/franz/vaultify/internal/util"
)

// Result describes one stored audio object. Error is set instead of the
// URL when the file failed inside a batch.
type Result struct {
	FileName  string `json:"fileName"`
	SignedURL string `json:"signedUrl,omitempty"`
	store.TrackMetadata
	Error string `json:"error,omitempty"`
}

// Upload is the outcome of one Ingest call
type Upload struct {
	Archive bool
	Files   []Result
}

// Ingest stores an uploaded file: audio directly, archives file by file.
// name is the client-facing file name, path its local copy.
func (r *Reconciler) Ingest(ctx context.Context, name, path string) (*Upload, error) {
	name = filepath.Base(name)

	switch {
	case archive.IsAudio(name):
		res, err := r.IngestFile(ctx, name, path)
		if err != nil {
			return nil, err
		}
		return &Upload{Files: []Result{*res}}, nil
	case archive.IsArchive(name):
		files, err := r.IngestArchive(ctx, name, path)
		if err != nil {
			return nil, err
		}
		return &Upload{Archive: true, Files: files}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported file type %q", util.ErrValidation, filepath.Ext(name))
	}
}

// IngestFile reconciles, uploads and records one audio file
func (r *Reconciler) IngestFile(ctx context.Context, fileName, localPath string) (*Result, error) {
	res, err := r.ingest(ctx, fileName, localPath, "")
	if err != nil {
		return nil, err
	}
	r.report(*res)
	return res, nil
}

// IngestArchive expands an archive and ingests every audio file in it on a
// bounded worker pool. A failing file is reported in its own entry and does
// not stop the others. Results keep the archive's sorted order.
func (r *Reconciler) IngestArchive(ctx context.Context, archiveName, localPath string) ([]Result, error) {
	exp, err := r.expander.Expand(ctx, localPath)
	if err != nil {
		r.events.LogError("", archiveName, err)
		return nil, fmt.Errorf("expand %s: %w", archiveName, err)
	}
	defer exp.Close()

	util.InfoLog("Archive %s: %d audio file(s)", archiveName, len(exp.Files))

	results := make([]Result, len(exp.Files))
	p := pool.New().WithMaxGoroutines(r.workers)
	for i, path := range exp.Files {
		p.Go(func() {
			fileName := filepath.Base(path)
			res, err := r.ingest(ctx, fileName, path, archiveName)
			if err != nil {
				util.WarnLog("Skipping %s from %s: %v", fileName, archiveName, err)
				res = &Result{FileName: fileName, Error: err.Error()}
			}
			results[i] = *res
			r.report(*res)
		})
	}
	p.Wait()

	return results, nil
}

func (r *Reconciler) ingest(ctx context.Context, fileName, localPath, archiveName string) (*Result, error) {
	start := time.Now()

	record, err := r.Reconcile(ctx, fileName, localPath)
	if err != nil {
		r.events.LogError(fileName, archiveName, err)
		return nil, err
	}

	size, err := r.upload(ctx, fileName, localPath)
	r.events.LogUpload(fileName, archiveName, size, time.Since(start), err)
	if err != nil {
		return nil, err
	}

	err = r.store.MergeSong(ctx, fileName, record)
	r.events.LogMerge(fileName, setFields(record), err)
	if err != nil {
		return nil, fmt.Errorf("store metadata for %s: %w", fileName, err)
	}

	url, err := r.bucket.SignURL(ctx, fileName, r.urlTTL)
	if err != nil {
		r.events.LogError(fileName, archiveName, err)
		return nil, fmt.Errorf("sign %s: %w", fileName, err)
	}

	util.DebugLog("Ingested %s in %s", fileName, time.Since(start).Round(time.Millisecond))
	return &Result{FileName: fileName, SignedURL: url, TrackMetadata: record}, nil
}

// upload streams the local file into the bucket under fileName
func (r *Reconciler) upload(ctx context.Context, fileName, localPath string) (int64, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", fileName, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", fileName, err)
	}

	opts := objstore.PutOptions{ContentType: objstore.ContentType(fileName)}
	if err := r.bucket.Put(ctx, fileName, f, info.Size(), opts); err != nil {
		return 0, fmt.Errorf("upload %s: %w", fileName, err)
	}
	return info.Size(), nil
}

func (r *Reconciler) report(res Result) {
	if r.onResult != nil {
		r.onResult(res)
	}
}

// setFields names the non-empty fields of a record, for the audit log
func setFields(t store.TrackMetadata) []string {
	var fields []string
	for _, f := range []struct{ name, value string }{
		{"title", t.Title},
		{"artist", t.Artist},
		{"album", t.Album},
		{"genre", t.Genre},
		{"coverUrl", t.CoverURL},
	} {
		if strings.TrimSpace(f.value) != "" {
			fields = append(fields, f.name)
		}
	}
	return fields
}
