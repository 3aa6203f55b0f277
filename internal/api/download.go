package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"

	"github.com/dustin/go-humanize"

	"github.com/franz/vaultify/internal/util"
)

// parseDownloadURL accepts absolute http(s) URLs and derives the file name
// from the last path segment
func parseDownloadURL(raw string) (*url.URL, string, error) {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, "", fmt.Errorf("%w: invalid URL %q", util.ErrValidation, raw)
	}

	name := path.Base(u.Path)
	if name == "/" || name == "." || name == "" {
		return nil, "", fmt.Errorf("%w: URL has no file name", util.ErrValidation)
	}
	return u, name, nil
}

// download fetches u into dest, bounded by the download timeout and the
// upload size limit. dest is removed on failure.
func (s *Server) download(ctx context.Context, u *url.URL, dest string) error {
	ctx, cancel := context.WithTimeout(ctx, s.downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("%w: %v", util.ErrValidation, err)
	}
	req.Header.Set("User-Agent", "vaultify/1.0")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: download %s: %v", util.ErrExternalService, u.Host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: download %s: HTTP %d", util.ErrExternalService, u.Host, resp.StatusCode)
	}
	if s.maxUpload > 0 && resp.ContentLength > s.maxUpload {
		return fmt.Errorf("%w: remote file is %s, limit is %s", util.ErrValidation,
			humanize.IBytes(uint64(resp.ContentLength)), humanize.IBytes(uint64(s.maxUpload)))
	}

	if err := writeScratch(dest, resp.Body, s.maxUpload); err != nil {
		return err
	}
	util.DebugLog("Downloaded %s to %s", u.Redacted(), dest)
	return nil
}

// writeScratch copies r into a new file at path, failing with a validation
// error once more than limit bytes arrive (limit 0 = unlimited)
func writeScratch(path string, r io.Reader, limit int64) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("create scratch file: %w", err)
	}

	src := r
	if limit > 0 {
		src = io.LimitReader(r, limit+1)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && limit > 0 && n > limit {
		err = fmt.Errorf("%w: file exceeds %s", util.ErrValidation, humanize.IBytes(uint64(limit)))
	}
	if err != nil {
		os.Remove(path)
		return fmt.Errorf("write scratch file: %w", err)
	}
	return nil
}
