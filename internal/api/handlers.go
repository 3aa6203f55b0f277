package api

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gosimple/slug"

	"github.com/franz/vaultify/internal/archive"
	"github.com/franz/vaultify/internal/objstore"
	"github.com/franz/vaultify/internal/reconcile"
	"github.com/franz/vaultify/internal/store"
	"github.com/franz/vaultify/internal/util"
)

// CoverPrefix holds playlist cover images
const CoverPrefix = "covers/"

var coverExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".gif":  true,
}

func (s *Server) handleHealth(c *gin.Context) {
	c.String(http.StatusOK, HealthMessage)
}

// handleAudioURLs lists every stored audio object with a signed URL and
// its metadata
func (s *Server) handleAudioURLs(c *gin.Context) {
	ctx := c.Request.Context()

	objects, err := s.bucket.List(ctx, "")
	if err != nil {
		fail(c, err, "Failed to list files")
		return
	}
	doc, _, err := s.store.Load(ctx)
	if err != nil {
		fail(c, err, "Failed to list files")
		return
	}

	files := make([]reconcile.Result, 0, len(objects))
	for _, obj := range objects {
		if strings.HasPrefix(obj.Key, store.MetadataPrefix) || strings.HasPrefix(obj.Key, CoverPrefix) {
			continue
		}

		url, err := s.bucket.SignURL(ctx, obj.Key, s.urlTTL)
		if err != nil {
			fail(c, err, "Failed to list files")
			return
		}

		song, ok := doc.Songs[obj.Key]
		if !ok {
			// older uploads may only have a per-file record
			song, _, _ = s.store.LegacySong(ctx, obj.Key)
		}
		files = append(files, reconcile.Result{FileName: obj.Key, SignedURL: url, TrackMetadata: song})
	}

	c.JSON(http.StatusOK, files)
}

func (s *Server) handleAllMetadata(c *gin.Context) {
	doc, _, err := s.store.Load(c.Request.Context())
	if err != nil {
		fail(c, err, "Failed to get metadata")
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (s *Server) handleGetPlaylist(c *gin.Context) {
	p, ok, err := s.store.Playlist(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err, "Failed to get playlist metadata")
		return
	}
	if !ok {
		c.JSON(http.StatusOK, nil)
		return
	}
	c.JSON(http.StatusOK, p)
}

// handleUpload ingests a multipart "file": one audio file or an archive
func (s *Server) handleUpload(c *gin.Context) {
	s.limitBody(c)

	fh, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "No file uploaded")
		return
	}
	if s.tooLarge(fh) {
		badRequest(c, "File too large")
		return
	}
	name := filepath.Base(fh.Filename)
	if !archive.IsAudio(name) && !archive.IsArchive(name) {
		badRequest(c, "Unsupported file type")
		return
	}

	path, err := s.saveUpload(fh)
	if err != nil {
		fail(c, err, "Upload failed")
		return
	}
	defer os.Remove(path)

	s.ingest(c, name, path)
}

// limitBody bounds a multipart request to the upload limit plus room for
// the form envelope
func (s *Server) limitBody(c *gin.Context) {
	if s.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload+1<<20)
	}
}

func (s *Server) tooLarge(fh *multipart.FileHeader) bool {
	return s.maxUpload > 0 && fh.Size > s.maxUpload
}

// ingest runs the pipeline on a local copy and writes the upload response
func (s *Server) ingest(c *gin.Context, name, path string) {
	upload, err := s.reconciler.Ingest(c.Request.Context(), name, path)
	if err != nil {
		fail(c, err, "Upload failed")
		return
	}

	if upload.Archive {
		c.JSON(http.StatusOK, gin.H{"message": "Archive processed successfully", "files": upload.Files})
		return
	}
	c.JSON(http.StatusOK, upload.Files[0])
}

// saveUpload copies a multipart file into the scratch dir under a random name
func (s *Server) saveUpload(fh *multipart.FileHeader) (string, error) {
	path := s.scratchPath(filepath.Ext(fh.Filename))
	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("%w: read upload: %v", util.ErrDecode, err)
	}
	defer src.Close()

	if err := writeScratch(path, src, 0); err != nil {
		return "", err
	}
	return path, nil
}

func (s *Server) scratchPath(ext string) string {
	dir := s.scratchDir
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "vaultify-upload-"+uuid.New().String()+strings.ToLower(ext))
}

type urlRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleUploadFromURL(c *gin.Context) {
	var req urlRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.URL) == "" {
		badRequest(c, "No URL provided")
		return
	}

	u, name, err := parseDownloadURL(req.URL)
	if err != nil {
		fail(c, err, "Upload from URL failed")
		return
	}
	if !archive.IsAudio(name) && !archive.IsArchive(name) {
		badRequest(c, "Unsupported file type")
		return
	}

	path := s.scratchPath(filepath.Ext(name))
	defer os.Remove(path)
	if err := s.download(c.Request.Context(), u, path); err != nil {
		fail(c, err, "Upload from URL failed")
		return
	}

	s.ingest(c, name, path)
}

type updateMetadataRequest struct {
	FileName string `json:"fileName"`
	store.TrackMetadata
	Replace bool `json:"replace"`
}

func (s *Server) handleUpdateMetadata(c *gin.Context) {
	var req updateMetadataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if req.FileName == "" {
		badRequest(c, "No filename provided")
		return
	}

	var err error
	if req.Replace {
		err = s.store.ReplaceSong(c.Request.Context(), req.FileName, req.TrackMetadata)
	} else {
		err = s.store.MergeSong(c.Request.Context(), req.FileName, req.TrackMetadata)
	}
	if err != nil {
		fail(c, err, "Failed to update metadata")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Metadata updated successfully"})
}

func (s *Server) handleUpdatePlaylist(c *gin.Context) {
	var req store.PlaylistMetadata
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if req.ID == "" {
		badRequest(c, "No playlist ID provided")
		return
	}

	if err := s.store.MergePlaylist(c.Request.Context(), req); err != nil {
		fail(c, err, "Failed to update playlist metadata")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Playlist metadata updated successfully"})
}

// handleUploadPlaylistCover stores a cover image at covers/<slug><ext> and
// points the playlist at its signed URL
func (s *Server) handleUploadPlaylistCover(c *gin.Context) {
	s.limitBody(c)

	fh, err := c.FormFile("cover")
	if err != nil {
		badRequest(c, "No cover image uploaded")
		return
	}
	if s.tooLarge(fh) {
		badRequest(c, "File too large")
		return
	}
	playlistID := strings.TrimSpace(c.PostForm("playlistId"))
	if playlistID == "" {
		badRequest(c, "No playlist ID provided")
		return
	}

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !coverExtensions[ext] {
		badRequest(c, "Unsupported image type")
		return
	}
	id := slug.Make(playlistID)
	if id == "" {
		badRequest(c, "Invalid playlist ID")
		return
	}
	key := CoverPrefix + id + ext

	src, err := fh.Open()
	if err != nil {
		fail(c, fmt.Errorf("%w: read cover: %v", util.ErrDecode, err), "Failed to upload cover")
		return
	}
	defer src.Close()

	ctx := c.Request.Context()
	if err := s.bucket.Put(ctx, key, src, fh.Size, objstore.PutOptions{ContentType: objstore.ContentType(key)}); err != nil {
		fail(c, err, "Failed to upload cover")
		return
	}
	url, err := s.bucket.SignURL(ctx, key, s.urlTTL)
	if err != nil {
		fail(c, err, "Failed to upload cover")
		return
	}
	if err := s.store.MergePlaylist(ctx, store.PlaylistMetadata{ID: playlistID, CoverURL: url}); err != nil {
		fail(c, err, "Failed to upload cover")
		return
	}

	c.JSON(http.StatusOK, gin.H{"fileName": key, "signedUrl": url})
}

type fetchMetadataRequest struct {
	FileName         string               `json:"fileName"`
	ExistingMetadata *store.TrackMetadata `json:"existingMetadata"`
}

func (s *Server) handleFetchMetadata(c *gin.Context) {
	var req fetchMetadataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if req.FileName == "" {
		badRequest(c, "No filename provided")
		return
	}

	matches, err := s.reconciler.FetchMatches(c.Request.Context(), req.FileName, req.ExistingMetadata)
	if err != nil {
		fail(c, err, "Failed to fetch metadata")
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": matches})
}

// handleDelete removes an object and its song record
func (s *Server) handleDelete(c *gin.Context) {
	fileName := c.Param("fileName")
	if fileName == "" || strings.HasPrefix(fileName, ".") {
		badRequest(c, "Invalid file name")
		return
	}

	ctx := c.Request.Context()
	if err := s.bucket.Delete(ctx, fileName); err != nil {
		fail(c, err, "Failed to delete file")
		return
	}
	if err := s.store.DeleteSong(ctx, fileName); err != nil {
		fail(c, err, "Failed to delete file")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "File deleted successfully"})
}
