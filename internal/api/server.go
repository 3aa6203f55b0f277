// Package api serves the HTTP interface of the metadata service.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/franz/vaultify/internal/objstore"
	"github.com/franz/vaultify/internal/reconcile"
	"github.com/franz/vaultify/internal/store"
	"github.com/franz/vaultify/internal/util"
)

// HealthMessage is returned by GET /
const HealthMessage = "Vaultify server is running"

// Server holds the request handlers' dependencies
type Server struct {
	bucket          objstore.Bucket
	store           *store.Store
	reconciler      *reconcile.Reconciler
	scratchDir      string
	maxUpload       int64
	downloadTimeout time.Duration
	urlTTL          time.Duration
	httpClient      *http.Client
}

// Config holds server configuration
type Config struct {
	Bucket          objstore.Bucket
	Store           *store.Store
	Reconciler      *reconcile.Reconciler
	ScratchDir      string
	MaxUploadSize   int64         // bytes per upload or download (0 = unlimited)
	DownloadTimeout time.Duration // for /upload-from-url (0 = 2m)
	URLTTL          time.Duration // signed URL lifetime (0 = 1h)
	HTTPClient      *http.Client
}

// New creates a Server
func New(cfg *Config) *Server {
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = 2 * time.Minute
	}
	if cfg.URLTTL <= 0 {
		cfg.URLTTL = reconcile.DefaultURLTTL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}

	return &Server{
		bucket:          cfg.Bucket,
		store:           cfg.Store,
		reconciler:      cfg.Reconciler,
		scratchDir:      cfg.ScratchDir,
		maxUpload:       cfg.MaxUploadSize,
		downloadTimeout: cfg.DownloadTimeout,
		urlTTL:          cfg.URLTTL,
		httpClient:      cfg.HTTPClient,
	}
}

// Router builds the gin engine. Every route is served at the root and
// again under /api.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(requestLogger(), gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:   []string{"Content-Length", requestIDHeader},
		MaxAge:          12 * time.Hour,
	}))

	s.register(r.Group("/api"))
	s.register(&r.RouterGroup)

	return r
}

func (s *Server) register(g *gin.RouterGroup) {
	g.GET("/", s.handleHealth)
	g.GET("/audio-urls", s.handleAudioURLs)
	g.GET("/all-metadata", s.handleAllMetadata)
	g.GET("/playlist-metadata/:id", s.handleGetPlaylist)

	g.POST("/upload", s.handleUpload)
	g.POST("/upload-from-url", s.handleUploadFromURL)
	g.POST("/update-metadata", s.handleUpdateMetadata)
	g.POST("/update-playlist-metadata", s.handleUpdatePlaylist)
	g.POST("/upload-playlist-cover", s.handleUploadPlaylistCover)
	g.POST("/fetch-metadata", s.handleFetchMetadata)

	g.DELETE("/:fileName", s.handleDelete)
}

const requestIDHeader = "X-Request-ID"

// requestLogger tags each request with an id and logs it through the
// service logger
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set("requestID", id)
		c.Header(requestIDHeader, id)

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		elapsed := time.Since(start).Round(time.Millisecond)
		switch {
		case status >= 500:
			util.ErrorLog("%s %s -> %d (%s) [%s]", c.Request.Method, c.Request.URL.Path, status, elapsed, id)
		case status >= 400:
			util.WarnLog("%s %s -> %d (%s) [%s]", c.Request.Method, c.Request.URL.Path, status, elapsed, id)
		default:
			util.DebugLog("%s %s -> %d (%s) [%s]", c.Request.Method, c.Request.URL.Path, status, elapsed, id)
		}
	}
}

// statusFor maps an error onto an HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, util.ErrValidation), errors.Is(err, util.ErrDecode):
		return http.StatusBadRequest
	case errors.Is(err, util.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// fail writes {error} with the mapped status. Server errors are logged in
// full and answered with the generic message.
func fail(c *gin.Context, err error, generic string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		util.ErrorLog("%s: %v", generic, err)
		c.JSON(status, gin.H{"error": generic})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
