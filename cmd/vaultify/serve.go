package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/franz/vaultify/internal/api"
	"github.com/franz/vaultify/internal/util"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the HTTP API used by the player.

Routes are served at the root and again under /api:
  GET    /                          health check
  GET    /audio-urls                stored tracks with signed URLs
  GET    /all-metadata              the whole metadata document
  GET    /playlist-metadata/:id     one playlist (null when absent)
  POST   /upload                    audio file or archive (multipart "file")
  POST   /upload-from-url           download then ingest {url}
  POST   /update-metadata           edit a track's metadata
  POST   /update-playlist-metadata  edit a playlist
  POST   /upload-playlist-cover     playlist cover image (multipart "cover")
  POST   /fetch-metadata            ranked metadata suggestions
  DELETE /:fileName                 remove a track`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "listen port (default 3001, or PORT)")
	viper.BindPFlag("port", serveCmd.Flags().Lookup("port"))
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	if !viper.GetBool("verbose") {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := api.New(&api.Config{
		Bucket:          a.bucket,
		Store:           a.store,
		Reconciler:      a.reconciler,
		ScratchDir:      a.cfg.Ingest.ScratchDir,
		MaxUploadSize:   a.cfg.Ingest.MaxUploadSize,
		DownloadTimeout: a.cfg.Ingest.DownloadTimeout,
		URLTTL:          a.cfg.Ingest.URLTTL,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		util.SuccessLog("Server running on port %d", a.cfg.Port)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	util.InfoLog("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}
