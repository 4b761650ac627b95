package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/eternnoir/mediascribe/pkg/config"
	"github.com/eternnoir/mediascribe/pkg/httpapi"
	"github.com/eternnoir/mediascribe/pkg/logger"
	"github.com/eternnoir/mediascribe/pkg/media"
	"github.com/eternnoir/mediascribe/pkg/objectstore"
	"github.com/eternnoir/mediascribe/pkg/pipeline"
	"github.com/eternnoir/mediascribe/pkg/ratelimit"
	"github.com/eternnoir/mediascribe/pkg/task"
	"github.com/eternnoir/mediascribe/pkg/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the transcription pipeline HTTP service",
	Long: `serve loads configuration, wires the object store, media tooling,
rate limiter, and pipeline stages into a worker pool, then starts the HTTP
API: task submission, per-task SSE progress, the stress endpoint, and
Prometheus metrics.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("serve")

	loader := config.NewLoader(cfgFile)
	cfg, err := loader.LoadWithOverrides(config.GetFromEnv())
	if err != nil {
		return err
	}

	tempDir := config.TempDir()
	if v := os.Getenv("MEDIASCRIBE_TEMP_DIR"); v != "" {
		tempDir = v
	}
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return err
	}

	store, err := objectstore.New(objectstore.Config{
		Endpoint:  cfg.ObjectStore.Endpoint,
		AccessKey: cfg.ObjectStore.AccessKey,
		SecretKey: cfg.ObjectStore.SecretKey,
		Bucket:    cfg.ObjectStore.Bucket,
		Secure:    cfg.ObjectStore.Secure,
		Region:    cfg.ObjectStore.Region,
	})
	if err != nil {
		return err
	}

	mediaAdapter := media.New(tempDir)
	limiter := ratelimit.New(time.Duration(cfg.RateLimit.WindowSeconds)*time.Second, cfg.RateLimit.MaxRequests)

	client := pipeline.NewTranscriptionClient(
		cfg.Transcription.APIURL,
		cfg.Transcription.APIKey,
		cfg.Transcription.Model,
		cfg.Transcription.Language,
		cfg.Transcription.APITimeout,
		cfg.Transcription.RetryDelay,
	)

	stages := worker.Stages{
		Downloader:  pipeline.NewDownloader(store, mediaAdapter, cfg.Download, tempDir),
		Splitter:    pipeline.NewSplitter(store, mediaAdapter, cfg.Transcription, tempDir),
		Transcriber: pipeline.NewTranscriber(store, mediaAdapter, client, limiter, cfg.Transcription, tempDir),
		Merger:      pipeline.NewMerger(store),
	}

	registry := task.NewRegistry()
	pool := worker.NewPool(registry, stages, cfg.Queue.MaxWorkers, cfg.Queue.MaxQueueSize)

	server := httpapi.NewServer(pool, registry, cfg.HTTP, "production", false)

	httpServer := &http.Server{
		Addr:              cfg.HTTP.ListenAddr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTP.ListenAddr).Msg("starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	pool.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(ctx)
}
