package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tunestream/cache"
	"tunestream/config"
	"tunestream/db"
	"tunestream/logger"
	"tunestream/media"
	"tunestream/repository"
	"tunestream/storage"
	"tunestream/stream"
	"tunestream/telemetry"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// NewRouter builds the HTTP handler tree around the stream handler.
func NewRouter(streamHandler http.Handler) http.Handler {
	router := mux.NewRouter()

	router.Handle("/stream/{id}", streamHandler).
		Methods(http.MethodGet, http.MethodHead, http.MethodOptions)

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet, http.MethodHead)

	return requestID(accessLog(recoverer(router)))
}

// Start initializes dependencies and serves until ctx is cancelled or the
// process receives SIGINT/SIGTERM.
func Start(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, "tunestream", cfg.OtelEndpoint)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		tctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(tctx); err != nil {
			logger.Warn("failed to flush traces", logger.ErrorField(err))
		}
	}()

	// Connect to the database
	gdb, err := db.Open(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close(gdb)

	if err := db.AutoMigrate(gdb); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	backend, err := storage.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init %s storage: %w", cfg.StorageBackend, err)
	}
	logger.Info("storage backend ready", logger.String("backend", backend.Name()))

	var (
		metaCache  media.MetadataCache
		redisCache *cache.MetadataCache
	)
	if cfg.CacheEnabled() {
		client, err := cache.ConnectRedis(cfg)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer client.Close()
		redisCache = cache.NewMetadataCache(client, cfg.MetadataCacheTTL)
		metaCache = redisCache
		logger.Info("metadata cache enabled", logger.Duration("ttl", cfg.MetadataCacheTTL))
	}

	resolver := media.NewResolver(repository.NewGormTrackRepository(gdb), backend, metaCache)
	streamer := stream.NewStreamer(resolver, cfg.StreamRateLimit)
	handler := NewStreamHandler(streamer, cfg.StreamTimeout, cfg.StreamChunkSize)

	// WriteTimeout stays unset: transfers are bounded by STREAM_TIMEOUT instead.
	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           NewRouter(handler),
		ReadHeaderTimeout: cfg.ServerReadTimeout,
		ReadTimeout:       cfg.ServerReadTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server starting", logger.String("addr", cfg.ServerAddr))
		logger.Info("stream media via GET/HEAD http://" + displayAddr(cfg.ServerAddr) + "/stream/{id}")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	if local, ok := backend.(*storage.LocalBackend); ok && redisCache != nil {
		watcher := media.NewWatcher(local.Root, local, redisCache)
		g.Go(func() error { return watcher.Run(gctx) })
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		logger.Info("server stopped")
		return nil
	})

	return g.Wait()
}

func displayAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}
