package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/scenevault/scenevault/internal/database"
	"github.com/scenevault/scenevault/internal/ffmpeg"
	internalhttp "github.com/scenevault/scenevault/internal/http"
	"github.com/scenevault/scenevault/internal/http/handlers"
	"github.com/scenevault/scenevault/internal/repository"
	"github.com/scenevault/scenevault/internal/scheduler"
	"github.com/scenevault/scenevault/internal/service"
	"github.com/scenevault/scenevault/internal/stream"
	"github.com/scenevault/scenevault/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the scenevault server",
	Long: `Start the scenevault HTTP server and API.

The server provides:
- REST API for registering media files and listing delivery options
- Direct play, MKV remux, WEBM transcode and HLS delivery endpoints
- Health check endpoint
- OpenAPI documentation at /docs`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	// Server flags
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("database", "scenevault.db", "Database DSN (file path for sqlite)")
	serveCmd.Flags().String("media-dir", "", "Restrict media registration to this directory tree")

	// Bind flags to viper
	viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("database.dsn", serveCmd.Flags().Lookup("database"))
	viper.BindPFlag("storage.media_dir", serveCmd.Flags().Lookup("media-dir"))
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.Default()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Initialize database
	db, err := database.New(cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	// Initialize repositories
	mediaRepo := repository.NewMediaItemRepository(db.DB)

	// Resolve ffmpeg binaries. ffprobe is required: registration and HLS
	// planning cannot work without it. ffmpeg itself is re-resolved per
	// transcode, so a missing binary only warns here.
	detector := ffmpeg.NewBinaryDetector(cfg.FFmpeg.BinaryPath, cfg.FFmpeg.ProbePath)

	ffprobe, err := detector.FFprobe()
	if err != nil {
		return fmt.Errorf("locating ffprobe: %w", err)
	}
	logger.Info("ffprobe detected",
		slog.String("path", ffprobe.Path),
		slog.String("version", ffprobe.Version),
	)

	if ffbin, err := detector.FFmpeg(); err != nil {
		logger.Warn("ffmpeg not found; transcode endpoints will fail until it is installed",
			slog.String("error", err.Error()),
		)
	} else {
		logger.Info("ffmpeg detected",
			slog.String("path", ffbin.Path),
			slog.String("version", ffbin.Version),
		)
	}

	prober := ffmpeg.NewProber(ffprobe.Path).WithTimeout(cfg.FFmpeg.ProbeTimeout)

	// Encode profiles
	profiles, err := stream.LoadProfiles(cfg.Stream.ProfilesPath)
	if err != nil {
		return fmt.Errorf("loading encode profiles: %w", err)
	}

	// Initialize services
	mediaService := service.NewMediaService(mediaRepo, prober, cfg.Storage.MediaDir).
		WithLogger(logger)
	streamService := service.NewStreamService(mediaRepo, prober, detector, profiles, cfg.Stream.IdleTimeout).
		WithLogger(logger)

	// Plan cache janitor
	if cfg.Janitor.Enabled {
		janitor := scheduler.NewJanitor(streamService.PlanCache(), mediaRepo, cfg.Janitor.Cron).
			WithLogger(logger)
		if err := janitor.Start(); err != nil {
			return fmt.Errorf("starting plan cache janitor: %w", err)
		}
		defer janitor.Stop()
	}

	// Initialize HTTP server
	serverConfig := internalhttp.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		CORSOrigins:     cfg.Server.CORSOrigins,
	}
	server := internalhttp.NewServer(serverConfig, logger, version.Version)

	// Register handlers
	healthHandler := handlers.NewHealthHandler(version.Version).WithDB(db.DB)
	healthHandler.Register(server.API())

	mediaHandler := handlers.NewMediaHandler(mediaService, streamService).WithLogger(logger)
	mediaHandler.Register(server.API())

	streamHandler := handlers.NewStreamHandler(streamService).WithLogger(logger)
	streamHandler.RegisterRoutes(server.Router())

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

	logger.Info("starting scenevault server",
		slog.String("host", serverConfig.Host),
		slog.Int("port", serverConfig.Port),
		slog.String("version", version.Version),
	)

	return server.ListenAndServe(ctx)
}
