package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/attend/internal/api"
	"github.com/your-org/attend/internal/api/handlers"
	"github.com/your-org/attend/internal/api/ws"
	"github.com/your-org/attend/internal/attendance"
	"github.com/your-org/attend/internal/config"
	"github.com/your-org/attend/internal/gallery"
	"github.com/your-org/attend/internal/liveness"
	"github.com/your-org/attend/internal/matching"
	"github.com/your-org/attend/internal/models"
	"github.com/your-org/attend/internal/observability"
	"github.com/your-org/attend/internal/queue"
	"github.com/your-org/attend/internal/recognition"
	"github.com/your-org/attend/internal/scheduler"
	"github.com/your-org/attend/internal/storage"
	"github.com/your-org/attend/internal/vision"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting attendance API service", "port", cfg.Server.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		slog.Error("migrate database", "error", err)
		os.Exit(1)
	}

	// Connect to MinIO
	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := minioStore.EnsureBucket(ctx); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
	}

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(ctx); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	// Vision models
	ort.SetSharedLibraryPath(getONNXLibPath())
	if err := ort.InitializeEnvironment(); err != nil {
		slog.Error("init onnx runtime", "error", err)
		os.Exit(1)
	}
	defer ort.DestroyEnvironment()

	extractor, err := vision.NewExtractor(cfg.Vision)
	if err != nil {
		slog.Error("load face models", "error", err)
		os.Exit(1)
	}
	defer extractor.Close()

	emotions, err := vision.NewEmotionClassifier(emotionModelPath(cfg.Vision))
	if err != nil {
		slog.Warn("emotion model unavailable, using landmark heuristic", "error", err)
		emotions, _ = vision.NewEmotionClassifier("")
	}
	defer emotions.Close()

	metric, err := matching.ParseMetric(cfg.Matching.Metric)
	if err != nil {
		slog.Error("invalid matching metric", "error", err)
		os.Exit(1)
	}
	matcher := matching.New(metric, cfg.Matching.Threshold)

	// Signature cache
	cache := gallery.NewCache(db)
	if err := cache.Reload(ctx); err != nil {
		slog.Error("load signatures", "error", err)
		os.Exit(1)
	}
	slog.Info("signature cache loaded", "count", cache.Len())

	refresher := scheduler.NewCacheRefresher(cache, cfg.Cache.RefreshInterval)
	if err := refresher.Start(); err != nil {
		slog.Error("start cache refresher", "error", err)
		os.Exit(1)
	}
	defer refresher.Stop()

	policies := attendance.NewPolicies(cfg.Policy)
	ledger := attendance.NewLedger(db, producer)
	enroller := gallery.NewEnroller(extractor, db, cache, cfg.Enrollment.MinImages, cfg.Vision.MaxImageDim).
		WithBlobs(minioStore).
		WithPublisher(producer)
	recognizer := recognition.NewService(
		extractor,
		matcher,
		liveness.NewScorer(cfg.Liveness.PassThreshold, cfg.Liveness.MinCropSize),
		emotions,
		cache,
		ledger,
		recognition.Config{
			MaxFaces:    cfg.Vision.MaxFaces,
			MaxImageDim: cfg.Vision.MaxImageDim,
			Workers:     cfg.Vision.WorkerCount,
		},
	)

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run(ctx)

	// Every replica gets its own durable consumers so each one sees all events.
	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create event consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	replica := consumerName(hostname())
	err = consumer.ConsumeAttendance(ctx, "api-attendance-"+replica, func(ctx context.Context, ev *models.AttendanceEvent) error {
		hub.BroadcastAttendance(ev)
		return nil
	})
	if err != nil {
		slog.Warn("start attendance consumer", "error", err)
	}
	err = consumer.ConsumeEnrollment(ctx, "api-enrollment-"+replica, func(ctx context.Context, ev *models.EnrollmentEvent) error {
		return cache.Invalidate(ctx, ev.StudentCode)
	})
	if err != nil {
		slog.Warn("start enrollment consumer", "error", err)
	}

	// Setup router
	router := api.NewRouter(api.RouterConfig{
		APIKey:      cfg.Server.APIKey,
		MaxUploadMB: cfg.Server.MaxUploadMB,
		Store:       db,
		Recognizer:  recognizer,
		Enroller:    enroller,
		Ledger:      ledger,
		Cache:       cache,
		Policies:    policies,
		Hub:         hub,
		Checks: map[string]handlers.Pinger{
			"postgres": db,
			"minio":    minioStore,
			"nats":     handlers.PingFunc(func(context.Context) error { return producer.Ping() }),
		},
	})

	// Start HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down API server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("API server stopped")
}

// emotionModelPath resolves the optional emotion model relative to the models dir.
func emotionModelPath(cfg config.VisionConfig) string {
	if cfg.EmotionModel == "" || filepath.IsAbs(cfg.EmotionModel) {
		return cfg.EmotionModel
	}
	return filepath.Join(cfg.ModelsDir, cfg.EmotionModel)
}

func hostname() string {
	if h := os.Getenv("HOSTNAME"); h != "" {
		return h
	}
	h, err := os.Hostname()
	if err != nil {
		return "local"
	}
	return h
}

// consumerName reduces s to characters JetStream accepts in durable names.
func consumerName(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
	if s == "" {
		return "local"
	}
	return s
}

// getONNXLibPath returns the ONNX Runtime shared library path.
func getONNXLibPath() string {
	if p := os.Getenv("ONNXRUNTIME_LIB"); p != "" {
		return p
	}
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "linux":
		return "libonnxruntime.so"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "onnxruntime.dll"
	}
}
