package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Faissen/signatures-recognition/internal/auth"
	"github.com/Faissen/signatures-recognition/internal/config"
	"github.com/Faissen/signatures-recognition/internal/gallery"
	"github.com/Faissen/signatures-recognition/internal/handlers"
	"github.com/Faissen/signatures-recognition/internal/healthcheck"
	"github.com/Faissen/signatures-recognition/internal/imageprocessor"
	"github.com/Faissen/signatures-recognition/internal/logging"
	"github.com/Faissen/signatures-recognition/internal/repository"
	"github.com/Faissen/signatures-recognition/internal/signature"
	"github.com/Faissen/signatures-recognition/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	engine, err := signature.NewEngine(cfg.SignatureOptions())
	if err != nil {
		logger.Fatal("invalid matching options", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	db := initDatabase(ctx, cfg.DatabaseDSN, logger)
	repo := repository.NewSignatureRepository(db, engine.Options(), logger)
	if err := repo.AutoMigrate(ctx); err != nil {
		logger.Fatal("auto migrate failed", zap.Error(err))
	}

	redisCtx, redisCancel := context.WithTimeout(ctx, 5*time.Second)
	defer redisCancel()
	redisClient := initRedis(redisCtx, cfg.RedisAddr, logger)

	provider, galleryCheck := initGallery(cfg, repo, engine, logger)

	cache := usecase.NewRedisCache(redisClient)
	uc := usecase.NewIdentificationUseCase(repo, cache, provider, engine, logger,
		usecase.WithAcceptThreshold(cfg.AcceptThreshold),
		usecase.WithCacheTTL(cfg.CacheTTL),
	)

	runCtx, stopRun := context.WithCancel(context.Background())
	defer stopRun()

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("failed to access db handle", zap.Error(err))
	}
	health := healthcheck.New(map[string]healthcheck.Checker{
		"database": sqlDB.PingContext,
		"cache":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		"gallery":  galleryCheck,
	}, 10*time.Second, logger)
	go health.Run(runCtx)

	grpcServer := grpc.NewServer()
	health.Register(grpcServer)
	grpcListener, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logger.Fatal("failed to listen for gRPC", zap.Error(err), zap.String("addr", cfg.GRPCAddr))
	}
	go func() {
		if err := grpcServer.Serve(grpcListener); err != nil {
			logger.Error("gRPC server stopped", zap.Error(err))
		}
	}()
	defer grpcServer.GracefulStop()
	logger.Info("gRPC health listening", zap.String("addr", cfg.GRPCAddr))

	r := gin.Default()
	r.MaxMultipartMemory = handlers.MaxUploadSize

	authMiddleware := auth.JWTMiddleware(cfg.JWTSecret, cfg.JWTAudience)

	handlers.RegisterRoutes(r, uc, authMiddleware)

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	logger.Info("signature identification API listening",
		zap.String("addr", cfg.HTTPAddr),
		zap.String("gallery_source", cfg.GallerySource),
		zap.String("cursive_strategy", cfg.CursiveStrategy),
	)
	if err := serveHTTPServer(server, cfg.ShutdownTimeout, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func initDatabase(ctx context.Context, dsn string, zapLogger *zap.Logger) *gorm.DB {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		zapLogger.Fatal("failed to connect to database", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		zapLogger.Fatal("failed to access db handle", zap.Error(err))
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.PingContext(ctx); err != nil {
		zapLogger.Fatal("database ping failed", zap.Error(err))
	}

	return db
}

func initRedis(ctx context.Context, addr string, zapLogger *zap.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	}
	return client
}

// initGallery selects the gallery provider and the health probe that tells
// whether it can be read.
func initGallery(cfg *config.Config, repo *repository.SignatureRepository, engine *signature.Engine, zapLogger *zap.Logger) (gallery.Provider, healthcheck.Checker) {
	if cfg.GallerySource == config.GallerySourceDirectory {
		names, err := gallery.LoadNameMap(cfg.GalleryNamesFile)
		if err != nil {
			zapLogger.Fatal("failed to load gallery names", zap.Error(err))
		}
		provider := gallery.NewDirectoryProvider(cfg.GalleryDir, imageprocessor.FileSource{}, engine, names, zapLogger)
		return provider, func(context.Context) error {
			_, err := gallery.Scan(cfg.GalleryDir)
			return err
		}
	}
	return repo, func(ctx context.Context) error {
		_, err := repo.CountSignatures(ctx)
		return err
	}
}

func serveHTTPServer(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, nil, nil)
}

func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	var (
		sigCh       <-chan os.Signal
		stopSignals func()
	)

	if signalCh != nil {
		sigCh = signalCh
		stopSignals = func() {}
	} else {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		sigCh = ch
		stopSignals = func() {
			signal.Stop(ch)
		}
	}
	defer stopSignals()

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}
