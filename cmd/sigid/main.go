// Command sigid identifies and enrolls signatures from the command line.
//
//	sigid identify -gallery DIR [-names FILE] image...
//	sigid enroll -dir DIR [-names FILE] [-dsn DSN]
//	sigid health [-addr HOST:PORT] [-service NAME]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Faissen/signatures-recognition/internal/config"
	"github.com/Faissen/signatures-recognition/internal/gallery"
	"github.com/Faissen/signatures-recognition/internal/grpcclient"
	"github.com/Faissen/signatures-recognition/internal/imageprocessor"
	"github.com/Faissen/signatures-recognition/internal/logging"
	"github.com/Faissen/signatures-recognition/internal/repository"
	"github.com/Faissen/signatures-recognition/internal/signature"
	"github.com/Faissen/signatures-recognition/internal/usecase"
)

const lowQualityMessage = "Signature quality too low."

const usage = `Usage:
  sigid identify -gallery DIR [-names FILE] [-strategy template|structural] image...
  sigid enroll -dir DIR [-names FILE] [-dsn DSN]
  sigid health [-addr HOST:PORT] [-service NAME]
`

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return 1
	}
	logger, err := logging.NewLogger(cliLogLevel(cfg.LogLevel))
	if err != nil {
		fmt.Fprintf(stderr, "Failed to create logger: %v\n", err)
		return 1
	}
	defer logger.Sync() //nolint:errcheck

	switch args[0] {
	case "identify":
		return runIdentify(ctx, cfg, logger, args[1:], stdout, stderr)
	case "enroll":
		return runEnroll(ctx, cfg, logger, args[1:], stdout, stderr)
	case "health":
		return runHealth(ctx, cfg, logger, args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n%s", args[0], usage)
		return 2
	}
}

// cliLogLevel keeps informational service logs off the terminal unless a
// level was configured explicitly.
func cliLogLevel(level string) string {
	if level == "" || strings.EqualFold(level, "info") {
		return "warn"
	}
	return level
}

func runIdentify(ctx context.Context, cfg *config.Config, logger *zap.Logger, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("identify", flag.ContinueOnError)
	fs.SetOutput(stderr)
	galleryDir := fs.String("gallery", cfg.GalleryDir, "Directory of enrolled signature images")
	namesFile := fs.String("names", cfg.GalleryNamesFile, "JSON file mapping image filenames to names")
	strategy := fs.String("strategy", cfg.CursiveStrategy, "Scoring for cursive queries: template or structural")
	workers := fs.Int("workers", cfg.Workers, "Concurrent comparisons")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *galleryDir == "" || fs.NArg() == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	opts := cfg.SignatureOptions()
	opts.CursiveStrategy = signature.CursiveStrategy(strings.ToLower(*strategy))
	opts.Workers = *workers
	engine, err := signature.NewEngine(opts)
	if err != nil {
		fmt.Fprintf(stderr, "Invalid options: %v\n", err)
		return 1
	}

	names, err := gallery.LoadNameMap(*namesFile)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load names: %v\n", err)
		return 1
	}
	source := imageprocessor.FileSource{}
	entries, err := gallery.NewDirectoryProvider(*galleryDir, source, engine, names, logger).Entries(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load gallery: %v\n", err)
		return 1
	}

	status := 0
	multiple := fs.NArg() > 1
	for _, path := range fs.Args() {
		if multiple {
			fmt.Fprintf(stdout, "%s\n", path)
		}
		raw, err := source.Load(ctx, path)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to load %s: %v\n", path, err)
			status = 1
			continue
		}
		outcome, err := engine.Identify(ctx, raw, entries)
		if errors.Is(err, signature.ErrLowQuality) {
			fmt.Fprintln(stdout, lowQualityMessage)
			continue
		}
		if err != nil {
			fmt.Fprintf(stderr, "Identification failed for %s: %v\n", path, err)
			status = 1
			continue
		}
		if len(outcome.Top) == 0 {
			fmt.Fprintln(stdout, "No signatures in gallery.")
			continue
		}
		for _, m := range outcome.Top {
			fmt.Fprintf(stdout, "%s: match = %.2f%%\n", m.Identity, m.Score)
		}
	}
	return status
}

func runEnroll(ctx context.Context, cfg *config.Config, logger *zap.Logger, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("enroll", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dir := fs.String("dir", cfg.GalleryDir, "Directory of signature images to enroll")
	namesFile := fs.String("names", cfg.GalleryNamesFile, "JSON file mapping image filenames to names")
	dsn := fs.String("dsn", cfg.DatabaseDSN, "Postgres DSN")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *dir == "" {
		fmt.Fprint(stderr, usage)
		return 2
	}

	engine, err := signature.NewEngine(cfg.SignatureOptions())
	if err != nil {
		fmt.Fprintf(stderr, "Invalid options: %v\n", err)
		return 1
	}
	names, err := gallery.LoadNameMap(*namesFile)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load names: %v\n", err)
		return 1
	}
	files, err := gallery.Scan(*dir)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to scan %s: %v\n", *dir, err)
		return 1
	}

	db, err := gorm.Open(postgres.Open(*dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	repo := repository.NewSignatureRepository(db, engine.Options(), logger)
	if err := repo.AutoMigrate(ctx); err != nil {
		fmt.Fprintf(stderr, "Auto migrate failed: %v\n", err)
		return 1
	}

	uc := usecase.NewIdentificationUseCase(repo, nil, nil, engine, logger)
	return enrollFiles(ctx, uc, files, names, stdout, stderr)
}

type enroller interface {
	Enroll(ctx context.Context, req usecase.EnrollRequest) (*usecase.EnrollmentResult, error)
}

func enrollFiles(ctx context.Context, uc enroller, files []gallery.File, names gallery.NameResolver, stdout, stderr io.Writer) int {
	var enrolled, skipped, failed int
	for _, f := range files {
		data, err := os.ReadFile(f.Path)
		if err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", f.Name, err)
			failed++
			continue
		}
		res, err := uc.Enroll(ctx, usecase.EnrollRequest{Name: names.Resolve(f.Name), ImagePath: f.Path, Image: data})
		switch {
		case err == nil:
			fmt.Fprintf(stdout, "%s: enrolled as %s (id %d)\n", f.Name, res.Name, res.ID)
			enrolled++
		case errors.Is(err, usecase.ErrAlreadyEnrolled):
			fmt.Fprintf(stdout, "%s: already enrolled\n", f.Name)
			skipped++
		case errors.Is(err, signature.ErrLowQuality):
			fmt.Fprintf(stdout, "%s: %s\n", f.Name, lowQualityMessage)
			skipped++
		case errors.Is(err, signature.ErrImageDecode):
			fmt.Fprintf(stdout, "%s: unreadable image\n", f.Name)
			skipped++
		default:
			fmt.Fprintf(stderr, "%s: %v\n", f.Name, err)
			failed++
		}
	}
	fmt.Fprintf(stdout, "enrolled %d, skipped %d, failed %d\n", enrolled, skipped, failed)
	if failed > 0 {
		return 1
	}
	return 0
}

func runHealth(ctx context.Context, cfg *config.Config, logger *zap.Logger, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	fs.SetOutput(stderr)
	addr := fs.String("addr", dialAddr(cfg.GRPCAddr), "gRPC address of the identification service")
	service := fs.String("service", "", "Service name; empty checks the whole server")
	timeout := fs.Duration("timeout", 5*time.Second, "Check timeout")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	client, err := grpcclient.DialHealth(ctx, *addr, logger)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to connect to %s: %v\n", *addr, err)
		return 1
	}
	defer client.Close()

	status, err := client.Check(ctx, *service)
	if err != nil {
		fmt.Fprintf(stderr, "Health check failed: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, status.String())
	if status != healthpb.HealthCheckResponse_SERVING {
		return 1
	}
	return 0
}

// dialAddr turns a listen address such as ":9090" into a dialable one.
func dialAddr(listen string) string {
	if strings.HasPrefix(listen, ":") {
		return "localhost" + listen
	}
	return listen
}
