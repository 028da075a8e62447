package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/orderproof/internal/async"
	"github.com/joseph-ayodele/orderproof/internal/common"
	"github.com/joseph-ayodele/orderproof/internal/core"
	"github.com/joseph-ayodele/orderproof/internal/export"
	"github.com/joseph-ayodele/orderproof/internal/extract"
	"github.com/joseph-ayodele/orderproof/internal/ingest"
)

// orderReader is the part of core.Service a batch run needs.
type orderReader interface {
	ExtractOrderDetails(ctx context.Context, image []byte) extract.Result
	Close() error
}

var newService = func(ctx context.Context, cfg *common.Config, logger *slog.Logger) (orderReader, error) {
	svc, err := core.NewService(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return svc, nil
}

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

// run executes one batch and returns the process exit code. Every return
// path after the service is built closes it.
func run(args []string, logOut io.Writer) int {
	fs := flag.NewFlagSet("proof-batch", flag.ContinueOnError)
	var (
		dir        = fs.String("dir", "", "directory of order screenshots (required)")
		out        = fs.String("out", "", "output XLSX file path (optional, defaults to parent directory)")
		envFile    = fs.String("env", ".env", "optional .env file")
		workers    = fs.Int("workers", 0, "concurrent images (defaults to POOL_SIZE)")
		timeout    = fs.Duration("timeout", 2*time.Minute, "per-image processing timeout")
		skipHidden = fs.Bool("skip-hidden", true, "skip hidden files and directories")
		watch      = fs.Bool("watch", false, "keep running and process screenshots as they appear")
		review     = fs.Int("review-below", 50, "flag rows under this confidence for review")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *dir == "" {
		printError("Error: --dir is required\n")
		return 1
	}
	if *out == "" {
		*out = filepath.Join(filepath.Dir(filepath.Clean(*dir)), "orders.xlsx")
	}

	cfg := common.LoadConfig(*envFile)
	logger := common.NewLogger(logOut, cfg.Debug)
	if *workers <= 0 {
		*workers = cfg.OCR.PoolSize
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := newService(ctx, cfg, logger)
	if err != nil {
		logger.Error("service.init.failed", "error", err)
		return 1
	}
	defer func() {
		if cerr := svc.Close(); cerr != nil {
			logger.Warn("service.close.failed", "error", cerr)
		}
	}()

	var (
		mu       sync.Mutex
		outcomes []async.Outcome
	)
	q := async.NewProcessorQueue(
		func(ctx context.Context, job async.Job) (extract.Result, error) {
			data, err := os.ReadFile(job.Path)
			if err != nil {
				return extract.Result{}, err
			}
			return svc.ExtractOrderDetails(ctx, data), nil
		},
		logger,
		async.WithWorkers(*workers),
		async.WithProcessTimeout(*timeout),
		async.WithBaseContext(ctx),
		async.WithResultHandler(func(o async.Outcome) {
			mu.Lock()
			defer mu.Unlock()
			outcomes = append(outcomes, o)
		}),
	)
	// drains the workers before the service closes; a no-op once drained below
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), *timeout)
		defer cancel()
		q.Shutdown(shutdownCtx)
	}()

	submit := func(path string) bool {
		job := async.Job{Path: path, SubmittedAt: time.Now(), TraceID: uuid.NewString()}
		if err := q.Enqueue(ctx, job); err != nil {
			logger.Warn("batch.enqueue.failed", "path", path, "error", err)
			return false
		}
		return true
	}

	start := time.Now()
	if *watch {
		events, _, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
			Roots:       []string{*dir},
			InitialScan: true,
			Debounce:    500 * time.Millisecond,
			SkipHidden:  *skipHidden,
		}, logger)
		if err != nil {
			logger.Error("batch.watch.failed", "dir", *dir, "error", err)
			return 1
		}
		logger.Info("batch.watch.start", "dir", *dir)
		for path := range events {
			submit(path)
		}
	} else {
		files, stats, err := ingest.ScanDirectory(*dir, nil, *skipHidden)
		if err != nil {
			logger.Error("batch.scan.failed", "dir", *dir, "error", err)
			return 1
		}
		logger.Info("batch.scan.done", "dir", *dir, "scanned", stats.Scanned, "matched", stats.Matched, "failed", stats.Failed)
		for _, f := range files {
			if f.Err != "" {
				logger.Warn("batch.scan.skip", "path", f.Path, "error", f.Err)
				continue
			}
			if !submit(f.Path) {
				break
			}
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	q.Shutdown(shutdownCtx)

	mu.Lock()
	done := append([]async.Outcome(nil), outcomes...)
	mu.Unlock()

	xlsx, err := export.NewService(*review, logger).BatchXLSX(done)
	if err != nil {
		logger.Error("batch.export.failed", "error", err)
		return 1
	}
	if err := os.WriteFile(*out, xlsx, 0o644); err != nil {
		logger.Error("batch.write.failed", "out", *out, "error", err)
		return 1
	}
	logger.Info("batch.done", "images", len(done), "out", *out, "elapsed_ms", time.Since(start).Milliseconds())
	return 0
}
