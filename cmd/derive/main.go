// Command derive recomputes the derived agricultural weather columns of one
// station's hourly and daily tables and writes them next to the inputs with
// an "_updated" suffix.
//
// Usage:
//
//	derive -hourly-obs hourly_obs.csv -hourly-derived hourly_derived.csv \
//	  -daily-obs daily_obs.csv -daily-derived daily_derived.csv
//
// The four paths may also be given positionally in the same order.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/couchcryptid/agmet-derive/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/agmet-derive/internal/adapter/kafka"
	"github.com/couchcryptid/agmet-derive/internal/adapter/objectstore"
	"github.com/couchcryptid/agmet-derive/internal/adapter/sqlite"
	"github.com/couchcryptid/agmet-derive/internal/config"
	"github.com/couchcryptid/agmet-derive/internal/observability"
	"github.com/couchcryptid/agmet-derive/internal/pipeline"
	"github.com/jonboulle/clockwork"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	paths, err := parsePaths(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	var publisher pipeline.SummaryPublisher
	if cfg.KafkaEnabled {
		writer := kafkaadapter.NewWriter(cfg, logger)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		publisher = writer
		logger.Info("kafka publication enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaSinkTopic)
	} else {
		logger.Info("kafka publication disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store pipeline.Store = pipeline.FileStore{}
	if cfg.StorageBackend == "s3" {
		objStore, err := objectstore.New(ctx, cfg, logger)
		if err != nil {
			logger.Error("failed to connect object store", "error", err)
			return 1
		}
		defer func() {
			if err := objStore.Close(); err != nil {
				logger.Error("object store cleanup error", "error", err)
			}
		}()
		store = objStore
	}

	p := pipeline.New(store, publisher, logger, metrics, clockwork.NewRealClock())

	if cfg.HTTPAddr != "" {
		srv := httpadapter.NewServer(cfg.HTTPAddr, p, metrics.Registry, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http server shutdown error", "error", err)
			}
		}()
	}

	report, runErr := p.Run(ctx, paths)
	if runErr != nil {
		logger.Error("run failed", "run_id", report.RunID, "error", runErr)
	}

	if cfg.RunLedger != "" {
		if err := recordRun(cfg.RunLedger, report, runErr, logger); err != nil {
			logger.Error("record run in ledger", "path", cfg.RunLedger, "error", err)
		}
	}

	if cfg.MetricsTextfile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsTextfile); err != nil {
			logger.Error("write metrics textfile", "path", cfg.MetricsTextfile, "error", err)
		}
	}

	if runErr != nil {
		return 1
	}
	return 0
}

// recordRun appends the run's outcome to the ledger. It does not use the
// run's context so that interrupted runs are still recorded.
func recordRun(path string, report pipeline.Report, runErr error, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ledger, err := sqlite.Open(ctx, path, logger)
	if err != nil {
		return err
	}
	defer ledger.Close()
	return ledger.RecordRun(ctx, report, runErr)
}

// parsePaths reads the four table paths from flags, falling back to
// positional arguments for any flag left unset.
func parsePaths(args []string) (pipeline.Paths, error) {
	fs := flag.NewFlagSet("derive", flag.ContinueOnError)
	var paths pipeline.Paths
	fs.StringVar(&paths.HourlyObs, "hourly-obs", "", "hourly observations table")
	fs.StringVar(&paths.HourlyDerived, "hourly-derived", "", "hourly derived table")
	fs.StringVar(&paths.DailyObs, "daily-obs", "", "daily observations table")
	fs.StringVar(&paths.DailyDerived, "daily-derived", "", "daily derived table")
	if err := fs.Parse(args); err != nil {
		return pipeline.Paths{}, err
	}

	rest := fs.Args()
	for _, p := range []*string{&paths.HourlyObs, &paths.HourlyDerived, &paths.DailyObs, &paths.DailyDerived} {
		if *p == "" && len(rest) > 0 {
			*p, rest = rest[0], rest[1:]
		}
	}
	if len(rest) > 0 {
		return pipeline.Paths{}, fmt.Errorf("unexpected arguments: %v", rest)
	}
	if err := paths.Validate(); err != nil {
		fs.Usage()
		return pipeline.Paths{}, err
	}
	return paths, nil
}
