// Command qlogd hosts the commit-log storage core as a long-running
// process: it loads configuration, opens the topic registry, and runs
// a background retention sweep until told to shut down. It exposes no
// network transport of its own - that is left to whatever front end is
// wired on top of this core.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/stackwave/qlog/internal/commitlog"
	"github.com/stackwave/qlog/internal/config"
	"github.com/stackwave/qlog/internal/logging"
	"github.com/stackwave/qlog/internal/registry"
)

// retentionSweepInterval is how often the background task calls
// Truncate on every open topic.
const retentionSweepInterval = time.Minute

func main() {
	opts, err := config.Load(config.ConfigFile())
	if err != nil {
		panic(err)
	}

	logger := logging.Must(logging.Environment(opts.LogEnvironment))
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	reg := registry.New(opts.DataDir, func(name string) commitlog.Config {
		return opts.CommitLogConfig(logger)
	}, opts.HeartbeatTimeout, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runRetentionSweeps(gctx, reg, logger)
	})

	<-gctx.Done()
	logger.Info("shutting down qlogd")

	if err := reg.CloseAll(); err != nil {
		logger.Error("error closing topic registry", zap.Error(err))
	}
	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("background task error", zap.Error(err))
	}
}

// runRetentionSweeps periodically truncates every open topic's log
// until ctx is cancelled.
func runRetentionSweeps(ctx context.Context, reg *registry.Registry, logger *zap.Logger) error {
	ticker := time.NewTicker(retentionSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			for _, t := range reg.Topics() {
				if err := t.Truncate(now); err != nil {
					logger.Warn("retention sweep failed", zap.String("topic", t.Name()), zap.Error(err))
				}
			}
		}
	}
}
