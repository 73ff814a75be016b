package config

import (
	"go.uber.org/zap"

	"github.com/stackwave/qlog/internal/commitlog"
)

// CommitLogConfig renders the options governing one topic's on-disk log
// into a commitlog.Config, wiring in the given logger.
func (o Options) CommitLogConfig(logger *zap.Logger) commitlog.Config {
	return commitlog.Config{
		MaxSegmentBytes: o.MaxSegmentBytes,
		MaxMessageBytes: o.MaxMessageBytes,
		Retention:       o.Retention,
		FlushPolicy:     o.FlushPolicy(),
		Logger:          logger,
	}
}
