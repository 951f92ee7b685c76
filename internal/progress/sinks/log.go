package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/iconshelf/internal/progress"
)

// LogSink writes each event as a structured log line.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.Stringer("export_id", evt.ExportUUID()),
			zap.String("stage", string(evt.Stage)),
			zap.Int("processed", evt.Processed),
			zap.Int("total", evt.Total),
			zap.Int("succeeded", evt.Succeeded),
			zap.Int("failed", evt.Failed),
			zap.Duration("dur", evt.Dur),
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		if evt.Stage == progress.StageItemFailed || evt.Stage == progress.StageExportError {
			s.logger.Warn("export progress", fields...)
			continue
		}
		s.logger.Info("export progress", fields...)
	}
	return nil
}

// Close implements progress.Sink.
func (s *LogSink) Close(context.Context) error {
	return nil
}
