package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/iconshelf/internal/progress"
)

// PrometheusSink exports bulk-export progress as Prometheus collectors.
type PrometheusSink struct {
	exportsStarted   prometheus.Counter
	exportsCompleted *prometheus.CounterVec
	exportRuntime    *prometheus.HistogramVec
	itemsFailed      prometheus.Counter
	iconsEmbedded    prometheus.Counter
	batches          prometheus.Counter
}

// NewPrometheusSink registers the collectors against reg (the default registry
// when nil).
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		exportsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "iconshelf_exports_started_total",
			Help: "Bulk library exports started.",
		}),
		exportsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "iconshelf_exports_completed_total",
			Help: "Bulk library exports completed, partitioned by result.",
		}, []string{"result"}),
		exportRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "iconshelf_export_runtime_seconds",
			Help:    "Wall time per completed bulk export.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"result"}),
		itemsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "iconshelf_export_items_failed_total",
			Help: "Icons dropped from bulk exports because they could not be fetched or parsed.",
		}),
		iconsEmbedded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "iconshelf_export_icons_embedded_total",
			Help: "Icons embedded into exported libraries.",
		}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "iconshelf_export_batches_total",
			Help: "Fetch batches completed by bulk exports.",
		}),
	}
	for _, collector := range []prometheus.Collector{
		s.exportsStarted,
		s.exportsCompleted,
		s.exportRuntime,
		s.itemsFailed,
		s.iconsEmbedded,
		s.batches,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageExportStart:
			s.exportsStarted.Inc()
		case progress.StageBatchDone:
			s.batches.Inc()
		case progress.StageItemFailed:
			s.itemsFailed.Inc()
		case progress.StageExportDone:
			s.exportsCompleted.WithLabelValues("success").Inc()
			s.iconsEmbedded.Add(float64(evt.Succeeded))
			s.observeRuntime(evt, "success")
		case progress.StageExportError:
			s.exportsCompleted.WithLabelValues("error").Inc()
			s.observeRuntime(evt, "error")
		}
	}
	return nil
}

func (s *PrometheusSink) observeRuntime(evt progress.Event, result string) {
	if evt.Dur > 0 {
		s.exportRuntime.WithLabelValues(result).Observe(evt.Dur.Seconds())
	}
}

// Close implements progress.Sink.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
