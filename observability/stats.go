package observability

import (
	"context"
	"runtime"
	"strings"

	"github.com/samber/lo"
	otelruntime "go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterPrefix = "rbkv/"

func meterName(kind, name string) string {
	builder := &strings.Builder{}
	builder.WriteString(meterPrefix)
	builder.WriteString(kind)
	builder.WriteString("/")
	if len(strings.TrimSpace(name)) > 0 {
		builder.WriteString(name)
	} else {
		builder.WriteString("default")
	}
	return builder.String()
}

func meterProviderOrGlobal(mp metric.MeterProvider) metric.MeterProvider {
	if mp == nil {
		return otel.GetMeterProvider()
	}
	return mp
}

// InitAppStats registers the process level instruments and starts the
// go runtime instrumentation on the provider, the global one if nil.
func InitAppStats(mp metric.MeterProvider, name string) error {
	mp = meterProviderOrGlobal(mp)
	meter := mp.Meter(
		meterName("app", name),
		metric.WithInstrumentationVersion(otelruntime.Version()),
	)
	lo.Must[metric.Int64ObservableUpDownCounter](meter.Int64ObservableUpDownCounter(
		"app.core.goroutines",
		metric.WithDescription(`The application goroutines' info.`),
		metric.WithInt64Callback(func(ctx context.Context, ob metric.Int64Observer) error {
			ob.Observe(int64(runtime.NumGoroutine()))
			return nil
		}),
	))
	lo.Must[metric.Int64ObservableUpDownCounter](meter.Int64ObservableUpDownCounter(
		"app.core.processes",
		metric.WithDescription(`The application processes' info.`),
		metric.WithInt64Callback(func(ctx context.Context, ob metric.Int64Observer) error {
			ob.Observe(int64(runtime.GOMAXPROCS(0)))
			return nil
		}),
	))
	return otelruntime.Start(otelruntime.WithMeterProvider(mp))
}

const (
	attrResult  = "result"
	attrCommand = "command"
)

// TreeStats counts the multimap operations.
// The entries instrument observes the live size by the callback.
type TreeStats struct {
	inserts  metric.Int64Counter
	finds    metric.Int64Counter
	deletes  metric.Int64Counter
	commands metric.Int64Counter
	entries  metric.Int64ObservableUpDownCounter
}

func NewTreeStats(mp metric.MeterProvider, name string, entries func() int64) *TreeStats {
	meter := meterProviderOrGlobal(mp).Meter(meterName("tree", name))
	stats := &TreeStats{
		inserts: lo.Must[metric.Int64Counter](meter.Int64Counter(
			"rbtree.inserts",
			metric.WithDescription(`The inserted entries.`),
		)),
		finds: lo.Must[metric.Int64Counter](meter.Int64Counter(
			"rbtree.finds",
			metric.WithDescription(`The key lookups, split by hit or miss.`),
		)),
		deletes: lo.Must[metric.Int64Counter](meter.Int64Counter(
			"rbtree.deletes",
			metric.WithDescription(`The removed entries.`),
		)),
		commands: lo.Must[metric.Int64Counter](meter.Int64Counter(
			"rbapp.commands",
			metric.WithDescription(`The processed commands by name.`),
		)),
	}
	if entries != nil {
		stats.entries = lo.Must[metric.Int64ObservableUpDownCounter](meter.Int64ObservableUpDownCounter(
			"rbtree.entries",
			metric.WithDescription(`The live entries.`),
			metric.WithInt64Callback(func(ctx context.Context, ob metric.Int64Observer) error {
				ob.Observe(entries())
				return nil
			}),
		))
	}
	return stats
}

func resultAttr(ok bool) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String(attrResult, lo.Ternary(ok, "ok", "failed")))
}

func (s *TreeStats) RecordInsert(ctx context.Context, err error) {
	if s == nil {
		return
	}
	s.inserts.Add(ctx, 1, resultAttr(err == nil))
}

func (s *TreeStats) RecordFind(ctx context.Context, hits int) {
	if s == nil {
		return
	}
	s.finds.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, lo.Ternary(hits > 0, "hit", "miss"))))
}

func (s *TreeStats) RecordDelete(ctx context.Context, removed int) {
	if s == nil || removed <= 0 {
		return
	}
	s.deletes.Add(ctx, int64(removed))
}

func (s *TreeStats) RecordCommand(ctx context.Context, command string) {
	if s == nil {
		return
	}
	s.commands.Add(ctx, 1, metric.WithAttributes(attribute.String(attrCommand, command)))
}
