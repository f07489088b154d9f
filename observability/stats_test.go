package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader sdkmetric.Reader) metricdata.ResourceMetrics {
	rm := metricdata.ResourceMetrics{}
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

// sumOf groups the int64 sum data points of the named metric by the
// value of attrKey.
func sumOf(rm metricdata.ResourceMetrics, name, attrKey string) (map[string]int64, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				return nil, false
			}
			res := make(map[string]int64, len(sum.DataPoints))
			for _, dp := range sum.DataPoints {
				v, _ := dp.Attributes.Value(attribute.Key(attrKey))
				res[v.AsString()] += dp.Value
			}
			return res, true
		}
	}
	return nil, false
}

func TestTreeStats(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() {
		require.NoError(t, mp.Shutdown(context.Background()))
	}()

	entries := int64(0)
	stats := NewTreeStats(mp, "test", func() int64 { return entries })
	ctx := context.Background()

	stats.RecordInsert(ctx, nil)
	stats.RecordInsert(ctx, nil)
	stats.RecordInsert(ctx, errors.New("full"))
	entries = 2
	stats.RecordFind(ctx, 2)
	stats.RecordFind(ctx, 0)
	stats.RecordDelete(ctx, 2)
	stats.RecordDelete(ctx, 0)
	stats.RecordCommand(ctx, "insert")
	stats.RecordCommand(ctx, "insert")
	stats.RecordCommand(ctx, "print")

	rm := collect(t, reader)

	inserts, ok := sumOf(rm, "rbtree.inserts", attrResult)
	require.True(t, ok)
	require.Equal(t, map[string]int64{"ok": 2, "failed": 1}, inserts)

	finds, ok := sumOf(rm, "rbtree.finds", attrResult)
	require.True(t, ok)
	require.Equal(t, map[string]int64{"hit": 1, "miss": 1}, finds)

	deletes, ok := sumOf(rm, "rbtree.deletes", attrResult)
	require.True(t, ok)
	require.Equal(t, map[string]int64{"": 2}, deletes)

	commands, ok := sumOf(rm, "rbapp.commands", attrCommand)
	require.True(t, ok)
	require.Equal(t, map[string]int64{"insert": 2, "print": 1}, commands)

	live, ok := sumOf(rm, "rbtree.entries", attrResult)
	require.True(t, ok)
	require.Equal(t, map[string]int64{"": 2}, live)
}

func TestTreeStats_Nil(t *testing.T) {
	var stats *TreeStats
	ctx := context.Background()
	stats.RecordInsert(ctx, nil)
	stats.RecordFind(ctx, 1)
	stats.RecordDelete(ctx, 1)
	stats.RecordCommand(ctx, "quit")

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	stats = NewTreeStats(mp, "", nil)
	stats.RecordCommand(ctx, "quit")
	rm := collect(t, reader)
	_, ok := sumOf(rm, "rbtree.entries", attrResult)
	require.False(t, ok)
	require.Equal(t, "rbkv/tree/default", rm.ScopeMetrics[0].Scope.Name)
}

func TestInitAppStats(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() {
		require.NoError(t, mp.Shutdown(context.Background()))
	}()
	require.NoError(t, InitAppStats(mp, "rbapp"))

	rm := collect(t, reader)
	goroutines, ok := sumOf(rm, "app.core.goroutines", "")
	require.True(t, ok)
	require.Positive(t, goroutines[""])
	procs, ok := sumOf(rm, "app.core.processes", "")
	require.True(t, ok)
	require.Positive(t, procs[""])
}
