package observability

import (
	"context"
	"runtime"
	"strings"
	"sync"

	"github.com/samber/lo"
	otelruntime "go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.uber.org/multierr"

	"go.opentelemetry.io/otel/metric"
)

var (
	once sync.Once
)

// SizeObserver is anything that can report how many entries it holds.
// Both the sorted map and the stores built on it satisfy this.
type SizeObserver interface {
	Len() int64
}

type appStats struct {
	ctx               context.Context
	shutdownCallbacks []func(ctx context.Context) error
	goroutines        metric.Int64ObservableUpDownCounter
	processes         metric.Int64ObservableUpDownCounter
}

func (stats *appStats) waitForShutdown() {
	if stats == nil || len(stats.shutdownCallbacks) == 0 {
		return
	}
	go func() {
		<-stats.ctx.Done()
		var merr error
		for _, callback := range stats.shutdownCallbacks {
			merr = multierr.Append(merr, callback(context.Background()))
		}
		_ = merr
	}()
}

func meterName(name string) string {
	builder := &strings.Builder{}
	builder.WriteString("xmap/app")
	builder.Write([]byte("/"))
	if len(strings.TrimSpace(name)) > 0 {
		builder.WriteString(name)
	} else {
		builder.WriteString("default")
	}
	return builder.String()
}

func InitAppStats(ctx context.Context, name string, shutdownCallbacks ...func(ctx context.Context) error) {
	once.Do(func() {
		name = meterName(name)
		stats := &appStats{
			ctx:               ctx,
			shutdownCallbacks: shutdownCallbacks,
			goroutines: lo.Must[metric.Int64ObservableUpDownCounter](otel.Meter(
				name,
				metric.WithInstrumentationVersion(otelruntime.Version()),
			).Int64ObservableUpDownCounter(
				"app.core.goroutines",
				metric.WithDescription(`The application goroutines' info.`),
				metric.WithInt64Callback(func(ctx context.Context, ob metric.Int64Observer) error {
					gNum := runtime.NumGoroutine()
					ob.Observe(int64(gNum))
					return nil
				}),
			),
			),
			processes: lo.Must[metric.Int64ObservableUpDownCounter](otel.Meter(
				name,
				metric.WithInstrumentationVersion(otelruntime.Version()),
			).Int64ObservableUpDownCounter(
				"app.core.processes",
				metric.WithDescription(`The application processes' info.`),
				metric.WithInt64Callback(func(ctx context.Context, ob metric.Int64Observer) error {
					procs := runtime.GOMAXPROCS(0)
					ob.Observe(int64(procs))
					return nil
				}),
			),
			),
		}
		_ = otelruntime.Start()
		stats.waitForShutdown()
	})
}

// RegisterSortedMapSizeStats exposes the entry count of a sorted map
// or store as an observable gauge. The observer must stay alive as
// long as the meter provider scrapes it.
func RegisterSortedMapSizeStats(name string, observer SizeObserver) (metric.Int64ObservableGauge, error) {
	return otel.Meter(
		meterName(name),
		metric.WithInstrumentationVersion(otelruntime.Version()),
	).Int64ObservableGauge(
		"app.sortedmap.size",
		metric.WithDescription(`The sorted map entries' count.`),
		metric.WithInt64Callback(func(ctx context.Context, ob metric.Int64Observer) error {
			ob.Observe(observer.Len())
			return nil
		}),
	)
}
