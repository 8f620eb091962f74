package highlight

import (
	"context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"log/slog"
)

// instrumentationName is the meter and tracer name used when none is
// supplied in Options
const instrumentationName = "github.com/swdee/go-highlight"

// metrics holds the counters a session reports to.  Without an
// OpenTelemetry SDK installed they are no-ops
type metrics struct {
	frames        metric.Int64Counter
	tracksCreated metric.Int64Counter
	tracksDeleted metric.Int64Counter
	events        metric.Int64Counter
	highlights    metric.Int64Counter
	errors        metric.Int64Counter
	tracer        trace.Tracer
}

// newMetrics creates the session counters on meter, falling back to the
// global provider when meter is nil
func newMetrics(meter metric.Meter, log *slog.Logger) *metrics {

	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}

	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			log.Warn("error creating counter", "counter", name, "error", err)
		}
		return c
	}

	return &metrics{
		frames:        counter("highlight.frames", "Frames processed"),
		tracksCreated: counter("highlight.tracks.created", "Tracks spawned"),
		tracksDeleted: counter("highlight.tracks.deleted", "Tracks deleted"),
		events:        counter("highlight.events", "Events detected"),
		highlights:    counter("highlight.highlights", "Highlights produced"),
		errors:        counter("highlight.errors", "Highlights that failed downstream"),
		tracer:        otel.Tracer(instrumentationName),
	}
}

// add increments a counter tagged with the session, nil counters from a
// failed creation are skipped
func add(ctx context.Context, c metric.Int64Counter, n int, sessionID string) {
	if c == nil || n == 0 {
		return
	}
	c.Add(ctx, int64(n), metric.WithAttributes(attribute.String("session_id", sessionID)))
}
