package metrics

import (
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/global"
)

// Prefix is the metric name prefix for the daemon.
var Prefix = "auctiond"

// Meter is the daemon-wide meter.
var Meter = metric.Must(global.Meter(Prefix))
