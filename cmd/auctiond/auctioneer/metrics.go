package auctioneer

import (
	"context"
	"sync/atomic"

	"github.com/wattmarket/auction-core/cmd/auctiond/metrics"
	"go.opentelemetry.io/otel/metric"
)

func (a *Auctioneer) initMetrics() {
	a.metricCreated = metrics.Meter.NewInt64Counter(metrics.Prefix + ".auctions_total")
	a.metricBids = metrics.Meter.NewInt64Counter(metrics.Prefix + ".bids_total")
	a.metricMatched = metrics.Meter.NewInt64Counter(metrics.Prefix + ".matched_auctions_total")
	a.metricDestroyed = metrics.Meter.NewInt64Counter(metrics.Prefix + ".destroyed_auctions_total")
	a.metricExecuted = metrics.Meter.NewInt64Counter(metrics.Prefix + ".executed_auctions_total")
	a.metricLastSweep = metrics.Meter.NewInt64GaugeObserver(metrics.Prefix+".last_sweep_height", a.lastSweepCb)
}

func (a *Auctioneer) lastSweepCb(_ context.Context, r metric.Int64ObserverResult) {
	r.Observe(int64(atomic.LoadUint64(&a.statLastSweep)))
}
