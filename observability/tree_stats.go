package observability

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sys/cpu"

	"github.com/benz9527/xtree/lib/tree"
)

const (
	TreeStatsName = "xtree/node"
)

var _ tree.Observer = (*TreeStats)(nil)

type TreeSnapshot struct {
	Created   int64
	Attached  int64
	Detached  int64
	Reclaimed int64
}

// Live is the number of nodes created but not yet reclaimed.
func (snap TreeSnapshot) Live() int64 {
	return snap.Created - snap.Reclaimed
}

// TreeStats counts node lifecycle events both in process and as otel
// instruments. Every scenario goroutine hits the counters, so each one
// sits on its own cache line.
type TreeStats struct {
	created          atomic.Int64
	_                cpu.CacheLinePad
	attached         atomic.Int64
	_                cpu.CacheLinePad
	detached         atomic.Int64
	_                cpu.CacheLinePad
	reclaimed        atomic.Int64
	_                cpu.CacheLinePad
	createdCounter   metric.Int64Counter
	attachedCounter  metric.Int64Counter
	detachedCounter  metric.Int64Counter
	reclaimedCounter metric.Int64Counter
	liveNodes        metric.Int64UpDownCounter
}

func (stats *TreeStats) NodeCreated() {
	if stats == nil {
		return
	}
	stats.created.Add(1)
	stats.createdCounter.Add(context.Background(), 1)
	stats.liveNodes.Add(context.Background(), 1)
}

func (stats *TreeStats) NodeAttached() {
	if stats == nil {
		return
	}
	stats.attached.Add(1)
	stats.attachedCounter.Add(context.Background(), 1)
}

func (stats *TreeStats) NodeDetached() {
	if stats == nil {
		return
	}
	stats.detached.Add(1)
	stats.detachedCounter.Add(context.Background(), 1)
}

func (stats *TreeStats) NodeReclaimed() {
	if stats == nil {
		return
	}
	stats.reclaimedCounter.Add(context.Background(), 1)
	stats.liveNodes.Add(context.Background(), -1)
	// After the instruments, so a snapshot never runs ahead of them.
	stats.reclaimed.Add(1)
}

func (stats *TreeStats) Snapshot() TreeSnapshot {
	return TreeSnapshot{
		Created:   stats.created.Load(),
		Attached:  stats.attached.Load(),
		Detached:  stats.detached.Load(),
		Reclaimed: stats.reclaimed.Load(),
	}
}

// AwaitReclaimed forces collections until every counted node has been
// reclaimed or ctx is done, then returns the snapshot at that point.
// Cleanups run asynchronously, so reclamation lags the collection.
func (stats *TreeStats) AwaitReclaimed(ctx context.Context, interval time.Duration) TreeSnapshot {
	if stats == nil {
		return TreeSnapshot{}
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		runtime.GC()
		snap := stats.Snapshot()
		if snap.Live() <= 0 {
			return snap
		}
		select {
		case <-ctx.Done():
			return snap
		case <-ticker.C:
		}
	}
}

func NewTreeStats(meter metric.Meter) *TreeStats {
	return &TreeStats{
		createdCounter: lo.Must(meter.Int64Counter(
			"xtree.node.created",
			metric.WithDescription("Nodes built by CreateLeaf or Fork."),
		)),
		attachedCounter: lo.Must(meter.Int64Counter(
			"xtree.node.attached",
			metric.WithDescription("Nodes installed into a parent slot."),
		)),
		detachedCounter: lo.Must(meter.Int64Counter(
			"xtree.node.detached",
			metric.WithDescription("Nodes dislodged from a parent slot."),
		)),
		reclaimedCounter: lo.Must(meter.Int64Counter(
			"xtree.node.reclaimed",
			metric.WithDescription("Nodes reclaimed by the garbage collector."),
		)),
		liveNodes: lo.Must(meter.Int64UpDownCounter(
			"xtree.node.live",
			metric.WithDescription("Nodes created and not reclaimed yet."),
		)),
	}
}
