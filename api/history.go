package api

import (
	"fmt"

	"usdfcterminal/domain"
	"usdfcterminal/history"
)

// HistoryPoint is one value of a single metric at a point in time, the
// shape the /api/v1/history endpoint renders.
type HistoryPoint struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

// validHistoryMetrics names the MetricSnapshot fields selectable via the
// history endpoint's metric query parameter.
var validHistoryMetrics = map[string]bool{
	"tcr": true, "supply": true, "liquidity": true,
	"holders": true, "lend_apr": true, "borrow_apr": true,
}

// GetHistory downsamples the in-memory ring for metric between fromUnix
// and toUnix (either may be 0 for "unbounded") at resolutionMins
// granularity, per §4.5's downsampling algorithm.
func (f *Facade) GetHistory(metric string, fromUnix, toUnix int64, resolutionMins int) ([]HistoryPoint, error) {
	if !validHistoryMetrics[metric] {
		return nil, fmt.Errorf("unknown metric %q", metric)
	}
	snapshots := f.ring.Snapshot()
	nowUnix := f.now().Unix()

	lookbackMins := 0
	if fromUnix > 0 {
		lookbackMins = int((nowUnix - fromUnix) / 60)
		if lookbackMins < 0 {
			lookbackMins = 0
		}
	}
	downsampled := history.Downsample(snapshots, nowUnix, lookbackMins, resolutionMins)

	out := make([]HistoryPoint, 0, len(downsampled))
	for _, snap := range downsampled {
		if toUnix > 0 && snap.Timestamp > toUnix {
			continue
		}
		out = append(out, HistoryPoint{Timestamp: snap.Timestamp, Value: metricValue(snap, metric)})
	}
	return out, nil
}

func metricValue(snap domain.MetricSnapshot, metric string) float64 {
	switch metric {
	case "tcr":
		return snap.TCR
	case "supply":
		return snap.Supply
	case "liquidity":
		return snap.Liquidity
	case "holders":
		return float64(snap.Holders)
	case "lend_apr":
		return snap.LendAPR
	case "borrow_apr":
		return snap.BorrowAPR
	default:
		return 0
	}
}
