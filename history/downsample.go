package history

import "usdfcterminal/domain"

// Downsample implements the read-side downsampling algorithm: given
// snapshots ordered oldest-first, a lookback window (0 = all), and a
// resolution, it emits the first snapshot seen in each new bucket. The
// result may include one "overflow" point straddling the current bucket
// boundary, by design.
func Downsample(snapshots []domain.MetricSnapshot, nowUnix int64, lookbackMins int, resolutionMins int) []domain.MetricSnapshot {
	var cutoff int64
	if lookbackMins > 0 {
		cutoff = nowUnix - int64(lookbackMins)*60
	}
	if resolutionMins < 1 {
		resolutionMins = 1
	}
	bucketSize := int64(resolutionMins) * 60

	var out []domain.MetricSnapshot
	var lastBucket int64
	haveBucket := false
	for _, snapshot := range snapshots {
		if cutoff > 0 && snapshot.Timestamp < cutoff {
			continue
		}
		bucket := snapshot.Timestamp / bucketSize
		if !haveBucket || bucket != lastBucket {
			out = append(out, snapshot)
			lastBucket = bucket
			haveBucket = true
		}
	}
	return out
}
