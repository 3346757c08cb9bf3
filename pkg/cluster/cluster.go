// Package cluster partitions asset records into event groups on the time axis.
package cluster

import (
	"sort"
	"time"

	"github.com/m-mizutani/curator/pkg/model"
)

// DefaultGap is the default maximum distance between chronologically adjacent
// assets of the same event
const DefaultGap = 30 * time.Minute

// Cluster groups records into events. Records are ordered by timestamp (ties
// keep input order) and chained: a new group starts only when the distance to
// the last record of the open group is strictly greater than gap. The input
// slice is not modified.
func Cluster(records []*model.AssetRecord, gap time.Duration) []*model.EventGroup {
	if len(records) == 0 {
		return []*model.EventGroup{}
	}

	sorted := make([]*model.AssetRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	current := &model.EventGroup{Assets: []*model.AssetRecord{sorted[0]}}
	groups := []*model.EventGroup{current}

	for _, record := range sorted[1:] {
		if record.Timestamp.Sub(current.Last().Timestamp) > gap {
			current = &model.EventGroup{Assets: []*model.AssetRecord{record}}
			groups = append(groups, current)
			continue
		}
		current.Assets = append(current.Assets, record)
	}

	return groups
}
