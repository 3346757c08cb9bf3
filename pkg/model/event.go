package model

import "time"

// EventGroup is a non-empty, timestamp-ordered run of assets that belong to
// one real-world event.
type EventGroup struct {
	Assets []*AssetRecord
}

// Len returns the number of assets in the group
func (g *EventGroup) Len() int {
	return len(g.Assets)
}

// First returns the earliest asset of the group
func (g *EventGroup) First() *AssetRecord {
	if len(g.Assets) == 0 {
		return nil
	}
	return g.Assets[0]
}

// Last returns the latest asset of the group
func (g *EventGroup) Last() *AssetRecord {
	if len(g.Assets) == 0 {
		return nil
	}
	return g.Assets[len(g.Assets)-1]
}

// Start returns the timestamp of the first asset, zero time for an empty group
func (g *EventGroup) Start() time.Time {
	if first := g.First(); first != nil {
		return first.Timestamp
	}
	return time.Time{}
}

// End returns the timestamp of the last asset, zero time for an empty group
func (g *EventGroup) End() time.Time {
	if last := g.Last(); last != nil {
		return last.Timestamp
	}
	return time.Time{}
}
