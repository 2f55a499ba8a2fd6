package tfl

import "time"

//LegMonitorResults holds everything produced by one reconcile cycle of the tracker
//ObservedLegTimes is empty unless legs that were observed more than once left the feed
type LegMonitorResults struct {
	SnapshotId       string             `json:"snapshot_id"`
	Timestamp        time.Time          `json:"timestamp"`
	Legs             []*LegProgress     `json:"legs"`
	ObservedLegTimes []*ObservedLegTime `json:"observed_leg_times"`
}
