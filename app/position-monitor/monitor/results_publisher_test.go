package monitor

import (
	"testing"
	"time"

	"github.com/OpenTransitTools/whereisit/business/data/tfl"
	"github.com/matryer/is"
)

func Test_makeLegMonitorResults(t *testing.T) {
	is := is.New(t)
	tracker, _ := makeTestTracker()
	holidays := makeTransitHolidayCalendar()

	tracker.Reconcile(map[tfl.LegId]*tfl.Observation{
		1: makeObservation(300),
		2: makeObservation(120),
		3: makeObservation(90),
	})
	tracker.Reconcile(map[tfl.LegId]*tfl.Observation{
		1: makeObservation(150),
		2: makeObservation(60),
	})
	at := time.Date(2024, 5, 1, 8, 0, 30, 0, time.UTC)
	reconciliation := tracker.Reconcile(map[tfl.LegId]*tfl.Observation{
		1: makeObservation(100),
		4: makeObservation(200),
	})

	results := makeLegMonitorResults("snapshot-3", at, reconciliation, holidays)

	is.Equal(results.SnapshotId, "snapshot-3")
	is.Equal(results.Timestamp, at)
	is.Equal(len(results.Legs), 2)
	is.Equal(results.Legs[0].LegId, tfl.LegId(1))
	is.Equal(results.Legs[0].SnapshotId, "snapshot-3")
	is.Equal(results.Legs[0].TotalLegTime, 300)
	is.Equal(results.Legs[0].TimeRemaining, 100)
	is.Equal(results.Legs[0].PercentTraveled.StringFixed(2), "66.67")
	is.Equal(results.Legs[1].LegId, tfl.LegId(4))

	// leg 3 was only seen once so it produces no observed leg time
	is.Equal(len(results.ObservedLegTimes), 1)
	observed := results.ObservedLegTimes[0]
	is.Equal(observed.LegId, tfl.LegId(2))
	is.Equal(observed.SnapshotId, "snapshot-3")
	is.Equal(observed.TotalLegTime, 120)
	is.Equal(observed.ObservedSeconds, 15)
	is.Equal(observed.PercentTraveled.StringFixed(2), "50.00")
	is.Equal(*observed.LastStationNaptanId, "940GZZLUFYR")
	is.Equal(observed.Holiday, false)
}

func Test_makeLegMonitorResults_holiday(t *testing.T) {
	is := is.New(t)
	logWriter := makeTestLogWriter()
	tracker := NewTracker(logWriter.log)
	clock := &testClock{next: time.Date(2024, 12, 25, 10, 0, 0, 0, time.UTC), step: time.Minute}
	tracker.now = clock.now

	tracker.Reconcile(map[tfl.LegId]*tfl.Observation{1: makeObservation(300)})
	tracker.Reconcile(map[tfl.LegId]*tfl.Observation{1: makeObservation(240)})
	reconciliation := tracker.Reconcile(map[tfl.LegId]*tfl.Observation{})

	results := makeLegMonitorResults("snapshot", clock.next, reconciliation, makeTransitHolidayCalendar())
	is.Equal(len(results.Legs), 0)
	is.Equal(len(results.ObservedLegTimes), 1)
	is.True(results.ObservedLegTimes[0].Holiday)
	is.Equal(results.ObservedLegTimes[0].ObservedSeconds, 60)

	withoutCalendar := makeLegMonitorResults("snapshot", clock.next, reconciliation, nil)
	is.True(!withoutCalendar.ObservedLegTimes[0].Holiday)
}

func Test_legResultsPublisher_disabledDestinations(t *testing.T) {
	is := is.New(t)
	logWriter := makeTestLogWriter()
	publisher := makeLegResultsPublisher(logWriter.log, nil, nil, "leg-progress", makeTransitHolidayCalendar())
	is.True(!publisher.recordToDatabase)
	is.True(!publisher.publishOverNats)

	tracker, _ := makeTestTracker()
	tracker.Reconcile(map[tfl.LegId]*tfl.Observation{1: makeObservation(300)})
	tracker.Reconcile(map[tfl.LegId]*tfl.Observation{1: makeObservation(200)})
	reconciliation := tracker.Reconcile(map[tfl.LegId]*tfl.Observation{})

	publisher.publish("snapshot", time.Now(), reconciliation)
	is.Equal(len(logWriter.logLines), 1) // completed leg is logged
}
