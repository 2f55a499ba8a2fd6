package monitor

import (
	logger "log"
	"sync"
	"time"

	"github.com/OpenTransitTools/whereisit/business/data/tfl"
)

type testLogWriter struct {
	mu       sync.Mutex
	logLines []string
	log      *logger.Logger
}

func makeTestLogWriter() *testLogWriter {
	logWriter := testLogWriter{
		logLines: make([]string, 0),
	}
	log := logger.New(&logWriter, "TEST_POSITION_MONITOR : ", logger.LstdFlags|logger.Lmicroseconds|logger.Lshortfile)
	logWriter.log = log
	return &logWriter
}

func (t *testLogWriter) Write(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.logLines = append(t.logLines, string(p))
	return len(p), nil
}

func intPtr(i int) *int {
	return &i
}

func int64Ptr(i int64) *int64 {
	return &i
}

func stringPtr(s string) *string {
	return &s
}

//makeObservation creates a valid observation on the metropolitan line
func makeObservation(timeRemaining int) *tfl.Observation {
	return &tfl.Observation{
		Line:                tfl.Metropolitan,
		VehicleId:           int64Ptr(31),
		NextStationNaptanId: stringPtr("940GZZLUBST"),
		LastStationNaptanId: stringPtr("940GZZLUFYR"),
		Platform:            "P1",
		Direction:           stringPtr("inbound"),
		Destination:         stringPtr("Aldgate Underground Station"),
		TimeRemaining:       intPtr(timeRemaining),
	}
}

//testClock returns increasing times, starting at start and stepping by step on each call
type testClock struct {
	next time.Time
	step time.Duration
}

func (c *testClock) now() time.Time {
	at := c.next
	c.next = c.next.Add(c.step)
	return at
}

//makeTestTracker creates a Tracker using a testClock that starts at 2024-05-01 08:00 UTC and steps 15 seconds
func makeTestTracker() (*Tracker, *testLogWriter) {
	logWriter := makeTestLogWriter()
	tracker := NewTracker(logWriter.log)
	clock := &testClock{next: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC), step: 15 * time.Second}
	tracker.now = clock.now
	return tracker, logWriter
}
