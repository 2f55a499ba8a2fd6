package monitor

import (
	"log"
	"sort"
	"sync"
	"time"

	"github.com/OpenTransitTools/whereisit/business/data/tfl"
)

//Reconciliation is the outcome of merging one snapshot into a Tracker
type Reconciliation struct {
	//Legs is the Tracker's current mapping. It is a view of the Tracker's state and must not be modified.
	Legs map[tfl.LegId]*tfl.Leg
	//Discovered holds the ids of legs seen for the first time in the snapshot
	Discovered []tfl.LegId
	//Evicted holds legs that were tracked before the snapshot but are absent from it
	Evicted []*tfl.Leg
	//Rejected holds an *tfl.ObservationError for each observation that failed validation
	Rejected []error
}

//Tracker estimates how far each vehicle has traveled to its next station from successive snapshots of
//the time remaining until it arrives. The first time a leg is seen is treated as the start of the leg.
type Tracker struct {
	log       *log.Logger
	validator *tfl.ObservationValidator
	now       func() time.Time
	mu        sync.RWMutex
	legs      map[tfl.LegId]*tfl.Leg
}

//NewTracker creates an empty Tracker
func NewTracker(log *log.Logger) *Tracker {
	return &Tracker{
		log:       log,
		validator: tfl.NewObservationValidator(),
		now:       time.Now,
		legs:      make(map[tfl.LegId]*tfl.Leg),
	}
}

//Reconcile merges snapshot into the tracked legs: unseen legs are discovered, tracked legs are updated and
//legs missing from snapshot are evicted. Observations that fail validation are rejected and treated as missing.
//The whole call holds the Tracker's lock so readers never see a partially applied snapshot.
func (t *Tracker) Reconcile(snapshot map[tfl.LegId]*tfl.Observation) *Reconciliation {
	t.mu.Lock()
	defer t.mu.Unlock()

	at := t.now()
	result := Reconciliation{
		Discovered: make([]tfl.LegId, 0),
		Evicted:    make([]*tfl.Leg, 0),
		Rejected:   make([]error, 0),
	}

	valid := make(map[tfl.LegId]*tfl.Observation, len(snapshot))
	for _, id := range sortedLegIds(snapshot) {
		observation := snapshot[id]
		if err := t.validator.Validate(id, observation); err != nil {
			t.log.Printf("rejecting observation: %v\n", err)
			result.Rejected = append(result.Rejected, err)
			continue
		}
		valid[id] = observation
	}

	for _, id := range sortedLegIds(valid) {
		observation := valid[id]
		leg, present := t.legs[id]
		if !present {
			t.legs[id] = tfl.NewLeg(id, observation, at)
			result.Discovered = append(result.Discovered, id)
			continue
		}
		leg.Update(observation, at)
	}

	for _, id := range sortedLegIds(t.legs) {
		if _, present := valid[id]; !present {
			result.Evicted = append(result.Evicted, t.legs[id])
			delete(t.legs, id)
		}
	}

	result.Legs = t.legs
	return &result
}

//Legs returns a copy of every tracked leg ordered by id, safe to use while Reconcile runs
func (t *Tracker) Legs() []tfl.Leg {
	t.mu.RLock()
	defer t.mu.RUnlock()
	results := make([]tfl.Leg, 0, len(t.legs))
	for _, id := range sortedLegIds(t.legs) {
		results = append(results, *t.legs[id])
	}
	return results
}

//Leg returns a copy of the tracked leg with id, present is false if the leg isn't tracked
func (t *Tracker) Leg(id tfl.LegId) (leg tfl.Leg, present bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	tracked, present := t.legs[id]
	if !present {
		return tfl.Leg{}, false
	}
	return *tracked, true
}

//Size returns the number of legs tracked
func (t *Tracker) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.legs)
}

func sortedLegIds[V any](m map[tfl.LegId]V) []tfl.LegId {
	ids := make([]tfl.LegId, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i] < ids[j]
	})
	return ids
}
