package monitor

import (
	"encoding/json"
	"log"
	"time"

	"github.com/OpenTransitTools/whereisit/business/data/tfl"
	"github.com/jmoiron/sqlx"
	"github.com/nats-io/nats.go"
)

//resultsPublisher receives the results of each reconcile cycle
type resultsPublisher interface {
	publish(snapshotId string, at time.Time, reconciliation *Reconciliation)
}

//legResultsPublisher sends tfl.LegMonitorResults to their destinations (database and/or nats)
type legResultsPublisher struct {
	log              *log.Logger
	db               *sqlx.DB
	natsConnection   *nats.Conn
	subject          string
	holidays         *transitHolidayCalendar
	recordToDatabase bool
	publishOverNats  bool
}

//makeLegResultsPublisher creates legResultsPublisher. db and natsConnection may be nil when the
//corresponding destination is disabled
func makeLegResultsPublisher(log *log.Logger,
	db *sqlx.DB,
	natsConnection *nats.Conn,
	subject string,
	holidays *transitHolidayCalendar) *legResultsPublisher {
	return &legResultsPublisher{
		log:              log,
		db:               db,
		natsConnection:   natsConnection,
		subject:          subject,
		holidays:         holidays,
		recordToDatabase: db != nil,
		publishOverNats:  natsConnection != nil,
	}
}

//makeLegMonitorResults builds tfl.LegMonitorResults from a Reconciliation.
//Only evicted legs that were observed more than once produce a tfl.ObservedLegTime, a leg seen once says nothing
//about how long it took.
func makeLegMonitorResults(snapshotId string,
	at time.Time,
	reconciliation *Reconciliation,
	holidays *transitHolidayCalendar) *tfl.LegMonitorResults {

	results := tfl.LegMonitorResults{
		SnapshotId:       snapshotId,
		Timestamp:        at,
		Legs:             make([]*tfl.LegProgress, 0, len(reconciliation.Legs)),
		ObservedLegTimes: make([]*tfl.ObservedLegTime, 0),
	}
	for _, id := range sortedLegIds(reconciliation.Legs) {
		results.Legs = append(results.Legs, tfl.MakeLegProgress(snapshotId, at, reconciliation.Legs[id]))
	}
	for _, leg := range reconciliation.Evicted {
		if leg.Updates < 1 {
			continue
		}
		holiday := holidays != nil && holidays.isHoliday(leg.FirstSeen)
		results.ObservedLegTimes = append(results.ObservedLegTimes, tfl.MakeObservedLegTime(snapshotId, leg, holiday))
	}
	return &results
}

//publish builds tfl.LegMonitorResults and sends them over NATS and records them to the database according to
//publishOverNats and recordToDatabase
func (p *legResultsPublisher) publish(snapshotId string, at time.Time, reconciliation *Reconciliation) {
	results := makeLegMonitorResults(snapshotId, at, reconciliation, p.holidays)
	for _, observed := range results.ObservedLegTimes {
		p.log.Printf("Leg %d on line %s completed, total leg time %d observed for %d seconds\n",
			observed.LegId, observed.Line, observed.TotalLegTime, observed.ObservedSeconds)
	}
	if p.publishOverNats {
		p.sendOverNats(results)
	}
	if p.recordToDatabase {
		p.record(results)
	}
}

func (p *legResultsPublisher) sendOverNats(results *tfl.LegMonitorResults) {
	jsonData, err := json.Marshal(results)
	if err != nil {
		p.log.Printf("failed to marshal LegMonitorResults in legResultsPublisher.sendOverNats, error:%v", err)
		return
	}
	err = p.natsConnection.Publish(p.subject, jsonData)
	if err != nil {
		p.log.Printf("failed to send LegMonitorResults in legResultsPublisher.sendOverNats, error:%v", err)
	}
}

func (p *legResultsPublisher) record(results *tfl.LegMonitorResults) {
	err := tfl.RecordLegProgress(results.Legs, p.db)
	if err != nil {
		p.log.Printf("failed to record %d leg progress rows, error:%v", len(results.Legs), err)
	}
	err = tfl.RecordObservedLegTimes(results.ObservedLegTimes, p.db)
	if err != nil {
		p.log.Printf("failed to record %d observed leg times, error:%v", len(results.ObservedLegTimes), err)
	}
}
