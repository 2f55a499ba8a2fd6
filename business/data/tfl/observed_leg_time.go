package tfl

import (
	"time"

	"github.com/OpenTransitTools/whereisit/foundation/database"
	"github.com/jmoiron/sqlx"
)

//ObservedLegTime records how long a leg was observed to take, made when the leg leaves the arrivals feed.
//These records build up the travel times between stations that the tracker can't know when it first sees a leg.
// primary key consists of SnapshotId and LegId
type ObservedLegTime struct {
	//SnapshotId identifies the reconcile cycle the leg was evicted in
	SnapshotId          string    `db:"snapshot_id" json:"snapshot_id"`
	LegId               LegId     `db:"leg_id" json:"leg_id"`
	Line                Line      `db:"line" json:"line"`
	VehicleId           *int64    `db:"vehicle_id" json:"vehicle_id,omitempty"`
	LastStationNaptanId *string   `db:"last_station_naptan_id" json:"last_station_naptan_id,omitempty"`
	NextStationNaptanId *string   `db:"next_station_naptan_id" json:"next_station_naptan_id,omitempty"`
	FirstSeen           time.Time `db:"first_seen" json:"first_seen"`
	LastSeen            time.Time `db:"last_seen" json:"last_seen"`
	//TotalLegTime is the final estimate of the leg's length in seconds
	TotalLegTime int `db:"total_leg_time" json:"total_leg_time"`
	//ObservedSeconds is the time between the leg's first and last observation
	ObservedSeconds int `db:"observed_seconds" json:"observed_seconds"`
	//PercentTraveled is the last estimate made before the leg left the feed
	PercentTraveled Percent   `db:"percent_traveled" json:"percent_traveled"`
	Holiday         bool      `db:"holiday" json:"holiday"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// MakeObservedLegTime builds ObservedLegTime from a Leg that has been evicted
func MakeObservedLegTime(snapshotId string, leg *Leg, holiday bool) *ObservedLegTime {
	return &ObservedLegTime{
		SnapshotId:          snapshotId,
		LegId:               leg.Id,
		Line:                leg.Line,
		VehicleId:           leg.VehicleId,
		LastStationNaptanId: leg.LastStationNaptanId,
		NextStationNaptanId: leg.NextStationNaptanId,
		FirstSeen:           leg.FirstSeen,
		LastSeen:            leg.LastSeen,
		TotalLegTime:        leg.TotalLegTime,
		ObservedSeconds:     int(leg.LastSeen.Sub(leg.FirstSeen).Seconds()),
		PercentTraveled:     leg.PercentTraveled,
		Holiday:             holiday,
	}
}

// RecordObservedLegTimes saves slice of ObservedLegTime into database in batch
func RecordObservedLegTimes(observations []*ObservedLegTime, db *sqlx.DB) error {
	if len(observations) == 0 {
		return nil
	}
	now := time.Now()
	for _, observation := range observations {
		observation.CreatedAt = now
	}
	statementString := "insert into observed_leg_time " +
		"(snapshot_id, " +
		"leg_id, " +
		"line, " +
		"vehicle_id, " +
		"last_station_naptan_id, " +
		"next_station_naptan_id, " +
		"first_seen, " +
		"last_seen, " +
		"total_leg_time, " +
		"observed_seconds, " +
		"percent_traveled, " +
		"holiday, " +
		"created_at) " +
		"values " +
		"(:snapshot_id, " +
		":leg_id, " +
		":line, " +
		":vehicle_id, " +
		":last_station_naptan_id, " +
		":next_station_naptan_id, " +
		":first_seen, " +
		":last_seen, " +
		":total_leg_time, " +
		":observed_seconds, " +
		":percent_traveled, " +
		":holiday, " +
		":created_at)"
	statementString = db.Rebind(statementString)
	_, err := db.NamedExec(statementString, observations)
	return err
}

// GetObservedLegTimes loads ObservedLegTimes for lines that left the feed at or after since
func GetObservedLegTimes(db *sqlx.DB, lines []Line, since time.Time) ([]*ObservedLegTime, error) {
	lineCodes := make([]string, 0, len(lines))
	for _, line := range lines {
		lineCodes = append(lineCodes, string(line))
	}
	statementString := "select * from observed_leg_time where line in (:lines) and last_seen >= :since " +
		"order by last_seen"
	rows, err := database.PrepareNamedQueryRowsFromMap(statementString, db, map[string]interface{}{
		"lines": lineCodes,
		"since": since,
	})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	results := make([]*ObservedLegTime, 0)
	for rows.Next() {
		observation := ObservedLegTime{}
		if err = rows.StructScan(&observation); err != nil {
			return nil, err
		}
		results = append(results, &observation)
	}
	return results, rows.Err()
}

//LegProgress is the state of one active leg after a reconcile cycle
type LegProgress struct {
	SnapshotId          string    `db:"snapshot_id" json:"snapshot_id"`
	ObservedAt          time.Time `db:"observed_at" json:"observed_at"`
	LegId               LegId     `db:"leg_id" json:"leg_id"`
	Line                Line      `db:"line" json:"line"`
	NextStationNaptanId *string   `db:"next_station_naptan_id" json:"next_station_naptan_id,omitempty"`
	TimeRemaining       int       `db:"time_remaining" json:"time_remaining"`
	TotalLegTime        int       `db:"total_leg_time" json:"total_leg_time"`
	PercentTraveled     Percent   `db:"percent_traveled" json:"percent_traveled"`
}

// MakeLegProgress builds LegProgress from an active Leg
func MakeLegProgress(snapshotId string, at time.Time, leg *Leg) *LegProgress {
	return &LegProgress{
		SnapshotId:          snapshotId,
		ObservedAt:          at,
		LegId:               leg.Id,
		Line:                leg.Line,
		NextStationNaptanId: leg.NextStationNaptanId,
		TimeRemaining:       leg.TimeRemaining,
		TotalLegTime:        leg.TotalLegTime,
		PercentTraveled:     leg.PercentTraveled,
	}
}

// RecordLegProgress saves slice of LegProgress into database in batch
func RecordLegProgress(progress []*LegProgress, db *sqlx.DB) error {
	if len(progress) == 0 {
		return nil
	}
	statementString := "insert into leg_progress (snapshot_id, observed_at, leg_id, line, " +
		"next_station_naptan_id, time_remaining, total_leg_time, percent_traveled) values " +
		"(:snapshot_id, :observed_at, :leg_id, :line, " +
		":next_station_naptan_id, :time_remaining, :total_leg_time, :percent_traveled)"
	statementString = db.Rebind(statementString)
	_, err := db.NamedExec(statementString, progress)
	return err
}
