package tfl

import (
	"time"

	"github.com/shopspring/decimal"
)

// percentPlaces is the number of decimal places kept in Leg.PercentTraveled
const percentPlaces = 2

var (
	hundredPercent = decimal.New(10000, -percentPlaces)
	half           = decimal.New(5, -1)
)

// Percent is a percentage kept to two decimal places. It marshals to json with both places ("50.00"),
// scanning and database values use the embedded decimal.Decimal
type Percent struct {
	decimal.Decimal
}

// MarshalJSON writes p as a quoted string with exactly two decimal places
func (p Percent) MarshalJSON() ([]byte, error) {
	return []byte(`"` + p.StringFixed(percentPlaces) + `"`), nil
}

// Leg is the tracked state of a vehicle traveling to its next station.
// Descriptive fields are copied from the latest Observation, TotalLegTime and PercentTraveled are derived
// from every Observation seen for the leg
type Leg struct {
	Id                  LegId   `json:"id"`
	VehicleId           *int64  `json:"vehicle_id,omitempty"`
	Line                Line    `json:"line"`
	NextStationNaptanId *string `json:"next_station_naptan_id,omitempty"`
	LastStationNaptanId *string `json:"last_station_naptan_id,omitempty"`
	Platform            string  `json:"platform"`
	Direction           *string `json:"direction,omitempty"`
	Destination         *string `json:"destination,omitempty"`
	TimeRemaining       int     `json:"time_remaining"`
	//TotalLegTime is the largest TimeRemaining seen, the best estimate of how long the leg takes in seconds.
	//It never decreases.
	TotalLegTime int `json:"total_leg_time"`
	//PercentTraveled is how much of TotalLegTime has passed, between 0 and 100 with two decimal places
	PercentTraveled Percent   `json:"percent_traveled"`
	FirstSeen       time.Time `json:"first_seen"`
	LastSeen        time.Time `json:"last_seen"`
	//Updates counts the observations received after the leg was discovered
	Updates int `json:"updates"`
}

// NewLeg creates a Leg from its first Observation. The moment of discovery is treated as zero percent traveled
// unless the vehicle is already due.
// observation must have passed ObservationValidator.Validate
func NewLeg(id LegId, observation *Observation, at time.Time) *Leg {
	leg := Leg{
		Id:           id,
		TotalLegTime: *observation.TimeRemaining,
		FirstSeen:    at,
	}
	leg.copyObservation(observation, at)
	leg.PercentTraveled = Percent{PercentTraveled(leg.TimeRemaining, leg.TotalLegTime)}
	return &leg
}

// Update applies a later Observation to the Leg.
// A TimeRemaining longer than TotalLegTime means the leg has been delayed, so TotalLegTime grows to match it.
func (l *Leg) Update(observation *Observation, at time.Time) {
	l.copyObservation(observation, at)
	if l.TimeRemaining > l.TotalLegTime {
		l.TotalLegTime = l.TimeRemaining
	}
	l.PercentTraveled = Percent{PercentTraveled(l.TimeRemaining, l.TotalLegTime)}
	l.Updates++
}

func (l *Leg) copyObservation(observation *Observation, at time.Time) {
	l.VehicleId = observation.VehicleId
	l.Line = observation.Line
	l.NextStationNaptanId = observation.NextStationNaptanId
	l.LastStationNaptanId = observation.LastStationNaptanId
	l.Platform = observation.Platform
	l.Direction = observation.Direction
	l.Destination = observation.Destination
	l.TimeRemaining = *observation.TimeRemaining
	l.LastSeen = at
}

// Arrived returns true when the leg is estimated to be complete
func (l *Leg) Arrived() bool {
	return l.PercentTraveled.GreaterThanOrEqual(hundredPercent)
}

// PercentTraveled calculates 100 - (timeRemaining / totalLegTime) * 100 rounded half down to two decimal places.
// A totalLegTime of zero or less means the vehicle has already arrived and returns 100.
// Results are capped at 100 for negative timeRemaining values.
func PercentTraveled(timeRemaining int, totalLegTime int) decimal.Decimal {
	if totalLegTime <= 0 || timeRemaining <= 0 {
		return hundredPercent
	}
	traveled := decimal.NewFromInt(int64(totalLegTime-timeRemaining) * 100).
		Div(decimal.NewFromInt(int64(totalLegTime)))
	return RoundHalfDown(traveled, percentPlaces)
}

// RoundHalfDown rounds d to places decimal places, rounding to nearest with ties going towards zero.
// The result always has exactly places digits after the decimal point.
func RoundHalfDown(d decimal.Decimal, places int32) decimal.Decimal {
	truncated := d.Truncate(places)
	if truncated.Exponent() > -places {
		truncated = decimal.NewFromBigInt(truncated.Shift(places).BigInt(), -places)
	}
	remainder := d.Sub(truncated).Abs().Shift(places)
	if !remainder.GreaterThan(half) {
		return truncated
	}
	step := decimal.New(1, -places)
	if d.Sign() < 0 {
		return truncated.Sub(step)
	}
	return truncated.Add(step)
}
