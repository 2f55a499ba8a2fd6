package tfl

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// LegId identifies one observed journey of a vehicle to its next station.
// The feed issues a new LegId once the vehicle passes the station.
type LegId int64

// Observation contains one arrival prediction for a leg, taken from a single snapshot of the arrivals feed.
// Fields that are optional are pointers and will be nil if they were not present in the feed.
type Observation struct {
	Line                Line    `json:"line" validate:"tfl_line"`
	VehicleId           *int64  `json:"vehicle_id,omitempty"`
	NextStationNaptanId *string `json:"next_station_naptan_id,omitempty"`
	LastStationNaptanId *string `json:"last_station_naptan_id,omitempty"`
	Platform            string  `json:"platform" validate:"required"`
	Direction           *string `json:"direction,omitempty"`
	Destination         *string `json:"destination,omitempty"`
	//TimeRemaining is the number of seconds until the vehicle reaches its next station, nil when it was missing
	TimeRemaining *int `json:"time_remaining" validate:"required"`
}

// ErrMissingObservation is returned when a snapshot holds a LegId without an Observation
var ErrMissingObservation = errors.New("missing observation")

// ObservationError reports an Observation that was rejected, LegId is the key it was found under
type ObservationError struct {
	LegId LegId
	Err   error
}

func (e *ObservationError) Error() string {
	return fmt.Sprintf("leg %d: invalid observation: %v", e.LegId, e.Err)
}

func (e *ObservationError) Unwrap() error {
	return e.Err
}

const lineTag = "tfl_line"

// ObservationValidator checks Observations for missing required fields and unknown lines
type ObservationValidator struct {
	validate *validator.Validate
}

// NewObservationValidator builds ObservationValidator with the tfl_line validation registered
func NewObservationValidator() *ObservationValidator {
	validate := validator.New()
	// registration only fails on an empty tag or a nil function
	_ = validate.RegisterValidation(lineTag, func(fl validator.FieldLevel) bool {
		return Line(fl.Field().String()).IsKnown()
	})
	return &ObservationValidator{validate: validate}
}

// Validate returns an *ObservationError if observation can't be tracked, nil otherwise
func (v *ObservationValidator) Validate(id LegId, observation *Observation) error {
	if observation == nil {
		return &ObservationError{LegId: id, Err: ErrMissingObservation}
	}
	err := v.validate.Struct(observation)
	if err == nil {
		return nil
	}
	var fieldErrors validator.ValidationErrors
	if errors.As(err, &fieldErrors) {
		for _, fieldError := range fieldErrors {
			if fieldError.Tag() == lineTag {
				return &ObservationError{
					LegId: id,
					Err:   fmt.Errorf("%w: %q", ErrUnknownLine, string(observation.Line)),
				}
			}
		}
	}
	return &ObservationError{LegId: id, Err: err}
}
