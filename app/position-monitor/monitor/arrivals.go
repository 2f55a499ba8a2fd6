package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/OpenTransitTools/whereisit/business/data/tfl"
	"github.com/OpenTransitTools/whereisit/foundation/httpclient"
)

//ArrivalProvider produces the current snapshot of arrival observations keyed by leg
type ArrivalProvider interface {
	GetArrivals(ctx context.Context) (map[tfl.LegId]*tfl.Observation, error)
}

//tflPrediction contains the fields read from a prediction in the TfL Line Arrivals response.
//The feed contains one prediction per vehicle per station it is going to stop at.
type tflPrediction struct {
	Id                  flexString `json:"id"`
	VehicleId           flexString `json:"vehicleId"`
	NaptanId            *string    `json:"naptanId"`
	LineName            string     `json:"lineName"`
	PlatformName        string     `json:"platformName"`
	Direction           *string    `json:"direction"`
	DestinationNaptanId *string    `json:"destinationNaptanId"`
	DestinationName     *string    `json:"destinationName"`
	TimeToStation       flexString `json:"timeToStation"`
}

//flexString holds a json value the feed sends either as a string or a number, empty when missing or null
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

//int64Value returns the value as an int64, ok is false if it's missing or not an integer
func (f flexString) int64Value() (int64, bool) {
	if f == "" {
		return 0, false
	}
	value, err := strconv.ParseInt(string(f), 10, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

//observation converts the prediction to a tfl.Observation. The line and required fields are left for the
//Tracker to validate, ok is false only when the prediction has no usable id.
func (p *tflPrediction) observation() (tfl.LegId, *tfl.Observation, bool) {
	id, ok := p.Id.int64Value()
	if !ok {
		return 0, nil, false
	}
	o := tfl.Observation{
		Line:                tfl.NormalizeLine(p.LineName),
		NextStationNaptanId: p.DestinationNaptanId,
		LastStationNaptanId: p.NaptanId,
		Platform:            p.PlatformName,
		Direction:           p.Direction,
		Destination:         p.DestinationName,
	}
	if vehicleId, ok := p.VehicleId.int64Value(); ok {
		o.VehicleId = &vehicleId
	}
	if timeToStation, ok := p.TimeToStation.int64Value(); ok {
		timeRemaining := int(timeToStation)
		o.TimeRemaining = &timeRemaining
	}
	return tfl.LegId(id), &o, true
}

//tflArrivalProvider implements ArrivalProvider using the TfL unified api, one request per line
type tflArrivalProvider struct {
	log            *log.Logger
	client         *http.Client
	baseUrl        string
	appKey         string
	lines          []tfl.Line
	requestTimeout time.Duration
	retryPolicy    httpclient.RetryPolicy
}

//makeTflArrivalProvider creates tflArrivalProvider
func makeTflArrivalProvider(log *log.Logger,
	client *http.Client,
	baseUrl string,
	appKey string,
	lines []tfl.Line,
	requestTimeout time.Duration) *tflArrivalProvider {
	return &tflArrivalProvider{
		log:            log,
		client:         client,
		baseUrl:        strings.TrimRight(baseUrl, "/"),
		appKey:         appKey,
		lines:          lines,
		requestTimeout: requestTimeout,
		retryPolicy:    httpclient.DefaultRetryPolicy,
	}
}

//GetArrivals retrieves predictions for every line. Any line failing fails the snapshot, so a partial
//outage doesn't evict every leg on the failed line.
func (p *tflArrivalProvider) GetArrivals(ctx context.Context) (map[tfl.LegId]*tfl.Observation, error) {
	observations := make(map[tfl.LegId]*tfl.Observation)
	for _, line := range p.lines {
		predictions, err := p.getLinePredictions(ctx, line)
		if err != nil {
			return nil, fmt.Errorf("retrieving arrivals for line %s: %w", line, err)
		}
		for _, prediction := range predictions {
			id, observation, ok := prediction.observation()
			if !ok {
				p.log.Printf("discarding %s prediction without a numeric id: %q\n", line, prediction.Id)
				continue
			}
			observations[id] = observation
		}
	}
	return observations, nil
}

//arrivalsUrl builds the Line Arrivals url for line
func (p *tflArrivalProvider) arrivalsUrl(line tfl.Line) string {
	u := fmt.Sprintf("%s/Line/%s/Arrivals", p.baseUrl, url.PathEscape(string(line)))
	if p.appKey != "" {
		u += "?" + url.Values{"app_key": []string{p.appKey}}.Encode()
	}
	return u
}

//getLinePredictions retrieves and decodes one line's predictions, skipping entries that aren't objects
func (p *tflArrivalProvider) getLinePredictions(ctx context.Context, line tfl.Line) ([]tflPrediction, error) {
	requestCtx, cancel := context.WithTimeout(ctx, p.requestTimeout)
	defer cancel()

	var items []json.RawMessage
	err := httpclient.GetJSON(requestCtx, p.client, p.arrivalsUrl(line), p.retryPolicy,
		func(err error, wait time.Duration) {
			p.log.Printf("retrying %s arrivals in %s, error: %v\n", line, wait, err)
		}, &items)
	if err != nil {
		return nil, err
	}
	return decodePredictions(p.log, items), nil
}

//decodePredictions decodes each json object in items, placeholders and undecodable entries are logged and skipped
func decodePredictions(log *log.Logger, items []json.RawMessage) []tflPrediction {
	predictions := make([]tflPrediction, 0, len(items))
	for _, item := range items {
		trimmed := bytes.TrimSpace(item)
		if len(trimmed) == 0 || trimmed[0] != '{' {
			continue
		}
		var prediction tflPrediction
		if err := json.Unmarshal(trimmed, &prediction); err != nil {
			log.Printf("unable to decode prediction %s, error: %v\n", string(trimmed), err)
			continue
		}
		predictions = append(predictions, prediction)
	}
	return predictions
}
