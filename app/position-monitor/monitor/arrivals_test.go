package monitor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/OpenTransitTools/whereisit/business/data/tfl"
	"github.com/OpenTransitTools/whereisit/foundation/httpclient"
	"github.com/matryer/is"
)

const metropolitanArrivals = `[
  {
    "$type": "Tfl.Api.Presentation.Entities.Prediction, Tfl.Api.Presentation.Entities",
    "id": "-1523187631",
    "operationType": 1,
    "vehicleId": "204",
    "naptanId": "940GZZLUFYR",
    "stationName": "Finchley Road Underground Station",
    "lineId": "metropolitan",
    "lineName": "Metropolitan",
    "platformName": "Southbound - Platform 1",
    "direction": "inbound",
    "destinationNaptanId": "940GZZLUBST",
    "destinationName": "Baker Street Underground Station",
    "timeToStation": 145,
    "currentLocation": "Between Finchley Road and Baker Street"
  },
  "placeholder",
  {
    "id": "88",
    "vehicleId": null,
    "naptanId": "940GZZLUBST",
    "lineName": "Metropolitan",
    "platformName": "Northbound - Platform 3",
    "timeToStation": "30"
  },
  {
    "id": "not-a-number",
    "lineName": "Metropolitan",
    "platformName": "Southbound - Platform 1",
    "timeToStation": 12
  },
  {
    "id": 91,
    "lineName": "Metropolitan",
    "timeToStation": 12
  }
]`

const hammersmithArrivals = `[
  {
    "id": "77",
    "vehicleId": "012",
    "lineName": "Hammersmith & City",
    "platformName": "Westbound - Platform 2",
    "timeToStation": 0
  }
]`

func makeTestArrivalsServer(t *testing.T, responses map[string]string, statusCodes map[string]int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("app_key") != "test-key" {
			t.Errorf("request %s missing app_key", r.URL)
		}
		if code, present := statusCodes[r.URL.Path]; present {
			w.WriteHeader(code)
			return
		}
		body, present := responses[r.URL.Path]
		if !present {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
}

func makeTestArrivalProvider(log *testLogWriter, server *httptest.Server, lines []tfl.Line) *tflArrivalProvider {
	provider := makeTflArrivalProvider(log.log, server.Client(), server.URL+"/", "test-key", lines, time.Second)
	provider.retryPolicy = httpclient.RetryPolicy{
		InitialInterval: time.Millisecond,
		MaxElapsedTime:  20 * time.Millisecond,
	}
	return provider
}

func TestTflArrivalProvider_GetArrivals(t *testing.T) {
	is := is.New(t)
	logWriter := makeTestLogWriter()
	server := makeTestArrivalsServer(t, map[string]string{
		"/Line/metropolitan/Arrivals":     metropolitanArrivals,
		"/Line/hammersmith-city/Arrivals": hammersmithArrivals,
	}, nil)
	defer server.Close()
	provider := makeTestArrivalProvider(logWriter, server, []tfl.Line{tfl.Metropolitan, tfl.HammersmithAndCity})

	observations, err := provider.GetArrivals(context.Background())
	is.NoErr(err)
	is.Equal(len(observations), 4) // the placeholder and the non numeric id are discarded

	first := observations[-1523187631]
	is.True(first != nil)
	is.Equal(first.Line, tfl.Metropolitan)
	is.Equal(*first.VehicleId, int64(204))
	is.Equal(*first.LastStationNaptanId, "940GZZLUFYR")
	is.Equal(*first.NextStationNaptanId, "940GZZLUBST")
	is.Equal(first.Platform, "Southbound - Platform 1")
	is.Equal(*first.Direction, "inbound")
	is.Equal(*first.Destination, "Baker Street Underground Station")
	is.Equal(*first.TimeRemaining, 145)

	second := observations[88]
	is.True(second != nil)
	is.Equal(second.VehicleId, nil)
	is.Equal(second.NextStationNaptanId, nil)
	is.Equal(*second.TimeRemaining, 30)

	// missing platform is passed through for the tracker to reject
	missingPlatform := observations[91]
	is.True(missingPlatform != nil)
	is.Equal(missingPlatform.Platform, "")

	hammersmith := observations[77]
	is.True(hammersmith != nil)
	is.Equal(hammersmith.Line, tfl.HammersmithAndCity)
	is.Equal(*hammersmith.VehicleId, int64(12))
	is.Equal(*hammersmith.TimeRemaining, 0)

	foundDiscardLog := false
	for _, line := range logWriter.logLines {
		if strings.Contains(line, "not-a-number") {
			foundDiscardLog = true
		}
	}
	is.True(foundDiscardLog)
}

func TestTflArrivalProvider_GetArrivals_failures(t *testing.T) {
	tests := []struct {
		name        string
		statusCodes map[string]int
		responses   map[string]string
		wantStatus  int
	}{
		{
			name:        "server error on one line",
			statusCodes: map[string]int{"/Line/central/Arrivals": http.StatusInternalServerError},
			responses:   map[string]string{"/Line/metropolitan/Arrivals": metropolitanArrivals},
			wantStatus:  http.StatusInternalServerError,
		},
		{
			name:        "client error is not retried",
			statusCodes: map[string]int{"/Line/central/Arrivals": http.StatusForbidden},
			responses:   map[string]string{"/Line/metropolitan/Arrivals": metropolitanArrivals},
			wantStatus:  http.StatusForbidden,
		},
		{
			name:        "rate limited beyond the retry window",
			statusCodes: map[string]int{"/Line/central/Arrivals": http.StatusTooManyRequests},
			responses:   map[string]string{"/Line/metropolitan/Arrivals": metropolitanArrivals},
			wantStatus:  http.StatusTooManyRequests,
		},
		{
			name: "undecodable response",
			responses: map[string]string{
				"/Line/metropolitan/Arrivals": metropolitanArrivals,
				"/Line/central/Arrivals":      `{"message": "not a list"}`,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			server := makeTestArrivalsServer(t, tt.responses, tt.statusCodes)
			defer server.Close()
			provider := makeTestArrivalProvider(makeTestLogWriter(), server, []tfl.Line{tfl.Metropolitan, tfl.Central})

			observations, err := provider.GetArrivals(context.Background())
			is.True(err != nil)
			is.Equal(observations, nil)
			if tt.wantStatus != 0 {
				var statusError *httpclient.StatusError
				is.True(errors.As(err, &statusError))
				is.Equal(statusError.StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestTflArrivalProvider_arrivalsUrl(t *testing.T) {
	is := is.New(t)
	log := makeTestLogWriter()
	provider := makeTflArrivalProvider(log.log, http.DefaultClient, "https://api.tfl.gov.uk/", "", nil, time.Second)
	is.Equal(provider.arrivalsUrl(tfl.WaterlooAndCity), "https://api.tfl.gov.uk/Line/waterloo-city/Arrivals")

	provider.appKey = "a b"
	is.Equal(provider.arrivalsUrl(tfl.DLR), "https://api.tfl.gov.uk/Line/dlr/Arrivals?app_key=a+b")
}
