// Package routemanager builds the route geometry files used to place vehicles between stations
package routemanager

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/OpenTransitTools/whereisit/business/data/tfl"
	"github.com/OpenTransitTools/whereisit/foundation/httpclient"
)

//RouteWriter saves the routes scraped for a line
type RouteWriter interface {
	WriteRoutes(line tfl.Line, routes []tfl.Route) error
}

//DirectoryWriter writes each line's routes as indented json to a file in Dir
type DirectoryWriter struct {
	Dir string
}

//WriteRoutes implements RouteWriter
func (d DirectoryWriter) WriteRoutes(line tfl.Line, routes []tfl.Route) error {
	if err := os.MkdirAll(d.Dir, 0755); err != nil {
		return fmt.Errorf("creating route directory %s: %w", d.Dir, err)
	}
	data, err := json.MarshalIndent(routes, "", "    ")
	if err != nil {
		return fmt.Errorf("marshaling routes for line %s: %w", line, err)
	}
	path := filepath.Join(d.Dir, tfl.RouteFileName(line))
	if err = os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing routes to %s: %w", path, err)
	}
	return nil
}

//routeSequence is the part of the TfL route sequence response used to build routes
type routeSequence struct {
	LineStrings []string               `json:"lineStrings"`
	Stations    []routeSequenceStation `json:"stations"`
}

type routeSequenceStation struct {
	Id   string  `json:"id"`
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

//ScrapeRoutes retrieves the route sequences of each line from baseUrl and saves them with writer.
//Lines the api returns no stations for are skipped.
func ScrapeRoutes(log *log.Logger,
	client *http.Client,
	baseUrl string,
	lines []tfl.Line,
	writer RouteWriter) error {

	for _, line := range lines {
		sequence, err := getRouteSequence(client, baseUrl, line)
		if err != nil {
			return err
		}
		if len(sequence.Stations) == 0 {
			log.Printf("API call for line %s didn't return any stations", line)
			continue
		}
		routes, err := buildRoutes(line, sequence)
		if err != nil {
			return err
		}
		if err = writer.WriteRoutes(line, routes); err != nil {
			return err
		}
		log.Printf("Saved %d routes for line %s", len(routes), line)
	}
	return nil
}

func getRouteSequence(client *http.Client, baseUrl string, line tfl.Line) (*routeSequence, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	url := fmt.Sprintf("%s/line/%s/route/sequence/all", strings.TrimSuffix(baseUrl, "/"), line)
	var sequence routeSequence
	err := httpclient.GetJSON(ctx, client, url, httpclient.DefaultRetryPolicy, nil, &sequence)
	if err != nil {
		return nil, fmt.Errorf("retrieving route sequence for line %s: %w", line, err)
	}
	return &sequence, nil
}

//buildRoutes creates a route from each line string in sequence. Points on a line string located at a station
//become stations, all others junctions
func buildRoutes(line tfl.Line, sequence *routeSequence) ([]tfl.Route, error) {
	stations := make(map[string]routeSequenceStation)
	for _, station := range sequence.Stations {
		stations[latLonKey(station.Lat, station.Lon)] = station
	}
	routes := make([]tfl.Route, 0, len(sequence.LineStrings))
	for i, rawLineString := range sequence.LineStrings {
		var lineString [][][]float64
		if err := json.Unmarshal([]byte(rawLineString), &lineString); err != nil {
			return nil, fmt.Errorf("parsing line string %d of line %s: %w", i, line, err)
		}
		if len(lineString) == 0 {
			continue
		}
		route := tfl.Route{Line: line, Locations: make([]tfl.RouteLocation, 0, len(lineString[0]))}
		for _, point := range lineString[0] {
			if len(point) < 2 {
				return nil, fmt.Errorf("line string %d of line %s has point without coordinates", i, line)
			}
			lon, lat := point[0], point[1]
			if station, present := stations[latLonKey(lat, lon)]; present {
				route.Locations = append(route.Locations, tfl.NewStation(station.Id, station.Name, lat, lon))
			} else {
				route.Locations = append(route.Locations, tfl.NewJunction(lat, lon))
			}
		}
		routes = append(routes, route)
	}
	return routes, nil
}

func latLonKey(lat float64, lon float64) string {
	return strconv.FormatFloat(lat, 'f', -1, 64) + "_" + strconv.FormatFloat(lon, 'f', -1, 64)
}
