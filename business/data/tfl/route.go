package tfl

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// LocationType discriminates between the kinds of RouteLocation
type LocationType string

const (
	StationLocation  LocationType = "Station"
	JunctionLocation LocationType = "Junction"
)

// RouteLocation is one point on a Route's line string, either a Station or a Junction between stations
type RouteLocation struct {
	LocationType LocationType `json:"location_type"`
	NaptanId     string       `json:"naptan_id,omitempty"`
	Name         string       `json:"name,omitempty"`
	Lat          float64      `json:"lat"`
	Lon          float64      `json:"lon"`
}

// NewStation creates a RouteLocation for a station
func NewStation(naptanId string, name string, lat float64, lon float64) RouteLocation {
	return RouteLocation{LocationType: StationLocation, NaptanId: naptanId, Name: name, Lat: lat, Lon: lon}
}

// NewJunction creates a RouteLocation for a point on the line that isn't a station
func NewJunction(lat float64, lon float64) RouteLocation {
	return RouteLocation{LocationType: JunctionLocation, Lat: lat, Lon: lon}
}

// IsStation returns true if the location is a Station
func (r *RouteLocation) IsStation() bool {
	return r.LocationType == StationLocation
}

// Route is the ordered list of locations along one line string of a Line
type Route struct {
	Line      Line            `json:"line"`
	Locations []RouteLocation `json:"locations"`
}

// RouteFileName returns the name of the file routes for line are saved in
func RouteFileName(line Line) string {
	return fmt.Sprintf("%s_locations.json", line)
}

// LoadRoutes reads the routes saved for each line in dir. Lines without a route file are skipped.
func LoadRoutes(dir string, lines []Line) ([]Route, error) {
	var routes []Route
	for _, line := range lines {
		data, err := os.ReadFile(filepath.Join(dir, RouteFileName(line)))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading routes for line %s: %w", line, err)
		}
		var lineRoutes []Route
		if err = json.Unmarshal(data, &lineRoutes); err != nil {
			return nil, fmt.Errorf("parsing routes for line %s: %w", line, err)
		}
		routes = append(routes, lineRoutes...)
	}
	return routes, nil
}

// RouteResolver places tracked Legs on the map by walking their Line's routes between stations
type RouteResolver struct {
	routesByLine map[Line][]Route
}

// NewRouteResolver builds RouteResolver from routes
func NewRouteResolver(routes []Route) *RouteResolver {
	r := RouteResolver{routesByLine: make(map[Line][]Route)}
	for _, route := range routes {
		r.routesByLine[route.Line] = append(r.routesByLine[route.Line], route)
	}
	return &r
}

// RouteCount returns the number of routes available to the resolver
func (r *RouteResolver) RouteCount() int {
	if r == nil {
		return 0
	}
	count := 0
	for _, routes := range r.routesByLine {
		count += len(routes)
	}
	return count
}

// Resolve returns the coordinate PercentTraveled of the way along the route from the leg's last station to its
// next station. ok is false if no route of the leg's line contains both stations.
func (r *RouteResolver) Resolve(leg *Leg) (lat float64, lon float64, ok bool) {
	if r == nil || leg == nil || leg.LastStationNaptanId == nil || leg.NextStationNaptanId == nil {
		return 0, 0, false
	}
	for _, route := range r.routesByLine[leg.Line] {
		path := route.pathBetween(*leg.LastStationNaptanId, *leg.NextStationNaptanId)
		if len(path) == 0 {
			continue
		}
		fraction, _ := leg.PercentTraveled.Div(hundredPercent).Float64()
		lat, lon = locateAlongPath(path, fraction)
		return lat, lon, true
	}
	return 0, 0, false
}

// pathBetween returns the locations from station fromId to station toId inclusive, walking the route backwards
// if toId comes first. Returns nil if either station is missing.
func (r *Route) pathBetween(fromId string, toId string) []RouteLocation {
	from, to := -1, -1
	for i, location := range r.Locations {
		if !location.IsStation() {
			continue
		}
		if location.NaptanId == fromId && from < 0 {
			from = i
		}
		if location.NaptanId == toId && to < 0 {
			to = i
		}
	}
	if from < 0 || to < 0 {
		return nil
	}
	step := 1
	if to < from {
		step = -1
	}
	path := make([]RouteLocation, 0)
	for i := from; i != to+step; i += step {
		path = append(path, r.Locations[i])
	}
	return path
}

// locateAlongPath returns the coordinate fraction of the total distance along path
func locateAlongPath(path []RouteLocation, fraction float64) (float64, float64) {
	distances := make([]float64, len(path)-1)
	total := 0.0
	for i := 0; i+1 < len(path); i++ {
		distances[i] = simpleLatLngDistance(path[i].Lat, path[i].Lon, path[i+1].Lat, path[i+1].Lon)
		total += distances[i]
	}
	first, last := path[0], path[len(path)-1]
	if total <= 0 || fraction <= 0 {
		return first.Lat, first.Lon
	}
	if fraction >= 1 {
		return last.Lat, last.Lon
	}
	remaining := total * fraction
	for i, distance := range distances {
		if remaining <= distance {
			segmentFraction := 0.0
			if distance > 0 {
				segmentFraction = remaining / distance
			}
			return interpolateLatLng(path[i].Lat, path[i].Lon, path[i+1].Lat, path[i+1].Lon, segmentFraction)
		}
		remaining -= distance
	}
	return last.Lat, last.Lon
}
