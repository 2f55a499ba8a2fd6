package monitor

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/OpenTransitTools/whereisit/business/data/tfl"
	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/proto"
)

//defaultHttpHandler simple default http handler for default route
type defaultHttpHandler struct {
}

//ServeHTTP implements defaultHttpHandler http.Handler interface
func (h *defaultHttpHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Add("Application-Status", "OK")
}

//positionedLeg is a tfl.Leg with its coordinate, when the leg could be placed on a route
type positionedLeg struct {
	tfl.Leg
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

//JsonLegResponseWrapper provides json response wrapper around tracked legs
type JsonLegResponseWrapper struct {
	Timestamp int64           `json:"timestamp"`
	Legs      []positionedLeg `json:"legs"`
}

//legHandler responds with the tracker's current legs
type legHandler struct {
	log      *log.Logger
	tracker  *Tracker
	resolver *tfl.RouteResolver
}

//ServeHTTP implements legHandler's http.Handler interface. Responds with every leg, the legs of the "line"
//query parameters, or the single leg in the "id" path variable
func (h *legHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if idString, present := mux.Vars(r)["id"]; present {
		h.serveLeg(w, idString)
		return
	}
	lines := lineFilter(r)
	legs := make([]positionedLeg, 0)
	for _, leg := range h.tracker.Legs() {
		if len(lines) > 0 && !lines[leg.Line] {
			continue
		}
		legs = append(legs, h.position(leg))
	}
	writeJson(h.log, w, JsonLegResponseWrapper{Timestamp: time.Now().Unix(), Legs: legs})
}

func (h *legHandler) serveLeg(w http.ResponseWriter, idString string) {
	id, err := strconv.ParseInt(idString, 10, 64)
	if err != nil {
		http.Error(w, "invalid leg id", http.StatusBadRequest)
		return
	}
	leg, present := h.tracker.Leg(tfl.LegId(id))
	if !present {
		http.Error(w, "leg not found", http.StatusNotFound)
		return
	}
	writeJson(h.log, w, h.position(leg))
}

//position resolves leg's coordinate
func (h *legHandler) position(leg tfl.Leg) positionedLeg {
	result := positionedLeg{Leg: leg}
	if lat, lon, ok := h.resolver.Resolve(&leg); ok {
		result.Latitude = &lat
		result.Longitude = &lon
	}
	return result
}

//lineFilter returns the lines requested with "line" query parameters
func lineFilter(r *http.Request) map[tfl.Line]bool {
	lines := make(map[tfl.Line]bool)
	for _, name := range r.URL.Query()["line"] {
		lines[tfl.NormalizeLine(name)] = true
	}
	return lines
}

//gtfsVehiclePositionHandler responds with the tracker's current legs as gtfs-rt vehicle positions
type gtfsVehiclePositionHandler struct {
	log      *log.Logger
	tracker  *Tracker
	resolver *tfl.RouteResolver
}

//ServeHTTP implements gtfsVehiclePositionHandler's http.Handler interface
func (h *gtfsVehiclePositionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	feedMessage := buildVehiclePositionFeed(uint64(time.Now().Unix()), h.tracker.Legs(), h.resolver)
	if strings.ToLower(r.FormValue("text")) == "true" {
		h.writeProtocolBufferAsText(feedMessage, w)
	} else {
		h.writeProtocolBuffer(feedMessage, w)
	}
}

//writeProtocolBuffer marshal gtfs.FeedMessage as protocol buffer to http.ResponseWriter
func (h *gtfsVehiclePositionHandler) writeProtocolBuffer(feedMessage *gtfs.FeedMessage, w http.ResponseWriter) {
	bytes, err := proto.Marshal(feedMessage)
	if err != nil {
		h.log.Printf("Failed to marshal gtfs.FeedMessage to bytes, error:%s", err)
		http.Error(w, "Error serving request", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/x-protobuf")
	if _, err = w.Write(bytes); err != nil {
		h.log.Printf("Error writing bytes to http.ResponseWriter, error:%s", err)
	}
}

//writeProtocolBufferAsText write plain text formatting of gtfs.FeedMessage to http.ResponseWriter
func (h *gtfsVehiclePositionHandler) writeProtocolBufferAsText(feedMessage *gtfs.FeedMessage, w http.ResponseWriter) {
	stringResponse := prototext.MarshalOptions{Multiline: true}.Format(feedMessage)
	w.Header().Set("Content-Type", "text/plain")
	if _, err := w.Write([]byte(stringResponse)); err != nil {
		h.log.Printf("Error writing bytes to http.ResponseWriter, error:%s", err)
	}
}

//buildVehiclePositionFeed creates a full data set gtfs.FeedMessage with a vehicle position entity for each leg
func buildVehiclePositionFeed(now uint64, legs []tfl.Leg, resolver *tfl.RouteResolver) *gtfs.FeedMessage {
	entities := make([]*gtfs.FeedEntity, 0, len(legs))
	for i := range legs {
		entities = append(entities, makeVehiclePositionEntity(&legs[i], resolver))
	}
	return &gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Incrementality:      gtfs.FeedHeader_FULL_DATASET.Enum(),
			Timestamp:           proto.Uint64(now),
		},
		Entity: entities,
	}
}

//makeVehiclePositionEntity create gtfs.FeedEntity for leg. The vehicle is STOPPED_AT its next station once the
//leg is complete, otherwise IN_TRANSIT_TO it
func makeVehiclePositionEntity(leg *tfl.Leg, resolver *tfl.RouteResolver) *gtfs.FeedEntity {
	status := gtfs.VehiclePosition_IN_TRANSIT_TO
	if leg.Arrived() {
		status = gtfs.VehiclePosition_STOPPED_AT
	}
	vehicle := gtfs.VehiclePosition{
		Trip: &gtfs.TripDescriptor{
			RouteId: proto.String(string(leg.Line)),
		},
		CurrentStatus: status.Enum(),
		Timestamp:     proto.Uint64(uint64(leg.LastSeen.Unix())),
		StopId:        leg.NextStationNaptanId,
	}
	if leg.VehicleId != nil {
		vehicle.Vehicle = &gtfs.VehicleDescriptor{
			Id: proto.String(strconv.FormatInt(*leg.VehicleId, 10)),
		}
	}
	if lat, lon, ok := resolver.Resolve(leg); ok {
		vehicle.Position = &gtfs.Position{
			Latitude:  proto.Float32(float32(lat)),
			Longitude: proto.Float32(float32(lon)),
		}
	}
	return &gtfs.FeedEntity{
		Id:      proto.String(strconv.FormatInt(int64(leg.Id), 10)),
		Vehicle: &vehicle,
	}
}

//observedLegTimeHandler responds with observed leg times recorded in the database
type observedLegTimeHandler struct {
	log *log.Logger
	db  *sqlx.DB
}

//ServeHTTP implements observedLegTimeHandler's http.Handler interface. "line" query parameters select lines,
//all lines by default, "since" is a unix timestamp defaulting to one hour ago
func (h *observedLegTimeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	since := time.Now().Add(-time.Hour)
	if sinceString := r.FormValue("since"); sinceString != "" {
		sinceUnix, err := strconv.ParseInt(sinceString, 10, 64)
		if err != nil {
			http.Error(w, "invalid since timestamp", http.StatusBadRequest)
			return
		}
		since = time.Unix(sinceUnix, 0)
	}
	lines := tfl.Lines
	if filter := lineFilter(r); len(filter) > 0 {
		lines = make([]tfl.Line, 0, len(filter))
		for line := range filter {
			lines = append(lines, line)
		}
	}
	observations, err := tfl.GetObservedLegTimes(h.db, lines, since)
	if err != nil {
		h.log.Printf("Error loading observed leg times, error:%v\n", err)
		http.Error(w, "Error serving request", http.StatusInternalServerError)
		return
	}
	writeJson(h.log, w, observations)
}

//writeJson marshals v as the json response
func writeJson(log *log.Logger, w http.ResponseWriter, v interface{}) {
	jsonData, err := json.Marshal(v)
	if err != nil {
		log.Printf("Error marshaling response to json: error:%v\n", err)
		http.Error(w, "Error serving request", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err = w.Write(jsonData); err != nil {
		log.Printf("Error writing json response: %s", err)
	}
}

//createRouter creates the router for the position web service, observed leg times are only served when db
//is present
func createRouter(log *log.Logger, tracker *Tracker, resolver *tfl.RouteResolver, db *sqlx.DB) *mux.Router {
	legs := &legHandler{log: log, tracker: tracker, resolver: resolver}
	r := mux.NewRouter()
	r.Handle("/", &defaultHttpHandler{})
	r.Handle("/legs", legs).Methods(http.MethodGet)
	r.Handle("/legs/{id:-?[0-9]+}", legs).Methods(http.MethodGet)
	r.Handle("/vehiclePositions", &gtfsVehiclePositionHandler{log: log, tracker: tracker, resolver: resolver}).
		Methods(http.MethodGet)
	if db != nil {
		r.Handle("/observedLegTimes", &observedLegTimeHandler{log: log, db: db}).Methods(http.MethodGet)
	}
	return r
}

//createServer creates configured http.Server for responding to position requests
func createServer(log *log.Logger,
	tracker *Tracker,
	resolver *tfl.RouteResolver,
	db *sqlx.DB,
	httpPort int) *http.Server {
	return &http.Server{
		Addr:         strings.Join([]string{"0.0.0.0", strconv.Itoa(httpPort)}, ":"),
		WriteTimeout: time.Second * 15,
		ReadTimeout:  time.Second * 15,
		IdleTimeout:  time.Second * 60,
		Handler:      createRouter(log, tracker, resolver, db),
	}
}

//runWebService starts up the position web service, and terminates on shutdown signal
func runWebService(log *log.Logger,
	wg *sync.WaitGroup,
	tracker *Tracker,
	resolver *tfl.RouteResolver,
	db *sqlx.DB,
	httpPort int,
	shutdownSignal chan bool) {
	defer wg.Done()
	srv := createServer(log, tracker, resolver, db, httpPort)
	log.Printf("Starting server on port %d", httpPort)
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			log.Printf("server ListenAndServe ended. %s", err)
		}
	}()

	<-shutdownSignal
	log.Printf("ending webservice on shutdown signal")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(5)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("error shutting down webservice, error:%s", err)
	}
}
