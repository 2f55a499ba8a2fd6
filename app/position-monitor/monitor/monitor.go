// Package monitor tracks the relative position of vehicles between stations from the TfL arrivals feed
package monitor

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/OpenTransitTools/whereisit/business/data/tfl"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/nats-io/nats.go"
)

//Conf contains all configurable parameters of the position monitor
type Conf struct {
	ArrivalsBaseUrl       string
	AppKey                string
	Lines                 []tfl.Line
	LoadEverySeconds      int
	RequestTimeoutSeconds int
	NatsSubject           string
	HttpPort              int
	//RoutesDir holds route files written by route-loader, positions are not resolved when empty
	RoutesDir string
}

//StartServices brings up the position monitor loop and web service. db and natsConn are optional, results are
//only recorded or published when they are present. Returns after shutdownSignal once both routines have ended.
func StartServices(log *log.Logger,
	db *sqlx.DB,
	natsConn *nats.Conn,
	conf Conf,
	shutdownSignal chan os.Signal) error {

	resolver, err := loadRouteResolver(conf.RoutesDir, conf.Lines)
	if err != nil {
		return err
	}
	log.Printf("Loaded %d routes for resolving positions", resolver.RouteCount())

	tracker := NewTracker(log)
	provider := makeTflArrivalProvider(log,
		&http.Client{},
		conf.ArrivalsBaseUrl,
		conf.AppKey,
		conf.Lines,
		time.Duration(conf.RequestTimeoutSeconds)*time.Second)
	publisher := makeLegResultsPublisher(log, db, natsConn, conf.NatsSubject, makeTransitHolidayCalendar())

	wg := sync.WaitGroup{}
	loopShutdown := make(chan bool, 1)
	webServiceShutdown := make(chan bool, 1)

	wg.Add(2)
	go runPositionMonitorLoop(log, &wg, provider, tracker, publisher,
		time.Duration(conf.LoadEverySeconds)*time.Second, loopShutdown)
	go runWebService(log, &wg, tracker, resolver, db, conf.HttpPort, webServiceShutdown)

	<-shutdownSignal
	log.Printf("Exiting on shutdown signal, shutting down subroutines")
	loopShutdown <- true
	webServiceShutdown <- true
	wg.Wait()
	log.Printf("Subroutines shut down, exiting position monitor")
	return nil
}

//loadRouteResolver loads routes from routesDir, returns nil when routesDir is empty
func loadRouteResolver(routesDir string, lines []tfl.Line) (*tfl.RouteResolver, error) {
	if routesDir == "" {
		return nil, nil
	}
	routes, err := tfl.LoadRoutes(routesDir, lines)
	if err != nil {
		return nil, fmt.Errorf("loading routes: %w", err)
	}
	return tfl.NewRouteResolver(routes), nil
}

//runPositionMonitorLoop polls provider every loopDuration and reconciles the results into tracker.
//A failed poll keeps the tracker's previous state until the next successful one.
func runPositionMonitorLoop(log *log.Logger,
	wg *sync.WaitGroup,
	provider ArrivalProvider,
	tracker *Tracker,
	publisher resultsPublisher,
	loopDuration time.Duration,
	shutdownSignal chan bool) {
	defer wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-shutdownSignal:
			log.Printf("Exiting position monitor loop on shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	sleep := time.Duration(0) //sleep for zero seconds the first time
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(sleep):
		}

		//set default sleep for next loop in the event of an error
		sleep = loopDuration

		// mark the time we start working
		start := time.Now()

		err := pollOnce(ctx, log, provider, tracker, publisher)
		if err != nil {
			log.Printf("error polling arrivals, keeping %d tracked legs. error:%v\n", tracker.Size(), err)
			continue
		}

		// attempt to run the loop every loopDuration by subtracting the time it took to perform the work
		workTook := time.Since(start)
		log.Printf("work took %s\n", fmtDuration(workTook))

		// if the work took longer than loopDuration don't sleep at all on the next loop
		if workTook >= loopDuration {
			sleep = time.Duration(0)
		} else {
			sleep = loopDuration - workTook
		}
	}
}

//pollOnce retrieves one snapshot from provider, reconciles it and publishes the results
func pollOnce(ctx context.Context,
	log *log.Logger,
	provider ArrivalProvider,
	tracker *Tracker,
	publisher resultsPublisher) error {

	snapshot, err := provider.GetArrivals(ctx)
	if err != nil {
		return err
	}
	at := time.Now()
	snapshotId := uuid.NewString()
	reconciliation := tracker.Reconcile(snapshot)
	log.Printf("snapshot %s: %d observations, tracking %d legs, discovered %d, evicted %d, rejected %d\n",
		snapshotId, len(snapshot), len(reconciliation.Legs), len(reconciliation.Discovered),
		len(reconciliation.Evicted), len(reconciliation.Rejected))
	publisher.publish(snapshotId, at, reconciliation)
	return nil
}

//fmtDuration returns a string presentation of time.Duration for logging
func fmtDuration(d time.Duration) string {
	d = d.Round(time.Millisecond)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	d -= s * time.Second
	mill := d / time.Millisecond
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, mill)
}
