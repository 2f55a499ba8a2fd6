package main

import (
	"context"
	"fmt"
	logger "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OpenTransitTools/whereisit/app/position-monitor/monitor"
	"github.com/OpenTransitTools/whereisit/business/data/tfl"
	"github.com/OpenTransitTools/whereisit/foundation/database"
	"github.com/ardanlabs/conf"
	"github.com/jmoiron/sqlx"
	"github.com/nats-io/nats.go"
)

var build = "develop"

func main() {
	log := logger.New(os.Stdout, "POSITION_MONITOR : ", logger.LstdFlags|logger.Lmicroseconds|logger.Lshortfile)
	if err := run(log); err != nil {
		log.Printf("main: error: %v", err)
		os.Exit(1)
	}
}

func run(log *logger.Logger) error {
	var cfg struct {
		conf.Version
		Args conf.Args
		DB   struct {
			User         string `conf:"default:postgres"`
			Password     string `conf:"default:postgres,noprint"`
			Host         string `conf:"default:0.0.0.0"`
			Name         string `conf:"default:postgres"`
			DisableTLS   bool   `conf:"default:true"`
			MaxOpenConns int    `conf:"default:4"`
			Record       bool   `conf:"default:false"`
		}
		TFL struct {
			BaseUrl               string   `conf:"default:https://api.tfl.gov.uk"`
			AppKey                string   `conf:"noprint"`
			Lines                 []string `conf:"default:tram;dlr;bakerloo;central;district;hammersmith-city;jubilee;metropolitan;northern;piccadilly;victoria;waterloo-city"`
			LoadEverySeconds      int      `conf:"default:15"`
			RequestTimeoutSeconds int      `conf:"default:10"`
		}
		NATS struct {
			Url     string `conf:"default:nats://localhost:4222"`
			Subject string `conf:"default:leg-progress"`
			Enabled bool   `conf:"default:false"`
		}
		Web struct {
			Port      int    `conf:"default:8080"`
			RoutesDir string `conf:"default:routes"`
		}
	}
	cfg.Version.SVN = build
	cfg.Version.Desc = "Track the relative position of vehicles between stations from TfL arrival predictions"
	const prefix = "POSITION_MONITOR"
	if err := conf.Parse(os.Args[1:], prefix, &cfg); err != nil {
		switch err {
		case conf.ErrHelpWanted:
			usage, err := conf.Usage(prefix, &cfg)
			if err != nil {
				return fmt.Errorf("generating config usage: %w", err)
			}
			fmt.Println(usage)
			return nil
		case conf.ErrVersionWanted:
			version, err := conf.VersionString(prefix, &cfg)
			if err != nil {
				return fmt.Errorf("generating config version: %w", err)
			}
			fmt.Println(version)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	log.Printf("main : Started : Application initializing : version %s", build)
	defer log.Println("main: Completed")

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Printf("main: Config :\n%v\n", out)

	lines, err := tfl.ParseLines(cfg.TFL.Lines)
	if err != nil {
		return fmt.Errorf("parsing lines: %w", err)
	}

	// =========================================================================
	// Start Database

	var db *sqlx.DB
	if cfg.DB.Record {
		log.Println("main: Initializing database support")
		db, err = database.Open(database.Config{
			User:         cfg.DB.User,
			Password:     cfg.DB.Password,
			Host:         cfg.DB.Host,
			Name:         cfg.DB.Name,
			DisableTLS:   cfg.DB.DisableTLS,
			MaxOpenConns: cfg.DB.MaxOpenConns,
		})
		if err != nil {
			return fmt.Errorf("connecting to db: %w", err)
		}
		defer func() {
			log.Printf("main: Database Stopping : %s", cfg.DB.Host)
			err = db.Close()
			if err != nil {
				log.Printf("main: error closing database: %v", err)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = database.StatusCheck(ctx, db)
		cancel()
		if err != nil {
			return fmt.Errorf("checking db status: %w", err)
		}
	}

	// =========================================================================
	// Start NATS

	var natsConnection *nats.Conn
	if cfg.NATS.Enabled {
		log.Printf("main: Connecting to NATS at %s", cfg.NATS.Url)
		natsConnection, err = nats.Connect(cfg.NATS.Url)
		if err != nil {
			return fmt.Errorf("connecting to nats: %w", err)
		}
		defer natsConnection.Close()
	}

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	return monitor.StartServices(log, db, natsConnection, monitor.Conf{
		ArrivalsBaseUrl:       cfg.TFL.BaseUrl,
		AppKey:                cfg.TFL.AppKey,
		Lines:                 lines,
		LoadEverySeconds:      cfg.TFL.LoadEverySeconds,
		RequestTimeoutSeconds: cfg.TFL.RequestTimeoutSeconds,
		NatsSubject:           cfg.NATS.Subject,
		HttpPort:              cfg.Web.Port,
		RoutesDir:             cfg.Web.RoutesDir,
	}, shutdown)
}
