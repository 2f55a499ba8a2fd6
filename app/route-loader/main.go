package main

import (
	"fmt"
	logger "log"
	"net/http"
	"os"

	"github.com/OpenTransitTools/whereisit/app/route-loader/routemanager"
	"github.com/OpenTransitTools/whereisit/business/data/tfl"
	"github.com/ardanlabs/conf"
)

var build = "develop"

func main() {
	log := logger.New(os.Stdout, "ROUTE_LOADER : ", logger.LstdFlags|logger.Lmicroseconds|logger.Lshortfile)
	if err := run(log); err != nil {
		log.Printf("main: error: %v", err)
		os.Exit(1)
	}
}

func run(log *logger.Logger) error {
	var cfg struct {
		conf.Version
		Args conf.Args
		TFL  struct {
			BaseUrl string   `conf:"default:https://api.tfl.gov.uk"`
			Lines   []string `conf:"default:tram;dlr;bakerloo;central;district;hammersmith-city;jubilee;metropolitan;northern;piccadilly;victoria;waterloo-city"`
		}
		RoutesDir string `conf:"default:routes"`
	}
	cfg.Version.SVN = build
	cfg.Version.Desc = "Save TfL route geometry for locating vehicles between stations"
	const prefix = "ROUTE_LOADER"
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

	log.Printf("main : Started : Application initializing : version %s", build)
	defer log.Println("main: Completed")

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Printf("main: Config :\n%v\n", out)

	switch cfg.Args.Num(0) {
	case "scrape":
		lines, err := tfl.ParseLines(cfg.TFL.Lines)
		if err != nil {
			return fmt.Errorf("parsing lines: %w", err)
		}
		return routemanager.ScrapeRoutes(log, &http.Client{}, cfg.TFL.BaseUrl, lines,
			routemanager.DirectoryWriter{Dir: cfg.RoutesDir})
	default:
		fmt.Println("scrape: download route sequences of each line and save them to the routes directory")
		usage, err := conf.Usage(prefix, &cfg)
		if err != nil {
			return fmt.Errorf("generating config usage: %w", err)
		}
		fmt.Println(usage)
	}
	return nil
}
