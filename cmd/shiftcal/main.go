package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shiftcal/internal/config"
	"shiftcal/internal/ics"
	appLog "shiftcal/internal/log"
	"shiftcal/internal/shift"
	"shiftcal/internal/startdate"
	"shiftcal/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	startDate  string
	timezone   string
	listen     string
	serve      bool
	initConfig bool
}

func main() {
	flags := parseFlags()

	if flags.initConfig {
		if err := config.Save(flags.configPath, config.DefaultConfig()); err != nil {
			appLog.Error("failed to write starter config", err, "config_path", flags.configPath)
			os.Exit(1)
		}
		appLog.Info("starter config written", "config_path", flags.configPath)
		return
	}

	// A missing config file is not an error: the compiled-in default
	// definitions are used instead.
	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	var table shift.Table
	if conf != nil {
		table, err = conf.Table()
		if err != nil {
			appLog.Error("bad shift definitions in config", err, "config_path", flags.configPath)
			os.Exit(1)
		}
	}

	// CLI -timezone overrides the config timezone. Neither set means naive
	// instants with no zone annotation.
	tzName := flags.timezone
	if tzName == "" && conf != nil {
		tzName = conf.Timezone
	}
	var loc *time.Location
	if tzName != "" {
		loc, err = time.LoadLocation(tzName)
		if err != nil {
			appLog.Error("unknown timezone", err, "timezone", tzName)
			os.Exit(1)
		}
	}

	if flags.serve {
		runServer(flags, conf, table, loc)
		return
	}

	shifts := flag.Arg(0)
	if shifts == "" {
		appLog.Error("missing shift plan argument", fmt.Errorf("usage: shiftcal [flags] SHIFTS (e.g. EENDNOL)"))
		os.Exit(2)
	}

	start, err := startdate.Parse(flags.startDate, time.Now())
	if err != nil {
		appLog.Error("unrecognized startdate format", err, "startdate", flags.startDate)
		os.Exit(1)
	}

	cal := ics.Generate(start, shifts, table, loc)
	fmt.Print(ics.Serialize(cal))
}

func runServer(flags flagConfig, conf *config.Config, table shift.Table, loc *time.Location) {
	if conf == nil {
		conf = config.DefaultConfig()
	}
	// CLI -listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"reload", conf.ReloadCron,
		"shift_count", len(table),
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	if err := web.Run(ctx, conf, flags.configPath, table, loc, flags.timezone); err != nil {
		appLog.Error("HTTP server failed", err)
		os.Exit(1)
	}
	appLog.Info("shiftcal exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "shiftcal.yaml", "Path to config file (missing file means built-in shift definitions)")
	flag.StringVar(&cfg.startDate, "startdate", "", "Start date for the shift plan: today, a signed day offset (e.g. -1), YYYYMMDD or YYYY-MM-DD")
	flag.StringVar(&cfg.timezone, "timezone", "", "IANA timezone to attach to events (empty means no zone annotation)")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.serve, "serve", false, "Start the web front end instead of printing a calendar")
	flag.BoolVar(&cfg.initConfig, "init-config", false, "Write a starter config with the default shifts to -config and exit")

	flag.Parse()

	return cfg
}
