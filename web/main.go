package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/df07/go-sphere-tracer/pkg/config"
	"github.com/df07/go-sphere-tracer/pkg/logging"
	"github.com/df07/go-sphere-tracer/web/server"
)

func main() {
	configPath := flag.String("config", "", "Path to a JSON config file")
	port := flag.Int("port", 0, "Port to serve on (overrides -addr)")
	addr := flag.String("addr", "", "Listen address (default "+config.DefaultAddr+")")
	scenesDir := flag.String("scenes", "", "Directory of JSON scene files")
	staticDir := flag.String("static", "", "Optional directory of static files served at /")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fail(err)
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		fail(err)
	}

	flags := config.Flags{Addr: *addr, LogLevel: *logLevel}
	if *port > 0 {
		flags.Addr = fmt.Sprintf(":%d", *port)
	}
	cfg.Resolve(flags)
	if *scenesDir != "" {
		cfg.ScenesDir = *scenesDir
	}
	if err := cfg.Validate(); err != nil {
		fail(err)
	}

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Path: cfg.LogPath})
	if err != nil {
		fail(err)
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	webServer := server.NewServer(server.Options{
		ScenesDir: cfg.ScenesDir,
		StaticDir: *staticDir,
		Workers:   cfg.Workers,
		Seed:      cfg.Seed,
		Logger:    logger,
	})

	logger.Info("sphere tracer web server starting",
		logging.String("addr", cfg.Addr),
		logging.String("scenes_dir", cfg.ScenesDir))

	if err := webServer.ListenAndServe(ctx, cfg.Addr); err != nil {
		logger.Error("web server stopped", logging.Error(err))
		logger.Close()
		os.Exit(1)
	}
	logger.Info("web server stopped")
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
