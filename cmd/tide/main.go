package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"os"
	"os/signal"

	"deedles.dev/tide/comp"
	"deedles.dev/tide/render/software"
	"deedles.dev/tide/server"
	"github.com/charmbracelet/log"
	"github.com/thejerf/suture/v4"
)

func run(ctx context.Context) error {
	configPath := flag.String("config", "", "path to the configuration file")
	width := flag.Int("width", 1920, "output width in logical pixels")
	height := flag.Int("height", 1080, "output height in logical pixels")
	flag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{
		Prefix:          "tide",
		ReportTimestamp: true,
	})
	if os.Getenv("TIDE_DEBUG") != "" {
		logger.SetLevel(log.DebugLevel)
	}

	cfg := comp.DefaultConfig()
	if *configPath != "" {
		c, err := comp.LoadConfig(*configPath)
		if err != nil {
			return err
		}
		cfg = c
	}

	c := comp.New(cfg, logger)
	c.AddOutput(&comp.Output{
		Name: "headless-0",
		Size: image.Pt(*width, *height),
	})

	srv, err := server.ListenAndServe(c, logger)
	if err != nil {
		return err
	}
	defer srv.Close()

	socket := srv.Addr().String()
	os.Setenv("TIDE_DISPLAY", socket)
	logger.Info("listening", "socket", socket)

	rend := software.New(c.Bridge(), image.Pt(*width, *height), logger, cfg.MaxFPS)

	sup := suture.NewSimple("tide")
	sup.Add(srv)
	sup.Add(rend)
	return sup.Serve(ctx)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	err := run(ctx)
	if err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "tide: %v\n", err)
		os.Exit(1)
	}
}
