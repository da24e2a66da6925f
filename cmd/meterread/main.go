// Command meterread runs one read cycle against a DLMS meter and prints
// the reading as JSON on stdout.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/wintek-iot/meterlink/base"
	"github.com/wintek-iot/meterlink/config"
	"github.com/wintek-iot/meterlink/cosem"
	"github.com/wintek-iot/meterlink/hdlc"
	"github.com/wintek-iot/meterlink/reader"
	"github.com/wintek-iot/meterlink/serialport"
	"github.com/wintek-iot/meterlink/tcp"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML configuration")
	device := flag.String("device", "", "Serial device, overrides config")
	tcpAddr := flag.String("tcp", "", "host:port of a serial device server instead of a local port")
	verbose := flag.Bool("verbose", false, "Log frame-level traffic")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
	}
	if *device != "" {
		cfg.Device = *device
	}

	logger := newLogger(*verbose)
	defer func() { _ = logger.Sync() }()
	sugar := logger.Sugar()

	var stream base.Stream
	if *tcpAddr != "" {
		host, portStr, err := net.SplitHostPort(*tcpAddr)
		if err != nil {
			sugar.Fatalf("invalid -tcp address: %v", err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			sugar.Fatalf("invalid -tcp port: %v", err)
		}
		stream = tcp.New(host, port, cfg.FrameTimeout())
	} else {
		stream = serialport.New(&serialport.Settings{
			Device: cfg.Device,
			Baud:   cfg.Baud,
		})
	}

	link := hdlc.New(stream, &hdlc.Settings{
		Client:       cfg.ClientSAP,
		Server:       cfg.ServerSAP,
		FrameTimeout: cfg.FrameTimeout(),
		DiscTimeout:  cfg.DiscTimeout(),
		MaxRetries:   cfg.MaxRetries,
	})

	settings, err := cosem.NewSettings(cfg.Password)
	if err != nil {
		sugar.Fatalf("settings: %v", err)
	}
	settings.Pacing = cfg.Pacing()
	settings.Budget = cfg.SessionBudget()

	session := cosem.New(link, settings)
	rd := reader.New(session, base.SystemClock{}, reader.Options{
		Zones:        cfg.Zones(),
		TODMaxDemand: cfg.TODMaxDemand,
	})
	rd.SetLogger(sugar)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	reading, err := rd.ReadCycle(ctx)
	if err != nil {
		sugar.Fatalf("read cycle: %v", err)
	}
	sugar.Infof("cycle finished in %v with %d register errors", time.Since(start).Round(time.Millisecond), reading.ErrorCount)

	out, err := reading.JSON()
	if err != nil {
		sugar.Fatalf("encoding reading: %v", err)
	}
	fmt.Println(string(out))
}

func newLogger(verbose bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}
