package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/sensor.watch/internal/api"
	"github.com/banshee-data/sensor.watch/internal/config"
	"github.com/banshee-data/sensor.watch/internal/db"
	"github.com/banshee-data/sensor.watch/internal/serialmux"
	"github.com/banshee-data/sensor.watch/internal/telemetry"
	"github.com/banshee-data/sensor.watch/internal/telemetry/capture"
	"github.com/banshee-data/sensor.watch/internal/telemetry/monitor"
	"github.com/banshee-data/sensor.watch/internal/version"
)

var (
	devMode    = flag.Bool("dev", false, "Run against a mock serial port emitting fixture samples")
	noDevice   = flag.Bool("no-device", false, "Run without sensor hardware (dashboards and recordings only)")
	listen     = flag.String("listen", ":8080", "Listen address")
	port       = flag.String("port", "", "Serial device path (overrides the config file)")
	configPath = flag.String("config", "", "Pipeline config JSON file")
	dbFile     = flag.String("db", "sensorwatch.db", "Recordings database path")
)

// mockMotionLine is one well-formed sample for dev mode: a board at rest,
// slightly rolled.
const mockMotionLine = "DATA:0.12,-0.34,0.98,1.50,-2.25,0.00,12.50,-3.75\n"

func main() {
	flag.Parse()

	if flag.Arg(0) == "migrate" {
		db.RunMigrateCommand(flag.Args()[1:], *dbFile)
		return
	}

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	cfg := config.EmptyPipelineConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadPipelineConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	device := *port
	if device == "" {
		device = cfg.GetSerialDevice()
	}

	var serial serialmux.SerialMuxInterface
	switch {
	case *noDevice:
		serial = serialmux.NewDisabledSerialMux()
	case *devMode:
		serial = serialmux.NewMockSerialMux([]byte(mockMotionLine), 100*time.Millisecond)
	default:
		var err error
		serial, err = serialmux.NewRealSerialMux(device, serialmux.PortOptions{BaudRate: cfg.GetBaudRate()})
		if err != nil {
			log.Fatalf("Failed to open serial device %s: %v", device, config.NewConfigurationError("serial_device", err))
		}
	}
	defer serial.Close()

	if err := serial.Initialize(); err != nil {
		log.Fatalf("Failed to initialize device: %v", err)
	}

	database, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	schema := telemetry.MotionSchema()
	store := telemetry.NewSampleStore(schema, cfg.GetCapacity())
	history := telemetry.NewHistoryLog()

	transport := capture.NewSerialTransport(serial, nil)
	defer transport.Close()

	loop := capture.NewLoop(capture.Config[telemetry.Record]{
		Transport: transport,
		Parse:     capture.LineParser(schema),
		Sink: func(rec telemetry.Record) {
			store.Push(rec)
			history.Append(rec)
		},
		ReadTimeout: cfg.GetReadTimeout(),
	})

	renderInterval := monitor.MotionInterval
	if cfg.RenderInterval != nil {
		renderInterval = cfg.GetRenderInterval()
	}
	sched := monitor.NewScheduler(monitor.NewMotionRenderer(store, nil), loop.Notify(), renderInterval, nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loop.Stats().StartLogging(ctx, schema.Name, cfg.GetStatsInterval())
	loop.Start(ctx)
	sched.Start(ctx)

	server := api.NewServer(api.Config{
		Pipeline: schema.Name,
		Loop:     loop,
		Samples:  store,
		History:  history,
		DB:       database,
		Calibrate: func(ctx context.Context) error {
			return capture.Calibrate(ctx, serial, cfg.GetCalibratePhrase(), cfg.GetCalibrateTimeout(), nil)
		},
		Params:      cfg,
		BaseContext: ctx,
	})

	mux := server.ServeMux()
	monitor.NewMotionCharts(sched).AttachRoutes(mux)
	serial.AttachAdminRoutes(mux)
	database.AttachAdminRoutes(mux)

	var wg sync.WaitGroup

	// run the monitor routine to manage IO on the serial port
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := serial.Monitor(ctx); err != nil && err != context.Canceled {
			log.Printf("Serial monitor failed: %v", err)
		}
	}()

	// route out-of-band device lines (boot banners, acks) to the log and
	// the debug console view
	consoleID, consoleLines := serial.Subscribe()
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer serial.Unsubscribe(consoleID)
		for {
			select {
			case line, ok := <-consoleLines:
				if !ok {
					return
				}
				serialmux.HandleDeviceLine(schema.Name, line)
			case <-ctx.Done():
				return
			}
		}
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		httpServer := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			log.Printf("imu daemon %s listening on %s", version.String(), *listen)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("Shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := httpServer.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}
	}()

	wg.Wait()
	loop.Stop()
	sched.Stop()
	log.Printf("Graceful shutdown complete")
}
