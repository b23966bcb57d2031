package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"tailscale.com/tsweb"

	"github.com/banshee-data/sensor.watch/internal/analysis"
	"github.com/banshee-data/sensor.watch/internal/api"
	"github.com/banshee-data/sensor.watch/internal/config"
	"github.com/banshee-data/sensor.watch/internal/telemetry"
	"github.com/banshee-data/sensor.watch/internal/telemetry/capture"
	"github.com/banshee-data/sensor.watch/internal/telemetry/monitor"
	"github.com/banshee-data/sensor.watch/internal/version"
)

var (
	devMode    = flag.Bool("dev", false, "Replay synthetic frames instead of capturing")
	listen     = flag.String("listen", ":8082", "Listen address")
	iface      = flag.String("iface", "eth0", "Interface to capture on")
	filter     = flag.String("filter", "", "BPF capture filter")
	pcapFile   = flag.String("pcap", "", "Replay a capture file instead of a live interface")
	configPath = flag.String("config", "", "Pipeline config JSON file")
)

// mockFrames builds the dev-mode replay set: a TLS handshake packet, a DNS
// query, and a bare ICMP ping, so every protocol class shows up on the
// dashboard.
func mockFrames() ([][]byte, error) {
	newEth := func() *layers.Ethernet {
		return &layers.Ethernet{
			SrcMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01},
			DstMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02},
			EthernetType: layers.EthernetTypeIPv4,
		}
	}
	newIP := func(proto layers.IPProtocol) *layers.IPv4 {
		return &layers.IPv4{
			Version:  4,
			IHL:      5,
			TTL:      64,
			Protocol: proto,
			SrcIP:    net.ParseIP("192.168.1.10").To4(),
			DstIP:    net.ParseIP("10.0.0.5").To4(),
		}
	}

	var frames [][]byte
	serialize := func(ls ...gopacket.SerializableLayer) error {
		buf := gopacket.NewSerializeBuffer()
		opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
		if err := gopacket.SerializeLayers(buf, opts, ls...); err != nil {
			return err
		}
		frames = append(frames, append([]byte(nil), buf.Bytes()...))
		return nil
	}

	tcpIP := newIP(layers.IPProtocolTCP)
	tcp := &layers.TCP{SrcPort: 49320, DstPort: 443, SYN: true}
	if err := tcp.SetNetworkLayerForChecksum(tcpIP); err != nil {
		return nil, err
	}
	if err := serialize(newEth(), tcpIP, tcp); err != nil {
		return nil, err
	}

	udpIP := newIP(layers.IPProtocolUDP)
	udp := &layers.UDP{SrcPort: 50112, DstPort: 53}
	if err := udp.SetNetworkLayerForChecksum(udpIP); err != nil {
		return nil, err
	}
	if err := serialize(newEth(), udpIP, udp, gopacket.Payload("dns-query")); err != nil {
		return nil, err
	}

	icmpIP := newIP(layers.IPProtocolICMPv4)
	icmp := &layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0)}
	if err := serialize(newEth(), icmpIP, icmp); err != nil {
		return nil, err
	}

	return frames, nil
}

// loopingReader replays the mock frames forever at a fixed pace, so a dev
// session sees a steady stream instead of three packets and an EOF.
type loopingReader struct {
	*capture.MockPacketReader
	interval time.Duration
}

func (r *loopingReader) NextPacket() (*capture.RawPacket, error) {
	time.Sleep(r.interval)
	pkt, err := r.MockPacketReader.NextPacket()
	if errors.Is(err, io.EOF) {
		r.Reset()
		pkt, err = r.MockPacketReader.NextPacket()
	}
	return pkt, err
}

func main() {
	flag.Parse()

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

	var reader capture.PacketReader
	var link gopacket.Decoder
	var source string
	switch {
	case *devMode:
		frames, err := mockFrames()
		if err != nil {
			log.Fatalf("Failed to build mock frames: %v", err)
		}
		mock := &capture.MockPacketReader{}
		now := time.Now()
		for _, f := range frames {
			mock.AddPacket(f, now)
		}
		reader = &loopingReader{MockPacketReader: mock, interval: 200 * time.Millisecond}
		link = layers.LinkTypeEthernet
		source = "synthetic frames"
		log.Printf("Dev mode: replaying %d synthetic frames", len(frames))
	case *pcapFile != "":
		offline := &capture.OfflinePacketReader{}
		if err := offline.Open(*pcapFile); err != nil {
			log.Fatalf("Failed to open capture file %s: %v", *pcapFile, err)
		}
		reader = offline
		link = layers.LinkType(offline.LinkType())
		source = *pcapFile
	default:
		live := capture.NewLivePacketReader()
		if err := live.Open(*iface); err != nil {
			log.Fatalf("Failed to open interface %s: %v", *iface, err)
		}
		if *filter != "" {
			if err := live.SetBPFFilter(*filter); err != nil {
				log.Fatalf("Failed to apply filter %q: %v", *filter, err)
			}
		}
		reader = live
		link = layers.LinkType(live.LinkType())
		source = *iface
	}

	transport := capture.NewPacketTransport(reader)
	defer transport.Close()

	store := telemetry.NewPacketStore(cfg.GetCapacity())

	loop := capture.NewLoop(capture.Config[telemetry.PacketRecord]{
		Transport:   transport,
		Parse:       capture.PacketParser(link),
		Sink:        store.Push,
		ReadTimeout: cfg.GetReadTimeout(),
	})

	// Protocol counts change slowly; once a second is plenty unless the
	// config says otherwise.
	renderInterval := monitor.PacketInterval
	if cfg.RenderInterval != nil {
		renderInterval = cfg.GetRenderInterval()
	}
	sched := monitor.NewScheduler(monitor.NewPacketRenderer(store, nil), loop.Notify(), renderInterval, nil)

	var dispatcher *analysis.Dispatcher
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		dispatcher = analysis.NewDispatcher(analysis.NewAnalyzer(analysis.Config{
			APIKey:    key,
			Endpoint:  cfg.GetAnalysisEndpoint(),
			Model:     cfg.GetAnalysisModel(),
			MaxTokens: cfg.GetAnalysisMaxTokens(),
		}))
	} else {
		log.Printf("ANTHROPIC_API_KEY not set; packet analysis endpoints disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loop.Stats().StartLogging(ctx, "sniffer", cfg.GetStatsInterval())
	loop.Start(ctx)
	sched.Start(ctx)

	server := api.NewServer(api.Config{
		Pipeline:    "sniffer",
		Loop:        loop,
		Packets:     store,
		Dispatcher:  dispatcher,
		Params:      cfg,
		BaseContext: ctx,
	})

	mux := server.ServeMux()
	monitor.NewPacketCharts(sched).AttachRoutes(mux)

	debug := tsweb.Debugger(mux)
	debug.KV("Pipeline", "sniffer")
	debug.KV("Capture source", source)

	var wg sync.WaitGroup

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		httpServer := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			log.Printf("sniffer daemon %s listening on %s", version.String(), *listen)
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
