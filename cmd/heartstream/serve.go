package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/heartstream/internal/admin"
	"github.com/banshee-data/heartstream/internal/config"
	"github.com/banshee-data/heartstream/internal/source"
	"github.com/banshee-data/heartstream/internal/stream"
	"github.com/banshee-data/heartstream/internal/timeutil"
	"github.com/banshee-data/heartstream/internal/transport"
	"github.com/banshee-data/heartstream/internal/transport/ble"
	"github.com/banshee-data/heartstream/internal/version"
)

// loopbackRetain bounds the frames a loopback transport keeps in serve mode.
const loopbackRetain = 256

// serveFlags override values from the config file when set.
type serveFlags struct {
	variant     string
	policy      string
	adminListen string

	sourceKind string
	bpm        float64
	adcPath    string

	transportKind string
	port          string
	baud          int
	bleName       string
}

func newServeCmd() *cobra.Command {
	var f serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Stream samples to the host",
		Long: "Open the host link and run the streaming loop until interrupted. " +
			"Flags override the matching config file values.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := f.apply(cmd, cfg); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.variant, "variant", "dual", "command vocabulary: dual or single")
	flags.StringVar(&f.policy, "policy", "fixed_step", "scheduler policy: fixed_step or reset_to_now")
	flags.StringVar(&f.adminListen, "admin-listen", "", "serve /debug/ routes on this address (e.g. localhost:8080)")
	flags.StringVar(&f.sourceKind, "source", "synthetic", "sample source: synthetic, counter or adc")
	flags.Float64Var(&f.bpm, "bpm", 60, "synthetic heart rate in beats per minute")
	flags.StringVar(&f.adcPath, "adc-path", source.DefaultIIOPath, "IIO sysfs channel for the adc source")
	flags.StringVar(&f.transportKind, "transport", config.TransportSerial, "host link: serial, ble or loopback")
	flags.StringVarP(&f.port, "port", "p", "/dev/ttyUSB0", "serial port to use")
	flags.IntVar(&f.baud, "baud", transport.DefaultBaudRate, "serial baud rate")
	flags.StringVar(&f.bleName, "ble-name", ble.DefaultLocalName, "advertised Bluetooth LE name")
	return cmd
}

// apply copies explicitly set flags into cfg and revalidates it.
func (f *serveFlags) apply(cmd *cobra.Command, cfg *config.DeviceConfig) error {
	changed := cmd.Flags().Changed

	if changed("variant") {
		cfg.Variant = &f.variant
	}
	if changed("policy") {
		cfg.SchedulerPolicy = &f.policy
	}
	if changed("admin-listen") {
		cfg.AdminListen = &f.adminListen
	}

	if changed("source") || changed("bpm") || changed("adc-path") {
		if cfg.Source == nil {
			cfg.Source = &config.SourceConfig{}
		}
		if changed("source") {
			cfg.Source.Kind = f.sourceKind
		}
		if changed("bpm") {
			cfg.Source.BPM = f.bpm
		}
		if changed("adc-path") {
			cfg.Source.ADCPath = f.adcPath
		}
	}

	if changed("transport") || changed("port") || changed("baud") || changed("ble-name") {
		if cfg.Transport == nil {
			cfg.Transport = &config.TransportConfig{}
		}
		if changed("transport") {
			cfg.Transport.Kind = f.transportKind
		}
		if changed("port") {
			cfg.Transport.Port = f.port
		}
		if changed("baud") {
			cfg.Transport.Serial.BaudRate = f.baud
		}
		if changed("ble-name") {
			cfg.Transport.BLEName = f.bleName
		}
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}

// buildSource constructs the configured sample source. The returned close
// func is nil when there is nothing to release.
func buildSource(sc config.SourceConfig, interval time.Duration) (source.Source, func() error, error) {
	kind, err := source.ParseKind(sc.Kind)
	if err != nil {
		return nil, nil, err
	}

	switch kind {
	case source.KindADC:
		r, err := source.OpenIIO(sc.ADCPath)
		if err != nil {
			return nil, nil, err
		}
		adc := source.NewADCSource(r)
		if err := adc.Init(); err != nil {
			r.Close()
			return nil, nil, err
		}
		log.Printf("adc source reading %s", sc.ADCPath)
		return adc, r.Close, nil

	case source.KindCounter:
		log.Printf("counter source")
		return &source.CounterSource{}, nil, nil

	default:
		rate := int(time.Second / interval)
		table, err := source.GenerateHeartbeat(source.DefaultShape(), source.DefaultADCModel(), sc.BPM, rate, sc.Beats)
		if err != nil {
			return nil, nil, fmt.Errorf("generate heartbeat: %w", err)
		}
		log.Printf("synthetic source: %d samples (%d beats at %.0f bpm, %d Hz)", len(table), sc.Beats, sc.BPM, rate)
		return source.NewTableSource(table), nil, nil
	}
}

// openTransport opens the configured host link. Serial links also return
// the monitor routine that reads host commands.
func openTransport(tc config.TransportConfig) (transport.Transport, func(context.Context) error, error) {
	switch tc.Kind {
	case config.TransportBLE:
		t, err := ble.Open(ble.Options{LocalName: tc.BLEName})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to start ble peripheral: %w", err)
		}
		return t, nil, nil

	case config.TransportLoopback:
		// no host on the other end: treat it as connected so sessions can
		// be driven from /debug/send-command
		lb := transport.NewLoopback()
		lb.SetRetain(loopbackRetain)
		lb.Connect()
		return lb, nil, nil

	default:
		st, err := transport.OpenSerial(tc.Port, tc.Serial)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open serial transport: %w", err)
		}
		return st, st.Monitor, nil
	}
}

func serve(parent context.Context, cfg *config.DeviceConfig) error {
	streamCfg := cfg.StreamConfig()
	tc := cfg.GetTransport()
	log.Printf("heartstream %s: %s variant, %s transport, %s sampling, %s scheduler",
		version.String(), streamCfg.Variant, tc.Kind, streamCfg.SampleInterval, streamCfg.Policy)

	src, closeSource, err := buildSource(cfg.GetSource(), streamCfg.SampleInterval)
	if err != nil {
		return err
	}
	if closeSource != nil {
		defer closeSource()
	}

	link, monitor, err := openTransport(tc)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if monitor != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("failed to monitor serial port: %v", err)
				stop()
			}
			log.Print("monitor routine terminated")
		}()
	}

	tap := admin.NewTap(link)
	events := link.Events()
	listen := cfg.GetAdminListen()
	var inject *admin.Injector
	if listen != "" {
		inject = admin.NewInjector(ctx, events)
		events = inject.Events()
	}

	ctrl := stream.NewController(streamCfg, src, tap)
	clock := timeutil.RealClock{}
	runner := stream.NewRunner(ctrl, events, timeutil.NewUptime(clock), clock, cfg.GetIdlePoll())

	wg.Add(1)
	go func() {
		defer wg.Done()
		runner.Run(ctx)
		log.Print("stream loop terminated")
	}()

	if listen != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			serveAdmin(ctx, listen, admin.NewServer(ctrl, tap, inject))
		}()
	}

	<-ctx.Done()
	tap.Close()
	if err := link.Close(); err != nil {
		log.Printf("failed to close transport: %v", err)
	}

	wg.Wait()
	st := ctrl.Snapshot().Stats
	log.Printf("Graceful shutdown complete: %d packets sent, %d dropped, %d sessions",
		st.PacketsSent, st.PacketsDropped, st.Sessions)
	return nil
}

func serveAdmin(ctx context.Context, listen string, srv *admin.Server) {
	mux := http.NewServeMux()
	srv.AttachAdminRoutes(mux)

	server := &http.Server{
		Addr:    listen,
		Handler: mux,
	}

	// Start server in a goroutine so it doesn't block
	go func() {
		log.Printf("debug routes on http://%s/debug/", listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start admin server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down admin server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("admin server shutdown error: %v", err)
		// Force close the server if graceful shutdown fails
		if err := server.Close(); err != nil {
			log.Printf("admin server force close error: %v", err)
		}
	}
}
