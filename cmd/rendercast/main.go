// Command rendercast discovers media renderers on the local network and
// controls them from an interactive prompt.
//
// Usage:
//
//	rendercast [flags]
//
// Flags:
//
//	-config string        Configuration file path (default ./rendercast.yaml)
//	-log-level string     Log level: debug, info, warn, error
//	-store string         Device store: memory, file, sqlite
//	-store-path string    Device store file
//	-metrics-addr string  Serve Prometheus metrics on this address
//	-protocol-log string  Append a protocol trace to this file
//	-mdns-service string  Also browse this DNS-SD service type
//	-fake                 Run against an in-process fake TV
//	-interactive          Enable interactive command mode (default true)
//
// Configuration values can also be set with RENDERCAST_* environment
// variables, e.g. RENDERCAST_STORE_DRIVER=sqlite.
//
// Examples:
//
//	# Discover and control TVs on the LAN, remembering paired devices
//	rendercast -store sqlite -store-path ~/.config/rendercast/devices.db
//
//	# Try the commands without a TV
//	rendercast -fake -log-level debug
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rendercast/rendercast-go/cmd/rendercast/interactive"
	"github.com/rendercast/rendercast-go/internal/fakedevice"
	"github.com/rendercast/rendercast-go/pkg/device"
	"github.com/rendercast/rendercast-go/pkg/discovery"
	protolog "github.com/rendercast/rendercast-go/pkg/log"
	"github.com/rendercast/rendercast-go/pkg/metrics"
	"github.com/rendercast/rendercast-go/pkg/service"
	"github.com/rendercast/rendercast-go/pkg/ssdp"
	"github.com/rendercast/rendercast-go/pkg/store"
	"github.com/rendercast/rendercast-go/pkg/webos"
	"github.com/rendercast/rendercast-go/pkg/wire"
)

// Flags override the corresponding config values when set.
type flags struct {
	ConfigFile  string
	LogLevel    string
	Store       string
	StorePath   string
	MetricsAddr string
	ProtocolLog string
	MDNSService string
	Fake        bool
	Interactive bool
}

var opts flags

const fakePIN = "1234"

func init() {
	flag.StringVar(&opts.ConfigFile, "config", "", "Configuration file path")
	flag.StringVar(&opts.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.StringVar(&opts.Store, "store", "", "Device store: memory, file, sqlite")
	flag.StringVar(&opts.StorePath, "store-path", "", "Device store file")
	flag.StringVar(&opts.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	flag.StringVar(&opts.ProtocolLog, "protocol-log", "", "Append a protocol trace to this file")
	flag.StringVar(&opts.MDNSService, "mdns-service", "", "Also browse this DNS-SD service type")
	flag.BoolVar(&opts.Fake, "fake", false, "Run against an in-process fake TV")
	flag.BoolVar(&opts.Interactive, "interactive", true, "Enable interactive command mode")
}

func main() {
	flag.Parse()

	cfg, err := loadConfig(opts.ConfigFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rendercast: %v\n", err)
		os.Exit(1)
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "rendercast: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "rendercast: %v\n", err)
		os.Exit(1)
	}
}

// applyFlags copies explicitly set flags over cfg.
func applyFlags(cfg *Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "log-level":
			cfg.Log.Level = opts.LogLevel
		case "store":
			cfg.Store.Driver = opts.Store
		case "store-path":
			cfg.Store.Path = opts.StorePath
		case "metrics-addr":
			cfg.MetricsAddr = opts.MetricsAddr
		case "protocol-log":
			cfg.ProtocolLog = opts.ProtocolLog
		case "mdns-service":
			cfg.Discovery.MDNSService = opts.MDNSService
		}
	})
}

func run(cfg *Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var out io.Writer = os.Stderr
	var ic *interactive.Controller
	if opts.Interactive {
		var err error
		if ic, err = interactive.New(); err != nil {
			return err
		}
		// Log through readline so output does not garble the prompt.
		out = ic.Stdout()
	}
	logger := newLogger(cfg.Log, out)
	slog.SetDefault(logger)

	reg := prometheus.NewRegistry()
	collectors := metrics.New(reg)
	if cfg.MetricsAddr != "" {
		stop, err := serveMetrics(cfg.MetricsAddr, reg, logger)
		if err != nil {
			return err
		}
		defer stop()
	}

	devStore, err := openStore(cfg.Store)
	if err != nil {
		return err
	}
	defer devStore.Close()

	var plog protolog.Logger
	if cfg.ProtocolLog != "" {
		fl, err := protolog.NewFileLogger(cfg.ProtocolLog)
		if err != nil {
			return fmt.Errorf("protocol log: %w", err)
		}
		defer fl.Close()
		plog = fl
		if cfg.Log.Level == "debug" {
			plog = protolog.NewMultiLogger(fl, protolog.NewSlogAdapter(logger))
		}
	}

	pairing, err := discovery.ParsePairingLevel(cfg.Discovery.Pairing)
	if err != nil {
		return err
	}

	mgr, err := discovery.NewManager(discovery.ManagerConfig{
		Store:   devStore,
		Logger:  logger,
		Metrics: collectors,
	})
	if err != nil {
		return err
	}
	defer mgr.Close()
	mgr.SetPairingLevel(pairing)

	wopts := webos.DefaultOptions()
	wopts.Secure = cfg.WebOS.Secure
	wopts.Port = cfg.WebOS.Port
	wopts.CommandTimeout = cfg.WebOS.CommandTimeout
	wopts.AutoReconnect = cfg.WebOS.AutoReconnect
	wopts.Logger = logger
	wopts.ProtocolLogger = plog
	wopts.Metrics = collectors
	if cfg.WebOS.Manifest != "" {
		manifest, err := wire.LoadManifest(cfg.WebOS.Manifest)
		if err != nil {
			return err
		}
		wopts.Manifest = &manifest
	}

	scfg := ssdp.DefaultConfig()
	if cfg.Discovery.RescanInterval > 0 {
		scfg.RescanInterval = cfg.Discovery.RescanInterval
	}
	if cfg.Discovery.Interface != "" {
		ifi, err := net.InterfaceByName(cfg.Discovery.Interface)
		if err != nil {
			return fmt.Errorf("discovery interface: %w", err)
		}
		scfg.Interface = ifi
	}
	scfg.Logger = logger
	scfg.Metrics = collectors
	target := webos.SearchTarget

	if opts.Fake {
		fake := fakedevice.New(fakedevice.Options{
			RequirePairing: true,
			PairingType:    wire.PairingTypePIN,
			PIN:            fakePIN,
			Apps:           []string{"youtube.leanback.v4", "netflix", "com.webos.app.browser"},
			Volume:         20,
			Logger:         logger,
		})
		ep, err := fake.Start("127.0.0.1:0", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("fake device: %w", err)
		}
		defer fake.Close()
		logger.Info("fake TV pairs with PIN "+fakePIN, "name", fake.FriendlyName())

		// Search the fake's unicast responder instead of the LAN.
		scfg.GroupAddr = ep.SSDPAddr.String()
		scfg.ListenNotify = func() (net.PacketConn, error) { return net.ListenPacket("udp4", "127.0.0.1:0") }
		target = fake.ServiceType()
		wopts.Secure = false
		wopts.Port = ep.Port
		wopts.AutoReconnect = false
	}

	if cfg.Discovery.SSDP || opts.Fake {
		sp, err := ssdp.NewProvider(scfg)
		if err != nil {
			return err
		}
		mgr.RegisterDeviceService(sp, discovery.Filter{ServiceID: webos.ServiceID, Target: target}, webos.NewFactory(wopts))
	}

	if cfg.Discovery.MDNSService != "" && !opts.Fake {
		mcfg := discovery.DefaultMDNSConfig()
		mcfg.Interface = cfg.Discovery.Interface
		if cfg.Discovery.RescanInterval > 0 {
			mcfg.RescanInterval = cfg.Discovery.RescanInterval
		}
		mcfg.Logger = logger
		mcfg.Metrics = collectors
		mp, err := discovery.NewMDNSProvider(mcfg)
		if err != nil {
			return err
		}
		mgr.RegisterDeviceService(mp, discovery.Filter{ServiceID: webos.ServiceID, Target: cfg.Discovery.MDNSService}, webos.NewFactory(wopts))
	}

	h := mgr.AddListener(discovery.ListenerFuncs{
		Added: func(d *device.ConnectableDevice) {
			logger.Info("device found", "id", d.ID(), "name", d.FriendlyName(), "ip", d.IPAddress())
			d.AddListener(device.ListenerFuncs{
				PairingRequired: func(d *device.ConnectableDevice, _ service.DeviceService, p service.PairingType) {
					if p == service.PairingPinCode {
						logger.Info("enter the PIN shown on the TV with: pin <device> <code>", "device", d.FriendlyName())
						return
					}
					logger.Info("accept the prompt on the TV", "device", d.FriendlyName())
				},
			})
		},
		Removed: func(d *device.ConnectableDevice) {
			logger.Info("device lost", "id", d.ID(), "name", d.FriendlyName())
		},
		Failed: func(err error) {
			logger.Warn("discovery failed", "error", err)
		},
	})
	defer h.Release()

	if err := mgr.Start(ctx); err != nil {
		return err
	}
	logger.Info("discovery started", "pairing", pairing, "store", cfg.Store.Driver)

	if ic != nil {
		go ic.Run(ctx, cancel, mgr)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received signal", "signal", sig)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	return nil
}

func openStore(cfg StoreConfig) (store.DeviceStore, error) {
	var sealer *store.Sealer
	if cfg.Secret != "" {
		var err error
		if sealer, err = store.NewSealer([]byte(cfg.Secret), []byte("rendercast-store")); err != nil {
			return nil, err
		}
	}
	switch cfg.Driver {
	case "file":
		var fopts []store.FileOption
		if sealer != nil {
			fopts = append(fopts, store.WithFileSealer(sealer))
		}
		return store.OpenFileStore(cfg.Path, fopts...)
	case "sqlite":
		var sopts []store.SQLiteOption
		if sealer != nil {
			sopts = append(sopts, store.WithSQLiteSealer(sealer))
		}
		return store.OpenSQLiteStore(cfg.Path, sopts...)
	default:
		return store.NewMemoryStore(), nil
	}
}

// serveMetrics exposes reg on addr. The returned func shuts the server down.
func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", ln.Addr().String())
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
