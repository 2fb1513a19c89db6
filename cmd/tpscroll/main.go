//go:build linux

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

func printVersion() {
	fmt.Printf("tpscroll v%s\n", version)
	fmt.Println("Smooth-scrolling daemon for TrackPoint keyboards")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  tpscroll [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Daemon that grabs a TrackPoint keyboard's input devices and")
	fmt.Println("  reinterprets middle-button wheel ticks as a continuous smooth")
	fmt.Println("  scroll stream, emitted through a virtual uinput device.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Println("        Path to YAML config file (flags override file values)")
	fmt.Println()
	fmt.Println("  -device string")
	fmt.Println("        Input event device path; disables keyword auto-discovery")
	fmt.Println()
	fmt.Println("  -no-grab")
	fmt.Println("        Do not grab the input device exclusively")
	fmt.Println()
	fmt.Println("  -mode string")
	fmt.Println("        Scroll mode: smooth|classic (default \"smooth\")")
	fmt.Println()
	fmt.Println("  -tick-hz int")
	fmt.Printf("        Emission clock frequency in Hz (default %d)\n", defaultTickHz)
	fmt.Println()
	fmt.Println("  -ipc-socket string")
	fmt.Printf("        Unix domain socket path for IPC (default %q)\n", defaultSocketPath)
	fmt.Println()
	fmt.Println("  -state-ws-port int")
	fmt.Println("        Enable the state websocket on this port")
	fmt.Println()
	fmt.Println("  -log-level string")
	fmt.Println("        Log level: error, warn, info, debug (default \"info\")")
	fmt.Println()
	fmt.Println("  -version")
	fmt.Println("        Print version and exit")
	fmt.Println()
	fmt.Println("  -help")
	fmt.Println("        Print this help message")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Start with auto-discovery and defaults")
	fmt.Println("  tpscroll")
	fmt.Println()
	fmt.Println("  # Explicit device, classic pass-through mode")
	fmt.Println("  tpscroll -device /dev/input/event4 -mode classic")
	fmt.Println()
	fmt.Println("  # Config file with flag override")
	fmt.Println("  tpscroll -config ~/.config/tpscroll.yaml -log-level debug")
	fmt.Println()
	fmt.Println("NOTES:")
	fmt.Println("  - Requires access to /dev/input/event* and /dev/uinput")
	fmt.Println("    (run as root or add user to the 'input' group plus a uinput udev rule)")
	fmt.Println("  - Grabbing is on by default; without it the desktop sees the raw")
	fmt.Println("    wheel ticks as well and every scroll doubles")
	fmt.Println()
}

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" {
			printVersion()
			return
		}
		if arg == "-help" || arg == "--help" || arg == "-h" {
			printUsage()
			return
		}
	}

	var (
		configPath  = flag.String("config", "", "Path to YAML config file")
		device      = flag.String("device", "", "Input event device path (disables auto-discovery)")
		noGrab      = flag.Bool("no-grab", false, "Do not grab the input device exclusively")
		mode        = flag.String("mode", string(ScrollModeSmooth), "Scroll mode: smooth|classic")
		tickHz      = flag.Int("tick-hz", defaultTickHz, "Emission clock frequency in Hz")
		ipcSocket   = flag.String("ipc-socket", defaultSocketPath, "Unix domain socket path for IPC")
		stateWSPort = flag.Int("state-ws-port", 0, "Enable the state websocket on this port")
		logLevelStr = flag.String("log-level", "info", "Log level: error, warn, info, debug")
		showVersion = flag.Bool("version", false, "Print version and exit")
		showHelp    = flag.Bool("help", false, "Print help message")
	)

	flag.Usage = printUsage
	flag.Parse()

	if *showHelp {
		printUsage()
		return
	}
	if *showVersion {
		printVersion()
		return
	}

	cfg := DefaultConfig()
	if *configPath != "" {
		loaded, err := LoadConfigFile(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Only flags the user actually set override the file config.
	var overrides FlagOverrides
	grab := !*noGrab
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "device":
			overrides.Device = device
		case "no-grab":
			overrides.Grab = &grab
		case "mode":
			overrides.Mode = mode
		case "tick-hz":
			overrides.TickHz = tickHz
		case "ipc-socket":
			overrides.IPCSocketPath = ipcSocket
		case "state-ws-port":
			overrides.StateWSPort = stateWSPort
		case "log-level":
			overrides.LogLevel = logLevelStr
		}
	})
	overrides.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	logLevel, err := parseLogLevel(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	logger := setupLogger(logLevel)

	scrollMode, err := ParseScrollMode(cfg.Scroll.Mode)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	// Resolve device paths: explicit config wins, otherwise keyword scan.
	devicePaths := cfg.Input.Devices
	if len(devicePaths) == 0 {
		devicePaths, err = findDevices(cfg.Input.Keywords)
		if err != nil {
			logger.Error("device discovery failed", "error", err, "tip", "pass -device or set input.devices")
			os.Exit(1)
		}
		logger.Info("discovered input devices", "devices", devicePaths)
	}

	var files []*os.File
	for _, path := range devicePaths {
		f, err := openDevice(path, cfg.Input.Grab)
		if err != nil {
			logger.Error("failed to open input device", "device", path, "error", err, "tip", "run as root or add user to 'input' group")
			os.Exit(1)
		}
		files = append(files, f)
	}
	defer func() {
		for _, f := range files {
			if cfg.Input.Grab {
				releaseDevice(f)
			}
			f.Close()
		}
	}()

	sink, err := newUinputSink(logger)
	if err != nil {
		logger.Error("failed to create virtual wheel device", "error", err, "tip", "load the uinput module and check /dev/uinput permissions")
		os.Exit(1)
	}
	defer sink.Close()

	var broadcasts chan StateBroadcast
	if cfg.StateWS.Enabled {
		broadcasts = make(chan StateBroadcast, 256)
	}

	engineCfg := cfg.ToEngineConfig()
	factory := func(m ScrollMode) ScrollControl {
		return NewScrollControl(m, sink, engineCfg, broadcasts)
	}

	d := &daemon{
		ctrl:       factory(scrollMode),
		mode:       scrollMode,
		factory:    factory,
		btn:        newMiddleButton(time.Duration(cfg.Scroll.MaxClickMS) * time.Millisecond),
		broadcasts: broadcasts,
		log:        logger,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	input := make(chan inputEvent, 64)
	readErr := make(chan error, 1)
	go readInputEventsEpoll(files, input, readErr)

	ipcEvents := make(chan Event, 64)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return runIPCServer(ctx, cfg.IPC.SocketPath, ipcEvents, logger)
	})

	if cfg.StateWS.Enabled {
		server := NewServer(logger, ServerConfig{})
		mux := http.NewServeMux()
		server.Register(mux, "/ws/state")

		httpSrv := &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.StateWS.Port),
			Handler: mux,
		}

		g.Go(func() error {
			server.Hub().Run(ctx)
			return nil
		})
		g.Go(func() error {
			RunBroadcaster(ctx, server.Hub(), broadcasts, logger)
			return nil
		})
		g.Go(func() error {
			logger.Info("state websocket listening", "addr", httpSrv.Addr)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("state websocket server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return httpSrv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return fmt.Errorf("input reader: %w", err)
		}
	})

	g.Go(func() error {
		return runDaemon(ctx, input, ipcEvents, d)
	})

	logger.Info("listening",
		"devices", devicePaths,
		"grab", cfg.Input.Grab,
		"mode", scrollMode,
		"tick_hz", cfg.Scroll.TickHz,
		"ipc", cfg.IPC.SocketPath,
		"state_ws_enabled", cfg.StateWS.Enabled)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("daemon exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
