// Package main implements the entry point for dvmixerd, the DV video
// mixer hub. It accepts source and sink connections over a single
// listening socket, multiplexes them through a non-blocking event loop,
// and fans out the selected source's frames to every sink through a
// reference mixer implementation.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/yoe/dvswitch/frame"
	"github.com/yoe/dvswitch/health"
	"github.com/yoe/dvswitch/metric"
	"github.com/yoe/dvswitch/mixer"
	"github.com/yoe/dvswitch/natslog"
	"github.com/yoe/dvswitch/server"
	"github.com/yoe/dvswitch/wakeup"
)

// Build information constants.
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "dvmixerd"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("dvmixerd failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s (built %s)\n", appName, Version, BuildTime)
		return nil
	}
	if cliCfg.ShowHelp {
		printHelp()
		return nil
	}
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	if cliCfg.Validate {
		slog.Info("configuration is valid")
		return nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	natsPub, err := natslog.Connect(cliCfg.NATSURL, logger)
	if err != nil {
		logger.Warn("NATS log publication disabled", "error", err)
	} else if natsPub != nil {
		defer natsPub.Close()
		logger = slog.New(natsPub.Handler(logger.Handler()))
		slog.SetDefault(logger)
	}

	logger.Info("starting dvmixerd", "version", Version, "listen", cliCfg.ListenAddr)

	healthMon := health.NewMonitor()
	metricsRegistry := metric.NewMetricsRegistry()
	metricsRegistry.CoreMetrics().RecordServiceStatus(appName, 1)

	mx := mixer.New(mixer.FormatSettings{
		System:      frame.System525_60,
		FrameAspect: "4:3",
		SampleRate:  48000,
	}, logger)
	defer mx.Stop()
	mx.SetMonitor(newHubMonitor(healthMon, metricsRegistry.CoreMetrics(), logger))

	wake, err := wakeup.New()
	if err != nil {
		return fmt.Errorf("create wakeup pipe: %w", err)
	}
	defer wake.Close()

	listenFD, err := server.Listen(cliCfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cliCfg.ListenAddr, err)
	}
	defer func() { _ = unix.Close(listenFD) }()

	loop := server.New(listenFD, wake, mx, logger, metricsRegistry.CoreMetrics(), healthMon)

	sigCtx, sigCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer sigCancel()

	g, gctx := errgroup.WithContext(sigCtx)

	g.Go(func() error {
		return loop.Run()
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("received shutdown signal, stopping event loop")
		return loop.Stop()
	})

	if cliCfg.MetricsPort != 0 {
		metricsServer := metric.NewServer(cliCfg.MetricsPort, "/metrics", metricsRegistry)
		g.Go(func() error {
			return metricsServer.Start()
		})
		g.Go(func() error {
			<-gctx.Done()
			return metricsServer.Stop()
		})
	}

	if cliCfg.HealthPort != 0 {
		healthServer := health.NewServer(cliCfg.HealthPort, healthMon)
		g.Go(func() error {
			return healthServer.Start()
		})
		g.Go(func() error {
			<-gctx.Done()
			return healthServer.Stop()
		})
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-gctx.Done():
		case <-done:
			return
		}
		select {
		case <-done:
		case <-time.After(cliCfg.ShutdownTimeout):
			logger.Error("graceful shutdown exceeded timeout, forcing exit")
			os.Exit(1)
		}
	}()

	err = g.Wait()
	close(done)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("dvmixerd exited with error", "error", err)
	}

	logger.Info("dvmixerd shutdown complete")
	return nil
}

func printHelp() {
	printDetailedHelp()
}
