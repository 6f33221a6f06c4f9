package fiata2dp

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ivmarkov/fiat-a2dp/internal/bluez"
	"github.com/ivmarkov/fiat-a2dp/internal/coord"
	"github.com/ivmarkov/fiat-a2dp/internal/logging"
)

var logger = logging.GetSubsystemLogger("main")

// Main wires the daemon together and blocks until SIGINT or SIGTERM.
//
// Construction follows the dependency direction: the bus adapter first
// (it doubles as the coordinator's command sink), then registry, arbiter
// and route switch, then the coordinator, then the HTTP surface feeding
// it. There are no package-level component instances; everything is
// injected explicitly.
func Main() {
	logger.Info().Msg("starting fiat-a2dp")

	var sink coord.CommandSink = coord.NopCommandSink{}

	// Without a bus the daemon still runs: the HTTP surface and the
	// coordinator stay usable on machines with no Bluetooth stack.
	adapter, err := bluez.New(logging.GetDefaultLogger())
	if err != nil {
		logger.Warn().Err(err).Msg("bluez unavailable, running without stack adapter")
		adapter = nil
	} else {
		sink = adapter
	}

	registry := coord.NewLinkRegistry(logging.GetDefaultLogger())
	arbiter := coord.NewSyncSlotArbiter(logging.GetDefaultLogger())
	broadcaster := coord.NewStateBroadcaster(logging.GetDefaultLogger())
	route := coord.NewRouteSwitch(
		coord.NopAudioSink{},
		coord.NewStackStreamControl(registry, sink),
		logging.GetDefaultLogger(),
	)

	coordinator := coord.New(
		registry,
		arbiter,
		route,
		sink,
		logging.GetDefaultLogger(),
		coord.WithNotify(broadcaster.Broadcast),
	)

	if err := coordinator.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start coordinator")
	}

	if adapter != nil {
		if err := adapter.Start(coordinator); err != nil {
			logger.Fatal().Err(err).Msg("failed to start bluez adapter")
		}
	}

	listenAddr := os.Getenv("LISTEN_ADDR")
	if listenAddr == "" {
		listenAddr = ":8080"
	}
	server := &http.Server{
		Addr:    listenAddr,
		Handler: newRouter(coordinator, broadcaster),
	}
	go func() {
		logger.Info().Str("address", listenAddr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("shutting down")

	if adapter != nil {
		adapter.Stop()
	}
	coordinator.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("http server shutdown failed")
	}

	logger.Info().Msg("stopped")
}
